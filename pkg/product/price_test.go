package product

import "testing"

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name   string
		raw    any
		want   float64
		wantOK bool
	}{
		{"comma decimal with dot thousands", "1.234,56", 1234.56, true},
		{"dot decimal with comma thousands", "1,234.56", 1234.56, true},
		{"plain dot decimal", "19.99", 19.99, true},
		{"french display", "10,00 €", 10, true},
		{"spaces as thousands", "1 299,90 €", 1299.90, true},
		{"integer string", "42", 42, true},
		{"json number", 24.5, 24.5, true},
		{"json integer", 30.0, 30, true},
		{"currency only", "€", 0, false},
		{"empty", "", 0, false},
		{"nil", nil, 0, false},
		{"bool", true, 0, false},
		{"object", map[string]any{"v": 1}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParsePrice(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("ParsePrice(%v) ok = %v, want %v", tt.raw, ok, tt.wantOK)
			}
			if ok && !almostEqual(got, tt.want) {
				t.Errorf("ParsePrice(%v) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestFormatPrice(t *testing.T) {
	if got := FormatPrice(1234.5); got != "1234.50" {
		t.Errorf("FormatPrice(1234.5) = %q", got)
	}
	if got := FormatPrice(19.999); got != "20.00" {
		t.Errorf("FormatPrice(19.999) = %q", got)
	}
}

func almostEqual(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}
