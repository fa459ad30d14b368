package product

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ParsePrice reads a price from a JSON number or a display string. Strings
// may carry currency symbols, spaces and either separator convention: when
// both ',' and '.' appear, the last one is the decimal separator.
//
//	"1.234,56" -> 1234.56
//	"1,234.56" -> 1234.56
//	"19,99 €"  -> 19.99
func ParsePrice(raw any) (float64, bool) {
	switch v := raw.(type) {
	case nil:
		return 0, false
	case float64:
		return v, !math.IsNaN(v) && !math.IsInf(v, 0)
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		return parsePriceString(v)
	}
	return 0, false
}

func parsePriceString(s string) (float64, bool) {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return 0, false
	}

	lastComma := strings.LastIndex(cleaned, ",")
	lastDot := strings.LastIndex(cleaned, ".")

	var normalized string
	switch {
	case lastComma >= 0 && lastDot >= 0 && lastComma > lastDot:
		normalized = strings.Replace(strings.ReplaceAll(cleaned, ".", ""), ",", ".", 1)
	case lastComma >= 0 && lastDot >= 0:
		normalized = strings.ReplaceAll(cleaned, ",", "")
	case lastComma >= 0:
		normalized = strings.Replace(cleaned, ",", ".", 1)
	default:
		normalized = cleaned
	}
	return parseLeadingFloat(normalized)
}

// FormatPrice renders a price with two decimals.
func FormatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// parseLeadingFloat parses the longest numeric prefix of s, ignoring
// leading whitespace, the way browsers parse loosely formatted numbers.
func parseLeadingFloat(s string) (float64, bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
		digits++
	}
	if end < len(s) && s[end] == '.' {
		end++
		for end < len(s) && s[end] >= '0' && s[end] <= '9' {
			end++
			digits++
		}
	}
	if digits == 0 {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(s[:end], "."), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func parseLeadingInt(s string) (int, bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
