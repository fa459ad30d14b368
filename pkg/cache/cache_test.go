package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/rubiojr/fmsearch/pkg/product"
)

func items(n int) []product.Product {
	out := make([]product.Product, n)
	for i := range out {
		out[i] = product.Product{"titre": fmt.Sprintf("item %d", i)}
	}
	return out
}

func TestResultCacheGetRequiresExactQueryAndItems(t *testing.T) {
	c := New(400)

	if _, ok := c.Get("collier vert"); ok {
		t.Fatal("empty cache must miss")
	}

	c.Set("collier vert", items(3))
	if rs, ok := c.Get("collier vert"); !ok || rs.Len() != 3 {
		t.Fatalf("expected hit with 3 items, got %v %v", rs, ok)
	}
	if _, ok := c.Get("Collier vert"); ok {
		t.Error("cache keys are exact normalized queries")
	}

	c.Set("bague", nil)
	if _, ok := c.Get("bague"); ok {
		t.Error("an empty result set is not a cache hit")
	}
	if _, ok := c.Get("collier vert"); ok {
		t.Error("replaced slot must not serve the previous query")
	}

	c.Clear()
	if c.Current() != nil {
		t.Error("Clear must empty the slot")
	}
}

func TestResultCacheCapsAndCopies(t *testing.T) {
	c := New(5)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	in := items(8)
	rs := c.Set("perle", in)
	if rs.Len() != 5 {
		t.Fatalf("expected cap of 5, got %d", rs.Len())
	}
	if !rs.CapturedAt.Equal(fixed) {
		t.Errorf("CapturedAt = %v", rs.CapturedAt)
	}

	in[0] = product.Product{"titre": "mutated"}
	if rs.Items[0].Name() != "item 0" {
		t.Error("cache must not alias the caller's slice")
	}

	uncapped := New(0)
	if got := uncapped.Set("perle", items(1000)).Len(); got != 1000 {
		t.Errorf("cap 0 means unlimited, got %d", got)
	}
}

func TestWindow(t *testing.T) {
	w := NewWindow(100, 50)
	w.Reset(230)

	if w.Visible() != 100 {
		t.Fatalf("initial window wrong: visible=%d", w.Visible())
	}
	if !w.More() || w.Visible() != 150 {
		t.Fatalf("expected 150 after first step, got %d", w.Visible())
	}
	w.More()
	if !w.More() || w.Visible() != 230 {
		t.Fatalf("expected window capped at 230, got %d", w.Visible())
	}
	if w.More() {
		t.Error("More must report no change once everything is visible")
	}
	w.Reset(7)
	if w.Visible() != 7 || w.More() {
		t.Errorf("small set: visible=%d", w.Visible())
	}

	d := NewWindow(0, 0)
	d.Reset(500)
	if d.Visible() != 100 {
		t.Errorf("default initial must be 100, got %d", d.Visible())
	}
	d.More()
	if d.Visible() != 150 {
		t.Errorf("default step must be 50, got %d", d.Visible())
	}
}
