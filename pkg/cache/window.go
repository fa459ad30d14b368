package cache

// Window tracks how many items of a result set are rendered. It starts at
// the initial count and grows by step on explicit request, without
// re-fetching.
type Window struct {
	initial int
	step    int
	visible int
	total   int
}

// NewWindow returns a window with the given initial size and step. Non
// positive values fall back to 100 and 50.
func NewWindow(initial, step int) *Window {
	if initial <= 0 {
		initial = 100
	}
	if step <= 0 {
		step = 50
	}
	return &Window{initial: initial, step: step}
}

// Reset points the window at a set of total items.
func (w *Window) Reset(total int) {
	w.total = total
	w.visible = min(w.initial, total)
}

// More grows the window by one step and reports whether it changed.
func (w *Window) More() bool {
	next := min(w.visible+w.step, w.total)
	if next <= w.visible {
		return false
	}
	w.visible = next
	return true
}

func (w *Window) Visible() int { return w.visible }
