// Package placeholder animates the input placeholder through a list of
// example queries: typed out, held, erased, then the next one.
package placeholder

import "time"

// Default is the static placeholder used when no examples are configured.
const Default = "Décrivez ce que vous recherchez en langage naturel..."

const (
	TypeDelay   = 80 * time.Millisecond
	DeleteDelay = 30 * time.Millisecond
	NextDelay   = 500 * time.Millisecond
)

// Cycle is the animation state. Each call to Next yields the frame to show
// and how long to wait before asking for the following one, so the caller
// owns the clock.
type Cycle struct {
	examples []string
	hold     time.Duration

	index    int
	pos      int
	deleting bool
}

// New returns a cycle positioned before the first example. A non-positive
// hold defaults to three seconds.
func New(examples []string, hold time.Duration) *Cycle {
	if hold <= 0 {
		hold = 3 * time.Second
	}
	return &Cycle{
		examples: append([]string(nil), examples...),
		hold:     hold,
	}
}

// Empty reports whether there is nothing to animate.
func (c *Cycle) Empty() bool { return len(c.examples) == 0 }

// Next advances one frame. It returns Default when there are no examples.
func (c *Cycle) Next() (string, time.Duration) {
	if c.Empty() {
		return Default, 0
	}
	text := []rune(c.examples[c.index])

	if !c.deleting {
		c.pos++
		if c.pos >= len(text) {
			c.pos = len(text)
			c.deleting = true
			return string(text), c.hold
		}
		return string(text[:c.pos]), TypeDelay
	}

	c.pos--
	if c.pos <= 0 {
		c.pos = 0
		c.deleting = false
		c.index = (c.index + 1) % len(c.examples)
		return "", NextDelay
	}
	return string(text[:c.pos]), DeleteDelay
}

// Reset drops the typed text. The example index survives.
func (c *Cycle) Reset() {
	c.pos = 0
	c.deleting = false
}
