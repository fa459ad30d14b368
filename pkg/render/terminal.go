package render

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/rubiojr/fmsearch/pkg/controller"
	"github.com/rubiojr/fmsearch/pkg/payload"
)

type palette struct {
	accent, muted, price, promo, warn, err, star lipgloss.Color
}

var themes = map[string]palette{
	"light": {accent: "33", muted: "240", price: "235", promo: "160", warn: "214", err: "196", star: "220"},
	"dark":  {accent: "86", muted: "245", price: "252", promo: "203", warn: "214", err: "203", star: "220"},
}

type styles struct {
	title, count, card, name, meta, price, strike, promo, badge, star, notice, warn, err, history lipgloss.Style
}

func newStyles(r *lipgloss.Renderer, theme string) styles {
	p, ok := themes[theme]
	if !ok {
		p = themes["light"]
	}
	return styles{
		title: r.NewStyle().Bold(true).Foreground(p.accent).Margin(0, 0, 1, 0),
		count: r.NewStyle().Foreground(p.muted).Italic(true),
		card: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.muted).
			Padding(0, 1).
			Margin(0, 0, 0, 2),
		name:    r.NewStyle().Bold(true).Foreground(p.accent),
		meta:    r.NewStyle().Foreground(p.muted),
		price:   r.NewStyle().Bold(true).Foreground(p.price),
		strike:  r.NewStyle().Strikethrough(true).Foreground(p.muted),
		promo:   r.NewStyle().Bold(true).Foreground(p.promo),
		badge:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("231")).Background(p.promo).Padding(0, 1),
		star:    r.NewStyle().Foreground(p.star),
		notice:  r.NewStyle().Foreground(p.muted).Italic(true).Margin(1, 0),
		warn:    r.NewStyle().Bold(true).Foreground(p.warn).Border(lipgloss.ThickBorder()).BorderForeground(p.warn).Padding(0, 1),
		err:     r.NewStyle().Bold(true).Foreground(p.err),
		history: r.NewStyle().Foreground(p.accent),
	}
}

// TerminalView draws each panel state to a writer, one block per
// transition. It is safe for concurrent use.
type TerminalView struct {
	mu sync.Mutex
	w  io.Writer
	st styles
}

// NewTerminalView writes to w using the named theme ("light" or "dark").
func NewTerminalView(w io.Writer, theme string) *TerminalView {
	return &TerminalView{
		w:  w,
		st: newStyles(lipgloss.NewRenderer(w), theme),
	}
}

func (v *TerminalView) write(s string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.w, s)
}

func (v *TerminalView) Hide() {}

func (v *TerminalView) ShowLoading(q string) {
	v.write(v.Panel(Event{State: controller.StateLoading, Query: q}))
}

func (v *TerminalView) ShowNoResults(q string) {
	v.write(v.Panel(Event{State: controller.StateNoResults, Query: q}))
}

func (v *TerminalView) ShowError(kind controller.ErrorKind, msg string) {
	v.write(v.Panel(Event{State: controller.StateError, ErrorKind: kind, Message: msg}))
}

func (v *TerminalView) ShowRateLimit(info payload.RateLimit) {
	v.write(v.Panel(Event{State: controller.StateRateLimited, RateLimit: info}))
}

func (v *TerminalView) ShowHistory(entries []string) {
	v.write(v.Panel(Event{State: controller.StateHistory, History: entries}))
}

func (v *TerminalView) ShowResults(page controller.Page) {
	v.write(v.Panel(Event{State: controller.StateResults, Query: page.Query, Page: page}))
}

// Panel renders one transition as a block of text. A hidden panel is empty.
func (v *TerminalView) Panel(e Event) string {
	switch e.State {
	case controller.StateLoading:
		return v.st.notice.Render("⏳ " + LoadingMessage)
	case controller.StateNoResults:
		return v.st.notice.Render("🥺 " + NoResultsMessage)
	case controller.StateError:
		return v.st.err.Render("⚠️  " + e.Message)
	case controller.StateRateLimited:
		return v.rateLimit(e.RateLimit)
	case controller.StateHistory:
		return v.history(e.History)
	case controller.StateResults:
		return v.results(e.Page)
	}
	return ""
}

func (v *TerminalView) rateLimit(info payload.RateLimit) string {
	var b strings.Builder
	b.WriteString("⏳ " + info.Title())
	if retry := info.RetryMessage(); retry != "" {
		b.WriteString("\n" + retry)
	}
	b.WriteString("\n\n" + RateLimitAlternative)
	return v.st.warn.Render(b.String())
}

func (v *TerminalView) history(entries []string) string {
	var b strings.Builder
	b.WriteString(v.st.title.Render(HistoryTitle))
	b.WriteString("\n")
	for i, e := range entries {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, v.st.history.Render(e))
	}
	b.WriteString(v.st.meta.Render("  [" + HistoryClearLabel + "]"))
	return b.String()
}

func (v *TerminalView) results(page controller.Page) string {
	var b strings.Builder
	header := fmt.Sprintf("%s · %s", ResultsTitle, cases.Title(language.French).String(page.Query))
	b.WriteString(v.st.title.Render(header))
	b.WriteString("  ")
	b.WriteString(v.st.count.Render(page.CountLabel()))
	b.WriteString("\n")
	for i, p := range page.Items {
		b.WriteString(v.card(i+1, NewCard(p)))
		b.WriteString("\n")
	}
	if page.HasMore() {
		b.WriteString(v.st.meta.Render("  [" + LoadMoreLabel + "]"))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (v *TerminalView) card(n int, c Card) string {
	var b strings.Builder
	name := c.Name
	if name == "" {
		name = "(sans titre)"
	}
	b.WriteString(v.st.name.Render(fmt.Sprintf("%d. %s", n, name)))

	var footer []string
	if c.Percent > 0 {
		footer = append(footer, v.st.badge.Render(fmt.Sprintf("-%d%%", c.Percent)))
	}
	if c.Stars {
		footer = append(footer, v.st.star.Render(StarsText(c.Rating)))
	}
	switch {
	case c.Price != "" && c.Promo != "":
		footer = append(footer, v.st.strike.Render(c.Price+" €"), v.st.promo.Render(c.Promo+" €"))
	case c.Price != "":
		footer = append(footer, v.st.price.Render(c.Price+" €"))
	}
	if len(footer) > 0 {
		b.WriteString("\n" + strings.Join(footer, " "))
	}

	for _, d := range c.Details {
		b.WriteString("\n" + v.st.meta.Render(d.Label+": ") + d.Value)
	}
	if c.URL != "" {
		b.WriteString("\n" + v.st.meta.Render("🔗 "+c.URL))
	}
	return v.st.card.Render(b.String())
}

// StarsText renders a 0..5 rating as five glyphs, rounding to the nearest
// whole star.
func StarsText(rating float64) string {
	full := int(rating + 0.5)
	full = max(0, min(5, full))
	return strings.Repeat("★", full) + strings.Repeat("☆", 5-full) + fmt.Sprintf(" %.1f", rating)
}
