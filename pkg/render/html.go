package render

import (
	"fmt"
	"hash/fnv"
	"html/template"
	"io"
	"strings"

	"github.com/rubiojr/fmsearch/pkg/controller"
)

const starPath = "M12 2l3.09 6.26L22 9.27l-5 4.87 1.18 6.88L12 17.77l-6.18 3.25L7 14.14 2 9.27l6.91-1.01L12 2z"

const cardTemplate = `<a href="{{.URL}}" class="fm-product-result">
  <div class="fm-product-image-wrapper">
    <img src="{{.Image}}" alt="{{.Name}}" class="fm-product-image">
    {{- if gt .Percent 0}}
    <div class="fm-product-discount-badge fm-product-discount-badge--image">-{{.Percent}}%</div>
    {{- end}}
  </div>
  <div class="fm-product-info">
    <div class="fm-product-name">{{.Name}}</div>
    {{- if .Details}}
    <div class="fm-product-accordion">
      <div class="fm-product-accordion-toggle" role="button" tabindex="0" aria-expanded="false">{{detailsLabel}}</div>
      <div class="fm-product-accordion-panel" hidden>
      {{- range .Details}}
        <div class="fm-product-detail-row"><span class="fm-product-detail-label">{{.Label}}</span><span class="fm-product-detail-value">{{.Value}}</span></div>
      {{- end}}
      </div>
    </div>
    {{- end}}
    <div class="fm-product-footer">
      {{- if gt .Percent 0}}
      <div class="fm-product-discount-badge fm-product-discount-badge--footer">-{{.Percent}}%</div>
      {{- end}}
      {{- if .Stars}}
      <div class="fm-product-rating"><div class="fm-stars">{{stars .}}</div></div>
      {{- end}}
      {{- if and .Price .Promo}}
      <div class="fm-product-prices">
        <span class="fm-product-price fm-product-price--original">{{.Price}} €</span>
        <span class="fm-product-price fm-product-price--promo">{{.Promo}} €</span>
      </div>
      {{- else}}
      <span class="fm-product-price">{{if .Price}}{{.Price}} €{{end}}</span>
      {{- end}}
    </div>
  </div>
</a>
`

const pageTemplate = `<div class="fm-search-results-header">
  <div class="fm-search-results-title">{{title}}</div>
  <div class="fm-search-results-count">{{.Label}}</div>
</div>
<div class="fm-results-wrapper">
{{- range .Cards}}
{{card .}}
{{- end}}
</div>
{{- if .HasMore}}
<div class="fm-results-actions"><button type="button" class="fm-load-more">{{loadMore}}</button></div>
{{- end}}
`

var templates *template.Template

func init() {
	templates = template.Must(template.New("card").Funcs(template.FuncMap{
		"stars":        starsSVG,
		"detailsLabel": func() string { return DetailsToggleLabel },
		"title":        func() string { return ResultsTitle },
		"loadMore":     func() string { return LoadMoreLabel },
		"card":         CardHTML,
	}).Parse(cardTemplate))
	template.Must(templates.New("page").Parse(pageTemplate))
}

// CardHTML renders one product card. Text fields are escaped by the
// template; URLs go through html/template's URL sanitizer.
func CardHTML(c Card) template.HTML {
	var buf strings.Builder
	if err := templates.ExecuteTemplate(&buf, "card", c); err != nil {
		return template.HTML("<!-- card render error -->")
	}
	return template.HTML(buf.String())
}

// WriteHTML renders the results panel for page.
func WriteHTML(w io.Writer, page controller.Page) error {
	data := struct {
		Label   string
		Cards   []Card
		HasMore bool
	}{Label: page.CountLabel(), HasMore: page.HasMore()}
	for _, p := range page.Items {
		data.Cards = append(data.Cards, NewCard(p))
	}
	if err := templates.ExecuteTemplate(w, "page", data); err != nil {
		return fmt.Errorf("rendering results: %w", err)
	}
	return nil
}

// starsSVG draws five stars clipped to the rating. Clip ids are derived
// from the product URL and name so cards on one page do not collide.
func starsSVG(c Card) template.HTML {
	h := fnv.New32a()
	io.WriteString(h, c.URL+"\x00"+c.Name)
	uid := fmt.Sprintf("%08x", h.Sum32())
	var b strings.Builder
	for i, fill := range c.StarFill() {
		clip := fmt.Sprintf("fm-star-clip-%s-%d", uid, i)
		fmt.Fprintf(&b, `<svg class="fm-star" viewBox="0 0 24 24" width="14" height="14" aria-hidden="true" focusable="false">`+
			`<defs><clipPath id="%s"><rect x="0" y="0" width="%.2f" height="24"></rect></clipPath></defs>`+
			`<g class="fm-star-empty"><path d="%s"></path></g>`+
			`<g class="fm-star-filled" clip-path="url(#%s)"><path d="%s"></path></g></svg>`,
			clip, 24*fill, starPath, clip, starPath)
	}
	return template.HTML(b.String())
}
