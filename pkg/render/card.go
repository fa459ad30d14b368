// Package render presents controller state: a styled terminal view, HTML
// product cards and a recording view for non-interactive callers.
package render

import (
	"math"

	"github.com/rubiojr/fmsearch/pkg/product"
)

// Card is the display model of one product. Missing fields are left empty
// and the matching part of the card is omitted.
type Card struct {
	Name    string
	URL     string
	Image   string
	Price   string
	Promo   string
	Percent int
	Rating  float64
	Stars   bool
	Details []product.Detail
}

func NewCard(p product.Product) Card {
	c := Card{
		Name:    p.Name(),
		URL:     p.URL(),
		Image:   p.Image(),
		Details: p.Details(),
		Stars:   p.ShowStars(),
	}
	if orig, ok := p.OriginalPrice(); ok {
		c.Price = product.FormatPrice(orig)
	}
	if promo, ok := p.PromoPrice(); ok {
		c.Promo = product.FormatPrice(promo)
		c.Percent = p.DiscountPercent()
	}
	if c.Stars {
		c.Rating, _ = p.Rating()
	}
	return c
}

// StarFill returns the filled fraction, 0..1, of each of the five stars.
func (c Card) StarFill() [5]float64 {
	var out [5]float64
	for i := range out {
		out[i] = math.Max(0, math.Min(1, c.Rating-float64(i)))
	}
	return out
}
