// Package product reads loosely typed product records returned by the
// search webhook. Upstream sources disagree on field names, so every
// semantic field is resolved from an ordered list of candidate keys and the
// first present-and-valid value wins. A missing field degrades the display
// of that field only.
package product

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Product is one decoded JSON object from the results array.
type Product map[string]any

var (
	nameKeys          = []string{"titre", "nom", "name"}
	imageKeys         = []string{"image", "image_url", "imageUrl"}
	urlKeys           = []string{"url", "lien", "link"}
	originalPriceKeys = []string{"prix", "prix_normal", "prixNormal", "price", "original_price", "originalPrice"}
	promoPriceKeys    = []string{"prixPromo", "prix_promo", "promo_price", "promoPrice", "pricePromo"}
	reviewCountKeys   = []string{
		"avis", "nb_avis", "nbAvis", "nombre_avis", "nombreAvis",
		"reviews", "reviewCount", "reviewsCount", "review_count", "reviews_count",
	}

	reviewKeyPattern = regexp.MustCompile(`(?i)(avis|review)`)
	chakraKeyPattern = regexp.MustCompile(`(?i)chakra`)
)

// Detail is one labelled attribute shown in the expandable details panel.
type Detail struct {
	Label string
	Value string
}

func (p Product) Name() string  { return p.firstString(nameKeys) }
func (p Product) Image() string { return p.firstString(imageKeys) }
func (p Product) URL() string   { return p.firstString(urlKeys) }

// OriginalPrice is the first strictly positive parsable regular price.
func (p Product) OriginalPrice() (float64, bool) {
	return p.firstPositivePrice(originalPriceKeys)
}

// PromoPrice returns the promotional price only when it is lower than the
// original price.
func (p Product) PromoPrice() (float64, bool) {
	promo, ok := p.firstPositivePrice(promoPriceKeys)
	if !ok {
		return 0, false
	}
	orig, ok := p.OriginalPrice()
	if !ok || orig <= promo {
		return 0, false
	}
	return promo, true
}

// DiscountPercent is the rounded reduction of the valid promo, or 0.
func (p Product) DiscountPercent() int {
	promo, ok := p.PromoPrice()
	if !ok {
		return 0
	}
	orig, _ := p.OriginalPrice()
	percent := int(math.Round((1 - promo/orig) * 100))
	if percent < 0 {
		return 0
	}
	return percent
}

// Rating parses the "note" field, clamped to 0..5.
func (p Product) Rating() (float64, bool) {
	v, ok := p["note"]
	if !ok || v == nil {
		return 0, false
	}
	r, ok := parseLeadingFloat(scalarString(v))
	if !ok {
		return 0, false
	}
	return math.Max(0, math.Min(5, r)), true
}

// ReviewCount resolves the number of reviews from the candidate keys and,
// failing that, the largest integer held by any key mentioning avis/review.
func (p Product) ReviewCount() (int, bool) {
	for _, k := range reviewCountKeys {
		v, ok := p[k]
		if !ok || v == nil {
			continue
		}
		// The first present candidate decides; when it is blank or
		// unparsable the key scan below takes over.
		if n, ok := parseLeadingInt(strings.TrimSpace(scalarString(v))); ok {
			return n, true
		}
		break
	}

	found := false
	max := 0
	for k, v := range p {
		if !reviewKeyPattern.MatchString(k) || !isScalar(v) {
			continue
		}
		n, ok := parseLeadingInt(strings.TrimSpace(scalarString(v)))
		if !ok {
			continue
		}
		if !found || n > max {
			max = n
			found = true
		}
	}
	return max, found
}

// ShowStars applies the display rule: with a known review count the
// product needs at least one review, otherwise a positive rating suffices.
// A positive rating is always required.
func (p Product) ShowStars() bool {
	rating, hasRating := p.Rating()
	if !hasRating || rating <= 0 {
		return false
	}
	if n, ok := p.ReviewCount(); ok {
		return n > 0
	}
	return true
}

// Details returns the known detail attributes in display order.
func (p Product) Details() []Detail {
	details, _ := p["details"].(map[string]any)
	if details == nil {
		return nil
	}

	var out []Detail
	add := func(label string, v any) {
		if !isScalar(v) {
			return
		}
		if s := strings.TrimSpace(scalarString(v)); s != "" {
			out = append(out, Detail{Label: label, Value: s})
		}
	}

	add("Vertus", details["vertus"])
	add("Signe astrologique", details["signes"])
	add("Chakras", chakras(details))
	add("Pierre", details["pierre"])
	return out
}

func chakras(details map[string]any) any {
	for _, k := range []string{"chakras", "chakra"} {
		if v, ok := details[k]; ok && v != nil && strings.TrimSpace(scalarString(v)) != "" {
			return v
		}
	}
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := details[k]
		if !chakraKeyPattern.MatchString(k) || !isScalar(v) {
			continue
		}
		if strings.TrimSpace(scalarString(v)) != "" {
			return v
		}
	}
	return nil
}

func (p Product) firstString(keys []string) string {
	for _, k := range keys {
		v, ok := p[k]
		if !ok || !isScalar(v) {
			continue
		}
		if s := scalarString(v); s != "" {
			return s
		}
	}
	return ""
}

func (p Product) firstPositivePrice(keys []string) (float64, bool) {
	for _, k := range keys {
		if price, ok := ParsePrice(p[k]); ok && price > 0 {
			return price, true
		}
	}
	return 0, false
}

func isScalar(v any) bool {
	switch v.(type) {
	case string, float64, float32, int, int64, int32, bool:
		return true
	}
	return false
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	default:
		return fmt.Sprint(t)
	}
}
