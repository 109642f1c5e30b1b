// Package sourcing holds the brand catalogue admins use to find where a
// requested product can be bought.
package sourcing

import (
	"context"
	"net/url"
	"slices"
	"strings"
	"unicode"
)

// SourceSite is a shop domain worth searching for a brand.
type SourceSite struct {
	Site  string `json:"site"`
	Label string `json:"label"`
	Kind  string `json:"kind"`
}

// BrandSource maps a brand and its spelling variants to preferred shops.
type BrandSource struct {
	Brand   string       `json:"brand"`
	Country string       `json:"country"`
	Aliases []string     `json:"aliases,omitempty"`
	Primary []SourceSite `json:"primary"`
	Backup  []SourceSite `json:"backup,omitempty"`
}

// Hint is a matched brand with ready-to-open site searches, primary sites first.
type Hint struct {
	Brand    string       `json:"brand"`
	Country  string       `json:"country"`
	Matched  string       `json:"matched"`
	Sites    []SourceSite `json:"sites"`
	Searches []string     `json:"searches"`
}

// Loader reads a catalogue from a path or object key.
type Loader interface {
	Load(ctx context.Context, path string) (*Catalog, error)
}

// Catalog is an immutable set of brand sources.
type Catalog struct {
	brands []BrandSource
}

// NewCatalog builds a catalogue, lower-casing aliases and adding the brand
// name itself as an alias.
func NewCatalog(brands []BrandSource) *Catalog {
	out := make([]BrandSource, 0, len(brands))
	for _, b := range brands {
		aliases := []string{normalize(b.Brand)}
		for _, a := range b.Aliases {
			if n := normalize(a); n != "" && !slices.Contains(aliases, n) {
				aliases = append(aliases, n)
			}
		}
		b.Aliases = aliases
		out = append(out, b)
	}
	return &Catalog{brands: out}
}

// Size returns the number of brands.
func (c *Catalog) Size() int {
	return len(c.brands)
}

// Match returns hints for every brand with an alias found as a whole-word
// phrase in any of texts. Longer alias matches rank first.
func (c *Catalog) Match(query string, texts ...string) []Hint {
	haystack := " " + normalize(strings.Join(texts, " ")) + " "

	type scored struct {
		hint  Hint
		score int
	}
	var found []scored
	for _, b := range c.brands {
		best := ""
		for _, a := range b.Aliases {
			if a != "" && strings.Contains(haystack, " "+a+" ") && len(a) > len(best) {
				best = a
			}
		}
		if best == "" {
			continue
		}
		sites := append(slices.Clone(b.Primary), b.Backup...)
		found = append(found, scored{
			hint: Hint{
				Brand:    b.Brand,
				Country:  b.Country,
				Matched:  best,
				Sites:    sites,
				Searches: searches(sites, query),
			},
			score: len(best),
		})
	}

	slices.SortStableFunc(found, func(a, b scored) int { return b.score - a.score })

	hints := make([]Hint, len(found))
	for i, f := range found {
		hints[i] = f.hint
	}
	return hints
}

func searches(sites []SourceSite, query string) []string {
	out := make([]string, len(sites))
	for i, s := range sites {
		q := "site:" + s.Site
		if query != "" {
			q += " " + query
		}
		out[i] = "https://www.google.com/search?q=" + url.QueryEscape(q)
	}
	return out
}

// normalize lower-cases s and turns punctuation into single spaces so that
// "La Roche-Posay" and "la-roche-posay" compare equal.
func normalize(s string) string {
	var b strings.Builder
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}
