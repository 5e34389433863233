package domain

import "time"

type Product struct {
	ID   int64
	Name string

	// NamesByLocale maps a locale tag ("es", "fr", ...) to the localized name.
	NamesByLocale map[string]string
	// AltNames are alternative/alias names ("gari", "fermented cassava").
	AltNames []string

	Category       string
	CuisineRegion  string
	SearchKeywords []string

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

func (p Product) Deleted() bool { return p.DeletedAt != nil }

// SearchNames returns every name the product should be findable under.
func (p Product) SearchNames() []string {
	out := make([]string, 0, 2+len(p.NamesByLocale)+len(p.AltNames)+len(p.SearchKeywords))
	out = append(out, p.Name)
	for _, n := range p.NamesByLocale {
		out = append(out, n)
	}
	out = append(out, p.AltNames...)
	out = append(out, p.SearchKeywords...)
	return out
}

// InventoryLink asserts that a place commonly carries a product.
// Unique per (place, product); re-submission updates the existing link.
type InventoryLink struct {
	ID        int64
	PlaceID   int64
	ProductID int64

	CommonlyAvailable bool
	TypicalPrice      *float64
	Currency          string
	Note              string
	LastVerifiedAt    time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
