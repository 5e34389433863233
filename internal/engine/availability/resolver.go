// Package availability answers the product<->place join queries over the
// inventory mapping, ordered by trust signals.
package availability

import (
	"sort"

	"food_discovery/internal/domain"
)

// Catalog is the read surface the resolver needs from the entity store.
type Catalog interface {
	Place(id int64) (domain.Place, bool)
	Product(id int64) (domain.Product, bool)
	LinksForProduct(productID int64) []domain.InventoryLink
	LinksForPlace(placeID int64) []domain.InventoryLink
}

// Ratings supplies the trust aggregator's current place rating.
type Ratings interface {
	PlaceRating(placeID int64) float64
}

type PlaceAvailability struct {
	Place domain.Place
	Link  domain.InventoryLink
}

type ProductAvailability struct {
	Product domain.Product
	Link    domain.InventoryLink
}

type Resolver struct {
	cat     Catalog
	ratings Ratings
}

func New(cat Catalog, ratings Ratings) *Resolver {
	return &Resolver{cat: cat, ratings: ratings}
}

// PlacesForProduct lists places carrying the product. Order: available
// links before unavailable ones, then place rating descending, then
// last_verified_at descending, then place id ascending. Unavailable links
// are only included when includeUnavailable is set.
func (r *Resolver) PlacesForProduct(productID int64, includeUnavailable bool) ([]PlaceAvailability, error) {
	p, ok := r.cat.Product(productID)
	if !ok || p.Deleted() {
		return nil, &domain.NotFoundError{Kind: "product", ID: productID}
	}

	var out []PlaceAvailability
	for _, l := range r.cat.LinksForProduct(productID) {
		if !l.CommonlyAvailable && !includeUnavailable {
			continue
		}
		pl, ok := r.cat.Place(l.PlaceID)
		if !ok || pl.Deleted() {
			continue
		}
		out = append(out, PlaceAvailability{Place: pl, Link: l})
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Link.CommonlyAvailable != b.Link.CommonlyAvailable {
			return a.Link.CommonlyAvailable
		}
		ra, rb := r.ratings.PlaceRating(a.Place.ID), r.ratings.PlaceRating(b.Place.ID)
		if ra != rb {
			return ra > rb
		}
		if !a.Link.LastVerifiedAt.Equal(b.Link.LastVerifiedAt) {
			return a.Link.LastVerifiedAt.After(b.Link.LastVerifiedAt)
		}
		return a.Place.ID < b.Place.ID
	})
	return out, nil
}

// ProductsForPlace lists products the place carries, same ordering contract
// with the product id as the deterministic final tiebreak.
func (r *Resolver) ProductsForPlace(placeID int64, includeUnavailable bool) ([]ProductAvailability, error) {
	pl, ok := r.cat.Place(placeID)
	if !ok || pl.Deleted() {
		return nil, &domain.NotFoundError{Kind: "place", ID: placeID}
	}

	var out []ProductAvailability
	for _, l := range r.cat.LinksForPlace(placeID) {
		if !l.CommonlyAvailable && !includeUnavailable {
			continue
		}
		pr, ok := r.cat.Product(l.ProductID)
		if !ok || pr.Deleted() {
			continue
		}
		out = append(out, ProductAvailability{Product: pr, Link: l})
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Link.CommonlyAvailable != b.Link.CommonlyAvailable {
			return a.Link.CommonlyAvailable
		}
		if !a.Link.LastVerifiedAt.Equal(b.Link.LastVerifiedAt) {
			return a.Link.LastVerifiedAt.After(b.Link.LastVerifiedAt)
		}
		return a.Product.ID < b.Product.ID
	})
	return out, nil
}
