// Package geoindex maps place identifiers to location and structured facets
// and answers conjunctive filter queries over them.
package geoindex

import (
	"math"
	"sort"
	"strings"
	"sync"

	"food_discovery/internal/domain"
)

// Facets is the filterable projection of a place.
type Facets struct {
	City       string
	Region     string
	PostalCode string
	Lat, Lon   *float64
	Type       domain.PlaceType

	AcceptsCash       bool
	AcceptsCard       bool
	AcceptsMobilePay  bool
	DeliveryAvailable bool

	Deleted bool
}

func FacetsOf(p domain.Place) Facets {
	return Facets{
		City:              p.City,
		Region:            p.Region,
		PostalCode:        p.PostalCode,
		Lat:               p.Lat,
		Lon:               p.Lon,
		Type:              p.Type,
		AcceptsCash:       p.AcceptsCash,
		AcceptsCard:       p.AcceptsCard,
		AcceptsMobilePay:  p.AcceptsMobilePay,
		DeliveryAvailable: p.DeliveryAvailable,
		Deleted:           p.Deleted(),
	}
}

// Constraints are conjunctive; a zero value matches every live place.
type Constraints struct {
	City       string
	Region     string
	PostalCode string

	// Radius filtering applies when all three are set. Places without
	// coordinates never match a radius constraint.
	Lat, Lon *float64
	RadiusKM *float64

	Types []domain.PlaceType

	DeliveryOnly     bool
	AcceptsCard      *bool
	AcceptsCash      *bool
	AcceptsMobilePay *bool
}

type Index struct {
	mu     sync.RWMutex
	places map[int64]Facets
}

func New() *Index {
	return &Index{places: make(map[int64]Facets)}
}

func (ix *Index) Upsert(placeID int64, f Facets) {
	ix.mu.Lock()
	ix.places[placeID] = f
	ix.mu.Unlock()
}

func (ix *Index) Remove(placeID int64) {
	ix.mu.Lock()
	delete(ix.places, placeID)
	ix.mu.Unlock()
}

// Filter returns ids of live places satisfying every constraint, ascending.
func (ix *Index) Filter(c Constraints) []int64 {
	ix.mu.RLock()
	var out []int64
	for id, f := range ix.places {
		if matches(f, c) {
			out = append(out, id)
		}
	}
	ix.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func matches(f Facets, c Constraints) bool {
	if f.Deleted {
		return false
	}
	if c.City != "" && !strings.EqualFold(c.City, f.City) {
		return false
	}
	if c.Region != "" && !strings.EqualFold(c.Region, f.Region) {
		return false
	}
	if c.PostalCode != "" && c.PostalCode != f.PostalCode {
		return false
	}
	if len(c.Types) > 0 {
		ok := false
		for _, t := range c.Types {
			if t == f.Type {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if c.DeliveryOnly && !f.DeliveryAvailable {
		return false
	}
	if c.AcceptsCard != nil && *c.AcceptsCard != f.AcceptsCard {
		return false
	}
	if c.AcceptsCash != nil && *c.AcceptsCash != f.AcceptsCash {
		return false
	}
	if c.AcceptsMobilePay != nil && *c.AcceptsMobilePay != f.AcceptsMobilePay {
		return false
	}
	if c.RadiusKM != nil && c.Lat != nil && c.Lon != nil {
		if f.Lat == nil || f.Lon == nil {
			return false
		}
		if haversineKM(*c.Lat, *c.Lon, *f.Lat, *f.Lon) > *c.RadiusKM {
			return false
		}
	}
	return true
}

const earthRadiusKM = 6371.0

func haversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	rad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKM * math.Asin(math.Sqrt(a))
}
