package planner

import (
	"errors"
	"reflect"
	"strconv"
	"testing"
	"time"

	"food_discovery/internal/domain"
	"food_discovery/internal/engine/geoindex"
	"food_discovery/internal/engine/termindex"
)

// ---- fakes ----

type fakeCatalog struct {
	places   map[int64]domain.Place
	products map[int64]domain.Product
	verified map[string]time.Time // "kind/id"
}

func (c *fakeCatalog) Place(id int64) (domain.Place, bool) {
	p, ok := c.places[id]
	return p, ok
}

func (c *fakeCatalog) Product(id int64) (domain.Product, bool) {
	p, ok := c.products[id]
	return p, ok
}

func (c *fakeCatalog) LiveProductIDs() []int64 {
	var out []int64
	for id, p := range c.products {
		if !p.Deleted() {
			out = append(out, id)
		}
	}
	return out
}

func (c *fakeCatalog) LastVerified(kind string, id int64) (time.Time, bool) {
	t, ok := c.verified[key(kind, id)]
	return t, ok
}

func key(kind string, id int64) string {
	return kind + "/" + strconv.FormatInt(id, 10)
}

type fakeRatings map[int64]float64

func (f fakeRatings) PlaceRating(id int64) float64 { return f[id] }

var testNow = time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)

func newTestPlanner() (*Planner, *fakeCatalog, fakeRatings) {
	cat := &fakeCatalog{
		places: map[int64]domain.Place{
			1: {ID: 1, Name: "Mama Africa Market", City: "Houston"},
			2: {ID: 2, Name: "Lagos Kitchen", City: "Houston"},
			3: {ID: 3, Name: "Accra Grocery", City: "Dallas"},
		},
		products: map[int64]domain.Product{
			10: {ID: 10, Name: "Egusi", AltNames: []string{"melon seeds"}, Category: "spices", CuisineRegion: "West African"},
			11: {ID: 11, Name: "Gari", AltNames: []string{"fermented cassava"}, Category: "grains", CuisineRegion: "West African"},
		},
		verified: map[string]time.Time{
			key("place", 1):    testNow.Add(-24 * time.Hour),
			key("place", 2):    testNow.Add(-24 * time.Hour),
			key("place", 3):    testNow.Add(-24 * time.Hour),
			key("product", 10): testNow.Add(-24 * time.Hour),
			key("product", 11): testNow.Add(-24 * time.Hour),
		},
	}
	ratings := fakeRatings{1: 4.5, 2: 3.0, 3: 4.0}

	placeTerms := termindex.New()
	productTerms := termindex.New()
	geo := geoindex.New()
	for id, p := range cat.places {
		placeTerms.Put(id, termindex.TokenizeAll(p.Name, p.City))
		geo.Upsert(id, geoindex.FacetsOf(p))
	}
	for id, p := range cat.products {
		productTerms.Put(id, termindex.TokenizeAll(p.SearchNames()...))
	}

	pl := New(productTerms, placeTerms, geo, cat, ratings)
	pl.now = func() time.Time { return testNow }
	return pl, cat, ratings
}

// ---- tests ----

func TestSearch_TextResolvesAliases(t *testing.T) {
	pl, _, _ := newTestPlanner()
	page, err := pl.Search("fermented cassava", nil, Page{})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(page.Results) == 0 || page.Results[0].Kind != KindProduct || page.Results[0].ID != 11 {
		t.Fatalf("alias query did not resolve to canonical product: %+v", page.Results)
	}
}

func TestSearch_UnknownFilterKeyRejected(t *testing.T) {
	pl, _, _ := newTestPlanner()
	_, err := pl.Search("gari", map[string]string{"zip_code": "77001"}, Page{})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestSearch_EmptyTextIsFilterOnlyQuery(t *testing.T) {
	pl, _, _ := newTestPlanner()
	page, err := pl.Search("  ...  ", map[string]string{"city": "Houston", "kind": "place"}, Page{})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	got := resultIDs(page.Results)
	// Ratings differ, so place 1 (4.5) outranks place 2 (3.0).
	if !reflect.DeepEqual(got, []int64{1, 2}) {
		t.Fatalf("filter-only results = %v, want [1 2]", got)
	}
	if page.Total != 2 {
		t.Fatalf("total = %d, want 2", page.Total)
	}
}

func TestSearch_GeoConstraintsApplyToPlaces(t *testing.T) {
	pl, _, _ := newTestPlanner()
	page, err := pl.Search("grocery market kitchen", map[string]string{"city": "Dallas", "kind": "place"}, Page{})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if got := resultIDs(page.Results); !reflect.DeepEqual(got, []int64{3}) {
		t.Fatalf("results = %v, want only the Dallas place", got)
	}
}

func TestSearch_Deterministic(t *testing.T) {
	pl, _, _ := newTestPlanner()
	a, err := pl.Search("african market gari", nil, Page{Limit: 10})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	b, _ := pl.Search("african market gari", nil, Page{Limit: 10})
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("identical queries disagreed:\n%v\n%v", a, b)
	}
}

func TestSearch_CompositeScoreOrdersByRating(t *testing.T) {
	pl, _, _ := newTestPlanner()
	// Both Houston places have equal text match for "houston"; the higher
	// rated one must come first.
	page, err := pl.Search("houston", map[string]string{"kind": "place"}, Page{})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	got := resultIDs(page.Results)
	if !reflect.DeepEqual(got, []int64{1, 2}) {
		t.Fatalf("results = %v, want [1 2]", got)
	}
}

func TestSearch_Pagination(t *testing.T) {
	pl, _, _ := newTestPlanner()
	all, _ := pl.Search("", nil, Page{Limit: 100})
	if all.Total != 5 {
		t.Fatalf("total = %d, want 5", all.Total)
	}

	p1, _ := pl.Search("", nil, Page{Limit: 2})
	p2, _ := pl.Search("", nil, Page{Offset: 2, Limit: 2})
	p3, _ := pl.Search("", nil, Page{Offset: 4, Limit: 2})
	got := append(append(resultIDs(p1.Results), resultIDs(p2.Results)...), resultIDs(p3.Results)...)
	if !reflect.DeepEqual(got, resultIDs(all.Results)) {
		t.Fatalf("paged walk %v != full list %v", got, resultIDs(all.Results))
	}
	for _, p := range []ResultPage{p1, p2, p3} {
		if p.Total != 5 {
			t.Fatalf("page total = %d, want 5", p.Total)
		}
	}

	// Offset past the end is an empty page, not an error.
	past, err := pl.Search("", nil, Page{Offset: 50, Limit: 2})
	if err != nil || len(past.Results) != 0 || past.Total != 5 {
		t.Fatalf("past-end page = %+v, err = %v", past, err)
	}

	// Malformed pagination is rejected.
	if _, err := pl.Search("", nil, Page{Offset: -1}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("negative offset: err = %v, want validation error", err)
	}
	if _, err := pl.Search("", nil, Page{Limit: 1000}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("oversized limit: err = %v, want validation error", err)
	}
}

func TestSearch_ProductFacetFilters(t *testing.T) {
	pl, _, _ := newTestPlanner()
	page, err := pl.Search("", map[string]string{"kind": "product", "category": "grains"}, Page{})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if got := resultIDs(page.Results); !reflect.DeepEqual(got, []int64{11}) {
		t.Fatalf("category filter = %v, want [11]", got)
	}
}

func TestSearch_RadiusRequiresCoordinates(t *testing.T) {
	pl, _, _ := newTestPlanner()
	_, err := pl.Search("", map[string]string{"radius_km": "10"}, Page{})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func resultIDs(in []Result) []int64 {
	out := make([]int64, len(in))
	for i, r := range in {
		out[i] = r.ID
	}
	return out
}
