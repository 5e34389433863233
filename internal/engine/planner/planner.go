// Package planner turns a free-text query plus filter constraints into one
// ranked page of mixed product and place results.
package planner

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"food_discovery/internal/domain"
	"food_discovery/internal/engine/geoindex"
	"food_discovery/internal/engine/termindex"
)

// Composite score weights; all terms are normalized to [0,1] first.
const (
	weightText    = 0.5
	weightRating  = 0.3
	weightRecency = 0.2

	// recencyWindow is the age at which a verification stops contributing.
	recencyWindow = 180 * 24 * time.Hour

	defaultLimit = 20
	maxLimit     = 100
)

type Kind string

const (
	KindPlace   Kind = "place"
	KindProduct Kind = "product"
)

type Result struct {
	Kind  Kind
	ID    int64
	Score float64
}

type Page struct {
	Offset int
	Limit  int
}

type ResultPage struct {
	Results []Result
	// Total is the full match count before pagination, for client-side
	// pagination controls.
	Total int
}

// Catalog is the entity read surface the planner scores against.
type Catalog interface {
	Place(id int64) (domain.Place, bool)
	Product(id int64) (domain.Product, bool)
	LiveProductIDs() []int64
	// LastVerified returns the freshest inventory verification touching
	// the entity; ok is false when it has no inventory links.
	LastVerified(kind string, id int64) (time.Time, bool)
}

type Ratings interface {
	PlaceRating(placeID int64) float64
}

type Planner struct {
	productTerms *termindex.Index
	placeTerms   *termindex.Index
	geo          *geoindex.Index
	cat          Catalog
	ratings      Ratings
	now          func() time.Time
}

func New(productTerms, placeTerms *termindex.Index, geo *geoindex.Index, cat Catalog, ratings Ratings) *Planner {
	return &Planner{
		productTerms: productTerms,
		placeTerms:   placeTerms,
		geo:          geo,
		cat:          cat,
		ratings:      ratings,
		now:          time.Now,
	}
}

// filters is the parsed form of the raw filter map. Place facet constraints
// apply to place results only; category/cuisine apply to product results.
type filters struct {
	geo      geoindex.Constraints
	kind     Kind // empty means both
	category string
	cuisine  string
}

// parseFilters rejects unknown keys and malformed values outright; silently
// ignoring a filter would return wrong results without any signal.
func parseFilters(raw map[string]string) (filters, error) {
	var f filters
	for k, v := range raw {
		switch k {
		case "city":
			f.geo.City = v
		case "region":
			f.geo.Region = v
		case "postal":
			f.geo.PostalCode = v
		case "place_type":
			for _, part := range strings.Split(v, ",") {
				t := domain.PlaceType(strings.TrimSpace(part))
				if !t.Valid() {
					return f, &domain.ValidationError{Field: "place_type", Reason: "unknown place type " + strconv.Quote(string(t))}
				}
				f.geo.Types = append(f.geo.Types, t)
			}
		case "delivery":
			b, err := strconv.ParseBool(v)
			if err != nil {
				return f, &domain.ValidationError{Field: "delivery", Reason: "must be a boolean"}
			}
			f.geo.DeliveryOnly = b
		case "accepts_card", "accepts_cash", "accepts_mobile":
			b, err := strconv.ParseBool(v)
			if err != nil {
				return f, &domain.ValidationError{Field: k, Reason: "must be a boolean"}
			}
			switch k {
			case "accepts_card":
				f.geo.AcceptsCard = &b
			case "accepts_cash":
				f.geo.AcceptsCash = &b
			case "accepts_mobile":
				f.geo.AcceptsMobilePay = &b
			}
		case "lat", "lon", "radius_km":
			fl, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return f, &domain.ValidationError{Field: k, Reason: "must be a number"}
			}
			switch k {
			case "lat":
				f.geo.Lat = &fl
			case "lon":
				f.geo.Lon = &fl
			case "radius_km":
				f.geo.RadiusKM = &fl
			}
		case "kind":
			switch Kind(v) {
			case KindPlace, KindProduct:
				f.kind = Kind(v)
			default:
				return f, &domain.ValidationError{Field: "kind", Reason: "must be place or product"}
			}
		case "category":
			f.category = v
		case "cuisine":
			f.cuisine = v
		default:
			return f, &domain.ValidationError{Field: k, Reason: "unknown filter key"}
		}
	}
	if f.geo.RadiusKM != nil && (f.geo.Lat == nil || f.geo.Lon == nil) {
		return f, &domain.ValidationError{Field: "radius_km", Reason: "requires lat and lon"}
	}
	return f, nil
}

// Search ranks products and places for the query. An empty query text is a
// filter-only query, never an error.
func (p *Planner) Search(text string, rawFilters map[string]string, pg Page) (ResultPage, error) {
	f, err := parseFilters(rawFilters)
	if err != nil {
		return ResultPage{}, err
	}
	if pg.Offset < 0 {
		return ResultPage{}, &domain.ValidationError{Field: "offset", Reason: "must not be negative"}
	}
	if pg.Limit < 0 || pg.Limit > maxLimit {
		return ResultPage{}, &domain.ValidationError{Field: "limit", Reason: "must be between 0 and " + strconv.Itoa(maxLimit)}
	}
	if pg.Limit == 0 {
		pg.Limit = defaultLimit
	}

	tokens := termindex.Tokenize(text)
	now := p.now()

	var results []Result
	if f.kind != KindProduct {
		results = append(results, p.placeCandidates(tokens, f, now)...)
	}
	if f.kind != KindPlace {
		results = append(results, p.productCandidates(tokens, f, now)...)
	}

	// Deterministic order: composite score descending, identifier
	// ascending, places before products on a full tie.
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		return a.Kind < b.Kind
	})

	total := len(results)
	if pg.Offset >= total {
		return ResultPage{Total: total}, nil
	}
	end := pg.Offset + pg.Limit
	if end > total {
		end = total
	}
	return ResultPage{Results: results[pg.Offset:end], Total: total}, nil
}

func (p *Planner) placeCandidates(tokens []string, f filters, now time.Time) []Result {
	eligible := make(map[int64]struct{})
	for _, id := range p.geo.Filter(f.geo) {
		eligible[id] = struct{}{}
	}

	var out []Result
	if len(tokens) == 0 {
		for id := range eligible {
			out = append(out, Result{Kind: KindPlace, ID: id, Score: p.scorePlace(id, 0, now)})
		}
		return out
	}
	for _, m := range p.placeTerms.Query(tokens) {
		if _, ok := eligible[m.ID]; !ok {
			continue
		}
		text := float64(m.Overlap) / float64(len(tokens))
		out = append(out, Result{Kind: KindPlace, ID: m.ID, Score: p.scorePlace(m.ID, text, now)})
	}
	return out
}

func (p *Planner) productCandidates(tokens []string, f filters, now time.Time) []Result {
	admit := func(id int64) (domain.Product, bool) {
		pr, ok := p.cat.Product(id)
		if !ok || pr.Deleted() {
			return pr, false
		}
		if f.category != "" && !strings.EqualFold(f.category, pr.Category) {
			return pr, false
		}
		if f.cuisine != "" && !strings.EqualFold(f.cuisine, pr.CuisineRegion) {
			return pr, false
		}
		return pr, true
	}

	var out []Result
	if len(tokens) == 0 {
		for _, id := range p.cat.LiveProductIDs() {
			if _, ok := admit(id); !ok {
				continue
			}
			out = append(out, Result{Kind: KindProduct, ID: id, Score: p.scoreProduct(id, 0, now)})
		}
		return out
	}
	for _, m := range p.productTerms.Query(tokens) {
		if _, ok := admit(m.ID); !ok {
			continue
		}
		text := float64(m.Overlap) / float64(len(tokens))
		out = append(out, Result{Kind: KindProduct, ID: m.ID, Score: p.scoreProduct(m.ID, text, now)})
	}
	return out
}

func (p *Planner) scorePlace(id int64, textMatch float64, now time.Time) float64 {
	rating := p.ratings.PlaceRating(id) / 5.0
	return weightText*textMatch + weightRating*rating + weightRecency*p.recency(string(KindPlace), id, now)
}

// Products carry no rating of their own; the rating term is 0.
func (p *Planner) scoreProduct(id int64, textMatch float64, now time.Time) float64 {
	return weightText*textMatch + weightRecency*p.recency(string(KindProduct), id, now)
}

// recency maps the freshest inventory verification to [0,1]: 1 right after
// verification, linearly down to 0 at the window edge.
func (p *Planner) recency(kind string, id int64, now time.Time) float64 {
	at, ok := p.cat.LastVerified(kind, id)
	if !ok {
		return 0
	}
	age := now.Sub(at)
	if age <= 0 {
		return 1
	}
	if age >= recencyWindow {
		return 0
	}
	return 1 - float64(age)/float64(recencyWindow)
}
