package app

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"food_discovery/internal/adapters/observability"
	"food_discovery/internal/domain"
	"food_discovery/internal/engine"
	"food_discovery/internal/engine/availability"
	"food_discovery/internal/engine/planner"
)

// ReadEngine is the slice of the engine the query service reads from.
// *engine.Engine satisfies it.
type ReadEngine interface {
	Search(text string, filters map[string]string, pg planner.Page) (planner.ResultPage, error)
	PlaceByID(id int64) (domain.Place, error)
	ProductByID(id int64) (domain.Product, error)
	PlacesForProduct(productID int64, includeUnavailable bool) ([]availability.PlaceAvailability, error)
	ProductsForPlace(placeID int64, includeUnavailable bool) ([]availability.ProductAvailability, error)
	ReviewsForPlace(placeID int64) ([]domain.Review, error)
	AnswersForQuestion(questionID int64) (domain.Question, []domain.Answer, error)
}

// QueryService wraps the engine's read surface with cache-aside reads.
// Search pages are cached on TTL alone (their key space is unbounded);
// entity and availability reads are invalidated by the command service.
type QueryService struct {
	eng      ReadEngine
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(eng ReadEngine, cache domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{eng: eng, cache: cache, cacheTTL: ttl}
}

// ---- cache keys ----

func placeKey(id int64) string        { return fmt.Sprintf("place:%d", id) }
func reviewsKey(placeID int64) string { return fmt.Sprintf("reviews:%d", placeID) }

func placesForProductKey(id int64, all bool) string {
	return fmt.Sprintf("avail:product:%d:%t", id, all)
}
func productsForPlaceKey(id int64, all bool) string {
	return fmt.Sprintf("avail:place:%d:%t", id, all)
}

// searchKey hashes the full query input so equal queries share an entry.
func searchKey(text string, filters map[string]string, pg planner.Page) string {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	h := sha1.New()
	fmt.Fprintf(h, "%s|%d|%d", text, pg.Offset, pg.Limit)
	for _, k := range keys {
		fmt.Fprintf(h, "|%s=%s", k, filters[k])
	}
	return "search:" + hex.EncodeToString(h.Sum(nil))
}

// ---- reads ----

func (s *QueryService) Search(ctx context.Context, text string, filters map[string]string, pg planner.Page) (planner.ResultPage, error) {
	key := searchKey(text, filters, pg)
	var out planner.ResultPage
	if ok, _ := s.cache.Get(ctx, key, &out); ok {
		return out, nil
	}
	mode := "text"
	if strings.TrimSpace(text) == "" {
		mode = "filter_only"
	}
	start := time.Now()
	out, err := s.eng.Search(text, filters, pg)
	if err != nil {
		// Non-validation failures degrade to the last good page for this
		// query when one is still around, rather than failing the read.
		if engine.IsRetryable(err) {
			var stale planner.ResultPage
			if ok, _ := s.cache.Get(ctx, key+":stale", &stale); ok {
				return stale, nil
			}
		}
		return planner.ResultPage{}, err
	}
	observability.ObserveSearch(mode, time.Since(start))

	// size guard: very wide pages are cheaper to recompute than to cache
	if b, _ := json.Marshal(out); len(b) < 1_000_000 {
		_ = s.cache.Set(ctx, key, out, int(s.cacheTTL.Seconds()))
		_ = s.cache.Set(ctx, key+":stale", out, int((10 * s.cacheTTL).Seconds()))
	}
	return out, nil
}

func (s *QueryService) GetPlace(ctx context.Context, id int64) (domain.Place, error) {
	key := placeKey(id)
	var p domain.Place
	if ok, _ := s.cache.Get(ctx, key, &p); ok {
		return p, nil
	}
	p, err := s.eng.PlaceByID(id)
	if err != nil {
		return domain.Place{}, err
	}
	_ = s.cache.Set(ctx, key, p, int(s.cacheTTL.Seconds()))
	return p, nil
}

func (s *QueryService) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	return s.eng.ProductByID(id)
}

func (s *QueryService) PlacesForProduct(ctx context.Context, productID int64, includeUnavailable bool) ([]availability.PlaceAvailability, error) {
	key := placesForProductKey(productID, includeUnavailable)
	var out []availability.PlaceAvailability
	if ok, _ := s.cache.Get(ctx, key, &out); ok {
		return out, nil
	}
	out, err := s.eng.PlacesForProduct(productID, includeUnavailable)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, key, out, int(s.cacheTTL.Seconds()))
	return out, nil
}

func (s *QueryService) ProductsForPlace(ctx context.Context, placeID int64, includeUnavailable bool) ([]availability.ProductAvailability, error) {
	key := productsForPlaceKey(placeID, includeUnavailable)
	var out []availability.ProductAvailability
	if ok, _ := s.cache.Get(ctx, key, &out); ok {
		return out, nil
	}
	out, err := s.eng.ProductsForPlace(placeID, includeUnavailable)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, key, out, int(s.cacheTTL.Seconds()))
	return out, nil
}

func (s *QueryService) ReviewsForPlace(ctx context.Context, placeID int64) ([]domain.Review, error) {
	key := reviewsKey(placeID)
	var out []domain.Review
	if ok, _ := s.cache.Get(ctx, key, &out); ok {
		return out, nil
	}
	out, err := s.eng.ReviewsForPlace(placeID)
	if err != nil {
		return nil, err
	}
	// Copy before caching so callers can't mutate the cached slice.
	cp := make([]domain.Review, len(out))
	copy(cp, out)
	_ = s.cache.Set(ctx, key, cp, int(s.cacheTTL.Seconds()))
	return out, nil
}

func (s *QueryService) AnswersForQuestion(ctx context.Context, questionID int64) (domain.Question, []domain.Answer, error) {
	return s.eng.AnswersForQuestion(questionID)
}
