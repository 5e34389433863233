package domain

import (
	"context"
	"time"
)

// Repository is the persistence collaborator. The engine only needs atomic
// per-entity writes and full-table reads to warm its indices at startup.
type Repository interface {
	// Write paths
	UpsertPlace(ctx context.Context, p Place) error
	UpsertProduct(ctx context.Context, p Product) error
	UpsertInventoryLink(ctx context.Context, l InventoryLink) error
	UpsertReview(ctx context.Context, r Review) error
	UpsertQuestion(ctx context.Context, q Question) error
	UpsertAnswer(ctx context.Context, a Answer) error
	UpsertVote(ctx context.Context, v Vote) error
	UpsertFavorite(ctx context.Context, f Favorite) error
	// Soft deletes: the row stays, listings stop returning it.
	TombstonePlace(ctx context.Context, placeID int64, at time.Time) error
	TombstoneProduct(ctx context.Context, productID int64, at time.Time) error
	// Derived aggregates persisted after the trust aggregator updates them.
	SavePlaceAggregates(ctx context.Context, placeID int64, rating float64, reviewCount int, viewCount int64) error
	SaveQuestionAggregates(ctx context.Context, questionID int64, answerCount int, answered bool) error

	// Read paths (startup warm load)
	ListPlaces(ctx context.Context) ([]Place, error)
	ListProducts(ctx context.Context) ([]Product, error)
	ListInventoryLinks(ctx context.Context) ([]InventoryLink, error)
	ListReviews(ctx context.Context) ([]Review, error)
	ListQuestions(ctx context.Context) ([]Question, error)
	ListAnswers(ctx context.Context) ([]Answer, error)
	ListVotes(ctx context.Context) ([]Vote, error)
	ListFavorites(ctx context.Context) ([]Favorite, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}
