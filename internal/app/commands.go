package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"food_discovery/internal/adapters/observability"
	"food_discovery/internal/domain"
	"food_discovery/internal/engine"
)

// CommandService is the ingestion surface: every event goes through the
// engine first (validation + derived-counter maintenance), then to the
// repository, then invalidates the read caches it touched. Errors are
// surfaced synchronously; a rejected event is the caller's to handle,
// never silently dropped.
type CommandService struct {
	eng   *engine.Engine
	repo  domain.Repository
	cache domain.Cache
	log   zerolog.Logger
}

func NewCommandService(eng *engine.Engine, repo domain.Repository, cache domain.Cache, log zerolog.Logger) *CommandService {
	return &CommandService{eng: eng, repo: repo, cache: cache, log: log}
}

func (s *CommandService) UpsertPlace(ctx context.Context, p domain.Place) (domain.Place, error) {
	out, err := s.eng.UpsertPlace(p)
	if err != nil {
		return domain.Place{}, err
	}
	if err := s.repo.UpsertPlace(ctx, out); err != nil {
		return domain.Place{}, fmt.Errorf("persist place %d: %w", out.ID, err)
	}
	s.invalidatePlace(ctx, out.ID)
	return out, nil
}

func (s *CommandService) UpsertProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	out, err := s.eng.UpsertProduct(p)
	if err != nil {
		return domain.Product{}, err
	}
	if err := s.repo.UpsertProduct(ctx, out); err != nil {
		return domain.Product{}, fmt.Errorf("persist product %d: %w", out.ID, err)
	}
	return out, nil
}

func (s *CommandService) SubmitReview(ctx context.Context, r domain.Review) (domain.Review, error) {
	out, err := s.eng.OnReviewSubmitted(r)
	observeEvent("review_submitted", err)
	if err != nil {
		return domain.Review{}, err
	}
	if err := s.repo.UpsertReview(ctx, out); err != nil {
		return domain.Review{}, fmt.Errorf("persist review %d: %w", out.ID, err)
	}
	return out, nil
}

func (s *CommandService) ModerateReview(ctx context.Context, reviewID int64, to domain.ReviewState) (domain.Review, error) {
	out, err := s.eng.OnReviewModerated(reviewID, to)
	observeEvent("review_moderated", err)
	if err != nil {
		return domain.Review{}, err
	}
	if err := s.repo.UpsertReview(ctx, out); err != nil {
		return domain.Review{}, fmt.Errorf("persist review %d: %w", out.ID, err)
	}
	s.persistPlaceAggregates(ctx, out.PlaceID)
	s.invalidatePlace(ctx, out.PlaceID)
	return out, nil
}

func (s *CommandService) EditReview(ctx context.Context, reviewID int64, rating int, text string) (domain.Review, error) {
	out, err := s.eng.OnReviewEdited(reviewID, rating, text)
	observeEvent("review_edited", err)
	if err != nil {
		return domain.Review{}, err
	}
	if err := s.repo.UpsertReview(ctx, out); err != nil {
		return domain.Review{}, fmt.Errorf("persist review %d: %w", out.ID, err)
	}
	s.persistPlaceAggregates(ctx, out.PlaceID)
	s.invalidatePlace(ctx, out.PlaceID)
	return out, nil
}

func (s *CommandService) RespondToReview(ctx context.Context, reviewID, ownerUserID int64, text string) (domain.Review, error) {
	out, err := s.eng.RespondToReview(reviewID, ownerUserID, text)
	if err != nil {
		return domain.Review{}, err
	}
	if err := s.repo.UpsertReview(ctx, out); err != nil {
		return domain.Review{}, fmt.Errorf("persist review %d: %w", out.ID, err)
	}
	s.invalidatePlace(ctx, out.PlaceID)
	return out, nil
}

func (s *CommandService) UpsertInventory(ctx context.Context, l domain.InventoryLink) (domain.InventoryLink, error) {
	out, err := s.eng.OnInventoryUpserted(l)
	observeEvent("inventory_upserted", err)
	if err != nil {
		return domain.InventoryLink{}, err
	}
	if err := s.repo.UpsertInventoryLink(ctx, out); err != nil {
		return domain.InventoryLink{}, fmt.Errorf("persist inventory link %d: %w", out.ID, err)
	}
	s.invalidateAvailability(ctx, out.PlaceID, out.ProductID)
	return out, nil
}

func (s *CommandService) AskQuestion(ctx context.Context, q domain.Question) (domain.Question, error) {
	out, err := s.eng.OnQuestionAsked(q)
	if err != nil {
		return domain.Question{}, err
	}
	if err := s.repo.UpsertQuestion(ctx, out); err != nil {
		return domain.Question{}, fmt.Errorf("persist question %d: %w", out.ID, err)
	}
	return out, nil
}

func (s *CommandService) CreateAnswer(ctx context.Context, a domain.Answer) (domain.Answer, error) {
	out, err := s.eng.OnAnswerCreated(a)
	observeEvent("answer_created", err)
	if err != nil {
		return domain.Answer{}, err
	}
	if err := s.repo.UpsertAnswer(ctx, out); err != nil {
		return domain.Answer{}, fmt.Errorf("persist answer %d: %w", out.ID, err)
	}
	if q, _, qerr := s.eng.AnswersForQuestion(out.QuestionID); qerr == nil {
		if err := s.repo.SaveQuestionAggregates(ctx, q.ID, q.AnswerCount, q.Answered); err != nil {
			s.log.Error().Err(err).Int64("question_id", q.ID).Msg("persist question aggregates failed")
		}
	}
	return out, nil
}

func (s *CommandService) Vote(ctx context.Context, v domain.Vote) error {
	err := s.eng.OnVote(v)
	observeEvent("vote_cast", err)
	if err != nil {
		return err
	}
	if err := s.repo.UpsertVote(ctx, v); err != nil {
		return fmt.Errorf("persist vote: %w", err)
	}
	if v.TargetKind == domain.VoteReview {
		if r, ok := s.reviewPlace(v.TargetID); ok {
			_ = s.cache.Del(ctx, reviewsKey(r))
		}
	}
	return nil
}

func (s *CommandService) reviewPlace(reviewID int64) (int64, bool) {
	// Votes only need the owning place for cache invalidation.
	if s.cache == nil {
		return 0, false
	}
	r, err := s.eng.ReviewByID(reviewID)
	if err != nil {
		return 0, false
	}
	return r.PlaceID, true
}

func (s *CommandService) DeletePlace(ctx context.Context, placeID int64) error {
	at := time.Now().UTC()
	if err := s.eng.DeletePlace(placeID, at); err != nil {
		return err
	}
	if err := s.repo.TombstonePlace(ctx, placeID, at); err != nil {
		return fmt.Errorf("tombstone place %d: %w", placeID, err)
	}
	s.invalidatePlace(ctx, placeID)
	return nil
}

func (s *CommandService) DeleteProduct(ctx context.Context, productID int64) error {
	at := time.Now().UTC()
	if err := s.eng.DeleteProduct(productID, at); err != nil {
		return err
	}
	if err := s.repo.TombstoneProduct(ctx, productID, at); err != nil {
		return fmt.Errorf("tombstone product %d: %w", productID, err)
	}
	return nil
}

func (s *CommandService) SetFavorite(ctx context.Context, f domain.Favorite) (domain.Favorite, error) {
	out, err := s.eng.SetFavorite(f)
	if err != nil {
		return domain.Favorite{}, err
	}
	if err := s.repo.UpsertFavorite(ctx, out); err != nil {
		return domain.Favorite{}, fmt.Errorf("persist favorite %d: %w", out.ID, err)
	}
	return out, nil
}

func (s *CommandService) RecordPlaceView(ctx context.Context, placeID int64) (int64, error) {
	views, err := s.eng.RecordPlaceView(placeID)
	if err != nil {
		return 0, err
	}
	s.persistPlaceAggregates(ctx, placeID)
	return views, nil
}

// persistPlaceAggregates writes the trust aggregator's current values
// through to storage. A write failure must not fail the event: the
// in-memory aggregate stays authoritative and the row converges on the
// next event, but the failure is never swallowed silently.
func (s *CommandService) persistPlaceAggregates(ctx context.Context, placeID int64) {
	p, err := s.eng.PlaceByID(placeID)
	if err != nil {
		return // tombstoned while the event was in flight
	}
	if err := s.repo.SavePlaceAggregates(ctx, p.ID, p.Rating, p.ReviewCount, p.ViewCount); err != nil {
		s.log.Error().Err(err).Int64("place_id", placeID).Msg("persist place aggregates failed")
	}
}

func (s *CommandService) invalidatePlace(ctx context.Context, placeID int64) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, placeKey(placeID))
	_ = s.cache.Del(ctx, reviewsKey(placeID))
}

func (s *CommandService) invalidateAvailability(ctx context.Context, placeID, productID int64) {
	if s.cache == nil {
		return
	}
	for _, flag := range []bool{false, true} {
		_ = s.cache.Del(ctx, placesForProductKey(productID, flag))
		_ = s.cache.Del(ctx, productsForPlaceKey(placeID, flag))
	}
}

// observeEvent records the engine outcome for the event counter. The label
// set is closed over the error taxonomy so cardinality stays bounded.
func observeEvent(event string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrValidation):
		outcome = "validation"
	case errors.Is(err, domain.ErrStateConflict):
		outcome = "conflict"
	case errors.Is(err, domain.ErrNotFound):
		outcome = "not_found"
	case errors.Is(err, domain.ErrConsistency):
		outcome = "consistency"
	default:
		outcome = "error"
	}
	observability.ObserveEngineEvent(event, outcome)
}
