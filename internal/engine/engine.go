// Package engine is the discovery/ranking/trust core: it resolves text +
// filter queries into ranked product and place results, keeps derived trust
// signals consistent as user content arrives, and answers the
// product<->place availability joins. It exposes in-process operations
// only; transports and persistence live in the adapters around it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"food_discovery/internal/domain"
	"food_discovery/internal/engine/availability"
	"food_discovery/internal/engine/geoindex"
	"food_discovery/internal/engine/moderation"
	"food_discovery/internal/engine/planner"
	"food_discovery/internal/engine/termindex"
	"food_discovery/internal/engine/trust"
)

type Engine struct {
	log zerolog.Logger

	store        *store
	productTerms *termindex.Index
	placeTerms   *termindex.Index
	geo          *geoindex.Index
	trust        *trust.Aggregator
	resolver     *availability.Resolver
	planner      *planner.Planner
}

// ratingsAdapter narrows the aggregator to the single method the read-side
// components need.
type ratingsAdapter struct{ agg *trust.Aggregator }

func (r ratingsAdapter) PlaceRating(placeID int64) float64 {
	return r.agg.PlaceStats(placeID).Rating
}

func New(log zerolog.Logger) *Engine {
	st := newStore()
	agg := trust.New(st)
	productTerms := termindex.New()
	placeTerms := termindex.New()
	geo := geoindex.New()
	ratings := ratingsAdapter{agg: agg}

	return &Engine{
		log:          log,
		store:        st,
		productTerms: productTerms,
		placeTerms:   placeTerms,
		geo:          geo,
		trust:        agg,
		resolver:     availability.New(st, ratings),
		planner:      planner.New(productTerms, placeTerms, geo, st, ratings),
	}
}

// Load warms the engine from the persistence collaborator. Derived
// counters are seeded from their persisted values; votes are replayed so
// the idempotence map knows who already voted.
func (e *Engine) Load(ctx context.Context, repo domain.Repository) error {
	places, err := repo.ListPlaces(ctx)
	if err != nil {
		return fmt.Errorf("load places: %w", err)
	}
	for _, p := range places {
		e.indexPlace(e.store.putPlace(p))
		e.trust.SeedPlace(p.ID, p.Rating, p.ReviewCount)
	}

	products, err := repo.ListProducts(ctx)
	if err != nil {
		return fmt.Errorf("load products: %w", err)
	}
	for _, p := range products {
		e.indexProduct(e.store.putProduct(p))
	}

	links, err := repo.ListInventoryLinks(ctx)
	if err != nil {
		return fmt.Errorf("load inventory: %w", err)
	}
	for _, l := range links {
		e.store.putLink(l)
	}

	reviews, err := repo.ListReviews(ctx)
	if err != nil {
		return fmt.Errorf("load reviews: %w", err)
	}
	for _, r := range reviews {
		e.store.putReview(r)
	}

	questions, err := repo.ListQuestions(ctx)
	if err != nil {
		return fmt.Errorf("load questions: %w", err)
	}
	for _, q := range questions {
		e.store.putQuestion(q)
		e.trust.SeedQuestion(q.ID, q.AnswerCount, q.Answered)
	}

	answers, err := repo.ListAnswers(ctx)
	if err != nil {
		return fmt.Errorf("load answers: %w", err)
	}
	for _, a := range answers {
		e.store.putAnswer(a)
	}

	votes, err := repo.ListVotes(ctx)
	if err != nil {
		return fmt.Errorf("load votes: %w", err)
	}
	for _, v := range votes {
		e.trust.CastVote(v)
	}

	favorites, err := repo.ListFavorites(ctx)
	if err != nil {
		return fmt.Errorf("load favorites: %w", err)
	}
	for _, f := range favorites {
		e.store.putFavorite(f)
	}

	e.log.Info().
		Int("places", len(places)).
		Int("products", len(products)).
		Int("inventory_links", len(links)).
		Int("reviews", len(reviews)).
		Msg("engine warm load complete")
	return nil
}

// ---- catalog ingestion ----

func (e *Engine) UpsertPlace(p domain.Place) (domain.Place, error) {
	if p.Name == "" {
		return domain.Place{}, &domain.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if p.Type != "" && !p.Type.Valid() {
		return domain.Place{}, &domain.ValidationError{Field: "type", Reason: "unknown place type"}
	}
	stats := e.trust.PlaceStats(p.ID)
	p.Rating, p.ReviewCount = stats.Rating, stats.ReviewCount
	p = e.store.putPlace(p)
	e.indexPlace(p)
	return p, nil
}

// DeletePlace tombstones a place: it disappears from every filter and
// search result but the row survives while references exist.
func (e *Engine) DeletePlace(id int64, at time.Time) error {
	p, ok := e.store.mutatePlace(id, func(p *domain.Place) {
		if p.DeletedAt == nil {
			p.DeletedAt = &at
		}
	})
	if !ok {
		return &domain.NotFoundError{Kind: "place", ID: id}
	}
	e.placeTerms.Remove(p.ID)
	e.geo.Upsert(p.ID, geoindex.FacetsOf(p))
	e.trust.DropPlace(p.ID)
	return nil
}

func (e *Engine) UpsertProduct(p domain.Product) (domain.Product, error) {
	if p.Name == "" {
		return domain.Product{}, &domain.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	p = e.store.putProduct(p)
	e.indexProduct(p)
	return p, nil
}

func (e *Engine) DeleteProduct(id int64, at time.Time) error {
	p, ok := e.store.mutateProduct(id, func(p *domain.Product) {
		if p.DeletedAt == nil {
			p.DeletedAt = &at
		}
	})
	if !ok {
		return &domain.NotFoundError{Kind: "product", ID: id}
	}
	e.productTerms.Remove(p.ID)
	return nil
}

// indexPlace re-indexes a place's searchable names and facets. The term
// index entry is a full remove+reinsert inside Put.
func (e *Engine) indexPlace(p domain.Place) {
	if p.Deleted() {
		e.placeTerms.Remove(p.ID)
	} else {
		e.placeTerms.Put(p.ID, termindex.TokenizeAll(p.Name, p.City, p.Specialization))
	}
	e.geo.Upsert(p.ID, geoindex.FacetsOf(p))
}

func (e *Engine) indexProduct(p domain.Product) {
	if p.Deleted() {
		e.productTerms.Remove(p.ID)
		return
	}
	e.productTerms.Put(p.ID, termindex.TokenizeAll(p.SearchNames()...))
}

// OnInventoryUpserted records that a place commonly carries a product.
// One link per (place, product): re-submission updates the existing link.
func (e *Engine) OnInventoryUpserted(l domain.InventoryLink) (domain.InventoryLink, error) {
	pl, ok := e.store.Place(l.PlaceID)
	if !ok || pl.Deleted() {
		return domain.InventoryLink{}, &domain.NotFoundError{Kind: "place", ID: l.PlaceID}
	}
	pr, ok := e.store.Product(l.ProductID)
	if !ok || pr.Deleted() {
		return domain.InventoryLink{}, &domain.NotFoundError{Kind: "product", ID: l.ProductID}
	}
	if l.LastVerifiedAt.IsZero() {
		l.LastVerifiedAt = time.Now().UTC()
	}
	return e.store.putLink(l), nil
}

// ---- review lifecycle ----

func (e *Engine) OnReviewSubmitted(r domain.Review) (domain.Review, error) {
	if r.Rating < 1 || r.Rating > 5 {
		return domain.Review{}, &domain.ValidationError{Field: "rating", Reason: "must be between 1 and 5"}
	}
	if r.Kind == "" {
		r.Kind = domain.ReviewGeneral
	}
	if !r.Kind.Valid() {
		return domain.Review{}, &domain.ValidationError{Field: "kind", Reason: "unknown review kind"}
	}
	p, ok := e.store.Place(r.PlaceID)
	if !ok || p.Deleted() {
		return domain.Review{}, &domain.NotFoundError{Kind: "place", ID: r.PlaceID}
	}
	if r.ProductID != nil {
		pr, ok := e.store.Product(*r.ProductID)
		if !ok || pr.Deleted() {
			return domain.Review{}, &domain.NotFoundError{Kind: "product", ID: *r.ProductID}
		}
	}
	r.State = domain.ReviewSubmitted
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	return e.store.putReview(r), nil
}

// OnReviewModerated drives the moderation state machine and triggers the
// aggregate work the transition requires. A consistency error from the
// recompute is logged, not surfaced: the aggregate has already been rebuilt
// from whatever reconciled.
func (e *Engine) OnReviewModerated(reviewID int64, to domain.ReviewState) (domain.Review, error) {
	cur, ok := e.store.Review(reviewID)
	if !ok || cur.Deleted() {
		return domain.Review{}, &domain.NotFoundError{Kind: "review", ID: reviewID}
	}
	next, err := moderation.Transition(cur.State, to)
	if err != nil {
		return domain.Review{}, err
	}

	now := time.Now().UTC()
	updated, _ := e.store.mutateReview(reviewID, func(r *domain.Review) {
		r.State = next
		r.UpdatedAt = now
		if next == domain.ReviewRemoved && r.DeletedAt == nil {
			r.DeletedAt = &now
		}
	})

	switch {
	case moderation.EntersCounted(cur.State, next):
		e.trust.ReviewCounted(cur.PlaceID, cur.Rating)
	case moderation.LeavesCounted(cur.State, next):
		if rerr := e.trust.ReviewRetired(cur.PlaceID); rerr != nil {
			e.log.Error().Err(rerr).Int64("place_id", cur.PlaceID).Msg("rating rebuilt with skipped rows")
		}
	}
	return updated, nil
}

// OnReviewEdited changes a review's rating/text. Editing the rating of a
// counted review forces a full recompute; the incremental path is only
// trusted for additions.
func (e *Engine) OnReviewEdited(reviewID int64, rating int, text string) (domain.Review, error) {
	if rating < 1 || rating > 5 {
		return domain.Review{}, &domain.ValidationError{Field: "rating", Reason: "must be between 1 and 5"}
	}
	cur, ok := e.store.Review(reviewID)
	if !ok || cur.Deleted() {
		return domain.Review{}, &domain.NotFoundError{Kind: "review", ID: reviewID}
	}
	ratingChanged := cur.Rating != rating
	updated, _ := e.store.mutateReview(reviewID, func(r *domain.Review) {
		r.Rating = rating
		r.Text = text
		r.UpdatedAt = time.Now().UTC()
	})
	if ratingChanged && updated.CountsTowardRating() {
		if rerr := e.trust.ReviewEdited(cur.PlaceID); rerr != nil {
			e.log.Error().Err(rerr).Int64("place_id", cur.PlaceID).Msg("rating rebuilt with skipped rows")
		}
	}
	return updated, nil
}

// RespondToReview attaches the place owner's response to an approved review.
func (e *Engine) RespondToReview(reviewID, ownerUserID int64, text string) (domain.Review, error) {
	cur, ok := e.store.Review(reviewID)
	if !ok || cur.Deleted() {
		return domain.Review{}, &domain.NotFoundError{Kind: "review", ID: reviewID}
	}
	p, ok := e.store.Place(cur.PlaceID)
	if !ok {
		return domain.Review{}, &domain.NotFoundError{Kind: "place", ID: cur.PlaceID}
	}
	if p.OwnerUserID == nil || *p.OwnerUserID != ownerUserID {
		return domain.Review{}, &domain.StateConflictError{Reason: "only the place owner may respond to a review"}
	}
	if !cur.CountsTowardRating() {
		return domain.Review{}, &domain.StateConflictError{Reason: "review is not publicly visible"}
	}
	updated, _ := e.store.mutateReview(reviewID, func(r *domain.Review) {
		r.OwnerResponse = &domain.OwnerResponse{Text: text, RespondedAt: time.Now().UTC()}
	})
	return updated, nil
}

// ---- Q&A ----

func (e *Engine) OnQuestionAsked(q domain.Question) (domain.Question, error) {
	if q.PlaceID == nil && q.ProductID == nil {
		return domain.Question{}, &domain.ValidationError{Field: "target", Reason: "question needs a place or a product"}
	}
	if q.PlaceID != nil {
		p, ok := e.store.Place(*q.PlaceID)
		if !ok || p.Deleted() {
			return domain.Question{}, &domain.NotFoundError{Kind: "place", ID: *q.PlaceID}
		}
	}
	if q.ProductID != nil {
		p, ok := e.store.Product(*q.ProductID)
		if !ok || p.Deleted() {
			return domain.Question{}, &domain.NotFoundError{Kind: "product", ID: *q.ProductID}
		}
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}
	return e.store.putQuestion(q), nil
}

// OnAnswerCreated stores the answer and bumps the question's counters. The
// answer is authoritative when the answering user is the verified owner of
// the question's place.
func (e *Engine) OnAnswerCreated(a domain.Answer) (domain.Answer, error) {
	q, ok := e.store.Question(a.QuestionID)
	if !ok {
		return domain.Answer{}, &domain.NotFoundError{Kind: "question", ID: a.QuestionID}
	}
	if a.Text == "" {
		return domain.Answer{}, &domain.ValidationError{Field: "text", Reason: "must not be empty"}
	}
	if q.PlaceID != nil {
		if p, ok := e.store.Place(*q.PlaceID); ok && p.OwnerVerified && p.OwnerUserID != nil && *p.OwnerUserID == a.UserID {
			a.Authoritative = true
		}
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a = e.store.putAnswer(a)
	e.trust.AnswerCreated(a.QuestionID)
	return a, nil
}

// ---- votes & favorites ----

func (e *Engine) OnVote(v domain.Vote) error {
	if !v.TargetKind.Valid() {
		return &domain.ValidationError{Field: "target_kind", Reason: "must be review, answer or question"}
	}
	if v.Direction != domain.VoteHelpful && v.Direction != domain.VoteUnhelpful {
		return &domain.ValidationError{Field: "direction", Reason: "must be helpful or unhelpful"}
	}
	var found bool
	switch v.TargetKind {
	case domain.VoteReview:
		var r domain.Review
		r, found = e.store.Review(v.TargetID)
		found = found && !r.Deleted()
	case domain.VoteAnswer:
		_, found = e.store.Answer(v.TargetID)
	case domain.VoteQuestion:
		_, found = e.store.Question(v.TargetID)
	}
	if !found {
		return &domain.NotFoundError{Kind: string(v.TargetKind), ID: v.TargetID}
	}
	e.trust.CastVote(v)
	return nil
}

// SetFavorite bookmarks a place xor a product. Re-favoriting the same
// target is idempotent and returns the existing row.
func (e *Engine) SetFavorite(f domain.Favorite) (domain.Favorite, error) {
	if err := f.Validate(); err != nil {
		return domain.Favorite{}, err
	}
	if f.PlaceID != nil {
		p, ok := e.store.Place(*f.PlaceID)
		if !ok || p.Deleted() {
			return domain.Favorite{}, &domain.NotFoundError{Kind: "place", ID: *f.PlaceID}
		}
	}
	if f.ProductID != nil {
		p, ok := e.store.Product(*f.ProductID)
		if !ok || p.Deleted() {
			return domain.Favorite{}, &domain.NotFoundError{Kind: "product", ID: *f.ProductID}
		}
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	existing, _ := e.store.putFavorite(f)
	return existing, nil
}

// RecordPlaceView bumps the monotonic view counter.
func (e *Engine) RecordPlaceView(placeID int64) (int64, error) {
	if p, ok := e.store.Place(placeID); !ok || p.Deleted() {
		return 0, &domain.NotFoundError{Kind: "place", ID: placeID}
	}
	p, _ := e.store.mutatePlace(placeID, func(p *domain.Place) {
		p.ViewCount++
	})
	return p.ViewCount, nil
}

// ---- queries ----

func (e *Engine) Search(text string, filters map[string]string, pg planner.Page) (planner.ResultPage, error) {
	return e.planner.Search(text, filters, pg)
}

func (e *Engine) PlacesForProduct(productID int64, includeUnavailable bool) ([]availability.PlaceAvailability, error) {
	out, err := e.resolver.PlacesForProduct(productID, includeUnavailable)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Place = e.withDerived(out[i].Place)
	}
	return out, nil
}

func (e *Engine) ProductsForPlace(placeID int64, includeUnavailable bool) ([]availability.ProductAvailability, error) {
	return e.resolver.ProductsForPlace(placeID, includeUnavailable)
}

// PlaceByID returns the place with its derived counters filled in.
func (e *Engine) PlaceByID(id int64) (domain.Place, error) {
	p, ok := e.store.Place(id)
	if !ok || p.Deleted() {
		return domain.Place{}, &domain.NotFoundError{Kind: "place", ID: id}
	}
	return e.withDerived(p), nil
}

func (e *Engine) ReviewByID(id int64) (domain.Review, error) {
	r, ok := e.store.Review(id)
	if !ok || r.Deleted() {
		return domain.Review{}, &domain.NotFoundError{Kind: "review", ID: id}
	}
	t := e.trust.VoteTally(domain.VoteReview, id)
	r.HelpfulCount, r.UnhelpfulCount = t.Helpful, t.Unhelpful
	return r, nil
}

func (e *Engine) ProductByID(id int64) (domain.Product, error) {
	p, ok := e.store.Product(id)
	if !ok || p.Deleted() {
		return domain.Product{}, &domain.NotFoundError{Kind: "product", ID: id}
	}
	return p, nil
}

func (e *Engine) withDerived(p domain.Place) domain.Place {
	stats := e.trust.PlaceStats(p.ID)
	p.Rating = trust.RoundRating(stats.Rating)
	p.ReviewCount = stats.ReviewCount
	return p
}

// ReviewsForPlace lists the publicly visible reviews, most helpful first.
func (e *Engine) ReviewsForPlace(placeID int64) ([]domain.Review, error) {
	if p, ok := e.store.Place(placeID); !ok || p.Deleted() {
		return nil, &domain.NotFoundError{Kind: "place", ID: placeID}
	}
	out := e.store.CountedReviews(placeID)
	for i := range out {
		t := e.trust.VoteTally(domain.VoteReview, out[i].ID)
		out[i].HelpfulCount, out[i].UnhelpfulCount = t.Helpful, t.Unhelpful
	}
	sort.SliceStable(out, func(i, j int) bool {
		ni := out[i].HelpfulCount - out[i].UnhelpfulCount
		nj := out[j].HelpfulCount - out[j].UnhelpfulCount
		if ni != nj {
			return ni > nj
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// AnswersForQuestion returns the ranked answers plus the question with its
// derived counters.
func (e *Engine) AnswersForQuestion(questionID int64) (domain.Question, []domain.Answer, error) {
	q, ok := e.store.Question(questionID)
	if !ok {
		return domain.Question{}, nil, &domain.NotFoundError{Kind: "question", ID: questionID}
	}
	stats := e.trust.QuestionStats(questionID)
	q.AnswerCount, q.Answered = stats.AnswerCount, stats.Answered
	t := e.trust.VoteTally(domain.VoteQuestion, questionID)
	q.HelpfulCount = t.Helpful
	return q, e.trust.RankAnswers(e.store.answersFor(questionID)), nil
}

// IsRetryable reports whether a query-path failure should degrade to
// best-effort stale results instead of failing the request. Validation and
// not-found errors are the caller's problem; everything else is transient.
func IsRetryable(err error) bool {
	return err != nil &&
		!errors.Is(err, domain.ErrValidation) &&
		!errors.Is(err, domain.ErrNotFound) &&
		!errors.Is(err, domain.ErrStateConflict)
}
