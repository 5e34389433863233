package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"food_discovery/internal/domain"
	"food_discovery/internal/engine/planner"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return New(zerolog.Nop())
}

func mustPlace(t *testing.T, e *Engine, p domain.Place) domain.Place {
	t.Helper()
	out, err := e.UpsertPlace(p)
	if err != nil {
		t.Fatalf("upsert place: %v", err)
	}
	return out
}

func mustProduct(t *testing.T, e *Engine, p domain.Product) domain.Product {
	t.Helper()
	out, err := e.UpsertProduct(p)
	if err != nil {
		t.Fatalf("upsert product: %v", err)
	}
	return out
}

func TestReviewLifecycle_EndToEnd(t *testing.T) {
	e := newTestEngine(t)
	place := mustPlace(t, e, domain.Place{Name: "Mama Africa Market", City: "Houston", Type: domain.PlaceGrocery})

	// Submit review (rating=5) on an empty place.
	r1, err := e.OnReviewSubmitted(domain.Review{UserID: 1, PlaceID: place.ID, Rating: 5, Text: "great"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if r1.State != domain.ReviewSubmitted {
		t.Fatalf("state = %s, want submitted", r1.State)
	}
	if got, _ := e.PlaceByID(place.ID); got.Rating != 0 || got.ReviewCount != 0 {
		t.Fatalf("submitted review already counted: %+v", got)
	}

	// Approve -> rating 5.0, count 1.
	if _, err := e.OnReviewModerated(r1.ID, domain.ReviewApproved); err != nil {
		t.Fatalf("approve: %v", err)
	}
	assertStats(t, e, place.ID, 5.0, 1)

	// Second review (rating=3), approve -> rating 4.0, count 2.
	r2, _ := e.OnReviewSubmitted(domain.Review{UserID: 2, PlaceID: place.ID, Rating: 3})
	if _, err := e.OnReviewModerated(r2.ID, domain.ReviewApproved); err != nil {
		t.Fatalf("approve second: %v", err)
	}
	assertStats(t, e, place.ID, 4.0, 2)

	// Flag the first review -> counts unchanged.
	if _, err := e.OnReviewModerated(r1.ID, domain.ReviewFlagged); err != nil {
		t.Fatalf("flag: %v", err)
	}
	assertStats(t, e, place.ID, 4.0, 2)

	// Flagged review may be restored -> still unchanged.
	if _, err := e.OnReviewModerated(r1.ID, domain.ReviewApproved); err != nil {
		t.Fatalf("restore: %v", err)
	}
	assertStats(t, e, place.ID, 4.0, 2)

	// approved -> rejected is an illegal transition.
	if _, err := e.OnReviewModerated(r1.ID, domain.ReviewRejected); !errors.Is(err, domain.ErrStateConflict) {
		t.Fatalf("approved->rejected err = %v, want state conflict", err)
	}

	// Remove the first review -> recompute yields rating 3.0, count 1.
	if _, err := e.OnReviewModerated(r1.ID, domain.ReviewRemoved); err != nil {
		t.Fatalf("remove: %v", err)
	}
	assertStats(t, e, place.ID, 3.0, 1)
}

func assertStats(t *testing.T, e *Engine, placeID int64, rating float64, count int) {
	t.Helper()
	p, err := e.PlaceByID(placeID)
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if p.Rating != rating || p.ReviewCount != count {
		t.Fatalf("stats = (%.2f, %d), want (%.2f, %d)", p.Rating, p.ReviewCount, rating, count)
	}
}

func TestFavorite_XorAndIdempotence(t *testing.T) {
	e := newTestEngine(t)
	place := mustPlace(t, e, domain.Place{Name: "Lagos Kitchen"})
	product := mustProduct(t, e, domain.Product{Name: "Gari"})

	// Both targets set -> validation error.
	_, err := e.SetFavorite(domain.Favorite{UserID: 1, PlaceID: &place.ID, ProductID: &product.ID})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("both targets: err = %v, want validation", err)
	}
	// Neither target set -> validation error.
	if _, err := e.SetFavorite(domain.Favorite{UserID: 1}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("no target: err = %v, want validation", err)
	}

	first, err := e.SetFavorite(domain.Favorite{UserID: 1, PlaceID: &place.ID})
	if err != nil {
		t.Fatalf("favorite: %v", err)
	}
	second, err := e.SetFavorite(domain.Favorite{UserID: 1, PlaceID: &place.ID})
	if err != nil {
		t.Fatalf("refavorite: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("duplicate favorite created: %d != %d", first.ID, second.ID)
	}
}

func TestVote_UnknownTargetAndIdempotence(t *testing.T) {
	e := newTestEngine(t)
	place := mustPlace(t, e, domain.Place{Name: "Accra Grocery"})
	r, _ := e.OnReviewSubmitted(domain.Review{UserID: 1, PlaceID: place.ID, Rating: 4})
	if _, err := e.OnReviewModerated(r.ID, domain.ReviewApproved); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if err := e.OnVote(domain.Vote{UserID: 2, TargetKind: domain.VoteReview, TargetID: 999, Direction: domain.VoteHelpful}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing target err = %v, want not found", err)
	}

	for i := 0; i < 3; i++ {
		if err := e.OnVote(domain.Vote{UserID: 2, TargetKind: domain.VoteReview, TargetID: r.ID, Direction: domain.VoteHelpful}); err != nil {
			t.Fatalf("vote: %v", err)
		}
	}
	reviews, err := e.ReviewsForPlace(place.ID)
	if err != nil {
		t.Fatalf("reviews: %v", err)
	}
	if len(reviews) != 1 || reviews[0].HelpfulCount != 1 {
		t.Fatalf("reviews = %+v, want one review with one helpful vote", reviews)
	}
}

func TestAnswer_AuthoritativeFromVerifiedOwner(t *testing.T) {
	e := newTestEngine(t)
	owner := int64(42)
	place := mustPlace(t, e, domain.Place{Name: "Lagos Kitchen", OwnerVerified: true, OwnerUserID: &owner})

	q, err := e.OnQuestionAsked(domain.Question{UserID: 1, PlaceID: &place.ID, Text: "Do you carry fresh egusi?"})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}

	a1, _ := e.OnAnswerCreated(domain.Answer{QuestionID: q.ID, UserID: 7, Text: "I think so"})
	a2, _ := e.OnAnswerCreated(domain.Answer{QuestionID: q.ID, UserID: owner, Text: "Yes, every weekend"})
	if a1.Authoritative {
		t.Fatal("non-owner answer marked authoritative")
	}
	if !a2.Authoritative {
		t.Fatal("verified owner answer not marked authoritative")
	}

	gotQ, answers, err := e.AnswersForQuestion(q.ID)
	if err != nil {
		t.Fatalf("answers: %v", err)
	}
	if gotQ.AnswerCount != 2 || !gotQ.Answered {
		t.Fatalf("question counters = %+v", gotQ)
	}
	if answers[0].ID != a2.ID {
		t.Fatalf("authoritative answer not ranked first: %+v", answers)
	}
}

func TestInventoryLink_UniquePerPair(t *testing.T) {
	e := newTestEngine(t)
	place := mustPlace(t, e, domain.Place{Name: "Mama Africa Market"})
	product := mustProduct(t, e, domain.Product{Name: "Egusi"})

	l1, err := e.OnInventoryUpserted(domain.InventoryLink{PlaceID: place.ID, ProductID: product.ID, CommonlyAvailable: true})
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	l2, err := e.OnInventoryUpserted(domain.InventoryLink{PlaceID: place.ID, ProductID: product.ID, CommonlyAvailable: false})
	if err != nil {
		t.Fatalf("relink: %v", err)
	}
	if l1.ID != l2.ID {
		t.Fatalf("duplicate link created: %d != %d", l1.ID, l2.ID)
	}
	if l2.CommonlyAvailable {
		t.Fatal("re-submission did not update the existing link")
	}
}

func TestDeletePlace_HidesFromSearchAndJoins(t *testing.T) {
	e := newTestEngine(t)
	place := mustPlace(t, e, domain.Place{Name: "Accra Grocery", City: "Dallas", Type: domain.PlaceGrocery})
	product := mustProduct(t, e, domain.Product{Name: "Fufu"})
	if _, err := e.OnInventoryUpserted(domain.InventoryLink{PlaceID: place.ID, ProductID: product.ID, CommonlyAvailable: true}); err != nil {
		t.Fatalf("link: %v", err)
	}

	if err := e.DeletePlace(place.ID, time.Now()); err != nil {
		t.Fatalf("delete: %v", err)
	}

	page, err := e.Search("accra", nil, planner.Page{Limit: 10})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for _, r := range page.Results {
		if r.Kind == "place" && r.ID == place.ID {
			t.Fatal("tombstoned place surfaced in search")
		}
	}

	got, err := e.PlacesForProduct(product.ID, false)
	if err != nil {
		t.Fatalf("placesForProduct: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("tombstoned place surfaced in availability join: %+v", got)
	}

	if _, err := e.PlaceByID(place.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("PlaceByID err = %v, want not found", err)
	}
}

func TestRecordPlaceView_Monotonic(t *testing.T) {
	e := newTestEngine(t)
	place := mustPlace(t, e, domain.Place{Name: "Lagos Kitchen"})
	for want := int64(1); want <= 3; want++ {
		got, err := e.RecordPlaceView(place.ID)
		if err != nil {
			t.Fatalf("view: %v", err)
		}
		if got != want {
			t.Fatalf("view count = %d, want %d", got, want)
		}
	}
	if _, err := e.RecordPlaceView(999); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown place err = %v, want not found", err)
	}
}

func TestRespondToReview_OwnerOnly(t *testing.T) {
	e := newTestEngine(t)
	owner := int64(9)
	place := mustPlace(t, e, domain.Place{Name: "Mama Africa Market", OwnerUserID: &owner})
	r, _ := e.OnReviewSubmitted(domain.Review{UserID: 1, PlaceID: place.ID, Rating: 4})
	if _, err := e.OnReviewModerated(r.ID, domain.ReviewApproved); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if _, err := e.RespondToReview(r.ID, 1234, "thanks"); !errors.Is(err, domain.ErrStateConflict) {
		t.Fatalf("non-owner err = %v, want state conflict", err)
	}
	got, err := e.RespondToReview(r.ID, owner, "thanks for visiting")
	if err != nil {
		t.Fatalf("owner response: %v", err)
	}
	if got.OwnerResponse == nil || got.OwnerResponse.Text != "thanks for visiting" {
		t.Fatalf("owner response not stored: %+v", got.OwnerResponse)
	}
}
