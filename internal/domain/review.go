package domain

import "time"

// ReviewState is the moderation lifecycle stage of a review. Only approved,
// non-deleted reviews contribute to derived aggregates.
type ReviewState string

const (
	ReviewSubmitted ReviewState = "submitted"
	ReviewApproved  ReviewState = "approved"
	ReviewRejected  ReviewState = "rejected"
	ReviewFlagged   ReviewState = "flagged"
	ReviewRemoved   ReviewState = "removed"
)

type ReviewKind string

const (
	ReviewGeneral      ReviewKind = "general"
	ReviewAvailability ReviewKind = "availability"
	ReviewFreshness    ReviewKind = "freshness"
	ReviewService      ReviewKind = "service"
	ReviewPricing      ReviewKind = "pricing"
)

func (k ReviewKind) Valid() bool {
	switch k {
	case ReviewGeneral, ReviewAvailability, ReviewFreshness, ReviewService, ReviewPricing:
		return true
	}
	return false
}

type OwnerResponse struct {
	Text        string
	RespondedAt time.Time
}

type Review struct {
	ID        int64
	UserID    int64
	PlaceID   int64
	ProductID *int64

	Rating int // 1..5
	Text   string
	Kind   ReviewKind
	State  ReviewState

	// Derived vote tallies. Owned by the trust aggregator.
	HelpfulCount   int
	UnhelpfulCount int

	OwnerResponse *OwnerResponse

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

func (r Review) Deleted() bool { return r.DeletedAt != nil }

// CountsTowardRating reports whether the review contributes to the place
// rating. Flagged reviews only arrive from approved and keep counting until
// resolved to removed.
func (r Review) CountsTowardRating() bool {
	return (r.State == ReviewApproved || r.State == ReviewFlagged) && !r.Deleted()
}
