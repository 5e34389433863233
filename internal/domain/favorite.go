package domain

import "time"

// Favorite bookmarks exactly one of a place or a product for a user.
type Favorite struct {
	ID        int64
	UserID    int64
	PlaceID   *int64
	ProductID *int64
	CreatedAt time.Time
}

// Validate enforces the place-xor-product rule.
func (f Favorite) Validate() error {
	if (f.PlaceID == nil) == (f.ProductID == nil) {
		return &ValidationError{Field: "target", Reason: "exactly one of place_id or product_id must be set"}
	}
	return nil
}

type VoteTarget string

const (
	VoteReview   VoteTarget = "review"
	VoteAnswer   VoteTarget = "answer"
	VoteQuestion VoteTarget = "question"
)

func (t VoteTarget) Valid() bool {
	switch t {
	case VoteReview, VoteAnswer, VoteQuestion:
		return true
	}
	return false
}

type VoteDirection int

const (
	VoteHelpful   VoteDirection = 1
	VoteUnhelpful VoteDirection = -1
)

// Vote is a helpful/unhelpful vote. At most one per (user, target);
// a repeated vote updates the previous one instead of stacking.
type Vote struct {
	UserID     int64
	TargetKind VoteTarget
	TargetID   int64
	Direction  VoteDirection
	CastAt     time.Time
}
