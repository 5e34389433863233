package domain

import "time"

// Question belongs to a place and/or a product.
type Question struct {
	ID        int64
	UserID    int64
	PlaceID   *int64
	ProductID *int64

	Text     string
	Category string

	// Derived fields. Owned by the trust aggregator.
	AnswerCount  int
	Answered     bool
	HelpfulCount int

	CreatedAt time.Time
	UpdatedAt time.Time
}

type Answer struct {
	ID         int64
	QuestionID int64
	UserID     int64
	Text       string

	// Authoritative marks an answer from the verified owner of the
	// question's place. Ranked first regardless of votes.
	Authoritative bool

	// Derived vote tallies. Owned by the trust aggregator.
	HelpfulCount   int
	UnhelpfulCount int

	CreatedAt time.Time
}
