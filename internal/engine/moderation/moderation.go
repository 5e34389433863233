// Package moderation governs the review lifecycle:
//
//	submitted -> approved | rejected
//	approved  -> flagged -> approved | removed
//	any state -> removed (terminal)
//
// Rejection is only reachable from submitted; removed is terminal.
package moderation

import (
	"fmt"

	"food_discovery/internal/domain"
)

var allowed = map[domain.ReviewState]map[domain.ReviewState]bool{
	domain.ReviewSubmitted: {
		domain.ReviewApproved: true,
		domain.ReviewRejected: true,
		domain.ReviewRemoved:  true,
	},
	domain.ReviewApproved: {
		domain.ReviewFlagged: true,
		domain.ReviewRemoved: true,
	},
	domain.ReviewFlagged: {
		domain.ReviewApproved: true,
		domain.ReviewRemoved:  true,
	},
	domain.ReviewRejected: {
		domain.ReviewRemoved: true,
	},
	domain.ReviewRemoved: {},
}

func ValidState(s domain.ReviewState) bool {
	_, ok := allowed[s]
	return ok
}

// Transition validates from -> to and returns the new state.
func Transition(from, to domain.ReviewState) (domain.ReviewState, error) {
	if !ValidState(to) {
		return from, &domain.ValidationError{Field: "state", Reason: fmt.Sprintf("unknown state %q", to)}
	}
	if !allowed[from][to] {
		return from, &domain.StateConflictError{Reason: fmt.Sprintf("cannot transition review from %s to %s", from, to)}
	}
	return to, nil
}

// Counted reports whether a review in state s contributes to aggregates.
// Flagged reviews keep counting until explicitly resolved.
func Counted(s domain.ReviewState) bool {
	return s == domain.ReviewApproved || s == domain.ReviewFlagged
}

// EntersCounted and LeavesCounted identify the transitions that must
// trigger trust-aggregator work. Flagging alone changes nothing, and
// flagged -> approved restores a review that never stopped counting.
func EntersCounted(from, to domain.ReviewState) bool {
	return !Counted(from) && Counted(to)
}

func LeavesCounted(from, to domain.ReviewState) bool {
	return Counted(from) && !Counted(to)
}
