// Package trust maintains the derived counters of the platform: place
// rating and review count, question answer counts, and helpful/unhelpful
// vote tallies. It is the single writer of these values.
package trust

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"food_discovery/internal/domain"
)

// ReviewSource supplies the authoritative counted review set for a place:
// approved or flagged, without a deletion tombstone. It backs the full
// recompute path.
type ReviewSource interface {
	CountedReviews(placeID int64) []domain.Review
}

// PlaceStats is an immutable snapshot of a place's derived rating state.
// Readers always see a rating and count produced by the same update.
type PlaceStats struct {
	Rating      float64
	ReviewCount int
}

type QuestionStats struct {
	AnswerCount int
	Answered    bool
}

type voteKey struct {
	kind   domain.VoteTarget
	target int64
	user   int64
}

type targetKey struct {
	kind domain.VoteTarget
	id   int64
}

// Tally is a helpful/unhelpful counter pair for one vote target.
type Tally struct {
	Helpful   int
	Unhelpful int
}

func (t Tally) Net() int { return t.Helpful - t.Unhelpful }

type Aggregator struct {
	src ReviewSource

	lmu   sync.Mutex
	locks map[int64]*sync.Mutex // per-place writer serialization

	pmu    sync.RWMutex
	places map[int64]*PlaceStats

	qmu       sync.Mutex
	questions map[int64]*QuestionStats

	vmu     sync.Mutex
	votes   map[voteKey]domain.VoteDirection
	tallies map[targetKey]*Tally
}

func New(src ReviewSource) *Aggregator {
	return &Aggregator{
		src:       src,
		locks:     make(map[int64]*sync.Mutex),
		places:    make(map[int64]*PlaceStats),
		questions: make(map[int64]*QuestionStats),
		votes:     make(map[voteKey]domain.VoteDirection),
		tallies:   make(map[targetKey]*Tally),
	}
}

// lockFor serializes concurrent events targeting the same place. Events for
// different places proceed in parallel.
func (a *Aggregator) lockFor(placeID int64) *sync.Mutex {
	a.lmu.Lock()
	defer a.lmu.Unlock()
	m, ok := a.locks[placeID]
	if !ok {
		m = &sync.Mutex{}
		a.locks[placeID] = m
	}
	return m
}

// ReviewCounted applies a review entering the counted set as an incremental
// running-mean update: rating' = rating + (new - rating) / count'.
func (a *Aggregator) ReviewCounted(placeID int64, rating int) {
	mu := a.lockFor(placeID)
	mu.Lock()
	defer mu.Unlock()

	cur := a.PlaceStats(placeID)
	next := &PlaceStats{ReviewCount: cur.ReviewCount + 1}
	next.Rating = cur.Rating + (float64(rating)-cur.Rating)/float64(next.ReviewCount)
	a.swapPlace(placeID, next)
}

// ReviewRetired handles a review leaving the counted set (removal or
// rejection of a counted review). Incremental removal is not trusted;
// the stats are always rebuilt from source.
func (a *Aggregator) ReviewRetired(placeID int64) error {
	return a.Recompute(placeID)
}

// ReviewEdited handles a rating edit on a counted review.
func (a *Aggregator) ReviewEdited(placeID int64) error {
	return a.Recompute(placeID)
}

// Recompute rebuilds a place's stats from the authoritative counted set.
// The new stats are built aside and swapped in whole, so a concurrent
// reader never observes a partially accumulated aggregate. Source rows
// that cannot be reconciled are skipped and reported as a consistency
// error after the rebuilt value is already in place.
func (a *Aggregator) Recompute(placeID int64) error {
	mu := a.lockFor(placeID)
	mu.Lock()
	defer mu.Unlock()

	rows := a.src.CountedReviews(placeID)
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })

	next := &PlaceStats{}
	var bad int
	for _, r := range rows {
		if r.PlaceID != placeID || r.Rating < 1 || r.Rating > 5 {
			bad++
			continue
		}
		next.ReviewCount++
		next.Rating += (float64(r.Rating) - next.Rating) / float64(next.ReviewCount)
	}
	a.swapPlace(placeID, next)

	if bad > 0 {
		return &domain.ConsistencyError{
			Aggregate: "place rating",
			ID:        placeID,
			Reason:    fmt.Sprintf("%d source reviews skipped", bad),
		}
	}
	return nil
}

func (a *Aggregator) swapPlace(placeID int64, s *PlaceStats) {
	a.pmu.Lock()
	a.places[placeID] = s
	a.pmu.Unlock()
}

// PlaceStats returns the current snapshot; zero stats for unknown places.
func (a *Aggregator) PlaceStats(placeID int64) PlaceStats {
	a.pmu.RLock()
	s := a.places[placeID]
	a.pmu.RUnlock()
	if s == nil {
		return PlaceStats{}
	}
	return *s
}

// SeedPlace installs persisted stats at warm load, before events flow.
func (a *Aggregator) SeedPlace(placeID int64, rating float64, reviewCount int) {
	a.swapPlace(placeID, &PlaceStats{Rating: rating, ReviewCount: reviewCount})
}

// DropPlace forgets a tombstoned place's stats.
func (a *Aggregator) DropPlace(placeID int64) {
	a.pmu.Lock()
	delete(a.places, placeID)
	a.pmu.Unlock()
}

// RoundRating renders a rating at the two-decimal precision places carry.
func RoundRating(r float64) float64 {
	return math.Round(r*100) / 100
}

// AnswerCreated bumps the parent question's counters.
func (a *Aggregator) AnswerCreated(questionID int64) {
	a.qmu.Lock()
	defer a.qmu.Unlock()
	q, ok := a.questions[questionID]
	if !ok {
		q = &QuestionStats{}
		a.questions[questionID] = q
	}
	q.AnswerCount++
	q.Answered = true
}

func (a *Aggregator) QuestionStats(questionID int64) QuestionStats {
	a.qmu.Lock()
	defer a.qmu.Unlock()
	if q, ok := a.questions[questionID]; ok {
		return *q
	}
	return QuestionStats{}
}

func (a *Aggregator) SeedQuestion(questionID int64, answerCount int, answered bool) {
	a.qmu.Lock()
	a.questions[questionID] = &QuestionStats{AnswerCount: answerCount, Answered: answered}
	a.qmu.Unlock()
}

// CastVote records a helpful/unhelpful vote. One vote per (user, target):
// repeating the same vote is a no-op, a changed direction moves the one
// vote between counters. Returns whether the tally changed.
func (a *Aggregator) CastVote(v domain.Vote) bool {
	vk := voteKey{kind: v.TargetKind, target: v.TargetID, user: v.UserID}
	tk := targetKey{kind: v.TargetKind, id: v.TargetID}

	a.vmu.Lock()
	defer a.vmu.Unlock()

	t, ok := a.tallies[tk]
	if !ok {
		t = &Tally{}
		a.tallies[tk] = t
	}
	prev, voted := a.votes[vk]
	if voted && prev == v.Direction {
		return false
	}
	if voted {
		if prev == domain.VoteHelpful {
			t.Helpful--
		} else {
			t.Unhelpful--
		}
	}
	if v.Direction == domain.VoteHelpful {
		t.Helpful++
	} else {
		t.Unhelpful++
	}
	a.votes[vk] = v.Direction
	return true
}

func (a *Aggregator) VoteTally(kind domain.VoteTarget, id int64) Tally {
	a.vmu.Lock()
	defer a.vmu.Unlock()
	if t, ok := a.tallies[targetKey{kind: kind, id: id}]; ok {
		return *t
	}
	return Tally{}
}

// RankAnswers orders answers for display: authoritative first, then net
// helpfulness descending, then oldest first. The input is not mutated.
func (a *Aggregator) RankAnswers(answers []domain.Answer) []domain.Answer {
	out := make([]domain.Answer, len(answers))
	copy(out, answers)
	for i := range out {
		t := a.VoteTally(domain.VoteAnswer, out[i].ID)
		out[i].HelpfulCount = t.Helpful
		out[i].UnhelpfulCount = t.Unhelpful
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Authoritative != out[j].Authoritative {
			return out[i].Authoritative
		}
		ni, nj := out[i].HelpfulCount-out[i].UnhelpfulCount, out[j].HelpfulCount-out[j].UnhelpfulCount
		if ni != nj {
			return ni > nj
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
