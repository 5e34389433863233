package engine

import (
	"sort"
	"sync"
	"time"

	"food_discovery/internal/domain"
)

type pairKey struct{ place, product int64 }

type favKey struct {
	user  int64
	place int64 // 0 when the favorite targets a product
	prod  int64 // 0 when the favorite targets a place
}

// store is the engine's in-memory entity catalog. It implements the read
// surfaces the planner, resolver and trust aggregator are built against.
// Durability lives behind domain.Repository; the store is warm-loaded from
// it at startup.
type store struct {
	mu sync.RWMutex

	places   map[int64]domain.Place
	products map[int64]domain.Product

	links          map[int64]domain.InventoryLink
	linkByPair     map[pairKey]int64
	linksByPlace   map[int64][]int64
	linksByProduct map[int64][]int64

	reviews           map[int64]domain.Review
	questions         map[int64]domain.Question
	answers           map[int64]domain.Answer
	answersByQuestion map[int64][]int64

	favorites map[favKey]domain.Favorite

	nextPlace, nextProduct, nextLink   int64
	nextReview, nextQuestion           int64
	nextAnswer, nextFavorite           int64
}

func newStore() *store {
	return &store{
		places:            make(map[int64]domain.Place),
		products:          make(map[int64]domain.Product),
		links:             make(map[int64]domain.InventoryLink),
		linkByPair:        make(map[pairKey]int64),
		linksByPlace:      make(map[int64][]int64),
		linksByProduct:    make(map[int64][]int64),
		reviews:           make(map[int64]domain.Review),
		questions:         make(map[int64]domain.Question),
		answers:           make(map[int64]domain.Answer),
		answersByQuestion: make(map[int64][]int64),
		favorites:         make(map[favKey]domain.Favorite),
	}
}

func nextID(seq *int64, given int64) int64 {
	if given > *seq {
		*seq = given
	}
	if given != 0 {
		return given
	}
	*seq++
	return *seq
}

// ---- writes ----

func (s *store) putPlace(p domain.Place) domain.Place {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = nextID(&s.nextPlace, p.ID)
	s.places[p.ID] = p
	return p
}

func (s *store) putProduct(p domain.Product) domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = nextID(&s.nextProduct, p.ID)
	s.products[p.ID] = p
	return p
}

// putLink enforces the one-link-per-(place,product) invariant: an existing
// pair is updated in place instead of duplicated.
func (s *store) putLink(l domain.InventoryLink) domain.InventoryLink {
	s.mu.Lock()
	defer s.mu.Unlock()

	pk := pairKey{place: l.PlaceID, product: l.ProductID}
	if existing, ok := s.linkByPair[pk]; ok {
		l.ID = existing
		l.CreatedAt = s.links[existing].CreatedAt
		s.links[existing] = l
		return l
	}
	l.ID = nextID(&s.nextLink, l.ID)
	s.links[l.ID] = l
	s.linkByPair[pk] = l.ID
	s.linksByPlace[l.PlaceID] = append(s.linksByPlace[l.PlaceID], l.ID)
	s.linksByProduct[l.ProductID] = append(s.linksByProduct[l.ProductID], l.ID)
	return l
}

func (s *store) putReview(r domain.Review) domain.Review {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = nextID(&s.nextReview, r.ID)
	s.reviews[r.ID] = r
	return r
}

func (s *store) putQuestion(q domain.Question) domain.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	q.ID = nextID(&s.nextQuestion, q.ID)
	s.questions[q.ID] = q
	return q
}

func (s *store) putAnswer(a domain.Answer) domain.Answer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.answers[a.ID]; !exists {
		a.ID = nextID(&s.nextAnswer, a.ID)
		s.answersByQuestion[a.QuestionID] = append(s.answersByQuestion[a.QuestionID], a.ID)
	}
	s.answers[a.ID] = a
	return a
}

func (s *store) putFavorite(f domain.Favorite) (domain.Favorite, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := favKey{user: f.UserID}
	if f.PlaceID != nil {
		k.place = *f.PlaceID
	}
	if f.ProductID != nil {
		k.prod = *f.ProductID
	}
	if existing, ok := s.favorites[k]; ok {
		return existing, false
	}
	f.ID = nextID(&s.nextFavorite, f.ID)
	s.favorites[k] = f
	return f, true
}

// ---- reads ----

func (s *store) Place(id int64) (domain.Place, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.places[id]
	return p, ok
}

func (s *store) Product(id int64) (domain.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	return p, ok
}

func (s *store) Review(id int64) (domain.Review, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reviews[id]
	return r, ok
}

func (s *store) Question(id int64) (domain.Question, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[id]
	return q, ok
}

func (s *store) Answer(id int64) (domain.Answer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.answers[id]
	return a, ok
}

func (s *store) LiveProductIDs() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []int64
	for id, p := range s.products {
		if !p.Deleted() {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *store) LinksForProduct(productID int64) []domain.InventoryLink {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.InventoryLink, 0, len(s.linksByProduct[productID]))
	for _, id := range s.linksByProduct[productID] {
		out = append(out, s.links[id])
	}
	return out
}

func (s *store) LinksForPlace(placeID int64) []domain.InventoryLink {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.InventoryLink, 0, len(s.linksByPlace[placeID]))
	for _, id := range s.linksByPlace[placeID] {
		out = append(out, s.links[id])
	}
	return out
}

// LastVerified is the freshest inventory verification touching the entity.
func (s *store) LastVerified(kind string, id int64) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []int64
	if kind == "place" {
		ids = s.linksByPlace[id]
	} else {
		ids = s.linksByProduct[id]
	}
	var best time.Time
	found := false
	for _, lid := range ids {
		if at := s.links[lid].LastVerifiedAt; !found || at.After(best) {
			best = at
			found = true
		}
	}
	return best, found
}

// CountedReviews feeds the trust aggregator's full recompute path.
func (s *store) CountedReviews(placeID int64) []domain.Review {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Review
	for _, r := range s.reviews {
		if r.PlaceID == placeID && r.CountsTowardRating() {
			out = append(out, r)
		}
	}
	return out
}

func (s *store) answersFor(questionID int64) []domain.Answer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Answer, 0, len(s.answersByQuestion[questionID]))
	for _, id := range s.answersByQuestion[questionID] {
		out = append(out, s.answers[id])
	}
	return out
}

// mutate applies f to the review under the write lock and returns the result.
func (s *store) mutateReview(id int64, f func(*domain.Review)) (domain.Review, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[id]
	if !ok {
		return domain.Review{}, false
	}
	f(&r)
	s.reviews[id] = r
	return r, true
}

func (s *store) mutatePlace(id int64, f func(*domain.Place)) (domain.Place, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.places[id]
	if !ok {
		return domain.Place{}, false
	}
	f(&p)
	s.places[id] = p
	return p, true
}

func (s *store) mutateProduct(id int64, f func(*domain.Product)) (domain.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return domain.Product{}, false
	}
	f(&p)
	s.products[id] = p
	return p, true
}
