// Package termindex maps normalized search tokens to entity identifiers.
package termindex

import (
	"sort"
	"strings"
	"sync"
)

// Tokenize lower-cases the text, strips punctuation and splits on
// whitespace. No stemming: alias and locale names must match literally.
func Tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimFunc(f, isPunct)
		if f == "" {
			continue
		}
		out = append(out, f)
	}
	return out
}

func isPunct(r rune) bool {
	return strings.ContainsRune(".,!?()[]{}:;\"'`/\\-_&", r)
}

// TokenizeAll tokenizes several name variants into one deduplicated set.
func TokenizeAll(names ...string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, n := range names {
		for _, t := range Tokenize(n) {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// Match is a candidate with its raw token-overlap score. The overlap is an
// input to the planner's composite score, never a final order.
type Match struct {
	ID      int64
	Overlap int
}

// Index is an inverted token index. Re-indexing an entity is a full
// remove+reinsert so stale aliases never linger.
type Index struct {
	mu      sync.RWMutex
	byToken map[string]map[int64]struct{}
	byID    map[int64][]string
}

func New() *Index {
	return &Index{
		byToken: make(map[string]map[int64]struct{}),
		byID:    make(map[int64][]string),
	}
}

func (ix *Index) Put(id int64, tokens []string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(id)
	kept := make([]string, 0, len(tokens))
	for _, t := range tokens {
		ids, ok := ix.byToken[t]
		if !ok {
			ids = make(map[int64]struct{})
			ix.byToken[t] = ids
		}
		if _, dup := ids[id]; dup {
			continue
		}
		ids[id] = struct{}{}
		kept = append(kept, t)
	}
	ix.byID[id] = kept
}

func (ix *Index) Remove(id int64) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(id)
}

func (ix *Index) removeLocked(id int64) {
	for _, t := range ix.byID[id] {
		if ids := ix.byToken[t]; ids != nil {
			delete(ids, id)
			if len(ids) == 0 {
				delete(ix.byToken, t)
			}
		}
	}
	delete(ix.byID, id)
}

// Query returns every entity sharing at least one token with the query,
// ordered by overlap count descending, then id ascending.
func (ix *Index) Query(tokens []string) []Match {
	ix.mu.RLock()
	overlap := make(map[int64]int)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		for id := range ix.byToken[t] {
			overlap[id]++
		}
	}
	ix.mu.RUnlock()

	out := make([]Match, 0, len(overlap))
	for id, n := range overlap {
		out = append(out, Match{ID: id, Overlap: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Overlap != out[j].Overlap {
			return out[i].Overlap > out[j].Overlap
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.byID)
}
