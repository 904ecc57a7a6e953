// Package subscription implements the subscription registry described
// in spec.md §3/§4.5: an "all-categories" list plus a per-category
// mapping. An index map records which lists each session joined,
// standing in for the GList back-pointers spec.md §9 describes;
// unlinking still scans each of those lists.
package subscription

import (
	"strings"
	"sync"
)

// Session is the minimal identity subscription needs from a server
// session: a stable comparable key. The session package's *Session
// satisfies this via pointer identity.
type Session any

// Registry tracks which sessions are subscribed to which categories.
type Registry struct {
	mu sync.RWMutex

	all      []Session
	allIndex map[Session]int

	byCategory      map[string][]Session
	byCategoryIndex map[Session]map[string]int
}

// New creates an empty subscription registry.
func New() *Registry {
	return &Registry{
		allIndex:        make(map[Session]int),
		byCategory:      make(map[string][]Session),
		byCategoryIndex: make(map[Session]map[string]int),
	}
}

// SubscribeAll adds sess to the all-categories list (spec.md §4.5:
// "Subscribe with cats empty -> prepend session to subscribe_all").
func (r *Registry) SubscribeAll(sess Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.allIndex[sess]; ok {
		return
	}
	r.all = append([]Session{sess}, r.all...)
	r.reindexAll()
}

// Subscribe adds sess to each listed category's list.
func (r *Registry) Subscribe(sess Session, categories []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.byCategoryIndex[sess]
	if idx == nil {
		idx = make(map[string]int)
		r.byCategoryIndex[sess] = idx
	}
	for _, cat := range categories {
		if _, already := idx[cat]; already {
			continue
		}
		r.byCategory[cat] = append(r.byCategory[cat], sess)
		idx[cat] = len(r.byCategory[cat]) - 1
	}
}

// Unsubscribe removes sess from every list it belongs to (all-
// categories and every per-category list), called on session
// disconnect. The index map limits the work to the lists sess joined;
// each removal scans and re-indexes that list, so it is linear in the
// list's length.
func (r *Registry) Unsubscribe(sess Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.allIndex[sess]; ok {
		r.all = removeAt(r.all, r.allIndex[sess])
		delete(r.allIndex, sess)
		r.reindexAll()
	}

	if idx, ok := r.byCategoryIndex[sess]; ok {
		for cat := range idx {
			list := r.byCategory[cat]
			pos := indexOf(list, sess)
			if pos >= 0 {
				r.byCategory[cat] = removeAt(list, pos)
				r.reindexCategory(cat)
			}
		}
		delete(r.byCategoryIndex, sess)
	}
}

// isInternalCategory reports whether category is one of the daemon's
// own "."-prefixed lifecycle categories (e.g. ".notification"), which
// a plain SUBSCRIBE (no category list) never delivers, per original
// eventd's evp.c and DESIGN.md's Open Questions.
func isInternalCategory(category string) bool {
	return strings.HasPrefix(category, ".")
}

// Recipients returns every session that should receive an event in the
// given category: anyone specifically subscribed to category, plus —
// unless category is internal — the all-categories subscribers. A
// session subscribed to both is returned once.
func (r *Registry) Recipients(category string) []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[Session]struct{}, len(r.all))
	out := make([]Session, 0, len(r.all))
	if !isInternalCategory(category) {
		for _, s := range r.all {
			if _, ok := seen[s]; !ok {
				seen[s] = struct{}{}
				out = append(out, s)
			}
		}
	}
	for _, s := range r.byCategory[category] {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

func (r *Registry) reindexAll() {
	for i, s := range r.all {
		r.allIndex[s] = i
	}
}

func (r *Registry) reindexCategory(cat string) {
	for i, s := range r.byCategory[cat] {
		idx := r.byCategoryIndex[s]
		if idx == nil {
			idx = make(map[string]int)
			r.byCategoryIndex[s] = idx
		}
		idx[cat] = i
	}
}

func indexOf(list []Session, s Session) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

func removeAt(list []Session, i int) []Session {
	return append(list[:i], list[i+1:]...)
}
