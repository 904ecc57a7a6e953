// Package flags implements the process-wide flag set described in
// spec.md §3/§4.2: an ordered set of interned string tokens, mutated
// exclusively inside the single-threaded dispatcher tick, consulted by
// the router's flag_allow_list/flag_deny_list predicates.
package flags

import "sync"

// Set is the process-wide active flag set. The zero Set is ready to
// use. Nil-safe like internal/events.Bus: calling any method on a nil
// *Set is a no-op / reports empty, so callers that haven't wired a flag
// store yet don't need guard checks.
type Set struct {
	mu     sync.RWMutex
	order  []string
	active map[string]struct{}
}

// New creates an empty flag set.
func New() *Set {
	return &Set{active: make(map[string]struct{})}
}

// Add activates flag f. Idempotent: adding an already-active flag does
// not change its position in iteration order.
func (s *Set) Add(f string) {
	if s == nil || f == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		s.active = make(map[string]struct{})
	}
	if _, ok := s.active[f]; ok {
		return
	}
	s.active[f] = struct{}{}
	s.order = append(s.order, f)
}

// Remove deactivates flag f. No-op if not active.
func (s *Set) Remove(f string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.active[f]; !ok {
		return
	}
	delete(s.active, f)
	for i, v := range s.order {
		if v == f {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Reset clears all active flags.
func (s *Set) Reset() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = make(map[string]struct{})
	s.order = nil
}

// Test reports whether flag f is currently active.
func (s *Set) Test(f string) bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.active[f]
	return ok
}

// List returns the active flags in insertion order. The returned slice
// is a copy safe for the caller to retain.
func (s *Set) List() []string {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// AllowedBy reports whether every flag in allow is currently active
// (spec.md §4.1: flag_allow_list is the universal "∀f ∈ allow, f ∈
// active" form, not a non-empty-intersection check).
func (s *Set) AllowedBy(allow []string) bool {
	for _, f := range allow {
		if !s.Test(f) {
			return false
		}
	}
	return true
}

// DeniedBy reports whether any flag in deny is currently active.
func (s *Set) DeniedBy(deny []string) bool {
	for _, f := range deny {
		if s.Test(f) {
			return true
		}
	}
	return false
}
