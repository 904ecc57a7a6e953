// Package router implements event routing: parsing EventMatch entries,
// linking their action references, and selecting the best-matching
// action list for an inbound event against the current flag set.
// Adapted from the teacher's model-routing Router (scoring shape kept:
// evaluate candidates in order; no trace of what matched is recorded), but
// the decision rule itself is spec.md §4.1's importance-sorted,
// predicate-gated match rather than LLM cost/quality scoring.
package router

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/nugget/eventd-go/internal/action"
	"github.com/nugget/eventd-go/internal/event"
	"github.com/nugget/eventd-go/internal/flags"
	"github.com/nugget/eventd-go/internal/value"
)

// Op is a comparison operator used by DataMatch predicates.
type Op int

const (
	OpEQ Op = iota
	OpNE
	OpLT
	OpLE
	OpGT
	OpGE
)

// accepted returns the set of Compare() results that satisfy op.
func (op Op) accepted(result int) bool {
	switch op {
	case OpEQ:
		return result == 0
	case OpNE:
		return result == -1 || result == 1
	case OpLT:
		return result == -1
	case OpLE:
		return result == -1 || result == 0
	case OpGT:
		return result == 1
	case OpGE:
		return result == 0 || result == 1
	default:
		return false
	}
}

// DataMatch is one if_data_matches predicate: compare event.Data[Name]
// (optionally indexed by Key for map-valued data) against Literal using
// Op.
type DataMatch struct {
	Name    string
	Key     string // optional; "" means compare the top-level value
	HasKey  bool
	Op      Op
	Literal value.Value
}

// DataRegex is one if_data_regexes predicate.
type DataRegex struct {
	Name  string
	Regex *regexp.Regexp
}

// MaxImportance is the default importance for predicate-less matches,
// per spec.md §3 ("default INT64_MAX for matches with no predicates").
const MaxImportance = int64(1<<63 - 1)

// EventMatch is one routing rule: a predicate set plus an ordered
// action list and an importance used to break ties among matches on
// the same (category, name) or category key.
type EventMatch struct {
	Importance int64
	ActionIDs  []string
	Actions    []*action.Action // resolved by Link

	IfDataKeys    []string
	IfDataMatches []DataMatch
	IfDataRegexes []DataRegex

	FlagAllowList []string
	FlagDenyList  []string

	// sequence preserves insertion order for stable sort ties.
	sequence int
}

// hasPredicates reports whether m carries any predicate at all, used
// to pick the default importance at parse time (spec.md §3).
func (m *EventMatch) hasPredicates() bool {
	return len(m.IfDataKeys) > 0 || len(m.IfDataMatches) > 0 || len(m.IfDataRegexes) > 0 ||
		len(m.FlagAllowList) > 0 || len(m.FlagDenyList) > 0
}

// matches reports whether ev satisfies every predicate of m given the
// current flag set, per spec.md §4.1.
func (m *EventMatch) matches(ev *event.Event, fs *flags.Set) bool {
	for _, key := range m.IfDataKeys {
		if _, ok := ev.Data[key]; !ok {
			return false
		}
	}

	for _, dm := range m.IfDataMatches {
		v, ok := ev.Data[dm.Name]
		if !ok {
			continue // absent data name: predicate skipped (true)
		}
		if dm.HasKey {
			sub, ok := v.Lookup(dm.Key)
			if !ok {
				return false
			}
			v = sub
		}
		result, ok := value.Compare(v, dm.Literal)
		if !ok {
			return false // type mismatch
		}
		if !dm.Op.accepted(result) {
			return false
		}
	}

	for _, dr := range m.IfDataRegexes {
		v, ok := ev.Data[dr.Name]
		if !ok {
			continue // absent: skip (true)
		}
		if v.Kind != value.KindString {
			return false
		}
		if !dr.Regex.MatchString(v.Str) {
			return false
		}
	}

	if !fs.AllowedBy(m.FlagAllowList) {
		return false
	}
	if fs.DeniedBy(m.FlagDenyList) {
		return false
	}

	return true
}

// Router holds the parsed EventMatch entries, keyed as spec.md §3
// describes: "<category> <name>" and "<category>".
type Router struct {
	logger *slog.Logger

	mu      sync.RWMutex
	byKey   map[string][]*EventMatch
	nextSeq int
}

// New creates an empty Router.
func New(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		logger: logger,
		byKey:  make(map[string][]*EventMatch),
	}
}

func categoryNameKey(category, name string) string { return category + " " + name }

// AddMatch parses an already-decoded EventMatch header into its index
// keys and stores m. pattern is one of "<category>", "<category>
// <name>", or "<category> *" (equivalent to category-only), per
// spec.md §4.1. AddMatch returns an error if pattern is malformed (a
// standalone "*" that isn't the name position) — the caller logs and
// drops the entry, matching spec.md §7's Configuration error kind.
func (r *Router) AddMatch(pattern string, m *EventMatch) error {
	category, name, err := parsePattern(pattern)
	if err != nil {
		return err
	}

	if m.Importance == 0 && !m.hasPredicates() {
		m.Importance = MaxImportance
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	m.sequence = r.nextSeq
	r.nextSeq++

	if name != "" {
		key := categoryNameKey(category, name)
		r.byKey[key] = insertSorted(r.byKey[key], m)
	} else {
		r.byKey[category] = insertSorted(r.byKey[category], m)
	}
	return nil
}

func parsePattern(pattern string) (category, name string, err error) {
	fields := strings.Fields(pattern)
	switch len(fields) {
	case 1:
		if fields[0] == "*" {
			return "", "", fmt.Errorf("router: malformed pattern %q: bare * is not a valid category", pattern)
		}
		return fields[0], "", nil
	case 2:
		if fields[0] == "*" {
			return "", "", fmt.Errorf("router: malformed pattern %q: * is not a valid category", pattern)
		}
		if fields[1] == "*" {
			return fields[0], "", nil
		}
		return fields[0], fields[1], nil
	default:
		return "", "", fmt.Errorf("router: malformed pattern %q", pattern)
	}
}

// insertSorted inserts m into matches keeping ascending-importance
// order with stable ties (insertion order preserved), per spec.md
// §4.1.
func insertSorted(matches []*EventMatch, m *EventMatch) []*EventMatch {
	matches = append(matches, m)
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Importance != matches[j].Importance {
			return matches[i].Importance < matches[j].Importance
		}
		return matches[i].sequence < matches[j].sequence
	})
	return matches
}

// Link resolves every EventMatch's ActionIDs against reg, dropping
// unresolved references with a warning (spec.md §4.1's parser contract
// mirrors action.Registry.Link's).
func (r *Router) Link(reg *action.Registry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, matches := range r.byKey {
		for _, m := range matches {
			m.Actions = m.Actions[:0]
			for _, id := range m.ActionIDs {
				a, ok := reg.Get(id)
				if !ok {
					r.logger.Warn("dropping unresolved action reference in event match",
						"key", key, "action", id)
					continue
				}
				m.Actions = append(m.Actions, a)
			}
		}
	}
}

// Match implements spec.md §4.1's two-step lookup: try "<category>
// <name>" first (first full match in importance order wins), then
// fall back to "<category>" alone. Returns (nil, false) if nothing
// matches.
func (r *Router) Match(ev *event.Event, fs *flags.Set) ([]*action.Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if matches, ok := r.byKey[categoryNameKey(ev.Category, ev.Name)]; ok {
		if a, ok := firstMatch(matches, ev, fs); ok {
			return a, true
		}
	}
	if matches, ok := r.byKey[ev.Category]; ok {
		if a, ok := firstMatch(matches, ev, fs); ok {
			return a, true
		}
	}
	return nil, false
}

func firstMatch(matches []*EventMatch, ev *event.Event, fs *flags.Set) ([]*action.Action, bool) {
	for _, m := range matches {
		if m.matches(ev, fs) {
			return m.Actions, true
		}
	}
	return nil, false
}

// Dump returns a human-readable description of every EventMatch
// registered for key (either "<category>" or "<category> <name>"),
// used by the control channel's "dump event" command (spec.md §4.8,
// shape specified in SPEC_FULL.md's supplemented features).
func (r *Router) Dump(key string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var lines []string
	for _, m := range r.byKey[key] {
		ids := make([]string, len(m.ActionIDs))
		copy(ids, m.ActionIDs)
		lines = append(lines, fmt.Sprintf("importance=%d actions=[%s]", m.Importance, strings.Join(ids, ",")))
	}
	return lines
}
