package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nugget/eventd-go/internal/event"
	"github.com/nugget/eventd-go/internal/subscription"
)

// Hub tracks every live session and implements dispatcher.Fanout: on
// each dispatched event it delivers to every subscribed session except
// the one currently dispatching that same event (spec.md §4.5's echo
// guard).
type Hub struct {
	mu       sync.RWMutex
	sessions map[*Session]struct{}
	subs     *subscription.Registry
	logger   *slog.Logger
}

// NewHub creates a Hub backed by subs for subscription lookups.
func NewHub(subs *subscription.Registry, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		sessions: make(map[*Session]struct{}),
		subs:     subs,
		logger:   logger,
	}
}

// Register adds sess to the live set.
func (h *Hub) Register(sess *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[sess] = struct{}{}
}

// Unregister removes sess from the live set.
func (h *Hub) Unregister(sess *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, sess)
}

// Dispatch implements dispatcher.Fanout: forwards ev to every session
// subscribed to ev.Category, skipping the session currently dispatching
// ev itself.
func (h *Hub) Dispatch(ctx context.Context, ev *event.Event) {
	if h.subs == nil {
		return
	}
	for _, recipient := range h.subs.Recipients(ev.Category) {
		sess, ok := recipient.(*Session)
		if !ok {
			continue
		}
		if sess.CurrentEvent() == ev {
			continue
		}
		if err := sess.SendEvent(ev); err != nil {
			h.logger.Warn("failed delivering event to subscriber", "session", sess.ID, "error", err)
		}
	}
}

// Subscriptions returns the subscription registry the hub fans out
// against, so callers accepting new connections can register each new
// session's subscribe state in the same registry.
func (h *Hub) Subscriptions() *subscription.Registry {
	return h.subs
}

// Count returns the number of live sessions, for diagnostics/dump
// output.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
