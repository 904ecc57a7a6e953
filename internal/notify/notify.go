// Package notify implements the notification compositor described in
// spec.md §4.7: per-queue wait/in-flight lists, layout computation, and
// the CREATE/update/dismiss lifecycle mirrored through synthetic
// internal events. Grounded on internal/scheduler.Scheduler's ordered,
// capacity-bounded work queue (wait list promoted into an active set as
// capacity frees up) reshaped to spec.md's wait_list/in_flight_list
// naming and its "more" marker.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nugget/eventd-go/internal/backend"
	"github.com/nugget/eventd-go/internal/dispatcher"
	"github.com/nugget/eventd-go/internal/event"
	"github.com/nugget/eventd-go/internal/value"
)

// Target names a dismiss_target scope, per spec.md §4.7.
type Target int

const (
	TargetNone Target = iota
	TargetAll
	TargetOldest
	TargetNewest
)

// moreIndicatorText is the literal text rendered for the synthetic
// "more N" marker notification, per SPEC_FULL.md's supplemented
// feature sourced from the original nd.c plugin.
func moreIndicatorText(n int) string { return fmt.Sprintf("+%d", n) }

// Notification is one active (or queued) bubble. A nil Event marks the
// synthetic "more" indicator.
type Notification struct {
	ID    uuid.UUID
	Event *event.Event
	Style *Style
	Queue *Queue

	surface backend.Surface
	layout  backend.Layout
	timer   *time.Timer

	compositor *Compositor
}

// Queue is one NotificationQueue: a capacity-bounded in-flight list fed
// from an unbounded wait list.
type Queue struct {
	Name          string
	Limit         int
	Anchor        Anchor
	Reverse       bool
	MoreIndicator bool

	mu           sync.Mutex
	waitList     []*Notification
	inFlightList []*Notification
	moreMarker   *Notification
}

// Compositor owns every queue and drives the backend on their behalf.
type Compositor struct {
	backend    backend.Backend
	dispatcher *dispatcher.Dispatcher
	display    Display
	logger     *slog.Logger

	mu      sync.Mutex
	queues  map[string]*Queue
	byUUID  map[uuid.UUID]*Notification
}

// New creates a Compositor. be may be backend.Null{} for headless
// configurations.
func New(be backend.Backend, disp *dispatcher.Dispatcher, display Display, logger *slog.Logger) *Compositor {
	if logger == nil {
		logger = slog.Default()
	}
	if be == nil {
		be = backend.Null{}
	}
	return &Compositor{
		backend:    be,
		dispatcher: disp,
		display:    display,
		logger:     logger,
		queues:     make(map[string]*Queue),
		byUUID:     make(map[uuid.UUID]*Notification),
	}
}

// Queue returns the named queue, creating it with the given parameters
// on first use.
func (c *Compositor) Queue(name string, limit int, anchor Anchor, reverse, moreIndicator bool) *Queue {
	c.mu.Lock()
	defer c.mu.Unlock()
	if q, ok := c.queues[name]; ok {
		return q
	}
	q := &Queue{Name: name, Limit: limit, Anchor: anchor, Reverse: reverse, MoreIndicator: moreIndicator}
	c.queues[name] = q
	return q
}

// New implements spec.md §4.7's new(context, event, style): enqueues at
// the tail of q's wait_list, computes layout, requests a backend
// surface, and refreshes q's list.
func (c *Compositor) New(ctx context.Context, q *Queue, ev *event.Event, style *Style) (*Notification, error) {
	n := &Notification{
		ID:         uuid.New(),
		Event:      ev,
		Style:      style,
		Queue:      q,
		compositor: c,
	}

	q.mu.Lock()
	q.waitList = append(q.waitList, n)
	q.mu.Unlock()

	if err := c.layoutAndSurface(ctx, n); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if ev != nil {
		c.byUUID[ev.UUID] = n
	}
	c.mu.Unlock()

	c.refreshList(ctx, q)
	return n, nil
}

func (c *Compositor) layoutAndSurface(ctx context.Context, n *Notification) error {
	n.layout = computeLayout(n.Style, n.Event, c.display)
	surf, err := c.backend.NewSurface(ctx, n.layout)
	if err != nil {
		return fmt.Errorf("notify: new surface: %w", err)
	}
	n.surface = surf
	return nil
}

// Update implements spec.md §4.7's update(event): recompute layout,
// resize the surface, refresh the list, and reset any active timeout.
func (c *Compositor) Update(ctx context.Context, n *Notification, ev *event.Event) error {
	n.Event = ev
	n.layout = computeLayout(n.Style, n.Event, c.display)
	if n.surface != nil {
		if err := n.surface.Update(ctx, n.layout); err != nil {
			return fmt.Errorf("notify: update surface: %w", err)
		}
	}
	c.refreshList(ctx, n.Queue)

	if n.timer != nil {
		c.armTimeout(n)
	}
	return nil
}

// Dismiss implements spec.md §4.7's dismiss(): for the "more" marker,
// dismisses every in-flight notification across all queues; otherwise
// emits a synthetic (".notification", "dismiss") event and waits for
// the mirror in EventDispatch to actually free it.
func (c *Compositor) Dismiss(ctx context.Context, n *Notification) {
	if n.Event == nil {
		c.DismissTarget(ctx, TargetAll, nil)
		return
	}
	if c.dispatcher != nil {
		c.dispatcher.PushEvent(ctx, event.NewNotificationEvent(event.NameDismiss, n.Event.UUID))
	}
}

// DismissTarget implements spec.md §4.7's dismiss_target. q nil means
// every queue.
func (c *Compositor) DismissTarget(ctx context.Context, target Target, q *Queue) {
	if target == TargetNone {
		return
	}

	c.mu.Lock()
	queues := []*Queue{q}
	if q == nil {
		queues = queues[:0]
		for _, qq := range c.queues {
			queues = append(queues, qq)
		}
	}
	c.mu.Unlock()

	for _, qq := range queues {
		switch target {
		case TargetAll:
			qq.mu.Lock()
			cp := append([]*Notification(nil), qq.inFlightList...)
			qq.mu.Unlock()
			for _, n := range cp {
				c.Dismiss(ctx, n)
			}
		case TargetOldest, TargetNewest:
			qq.mu.Lock()
			var victim *Notification
			if len(qq.inFlightList) > 0 {
				head, tail := qq.inFlightList[0], qq.inFlightList[len(qq.inFlightList)-1]
				if qq.Reverse {
					head, tail = tail, head
				}
				if target == TargetOldest {
					victim = head
				} else {
					victim = tail
				}
			}
			qq.mu.Unlock()
			if victim != nil {
				c.Dismiss(ctx, victim)
			}
		}
	}
}

// free releases n's backend surface and removes it from every
// bookkeeping structure. Called only from the synthetic-event mirror
// (EventDispatch), never inline from Dismiss, per spec.md §4.7's
// "uniform external boundary" note.
func (c *Compositor) free(ctx context.Context, n *Notification) {
	if n.timer != nil {
		n.timer.Stop()
	}
	if n.surface != nil {
		_ = n.surface.Free(ctx)
	}

	q := n.Queue
	q.mu.Lock()
	q.waitList = removeNotification(q.waitList, n)
	q.inFlightList = removeNotification(q.inFlightList, n)
	q.mu.Unlock()

	c.mu.Lock()
	if n.Event != nil {
		delete(c.byUUID, n.Event.UUID)
	}
	c.mu.Unlock()

	c.refreshList(ctx, q)
}

// EventDispatch implements dispatcher.Fanout: it is the sole path by
// which notifications are freed, per spec.md §4.7's synthetic event
// mirror. It also produces the timeout event when a notification's
// timer fires.
func (c *Compositor) EventDispatch(ctx context.Context, ev *event.Event) {
	if ev.Category != event.CategoryNotification {
		return
	}
	if ev.Name != event.NameDismiss && ev.Name != event.NameTimeout {
		return
	}
	raw, ok := ev.Get(event.DataSourceEvent)
	if !ok || raw.Kind != value.KindString {
		return
	}
	sourceID, err := uuid.Parse(raw.Str)
	if err != nil {
		return
	}

	c.mu.Lock()
	n, found := c.byUUID[sourceID]
	c.mu.Unlock()
	if !found {
		return
	}
	c.free(ctx, n)
}

func (c *Compositor) armTimeout(n *Notification) {
	if n.timer != nil {
		n.timer.Stop()
	}
	if n.Style == nil || n.Style.Timeout <= 0 || n.Event == nil {
		return
	}
	sourceID := n.Event.UUID
	n.timer = time.AfterFunc(n.Style.Timeout, func() {
		if c.dispatcher != nil {
			c.dispatcher.PushEvent(context.Background(), event.NewNotificationEvent(event.NameTimeout, sourceID))
		}
	})
}

func removeNotification(list []*Notification, n *Notification) []*Notification {
	for i, v := range list {
		if v == n {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
