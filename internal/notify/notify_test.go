package notify

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/nugget/eventd-go/internal/action"
	"github.com/nugget/eventd-go/internal/backend"
	"github.com/nugget/eventd-go/internal/dispatcher"
	"github.com/nugget/eventd-go/internal/event"
	"github.com/nugget/eventd-go/internal/flags"
	"github.com/nugget/eventd-go/internal/router"
)

func newTestCompositor(t *testing.T) (*Compositor, *dispatcher.Dispatcher) {
	t.Helper()
	reg := action.NewRegistry(slog.Default())
	reg.Link()
	r := router.New(slog.Default())
	disp := dispatcher.New(slog.Default(), r, reg, flags.New())

	comp := New(backend.Null{}, disp, Display{Width: 800, Height: 600, Scale: 1}, slog.Default())
	disp.AddFanout(fanoutFunc(comp.EventDispatch))
	return comp, disp
}

type fanoutFunc func(ctx context.Context, ev *event.Event)

func (f fanoutFunc) Dispatch(ctx context.Context, ev *event.Event) { f(ctx, ev) }

// Scenario 6 from spec.md §8.
func TestQueueLimitAndMoreMarker(t *testing.T) {
	comp, disp := newTestCompositor(t)
	q := comp.Queue("q", 1, AnchorTopRight, false, true)
	style := &Style{}

	ctx := context.Background()
	n1, err := comp.New(ctx, q, event.New("app", "a"), style)
	if err != nil {
		t.Fatal(err)
	}
	n2, err := comp.New(ctx, q, event.New("app", "b"), style)
	if err != nil {
		t.Fatal(err)
	}
	n3, err := comp.New(ctx, q, event.New("app", "c"), style)
	if err != nil {
		t.Fatal(err)
	}

	q.mu.Lock()
	if len(q.inFlightList) != 2 { // n1 + marker
		t.Errorf("in-flight len = %d, want 2 (n1 + marker)", len(q.inFlightList))
	}
	if len(q.waitList) != 2 {
		t.Errorf("wait list len = %d, want 2 (n2, n3)", len(q.waitList))
	}
	marker := q.moreMarker
	q.mu.Unlock()

	if marker == nil {
		t.Fatal("expected a more-indicator marker")
	}
	if !strings.Contains(marker.Style.TextTemplate, "+2") {
		t.Errorf("marker text = %q, want to contain +2", marker.Style.TextTemplate)
	}

	comp.Dismiss(ctx, n1)

	q.mu.Lock()
	if len(q.waitList) != 1 {
		t.Errorf("after dismissing n1, wait list len = %d, want 1", len(q.waitList))
	}
	marker = q.moreMarker
	q.mu.Unlock()
	if marker == nil || !strings.Contains(marker.Style.TextTemplate, "+1") {
		t.Errorf("after promotion, marker text should contain +1, got %v", marker)
	}

	_ = n2
	_ = n3
	_ = disp
}

// Limit 0 means unlimited (spec.md §3; the common case since
// QueueConfig.Limit defaults to the zero value).
func TestQueueLimitZeroIsUnlimited(t *testing.T) {
	comp, _ := newTestCompositor(t)
	q := comp.Queue("q", 0, AnchorTopRight, false, false)
	style := &Style{}

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := comp.New(ctx, q, event.New("app", "n"), style); err != nil {
			t.Fatal(err)
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.waitList) != 0 {
		t.Errorf("wait list len = %d, want 0 (everything promoted on an unlimited queue)", len(q.waitList))
	}
	if len(q.inFlightList) != 5 {
		t.Errorf("in-flight len = %d, want 5", len(q.inFlightList))
	}
}

func TestDismissAllEmitsDismissPerNotification(t *testing.T) {
	comp, _ := newTestCompositor(t)
	q := comp.Queue("q", 10, AnchorTopLeft, false, false)
	style := &Style{}

	ctx := context.Background()
	ev1 := event.New("app", "a")
	ev2 := event.New("app", "b")
	n1, _ := comp.New(ctx, q, ev1, style)
	n2, _ := comp.New(ctx, q, ev2, style)

	comp.DismissTarget(ctx, TargetAll, q)

	q.mu.Lock()
	remaining := len(q.inFlightList)
	q.mu.Unlock()
	if remaining != 0 {
		t.Errorf("in-flight list after DismissTarget(ALL) = %d, want 0", remaining)
	}
	_ = n1
	_ = n2
}
