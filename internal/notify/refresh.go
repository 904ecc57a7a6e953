package notify

import (
	"context"

	"github.com/nugget/eventd-go/internal/backend"
)

// refreshList implements spec.md §4.7's refresh-list algorithm: drop
// any stale "more" marker, promote wait-listed notifications into the
// in-flight list up to the queue's limit (arming timeouts as they go),
// recreate the marker if the wait list is still non-empty, then
// recompute and push every in-flight surface's position.
func (c *Compositor) refreshList(ctx context.Context, q *Queue) {
	q.mu.Lock()
	if q.moreMarker != nil {
		q.inFlightList = removeNotification(q.inFlightList, q.moreMarker)
	}

	for (q.Limit == 0 || len(q.inFlightList) < q.Limit) && len(q.waitList) > 0 {
		head := q.waitList[0]
		q.waitList = q.waitList[1:]
		if q.Reverse {
			q.inFlightList = append([]*Notification{head}, q.inFlightList...)
		} else {
			q.inFlightList = append(q.inFlightList, head)
		}
		c.armTimeout(head)
	}

	needMarker := q.MoreIndicator && len(q.waitList) > 0
	marker := q.moreMarker
	waiting := len(q.waitList)
	q.mu.Unlock()

	switch {
	case needMarker && marker == nil:
		marker = c.newMoreMarker(ctx, q, waiting)
		q.mu.Lock()
		q.moreMarker = marker
		q.inFlightList = append(q.inFlightList, marker)
		q.mu.Unlock()
	case needMarker && marker != nil:
		c.updateMoreMarker(ctx, marker, waiting)
		q.mu.Lock()
		q.inFlightList = append(q.inFlightList, marker)
		q.mu.Unlock()
	case !needMarker && marker != nil:
		q.mu.Lock()
		q.moreMarker = nil
		q.mu.Unlock()
		if marker.surface != nil {
			_ = marker.surface.Free(ctx)
		}
	}

	c.placeSurfaces(ctx, q)
}

// newMoreMarker creates the synthetic "more N" notification directly
// into the in-flight list, per spec.md §4.7 step 3 ("this recurses into
// new which does not re-enter refresh_list for markers").
func (c *Compositor) newMoreMarker(ctx context.Context, q *Queue, waiting int) *Notification {
	n := &Notification{
		Queue:      q,
		Style:      moreMarkerStyle(waiting),
		compositor: c,
	}
	n.layout = computeLayout(n.Style, nil, c.display)
	if surf, err := c.backend.NewSurface(ctx, n.layout); err == nil {
		n.surface = surf
	}
	return n
}

func (c *Compositor) updateMoreMarker(ctx context.Context, n *Notification, waiting int) {
	n.Style = moreMarkerStyle(waiting)
	n.layout = computeLayout(n.Style, nil, c.display)
	if n.surface != nil {
		_ = n.surface.Update(ctx, n.layout)
	}
}

// moreMarkerStyle gives the marker a minimal style carrying no timeout
// and the literal "+N" text (SPEC_FULL.md's supplemented feature
// sourced from the original nd.c plugin); queues don't configure a
// distinct style for the marker so a bare default otherwise suffices.
func moreMarkerStyle(waiting int) *Style {
	return &Style{Bubble: BubbleStyle{MinWidth: 1}, TextTemplate: moreIndicatorText(waiting)}
}

// placeSurfaces implements spec.md §4.7 steps 4-5: compute each
// in-flight notification's stacked position from the queue's anchor
// corner and push it to the backend, bracketed by MoveBegin/MoveEnd.
func (c *Compositor) placeSurfaces(ctx context.Context, q *Queue) {
	q.mu.Lock()
	list := append([]*Notification(nil), q.inFlightList...)
	q.mu.Unlock()

	const margin = 8
	const spacing = 4

	c.backend.MoveBegin(ctx)
	defer c.backend.MoveEnd(ctx)

	offset := margin
	for _, n := range list {
		pt := anchorPoint(q.Anchor, c.display, n.layout.SurfaceSize, offset, margin)
		if n.surface != nil {
			_ = n.surface.Move(ctx, pt)
		}
		offset += n.layout.SurfaceSize.Height + spacing
	}
}

// anchorPoint places a surface of size sz so its anchor-dictated corner
// sits at the given running offset from the screen edge.
func anchorPoint(a Anchor, display Display, sz backend.Size, offset, margin int) backend.Point {
	switch a {
	case AnchorTopLeft:
		return backend.Point{X: margin, Y: offset}
	case AnchorTopRight:
		return backend.Point{X: display.Width - margin - sz.Width, Y: offset}
	case AnchorBottomLeft:
		return backend.Point{X: margin, Y: display.Height - offset - sz.Height}
	case AnchorBottomRight:
		return backend.Point{X: display.Width - margin - sz.Width, Y: display.Height - offset - sz.Height}
	default:
		return backend.Point{X: margin, Y: offset}
	}
}
