// Package backend defines the injected-callback seam between the
// notification compositor and whatever pixel-drawing/windowing system
// actually places bubbles on screen (X11, Wayland, Win32, ...). None of
// those are implemented here — per spec.md §1 pixel drawing is out of
// scope — this package only names the small interfaces the compositor
// drives, matching the teacher's style of injecting collaborators as
// narrow interfaces (e.g. a stats source or a probe func) rather than
// depending on a concrete implementation.
package backend

import "context"

// Size is a width/height pair in the backend's device pixels.
type Size struct {
	Width, Height int
}

// Point is a screen-space coordinate, origin top-left.
type Point struct {
	X, Y int
}

// Layout is the fully-computed geometry the compositor hands the
// backend for one notification surface, the output of spec.md §4.7's
// layout algorithm.
type Layout struct {
	ContentSize Size
	BubbleSize  Size
	BorderSize  Size
	SurfaceSize Size
	ShadowOffset Point
}

// Shape lets the backend render the bubble's content (text, image,
// icon, progress bar) into a surface it owns. Draw is called once per
// layout change.
type Shape interface {
	Draw(ctx context.Context, layout Layout, text string) error
}

// Surface is a backend-owned drawable bound to one notification.
type Surface interface {
	// Update re-renders the surface for a new layout.
	Update(ctx context.Context, layout Layout) error
	// Move repositions the surface's anchor corner to pt.
	Move(ctx context.Context, pt Point) error
	// Free releases the surface. Called before the owning notification
	// record itself is discarded (spec.md §5 "scoped acquisition").
	Free(ctx context.Context) error
}

// Backend creates and batches surface placement. MoveBegin/MoveEnd
// bracket a refresh-list pass so batched backends (X, Win32) can
// coalesce multiple Move calls into one flush, per spec.md §4.7 step 5.
type Backend interface {
	NewSurface(ctx context.Context, layout Layout) (Surface, error)
	MoveBegin(ctx context.Context)
	MoveEnd(ctx context.Context)
}

// Null is a Backend that performs no drawing, useful for headless
// daemon configurations and tests.
type Null struct{}

type nullSurface struct{}

func (nullSurface) Update(ctx context.Context, layout Layout) error { return nil }
func (nullSurface) Move(ctx context.Context, pt Point) error        { return nil }
func (nullSurface) Free(ctx context.Context) error                  { return nil }

func (Null) NewSurface(ctx context.Context, layout Layout) (Surface, error) {
	return nullSurface{}, nil
}
func (Null) MoveBegin(ctx context.Context) {}
func (Null) MoveEnd(ctx context.Context)   {}
