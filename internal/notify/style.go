package notify

import "time"

// Anchor names the screen corner a queue's notifications stack from,
// per spec.md §4.7's "starting from the anchor corner" layout step.
type Anchor int

const (
	AnchorTopLeft Anchor = iota
	AnchorTopRight
	AnchorBottomLeft
	AnchorBottomRight
)

// BubbleStyle is the NotificationBubble configuration group (spec.md
// §6).
type BubbleStyle struct {
	MaxWidth int
	MinWidth int
	Margin   int
	Spacing  int
	Border   int
}

// TextStyle is the NotificationText configuration group.
type TextStyle struct {
	MaxLines int
}

// Placement names where an image/icon is drawn relative to the text,
// per spec.md §4.7's "per style placement (background/overlay/
// foreground)".
type Placement int

const (
	PlacementBackground Placement = iota
	PlacementOverlay
	PlacementForeground
)

// ImageStyle is the NotificationImage configuration group.
type ImageStyle struct {
	Placement Placement
	MaxSize   int
}

// IconStyle is the NotificationIcon configuration group.
type IconStyle struct {
	Placement Placement
	MaxSize   int
}

// ProgressStyle is the NotificationProgress configuration group. Key
// names the event data field carrying the progress value; a
// notification only reserves progress-bar space when its event carries
// that key.
type ProgressStyle struct {
	Key   string
	Width int
}

// Style is the NotificationStyle configuration group plus its nested
// Bubble/Text/Image/Icon/Progress groups, and the binding-derived
// default Timeout.
type Style struct {
	Timeout time.Duration

	Bubble   BubbleStyle
	Text     TextStyle
	Image    ImageStyle
	Icon     IconStyle
	Progress ProgressStyle

	// TextTemplate is the format-string template (internal/format)
	// used to compose the rendered text from event data.
	TextTemplate string
}

// Display is the target screen geometry layout computation measures
// against.
type Display struct {
	Width, Height int
	Scale         float64
}
