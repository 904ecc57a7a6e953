package notify

import (
	"strings"

	"github.com/nugget/eventd-go/internal/backend"
	"github.com/nugget/eventd-go/internal/event"
	"github.com/nugget/eventd-go/internal/format"
)

// approxCharWidth is the placeholder glyph-advance used by the text
// measurement step below. Real glyph metrics depend on a font backend
// this package does not have access to (pixel drawing is out of
// scope); computeLayout only needs a deterministic, monotonic stand-in
// so the surrounding bubble/border/shadow arithmetic is exercised the
// same way a real backend would drive it.
const approxCharWidth = 7

// computeLayout implements spec.md §4.7's layout algorithm: clamp the
// bubble width to the display and style bounds, compose and measure
// text under that width, reserve image/icon/progress-bar space, and
// wrap content -> bubble -> border -> surface sizes.
func computeLayout(style *Style, ev *event.Event, display Display) backend.Layout {
	margin := style.Bubble.Margin
	border := style.Bubble.Border

	maxWidth := style.Bubble.MaxWidth
	if avail := display.Width - 2*(margin+border); avail < maxWidth {
		maxWidth = avail
	}
	if maxWidth < style.Bubble.MinWidth {
		maxWidth = style.Bubble.MinWidth
	}

	imageAllocation := 0
	if style.Image.MaxSize > 0 {
		imageAllocation += style.Image.MaxSize
	}
	if style.Icon.MaxSize > 0 {
		imageAllocation += style.Icon.MaxSize
	}

	wrapWidth := maxWidth - imageAllocation
	if wrapWidth < 0 {
		wrapWidth = 0
	}

	text := ""
	switch {
	case ev != nil && style.TextTemplate != "":
		text = format.Parse(style.TextTemplate).Resolve(ev.Data)
	case ev == nil && style.TextTemplate != "":
		// The "more" marker's style carries its literal display text
		// directly rather than a template to resolve (there is no
		// source event to resolve against).
		text = style.TextTemplate
	}
	textW, textH := measureText(text, wrapWidth, style.Text.MaxLines)

	progressWidth := 0
	if style.Progress.Key != "" && ev != nil {
		if _, ok := ev.Get(style.Progress.Key); ok {
			progressWidth = style.Progress.Width
		}
	}

	contentW := textW + imageAllocation + progressWidth
	if contentW > maxWidth {
		contentW = maxWidth
	}
	contentH := textH
	if style.Image.MaxSize > contentH {
		contentH = style.Image.MaxSize
	}
	if style.Icon.MaxSize > contentH {
		contentH = style.Icon.MaxSize
	}

	contentSize := backend.Size{Width: contentW, Height: contentH}
	bubbleSize := backend.Size{Width: contentW + 2*margin, Height: contentH + 2*margin}
	borderSize := backend.Size{Width: bubbleSize.Width + 2*border, Height: bubbleSize.Height + 2*border}

	shadow := backend.Point{}
	shadowExtra := backend.Size{}
	surfaceSize := backend.Size{Width: borderSize.Width + shadowExtra.Width, Height: borderSize.Height + shadowExtra.Height}

	return backend.Layout{
		ContentSize:  contentSize,
		BubbleSize:   bubbleSize,
		BorderSize:   borderSize,
		SurfaceSize:  surfaceSize,
		ShadowOffset: shadow,
	}
}

// measureText approximates wrapped text dimensions under wrapWidth,
// clamped to maxLines. See approxCharWidth's doc comment for why this
// is a stand-in rather than real glyph shaping.
func measureText(text string, wrapWidth, maxLines int) (width, height int) {
	if text == "" {
		return 0, 0
	}
	lineHeight := 14
	if wrapWidth <= 0 {
		lines := strings.Split(text, "\n")
		if maxLines > 0 && len(lines) > maxLines {
			lines = lines[:maxLines]
		}
		return 0, len(lines) * lineHeight
	}

	charsPerLine := wrapWidth / approxCharWidth
	if charsPerLine < 1 {
		charsPerLine = 1
	}

	var lines int
	maxLineWidth := 0
	for _, raw := range strings.Split(text, "\n") {
		n := len(raw)
		lineCount := (n + charsPerLine - 1) / charsPerLine
		if lineCount == 0 {
			lineCount = 1
		}
		lines += lineCount
		lw := n * approxCharWidth
		if lw > wrapWidth {
			lw = wrapWidth
		}
		if lw > maxLineWidth {
			maxLineWidth = lw
		}
	}
	if maxLines > 0 && lines > maxLines {
		lines = maxLines
	}
	return maxLineWidth, lines * lineHeight
}
