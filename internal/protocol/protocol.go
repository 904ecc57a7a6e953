// Package protocol implements the line-framed inter-daemon wire codec
// described in spec.md §4.4: EVENT/DATA/DATAL/SUBSCRIBE/BYE/PING/PONG
// frames over a UTF-8 text stream.
package protocol

import (
	"bufio"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/nugget/eventd-go/internal/event"
	"github.com/nugget/eventd-go/internal/value"
)

// ErrProtocol is returned (wrapped) for any framing violation. Sessions
// that observe it close with the PROTOCOL_ERROR close code (spec.md
// §4.4/§7).
var ErrProtocol = errors.New("protocol error")

// FrameKind identifies the decoded frame shape.
type FrameKind int

const (
	FrameEvent FrameKind = iota
	FrameSubscribe
	FrameBye
	FramePing
	FramePong
)

// Frame is one decoded protocol unit. Only the fields relevant to Kind
// are populated.
type Frame struct {
	Kind FrameKind

	// FrameEvent
	Event *event.Event

	// FrameSubscribe; empty Categories means "subscribe to all"
	// non-internal categories per spec.md §4.5 / original eventd
	// behavior (see DESIGN.md Open Questions).
	Categories []string
}

// Reader decodes frames from a line-oriented stream.
type Reader struct {
	sc *bufio.Scanner
}

// NewReader wraps r for frame-at-a-time decoding. The caller should
// size buffers appropriately for expected data payloads; NewReader
// raises the scanner's token limit to 1 MiB to accommodate embedded
// base64 data blocks.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	return &Reader{sc: sc}
}

// ReadFrame reads and decodes the next frame. Returns io.EOF when the
// stream ends cleanly between frames.
func (rd *Reader) ReadFrame() (Frame, error) {
	if !rd.sc.Scan() {
		if err := rd.sc.Err(); err != nil {
			return Frame{}, err
		}
		return Frame{}, io.EOF
	}
	line := rd.sc.Text()

	switch {
	case line == "BYE":
		return Frame{Kind: FrameBye}, nil
	case line == "PING":
		return Frame{Kind: FramePing}, nil
	case line == "PONG":
		return Frame{Kind: FramePong}, nil
	case line == "SUBSCRIBE":
		return Frame{Kind: FrameSubscribe}, nil
	case strings.HasPrefix(line, "SUBSCRIBE "):
		cats := strings.Split(strings.TrimPrefix(line, "SUBSCRIBE "), ",")
		return Frame{Kind: FrameSubscribe, Categories: cats}, nil
	case strings.HasPrefix(line, "EVENT "):
		return rd.readEvent(line)
	default:
		return Frame{}, fmt.Errorf("%w: unrecognized frame header %q", ErrProtocol, line)
	}
}

func (rd *Reader) readEvent(header string) (Frame, error) {
	fields := strings.SplitN(strings.TrimPrefix(header, "EVENT "), " ", 3)
	if len(fields) != 3 {
		return Frame{}, fmt.Errorf("%w: malformed EVENT header %q", ErrProtocol, header)
	}
	id, err := uuid.Parse(fields[0])
	if err != nil {
		return Frame{}, fmt.Errorf("%w: bad event uuid: %v", ErrProtocol, err)
	}

	ev := event.New(fields[1], fields[2])
	ev.UUID = id

	for {
		if !rd.sc.Scan() {
			if err := rd.sc.Err(); err != nil {
				return Frame{}, err
			}
			return Frame{}, fmt.Errorf("%w: unterminated EVENT block", ErrProtocol)
		}
		line := rd.sc.Text()
		if line == "." {
			break
		}
		switch {
		case strings.HasPrefix(line, "DATAL "):
			rest := strings.TrimPrefix(line, "DATAL ")
			key, text, ok := strings.Cut(rest, " ")
			if !ok {
				return Frame{}, fmt.Errorf("%w: malformed DATAL line %q", ErrProtocol, line)
			}
			v, err := decodeValue(text)
			if err != nil {
				return Frame{}, fmt.Errorf("%w: %v", ErrProtocol, err)
			}
			ev.Set(key, v)
		case strings.HasPrefix(line, "DATA "):
			key := strings.TrimPrefix(line, "DATA ")
			var buf strings.Builder
			for {
				if !rd.sc.Scan() {
					return Frame{}, fmt.Errorf("%w: unterminated DATA block for %q", ErrProtocol, key)
				}
				dl := rd.sc.Text()
				if dl == "DATA." {
					break
				}
				if buf.Len() > 0 {
					buf.WriteByte('\n')
				}
				buf.WriteString(dl)
			}
			v, err := decodeValue(buf.String())
			if err != nil {
				return Frame{}, fmt.Errorf("%w: %v", ErrProtocol, err)
			}
			ev.Set(key, v)
		default:
			return Frame{}, fmt.Errorf("%w: unexpected line in EVENT block %q", ErrProtocol, line)
		}
	}

	return Frame{Kind: FrameEvent, Event: ev}, nil
}

// decodeValue parses the textual variant encoding used in DATA/DATAL
// blocks: a one-letter type tag, a colon, then the value text. This
// keeps the wire format simple and matches the spirit of the original
// GVariant text format without depending on GLib's grammar. Bytes are
// base64; arrays and maps nest recursively via netstring-framed
// ("<len>:<payload>") elements so an element's own encoding can
// contain arbitrary bytes, including colons and newlines, without
// ambiguity.
func decodeValue(text string) (value.Value, error) {
	tag, rest, ok := strings.Cut(text, ":")
	if !ok {
		return value.String(text), nil
	}
	switch tag {
	case "b":
		return value.Bool(rest == "true"), nil
	case "i":
		n, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return value.Value{}, fmt.Errorf("bad int value %q: %w", rest, err)
		}
		return value.Int(n), nil
	case "u":
		n, err := strconv.ParseUint(rest, 10, 64)
		if err != nil {
			return value.Value{}, fmt.Errorf("bad uint value %q: %w", rest, err)
		}
		return value.Uint(n), nil
	case "d":
		f, err := strconv.ParseFloat(rest, 64)
		if err != nil {
			return value.Value{}, fmt.Errorf("bad double value %q: %w", rest, err)
		}
		return value.Double(f), nil
	case "s":
		return value.String(rest), nil
	case "y":
		b, err := base64.StdEncoding.DecodeString(rest)
		if err != nil {
			return value.Value{}, fmt.Errorf("bad bytes value: %w", err)
		}
		return value.Bytes(b), nil
	case "a":
		countText, items, ok := strings.Cut(rest, ":")
		if !ok {
			return value.Value{}, fmt.Errorf("malformed array value %q", text)
		}
		count, err := strconv.Atoi(countText)
		if err != nil || count < 0 {
			return value.Value{}, fmt.Errorf("malformed array count %q", countText)
		}
		arr := make([]value.Value, 0, count)
		for i := 0; i < count; i++ {
			payload, remainder, err := readNetstring(items)
			if err != nil {
				return value.Value{}, fmt.Errorf("array element %d: %w", i, err)
			}
			elem, err := decodeValue(payload)
			if err != nil {
				return value.Value{}, fmt.Errorf("array element %d: %w", i, err)
			}
			arr = append(arr, elem)
			items = remainder
		}
		return value.Array(arr), nil
	case "m":
		countText, items, ok := strings.Cut(rest, ":")
		if !ok {
			return value.Value{}, fmt.Errorf("malformed map value %q", text)
		}
		count, err := strconv.Atoi(countText)
		if err != nil || count < 0 {
			return value.Value{}, fmt.Errorf("malformed map count %q", countText)
		}
		m := make(map[string]value.Value, count)
		for i := 0; i < count; i++ {
			key, remainder, err := readNetstring(items)
			if err != nil {
				return value.Value{}, fmt.Errorf("map key %d: %w", i, err)
			}
			valText, remainder2, err := readNetstring(remainder)
			if err != nil {
				return value.Value{}, fmt.Errorf("map value %d: %w", i, err)
			}
			v, err := decodeValue(valText)
			if err != nil {
				return value.Value{}, fmt.Errorf("map value for key %q: %w", key, err)
			}
			m[key] = v
			items = remainder2
		}
		return value.Map(m), nil
	default:
		return value.String(text), nil
	}
}

// readNetstring reads one length-prefixed ("<len>:<payload>") element
// off the front of s, returning the payload and the unconsumed
// remainder.
func readNetstring(s string) (payload, remainder string, err error) {
	lenText, rest, ok := strings.Cut(s, ":")
	if !ok {
		return "", "", fmt.Errorf("malformed netstring length in %q", s)
	}
	n, err := strconv.Atoi(lenText)
	if err != nil || n < 0 || n > len(rest) {
		return "", "", fmt.Errorf("malformed netstring length %q", lenText)
	}
	return rest[:n], rest[n:], nil
}

func writeNetstring(buf *strings.Builder, s string) {
	buf.WriteString(strconv.Itoa(len(s)))
	buf.WriteByte(':')
	buf.WriteString(s)
}

// encodeValue is the inverse of decodeValue.
func encodeValue(v value.Value) string {
	switch v.Kind {
	case value.KindBool:
		if v.Bool {
			return "b:true"
		}
		return "b:false"
	case value.KindInt64:
		return "i:" + strconv.FormatInt(v.Int, 10)
	case value.KindUint64:
		return "u:" + strconv.FormatUint(v.Uint, 10)
	case value.KindDouble:
		return "d:" + strconv.FormatFloat(v.Double, 'g', -1, 64)
	case value.KindString:
		return "s:" + v.Str
	case value.KindBytes:
		return "y:" + base64.StdEncoding.EncodeToString(v.Bytes)
	case value.KindArray:
		var buf strings.Builder
		for _, elem := range v.Array {
			writeNetstring(&buf, encodeValue(elem))
		}
		return fmt.Sprintf("a:%d:%s", len(v.Array), buf.String())
	case value.KindMap:
		keys := make([]string, 0, len(v.Map))
		for k := range v.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var buf strings.Builder
		for _, k := range keys {
			writeNetstring(&buf, k)
			writeNetstring(&buf, encodeValue(v.Map[k]))
		}
		return fmt.Sprintf("m:%d:%s", len(keys), buf.String())
	default:
		return "s:" + v.String()
	}
}

// Writer encodes frames to a line-oriented stream.
type Writer struct {
	w io.Writer
}

// NewWriter wraps w for frame-at-a-time encoding.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (wr *Writer) writeLine(s string) error {
	_, err := fmt.Fprintf(wr.w, "%s\n", s)
	return err
}

// WriteEvent encodes ev as an EVENT frame. Every data kind round-trips:
// DATAL is used when the encoded value fits on one line, DATA (a
// multi-line block terminated by "DATA.") when the encoding contains a
// newline, which happens for a string holding one or an array/map with
// such a string inside (bytes are base64 and never do).
func (wr *Writer) WriteEvent(ev *event.Event) error {
	if err := wr.writeLine(fmt.Sprintf("EVENT %s %s %s", ev.UUID, ev.Category, ev.Name)); err != nil {
		return err
	}
	for k, v := range ev.Data {
		enc := encodeValue(v)
		if !strings.Contains(enc, "\n") {
			if err := wr.writeLine(fmt.Sprintf("DATAL %s %s", k, enc)); err != nil {
				return err
			}
			continue
		}
		if err := wr.writeLine("DATA " + k); err != nil {
			return err
		}
		if err := wr.writeLine(enc); err != nil {
			return err
		}
		if err := wr.writeLine("DATA."); err != nil {
			return err
		}
	}
	return wr.writeLine(".")
}

// WriteSubscribe encodes a SUBSCRIBE frame. Empty categories subscribes
// to all non-internal categories.
func (wr *Writer) WriteSubscribe(categories []string) error {
	if len(categories) == 0 {
		return wr.writeLine("SUBSCRIBE")
	}
	return wr.writeLine("SUBSCRIBE " + strings.Join(categories, ","))
}

// WriteBye encodes a BYE frame.
func (wr *Writer) WriteBye() error { return wr.writeLine("BYE") }

// WritePing encodes a PING frame.
func (wr *Writer) WritePing() error { return wr.writeLine("PING") }

// WritePong encodes a PONG frame.
func (wr *Writer) WritePong() error { return wr.writeLine("PONG") }
