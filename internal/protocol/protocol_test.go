package protocol

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/nugget/eventd-go/internal/event"
	"github.com/nugget/eventd-go/internal/value"
)

func TestRoundTripEvent(t *testing.T) {
	ev := event.New("chat", "message")
	ev.Set("text", value.String("hi there"))

	var buf bytes.Buffer
	if err := NewWriter(&buf).WriteEvent(ev); err != nil {
		t.Fatalf("WriteEvent() error = %v", err)
	}

	frame, err := NewReader(&buf).ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if frame.Kind != FrameEvent {
		t.Fatalf("Kind = %v, want FrameEvent", frame.Kind)
	}
	if frame.Event.Category != "chat" || frame.Event.Name != "message" {
		t.Errorf("got category/name = %s/%s, want chat/message", frame.Event.Category, frame.Event.Name)
	}
	if frame.Event.UUID != ev.UUID {
		t.Errorf("UUID mismatch: got %s, want %s", frame.Event.UUID, ev.UUID)
	}
	got, ok := frame.Event.Get("text")
	if !ok || got.Str != "hi there" {
		t.Errorf("data[text] = %+v, ok=%v, want \"hi there\"", got, ok)
	}
}

func TestReadSubscribeEmptyMeansAll(t *testing.T) {
	r := NewReader(strings.NewReader("SUBSCRIBE\n"))
	frame, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if frame.Kind != FrameSubscribe || len(frame.Categories) != 0 {
		t.Errorf("frame = %+v, want empty-category Subscribe", frame)
	}
}

func TestReadSubscribeWithCategories(t *testing.T) {
	r := NewReader(strings.NewReader("SUBSCRIBE chat,alerts\n"))
	frame, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	want := []string{"chat", "alerts"}
	if len(frame.Categories) != 2 || frame.Categories[0] != want[0] || frame.Categories[1] != want[1] {
		t.Errorf("Categories = %v, want %v", frame.Categories, want)
	}
}

func TestReadBye(t *testing.T) {
	r := NewReader(strings.NewReader("BYE\n"))
	frame, err := r.ReadFrame()
	if err != nil || frame.Kind != FrameBye {
		t.Errorf("ReadFrame() = %+v, %v, want FrameBye", frame, err)
	}
}

func TestMalformedEventHeaderIsProtocolError(t *testing.T) {
	r := NewReader(strings.NewReader("EVENT not-a-uuid chat\n.\n"))
	_, err := r.ReadFrame()
	if err == nil {
		t.Fatal("ReadFrame() error = nil, want protocol error")
	}
}

func TestUnterminatedEventBlockErrors(t *testing.T) {
	uuidLine := "EVENT 11111111-1111-1111-1111-111111111111 chat hi\nDATAL x s:y\n"
	r := NewReader(strings.NewReader(uuidLine))
	_, err := r.ReadFrame()
	if err == nil {
		t.Fatal("ReadFrame() error = nil, want protocol error for unterminated block")
	}
}

func TestEOFBetweenFrames(t *testing.T) {
	r := NewReader(strings.NewReader(""))
	_, err := r.ReadFrame()
	if err != io.EOF {
		t.Errorf("ReadFrame() error = %v, want io.EOF", err)
	}
}

func TestEncodeDecodeValueBytes(t *testing.T) {
	want := value.Bytes([]byte{0x00, 0x01, 0xff, 'h', 'i'})
	got, err := decodeValue(encodeValue(want))
	if err != nil {
		t.Fatalf("decodeValue() error = %v", err)
	}
	if got.Kind != value.KindBytes || string(got.Bytes) != string(want.Bytes) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestEncodeDecodeValueArray(t *testing.T) {
	want := value.Array([]value.Value{
		value.Int(1),
		value.String("contains : and \n inside"),
		value.Bool(true),
		value.Array([]value.Value{value.Double(2.5), value.Uint(7)}),
	})
	got, err := decodeValue(encodeValue(want))
	if err != nil {
		t.Fatalf("decodeValue() error = %v", err)
	}
	if got.Kind != value.KindArray || len(got.Array) != len(want.Array) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if got.Array[1].Str != want.Array[1].Str {
		t.Errorf("element 1 = %q, want %q", got.Array[1].Str, want.Array[1].Str)
	}
	nested := got.Array[3]
	if nested.Kind != value.KindArray || len(nested.Array) != 2 || nested.Array[1].Uint != 7 {
		t.Errorf("nested array = %+v, want [2.5, 7]", nested)
	}
}

func TestEncodeDecodeValueMap(t *testing.T) {
	want := value.Map(map[string]value.Value{
		"name":  value.String("widget"),
		"count": value.Int(3),
		"tags":  value.Array([]value.Value{value.String("a"), value.String("b")}),
	})
	got, err := decodeValue(encodeValue(want))
	if err != nil {
		t.Fatalf("decodeValue() error = %v", err)
	}
	if got.Kind != value.KindMap || len(got.Map) != 3 {
		t.Fatalf("got %+v, want 3-entry map", got)
	}
	if got.Map["name"].Str != "widget" || got.Map["count"].Int != 3 {
		t.Errorf("map = %+v", got.Map)
	}
	tags := got.Map["tags"]
	if tags.Kind != value.KindArray || len(tags.Array) != 2 || tags.Array[0].Str != "a" {
		t.Errorf("map[tags] = %+v, want [a b]", tags)
	}
}

func TestWriteEventRoundTripsStructuredData(t *testing.T) {
	ev := event.New("sensor", "reading")
	ev.Set("raw", value.Bytes([]byte{0xde, 0xad, 0xbe, 0xef}))
	ev.Set("samples", value.Array([]value.Value{value.Double(1.5), value.Double(2.5)}))
	ev.Set("meta", value.Map(map[string]value.Value{"unit": value.String("C")}))

	var buf bytes.Buffer
	if err := NewWriter(&buf).WriteEvent(ev); err != nil {
		t.Fatalf("WriteEvent() error = %v", err)
	}

	frame, err := NewReader(&buf).ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}

	raw, ok := frame.Event.Get("raw")
	if !ok || raw.Kind != value.KindBytes || string(raw.Bytes) != "\xde\xad\xbe\xef" {
		t.Errorf("data[raw] = %+v, ok=%v, want 4 raw bytes", raw, ok)
	}
	samples, ok := frame.Event.Get("samples")
	if !ok || samples.Kind != value.KindArray || len(samples.Array) != 2 || samples.Array[1].Double != 2.5 {
		t.Errorf("data[samples] = %+v, ok=%v, want [1.5, 2.5]", samples, ok)
	}
	meta, ok := frame.Event.Get("meta")
	if !ok || meta.Kind != value.KindMap || meta.Map["unit"].Str != "C" {
		t.Errorf("data[meta] = %+v, ok=%v, want {unit: C}", meta, ok)
	}
}

func TestDataBlockMultilineRoundTrip(t *testing.T) {
	raw := "EVENT 11111111-1111-1111-1111-111111111111 chat hi\n" +
		"DATA body\n" +
		"line one\n" +
		"line two\n" +
		"DATA.\n" +
		".\n"
	r := NewReader(strings.NewReader(raw))
	frame, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	got, ok := frame.Event.Get("body")
	if !ok {
		t.Fatal("data[body] missing")
	}
	if got.Str != "line one\nline two" {
		t.Errorf("data[body] = %q, want multi-line text preserved", got.Str)
	}
}
