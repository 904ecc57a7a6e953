// Package format implements the event-data format-string engine
// described in spec.md §9: tokens of the form ${name}, ${name[key]},
// ${name@joiner}, and ${name+index} resolved against an event's typed
// data, producing either a plain string (for notification/text
// templates) or a ResourceRef (for image/icon/sound references).
package format

import (
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/nugget/eventd-go/internal/value"
)

func decodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

// RefKind identifies which of the three resource-URI shapes a
// ResourceRef holds.
type RefKind int

const (
	RefFile RefKind = iota
	RefData
	RefTheme
)

// ResourceRef is the resolved form of a format-string token used in an
// image/icon/sound context. Exactly one of the fields is meaningful,
// selected by Kind.
type ResourceRef struct {
	Kind RefKind

	// Path is the filesystem path for RefFile.
	Path string

	// MimeType and Bytes hold the decoded payload for RefData
	// (data:<mime>;base64,<bytes>).
	MimeType string
	Bytes    []byte

	// Theme and Name identify an XDG theme lookup for RefTheme
	// (theme:[theme/]name). Theme is empty when unspecified.
	Theme string
	Name  string
}

// ParseResourceURI classifies a resolved string into its ResourceRef
// shape. It does not touch the filesystem. For a data: URI the base64
// payload is decoded here, so RefData's Bytes holds the raw bytes; a
// payload that is not valid base64 makes ok false.
func ParseResourceURI(s string) (ResourceRef, bool) {
	switch {
	case strings.HasPrefix(s, "file://"):
		return ResourceRef{Kind: RefFile, Path: strings.TrimPrefix(s, "file://")}, true
	case strings.HasPrefix(s, "data:"):
		rest := strings.TrimPrefix(s, "data:")
		semi := strings.Index(rest, ";base64,")
		if semi < 0 {
			return ResourceRef{}, false
		}
		mime := rest[:semi]
		b64 := rest[semi+len(";base64,"):]
		decoded, err := decodeBase64(b64)
		if err != nil {
			return ResourceRef{}, false
		}
		return ResourceRef{Kind: RefData, MimeType: mime, Bytes: decoded}, true
	case strings.HasPrefix(s, "theme:"):
		rest := strings.TrimPrefix(s, "theme:")
		if slash := strings.LastIndex(rest, "/"); slash >= 0 {
			return ResourceRef{Kind: RefTheme, Theme: rest[:slash], Name: rest[slash+1:]}, true
		}
		return ResourceRef{Kind: RefTheme, Name: rest}, true
	default:
		return ResourceRef{}, false
	}
}

// token is one parsed ${...} unit, or a literal run of text.
type token struct {
	literal string // valid when name == ""
	name    string
	key     string // ${name[key]}
	joiner  string // ${name@joiner}
	index   int    // ${name+index}, -1 if unset
	hasKey  bool
	hasJoin bool
	hasIdx  bool
}

// Template is a parsed format string ready for repeated resolution
// against different events.
type Template struct {
	tokens []token
}

// Parse scans a raw format string into a Template. Parse never fails:
// malformed ${...} sequences that don't close are treated as literal
// text, matching the forgiving style of the original eventd format
// strings (a broken template degrades to showing raw text rather than
// dropping the whole notification).
func Parse(raw string) *Template {
	t := &Template{}
	var lit strings.Builder
	i := 0
	for i < len(raw) {
		if raw[i] == '$' && i+1 < len(raw) && raw[i+1] == '{' {
			end := strings.IndexByte(raw[i+2:], '}')
			if end < 0 {
				lit.WriteByte(raw[i])
				i++
				continue
			}
			inner := raw[i+2 : i+2+end]
			if lit.Len() > 0 {
				t.tokens = append(t.tokens, token{literal: lit.String()})
				lit.Reset()
			}
			t.tokens = append(t.tokens, parseInner(inner))
			i += 2 + end + 1
			continue
		}
		lit.WriteByte(raw[i])
		i++
	}
	if lit.Len() > 0 {
		t.tokens = append(t.tokens, token{literal: lit.String()})
	}
	return t
}

func parseInner(inner string) token {
	tk := token{index: -1}
	name := inner

	if at := strings.IndexByte(name, '@'); at >= 0 {
		tk.joiner = name[at+1:]
		tk.hasJoin = true
		name = name[:at]
	}
	if plus := strings.IndexByte(name, '+'); plus >= 0 {
		if idx, err := strconv.Atoi(name[plus+1:]); err == nil {
			tk.index = idx
			tk.hasIdx = true
			name = name[:plus]
		}
	}
	if lb := strings.IndexByte(name, '['); lb >= 0 && strings.HasSuffix(name, "]") {
		tk.key = name[lb+1 : len(name)-1]
		tk.hasKey = true
		name = name[:lb]
	}
	tk.name = name
	return tk
}

// Resolve renders the template against data, producing the plain-string
// form. Tokens whose name is absent from data resolve to the empty
// string.
func (t *Template) Resolve(data map[string]value.Value) string {
	var out strings.Builder
	for _, tk := range t.tokens {
		if tk.name == "" {
			out.WriteString(tk.literal)
			continue
		}
		out.WriteString(resolveToken(tk, data))
	}
	return out.String()
}

func resolveToken(tk token, data map[string]value.Value) string {
	v, ok := data[tk.name]
	if !ok {
		return ""
	}

	if tk.hasKey {
		sub, ok := v.Lookup(tk.key)
		if !ok {
			return ""
		}
		v = sub
	}

	if tk.hasJoin {
		if v.Kind != value.KindArray {
			return v.String()
		}
		parts := make([]string, len(v.Array))
		for i, e := range v.Array {
			parts[i] = e.String()
		}
		return strings.Join(parts, tk.joiner)
	}

	if tk.hasIdx {
		if v.Kind == value.KindArray {
			if tk.index < 0 || tk.index >= len(v.Array) {
				return ""
			}
			return v.Array[tk.index].String()
		}
		return ""
	}

	return v.String()
}

// ResolveRef renders the template and attempts to classify the result
// as a ResourceRef, for use in image/icon/sound contexts. ok is false
// if the rendered string isn't one of the three recognized URI forms.
func (t *Template) ResolveRef(data map[string]value.Value) (ResourceRef, bool) {
	return ParseResourceURI(t.Resolve(data))
}
