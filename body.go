package bosh

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Body is the immutable wire unit of BOSH: a single <body/> element
// qualified by NSBOSH, carrying a flat attribute map and an opaque payload
// fragment. Body never decodes its payload into an element tree; callers
// above this library are responsible for interpreting it.
type Body struct {
	attrs   map[QName]string
	payload []byte
}

// Attribute returns the value of q and whether it was present.
func (b *Body) Attribute(q QName) (string, bool) {
	v, ok := b.attrs[q]
	return v, ok
}

// Attr is a convenience accessor for BOSH-namespace attributes.
func (b *Body) Attr(local string) (string, bool) {
	return b.Attribute(NewQName(local))
}

// Attributes returns a copy of the full attribute map.
func (b *Body) Attributes() map[QName]string {
	out := make(map[QName]string, len(b.attrs))
	for k, v := range b.attrs {
		out[k] = v
	}
	return out
}

// Payload returns the opaque child-content bytes exactly as received or
// composed, never copied defensively since Body is immutable.
func (b *Body) Payload() []byte { return b.payload }

// Rebuild derives a Builder pre-populated with b's attributes and payload.
func (b *Body) Rebuild() *Builder {
	bld := NewBuilder()
	for k, v := range b.attrs {
		bld.attrs[k] = v
	}
	bld.payload = b.payload
	return bld
}

// Builder composes a new Body attribute-by-attribute, preserving every
// attribute it isn't told to change.
type Builder struct {
	attrs   map[QName]string
	payload []byte
}

// NewBuilder starts an empty body builder.
func NewBuilder() *Builder {
	return &Builder{attrs: make(map[QName]string)}
}

// Set assigns an attribute value. Passing an empty value is a no-op guard
// against accidentally stamping empty strings onto the wire; use Unset to
// remove an attribute.
func (bld *Builder) Set(q QName, value string) *Builder {
	if value == "" {
		return bld
	}
	bld.attrs[q] = value
	return bld
}

// SetAttr is the BOSH-namespace convenience form of Set.
func (bld *Builder) SetAttr(local, value string) *Builder {
	return bld.Set(NewQName(local), value)
}

// Unset removes an attribute, the Go equivalent of set_attribute(qname, nil)
// in spec.md §4.2.
func (bld *Builder) Unset(q QName) *Builder {
	delete(bld.attrs, q)
	return bld
}

// SetPayload replaces the opaque payload fragment.
func (bld *Builder) SetPayload(payload []byte) *Builder {
	bld.payload = payload
	return bld
}

// Build freezes the builder into an immutable Body.
func (bld *Builder) Build() *Body {
	attrs := make(map[QName]string, len(bld.attrs))
	for k, v := range bld.attrs {
		attrs[k] = v
	}
	return &Body{attrs: attrs, payload: bld.payload}
}

// ToXML serializes b as a single well-formed <body/> element. Namespaced
// attributes outside NSBOSH and NSXML are given a generated prefix.
func (b *Body) ToXML() []byte {
	var buf bytes.Buffer
	buf.WriteString(`<body xmlns="`)
	buf.WriteString(NSBOSH)
	buf.WriteByte('"')

	type kv struct {
		q QName
		v string
	}
	var ordered []kv
	prefixes := make(map[string]string)
	n := 0
	for q, v := range b.attrs {
		ordered = append(ordered, kv{q, v})
		if q.Space != "" && q.Space != NSBOSH && q.Space != NSXML {
			if _, ok := prefixes[q.Space]; !ok {
				n++
				prefixes[q.Space] = fmt.Sprintf("ns%d", n)
			}
		}
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].q.Space != ordered[j].q.Space {
			return ordered[i].q.Space < ordered[j].q.Space
		}
		return ordered[i].q.Local < ordered[j].q.Local
	})

	for ns, prefix := range prefixes {
		buf.WriteString(` xmlns:`)
		buf.WriteString(prefix)
		buf.WriteString(`="`)
		xml.EscapeText(&buf, []byte(ns))
		buf.WriteByte('"')
	}

	for _, e := range ordered {
		buf.WriteByte(' ')
		switch e.q.Space {
		case NSXML:
			buf.WriteString("xml:")
		case "", NSBOSH:
		default:
			buf.WriteString(prefixes[e.q.Space])
			buf.WriteByte(':')
		}
		buf.WriteString(e.q.Local)
		buf.WriteString(`="`)
		xml.EscapeText(&buf, []byte(e.v))
		buf.WriteByte('"')
	}

	if len(b.payload) == 0 {
		buf.WriteString("/>")
		return buf.Bytes()
	}
	buf.WriteByte('>')
	buf.Write(b.payload)
	buf.WriteString("</body>")
	return buf.Bytes()
}

// ParseBody decodes a single <body/> element from data, preserving its
// child content verbatim as the resulting Body's payload. It fails with a
// ParseError if the root is not exactly one body element in NSBOSH, or if a
// comment, processing instruction, or non-whitespace character data appears
// directly beneath it, per the well-formedness invariant in spec.md §3.
func ParseBody(data []byte) (*Body, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	tok, err := dec.RawToken()
	if err != nil {
		return nil, &ParseError{Attr: "body", Err: err}
	}
	start, ok := tok.(xml.StartElement)
	if !ok {
		return nil, &ParseError{Attr: "body", Err: ErrMalformedXML}
	}

	declared := map[string]string{"xml": NSXML}
	for _, a := range start.Attr {
		switch {
		case a.Name.Space == "" && a.Name.Local == "xmlns":
			declared[""] = a.Value
		case a.Name.Space == "xmlns":
			declared[a.Name.Local] = a.Value
		}
	}
	resolve := func(prefix string) string {
		if uri, ok := declared[prefix]; ok {
			return uri
		}
		return prefix
	}

	elNS := resolve(start.Name.Space)
	if start.Name.Local != "body" || elNS != NSBOSH {
		return nil, &ParseError{Attr: "body", Value: start.Name.Local, Err: ErrMalformedXML}
	}

	attrs := make(map[QName]string)
	for _, a := range start.Attr {
		if a.Name.Local == "xmlns" || a.Name.Space == "xmlns" {
			continue
		}
		// Unprefixed attributes belong to the body element's namespace, the
		// form in which ToXML writes NSBOSH attributes.
		space := elNS
		if a.Name.Space != "" {
			space = resolve(a.Name.Space)
		}
		attrs[QName{Space: space, Local: a.Name.Local}] = a.Value
	}

	payloadStart := dec.InputOffset()
	var payloadEnd int64
	depth := 0
loop:
	for {
		preOffset := dec.InputOffset()
		tok, err = dec.RawToken()
		if err == io.EOF {
			return nil, &ParseError{Attr: "body", Err: ErrMalformedXML}
		}
		if err != nil {
			return nil, &ParseError{Attr: "body", Err: err}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 {
				payloadEnd = preOffset
				break loop
			}
			depth--
		case xml.CharData:
			if depth == 0 && strings.TrimSpace(string(t)) != "" {
				return nil, &ParseError{Attr: "body", Err: ErrMalformedXML}
			}
		case xml.Comment:
			if depth == 0 {
				return nil, &ParseError{Attr: "body", Err: ErrMalformedXML}
			}
		case xml.ProcInst:
			if depth == 0 {
				return nil, &ParseError{Attr: "body", Err: ErrMalformedXML}
			}
		}
	}

	payload := make([]byte, payloadEnd-payloadStart)
	copy(payload, data[payloadStart:payloadEnd])
	return &Body{attrs: attrs, payload: payload}, nil
}
