package bosh

import (
	"bytes"
	"reflect"
	"testing"
)

func TestBodyRoundTrip(t *testing.T) {
	t.Parallel()
	orig := NewBuilder().
		SetAttr("sid", "abc123").
		SetAttr("rid", "42").
		Set(XMLQName("lang"), "en").
		SetPayload([]byte(`<message xmlns="jabber:client"><body>hi</body></message>`)).
		Build()

	xmlBytes := orig.ToXML()
	parsed, err := ParseBody(xmlBytes)
	if err != nil {
		t.Fatalf("ParseBody: %v", err)
	}

	if !reflect.DeepEqual(orig.Attributes(), parsed.Attributes()) {
		t.Errorf("attributes differ:\ngot  %v\nwant %v", parsed.Attributes(), orig.Attributes())
	}
	if !bytes.Equal(orig.Payload(), parsed.Payload()) {
		t.Errorf("payload differs:\ngot  %q\nwant %q", parsed.Payload(), orig.Payload())
	}
}

func TestBodyRoundTripEmptyPayload(t *testing.T) {
	t.Parallel()
	orig := NewBuilder().SetAttr("rid", "1").Build()
	parsed, err := ParseBody(orig.ToXML())
	if err != nil {
		t.Fatalf("ParseBody: %v", err)
	}
	if len(parsed.Payload()) != 0 {
		t.Errorf("expected empty payload, got %q", parsed.Payload())
	}
	if v, ok := parsed.Attr("rid"); !ok || v != "1" {
		t.Errorf("rid attribute: got (%q,%v), want (1,true)", v, ok)
	}
}

func TestParseBodyRejectsWrongRoot(t *testing.T) {
	t.Parallel()
	_, err := ParseBody([]byte(`<notbody xmlns="http://jabber.org/protocol/httpbind"/>`))
	if err == nil {
		t.Fatal("expected ParseError for wrong root element")
	}
}

func TestParseBodyRejectsWrongNamespace(t *testing.T) {
	t.Parallel()
	_, err := ParseBody([]byte(`<body xmlns="urn:not-bosh"/>`))
	if err == nil {
		t.Fatal("expected ParseError for wrong namespace")
	}
}

func TestParseBodyRejectsCommentAtBodyLevel(t *testing.T) {
	t.Parallel()
	xml := `<body xmlns="http://jabber.org/protocol/httpbind"><!-- nope --></body>`
	_, err := ParseBody([]byte(xml))
	if err == nil {
		t.Fatal("expected ParseError for comment directly under body")
	}
}

func TestParseBodyRejectsCharDataAtBodyLevel(t *testing.T) {
	t.Parallel()
	xml := `<body xmlns="http://jabber.org/protocol/httpbind">not allowed</body>`
	_, err := ParseBody([]byte(xml))
	if err == nil {
		t.Fatal("expected ParseError for character data directly under body")
	}
}

func TestParseBodyAllowsCharDataInsideChild(t *testing.T) {
	t.Parallel()
	xml := `<body xmlns="http://jabber.org/protocol/httpbind"><m>text is fine here</m></body>`
	b, err := ParseBody([]byte(xml))
	if err != nil {
		t.Fatalf("ParseBody: %v", err)
	}
	if !bytes.Contains(b.Payload(), []byte("text is fine here")) {
		t.Errorf("expected payload to retain child char data, got %q", b.Payload())
	}
}

func TestBuilderPreservesUnmodifiedAttributes(t *testing.T) {
	t.Parallel()
	orig := NewBuilder().SetAttr("sid", "X").SetAttr("rid", "1").Build()
	next := orig.Rebuild().SetAttr("rid", "2").Build()

	if v, _ := next.Attr("sid"); v != "X" {
		t.Errorf("expected sid preserved, got %q", v)
	}
	if v, _ := next.Attr("rid"); v != "2" {
		t.Errorf("expected rid overridden, got %q", v)
	}
}

func TestBuilderUnsetRemovesAttribute(t *testing.T) {
	t.Parallel()
	orig := NewBuilder().SetAttr("sid", "X").Build()
	next := orig.Rebuild().Unset(NewQName("sid")).Build()
	if _, ok := next.Attr("sid"); ok {
		t.Errorf("expected sid removed")
	}
}
