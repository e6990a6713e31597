package bosh

import "testing"

func TestFromSessionInitRequiresSID(t *testing.T) {
	t.Parallel()
	resp := NewBuilder().SetAttr("wait", "60").Build()
	_, err := fromSessionInit(1, resp)
	if err == nil {
		t.Fatal("expected ProtocolError for missing sid")
	}
}

func TestFromSessionInitDefaultsWhenLegacy(t *testing.T) {
	t.Parallel()
	resp := NewBuilder().SetAttr("sid", "X").SetAttr("wait", "1").Build()
	p, err := fromSessionInit(7, resp)
	if err != nil {
		t.Fatalf("fromSessionInit: %v", err)
	}
	if p.Requests != 1 {
		t.Errorf("requests: got %d, want 1 (legacy default)", p.Requests)
	}
	if !p.Version.IsZero() {
		t.Errorf("expected zero version, got %v", p.Version)
	}
}

func TestFromSessionInitDefaultsWhenVersionAdvertised(t *testing.T) {
	t.Parallel()
	resp := NewBuilder().SetAttr("sid", "X").SetAttr("wait", "1").SetAttr("ver", "1.6").Build()
	p, err := fromSessionInit(7, resp)
	if err != nil {
		t.Fatalf("fromSessionInit: %v", err)
	}
	if p.Requests != 2 {
		t.Errorf("requests: got %d, want 2 (version-advertised default)", p.Requests)
	}
}

func TestFromSessionInitExplicitRequests(t *testing.T) {
	t.Parallel()
	resp := NewBuilder().SetAttr("sid", "X").SetAttr("wait", "1").SetAttr("requests", "5").Build()
	p, err := fromSessionInit(7, resp)
	if err != nil {
		t.Fatalf("fromSessionInit: %v", err)
	}
	if p.Requests != 5 {
		t.Errorf("requests: got %d, want 5", p.Requests)
	}
}

func TestFromSessionInitAckFlagMatchesRID(t *testing.T) {
	t.Parallel()
	resp := NewBuilder().SetAttr("sid", "X").SetAttr("wait", "1").SetAttr("ack", "7").Build()
	p, err := fromSessionInit(7, resp)
	if err != nil {
		t.Fatalf("fromSessionInit: %v", err)
	}
	if !p.AckEnabled {
		t.Error("expected AckEnabled true when ack echoes session-creation rid")
	}
}

func TestFromSessionInitAckFlagMismatch(t *testing.T) {
	t.Parallel()
	resp := NewBuilder().SetAttr("sid", "X").SetAttr("wait", "1").SetAttr("ack", "99").Build()
	p, err := fromSessionInit(7, resp)
	if err != nil {
		t.Fatalf("fromSessionInit: %v", err)
	}
	if p.AckEnabled {
		t.Error("expected AckEnabled false when ack does not match session-creation rid")
	}
}

func TestFromSessionInitMalformedNumericAttr(t *testing.T) {
	t.Parallel()
	resp := NewBuilder().SetAttr("sid", "X").SetAttr("inactivity", "forever").Build()
	if _, err := fromSessionInit(1, resp); err == nil {
		t.Fatal("expected ParseError for malformed inactivity")
	}
}
