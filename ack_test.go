package bosh

import "testing"

func TestAckStateInitialSentinel(t *testing.T) {
	t.Parallel()
	a := newAckState()
	if a.responseAck != -1 {
		t.Errorf("got %d, want -1", a.responseAck)
	}
}

func TestAckStateFirstResponseSetsResponseAck(t *testing.T) {
	t.Parallel()
	a := newAckState()
	a.integrateResponseAck(5)
	if a.responseAck != 5 {
		t.Errorf("got %d, want 5", a.responseAck)
	}
}

func TestAckStateAdvancesContiguously(t *testing.T) {
	t.Parallel()
	a := newAckState()
	a.integrateResponseAck(1)
	a.integrateResponseAck(3)
	if a.responseAck != 1 {
		t.Fatalf("got %d, want 1 (gap at 2)", a.responseAck)
	}
	if !a.pendingResponseAcks[3] {
		t.Fatalf("expected 3 pending")
	}
	a.integrateResponseAck(2)
	if a.responseAck != 3 {
		t.Fatalf("got %d, want 3 after gap filled", a.responseAck)
	}
	if len(a.pendingResponseAcks) != 0 {
		t.Fatalf("expected pending set drained, got %v", a.pendingResponseAcks)
	}
}

func TestAckStateOutOfOrderArrivalDoesNotRegress(t *testing.T) {
	t.Parallel()
	a := newAckState()
	a.integrateResponseAck(1)
	a.integrateResponseAck(2)
	a.integrateResponseAck(2) // duplicate / already-seen, must be a no-op
	if a.responseAck != 2 {
		t.Fatalf("got %d, want 2", a.responseAck)
	}
}

func TestAckStateRequestAckRemovesUpToInclusive(t *testing.T) {
	t.Parallel()
	a := newAckState()
	e1 := &Exchange{rid: 1}
	e2 := &Exchange{rid: 2}
	e3 := &Exchange{rid: 3}
	a.trackRequest(e1)
	a.trackRequest(e2)
	a.trackRequest(e3)

	a.ackRequestsUpTo(2)

	got := a.sortedPendingRIDs()
	if len(got) != 1 || got[0] != 3 {
		t.Fatalf("got %v, want [3]", got)
	}
}

func TestAckStateFindPendingRequest(t *testing.T) {
	t.Parallel()
	a := newAckState()
	e := &Exchange{rid: 42}
	a.trackRequest(e)
	if found := a.findPendingRequest(42); found != e {
		t.Fatalf("expected to find exchange for rid 42")
	}
	if found := a.findPendingRequest(7); found != nil {
		t.Fatalf("expected nil for unknown rid, got %v", found)
	}
}
