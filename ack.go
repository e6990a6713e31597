package bosh

import "sort"

// ackState is the ack bookkeeping from spec.md §3/§4.5, owned exclusively
// by the scheduler under its session lock.
type ackState struct {
	// responseAck is the highest RID whose response has been received with
	// no gaps below it. -1 is the initial sentinel.
	responseAck int64

	// pendingResponseAcks holds received RIDs above responseAck that are
	// not yet contiguous with it.
	pendingResponseAcks map[int64]bool

	// pendingRequestAcks is the ordered list of requests the CM has not
	// yet acked. Populated only once ack-flag is known true.
	pendingRequestAcks []*Exchange
}

func newAckState() *ackState {
	return &ackState{
		responseAck:         -1,
		pendingResponseAcks: make(map[int64]bool),
	}
}

// trackRequest records exch as awaiting a CM ack. Callers gate this on the
// session's negotiated ack-flag; ackState itself has no opinion on whether
// acking is active.
func (a *ackState) trackRequest(exch *Exchange) {
	a.pendingRequestAcks = append(a.pendingRequestAcks, exch)
}

// ackRequestsUpTo removes every pending request-ack entry at or below
// ackUpTo, the CM→client direction of spec.md §4.5.
func (a *ackState) ackRequestsUpTo(ackUpTo int64) {
	kept := a.pendingRequestAcks[:0]
	for _, e := range a.pendingRequestAcks {
		if e.rid > ackUpTo {
			kept = append(kept, e)
		}
	}
	a.pendingRequestAcks = kept
}

// integrateResponseAck runs the client→CM half of spec.md §4.5: advance
// responseAck while the pending set contains the next contiguous RID. This
// is the rule DESIGN NOTES calls out as off-by-one-hazardous; it must start
// from responseAck+1 and never skip ahead.
func (a *ackState) integrateResponseAck(rid int64) {
	if a.responseAck == -1 {
		a.responseAck = rid
		return
	}
	if rid <= a.responseAck {
		return
	}
	a.pendingResponseAcks[rid] = true
	for a.pendingResponseAcks[a.responseAck+1] {
		a.responseAck++
		delete(a.pendingResponseAcks, a.responseAck)
	}
}

// findPendingRequest locates the pending-request-ack entry for rid, for ack
// report resolution.
func (a *ackState) findPendingRequest(rid int64) *Exchange {
	for _, e := range a.pendingRequestAcks {
		if e.rid == rid {
			return e
		}
	}
	return nil
}

// sortedPendingRIDs is used only by tests to assert ordering invariants
// without exposing the internal slice representation.
func (a *ackState) sortedPendingRIDs() []int64 {
	out := make([]int64, 0, len(a.pendingRequestAcks))
	for _, e := range a.pendingRequestAcks {
		out = append(out, e.rid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
