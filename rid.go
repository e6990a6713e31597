package bosh

import (
	"crypto/rand"
	"encoding/binary"
)

// ridCeiling is 2^53, the upper bound on any RID per spec.md §3.
const ridCeiling = int64(1) << 53

// ridHeadroom is 2^32, the minimum distance the initial RID must keep below
// ridCeiling so a long session cannot overflow it.
const ridHeadroom = int64(1) << 32

// ridSeq generates the initial request ID and every successive increment
// for one session. It is not safe for concurrent use; the scheduler owns it
// exclusively under the session lock.
type ridSeq struct {
	next int64
}

// newRIDSeq draws a cryptographically random starting RID uniformly in
// [1, 2^53 - 2^32), the same rand.Read-based approach the connection-manager
// side uses to mint session identifiers.
func newRIDSeq() (*ridSeq, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return nil, &TransportError{Err: err}
	}
	span := uint64(ridCeiling - ridHeadroom - 1)
	start := int64(binary.BigEndian.Uint64(buf[:])%span) + 1
	return &ridSeq{next: start}, nil
}

// Next returns the next RID in the sequence, strictly one greater than the
// last value returned.
func (s *ridSeq) Next() int64 {
	v := s.next
	s.next++
	return v
}

// Peek returns the RID Next will return without consuming it.
func (s *ridSeq) Peek() int64 { return s.next }
