package bosh

import "testing"

func TestRIDSeqMonotonic(t *testing.T) {
	t.Parallel()
	seq, err := newRIDSeq()
	if err != nil {
		t.Fatalf("newRIDSeq: %v", err)
	}
	prev := seq.Peek() - 1
	for i := 0; i < 1000; i++ {
		v := seq.Next()
		if v != prev+1 {
			t.Fatalf("rid %d: got %d, want %d", i, v, prev+1)
		}
		if v < 1 || v >= ridCeiling {
			t.Fatalf("rid %d out of range: %d", i, v)
		}
		prev = v
	}
}

func TestRIDSeqInitialHeadroom(t *testing.T) {
	t.Parallel()
	for i := 0; i < 1000; i++ {
		seq, err := newRIDSeq()
		if err != nil {
			t.Fatalf("newRIDSeq: %v", err)
		}
		start := seq.Peek()
		if start < 1 || start >= ridCeiling-ridHeadroom {
			t.Fatalf("initial rid %d outside [1, 2^53-2^32)", start)
		}
	}
}

func TestRIDSeqNoCollisions(t *testing.T) {
	const n = 150000
	seen := make(map[int64]bool, n)
	for i := 0; i < n; i++ {
		seq, err := newRIDSeq()
		if err != nil {
			t.Fatalf("newRIDSeq: %v", err)
		}
		start := seq.Peek()
		if seen[start] {
			t.Fatalf("collision on initial rid %d after %d sequences", start, i)
		}
		seen[start] = true
	}
}
