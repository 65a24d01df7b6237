package obs

import "sync/atomic"

// Sequence creates monotonically increasing request ids for stream requests.
type Sequence struct {
	next uint64
}

// NewSequence returns a sequence whose first id is seed+1.
func NewSequence(seed uint64) *Sequence {
	return &Sequence{next: seed}
}

// Next returns the next id.
func (s *Sequence) Next() uint64 {
	if s == nil {
		return 0
	}
	return atomic.AddUint64(&s.next, 1)
}
