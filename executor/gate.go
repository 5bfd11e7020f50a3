package executor

import "math"

// Gate decides whether a frame with the given timestamp may be emitted now.
type Gate interface {
	Admit(timestamp int64) bool
}

// OrderingGate merges independently advancing streams into timestamp order.
// Each unit offers the timestamp of its next frame. An offer that is not the
// lowest one seen since the last admission lowers the candidate and is
// refused; the unit retries later. An offer equal to the candidate is
// admitted and the candidate resets. It is not safe for concurrent use.
type OrderingGate struct {
	next int64
}

func NewOrderingGate() *OrderingGate {
	return &OrderingGate{next: math.MaxInt64}
}

func (g *OrderingGate) Admit(timestamp int64) bool {
	if timestamp != g.next {
		if timestamp < g.next {
			g.next = timestamp
		}
		return false
	}
	g.next = math.MaxInt64
	return true
}

// Pending is the current candidate, math.MaxInt64 when there is none.
func (g *OrderingGate) Pending() int64 {
	return g.next
}

type unorderedGate struct{}

func (unorderedGate) Admit(int64) bool { return true }

// UnorderedGate admits every frame immediately.
var UnorderedGate Gate = unorderedGate{}
