package pager

import "sync/atomic"

// Decision is the process-wide pager choice.
type Decision int32

const (
	Undecided Decision = iota
	Enabled
	Disabled
)

func (d Decision) String() string {
	switch d {
	case Enabled:
		return "enabled"
	case Disabled:
		return "disabled"
	default:
		return "undecided"
	}
}

// Gate holds a Decision that can be written once. The zero value is Undecided.
type Gate struct {
	state atomic.Int32
}

// NewGate returns an undecided gate.
func NewGate() *Gate {
	return &Gate{}
}

// Set moves the gate from Undecided to d. It reports whether this call made
// the decision; later calls, and attempts to set Undecided, are no-ops.
func (g *Gate) Set(d Decision) bool {
	if d != Enabled && d != Disabled {
		return false
	}
	return g.state.CompareAndSwap(int32(Undecided), int32(d))
}

// Get returns the current decision.
func (g *Gate) Get() Decision {
	return Decision(g.state.Load())
}

// Decided reports whether the gate has left Undecided.
func (g *Gate) Decided() bool {
	return g.Get() != Undecided
}
