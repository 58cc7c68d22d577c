package entity

import "fmt"

// ProbeState tracks a single hostname probe through the engine
type ProbeState int

const (
	Pending ProbeState = iota
	InFlight
	Succeeded
	Failed
)

func (s ProbeState) String() string {
	switch s {
	case Pending:
		return "pending"
	case InFlight:
		return "in-flight"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("ProbeState(%d)", int(s))
}

// Terminal reports whether no further transition is possible
func (s ProbeState) Terminal() bool {
	return s == Succeeded || s == Failed
}

// Advance moves the state to next.
// Only Pending -> InFlight and InFlight -> {Succeeded, Failed} are legal.
func (s ProbeState) Advance(next ProbeState) (ProbeState, error) {
	switch {
	case s == Pending && next == InFlight:
	case s == InFlight && next.Terminal():
	default:
		return s, fmt.Errorf("illegal probe transition %s -> %s", s, next)
	}
	return next, nil
}
