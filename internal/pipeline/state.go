package pipeline

import "fmt"

// State is the stage a session is in. Sessions only move forward.
type State int

const (
	StateIdle State = iota
	StateNormalizing
	StateExtracting
	StateMatching
	StateComposing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateNormalizing:
		return "normalizing"
	case StateExtracting:
		return "extracting"
	case StateMatching:
		return "matching"
	case StateComposing:
		return "composing"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// advance returns next if it is a forward move from s.
func (s State) advance(next State) (State, error) {
	if next <= s || next > StateDone {
		return s, fmt.Errorf("invalid state transition %s -> %s", s, next)
	}
	return next, nil
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
