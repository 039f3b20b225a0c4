package monitor

import (
	"fmt"
	"time"
)

// State is a position in the monitor's check cycle.
//
//	IDLE -(tick | file event)-> CHECKING -> HEALTHY | CORRUPT_RECOVERABLE | CORRUPT_UNRECOVERABLE -> IDLE
//
// MISSING and UNREADABLE are also terminal for a cycle: the primary is absent,
// or exists but cannot be read. Neither triggers a restore.
type State int

const (
	StateIdle State = iota
	StateChecking
	StateHealthy
	StateCorruptRecoverable
	StateCorruptUnrecoverable
	StateMissing
	StateUnreadable
)

// String returns the upper-case state name used in logs, metrics and history.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateChecking:
		return "CHECKING"
	case StateHealthy:
		return "HEALTHY"
	case StateCorruptRecoverable:
		return "CORRUPT_RECOVERABLE"
	case StateCorruptUnrecoverable:
		return "CORRUPT_UNRECOVERABLE"
	case StateMissing:
		return "MISSING"
	case StateUnreadable:
		return "UNREADABLE"
	default:
		return "UNKNOWN"
	}
}

// ParseState is the inverse of String. Unknown names return StateIdle and false.
func ParseState(name string) (State, bool) {
	for s := StateIdle; s <= StateUnreadable; s++ {
		if s.String() == name {
			return s, true
		}
	}
	return StateIdle, false
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(text []byte) error {
	st, ok := ParseState(string(text))
	if !ok {
		return fmt.Errorf("unknown monitor state %q", text)
	}
	*s = st
	return nil
}

// Outcome records one check cycle.
type Outcome struct {
	CheckID  string        `json:"check_id" yaml:"check_id"`
	Path     string        `json:"path" yaml:"path"`
	State    State         `json:"state" yaml:"state"`
	Started  time.Time     `json:"started" yaml:"started"`
	Duration time.Duration `json:"duration" yaml:"duration"`

	// Events is the record count of a healthy or restored primary.
	Events int `json:"events" yaml:"events"`

	// Reason explains why the primary failed validation.
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`

	Snapshot bool `json:"snapshot" yaml:"snapshot"`
	Restored bool `json:"restored" yaml:"restored"`

	// Err is the error of the cycle's snapshot or restore step, if any.
	Err string `json:"error,omitempty" yaml:"error,omitempty"`

	// ConsecutiveFailures counts unrecoverable cycles in a row, including this one.
	ConsecutiveFailures int `json:"consecutive_failures" yaml:"consecutive_failures"`
}
