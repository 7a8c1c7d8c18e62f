package mutation

import (
	"fmt"
	"time"
)

// State is the lifecycle position of a single submit
type State int32

const (
	StateIdle State = iota
	StateOptimisticApplied
	StateSettledOK
	StateSettledRolledBack
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOptimisticApplied:
		return "optimistic-applied"
	case StateSettledOK:
		return "settled-ok"
	case StateSettledRolledBack:
		return "settled-rolled-back"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Settled reports whether s is terminal
func (s State) Settled() bool {
	return s == StateSettledOK || s == StateSettledRolledBack
}

// Outcome is the result of a settled submit
type Outcome struct {
	Key      string
	State    State
	Err      error
	Duration time.Duration
}

// OK reports whether the remote write succeeded
func (o Outcome) OK() bool {
	return o.State == StateSettledOK
}

// RemoteWriteError is reported when the remote write of a submit fails.
// By the time it is returned the cache has been rolled back.
type RemoteWriteError struct {
	Key string
	Err error
}

func (e *RemoteWriteError) Error() string {
	return fmt.Sprintf("remote write for %q failed: %v", e.Key, e.Err)
}

func (e *RemoteWriteError) Unwrap() error {
	return e.Err
}
