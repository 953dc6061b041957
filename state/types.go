// File: state/types.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package state

import (
	"fmt"
	"time"
)

// State identifies a registered state.
type State uint32

// Standard lifecycle vocabulary, registered by every Manager.
const (
	Uninitialized State = iota
	Initializing
	Initialized
	Ready
	Running
	Paused
	Stopping
	Stopped
	Error
	Terminated
)

// Extended thread-coordination states. They are defined for callers that
// register them explicitly; NewManager does not.
const (
	Idle State = iota + 100
	Waiting
	Working
	Blocked
	Yielding
	BarrierWait
	BarrierReady
	LockWait
	LockAcquired
)

var names = map[State]string{
	Uninitialized: "UNINITIALIZED",
	Initializing:  "INITIALIZING",
	Initialized:   "INITIALIZED",
	Ready:         "READY",
	Running:       "RUNNING",
	Paused:        "PAUSED",
	Stopping:      "STOPPING",
	Stopped:       "STOPPED",
	Error:         "ERROR",
	Terminated:    "TERMINATED",
	Idle:          "IDLE",
	Waiting:       "WAITING",
	Working:       "WORKING",
	Blocked:       "BLOCKED",
	Yielding:      "YIELDING",
	BarrierWait:   "BARRIER_WAIT",
	BarrierReady:  "BARRIER_READY",
	LockWait:      "LOCK_WAIT",
	LockAcquired:  "LOCK_ACQUIRED",
}

func (s State) String() string {
	if n, ok := names[s]; ok {
		return n
	}
	return fmt.Sprintf("STATE(%d)", uint32(s))
}

// Flags qualify a registered state.
type Flags uint8

const (
	FlagTransient Flags = 1 << iota
	FlagCritical
	FlagTerminal

	FlagNone Flags = 0
)

// Info describes a registered state.
type Info struct {
	State       State
	Name        string
	Description string
	Flags       Flags
}

// Result is the outcome of a transition attempt.
type Result int

const (
	ResultSuccess Result = iota
	ResultInvalid
	ResultBlocked
	ResultError
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "SUCCESS"
	case ResultInvalid:
		return "INVALID"
	case ResultBlocked:
		return "BLOCKED"
	case ResultError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// Event is delivered to change callbacks after a successful transition.
type Event struct {
	EntityID  uint64
	OldState  State
	NewState  State
	Timestamp time.Time
	Context   any
}

// Validator decides whether a ruled transition may proceed. It receives the
// machine context.
type Validator func(ctx any) bool

// Action runs when its rule's transition succeeds. It receives the machine
// context.
type Action func(ctx any)

// Callback observes every successful transition.
type Callback func(ev Event)

// CallbackID identifies a registered callback for later removal.
type CallbackID uint64

// Rule is an explicit transition between two states.
type Rule struct {
	From     State
	To       State
	Validate Validator
	OnEnter  Action
}
