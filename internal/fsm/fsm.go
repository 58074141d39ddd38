// Package fsm defines the live-session state machine.
package fsm

import "fmt"

// State is a live-session state.
type State string

// Event drives a State change.
type Event string

const (
	StateIdle         State = "idle"
	StateListening    State = "listening"
	StatePaused       State = "paused"
	StateTranscribing State = "transcribing"
	StateError        State = "error"
)

const (
	EventStart       Event = "start"
	EventPause       Event = "pause"
	EventResume      Event = "resume"
	EventStop        Event = "stop"
	EventCancel      Event = "cancel"
	EventTranscribed Event = "transcribed"
	EventFail        Event = "fail"
	EventReset       Event = "reset"
)

var transitions = map[State]map[Event]State{
	StateIdle: {
		EventStart: StateListening,
	},
	StateListening: {
		EventPause:  StatePaused,
		EventStop:   StateTranscribing,
		EventCancel: StateIdle,
	},
	StatePaused: {
		EventResume: StateListening,
		EventStop:   StateTranscribing,
		EventCancel: StateIdle,
	},
	StateTranscribing: {
		EventTranscribed: StateIdle,
	},
	StateError: {
		EventReset: StateIdle,
	},
}

// Transition returns the state after event. A disallowed event leaves the
// state unchanged and returns an error. EventFail is accepted everywhere.
func Transition(current State, event Event) (State, error) {
	if event == EventFail {
		return StateError, nil
	}
	edges, ok := transitions[current]
	if !ok {
		return current, fmt.Errorf("unknown state %q", current)
	}
	next, ok := edges[event]
	if !ok {
		return current, fmt.Errorf("invalid transition: %s on %s", current, event)
	}
	return next, nil
}

// Capturing reports whether audio is being accepted or held paused.
func (s State) Capturing() bool {
	return s == StateListening || s == StatePaused
}
