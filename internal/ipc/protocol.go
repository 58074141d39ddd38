// Package ipc carries live-session control commands over a unix socket,
// one JSON request and one JSON response per connection.
package ipc

import (
	"fmt"
	"strings"
)

// Command names a live-session control action.
type Command string

const (
	CommandStatus Command = "status"
	CommandPause  Command = "pause"
	CommandResume Command = "resume"
	CommandStop   Command = "stop"
	CommandCancel Command = "cancel"
	CommandReload Command = "reload"
)

// Commands lists every command a session answers.
var Commands = []Command{CommandStatus, CommandPause, CommandResume, CommandStop, CommandCancel, CommandReload}

// ParseCommand accepts a command name case-insensitively.
func ParseCommand(name string) (Command, error) {
	candidate := Command(strings.ToLower(strings.TrimSpace(name)))
	for _, command := range Commands {
		if candidate == command {
			return command, nil
		}
	}
	return "", fmt.Errorf("unknown command %q", name)
}

type Request struct {
	Command Command `json:"command"`
}

type Response struct {
	OK      bool   `json:"ok"`
	State   string `json:"state,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	// Lines counts transcript lines recorded so far in the session.
	Lines int `json:"lines,omitempty"`
	// Changed lists capabilities rebuilt by a reload.
	Changed []string `json:"changed,omitempty"`
}

// Failure builds an error response.
func Failure(state string, err error) Response {
	return Response{OK: false, State: state, Error: err.Error()}
}
