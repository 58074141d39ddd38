package session

import (
	"context"
	"errors"

	"github.com/rbright/parley/internal/recognize"
)

// ErrEmptyTranscript indicates the session ended without any recognized speech.
var ErrEmptyTranscript = errors.New("no speech recognized; check microphone input or mute state")

// StopResult is what a recorder hands back when capture ends.
type StopResult struct {
	Result        recognize.Result
	AudioDevice   string
	BytesCaptured int64
}

// Recorder is the live capture and transcription the controller drives.
type Recorder interface {
	Start(context.Context) error
	Pause(context.Context) error
	Resume(context.Context) error
	Stop(context.Context) (StopResult, error)
	Cancel(context.Context) error
	// Lines counts lines transcribed so far.
	Lines() int
	// Done closes if transcription ends on its own, e.g. after a backend failure.
	Done() <-chan struct{}
}

// Committer delivers a finished transcript.
type Committer interface {
	Commit(context.Context, recognize.Result) error
}

// CommitFunc adapts a function to Committer.
type CommitFunc func(context.Context, recognize.Result) error

func (f CommitFunc) Commit(ctx context.Context, result recognize.Result) error {
	return f(ctx, result)
}

// Reloader re-reads configuration and applies it, returning the rebuilt
// capabilities.
type Reloader func(context.Context) ([]string, error)
