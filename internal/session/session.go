// Package session drives one live listening lifecycle and answers control
// commands while it runs.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rbright/parley/internal/fsm"
	"github.com/rbright/parley/internal/ipc"
	"github.com/rbright/parley/internal/recognize"
)

type action int

const (
	actionStop action = iota + 1
	actionCancel
)

// stopTimeout bounds draining the spans still queued when capture stops.
const stopTimeout = 2 * time.Minute

// Result is the outcome of one Run.
type Result struct {
	State         fsm.State
	Transcript    recognize.Result
	Cancelled     bool
	Err           error
	AudioDevice   string
	BytesCaptured int64
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Controller owns the session state machine.
type Controller struct {
	logger   *slog.Logger
	recorder Recorder
	commit   Committer
	reload   Reloader

	mu        sync.RWMutex
	state     fsm.State
	observers []func(from, to fsm.State)

	actions chan action
}

// NewController returns an idle controller. A nil committer discards the
// transcript; a nil reloader rejects reload requests.
func NewController(logger *slog.Logger, recorder Recorder, committer Committer, reload Reloader) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if committer == nil {
		committer = CommitFunc(func(context.Context, recognize.Result) error { return nil })
	}
	return &Controller{
		logger:   logger,
		recorder: recorder,
		commit:   committer,
		reload:   reload,
		state:    fsm.StateIdle,
		actions:  make(chan action, 1),
	}
}

// Observe registers fn to run on every state change. fn runs with the state
// locked, in transition order, and must not block or call back into c.
func (c *Controller) Observe(fn func(from, to fsm.State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// State returns the current state.
func (c *Controller) State() fsm.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Controller) transition(event fsm.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := fsm.Transition(c.state, event)
	if err != nil {
		return err
	}
	c.logger.Debug("session transition", "from", string(c.state), "event", string(event), "to", string(next))
	from := c.state
	c.state = next
	for _, fn := range c.observers {
		fn(from, next)
	}
	return nil
}

// Run starts capture and blocks until the session is stopped, cancelled,
// fails, or ctx ends.
func (c *Controller) Run(ctx context.Context) (result Result) {
	result.StartedAt = time.Now()
	defer func() {
		result.State = c.State()
		result.FinishedAt = time.Now()
	}()

	if err := c.transition(fsm.EventStart); err != nil {
		result.Err = err
		return result
	}
	if err := c.recorder.Start(ctx); err != nil {
		c.fail()
		result.Err = err
		return result
	}

	select {
	case <-ctx.Done():
		_ = c.recorder.Cancel(context.Background())
		c.fail()
		result.Err = ctx.Err()
		return result
	case <-c.recorder.Done():
		// Transcription ended early; Stop surfaces its error.
		return c.stop(ctx, result)
	case a := <-c.actions:
		switch a {
		case actionCancel:
			_ = c.recorder.Cancel(context.Background())
			_ = c.transition(fsm.EventCancel)
			result.Cancelled = true
			return result
		case actionStop:
			return c.stop(ctx, result)
		default:
			c.fail()
			result.Err = fmt.Errorf("unknown action %d", a)
			return result
		}
	}
}

func (c *Controller) stop(ctx context.Context, result Result) Result {
	if err := c.transition(fsm.EventStop); err != nil {
		_ = c.recorder.Cancel(context.Background())
		c.fail()
		result.Err = err
		return result
	}

	stopCtx, cancel := context.WithTimeout(ctx, stopTimeout)
	defer cancel()
	stopped, err := c.recorder.Stop(stopCtx)
	result.Transcript = stopped.Result
	result.AudioDevice = stopped.AudioDevice
	result.BytesCaptured = stopped.BytesCaptured

	switch {
	case err != nil:
		result.Err = err
	case len(stopped.Result.Lines) == 0:
		result.Err = ErrEmptyTranscript
	default:
		result.Err = c.commit.Commit(ctx, stopped.Result)
	}
	if result.Err != nil {
		c.fail()
		return result
	}
	if err := c.transition(fsm.EventTranscribed); err != nil {
		result.Err = err
	}
	return result
}

// fail records the error state and returns to idle.
func (c *Controller) fail() {
	_ = c.transition(fsm.EventFail)
	_ = c.transition(fsm.EventReset)
}

// Handle answers one control request.
func (c *Controller) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	return ipc.Mux{
		ipc.CommandStatus: c.status,
		ipc.CommandPause:  c.pause,
		ipc.CommandResume: c.resume,
		ipc.CommandStop:   func(context.Context, ipc.Request) ipc.Response { return c.request(actionStop) },
		ipc.CommandCancel: func(context.Context, ipc.Request) ipc.Response { return c.request(actionCancel) },
		ipc.CommandReload: c.reloadConfig,
	}.Handle(ctx, req)
}

func (c *Controller) status(context.Context, ipc.Request) ipc.Response {
	state := c.State()
	resp := ipc.Response{OK: true, State: string(state), Message: "status"}
	if state != fsm.StateIdle {
		resp.Lines = c.recorder.Lines()
	}
	return resp
}

func (c *Controller) pause(ctx context.Context, _ ipc.Request) ipc.Response {
	state := c.State()
	if state != fsm.StateListening {
		return ipc.Response{OK: false, State: string(state), Error: fmt.Sprintf("cannot pause from state %s", state)}
	}
	if err := c.recorder.Pause(ctx); err != nil {
		return ipc.Failure(string(state), err)
	}
	if err := c.transition(fsm.EventPause); err != nil {
		return ipc.Failure(string(c.State()), err)
	}
	return ipc.Response{OK: true, State: string(c.State()), Message: "paused"}
}

func (c *Controller) resume(ctx context.Context, _ ipc.Request) ipc.Response {
	state := c.State()
	if state != fsm.StatePaused {
		return ipc.Response{OK: false, State: string(state), Error: fmt.Sprintf("cannot resume from state %s", state)}
	}
	if err := c.recorder.Resume(ctx); err != nil {
		return ipc.Failure(string(state), err)
	}
	if err := c.transition(fsm.EventResume); err != nil {
		return ipc.Failure(string(c.State()), err)
	}
	return ipc.Response{OK: true, State: string(c.State()), Message: "resumed"}
}

// request queues stop or cancel for Run.
func (c *Controller) request(a action) ipc.Response {
	name := "stop"
	if a == actionCancel {
		name = "cancel"
	}
	state := c.State()
	switch {
	case state == fsm.StateTranscribing:
		return ipc.Response{OK: false, State: string(state), Error: "already transcribing"}
	case !state.Capturing():
		return ipc.Response{OK: false, State: string(state), Error: fmt.Sprintf("cannot %s from state %s", name, state)}
	}

	select {
	case c.actions <- a:
		return ipc.Response{OK: true, State: string(state), Message: name + " requested"}
	default:
		return ipc.Response{OK: true, State: string(state), Message: "already requested"}
	}
}

func (c *Controller) reloadConfig(ctx context.Context, _ ipc.Request) ipc.Response {
	state := string(c.State())
	if c.reload == nil {
		return ipc.Response{OK: false, State: state, Error: "reload is not available"}
	}
	changed, err := c.reload(ctx)
	if err != nil {
		c.logger.Error("reload failed", "error", err.Error())
		return ipc.Failure(state, err)
	}
	message := "configuration unchanged"
	if len(changed) > 0 {
		message = "configuration applied"
	}
	c.logger.Info("reload", "changed", changed)
	return ipc.Response{OK: true, State: state, Message: message, Changed: changed}
}
