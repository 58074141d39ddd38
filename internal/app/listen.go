package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rbright/parley/internal/cli"
	"github.com/rbright/parley/internal/config"
	"github.com/rbright/parley/internal/cue"
	"github.com/rbright/parley/internal/ipc"
	"github.com/rbright/parley/internal/output"
	"github.com/rbright/parley/internal/pipeline"
	"github.com/rbright/parley/internal/recognize"
	"github.com/rbright/parley/internal/service"
	"github.com/rbright/parley/internal/session"
)

const (
	probeTimeout   = 180 * time.Millisecond
	acquireRetries = 8
	controlTimeout = 5 * time.Second
)

// Listen runs a live session until it is stopped over the control socket or
// ctx ends. Lines print as their spans close.
func (r Runner) Listen(ctx context.Context, globals cli.Globals, opts cli.ListenOptions) error {
	rt, err := r.setup(globals, "listen")
	if err != nil {
		return err
	}
	defer rt.close()
	cfg := rt.loaded.Config

	socketPath := ipc.SocketPath(cfg.Control.SocketPath)
	listener, err := ipc.Acquire(ctx, socketPath, probeTimeout, acquireRetries)
	if err != nil {
		return err
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	svc, err := r.service(ctx, rt, "")
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	format := formatOrDefault(opts.Format, cfg.Output)
	lines := output.New(r.Stdout, format)
	engine := recognize.New(svc, rt.logger, recognize.Options{CapitalizeSentences: cfg.Output.CapitalizeSentences})
	recorder := pipeline.New(svc, engine, pipeline.Options{
		Audio:    cfg.Audio,
		SavePath: opts.SavePath,
		OnLine: func(line recognize.Line) {
			if err := lines.Line(line); err != nil {
				rt.logger.Warn("write line", "error", err.Error())
			}
		},
		Logger: rt.logger,
		Select: r.SelectAudio,
		Open:   r.OpenAudio,
	})

	commit := session.CommitFunc(func(_ context.Context, result recognize.Result) error {
		if format != output.FormatText {
			return nil
		}
		return output.New(r.Stderr, output.FormatText).Summary(result)
	})
	reload := reloader(rt.logger, rt.loaded.Path, svc)
	controller := session.NewController(rt.logger, recorder, commit, reload)
	if cfg.Audio.Cues {
		player := cue.New(rt.logger, nil)
		controller.Observe(player.Transition)
		defer player.Wait()
	}

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, listener, controller)
	}()

	result := controller.Run(ctx)
	serverCancel()
	if serverErr := <-serverErrCh; serverErr != nil {
		return fmt.Errorf("ipc server failed: %w", serverErr)
	}

	logSessionResult(rt.logger, result)
	if result.Cancelled {
		fmt.Fprintln(r.Stderr, "cancelled")
		return nil
	}
	return result.Err
}

// reloader re-reads the config file the session started from and applies its
// engine bundle.
func reloader(logger *slog.Logger, path string, svc *service.Context) session.Reloader {
	return func(ctx context.Context) ([]string, error) {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		changes, err := svc.Apply(ctx, loaded.Config.Engine)
		if err != nil {
			return nil, err
		}
		changed := make([]string, 0, len(changes))
		for _, capability := range changes {
			changed = append(changed, string(capability))
		}
		logger.Info("config reloaded", "path", path, "changed", changed)
		return changed, nil
	}
}

func logSessionResult(logger *slog.Logger, result session.Result) {
	fields := []any{
		"state", string(result.State),
		"cancelled", result.Cancelled,
		"request_id", result.Transcript.RequestID,
		"started_at", result.StartedAt.Format(time.RFC3339Nano),
		"finished_at", result.FinishedAt.Format(time.RFC3339Nano),
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
		"audio_device", result.AudioDevice,
		"bytes_captured", result.BytesCaptured,
		"lines", len(result.Transcript.Lines),
		"transcription_ms", result.Transcript.TranscriptionLatency.Milliseconds(),
	}

	if result.Err != nil {
		logger.Error("session failed", append(fields, "error", result.Err.Error())...)
		return
	}
	logger.Info("session complete", fields...)
}

// Control forwards one command to the running session.
func (r Runner) Control(ctx context.Context, globals cli.Globals, command ipc.Command) error {
	rt, err := r.setup(globals, string(command))
	if err != nil {
		return err
	}
	defer rt.close()

	socketPath := ipc.SocketPath(rt.loaded.Config.Control.SocketPath)
	resp, err := ipc.Send(ctx, socketPath, ipc.Request{Command: command}, controlTimeout)
	if err != nil {
		if command == ipc.CommandStatus && errors.Is(err, ipc.ErrNoSession) {
			fmt.Fprintln(r.Stdout, "idle")
			return nil
		}
		return fmt.Errorf("forward %s: %w", command, err)
	}
	if !resp.OK {
		return errors.New(resp.Error)
	}

	switch command {
	case ipc.CommandStatus:
		fmt.Fprintf(r.Stdout, "%s lines=%d\n", resp.State, resp.Lines)
	case ipc.CommandReload:
		if len(resp.Changed) > 0 {
			fmt.Fprintf(r.Stdout, "%s: %s\n", resp.Message, strings.Join(resp.Changed, ", "))
		} else {
			fmt.Fprintln(r.Stdout, resp.Message)
		}
	default:
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return nil
}
