// Package app wires configuration, logging, and the recognition engine to the
// command line.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/rbright/parley/internal/audio"
	"github.com/rbright/parley/internal/backend"
	"github.com/rbright/parley/internal/cli"
	"github.com/rbright/parley/internal/config"
	"github.com/rbright/parley/internal/doctor"
	"github.com/rbright/parley/internal/fault"
	"github.com/rbright/parley/internal/logging"
	"github.com/rbright/parley/internal/output"
	"github.com/rbright/parley/internal/pipeline"
	"github.com/rbright/parley/internal/recognize"
	"github.com/rbright/parley/internal/service"
	"github.com/rbright/parley/internal/wav"
)

// FactoryFunc builds the backend factory for one command.
type FactoryFunc func(logger *slog.Logger, provider string) backend.Factory

// Runner executes parley commands. Zero-valued hooks use the real
// environment.
type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger

	NewFactory    FactoryFunc
	SelectAudio   pipeline.SelectFunc
	OpenAudio     pipeline.OpenFunc
	DoctorOptions *doctor.Options
}

var _ cli.Handler = Runner{}

// Execute runs args against a default runner and returns the exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

// Execute runs args and returns the process exit code: 0 on success, 1 on a
// runtime failure, 2 on a usage error.
func (r Runner) Execute(ctx context.Context, args []string) int {
	root := cli.New(r, r.Stdout, r.Stderr)
	root.SetArgs(args)
	cmd, err := root.ExecuteContextC(ctx)
	code := cli.ExitCode(err)
	switch {
	case err == nil:
	case code == 2:
		fmt.Fprintf(r.Stderr, "error: %v\n\n%s", err, cmd.UsageString())
	default:
		fmt.Fprintf(r.Stderr, "error: %s\n", fault.Detail(err))
	}
	return code
}

// runtime is the per-command setup shared by every command that loads config.
type runtime struct {
	logger *slog.Logger
	loaded config.Loaded
	close  func()
}

func (r Runner) setup(globals cli.Globals, command string) (*runtime, error) {
	logRuntime, err := logging.New(logging.Options{Verbose: globals.Verbose})
	if err != nil {
		return nil, fmt.Errorf("setup logging: %w", err)
	}
	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	loaded, err := config.Load(globals.ConfigPath)
	if err != nil {
		logger.Error("load config failed", "error", err.Error())
		_ = logRuntime.Close()
		return nil, fault.New(fault.CodeConfiguration, err, "load config")
	}
	for _, w := range loaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", command,
		"config", loaded.Path,
		"log", logRuntime.Path,
	)
	return &runtime{
		logger: logger,
		loaded: loaded,
		close:  func() { _ = logRuntime.Close() },
	}, nil
}

// service builds a service context and applies the engine bundle.
func (r Runner) service(ctx context.Context, rt *runtime, provider string) (*service.Context, error) {
	newFactory := r.NewFactory
	if newFactory == nil {
		newFactory = func(logger *slog.Logger, provider string) backend.Factory {
			return &backend.DefaultFactory{Logger: logger, Provider: provider}
		}
	}
	svc := service.New(newFactory(rt.logger, provider), rt.logger)
	if _, err := svc.Apply(ctx, rt.loaded.Config.Engine); err != nil {
		_ = svc.Close()
		return nil, err
	}
	return svc, nil
}

func formatOrDefault(format output.Format, cfg config.OutputConfig) output.Format {
	if format != "" {
		return format
	}
	if parsed, err := output.ParseFormat(cfg.Format); err == nil {
		return parsed
	}
	return output.FormatText
}

// Transcribe decodes a WAV file and prints its transcript.
func (r Runner) Transcribe(ctx context.Context, globals cli.Globals, opts cli.TranscribeOptions) error {
	rt, err := r.setup(globals, "transcribe")
	if err != nil {
		return err
	}
	defer rt.close()

	file, err := os.Open(opts.Path)
	if err != nil {
		return fault.New(fault.CodeInvalidInput, err, "open audio")
	}
	decoded, err := wav.Decode(file)
	_ = file.Close()
	if err != nil {
		return fault.New(fault.CodeInvalidInput, err, "decode %s", opts.Path)
	}
	rt.logger.Debug("audio decoded",
		"path", opts.Path,
		"sample_rate", decoded.SampleRate,
		"duration_s", decoded.Duration(),
	)

	svc, err := r.service(ctx, rt, opts.Provider)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	cfg := rt.loaded.Config
	engine := recognize.New(svc, rt.logger, recognize.Options{CapitalizeSentences: cfg.Output.CapitalizeSentences})

	var result recognize.Result
	switch opts.Mode {
	case cli.ModeSegment:
		result, err = engine.ProcessSegmented(ctx, decoded)
	default:
		result, err = engine.Process(ctx, decoded)
	}
	if err != nil {
		return err
	}

	format := formatOrDefault(opts.Format, cfg.Output)
	if err := output.New(r.Stdout, format).Result(result); err != nil {
		return err
	}
	if format == output.FormatText {
		return output.New(r.Stderr, output.FormatText).Summary(result)
	}
	return nil
}

// Devices lists PulseAudio input sources.
func (r Runner) Devices(ctx context.Context, _ cli.Globals) error {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		return fmt.Errorf("no audio devices found")
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%t | muted=%t\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			device.Available,
			device.Muted,
		)
	}
	return nil
}

// Doctor prints the readiness report and fails when any check fails.
func (r Runner) Doctor(ctx context.Context, globals cli.Globals) error {
	rt, err := r.setup(globals, "doctor")
	if err != nil {
		return err
	}
	defer rt.close()

	opts := doctor.DefaultOptions()
	if r.DoctorOptions != nil {
		opts = *r.DoctorOptions
	}
	report := doctor.Run(ctx, rt.loaded, opts)
	fmt.Fprintln(r.Stdout, report.String())
	if !report.OK() {
		return fmt.Errorf("doctor found failing checks")
	}
	return nil
}
