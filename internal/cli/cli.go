// Package cli declares the parley command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rbright/parley/internal/ipc"
	"github.com/rbright/parley/internal/output"
	"github.com/rbright/parley/internal/sherpa"
	"github.com/rbright/parley/internal/version"
)

// Mode selects how a file is transcribed.
type Mode string

const (
	// ModeDiarize attributes every line to a speaker.
	ModeDiarize Mode = "diarize"
	// ModeSegment splits on voice activity only.
	ModeSegment Mode = "segment"
)

// ParseMode accepts a case-insensitive mode name.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeDiarize:
		return ModeDiarize, nil
	case ModeSegment:
		return ModeSegment, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want diarize or segment)", value)
	}
}

// Globals are the persistent flags every command sees.
type Globals struct {
	ConfigPath string
	Verbose    bool
}

type TranscribeOptions struct {
	Path     string
	Mode     Mode
	Format   output.Format
	Provider string
}

type ListenOptions struct {
	Format   output.Format
	SavePath string
}

type ServeOptions struct {
	Listen   string
	Provider string
}

// Handler runs the commands.
type Handler interface {
	Transcribe(ctx context.Context, globals Globals, opts TranscribeOptions) error
	Listen(ctx context.Context, globals Globals, opts ListenOptions) error
	Control(ctx context.Context, globals Globals, command ipc.Command) error
	Devices(ctx context.Context, globals Globals) error
	Doctor(ctx context.Context, globals Globals) error
	Serve(ctx context.Context, globals Globals, opts ServeOptions) error
}

// UsageError marks a command line the user must fix.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }
func (e *UsageError) Unwrap() error { return e.Err }

func usage(err error) error {
	if err == nil {
		return nil
	}
	return &UsageError{Err: err}
}

func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		return usage(check(cmd, args))
	}
}

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	var usageErr *UsageError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &usageErr):
		return 2
	default:
		return 1
	}
}

var controlShort = map[ipc.Command]string{
	ipc.CommandStatus: "Print the live session state",
	ipc.CommandPause:  "Pause the live session",
	ipc.CommandResume: "Resume a paused live session",
	ipc.CommandStop:   "Stop listening and print the transcript",
	ipc.CommandCancel: "Stop listening and discard the transcript",
	ipc.CommandReload: "Re-read the config file in the live session",
}

// New builds the root command. Output and errors go to stdout and stderr.
func New(h Handler, stdout, stderr io.Writer) *cobra.Command {
	var globals Globals

	root := &cobra.Command{
		Use:           "parley",
		Short:         "Speaker-attributed speech recognition",
		Version:       version.String(sherpa.Enabled),
		SilenceErrors: true,
		SilenceUsage:  true,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usage(fmt.Errorf("unknown command %q", args[0]))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetVersionTemplate("{{.Version}}\n")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usage(err) })
	root.PersistentFlags().StringVar(&globals.ConfigPath, "config", "", "config file path (default: $XDG_CONFIG_HOME/parley/config.yaml)")
	root.PersistentFlags().BoolVar(&globals.Verbose, "verbose", false, "log at debug level")

	root.AddCommand(
		transcribeCommand(h, &globals),
		listenCommand(h, &globals),
		serveCommand(h, &globals),
		&cobra.Command{
			Use:   "devices",
			Short: "List audio input sources",
			Args:  usageArgs(cobra.NoArgs),
			RunE: func(cmd *cobra.Command, _ []string) error {
				return h.Devices(cmd.Context(), globals)
			},
		},
		&cobra.Command{
			Use:   "doctor",
			Short: "Check configuration, models, and audio",
			Args:  usageArgs(cobra.NoArgs),
			RunE: func(cmd *cobra.Command, _ []string) error {
				return h.Doctor(cmd.Context(), globals)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Args:  usageArgs(cobra.NoArgs),
			RunE: func(cmd *cobra.Command, _ []string) error {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), version.String(sherpa.Enabled))
				return err
			},
		},
	)
	for _, command := range ipc.Commands {
		root.AddCommand(&cobra.Command{
			Use:   string(command),
			Short: controlShort[command],
			Args:  usageArgs(cobra.NoArgs),
			RunE: func(cmd *cobra.Command, _ []string) error {
				return h.Control(cmd.Context(), globals, command)
			},
		})
	}
	return root
}

// parseFormat leaves an unset flag empty so the config decides.
func parseFormat(value string) (output.Format, error) {
	if value == "" {
		return "", nil
	}
	return output.ParseFormat(value)
}

func transcribeCommand(h Handler, globals *Globals) *cobra.Command {
	var mode, format, provider string
	cmd := &cobra.Command{
		Use:   "transcribe FILE",
		Short: "Transcribe a WAV file",
		Long: `Transcribe a PCM WAV file.

In diarize mode the file is split into speaker turns and every line carries
its speaker. In segment mode the file is split on voice activity.`,
		Example: `  parley transcribe meeting.wav
  parley transcribe --mode segment --format json note.wav`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsedMode, err := ParseMode(mode)
			if err != nil {
				return usage(err)
			}
			parsedFormat, err := parseFormat(format)
			if err != nil {
				return usage(err)
			}
			return h.Transcribe(cmd.Context(), *globals, TranscribeOptions{
				Path:     args[0],
				Mode:     parsedMode,
				Format:   parsedFormat,
				Provider: provider,
			})
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", string(ModeDiarize), "diarize or segment")
	cmd.Flags().StringVarP(&format, "format", "f", "", "text or json (default: output.format from config)")
	cmd.Flags().StringVar(&provider, "provider", "", "execution provider override (cpu, cuda, coreml)")
	return cmd
}

func listenCommand(h Handler, globals *Globals) *cobra.Command {
	var format, save string
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Transcribe the microphone until stopped",
		Long: `Capture the configured input source and print each line as soon as its
span closes. Control the session from another shell with pause, resume,
stop, cancel, status, and reload.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsedFormat, err := parseFormat(format)
			if err != nil {
				return usage(err)
			}
			return h.Listen(cmd.Context(), *globals, ListenOptions{Format: parsedFormat, SavePath: save})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "text or json (default: output.format from config)")
	cmd.Flags().StringVar(&save, "save", "", "write the captured audio to this WAV file")
	return cmd
}

func serveCommand(h Handler, globals *Globals) *cobra.Command {
	var opts ServeOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the configured transcriber over gRPC",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(opts.Listen) == "" {
				return usage(errors.New("--listen must not be empty"))
			}
			return h.Serve(cmd.Context(), *globals, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Listen, "listen", "127.0.0.1:50051", "address to listen on")
	cmd.Flags().StringVar(&opts.Provider, "provider", "", "execution provider override (cpu, cuda, coreml)")
	return cmd
}
