// Package doctor runs readiness diagnostics for config, models, audio, and
// the selected transcription service.
package doctor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rbright/parley/internal/audio"
	"github.com/rbright/parley/internal/backend"
	"github.com/rbright/parley/internal/config"
	"github.com/rbright/parley/internal/openaiasr"
	"github.com/rbright/parley/internal/remote"
	"github.com/rbright/parley/internal/sherpa"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", status, check.Name, check.Message)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Options replaces the environment-facing probes.
type Options struct {
	Probes      []backend.Probe
	Sherpa      bool
	SelectAudio func(ctx context.Context, input, fallback string) (audio.Selection, error)
	ProbeGRPC   func(ctx context.Context, cfg config.GRPCASR) error
}

// DefaultOptions probes the real machine.
func DefaultOptions() Options {
	return Options{
		Probes:      backend.DefaultProbes(),
		Sherpa:      sherpa.Enabled,
		SelectAudio: audio.SelectDevice,
		ProbeGRPC:   remote.Probe,
	}
}

// Run executes every check against a loaded config.
func Run(ctx context.Context, loaded config.Loaded, opts Options) Report {
	cfg := loaded.Config
	checks := []Check{checkConfig(loaded)}

	provider := backend.ResolveProvider("", opts.Probes, nil)
	checks = append(checks, Check{Name: "provider", Pass: true, Message: fmt.Sprintf("execution provider %q", provider)})

	checks = append(checks, checkBuild(cfg.Engine, opts.Sherpa))
	for _, artifact := range backend.EngineArtifacts(cfg.Engine) {
		checks = append(checks, checkArtifact(artifact))
	}

	switch cfg.Engine.Transcription.Variant {
	case config.VariantOpenAI:
		checks = append(checks, checkOpenAIKey(cfg.Engine.Transcription.OpenAI))
	case config.VariantGRPC:
		checks = append(checks, checkGRPC(ctx, cfg.Engine.Transcription.GRPC, opts.ProbeGRPC))
	}

	checks = append(checks, checkAudioSelection(ctx, cfg.Audio, opts.SelectAudio))
	return Report{Checks: checks}
}

func checkConfig(loaded config.Loaded) Check {
	if !loaded.Exists {
		return Check{Name: "config", Pass: true, Message: fmt.Sprintf("%q not found; using defaults", loaded.Path)}
	}
	return Check{Name: "config", Pass: true, Message: fmt.Sprintf("loaded %q", loaded.Path)}
}

// checkBuild fails when a selected variant needs sherpa-onnx but the binary
// was built without it.
func checkBuild(engine config.Engine, sherpaEnabled bool) Check {
	var needs []string
	if engine.Segmentation.Variant == config.VariantSileroVAD {
		needs = append(needs, "segmentation="+string(config.VariantSileroVAD))
	}
	if engine.Transcription.Variant == config.VariantSherpaOnnx {
		needs = append(needs, "transcription="+string(config.VariantSherpaOnnx))
	}
	if engine.Diarization.Variant == config.VariantPyannote {
		needs = append(needs, "diarization="+string(config.VariantPyannote))
	}
	switch {
	case len(needs) == 0:
		return Check{Name: "build", Pass: true, Message: "selected variants need no native models"}
	case sherpaEnabled:
		return Check{Name: "build", Pass: true, Message: "sherpa-onnx compiled in"}
	default:
		return Check{
			Name:    "build",
			Pass:    false,
			Message: fmt.Sprintf("%s require a build with -tags sherpa", strings.Join(needs, ", ")),
		}
	}
}

func checkArtifact(artifact backend.Artifact) Check {
	if err := backend.CheckArtifacts([]backend.Artifact{artifact}); err != nil {
		return Check{Name: artifact.Field, Pass: false, Message: err.Error()}
	}
	return Check{Name: artifact.Field, Pass: true, Message: fmt.Sprintf("found %q", artifact.Path)}
}

func checkOpenAIKey(cfg config.OpenAIASR) Check {
	if openaiasr.ResolveAPIKey(cfg) == "" {
		return Check{
			Name:    "openai.api_key",
			Pass:    false,
			Message: "set engine.transcription.openai.api_key or " + openaiasr.APIKeyEnv,
		}
	}
	return Check{Name: "openai.api_key", Pass: true, Message: "api key resolved"}
}

func checkGRPC(ctx context.Context, cfg config.GRPCASR, probe func(context.Context, config.GRPCASR) error) Check {
	timeout := time.Duration(cfg.DialTimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := probe(ctx, cfg); err != nil {
		return Check{Name: "grpc.ready", Pass: false, Message: fmt.Sprintf("%s: %v", cfg.Endpoint, err)}
	}
	return Check{Name: "grpc.ready", Pass: true, Message: fmt.Sprintf("ready at %s", cfg.Endpoint)}
}

// checkAudioSelection runs live device selection to surface fallback issues.
func checkAudioSelection(
	ctx context.Context,
	cfg config.AudioConfig,
	selectAudio func(context.Context, string, string) (audio.Selection, error),
) Check {
	selection, err := selectAudio(ctx, cfg.Input, cfg.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}
