package backend

import (
	"context"
	"log/slog"

	"github.com/rbright/parley/internal/config"
	"github.com/rbright/parley/internal/diarize"
	"github.com/rbright/parley/internal/fault"
	"github.com/rbright/parley/internal/openaiasr"
	"github.com/rbright/parley/internal/remote"
	"github.com/rbright/parley/internal/sherpa"
	"github.com/rbright/parley/internal/vad"
)

// Factory builds one backend instance per capability from its sub-bundle.
//
// Builds are expensive and never cached here; callers own reuse.
type Factory interface {
	BuildSegmenter(ctx context.Context, cfg config.Segmentation) (Segmenter, error)
	BuildTranscriber(ctx context.Context, cfg config.Transcription) (Transcriber, error)
	BuildDiarizer(ctx context.Context, cfg config.Diarization) (Diarizer, error)
}

// DefaultFactory builds the variants compiled into this binary.
type DefaultFactory struct {
	Logger *slog.Logger
	// Provider overrides auto-detection for variants without an explicit provider.
	Provider string
	// Probes defaults to DefaultProbes.
	Probes []Probe
}

var _ Factory = (*DefaultFactory)(nil)

// BuildSegmenter validates cfg, checks its model files, and loads it.
func (f *DefaultFactory) BuildSegmenter(_ context.Context, cfg config.Segmentation) (Segmenter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, invalid(Segmentation, err)
	}
	if err := CheckArtifacts(SegmenterArtifacts(cfg)); err != nil {
		return nil, err
	}

	switch cfg.Variant {
	case config.VariantEnergy:
		return energySegmenter{cfg: cfg.Energy}, nil
	case config.VariantSileroVAD:
		provider := f.provider(cfg.SileroVAD.Provider)
		f.logBuild(Segmentation, cfg.Variant, provider)
		silero, err := sherpa.NewSileroVAD(cfg.SileroVAD, provider)
		if err != nil {
			return nil, constructionError(Segmentation, cfg.Variant, err)
		}
		return sileroSegmenter{silero}, nil
	default:
		return nil, unknownVariant(Segmentation, cfg.Variant)
	}
}

// BuildTranscriber validates cfg, checks its model files, and loads it.
func (f *DefaultFactory) BuildTranscriber(ctx context.Context, cfg config.Transcription) (Transcriber, error) {
	if err := cfg.Validate(); err != nil {
		return nil, invalid(Transcription, err)
	}
	if err := CheckArtifacts(TranscriberArtifacts(cfg)); err != nil {
		return nil, err
	}

	switch cfg.Variant {
	case config.VariantSherpaOnnx:
		provider := f.provider(cfg.SherpaOnnx.Provider)
		f.logBuild(Transcription, cfg.Variant, provider, "model_type", string(cfg.SherpaOnnx.ModelType))
		recognizer, err := sherpa.NewRecognizer(cfg.SherpaOnnx, provider)
		if err != nil {
			return nil, constructionError(Transcription, cfg.Variant, err)
		}
		return recognizer, nil
	case config.VariantOpenAI:
		f.logBuild(Transcription, cfg.Variant, "", "model", cfg.OpenAI.Model)
		transcriber, err := openaiasr.New(cfg.OpenAI)
		if err != nil {
			return nil, fault.New(fault.CodeConfiguration, err, "build transcription backend %s", cfg.Variant)
		}
		return transcriber, nil
	case config.VariantGRPC:
		f.logBuild(Transcription, cfg.Variant, "", "endpoint", cfg.GRPC.Endpoint)
		client, err := remote.Dial(ctx, cfg.GRPC)
		if err != nil {
			return nil, constructionError(Transcription, cfg.Variant, err)
		}
		return client, nil
	default:
		return nil, unknownVariant(Transcription, cfg.Variant)
	}
}

// BuildDiarizer validates cfg, checks its model files, and loads it.
func (f *DefaultFactory) BuildDiarizer(_ context.Context, cfg config.Diarization) (Diarizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, invalid(Diarization, err)
	}
	if err := CheckArtifacts(DiarizerArtifacts(cfg)); err != nil {
		return nil, err
	}

	switch cfg.Variant {
	case config.VariantPyannote:
		provider := f.provider(cfg.Pyannote.Provider)
		f.logBuild(Diarization, cfg.Variant, provider)
		diarizer, err := sherpa.NewDiarizer(cfg.Pyannote, provider, f.Logger)
		if err != nil {
			return nil, constructionError(Diarization, cfg.Variant, err)
		}
		return diarizer, nil
	case config.VariantGap:
		return diarize.NewGap(cfg.Gap), nil
	default:
		return nil, unknownVariant(Diarization, cfg.Variant)
	}
}

func (f *DefaultFactory) provider(explicit string) string {
	if explicit == "" {
		explicit = f.Provider
	}
	probes := f.Probes
	if probes == nil {
		probes = DefaultProbes()
	}
	return ResolveProvider(explicit, probes, f.Logger)
}

func (f *DefaultFactory) logBuild(capability Capability, variant config.Variant, provider string, attrs ...any) {
	if f.Logger == nil {
		return
	}
	args := []any{"capability", string(capability), "variant", string(variant)}
	if provider != "" {
		args = append(args, "provider", provider)
	}
	f.Logger.Info("loading backend", append(args, attrs...)...)
}

func invalid(capability Capability, err error) error {
	return fault.New(fault.CodeConfiguration, err, "%s configuration is invalid", capability)
}

func unknownVariant(capability Capability, variant config.Variant) error {
	return fault.Configuration("unknown %s variant %q", capability, variant)
}

// constructionError keeps categorized causes and labels the rest internal.
func constructionError(capability Capability, variant config.Variant, err error) error {
	if code := fault.CodeOf(err); code != fault.CodeInternal {
		return err
	}
	return fault.New(fault.CodeInternal, err, "build %s backend %s", capability, variant)
}

type energySegmenter struct {
	cfg config.EnergyVAD
}

func (s energySegmenter) SampleRate() int { return s.cfg.SampleRate }
func (s energySegmenter) NewStream() Stream { return vad.New(s.cfg) }
func (s energySegmenter) Close() error { return nil }

type sileroSegmenter struct {
	*sherpa.SileroVAD
}

func (s sileroSegmenter) NewStream() Stream { return s.SileroVAD.NewDetector() }
