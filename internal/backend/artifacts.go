package backend

import (
	"errors"
	"fmt"
	"os"

	"github.com/rbright/parley/internal/config"
	"github.com/rbright/parley/internal/fault"
)

// Artifact is one model file a selected variant loads.
type Artifact struct {
	Capability Capability
	Field      string
	Path       string
}

// SegmenterArtifacts lists model files for the selected segmentation variant.
func SegmenterArtifacts(cfg config.Segmentation) []Artifact {
	if cfg.Variant != config.VariantSileroVAD {
		return nil
	}
	return []Artifact{{Capability: Segmentation, Field: "engine.segmentation.silero_vad.model", Path: cfg.SileroVAD.Model}}
}

// TranscriberArtifacts lists model files for the selected transcription variant.
func TranscriberArtifacts(cfg config.Transcription) []Artifact {
	if cfg.Variant != config.VariantSherpaOnnx {
		return nil
	}
	var out []Artifact
	for _, a := range cfg.SherpaOnnx.RequiredModels() {
		out = append(out, Artifact{Capability: Transcription, Field: "engine.transcription.sherpa_onnx." + a.Field, Path: a.Path})
	}
	return out
}

// DiarizerArtifacts lists model files for the selected diarization variant.
func DiarizerArtifacts(cfg config.Diarization) []Artifact {
	if cfg.Variant != config.VariantPyannote {
		return nil
	}
	return []Artifact{
		{Capability: Diarization, Field: "engine.diarization.pyannote.segmentation_model", Path: cfg.Pyannote.SegmentationModel},
		{Capability: Diarization, Field: "engine.diarization.pyannote.embedding_model", Path: cfg.Pyannote.EmbeddingModel},
	}
}

// EngineArtifacts lists every model file the engine bundle needs.
func EngineArtifacts(cfg config.Engine) []Artifact {
	out := SegmenterArtifacts(cfg.Segmentation)
	out = append(out, TranscriberArtifacts(cfg.Transcription)...)
	return append(out, DiarizerArtifacts(cfg.Diarization)...)
}

// CheckArtifacts fails with a model-not-found error on the first missing file.
func CheckArtifacts(artifacts []Artifact) error {
	for _, a := range artifacts {
		info, err := os.Stat(a.Path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			return fault.ModelNotFound(a.Field, a.Path)
		case err != nil:
			return fmt.Errorf("stat %s %q: %w", a.Field, a.Path, err)
		case info.IsDir():
			return fault.New(fault.CodeModelNotFound, nil, "%s: %q is a directory, not a model file", a.Field, a.Path)
		}
	}
	return nil
}
