package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)
	var result *multierror.Error

	if err := cfg.Engine.Validate(); err != nil {
		result = multierror.Append(result, err)
	}

	format := strings.ToLower(strings.TrimSpace(cfg.Output.Format))
	if format != "text" && format != "json" {
		result = multierror.Append(result, errors.New("output.format must be one of: text, json"))
	}

	if cfg.Engine.Transcription.Variant == VariantOpenAI &&
		strings.TrimSpace(cfg.Engine.Transcription.OpenAI.APIKey) != "" {
		warnings = append(warnings, Warning{Message: "engine.transcription.openai.api_key is stored in plain text; prefer OPENAI_API_KEY"})
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, flatten(err)
	}
	return warnings, nil
}

// Validate checks the whole engine bundle, reporting every problem at once.
func (e Engine) Validate() error {
	var result *multierror.Error
	if e.MinSegmentDuration < 0 {
		result = multierror.Append(result, errors.New("engine.min_segment_duration must be >= 0"))
	}
	if err := e.Segmentation.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := e.Transcription.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := e.Diarization.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	return flatten(result.ErrorOrNil())
}

// Validate checks only the selected segmentation variant.
func (s Segmentation) Validate() error {
	switch s.Variant {
	case VariantEnergy:
		return s.Energy.validate("engine.segmentation.energy")
	case VariantSileroVAD:
		var result *multierror.Error
		result = requireField(result, "engine.segmentation.silero_vad.model", s.SileroVAD.Model)
		if s.SileroVAD.SampleRate <= 0 {
			result = multierror.Append(result, errors.New("engine.segmentation.silero_vad.sample_rate must be > 0"))
		}
		if s.SileroVAD.Threshold <= 0 || s.SileroVAD.Threshold >= 1 {
			result = multierror.Append(result, errors.New("engine.segmentation.silero_vad.threshold must be in (0, 1)"))
		}
		return flatten(result.ErrorOrNil())
	case "":
		return errors.New("engine.segmentation.variant must not be empty")
	default:
		return fmt.Errorf("engine.segmentation.variant %q is not one of: %s, %s", s.Variant, VariantEnergy, VariantSileroVAD)
	}
}

// Validate checks only the selected transcription variant.
func (t Transcription) Validate() error {
	switch t.Variant {
	case VariantSherpaOnnx:
		return t.SherpaOnnx.validate("engine.transcription.sherpa_onnx")
	case VariantOpenAI:
		var result *multierror.Error
		result = requireField(result, "engine.transcription.openai.model", t.OpenAI.Model)
		if t.OpenAI.TimeoutSeconds < 0 {
			result = multierror.Append(result, errors.New("engine.transcription.openai.timeout_seconds must be >= 0"))
		}
		return flatten(result.ErrorOrNil())
	case VariantGRPC:
		var result *multierror.Error
		result = requireField(result, "engine.transcription.grpc.endpoint", t.GRPC.Endpoint)
		if t.GRPC.DialTimeoutMS < 0 || t.GRPC.CallTimeoutMS < 0 {
			result = multierror.Append(result, errors.New("engine.transcription.grpc timeouts must be >= 0"))
		}
		return flatten(result.ErrorOrNil())
	case "":
		return errors.New("engine.transcription.variant must not be empty")
	default:
		return fmt.Errorf("engine.transcription.variant %q is not one of: %s, %s, %s", t.Variant, VariantSherpaOnnx, VariantOpenAI, VariantGRPC)
	}
}

// Validate checks only the selected diarization variant.
func (d Diarization) Validate() error {
	switch d.Variant {
	case VariantPyannote:
		var result *multierror.Error
		result = requireField(result, "engine.diarization.pyannote.segmentation_model", d.Pyannote.SegmentationModel)
		result = requireField(result, "engine.diarization.pyannote.embedding_model", d.Pyannote.EmbeddingModel)
		if d.Pyannote.NumSpeakers == 0 {
			result = multierror.Append(result, errors.New("engine.diarization.pyannote.num_speakers must be > 0, or -1 to cluster by threshold"))
		}
		return flatten(result.ErrorOrNil())
	case VariantGap:
		var result *multierror.Error
		if d.Gap.TurnGap <= 0 {
			result = multierror.Append(result, errors.New("engine.diarization.gap.turn_gap must be > 0"))
		}
		if d.Gap.NumSpeakers <= 0 {
			result = multierror.Append(result, errors.New("engine.diarization.gap.num_speakers must be > 0"))
		}
		if err := d.Gap.VAD.validate("engine.diarization.gap.vad"); err != nil {
			result = multierror.Append(result, err)
		}
		return flatten(result.ErrorOrNil())
	case "":
		return errors.New("engine.diarization.variant must not be empty")
	default:
		return fmt.Errorf("engine.diarization.variant %q is not one of: %s, %s", d.Variant, VariantPyannote, VariantGap)
	}
}

// RequiredModels lists the artifact paths the selected model type needs, keyed by field name.
func (s SherpaOnnxASR) RequiredModels() []Artifact {
	artifacts := []Artifact{}
	switch s.ModelType {
	case ModelTransducer:
		artifacts = append(artifacts,
			Artifact{Field: "encoder", Path: s.Encoder},
			Artifact{Field: "decoder", Path: s.Decoder},
			Artifact{Field: "joiner", Path: s.Joiner},
		)
	case ModelParaformer:
		artifacts = append(artifacts, Artifact{Field: "paraformer", Path: s.Paraformer})
	case ModelNemoCTC:
		artifacts = append(artifacts, Artifact{Field: "nemo_ctc", Path: s.NemoCTC})
	case ModelWhisper:
		artifacts = append(artifacts,
			Artifact{Field: "whisper_encoder", Path: s.WhisperEncoder},
			Artifact{Field: "whisper_decoder", Path: s.WhisperDecoder},
		)
	case ModelTDNNCTC:
		artifacts = append(artifacts, Artifact{Field: "tdnn_model", Path: s.TDNNModel})
	case ModelSenseVoice:
		artifacts = append(artifacts, Artifact{Field: "sense_voice", Path: s.SenseVoice})
	}
	return append(artifacts, Artifact{Field: "tokens", Path: s.Tokens})
}

// Artifact is one model file a backend variant loads.
type Artifact struct {
	Field string
	Path  string
}

func (s SherpaOnnxASR) validate(prefix string) error {
	switch s.ModelType {
	case ModelTransducer, ModelParaformer, ModelNemoCTC, ModelWhisper, ModelTDNNCTC, ModelSenseVoice:
	case "":
		return fmt.Errorf("%s.model_type must not be empty", prefix)
	default:
		return fmt.Errorf("%s.model_type %q is not supported", prefix, s.ModelType)
	}

	var result *multierror.Error
	for _, artifact := range s.RequiredModels() {
		result = requireField(result, fmt.Sprintf("%s.%s (required for model_type=%s)", prefix, artifact.Field, s.ModelType), artifact.Path)
	}
	if s.NumThreads <= 0 {
		result = multierror.Append(result, fmt.Errorf("%s.num_threads must be > 0", prefix))
	}
	return flatten(result.ErrorOrNil())
}

func (v EnergyVAD) validate(prefix string) error {
	var result *multierror.Error
	if v.SampleRate <= 0 {
		result = multierror.Append(result, fmt.Errorf("%s.sample_rate must be > 0", prefix))
	}
	if v.FrameSize <= 0 {
		result = multierror.Append(result, fmt.Errorf("%s.frame_size must be > 0", prefix))
	}
	if v.ProbThreshold <= 0 || v.ProbThreshold >= 1 {
		result = multierror.Append(result, fmt.Errorf("%s.prob_threshold must be in (0, 1)", prefix))
	}
	if v.RequiredHits <= 0 || v.RequiredMisses <= 0 {
		result = multierror.Append(result, fmt.Errorf("%s.required_hits and required_misses must be > 0", prefix))
	}
	if v.SmoothingWindow <= 0 {
		result = multierror.Append(result, fmt.Errorf("%s.smoothing_window must be > 0", prefix))
	}
	return flatten(result.ErrorOrNil())
}

func requireField(result *multierror.Error, name string, value string) *multierror.Error {
	if strings.TrimSpace(value) == "" {
		return multierror.Append(result, fmt.Errorf("%s must not be empty", name))
	}
	return result
}

// flatten renders nested multierrors as one "; "-joined message.
func flatten(err error) error {
	var merr *multierror.Error
	if !errors.As(err, &merr) {
		return err
	}
	merr.ErrorFormat = func(errs []error) string {
		parts := make([]string, 0, len(errs))
		for _, e := range errs {
			parts = append(parts, e.Error())
		}
		return strings.Join(parts, "; ")
	}
	return merr
}
