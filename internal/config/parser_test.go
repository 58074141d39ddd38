package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseEmptyContentReturnsBase(t *testing.T) {
	cfg, warnings, err := Parse("  \n", Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, Default(), cfg)
}

func TestParseOverlayKeepsUnsetDefaults(t *testing.T) {
	input := `
engine:
  min_segment_duration: 0.25
  segmentation:
    variant: silero_vad
    silero_vad:
      model: /models/silero_vad.onnx
      threshold: 0.6
  diarization:
    gap:
      turn_gap: 2.0
`
	cfg, _, err := Parse(input, Default())
	require.NoError(t, err)

	require.InDelta(t, 0.25, cfg.Engine.MinSegmentDuration, 1e-9)
	require.Equal(t, VariantSileroVAD, cfg.Engine.Segmentation.Variant)
	require.Equal(t, "/models/silero_vad.onnx", cfg.Engine.Segmentation.SileroVAD.Model)
	require.InDelta(t, 0.6, cfg.Engine.Segmentation.SileroVAD.Threshold, 1e-9)
	require.Equal(t, 16000, cfg.Engine.Segmentation.SileroVAD.SampleRate)
	require.Equal(t, 512, cfg.Engine.Segmentation.SileroVAD.WindowSize)

	require.InDelta(t, 2.0, cfg.Engine.Diarization.Gap.TurnGap, 1e-9)
	require.Equal(t, 2, cfg.Engine.Diarization.Gap.NumSpeakers)
	require.Equal(t, DefaultEnergyVAD(), cfg.Engine.Diarization.Gap.VAD)
}

func TestParseSherpaTransducer(t *testing.T) {
	input := `
engine:
  transcription:
    variant: sherpa_onnx
    sherpa_onnx:
      model_type: transducer
      encoder: /m/encoder.onnx
      decoder: /m/decoder.onnx
      joiner: /m/joiner.onnx
      tokens: /m/tokens.txt
      provider: cuda
`
	cfg, _, err := Parse(input, Default())
	require.NoError(t, err)
	asr := cfg.Engine.Transcription.SherpaOnnx
	require.Equal(t, ModelTransducer, asr.ModelType)
	require.Equal(t, "cuda", asr.Provider)
	require.Equal(t, "greedy_search", asr.DecodingMethod)
	require.Equal(t, 4, asr.NumThreads)
}

func TestParseRejectsUnknownKey(t *testing.T) {
	_, _, err := Parse("engine:\n  segmenter: energy\n", Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode yaml")
}

func TestParseRejectsInvalidSelectedVariant(t *testing.T) {
	_, _, err := Parse("engine:\n  transcription:\n    variant: kaldi\n", Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), `engine.transcription.variant "kaldi"`)
}

func TestParseWarnsOnPlainTextAPIKey(t *testing.T) {
	input := `
engine:
  transcription:
    variant: openai
    openai:
      api_key: sk-test
`
	_, warnings, err := Parse(input, Default())
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0].Message, "OPENAI_API_KEY")
}
