package backend

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbright/parley/internal/config"
	"github.com/rbright/parley/internal/fault"
	"github.com/rbright/parley/internal/segment"
)

func TestResolveProviderPrefersExplicit(t *testing.T) {
	probes := []Probe{{Name: "cuda", Detect: func() (bool, error) { return true, nil }}}
	require.Equal(t, "coreml", ResolveProvider(" CoreML ", probes, nil))
}

func TestResolveProviderFollowsPriority(t *testing.T) {
	calls := []string{}
	probe := func(name string, ok bool, err error) Probe {
		return Probe{Name: name, Detect: func() (bool, error) {
			calls = append(calls, name)
			return ok, err
		}}
	}

	got := ResolveProvider("", []Probe{probe("cuda", false, nil), probe("coreml", true, nil)}, nil)
	require.Equal(t, "coreml", got)
	require.Equal(t, []string{"cuda", "coreml"}, calls)
}

func TestResolveProviderSkipsFailingProbe(t *testing.T) {
	probes := []Probe{
		{Name: "cuda", Detect: func() (bool, error) { return true, errors.New("driver query failed") }},
		{Name: "coreml", Detect: func() (bool, error) { return false, nil }},
	}
	require.Equal(t, ProviderCPU, ResolveProvider("", probes, nil))
}

func TestMaxConcurrencyDefaultsToOne(t *testing.T) {
	require.Equal(t, 1, MaxConcurrency(struct{}{}))
	require.Equal(t, 3, MaxConcurrency(limited(3)))
	require.Equal(t, 1, MaxConcurrency(limited(0)))
}

type limited int

func (l limited) MaxConcurrency() int { return int(l) }

func TestBuildSegmenterUnknownVariant(t *testing.T) {
	f := &DefaultFactory{}
	cfg := config.Default().Engine.Segmentation
	cfg.Variant = "webrtc"

	_, err := f.BuildSegmenter(context.Background(), cfg)
	require.ErrorIs(t, err, fault.ErrConfiguration)
	require.Contains(t, err.Error(), "webrtc")
}

func TestBuildTranscriberChecksOnlySelectedVariant(t *testing.T) {
	f := &DefaultFactory{}
	cfg := config.Default().Engine.Transcription
	cfg.Variant = config.VariantSherpaOnnx
	cfg.SherpaOnnx.ModelType = config.ModelTransducer
	cfg.SherpaOnnx.Encoder = "/m/encoder.onnx"
	cfg.SherpaOnnx.Decoder = "/m/decoder.onnx"
	cfg.SherpaOnnx.Tokens = "/m/tokens.txt"

	_, err := f.BuildTranscriber(context.Background(), cfg)
	require.ErrorIs(t, err, fault.ErrConfiguration)
	require.Contains(t, err.Error(), "joiner")
	require.NotContains(t, err.Error(), "grpc")
}

func TestBuildTranscriberMissingModelFile(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "tokens.txt")
	require.NoError(t, os.WriteFile(present, []byte("a 0\n"), 0o600))
	missing := filepath.Join(dir, "model.onnx")

	cfg := config.Default().Engine.Transcription
	cfg.Variant = config.VariantSherpaOnnx
	cfg.SherpaOnnx.ModelType = config.ModelSenseVoice
	cfg.SherpaOnnx.SenseVoice = missing
	cfg.SherpaOnnx.Tokens = present

	_, err := (&DefaultFactory{}).BuildTranscriber(context.Background(), cfg)
	require.ErrorIs(t, err, fault.ErrModelNotFound)
	require.Contains(t, err.Error(), missing)
}

func TestCheckArtifactsRejectsDirectory(t *testing.T) {
	err := CheckArtifacts([]Artifact{{Field: "model", Path: t.TempDir()}})
	require.ErrorIs(t, err, fault.ErrModelNotFound)
}

func TestEngineArtifactsFollowSelectedVariants(t *testing.T) {
	cfg := config.Default().Engine
	require.Empty(t, EngineArtifacts(cfg))

	cfg.Segmentation.Variant = config.VariantSileroVAD
	cfg.Segmentation.SileroVAD.Model = "/m/silero.onnx"
	cfg.Diarization.Variant = config.VariantPyannote
	artifacts := EngineArtifacts(cfg)
	require.Len(t, artifacts, 3)
	require.Equal(t, Segmentation, artifacts[0].Capability)
	require.Equal(t, Diarization, artifacts[2].Capability)
}

func TestBuildTranscriberOpenAIWithoutKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := (&DefaultFactory{}).BuildTranscriber(context.Background(), config.Default().Engine.Transcription)
	require.ErrorIs(t, err, fault.ErrConfiguration)
}

func TestBuildDiarizerGap(t *testing.T) {
	d, err := (&DefaultFactory{}).BuildDiarizer(context.Background(), config.Default().Engine.Diarization)
	require.NoError(t, err)
	require.Equal(t, 16000, d.SampleRate())
	require.NoError(t, d.Close())
}

func TestEnergySegmenterSegmentsLazily(t *testing.T) {
	s, err := (&DefaultFactory{}).BuildSegmenter(context.Background(), config.Default().Engine.Segmentation)
	require.NoError(t, err)
	require.Equal(t, 16000, s.SampleRate())

	samples := make([]float32, 16000)
	for i := 4000; i < 12000; i++ {
		samples[i] = 0.6 * float32(math.Sin(2*math.Pi*200*float64(i)/16000))
	}
	samples = append(samples, make([]float32, 16000)...)

	seq := Segment(s, samples)
	var spans []segment.Event
	for event, err := range seq.All() {
		require.NoError(t, err)
		spans = append(spans, event)
	}
	require.Len(t, spans, 1)
	require.InDelta(t, 0.25, spans[0].Start, 0.05)
	require.InDelta(t, 0.75, spans[0].End, 0.05)

	for range seq.All() {
		t.Fatal("sequence replayed")
	}
}

func TestEnergySegmenterSilenceYieldsNothing(t *testing.T) {
	s, err := (&DefaultFactory{}).BuildSegmenter(context.Background(), config.Default().Engine.Segmentation)
	require.NoError(t, err)

	for range Segment(s, make([]float32, 32000)).All() {
		t.Fatal("silence produced an event")
	}
}
