package diarize

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbright/parley/internal/config"
)

func voice(seconds float64) []float32 {
	n := int(seconds * 16000)
	out := make([]float32, n)
	for i := range out {
		out[i] = 0.5 * float32(math.Sin(2*math.Pi*180*float64(i)/16000))
	}
	return out
}

func quiet(seconds float64) []float32 {
	return make([]float32, int(seconds*16000))
}

func defaultGap() config.Gap {
	return config.Default().Engine.Diarization.Gap
}

func TestGapAlternatesSpeakersOnLongSilence(t *testing.T) {
	var samples []float32
	samples = append(samples, voice(1)...)
	samples = append(samples, quiet(2.5)...) // turn
	samples = append(samples, voice(1)...)
	samples = append(samples, quiet(1)...) // same speaker continues
	samples = append(samples, voice(1)...)
	samples = append(samples, quiet(2.5)...) // turn
	samples = append(samples, voice(1)...)

	segments, err := NewGap(defaultGap()).Diarize(context.Background(), samples)
	require.NoError(t, err)
	require.Len(t, segments, 4)

	speakers := []int{}
	for _, s := range segments {
		speakers = append(speakers, s.Speaker)
	}
	require.Equal(t, []int{0, 1, 1, 0}, speakers)
	require.InDelta(t, 3.5, segments[1].Start, 0.05)
}

func TestGapSilentInputHasNoSegments(t *testing.T) {
	segments, err := NewGap(defaultGap()).Diarize(context.Background(), quiet(3))
	require.NoError(t, err)
	require.Empty(t, segments)
}

func TestGapHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	samples := append(voice(1), quiet(2)...)
	_, err := NewGap(defaultGap()).Diarize(ctx, samples)
	require.ErrorIs(t, err, context.Canceled)
}
