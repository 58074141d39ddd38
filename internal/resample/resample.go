// Package resample converts mono waveforms between sample rates.
package resample

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// tailPadding is silence appended so the filter drains its delay line.
const tailPadding = 0.05

// Mono resamples samples from inputRate to outputRate.
//
// Equal rates return the input unchanged. The result length is
// len(samples)*outputRate/inputRate.
func Mono(samples []float32, inputRate, outputRate int) ([]float32, error) {
	if inputRate <= 0 || outputRate <= 0 {
		return nil, fmt.Errorf("invalid resample rates %d -> %d", inputRate, outputRate)
	}
	if inputRate == outputRate || len(samples) == 0 {
		return samples, nil
	}

	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(inputRate),
		OutputRate: float64(outputRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("create resampler: %w", err)
	}

	input := make([]float64, len(samples)+int(tailPadding*float64(inputRate)))
	for i, s := range samples {
		input[i] = float64(s)
	}
	output, err := r.Process(input)
	if err != nil {
		return nil, fmt.Errorf("resample %d -> %d: %w", inputRate, outputRate, err)
	}

	want := int(int64(len(samples)) * int64(outputRate) / int64(inputRate))
	out := make([]float32, want)
	for i := range min(want, len(output)) {
		out[i] = float32(max(-1, min(1, output[i])))
	}
	return out, nil
}
