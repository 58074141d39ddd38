// Package diarize implements the pure-Go turn-taking diarizer.
package diarize

import (
	"context"

	"github.com/rbright/parley/internal/config"
	"github.com/rbright/parley/internal/segment"
	"github.com/rbright/parley/internal/vad"
)

// Gap attributes energy-VAD spans to speakers, switching to the next label
// whenever the silence before a span exceeds TurnGap.
type Gap struct {
	cfg config.Gap
}

// NewGap builds a gap diarizer.
func NewGap(cfg config.Gap) *Gap {
	return &Gap{cfg: cfg}
}

// SampleRate is the rate Diarize expects its input at.
func (g *Gap) SampleRate() int {
	return g.cfg.VAD.SampleRate
}

// MaxConcurrency reports that Diarize keeps no state between calls.
func (g *Gap) MaxConcurrency() int {
	return 4
}

// Diarize returns speaker regions in emission order.
func (g *Gap) Diarize(ctx context.Context, samples []float32) ([]segment.Diarized, error) {
	detector := vad.New(g.cfg.VAD)
	chunk := g.cfg.VAD.FrameSize * 32

	var (
		out     []segment.Diarized
		speaker int
	)
	for event, err := range segment.Detect(detector, samples, chunk).All() {
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if event.IsControl() {
			continue
		}
		if n := len(out); n > 0 && event.Start-out[n-1].End > g.cfg.TurnGap {
			speaker = (speaker + 1) % max(1, g.cfg.NumSpeakers)
		}
		out = append(out, segment.Diarized{Speaker: speaker, Start: event.Start, End: event.End})
	}
	return out, nil
}

// Close is a no-op.
func (g *Gap) Close() error {
	return nil
}
