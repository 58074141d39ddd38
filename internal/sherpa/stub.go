//go:build !sherpa

package sherpa

import (
	"context"
	"log/slog"

	"github.com/rbright/parley/internal/config"
	"github.com/rbright/parley/internal/fault"
	"github.com/rbright/parley/internal/segment"
)

// Enabled reports whether sherpa-onnx is linked into this binary.
const Enabled = false

func unavailable(what string) error {
	return fault.Configuration("%s requires a parley binary built with -tags sherpa", what)
}

// SileroVAD is unavailable without the sherpa build tag.
type SileroVAD struct{}

// NewSileroVAD always fails in this build.
func NewSileroVAD(config.SileroVAD, string) (*SileroVAD, error) {
	return nil, unavailable("segmentation variant silero_vad")
}

func (s *SileroVAD) SampleRate() int { return 0 }
func (s *SileroVAD) NewDetector() *Detector { return &Detector{} }
func (s *SileroVAD) Close() error { return nil }

// Detector is unavailable without the sherpa build tag.
type Detector struct{}

func (d *Detector) Accept([]float32) []segment.Event { return nil }
func (d *Detector) Flush() []segment.Event { return nil }
func (d *Detector) Pause() []segment.Event { return nil }
func (d *Detector) Resume() []segment.Event { return nil }
func (d *Detector) Paused() bool { return false }
func (d *Detector) Close() error { return nil }

// Recognizer is unavailable without the sherpa build tag.
type Recognizer struct{}

// NewRecognizer always fails in this build.
func NewRecognizer(config.SherpaOnnxASR, string) (*Recognizer, error) {
	return nil, unavailable("transcription variant sherpa_onnx")
}

func (r *Recognizer) Transcribe(context.Context, []float32, int) (string, error) {
	return "", unavailable("transcription variant sherpa_onnx")
}
func (r *Recognizer) Close() error { return nil }

// Diarizer is unavailable without the sherpa build tag.
type Diarizer struct{}

// NewDiarizer always fails in this build.
func NewDiarizer(config.Pyannote, string, *slog.Logger) (*Diarizer, error) {
	return nil, unavailable("diarization variant pyannote")
}

func (d *Diarizer) SampleRate() int { return 0 }
func (d *Diarizer) Diarize(context.Context, []float32) ([]segment.Diarized, error) {
	return nil, unavailable("diarization variant pyannote")
}
func (d *Diarizer) Close() error { return nil }
