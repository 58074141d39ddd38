// Package backend defines the capability contracts recognition backends
// satisfy and the factory that builds them from configuration.
package backend

import (
	"context"

	"github.com/rbright/parley/internal/segment"
)

// Capability names one pluggable stage of the recognition pipeline.
type Capability string

const (
	Segmentation  Capability = "segmentation"
	Transcription Capability = "transcription"
	Diarization   Capability = "diarization"
)

// Stream is one stateful voice-activity pass over contiguous audio.
type Stream interface {
	Accept(samples []float32) []segment.Event
	Flush() []segment.Event
	Pause() []segment.Event
	Resume() []segment.Event
	Paused() bool
	Close() error
}

// Segmenter opens voice-activity streams at a fixed sample rate.
type Segmenter interface {
	SampleRate() int
	NewStream() Stream
	Close() error
}

// Transcriber converts one isolated segment to text.
//
// Implementations must not carry decoder state between calls.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error)
	Close() error
}

// Diarizer labels speaker regions over a whole waveform. Output order is
// unspecified.
type Diarizer interface {
	SampleRate() int
	Diarize(ctx context.Context, samples []float32) ([]segment.Diarized, error)
	Close() error
}

// Limited is implemented by backends that tolerate concurrent calls.
type Limited interface {
	MaxConcurrency() int
}

// MaxConcurrency returns the instance's concurrency hint, defaulting to 1.
func MaxConcurrency(instance any) int {
	if l, ok := instance.(Limited); ok && l.MaxConcurrency() > 0 {
		return l.MaxConcurrency()
	}
	return 1
}

// streamChunk is how many samples Segment feeds per Accept call.
const streamChunk = 4096

// Segment lazily segments a whole normalized waveform on a fresh stream.
//
// The stream is opened on first iteration and closed when iteration ends.
func Segment(s Segmenter, samples []float32) *segment.Sequence {
	return segment.NewSequence(func(yield func(segment.Event, error) bool) {
		stream := s.NewStream()
		defer stream.Close()
		for event, err := range segment.Detect(stream, samples, streamChunk).All() {
			if !yield(event, err) {
				return
			}
		}
	})
}
