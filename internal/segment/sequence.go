package segment

import (
	"iter"
	"sync/atomic"
)

// Sequence is a lazy, finite, one-shot stream of events.
//
// The first call to All drives the underlying producer; later calls yield
// nothing. Callers that need a replay must segment the waveform again.
type Sequence struct {
	seq  iter.Seq2[Event, error]
	used atomic.Bool
}

// NewSequence wraps a producer.
func NewSequence(seq iter.Seq2[Event, error]) *Sequence {
	return &Sequence{seq: seq}
}

// Of returns a sequence over fixed events.
func Of(events ...Event) *Sequence {
	return NewSequence(func(yield func(Event, error) bool) {
		for _, event := range events {
			if !yield(event, nil) {
				return
			}
		}
	})
}

// All yields each event once.
func (s *Sequence) All() iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		if s == nil || s.seq == nil || !s.used.CompareAndSwap(false, true) {
			return
		}
		s.seq(yield)
	}
}

// Detector is a streaming segmenter fed chunk by chunk.
type Detector interface {
	Accept(samples []float32) []Event
	Flush() []Event
}

// Detect lazily feeds samples to d in chunks of chunkSize and yields the
// events it closes, finishing with whatever Flush releases.
func Detect(d Detector, samples []float32, chunkSize int) *Sequence {
	if chunkSize <= 0 {
		chunkSize = len(samples)
	}
	return NewSequence(func(yield func(Event, error) bool) {
		for offset := 0; offset < len(samples); offset += chunkSize {
			end := min(offset+chunkSize, len(samples))
			for _, event := range d.Accept(samples[offset:end]) {
				if !yield(event, nil) {
					return
				}
			}
		}
		for _, event := range d.Flush() {
			if !yield(event, nil) {
				return
			}
		}
	})
}
