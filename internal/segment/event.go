// Package segment defines segment events and the one-shot lazy sequences
// segmentation backends produce over a waveform.
package segment

import "fmt"

// Kind tags a segment event.
type Kind int

const (
	// KindAudio is a span of speech audio.
	KindAudio Kind = iota
	// KindPause marks the start of a paused capture.
	KindPause
	// KindResume marks the end of a paused capture.
	KindResume
)

func (k Kind) String() string {
	switch k {
	case KindAudio:
		return "audio"
	case KindPause:
		return "pause"
	case KindResume:
		return "resume"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is either an audio span or a control signal.
//
// Control signals carry no time bounds and no samples.
type Event struct {
	Kind       Kind
	Start      float64
	End        float64
	Samples    []float32
	SampleRate int
}

// Span builds an audio event covering [start, end) seconds.
func Span(start, end float64, samples []float32, sampleRate int) Event {
	return Event{Kind: KindAudio, Start: start, End: end, Samples: samples, SampleRate: sampleRate}
}

// Pause builds a PAUSE control signal.
func Pause() Event { return Event{Kind: KindPause} }

// Resume builds a RESUME control signal.
func Resume() Event { return Event{Kind: KindResume} }

// IsControl reports whether e is a control signal rather than audio.
func (e Event) IsControl() bool {
	return e.Kind != KindAudio
}

// Duration returns the span length in seconds, derived from the payload when
// a sample rate is known.
func (e Event) Duration() float64 {
	if e.IsControl() {
		return 0
	}
	if e.SampleRate > 0 {
		return float64(len(e.Samples)) / float64(e.SampleRate)
	}
	return e.End - e.Start
}

// Diarized is one speaker-attributed region from a diarization pass.
type Diarized struct {
	Speaker int
	Start   float64
	End     float64
}
