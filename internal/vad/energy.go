// Package vad implements the pure-Go energy voice-activity detector.
package vad

import (
	"math"

	"github.com/rbright/parley/internal/config"
	"github.com/rbright/parley/internal/segment"
)

type state int

const (
	stateIdle state = iota
	stateActive
)

// Detector is a streaming hysteresis detector over fixed-size frames.
//
// A span opens after RequiredHits consecutive voiced frames and closes after
// RequiredMisses consecutive unvoiced ones. Voicing is judged on the moving
// average of frame loudness and a logistic speech probability derived from it.
// Detector is not safe for concurrent use.
type Detector struct {
	cfg config.EnergyVAD

	pending []float32
	offset  int // absolute index of pending[0]

	probs []float64
	dbs   []float64

	state   state
	hits    int
	misses  int
	preroll []frame
	span    []float32
	start   int
	voiced  int // span length through the last loud frame
	paused  bool
}

type frame struct {
	start   int
	samples []float32
	db      float64
}

// New builds a detector from cfg.
func New(cfg config.EnergyVAD) *Detector {
	return &Detector{cfg: cfg}
}

// SampleRate is the rate the detector expects its input at.
func (d *Detector) SampleRate() int {
	return d.cfg.SampleRate
}

// Accept consumes samples and returns the spans they close.
//
// While paused, samples only advance the clock.
func (d *Detector) Accept(samples []float32) []segment.Event {
	if d.paused {
		d.offset += len(d.pending) + len(samples)
		d.pending = d.pending[:0]
		return nil
	}

	d.pending = append(d.pending, samples...)
	var events []segment.Event
	size := d.cfg.FrameSize
	consumed := 0
	for len(d.pending)-consumed >= size {
		chunk := make([]float32, size)
		copy(chunk, d.pending[consumed:consumed+size])
		if event, ok := d.step(frame{start: d.offset + consumed, samples: chunk}); ok {
			events = append(events, event)
		}
		consumed += size
	}
	d.pending = append(d.pending[:0], d.pending[consumed:]...)
	d.offset += consumed
	return events
}

// Flush processes any partial frame and closes an open span.
func (d *Detector) Flush() []segment.Event {
	var events []segment.Event
	if !d.paused && len(d.pending) > 0 {
		chunk := append([]float32(nil), d.pending...)
		if event, ok := d.step(frame{start: d.offset, samples: chunk}); ok {
			events = append(events, event)
		}
		d.offset += len(d.pending)
		d.pending = d.pending[:0]
	}
	if event, ok := d.closeSpan(); ok {
		events = append(events, event)
	}
	d.reset()
	return events
}

// Pause closes any open span and emits PAUSE. Repeated calls are no-ops.
func (d *Detector) Pause() []segment.Event {
	if d.paused {
		return nil
	}
	events := d.Flush()
	d.paused = true
	return append(events, segment.Pause())
}

// Resume emits RESUME and restarts detection with fresh smoothing state.
func (d *Detector) Resume() []segment.Event {
	if !d.paused {
		return nil
	}
	d.paused = false
	d.reset()
	return []segment.Event{segment.Resume()}
}

// Paused reports whether input is being dropped.
func (d *Detector) Paused() bool {
	return d.paused
}

// Close is a no-op; the detector holds no native resources.
func (d *Detector) Close() error {
	return nil
}

func (d *Detector) step(f frame) (segment.Event, bool) {
	f.db = frameDB(f.samples)
	prob, db := d.smooth(speechProb(f.db, d.cfg.DBThreshold), f.db)
	hit := prob >= d.cfg.ProbThreshold && db >= d.cfg.DBThreshold

	switch d.state {
	case stateIdle:
		d.preroll = append(d.preroll, f)
		if limit := d.cfg.SmoothingWindow + d.cfg.RequiredHits; len(d.preroll) > limit {
			d.preroll = d.preroll[len(d.preroll)-limit:]
		}
		if !hit {
			d.hits = 0
			return segment.Event{}, false
		}
		d.hits++
		if d.hits >= d.cfg.RequiredHits {
			d.open()
		}
	case stateActive:
		d.span = append(d.span, f.samples...)
		if f.db >= d.cfg.DBThreshold {
			d.voiced = len(d.span)
		}
		if hit {
			d.misses = 0
			return segment.Event{}, false
		}
		d.misses++
		if d.misses >= d.cfg.RequiredMisses {
			return d.closeSpan()
		}
	}
	return segment.Event{}, false
}

// open starts a span at the first loud frame of the preroll.
func (d *Detector) open() {
	first := 0
	for first < len(d.preroll) && d.preroll[first].db < d.cfg.DBThreshold {
		first++
	}
	if first == len(d.preroll) {
		first = len(d.preroll) - 1
	}
	d.state = stateActive
	d.misses = 0
	d.start = d.preroll[first].start
	d.span = d.span[:0]
	for _, f := range d.preroll[first:] {
		d.span = append(d.span, f.samples...)
		if f.db >= d.cfg.DBThreshold {
			d.voiced = len(d.span)
		}
	}
	d.preroll = d.preroll[:0]
}

func (d *Detector) closeSpan() (segment.Event, bool) {
	if d.state != stateActive {
		return segment.Event{}, false
	}
	samples := append([]float32(nil), d.span[:d.voiced]...)
	rate := float64(d.cfg.SampleRate)
	event := segment.Span(float64(d.start)/rate, float64(d.start+len(samples))/rate, samples, d.cfg.SampleRate)

	d.state = stateIdle
	d.hits = 0
	d.misses = 0
	d.span = d.span[:0]
	d.voiced = 0
	return event, len(samples) > 0
}

func (d *Detector) reset() {
	d.state = stateIdle
	d.hits = 0
	d.misses = 0
	d.probs = d.probs[:0]
	d.dbs = d.dbs[:0]
	d.preroll = d.preroll[:0]
	d.span = d.span[:0]
	d.voiced = 0
}

func (d *Detector) smooth(prob, db float64) (float64, float64) {
	window := max(1, d.cfg.SmoothingWindow)
	d.probs = append(d.probs, prob)
	d.dbs = append(d.dbs, db)
	if len(d.probs) > window {
		d.probs = d.probs[1:]
		d.dbs = d.dbs[1:]
	}
	return mean(d.probs), mean(d.dbs)
}

// frameDB is the RMS loudness of a normalized frame on the int16 scale.
func frameDB(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s) * segment.FullScale16
		sum += v * v
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	if rms < 1 {
		return 0
	}
	return 20 * math.Log10(rms)
}

// speechProb maps loudness onto (0, 1), centered on the dB threshold.
func speechProb(db, threshold float64) float64 {
	return 1 / (1 + math.Exp(-(db-threshold)/3))
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
