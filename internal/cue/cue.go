// Package cue plays short synthesized tones when a live session changes state.
package cue

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/jfreymuth/pulse"

	"github.com/rbright/parley/internal/fsm"
)

// Kind names one cue.
type Kind int

const (
	Start Kind = iota + 1
	Pause
	Resume
	Stop
	Complete
	Cancel
)

func (k Kind) String() string {
	switch k {
	case Start:
		return "start"
	case Pause:
		return "pause"
	case Resume:
		return "resume"
	case Stop:
		return "stop"
	case Complete:
		return "complete"
	case Cancel:
		return "cancel"
	default:
		return fmt.Sprintf("cue(%d)", int(k))
	}
}

const sampleRate = 16000

type tone struct {
	frequencyHz float64
	duration    time.Duration
	volume      float64
}

var cues = map[Kind][]int16{
	Start: synthesize([]tone{
		{frequencyHz: 880, duration: 70 * time.Millisecond, volume: 0.18},
		{frequencyHz: 1175, duration: 70 * time.Millisecond, volume: 0.18},
	}),
	Pause: synthesize([]tone{
		{frequencyHz: 660, duration: 60 * time.Millisecond, volume: 0.15},
		{frequencyHz: 660, duration: 60 * time.Millisecond, volume: 0.15},
	}),
	Resume: synthesize([]tone{
		{frequencyHz: 1175, duration: 70 * time.Millisecond, volume: 0.18},
	}),
	Stop: synthesize([]tone{
		{frequencyHz: 620, duration: 120 * time.Millisecond, volume: 0.18},
	}),
	Complete: synthesize([]tone{
		{frequencyHz: 740, duration: 65 * time.Millisecond, volume: 0.18},
		{frequencyHz: 988, duration: 90 * time.Millisecond, volume: 0.18},
	}),
	Cancel: synthesize([]tone{
		{frequencyHz: 480, duration: 75 * time.Millisecond, volume: 0.18},
		{frequencyHz: 360, duration: 90 * time.Millisecond, volume: 0.18},
	}),
}

// Samples returns the 16 kHz mono PCM of a cue.
func Samples(kind Kind) []int16 {
	return cues[kind]
}

// For maps a session transition to its cue.
func For(from, to fsm.State) (Kind, bool) {
	switch {
	case to == fsm.StateListening && from == fsm.StatePaused:
		return Resume, true
	case to == fsm.StateListening:
		return Start, true
	case to == fsm.StatePaused:
		return Pause, true
	case to == fsm.StateTranscribing:
		return Stop, true
	case to == fsm.StateIdle && from == fsm.StateTranscribing:
		return Complete, true
	case to == fsm.StateIdle && from.Capturing(), to == fsm.StateError:
		return Cancel, true
	default:
		return 0, false
	}
}

// PlayFunc renders PCM to an output device.
type PlayFunc func(samples []int16) error

// Player plays cues one at a time off the caller's goroutine.
type Player struct {
	logger *slog.Logger
	play   PlayFunc

	mu sync.Mutex
	wg sync.WaitGroup
}

// New returns a player writing to the default PulseAudio sink. A nil play
// uses PulseAudio.
func New(logger *slog.Logger, play PlayFunc) *Player {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if play == nil {
		play = playPulse
	}
	return &Player{logger: logger, play: play}
}

// Transition plays the cue for a state change, if it has one.
func (p *Player) Transition(from, to fsm.State) {
	if kind, ok := For(from, to); ok {
		p.Play(kind)
	}
}

// Play queues a cue. Playback failures are logged, never returned.
func (p *Player) Play(kind Kind) {
	samples := Samples(kind)
	if len(samples) == 0 {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.mu.Lock()
		defer p.mu.Unlock()
		if err := p.play(samples); err != nil {
			p.logger.Debug("cue playback failed", "cue", kind.String(), "error", err.Error())
		}
	}()
}

// Wait blocks until queued cues have played.
func (p *Player) Wait() {
	p.wg.Wait()
}

func playPulse(samples []int16) error {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("parley"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	cursor := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		n := copy(buf, samples[cursor:])
		cursor += n
		if cursor >= len(samples) {
			return n, pulse.EndOfData
		}
		return n, nil
	})

	stream, err := client.NewPlayback(
		reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.02),
		pulse.PlaybackMediaName("parley cue"),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play cue stream: %w", err)
	}
	return nil
}

// synthesize joins tones with short gaps.
func synthesize(parts []tone) []int16 {
	gap := samplesFor(22 * time.Millisecond)
	var pcm []int16
	for i, part := range parts {
		pcm = append(pcm, synthesizeTone(part)...)
		if i < len(parts)-1 {
			pcm = append(pcm, make([]int16, gap)...)
		}
	}
	return pcm
}

// synthesizeTone renders a sine with a linear attack and release of at most
// 5ms to avoid clicks.
func synthesizeTone(part tone) []int16 {
	n := samplesFor(part.duration)
	if n <= 0 || part.frequencyHz <= 0 || part.volume <= 0 {
		return nil
	}
	ramp := max(1, min(n/10, sampleRate/200))

	pcm := make([]int16, n)
	for i := range n {
		envelope := 1.0
		if i < ramp {
			envelope = float64(i) / float64(ramp)
		}
		if tail := n - i - 1; tail < ramp {
			envelope = min(envelope, float64(tail)/float64(ramp))
		}
		sample := math.Sin(2 * math.Pi * part.frequencyHz * float64(i) / sampleRate)
		pcm[i] = int16(math.Round(sample * part.volume * envelope * 32767))
	}
	return pcm
}

func samplesFor(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * sampleRate))
}
