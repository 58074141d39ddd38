// Package pipeline runs live microphone capture through the segmentation
// stream and transcribes each closed span as it arrives.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rbright/parley/internal/audio"
	"github.com/rbright/parley/internal/backend"
	"github.com/rbright/parley/internal/config"
	"github.com/rbright/parley/internal/recognize"
	"github.com/rbright/parley/internal/segment"
	"github.com/rbright/parley/internal/service"
	"github.com/rbright/parley/internal/session"
	"github.com/rbright/parley/internal/wav"
)

// Source is a running capture delivering normalized mono chunks.
type Source interface {
	Chunks() <-chan []float32
	Stop() error
	BytesCaptured() int64
	Recorded() []byte
}

type (
	// SelectFunc resolves the capture device.
	SelectFunc func(ctx context.Context, input, fallback string) (audio.Selection, error)
	// OpenFunc starts capture on a device.
	OpenFunc func(ctx context.Context, device audio.Device, opts audio.Options) (Source, error)
)

// Options wires a Listener.
type Options struct {
	Audio config.AudioConfig
	// SavePath, when set, receives the captured audio as a WAV file.
	SavePath string
	// OnLine observes each line as soon as it is transcribed.
	OnLine func(recognize.Line)
	Logger *slog.Logger

	Select SelectFunc
	Open   OpenFunc
}

var errNotStarted = errors.New("listener is not started")

// Listener owns one live capture session: the capture source, a segmentation
// stream, and the transcription loop consuming the stream's events.
type Listener struct {
	svc    *service.Context
	engine *recognize.Engine
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	started bool
	closed  bool
	device  audio.Device
	rate    int
	source  Source
	stream  backend.Stream
	lease   *service.SegmenterLease
	events  chan segment.Event
	cancel  context.CancelFunc

	done    chan struct{}
	result  recognize.Result
	err     error
	lines   atomic.Int64
	stopped atomic.Bool
}

var _ session.Recorder = (*Listener)(nil)

// New returns an idle listener.
func New(svc *service.Context, engine *recognize.Engine, opts Options) *Listener {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Select == nil {
		opts.Select = audio.SelectDevice
	}
	if opts.Open == nil {
		opts.Open = func(ctx context.Context, device audio.Device, o audio.Options) (Source, error) {
			return audio.Start(ctx, device, o)
		}
	}
	return &Listener{svc: svc, engine: engine, opts: opts, logger: opts.Logger, done: make(chan struct{})}
}

// Start selects the device, opens a segmentation stream at the segmenter's
// rate, and begins capture.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return errors.New("listener already started")
	}

	selection, err := l.opts.Select(ctx, l.opts.Audio.Input, l.opts.Audio.Fallback)
	if err != nil {
		return err
	}
	if selection.Warning != "" {
		l.logger.Warn(selection.Warning)
	}

	lease, err := l.svc.Segmenter()
	if err != nil {
		return err
	}
	capture := audio.DefaultOptions()
	capture.SampleRate = lease.Instance().SampleRate()
	capture.Keep = l.opts.SavePath != ""

	runCtx, cancel := context.WithCancel(ctx)
	source, err := l.opts.Open(runCtx, selection.Device, capture)
	if err != nil {
		cancel()
		lease.Release()
		return err
	}

	l.started = true
	l.device = selection.Device
	l.rate = capture.SampleRate
	l.source = source
	l.lease = lease
	l.stream = lease.Instance().NewStream()
	l.events = make(chan segment.Event, 64)
	l.cancel = cancel

	go l.feed()
	go l.transcribe(runCtx)

	l.logger.Info("listening",
		"device", describeDevice(selection.Device),
		"sample_rate", capture.SampleRate,
		"segmentation", string(lease.Config().Variant),
	)
	return nil
}

// feed pushes captured audio through the segmentation stream until the
// source closes, then flushes the stream and ends the event sequence.
func (l *Listener) feed() {
	for chunk := range l.source.Chunks() {
		l.mu.Lock()
		l.emit(l.stream.Accept(chunk))
		l.mu.Unlock()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.emit(l.stream.Flush())
	if err := l.stream.Close(); err != nil {
		l.logger.Warn("close segmentation stream", "error", err.Error())
	}
	l.closed = true
	close(l.events)
}

// emit sends in order; callers hold l.mu so pause markers cannot interleave
// with a half-delivered batch.
func (l *Listener) emit(events []segment.Event) {
	for _, event := range events {
		l.events <- event
	}
}

func (l *Listener) transcribe(ctx context.Context) {
	defer close(l.done)

	events := segment.NewSequence(func(yield func(segment.Event, error) bool) {
		for event := range l.events {
			if !yield(event, nil) {
				return
			}
		}
	})
	result, err := l.engine.ProcessStreamFunc(ctx, events, func(line recognize.Line) {
		l.lines.Add(1)
		l.logger.Debug("line transcribed", "start", line.Start, "end", line.End)
		if l.opts.OnLine != nil {
			l.opts.OnLine(line)
		}
	})
	if err != nil {
		// Unblock feed and end the capture; the session reads err from Stop.
		_ = l.source.Stop()
		for range l.events {
		}
	}
	l.result, l.err = result, err
}

// Pause flushes the open span, marks the stream paused, and drops audio
// until Resume.
func (l *Listener) Pause(context.Context) error {
	return l.control(func(s backend.Stream) ([]segment.Event, error) {
		if s.Paused() {
			return nil, errors.New("already paused")
		}
		return s.Pause(), nil
	})
}

// Resume restarts span detection after a pause.
func (l *Listener) Resume(context.Context) error {
	return l.control(func(s backend.Stream) ([]segment.Event, error) {
		if !s.Paused() {
			return nil, errors.New("not paused")
		}
		return s.Resume(), nil
	})
}

func (l *Listener) control(fn func(backend.Stream) ([]segment.Event, error)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.started || l.closed {
		return errNotStarted
	}
	events, err := fn(l.stream)
	if err != nil {
		return err
	}
	l.emit(events)
	return nil
}

// Lines counts lines transcribed so far.
func (l *Listener) Lines() int {
	return int(l.lines.Load())
}

// Done closes when the transcription loop ends, whether stopped or failed.
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

// Stop ends capture, waits for the remaining spans to be transcribed, and
// returns the session transcript.
func (l *Listener) Stop(ctx context.Context) (session.StopResult, error) {
	if err := l.finish(); err != nil {
		return session.StopResult{}, err
	}

	select {
	case <-l.done:
	case <-ctx.Done():
		l.cancel()
		<-l.done
	}
	out := l.release()
	if l.err != nil {
		return out, l.err
	}
	out.Result = l.result
	return out, nil
}

// Cancel ends capture and abandons any pending transcription.
func (l *Listener) Cancel(context.Context) error {
	if err := l.finish(); err != nil {
		return err
	}
	l.cancel()
	<-l.done
	l.release()
	return nil
}

func (l *Listener) finish() error {
	l.mu.Lock()
	started := l.started
	l.mu.Unlock()
	if !started {
		return errNotStarted
	}
	if l.stopped.CompareAndSwap(false, true) {
		return l.source.Stop()
	}
	return nil
}

func (l *Listener) release() session.StopResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lease != nil {
		l.lease.Release()
		l.lease = nil
		l.cancel()
		l.save()
	}
	return session.StopResult{
		AudioDevice:   describeDevice(l.device),
		BytesCaptured: l.source.BytesCaptured(),
	}
}

// save writes the kept capture as 16-bit WAV at the capture rate.
func (l *Listener) save() {
	if l.opts.SavePath == "" {
		return
	}
	pcm := l.source.Recorded()
	if len(pcm) == 0 {
		return
	}
	file, err := os.OpenFile(l.opts.SavePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		l.logger.Warn("save capture", "error", err.Error())
		return
	}
	defer file.Close()
	if err := wav.WritePCM16(file, pcm, l.rate, 1); err != nil {
		l.logger.Warn("save capture", "error", err.Error())
		return
	}
	l.logger.Info("capture saved", "path", l.opts.SavePath, "bytes", len(pcm))
}

// describeDevice formats device metadata for logs and session results.
func describeDevice(device audio.Device) string {
	description := strings.TrimSpace(device.Description)
	id := strings.TrimSpace(device.ID)
	switch {
	case description == "":
		return id
	case id == "":
		return description
	default:
		return fmt.Sprintf("%s (%s)", description, id)
	}
}
