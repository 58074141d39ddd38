// Package recognize drives segmentation, diarization, and transcription into
// one time-ordered transcript.
package recognize

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/rbright/parley/internal/backend"
	"github.com/rbright/parley/internal/fault"
	"github.com/rbright/parley/internal/resample"
	"github.com/rbright/parley/internal/segment"
	"github.com/rbright/parley/internal/service"
	"github.com/rbright/parley/internal/transcript"
	"github.com/rbright/parley/internal/wav"
)

// Options controls result assembly.
type Options struct {
	CapitalizeSentences bool
}

// Engine runs recognition requests against the live backends of a service
// context. It holds no per-request state and is safe for concurrent use.
type Engine struct {
	svc    *service.Context
	logger *slog.Logger
	text   transcript.Options
}

// New returns an engine bound to svc.
func New(svc *service.Context, logger *slog.Logger, opts Options) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		svc:    svc,
		logger: logger,
		text:   transcript.Options{CapitalizeSentences: opts.CapitalizeSentences},
	}
}

// Prepare normalizes decoded audio into [-1, 1]. Integer sources are
// already scaled by full scale; float sources are divided by their peak.
func Prepare(audio wav.Audio) []float32 {
	if audio.Quantized {
		return audio.Samples
	}
	return segment.Normalize(audio.Samples)
}

func checkInput(audio wav.Audio) error {
	if len(audio.Samples) == 0 {
		return fault.New(fault.CodeEmptyAudio, nil, "audio input is empty")
	}
	if audio.SampleRate <= 0 {
		return fault.Configuration("sample rate must be > 0, got %d", audio.SampleRate)
	}
	return nil
}

// Process transcribes a whole waveform with speaker attribution.
//
// The waveform is normalized and diarized once, the speaker turns are sorted
// by start time, and each turn is transcribed independently. Any failing turn
// aborts the request.
func (e *Engine) Process(ctx context.Context, audio wav.Audio) (Result, error) {
	if err := checkInput(audio); err != nil {
		return Result{}, err
	}
	result := Result{RequestID: uuid.NewString()}
	logger := e.logger.With("request_id", result.RequestID, "mode", "diarized")

	snap, err := e.svc.Snapshot(backend.Diarization, backend.Transcription)
	if err != nil {
		return Result{}, err
	}
	// diarize owns the diarizer lease from here on.
	diarizer := snap.Diarizer
	snap.Diarizer = nil
	defer snap.Release()

	rate := diarizer.Instance().SampleRate()
	samples, err := e.conform(logger, Prepare(audio), audio.SampleRate, rate)
	if err != nil {
		diarizer.Release()
		return Result{}, err
	}

	started := time.Now()
	turns, err := diarize(ctx, diarizer, samples)
	result.DiarizationLatency = time.Since(started)
	if err != nil {
		logger.Error("diarization failed", "code", string(fault.CodeOf(err)), "error", err.Error())
		return Result{}, err
	}
	slices.SortStableFunc(turns, func(a, b segment.Diarized) int {
		return cmp.Compare(a.Start, b.Start)
	})
	logger.Debug("diarization complete", "turns", len(turns), "diarization_ms", result.DiarizationLatency.Milliseconds())

	minDuration := snap.Engine.MinSegmentDuration
	started = time.Now()
	for _, turn := range turns {
		if turn.End-turn.Start < minDuration {
			logger.Debug("skip short turn", "start", turn.Start, "end", turn.End)
			continue
		}
		clip := segment.Slice(samples, rate, turn.Start, turn.End)
		if len(clip) == 0 {
			logger.Debug("skip turn outside waveform", "start", turn.Start, "end", turn.End)
			continue
		}
		text, err := e.transcribe(ctx, snap.Transcriber, clip, rate, turn.Start, turn.End)
		if err != nil {
			logger.Error("transcription failed", "code", string(fault.CodeOf(err)), "error", err.Error())
			return Result{}, err
		}
		speaker := turn.Speaker
		result.Lines = append(result.Lines, Line{Speaker: &speaker, Start: turn.Start, End: turn.End, Text: text})
	}
	result.TranscriptionLatency = time.Since(started)

	e.logDone(logger, result)
	return result, nil
}

// ProcessSegmented normalizes a whole waveform, segments it with the live
// segmenter and transcribes each span.
func (e *Engine) ProcessSegmented(ctx context.Context, audio wav.Audio) (Result, error) {
	if err := checkInput(audio); err != nil {
		return Result{}, err
	}
	snap, err := e.svc.Snapshot(backend.Segmentation, backend.Transcription)
	if err != nil {
		return Result{}, err
	}
	defer snap.Release()

	segmenter := snap.Segmenter.Instance()
	samples, err := e.conform(e.logger, Prepare(audio), audio.SampleRate, segmenter.SampleRate())
	if err != nil {
		return Result{}, err
	}
	return e.processStream(ctx, snap, backend.Segment(segmenter, samples), nil)
}

// ProcessStream transcribes every audio span of events in emission order.
//
// Pause and resume markers are skipped. Spans shorter than the configured
// minimum duration are dropped without being transcribed. Lines carry no
// speaker.
func (e *Engine) ProcessStream(ctx context.Context, events *segment.Sequence) (Result, error) {
	return e.ProcessStreamFunc(ctx, events, nil)
}

// ProcessStreamFunc is ProcessStream that also hands each line to emit as
// soon as it is transcribed.
func (e *Engine) ProcessStreamFunc(ctx context.Context, events *segment.Sequence, emit func(Line)) (Result, error) {
	snap, err := e.svc.Snapshot(backend.Transcription)
	if err != nil {
		return Result{}, err
	}
	defer snap.Release()
	return e.processStream(ctx, snap, events, emit)
}

func (e *Engine) processStream(ctx context.Context, snap *service.Snapshot, events *segment.Sequence, emit func(Line)) (Result, error) {
	result := Result{RequestID: uuid.NewString()}
	logger := e.logger.With("request_id", result.RequestID, "mode", "segmented")

	minDuration := snap.Engine.MinSegmentDuration
	started := time.Now()
	for event, err := range events.All() {
		if err != nil {
			logger.Error("segmentation failed", "error", err.Error())
			return Result{}, fmt.Errorf("segment audio: %w", err)
		}
		if event.IsControl() {
			logger.Debug("control signal", "kind", event.Kind.String())
			continue
		}
		if event.Duration() < minDuration || len(event.Samples) == 0 {
			logger.Debug("skip short span", "start", event.Start, "end", event.End)
			continue
		}
		text, err := e.transcribe(ctx, snap.Transcriber, event.Samples, event.SampleRate, event.Start, event.End)
		if err != nil {
			logger.Error("transcription failed", "code", string(fault.CodeOf(err)), "error", err.Error())
			return Result{}, err
		}
		line := Line{Start: event.Start, End: event.End, Text: text}
		result.Lines = append(result.Lines, line)
		if emit != nil {
			emit(line)
		}
	}
	result.TranscriptionLatency = time.Since(started)

	e.logDone(logger, result)
	return result, nil
}

// conform resamples to the backend rate. A mismatch is recovered, not fatal.
func (e *Engine) conform(logger *slog.Logger, samples []float32, from, to int) ([]float32, error) {
	if from == to {
		return samples, nil
	}
	logger.Debug("resampling input",
		"code", string(fault.CodeSampleRateMismatch),
		"from_hz", from,
		"to_hz", to,
	)
	out, err := resample.Mono(samples, from, to)
	if err != nil {
		return nil, fault.New(fault.CodeSampleRateMismatch, err, "resample %d Hz to %d Hz", from, to)
	}
	return out, nil
}

func (e *Engine) transcribe(
	ctx context.Context,
	lease *service.TranscriberLease,
	clip []float32,
	rate int,
	start, end float64,
) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", cancelled(err)
	}
	var text string
	err := lease.Call(ctx, func(t backend.Transcriber) error {
		var err error
		text, err = t.Transcribe(ctx, clip, rate)
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", cancelled(ctx.Err())
		}
		return "", fault.SegmentTranscription(start, end, err)
	}
	return transcript.Normalize(text, e.text), nil
}

func (e *Engine) logDone(logger *slog.Logger, result Result) {
	logger.Info("recognition complete",
		"lines", len(result.Lines),
		"diarization_ms", result.DiarizationLatency.Milliseconds(),
		"transcription_ms", result.TranscriptionLatency.Milliseconds(),
	)
}

type diarization struct {
	turns []segment.Diarized
	err   error
}

// diarize runs the diarizer off the request goroutine so a cancelled request
// returns even when the backend ignores ctx. The goroutine owns the lease and
// releases it only once the backend call has returned.
func diarize(ctx context.Context, lease *service.DiarizerLease, samples []float32) ([]segment.Diarized, error) {
	done := make(chan diarization, 1)
	go func() {
		defer lease.Release()
		var out diarization
		out.err = lease.Call(ctx, func(d backend.Diarizer) error {
			var err error
			out.turns, err = d.Diarize(ctx, samples)
			return err
		})
		done <- out
	}()

	select {
	case <-ctx.Done():
		return nil, cancelled(ctx.Err())
	case out := <-done:
		if out.err != nil {
			if ctx.Err() != nil || errors.Is(out.err, context.Canceled) {
				return nil, cancelled(out.err)
			}
			return nil, fmt.Errorf("diarize audio: %w", out.err)
		}
		return slices.Clone(out.turns), nil
	}
}

func cancelled(err error) error {
	return fault.New(fault.CodeCancelled, err, "recognition request cancelled")
}
