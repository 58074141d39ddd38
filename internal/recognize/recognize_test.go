package recognize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/parley/internal/backend"
	"github.com/rbright/parley/internal/config"
	"github.com/rbright/parley/internal/fault"
	"github.com/rbright/parley/internal/segment"
	"github.com/rbright/parley/internal/service"
	"github.com/rbright/parley/internal/wav"
)

// stubTranscriber reports the clip bounds it was handed, in seconds.
type stubTranscriber struct {
	mu     sync.Mutex
	calls  int
	failAt int
}

func (s *stubTranscriber) Transcribe(_ context.Context, samples []float32, rate int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failAt > 0 && s.calls == s.failAt {
		return "", errors.New("decoder exploded")
	}
	return fmt.Sprintf("  heard %.1f seconds  ", float64(len(samples))/float64(rate)), nil
}

func (s *stubTranscriber) Close() error { return nil }

func (s *stubTranscriber) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubDiarizer struct {
	turns   []segment.Diarized
	rate    int
	got     int
	block   chan struct{}
	entered chan struct{}
}

func (d *stubDiarizer) SampleRate() int { return d.rate }
func (d *stubDiarizer) Close() error { return nil }

func (d *stubDiarizer) Diarize(_ context.Context, samples []float32) ([]segment.Diarized, error) {
	d.got = len(samples)
	if d.block != nil {
		close(d.entered)
		<-d.block
	}
	return d.turns, nil
}

// testFactory builds real segmenters and swaps in stubs where set.
type testFactory struct {
	backend.DefaultFactory
	transcriber backend.Transcriber
	diarizer    backend.Diarizer
}

func (f *testFactory) BuildTranscriber(context.Context, config.Transcription) (backend.Transcriber, error) {
	return f.transcriber, nil
}

func (f *testFactory) BuildDiarizer(ctx context.Context, cfg config.Diarization) (backend.Diarizer, error) {
	if f.diarizer != nil {
		return f.diarizer, nil
	}
	return f.DefaultFactory.BuildDiarizer(ctx, cfg)
}

func newEngine(t *testing.T, factory *testFactory) *Engine {
	t.Helper()
	svc := service.New(factory, nil)
	_, err := svc.Apply(context.Background(), config.Default().Engine)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, svc.Close()) })
	return New(svc, nil, Options{CapitalizeSentences: true})
}

func tone(seconds float64, rate int) []float32 {
	out := make([]float32, int(seconds*float64(rate)))
	for i := range out {
		out[i] = 0.5 * float32(math.Sin(2*math.Pi*220*float64(i)/float64(rate)))
	}
	return out
}

func starts(lines []Line) []float64 {
	out := make([]float64, 0, len(lines))
	for _, line := range lines {
		out = append(out, line.Start)
	}
	return out
}

func TestProcessSortsDiarizedTurns(t *testing.T) {
	engine := newEngine(t, &testFactory{
		transcriber: &stubTranscriber{},
		diarizer: &stubDiarizer{rate: 16000, turns: []segment.Diarized{
			{Speaker: 1, Start: 3, End: 4},
			{Speaker: 0, Start: 1, End: 2},
			{Speaker: 1, Start: 2, End: 3},
		}},
	})

	result, err := engine.Process(context.Background(), wav.Audio{Samples: tone(5, 16000), SampleRate: 16000})
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2, 3}, starts(result.Lines))
	require.Equal(t, "Heard 1.0 seconds", result.Lines[0].Text)
	require.NotEmpty(t, result.RequestID)
}

func TestProcessFourSpeakerScenario(t *testing.T) {
	engine := newEngine(t, &testFactory{
		transcriber: &stubTranscriber{},
		diarizer: &stubDiarizer{rate: 16000, turns: []segment.Diarized{
			{Speaker: 2, Start: 6.5, End: 8.0},
			{Speaker: 0, Start: 0.0, End: 2.5},
			{Speaker: 3, Start: 7.5, End: 9.5},
			{Speaker: 1, Start: 2.0, End: 4.0},
			{Speaker: 0, Start: 4.0, End: 6.8},
		}},
	})

	result, err := engine.Process(context.Background(), wav.Audio{Samples: tone(10, 16000), SampleRate: 16000})
	require.NoError(t, err)
	require.Len(t, result.Lines, 5)
	require.Equal(t, []float64{0, 2, 4, 6.5, 7.5}, starts(result.Lines))

	speakers := []int{}
	for _, line := range result.Lines {
		require.NotNil(t, line.Speaker)
		require.NotEmpty(t, line.Text)
		speakers = append(speakers, *line.Speaker)
	}
	require.Equal(t, []int{0, 1, 0, 2, 3}, speakers)
	require.Equal(t, "speaker_02", result.Lines[3].SpeakerLabel())
	require.GreaterOrEqual(t, result.DiarizationLatency, time.Duration(0))
	require.GreaterOrEqual(t, result.TranscriptionLatency, time.Duration(0))
}

func TestProcessSilenceYieldsEmptyResult(t *testing.T) {
	transcriber := &stubTranscriber{}
	engine := newEngine(t, &testFactory{transcriber: transcriber})

	result, err := engine.Process(context.Background(), wav.Audio{Samples: make([]float32, 32000), SampleRate: 16000})
	require.NoError(t, err)
	require.Empty(t, result.Lines)
	require.Zero(t, transcriber.count())
}

func TestProcessRejectsEmptyAudio(t *testing.T) {
	engine := newEngine(t, &testFactory{transcriber: &stubTranscriber{}})

	_, err := engine.Process(context.Background(), wav.Audio{Samples: nil, SampleRate: 16000})
	require.ErrorIs(t, err, fault.ErrEmptyAudio)
	_, err = engine.ProcessSegmented(context.Background(), wav.Audio{Samples: []float32{}, SampleRate: 16000})
	require.ErrorIs(t, err, fault.ErrEmptyAudio)
}

func TestProcessResamplesToDiarizerRate(t *testing.T) {
	diarizer := &stubDiarizer{rate: 16000, turns: []segment.Diarized{{Speaker: 0, Start: 0, End: 1}}}
	engine := newEngine(t, &testFactory{transcriber: &stubTranscriber{}, diarizer: diarizer})

	result, err := engine.Process(context.Background(), wav.Audio{Samples: tone(2, 48000), SampleRate: 48000})
	require.NoError(t, err)
	require.InDelta(t, 32000, diarizer.got, 2)
	require.Equal(t, "Heard 1.0 seconds", result.Lines[0].Text)
}

func TestProcessSkipsShortTurns(t *testing.T) {
	transcriber := &stubTranscriber{}
	engine := newEngine(t, &testFactory{
		transcriber: transcriber,
		diarizer: &stubDiarizer{rate: 16000, turns: []segment.Diarized{
			{Speaker: 0, Start: 0, End: 1},
			{Speaker: 1, Start: 1, End: 1.05},
		}},
	})

	result, err := engine.Process(context.Background(), wav.Audio{Samples: tone(2, 16000), SampleRate: 16000})
	require.NoError(t, err)
	require.Len(t, result.Lines, 1)
	require.Equal(t, 1, transcriber.count())
}

func TestProcessSegmentFailureAbortsWithBounds(t *testing.T) {
	engine := newEngine(t, &testFactory{
		transcriber: &stubTranscriber{failAt: 2},
		diarizer: &stubDiarizer{rate: 16000, turns: []segment.Diarized{
			{Speaker: 0, Start: 0, End: 1},
			{Speaker: 1, Start: 2, End: 3},
			{Speaker: 0, Start: 3, End: 4},
		}},
	})

	result, err := engine.Process(context.Background(), wav.Audio{Samples: tone(4, 16000), SampleRate: 16000})
	require.ErrorIs(t, err, fault.ErrSegmentTranscription)
	require.Contains(t, err.Error(), "[2.000s, 3.000s)")
	require.Contains(t, err.Error(), "decoder exploded")
	require.Empty(t, result.Lines)
}

func TestProcessReturnsWhenCancelledDuringDiarization(t *testing.T) {
	diarizer := &stubDiarizer{rate: 16000, block: make(chan struct{}), entered: make(chan struct{})}
	engine := newEngine(t, &testFactory{transcriber: &stubTranscriber{}, diarizer: diarizer})
	defer close(diarizer.block)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-diarizer.entered
		cancel()
	}()

	_, err := engine.Process(ctx, wav.Audio{Samples: tone(1, 16000), SampleRate: 16000})
	require.ErrorIs(t, err, fault.ErrCancelled)
	require.Equal(t, fault.CodeCancelled, fault.CodeOf(err))
}

// quietConversation is a tone far below full scale between two seconds of
// silence, as a float source would deliver it before normalization.
func quietConversation() wav.Audio {
	var samples []float32
	samples = append(samples, make([]float32, 32000)...)
	for _, v := range tone(1, 16000) {
		samples = append(samples, v*0.004)
	}
	samples = append(samples, make([]float32, 32000)...)
	return wav.Audio{Samples: samples, SampleRate: 16000}
}

func TestProcessNormalizesQuietFloatInput(t *testing.T) {
	transcriber := &stubTranscriber{}
	engine := newEngine(t, &testFactory{transcriber: transcriber})

	result, err := engine.Process(context.Background(), quietConversation())
	require.NoError(t, err)
	require.NotEmpty(t, result.Lines)
	require.InDelta(t, 2.0, result.Lines[0].Start, 0.15)
	require.Equal(t, len(result.Lines), transcriber.count())
}

func TestProcessSegmentedNormalizesQuietFloatInput(t *testing.T) {
	engine := newEngine(t, &testFactory{transcriber: &stubTranscriber{}})

	result, err := engine.ProcessSegmented(context.Background(), quietConversation())
	require.NoError(t, err)
	require.Len(t, result.Lines, 1)
	require.InDelta(t, 2.0, result.Lines[0].Start, 0.05)
	require.InDelta(t, 3.0, result.Lines[0].End, 0.05)
}

func TestProcessStreamKeepsThresholdAcrossReload(t *testing.T) {
	transcriber := &stubTranscriber{}
	svc := service.New(&testFactory{transcriber: transcriber}, nil)
	t.Cleanup(func() { require.NoError(t, svc.Close()) })
	_, err := svc.Apply(context.Background(), config.Default().Engine)
	require.NoError(t, err)
	engine := New(svc, nil, Options{})

	stricter := config.Default().Engine
	stricter.MinSegmentDuration = 5
	events := segment.NewSequence(func(yield func(segment.Event, error) bool) {
		if !yield(segment.Span(0, 1, tone(1, 16000), 16000), nil) {
			return
		}
		if _, err := svc.Apply(context.Background(), stricter); err != nil {
			yield(segment.Event{}, err)
			return
		}
		yield(segment.Span(1, 2, tone(1, 16000), 16000), nil)
	})

	result, err := engine.ProcessStream(context.Background(), events)
	require.NoError(t, err)
	require.Len(t, result.Lines, 2)
	require.Equal(t, 2, transcriber.count())
	require.InDelta(t, 5, svc.Engine().MinSegmentDuration, 1e-9)
}

func TestProcessNeedsAppliedConfiguration(t *testing.T) {
	engine := New(service.New(&testFactory{}, nil), nil, Options{})

	_, err := engine.Process(context.Background(), wav.Audio{Samples: tone(1, 16000), SampleRate: 16000})
	require.ErrorIs(t, err, fault.ErrNotInitialized)
}

func TestProcessStreamSkipsControlSignals(t *testing.T) {
	transcriber := &stubTranscriber{}
	engine := newEngine(t, &testFactory{transcriber: transcriber})

	events := segment.Of(
		segment.Span(0, 1, tone(1, 16000), 16000),
		segment.Pause(),
		segment.Resume(),
		segment.Span(2, 3, tone(1, 16000), 16000),
	)
	result, err := engine.ProcessStream(context.Background(), events)
	require.NoError(t, err)
	require.Len(t, result.Lines, 2)
	require.Equal(t, []float64{0, 2}, starts(result.Lines))
	require.Nil(t, result.Lines[0].Speaker)
	require.Equal(t, 2, transcriber.count())
}

func TestProcessStreamDropsSpansBelowMinimum(t *testing.T) {
	transcriber := &stubTranscriber{}
	engine := newEngine(t, &testFactory{transcriber: transcriber})

	events := segment.Of(
		segment.Span(0, 0.05, tone(0.05, 16000), 16000),
		segment.Span(1, 2, tone(1, 16000), 16000),
	)
	result, err := engine.ProcessStream(context.Background(), events)
	require.NoError(t, err)
	require.Len(t, result.Lines, 1)
	require.Equal(t, 1.0, result.Lines[0].Start)
	require.Equal(t, 1, transcriber.count())
}

func TestProcessStreamPropagatesSegmentationError(t *testing.T) {
	engine := newEngine(t, &testFactory{transcriber: &stubTranscriber{}})

	events := segment.NewSequence(func(yield func(segment.Event, error) bool) {
		yield(segment.Event{}, errors.New("capture lost"))
	})
	_, err := engine.ProcessStream(context.Background(), events)
	require.ErrorContains(t, err, "capture lost")
}

func TestProcessStreamCancelled(t *testing.T) {
	transcriber := &stubTranscriber{}
	engine := newEngine(t, &testFactory{transcriber: transcriber})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := engine.ProcessStream(ctx, segment.Of(segment.Span(0, 1, tone(1, 16000), 16000)))
	require.ErrorIs(t, err, fault.ErrCancelled)
	require.Zero(t, transcriber.count())
}

func TestProcessSegmentedUsesLiveSegmenter(t *testing.T) {
	engine := newEngine(t, &testFactory{transcriber: &stubTranscriber{}})

	var samples []float32
	samples = append(samples, make([]float32, 16000)...)
	samples = append(samples, tone(1, 16000)...)
	samples = append(samples, make([]float32, 16000)...)

	result, err := engine.ProcessSegmented(context.Background(), wav.Audio{Samples: samples, SampleRate: 16000})
	require.NoError(t, err)
	require.Len(t, result.Lines, 1)
	require.InDelta(t, 1.0, result.Lines[0].Start, 0.05)
	require.InDelta(t, 2.0, result.Lines[0].End, 0.05)
}

func TestResultJSON(t *testing.T) {
	speaker := 3
	result := Result{
		Lines: []Line{
			{Speaker: &speaker, Start: 1, End: 2, Text: "Hello."},
			{Start: 2, End: 3, Text: "World."},
		},
		DiarizationLatency:   1500 * time.Millisecond,
		TranscriptionLatency: 250 * time.Millisecond,
	}
	data, err := json.Marshal(result)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"sentences": [
			{"speaker": 3, "start": 1, "end": 2, "text": "Hello."},
			{"speaker": null, "start": 2, "end": 3, "text": "World."}
		],
		"diarization_time": 1.5,
		"transcription_time": 0.25
	}`, string(data))

	var decoded Result
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, result, decoded)
}

func TestResultJSONEmptyLines(t *testing.T) {
	data, err := json.Marshal(Result{})
	require.NoError(t, err)
	require.Contains(t, string(data), `"sentences":[]`)
}

func TestPrepareNormalizesFloatInput(t *testing.T) {
	require.Equal(t, []float32{0.5, -1}, Prepare(wav.Audio{Samples: []float32{0.1, -0.2}}))
	require.Equal(t, []float32{0.1, -0.2}, Prepare(wav.Audio{Samples: []float32{0.1, -0.2}, Quantized: true}))
}

func TestProcessStreamFuncEmitsEachLine(t *testing.T) {
	engine := newEngine(t, &testFactory{transcriber: &stubTranscriber{}})

	var emitted []Line
	events := segment.Of(
		segment.Span(0, 1, tone(1, 16000), 16000),
		segment.Span(1.5, 2, tone(0.5, 16000), 16000),
	)
	result, err := engine.ProcessStreamFunc(context.Background(), events, func(line Line) {
		emitted = append(emitted, line)
	})
	require.NoError(t, err)
	require.Equal(t, result.Lines, emitted)
	require.Equal(t, "Heard 0.5 seconds", emitted[1].Text)
}
