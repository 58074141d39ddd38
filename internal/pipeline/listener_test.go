package pipeline

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/parley/internal/audio"
	"github.com/rbright/parley/internal/backend"
	"github.com/rbright/parley/internal/config"
	"github.com/rbright/parley/internal/recognize"
	"github.com/rbright/parley/internal/service"
	"github.com/rbright/parley/internal/wav"
)

type fakeSource struct {
	mu     sync.Mutex
	chunks chan []float32
	closed bool
	pcm    []byte
}

func newFakeSource() *fakeSource {
	return &fakeSource{chunks: make(chan []float32, 256)}
}

func (s *fakeSource) Chunks() <-chan []float32 { return s.chunks }

func (s *fakeSource) BytesCaptured() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.pcm))
}

func (s *fakeSource) Recorded() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.pcm...)
}

func (s *fakeSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.chunks)
	}
	return nil
}

// push delivers seconds of tone (or silence) in 100ms chunks until stopped.
func (s *fakeSource) push(seconds float64, loud bool) {
	for range int(seconds * 10) {
		chunk := make([]float32, 1600)
		if loud {
			for i := range chunk {
				chunk[i] = 0.5 * float32(math.Sin(2*math.Pi*220*float64(i)/16000))
			}
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		s.pcm = append(s.pcm, wav.PCM16(chunk)...)
		s.chunks <- chunk
		s.mu.Unlock()
	}
}

func (s *fakeSource) drained() bool {
	return len(s.chunks) == 0
}

type echoTranscriber struct {
	fail bool
}

func (e echoTranscriber) Transcribe(context.Context, []float32, int) (string, error) {
	if e.fail {
		return "", errors.New("remote transcriber unavailable")
	}
	return "speech", nil
}

func (echoTranscriber) Close() error { return nil }

type factory struct {
	backend.DefaultFactory
	transcriber backend.Transcriber
}

func (f *factory) BuildTranscriber(context.Context, config.Transcription) (backend.Transcriber, error) {
	return f.transcriber, nil
}

func newListener(t *testing.T, source *fakeSource, transcriber backend.Transcriber, savePath string) (*Listener, *[]recognize.Line) {
	t.Helper()
	svc := service.New(&factory{transcriber: transcriber}, nil)
	_, err := svc.Apply(context.Background(), config.Default().Engine)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, svc.Close()) })

	var (
		mu    sync.Mutex
		lines []recognize.Line
	)
	l := New(svc, recognize.New(svc, nil, recognize.Options{}), Options{
		SavePath: savePath,
		OnLine: func(line recognize.Line) {
			mu.Lock()
			defer mu.Unlock()
			lines = append(lines, line)
		},
		Select: func(context.Context, string, string) (audio.Selection, error) {
			return audio.Selection{Device: audio.Device{ID: "alsa_input.usb-rode", Description: "RODE NT-USB"}}, nil
		},
		Open: func(_ context.Context, _ audio.Device, opts audio.Options) (Source, error) {
			require.Equal(t, 16000, opts.SampleRate)
			return source, nil
		},
	})
	return l, &lines
}

func TestListenerTranscribesSpansAsTheyClose(t *testing.T) {
	source := newFakeSource()
	l, _ := newListener(t, source, echoTranscriber{}, "")
	ctx := context.Background()
	require.NoError(t, l.Start(ctx))

	source.push(0.5, false)
	source.push(1, true)
	source.push(1.5, false)
	require.Eventually(t, func() bool { return l.Lines() == 1 }, 2*time.Second, 10*time.Millisecond)

	source.push(1, true)
	out, err := l.Stop(ctx)
	require.NoError(t, err)
	require.Len(t, out.Result.Lines, 2)
	require.Equal(t, "RODE NT-USB (alsa_input.usb-rode)", out.AudioDevice)
	require.InDelta(t, 0.5, out.Result.Lines[0].Start, 0.05)
	require.InDelta(t, 3.0, out.Result.Lines[1].Start, 0.05)
	require.Nil(t, out.Result.Lines[0].Speaker)
}

func TestListenerPauseFlushesAndSkipsAudio(t *testing.T) {
	source := newFakeSource()
	l, lines := newListener(t, source, echoTranscriber{}, "")
	ctx := context.Background()
	require.NoError(t, l.Start(ctx))

	source.push(1, true)
	require.Eventually(t, source.drained, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, l.Pause(ctx))
	require.ErrorContains(t, l.Pause(ctx), "already paused")

	source.push(1, true)
	require.Eventually(t, source.drained, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, l.Resume(ctx))
	require.ErrorContains(t, l.Resume(ctx), "not paused")

	source.push(0.5, false)
	source.push(1, true)
	out, err := l.Stop(ctx)
	require.NoError(t, err)
	require.Len(t, out.Result.Lines, 2)
	require.InDelta(t, 1.0, out.Result.Lines[0].End, 0.1)
	require.InDelta(t, 2.5, out.Result.Lines[1].Start, 0.1)
	require.Len(t, *lines, 2)
}

func TestListenerTranscriptionFailureEndsSession(t *testing.T) {
	source := newFakeSource()
	l, _ := newListener(t, source, echoTranscriber{fail: true}, "")
	ctx := context.Background()
	require.NoError(t, l.Start(ctx))

	source.push(1, true)
	source.push(1.5, false)

	select {
	case <-l.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("listener kept running after a transcription failure")
	}
	_, err := l.Stop(ctx)
	require.ErrorContains(t, err, "remote transcriber unavailable")
}

func TestListenerCancel(t *testing.T) {
	source := newFakeSource()
	l, _ := newListener(t, source, echoTranscriber{}, "")
	require.NoError(t, l.Start(context.Background()))

	source.push(1, true)
	require.NoError(t, l.Cancel(context.Background()))
	<-l.Done()
}

func TestListenerSavesCapture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.wav")
	source := newFakeSource()
	l, _ := newListener(t, source, echoTranscriber{}, path)
	require.NoError(t, l.Start(context.Background()))

	source.push(1, true)
	_, err := l.Stop(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "RIFF", string(data[0:4]))
	require.Equal(t, uint32(16000), binary.LittleEndian.Uint32(data[24:28]))
	require.Len(t, data, 44+32000)
}

func TestListenerRequiresStart(t *testing.T) {
	l := New(service.New(&factory{}, nil), nil, Options{})
	_, err := l.Stop(context.Background())
	require.ErrorIs(t, err, errNotStarted)
	require.ErrorIs(t, l.Pause(context.Background()), errNotStarted)
}

func TestDescribeDevice(t *testing.T) {
	require.Equal(t, "RODE NT-USB (alsa_input.usb-rode)", describeDevice(audio.Device{Description: "RODE NT-USB", ID: "alsa_input.usb-rode"}))
	require.Equal(t, "RODE NT-USB", describeDevice(audio.Device{Description: "RODE NT-USB"}))
	require.Equal(t, "alsa_input.usb-rode", describeDevice(audio.Device{ID: "alsa_input.usb-rode"}))
}
