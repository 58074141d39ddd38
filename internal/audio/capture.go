package audio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"

	"github.com/rbright/parley/internal/segment"
)

// Options shapes a capture stream.
type Options struct {
	SampleRate int
	// Chunk is the audio duration delivered per Chunks element.
	Chunk time.Duration
	// Keep retains the raw s16le PCM for Recorded.
	Keep bool
}

// DefaultOptions captures 16 kHz audio in 100ms chunks.
func DefaultOptions() Options {
	return Options{SampleRate: 16000, Chunk: 100 * time.Millisecond}
}

func (o Options) chunkBytes() int {
	samples := int(int64(o.Chunk) * int64(o.SampleRate) / int64(time.Second))
	return max(samples, 1) * 2
}

// Capture streams normalized mono samples from one PulseAudio source.
type Capture struct {
	device Device
	opts   Options

	client *pulse.Client
	stream *pulse.RecordStream

	chunks chan []float32
	stopCh chan struct{}

	mu       sync.Mutex
	pending  []byte
	recorded []byte
	stopped  bool

	inflight sync.WaitGroup
	bytes    atomic.Int64
}

// Start opens a mono s16le record stream on device. The stream stops when
// ctx is done or Stop is called.
func Start(ctx context.Context, device Device, opts Options) (*Capture, error) {
	if opts.SampleRate <= 0 || opts.Chunk <= 0 {
		return nil, fmt.Errorf("invalid capture options: rate=%d chunk=%s", opts.SampleRate, opts.Chunk)
	}
	client, err := connect()
	if err != nil {
		return nil, err
	}

	source, err := client.SourceByID(device.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", device.ID, err)
	}

	c := newCapture(device, opts)
	c.client = client

	stream, err := client.NewRecord(
		pulse.NewWriter(writerFunc(c.onPCM), pulseproto.FormatInt16LE),
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(opts.SampleRate),
		pulse.RecordBufferFragmentSize(uint32(opts.chunkBytes())),
		pulse.RecordMediaName("parley listen"),
	)
	if err != nil {
		_ = c.Stop()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}
	c.stream = stream
	stream.Start()

	context.AfterFunc(ctx, func() { _ = c.Stop() })
	return c, nil
}

func newCapture(device Device, opts Options) *Capture {
	return &Capture{
		device: device,
		opts:   opts,
		chunks: make(chan []float32, 64),
		stopCh: make(chan struct{}),
	}
}

// Device returns the source being captured.
func (c *Capture) Device() Device {
	return c.device
}

// SampleRate is the rate of every delivered chunk.
func (c *Capture) SampleRate() int {
	return c.opts.SampleRate
}

// Chunks delivers captured audio until the capture stops, then closes.
func (c *Capture) Chunks() <-chan []float32 {
	return c.chunks
}

// BytesCaptured reports total PCM bytes accepted from the server.
func (c *Capture) BytesCaptured() int64 {
	return c.bytes.Load()
}

// Recorded returns a copy of the raw PCM when Options.Keep was set.
func (c *Capture) Recorded() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.recorded...)
}

// Stop halts the stream, delivers any residual audio, and closes Chunks.
// It is safe to call more than once.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	close(c.stopCh)
	c.mu.Unlock()

	if c.stream != nil {
		c.stream.Stop()
		c.stream.Close()
	}
	if c.client != nil {
		c.client.Close()
	}
	c.inflight.Wait()

	c.mu.Lock()
	residual := segment.FromPCM16LE(c.pending)
	c.pending = nil
	c.mu.Unlock()

	if len(residual) > 0 {
		select {
		case c.chunks <- residual:
		default:
		}
	}
	close(c.chunks)
	return nil
}

// onPCM slices server frames into fixed-size chunks.
func (c *Capture) onPCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return 0, io.EOF
	}
	// Add under the same lock as stopped so Stop's Wait cannot miss it.
	c.inflight.Add(1)
	defer c.inflight.Done()

	if c.opts.Keep {
		c.recorded = append(c.recorded, buffer...)
	}
	c.pending = append(c.pending, buffer...)
	size := c.opts.chunkBytes()
	var ready [][]float32
	for len(c.pending) >= size {
		ready = append(ready, segment.FromPCM16LE(c.pending[:size]))
		c.pending = c.pending[size:]
	}
	c.mu.Unlock()

	c.bytes.Add(int64(len(buffer)))
	for _, chunk := range ready {
		select {
		case <-c.stopCh:
			return 0, io.EOF
		case c.chunks <- chunk:
		}
	}
	return len(buffer), nil
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
