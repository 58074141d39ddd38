// Package service owns the live recognition backends and swaps them when
// their configuration changes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/rbright/parley/internal/backend"
	"github.com/rbright/parley/internal/config"
	"github.com/rbright/parley/internal/fault"
)

type (
	// SegmenterLease pins the live segmentation backend.
	SegmenterLease = Lease[backend.Segmenter, config.Segmentation]
	// TranscriberLease pins the live transcription backend.
	TranscriberLease = Lease[backend.Transcriber, config.Transcription]
	// DiarizerLease pins the live diarization backend.
	DiarizerLease = Lease[backend.Diarizer, config.Diarization]
)

// ErrClosed is returned by operations on a closed Context.
var ErrClosed = errors.New("service context is closed")

// Context holds at most one live instance per capability together with the
// sub-bundle that built it.
//
// A capability is rebuilt only when its sub-bundle changes by value.
type Context struct {
	factory backend.Factory
	logger  *slog.Logger

	applyMu sync.Mutex

	mu          sync.RWMutex
	engine      config.Engine
	segmenter   *slot[backend.Segmenter, config.Segmentation]
	transcriber *slot[backend.Transcriber, config.Transcription]
	diarizer    *slot[backend.Diarizer, config.Diarization]
	builds      map[backend.Capability]int
	closed      bool

	retiring sync.WaitGroup
}

// New returns a context with every capability uninitialized.
func New(factory backend.Factory, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Context{
		factory: factory,
		logger:  logger,
		builds:  make(map[backend.Capability]int),
	}
}

// Changes lists the capabilities an Apply rebuilt.
type Changes []backend.Capability

// Apply brings every capability in line with cfg.
//
// Changed capabilities are all built before any is swapped in. If one build
// fails, the fresh instances are closed and the previous state is kept. On
// success every (config, instance) pair is replaced under one lock, and the
// replaced instances are closed once their outstanding leases are released.
func (c *Context) Apply(ctx context.Context, cfg config.Engine) (Changes, error) {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	c.mu.RLock()
	closed := c.closed
	oldSeg, oldTr, oldDi := c.segmenter, c.transcriber, c.diarizer
	c.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	if cfg.MinSegmentDuration < 0 {
		return nil, fault.Configuration("engine.min_segment_duration must be >= 0")
	}

	var (
		changes Changes
		newSeg  *slot[backend.Segmenter, config.Segmentation]
		newTr   *slot[backend.Transcriber, config.Transcription]
		newDi   *slot[backend.Diarizer, config.Diarization]
		built   []closer
	)
	abort := func(capability backend.Capability, err error) (Changes, error) {
		for _, instance := range built {
			if closeErr := instance.Close(); closeErr != nil {
				c.logger.Warn("close discarded backend", "error", closeErr.Error())
			}
		}
		c.logger.Error("apply configuration failed",
			"capability", string(capability),
			"code", string(fault.CodeOf(err)),
			"error", err.Error(),
		)
		return nil, fmt.Errorf("apply %s configuration: %w", capability, err)
	}

	if oldSeg == nil || oldSeg.cfg != cfg.Segmentation {
		started := time.Now()
		instance, err := c.factory.BuildSegmenter(ctx, cfg.Segmentation)
		if err != nil {
			return abort(backend.Segmentation, err)
		}
		built = append(built, instance)
		newSeg = newSlot(cfg.Segmentation, instance)
		changes = append(changes, backend.Segmentation)
		c.logBuilt(backend.Segmentation, cfg.Segmentation.Variant, newSeg.limit, started)
	}
	if oldTr == nil || oldTr.cfg != cfg.Transcription {
		started := time.Now()
		instance, err := c.factory.BuildTranscriber(ctx, cfg.Transcription)
		if err != nil {
			return abort(backend.Transcription, err)
		}
		built = append(built, instance)
		newTr = newSlot(cfg.Transcription, instance)
		changes = append(changes, backend.Transcription)
		c.logBuilt(backend.Transcription, cfg.Transcription.Variant, newTr.limit, started)
	}
	if oldDi == nil || oldDi.cfg != cfg.Diarization {
		started := time.Now()
		instance, err := c.factory.BuildDiarizer(ctx, cfg.Diarization)
		if err != nil {
			return abort(backend.Diarization, err)
		}
		built = append(built, instance)
		newDi = newSlot(cfg.Diarization, instance)
		changes = append(changes, backend.Diarization)
		c.logBuilt(backend.Diarization, cfg.Diarization.Variant, newDi.limit, started)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return abort("", ErrClosed)
	}
	c.engine = cfg
	if newSeg != nil {
		c.segmenter = newSeg
		c.builds[backend.Segmentation]++
	}
	if newTr != nil {
		c.transcriber = newTr
		c.builds[backend.Transcription]++
	}
	if newDi != nil {
		c.diarizer = newDi
		c.builds[backend.Diarization]++
	}
	c.mu.Unlock()

	if newSeg != nil && oldSeg != nil {
		c.retire(backend.Segmentation, oldSeg.retire)
	}
	if newTr != nil && oldTr != nil {
		c.retire(backend.Transcription, oldTr.retire)
	}
	if newDi != nil && oldDi != nil {
		c.retire(backend.Diarization, oldDi.retire)
	}

	if len(changes) == 0 {
		c.logger.Debug("configuration unchanged; backends reused")
	}
	return changes, nil
}

func (c *Context) logBuilt(capability backend.Capability, variant config.Variant, limit int, started time.Time) {
	c.logger.Info("backend built",
		"capability", string(capability),
		"variant", string(variant),
		"max_concurrency", limit,
		"build_ms", time.Since(started).Milliseconds(),
	)
}

func (c *Context) retire(capability backend.Capability, retire func() error) {
	c.retiring.Add(1)
	go func() {
		defer c.retiring.Done()
		if err := retire(); err != nil {
			c.logger.Warn("close retired backend", "capability", string(capability), "error", err.Error())
			return
		}
		c.logger.Debug("retired backend closed", "capability", string(capability))
	}()
}

// Segmenter leases the live segmentation backend.
func (c *Context) Segmenter() (*SegmenterLease, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClosed
	}
	if c.segmenter == nil {
		return nil, fault.NotInitialized(string(backend.Segmentation))
	}
	return c.segmenter.lease(), nil
}

// Transcriber leases the live transcription backend.
func (c *Context) Transcriber() (*TranscriberLease, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClosed
	}
	if c.transcriber == nil {
		return nil, fault.NotInitialized(string(backend.Transcription))
	}
	return c.transcriber.lease(), nil
}

// Diarizer leases the live diarization backend.
func (c *Context) Diarizer() (*DiarizerLease, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClosed
	}
	if c.diarizer == nil {
		return nil, fault.NotInitialized(string(backend.Diarization))
	}
	return c.diarizer.lease(), nil
}

// Engine returns the last successfully applied bundle.
func (c *Context) Engine() config.Engine {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.engine
}

// Close tears down every live instance once its leases are released and
// waits for pending retirements.
func (c *Context) Close() error {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	seg, tr, di := c.segmenter, c.transcriber, c.diarizer
	c.segmenter, c.transcriber, c.diarizer = nil, nil, nil
	c.mu.Unlock()

	var result *multierror.Error
	if seg != nil {
		result = multierror.Append(result, seg.retire())
	}
	if tr != nil {
		result = multierror.Append(result, tr.retire())
	}
	if di != nil {
		result = multierror.Append(result, di.retire())
	}
	c.retiring.Wait()
	return result.ErrorOrNil()
}
