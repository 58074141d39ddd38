package service

import (
	"github.com/rbright/parley/internal/backend"
	"github.com/rbright/parley/internal/config"
	"github.com/rbright/parley/internal/fault"
)

// Snapshot is one request's view of the context: leases on the requested
// capabilities plus the bundle they were applied with, all taken under a
// single read lock. Capabilities that were not requested are nil.
type Snapshot struct {
	Engine      config.Engine
	Segmenter   *SegmenterLease
	Transcriber *TranscriberLease
	Diarizer    *DiarizerLease
}

// Snapshot leases every listed capability atomically. It fails, leasing
// nothing, when any of them has not been applied.
func (c *Context) Snapshot(capabilities ...backend.Capability) (*Snapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClosed
	}
	for _, capability := range capabilities {
		if !c.initialized(capability) {
			return nil, fault.NotInitialized(string(capability))
		}
	}

	snap := &Snapshot{Engine: c.engine}
	for _, capability := range capabilities {
		switch capability {
		case backend.Segmentation:
			if snap.Segmenter == nil {
				snap.Segmenter = c.segmenter.lease()
			}
		case backend.Transcription:
			if snap.Transcriber == nil {
				snap.Transcriber = c.transcriber.lease()
			}
		case backend.Diarization:
			if snap.Diarizer == nil {
				snap.Diarizer = c.diarizer.lease()
			}
		}
	}
	return snap, nil
}

func (c *Context) initialized(capability backend.Capability) bool {
	switch capability {
	case backend.Segmentation:
		return c.segmenter != nil
	case backend.Transcription:
		return c.transcriber != nil
	case backend.Diarization:
		return c.diarizer != nil
	default:
		return false
	}
}

// Release unpins every lease in the snapshot.
func (s *Snapshot) Release() {
	if s.Segmenter != nil {
		s.Segmenter.Release()
	}
	if s.Transcriber != nil {
		s.Transcriber.Release()
	}
	if s.Diarizer != nil {
		s.Diarizer.Release()
	}
}
