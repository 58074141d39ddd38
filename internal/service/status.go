package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/rbright/parley/internal/backend"
	"github.com/rbright/parley/internal/config"
)

// CapabilityStatus describes one capability's live instance.
type CapabilityStatus struct {
	Capability     backend.Capability `json:"capability"`
	Variant        config.Variant     `json:"variant,omitempty"`
	Ready          bool               `json:"ready"`
	Builds         int                `json:"builds"`
	MaxConcurrency int                `json:"max_concurrency,omitempty"`
	BuiltAt        time.Time          `json:"built_at,omitzero"`
}

// Status is a point-in-time snapshot of the context.
type Status struct {
	Closed       bool               `json:"closed"`
	Capabilities []CapabilityStatus `json:"capabilities"`
}

// Describe snapshots every capability.
func (c *Context) Describe() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := Status{Closed: c.closed}
	status.Capabilities = append(status.Capabilities, describe(backend.Segmentation, c.segmenter, c.builds, func(cfg config.Segmentation) config.Variant { return cfg.Variant }))
	status.Capabilities = append(status.Capabilities, describe(backend.Transcription, c.transcriber, c.builds, func(cfg config.Transcription) config.Variant { return cfg.Variant }))
	status.Capabilities = append(status.Capabilities, describe(backend.Diarization, c.diarizer, c.builds, func(cfg config.Diarization) config.Variant { return cfg.Variant }))
	return status
}

func describe[T closer, C comparable](capability backend.Capability, s *slot[T, C], builds map[backend.Capability]int, variant func(C) config.Variant) CapabilityStatus {
	status := CapabilityStatus{Capability: capability, Builds: builds[capability]}
	if s == nil {
		return status
	}
	status.Variant = variant(s.cfg)
	status.Ready = true
	status.MaxConcurrency = s.limit
	status.BuiltAt = s.builtAt
	return status
}

// String renders one line per capability.
func (s Status) String() string {
	var b strings.Builder
	for _, c := range s.Capabilities {
		state := "uninitialized"
		if c.Ready {
			state = fmt.Sprintf("ready variant=%s max_concurrency=%d", c.Variant, c.MaxConcurrency)
		}
		fmt.Fprintf(&b, "%-13s %s builds=%d\n", c.Capability, state, c.Builds)
	}
	return strings.TrimRight(b.String(), "\n")
}
