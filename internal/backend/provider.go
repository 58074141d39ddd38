package backend

import (
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// ProviderCPU is the fallback execution provider.
const ProviderCPU = "cpu"

// Probe detects one accelerator.
type Probe struct {
	Name   string
	Detect func() (bool, error)
}

// DefaultProbes lists accelerators in priority order: CUDA, then CoreML.
func DefaultProbes() []Probe {
	return []Probe{
		{Name: "cuda", Detect: detectCUDA},
		{Name: "coreml", Detect: func() (bool, error) { return runtime.GOOS == "darwin", nil }},
	}
}

// ResolveProvider returns explicit when set; otherwise the first probe that
// detects its accelerator, falling back to cpu. A failing probe is logged and
// skipped.
func ResolveProvider(explicit string, probes []Probe, logger *slog.Logger) string {
	if explicit = strings.ToLower(strings.TrimSpace(explicit)); explicit != "" {
		return explicit
	}
	for _, probe := range probes {
		ok, err := probe.Detect()
		if err != nil {
			if logger != nil {
				logger.Warn("provider probe failed", "provider", probe.Name, "error", err.Error())
			}
			continue
		}
		if ok {
			return probe.Name
		}
	}
	return ProviderCPU
}

func detectCUDA() (bool, error) {
	if _, err := os.Stat("/proc/driver/nvidia/version"); err == nil {
		return true, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, err
	}
	if _, err := exec.LookPath("nvidia-smi"); err == nil {
		return true, nil
	}
	return false, nil
}
