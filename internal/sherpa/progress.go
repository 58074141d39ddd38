package sherpa

import (
	"log/slog"
	"sync"
	"time"
)

const progressInterval = 5 * time.Second

// reportProgress logs task at debug every interval until the returned stop
// is called, then logs its completion. It covers native calls that block
// without reporting progress themselves.
func reportProgress(logger *slog.Logger, interval time.Duration, task string, audioSeconds float64) (stop func()) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	started := time.Now()
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				logger.Debug(task+" in progress",
					"audio_s", audioSeconds,
					"elapsed_ms", time.Since(started).Milliseconds(),
				)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			wg.Wait()
			logger.Debug(task+" finished",
				"audio_s", audioSeconds,
				"elapsed_ms", time.Since(started).Milliseconds(),
			)
		})
	}
}
