package health

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck fails when more than threshold goroutines are running,
// which usually means a leak.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}

// GCMaxPauseCheck fails when a garbage collection since the previous run
// paused the program for longer than threshold. Old pauses are not reported
// again.
func GCMaxPauseCheck(threshold time.Duration) CheckFunc {
	var seen atomic.Int64
	return func(context.Context) error {
		var stats debug.GCStats
		debug.ReadGCStats(&stats)

		fresh := stats.NumGC - seen.Swap(stats.NumGC)
		// Pause holds the most recent pauses first.
		recent := stats.Pause[:min(int(fresh), len(stats.Pause))]
		for _, pause := range recent {
			if pause > threshold {
				return errors.Errorf("GC pause %s exceeds threshold %s", pause, threshold)
			}
		}
		return nil
	}
}
