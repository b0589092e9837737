package batch

import (
	"context"
	"runtime"
	"time"

	"go.uber.org/zap"
)

// MemoryGate is an admission-control valve: before each fetch the processor
// asks the gate to wait, and if heap usage is above the ceiling the gate
// suspends for a fixed cooldown. It smooths concurrent memory growth; it is
// not a hard limit.
type MemoryGate struct {
	maxHeapBytes uint64
	cooldown     time.Duration
	heapInuse    func() uint64
	logger       *zap.Logger
}

// NewMemoryGate builds a gate with the given ceiling in megabytes.
func NewMemoryGate(maxHeapMB int, cooldown time.Duration, logger *zap.Logger) *MemoryGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryGate{
		maxHeapBytes: uint64(maxHeapMB) * 1024 * 1024,
		cooldown:     cooldown,
		heapInuse:    readHeapInuse,
		logger:       logger,
	}
}

func readHeapInuse() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.HeapInuse
}

// Wait blocks for one cooldown period when heap usage exceeds the ceiling.
// It returns early if the context ends.
func (g *MemoryGate) Wait(ctx context.Context) error {
	if g == nil || g.maxHeapBytes == 0 {
		return nil
	}
	used := g.heapInuse()
	if used <= g.maxHeapBytes {
		return nil
	}
	g.logger.Warn("memory ceiling exceeded, cooling down",
		zap.Uint64("heap_inuse", used),
		zap.Uint64("ceiling", g.maxHeapBytes),
		zap.Duration("cooldown", g.cooldown),
	)
	timer := time.NewTimer(g.cooldown)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
