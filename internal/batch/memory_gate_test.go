package batch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryGate_PassesUnderCeiling(t *testing.T) {
	t.Parallel()

	gate := NewMemoryGate(100, time.Minute, nil)
	gate.heapInuse = func() uint64 { return 10 * 1024 * 1024 }

	start := time.Now()
	require.NoError(t, gate.Wait(context.Background()))
	require.Less(t, time.Since(start), time.Second)
}

func TestMemoryGate_CoolsDownOverCeiling(t *testing.T) {
	t.Parallel()

	gate := NewMemoryGate(1, 20*time.Millisecond, nil)
	gate.heapInuse = func() uint64 { return 5 * 1024 * 1024 }

	start := time.Now()
	require.NoError(t, gate.Wait(context.Background()))
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestMemoryGate_ContextCancelsCooldown(t *testing.T) {
	t.Parallel()

	gate := NewMemoryGate(1, time.Minute, nil)
	gate.heapInuse = func() uint64 { return 5 * 1024 * 1024 }

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, gate.Wait(ctx))
}

func TestMemoryGate_NilAndDisabledGatesPass(t *testing.T) {
	t.Parallel()

	var gate *MemoryGate
	require.NoError(t, gate.Wait(context.Background()))

	disabled := NewMemoryGate(0, time.Minute, nil)
	require.NoError(t, disabled.Wait(context.Background()))
}
