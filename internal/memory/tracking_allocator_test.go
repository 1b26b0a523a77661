package memory

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/23skdu/dwpool/internal/gpu"
	"github.com/23skdu/dwpool/internal/metrics"
)

func TestTrackingAllocator(t *testing.T) {
	base := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer base.AssertSize(t, 0)

	alloc := NewTrackingAllocator(base)
	before := testutil.ToFloat64(metrics.AllocatorBytesAllocatedTotal)

	buf := alloc.Allocate(1024)
	assert.Len(t, buf, 1024)
	assert.Equal(t, int64(1024), alloc.InUse())

	buf = alloc.Reallocate(4096, buf)
	assert.Len(t, buf, 4096)
	assert.Equal(t, int64(4096), alloc.InUse())

	alloc.Free(buf)
	assert.Zero(t, alloc.InUse())
	assert.Equal(t, int64(1024+4096), alloc.BytesAllocated.Load())
	assert.Equal(t, float64(1024+4096), testutil.ToFloat64(metrics.AllocatorBytesAllocatedTotal)-before)
}

func TestTrackingAllocator_DefaultsBase(t *testing.T) {
	alloc := NewTrackingAllocator(nil)
	buf := alloc.Allocate(64)
	assert.Len(t, buf, 64)
	alloc.Free(buf)
}

func TestPool_ShadowUsesTrackingAllocator(t *testing.T) {
	host := NewTrackingAllocator(nil)

	cfg := DefaultPoolConfig()
	cfg.Name = t.Name()
	cfg.InitialSizeDW = 1024
	p, err := NewPool(cfg, gpu.NewHostDevice(nil, 0), host, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4096), host.InUse())

	_, _ = p.Allocate(3000)
	require.NoError(t, p.Finalize())
	assert.Equal(t, int64(p.SizeDW()*4), host.InUse())

	require.NoError(t, p.Close())
	assert.Zero(t, host.InUse())
}
