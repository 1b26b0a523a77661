package memory

import (
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/23skdu/dwpool/internal/metrics"
)

// TrackingAllocator wraps a base memory.Allocator and updates Prometheus metrics.
// Pools use it for their host shadows unless another allocator is supplied.
type TrackingAllocator struct {
	memory.Allocator
	BytesAllocated atomic.Int64
	BytesFreed     atomic.Int64
}

// NewTrackingAllocator creates a new allocator that wraps the given base allocator.
// If base is nil, it uses memory.DefaultAllocator.
func NewTrackingAllocator(base memory.Allocator) *TrackingAllocator {
	if base == nil {
		base = memory.DefaultAllocator
	}
	return &TrackingAllocator{Allocator: base}
}

func (a *TrackingAllocator) Allocate(size int) []byte {
	a.BytesAllocated.Add(int64(size))
	metrics.AllocatorBytesAllocatedTotal.Add(float64(size))
	metrics.AllocatorAllocationsActive.Inc()
	return a.Allocator.Allocate(size)
}

func (a *TrackingAllocator) Reallocate(size int, b []byte) []byte {
	a.BytesAllocated.Add(int64(size))
	a.BytesFreed.Add(int64(len(b)))
	metrics.AllocatorBytesAllocatedTotal.Add(float64(size))
	metrics.AllocatorBytesFreedTotal.Add(float64(len(b)))
	return a.Allocator.Reallocate(size, b)
}

func (a *TrackingAllocator) Free(b []byte) {
	a.BytesFreed.Add(int64(len(b)))
	metrics.AllocatorBytesFreedTotal.Add(float64(len(b)))
	metrics.AllocatorAllocationsActive.Dec()
	a.Allocator.Free(b)
}

// InUse returns bytes allocated and not yet freed.
func (a *TrackingAllocator) InUse() int64 {
	return a.BytesAllocated.Load() - a.BytesFreed.Load()
}

var _ memory.Allocator = (*TrackingAllocator)(nil)
