package gpu

import (
	"fmt"
	"sync"

	"github.com/apache/arrow-go/v18/arrow/memory"

	dwerrors "github.com/23skdu/dwpool/internal/errors"
	"github.com/23skdu/dwpool/internal/metrics"
)

// HostDevice simulates device memory with host allocations.
// Buffers are carved from an arrow allocator; a positive limit caps the bytes
// held by live buffers so out-of-memory paths can be exercised.
type HostDevice struct {
	mu      sync.Mutex
	alloc   memory.Allocator
	limit   int64
	inUse   int64
	buffers int
	closed  bool
}

// NewHostDevice creates a simulated device. If alloc is nil, memory.DefaultAllocator is used.
// limitBytes <= 0 means unlimited.
func NewHostDevice(alloc memory.Allocator, limitBytes int64) *HostDevice {
	if alloc == nil {
		alloc = memory.DefaultAllocator
	}
	return &HostDevice{
		alloc: alloc,
		limit: limitBytes,
	}
}

// NewBuffer allocates a zeroed buffer of size bytes.
func (d *HostDevice) NewBuffer(size int) (Buffer, error) {
	if size <= 0 {
		return nil, dwerrors.Wrap(ErrInvalidSize, dwerrors.ErrorTypeInvalidRequest, "new_buffer",
			fmt.Sprintf("requested %d bytes", size))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, dwerrors.WrapDeviceError(ErrDeviceClosed, "new_buffer", "device is closed")
	}

	if d.limit > 0 && int64(size) > d.limit-d.inUse {
		metrics.DeviceAllocFailuresTotal.Inc()
		return nil, dwerrors.WrapOutOfDeviceMemoryError(ErrDeviceOutOfMemory, "new_buffer",
			fmt.Sprintf("need %d bytes, available %d", size, d.limit-d.inUse)).
			WithContext("limit_bytes", d.limit).
			WithContext("in_use_bytes", d.inUse)
	}

	data := d.alloc.Allocate(size)
	// Allocators may hand back recycled memory
	clear(data)

	d.inUse += int64(size)
	d.buffers++
	metrics.DeviceBuffersActive.Inc()
	metrics.DeviceBytesAllocated.Add(float64(size))

	return &hostBuffer{dev: d, data: data}, nil
}

func (d *HostDevice) release(b *hostBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.alloc.Free(b.data)
	d.inUse -= int64(len(b.data))
	d.buffers--
	metrics.DeviceBuffersActive.Dec()
	metrics.DeviceBytesAllocated.Sub(float64(len(b.data)))
}

// Stats returns device statistics.
func (d *HostDevice) Stats() DeviceStats {
	d.mu.Lock()
	defer d.mu.Unlock()

	return DeviceStats{
		LimitBytes:    d.limit,
		BytesInUse:    d.inUse,
		ActiveBuffers: d.buffers,
	}
}

// Close marks the device closed. It fails while buffers are still live.
func (d *HostDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	if d.buffers > 0 {
		return dwerrors.NewDeviceError("close", "buffers still allocated").
			WithContext("active_buffers", d.buffers)
	}
	d.closed = true
	return nil
}

// hostBuffer is a HostDevice allocation.
type hostBuffer struct {
	dev      *HostDevice
	data     []byte
	mapped   bool
	released bool
}

func (b *hostBuffer) Size() int {
	return len(b.data)
}

func (b *hostBuffer) Map() ([]byte, error) {
	switch {
	case b.released:
		return nil, ErrBufferReleased
	case b.mapped:
		return nil, ErrBufferMapped
	}
	b.mapped = true
	return b.data, nil
}

func (b *hostBuffer) Unmap() error {
	if !b.mapped {
		return ErrBufferNotMapped
	}
	b.mapped = false
	return nil
}

func (b *hostBuffer) Release() error {
	switch {
	case b.released:
		return ErrBufferReleased
	case b.mapped:
		return ErrBufferMapped
	}
	b.released = true
	b.dev.release(b)
	b.data = nil
	return nil
}

var _ Device = (*HostDevice)(nil)
