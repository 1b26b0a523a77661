// Package gpu abstracts the device memory that backs a pool.
package gpu

import "errors"

var (
	ErrDeviceOutOfMemory = errors.New("device out of memory")
	ErrDeviceClosed      = errors.New("device closed")
	ErrInvalidSize       = errors.New("buffer size must be positive")
	ErrBufferReleased    = errors.New("buffer already released")
	ErrBufferMapped      = errors.New("buffer is mapped")
	ErrBufferNotMapped   = errors.New("buffer is not mapped")
)

// Device allocates buffers in device memory.
type Device interface {
	// NewBuffer allocates a device buffer of size bytes.
	NewBuffer(size int) (Buffer, error)

	// Close releases device resources. Outstanding buffers must be released first.
	Close() error
}

// Buffer is a device allocation that the host can only touch while it is mapped.
type Buffer interface {
	// Size returns the buffer length in bytes.
	Size() int

	// Map exposes the buffer contents to the host until Unmap is called.
	Map() ([]byte, error)

	// Unmap ends a mapping started by Map.
	Unmap() error

	// Release frees the device memory. The buffer must not be mapped.
	Release() error
}

// DeviceStats contains device statistics.
type DeviceStats struct {
	LimitBytes    int64
	BytesInUse    int64
	ActiveBuffers int
}
