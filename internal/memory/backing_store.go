package memory

import (
	"github.com/apache/arrow-go/v18/arrow/memory"

	dwerrors "github.com/23skdu/dwpool/internal/errors"
	"github.com/23skdu/dwpool/internal/gpu"
)

// backingStore pairs a device buffer with a host shadow of the same size.
// The shadow is refreshed from the device only when growing or on request;
// transfers go straight to the mapped device buffer.
type backingStore struct {
	device gpu.Device
	host   memory.Allocator
	buf    gpu.Buffer // nil while the pool is empty
	shadow []byte
}

func newBackingStore(dev gpu.Device, host memory.Allocator, sizeDW int) (*backingStore, error) {
	s := &backingStore{device: dev, host: host}
	if sizeDW == 0 {
		return s, nil
	}

	buf, err := dev.NewBuffer(sizeDW * 4)
	if err != nil {
		return nil, err
	}
	s.buf = buf
	s.shadow = host.Allocate(sizeDW * 4)
	clear(s.shadow)
	return s, nil
}

func (s *backingStore) sizeDW() int {
	return len(s.shadow) / 4
}

// syncToHost copies the whole device buffer into the shadow.
func (s *backingStore) syncToHost() error {
	if s.buf == nil {
		return nil
	}
	return gpu.CopyFromDevice(s.buf, 0, s.shadow)
}

// grow resizes both buffers to newSizeDW, preserving contents through the shadow.
// The new device buffer is allocated while the old one is still held, so peak
// device usage during a grow is the old size plus the new size. On failure the
// store is left exactly as it was.
func (s *backingStore) grow(newSizeDW int) error {
	oldBytes := len(s.shadow)
	newBytes := newSizeDW * 4
	if newBytes < oldBytes {
		return dwerrors.NewInternalError("grow", "pool cannot shrink").
			WithContext("size_dw", s.sizeDW()).
			WithContext("new_size_dw", newSizeDW)
	}
	if newBytes == oldBytes {
		return nil
	}

	// Device to shadow at the old size
	if err := s.syncToHost(); err != nil {
		return err
	}

	buf, err := s.device.NewBuffer(newBytes)
	if err != nil {
		return err
	}

	shadow := s.host.Allocate(newBytes)
	copy(shadow, s.shadow)
	clear(shadow[oldBytes:])

	// Shadow to device at the new size
	if err := gpu.CopyToDevice(buf, 0, shadow); err != nil {
		_ = buf.Release()
		s.host.Free(shadow)
		return err
	}

	if s.buf != nil {
		if err := s.buf.Release(); err != nil {
			_ = buf.Release()
			s.host.Free(shadow)
			return dwerrors.WrapDeviceError(err, "grow", "failed to release old device buffer")
		}
		s.host.Free(s.shadow)
	}

	s.buf = buf
	s.shadow = shadow
	return nil
}

func (s *backingStore) upload(byteOffset int, src []byte) error {
	return gpu.CopyToDevice(s.buf, byteOffset, src)
}

func (s *backingStore) download(byteOffset int, dst []byte) error {
	return gpu.CopyFromDevice(s.buf, byteOffset, dst)
}

// release frees the device buffer and the shadow.
func (s *backingStore) release() error {
	var err error
	if s.buf != nil {
		if rerr := s.buf.Release(); rerr != nil {
			err = dwerrors.WrapDeviceError(rerr, "destroy_pool", "failed to release device buffer")
		}
		s.buf = nil
	}
	if s.shadow != nil {
		s.host.Free(s.shadow)
		s.shadow = nil
	}
	return err
}
