package gpu

import (
	dwerrors "github.com/23skdu/dwpool/internal/errors"
)

// WithMapped maps buf, runs fn over the mapping and unmaps on every exit path,
// including a panic inside fn. An unmap failure is reported only if fn succeeded.
func WithMapped(buf Buffer, fn func(mapped []byte) error) (err error) {
	mapped, err := buf.Map()
	if err != nil {
		return dwerrors.WrapDeviceError(err, "map", "failed to map device buffer")
	}
	defer func() {
		if uerr := buf.Unmap(); uerr != nil && err == nil {
			err = dwerrors.WrapDeviceError(uerr, "unmap", "failed to unmap device buffer")
		}
	}()

	return fn(mapped)
}

// CopyToDevice writes src into buf at byte offset off.
func CopyToDevice(buf Buffer, off int, src []byte) error {
	return WithMapped(buf, func(mapped []byte) error {
		if off < 0 || off+len(src) > len(mapped) {
			return dwerrors.NewDeviceError("copy_to_device", "range outside buffer").
				WithContext("offset", off).
				WithContext("length", len(src)).
				WithContext("buffer_size", len(mapped))
		}
		copy(mapped[off:], src)
		return nil
	})
}

// CopyFromDevice reads len(dst) bytes from buf at byte offset off.
func CopyFromDevice(buf Buffer, off int, dst []byte) error {
	return WithMapped(buf, func(mapped []byte) error {
		if off < 0 || off+len(dst) > len(mapped) {
			return dwerrors.NewDeviceError("copy_from_device", "range outside buffer").
				WithContext("offset", off).
				WithContext("length", len(dst)).
				WithContext("buffer_size", len(mapped))
		}
		copy(dst, mapped[off:off+len(dst)])
		return nil
	})
}
