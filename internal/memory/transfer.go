package memory

import (
	dwerrors "github.com/23skdu/dwpool/internal/errors"
	"github.com/23skdu/dwpool/internal/metrics"
)

// Direction selects the side a Transfer copies to.
type Direction int

const (
	HostToDevice Direction = iota
	DeviceToHost
)

func (d Direction) String() string {
	switch d {
	case HostToDevice:
		return "host_to_device"
	case DeviceToHost:
		return "device_to_host"
	default:
		return "unknown"
	}
}

// Offset returns the chunk's offset in dwords. If the chunk is still pending,
// the pool is finalized first.
func (p *Pool) Offset(id ChunkID) (int, error) {
	c, err := p.placedChunk("get_offset", id)
	if err != nil {
		return Unplaced, err
	}
	return c.OffsetDW, nil
}

// Transfer copies len(data) bytes between data and the device buffer at
// byteOffset within the chunk. HostToDevice writes data into the chunk;
// DeviceToHost fills data from it. A pending chunk finalizes the pool first.
func (p *Pool) Transfer(id ChunkID, dir Direction, byteOffset int, data []byte) error {
	if dir != HostToDevice && dir != DeviceToHost {
		return dwerrors.NewInvalidRequestError("transfer", "unknown direction").
			WithContext("direction", int(dir))
	}

	c, err := p.placedChunk("transfer", id)
	if err != nil {
		return err
	}

	if byteOffset < 0 || byteOffset+len(data) > c.ByteSize() {
		return dwerrors.NewInvalidRequestError("transfer", "range outside chunk").
			WithContext("pool", p.name).
			WithContext("id", uint64(id)).
			WithContext("byte_offset", byteOffset).
			WithContext("byte_count", len(data)).
			WithContext("chunk_bytes", c.ByteSize())
	}
	if len(data) == 0 {
		return nil
	}

	base := c.ByteOffset() + byteOffset
	if dir == HostToDevice {
		err = p.store.upload(base, data)
	} else {
		err = p.store.download(base, data)
	}
	if err != nil {
		return dwerrors.Wrap(err, errorTypeOf(err), "transfer", "device copy failed").
			WithContext("pool", p.name).
			WithContext("id", uint64(id)).
			WithContext("direction", dir.String())
	}

	metrics.PoolTransferBytesTotal.WithLabelValues(p.name, dir.String()).Add(float64(len(data)))
	return nil
}

// placedChunk validates id and returns the placed chunk. A pending chunk
// finalizes the pool first. An already placed chunk is returned as is, so a
// failed growth for other chunks never hides it.
func (p *Pool) placedChunk(op string, id ChunkID) (Chunk, error) {
	if err := p.checkOpen(op); err != nil {
		return Chunk{}, err
	}
	if i := indexOf(p.placed, id); i >= 0 {
		return p.placed[i], nil
	}
	if indexOf(p.pending, id) < 0 {
		return Chunk{}, p.unknownChunk(op, id)
	}
	if err := p.Finalize(); err != nil {
		return Chunk{}, err
	}

	i := indexOf(p.placed, id)
	if i < 0 {
		return Chunk{}, dwerrors.NewInternalError(op, "chunk not placed after finalize").
			WithContext("id", uint64(id))
	}
	return p.placed[i], nil
}
