package main

import (
	"bytes"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"github.com/23skdu/dwpool/internal/memory"
)

// ReplayResult summarizes a replayed trace
type ReplayResult struct {
	Ops        int
	Reads      int
	ReadBytes  int
	ReadDigest uint64
	// Offsets holds the last reported dword offset per trace ref
	Offsets map[int64]int
}

// Replayer drives a Pool from trace operations
type Replayer struct {
	pool   *memory.Pool
	refs   map[int64]memory.ChunkID
	logger *zerolog.Logger
}

// NewReplayer creates a replayer over pool
func NewReplayer(pool *memory.Pool, logger *zerolog.Logger) *Replayer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Replayer{
		pool:   pool,
		refs:   make(map[int64]memory.ChunkID),
		logger: logger,
	}
}

// Run applies ops in order and stops at the first failure.
func (r *Replayer) Run(ops []Op) (ReplayResult, error) {
	res := ReplayResult{Offsets: make(map[int64]int)}
	digest := xxhash.New()

	for _, op := range ops {
		if err := r.apply(op, &res, digest); err != nil {
			return res, fmt.Errorf("trace row %d (%s): %w", op.Row, op.Kind, err)
		}
		res.Ops++
	}

	res.ReadDigest = digest.Sum64()
	return res, nil
}

func (r *Replayer) apply(op Op, res *ReplayResult, digest *xxhash.Digest) error {
	if op.Kind == OpFinalize {
		return r.pool.Finalize()
	}
	if op.Kind == OpAlloc {
		if _, ok := r.refs[op.Ref]; ok {
			return fmt.Errorf("ref %d already allocated", op.Ref)
		}
		id, err := r.pool.Allocate(op.SizeDW)
		if err != nil {
			return err
		}
		r.refs[op.Ref] = id
		return nil
	}

	id, ok := r.refs[op.Ref]
	if !ok {
		return fmt.Errorf("ref %d not allocated", op.Ref)
	}

	switch op.Kind {
	case OpFree:
		if err := r.pool.Free(id); err != nil {
			return err
		}
		delete(r.refs, op.Ref)
		delete(res.Offsets, op.Ref)
	case OpOffset:
		off, err := r.pool.Offset(id)
		if err != nil {
			return err
		}
		res.Offsets[op.Ref] = off
		r.logger.Info().Int64("ref", op.Ref).Int("offset_dw", off).Msg("chunk offset")
	case OpWrite:
		data := bytes.Repeat([]byte{op.Fill}, op.ByteCount)
		return r.pool.Transfer(id, memory.HostToDevice, op.ByteOffset, data)
	case OpRead:
		data := make([]byte, op.ByteCount)
		if err := r.pool.Transfer(id, memory.DeviceToHost, op.ByteOffset, data); err != nil {
			return err
		}
		_, _ = digest.Write(data)
		res.Reads++
		res.ReadBytes += len(data)
		r.logger.Debug().
			Int64("ref", op.Ref).
			Int("byte_offset", op.ByteOffset).
			Int("byte_count", op.ByteCount).
			Uint64("xxhash", xxhash.Sum64(data)).
			Msg("chunk read")
	}
	return nil
}
