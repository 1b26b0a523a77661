package main

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dwerrors "github.com/23skdu/dwpool/internal/errors"
	"github.com/23skdu/dwpool/internal/gpu"
	"github.com/23skdu/dwpool/internal/memory"
)

func newReplayPool(t *testing.T, limit int64) *memory.Pool {
	t.Helper()
	cfg := memory.DefaultPoolConfig()
	cfg.Name = t.Name()
	p, err := memory.NewPool(cfg, gpu.NewHostDevice(nil, limit), nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func loadSample(t *testing.T) []Op {
	t.Helper()
	f, err := os.Open("testdata/sample.csv")
	require.NoError(t, err)
	defer f.Close()

	ops, err := ReadTrace(f, nil)
	require.NoError(t, err)
	return ops
}

func TestReplayer_Sample(t *testing.T) {
	p := newReplayPool(t, 0)

	res, err := NewReplayer(p, nil).Run(loadSample(t))
	require.NoError(t, err)

	assert.Equal(t, 13, res.Ops)
	assert.Equal(t, 1, res.Reads)
	assert.Equal(t, 200, res.ReadBytes)
	assert.Equal(t, xxhash.Sum64(bytes.Repeat([]byte{171}, 200)), res.ReadDigest)
	assert.Equal(t, map[int64]int{2: 1024, 3: 0, 4: 2048}, res.Offsets)

	stats := p.Stats()
	assert.Equal(t, 22528, stats.SizeDW)
	assert.Equal(t, 3, stats.PlacedCount)
	assert.Equal(t, 1, stats.GrowCount)
}

func TestReplayer_RefErrors(t *testing.T) {
	p := newReplayPool(t, 0)
	r := NewReplayer(p, nil)

	_, err := r.Run([]Op{{Kind: OpFree, Ref: 9, Row: 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ref 9 not allocated")

	_, err = r.Run([]Op{
		{Kind: OpAlloc, Ref: 1, SizeDW: 4, Row: 1},
		{Kind: OpAlloc, Ref: 1, SizeDW: 4, Row: 2},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trace row 2 (alloc): ref 1 already allocated")
}

func TestReplayer_PropagatesPoolErrors(t *testing.T) {
	p := newReplayPool(t, 0)

	_, err := NewReplayer(p, nil).Run([]Op{
		{Kind: OpAlloc, Ref: 1, SizeDW: 4, Row: 1},
		{Kind: OpWrite, Ref: 1, ByteOffset: 8, ByteCount: 16, Row: 2},
	})
	require.Error(t, err)
	assert.True(t, dwerrors.IsType(err, dwerrors.ErrorTypeInvalidRequest))

	_, err = NewReplayer(p, nil).Run([]Op{{Kind: OpAlloc, Ref: 1, SizeDW: 0, Row: 1}})
	assert.True(t, dwerrors.IsType(err, dwerrors.ErrorTypeInvalidRequest))
}

func TestReplayer_OutOfDeviceMemory(t *testing.T) {
	// Only the initial 64 KiB buffer fits
	p := newReplayPool(t, 65536)

	trace := "op,ref,size_dw,byte_offset,byte_count,fill\nalloc,1,100000,,,\nfinalize,,,,,\n"
	ops, err := ReadTrace(strings.NewReader(trace), nil)
	require.NoError(t, err)

	res, err := NewReplayer(p, nil).Run(ops)
	require.Error(t, err)
	assert.True(t, dwerrors.IsType(err, dwerrors.ErrorTypeOutOfDeviceMemory))
	assert.Equal(t, 1, res.Ops)
	assert.Equal(t, 1, p.Stats().PendingCount)
}

func TestReplayer_LogsOffsets(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	p := newReplayPool(t, 0)

	_, err := NewReplayer(p, &logger).Run([]Op{
		{Kind: OpAlloc, Ref: 5, SizeDW: 8, Row: 1},
		{Kind: OpOffset, Ref: 5, Row: 2},
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"ref":5`)
	assert.Contains(t, buf.String(), `"offset_dw":0`)
}

func TestRun_Sample(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TracePath = "testdata/sample.csv"
	logger := zerolog.Nop()

	require.NoError(t, run(&cfg, &logger))

	cfg.TracePath = "testdata/missing.csv"
	assert.Error(t, run(&cfg, &logger))
}
