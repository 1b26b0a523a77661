package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// OpKind names a trace operation
type OpKind string

const (
	OpAlloc    OpKind = "alloc"
	OpFree     OpKind = "free"
	OpFinalize OpKind = "finalize"
	OpWrite    OpKind = "write"
	OpRead     OpKind = "read"
	OpOffset   OpKind = "offset"
)

// Op is one trace row. Ref is a trace-local name for a chunk.
type Op struct {
	Kind       OpKind
	Ref        int64
	SizeDW     int
	ByteOffset int
	ByteCount  int
	Fill       byte
	Row        int
}

// traceSchema is the CSV layout: op,ref,size_dw,byte_offset,byte_count,fill
var traceSchema = arrow.NewSchema([]arrow.Field{
	{Name: "op", Type: arrow.BinaryTypes.String},
	{Name: "ref", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	{Name: "size_dw", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	{Name: "byte_offset", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	{Name: "byte_count", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	{Name: "fill", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
}, nil)

// ReadTrace decodes a CSV trace with a header row.
func ReadTrace(r io.Reader, mem memory.Allocator) ([]Op, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	rdr := csv.NewReader(r, traceSchema,
		csv.WithHeader(true),
		csv.WithChunk(1024),
		csv.WithNullReader(false, ""),
		csv.WithAllocator(mem),
	)
	defer rdr.Release()

	var ops []Op
	row := 0
	for rdr.Next() {
		// A parse error still yields the partial record, with nulls in bad cells
		if err := rdr.Err(); err != nil {
			return nil, fmt.Errorf("reading trace: %w", err)
		}
		rec := rdr.Record()
		kinds := rec.Column(0).(*array.String)
		refs := rec.Column(1).(*array.Int64)
		sizes := rec.Column(2).(*array.Int64)
		offsets := rec.Column(3).(*array.Int64)
		counts := rec.Column(4).(*array.Int64)
		fills := rec.Column(5).(*array.Int64)

		for i := 0; i < int(rec.NumRows()); i++ {
			row++
			// Value aliases the record's buffer, which is released with the reader
			op, err := decodeOp(row, strings.Clone(kinds.Value(i)), refs, sizes, offsets, counts, fills, i)
			if err != nil {
				return nil, err
			}
			ops = append(ops, op)
		}
	}
	if err := rdr.Err(); err != nil {
		return nil, fmt.Errorf("reading trace: %w", err)
	}
	return ops, nil
}

func decodeOp(row int, kind string, refs, sizes, offsets, counts, fills *array.Int64, i int) (Op, error) {
	op := Op{Kind: OpKind(kind), Row: row}

	need := func(col *array.Int64, name string) (int64, error) {
		if col.IsNull(i) {
			return 0, fmt.Errorf("trace row %d: %s requires %s", row, kind, name)
		}
		return col.Value(i), nil
	}
	optional := func(col *array.Int64) int64 {
		if col.IsNull(i) {
			return 0
		}
		return col.Value(i)
	}

	var err error
	switch op.Kind {
	case OpFinalize:
		return op, nil
	case OpAlloc:
		if op.Ref, err = need(refs, "ref"); err != nil {
			return op, err
		}
		size, err := need(sizes, "size_dw")
		if err != nil {
			return op, err
		}
		// Non-positive sizes are replayed as is; the pool rejects them
		op.SizeDW = int(size)
	case OpFree, OpOffset:
		if op.Ref, err = need(refs, "ref"); err != nil {
			return op, err
		}
	case OpWrite, OpRead:
		if op.Ref, err = need(refs, "ref"); err != nil {
			return op, err
		}
		count, err := need(counts, "byte_count")
		if err != nil {
			return op, err
		}
		offset := optional(offsets)
		if count < 0 || offset < 0 {
			return op, fmt.Errorf("trace row %d: %s byte_offset and byte_count must not be negative", row, kind)
		}
		fill := optional(fills)
		if fill < 0 || fill > 255 {
			return op, fmt.Errorf("trace row %d: fill %d outside 0..255", row, fill)
		}
		op.ByteCount = int(count)
		op.ByteOffset = int(offset)
		op.Fill = byte(fill)
	default:
		return op, fmt.Errorf("trace row %d: unknown op %q", row, kind)
	}
	return op, nil
}
