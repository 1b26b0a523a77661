package memory

// ChunkID identifies a chunk for the lifetime of its pool. IDs are never reused.
type ChunkID uint64

// Unplaced is the offset of a chunk that has not been finalized yet.
const Unplaced = -1

// Chunk is one reservation within a pool's address space. Sizes and offsets are in dwords.
type Chunk struct {
	ID       ChunkID
	SizeDW   int
	OffsetDW int
}

// Placed reports whether the chunk has been assigned an offset.
func (c Chunk) Placed() bool {
	return c.OffsetDW != Unplaced
}

// EndDW returns the first dword past the chunk. Only meaningful once placed.
func (c Chunk) EndDW() int {
	return c.OffsetDW + c.SizeDW
}

// ByteOffset returns the chunk's offset in bytes.
func (c Chunk) ByteOffset() int {
	return c.OffsetDW * 4
}

// ByteSize returns the chunk's size in bytes.
func (c Chunk) ByteSize() int {
	return c.SizeDW * 4
}
