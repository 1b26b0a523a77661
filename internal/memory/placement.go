package memory

import (
	"math"
	"sort"
)

const (
	// AlignmentDW is the rounding granularity applied after every placed chunk, in dwords.
	AlignmentDW = 1024

	// MaxPoolSizeDW is the largest aligned pool whose byte size still fits in an int.
	// Chunk sizes and growth targets are bounded by it, so dword sums cannot overflow.
	MaxPoolSizeDW = (math.MaxInt / 4) &^ (AlignmentDW - 1)
)

// alignUp rounds v up to the next multiple of align.
func alignUp(v, align int) int {
	return (v + align - 1) / align * align
}

// addDW adds dword counts, saturating just above MaxPoolSizeDW.
// Operands must not exceed MaxPoolSizeDW+AlignmentDW.
func addDW(a, b int) int {
	if s := a + b; s <= MaxPoolSizeDW {
		return s
	}
	return MaxPoolSizeDW + 1
}

// findGap returns the lowest offset at which size dwords fit, scanning the placed
// chunks in ascending offset order. The first sufficient gap wins. Every chunk
// end is rounded up to AlignmentDW before the next gap is measured.
func findGap(placed []Chunk, size, poolSizeDW int) (int, bool) {
	lastEnd := 0
	for _, c := range placed {
		if c.OffsetDW-lastEnd >= size {
			return lastEnd, true
		}
		lastEnd = alignUp(c.EndDW(), AlignmentDW)
	}

	if poolSizeDW-lastEnd >= size {
		return lastEnd, true
	}
	return Unplaced, false
}

// insertionIndex returns the slot at which a chunk at offset keeps placed sorted.
func insertionIndex(placed []Chunk, offset int) int {
	return sort.Search(len(placed), func(i int) bool {
		return placed[i].OffsetDW >= offset
	})
}
