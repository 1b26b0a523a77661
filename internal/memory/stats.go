package memory

// PoolStats contains pool statistics. Sizes are in dwords.
type PoolStats struct {
	SizeDW       int
	AllocatedDW  int
	PendingDW    int
	FreeDW       int
	PlacedCount  int
	PendingCount int
	GrowCount    int
	NextID       ChunkID
	// FragmentationPct is the share of free space that lies between placed
	// chunks rather than after the last one.
	FragmentationPct float64
}

// Stats returns pool statistics.
func (p *Pool) Stats() PoolStats {
	s := PoolStats{
		SizeDW:       p.SizeDW(),
		PlacedCount:  len(p.placed),
		PendingCount: len(p.pending),
		GrowCount:    p.grows,
		NextID:       p.nextID,
	}

	lastEnd := 0
	for _, c := range p.placed {
		s.AllocatedDW += c.SizeDW
		lastEnd = alignUp(c.EndDW(), AlignmentDW)
	}
	for _, c := range p.pending {
		s.PendingDW += c.SizeDW
	}
	s.FreeDW = s.SizeDW - s.AllocatedDW

	trailing := s.SizeDW - lastEnd
	if s.FreeDW > 0 && trailing < s.FreeDW {
		s.FragmentationPct = float64(s.FreeDW-trailing) / float64(s.FreeDW) * 100
	}
	return s
}
