package memory

// GrowReason labels why a pool was resized.
type GrowReason string

const (
	// GrowInitial sizes the pool for the whole pending batch before placement starts.
	GrowInitial GrowReason = "initial"
	// GrowSlack guarantees room for the chunk plus two alignment units of slack.
	GrowSlack GrowReason = "slack"
	// GrowProportional grows by a percentage of the current size when total free
	// space already suffices but no single gap does.
	GrowProportional GrowReason = "proportional"
)

// GrowthPolicy decides how far to grow a pool when a pending chunk finds no gap.
type GrowthPolicy interface {
	// NextSizeDW returns the size the pool should grow to. allocatedDW is the sum of
	// placed chunk sizes and requestDW the size of the chunk being placed.
	NextSizeDW(sizeDW, allocatedDW, requestDW int) (int, GrowReason)
}

// DefaultGrowthPolicy grows until size - allocated covers the request plus two
// alignment units. When that already holds, the free space is fragmented and the
// pool grows by Percent of its current size instead. Results never exceed MaxPoolSizeDW.
type DefaultGrowthPolicy struct {
	Percent int
}

func (p DefaultGrowthPolicy) NextSizeDW(sizeDW, allocatedDW, requestDW int) (int, GrowReason) {
	need := requestDW + 2*AlignmentDW - (sizeDW - allocatedDW)
	reason := GrowSlack
	if need <= 0 {
		percent := p.Percent
		if percent <= 0 {
			percent = DefaultGrowthPercent
		}
		if sizeDW > MaxPoolSizeDW/percent {
			need = MaxPoolSizeDW
		} else {
			need = sizeDW * percent / 100
		}
		reason = GrowProportional
	}

	if need >= MaxPoolSizeDW-sizeDW {
		return MaxPoolSizeDW, reason
	}
	need = alignUp(need, AlignmentDW)
	if need < AlignmentDW {
		need = AlignmentDW
	}
	return min(sizeDW+need, MaxPoolSizeDW), reason
}
