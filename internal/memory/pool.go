package memory

import (
	"slices"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog"

	dwerrors "github.com/23skdu/dwpool/internal/errors"
	"github.com/23skdu/dwpool/internal/gpu"
	"github.com/23skdu/dwpool/internal/metrics"
)

// Pool carves independently sized chunks out of one growable address space
// measured in dwords. Allocation is two-phase: Allocate records a pending chunk
// and Finalize places every pending chunk at once, growing the backing store
// at most a few times for a whole batch.
//
// A Pool is not safe for concurrent use; callers serialize access.
type Pool struct {
	name   string
	nextID ChunkID

	// placed is sorted by offset and non-overlapping.
	placed []Chunk
	// pending is in request order.
	pending []Chunk

	store  *backingStore
	growth GrowthPolicy
	logger *zerolog.Logger

	grows  int
	closed bool
}

// NewPool creates a pool of cfg.InitialSizeDW dwords (rounded up to AlignmentDW) whose
// device buffer comes from dev and whose host shadow comes from host. A nil host
// allocator defaults to a TrackingAllocator over memory.DefaultAllocator; a nil
// logger disables logging.
func NewPool(cfg PoolConfig, dev gpu.Device, host memory.Allocator, logger *zerolog.Logger) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if dev == nil {
		return nil, dwerrors.NewInvalidRequestError("create_pool", "device is required")
	}
	if host == nil {
		host = NewTrackingAllocator(nil)
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	sizeDW := alignUp(cfg.InitialSizeDW, AlignmentDW)
	store, err := newBackingStore(dev, host, sizeDW)
	if err != nil {
		return nil, dwerrors.Wrap(err, errorTypeOf(err), "create_pool", "failed to allocate backing store").
			WithContext("pool", cfg.Name).
			WithContext("size_dw", sizeDW)
	}

	l := logger.With().Str("pool", cfg.Name).Logger()
	p := &Pool{
		name:   cfg.Name,
		nextID: 1,
		store:  store,
		growth: DefaultGrowthPolicy{Percent: cfg.GrowthPercent},
		logger: &l,
	}
	p.updateGauges()

	p.logger.Debug().Int("size_dw", sizeDW).Msg("pool created")
	return p, nil
}

// SetGrowthPolicy replaces the policy used when a pending chunk finds no gap.
func (p *Pool) SetGrowthPolicy(policy GrowthPolicy) {
	if policy == nil {
		policy = DefaultGrowthPolicy{Percent: DefaultGrowthPercent}
	}
	p.growth = policy
}

// Name returns the pool name.
func (p *Pool) Name() string {
	return p.name
}

// SizeDW returns the current address-space size in dwords.
func (p *Pool) SizeDW() int {
	return p.store.sizeDW()
}

// Allocate records a pending chunk of sizeDW dwords and returns its id.
// No space is reserved until Finalize.
func (p *Pool) Allocate(sizeDW int) (ChunkID, error) {
	if err := p.checkOpen("allocate"); err != nil {
		return 0, err
	}
	if sizeDW <= 0 {
		return 0, dwerrors.NewInvalidRequestError("allocate", "size must be positive").
			WithContext("pool", p.name).
			WithContext("size_dw", sizeDW)
	}
	if sizeDW > MaxPoolSizeDW {
		return 0, dwerrors.NewInvalidRequestError("allocate", "size exceeds the largest addressable pool").
			WithContext("pool", p.name).
			WithContext("size_dw", sizeDW).
			WithContext("max_size_dw", MaxPoolSizeDW)
	}

	id := p.nextID
	p.nextID++
	p.pending = append(p.pending, Chunk{ID: id, SizeDW: sizeDW, OffsetDW: Unplaced})
	p.updateGauges()

	p.logger.Debug().Uint64("id", uint64(id)).Int("size_dw", sizeDW).Msg("chunk pending")
	return id, nil
}

// Free removes a chunk, placed or pending. Its range becomes available to later
// placements. Unknown ids are an error.
func (p *Pool) Free(id ChunkID) error {
	if err := p.checkOpen("free"); err != nil {
		return err
	}

	if i := indexOf(p.pending, id); i >= 0 {
		p.pending = slices.Delete(p.pending, i, i+1)
	} else if i := indexOf(p.placed, id); i >= 0 {
		p.placed = slices.Delete(p.placed, i, i+1)
	} else {
		return p.unknownChunk("free", id)
	}
	p.updateGauges()

	p.logger.Debug().Uint64("id", uint64(id)).Msg("chunk freed")
	return nil
}

// Finalize places every pending chunk, in request order, at the lowest offset
// that fits, growing the pool as needed. It is a no-op when nothing is pending.
// If the device refuses to grow, the chunks placed so far stay placed and the
// rest stay pending.
func (p *Pool) Finalize() error {
	if err := p.checkOpen("finalize"); err != nil {
		return err
	}
	if len(p.pending) == 0 {
		return nil
	}

	start := time.Now()
	defer func() {
		metrics.PoolFinalizeDuration.WithLabelValues(p.name).Observe(time.Since(start).Seconds())
		p.updateGauges()
	}()

	// Placed chunks are disjoint, so allocated stays within the pool size
	allocated := 0
	for _, c := range p.placed {
		allocated += c.SizeDW
	}
	required := allocated
	for _, c := range p.pending {
		required = addDW(required, c.SizeDW+AlignmentDW)
	}

	// A batch beyond the address space skips the pre-grow; chunks are then
	// placed one by one until the space runs out.
	if required <= MaxPoolSizeDW && p.SizeDW() < required {
		if err := p.grow(required, GrowInitial); err != nil {
			return err
		}
	}

	for len(p.pending) > 0 {
		c := p.pending[0]

		offset, ok := findGap(p.placed, c.SizeDW, p.SizeDW())
		for !ok {
			newSize, reason := p.growth.NextSizeDW(p.SizeDW(), allocated, c.SizeDW)
			if newSize <= p.SizeDW() {
				newSize = addDW(p.SizeDW(), AlignmentDW)
			}
			if newSize > MaxPoolSizeDW {
				if p.SizeDW() >= MaxPoolSizeDW {
					return p.addressSpaceExhausted(c)
				}
				newSize = MaxPoolSizeDW
			}
			if err := p.grow(newSize, reason); err != nil {
				return err
			}
			offset, ok = findGap(p.placed, c.SizeDW, p.SizeDW())
		}

		c.OffsetDW = offset
		p.placed = slices.Insert(p.placed, insertionIndex(p.placed, offset), c)
		p.pending = p.pending[1:]
		allocated += c.SizeDW

		p.logger.Debug().
			Uint64("id", uint64(c.ID)).
			Int("offset_dw", offset).
			Int("size_dw", c.SizeDW).
			Msg("chunk placed")
	}
	p.pending = nil

	return nil
}

// grow resizes the pool to at least newSizeDW, rounded up to AlignmentDW.
func (p *Pool) grow(newSizeDW int, reason GrowReason) error {
	oldSize := p.SizeDW()
	newSizeDW = alignUp(newSizeDW, AlignmentDW)

	if err := p.store.grow(newSizeDW); err != nil {
		metrics.PoolGrowFailuresTotal.WithLabelValues(p.name).Inc()
		p.logger.Error().
			Err(err).
			Int("size_dw", oldSize).
			Int("new_size_dw", newSizeDW).
			Str("reason", string(reason)).
			Msg("pool grow failed")
		return dwerrors.Wrap(err, errorTypeOf(err), "grow", "failed to resize backing store").
			WithContext("pool", p.name).
			WithContext("size_dw", oldSize).
			WithContext("new_size_dw", newSizeDW)
	}

	p.grows++
	metrics.PoolGrowTotal.WithLabelValues(p.name, string(reason)).Inc()
	metrics.PoolSizeDW.WithLabelValues(p.name).Set(float64(newSizeDW))

	p.logger.Info().
		Int("size_dw", oldSize).
		Int("new_size_dw", newSizeDW).
		Str("reason", string(reason)).
		Msg("pool grown")
	return nil
}

// Chunk returns a copy of a chunk's bookkeeping.
func (p *Pool) Chunk(id ChunkID) (Chunk, error) {
	if err := p.checkOpen("chunk"); err != nil {
		return Chunk{}, err
	}
	if i := indexOf(p.placed, id); i >= 0 {
		return p.placed[i], nil
	}
	if i := indexOf(p.pending, id); i >= 0 {
		return p.pending[i], nil
	}
	return Chunk{}, p.unknownChunk("chunk", id)
}

// Chunks returns copies of the placed chunks in offset order followed by the
// pending chunks in request order.
func (p *Pool) Chunks() []Chunk {
	out := make([]Chunk, 0, len(p.placed)+len(p.pending))
	out = append(out, p.placed...)
	return append(out, p.pending...)
}

// SyncShadow refreshes the host shadow from the device buffer.
func (p *Pool) SyncShadow() error {
	if err := p.checkOpen("sync_shadow"); err != nil {
		return err
	}
	return p.store.syncToHost()
}

// Close releases the device buffer and the shadow. Further calls are no-ops.
func (p *Pool) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.placed = nil
	p.pending = nil

	metrics.PoolSizeDW.DeleteLabelValues(p.name)
	metrics.PoolChunks.DeleteLabelValues(p.name, "placed")
	metrics.PoolChunks.DeleteLabelValues(p.name, "pending")

	p.logger.Debug().Msg("pool destroyed")
	return p.store.release()
}

func (p *Pool) addressSpaceExhausted(c Chunk) error {
	metrics.PoolGrowFailuresTotal.WithLabelValues(p.name).Inc()
	p.logger.Error().
		Uint64("id", uint64(c.ID)).
		Int("size_dw", p.SizeDW()).
		Int("request_dw", c.SizeDW).
		Msg("pool address space exhausted")
	return dwerrors.NewOutOfDeviceMemoryError("finalize", "pool address space exhausted").
		WithContext("pool", p.name).
		WithContext("id", uint64(c.ID)).
		WithContext("size_dw", p.SizeDW()).
		WithContext("request_dw", c.SizeDW)
}

func (p *Pool) checkOpen(op string) error {
	if p.closed {
		return dwerrors.NewInvalidRequestError(op, "pool is closed").WithContext("pool", p.name)
	}
	return nil
}

func (p *Pool) unknownChunk(op string, id ChunkID) error {
	return dwerrors.NewInvalidRequestError(op, "unknown chunk id").
		WithContext("pool", p.name).
		WithContext("id", uint64(id))
}

func (p *Pool) updateGauges() {
	metrics.PoolSizeDW.WithLabelValues(p.name).Set(float64(p.SizeDW()))
	metrics.PoolChunks.WithLabelValues(p.name, "placed").Set(float64(len(p.placed)))
	metrics.PoolChunks.WithLabelValues(p.name, "pending").Set(float64(len(p.pending)))
}

func indexOf(chunks []Chunk, id ChunkID) int {
	return slices.IndexFunc(chunks, func(c Chunk) bool { return c.ID == id })
}

// errorTypeOf keeps the category of a structured error when it is wrapped again.
func errorTypeOf(err error) dwerrors.ErrorType {
	for _, t := range []dwerrors.ErrorType{
		dwerrors.ErrorTypeOutOfDeviceMemory,
		dwerrors.ErrorTypeInvalidRequest,
		dwerrors.ErrorTypeInternal,
	} {
		if dwerrors.IsType(err, t) {
			return t
		}
	}
	return dwerrors.ErrorTypeDevice
}
