package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PoolSizeDW tracks the current address-space size of each pool in dwords
	PoolSizeDW = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dwpool_pool_size_dw",
			Help: "Current pool size in dwords",
		},
		[]string{"pool"},
	)

	// PoolChunks tracks live chunks per pool by state
	PoolChunks = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dwpool_pool_chunks",
			Help: "Number of live chunks by state",
		},
		[]string{"pool", "state"}, // "placed", "pending"
	)

	// PoolGrowTotal counts pool resizes by the rule that triggered them
	PoolGrowTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dwpool_pool_grow_total",
			Help: "Total number of pool resizes",
		},
		[]string{"pool", "reason"}, // "initial", "slack", "proportional"
	)

	// PoolGrowFailuresTotal counts resizes refused by the device
	PoolGrowFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dwpool_pool_grow_failures_total",
			Help: "Total number of pool resizes that failed",
		},
		[]string{"pool"},
	)

	// PoolFinalizeDuration measures finalize latency including any growth
	PoolFinalizeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dwpool_pool_finalize_duration_seconds",
			Help:    "Time spent placing pending chunks",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		},
		[]string{"pool"},
	)

	// PoolTransferBytesTotal counts bytes copied between host and device
	PoolTransferBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dwpool_pool_transfer_bytes_total",
			Help: "Total bytes transferred between host and device",
		},
		[]string{"pool", "direction"}, // "host_to_device", "device_to_host"
	)
)

var (
	// DeviceBuffersActive tracks device buffers that have not been released
	DeviceBuffersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dwpool_device_buffers_active",
			Help: "Number of live device buffers",
		},
	)

	// DeviceBytesAllocated tracks bytes held by live device buffers
	DeviceBytesAllocated = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dwpool_device_bytes_allocated",
			Help: "Bytes held by live device buffers",
		},
	)

	// DeviceAllocFailuresTotal counts device allocations refused for lack of memory
	DeviceAllocFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dwpool_device_alloc_failures_total",
			Help: "Total number of device allocations refused",
		},
	)
)

var (
	// AllocatorBytesAllocatedTotal counts bytes handed out by tracking allocators
	AllocatorBytesAllocatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dwpool_allocator_bytes_allocated_total",
			Help: "Total bytes allocated through tracking allocators",
		},
	)

	// AllocatorBytesFreedTotal counts bytes returned to tracking allocators
	AllocatorBytesFreedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dwpool_allocator_bytes_freed_total",
			Help: "Total bytes freed through tracking allocators",
		},
	)

	// AllocatorAllocationsActive tracks outstanding allocations
	AllocatorAllocationsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dwpool_allocator_allocations_active",
			Help: "Number of outstanding allocations",
		},
	)
)
