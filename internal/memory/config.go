package memory

import (
	dwerrors "github.com/23skdu/dwpool/internal/errors"
)

const (
	DefaultPoolName      = "global"
	DefaultInitialSizeDW = 16384
	DefaultGrowthPercent = 10
)

// PoolConfig holds pool construction settings. Field tags are read by envconfig.
type PoolConfig struct {
	Name          string `envconfig:"NAME" default:"global"`
	InitialSizeDW int    `envconfig:"INITIAL_SIZE_DW" default:"16384"`
	GrowthPercent int    `envconfig:"GROWTH_PERCENT" default:"10"`
}

// DefaultPoolConfig returns a PoolConfig with default values
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Name:          DefaultPoolName,
		InitialSizeDW: DefaultInitialSizeDW,
		GrowthPercent: DefaultGrowthPercent,
	}
}

// Validate checks the configuration
func (c PoolConfig) Validate() error {
	if c.Name == "" {
		return dwerrors.NewInvalidRequestError("create_pool", "pool name cannot be empty")
	}
	if c.InitialSizeDW < 0 {
		return dwerrors.NewInvalidRequestError("create_pool", "initial size cannot be negative").
			WithContext("initial_size_dw", c.InitialSizeDW)
	}
	if c.InitialSizeDW > MaxPoolSizeDW {
		return dwerrors.NewInvalidRequestError("create_pool", "initial size exceeds the largest addressable pool").
			WithContext("initial_size_dw", c.InitialSizeDW).
			WithContext("max_size_dw", MaxPoolSizeDW)
	}
	if c.GrowthPercent <= 0 {
		return dwerrors.NewInvalidRequestError("create_pool", "growth percent must be positive").
			WithContext("growth_percent", c.GrowthPercent)
	}
	return nil
}
