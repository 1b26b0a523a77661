package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/23skdu/dwpool/internal/gpu"
	"github.com/23skdu/dwpool/internal/logging"
	pool "github.com/23skdu/dwpool/internal/memory"
)

func main() {
	envFile := flag.String("env", ".env", "Optional .env file loaded before reading POOLSIM_* variables")
	tracePath := flag.String("trace", "", "CSV trace to replay (overrides POOLSIM_TRACE_PATH)")
	flag.Parse()

	cfg, err := LoadConfig(*envFile)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *tracePath != "" {
		cfg.TracePath = *tracePath
	}

	logger, err := logging.NewLogger(logging.Config{
		Format: cfg.LogFormat,
		Level:  cfg.LogLevel,
		Output: os.Stdout,
	})
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to create logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := ValidateConfig(&cfg); err != nil {
		logger.Error().Err(err).Msg("Invalid configuration")
		os.Exit(1)
	}

	if cfg.MetricsAddr != "" {
		go func() {
			logger.Info().Str("address", cfg.MetricsAddr).Msg("Starting metrics server")
			http.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.MetricsAddr, nil); err != nil {
				logger.Error().Err(err).Msg("Failed to start metrics server")
			}
		}()
	}

	if err := run(&cfg, &logger); err != nil {
		logger.Error().Err(err).Str("trace", cfg.TracePath).Msg("Replay failed")
		os.Exit(1)
	}
}

func run(cfg *Config, logger *zerolog.Logger) error {
	f, err := os.Open(cfg.TracePath)
	if err != nil {
		return err
	}
	defer f.Close()

	ops, err := ReadTrace(f, memory.NewGoAllocator())
	if err != nil {
		return err
	}

	dev := gpu.NewHostDevice(memory.NewGoAllocator(), cfg.DeviceLimitBytes)
	defer dev.Close() //nolint:errcheck // pool releases its buffers first

	p, err := pool.NewPool(cfg.Pool, dev, nil, logger)
	if err != nil {
		return err
	}
	defer p.Close() //nolint:errcheck // replay error takes precedence

	res, err := NewReplayer(p, logger).Run(ops)
	if err != nil {
		return err
	}

	stats := p.Stats()
	logger.Info().
		Int("ops", res.Ops).
		Int("reads", res.Reads).
		Int("read_bytes", res.ReadBytes).
		Str("read_digest", fmt.Sprintf("%016x", res.ReadDigest)).
		Int("size_dw", stats.SizeDW).
		Int("allocated_dw", stats.AllocatedDW).
		Int("placed", stats.PlacedCount).
		Int("pending", stats.PendingCount).
		Int("grows", stats.GrowCount).
		Float64("fragmentation_pct", stats.FragmentationPct).
		Msg("Replay complete")
	return nil
}
