package config

import (
	"fmt"
	"runtime"
)

// Config carries the runtime tuning knobs for the data-movement core.
// Zero values are filled in by Default(); Validate rejects combinations
// the kernels cannot launch with.
type Config struct {
	// CopyBlockSize is the default number of threads per block for the
	// flat copy kernel.
	CopyBlockSize int

	// TransposeBlockSize is the default number of threads per block for
	// the tiled transpose kernel.
	TransposeBlockSize int

	// AbsmaxIterations is how many vector loads each thread performs in
	// the standalone absmax kernel before reducing.
	AbsmaxIterations int

	// Workers bounds the goroutines executing one kernel launch.
	// 0 means runtime.NumCPU().
	Workers int

	LogLevel  string
	LogFormat string
}

func Default() Config {
	return Config{
		CopyBlockSize:      512,
		TransposeBlockSize: 256,
		AbsmaxIterations:   4,
		Workers:            0,
		LogLevel:           "info",
		LogFormat:          "console",
	}
}

func (c *Config) Validate() error {
	if c.CopyBlockSize <= 0 {
		return fmt.Errorf("invalid copy_block_size: %d (must be positive)", c.CopyBlockSize)
	}
	if c.CopyBlockSize&(c.CopyBlockSize-1) != 0 {
		return fmt.Errorf("invalid copy_block_size: %d (must be a power of two)", c.CopyBlockSize)
	}
	if c.TransposeBlockSize <= 0 {
		return fmt.Errorf("invalid transpose_block_size: %d (must be positive)", c.TransposeBlockSize)
	}
	if c.TransposeBlockSize&(c.TransposeBlockSize-1) != 0 {
		return fmt.Errorf("invalid transpose_block_size: %d (must be a power of two)", c.TransposeBlockSize)
	}
	if c.AbsmaxIterations <= 0 {
		return fmt.Errorf("invalid absmax_iterations: %d (must be positive)", c.AbsmaxIterations)
	}
	if c.Workers < 0 {
		return fmt.Errorf("invalid workers: %d (must be non-negative)", c.Workers)
	}
	return nil
}

// EffectiveWorkers resolves Workers=0 to the machine's CPU count.
func (c *Config) EffectiveWorkers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}
