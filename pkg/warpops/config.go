package warpops

import (
	"fmt"
	"time"
)

const (
	DEF_IO_LIMIT      = 4
	DEF_CPU_LIMIT     = 2
	DEF_LIGHT_LIMIT   = 0
	DEF_EMIT_INTERVAL = 100 * time.Millisecond
	DEF_RETENTION     = 10 * time.Minute
	DEF_CHUNK_SIZE    = 1 << 20
	// fanOutBatch is the number of children a directory handler emits per
	// FanOut outcome.
	fanOutBatch = 64
)

// Config holds the engine settings. Zero values are invalid; start from
// DefaultConfig.
type Config struct {
	// Limits is the number of concurrently running tasks per category.
	// 0 means unbounded.
	Limits map[Category]int
	Retry  RetryPolicy
	// EmitInterval throttles GroupSnapshot and TaskProgress events.
	EmitInterval time.Duration
	// AbortOnFailure is the default for requests that do not set it.
	AbortOnFailure bool
	// Retention is how long a completed, unacknowledged group is kept.
	// 0 keeps completed groups until acknowledged.
	Retention time.Duration
	// ChunkSize bounds a single CopyChunk/ReadChunk call, and so the
	// distance between two checkpoints.
	ChunkSize int64
}

// DefaultConfig returns the default engine settings.
func DefaultConfig() Config {
	return Config{
		Limits: map[Category]int{
			CategoryIO:    DEF_IO_LIMIT,
			CategoryCPU:   DEF_CPU_LIMIT,
			CategoryLight: DEF_LIGHT_LIMIT,
		},
		Retry:        DefaultRetryPolicy(),
		EmitInterval: DEF_EMIT_INTERVAL,
		Retention:    DEF_RETENTION,
		ChunkSize:    DEF_CHUNK_SIZE,
	}
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	for _, cat := range Categories {
		if c.Limits[cat] < 0 {
			return fmt.Errorf("%s limit must not be negative: %d", cat, c.Limits[cat])
		}
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1: %d", c.Retry.MaxAttempts)
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < 0 {
		return fmt.Errorf("retry delays must not be negative")
	}
	if c.Retry.JitterFactor < 0 || c.Retry.JitterFactor > 1 {
		return fmt.Errorf("jitter factor must be within [0,1]: %v", c.Retry.JitterFactor)
	}
	if c.EmitInterval < 0 {
		return fmt.Errorf("emit interval must not be negative: %v", c.EmitInterval)
	}
	if c.Retention < 0 {
		return fmt.Errorf("retention must not be negative: %v", c.Retention)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive: %d", c.ChunkSize)
	}
	return nil
}
