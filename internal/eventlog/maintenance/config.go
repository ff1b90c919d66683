package maintenance

import "time"

// Config controls the ledger maintenance loop.
type Config struct {
	// PollInterval is how often the worker wakes up.
	PollInterval time.Duration
	// Retention is how long terminal records are kept before cleanup.
	Retention time.Duration
	// ReplayBatch caps how many failed records one cycle re-submits.
	// Zero disables automatic replay, which is the default: replay is an
	// operator action through /ops/replay unless explicitly turned on.
	ReplayBatch int
}

func DefaultConfig() Config {
	return Config{
		PollInterval: 1 * time.Hour,
		Retention:    90 * 24 * time.Hour,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = defaults.PollInterval
	}
	if c.Retention <= 0 {
		c.Retention = defaults.Retention
	}
	return c
}
