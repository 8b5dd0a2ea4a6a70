package supervisor

import "time"

// Config holds the tunables named in spec §6's configuration surface.
// MaxSpawnRetries governs the spawn-failure retry cap (§4.4 step 2) and
// MaxRetries the post-timeout requeue cap (§4.4 step 3); the spec's own
// configuration table lists only one "MaxRetries" knob, so both are bound
// to the same configured value unless a caller sets MaxSpawnRetries
// explicitly (see DESIGN.md).
type Config struct {
	PollInterval        time.Duration
	HeartbeatGrace      time.Duration
	SpawnTimeout        time.Duration
	MaxRetries          int
	MaxSpawnRetries     int
	MaxReviewIterations int
	ProtocolVersion     string
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval:        2 * time.Second,
		HeartbeatGrace:      10 * time.Minute,
		SpawnTimeout:        2 * time.Minute,
		MaxRetries:          3,
		MaxSpawnRetries:     3,
		MaxReviewIterations: 3,
		ProtocolVersion:     "2024-11-05",
	}
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.HeartbeatGrace <= 0 {
		c.HeartbeatGrace = 10 * time.Minute
	}
	if c.SpawnTimeout <= 0 {
		c.SpawnTimeout = 2 * time.Minute
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.MaxSpawnRetries <= 0 {
		c.MaxSpawnRetries = c.MaxRetries
	}
	if c.MaxReviewIterations <= 0 {
		c.MaxReviewIterations = 3
	}
	if c.ProtocolVersion == "" {
		c.ProtocolVersion = "2024-11-05"
	}
	return c
}
