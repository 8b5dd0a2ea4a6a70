// Package config loads the process-level configuration surface named in
// spec §6: where the store file lives, the supervisor's tick and timeout
// tunables, and the JSON-RPC protocol version to advertise.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/apmas/apmas/internal/apmaserr"
	"github.com/apmas/apmas/internal/supervisor"
)

// Config is the on-disk configuration shape. Durations are expressed in
// the YAML as Go duration strings ("2s", "10m") via yamlDuration.
//
// Fields beyond spec §6's recognized-options table (SpawnCommand through
// MetricsNamespace) configure the external collaborators spec §6 names
// only by interface — cmd/apmas is where those interfaces get concrete
// wiring, so their configuration lives here alongside the core options.
type Config struct {
	DataDirectory       string       `yaml:"dataDirectory"`
	PollInterval        yamlDuration `yaml:"pollInterval"`
	HeartbeatGrace      yamlDuration `yaml:"heartbeatGrace"`
	SpawnTimeout        yamlDuration `yaml:"spawnTimeout"`
	MaxRetries          int          `yaml:"maxRetries"`
	MaxSpawnRetries     int          `yaml:"maxSpawnRetries"`
	MaxReviewIterations int          `yaml:"maxReviewIterations"`
	ProtocolVersion     string       `yaml:"protocolVersion"`

	AgentCacheTTL    yamlDuration `yaml:"agentCacheTTL"`
	ResourceCacheTTL yamlDuration `yaml:"resourceCacheTTL"`

	SpawnCommand string   `yaml:"spawnCommand"`
	SpawnArgs    []string `yaml:"spawnArgs"`

	DashboardURL string `yaml:"dashboardURL"`

	WebhookURL string `yaml:"webhookURL"`
	ToastAppID string `yaml:"toastAppID"`

	MetricsNamespace  string `yaml:"metricsNamespace"`
	MetricsListenAddr string `yaml:"metricsListenAddr"`
}

// yamlDuration adapts time.Duration to YAML scalar strings ("2s"), the
// same encoding the teacher uses for its own timeout-flavored config
// fields.
type yamlDuration time.Duration

func (d yamlDuration) Duration() time.Duration { return time.Duration(d) }

func (d *yamlDuration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return apmaserr.Wrap(apmaserr.KindConfigError, fmt.Sprintf("invalid duration %q", s), err)
	}
	*d = yamlDuration(parsed)
	return nil
}

func (d yamlDuration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Default returns the documented defaults (spec §6), with DataDirectory
// left empty — callers must supply it.
func Default() Config {
	d := supervisor.DefaultConfig()
	return Config{
		PollInterval:        yamlDuration(d.PollInterval),
		HeartbeatGrace:      yamlDuration(d.HeartbeatGrace),
		SpawnTimeout:        yamlDuration(d.SpawnTimeout),
		MaxRetries:          d.MaxRetries,
		MaxSpawnRetries:     d.MaxSpawnRetries,
		MaxReviewIterations: d.MaxReviewIterations,
		ProtocolVersion:     d.ProtocolVersion,

		AgentCacheTTL:    yamlDuration(5 * time.Second),
		ResourceCacheTTL: yamlDuration(3 * time.Second),

		SpawnCommand: "{{subagentType}}-agent",
		SpawnArgs:    []string{"--role", "{{role}}"},

		DashboardURL: "nats://127.0.0.1:4222",

		ToastAppID: "apmas",

		MetricsNamespace:  "apmas",
		MetricsListenAddr: ":9090",
	}
}

// Load reads and parses a YAML config file at path, falling back to
// Default() for any field the file leaves zero-valued.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, apmaserr.Wrap(apmaserr.KindConfigError, "read config file "+path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, apmaserr.Wrap(apmaserr.KindConfigError, "parse config file "+path, err)
	}
	if cfg.DataDirectory == "" {
		return Config{}, apmaserr.ConfigError("dataDirectory is required")
	}
	return cfg, nil
}

// SupervisorConfig projects the subset supervisor.New needs.
func (c Config) SupervisorConfig() supervisor.Config {
	return supervisor.Config{
		PollInterval:        c.PollInterval.Duration(),
		HeartbeatGrace:      c.HeartbeatGrace.Duration(),
		SpawnTimeout:        c.SpawnTimeout.Duration(),
		MaxRetries:          c.MaxRetries,
		MaxSpawnRetries:     c.MaxSpawnRetries,
		MaxReviewIterations: c.MaxReviewIterations,
		ProtocolVersion:     c.ProtocolVersion,
	}
}
