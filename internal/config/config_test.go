package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/apmas/apmas/internal/apmaserr"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "apmas.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaultsForOmittedFields(t *testing.T) {
	path := writeTempConfig(t, "dataDirectory: /var/lib/apmas\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataDirectory != "/var/lib/apmas" {
		t.Fatalf("unexpected dataDirectory: %q", cfg.DataDirectory)
	}
	if cfg.PollInterval.Duration() != 2*time.Second {
		t.Fatalf("expected default pollInterval, got %s", cfg.PollInterval.Duration())
	}
	if cfg.MaxReviewIterations != 3 {
		t.Fatalf("expected default maxReviewIterations 3, got %d", cfg.MaxReviewIterations)
	}
}

func TestLoadOverridesDefaultsWithExplicitValues(t *testing.T) {
	path := writeTempConfig(t, `
dataDirectory: /data
pollInterval: 5s
heartbeatGrace: 1m
maxRetries: 7
protocolVersion: "2099-01-01"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PollInterval.Duration() != 5*time.Second {
		t.Fatalf("unexpected pollInterval: %s", cfg.PollInterval.Duration())
	}
	if cfg.HeartbeatGrace.Duration() != time.Minute {
		t.Fatalf("unexpected heartbeatGrace: %s", cfg.HeartbeatGrace.Duration())
	}
	if cfg.MaxRetries != 7 {
		t.Fatalf("unexpected maxRetries: %d", cfg.MaxRetries)
	}
	if cfg.ProtocolVersion != "2099-01-01" {
		t.Fatalf("unexpected protocolVersion: %q", cfg.ProtocolVersion)
	}

	sc := cfg.SupervisorConfig()
	if sc.MaxRetries != 7 || sc.PollInterval != 5*time.Second {
		t.Fatalf("SupervisorConfig projection mismatch: %+v", sc)
	}
}

func TestLoadRequiresDataDirectory(t *testing.T) {
	path := writeTempConfig(t, "pollInterval: 5s\n")
	_, err := Load(path)
	if !apmaserr.Is(err, apmaserr.KindConfigError) {
		t.Fatalf("expected config error for missing dataDirectory, got %v", err)
	}
}

func TestLoadRejectsMalformedDuration(t *testing.T) {
	path := writeTempConfig(t, "dataDirectory: /data\npollInterval: not-a-duration\n")
	_, err := Load(path)
	if !apmaserr.Is(err, apmaserr.KindConfigError) {
		t.Fatalf("expected config error for malformed duration, got %v", err)
	}
}

func TestLoadMissingFileIsConfigError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if !apmaserr.Is(err, apmaserr.KindConfigError) {
		t.Fatalf("expected config error for missing file, got %v", err)
	}
}
