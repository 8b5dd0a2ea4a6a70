package projectfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/apmas/apmas/internal/apmaserr"
)

func writeTempFile(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "project.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write temp project file: %v", err)
	}
	return path
}

func TestLoadParsesAgentsAndProjection(t *testing.T) {
	path := writeTempFile(t, `
name: widget-rewrite
workingDir: /work/widget
brief: rewrite the widget service in Go
agents:
  - role: architect
    subagentType: go-architect
  - role: dev
    subagentType: go-developer
    dependencies: [architect]
  - role: reviewer
    subagentType: go-reviewer
    dependencies: [dev]
`)
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.Name != "widget-rewrite" {
		t.Fatalf("unexpected name: %q", f.Name)
	}
	if len(f.Agents) != 3 {
		t.Fatalf("expected 3 agents, got %d", len(f.Agents))
	}

	proj := f.ProjectState()
	if proj.Name != "widget-rewrite" || proj.WorkingDir != "/work/widget" {
		t.Fatalf("unexpected ProjectState projection: %+v", proj)
	}

	specs := f.AgentSpecs()
	if len(specs) != 3 || specs[1].Role != "dev" || len(specs[1].Dependencies) != 1 || specs[1].Dependencies[0] != "architect" {
		t.Fatalf("unexpected AgentSpecs projection: %+v", specs)
	}
}

func TestLoadRequiresNameAndAgents(t *testing.T) {
	path := writeTempFile(t, "workingDir: /work\n")
	if _, err := Load(path); !apmaserr.Is(err, apmaserr.KindConfigError) {
		t.Fatalf("expected config error for missing name, got %v", err)
	}

	path = writeTempFile(t, "name: x\n")
	if _, err := Load(path); !apmaserr.Is(err, apmaserr.KindConfigError) {
		t.Fatalf("expected config error for empty agents, got %v", err)
	}
}

func TestLoadMissingFileIsConfigError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if !apmaserr.Is(err, apmaserr.KindConfigError) {
		t.Fatalf("expected config error for missing file, got %v", err)
	}
}
