// Package projectfile loads the declarative project definition cmd/apmas
// reads at startup: the project's name/working directory/brief and the
// dependency-ordered set of agent roles to seed (spec §4.4's
// InitializeProject input), grounded on the teacher's LoadTeamsConfig /
// LoadProjectsConfig YAML loaders.
package projectfile

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/apmas/apmas/internal/apmaserr"
	"github.com/apmas/apmas/internal/supervisor"
	"github.com/apmas/apmas/internal/types"
)

// AgentEntry is one role's static declaration in the project file.
type AgentEntry struct {
	Role         string   `yaml:"role"`
	SubagentType string   `yaml:"subagentType"`
	Dependencies []string `yaml:"dependencies"`
}

// File is the on-disk project definition shape.
type File struct {
	Name       string       `yaml:"name"`
	WorkingDir string       `yaml:"workingDir"`
	Brief      string       `yaml:"brief"`
	Agents     []AgentEntry `yaml:"agents"`
}

// Load reads and parses a project definition file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apmaserr.Wrap(apmaserr.KindConfigError, "read project file "+path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, apmaserr.Wrap(apmaserr.KindConfigError, "parse project file "+path, err)
	}
	if f.Name == "" {
		return nil, apmaserr.ConfigError("project file %q is missing a name", path)
	}
	if len(f.Agents) == 0 {
		return nil, apmaserr.ConfigError("project file %q declares no agents", path)
	}
	return &f, nil
}

// ProjectState projects File into the ProjectState InitializeProject persists.
func (f *File) ProjectState() *types.ProjectState {
	return &types.ProjectState{
		Name:       f.Name,
		WorkingDir: f.WorkingDir,
		Brief:      f.Brief,
	}
}

// AgentSpecs projects File's agent entries into supervisor.AgentSpec values.
func (f *File) AgentSpecs() []supervisor.AgentSpec {
	specs := make([]supervisor.AgentSpec, 0, len(f.Agents))
	for _, a := range f.Agents {
		specs = append(specs, supervisor.AgentSpec{
			Role:         a.Role,
			SubagentType: a.SubagentType,
			Dependencies: a.Dependencies,
		})
	}
	return specs
}
