package supervisor

import (
	"github.com/apmas/apmas/internal/apmaserr"
	"github.com/apmas/apmas/internal/types"
)

// AgentSpec declares one role's static configuration at project init time.
type AgentSpec struct {
	Role         string
	SubagentType string
	Dependencies []string
}

// projectStore is the subset of store.Store used by project init.
type projectStore interface {
	SaveProjectState(p *types.ProjectState) error
	GetProjectState() (*types.ProjectState, error)
}

// InitializeProject validates the dependency graph (rejecting cycles with
// *ConfigError*), persists the ProjectState, and seeds every declared role
// as a Pending AgentState. Roles are promoted in the declaration order of
// specs for every tie-break in the loop (spec §4.4 tie-breaks).
func (s *Supervisor) InitializeProject(p *types.ProjectState, specs []AgentSpec) error {
	deps := make(map[string][]string, len(specs))
	for _, spec := range specs {
		deps[spec.Role] = spec.Dependencies
	}
	for role, roleDeps := range deps {
		for _, d := range roleDeps {
			if _, ok := deps[d]; !ok {
				return apmaserr.ConfigError("role %q depends on undeclared role %q", role, d)
			}
		}
	}
	if err := detectCycle(deps); err != nil {
		return err
	}

	if p.Phase == "" {
		p.Phase = types.PhaseInitializing
	}
	if err := s.projectStore.SaveProjectState(p); err != nil {
		return err
	}

	s.roleOrder = make([]string, 0, len(specs))
	for _, spec := range specs {
		s.roleOrder = append(s.roleOrder, spec.Role)
		a := &types.AgentState{
			Role:         spec.Role,
			Status:       types.StatusPending,
			SubagentType: spec.SubagentType,
			Dependencies: spec.Dependencies,
		}
		if err := s.agents.Seed(a); err != nil {
			return err
		}
	}

	p.Phase = types.PhasePlanning
	return s.projectStore.SaveProjectState(p)
}

const (
	visitStateUnvisited = 0
	visitStateVisiting  = 1
	visitStateDone      = 2
)

func detectCycle(deps map[string][]string) error {
	state := make(map[string]int, len(deps))
	var visit func(role string, path []string) error
	visit = func(role string, path []string) error {
		switch state[role] {
		case visitStateDone:
			return nil
		case visitStateVisiting:
			return apmaserr.ConfigError("dependency cycle detected: %v", append(path, role))
		}
		state[role] = visitStateVisiting
		for _, dep := range deps[role] {
			if err := visit(dep, append(path, role)); err != nil {
				return err
			}
		}
		state[role] = visitStateDone
		return nil
	}

	for role := range deps {
		if err := visit(role, nil); err != nil {
			return err
		}
	}
	return nil
}
