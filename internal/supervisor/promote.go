package supervisor

import (
	"context"
	"sort"

	"github.com/apmas/apmas/internal/types"
)

// promoteDependencies transitions every Pending agent whose dependencies
// are all Completed to Queued (spec §4.4 step 1).
func (s *Supervisor) promoteDependencies(ctx context.Context) error {
	all, err := s.agents.List()
	if err != nil {
		return err
	}

	byRole := make(map[string]*types.AgentState, len(all))
	for _, a := range all {
		byRole[a.Role] = a
	}

	for _, role := range s.orderedRoles(all) {
		a := byRole[role]
		if a.Status != types.StatusPending {
			continue
		}
		if !depsSatisfied(a, byRole) {
			continue
		}
		if _, err := s.agents.Update(role, func(next *types.AgentState) error {
			next.Status = types.StatusQueued
			return nil
		}); err != nil {
			return err
		}
		s.publishDashboard(ctx, types.EventAgentUpdate, map[string]interface{}{"role": role, "status": types.StatusQueued})
	}
	return nil
}

func depsSatisfied(a *types.AgentState, byRole map[string]*types.AgentState) bool {
	for _, dep := range a.Dependencies {
		depState, ok := byRole[dep]
		if !ok || depState.Status != types.StatusCompleted {
			return false
		}
	}
	return true
}

// orderedRoles returns the roles present in all, ordered by declaration
// order where known, falling back to list order for any role that
// wasn't part of the declared roster. Declaration order is only known
// after InitializeProject; a resumed Supervisor uses list order for
// every role.
func (s *Supervisor) orderedRoles(all []*types.AgentState) []string {
	index := make(map[string]int, len(s.roleOrder))
	for i, r := range s.roleOrder {
		index[r] = i
	}
	roles := make([]string, len(all))
	for i, a := range all {
		roles[i] = a.Role
	}
	sort.SliceStable(roles, func(i, j int) bool {
		ii, iok := index[roles[i]]
		jj, jok := index[roles[j]]
		if iok && jok {
			return ii < jj
		}
		return iok
	})
	return roles
}
