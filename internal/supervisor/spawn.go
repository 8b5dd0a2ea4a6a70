package supervisor

import (
	"context"

	"github.com/apmas/apmas/internal/types"
)

// spawnQueued calls the external Spawner for every Queued agent, in
// declaration order (spec §4.4 step 2, tie-break rule).
func (s *Supervisor) spawnQueued(ctx context.Context) error {
	all, err := s.agents.List()
	if err != nil {
		return err
	}

	for _, role := range s.orderedRoles(all) {
		var a *types.AgentState
		for _, candidate := range all {
			if candidate.Role == role {
				a = candidate
				break
			}
		}
		if a == nil || a.Status != types.StatusQueued {
			continue
		}
		if err := s.spawnOne(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (s *Supervisor) spawnOne(ctx context.Context, a *types.AgentState) error {
	result, err := s.spawner.Spawn(ctx, a.Role, a.SubagentType, a.RecoveryContext)
	if err != nil {
		return s.recordSpawnFailure(ctx, a.Role, err.Error())
	}
	if !result.Success {
		return s.recordSpawnFailure(ctx, a.Role, result.ErrorMessage)
	}

	now := s.now()
	timeoutAt := now.Add(s.cfg.SpawnTimeout)
	_, err = s.agents.Update(a.Role, func(next *types.AgentState) error {
		next.Status = types.StatusRunning
		next.TaskID = result.TaskID
		next.ProcessID = result.ProcessID
		next.SpawnedAt = &now
		next.TimeoutAt = &timeoutAt
		return nil
	})
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.IncSpawn(a.Role)
	}
	s.publishDashboard(ctx, types.EventAgentUpdate, map[string]interface{}{"role": a.Role, "status": types.StatusRunning})
	return nil
}

func (s *Supervisor) recordSpawnFailure(ctx context.Context, role, message string) error {
	next, err := s.agents.Update(role, func(next *types.AgentState) error {
		next.RetryCount++
		next.LastError = message
		if next.RetryCount >= s.cfg.MaxSpawnRetries {
			next.Status = types.StatusFailed
		}
		return nil
	})
	if err != nil {
		return err
	}
	if next.Status == types.StatusFailed && s.metrics != nil {
		s.metrics.IncFailure(role)
	}
	s.publishDashboard(ctx, types.EventAgentUpdate, map[string]interface{}{"role": role, "status": next.Status, "lastError": message})
	return nil
}
