package supervisor

import (
	"context"

	"github.com/apmas/apmas/internal/types"
)

// sweepTimeouts transitions Running/Spawning agents whose timeout-at has
// elapsed to TimedOut, then either requeues them (retry-count < MaxRetries)
// or fails them (spec §4.4 step 3).
func (s *Supervisor) sweepTimeouts(ctx context.Context) error {
	all, err := s.agents.List()
	if err != nil {
		return err
	}

	now := s.now()
	for _, a := range all {
		if a.Status != types.StatusRunning && a.Status != types.StatusSpawning {
			continue
		}
		if a.TimeoutAt == nil || !a.TimeoutAt.Before(now) {
			continue
		}

		next, err := s.agents.Update(a.Role, func(next *types.AgentState) error {
			next.Status = types.StatusTimedOut
			next.LastError = "timeout: no heartbeat before timeout-at"
			return nil
		})
		if err != nil {
			return err
		}
		if s.metrics != nil {
			s.metrics.IncTimeout(a.Role)
		}
		if _, err := s.bus.Publish(&types.AgentMessage{
			From: types.RecipientSupervisor, To: a.Role, Type: types.MsgError,
			Content: "timed out waiting for heartbeat",
		}); err != nil {
			return err
		}
		s.publishDashboard(ctx, types.EventAgentUpdate, map[string]interface{}{"role": a.Role, "status": types.StatusTimedOut})

		if err := s.requeueOrFail(ctx, next); err != nil {
			return err
		}
	}
	return nil
}

func (s *Supervisor) requeueOrFail(ctx context.Context, a *types.AgentState) error {
	if a.RetryCount >= s.cfg.MaxRetries {
		next, err := s.agents.Update(a.Role, func(next *types.AgentState) error {
			next.Status = types.StatusFailed
			return nil
		})
		if err != nil {
			return err
		}
		if s.metrics != nil {
			s.metrics.IncFailure(a.Role)
		}
		s.publishDashboard(ctx, types.EventAgentUpdate, map[string]interface{}{"role": a.Role, "status": next.Status})
		return nil
	}

	_, err := s.agents.Update(a.Role, func(next *types.AgentState) error {
		next.Status = types.StatusQueued
		next.RetryCount++
		return nil
	})
	if err != nil {
		return err
	}
	s.publishDashboard(ctx, types.EventAgentUpdate, map[string]interface{}{"role": a.Role, "status": types.StatusQueued})
	return nil
}
