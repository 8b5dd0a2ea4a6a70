package supervisor

import (
	"context"

	"github.com/apmas/apmas/internal/types"
)

// checkTerminalPhase advances ProjectState.Phase once the roster has
// reached a terminal condition: every agent Completed, or any agent
// Failed (spec §4.4 step 6).
func (s *Supervisor) checkTerminalPhase(ctx context.Context) error {
	all, err := s.agents.List()
	if err != nil {
		return err
	}
	if len(all) == 0 {
		return nil
	}

	proj, err := s.projectStore.GetProjectState()
	if err != nil {
		return err
	}
	if proj.Phase == types.PhaseCompleted || proj.Phase == types.PhaseFailed {
		return nil
	}

	allCompleted := true
	anyFailed := false
	for _, a := range all {
		if a.Status == types.StatusFailed {
			anyFailed = true
		}
		if a.Status != types.StatusCompleted {
			allCompleted = false
		}
	}

	switch {
	case allCompleted:
		proj.Phase = types.PhaseCompleted
	case anyFailed:
		proj.Phase = types.PhaseFailed
	default:
		return nil
	}

	now := s.now()
	proj.CompletedAt = &now
	if err := s.projectStore.SaveProjectState(proj); err != nil {
		return err
	}
	s.publishDashboard(ctx, types.EventProjectUpdate, map[string]interface{}{"phase": proj.Phase})
	return nil
}
