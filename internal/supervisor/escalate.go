package supervisor

import (
	"context"

	"github.com/apmas/apmas/internal/apmaserr"
	"github.com/apmas/apmas/internal/types"
)

// scanEscalations emits an EscalationNotification for every agent
// currently Escalated, suppressing repeat emission while the status has
// not changed since the last notification (spec §4.4 step 5).
func (s *Supervisor) scanEscalations(ctx context.Context) error {
	all, err := s.agents.List()
	if err != nil {
		return err
	}

	for _, a := range all {
		if a.Status != types.StatusEscalated {
			s.clearNotified(a.Role)
			continue
		}
		if s.alreadyNotified(a.Role) {
			continue
		}
		if err := s.notifyEscalation(ctx, a); err != nil {
			return err
		}
		s.markNotified(a.Role)
	}
	return nil
}

func (s *Supervisor) notifyEscalation(ctx context.Context, a *types.AgentState) error {
	latest, err := s.checkpoints.Latest(a.Role)
	if err != nil && !apmaserr.Is(err, apmaserr.KindNotFound) {
		return err
	}
	resumption, err := s.checkpoints.ResumptionContext(a.Role)
	if err != nil {
		return err
	}

	notification := types.EscalationNotification{
		Role:               a.Role,
		FailureCount:       a.RetryCount,
		LastError:          a.LastError,
		LatestCheckpoint:   latest,
		Artifacts:          a.Artifacts,
		SynthesizedContext: resumption,
		Timestamp:          s.now(),
	}

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, notification); err != nil {
			return err
		}
	}
	s.publishDashboard(ctx, types.EventAgentUpdate, map[string]interface{}{"role": a.Role, "status": types.StatusEscalated, "escalation": notification})
	return nil
}

func (s *Supervisor) alreadyNotified(role string) bool {
	s.escalationMu.Lock()
	defer s.escalationMu.Unlock()
	return s.notifiedEscalated[role]
}

func (s *Supervisor) markNotified(role string) {
	s.escalationMu.Lock()
	defer s.escalationMu.Unlock()
	s.notifiedEscalated[role] = true
}

func (s *Supervisor) clearNotified(role string) {
	s.escalationMu.Lock()
	defer s.escalationMu.Unlock()
	delete(s.notifiedEscalated, role)
}
