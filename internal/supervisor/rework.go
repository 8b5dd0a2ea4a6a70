package supervisor

import (
	"context"
	"fmt"

	"github.com/apmas/apmas/internal/types"
)

// scanReviewFeedback applies the rework protocol to every unprocessed
// ChangesRequested message addressed to a real agent role (spec §4.4 step
// 4). Messages are taken in the order the store returns them (timestamp
// order). Only the first message for a target is applied in a tick: it
// moves the target out of Completed, so any later ones for that target
// stay unprocessed and are applied one per later completion, each
// consuming one review iteration then.
func (s *Supervisor) scanReviewFeedback(ctx context.Context) error {
	pending, err := s.bus.UnprocessedByType(types.MsgChangesRequested)
	if err != nil {
		return err
	}

	for _, msg := range pending {
		if msg.To == types.RecipientSupervisor || msg.To == types.RecipientAll {
			continue
		}
		if err := s.applyRework(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (s *Supervisor) applyRework(ctx context.Context, msg *types.AgentMessage) error {
	target, err := s.agents.Get(msg.To)
	if err != nil {
		return err
	}

	// A ChangesRequested for a target that hasn't completed yet is
	// deferred: leave it unprocessed for a later tick.
	if target.Status != types.StatusCompleted {
		return nil
	}

	if target.ReviewIterationCount >= s.cfg.MaxReviewIterations {
		if _, err := s.agents.Update(target.Role, func(next *types.AgentState) error {
			next.Status = types.StatusEscalated
			next.LastError = msg.Content
			return nil
		}); err != nil {
			return err
		}
		if err := s.bus.MarkProcessed(msg.ID); err != nil {
			return err
		}
		s.publishDashboard(ctx, types.EventAgentUpdate, map[string]interface{}{"role": target.Role, "status": types.StatusEscalated})
		return nil
	}

	recoveryContext := fmt.Sprintf("## Review feedback\n\n%s", msg.Content)
	if _, err := s.agents.Update(target.Role, func(next *types.AgentState) error {
		next.Status = types.StatusQueued
		next.RecoveryContext = recoveryContext
		next.ReviewIterationCount++
		return nil
	}); err != nil {
		return err
	}

	// Reset the reviewer (the message's sender) back to Pending, exploiting
	// the existing reviewer->developer dependency edge: once the developer
	// re-completes, step 1 re-promotes the reviewer on its own.
	if _, err := s.agents.Update(msg.From, func(next *types.AgentState) error {
		next.Status = types.StatusPending
		next.CompletedAt = nil
		next.SpawnedAt = nil
		next.TaskID = ""
		return nil
	}); err != nil {
		return err
	}

	if err := s.bus.MarkProcessed(msg.ID); err != nil {
		return err
	}

	s.publishDashboard(ctx, types.EventAgentUpdate, map[string]interface{}{"role": target.Role, "status": types.StatusQueued})
	s.publishDashboard(ctx, types.EventAgentUpdate, map[string]interface{}{"role": msg.From, "status": types.StatusPending})
	return nil
}
