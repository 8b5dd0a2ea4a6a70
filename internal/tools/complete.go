package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/apmas/apmas/internal/agentmgr"
	"github.com/apmas/apmas/internal/apmaserr"
	"github.com/apmas/apmas/internal/rpc"
	"github.com/apmas/apmas/internal/types"
)

type completeParams struct {
	AgentRole string   `json:"agentRole"`
	Artifacts []string `json:"artifacts"`
	Summary   string   `json:"summary"`
}

// NewCompleteDefinition builds the complete tool: it transitions an agent
// from running to completed. Any other starting status is a misuse of the
// protocol (an agent can only declare itself done once, while actually
// running) and is rejected rather than silently accepted.
func NewCompleteDefinition(agents *agentmgr.Manager, now func() time.Time, metrics metricsSink) Definition {
	return Definition{
		Name:        "complete",
		Description: "Mark the calling agent's assignment as completed.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"agentRole": map[string]interface{}{"type": "string"},
				"artifacts": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
				"summary":   map[string]interface{}{"type": "string"},
			},
			"required": []string{"agentRole"},
		},
		Handler: func(ctx context.Context, raw json.RawMessage) (rpc.ToolResult, error) {
			var p completeParams
			if err := json.Unmarshal(raw, &p); err != nil {
				return rpc.ErrorResult(fmt.Sprintf("invalid complete params: %v", err)), nil
			}

			ts := now()
			_, err := agents.Update(p.AgentRole, func(a *types.AgentState) error {
				if a.Status != types.StatusRunning {
					return apmaserr.InvalidState("agent %s is %s, not running; cannot complete", p.AgentRole, a.Status)
				}
				a.Status = types.StatusCompleted
				a.CompletedAt = &ts
				a.Artifacts = p.Artifacts
				if p.Summary != "" {
					a.LastProgressMessage = p.Summary
				}
				return nil
			})
			if apmaserr.Is(err, apmaserr.KindNotFound) || apmaserr.Is(err, apmaserr.KindInvalidState) {
				return rpc.ErrorResult(err.Error()), nil
			}
			if err != nil {
				return rpc.ToolResult{}, err
			}
			if metrics != nil {
				metrics.IncMessage("done")
			}
			return rpc.TextResult(fmt.Sprintf("%s marked completed", p.AgentRole)), nil
		},
	}
}
