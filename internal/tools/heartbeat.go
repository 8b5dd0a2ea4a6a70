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

var validHeartbeatStatuses = map[string]bool{"working": true, "thinking": true, "writing": true}

type heartbeatParams struct {
	AgentRole             string `json:"agentRole"`
	Status                string `json:"status"`
	Progress              string `json:"progress"`
	EstimatedContextUsage int    `json:"estimatedContextUsage"`
}

// NewHeartbeatDefinition builds the heartbeat tool: it extends an
// agent's timeout-at by grace on every call, so a live agent never
// times out as long as it keeps checking in.
func NewHeartbeatDefinition(agents *agentmgr.Manager, grace time.Duration, metrics metricsSink, now func() time.Time) Definition {
	return Definition{
		Name:        "heartbeat",
		Description: "Report liveness and progress; extends the watchdog timeout.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"agentRole":             map[string]interface{}{"type": "string"},
				"status":                map[string]interface{}{"type": "string", "enum": []string{"working", "thinking", "writing"}},
				"progress":              map[string]interface{}{"type": "string"},
				"estimatedContextUsage": map[string]interface{}{"type": "number"},
			},
			"required": []string{"agentRole", "status"},
		},
		Handler: func(ctx context.Context, raw json.RawMessage) (rpc.ToolResult, error) {
			var p heartbeatParams
			if err := json.Unmarshal(raw, &p); err != nil {
				return rpc.ErrorResult(fmt.Sprintf("invalid heartbeat params: %v", err)), nil
			}
			if !validHeartbeatStatuses[p.Status] {
				return rpc.ErrorResult("Invalid status"), nil
			}

			ts := now()
			timeoutAt := ts.Add(grace)
			var previous *time.Time
			_, err := agents.Update(p.AgentRole, func(a *types.AgentState) error {
				previous = a.LastHeartbeat
				a.LastHeartbeat = &ts
				a.TimeoutAt = &timeoutAt
				if p.Progress != "" {
					a.LastProgressMessage = p.Progress
				}
				if p.EstimatedContextUsage > 0 {
					a.EstimatedContextUsage = p.EstimatedContextUsage
				}
				return nil
			})
			if apmaserr.Is(err, apmaserr.KindNotFound) {
				return rpc.ErrorResult(err.Error()), nil
			}
			if err != nil {
				return rpc.ToolResult{}, err
			}
			if metrics != nil {
				if previous != nil {
					metrics.ObserveHeartbeatInterval(p.AgentRole, ts.Sub(*previous))
				}
				metrics.IncMessage("heartbeat")
			}
			return rpc.TextResult("heartbeat recorded"), nil
		},
	}
}
