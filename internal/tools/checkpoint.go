package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/apmas/apmas/internal/apmaserr"
	"github.com/apmas/apmas/internal/checkpoint"
	"github.com/apmas/apmas/internal/rpc"
	"github.com/apmas/apmas/internal/types"
)

type checkpointParams struct {
	AgentRole             string   `json:"agentRole"`
	Summary               string   `json:"summary"`
	CompletedItems        []string `json:"completedItems"`
	PendingItems          []string `json:"pendingItems"`
	ActiveFiles           []string `json:"activeFiles"`
	Notes                 string   `json:"notes"`
	EstimatedContextUsage int      `json:"estimatedContextUsage"`
}

func filterEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// NewCheckpointDefinition builds the checkpoint tool: it records a
// progress snapshot and reports back the completion fraction so the
// agent can confirm what was recorded.
func NewCheckpointDefinition(recorder *checkpoint.Recorder, metrics metricsSink) Definition {
	return Definition{
		Name:        "checkpoint",
		Description: "Record a progress snapshot for recovery after a timeout or rework reset.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"agentRole":             map[string]interface{}{"type": "string"},
				"summary":               map[string]interface{}{"type": "string"},
				"completedItems":        map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
				"pendingItems":          map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
				"activeFiles":           map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
				"notes":                 map[string]interface{}{"type": "string"},
				"estimatedContextUsage": map[string]interface{}{"type": "number"},
			},
			"required": []string{"agentRole", "summary"},
		},
		Handler: func(ctx context.Context, raw json.RawMessage) (rpc.ToolResult, error) {
			var p checkpointParams
			if err := json.Unmarshal(raw, &p); err != nil {
				return rpc.ErrorResult(fmt.Sprintf("invalid checkpoint params: %v", err)), nil
			}

			completed := filterEmpty(p.CompletedItems)
			pending := filterEmpty(p.PendingItems)
			c := &types.Checkpoint{
				Summary:               p.Summary,
				CompletedTaskCount:    len(completed),
				TotalTaskCount:        len(completed) + len(pending),
				CompletedItems:        completed,
				PendingItems:          pending,
				ActiveFiles:           filterEmpty(p.ActiveFiles),
				Notes:                 p.Notes,
				EstimatedContextUsage: p.EstimatedContextUsage,
			}

			if err := recorder.Save(p.AgentRole, c); err != nil {
				if apmaserr.Is(err, apmaserr.KindValidationError) {
					return rpc.ErrorResult(err.Error()), nil
				}
				return rpc.ToolResult{}, err
			}
			if metrics != nil {
				metrics.IncCheckpoint(p.AgentRole)
			}
			return rpc.TextResult(fmt.Sprintf("%d/%d (%d%%) complete", c.CompletedTaskCount, c.TotalTaskCount, c.PercentComplete())), nil
		},
	}
}
