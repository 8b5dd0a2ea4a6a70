package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/apmas/apmas/internal/agentmgr"
	"github.com/apmas/apmas/internal/apmaserr"
	"github.com/apmas/apmas/internal/bus"
	"github.com/apmas/apmas/internal/rpc"
	"github.com/apmas/apmas/internal/types"
)

type sendMessageParams struct {
	To       string                 `json:"to"`
	Type     string                 `json:"type"`
	Content  string                 `json:"content"`
	Artifacts []string              `json:"artifacts"`
	Metadata map[string]interface{} `json:"metadata"`
}

func hasDependency(deps []string, role string) bool {
	for _, d := range deps {
		if d == role {
			return true
		}
	}
	return false
}

// NewSendMessageDefinition builds the send-message tool. The caller's role
// is taken from the connection context (see WithCallerRole), not from the
// tool arguments, so an agent cannot forge its own From identity.
func NewSendMessageDefinition(agents *agentmgr.Manager, b *bus.Bus, metrics metricsSink) Definition {
	return Definition{
		Name:        "send-message",
		Description: "Send a message to another agent or to the supervisor.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"to":        map[string]interface{}{"type": "string"},
				"type":      map[string]interface{}{"type": "string"},
				"content":   map[string]interface{}{"type": "string"},
				"artifacts": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
				"metadata":  map[string]interface{}{"type": "object"},
			},
			"required": []string{"to", "type", "content"},
		},
		Handler: func(ctx context.Context, raw json.RawMessage) (rpc.ToolResult, error) {
			var p sendMessageParams
			if err := json.Unmarshal(raw, &p); err != nil {
				return rpc.ErrorResult(fmt.Sprintf("invalid send-message params: %v", err)), nil
			}
			if p.To == "" {
				return rpc.ErrorResult("to is required"), nil
			}
			msgType := types.MessageType(p.Type)
			if !types.ValidMessageTypes[msgType] {
				return rpc.ErrorResult(fmt.Sprintf("unknown message type %q", p.Type)), nil
			}

			from, ok := CallerRoleFromContext(ctx)
			if !ok || from == "" {
				return rpc.ErrorResult("caller role is not bound to this connection"), nil
			}

			if msgType == types.MsgChangesRequested {
				sender, err := agents.Get(from)
				if apmaserr.Is(err, apmaserr.KindNotFound) {
					return rpc.ErrorResult(err.Error()), nil
				}
				if err != nil {
					return rpc.ToolResult{}, err
				}
				if !hasDependency(sender.Dependencies, p.To) {
					return rpc.ErrorResult("reviewer has no declared dependency on target; rework protocol requires a reverse edge"), nil
				}
			}

			msg := &types.AgentMessage{
				From:      from,
				To:        p.To,
				Type:      msgType,
				Content:   p.Content,
				Artifacts: p.Artifacts,
				Metadata:  p.Metadata,
			}
			stored, err := b.Publish(msg)
			if err != nil {
				return rpc.ToolResult{}, err
			}
			if metrics != nil {
				metrics.IncMessage(string(msgType))
			}
			return rpc.TextResult(fmt.Sprintf("message %s sent to %s", stored.ID, stored.To)), nil
		},
	}
}
