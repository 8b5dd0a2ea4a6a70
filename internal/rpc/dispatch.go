package rpc

import (
	"context"
	"encoding/json"

	"github.com/apmas/apmas/internal/apmaserr"
)

type initializeParams struct {
	ProtocolVersion string `json:"protocolVersion"`
}

func (h *Host) handleInitialize(req Request) Response {
	var params initializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, CodeInvalidParams, "invalid initialize params")
		}
	}
	if params.ProtocolVersion != "" && params.ProtocolVersion != h.protocol {
		return errorResponse(req.ID, CodeInvalidParams, "unsupported protocolVersion "+params.ProtocolVersion)
	}

	return resultResponse(req.ID, map[string]interface{}{
		"protocolVersion": h.protocol,
		"serverInfo": map[string]string{
			"name":    "apmas",
			"version": "1.0.0",
		},
		"capabilities": map[string]interface{}{
			"tools":     map[string]bool{"listChanged": false},
			"resources": map[string]bool{"listChanged": false},
		},
	})
}

func (h *Host) handleToolsList(req Request) Response {
	return resultResponse(req.ID, map[string]interface{}{"tools": h.tools.ListTools()})
}

type toolsCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func (h *Host) handleToolsCall(ctx context.Context, req Request) Response {
	var params toolsCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
		return errorResponse(req.ID, CodeInvalidParams, "invalid tools/call params")
	}

	result, err := h.tools.CallTool(ctx, params.Name, params.Arguments)
	if err != nil {
		return errorResponse(req.ID, toolCallErrorCode(err), err.Error())
	}
	return resultResponse(req.ID, result)
}

func (h *Host) handleResourcesList(req Request) Response {
	return resultResponse(req.ID, map[string]interface{}{"resources": h.resources.ListResources()})
}

type resourcesReadParams struct {
	URI string `json:"uri"`
}

func (h *Host) handleResourcesRead(ctx context.Context, req Request) Response {
	var params resourcesReadParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.URI == "" {
		return errorResponse(req.ID, CodeInvalidParams, "invalid resources/read params")
	}

	content, err := h.resources.ReadResource(ctx, params.URI)
	if err != nil {
		return errorResponse(req.ID, CodeInvalidParams, err.Error())
	}
	return resultResponse(req.ID, map[string]interface{}{"contents": []ResourceContent{content}})
}

// toolCallErrorCode maps a CallTool error into a JSON-RPC code: an
// unknown tool name or malformed arguments is the caller's mistake
// (-32602), anything else is an unexpected internal failure (-32603).
// Expected domain failures (NotFound/InvalidState/Validation) reached
// through a tool's Handler should already have been converted to an
// isError:true ToolResult by the tool itself rather than an error return.
func toolCallErrorCode(err error) int {
	if apmaserr.Is(err, apmaserr.KindNotFound) || apmaserr.Is(err, apmaserr.KindValidationError) {
		return CodeInvalidParams
	}
	return CodeInternalError
}
