package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"go.uber.org/zap"
)

// ContentItem is one piece of a tool result's content list, MCP-style.
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolResult is what a tool call returns. IsError marks an expected
// domain failure (validation, NotFound, InvalidState) that the calling
// agent should read and adapt to — it is never a transport-level error
// (spec §4.6's tool error discipline).
type ToolResult struct {
	Content []ContentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// TextResult builds a single-content-item success result.
func TextResult(text string) ToolResult {
	return ToolResult{Content: []ContentItem{{Type: "text", Text: text}}}
}

// ErrorResult builds a single-content-item isError:true result.
func ErrorResult(text string) ToolResult {
	return ToolResult{Content: []ContentItem{{Type: "text", Text: text}}, IsError: true}
}

// ToolDescriptor is the tools/list entry shape.
type ToolDescriptor struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema interface{} `json:"inputSchema"`
}

// ToolCaller is the subset of the Tool Registry the Host depends on.
type ToolCaller interface {
	ListTools() []ToolDescriptor
	CallTool(ctx context.Context, name string, args json.RawMessage) (ToolResult, error)
}

// ResourceDescriptor is the resources/list entry shape.
type ResourceDescriptor struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ResourceContent is a resources/read result.
type ResourceContent struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

// ResourceReader is the subset of the Resource Registry the Host depends on.
type ResourceReader interface {
	ListResources() []ResourceDescriptor
	ReadResource(ctx context.Context, uri string) (ResourceContent, error)
}

// Host implements the JSON-RPC Host (spec §4.6): one stdio pair, one
// initialization gate, concurrent request dispatch with serialized
// writes.
type Host struct {
	tools     ToolCaller
	resources ResourceReader
	protocol  string
	log       *zap.SugaredLogger

	mu          sync.Mutex
	initialized bool

	wg sync.WaitGroup
}

// New constructs a Host. protocolVersion is the fixed string advertised at
// initialize and checked against the client's requested version.
func New(tools ToolCaller, resources ResourceReader, protocolVersion string, log *zap.SugaredLogger) *Host {
	return &Host{tools: tools, resources: resources, protocol: protocolVersion, log: log}
}

// Serve reads frames from r and writes responses to w until ctx is
// cancelled or a framing error forces the connection closed. It blocks
// until every in-flight request it dispatched has completed.
func (h *Host) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	in := newReader(r)
	out := newWriter(w)

	defer h.wg.Wait()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		body, err := in.ReadMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if h.log != nil {
				h.log.Warnw("rpc: malformed frame, closing connection", "error", err)
			}
			return err
		}

		var req Request
		if err := json.Unmarshal(body, &req); err != nil {
			_ = out.WriteMessage(errorResponse(nil, CodeInvalidRequest, "invalid JSON-RPC request"))
			continue
		}

		h.wg.Add(1)
		go func(req Request) {
			defer h.wg.Done()
			resp, respond := h.dispatch(ctx, req)
			if !respond {
				return
			}
			if err := out.WriteMessage(resp); err != nil && h.log != nil {
				h.log.Warnw("rpc: failed to write response", "error", err)
			}
		}(req)
	}
}

func (h *Host) isInitialized() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.initialized
}

func (h *Host) markInitialized() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.initialized = true
}

// dispatch routes one request to its handler. The bool return reports
// whether a response frame is expected (false for notifications).
func (h *Host) dispatch(ctx context.Context, req Request) (Response, bool) {
	if req.Method == "notifications/initialized" {
		h.markInitialized()
		return Response{}, false
	}

	if req.Method != "initialize" && !h.isInitialized() {
		return errorResponse(req.ID, CodeNotInitialized, "server not initialized"), !req.IsNotification()
	}

	var resp Response
	switch req.Method {
	case "initialize":
		resp = h.handleInitialize(req)
	case "tools/list":
		resp = h.handleToolsList(req)
	case "tools/call":
		resp = h.handleToolsCall(ctx, req)
	case "resources/list":
		resp = h.handleResourcesList(req)
	case "resources/read":
		resp = h.handleResourcesRead(ctx, req)
	default:
		resp = errorResponse(req.ID, CodeMethodNotFound, "method not found: "+req.Method)
	}
	return resp, !req.IsNotification()
}
