package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"
)

type fakeTools struct {
	calls []string
}

func (f *fakeTools) ListTools() []ToolDescriptor {
	return []ToolDescriptor{{Name: "heartbeat", Description: "test", InputSchema: map[string]interface{}{}}}
}

func (f *fakeTools) CallTool(ctx context.Context, name string, args json.RawMessage) (ToolResult, error) {
	f.calls = append(f.calls, name)
	if name == "unknown" {
		return ToolResult{}, fmt.Errorf("boom")
	}
	return TextResult("ok"), nil
}

type fakeResources struct{}

func (fakeResources) ListResources() []ResourceDescriptor {
	return []ResourceDescriptor{{URI: "apmas://project/state", Name: "project state"}}
}

func (fakeResources) ReadResource(ctx context.Context, uri string) (ResourceContent, error) {
	if uri != "apmas://project/state" {
		return ResourceContent{}, fmt.Errorf("no such resource %q", uri)
	}
	return ResourceContent{URI: uri, MimeType: "application/json", Text: `{"phase":"building"}`}, nil
}

// testClient is a tiny synchronous JSON-RPC client over a pipe, used so
// tests exercise the real request/wait-for-response/next-request
// sequencing a well-behaved agent client follows, rather than racing
// every frame in at once.
type testClient struct {
	t *testing.T
	w *writer
	r *reader
}

func newTestClient(t *testing.T, w io.Writer, r io.Reader) *testClient {
	return &testClient{t: t, w: newWriter(w), r: newReader(r)}
}

func (c *testClient) send(req Request) {
	c.t.Helper()
	if err := c.w.WriteMessage(req); err != nil {
		c.t.Fatalf("write request: %v", err)
	}
}

func (c *testClient) recv() Response {
	c.t.Helper()
	body, err := c.r.ReadMessage()
	if err != nil {
		c.t.Fatalf("read response: %v", err)
	}
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		c.t.Fatalf("unmarshal response: %v", err)
	}
	return resp
}

func newHostHarness(t *testing.T, tools ToolCaller, resources ResourceReader) (*testClient, func()) {
	t.Helper()
	clientR, hostW := io.Pipe()
	hostR, clientW := io.Pipe()

	h := New(tools, resources, "2024-11-05", nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Serve(ctx, hostR, hostW)
		close(done)
	}()

	client := newTestClient(t, clientW, clientR)
	stop := func() {
		cancel()
		clientW.Close()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Serve did not exit after cancel")
		}
	}
	return client, stop
}

func (c *testClient) initialize(protocolVersion string) Response {
	c.send(Request{JSONRPC: "2.0", ID: 1, Method: "initialize", Params: json.RawMessage(`{"protocolVersion":"` + protocolVersion + `"}`)})
	return c.recv()
}

func (c *testClient) ack() {
	c.t.Helper()
	if err := c.w.WriteMessage(Request{JSONRPC: "2.0", Method: "notifications/initialized"}); err != nil {
		c.t.Fatalf("write notification: %v", err)
	}
}

func TestInitializeHandshakeUnlocksOtherMethods(t *testing.T) {
	tools := &fakeTools{}
	client, stop := newHostHarness(t, tools, fakeResources{})
	defer stop()

	initResp := client.initialize("2024-11-05")
	if initResp.Error != nil {
		t.Fatalf("initialize returned error: %+v", initResp.Error)
	}
	client.ack()

	client.send(Request{JSONRPC: "2.0", ID: 2, Method: "tools/list"})
	resp := client.recv()
	if resp.Error != nil {
		t.Fatalf("tools/list returned error: %+v", resp.Error)
	}
}

func TestCallBeforeInitializeRejected(t *testing.T) {
	client, stop := newHostHarness(t, &fakeTools{}, fakeResources{})
	defer stop()

	client.send(Request{JSONRPC: "2.0", ID: 1, Method: "tools/list"})
	resp := client.recv()
	if resp.Error == nil || resp.Error.Code != CodeNotInitialized {
		t.Fatalf("expected CodeNotInitialized, got %+v", resp.Error)
	}
}

func TestUnknownMethodReturnsMethodNotFound(t *testing.T) {
	client, stop := newHostHarness(t, &fakeTools{}, fakeResources{})
	defer stop()

	client.initialize("2024-11-05")
	client.ack()

	client.send(Request{JSONRPC: "2.0", ID: 2, Method: "bogus/method"})
	resp := client.recv()
	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Fatalf("expected CodeMethodNotFound, got %+v", resp.Error)
	}
}

func TestProtocolVersionMismatchRejected(t *testing.T) {
	client, stop := newHostHarness(t, &fakeTools{}, fakeResources{})
	defer stop()

	resp := client.initialize("1999-01-01")
	if resp.Error == nil || resp.Error.Code != CodeInvalidParams {
		t.Fatalf("expected CodeInvalidParams for version mismatch, got %+v", resp.Error)
	}
}

func TestToolsCallDispatchesAndResourcesRead(t *testing.T) {
	tools := &fakeTools{}
	client, stop := newHostHarness(t, tools, fakeResources{})
	defer stop()

	client.initialize("2024-11-05")
	client.ack()

	client.send(Request{JSONRPC: "2.0", ID: 2, Method: "tools/call", Params: json.RawMessage(`{"name":"heartbeat","arguments":{}}`)})
	resp := client.recv()
	if resp.Error != nil {
		t.Fatalf("tools/call returned error: %+v", resp.Error)
	}

	client.send(Request{JSONRPC: "2.0", ID: 3, Method: "resources/read", Params: json.RawMessage(`{"uri":"apmas://project/state"}`)})
	resp = client.recv()
	if resp.Error != nil {
		t.Fatalf("resources/read returned error: %+v", resp.Error)
	}

	if len(tools.calls) != 1 || tools.calls[0] != "heartbeat" {
		t.Fatalf("expected heartbeat to be dispatched, got %v", tools.calls)
	}
}

func TestMalformedFrameClosesConnection(t *testing.T) {
	h := New(&fakeTools{}, fakeResources{}, "2024-11-05", nil)

	in := strings.NewReader("Content-Length: notanumber\r\nContent-Type: application/json\r\n\r\n")
	var out bytes.Buffer
	if err := h.Serve(context.Background(), in, &out); err == nil {
		t.Fatal("expected malformed framing to return an error")
	}
}
