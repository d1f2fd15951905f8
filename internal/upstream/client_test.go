package upstream_test

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/codex-bridge/codex-bridge-mcp/internal/upstream"
	"github.com/codex-bridge/codex-bridge-mcp/internal/wire"
)

// runAsFakeUpstream, when set in the environment, tells TestMain to act as a
// minimal stand-in upstream MCP server instead of running the test suite.
// Client spawns its upstream as a subprocess, so exercising it end-to-end
// means re-executing this same test binary as that subprocess.
const runAsFakeUpstream = "_CODEX_BRIDGE_FAKE_UPSTREAM"

func TestMain(m *testing.M) {
	if os.Getenv(runAsFakeUpstream) != "" {
		os.Unsetenv(runAsFakeUpstream)
		runFakeUpstream()
		return
	}
	os.Exit(m.Run())
}

// runFakeUpstream answers initialize, tools/list and tools/call, and emits a
// codex/event session_configured notification after every tools/call so
// AwaitSessionForRequest has something to observe. A call named "stall"
// never responds, for exercising timeout and cancellation paths.
func runFakeUpstream() {
	dec := wire.NewDecoder(os.Stdin)
	w := wire.NewWriter(os.Stdout)
	for {
		frame, err := dec.Next()
		if err != nil {
			return
		}
		if frame.Kind != wire.KindRequest {
			continue
		}
		req := frame.Request
		switch req.Method {
		case "initialize":
			resp, _ := wire.NewResponse(req.ID, map[string]any{
				"serverInfo": map[string]any{"name": "fake-upstream", "version": "9.9.9"},
			}, nil)
			w.WriteResponse(resp)
		case "tools/list":
			resp, _ := wire.NewResponse(req.ID, map[string]any{"tools": []any{}}, nil)
			w.WriteResponse(resp)
		case "tools/call":
			var params struct {
				Name string `json:"name"`
			}
			json.Unmarshal(req.Params, &params)
			if params.Name == "stall" {
				continue // never reply; exercises timeout/cancel
			}
			resp, _ := wire.NewResponse(req.ID, map[string]any{
				"content": []any{map[string]any{"type": "text", "text": "ok:" + params.Name}},
			}, nil)
			w.WriteResponse(resp)

			id, _ := req.ID.Raw().(int64)
			event, _ := wire.NewRequest(wire.ID{}, "codex/event", map[string]any{
				"msg": map[string]any{
					"type":       "session_configured",
					"session_id": "fake-session-1",
					"model":      "gpt-5.2-codex",
				},
				"_meta": map[string]any{"requestId": id},
			})
			w.WriteRequest(event)
		case "$/cancelRequest":
			// no-op: the fake upstream never actually interrupts "stall"
		}
	}
}

func newTestClient(t *testing.T) *upstream.Client {
	t.Helper()
	exe, err := os.Executable()
	if err != nil {
		t.Fatal(err)
	}
	t.Setenv(runAsFakeUpstream, "1")
	c := upstream.New(exe, nil)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCallToolRoundTripAndServerInfo(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	raw, _, err := c.CallTool(ctx, "codex", map[string]any{}, 5*time.Second, nil)
	if err != nil {
		t.Fatal(err)
	}
	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatal(err)
	}
	if len(result.Content) != 1 || result.Content[0].Text != "ok:codex" {
		t.Fatalf("unexpected result: %s", raw)
	}

	info := c.ServerInfo()
	if info == nil || info.Name != "fake-upstream" {
		t.Fatalf("ServerInfo = %+v", info)
	}
}

func TestAwaitSessionForRequestJoinsEvent(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, upstreamID, err := c.CallTool(ctx, "codex", map[string]any{}, 5*time.Second, nil)
	if err != nil {
		t.Fatal(err)
	}
	rec, err := c.AwaitSessionForRequest(ctx, upstreamID, 2*time.Second, nil)
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil || rec.ConversationID != "fake-session-1" {
		t.Fatalf("AwaitSessionForRequest = %+v", rec)
	}
}

func TestAwaitSessionForRequestMissTimesOutWithoutError(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	rec, err := c.AwaitSessionForRequest(ctx, 99999, 150*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("expected nil error on miss, got %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil record on miss, got %+v", rec)
	}
}

func TestCallToolTimesOutOnStalledUpstream(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, _, err := c.CallTool(ctx, "stall", map[string]any{}, 300*time.Millisecond, nil)
	if err != upstream.ErrTimeout {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestCallToolHonorsCancelSignal(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	cancel := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, _, err := c.CallTool(ctx, "stall", map[string]any{}, 10*time.Second, cancel)
		done <- err
	}()

	time.Sleep(100 * time.Millisecond)
	close(cancel)

	select {
	case err := <-done:
		if err != upstream.ErrCancelled {
			t.Fatalf("err = %v, want ErrCancelled", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("CallTool did not observe cancellation in time")
	}
}
