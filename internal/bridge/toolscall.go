package bridge

import (
	"context"
	"encoding/json"
	"time"

	"github.com/codex-bridge/codex-bridge-mcp/internal/upstream"
	"github.com/codex-bridge/codex-bridge-mcp/internal/wire"
)

const (
	defaultTimeoutMs = 600_000
	minTimeoutMs     = 1_000
	maxTimeoutMs     = 3_600_000

	defaultStartupTimeoutMs = 5_000
	minStartupTimeoutMs     = 100
	maxStartupTimeoutMs     = 60_000

	replyRecoveryTimeout = 2 * time.Second
)

// handleToolsCall validates the envelope, rejects a duplicate in-flight id,
// and otherwise hands the call to a worker goroutine, returning the async
// sentinel (nil response, false) so the entry loop does not reply itself.
func (s *Server) handleToolsCall(req *wire.Request) (*wire.Response, bool) {
	var params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
		resp, _ := wire.NewResponse(req.ID, errorResult("tools/call requires {name: string, arguments: object}"), nil)
		return resp, true
	}
	if params.Arguments == nil {
		params.Arguments = map[string]any{}
	}

	entry, accepted := s.inflight.accept(req.ID)
	if !accepted {
		resp, _ := wire.NewResponse(req.ID, errorResult("a request with this id is already in flight"), nil)
		return resp, true
	}

	go s.runWorker(req.ID, entry, params.Name, params.Arguments)
	return nil, false
}

func (s *Server) runWorker(id wire.ID, entry *inflightEntry, name string, args map[string]any) {
	defer s.inflight.finish(id)
	result := s.dispatchTool(entry, name, args)
	resp, err := wire.NewResponse(id, result, nil)
	if err != nil {
		resp, _ = wire.NewResponse(id, errorResult("internal error encoding tool result"), nil)
	}
	s.reply(resp)
}

func (s *Server) dispatchTool(entry *inflightEntry, name string, args map[string]any) map[string]any {
	switch name {
	case "codex":
		return s.toolCodex(entry, args)
	case "codex-reply":
		return s.toolCodexReply(entry, args)
	case "codex-bridge-info":
		return s.toolInfo()
	case "codex-bridge-options":
		return s.toolOptions()
	case "codex-bridge-sessions":
		return s.toolSessions(args)
	case "codex-bridge-session":
		return s.toolSession(args)
	case "codex-bridge-name-session":
		return s.toolNameSession(args)
	case "codex-bridge-delete-session":
		return s.toolDeleteSession(args)
	case "codex-bridge-read-rollout":
		return s.toolReadRollout(args)
	case "codex-bridge-export-session":
		return s.toolExportSession(args)
	default:
		return s.forwardTool(entry, name, args)
	}
}

// forwardTool passes a call through to the upstream process unchanged: any
// tool the upstream exposes beyond codex/codex-reply is reachable this way.
func (s *Server) forwardTool(entry *inflightEntry, name string, args map[string]any) map[string]any {
	raw, upstreamID, err := s.client.CallTool(context.Background(), name, args, defaultTimeoutMs*time.Millisecond, entry.cancel)
	if err != nil {
		return errorResult(upstreamErrorMessage(err))
	}
	entry.setUpstreamID(upstreamID)
	result := decodeUpstreamResult(raw)
	return map[string]any{
		"content": toAnySlice(result.Content),
		"isError": result.IsError,
	}
}

// toAnySlice re-wraps each forwarded content block as a text block,
// matching the original bridge's text-only extraction: only a block's text
// is kept, so a non-text upstream block keeps its position but becomes a
// text block with empty text rather than being passed through.
func toAnySlice(blocks []contentBlock) []any {
	out := make([]any, len(blocks))
	for i, b := range blocks {
		out[i] = textBlock(b.Text)
	}
	return out
}

func upstreamErrorMessage(err error) string {
	switch err {
	case upstream.ErrCancelled:
		return "request was cancelled"
	case upstream.ErrProcessExited:
		return "upstream process exited before responding"
	case upstream.ErrTimeout:
		return "upstream call timed out"
	case upstream.ErrClosed:
		return "upstream connection is closed"
	}
	if we, ok := err.(*wire.WireError); ok {
		return we.Message
	}
	return err.Error()
}

// popString removes key from args and returns its string value, or "" if
// absent or not a string. Bridge-specific keys are always consumed before
// the remaining arguments are forwarded upstream.
func popString(args map[string]any, key string) string {
	v, ok := args[key]
	delete(args, key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func popStringPtr(args map[string]any, key string) *string {
	v, ok := args[key]
	delete(args, key)
	if !ok {
		return nil
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	return &s
}

// popTimeoutMs removes key from args and clamps it to [min, max]
// milliseconds, treating an absent key as def and a non-positive value as
// min.
func popTimeoutMs(args map[string]any, key string, def, min, max int64) time.Duration {
	v, ok := args[key]
	delete(args, key)
	ms := def
	if ok {
		ms = toInt64(v)
		if ms <= 0 {
			ms = min
		}
	}
	if ms > max {
		ms = max
	}
	if ms < min {
		ms = min
	}
	return time.Duration(ms) * time.Millisecond
}
