package bridge

import (
	"context"
	"time"

	"github.com/codex-bridge/codex-bridge-mcp/internal/policy"
)

// codexResultPayload is the JSON payload carried in the text content block
// of a codex/codex-reply tool result.
type codexResultPayload struct {
	ConversationID *string `json:"conversationId"`
	Output         string  `json:"output"`
	Session        any     `json:"session,omitempty"`
}

// toolCodex starts a new upstream conversation. The model is resolved
// against the catalogue before the call (falling back with a warning rather
// than rejecting an unrecognized model outright), and the session index is
// joined to the upstream's session_configured event once the call returns.
func (s *Server) toolCodex(entry *inflightEntry, args map[string]any) map[string]any {
	timeout := popTimeoutMs(args, "timeoutMs", defaultTimeoutMs, minTimeoutMs, maxTimeoutMs)
	startupTimeout := popTimeoutMs(args, "startupTimeoutMs", defaultStartupTimeoutMs, minStartupTimeoutMs, maxStartupTimeoutMs)
	name := popStringPtr(args, "name")
	taskType := policy.NormalizeTaskType(popString(args, "taskType"))
	requestedModel := popStringPtr(args, "model")

	model, warning := policy.ResolveModel(requestedModel, taskType, s.catalogue())
	args["model"] = model
	policy.InjectDefaults(args)

	ctx := context.Background()
	raw, upstreamID, err := s.client.CallTool(ctx, "codex", args, timeout, entry.cancel)
	if err != nil {
		return errorResult(upstreamErrorMessage(err))
	}
	entry.setUpstreamID(upstreamID)

	result := decodeUpstreamResult(raw)
	output := extractText(result.Content)
	if warning != "" {
		output = "[" + warning + "]\n" + output
	}
	if result.IsError {
		return errorResult(output)
	}

	rec, err := s.client.AwaitSessionForRequest(ctx, upstreamID, startupTimeout, entry.cancel)
	if err != nil || rec == nil {
		return jsonToolResult(codexResultPayload{
			ConversationID: nil,
			Output:         output + "\n[warning: no session id was observed for this call within the startup timeout; the conversation cannot be continued with codex-reply]",
		}, true)
	}

	if name != nil {
		if updated, ok := s.store.Update(rec.ConversationID, *name); ok {
			rec = &updated
		}
	} else {
		s.store.Add(*rec)
	}

	payload := rec.ToPayload()
	return jsonToolResult(codexResultPayload{
		ConversationID: &rec.ConversationID,
		Output:         output,
		Session:        payload,
	}, false)
}

// toolCodexReply continues an existing conversation. If the session index
// has no record of conversationId (the session_configured event for the
// original codex call raced with, or lagged, this reply), one best-effort
// attempt is made to recover it by joining a fresh session event off this
// very call; a miss is silently ignored, never surfaced as an error.
func (s *Server) toolCodexReply(entry *inflightEntry, args map[string]any) map[string]any {
	conversationID := popString(args, "conversationId")
	prompt := popString(args, "prompt")
	if conversationID == "" || prompt == "" {
		return errorResult("codex-reply requires non-empty conversationId and prompt arguments")
	}

	callArgs := map[string]any{"conversationId": conversationID, "prompt": prompt}
	ctx := context.Background()
	raw, upstreamID, err := s.client.CallTool(ctx, "codex-reply", callArgs, defaultTimeoutMs*time.Millisecond, entry.cancel)
	if err != nil {
		return errorResult(upstreamErrorMessage(err))
	}
	entry.setUpstreamID(upstreamID)

	result := decodeUpstreamResult(raw)
	output := extractText(result.Content)
	if result.IsError {
		return errorResult(output)
	}

	if _, ok := s.store.IncrementHistory(conversationID); !ok {
		if rec, err := s.client.AwaitSessionForRequest(ctx, upstreamID, replyRecoveryTimeout, entry.cancel); err == nil && rec != nil {
			s.store.Add(*rec)
			s.store.IncrementHistory(rec.ConversationID)
		}
	}

	return jsonToolResult(codexResultPayload{
		ConversationID: &conversationID,
		Output:         output,
	}, false)
}
