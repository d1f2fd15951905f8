package upstream

import (
	"encoding/json"

	"github.com/codex-bridge/codex-bridge-mcp/internal/session"
)

// codexEventParams is the params object of a "codex/event" notification.
// The request id that triggered the underlying upstream call travels in
// params._meta.requestId.
type codexEventParams struct {
	Msg  json.RawMessage `json:"msg"`
	Meta struct {
		RequestID json.Number `json:"requestId"`
	} `json:"_meta"`
}

// sessionConfiguredMsg is the nested payload of a codex/event whose
// type is "session_configured".
type sessionConfiguredMsg struct {
	Type              string          `json:"type"`
	SessionID         string          `json:"session_id"`
	Model             *string         `json:"model"`
	ModelProviderID   *string         `json:"model_provider_id"`
	ApprovalPolicy    *string         `json:"approval_policy"`
	CWD               *string         `json:"cwd"`
	ReasoningEffort   *string         `json:"reasoning_effort"`
	RolloutPath       *string         `json:"rollout_path"`
	SandboxPolicy     json.RawMessage `json:"sandbox_policy"`
	HistoryLogID      *int64          `json:"history_log_id"`
	HistoryEntryCount *int64          `json:"history_entry_count"`
}

// parseSessionConfigured inspects a "codex/event" notification's raw params
// and returns the upstream request id it is correlated with plus the
// constructed session.Record, if and only if the nested payload is a
// session_configured event with a non-empty session_id.
func parseSessionConfigured(rawParams json.RawMessage, capturedAt int64) (reqID int64, rec session.Record, ok bool) {
	var p codexEventParams
	if err := json.Unmarshal(rawParams, &p); err != nil {
		return 0, session.Record{}, false
	}
	var msg sessionConfiguredMsg
	if err := json.Unmarshal(p.Msg, &msg); err != nil {
		return 0, session.Record{}, false
	}
	if msg.Type != "session_configured" || msg.SessionID == "" {
		return 0, session.Record{}, false
	}
	id, err := p.Meta.RequestID.Int64()
	if err != nil {
		return 0, session.Record{}, false
	}
	return id, session.Record{
		ConversationID:    msg.SessionID,
		CapturedAt:        capturedAt,
		Model:             msg.Model,
		ModelProviderID:   msg.ModelProviderID,
		ApprovalPolicy:    msg.ApprovalPolicy,
		CWD:               msg.CWD,
		ReasoningEffort:   msg.ReasoningEffort,
		RolloutPath:       msg.RolloutPath,
		SandboxPolicy:     msg.SandboxPolicy,
		HistoryLogID:      msg.HistoryLogID,
		HistoryEntryCount: msg.HistoryEntryCount,
	}, true
}
