// Package session implements the durable index of upstream conversational
// sessions: an immutable Record value, its on-disk and downstream-payload
// projections, and a mutex-guarded, JSONL-backed Store.
package session

import "encoding/json"

// Record is an immutable value describing one upstream conversation.
// All fields except Name and HistoryEntryCount are write-once at first
// insert; Name is user-settable and HistoryEntryCount is increment-only.
// Mutation methods return a new value — callers never mutate a Record in
// place.
type Record struct {
	ConversationID    string
	CapturedAt        int64 // unix seconds, set once at first observation
	Model             *string
	ModelProviderID   *string
	ApprovalPolicy    *string
	CWD               *string
	ReasoningEffort   *string
	RolloutPath       *string
	SandboxPolicy     json.RawMessage // opaque to the core, preserved verbatim
	HistoryLogID      *int64
	HistoryEntryCount *int64
	Name              *string
}

// withName returns a copy of r with Name set.
func (r Record) withName(name string) Record {
	r.Name = &name
	return r
}

// withIncrementedHistory returns a copy of r with HistoryEntryCount
// incremented by one (treating an absent count as zero).
func (r Record) withIncrementedHistory() Record {
	var next int64 = 1
	if r.HistoryEntryCount != nil {
		next = *r.HistoryEntryCount + 1
	}
	r.HistoryEntryCount = &next
	return r
}

// Payload is the downstream-facing (camelCase) projection of a Record.
// It is the sole interop surface toward MCP clients; the persisted disk
// form uses snake_case keys instead (see diskRecord).
type Payload struct {
	ConversationID    string          `json:"conversationId"`
	CapturedAt        int64           `json:"capturedAt"`
	Model             *string         `json:"model"`
	ModelProviderID   *string         `json:"modelProviderId"`
	ApprovalPolicy    *string         `json:"approvalPolicy"`
	CWD               *string         `json:"cwd"`
	ReasoningEffort   *string         `json:"reasoningEffort"`
	RolloutPath       *string         `json:"rolloutPath"`
	SandboxPolicy     json.RawMessage `json:"sandboxPolicy"`
	HistoryLogID      *int64          `json:"historyLogId"`
	HistoryEntryCount *int64          `json:"historyEntryCount"`
	Name              *string         `json:"name"`
}

// ToPayload projects r into its downstream representation.
func (r Record) ToPayload() Payload {
	sandbox := r.SandboxPolicy
	if sandbox == nil {
		sandbox = json.RawMessage("null")
	}
	return Payload{
		ConversationID:    r.ConversationID,
		CapturedAt:        r.CapturedAt,
		Model:             r.Model,
		ModelProviderID:   r.ModelProviderID,
		ApprovalPolicy:    r.ApprovalPolicy,
		CWD:               r.CWD,
		ReasoningEffort:   r.ReasoningEffort,
		RolloutPath:       r.RolloutPath,
		SandboxPolicy:     sandbox,
		HistoryLogID:      r.HistoryLogID,
		HistoryEntryCount: r.HistoryEntryCount,
		Name:              r.Name,
	}
}

// diskRecord is the on-disk (snake_case) projection of a Record, one JSON
// object per line in sessions.jsonl.
type diskRecord struct {
	ConversationID    string          `json:"conversation_id"`
	CapturedAt        int64           `json:"captured_at"`
	Model             *string         `json:"model,omitempty"`
	ModelProviderID   *string         `json:"model_provider_id,omitempty"`
	ApprovalPolicy    *string         `json:"approval_policy,omitempty"`
	CWD               *string         `json:"cwd,omitempty"`
	ReasoningEffort   *string         `json:"reasoning_effort,omitempty"`
	RolloutPath       *string         `json:"rollout_path,omitempty"`
	SandboxPolicy     json.RawMessage `json:"sandbox_policy,omitempty"`
	HistoryLogID      *int64          `json:"history_log_id,omitempty"`
	HistoryEntryCount *int64          `json:"history_entry_count,omitempty"`
	Name              *string         `json:"name,omitempty"`
}

func (r Record) toDisk() diskRecord {
	return diskRecord{
		ConversationID:    r.ConversationID,
		CapturedAt:        r.CapturedAt,
		Model:             r.Model,
		ModelProviderID:   r.ModelProviderID,
		ApprovalPolicy:    r.ApprovalPolicy,
		CWD:               r.CWD,
		ReasoningEffort:   r.ReasoningEffort,
		RolloutPath:       r.RolloutPath,
		SandboxPolicy:     r.SandboxPolicy,
		HistoryLogID:      r.HistoryLogID,
		HistoryEntryCount: r.HistoryEntryCount,
		Name:              r.Name,
	}
}

// fromDiskLine decodes one JSONL line into a Record. Malformed lines (bad
// JSON, or missing the required conversation_id) are reported via ok=false
// so the caller can skip them without aborting the load.
// Type-mismatched fields are coerced to null rather than failing the whole
// line, matching encoding/json's default lenient behavior for pointer
// fields (a mismatched type simply fails to unmarshal that field's value);
// to keep that promise even for scalar mismatches we decode defensively.
func fromDiskLine(line []byte) (Record, bool) {
	var d diskRecord
	if err := json.Unmarshal(line, &d); err != nil {
		// Retry tolerantly: decode field by field from a generic map,
		// keeping every well-typed field and leaving type-mismatched ones
		// null, instead of discarding the line.
		var generic map[string]json.RawMessage
		if jsonErr := json.Unmarshal(line, &generic); jsonErr != nil {
			return Record{}, false
		}
		d = diskRecord{}
		for key, raw := range generic {
			single, _ := json.Marshal(map[string]json.RawMessage{key: raw})
			var probe diskRecord
			if json.Unmarshal(single, &probe) == nil {
				_ = json.Unmarshal(single, &d)
			}
		}
	}
	if d.ConversationID == "" {
		return Record{}, false
	}
	return Record{
		ConversationID:    d.ConversationID,
		CapturedAt:        d.CapturedAt,
		Model:             d.Model,
		ModelProviderID:   d.ModelProviderID,
		ApprovalPolicy:    d.ApprovalPolicy,
		CWD:               d.CWD,
		ReasoningEffort:   d.ReasoningEffort,
		RolloutPath:       d.RolloutPath,
		SandboxPolicy:     d.SandboxPolicy,
		HistoryLogID:      d.HistoryLogID,
		HistoryEntryCount: d.HistoryEntryCount,
		Name:              d.Name,
	}, true
}
