package bridge

import (
	"os"

	"github.com/codex-bridge/codex-bridge-mcp/internal/session"
)

const (
	maxSessionListLimit     = 200
	defaultSessionListLimit = 50
)

// toolSessions answers codex-bridge-sessions: list by cursor, or search by
// query. A non-empty query takes precedence over cursor-based listing.
func (s *Server) toolSessions(args map[string]any) map[string]any {
	limit := resolveLimit(args)

	if query := popString(args, "query"); query != "" {
		hits := s.store.Search(query, limit)
		return jsonToolResult(map[string]any{"sessions": payloadsOf(hits), "nextCursor": nil}, false)
	}

	cursor := int(toInt64(args["cursor"]))
	items, next := s.store.List(limit, cursor)
	return jsonToolResult(map[string]any{"sessions": payloadsOf(items), "nextCursor": next}, false)
}

// toolSession answers codex-bridge-session: a single lookup by id.
func (s *Server) toolSession(args map[string]any) map[string]any {
	id := popString(args, "conversationId")
	if id == "" {
		return errorResult("codex-bridge-session requires a conversationId argument")
	}
	rec, ok := s.store.Get(id)
	if !ok {
		return errorResult("no session found for conversationId " + id)
	}
	return jsonToolResult(map[string]any{"session": rec.ToPayload()}, false)
}

// toolNameSession answers codex-bridge-name-session: assign a display name
// to an existing session.
func (s *Server) toolNameSession(args map[string]any) map[string]any {
	id := popString(args, "conversationId")
	name := popString(args, "name")
	if id == "" || name == "" {
		return errorResult("codex-bridge-name-session requires conversationId and name arguments")
	}
	rec, ok := s.store.Update(id, name)
	if !ok {
		return errorResult("no session found for conversationId " + id)
	}
	return jsonToolResult(map[string]any{"session": rec.ToPayload()}, false)
}

// toolDeleteSession answers codex-bridge-delete-session: remove a session
// from the index, optionally also removing its rollout file on disk.
func (s *Server) toolDeleteSession(args map[string]any) map[string]any {
	id := popString(args, "conversationId")
	if id == "" {
		return errorResult("codex-bridge-delete-session requires a conversationId argument")
	}
	deleteRollout, _ := args["deleteRollout"].(bool)
	delete(args, "deleteRollout")

	rec, ok := s.store.Get(id)
	if !ok {
		return errorResult("no session found for conversationId " + id)
	}
	s.store.Delete(id)

	rolloutRemoved := false
	if deleteRollout && rec.RolloutPath != nil && *rec.RolloutPath != "" {
		rolloutRemoved = os.Remove(*rec.RolloutPath) == nil
	}
	return jsonToolResult(map[string]any{
		"deleted":        true,
		"rolloutRemoved": rolloutRemoved,
	}, false)
}

// resolveLimit distinguishes an absent "limit" argument (the advertised
// default of 50) from an explicitly supplied one, which is clamped per
// spec.md §8: zero or negative maps to 1, anything above
// maxSessionListLimit clamps down to it. Only a present value goes through
// that clamp, so an explicitly-supplied limit:0 still becomes 1 while an
// omitted limit keeps its own default rather than also collapsing to 1.
func resolveLimit(args map[string]any) int {
	v, ok := args["limit"]
	delete(args, "limit")
	if !ok {
		return defaultSessionListLimit
	}
	n := toInt64(v)
	if n <= 0 {
		return 1
	}
	if n > maxSessionListLimit {
		return maxSessionListLimit
	}
	return int(n)
}

func payloadsOf(recs []session.Record) []session.Payload {
	out := make([]session.Payload, len(recs))
	for i, r := range recs {
		out[i] = r.ToPayload()
	}
	return out
}
