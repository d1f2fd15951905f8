package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/codex-bridge/codex-bridge-mcp/internal/wire"
)

const toolsListUpstreamTimeout = 3 * time.Second

// staticCodexTools is the fallback tool list used when the upstream's own
// tools/list call fails or times out.
var staticCodexTools = []map[string]any{
	{
		"name":        "codex",
		"description": "Run a Codex session and return JSON {conversationId, output}.",
		"inputSchema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"prompt":                  map[string]any{"type": "string", "description": "User prompt to start the Codex session."},
				"model":                   map[string]any{"type": "string", "description": "Optional model override (e.g. \"o3\", \"gpt-5.2-codex\")."},
				"profile":                 map[string]any{"type": "string", "description": "Optional Codex config profile name."},
				"cwd":                     map[string]any{"type": "string", "description": "Optional working directory."},
				"sandbox":                 map[string]any{"type": "string", "description": "Sandbox mode: read-only, workspace-write, or danger-full-access."},
				"approval-policy":         map[string]any{"type": "string", "description": "Approval policy: untrusted, on-failure, on-request, never."},
				"config":                  map[string]any{"type": "object", "description": "Config overrides (mapped to Codex CLI -c values).", "additionalProperties": true},
				"base-instructions":       map[string]any{"type": "string", "description": "Optional base instructions for Codex."},
				"developer-instructions":  map[string]any{"type": "string", "description": "Optional developer instructions for Codex."},
				"compact-prompt":          map[string]any{"type": "string", "description": "Prompt used when Codex compacts the conversation."},
			},
			"required": []string{"prompt"},
		},
	},
	{
		"name":        "codex-reply",
		"description": "Continue a Codex conversation. Returns JSON {conversationId, output}.",
		"inputSchema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"conversationId": map[string]any{"type": "string", "description": "Conversation/session id returned by codex."},
				"prompt":         map[string]any{"type": "string", "description": "User prompt to continue the conversation."},
			},
			"required": []string{"conversationId", "prompt"},
		},
	},
}

// bridgeExtraProperties are advertised as additional input-schema properties
// on the forwarded codex/codex-reply tools, since the bridge accepts them in
// addition to whatever the upstream itself already declares.
var bridgeExtraProperties = map[string]map[string]any{
	"codex": {
		"timeoutMs":        map[string]any{"type": "integer", "description": "Overall call timeout in milliseconds (default 600000, clamped to [1000, 3600000])."},
		"startupTimeoutMs": map[string]any{"type": "integer", "description": "How long to wait for the session id after the call returns, in milliseconds (default 5000, clamped to [100, 60000])."},
		"reasoningEffort":  map[string]any{"type": "string", "description": "Shortcut for config.model_reasoning_effort."},
		"reasoningSummary": map[string]any{"type": "string", "description": "Shortcut for config.model_reasoning_summary."},
		"name":             map[string]any{"type": "string", "description": "Display name to assign to the resulting session."},
		"taskType":         map[string]any{"type": "string", "description": "One of coding, discussion, research; selects the default model when model is omitted."},
	},
	"codex-reply": {},
}

var bridgeOnlyToolDefs = buildBridgeOnlyToolDefs()

func buildBridgeOnlyToolDefs() []map[string]any {
	def := func(name, desc string, schema map[string]any) map[string]any {
		return map[string]any{"name": name, "description": desc, "inputSchema": schema}
	}
	obj := func(props map[string]any, required ...string) map[string]any {
		m := map[string]any{"type": "object", "properties": props}
		if len(required) > 0 {
			m["required"] = required
		}
		return m
	}
	str := func(desc string) map[string]any { return map[string]any{"type": "string", "description": desc} }
	return []map[string]any{
		def("codex-bridge-info", "Report bridge identity, upstream info, and session storage location.", obj(map[string]any{})),
		def("codex-bridge-options", "Report the model catalogue, policy enums, and defaults available for codex calls.", obj(map[string]any{})),
		def("codex-bridge-sessions", "List or search indexed sessions.", obj(map[string]any{
			"limit":  map[string]any{"type": "integer", "description": "Max results (default 50, max 200)."},
			"cursor": map[string]any{"type": "integer", "description": "Offset cursor from a previous call's nextCursor."},
			"query":  str("Case-insensitive substring to search session names for."),
		})),
		def("codex-bridge-session", "Look up a single session by id.", obj(map[string]any{
			"conversationId": str("Session id to look up."),
		}, "conversationId")),
		def("codex-bridge-name-session", "Assign a display name to a session.", obj(map[string]any{
			"conversationId": str("Session id to rename."),
			"name":           str("New display name."),
		}, "conversationId", "name")),
		def("codex-bridge-delete-session", "Remove a session from the index, optionally deleting its rollout file.", obj(map[string]any{
			"conversationId": str("Session id to delete."),
			"deleteRollout":  map[string]any{"type": "boolean", "description": "Also delete the rollout file on disk."},
		}, "conversationId")),
		def("codex-bridge-read-rollout", "Read the last N lines of a session's rollout file.", obj(map[string]any{
			"conversationId": str("Session id whose rollout file to read."),
			"lines":          map[string]any{"type": "integer", "description": "Number of trailing lines to return (default 100, clamped to [1, 500])."},
		}, "conversationId")),
		def("codex-bridge-export-session", "Export a session's rollout as markdown or JSON messages.", obj(map[string]any{
			"conversationId": str("Session id to export."),
			"format":         str("\"markdown\" or \"json\" (default markdown)."),
		}, "conversationId")),
	}
}

// handleToolsList composes the advertised tool list once per Server
// lifetime: it fetches the upstream's own tools/list (falling back to the
// static list on failure), patches the forwarded codex/codex-reply schemas
// with the bridge's extra properties, and appends the bridge-only tools.
func (s *Server) handleToolsList(req *wire.Request) *wire.Response {
	s.toolsListOnce.Do(func() {
		s.toolsListCached = s.composeToolsList()
	})
	resp, _ := wire.NewResponse(req.ID, map[string]any{"tools": s.toolsListCached}, nil)
	return resp
}

func (s *Server) composeToolsList() []any {
	forwarded := s.fetchUpstreamTools()
	patched := make([]any, 0, len(forwarded)+len(bridgeOnlyToolDefs))
	for _, t := range forwarded {
		patched = append(patched, patchForwardedSchema(t))
	}
	for _, t := range bridgeOnlyToolDefs {
		patched = append(patched, t)
	}
	return patched
}

func (s *Server) fetchUpstreamTools() []map[string]any {
	raw, err := s.client.ListTools(context.Background(), toolsListUpstreamTimeout)
	if err != nil {
		return staticCodexTools
	}
	var result struct {
		Tools []map[string]any `json:"tools"`
	}
	if err := json.Unmarshal(raw, &result); err != nil || len(result.Tools) == 0 {
		return staticCodexTools
	}
	return result.Tools
}

func patchForwardedSchema(tool map[string]any) map[string]any {
	name, _ := tool["name"].(string)
	extra, ok := bridgeExtraProperties[name]
	if !ok || len(extra) == 0 {
		return tool
	}

	schema, _ := tool["inputSchema"].(map[string]any)
	if schema == nil {
		schema = map[string]any{"type": "object"}
	}
	props, _ := schema["properties"].(map[string]any)
	if props == nil {
		props = map[string]any{}
	}
	merged := make(map[string]any, len(props)+len(extra))
	for k, v := range props {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	schema["properties"] = merged
	tool["inputSchema"] = schema
	return tool
}
