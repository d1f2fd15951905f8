// Package policy implements the routing and default-injection layer:
// auth-mode inference, the model catalogue and its resolution rules, and
// default injection for tool-call arguments.
package policy

import "github.com/codex-bridge/codex-bridge-mcp/internal/session"

// AuthMode is the inferred authentication mode for the upstream account.
type AuthMode string

const (
	AuthModeAPI     AuthMode = "api"
	AuthModeChatGPT AuthMode = "chatgpt"
)

// TaskType selects a default model.
type TaskType string

const (
	TaskCoding     TaskType = "coding"
	TaskDiscussion TaskType = "discussion"
	TaskResearch   TaskType = "research"
)

// apiOnlyModels are only ever available under an API auth mode
// (original_source/codex_bridge_mcp.py names these literally).
var apiOnlyModels = map[string]bool{
	"gpt-5.2-mini": true,
	"gpt-5.2-nano": true,
	"o3":           true,
	"o4-mini":      true,
}

// baseCatalogue is the deterministic static model list per auth mode.
var baseCatalogue = map[AuthMode][]string{
	AuthModeChatGPT: {"gpt-5.2", "gpt-5.2-codex"},
	AuthModeAPI:     {"gpt-5.2", "gpt-5.2-codex", "gpt-5.2-mini", "gpt-5.2-nano", "o3", "o4-mini"},
}

// defaultModelForTask is the fallback model per task type.
func defaultModelForTask(t TaskType) string {
	if t == TaskCoding {
		return "gpt-5.2-codex"
	}
	return "gpt-5.2"
}

// NormalizeTaskType defaults an empty/unknown task type to "coding".
func NormalizeTaskType(s string) TaskType {
	switch TaskType(s) {
	case TaskCoding, TaskDiscussion, TaskResearch:
		return TaskType(s)
	default:
		return TaskCoding
	}
}

// InferAuthMode scans every session recorded in store for a model from the
// API-only set; if any is found, the account is assumed to be in API auth
// mode, else ChatGPT mode. This is a heuristic and may be
// wrong on a fresh store — callers should treat the catalogue
// as advisory, not gating.
func InferAuthMode(store *session.Store) AuthMode {
	cursor := 0
	for {
		items, next := store.List(200, cursor)
		for _, r := range items {
			if r.Model != nil && apiOnlyModels[*r.Model] {
				return AuthModeAPI
			}
		}
		if next == nil {
			break
		}
		cursor = *next
	}
	return AuthModeChatGPT
}

// Catalogue returns the model list for authMode, extended with any models
// actually observed in store that aren't already present.
func Catalogue(authMode AuthMode, store *session.Store) []string {
	base := append([]string(nil), baseCatalogue[authMode]...)
	seen := make(map[string]bool, len(base))
	for _, m := range base {
		seen[m] = true
	}

	cursor := 0
	for {
		items, next := store.List(200, cursor)
		for _, r := range items {
			if r.Model != nil && !seen[*r.Model] {
				seen[*r.Model] = true
				base = append(base, *r.Model)
			}
		}
		if next == nil {
			break
		}
		cursor = *next
	}
	return base
}

// ResolveModel implements the model resolution rules. If
// requested is nil, the task's default is returned. If requested is in
// available, it is returned as-is. Otherwise the task's default is
// returned along with a non-empty warning. The catalogue itself is never
// mutated by user input.
func ResolveModel(requested *string, taskType TaskType, available []string) (model string, warning string) {
	def := defaultModelForTask(taskType)
	if requested == nil || *requested == "" {
		return def, ""
	}
	for _, m := range available {
		if m == *requested {
			return *requested, ""
		}
	}
	return def, "model \"" + *requested + "\" is not available; falling back to \"" + def + "\""
}
