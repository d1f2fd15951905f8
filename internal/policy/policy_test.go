package policy

import (
	"testing"

	"github.com/codex-bridge/codex-bridge-mcp/internal/session"
)

func strPtr(s string) *string { return &s }

func TestInferAuthModeFromObservedModel(t *testing.T) {
	s, _ := session.Open("")
	s.Add(session.Record{ConversationID: "c1", Model: strPtr("o3")})
	if got := InferAuthMode(s); got != AuthModeAPI {
		t.Fatalf("got %v, want api", got)
	}

	s2, _ := session.Open("")
	s2.Add(session.Record{ConversationID: "c1", Model: strPtr("gpt-5.2")})
	if got := InferAuthMode(s2); got != AuthModeChatGPT {
		t.Fatalf("got %v, want chatgpt", got)
	}
}

func TestResolveModelRules(t *testing.T) {
	available := []string{"gpt-5.2", "gpt-5.2-codex"}

	model, warn := ResolveModel(nil, TaskCoding, available)
	if model != "gpt-5.2-codex" || warn != "" {
		t.Fatalf("nil+coding: %q %q", model, warn)
	}

	model, warn = ResolveModel(nil, TaskDiscussion, available)
	if model != "gpt-5.2" || warn != "" {
		t.Fatalf("nil+discussion: %q %q", model, warn)
	}

	req := "gpt-5.2"
	model, warn = ResolveModel(&req, TaskCoding, available)
	if model != "gpt-5.2" || warn != "" {
		t.Fatalf("available requested model: %q %q", model, warn)
	}

	bad := "not-a-model"
	model, warn = ResolveModel(&bad, TaskCoding, available)
	if model != "gpt-5.2-codex" || warn == "" {
		t.Fatalf("unavailable requested model: %q %q", model, warn)
	}
}

func TestInjectDefaults(t *testing.T) {
	args := map[string]any{}
	InjectDefaults(args)
	if args["sandbox"] != defaultSandbox {
		t.Fatalf("sandbox = %v", args["sandbox"])
	}
	cfg := args["config"].(map[string]any)
	if cfg["model_reasoning_effort"] != defaultReasoningEffort {
		t.Fatalf("config = %v", cfg)
	}
	if _, ok := args["reasoningEffort"]; ok {
		t.Fatal("reasoningEffort shortcut should be rewritten away")
	}
}

func TestInjectDefaultsPreservesCallerConfig(t *testing.T) {
	args := map[string]any{
		"reasoningEffort":  "low",
		"reasoningSummary": "concise",
		"config":           map[string]any{"other_key": "value"},
	}
	InjectDefaults(args)
	cfg := args["config"].(map[string]any)
	if cfg["model_reasoning_effort"] != "low" || cfg["model_reasoning_summary"] != "concise" {
		t.Fatalf("config = %v", cfg)
	}
	if cfg["other_key"] != "value" {
		t.Fatal("caller-supplied config key was dropped")
	}
}
