package bridgecmd

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
)

// runLines feeds each line of input through Run and returns the decoded
// response objects written to stdout, in order. The upstream binary points
// at a nonexistent path: every handler exercised here either never reaches
// the upstream or tolerates its absence by falling back to the static
// tool list, matching how tools/list behaves when the upstream is
// unreachable.
func runLines(t *testing.T, lines ...string) []map[string]any {
	t.Helper()
	var stdout, stderr bytes.Buffer
	in := strings.NewReader(strings.Join(lines, "\n") + "\n")

	opts := Options{
		Binary:   filepath.Join(t.TempDir(), "no-such-codex-binary"),
		StateDir: t.TempDir(),
	}
	if err := Run(in, &stdout, &stderr, opts); err != nil {
		t.Fatalf("Run: %v (stderr: %s)", err, stderr.String())
	}

	var out []map[string]any
	dec := json.NewDecoder(&stdout)
	for {
		var m map[string]any
		if err := dec.Decode(&m); err != nil {
			break
		}
		out = append(out, m)
	}
	return out
}

func TestHandshake(t *testing.T) {
	responses := runLines(t,
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"t"}}}`,
		`{"jsonrpc":"2.0","method":"exit"}`,
	)
	if len(responses) != 1 {
		t.Fatalf("got %d responses, want 1", len(responses))
	}
	result, _ := responses[0]["result"].(map[string]any)
	if result["protocolVersion"] != "2024-11-05" {
		t.Errorf("protocolVersion = %v, want 2024-11-05", result["protocolVersion"])
	}
	info, _ := result["serverInfo"].(map[string]any)
	if info["name"] != "codex-bridge" {
		t.Errorf("serverInfo.name = %v, want codex-bridge", info["name"])
	}
}

func TestUnknownMethod(t *testing.T) {
	responses := runLines(t,
		`{"jsonrpc":"2.0","id":2,"method":"foo/bar"}`,
		`{"jsonrpc":"2.0","method":"exit"}`,
	)
	if len(responses) != 1 {
		t.Fatalf("got %d responses, want 1", len(responses))
	}
	errObj, _ := responses[0]["error"].(map[string]any)
	if errObj == nil {
		t.Fatalf("response has no error field: %+v", responses[0])
	}
	if code, _ := errObj["code"].(float64); code != -32601 {
		t.Errorf("error.code = %v, want -32601", errObj["code"])
	}
}

func TestToolsListSuperset(t *testing.T) {
	responses := runLines(t,
		`{"jsonrpc":"2.0","id":3,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","method":"exit"}`,
	)
	if len(responses) != 1 {
		t.Fatalf("got %d responses, want 1", len(responses))
	}
	result, _ := responses[0]["result"].(map[string]any)
	tools, _ := result["tools"].([]any)

	names := map[string]bool{}
	for _, raw := range tools {
		tool, _ := raw.(map[string]any)
		if name, ok := tool["name"].(string); ok {
			names[name] = true
		}
	}
	want := []string{
		"codex", "codex-reply", "codex-bridge-info", "codex-bridge-options",
		"codex-bridge-sessions", "codex-bridge-session",
	}
	for _, w := range want {
		if !names[w] {
			t.Errorf("tools/list missing %q, got %v", w, names)
		}
	}
}

func TestBadFrame(t *testing.T) {
	responses := runLines(t,
		`{not json}`,
		`{"jsonrpc":"2.0","method":"exit"}`,
	)
	if len(responses) != 1 {
		t.Fatalf("got %d responses, want 1", len(responses))
	}
	if id, ok := responses[0]["id"]; !ok || id != nil {
		t.Errorf("id = %v, want null", responses[0]["id"])
	}
	errObj, _ := responses[0]["error"].(map[string]any)
	if code, _ := errObj["code"].(float64); code != -32700 {
		t.Errorf("error.code = %v, want -32700", errObj["code"])
	}
}

func TestShutdownAndExit(t *testing.T) {
	responses := runLines(t,
		`{"jsonrpc":"2.0","id":4,"method":"shutdown"}`,
		`{"jsonrpc":"2.0","method":"exit"}`,
	)
	if len(responses) != 1 {
		t.Fatalf("got %d responses, want 1", len(responses))
	}
	if result, ok := responses[0]["result"]; !ok || result != nil {
		t.Errorf("shutdown result = %v, want null", responses[0]["result"])
	}
}
