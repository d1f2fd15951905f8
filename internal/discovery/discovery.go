// Package discovery locates the upstream coding-assistant binary on disk.
// This is a thin adapter: an environment override, then a short list of
// fixed installation paths, then a PATH search, then a well-known editor-
// extension layout, picking the newest by modification time among any
// candidates found in that last step.
package discovery

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"
)

// envVars are checked in order; the first set, non-empty value wins
// outright (it is trusted without an existence check deferred to the
// caller, matching the reference implementation's short-circuit).
var envVars = []string{"CODEX_BINARY", "CODEX_BIN"}

// fixedPaths are probed after the environment, before a PATH search.
var fixedPaths = []string{
	"/opt/homebrew/bin/codex",
	"/usr/local/bin/codex",
}

// extensionGlobs are globbed for a bundled copy of the binary as a last
// resort, newest modification time wins among all matches.
var extensionGlobs = []string{
	".vscode-insiders/extensions/openai.chatgpt-*/bin/*/codex",
	".vscode/extensions/openai.chatgpt-*/bin/*/codex",
}

// Find locates the upstream binary, trying in order: CODEX_BINARY/CODEX_BIN
// environment variables, a fixed list of system install paths, a PATH
// search, then a well-known editor-extension bundle layout. It returns an
// error naming the environment variable to set if nothing is found.
func Find() (string, error) {
	for _, name := range envVars {
		if v := os.Getenv(name); v != "" {
			return v, nil
		}
	}

	for _, p := range fixedPaths {
		if fileExists(p) {
			return p, nil
		}
	}

	if p, err := exec.LookPath("codex"); err == nil {
		return p, nil
	}

	if p, ok := newestExtensionCopy(); ok {
		return p, nil
	}

	return "", fmt.Errorf("could not locate the codex CLI binary; set CODEX_BINARY to an absolute path")
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

func newestExtensionCopy() (string, bool) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", false
	}

	var candidates []string
	for _, pattern := range extensionGlobs {
		matches, err := filepath.Glob(filepath.Join(home, pattern))
		if err != nil {
			continue
		}
		candidates = append(candidates, matches...)
	}
	if len(candidates) == 0 {
		return "", false
	}

	sort.Slice(candidates, func(i, j int) bool {
		return modTime(candidates[i]).After(modTime(candidates[j]))
	})
	return candidates[0], true
}

func modTime(p string) time.Time {
	info, err := os.Stat(p)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// StateDir resolves the gateway's state directory: CODEX_BRIDGE_STATE_DIR
// if set, else "<home>/.codex-bridge-mcp".
func StateDir() (string, error) {
	if v := os.Getenv("CODEX_BRIDGE_STATE_DIR"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving state directory: %w", err)
	}
	return filepath.Join(home, ".codex-bridge-mcp"), nil
}
