// Package schemacache reads a pre-extracted enum source left on disk by a
// previous run, if one exists. It never generates or validates schemas: the
// cache file is an optional enrichment for codex-bridge-options, not an
// authority the gateway depends on.
package schemacache

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// schemaFileName is fixed per the persisted layout: <state>/schema-cache/
// <codex-version>/codex_app_server_protocol.schemas.json.
const schemaFileName = "codex_app_server_protocol.schemas.json"

// cachedSchemas is the on-disk shape: a flat map from enum name to its
// allowed values, e.g. {"sandboxPolicy": ["read-only", ...]}.
type cachedSchemas map[string][]string

// Load reads stateDir's schema cache for codexVersion, returning nil if no
// such file exists or it fails to parse. Callers fall back to their own
// built-in enum lists on a nil result.
func Load(stateDir, codexVersion string) map[string][]string {
	if stateDir == "" || codexVersion == "" {
		return nil
	}
	path := filepath.Join(stateDir, "schema-cache", codexVersion, schemaFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var schemas cachedSchemas
	if err := json.Unmarshal(data, &schemas); err != nil {
		return nil
	}
	return schemas
}

// DiscoverVersion runs "<binary> --version" and extracts a version token
// from its output, with a short timeout since this is a startup nicety, not
// a dependency of the gateway's correctness. Returns "" on any failure,
// which Load treats as "no cache available".
func DiscoverVersion(binary string) string {
	if binary == "" {
		return ""
	}
	cmd := exec.Command(binary, "--version")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Start(); err != nil {
		return ""
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		_ = cmd.Process.Kill()
		<-done
		return ""
	}
	return parseVersionToken(out.String())
}

// parseVersionToken pulls the last whitespace-separated token off the first
// line of version output, matching the common "<name> <version>" shape.
func parseVersionToken(output string) string {
	line := strings.TrimSpace(output)
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}
