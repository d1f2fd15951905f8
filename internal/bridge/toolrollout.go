package bridge

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

const (
	defaultRolloutTailLines = 100
	minRolloutTailLines     = 1
	maxRolloutTailLines     = 500
)

// rolloutLine is one tolerant projection of a rollout JSONL record: only the
// fields this gateway ever needs to read back out. Lines that don't parse,
// or that carry none of these fields, are skipped rather than aborting the
// whole read — the rollout file is written by the upstream, not this
// gateway, and its exact schema is not this gateway's to enforce.
type rolloutLine struct {
	Type    string          `json:"type"`
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// toolReadRollout answers codex-bridge-read-rollout: the last N raw lines
// of a session's rollout file, N clamped to [1, 500].
func (s *Server) toolReadRollout(args map[string]any) map[string]any {
	id := popString(args, "conversationId")
	if id == "" {
		return errorResult("codex-bridge-read-rollout requires a conversationId argument")
	}
	n := defaultRolloutTailLines
	if v, ok := args["lines"]; ok {
		n = clampRolloutLines(toInt64(v))
	}

	path, errResult := s.rolloutPathFor(id)
	if errResult != nil {
		return errResult
	}

	lines, err := tailLines(path, n)
	if err != nil {
		return errorResult(fmt.Sprintf("reading rollout file: %v", err))
	}
	return jsonToolResult(map[string]any{"lines": lines}, false)
}

// toolExportSession answers codex-bridge-export-session: parse the rollout
// JSONL and project its user/assistant messages as markdown or as a JSON
// array of {role, text} entries.
func (s *Server) toolExportSession(args map[string]any) map[string]any {
	id := popString(args, "conversationId")
	if id == "" {
		return errorResult("codex-bridge-export-session requires a conversationId argument")
	}
	format := popString(args, "format")
	if format == "" {
		format = "markdown"
	}
	if format != "markdown" && format != "json" {
		return errorResult("format must be \"markdown\" or \"json\"")
	}

	path, errResult := s.rolloutPathFor(id)
	if errResult != nil {
		return errResult
	}

	messages, err := parseRolloutMessages(path)
	if err != nil {
		return errorResult(fmt.Sprintf("reading rollout file: %v", err))
	}

	if format == "json" {
		return jsonToolResult(map[string]any{"messages": messages}, false)
	}
	return jsonToolResult(map[string]any{"markdown": renderMarkdown(messages)}, false)
}

// rolloutPathFor resolves conversationId to its rollout file path, returning
// a ready-to-use isError result if the session or its rollout path is
// unknown.
func (s *Server) rolloutPathFor(id string) (string, map[string]any) {
	rec, ok := s.store.Get(id)
	if !ok {
		return "", errorResult("no session found for conversationId " + id)
	}
	if rec.RolloutPath == nil || *rec.RolloutPath == "" {
		return "", errorResult("session " + id + " has no known rollout file")
	}
	return *rec.RolloutPath, nil
}

func clampRolloutLines(n int64) int {
	if n > maxRolloutTailLines {
		return maxRolloutTailLines
	}
	if n < minRolloutTailLines {
		return minRolloutTailLines
	}
	return int(n)
}

// tailLines returns the last n raw lines of the file at path.
func tailLines(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ring := make([]string, 0, n)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if len(ring) < n {
			ring = append(ring, line)
		} else {
			copy(ring, ring[1:])
			ring[n-1] = line
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return ring, nil
}

// exportMessage is one projected user/assistant message.
type exportMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// parseRolloutMessages reads path line by line, skipping malformed or
// irrelevant lines, and projects every user/assistant message it finds.
func parseRolloutMessages(path string) ([]exportMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var messages []exportMessage
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var rl rolloutLine
		if err := json.Unmarshal([]byte(line), &rl); err != nil {
			continue
		}
		if rl.Role != "user" && rl.Role != "assistant" {
			continue
		}
		text := rolloutContentText(rl.Content)
		if text == "" {
			continue
		}
		messages = append(messages, exportMessage{Role: rl.Role, Text: text})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

// rolloutContentText extracts text from a content field that may be a bare
// string or a list of {type, text} parts, matching the two shapes rollout
// producers commonly use.
func rolloutContentText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err == nil {
		var b strings.Builder
		for _, p := range parts {
			if p.Text == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(p.Text)
		}
		return b.String()
	}
	return ""
}

func renderMarkdown(messages []exportMessage) string {
	var b strings.Builder
	for _, m := range messages {
		heading := "### User"
		if m.Role == "assistant" {
			heading = "### Assistant"
		}
		b.WriteString(heading)
		b.WriteString("\n\n")
		b.WriteString(m.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}
