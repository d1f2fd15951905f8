package bridge

import (
	"encoding/json"
	"strconv"
	"strings"
)

// contentBlock is one element of an MCP tool result's content array.
type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// upstreamToolResult is the shape of a tools/call result, whether it comes
// back from the upstream subprocess or is assembled locally.
type upstreamToolResult struct {
	Content []contentBlock `json:"content"`
	IsError bool           `json:"isError"`
}

func decodeUpstreamResult(raw json.RawMessage) upstreamToolResult {
	var r upstreamToolResult
	_ = json.Unmarshal(raw, &r)
	return r
}

func extractText(blocks []contentBlock) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func textBlock(text string) map[string]any {
	return map[string]any{"type": "text", "text": text}
}

// errorResult builds a tool result with isError:true, the MCP convention
// for parameter and call-layer faults that must never become a JSON-RPC
// error.
func errorResult(message string) map[string]any {
	return map[string]any{
		"content": []any{textBlock(message)},
		"isError": true,
	}
}

// jsonToolResult encodes payload as a single JSON text content block,
// mirroring how the upstream's own tool results carry structured data.
func jsonToolResult(payload any, isError bool) map[string]any {
	data, err := json.Marshal(payload)
	if err != nil {
		return errorResult("internal error encoding tool result")
	}
	return map[string]any{
		"content": []any{textBlock(string(data))},
		"isError": isError,
	}
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	default:
		return 0
	}
}
