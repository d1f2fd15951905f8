package bridge

import (
	"encoding/json"

	"github.com/codex-bridge/codex-bridge-mcp/internal/wire"
)

const (
	serverName             = "codex-bridge"
	serverVersion          = "0.1.0"
	defaultProtocolVersion = "2025-11-25"
)

func (s *Server) handleInitialize(req *wire.Request) *wire.Response {
	var params struct {
		ProtocolVersion string `json:"protocolVersion"`
	}
	if len(req.Params) > 0 {
		_ = json.Unmarshal(req.Params, &params)
	}
	protocolVersion := params.ProtocolVersion
	if protocolVersion == "" {
		protocolVersion = defaultProtocolVersion
	}

	result := map[string]any{
		"protocolVersion": protocolVersion,
		"serverInfo":      map[string]any{"name": serverName, "version": serverVersion},
		"capabilities": map[string]any{
			"tools":     map[string]any{"listChanged": false},
			"resources": map[string]any{"subscribe": false, "listChanged": false},
			"prompts":   map[string]any{"listChanged": false},
		},
	}
	resp, _ := wire.NewResponse(req.ID, result, nil)
	return resp
}
