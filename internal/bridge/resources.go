package bridge

import (
	"encoding/json"
	"strings"

	"github.com/codex-bridge/codex-bridge-mcp/internal/wire"
)

const sessionResourcePrefix = "codex-bridge://session/"

var fixedResources = []map[string]any{
	{"uri": "codex-bridge://info", "name": "Bridge info", "mimeType": "application/json"},
	{"uri": "codex-bridge://options", "name": "Bridge options", "mimeType": "application/json"},
	{"uri": "codex-bridge://sessions", "name": "Session index", "mimeType": "application/json"},
}

func (s *Server) handleResourcesList(req *wire.Request) *wire.Response {
	resources := make([]any, len(fixedResources))
	for i, r := range fixedResources {
		resources[i] = r
	}
	resp, _ := wire.NewResponse(req.ID, map[string]any{"resources": resources}, nil)
	return resp
}

func (s *Server) handleResourceTemplatesList(req *wire.Request) *wire.Response {
	templates := []any{
		map[string]any{
			"uriTemplate": sessionResourcePrefix + "{id}",
			"name":        "Session by id",
			"mimeType":    "application/json",
		},
	}
	resp, _ := wire.NewResponse(req.ID, map[string]any{"resourceTemplates": templates}, nil)
	return resp
}

func (s *Server) handleResourcesRead(req *wire.Request) *wire.Response {
	var params struct {
		URI string `json:"uri"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil || params.URI == "" {
		resp, _ := wire.NewResponse(req.ID, nil, &wire.WireError{
			Code:    wire.CodeInvalidParams,
			Message: "resources/read requires a uri parameter",
		})
		return resp
	}

	payload, ok := s.readResource(params.URI)
	if !ok {
		resp, _ := wire.NewResponse(req.ID, nil, &wire.WireError{
			Code:    wire.CodeInvalidParams,
			Message: "unknown resource uri: " + params.URI,
		})
		return resp
	}

	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte("null")
	}
	result := map[string]any{
		"contents": []any{
			map[string]any{
				"uri":      params.URI,
				"mimeType": "application/json",
				"text":     string(data),
			},
		},
	}
	resp, _ := wire.NewResponse(req.ID, result, nil)
	return resp
}

func (s *Server) readResource(uri string) (any, bool) {
	switch {
	case uri == "codex-bridge://info":
		return s.toolInfo(), true
	case uri == "codex-bridge://options":
		return s.toolOptions(), true
	case uri == "codex-bridge://sessions":
		return s.toolSessions(map[string]any{}), true
	case strings.HasPrefix(uri, sessionResourcePrefix):
		id := strings.TrimPrefix(uri, sessionResourcePrefix)
		if id == "" {
			return nil, false
		}
		rec, ok := s.store.Get(id)
		if !ok {
			return nil, false
		}
		return map[string]any{"session": rec.ToPayload()}, true
	default:
		return nil, false
	}
}
