package bridge

import (
	"encoding/json"

	"github.com/codex-bridge/codex-bridge-mcp/internal/wire"
)

// handleCancelRequest implements $/cancelRequest: it is a notification, so
// it never produces a reply, regardless of whether the target id is known.
func (s *Server) handleCancelRequest(req *wire.Request) {
	var params struct {
		ID wire.ID `json:"id"`
	}
	if len(req.Params) == 0 {
		return
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return
	}
	upstreamID, hasUpstreamID, found := s.inflight.cancel(params.ID)
	if !found {
		return // already completed, or never existed: nothing to do
	}
	if hasUpstreamID {
		s.client.CancelUpstream(upstreamID)
	}
}
