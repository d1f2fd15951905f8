// Package bridge implements the downstream-facing JSON-RPC surface: method
// dispatch, the in-flight request registry, the ten bridge tools, the
// resource surface, and the cancellation path that ties them together.
package bridge

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codex-bridge/codex-bridge-mcp/internal/policy"
	"github.com/codex-bridge/codex-bridge-mcp/internal/schemacache"
	"github.com/codex-bridge/codex-bridge-mcp/internal/session"
	"github.com/codex-bridge/codex-bridge-mcp/internal/upstream"
	"github.com/codex-bridge/codex-bridge-mcp/internal/wire"
)

// Server holds everything needed to answer the downstream JSON-RPC surface
// for the lifetime of one gateway run.
type Server struct {
	binary   string
	stateDir string
	store    *session.Store
	client   *upstream.Client
	reply    func(*wire.Response)

	inflight *inflightRegistry

	startedAt time.Time
	exited    atomic.Bool

	schemaEnums map[string][]string

	toolsListOnce   sync.Once
	toolsListCached []any
}

// New constructs a Server. reply is called by asynchronous tool workers to
// deliver their response once it is ready; it must be safe to call from
// multiple goroutines (internal/wire.Writer already serializes the
// underlying stream).
func New(binary, stateDir string, store *session.Store, client *upstream.Client, reply func(*wire.Response)) *Server {
	return &Server{
		binary:      binary,
		stateDir:    stateDir,
		store:       store,
		client:      client,
		reply:       reply,
		inflight:    newInflightRegistry(),
		startedAt:   time.Now(),
		schemaEnums: schemacache.Load(stateDir, schemacache.DiscoverVersion(binary)),
	}
}

// Exited reports whether the downstream "exit" notification has been seen.
func (s *Server) Exited() bool { return s.exited.Load() }

// Handle dispatches one downstream request or notification. It returns the
// response to write immediately (nil for a notification or for an async
// tools/call) and whether that is the complete answer: false means a
// worker will later deliver the reply itself via the reply callback given
// to New.
func (s *Server) Handle(req *wire.Request) (*wire.Response, bool) {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req), true
	case "shutdown":
		resp, _ := wire.NewResponse(req.ID, json.RawMessage("null"), nil)
		return resp, true
	case "exit":
		s.exited.Store(true)
		return nil, true
	case "$/cancelRequest":
		s.handleCancelRequest(req)
		return nil, true
	case "tools/list":
		return s.handleToolsList(req), true
	case "tools/call":
		return s.handleToolsCall(req)
	case "prompts/list":
		resp, _ := wire.NewResponse(req.ID, map[string]any{"prompts": []any{}}, nil)
		return resp, true
	case "resources/list":
		return s.handleResourcesList(req), true
	case "resources/read":
		return s.handleResourcesRead(req), true
	case "resources/templates/list":
		return s.handleResourceTemplatesList(req), true
	default:
		if !req.IsCall() {
			return nil, true
		}
		resp, _ := wire.NewResponse(req.ID, nil, &wire.WireError{
			Code:    wire.CodeMethodNotFound,
			Message: "method not found: " + req.Method,
		})
		return resp, true
	}
}

// authMode and catalogue are recomputed per call rather than cached: the
// store that backs them changes as sessions are observed, and both are
// cheap scans bounded by the session count.
func (s *Server) authMode() policy.AuthMode {
	return policy.InferAuthMode(s.store)
}

func (s *Server) catalogue() []string {
	return policy.Catalogue(s.authMode(), s.store)
}
