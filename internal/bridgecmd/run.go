// Package bridgecmd wires together discovery, the session store, the
// upstream client, and the bridge server into the stdio entry loop: it
// decodes downstream frames, drives bridge.Server, and writes replies.
package bridgecmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/codex-bridge/codex-bridge-mcp/internal/bridge"
	"github.com/codex-bridge/codex-bridge-mcp/internal/discovery"
	"github.com/codex-bridge/codex-bridge-mcp/internal/session"
	"github.com/codex-bridge/codex-bridge-mcp/internal/upstream"
	"github.com/codex-bridge/codex-bridge-mcp/internal/wire"
)

// Options are the entry loop's external parameters, normally resolved from
// flags and environment by the cmd/codex-bridge-mcp main.
type Options struct {
	// Binary is the upstream CLI path. If empty, it is resolved via
	// internal/discovery.
	Binary string
	// StateDir is the gateway's persistence directory. If empty, it is
	// resolved via internal/discovery.
	StateDir string
}

// Run drives the gateway's stdio loop until the downstream peer sends
// "exit" or in reaches EOF on stdin. It returns nil on a clean "exit" and
// a non-nil error for I/O failures reading stdin or opening the session
// store.
func Run(in io.Reader, out io.Writer, stderr io.Writer, opts Options) error {
	binary := opts.Binary
	if binary == "" {
		found, err := discovery.Find()
		if err != nil {
			return fmt.Errorf("locating upstream binary: %w", err)
		}
		binary = found
	}

	stateDir := opts.StateDir
	if stateDir == "" {
		found, err := discovery.StateDir()
		if err != nil {
			return fmt.Errorf("resolving state directory: %w", err)
		}
		stateDir = found
	}

	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	store, err := session.Open(filepath.Join(stateDir, "sessions.jsonl"))
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}
	defer store.Close()

	logger := log.New(stderr, "[codex-bridge] ", 0)
	writer := wire.NewWriter(out)

	reply := func(resp *wire.Response) {
		if err := writer.WriteResponse(resp); err != nil {
			logger.Printf("writing async reply: %v", err)
		}
	}

	client := upstream.New(binary, func(rec session.Record) {
		if _, added := store.Add(rec); added {
			logger.Printf("observed session %s", rec.ConversationID)
		}
	})
	defer client.Close()

	srv := bridge.New(binary, stateDir, store, client, reply)

	dec := wire.NewDecoder(in)
	for {
		frame, err := dec.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading downstream stream: %w", err)
		}

		resp := handleFrame(srv, frame)
		if resp != nil {
			if err := writer.WriteResponse(resp); err != nil {
				return fmt.Errorf("writing downstream reply: %w", err)
			}
		}
		if srv.Exited() {
			return nil
		}
	}
}

// handleFrame converts one classified wire.Frame into the reply to write
// now, or nil if the frame was a notification or the response will arrive
// later from an async worker.
func handleFrame(srv *bridge.Server, frame *wire.Frame) *wire.Response {
	switch frame.Kind {
	case wire.KindEmpty:
		return nil
	case wire.KindParseError:
		resp, _ := wire.NewResponse(wire.NullID(), nil, &wire.WireError{
			Code:    wire.CodeParseError,
			Message: "invalid JSON",
		})
		return resp
	case wire.KindInvalidRequest:
		resp, _ := wire.NewResponse(wire.NullID(), nil, &wire.WireError{
			Code:    wire.CodeInvalidRequest,
			Message: "invalid JSON-RPC request",
		})
		return resp
	case wire.KindResponse:
		// A response frame on the downstream stream has no addressee here;
		// the gateway never issues requests to its own downstream peer.
		return nil
	case wire.KindRequest:
		resp, synchronous := srv.Handle(frame.Request)
		if !synchronous {
			return nil
		}
		return resp
	default:
		return nil
	}
}
