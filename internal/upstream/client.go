// Package upstream owns the upstream coding-assistant subprocess: request/
// response correlation, asynchronous codex/event demux and session-event
// correlation, and cancellation of in-flight upstream calls.
//
// Requests and responses are correlated by monotonic integer id over the
// child's stdin/stdout. A second, asynchronous correlation table joins
// session_configured events back to the upstream request id that produced
// them, since that event arrives out of band from the tool-call response
// it describes. All waits poll in short windows rather than blocking
// indefinitely, so cancellation and child-exit are observed promptly.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/codex-bridge/codex-bridge-mcp/internal/session"
	"github.com/codex-bridge/codex-bridge-mcp/internal/wire"
)

// pollWindow bounds how long a waiter blocks before re-checking its cancel
// signal and the child's liveness.
const pollWindow = 200 * time.Millisecond

// maxSessionByRequest bounds the session-event correlation table; on
// overflow it is cleared wholesale, since it is a cache and stale entries
// are not observably useful.
const maxSessionByRequest = 2048

// ServerInfo is the cached result of the upstream's initialize response.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Client owns a lazily-spawned upstream child process and multiplexes
// downstream-triggered calls onto it.
type Client struct {
	binary  string
	onEvent func(session.Record)

	mu      sync.Mutex // guards process lifecycle fields below
	proc    *process
	nextID  int64
	idMu    sync.Mutex

	sessionMu   sync.Mutex
	sessionCond *sync.Cond
	byRequest   map[int64]session.Record
}

// process is one live child and its plumbing; replaced wholesale when the
// child dies and a new call needs it.
type process struct {
	cmd    *exec.Cmd
	writer *wire.Writer
	stdin  io.WriteCloser
	stdout io.ReadCloser

	pendingMu sync.Mutex
	pending   map[int64]chan *wire.Response

	done     chan struct{} // closed when the child has exited
	exitErr  error
	info     *ServerInfo
}

// New constructs a Client for the given upstream binary path. The process
// is not started until the first call that needs it. onEvent is invoked
// whenever a session_configured event is observed, regardless of whether
// any caller is currently awaiting it.
func New(binary string, onEvent func(session.Record)) *Client {
	c := &Client{binary: binary, onEvent: onEvent, byRequest: make(map[int64]session.Record)}
	c.sessionCond = sync.NewCond(&c.sessionMu)
	return c
}

// Close tears down the live child process, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	p := c.proc
	c.proc = nil
	c.mu.Unlock()
	if p == nil {
		return nil
	}
	return p.shutdown()
}

// ensure returns the live process, spawning (or respawning, if the previous
// one died) as needed.
func (c *Client) ensure(ctx context.Context) (*process, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.proc != nil {
		select {
		case <-c.proc.done:
			// dead; fall through and replace it
		default:
			return c.proc, nil
		}
	}

	p, err := c.spawn(ctx)
	if err != nil {
		return nil, err
	}
	c.proc = p
	return p, nil
}

func (c *Client) spawn(ctx context.Context) (*process, error) {
	cmd := exec.Command(c.binary, "mcp-server")
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	p := &process{
		cmd:     cmd,
		writer:  wire.NewWriter(stdin),
		stdin:   stdin,
		stdout:  stdout,
		pending: make(map[int64]chan *wire.Response),
		done:    make(chan struct{}),
	}

	go c.readLoop(p)
	go teeStderr(stderr)
	go func() {
		err := cmd.Wait()
		p.pendingMu.Lock()
		p.exitErr = err
		pending := p.pending
		p.pending = nil
		p.pendingMu.Unlock()
		for _, ch := range pending {
			close(ch)
		}
		close(p.done)
	}()

	info, err := c.initialize(ctx, p)
	if err != nil {
		_ = p.shutdown()
		return nil, err
	}
	p.info = info
	return p, nil
}

// teeStderr forwards the child's stderr, line by line, to this process's
// own diagnostic channel with a prefix. Never raises
// outward: a read error simply ends the goroutine.
func teeStderr(r io.Reader) {
	scanLines(r, func(line string) {
		log.Printf("[upstream] %s", line)
	})
}

func (c *Client) readLoop(p *process) {
	dec := wire.NewDecoder(p.stdout)
	for {
		frame, err := dec.Next()
		if err != nil {
			return // EOF or read error: cmd.Wait's goroutine will close p.done
		}
		switch frame.Kind {
		case wire.KindResponse:
			c.deliverResponse(p, frame.Response)
		case wire.KindRequest:
			if frame.Request.Method == "codex/event" {
				c.handleEvent(frame.Request)
			}
			// Other upstream->client requests/notifications are not part of
			// this gateway's contract and are dropped.
		default:
			// Malformed lines from upstream are logged and ignored; they
			// never propagate as gateway-level errors.
			log.Printf("upstream: dropping unclassifiable line: %s", frame.Raw)
		}
	}
}

func (c *Client) deliverResponse(p *process, resp *wire.Response) {
	id, ok := resp.ID.Raw().(int64)
	if !ok {
		return // orphan: not one of our integer ids
	}
	p.pendingMu.Lock()
	ch, ok := p.pending[id]
	if ok {
		delete(p.pending, id)
	}
	p.pendingMu.Unlock()
	if !ok {
		return // orphan response, dropped 
	}
	ch <- resp
}

func (c *Client) handleEvent(req *wire.Request) {
	reqID, rec, ok := parseSessionConfigured(req.Params, nowUnix())
	if !ok {
		return
	}
	if c.onEvent != nil {
		c.onEvent(rec)
	}

	c.sessionMu.Lock()
	if len(c.byRequest) >= maxSessionByRequest {
		c.byRequest = make(map[int64]session.Record)
	}
	c.byRequest[reqID] = rec
	c.sessionCond.Broadcast()
	c.sessionMu.Unlock()
}

// initialize issues the MCP "initialize" handshake. The "initialized"
// notification step is intentionally omitted: the upstream does not
// implement it.
func (c *Client) initialize(ctx context.Context, p *process) (*ServerInfo, error) {
	params := map[string]any{
		"protocolVersion": "2024-11-05",
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "codex-bridge", "version": "0.1.0"},
	}
	raw, err := c.requestOn(ctx, p, "initialize", params, 30*time.Second, nil)
	if err != nil {
		return nil, fmt.Errorf("initialize upstream: %w", err)
	}
	var result struct {
		ServerInfo ServerInfo `json:"serverInfo"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode initialize result: %w", err)
	}
	return &result.ServerInfo, nil
}

// ServerInfo returns the cached upstream server-info, if the process has
// been initialized.
func (c *Client) ServerInfo() *ServerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.proc == nil {
		return nil
	}
	return c.proc.info
}

func (c *Client) newID() int64 {
	c.idMu.Lock()
	defer c.idMu.Unlock()
	c.nextID++
	return c.nextID
}

// Request performs one upstream call, assigning a fresh monotonic id,
// registering a single-shot response channel, and waiting with ≤250ms
// polling so cancel and child-exit are observed promptly.
// The returned id is the upstream request id that was used, useful for
// later joining a session_configured event via AwaitSessionForRequest.
func (c *Client) Request(ctx context.Context, method string, params any, timeout time.Duration, cancel <-chan struct{}) (json.RawMessage, int64, error) {
	p, err := c.ensure(ctx)
	if err != nil {
		return nil, 0, err
	}
	return c.send(ctx, p, method, params, timeout, cancel)
}

// requestOn issues method on an already-resolved process, discarding the
// assigned upstream id (used by callers that don't need to join a later
// session event, such as initialize and tools/list).
func (c *Client) requestOn(ctx context.Context, p *process, method string, params any, timeout time.Duration, cancel <-chan struct{}) (json.RawMessage, error) {
	raw, _, err := c.send(ctx, p, method, params, timeout, cancel)
	return raw, err
}

// send assigns a fresh monotonic id (guarded by idMu) and performs one
// request/response round trip on p.
func (c *Client) send(ctx context.Context, p *process, method string, params any, timeout time.Duration, cancel <-chan struct{}) (json.RawMessage, int64, error) {
	id := c.newID()
	raw, err := c.sendWithID(ctx, p, id, method, params, timeout, cancel)
	return raw, id, err
}

func (c *Client) sendWithID(ctx context.Context, p *process, id int64, method string, params any, timeout time.Duration, cancel <-chan struct{}) (json.RawMessage, error) {
	req, err := wire.NewRequest(wire.IntID(id), method, params)
	if err != nil {
		return nil, err
	}

	ch := make(chan *wire.Response, 1)
	p.pendingMu.Lock()
	if p.pending == nil {
		p.pendingMu.Unlock()
		return nil, ErrClosed
	}
	p.pending[id] = ch
	p.pendingMu.Unlock()

	if err := p.writer.WriteRequest(req); err != nil {
		p.pendingMu.Lock()
		delete(p.pending, id)
		p.pendingMu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrClosed, err)
	}

	deadline := time.Now().Add(timeout)
	for {
		select {
		case resp, ok := <-ch:
			if !ok {
				return nil, ErrProcessExited
			}
			if resp.Error != nil {
				return nil, resp.Error
			}
			return resp.Result, nil
		case <-p.done:
			return nil, ErrProcessExited
		case <-cancelOrNever(cancel):
			c.bestEffortCancel(p, id)
			p.pendingMu.Lock()
			delete(p.pending, id)
			p.pendingMu.Unlock()
			return nil, ErrCancelled
		case <-ctx.Done():
			c.bestEffortCancel(p, id)
			p.pendingMu.Lock()
			delete(p.pending, id)
			p.pendingMu.Unlock()
			return nil, ctx.Err()
		case <-time.After(pollWindow):
			if time.Now().After(deadline) {
				p.pendingMu.Lock()
				delete(p.pending, id)
				p.pendingMu.Unlock()
				return nil, ErrTimeout
			}
			// loop again: this is purely a liveness/cancel check interval
		}
	}
}

func cancelOrNever(cancel <-chan struct{}) <-chan struct{} {
	if cancel == nil {
		return nil
	}
	return cancel
}

// bestEffortCancel sends a $/cancelRequest notification upstream; failures
// are swallowed since the upstream may not implement cancellation at all.
func (c *Client) bestEffortCancel(p *process, id int64) {
	notif, err := wire.NewRequest(wire.ID{}, "$/cancelRequest", map[string]any{"id": id})
	if err != nil {
		return
	}
	_ = p.writer.WriteRequest(notif)
}

// CallTool wraps tools/call and returns the upstream request id alongside
// the result so the caller can later join the session_configured event via
// AwaitSessionForRequest.
func (c *Client) CallTool(ctx context.Context, name string, args any, timeout time.Duration, cancel <-chan struct{}) (json.RawMessage, int64, error) {
	p, err := c.ensure(ctx)
	if err != nil {
		return nil, 0, err
	}
	return c.send(ctx, p, "tools/call", map[string]any{"name": name, "arguments": args}, timeout, cancel)
}

// ListTools calls tools/list with the given timeout.
func (c *Client) ListTools(ctx context.Context, timeout time.Duration) (json.RawMessage, error) {
	p, err := c.ensure(ctx)
	if err != nil {
		return nil, err
	}
	return c.requestOn(ctx, p, "tools/list", map[string]any{}, timeout, nil)
}

// AwaitSessionForRequest polls (with the same ≤250ms window) for a
// session_configured event correlated with upstreamID, returning nil on
// timeout rather than an error — the session index is a cache, not the
// authority, so a miss here is never fatal to the caller.
func (c *Client) AwaitSessionForRequest(ctx context.Context, upstreamID int64, timeout time.Duration, cancel <-chan struct{}) (*session.Record, error) {
	deadline := time.Now().Add(timeout)
	for {
		c.sessionMu.Lock()
		if rec, ok := c.byRequest[upstreamID]; ok {
			delete(c.byRequest, upstreamID)
			c.sessionMu.Unlock()
			return &rec, nil
		}
		c.sessionMu.Unlock()

		select {
		case <-cancelOrNever(cancel):
			return nil, ErrCancelled
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(minDuration(pollWindow, time.Until(deadline))):
		}
		if time.Now().After(deadline) {
			return nil, nil
		}
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	if b < 0 {
		return a
	}
	return b
}

// CancelUpstream sends a best-effort $/cancelRequest for upstreamID on the
// current live process, if any (used by the bridge's downstream
// cancellation path, ).
func (c *Client) CancelUpstream(upstreamID int64) {
	c.mu.Lock()
	p := c.proc
	c.mu.Unlock()
	if p == nil {
		return
	}
	c.bestEffortCancel(p, upstreamID)
}

func (p *process) shutdown() error {
	if err := p.stdin.Close(); err != nil {
		return fmt.Errorf("closing stdin: %w", err)
	}
	resCh := make(chan error, 1)
	go func() { resCh <- p.cmd.Wait() }()
	wait := func(d time.Duration) (error, bool) {
		select {
		case err := <-resCh:
			return err, true
		case <-time.After(d):
			return nil, false
		}
	}
	if err, ok := wait(5 * time.Second); ok {
		return err
	}
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err == nil {
		if err, ok := wait(5 * time.Second); ok {
			return err
		}
	}
	if err := p.cmd.Process.Kill(); err != nil {
		return err
	}
	if err, ok := wait(5 * time.Second); ok {
		return err
	}
	return fmt.Errorf("unresponsive upstream subprocess")
}
