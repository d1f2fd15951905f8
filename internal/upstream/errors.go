package upstream

import "errors"

// Sentinel errors raised by Client.Request/CallTool/AwaitSessionForRequest.
// Workers in internal/bridge convert all of these into isError:true tool
// results — they never escape as JSON-RPC errors.
var (
	// ErrCancelled is raised when the caller's cancel signal fires before a
	// response arrives.
	ErrCancelled = errors.New("upstream call cancelled")
	// ErrProcessExited is raised when the child process dies while a call is
	// outstanding.
	ErrProcessExited = errors.New("upstream process exited")
	// ErrTimeout is raised when a call's deadline elapses before a response
	// arrives.
	ErrTimeout = errors.New("upstream call timed out")
	// ErrClosed is raised when writing to upstream stdin after the
	// connection has been closed or the child has exited.
	ErrClosed = errors.New("upstream connection closed")
)
