package bridge

import (
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/codex-bridge/codex-bridge-mcp/internal/wire"
)

// inflightEntry tracks one accepted tools/call from acceptance until its
// worker emits a reply: a cancel signal, and the upstream request id once
// the worker has chosen one (so a later $/cancelRequest can also reach the
// upstream side). token is never sent on the wire; it is printed beside the
// downstream wire.ID in the accept/cancel/finish log lines below, so those
// lines can be correlated by a value that, unlike the printed id, does not
// look the same for a string id and a numeric id.
type inflightEntry struct {
	token  uuid.UUID
	cancel chan struct{}

	mu            sync.Mutex
	hasUpstreamID bool
	upstreamID    int64
}

func newInflightEntry() *inflightEntry {
	return &inflightEntry{
		token:  uuid.New(),
		cancel: make(chan struct{}),
	}
}

func (e *inflightEntry) setUpstreamID(id int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.upstreamID = id
	e.hasUpstreamID = true
}

func (e *inflightEntry) getUpstreamID() (int64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.upstreamID, e.hasUpstreamID
}

// inflightRegistry is the shared map of downstream request id to its
// in-flight worker state. Keyed directly by wire.ID, which is a small
// comparable value (string, int64, or an explicit-null sentinel).
type inflightRegistry struct {
	mu   sync.Mutex
	byID map[wire.ID]*inflightEntry
}

func newInflightRegistry() *inflightRegistry {
	return &inflightRegistry{byID: make(map[wire.ID]*inflightEntry)}
}

// accept registers a new in-flight entry for id, rejecting duplicates.
func (r *inflightRegistry) accept(id wire.ID) (*inflightEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[id]; exists {
		return nil, false
	}
	e := newInflightEntry()
	r.byID[id] = e
	log.Printf("bridge: accepted tools/call id=%s token=%s", id, e.token)
	return e, true
}

// finish removes id's entry, if present. Called once the worker has
// delivered its reply.
func (r *inflightRegistry) finish(id wire.ID) {
	r.mu.Lock()
	e, ok := r.byID[id]
	delete(r.byID, id)
	r.mu.Unlock()
	if ok {
		log.Printf("bridge: finished tools/call id=%s token=%s", id, e.token)
	}
}

// cancel signals id's in-flight entry, if any is still outstanding, and
// reports the upstream request id to also cancel, if one had been chosen.
func (r *inflightRegistry) cancel(id wire.ID) (upstreamID int64, hasUpstreamID, found bool) {
	r.mu.Lock()
	e, ok := r.byID[id]
	r.mu.Unlock()
	if !ok {
		return 0, false, false
	}
	select {
	case <-e.cancel:
		// already cancelled; idempotent
	default:
		close(e.cancel)
		log.Printf("bridge: cancelling tools/call id=%s token=%s", id, e.token)
	}
	upstreamID, hasUpstreamID = e.getUpstreamID()
	return upstreamID, hasUpstreamID, true
}
