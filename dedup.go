package prefetch

import (
	"context"
	"sync"
)

// inflightCall is one owner-executed request shared with waiting callers.
type inflightCall struct {
	done chan struct{}
	resp *Response
	err  error
}

// wait blocks until the owning call completes or ctx ends.
func (call *inflightCall) wait(ctx context.Context) (*Response, error) {
	select {
	case <-call.done:
		return call.resp, call.err
	case <-ctx.Done():
		return nil, &RequestError{
			Type:    ErrorTypeTimeout,
			Message: "canceled while waiting for in-flight request",
			Cause:   ctx.Err(),
		}
	}
}

// inflightTracker coalesces concurrent identical cacheable GETs within one
// cycle: the first caller dispatches, the rest share its outcome.
type inflightTracker struct {
	mu    sync.Mutex
	calls map[string]*inflightCall
}

func newInflightTracker() *inflightTracker {
	return &inflightTracker{calls: make(map[string]*inflightCall)}
}

// getOrCreate returns the in-flight call for key. The second return reports
// whether the caller owns the dispatch.
func (t *inflightTracker) getOrCreate(key string) (*inflightCall, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if call, ok := t.calls[key]; ok {
		return call, false
	}
	call := &inflightCall{done: make(chan struct{})}
	t.calls[key] = call
	return call, true
}

// complete publishes the owner's outcome and releases waiters. The entry is
// removed immediately; callers arriving afterwards win ownership of a fresh
// entry and re-check the cache before dispatching.
func (t *inflightTracker) complete(key string, resp *Response, err error) {
	t.mu.Lock()
	call, ok := t.calls[key]
	delete(t.calls, key)
	t.mu.Unlock()

	if !ok {
		return
	}
	call.resp = resp
	call.err = err
	close(call.done)
}
