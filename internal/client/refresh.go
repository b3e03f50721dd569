package client

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// refreshFunc performs the actual refresh call and returns the new
// access token
type refreshFunc func(ctx context.Context) (string, error)

// refresher serializes token refreshes. Whatever the number of
// concurrent requests that hit an expired token, exactly one refresh
// call goes to the server; the rest queue up and share its outcome.
type refresher struct {
	call    refreshFunc
	timeout time.Duration

	mu          sync.Mutex
	accessToken string
	inflight    bool
	waiters     []chan error
}

func newRefresher(call refreshFunc, timeout time.Duration) *refresher {
	return &refresher{call: call, timeout: timeout}
}

func (r *refresher) token() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accessToken
}

func (r *refresher) setToken(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accessToken = token
}

// refresh obtains a fresh access token. The first caller performs the
// HTTP call, later callers wait for its result. Waiting is bounded by
// the configured timeout and the caller's context.
func (r *refresher) refresh(ctx context.Context) error {
	r.mu.Lock()

	if r.inflight {
		wait := make(chan error, 1)
		r.waiters = append(r.waiters, wait)
		r.mu.Unlock()

		timer := time.NewTimer(r.timeout)
		defer timer.Stop()

		select {
		case err := <-wait:
			return err
		case <-timer.C:
			return fmt.Errorf("timed out waiting for token refresh")
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.inflight = true
	r.mu.Unlock()

	token, err := r.call(ctx)

	r.mu.Lock()
	r.inflight = false
	if err == nil {
		r.accessToken = token
	} else {
		// Session is gone; drop the stale token so later calls start
		// logged out instead of retrying with it
		r.accessToken = ""
	}
	waiters := r.waiters
	r.waiters = nil
	r.mu.Unlock()

	// Buffered channels, resolving never blocks even if the waiter
	// already gave up
	for _, wait := range waiters {
		wait <- err
	}

	return err
}
