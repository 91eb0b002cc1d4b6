package testutil

import (
	"context"
	"testing"
	"time"
)

// WithTimeout creates a context with timeout for tests. The context is
// cancelled when the test ends. Default timeout is 10 seconds.
func WithTimeout(t testing.TB, timeout ...time.Duration) (context.Context, context.CancelFunc) {
	t.Helper()

	duration := 10 * time.Second
	if len(timeout) > 0 {
		duration = timeout[0]
	}

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	t.Cleanup(cancel)

	return ctx, cancel
}

// WaitFor polls condition until it holds or timeout passes, and fails the
// test in the latter case.
//
// Example:
//
//	testutil.WaitFor(t, time.Second, 10*time.Millisecond, func() bool {
//	    return mock.OpenHandles() == 0
//	})
func WaitFor(t testing.TB, timeout, interval time.Duration, condition func() bool) bool {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(interval)
	}

	if condition() {
		return true
	}
	t.Errorf("condition not met within timeout %v", timeout)
	return false
}
