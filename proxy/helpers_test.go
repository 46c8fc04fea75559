package proxy

import (
	"testing"

	"github.com/mickamy/sql-tap-proxy/proxy/readiness"
)

// mustEmptyReadiness gives interpreter tests a real (but otherwise unused)
// readiness.Set so requestWrite/requestRead have something to call Modify
// against. The fds involved are never real sockets, so Modify is expected to
// fail; that failure is only ever logged, and these tests run with a nil
// logger.
func mustEmptyReadiness(t *testing.T) *readiness.Set {
	t.Helper()
	rs, err := readiness.New()
	if err != nil {
		t.Fatalf("readiness.New: %v", err)
	}
	return rs
}
