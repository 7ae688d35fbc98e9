package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAdminLimiterBlocksAfterRepeatedFailures(t *testing.T) {
	l := newAdminLimiter(3, time.Minute, 5*time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		l.Fail("10.0.0.1", now)
	}
	if l.Blocked("10.0.0.1", now) {
		t.Fatal("blocked before reaching the failure limit")
	}
	l.Fail("10.0.0.1", now)
	if !l.Blocked("10.0.0.1", now.Add(time.Minute)) {
		t.Fatal("expected client to be blocked")
	}
	if l.Blocked("10.0.0.2", now) {
		t.Fatal("other clients must not be blocked")
	}
	if l.Blocked("10.0.0.1", now.Add(6*time.Minute)) {
		t.Fatal("block should expire")
	}
}

func TestAdminLimiterWindowResets(t *testing.T) {
	l := newAdminLimiter(2, time.Minute, time.Hour)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	l.Fail("c", now)
	l.Fail("c", now.Add(2*time.Minute))
	if l.Blocked("c", now.Add(2*time.Minute)) {
		t.Fatal("failures in separate windows must not accumulate")
	}

	l.Fail("c", now.Add(2*time.Minute+time.Second))
	if !l.Blocked("c", now.Add(3*time.Minute)) {
		t.Fatal("expected block after two failures in one window")
	}
	l.Succeed("c")
	if l.Blocked("c", now.Add(3*time.Minute)) {
		t.Fatal("success should clear history")
	}
}

func TestNilAdminLimiterAllows(t *testing.T) {
	var l *adminLimiter
	l.Fail("c", time.Now())
	if l.Blocked("c", time.Now()) {
		t.Fatal("nil limiter must allow")
	}
	if newAdminLimiter(0, time.Minute, time.Minute) != nil {
		t.Fatal("expected disabled limiter for zero failures")
	}
}

func TestClientAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:51234"
	if got := clientAddr(req); got != "192.0.2.7" {
		t.Fatalf("clientAddr = %q", got)
	}
	req.RemoteAddr = "pipe"
	if got := clientAddr(req); got != "pipe" {
		t.Fatalf("clientAddr = %q", got)
	}
}
