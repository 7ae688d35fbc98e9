package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	adminMaxFailures   = 5
	adminFailureWindow = time.Minute
	adminBlockDuration = 5 * time.Minute
)

// adminLimiter blocks a client address for blockFor after maxFailures bad
// admin tokens inside window. A nil limiter allows everything.
type adminLimiter struct {
	mu          sync.Mutex
	clients     map[string]adminAttempts
	maxFailures int
	window      time.Duration
	blockFor    time.Duration
	sweepEvery  int
	ops         int
}

type adminAttempts struct {
	failures     int
	windowStart  time.Time
	blockedUntil time.Time
	lastSeen     time.Time
}

func newAdminLimiter(maxFailures int, window, blockFor time.Duration) *adminLimiter {
	if maxFailures <= 0 || window <= 0 || blockFor <= 0 {
		return nil
	}
	return &adminLimiter{
		clients:     make(map[string]adminAttempts),
		maxFailures: maxFailures,
		window:      window,
		blockFor:    blockFor,
		sweepEvery:  64,
	}
}

// Blocked reports whether client is currently locked out.
func (l *adminLimiter) Blocked(client string, now time.Time) bool {
	if l == nil || client == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	a := l.clients[client]
	a.lastSeen = now
	l.clients[client] = a
	l.sweepLocked(now)
	return now.Before(a.blockedUntil)
}

// Fail records one rejected token from client.
func (l *adminLimiter) Fail(client string, now time.Time) {
	if l == nil || client == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	a := l.clients[client]
	if a.windowStart.IsZero() || now.Sub(a.windowStart) > l.window {
		a.failures = 0
		a.windowStart = now
	}
	a.failures++
	if a.failures >= l.maxFailures {
		a.blockedUntil = now.Add(l.blockFor)
		a.failures = 0
		a.windowStart = time.Time{}
	}
	a.lastSeen = now
	l.clients[client] = a
	l.sweepLocked(now)
}

// Succeed forgets client's failure history.
func (l *adminLimiter) Succeed(client string) {
	if l == nil || client == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.clients, client)
}

func (l *adminLimiter) sweepLocked(now time.Time) {
	l.ops++
	if l.ops%l.sweepEvery != 0 {
		return
	}
	stale := 2 * max(l.window, l.blockFor)
	for client, a := range l.clients {
		if now.Sub(a.lastSeen) > stale {
			delete(l.clients, client)
		}
	}
}

// clientAddr is the remote host without port.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
