package middleware

import (
	"sync"
	"time"
)

const (
	authMaxFailures    = 5
	authWindowDuration = time.Minute
	authCleanupPeriod  = 5 * time.Minute
)

type authFailure struct {
	count       int
	windowStart time.Time
}

// AuthFailureLimiter blocks an ip after repeated bad credentials within a
// window. Successful logins clear the counter.
type AuthFailureLimiter struct {
	mu          sync.Mutex
	failures    map[string]*authFailure
	lastCleanup time.Time
	now         func() time.Time
}

func NewAuthFailureLimiter() *AuthFailureLimiter {
	return &AuthFailureLimiter{
		failures:    make(map[string]*authFailure),
		lastCleanup: time.Now(),
		now:         time.Now,
	}
}

func (l *AuthFailureLimiter) cleanup(now time.Time) {
	if now.Sub(l.lastCleanup) < authCleanupPeriod {
		return
	}
	l.lastCleanup = now

	for ip, f := range l.failures {
		if now.Sub(f.windowStart) > authWindowDuration {
			delete(l.failures, ip)
		}
	}
}

func (l *AuthFailureLimiter) Blocked(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.cleanup(now)

	f, exists := l.failures[ip]
	if !exists {
		return false
	}
	if now.Sub(f.windowStart) > authWindowDuration {
		delete(l.failures, ip)
		return false
	}
	return f.count >= authMaxFailures
}

func (l *AuthFailureLimiter) RecordFailure(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	f, exists := l.failures[ip]
	if !exists || now.Sub(f.windowStart) > authWindowDuration {
		l.failures[ip] = &authFailure{count: 1, windowStart: now}
		return
	}
	f.count++
}

func (l *AuthFailureLimiter) Reset(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.failures, ip)
}
