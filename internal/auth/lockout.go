package auth

import (
	"strings"
	"sync"
	"time"
)

// Lockout tracks failed login attempts per email and locks an account after
// too many failures within the window. State is in-process; a multi-instance
// deployment would move this to shared storage.
type Lockout struct {
	mu          sync.Mutex
	attempts    map[string]*attemptRecord
	maxAttempts int
	lockFor     time.Duration

	lastCleanup time.Time
}

type attemptRecord struct {
	count       int
	lockedUntil time.Time
	lastAttempt time.Time
}

// NewLockout creates a Lockout that locks after maxAttempts failures for the
// lockFor duration.
func NewLockout(maxAttempts int, lockFor time.Duration) *Lockout {
	return &Lockout{
		attempts:    make(map[string]*attemptRecord),
		maxAttempts: maxAttempts,
		lockFor:     lockFor,
		lastCleanup: time.Now(),
	}
}

// Locked reports whether the email is currently locked out.
func (l *Lockout) Locked(email string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.attempts[strings.ToLower(email)]
	if !ok {
		return false
	}
	return time.Now().Before(rec.lockedUntil)
}

// RecordFailure registers a failed login. Reaching the attempt limit starts
// the lock window and resets the counter.
func (l *Lockout) RecordFailure(email string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.maybeCleanup(now)

	key := strings.ToLower(email)
	rec, ok := l.attempts[key]
	if !ok {
		rec = &attemptRecord{}
		l.attempts[key] = rec
	}

	rec.count++
	rec.lastAttempt = now
	if rec.count >= l.maxAttempts {
		rec.lockedUntil = now.Add(l.lockFor)
		rec.count = 0
	}
}

// RecordSuccess clears the failure counter after a successful login.
func (l *Lockout) RecordSuccess(email string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, strings.ToLower(email))
}

// maybeCleanup drops stale records inline so no background goroutine is
// needed. Called with l.mu held.
func (l *Lockout) maybeCleanup(now time.Time) {
	if now.Sub(l.lastCleanup) < 5*time.Minute {
		return
	}
	l.lastCleanup = now

	stale := now.Add(-2 * l.lockFor)
	for key, rec := range l.attempts {
		if rec.lastAttempt.Before(stale) && now.After(rec.lockedUntil) {
			delete(l.attempts, key)
		}
	}
}
