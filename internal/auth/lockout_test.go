package auth

import (
	"testing"
	"time"
)

func TestLockout_LocksAfterMaxAttempts(t *testing.T) {
	l := NewLockout(3, time.Minute)

	for range 2 {
		l.RecordFailure("bob@example.com")
	}
	if l.Locked("bob@example.com") {
		t.Fatal("locked before reaching the limit")
	}

	l.RecordFailure("bob@example.com")
	if !l.Locked("bob@example.com") {
		t.Fatal("not locked after reaching the limit")
	}

	// Other accounts are unaffected.
	if l.Locked("alice@example.com") {
		t.Error("unrelated account locked")
	}
}

func TestLockout_CaseInsensitiveEmail(t *testing.T) {
	l := NewLockout(2, time.Minute)

	l.RecordFailure("Bob@Example.com")
	l.RecordFailure("bob@example.COM")

	if !l.Locked("bob@example.com") {
		t.Error("email casing bypassed the lockout")
	}
}

func TestLockout_SuccessResetsCounter(t *testing.T) {
	l := NewLockout(3, time.Minute)

	l.RecordFailure("bob@example.com")
	l.RecordFailure("bob@example.com")
	l.RecordSuccess("bob@example.com")
	l.RecordFailure("bob@example.com")

	if l.Locked("bob@example.com") {
		t.Error("counter not reset after successful login")
	}
}

func TestLockout_ExpiresAfterWindow(t *testing.T) {
	l := NewLockout(1, 10*time.Millisecond)

	l.RecordFailure("bob@example.com")
	if !l.Locked("bob@example.com") {
		t.Fatal("not locked")
	}

	time.Sleep(20 * time.Millisecond)
	if l.Locked("bob@example.com") {
		t.Error("still locked after the window elapsed")
	}
}
