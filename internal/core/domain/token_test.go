package domain

import (
	"testing"
	"time"
)

func TestToken_Valid(t *testing.T) {
	now := time.Now()

	token := Token{Value: "abc", IssuedAt: now, ExpiresAt: now.Add(20 * time.Minute)}
	if !token.Valid(now) {
		t.Error("expected token to be valid")
	}

	expired := Token{Value: "abc", ExpiresAt: now.Add(-time.Second)}
	if expired.Valid(now) {
		t.Error("expected expired token to be invalid")
	}

	empty := Token{ExpiresAt: now.Add(time.Hour)}
	if empty.Valid(now) {
		t.Error("expected empty token to be invalid")
	}
}

func TestToken_ExpiresWithin(t *testing.T) {
	now := time.Now()
	token := Token{Value: "abc", ExpiresAt: now.Add(90 * time.Second)}

	if !token.ExpiresWithin(now, 2*time.Minute) {
		t.Error("expected token inside the 2m margin")
	}
	if token.ExpiresWithin(now, time.Minute) {
		t.Error("expected token outside the 1m margin")
	}
}

func TestToken_TTL(t *testing.T) {
	now := time.Now()

	token := Token{Value: "abc", ExpiresAt: now.Add(5 * time.Minute)}
	if ttl := token.TTL(now); ttl != 5*time.Minute {
		t.Errorf("TTL() = %v, want 5m", ttl)
	}

	expired := Token{Value: "abc", ExpiresAt: now.Add(-time.Minute)}
	if ttl := expired.TTL(now); ttl != 0 {
		t.Errorf("TTL() of expired token = %v, want 0", ttl)
	}
}
