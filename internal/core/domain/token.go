package domain

import "time"

// Token is a bearer credential issued by the ERP authentication endpoint
// for one tenant.
type Token struct {
	Value     string    `json:"value"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Valid reports whether the token is non-empty and not yet expired.
func (t Token) Valid(now time.Time) bool {
	return t.Value != "" && t.ExpiresAt.After(now)
}

// ExpiresWithin reports whether the token's remaining lifetime is at or
// below the given margin. Used to avoid handing out tokens that would
// expire mid-request.
func (t Token) ExpiresWithin(now time.Time, margin time.Duration) bool {
	return !t.ExpiresAt.After(now.Add(margin))
}

// TTL returns the remaining lifetime of the token, clamped at zero.
func (t Token) TTL(now time.Time) time.Duration {
	ttl := t.ExpiresAt.Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}
