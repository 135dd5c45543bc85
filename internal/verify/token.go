package verify

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token holds the bearer credential for the ticketing API. When the token
// is a JWT its exp claim is read (without verifying the signature) and the
// token is withheld once expired. Opaque tokens never expire locally.
type Token struct {
	mu        sync.RWMutex
	raw       string
	expiresAt time.Time
}

func NewToken(raw string) *Token {
	t := &Token{}
	t.Set(raw)
	return t
}

func (t *Token) Set(raw string) {
	var expiresAt time.Time
	if raw != "" {
		var claims jwt.RegisteredClaims
		if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err == nil && claims.ExpiresAt != nil {
			expiresAt = claims.ExpiresAt.Time
		}
	}

	t.mu.Lock()
	t.raw = raw
	t.expiresAt = expiresAt
	t.mu.Unlock()
}

// Clear drops the token, e.g. after the API answered 401.
func (t *Token) Clear() {
	t.Set("")
}

// Bearer returns the token if one is held and it has not expired at now.
func (t *Token) Bearer(now time.Time) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.raw == "" {
		return "", false
	}
	if !t.expiresAt.IsZero() && !now.Before(t.expiresAt) {
		return "", false
	}
	return t.raw, true
}

func (t *Token) ExpiresAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.expiresAt
}
