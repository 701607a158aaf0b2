package models

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rollcall/pkg/domain"
)

// valueBytes is the raw entropy behind a token value (256 bits).
const valueBytes = 32

// Token is a short-lived check-in credential bound to one session.
// Immutable once issued except for ExpiresAt, which Retire may shorten.
type Token struct {
	Value     string           `json:"value"`
	SessionID domain.SessionID `json:"session_id"`
	IssuedAt  time.Time        `json:"issued_at"`
	ExpiresAt time.Time        `json:"expires_at"`
	Nonce     string           `json:"nonce"`
}

// New mints a token for sessionID valid for ttl from now.
func New(sessionID domain.SessionID, now time.Time, ttl time.Duration) (*Token, error) {
	if sessionID.IsNil() {
		return nil, fmt.Errorf("token requires a session id")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive")
	}
	value, err := randomValue()
	if err != nil {
		return nil, err
	}
	return &Token{
		Value:     value,
		SessionID: sessionID,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
		Nonce:     uuid.NewString(),
	}, nil
}

// Status is the outcome of judging a token at an instant.
type Status int

const (
	StatusValid Status = iota
	StatusNotYetValid
	StatusExpired
)

// StatusAt reports whether now lies in [IssuedAt, ExpiresAt+skew).
func (t *Token) StatusAt(now time.Time, skew time.Duration) Status {
	switch {
	case now.Before(t.IssuedAt):
		return StatusNotYetValid
	case !now.Before(t.ExpiresAt.Add(skew)):
		return StatusExpired
	default:
		return StatusValid
	}
}

// Retire caps the expiry at now. A retired token stays acceptable only for
// the grace skew.
func (t *Token) Retire(now time.Time) {
	if now.Before(t.ExpiresAt) {
		t.ExpiresAt = now
	}
}

// GraceDeadline is the first instant at which the token no longer validates.
func (t *Token) GraceDeadline(skew time.Duration) time.Time {
	return t.ExpiresAt.Add(skew)
}

func randomValue() (string, error) {
	b := make([]byte, valueBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token value: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
