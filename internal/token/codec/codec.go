// Package codec renders tokens into the compact signed payload carried by a
// scannable code and verifies payloads coming back from scanners.
//
// Payloads are HS256 JWTs. Each session signs with its own key derived from
// the master key through HKDF, so a leaked payload key is scoped to one
// session.
package codec

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"

	"rollcall/internal/token/models"
	"rollcall/pkg/domain"
)

const (
	minMasterKeyLen = 32
	derivedKeyLen   = 32
	keyInfoPrefix   = "rollcall/check-in/v1/"
)

var (
	ErrMalformed       = errors.New("malformed check-in payload")
	ErrSessionMismatch = errors.New("check-in payload belongs to another session")
)

// Claims is the wire form of a check-in payload.
type Claims struct {
	SessionID string `json:"sid"`
	Value     string `json:"tok"`
	jwt.RegisteredClaims
}

// Payload is a verified, decoded check-in payload.
type Payload struct {
	SessionID domain.SessionID
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Nonce     string
}

// Codec signs and verifies check-in payloads.
type Codec struct {
	master []byte
}

// New builds a codec. The master key must be at least 32 bytes.
func New(master []byte) (*Codec, error) {
	if len(master) < minMasterKeyLen {
		return nil, fmt.Errorf("signing key must be at least %d bytes", minMasterKeyLen)
	}
	key := make([]byte, len(master))
	copy(key, master)
	return &Codec{master: key}, nil
}

// Encode signs tok into a compact payload string.
func (c *Codec) Encode(tok *models.Token) (string, error) {
	key, err := c.sessionKey(tok.SessionID.String())
	if err != nil {
		return "", err
	}
	claims := Claims{
		SessionID: tok.SessionID.String(),
		Value:     tok.Value,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tok.Nonce,
			IssuedAt:  jwt.NewNumericDate(tok.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(tok.ExpiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign check-in payload: %w", err)
	}
	return signed, nil
}

// Decode verifies the signature and that the payload names sessionID.
// Expiry is not judged here; the issuer decides validity against its own
// record of the token at request time.
func (c *Codec) Decode(payload string, sessionID domain.SessionID) (*Payload, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(payload, &claims, func(t *jwt.Token) (any, error) {
		cl, ok := t.Claims.(*Claims)
		if !ok || cl.SessionID == "" {
			return nil, ErrMalformed
		}
		if cl.SessionID != sessionID.String() {
			return nil, ErrSessionMismatch
		}
		return c.sessionKey(cl.SessionID)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		if errors.Is(err, ErrSessionMismatch) {
			return nil, ErrSessionMismatch
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if claims.Value == "" {
		return nil, ErrMalformed
	}
	out := &Payload{
		SessionID: sessionID,
		Value:     claims.Value,
		Nonce:     claims.ID,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

func (c *Codec) sessionKey(sessionID string) ([]byte, error) {
	r := hkdf.New(sha256.New, c.master, nil, []byte(keyInfoPrefix+sessionID))
	key := make([]byte, derivedKeyLen)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive session key: %w", err)
	}
	return key, nil
}
