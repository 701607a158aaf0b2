package store

import (
	"context"
	"time"

	"rollcall/internal/token/models"
	"rollcall/pkg/domain"
)

// Store keeps each session's live token plus a bounded set of retired ones.
//
// Implementations return sentinel.ErrNotFound for unknown tokens and never
// hand out pointers into their own state.
type Store interface {
	// Rotate installs next as its session's live token. The previous live
	// token, if any, is retired at now and returned.
	Rotate(ctx context.Context, next *models.Token, now time.Time) (*models.Token, error)
	// Find looks a token up by value within one session only.
	Find(ctx context.Context, sessionID domain.SessionID, value string) (*models.Token, error)
	Live(ctx context.Context, sessionID domain.SessionID) (*models.Token, error)
	// RetireLive retires the live token at now and leaves the session with none.
	RetireLive(ctx context.Context, sessionID domain.SessionID, now time.Time) error
	// Prune drops retired tokens whose expiry is before cutoff.
	Prune(ctx context.Context, cutoff time.Time) (int, error)
}

func clone(t *models.Token) *models.Token {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
