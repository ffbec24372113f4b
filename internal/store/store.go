package store

import (
	"context"
	"errors"

	"codeshare/internal/models"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrConflict = errors.New("invite code already in use")
)

// SessionStore is the durable side of a session. Calls for different
// invite codes may run fully in parallel. Calls for the same code are
// expected to arrive through the owning room, so implementations do not
// serialize them — but each write must land atomically: a concurrent
// reader never observes a path without its content or a files map out
// of step with the structure.
type SessionStore interface {
	Create(ctx context.Context, inviteCode string, docs models.DocumentSet) (*models.Session, error)
	FindByInviteCode(ctx context.Context, inviteCode string) (*models.Session, error)
	ApplyFileWrite(ctx context.Context, inviteCode, path, content string) error
}
