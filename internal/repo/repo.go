// Package repo defines the storage contract the auth service runs against.
// Implementations must enforce email uniqueness and apply each Update as a
// single atomic step per user row; the service layers no locking on top.
package repo

import (
	"context"
	"errors"

	"github.com/geocoder89/authhub/internal/domain/user"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already taken")
)

type Users interface {
	// Insert creates a user with the given email and password hash.
	// Returns ErrEmailTaken when the email is already registered,
	// also under concurrent inserts of the same email.
	Insert(ctx context.Context, email, hashedPassword string) (user.User, error)

	FindByEmail(ctx context.Context, email string) (user.User, error)
	FindBySessionToken(ctx context.Context, token string) (user.User, error)
	FindByResetToken(ctx context.Context, token string) (user.User, error)

	// Update applies the partial change to one user row atomically.
	// Returns ErrNotFound for an unknown id.
	Update(ctx context.Context, userID string, upd user.Update) error

	// ConsumeResetToken atomically finds the user holding the reset token,
	// replaces their password hash and clears the token. Compare-and-set:
	// of two concurrent calls with the same token exactly one wins, the
	// other gets ErrNotFound.
	ConsumeResetToken(ctx context.Context, token, hashedPassword string) (user.User, error)
}
