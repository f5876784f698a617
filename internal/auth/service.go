package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/geocoder89/authhub/internal/domain/user"
	"github.com/geocoder89/authhub/internal/repo"
	"github.com/geocoder89/authhub/internal/security"
)

// Service holds the authentication rules: who may register, what counts as a
// valid login, and how session and reset tokens move through their
// lifecycles. It keeps no state of its own; every call re-reads the
// repository so a just-revoked session token can never be accepted from a
// stale copy.
type Service struct {
	users      repo.Users
	tokens     security.TokenSource
	bcryptCost int
}

func NewService(users repo.Users, tokens security.TokenSource, bcryptCost int) *Service {
	return &Service{
		users:      users,
		tokens:     tokens,
		bcryptCost: bcryptCost,
	}
}

// RegisterUser creates a new user with a freshly hashed password.
// Returns ErrUserExists when the email is taken. The duplicate check runs
// twice on purpose: the lookup gives the common case a clean answer, and the
// repository's unique constraint settles the race when two registrations for
// the same email arrive together.
func (s *Service) RegisterUser(ctx context.Context, email, password string) (user.User, error) {
	_, err := s.users.FindByEmail(ctx, email)

	if err == nil {
		return user.User{}, fmt.Errorf("register %s: %w", email, ErrUserExists)
	}

	if !errors.Is(err, repo.ErrNotFound) {
		return user.User{}, err
	}

	hash, err := security.HashPassword(password, s.bcryptCost)

	if err != nil {
		return user.User{}, err
	}

	u, err := s.users.Insert(ctx, email, hash)

	if err != nil {
		if errors.Is(err, repo.ErrEmailTaken) {
			return user.User{}, fmt.Errorf("register %s: %w", email, ErrUserExists)
		}

		return user.User{}, err
	}

	return u, nil
}

// ValidLogin reports whether the credentials match a stored user. An unknown
// email and a wrong password both come back as plain false, so the transport
// cannot be used as an account-existence oracle. The error is only non-nil
// for storage failures.
func (s *Service) ValidLogin(ctx context.Context, email, password string) (bool, error) {
	u, err := s.users.FindByEmail(ctx, email)

	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}

		return false, err
	}

	return security.VerifyPassword(u.HashedPassword, password), nil
}

// CreateSession generates a fresh session token for the user and stores it,
// overwriting any previous one. The old token dies with the overwrite since
// lookups go by stored value. Returns the empty string (not an error) when
// the email is unknown.
func (s *Service) CreateSession(ctx context.Context, email string) (string, error) {
	u, err := s.users.FindByEmail(ctx, email)

	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", nil
		}

		return "", err
	}

	token := s.tokens.NewToken()

	err = s.users.Update(ctx, u.ID, user.Update{SessionToken: &token})

	if err != nil {
		return "", err
	}

	return token, nil
}

// UserFromSessionToken resolves a session token to its user. The second
// return value is false for an empty, unknown or revoked token.
func (s *Service) UserFromSessionToken(ctx context.Context, token string) (user.User, bool, error) {
	if token == "" {
		return user.User{}, false, nil
	}

	u, err := s.users.FindBySessionToken(ctx, token)

	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return user.User{}, false, nil
		}

		return user.User{}, false, err
	}

	return u, true, nil
}

// DestroySession clears the user's session token. Idempotent: an unknown id
// or an already-cleared session is a no-op, so logout can be retried freely.
func (s *Service) DestroySession(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}

	err := s.users.Update(ctx, userID, user.Update{ClearSessionToken: true})

	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return err
	}

	return nil
}

// ResetPasswordToken issues a single-use reset token for the account.
// Unlike login, the caller here has asserted the account exists, so an
// unknown email is a real failure: ErrUserNotFound.
func (s *Service) ResetPasswordToken(ctx context.Context, email string) (string, error) {
	u, err := s.users.FindByEmail(ctx, email)

	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", fmt.Errorf("reset token for %s: %w", email, ErrUserNotFound)
		}

		return "", err
	}

	token := s.tokens.NewToken()

	err = s.users.Update(ctx, u.ID, user.Update{ResetToken: &token})

	if err != nil {
		return "", err
	}

	return token, nil
}

// UpdatePassword replaces the password of whoever holds the reset token and
// burns the token, in one repository step. Two concurrent calls with the
// same token cannot both succeed; the loser sees ErrInvalidResetToken and
// must restart the reset flow.
func (s *Service) UpdatePassword(ctx context.Context, resetToken, newPassword string) error {
	if resetToken == "" {
		return ErrInvalidResetToken
	}

	hash, err := security.HashPassword(newPassword, s.bcryptCost)

	if err != nil {
		return err
	}

	_, err = s.users.ConsumeResetToken(ctx, resetToken, hash)

	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrInvalidResetToken
		}

		return err
	}

	return nil
}
