// Package memory holds a map-backed users repository. It exists for tests
// and for running the API without postgres; one mutex around every operation
// gives it the same per-row atomicity the SQL implementation gets from the
// database.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/geocoder89/authhub/internal/domain/user"
	"github.com/geocoder89/authhub/internal/repo"
	"github.com/google/uuid"
)

type UsersRepo struct {
	mu    sync.RWMutex
	byID  map[string]user.User
	byEmail map[string]string // email -> user id
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		byID:    make(map[string]user.User),
		byEmail: make(map[string]string),
	}
}

func (r *UsersRepo) Insert(ctx context.Context, email, hashedPassword string) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, taken := r.byEmail[email]

	if taken {
		return user.User{}, repo.ErrEmailTaken
	}

	now := time.Now().UTC()

	u := user.User{
		ID:             uuid.NewString(),
		Email:          email,
		HashedPassword: hashedPassword,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	r.byID[u.ID] = u
	r.byEmail[u.Email] = u.ID

	return clone(u), nil
}

func (r *UsersRepo) FindByEmail(ctx context.Context, email string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]

	if !ok {
		return user.User{}, repo.ErrNotFound
	}

	return clone(r.byID[id]), nil
}

func (r *UsersRepo) FindBySessionToken(ctx context.Context, token string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.byID {
		if u.SessionToken != nil && *u.SessionToken == token {
			return clone(u), nil
		}
	}

	return user.User{}, repo.ErrNotFound
}

func (r *UsersRepo) FindByResetToken(ctx context.Context, token string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.byID {
		if u.ResetToken != nil && *u.ResetToken == token {
			return clone(u), nil
		}
	}

	return user.User{}, repo.ErrNotFound
}

func (r *UsersRepo) Update(ctx context.Context, userID string, upd user.Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[userID]

	if !ok {
		return repo.ErrNotFound
	}

	apply(&u, upd)

	u.UpdatedAt = time.Now().UTC()
	r.byID[userID] = u

	return nil
}

func (r *UsersRepo) ConsumeResetToken(ctx context.Context, token, hashedPassword string) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// find + mutate under the same lock, so only one caller can consume a
	// given token
	for id, u := range r.byID {
		if u.ResetToken == nil || *u.ResetToken != token {
			continue
		}

		u.HashedPassword = hashedPassword
		u.ResetToken = nil
		u.UpdatedAt = time.Now().UTC()
		r.byID[id] = u

		return clone(u), nil
	}

	return user.User{}, repo.ErrNotFound
}

func apply(u *user.User, upd user.Update) {
	if upd.HashedPassword != nil {
		u.HashedPassword = *upd.HashedPassword
	}

	if upd.ClearSessionToken {
		u.SessionToken = nil
	} else if upd.SessionToken != nil {
		v := *upd.SessionToken
		u.SessionToken = &v
	}

	if upd.ClearResetToken {
		u.ResetToken = nil
	} else if upd.ResetToken != nil {
		v := *upd.ResetToken
		u.ResetToken = &v
	}
}

// clone detaches the token pointers so callers cannot reach into the map.
func clone(u user.User) user.User {
	if u.SessionToken != nil {
		v := *u.SessionToken
		u.SessionToken = &v
	}

	if u.ResetToken != nil {
		v := *u.ResetToken
		u.ResetToken = &v
	}

	return u
}
