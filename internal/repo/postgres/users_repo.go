package postgres

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/geocoder89/authhub/internal/domain/user"
	"github.com/geocoder89/authhub/internal/observability"
	"github.com/geocoder89/authhub/internal/repo"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/google/uuid"
)

const userColumns = `id, email, hashed_password, session_token, reset_token, created_at, updated_at`

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

// NewUsersRepo wires the repo to a pool. prom may be nil (tests, worker).
func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return false
}

func (r *UsersRepo) Insert(ctx context.Context, email, hashedPassword string) (user.User, error) {
	now := time.Now().UTC()

	u := user.User{
		ID:             uuid.NewString(),
		Email:          email,
		HashedPassword: hashedPassword,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := r.observe("users.insert", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO users (id, email, hashed_password, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5)`,
			u.ID, u.Email, u.HashedPassword, u.CreatedAt, u.UpdatedAt,
		)
		return err
	})

	if err != nil {
		// the unique index on email is what settles concurrent registration
		if IsUniqueViolation(err) {
			return user.User{}, repo.ErrEmailTaken
		}

		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) FindByEmail(ctx context.Context, email string) (user.User, error) {
	return r.findBy(ctx, "users.find_by_email", `email = $1`, email)
}

func (r *UsersRepo) FindBySessionToken(ctx context.Context, token string) (user.User, error) {
	return r.findBy(ctx, "users.find_by_session_token", `session_token = $1`, token)
}

func (r *UsersRepo) FindByResetToken(ctx context.Context, token string) (user.User, error) {
	return r.findBy(ctx, "users.find_by_reset_token", `reset_token = $1`, token)
}

func (r *UsersRepo) findBy(ctx context.Context, op, where string, arg any) (user.User, error) {
	var u user.User

	err := r.observe(op, func() error {
		return r.pool.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE `+where,
			arg,
		).Scan(
			&u.ID,
			&u.Email,
			&u.HashedPassword,
			&u.SessionToken,
			&u.ResetToken,
			&u.CreatedAt,
			&u.UpdatedAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, repo.ErrNotFound
		}

		return user.User{}, err
	}

	return u, nil
}

// Update builds one UPDATE statement from the non-nil fields, so a partial
// change is a single atomic statement and clears map to NULL.
func (r *UsersRepo) Update(ctx context.Context, userID string, upd user.Update) error {
	if upd.IsZero() {
		return nil
	}

	sets := make([]string, 0, 4)
	args := make([]any, 0, 5)
	args = append(args, userID)

	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if upd.HashedPassword != nil {
		sets = append(sets, "hashed_password = "+next(*upd.HashedPassword))
	}

	if upd.ClearSessionToken {
		sets = append(sets, "session_token = NULL")
	} else if upd.SessionToken != nil {
		sets = append(sets, "session_token = "+next(*upd.SessionToken))
	}

	if upd.ClearResetToken {
		sets = append(sets, "reset_token = NULL")
	} else if upd.ResetToken != nil {
		sets = append(sets, "reset_token = "+next(*upd.ResetToken))
	}

	sets = append(sets, "updated_at = NOW()")

	var tag pgconn.CommandTag

	err := r.observe("users.update", func() error {
		var err error
		tag, err = r.pool.Exec(ctx,
			`UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = $1`,
			args...,
		)
		return err
	})

	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}

	return nil
}

// ConsumeResetToken swaps the password and burns the token in one statement.
// The WHERE clause is the compare-and-set: a second caller presenting the
// same token matches zero rows.
func (r *UsersRepo) ConsumeResetToken(ctx context.Context, token, hashedPassword string) (user.User, error) {
	var u user.User

	err := r.observe("users.consume_reset_token", func() error {
		return r.pool.QueryRow(ctx,
			`UPDATE users
			 SET hashed_password = $2, reset_token = NULL, updated_at = NOW()
			 WHERE reset_token = $1
			 RETURNING `+userColumns,
			token, hashedPassword,
		).Scan(
			&u.ID,
			&u.Email,
			&u.HashedPassword,
			&u.SessionToken,
			&u.ResetToken,
			&u.CreatedAt,
			&u.UpdatedAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, repo.ErrNotFound
		}

		return user.User{}, err
	}

	return u, nil
}
