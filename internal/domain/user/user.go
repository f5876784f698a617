package user

import "time"

type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"` // never expose the hash in JSON
	SessionToken   *string   `json:"-"`
	ResetToken     *string   `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Update describes a partial change to a user record. Nil pointer fields are
// left untouched. The explicit Clear flags remove the stored token entirely
// and take precedence over their pointer field.
type Update struct {
	HashedPassword    *string
	SessionToken      *string
	ClearSessionToken bool
	ResetToken        *string
	ClearResetToken   bool
}

// IsZero reports whether the update would change nothing.
func (u Update) IsZero() bool {
	return u.HashedPassword == nil &&
		u.SessionToken == nil && !u.ClearSessionToken &&
		u.ResetToken == nil && !u.ClearResetToken
}
