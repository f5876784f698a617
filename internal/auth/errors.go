package auth

import "errors"

// Operation failures callers are expected to branch on. Everything else that
// comes out of the service is a storage failure and should be treated as
// internal by the transport.
var (
	ErrUserExists        = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidResetToken = errors.New("invalid reset token")
)
