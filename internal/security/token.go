package security

import "github.com/google/uuid"

// TokenSource produces opaque bearer tokens. Keep this small interface so
// tests can pin token values.
type TokenSource interface {
	NewToken() string
}

// UUIDSource issues version-4 UUIDs: 122 random bits, collisions are not a
// practical concern. Tokens are unguessable but carry no meaning; the only
// way to use one is to look it up in storage.
type UUIDSource struct{}

func NewUUIDSource() UUIDSource { return UUIDSource{} }

func (UUIDSource) NewToken() string {
	return uuid.NewString()
}
