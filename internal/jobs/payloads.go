package jobs

// PasswordResetPayload carries what the notifier needs to send a reset link.
// The token is the bearer credential itself, which is why worker logs must
// never print payloads verbatim.
type PasswordResetPayload struct {
	Email      string `json:"email"`
	ResetToken string `json:"resetToken"`
	RequestID  string `json:"requestId,omitempty"` // optional: correlation
}

// WelcomePayload is sent once after a successful registration.
type WelcomePayload struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	RequestID string `json:"requestId,omitempty"`
}
