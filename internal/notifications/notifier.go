package notifications

import "context"

type SendPasswordResetInput struct {
	Email      string
	ResetToken string
	RequestID  string
}

type SendWelcomeInput struct {
	Email  string
	UserID string
}

type Notifier interface {
	SendPasswordReset(ctx context.Context, input SendPasswordResetInput) error
	SendWelcome(ctx context.Context, input SendWelcomeInput) error
}
