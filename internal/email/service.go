package email

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// PasswordResetEmail holds the data for a password reset message.
type PasswordResetEmail struct {
	Email     string
	Name      string
	ResetURL  string
	ExpiresIn time.Duration
}

func (e PasswordResetEmail) Subject() string {
	return "Reset your password"
}

func (e PasswordResetEmail) Body() string {
	name := e.Name
	if name == "" {
		name = "there"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", name)
	b.WriteString("We received a request to reset your password. Open the link below to choose a new one:\n\n")
	fmt.Fprintf(&b, "%s\n\n", e.ResetURL)
	fmt.Fprintf(&b, "The link expires in %s and can be used once.\n", formatDuration(e.ExpiresIn))
	b.WriteString("If you did not ask for this, you can ignore this email.\n")
	return b.String()
}

func formatDuration(d time.Duration) string {
	if d >= time.Hour && d%time.Hour == 0 {
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	return fmt.Sprintf("%d minutes", int(d/time.Minute))
}

// Service composes and sends transactional emails.
type Service struct {
	sender Sender
}

func NewService(sender Sender) *Service {
	return &Service{sender: sender}
}

// SendPasswordReset sends a password reset email.
func (s *Service) SendPasswordReset(ctx context.Context, data PasswordResetEmail) error {
	_, err := s.sender.Send(ctx, &Email{
		To:       []string{data.Email},
		Subject:  data.Subject(),
		TextBody: data.Body(),
	})
	if err != nil {
		return fmt.Errorf("failed to send password reset email: %w", err)
	}
	return nil
}
