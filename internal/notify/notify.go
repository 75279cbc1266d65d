package notify

import (
	"context"
	"fmt"
	"time"
)

// Notifier delivers a plain-text message. It reports whether the message
// was handed off and never returns an error.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) bool
}

type Message struct {
	Subject string
	Body    string
}

func TwoFactorCode(code string, ttl time.Duration) Message {
	return Message{
		Subject: "Your Dreambox 2FA Code",
		Body:    fmt.Sprintf("Your login code is: %s\n\nIt expires in %d minutes.", code, int(ttl.Minutes())),
	}
}

func PasswordReset(link string, ttl time.Duration) Message {
	return Message{
		Subject: "Set / Reset your Dreambox password",
		Body: fmt.Sprintf(
			"Click the link below to set your password:\n\n%s\n\nThis link expires in %d minutes.",
			link, int(ttl.Minutes()),
		),
	}
}
