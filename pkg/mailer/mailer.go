// Package mailer delivers rendered messages through SMTP, SendGrid or the log.
package mailer

import (
	"context"
	"errors"
	"strings"
)

type Address struct {
	Name  string
	Email string
}

// Message is a rendered email. Text is required; HTML is sent as an alternative when set.
type Message struct {
	To      Address
	Subject string
	Text    string
	HTML    string
}

var ErrInvalidMessage = errors.New("mailer: message needs a recipient, subject and text body")

func (m *Message) Validate() error {
	if m == nil || strings.TrimSpace(m.To.Email) == "" || m.Subject == "" || m.Text == "" {
		return ErrInvalidMessage
	}
	return nil
}

// Sender delivers a single message. Implementations do not retry.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
	Name() string
}

type Logger interface {
	Info(msg string, args ...any)
}
