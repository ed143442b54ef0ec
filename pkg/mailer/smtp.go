package mailer

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     Address
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender dials per message. Port 465 uses implicit TLS, other ports STARTTLS when offered.
type SMTPSender struct {
	from   Address
	dialer dialer
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	from := cfg.From
	if from.Email == "" {
		from.Email = cfg.Username
	}

	return &SMTPSender{
		from:   from,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (s *SMTPSender) Name() string { return "smtp" }

func (s *SMTPSender) Send(ctx context.Context, msg *Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := s.build(msg)

	// gomail has no context support; the dial is abandoned, not interrupted, on cancel.
	done := make(chan error, 1)
	go func() { done <- s.dialer.DialAndSend(m) }()

	select {
	case <-ctx.Done():
		return fmt.Errorf("smtp send to %s: %w", msg.To.Email, ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send to %s: %w", msg.To.Email, err)
		}
		return nil
	}
}

func (s *SMTPSender) build(msg *Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.from.Email, s.from.Name)
	if msg.To.Name != "" {
		m.SetAddressHeader("To", msg.To.Email, msg.To.Name)
	} else {
		m.SetHeader("To", msg.To.Email)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Text)
	if msg.HTML != "" {
		m.AddAlternative("text/html", msg.HTML)
	}
	return m
}
