package config

import (
	"github.com/akeren/lasting-loves-waitlist/internal/log"
	"github.com/akeren/lasting-loves-waitlist/pkg/mailer"
	"github.com/akeren/lasting-loves-waitlist/pkg/utils"
)

const (
	DefaultSMTPHost      = "smtp.gmail.com"
	DefaultSMTPPort      = 465
	DefaultEmailFromName = "Lasting Loves"
)

type MailConfig struct {
	SendGridAPIKey string
	SMTP           mailer.SMTPConfig
}

func NewMailConfig() *MailConfig {
	user := utils.GetEnvTrimmed("EMAIL_USER")

	return &MailConfig{
		SendGridAPIKey: utils.GetEnvTrimmed("SENDGRID_API_KEY"),
		SMTP: mailer.SMTPConfig{
			Host:     utils.GetEnvTrimmedOrDefault("SMTP_HOST", DefaultSMTPHost),
			Port:     utils.GetEnvPositiveInt("SMTP_PORT", DefaultSMTPPort),
			Username: user,
			Password: utils.GetEnvTrimmed("EMAIL_PASS"),
			From: mailer.Address{
				Name:  utils.GetEnvTrimmedOrDefault("EMAIL_FROM_NAME", DefaultEmailFromName),
				Email: utils.GetEnvTrimmedOrDefault("EMAIL_FROM", user),
			},
		},
	}
}

// Sender picks SendGrid when an API key is set, SMTP when credentials are set,
// and the log sender otherwise.
func (mc *MailConfig) Sender(logger *log.Logger) mailer.Sender {
	switch {
	case mc.SendGridAPIKey != "" && mc.SMTP.From.Email != "":
		logger.Info("Email transport: SendGrid", "from", mc.SMTP.From.Email)
		return mailer.NewSendGridSender(mc.SendGridAPIKey, mc.SMTP.From)
	case mc.SendGridAPIKey != "":
		logger.Warn("SENDGRID_API_KEY set without EMAIL_FROM or EMAIL_USER; ignoring SendGrid")
	}

	if mc.SMTP.Username != "" && mc.SMTP.Password != "" {
		logger.Info("Email transport: SMTP", "host", mc.SMTP.Host, "port", mc.SMTP.Port)
		return mailer.NewSMTPSender(mc.SMTP)
	}

	logger.Warn("No email transport configured; welcome emails will only be logged")
	return mailer.NewLogSender(logger)
}

func NewMailSender(logger *log.Logger) mailer.Sender {
	return NewMailConfig().Sender(logger)
}
