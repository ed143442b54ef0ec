package waitlist

import (
	"context"
	"fmt"

	"github.com/akeren/lasting-loves-waitlist/internal/log"
	"github.com/akeren/lasting-loves-waitlist/internal/models"
	"github.com/akeren/lasting-loves-waitlist/pkg/circuitbreaker"
	"github.com/akeren/lasting-loves-waitlist/pkg/mailer"
)

//go:generate mockgen -source=notifier.go -destination=mock_notifier.go -package=waitlist

// WelcomeNotifier delivers the welcome email for a new entry. It is attempted
// once; callers only log the returned error.
type WelcomeNotifier interface {
	SendWelcome(ctx context.Context, entry *models.WaitlistEntry, locale string) error
}

type welcomeNotifier struct {
	logger   *log.Logger
	renderer *WelcomeRenderer
	sender   mailer.Sender
	breaker  circuitbreaker.CircuitBreaker
}

func NewWelcomeNotifier(logger *log.Logger, renderer *WelcomeRenderer, sender mailer.Sender, breakerConfig *circuitbreaker.Config) WelcomeNotifier {
	if breakerConfig == nil {
		breakerConfig = circuitbreaker.DefaultConfig()
	}
	cfg := *breakerConfig
	if cfg.Name == "" {
		cfg.Name = "mailer:" + sender.Name()
	}
	if cfg.OnStateChange == nil {
		cfg.OnStateChange = func(name string, from, to circuitbreaker.State) {
			logger.Warn("Mail circuit breaker changed state", "breaker", name, "from", from.String(), "to", to.String())
		}
	}

	return &welcomeNotifier{
		logger:   logger,
		renderer: renderer,
		sender:   sender,
		breaker:  circuitbreaker.New(&cfg),
	}
}

func (n *welcomeNotifier) SendWelcome(ctx context.Context, entry *models.WaitlistEntry, locale string) error {
	msg, err := n.renderer.Render(entry.Email, entry.DisplayName(), locale)
	if err != nil {
		return err
	}

	err = n.breaker.Call(func() error {
		return n.sender.Send(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("send welcome email via %s: %w", n.sender.Name(), err)
	}

	log.GetLoggerInstanceFromContext(ctx, n.logger).Info("Welcome email sent", "entry_id", entry.ID, "transport", n.sender.Name())
	return nil
}
