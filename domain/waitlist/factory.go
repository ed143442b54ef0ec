package waitlist

import (
	"github.com/akeren/lasting-loves-waitlist/config/router"
	"github.com/akeren/lasting-loves-waitlist/internal/i18n"
	"github.com/akeren/lasting-loves-waitlist/internal/log"
	"github.com/akeren/lasting-loves-waitlist/pkg/events"
	"github.com/akeren/lasting-loves-waitlist/pkg/mailer"
	"github.com/akeren/lasting-loves-waitlist/pkg/tasks"
	"gorm.io/gorm"
)

// Dependencies are the process-wide handles the waitlist domain is built from.
type Dependencies struct {
	DB         *gorm.DB
	Logger     *log.Logger
	Tasks      tasks.Submitter
	Mailer     mailer.Sender
	Events     events.Publisher
	Translator *i18n.Translator
	// JoinRateLimit is the per-client join limit per minute; 0 disables it.
	JoinRateLimit int
}

type WaitlistServiceFactory interface {
	CreateService() WaitlistService
	CreateController() *router.RESTController
}

type DefaultWaitlistServiceFactory struct {
	deps    Dependencies
	service WaitlistService
}

func NewWaitlistServiceFactory(deps Dependencies) WaitlistServiceFactory {
	return &DefaultWaitlistServiceFactory{deps: deps}
}

// CreateService returns the same service on every call so the controller and
// the size reporter share one notifier and its circuit breaker.
func (f *DefaultWaitlistServiceFactory) CreateService() WaitlistService {
	if f.service != nil {
		return f.service
	}

	var notifier WelcomeNotifier
	if f.deps.Mailer != nil && f.deps.Translator != nil {
		renderer := NewWelcomeRenderer(f.deps.Translator, nil)
		notifier = NewWelcomeNotifier(f.deps.Logger, renderer, f.deps.Mailer, nil)
	}

	f.service = NewWaitlistService(
		f.deps.Logger,
		NewWaitlistRepository(f.deps.DB),
		f.deps.Tasks,
		notifier,
		f.deps.Events,
	)
	return f.service
}

func (f *DefaultWaitlistServiceFactory) CreateController() *router.RESTController {
	return NewWaitlistController(f.CreateService(), f.deps.Translator, f.deps.JoinRateLimit)
}
