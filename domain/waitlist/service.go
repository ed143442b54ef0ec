package waitlist

import (
	"context"
	"time"

	"github.com/akeren/lasting-loves-waitlist/internal/log"
	"github.com/akeren/lasting-loves-waitlist/internal/models"
	apperrors "github.com/akeren/lasting-loves-waitlist/pkg/errors"
	"github.com/akeren/lasting-loves-waitlist/pkg/events"
	"github.com/akeren/lasting-loves-waitlist/pkg/tasks"
)

//go:generate mockgen -source=service.go -destination=mock_service.go -package=waitlist

const (
	TaskWelcomeEmail = "welcome_email"
	TaskJoinedEvent  = "waitlist_joined_event"
)

type WaitlistService interface {
	// Join registers req.Email. An email already on the list yields a conflict
	// error and no write. The welcome email and signup event are queued after
	// the insert and never affect the result.
	Join(ctx context.Context, req *JoinWaitlistRequest) error

	// Count returns the number of entries on the waitlist.
	Count(ctx context.Context) (int64, error)
}

type waitlistService struct {
	logger     *log.Logger
	repository WaitlistRepository
	tasks      tasks.Submitter
	notifier   WelcomeNotifier
	events     events.Publisher
	now        func() time.Time
}

func NewWaitlistService(
	logger *log.Logger,
	repository WaitlistRepository,
	submitter tasks.Submitter,
	notifier WelcomeNotifier,
	publisher events.Publisher,
) WaitlistService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}

	return &waitlistService{
		logger:     logger,
		repository: repository,
		tasks:      submitter,
		notifier:   notifier,
		events:     publisher,
		now:        time.Now,
	}
}

func (s *waitlistService) Join(ctx context.Context, req *JoinWaitlistRequest) error {
	logger := log.GetLoggerInstanceFromContext(ctx, s.logger)

	if req == nil {
		logger.Error("Join received empty request")
		return apperrors.NewInvalidRequestError("request cannot be nil", nil)
	}

	existing, err := s.repository.FindEntryByEmail(ctx, req.Email)
	if err != nil {
		logger.Error("Failed to look up waitlist entry", "error", err)
		return err
	}
	if existing != nil {
		logger.Info("Email is already on the waitlist", "entry_id", existing.ID)
		return apperrors.NewConflictError(MessageAlreadyJoined, nil)
	}

	entry, err := s.repository.CreateEntry(ctx, ToWaitlistEntryModel(req))
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeConflict) {
			// The pre-check passed, so a concurrent join inserted the row first.
			logger.Warn("Waitlist entry was created concurrently", "error", err)
			return apperrors.NewInternalServerError(MessageJoinFailed, err)
		}
		logger.Error("Failed to create waitlist entry", "error", err)
		return err
	}

	logger.Info("Waitlist entry created", "entry_id", entry.ID)
	s.dispatchSideEffects(ctx, entry, req.Locale)
	return nil
}

func (s *waitlistService) dispatchSideEffects(ctx context.Context, entry *models.WaitlistEntry, locale string) {
	if s.tasks == nil {
		return
	}

	if s.notifier != nil {
		s.tasks.Submit(ctx, TaskWelcomeEmail, func(ctx context.Context) error {
			return s.notifier.SendWelcome(ctx, entry, locale)
		})
	}

	event := events.NewWaitlistJoined(entry.Email, entry.DisplayName(), entry.JoinedAt, s.now())
	s.tasks.Submit(ctx, TaskJoinedEvent, func(ctx context.Context) error {
		return s.events.PublishWaitlistJoined(ctx, event)
	})
}

func (s *waitlistService) Count(ctx context.Context) (int64, error) {
	logger := log.GetLoggerInstanceFromContext(ctx, s.logger)

	count, err := s.repository.CountEntries(ctx)
	if err != nil {
		logger.Error("Failed to count waitlist entries", "error", err)
		return 0, err
	}

	return count, nil
}
