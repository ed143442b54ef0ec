package waitlist

import (
	"context"

	"github.com/akeren/lasting-loves-waitlist/internal/models"
	apperrors "github.com/akeren/lasting-loves-waitlist/pkg/errors"
	"gorm.io/gorm"
)

//go:generate mockgen -source=repository.go -destination=mock_repository.go -package=waitlist

type WaitlistRepository interface {
	// FindEntryByEmail returns the entry with exactly this email, or nil when none exists.
	FindEntryByEmail(ctx context.Context, email string) (*models.WaitlistEntry, error)
	// CreateEntry inserts entry. A unique-index hit is reported as a conflict.
	CreateEntry(ctx context.Context, entry *models.WaitlistEntry) (*models.WaitlistEntry, error)
	// CountEntries returns the exact number of stored entries.
	CountEntries(ctx context.Context) (int64, error)
}

type waitlistRepository struct {
	db *gorm.DB
}

func NewWaitlistRepository(db *gorm.DB) WaitlistRepository {
	return &waitlistRepository{db: db}
}

func (wr *waitlistRepository) FindEntryByEmail(ctx context.Context, email string) (*models.WaitlistEntry, error) {
	var entries []models.WaitlistEntry

	if err := wr.db.WithContext(ctx).Where("email = ?", email).Limit(1).Find(&entries).Error; err != nil {
		return nil, apperrors.NewDatabaseError("failed to look up waitlist entry", err)
	}

	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

func (wr *waitlistRepository) CreateEntry(ctx context.Context, entry *models.WaitlistEntry) (*models.WaitlistEntry, error) {
	if err := wr.db.WithContext(ctx).Create(entry).Error; err != nil {
		if apperrors.IsDuplicateKeyError(err) {
			return nil, apperrors.NewConflictError("waitlist entry with this email already exists", err)
		}
		return nil, apperrors.NewDatabaseError("unable to create waitlist entry", err)
	}

	return entry, nil
}

func (wr *waitlistRepository) CountEntries(ctx context.Context) (int64, error) {
	var count int64

	if err := wr.db.WithContext(ctx).Model(&models.WaitlistEntry{}).Count(&count).Error; err != nil {
		return 0, apperrors.NewDatabaseError("unable to count waitlist entries", err)
	}

	return count, nil
}
