package models

import (
	"time"

	"gorm.io/gorm"
)

// Waitlist entry statuses. Only StatusPending is ever written by this service.
const (
	WaitlistStatusPending = "pending"
)

type WaitlistEntry struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	Email    string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_waitlist_entries_email" json:"email"`
	Name     *string   `gorm:"type:varchar(255)" json:"name,omitempty"`
	JoinedAt time.Time `gorm:"<-:create;not null" json:"joined_at"`
	Status   string    `gorm:"type:varchar(32);not null;default:pending" json:"status"`
}

func (e *WaitlistEntry) BeforeCreate(tx *gorm.DB) error {
	if e.JoinedAt.IsZero() {
		e.JoinedAt = time.Now().UTC()
	}
	if e.Status == "" {
		e.Status = WaitlistStatusPending
	}
	return nil
}

// DisplayName returns the stored name, or "" when none was given.
func (e *WaitlistEntry) DisplayName() string {
	if e == nil || e.Name == nil {
		return ""
	}
	return *e.Name
}
