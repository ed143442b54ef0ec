// Package events publishes domain events about waitlist signups.
package events

import (
	"context"
	"encoding/json"
	"time"
)

const TypeWaitlistJoined = "waitlist.joined"

type WaitlistJoined struct {
	Type       string    `json:"type"`
	Email      string    `json:"email"`
	Name       string    `json:"name,omitempty"`
	JoinedAt   time.Time `json:"joined_at"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewWaitlistJoined(email, name string, joinedAt, now time.Time) *WaitlistJoined {
	return &WaitlistJoined{
		Type:       TypeWaitlistJoined,
		Email:      email,
		Name:       name,
		JoinedAt:   joinedAt.UTC(),
		OccurredAt: now.UTC(),
	}
}

func (e *WaitlistJoined) Key() string { return e.Email }

func (e *WaitlistJoined) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers events best-effort. Callers log failures; nothing is retried here.
type Publisher interface {
	PublishWaitlistJoined(ctx context.Context, event *WaitlistJoined) error
	Close() error
}

// NoopPublisher is used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishWaitlistJoined(context.Context, *WaitlistJoined) error { return nil }

func (NoopPublisher) Close() error { return nil }
