package waitlist

import (
	"strings"

	"github.com/akeren/lasting-loves-waitlist/internal/models"
	apperrors "github.com/akeren/lasting-loves-waitlist/pkg/errors"
)

const (
	MessageJoined        = "Success! You are on the list."
	MessageAlreadyJoined = "You are already on the waitlist!"
	MessageJoinFailed    = "Something went wrong. Please try again."
	MessageInvalidEmail  = "Please provide a valid email address."
	MessageCountFailed   = "Error fetching count"
)

type JoinWaitlistRequest struct {
	Email string `json:"email" binding:"required,email,max=255"`
	Name  string `json:"name" binding:"omitempty,max=255"`

	// Locale is resolved from Accept-Language, never from the body.
	Locale string `json:"-"`
}

// Normalize trims surrounding whitespace. Case is preserved.
func (r *JoinWaitlistRequest) Normalize() {
	r.Email = strings.TrimSpace(r.Email)
	r.Name = strings.TrimSpace(r.Name)
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ValidationFailureResponse struct {
	Message string                              `json:"message"`
	Errors  []apperrors.ValidationErrorResponse `json:"errors,omitempty"`
}

type CountResponse struct {
	Count int64 `json:"count"`
}

func ToWaitlistEntryModel(req *JoinWaitlistRequest) *models.WaitlistEntry {
	if req == nil {
		return nil
	}

	entry := &models.WaitlistEntry{Email: req.Email}
	if req.Name != "" {
		name := req.Name
		entry.Name = &name
	}
	return entry
}
