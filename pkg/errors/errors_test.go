package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"gorm translated", gorm.ErrDuplicatedKey, true},
		{"postgres unique violation", &pgconn.PgError{Code: "23505"}, true},
		{"wrapped postgres unique violation", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), true},
		{"postgres other error", &pgconn.PgError{Code: "23502"}, false},
		{"sqlite", errors.New("UNIQUE constraint failed: waitlist_entries.email"), true},
		{"unrelated", errors.New("connection refused"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsDuplicateKeyError(tc.err))
		})
	}
}

func TestHTTPStatusCode(t *testing.T) {
	assert.Equal(t, StatusConflict, HTTPStatusCode(NewConflictError("dup", nil)))
	assert.Equal(t, StatusBadRequest, HTTPStatusCode(NewInvalidRequestError("bad", nil)))
	assert.Equal(t, StatusInternalServerError, HTTPStatusCode(NewDatabaseError("db", nil)))
	assert.Equal(t, StatusInternalServerError, HTTPStatusCode(errors.New("plain")))
	assert.Equal(t, StatusServiceUnavailable, HTTPStatusCode(NewUnavailableError("down", nil)))
}

func TestGetHumanReadableMessage_DoesNotLeakInternals(t *testing.T) {
	assert.Equal(t, "An unexpected error occurred", GetHumanReadableMessage(errors.New("pq: password authentication failed")))
	assert.Equal(t, "not here", GetHumanReadableMessage(NewNotFoundError("not here", errors.New("sql: no rows"))))
}

func TestIsType(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewConflictError("dup", nil))
	assert.True(t, IsType(err, ErrorTypeConflict))
	assert.False(t, IsType(err, ErrorTypeDatabaseError))
	assert.False(t, IsType(nil, ErrorTypeConflict))
}

type signup struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"max=3"`
}

func TestFormatValidationErrors_UsesJSONNames(t *testing.T) {
	err := validator.New().Struct(signup{Email: "nope", Name: "toolong"})

	out := FormatValidationErrors(err, &signup{})

	assert.ElementsMatch(t, []ValidationErrorResponse{
		{Field: "email", Message: "Invalid email format"},
		{Field: "name", Message: "Must not exceed 3 characters"},
	}, out)
}

func TestFormatValidationErrors_UnknownError(t *testing.T) {
	assert.Empty(t, FormatValidationErrors(errors.New("EOF"), &signup{}))
}
