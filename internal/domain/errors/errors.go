package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("resource not found")
	ErrForbidden          = errors.New("not authorized")
	ErrUnauthorized       = errors.New("authentication required")
	ErrValidationFailed   = errors.New("validation failed")
	ErrConflict           = errors.New("resource conflict")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInternalServer     = errors.New("internal server error")
	ErrDatabaseConnection = errors.New("database connection error")

	ErrConfigFileReadFailed = errors.New("failed to read config file")

	ErrUserNotFound        = fmt.Errorf("user: %w", ErrNotFound)
	ErrTeamNotFound        = fmt.Errorf("team: %w", ErrNotFound)
	ErrProjectNotFound     = fmt.Errorf("project: %w", ErrNotFound)
	ErrTaskNotFound        = fmt.Errorf("task: %w", ErrNotFound)
	ErrCommentNotFound     = fmt.Errorf("comment: %w", ErrNotFound)
	ErrJoinRequestNotFound = fmt.Errorf("join request: %w", ErrNotFound)
	ErrPostNotFound        = fmt.Errorf("post: %w", ErrNotFound)
	ErrChatNotFound        = fmt.Errorf("chat: %w", ErrNotFound)
	ErrMemberNotFound      = fmt.Errorf("member: %w", ErrNotFound)

	ErrUserAlreadyExists = fmt.Errorf("user already exists: %w", ErrConflict)
	ErrAlreadyMember     = fmt.Errorf("already a member: %w", ErrConflict)
	ErrAlreadyRequested  = fmt.Errorf("join request already pending: %w", ErrConflict)
	ErrStaleWrite        = fmt.Errorf("document changed since it was read: %w", ErrConflict)
)

// Invalid wraps ErrValidationFailed with a field-level reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidationFailed, fmt.Sprintf(format, args...))
}

// Denied wraps ErrForbidden with a human-readable reason.
func Denied(reason string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, reason)
}
