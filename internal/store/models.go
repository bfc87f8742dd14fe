// Package store defines the persistence interface for the tracker and its SQLite implementation.
// Record types live in pkg/models; this package adds list filters and the error taxonomy.
package store

import (
	"errors"
	"fmt"

	"github.com/nuno-ui/abeto-task-manager-sub000/pkg/models"
)

// ErrNotFound is wrapped by every lookup of a missing row.
var ErrNotFound = errors.New("not found")

// ErrSessionClosed is returned when answers or comments target a completed session.
var ErrSessionClosed = errors.New("review session is completed")

// ValidationError reports input rejected at the store boundary (bad enum value, missing
// required field, dangling reference).
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Invalid wraps err as a *ValidationError; nil stays nil.
func Invalid(err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Msg: err.Error()}
}

// NotFound builds an ErrNotFound-wrapping error for kind/id.
func NotFound(kind string, id any) error {
	return fmt.Errorf("%s %v: %w", kind, id, ErrNotFound)
}

// TaskFilter narrows ListTasks. Zero values mean "any".
type TaskFilter struct {
	ProjectID int64
}

// SessionFilter narrows ListReviewSessions. Zero values mean "any".
type SessionFilter struct {
	ReviewerID string
	ProjectID  int64
	Area       models.ReviewerArea
	Status     models.SessionStatus
}
