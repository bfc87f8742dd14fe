package store

import (
	"context"

	"github.com/nuno-ui/abeto-task-manager-sub000/pkg/models"
)

// Store is the persistence interface for pillars, teams, projects, tasks and reviews.
// Implementations: the SQLite store returned by Open and *postgres.Store (PostgreSQL).
type Store interface {
	// Pillars
	ListPillars(ctx context.Context) ([]models.Pillar, error)
	CreatePillar(ctx context.Context, name, description string) (models.Pillar, error)

	// Teams
	ListTeams(ctx context.Context) ([]models.Team, error)
	GetTeam(ctx context.Context, id int64) (models.Team, error)
	CreateTeam(ctx context.Context, name, description string) (models.Team, error)

	// Projects
	ListProjects(ctx context.Context) ([]models.Project, error)
	GetProject(ctx context.Context, id int64) (models.Project, error)
	CreateProject(ctx context.Context, in models.ProjectInput) (models.Project, error)
	UpdateProject(ctx context.Context, id int64, patch models.ProjectPatch) (models.Project, error)
	// SetProjectProgress writes only progress_percentage and leaves updated_at alone.
	// changed is false when the project is gone or already holds pct.
	SetProjectProgress(ctx context.Context, id int64, pct int) (p models.Project, changed bool, err error)
	DeleteProject(ctx context.Context, id int64) error

	// Tasks
	ListTasks(ctx context.Context, filter TaskFilter) ([]models.Task, error)
	GetTask(ctx context.Context, id int64) (models.Task, error)
	CreateTask(ctx context.Context, in models.TaskInput) (models.Task, error)
	UpdateTask(ctx context.Context, id int64, patch models.TaskPatch) (models.Task, error)
	DeleteTask(ctx context.Context, id int64) error

	// Review sessions. StartReviewSession returns the open session for the triple,
	// creating it only when none exists.
	StartReviewSession(ctx context.Context, reviewerID string, projectID int64, area models.ReviewerArea) (models.ReviewSession, error)
	GetReviewSession(ctx context.Context, id string) (models.ReviewSession, error)
	CompleteReviewSession(ctx context.Context, id string) (models.ReviewSession, error)
	ListReviewSessions(ctx context.Context, filter SessionFilter) ([]models.ReviewSession, error)

	// Review answers and comments
	UpsertReviewFeedback(ctx context.Context, in models.ReviewFeedbackInput) (models.ReviewFeedback, error)
	ListReviewFeedback(ctx context.Context, sessionID string) ([]models.ReviewFeedback, error)
	CreateReviewComment(ctx context.Context, in models.ReviewCommentInput) (models.ReviewComment, error)
	ListReviewComments(ctx context.Context, sessionID string) ([]models.ReviewComment, error)

	// Lifecycle
	Close() error
}
