// Package review implements the project review workflow: per-area question sets, the
// server-side session lifecycle (Service) and the reviewer-side queue walker (Walker).
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nuno-ui/abeto-task-manager-sub000/internal/query"
	"github.com/nuno-ui/abeto-task-manager-sub000/internal/store"
	"github.com/nuno-ui/abeto-task-manager-sub000/pkg/models"
)

// Store is the subset of store.Store the review workflow needs.
type Store interface {
	ListProjects(ctx context.Context) ([]models.Project, error)
	GetProject(ctx context.Context, id int64) (models.Project, error)
	GetTask(ctx context.Context, id int64) (models.Task, error)
	StartReviewSession(ctx context.Context, reviewerID string, projectID int64, area models.ReviewerArea) (models.ReviewSession, error)
	GetReviewSession(ctx context.Context, id string) (models.ReviewSession, error)
	CompleteReviewSession(ctx context.Context, id string) (models.ReviewSession, error)
	ListReviewSessions(ctx context.Context, filter store.SessionFilter) ([]models.ReviewSession, error)
	UpsertReviewFeedback(ctx context.Context, in models.ReviewFeedbackInput) (models.ReviewFeedback, error)
	ListReviewFeedback(ctx context.Context, sessionID string) ([]models.ReviewFeedback, error)
	CreateReviewComment(ctx context.Context, in models.ReviewCommentInput) (models.ReviewComment, error)
	ListReviewComments(ctx context.Context, sessionID string) ([]models.ReviewComment, error)
}

// Notifier is told about completed reviews (e.g. a Slack channel).
type Notifier interface {
	ReviewCompleted(ctx context.Context, sess models.ReviewSession, project models.Project, answers int) error
}

// Service runs the review session lifecycle against a Store.
type Service struct {
	st     Store
	notify Notifier
}

// NewService returns a Service over st. notify may be nil.
func NewService(st Store, notify Notifier) *Service {
	return &Service{st: st, notify: notify}
}

func checkArea(area models.ReviewerArea) error {
	if !area.Valid() {
		return store.Invalid(models.ReviewerAreas.Check(string(area)))
	}
	return nil
}

// Overview lists every project with its review status, the projects still pending for
// reviewerID under area, and counts. An empty reviewerID treats a completed review by
// anyone as done.
func (s *Service) Overview(ctx context.Context, reviewerID string, area models.ReviewerArea) (models.ReviewOverview, error) {
	if err := checkArea(area); err != nil {
		return models.ReviewOverview{}, err
	}
	projects, err := s.st.ListProjects(ctx)
	if err != nil {
		return models.ReviewOverview{}, err
	}
	completed, err := s.st.ListReviewSessions(ctx, store.SessionFilter{Status: models.SessionCompleted})
	if err != nil {
		return models.ReviewOverview{}, err
	}

	statuses := make(map[int64]*models.ReviewStatus, len(projects))
	mine := make(map[int64]bool)
	for _, sess := range completed {
		st := statuses[sess.ProjectID]
		if st == nil {
			st = &models.ReviewStatus{ProjectID: sess.ProjectID}
			statuses[sess.ProjectID] = st
		}
		markArea(st, sess.ReviewerArea)
		if sess.ReviewerArea == area && (reviewerID == "" || sess.ReviewerID == reviewerID) {
			mine[sess.ProjectID] = true
		}
	}

	out := models.ReviewOverview{Projects: make([]models.ProjectReview, 0, len(projects))}
	var pending []models.Project
	for _, p := range projects {
		rs := models.ReviewStatus{ProjectID: p.ID}
		if st := statuses[p.ID]; st != nil {
			rs = *st
		}
		out.Projects = append(out.Projects, models.ProjectReview{Project: p, ReviewStatus: rs})
		if rs.AllReviewed {
			out.Stats.FullyReviewed++
		}
		if mine[p.ID] {
			out.Stats.Reviewed++
			continue
		}
		pending = append(pending, p)
	}
	// Projects arrive ordered by id; a stable priority sort yields priority then id.
	out.PendingReview, err = query.Projects.Apply(pending, query.Spec{SortKey: "priority", Direction: query.Asc})
	if err != nil {
		return models.ReviewOverview{}, err
	}
	out.Stats.Total = len(projects)
	out.Stats.Pending = len(out.PendingReview)
	return out, nil
}

func markArea(st *models.ReviewStatus, area models.ReviewerArea) {
	switch area {
	case models.AreaManagement:
		st.ManagementReviewed = true
	case models.AreaOperationsSales:
		st.OperationsSalesReviewed = true
	case models.AreaProductTech:
		st.ProductTechReviewed = true
	}
	st.AllReviewed = st.ManagementReviewed && st.OperationsSalesReviewed && st.ProductTechReviewed
}

// Status derives the per-area review status of one project.
func (s *Service) Status(ctx context.Context, projectID int64) (models.ReviewStatus, error) {
	if _, err := s.st.GetProject(ctx, projectID); err != nil {
		return models.ReviewStatus{}, err
	}
	sessions, err := s.st.ListReviewSessions(ctx, store.SessionFilter{ProjectID: projectID, Status: models.SessionCompleted})
	if err != nil {
		return models.ReviewStatus{}, err
	}
	rs := models.ReviewStatus{ProjectID: projectID}
	for _, sess := range sessions {
		markArea(&rs, sess.ReviewerArea)
	}
	return rs, nil
}

// StartSession returns the open session for the triple, creating it when none exists.
func (s *Service) StartSession(ctx context.Context, reviewerID string, projectID int64, area models.ReviewerArea) (models.ReviewSession, error) {
	if err := checkArea(area); err != nil {
		return models.ReviewSession{}, err
	}
	return s.st.StartReviewSession(ctx, reviewerID, projectID, area)
}

// Session returns a session with its answers and comments.
func (s *Service) Session(ctx context.Context, id string) (models.ReviewSessionDetail, error) {
	sess, err := s.st.GetReviewSession(ctx, id)
	if err != nil {
		return models.ReviewSessionDetail{}, err
	}
	fb, err := s.st.ListReviewFeedback(ctx, id)
	if err != nil {
		return models.ReviewSessionDetail{}, err
	}
	comments, err := s.st.ListReviewComments(ctx, id)
	if err != nil {
		return models.ReviewSessionDetail{}, err
	}
	return models.ReviewSessionDetail{ReviewSession: sess, Feedback: fb, Comments: comments}, nil
}

// Comments lists the comments left in a session.
func (s *Service) Comments(ctx context.Context, sessionID string) ([]models.ReviewComment, error) {
	if _, err := s.st.GetReviewSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.st.ListReviewComments(ctx, sessionID)
}

// RecordFeedback upserts one answer. The field must be a question of the session's area
// and the value must fit the question. A missing current_value is filled from the project.
func (s *Service) RecordFeedback(ctx context.Context, in models.ReviewFeedbackInput) (models.ReviewFeedback, error) {
	if err := store.ValidateFeedbackInput(in); err != nil {
		return models.ReviewFeedback{}, err
	}
	sess, err := s.st.GetReviewSession(ctx, in.ReviewSessionID)
	if err != nil {
		return models.ReviewFeedback{}, err
	}
	if sess.Status == models.SessionCompleted {
		return models.ReviewFeedback{}, fmt.Errorf("session %s: %w", sess.ID, store.ErrSessionClosed)
	}
	q, ok := FindQuestion(sess.ReviewerArea, in.FieldName)
	if !ok {
		return models.ReviewFeedback{}, store.Invalid(fmt.Errorf("no question %q for area %s", in.FieldName, sess.ReviewerArea))
	}
	if err := q.Check(in.ProposedValue); err != nil {
		return models.ReviewFeedback{}, store.Invalid(err)
	}
	if in.CurrentValue == nil && q.Field != "" {
		p, err := s.st.GetProject(ctx, sess.ProjectID)
		if err != nil {
			return models.ReviewFeedback{}, err
		}
		in.CurrentValue = CurrentValue(p, q)
	}
	return s.st.UpsertReviewFeedback(ctx, in)
}

// AddComment appends a comment. A task reference must belong to the reviewed project.
func (s *Service) AddComment(ctx context.Context, in models.ReviewCommentInput) (models.ReviewComment, error) {
	if err := store.ValidateCommentInput(in); err != nil {
		return models.ReviewComment{}, err
	}
	if in.TaskID != nil {
		task, err := s.st.GetTask(ctx, *in.TaskID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return models.ReviewComment{}, store.Invalid(err)
			}
			return models.ReviewComment{}, err
		}
		if task.ProjectID != in.ProjectID {
			return models.ReviewComment{}, store.Invalid(fmt.Errorf("task %d belongs to project %d, not %d", task.ID, task.ProjectID, in.ProjectID))
		}
	}
	return s.st.CreateReviewComment(ctx, in)
}

// CompleteSession marks a session completed. Unanswered questions never block it, and
// completing a completed session returns it unchanged.
func (s *Service) CompleteSession(ctx context.Context, id string) (models.ReviewSession, error) {
	before, err := s.st.GetReviewSession(ctx, id)
	if err != nil {
		return models.ReviewSession{}, err
	}
	sess, err := s.st.CompleteReviewSession(ctx, id)
	if err != nil {
		return models.ReviewSession{}, err
	}
	if before.Status != models.SessionCompleted && s.notify != nil {
		s.notifyCompleted(ctx, sess)
	}
	return sess, nil
}

func (s *Service) notifyCompleted(ctx context.Context, sess models.ReviewSession) {
	p, err := s.st.GetProject(ctx, sess.ProjectID)
	if err != nil {
		slog.Warn("review notify: load project failed", "session_id", sess.ID, "err", err)
		return
	}
	fb, err := s.st.ListReviewFeedback(ctx, sess.ID)
	if err != nil {
		slog.Warn("review notify: load feedback failed", "session_id", sess.ID, "err", err)
		return
	}
	if err := s.notify.ReviewCompleted(ctx, sess, p, len(fb)); err != nil {
		slog.Warn("review notify failed", "session_id", sess.ID, "err", err)
	}
}
