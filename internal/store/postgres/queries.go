package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nuno-ui/abeto-task-manager-sub000/internal/store"
	"github.com/nuno-ui/abeto-task-manager-sub000/pkg/models"
)

// pgErr maps integrity violations (SQLSTATE class 23) to validation errors.
func pgErr(err error) error {
	var pe *pgconn.PgError
	if errors.As(err, &pe) && strings.HasPrefix(pe.Code, "23") {
		return &store.ValidationError{Msg: pe.Message}
	}
	return err
}

func isNoRows(err error) bool { return errors.Is(err, pgx.ErrNoRows) }

// params returns "$from, $from+1, ..." for n arguments.
func params(from, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "$" + strconv.Itoa(from+i)
	}
	return strings.Join(parts, ", ")
}

func collect[T any](rows pgx.Rows, scan func(store.RowScanner) (T, error)) ([]T, error) {
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) ListPillars(ctx context.Context) ([]models.Pillar, error) {
	rows, err := s.Pool.Query(ctx, `SELECT pillar_id, name, description, created_at FROM pillars ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(r store.RowScanner) (models.Pillar, error) {
		var p models.Pillar
		var createdAt int64
		err := r.Scan(&p.ID, &p.Name, &p.Description, &createdAt)
		p.CreatedAt = time.Unix(createdAt, 0).UTC()
		return p, err
	})
}

func (s *Store) CreatePillar(ctx context.Context, name, description string) (models.Pillar, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Pillar{}, store.Invalid(errors.New("pillar name required"))
	}
	now := time.Now().UTC().Unix()
	var id int64
	if err := s.Pool.QueryRow(ctx, `INSERT INTO pillars(name, description, created_at) VALUES($1, $2, $3) RETURNING pillar_id`,
		name, description, now).Scan(&id); err != nil {
		return models.Pillar{}, pgErr(err)
	}
	return models.Pillar{ID: id, Name: name, Description: description, CreatedAt: time.Unix(now, 0).UTC()}, nil
}

func scanTeam(r store.RowScanner) (models.Team, error) {
	var t models.Team
	var createdAt int64
	err := r.Scan(&t.ID, &t.Name, &t.Description, &createdAt)
	t.CreatedAt = time.Unix(createdAt, 0).UTC()
	return t, err
}

func (s *Store) ListTeams(ctx context.Context) ([]models.Team, error) {
	rows, err := s.Pool.Query(ctx, `SELECT team_id, name, description, created_at FROM teams ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanTeam)
}

func (s *Store) GetTeam(ctx context.Context, id int64) (models.Team, error) {
	t, err := scanTeam(s.Pool.QueryRow(ctx, `SELECT team_id, name, description, created_at FROM teams WHERE team_id = $1`, id))
	if isNoRows(err) {
		return models.Team{}, store.NotFound("team", id)
	}
	return t, err
}

func (s *Store) CreateTeam(ctx context.Context, name, description string) (models.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Team{}, store.Invalid(errors.New("team name required"))
	}
	now := time.Now().UTC().Unix()
	var id int64
	if err := s.Pool.QueryRow(ctx, `INSERT INTO teams(name, description, created_at) VALUES($1, $2, $3) RETURNING team_id`,
		name, description, now).Scan(&id); err != nil {
		return models.Team{}, pgErr(err)
	}
	return models.Team{ID: id, Name: name, Description: description, CreatedAt: time.Unix(now, 0).UTC()}, nil
}

func (s *Store) ListProjects(ctx context.Context) ([]models.Project, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+store.ProjectColumns+` FROM projects ORDER BY project_id`)
	if err != nil {
		return nil, err
	}
	return collect(rows, store.ScanProject)
}

func (s *Store) GetProject(ctx context.Context, id int64) (models.Project, error) {
	p, err := store.ScanProject(s.Pool.QueryRow(ctx, `SELECT `+store.ProjectColumns+` FROM projects WHERE project_id = $1`, id))
	if isNoRows(err) {
		return models.Project{}, store.NotFound("project", id)
	}
	return p, err
}

func (s *Store) CreateProject(ctx context.Context, in models.ProjectInput) (models.Project, error) {
	if err := store.NormalizeProjectInput(&in); err != nil {
		return models.Project{}, err
	}
	cols := "slug, title, description, status, priority, difficulty, pillar_id, owner_team_id, " +
		strings.Join(store.AssessmentColumns, ", ") + ", created_at"
	args := []any{in.Slug, in.Title, in.Description, string(in.Status), string(in.Priority), string(in.Difficulty),
		store.NullableInt(in.PillarID), store.NullableInt(in.OwnerTeamID)}
	args = append(args, store.AssessmentArgs(in.Assessment)...)
	args = append(args, time.Now().UTC().Unix())

	p, err := store.ScanProject(s.Pool.QueryRow(ctx,
		`INSERT INTO projects(`+cols+`) VALUES(`+params(1, len(args))+`) RETURNING `+store.ProjectColumns, args...))
	if err != nil {
		return models.Project{}, pgErr(err)
	}
	return p, nil
}

func (s *Store) UpdateProject(ctx context.Context, id int64, patch models.ProjectPatch) (models.Project, error) {
	p, err := s.GetProject(ctx, id)
	if err != nil {
		return models.Project{}, err
	}
	if err := store.ApplyProjectPatch(&p, patch); err != nil {
		return models.Project{}, err
	}
	cols := []string{"title", "description", "status", "priority", "difficulty", "pillar_id", "owner_team_id", "progress_percentage"}
	cols = append(cols, store.AssessmentColumns...)
	cols = append(cols, "updated_at")
	args := []any{p.Title, p.Description, string(p.Status), string(p.Priority), string(p.Difficulty),
		store.NullableInt(p.PillarID), store.NullableInt(p.OwnerTeamID), p.ProgressPercentage}
	args = append(args, store.AssessmentArgs(p.Assessment)...)
	args = append(args, time.Now().UTC().Unix())

	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c + " = $" + strconv.Itoa(i+1)
	}
	args = append(args, id)
	q := `UPDATE projects SET ` + strings.Join(sets, ", ") + ` WHERE project_id = $` + strconv.Itoa(len(args)) + ` RETURNING ` + store.ProjectColumns
	out, err := store.ScanProject(s.Pool.QueryRow(ctx, q, args...))
	if err != nil {
		if isNoRows(err) {
			return models.Project{}, store.NotFound("project", id)
		}
		return models.Project{}, pgErr(err)
	}
	return out, nil
}

func (s *Store) SetProjectProgress(ctx context.Context, id int64, pct int) (models.Project, bool, error) {
	p, err := store.ScanProject(s.Pool.QueryRow(ctx,
		`UPDATE projects SET progress_percentage = $1 WHERE project_id = $2 AND progress_percentage <> $1 RETURNING `+store.ProjectColumns,
		pct, id))
	if err != nil {
		if isNoRows(err) {
			return models.Project{}, false, nil
		}
		return models.Project{}, false, pgErr(err)
	}
	return p, true, nil
}

func (s *Store) DeleteProject(ctx context.Context, id int64) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM projects WHERE project_id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.NotFound("project", id)
	}
	return nil
}

func (s *Store) ListTasks(ctx context.Context, filter store.TaskFilter) ([]models.Task, error) {
	q := `SELECT ` + store.TaskColumns + ` FROM tasks`
	var args []any
	if filter.ProjectID > 0 {
		q += ` WHERE project_id = $1`
		args = append(args, filter.ProjectID)
	}
	rows, err := s.Pool.Query(ctx, q+` ORDER BY task_id`, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, store.ScanTask)
}

func (s *Store) GetTask(ctx context.Context, id int64) (models.Task, error) {
	t, err := store.ScanTask(s.Pool.QueryRow(ctx, `SELECT `+store.TaskColumns+` FROM tasks WHERE task_id = $1`, id))
	if isNoRows(err) {
		return models.Task{}, store.NotFound("task", id)
	}
	return t, err
}

func (s *Store) CreateTask(ctx context.Context, in models.TaskInput) (models.Task, error) {
	if err := store.NormalizeTaskInput(&in); err != nil {
		return models.Task{}, err
	}
	t, err := store.ScanTask(s.Pool.QueryRow(ctx, `
INSERT INTO tasks(project_id, title, description, phase, status, difficulty, ai_potential, owner_team_id, due_date, created_at)
VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING `+store.TaskColumns,
		in.ProjectID, in.Title, in.Description, string(in.Phase), string(in.Status), string(in.Difficulty),
		string(in.AIPotential), store.NullableInt(in.OwnerTeamID), store.NullableString(in.DueDate), time.Now().UTC().Unix()))
	if err != nil {
		return models.Task{}, pgErr(err)
	}
	return t, nil
}

func (s *Store) UpdateTask(ctx context.Context, id int64, patch models.TaskPatch) (models.Task, error) {
	t, err := s.GetTask(ctx, id)
	if err != nil {
		return models.Task{}, err
	}
	if err := store.ApplyTaskPatch(&t, patch); err != nil {
		return models.Task{}, err
	}
	out, err := store.ScanTask(s.Pool.QueryRow(ctx, `
UPDATE tasks SET title = $1, description = $2, phase = $3, status = $4, difficulty = $5, ai_potential = $6,
  owner_team_id = $7, due_date = $8, updated_at = $9
WHERE task_id = $10
RETURNING `+store.TaskColumns,
		t.Title, t.Description, string(t.Phase), string(t.Status), string(t.Difficulty), string(t.AIPotential),
		store.NullableInt(t.OwnerTeamID), store.NullableString(t.DueDate), time.Now().UTC().Unix(), id))
	if err != nil {
		if isNoRows(err) {
			return models.Task{}, store.NotFound("task", id)
		}
		return models.Task{}, pgErr(err)
	}
	return out, nil
}

func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM tasks WHERE task_id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.NotFound("task", id)
	}
	return nil
}

func (s *Store) StartReviewSession(ctx context.Context, reviewerID string, projectID int64, area models.ReviewerArea) (models.ReviewSession, error) {
	reviewerID = strings.TrimSpace(reviewerID)
	if reviewerID == "" {
		return models.ReviewSession{}, store.Invalid(errors.New("reviewer_id required"))
	}
	if !area.Valid() {
		return models.ReviewSession{}, store.Invalid(models.ReviewerAreas.Check(string(area)))
	}
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return models.ReviewSession{}, err
	}
	if _, err := s.Pool.Exec(ctx, `
INSERT INTO review_sessions(session_id, reviewer_id, project_id, reviewer_area, status, started_at)
VALUES($1, $2, $3, $4, 'in_progress', $5) ON CONFLICT DO NOTHING`,
		uuid.NewString(), reviewerID, projectID, string(area), time.Now().UTC().Unix()); err != nil {
		return models.ReviewSession{}, pgErr(err)
	}
	sess, err := store.ScanSession(s.Pool.QueryRow(ctx, `SELECT `+store.SessionColumns+` FROM review_sessions
WHERE reviewer_id = $1 AND project_id = $2 AND reviewer_area = $3 AND status = 'in_progress'`, reviewerID, projectID, string(area)))
	if err != nil {
		return models.ReviewSession{}, fmt.Errorf("load open session: %w", err)
	}
	return sess, nil
}

func (s *Store) GetReviewSession(ctx context.Context, id string) (models.ReviewSession, error) {
	sess, err := store.ScanSession(s.Pool.QueryRow(ctx, `SELECT `+store.SessionColumns+` FROM review_sessions WHERE session_id = $1`, id))
	if isNoRows(err) {
		return models.ReviewSession{}, store.NotFound("review session", id)
	}
	return sess, err
}

func (s *Store) CompleteReviewSession(ctx context.Context, id string) (models.ReviewSession, error) {
	if _, err := s.Pool.Exec(ctx, `UPDATE review_sessions SET status = 'completed', completed_at = $1 WHERE session_id = $2 AND status = 'in_progress'`,
		time.Now().UTC().Unix(), id); err != nil {
		return models.ReviewSession{}, err
	}
	return s.GetReviewSession(ctx, id)
}

func (s *Store) ListReviewSessions(ctx context.Context, filter store.SessionFilter) ([]models.ReviewSession, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, cond+" = $"+strconv.Itoa(len(args)))
	}
	if filter.ReviewerID != "" {
		add("reviewer_id", filter.ReviewerID)
	}
	if filter.ProjectID > 0 {
		add("project_id", filter.ProjectID)
	}
	if filter.Area != "" {
		add("reviewer_area", string(filter.Area))
	}
	if filter.Status != "" {
		add("status", string(filter.Status))
	}
	q := `SELECT ` + store.SessionColumns + ` FROM review_sessions`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	rows, err := s.Pool.Query(ctx, q+` ORDER BY started_at, session_id`, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, store.ScanSession)
}

func (s *Store) openSession(ctx context.Context, id string) (models.ReviewSession, error) {
	sess, err := s.GetReviewSession(ctx, id)
	if err != nil {
		return models.ReviewSession{}, err
	}
	if sess.Status == models.SessionCompleted {
		return models.ReviewSession{}, fmt.Errorf("session %s: %w", id, store.ErrSessionClosed)
	}
	return sess, nil
}

func (s *Store) UpsertReviewFeedback(ctx context.Context, in models.ReviewFeedbackInput) (models.ReviewFeedback, error) {
	if err := store.ValidateFeedbackInput(in); err != nil {
		return models.ReviewFeedback{}, err
	}
	if _, err := s.openSession(ctx, in.ReviewSessionID); err != nil {
		return models.ReviewFeedback{}, err
	}
	now := time.Now().UTC().Unix()
	f, err := store.ScanFeedback(s.Pool.QueryRow(ctx, `
INSERT INTO review_feedback(session_id, field_name, current_value, proposed_value, comment, created_at, updated_at)
VALUES($1, $2, $3, $4, $5, $6, $6)
ON CONFLICT (session_id, field_name) DO UPDATE SET
  current_value = EXCLUDED.current_value,
  proposed_value = EXCLUDED.proposed_value,
  comment = EXCLUDED.comment,
  updated_at = EXCLUDED.updated_at
RETURNING `+store.FeedbackColumns,
		in.ReviewSessionID, in.FieldName, store.NullableString(in.CurrentValue), in.ProposedValue, store.NullableString(in.Comment), now))
	if err != nil {
		return models.ReviewFeedback{}, pgErr(err)
	}
	return f, nil
}

func (s *Store) ListReviewFeedback(ctx context.Context, sessionID string) ([]models.ReviewFeedback, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+store.FeedbackColumns+` FROM review_feedback WHERE session_id = $1 ORDER BY feedback_id`, sessionID)
	if err != nil {
		return nil, err
	}
	return collect(rows, store.ScanFeedback)
}

func (s *Store) CreateReviewComment(ctx context.Context, in models.ReviewCommentInput) (models.ReviewComment, error) {
	if err := store.ValidateCommentInput(in); err != nil {
		return models.ReviewComment{}, err
	}
	sess, err := s.openSession(ctx, in.ReviewSessionID)
	if err != nil {
		return models.ReviewComment{}, err
	}
	if sess.ProjectID != in.ProjectID {
		return models.ReviewComment{}, store.Invalid(fmt.Errorf("session %s is for project %d, not %d", sess.ID, sess.ProjectID, in.ProjectID))
	}
	c, err := store.ScanComment(s.Pool.QueryRow(ctx, `
INSERT INTO review_comments(session_id, project_id, task_id, content, created_at) VALUES($1, $2, $3, $4, $5)
RETURNING `+store.CommentColumns,
		in.ReviewSessionID, in.ProjectID, store.NullableInt(in.TaskID), strings.TrimSpace(in.Content), time.Now().UTC().Unix()))
	if err != nil {
		return models.ReviewComment{}, pgErr(err)
	}
	return c, nil
}

func (s *Store) ListReviewComments(ctx context.Context, sessionID string) ([]models.ReviewComment, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+store.CommentColumns+` FROM review_comments WHERE session_id = $1 ORDER BY comment_id`, sessionID)
	if err != nil {
		return nil, err
	}
	return collect(rows, store.ScanComment)
}

var _ store.Store = (*Store)(nil)
