package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nuno-ui/abeto-task-manager-sub000/pkg/models"
)

// constraintErr turns SQLite constraint violations (unique slug, dangling foreign key,
// CHECK) into validation errors; everything else passes through.
func constraintErr(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "constraint failed") {
		return &ValidationError{Msg: err.Error()}
	}
	return err
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func (s *sqliteStore) ListPillars(ctx context.Context) ([]models.Pillar, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT pillar_id, name, description, created_at FROM pillars ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []models.Pillar{}
	for rows.Next() {
		var p models.Pillar
		var createdAt int64
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &createdAt); err != nil {
			return nil, err
		}
		p.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *sqliteStore) CreatePillar(ctx context.Context, name, description string) (models.Pillar, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Pillar{}, Invalid(errors.New("pillar name required"))
	}
	now := time.Now().UTC().Unix()
	res, err := s.DB.ExecContext(ctx, `INSERT INTO pillars(name, description, created_at) VALUES(?, ?, ?)`, name, description, now)
	if err != nil {
		return models.Pillar{}, constraintErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Pillar{}, err
	}
	return models.Pillar{ID: id, Name: name, Description: description, CreatedAt: time.Unix(now, 0).UTC()}, nil
}

func (s *sqliteStore) ListTeams(ctx context.Context) ([]models.Team, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT team_id, name, description, created_at FROM teams ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []models.Team{}
	for rows.Next() {
		var t models.Team
		var createdAt int64
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &createdAt); err != nil {
			return nil, err
		}
		t.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *sqliteStore) GetTeam(ctx context.Context, id int64) (models.Team, error) {
	var t models.Team
	var createdAt int64
	err := s.DB.QueryRowContext(ctx, `SELECT team_id, name, description, created_at FROM teams WHERE team_id = ?`, id).
		Scan(&t.ID, &t.Name, &t.Description, &createdAt)
	if err != nil {
		if IsNoRows(err) {
			return models.Team{}, NotFound("team", id)
		}
		return models.Team{}, err
	}
	t.CreatedAt = time.Unix(createdAt, 0).UTC()
	return t, nil
}

func (s *sqliteStore) CreateTeam(ctx context.Context, name, description string) (models.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Team{}, Invalid(errors.New("team name required"))
	}
	now := time.Now().UTC().Unix()
	res, err := s.DB.ExecContext(ctx, `INSERT INTO teams(name, description, created_at) VALUES(?, ?, ?)`, name, description, now)
	if err != nil {
		return models.Team{}, constraintErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Team{}, err
	}
	return models.Team{ID: id, Name: name, Description: description, CreatedAt: time.Unix(now, 0).UTC()}, nil
}

func (s *sqliteStore) ListProjects(ctx context.Context) ([]models.Project, error) {
	rows, err := s.stmtListProjects.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []models.Project{}
	for rows.Next() {
		p, err := ScanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *sqliteStore) GetProject(ctx context.Context, id int64) (models.Project, error) {
	p, err := ScanProject(s.stmtGetProject.QueryRowContext(ctx, id))
	if err != nil {
		if IsNoRows(err) {
			return models.Project{}, NotFound("project", id)
		}
		return models.Project{}, err
	}
	return p, nil
}

func (s *sqliteStore) CreateProject(ctx context.Context, in models.ProjectInput) (models.Project, error) {
	if err := NormalizeProjectInput(&in); err != nil {
		return models.Project{}, err
	}
	cols := "slug, title, description, status, priority, difficulty, pillar_id, owner_team_id, " +
		strings.Join(AssessmentColumns, ", ") + ", created_at"
	args := []any{in.Slug, in.Title, in.Description, string(in.Status), string(in.Priority), string(in.Difficulty),
		NullableInt(in.PillarID), NullableInt(in.OwnerTeamID)}
	args = append(args, AssessmentArgs(in.Assessment)...)
	args = append(args, time.Now().UTC().Unix())

	res, err := s.DB.ExecContext(ctx, `INSERT INTO projects(`+cols+`) VALUES(`+placeholders(len(args))+`)`, args...)
	if err != nil {
		return models.Project{}, constraintErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Project{}, err
	}
	return s.GetProject(ctx, id)
}

func (s *sqliteStore) UpdateProject(ctx context.Context, id int64, patch models.ProjectPatch) (models.Project, error) {
	p, err := s.GetProject(ctx, id)
	if err != nil {
		return models.Project{}, err
	}
	if err := ApplyProjectPatch(&p, patch); err != nil {
		return models.Project{}, err
	}
	sets := []string{"title = ?", "description = ?", "status = ?", "priority = ?", "difficulty = ?",
		"pillar_id = ?", "owner_team_id = ?", "progress_percentage = ?"}
	args := []any{p.Title, p.Description, string(p.Status), string(p.Priority), string(p.Difficulty),
		NullableInt(p.PillarID), NullableInt(p.OwnerTeamID), p.ProgressPercentage}
	for _, col := range AssessmentColumns {
		sets = append(sets, col+" = ?")
	}
	args = append(args, AssessmentArgs(p.Assessment)...)
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC().Unix(), id)

	if _, err := s.DB.ExecContext(ctx, `UPDATE projects SET `+strings.Join(sets, ", ")+` WHERE project_id = ?`, args...); err != nil {
		return models.Project{}, constraintErr(err)
	}
	return s.GetProject(ctx, id)
}

func (s *sqliteStore) SetProjectProgress(ctx context.Context, id int64, pct int) (models.Project, bool, error) {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE projects SET progress_percentage = ? WHERE project_id = ? AND progress_percentage <> ?`, pct, id, pct)
	if err != nil {
		return models.Project{}, false, constraintErr(err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return models.Project{}, false, err
	}
	p, err := s.GetProject(ctx, id)
	return p, err == nil, err
}

func (s *sqliteStore) DeleteProject(ctx context.Context, id int64) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM projects WHERE project_id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return NotFound("project", id)
	}
	return nil
}

func (s *sqliteStore) ListTasks(ctx context.Context, filter TaskFilter) ([]models.Task, error) {
	q := `SELECT ` + TaskColumns + ` FROM tasks`
	var args []any
	if filter.ProjectID > 0 {
		q += ` WHERE project_id = ?`
		args = append(args, filter.ProjectID)
	}
	rows, err := s.DB.QueryContext(ctx, q+` ORDER BY task_id`, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []models.Task{}
	for rows.Next() {
		t, err := ScanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *sqliteStore) GetTask(ctx context.Context, id int64) (models.Task, error) {
	t, err := ScanTask(s.stmtGetTask.QueryRowContext(ctx, id))
	if err != nil {
		if IsNoRows(err) {
			return models.Task{}, NotFound("task", id)
		}
		return models.Task{}, err
	}
	return t, nil
}

func (s *sqliteStore) CreateTask(ctx context.Context, in models.TaskInput) (models.Task, error) {
	if err := NormalizeTaskInput(&in); err != nil {
		return models.Task{}, err
	}
	res, err := s.DB.ExecContext(ctx, `
INSERT INTO tasks(project_id, title, description, phase, status, difficulty, ai_potential, owner_team_id, due_date, created_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ProjectID, in.Title, in.Description, string(in.Phase), string(in.Status), string(in.Difficulty),
		string(in.AIPotential), NullableInt(in.OwnerTeamID), NullableString(in.DueDate), time.Now().UTC().Unix())
	if err != nil {
		return models.Task{}, constraintErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Task{}, err
	}
	return s.GetTask(ctx, id)
}

func (s *sqliteStore) UpdateTask(ctx context.Context, id int64, patch models.TaskPatch) (models.Task, error) {
	t, err := s.GetTask(ctx, id)
	if err != nil {
		return models.Task{}, err
	}
	if err := ApplyTaskPatch(&t, patch); err != nil {
		return models.Task{}, err
	}
	_, err = s.DB.ExecContext(ctx, `
UPDATE tasks SET title = ?, description = ?, phase = ?, status = ?, difficulty = ?, ai_potential = ?,
  owner_team_id = ?, due_date = ?, updated_at = ?
WHERE task_id = ?`,
		t.Title, t.Description, string(t.Phase), string(t.Status), string(t.Difficulty), string(t.AIPotential),
		NullableInt(t.OwnerTeamID), NullableString(t.DueDate), time.Now().UTC().Unix(), id)
	if err != nil {
		return models.Task{}, constraintErr(err)
	}
	return s.GetTask(ctx, id)
}

func (s *sqliteStore) DeleteTask(ctx context.Context, id int64) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM tasks WHERE task_id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return NotFound("task", id)
	}
	return nil
}

// StartReviewSession inserts a new open session unless one already exists for the
// triple (the partial unique index makes the insert a no-op), then returns the open one.
func (s *sqliteStore) StartReviewSession(ctx context.Context, reviewerID string, projectID int64, area models.ReviewerArea) (models.ReviewSession, error) {
	reviewerID = strings.TrimSpace(reviewerID)
	if reviewerID == "" {
		return models.ReviewSession{}, Invalid(errors.New("reviewer_id required"))
	}
	if !area.Valid() {
		return models.ReviewSession{}, Invalid(models.ReviewerAreas.Check(string(area)))
	}
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return models.ReviewSession{}, err
	}
	if _, err := s.stmtInsertSession.ExecContext(ctx, uuid.NewString(), reviewerID, projectID, string(area), time.Now().UTC().Unix()); err != nil {
		return models.ReviewSession{}, constraintErr(err)
	}
	sess, err := ScanSession(s.stmtOpenSession.QueryRowContext(ctx, reviewerID, projectID, string(area)))
	if err != nil {
		return models.ReviewSession{}, fmt.Errorf("load open session: %w", err)
	}
	return sess, nil
}

func (s *sqliteStore) GetReviewSession(ctx context.Context, id string) (models.ReviewSession, error) {
	sess, err := ScanSession(s.stmtGetSession.QueryRowContext(ctx, id))
	if err != nil {
		if IsNoRows(err) {
			return models.ReviewSession{}, NotFound("review session", id)
		}
		return models.ReviewSession{}, err
	}
	return sess, nil
}

// CompleteReviewSession marks the session completed. Completing an already completed
// session leaves completed_at unchanged.
func (s *sqliteStore) CompleteReviewSession(ctx context.Context, id string) (models.ReviewSession, error) {
	if _, err := s.GetReviewSession(ctx, id); err != nil {
		return models.ReviewSession{}, err
	}
	if _, err := s.DB.ExecContext(ctx, `UPDATE review_sessions SET status = 'completed', completed_at = ? WHERE session_id = ? AND status = 'in_progress'`,
		time.Now().UTC().Unix(), id); err != nil {
		return models.ReviewSession{}, err
	}
	return s.GetReviewSession(ctx, id)
}

func (s *sqliteStore) ListReviewSessions(ctx context.Context, filter SessionFilter) ([]models.ReviewSession, error) {
	var where []string
	var args []any
	if filter.ReviewerID != "" {
		where = append(where, "reviewer_id = ?")
		args = append(args, filter.ReviewerID)
	}
	if filter.ProjectID > 0 {
		where = append(where, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.Area != "" {
		where = append(where, "reviewer_area = ?")
		args = append(args, string(filter.Area))
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	q := `SELECT ` + SessionColumns + ` FROM review_sessions`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	rows, err := s.DB.QueryContext(ctx, q+` ORDER BY started_at, session_id`, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []models.ReviewSession{}
	for rows.Next() {
		sess, err := ScanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// openSession loads id and rejects completed sessions.
func (s *sqliteStore) openSession(ctx context.Context, id string) (models.ReviewSession, error) {
	sess, err := s.GetReviewSession(ctx, id)
	if err != nil {
		return models.ReviewSession{}, err
	}
	if sess.Status == models.SessionCompleted {
		return models.ReviewSession{}, fmt.Errorf("session %s: %w", id, ErrSessionClosed)
	}
	return sess, nil
}

// UpsertReviewFeedback records one answer; answering the same field again replaces the
// previous answer.
func (s *sqliteStore) UpsertReviewFeedback(ctx context.Context, in models.ReviewFeedbackInput) (models.ReviewFeedback, error) {
	if err := ValidateFeedbackInput(in); err != nil {
		return models.ReviewFeedback{}, err
	}
	if _, err := s.openSession(ctx, in.ReviewSessionID); err != nil {
		return models.ReviewFeedback{}, err
	}
	now := time.Now().UTC().Unix()
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO review_feedback(session_id, field_name, current_value, proposed_value, comment, created_at, updated_at)
VALUES(?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(session_id, field_name) DO UPDATE SET
  current_value = excluded.current_value,
  proposed_value = excluded.proposed_value,
  comment = excluded.comment,
  updated_at = excluded.updated_at`,
		in.ReviewSessionID, in.FieldName, NullableString(in.CurrentValue), in.ProposedValue, NullableString(in.Comment), now, now)
	if err != nil {
		return models.ReviewFeedback{}, constraintErr(err)
	}
	return ScanFeedback(s.DB.QueryRowContext(ctx,
		`SELECT `+FeedbackColumns+` FROM review_feedback WHERE session_id = ? AND field_name = ?`, in.ReviewSessionID, in.FieldName))
}

func (s *sqliteStore) ListReviewFeedback(ctx context.Context, sessionID string) ([]models.ReviewFeedback, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+FeedbackColumns+` FROM review_feedback WHERE session_id = ? ORDER BY feedback_id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []models.ReviewFeedback{}
	for rows.Next() {
		f, err := ScanFeedback(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *sqliteStore) CreateReviewComment(ctx context.Context, in models.ReviewCommentInput) (models.ReviewComment, error) {
	if err := ValidateCommentInput(in); err != nil {
		return models.ReviewComment{}, err
	}
	sess, err := s.openSession(ctx, in.ReviewSessionID)
	if err != nil {
		return models.ReviewComment{}, err
	}
	if sess.ProjectID != in.ProjectID {
		return models.ReviewComment{}, Invalid(fmt.Errorf("session %s is for project %d, not %d", sess.ID, sess.ProjectID, in.ProjectID))
	}
	res, err := s.DB.ExecContext(ctx, `INSERT INTO review_comments(session_id, project_id, task_id, content, created_at) VALUES(?, ?, ?, ?, ?)`,
		in.ReviewSessionID, in.ProjectID, NullableInt(in.TaskID), strings.TrimSpace(in.Content), time.Now().UTC().Unix())
	if err != nil {
		return models.ReviewComment{}, constraintErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.ReviewComment{}, err
	}
	return ScanComment(s.DB.QueryRowContext(ctx, `SELECT `+CommentColumns+` FROM review_comments WHERE comment_id = ?`, id))
}

func (s *sqliteStore) ListReviewComments(ctx context.Context, sessionID string) ([]models.ReviewComment, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+CommentColumns+` FROM review_comments WHERE session_id = ? ORDER BY comment_id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []models.ReviewComment{}
	for rows.Next() {
		c, err := ScanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

var _ Store = (*sqliteStore)(nil)
