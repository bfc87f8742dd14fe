package store

import (
	"database/sql"
	"strings"
	"time"

	"github.com/nuno-ui/abeto-task-manager-sub000/pkg/models"
)

// RowScanner is satisfied by *sql.Row, *sql.Rows, pgx.Row and pgx.Rows.
type RowScanner interface {
	Scan(dest ...any) error
}

func assessmentColumns() []string {
	cols := make([]string, 0, len(models.AssessmentScales))
	for _, sc := range models.AssessmentScales {
		cols = append(cols, sc.Name)
	}
	return cols
}

// Select lists matching the Scan* helpers below. Both SQL dialects share them.
var (
	ProjectColumns = "project_id, slug, title, description, status, priority, difficulty, pillar_id, owner_team_id, progress_percentage, " +
		strings.Join(assessmentColumns(), ", ") + ", created_at, updated_at"
	TaskColumns     = "task_id, project_id, title, description, phase, status, difficulty, ai_potential, owner_team_id, due_date, created_at, updated_at"
	SessionColumns  = "session_id, reviewer_id, project_id, reviewer_area, status, started_at, completed_at"
	FeedbackColumns = "feedback_id, session_id, field_name, current_value, proposed_value, comment, created_at, updated_at"
	CommentColumns  = "comment_id, session_id, project_id, task_id, content, created_at"
)

// AssessmentColumns is the ordered list of assessment column names.
var AssessmentColumns = assessmentColumns()

// ScanProject scans one row selected with ProjectColumns.
func ScanProject(row RowScanner) (models.Project, error) {
	var (
		p          models.Project
		status     string
		priority   string
		difficulty string
		pillarID   sql.NullInt64
		teamID     sql.NullInt64
		createdAt  int64
		updatedAt  sql.NullInt64
	)
	assessed := make([]sql.NullString, len(models.AssessmentScales))
	dest := []any{&p.ID, &p.Slug, &p.Title, &p.Description, &status, &priority, &difficulty, &pillarID, &teamID, &p.ProgressPercentage}
	for i := range assessed {
		dest = append(dest, &assessed[i])
	}
	dest = append(dest, &createdAt, &updatedAt)
	if err := row.Scan(dest...); err != nil {
		return models.Project{}, err
	}
	p.Status = models.ProjectStatus(status)
	p.Priority = models.Priority(priority)
	p.Difficulty = models.Difficulty(difficulty)
	p.PillarID = nullInt(pillarID)
	p.OwnerTeamID = nullInt(teamID)
	for i, sc := range models.AssessmentScales {
		*p.Assessment.Ref(sc.Name) = nullString(assessed[i])
	}
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	p.UpdatedAt = nullTime(updatedAt)
	return p, nil
}

// ScanTask scans one row selected with TaskColumns.
func ScanTask(row RowScanner) (models.Task, error) {
	var (
		t                                   models.Task
		phase, status, difficulty, aiPotent string
		teamID                              sql.NullInt64
		dueDate                             sql.NullString
		createdAt                           int64
		updatedAt                           sql.NullInt64
	)
	if err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &phase, &status, &difficulty, &aiPotent, &teamID, &dueDate, &createdAt, &updatedAt); err != nil {
		return models.Task{}, err
	}
	t.Phase = models.Phase(phase)
	t.Status = models.TaskStatus(status)
	t.Difficulty = models.Difficulty(difficulty)
	t.AIPotential = models.AIPotential(aiPotent)
	t.OwnerTeamID = nullInt(teamID)
	t.DueDate = nullString(dueDate)
	t.CreatedAt = time.Unix(createdAt, 0).UTC()
	t.UpdatedAt = nullTime(updatedAt)
	return t, nil
}

// ScanSession scans one row selected with SessionColumns.
func ScanSession(row RowScanner) (models.ReviewSession, error) {
	var (
		s            models.ReviewSession
		area, status string
		startedAt    int64
		completedAt  sql.NullInt64
	)
	if err := row.Scan(&s.ID, &s.ReviewerID, &s.ProjectID, &area, &status, &startedAt, &completedAt); err != nil {
		return models.ReviewSession{}, err
	}
	s.ReviewerArea = models.ReviewerArea(area)
	s.Status = models.SessionStatus(status)
	s.StartedAt = time.Unix(startedAt, 0).UTC()
	s.CompletedAt = nullTime(completedAt)
	return s, nil
}

// ScanFeedback scans one row selected with FeedbackColumns.
func ScanFeedback(row RowScanner) (models.ReviewFeedback, error) {
	var (
		f                    models.ReviewFeedback
		current, comment     sql.NullString
		createdAt, updatedAt int64
	)
	if err := row.Scan(&f.ID, &f.ReviewSessionID, &f.FieldName, &current, &f.ProposedValue, &comment, &createdAt, &updatedAt); err != nil {
		return models.ReviewFeedback{}, err
	}
	f.CurrentValue = nullString(current)
	f.Comment = nullString(comment)
	f.CreatedAt = time.Unix(createdAt, 0).UTC()
	f.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return f, nil
}

// ScanComment scans one row selected with CommentColumns.
func ScanComment(row RowScanner) (models.ReviewComment, error) {
	var (
		c         models.ReviewComment
		taskID    sql.NullInt64
		createdAt int64
	)
	if err := row.Scan(&c.ID, &c.ReviewSessionID, &c.ProjectID, &taskID, &c.Content, &createdAt); err != nil {
		return models.ReviewComment{}, err
	}
	c.TaskID = nullInt(taskID)
	c.CreatedAt = time.Unix(createdAt, 0).UTC()
	return c, nil
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}
