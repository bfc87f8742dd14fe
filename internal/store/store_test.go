package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/nuno-ui/abeto-task-manager-sub000/pkg/models"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	home := filepath.Join(t.TempDir(), "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatal(err)
	}
	st, err := Open(home)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func ptr[T any](v T) *T { return &v }

func mustProject(t *testing.T, st Store, slug string) models.Project {
	t.Helper()
	p, err := st.CreateProject(context.Background(), models.ProjectInput{Slug: slug, Title: "Project " + slug})
	if err != nil {
		t.Fatalf("CreateProject(%s): %v", slug, err)
	}
	return p
}

func TestMigrationsAndBasicCRUD(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	pillar, err := st.CreatePillar(ctx, "Data Foundation", "")
	if err != nil {
		t.Fatalf("CreatePillar: %v", err)
	}
	team, err := st.CreateTeam(ctx, "Operations", "ops")
	if err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}
	if got, err := st.GetTeam(ctx, team.ID); err != nil || got.Name != "Operations" {
		t.Fatalf("GetTeam: got %+v, %v", got, err)
	}

	p, err := st.CreateProject(ctx, models.ProjectInput{
		Slug: "solar-quotes", Title: "Solar quotes", PillarID: &pillar.ID, OwnerTeamID: &team.ID,
		Assessment: models.Assessment{PainPointLevel: ptr("high")},
	})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if p.Status != models.DefaultProjectStatus || p.Priority != models.DefaultPriority || p.Difficulty != models.DefaultDifficulty {
		t.Fatalf("CreateProject defaults: got %+v", p)
	}
	if p.PillarID == nil || *p.PillarID != pillar.ID || p.PainPointLevel == nil || *p.PainPointLevel != "high" {
		t.Fatalf("CreateProject fields: got %+v", p)
	}
	if p.UpdatedAt != nil {
		t.Fatalf("new project should have no updated_at, got %v", p.UpdatedAt)
	}

	prio := models.PriorityCritical
	up, err := st.UpdateProject(ctx, p.ID, models.ProjectPatch{
		Priority:           &prio,
		ProgressPercentage: ptr(40),
		Assessment:         models.Assessment{PainPointLevel: ptr(""), AdoptionRisk: ptr("low")},
	})
	if err != nil {
		t.Fatalf("UpdateProject: %v", err)
	}
	if up.Priority != prio || up.ProgressPercentage != 40 || up.UpdatedAt == nil {
		t.Fatalf("UpdateProject: got %+v", up)
	}
	if up.PainPointLevel != nil || up.AdoptionRisk == nil || *up.AdoptionRisk != "low" {
		t.Fatalf("UpdateProject assessment: got %+v", up.Assessment)
	}
	if up.Title != p.Title {
		t.Fatalf("UpdateProject must leave title alone, got %q", up.Title)
	}

	task, err := st.CreateTask(ctx, models.TaskInput{ProjectID: p.ID, Title: "Collect quotes", DueDate: ptr("2025-06-30")})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task.Phase != models.DefaultPhase || task.Status != models.DefaultTaskStatus || task.AIPotential != models.DefaultAIPotential {
		t.Fatalf("CreateTask defaults: got %+v", task)
	}
	done := models.TaskCompleted
	task, err = st.UpdateTask(ctx, task.ID, models.TaskPatch{Status: &done, DueDate: ptr("")})
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if task.Status != done || task.DueDate != nil {
		t.Fatalf("UpdateTask: got %+v", task)
	}

	tasks, err := st.ListTasks(ctx, TaskFilter{ProjectID: p.ID})
	if err != nil || len(tasks) != 1 {
		t.Fatalf("ListTasks: got %d, %v", len(tasks), err)
	}

	projects, err := st.ListProjects(ctx)
	if err != nil || len(projects) != 1 {
		t.Fatalf("ListProjects: got %d, %v", len(projects), err)
	}

	if err := st.DeleteProject(ctx, p.ID); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	if _, err := st.GetTask(ctx, task.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("tasks should cascade with their project, got %v", err)
	}
}

func TestStoreValidation(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()
	p := mustProject(t, st, "p1")

	var verr *ValidationError
	cases := []struct {
		name string
		err  error
	}{
		{"empty team", func() error { _, err := st.CreateTeam(ctx, " ", ""); return err }()},
		{"missing slug", func() error { _, err := st.CreateProject(ctx, models.ProjectInput{Title: "x"}); return err }()},
		{"duplicate slug", func() error { _, err := st.CreateProject(ctx, models.ProjectInput{Slug: "p1", Title: "x"}); return err }()},
		{"bad priority", func() error {
			_, err := st.CreateProject(ctx, models.ProjectInput{Slug: "p2", Title: "x", Priority: "urgent"})
			return err
		}()},
		{"bad assessment", func() error {
			_, err := st.UpdateProject(ctx, p.ID, models.ProjectPatch{Assessment: models.Assessment{TimeHorizon: ptr("forever")}})
			return err
		}()},
		{"progress out of range", func() error {
			_, err := st.UpdateProject(ctx, p.ID, models.ProjectPatch{ProgressPercentage: ptr(101)})
			return err
		}()},
		{"progress setter out of range", func() error {
			_, _, err := st.SetProjectProgress(ctx, p.ID, -1)
			return err
		}()},
		{"dangling pillar", func() error {
			_, err := st.CreateProject(ctx, models.ProjectInput{Slug: "p3", Title: "x", PillarID: ptr(int64(999))})
			return err
		}()},
		{"task without project", func() error {
			_, err := st.CreateTask(ctx, models.TaskInput{ProjectID: 999, Title: "orphan"})
			return err
		}()},
		{"bad due date", func() error {
			_, err := st.CreateTask(ctx, models.TaskInput{ProjectID: p.ID, Title: "t", DueDate: ptr("next week")})
			return err
		}()},
		{"bad area", func() error {
			_, err := st.StartReviewSession(ctx, "alice", p.ID, "finance")
			return err
		}()},
	}
	for _, tc := range cases {
		if !errors.As(tc.err, &verr) {
			t.Errorf("%s: want *ValidationError, got %v", tc.name, tc.err)
		}
	}

	if _, err := st.GetProject(ctx, 12345); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetProject missing: want ErrNotFound, got %v", err)
	}
	if _, err := st.UpdateTask(ctx, 12345, models.TaskPatch{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdateTask missing: want ErrNotFound, got %v", err)
	}
	if err := st.DeleteTask(ctx, 12345); !errors.Is(err, ErrNotFound) {
		t.Fatalf("DeleteTask missing: want ErrNotFound, got %v", err)
	}
	if _, err := st.StartReviewSession(ctx, "alice", 12345, models.AreaManagement); !errors.Is(err, ErrNotFound) {
		t.Fatalf("StartReviewSession missing project: want ErrNotFound, got %v", err)
	}
}

func TestSetProjectProgress(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()
	p := mustProject(t, st, "p1")

	got, changed, err := st.SetProjectProgress(ctx, p.ID, 60)
	if err != nil || !changed {
		t.Fatalf("SetProjectProgress: changed=%v err=%v", changed, err)
	}
	if got.ProgressPercentage != 60 || got.UpdatedAt != nil {
		t.Fatalf("progress write must not stamp updated_at: %+v", got)
	}

	edited, err := st.UpdateProject(ctx, p.ID, models.ProjectPatch{Title: ptr("Renamed")})
	if err != nil {
		t.Fatalf("UpdateProject: %v", err)
	}
	got, changed, err = st.SetProjectProgress(ctx, p.ID, 80)
	if err != nil || !changed {
		t.Fatalf("SetProjectProgress: changed=%v err=%v", changed, err)
	}
	if got.Title != "Renamed" || got.UpdatedAt == nil || !got.UpdatedAt.Equal(*edited.UpdatedAt) {
		t.Fatalf("progress write touched other columns: %+v", got)
	}

	if _, changed, err := st.SetProjectProgress(ctx, p.ID, 80); err != nil || changed {
		t.Fatalf("same value: changed=%v err=%v", changed, err)
	}
	if _, changed, err := st.SetProjectProgress(ctx, 12345, 10); err != nil || changed {
		t.Fatalf("missing project: changed=%v err=%v", changed, err)
	}
}

func TestStartReviewSessionReturnsOpenSession(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()
	p := mustProject(t, st, "p1")

	first, err := st.StartReviewSession(ctx, "alice", p.ID, models.AreaManagement)
	if err != nil {
		t.Fatalf("StartReviewSession: %v", err)
	}
	if first.Status != models.SessionInProgress || first.ID == "" {
		t.Fatalf("StartReviewSession: got %+v", first)
	}
	again, err := st.StartReviewSession(ctx, "alice", p.ID, models.AreaManagement)
	if err != nil {
		t.Fatalf("StartReviewSession again: %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("expected the open session %s to be reused, got %s", first.ID, again.ID)
	}
	other, err := st.StartReviewSession(ctx, "alice", p.ID, models.AreaProductTech)
	if err != nil {
		t.Fatalf("StartReviewSession other area: %v", err)
	}
	if other.ID == first.ID {
		t.Fatal("a different area must get its own session")
	}

	done, err := st.CompleteReviewSession(ctx, first.ID)
	if err != nil {
		t.Fatalf("CompleteReviewSession: %v", err)
	}
	if done.Status != models.SessionCompleted || done.CompletedAt == nil {
		t.Fatalf("CompleteReviewSession: got %+v", done)
	}
	twice, err := st.CompleteReviewSession(ctx, first.ID)
	if err != nil || !twice.CompletedAt.Equal(*done.CompletedAt) {
		t.Fatalf("completing twice must be a no-op: got %+v, %v", twice, err)
	}

	fresh, err := st.StartReviewSession(ctx, "alice", p.ID, models.AreaManagement)
	if err != nil {
		t.Fatalf("StartReviewSession after completion: %v", err)
	}
	if fresh.ID == first.ID {
		t.Fatal("a completed session must not be reopened")
	}

	sessions, err := st.ListReviewSessions(ctx, SessionFilter{ReviewerID: "alice", Area: models.AreaManagement})
	if err != nil || len(sessions) != 2 {
		t.Fatalf("ListReviewSessions: got %d, %v", len(sessions), err)
	}
	completed, _ := st.ListReviewSessions(ctx, SessionFilter{Status: models.SessionCompleted})
	if len(completed) != 1 || completed[0].ID != first.ID {
		t.Fatalf("ListReviewSessions completed: got %+v", completed)
	}
}

func TestStartReviewSessionConcurrent(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()
	p := mustProject(t, st, "p1")

	const n = 8
	ids := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess, err := st.StartReviewSession(ctx, "bob", p.ID, models.AreaOperationsSales)
			ids[i], errs[i] = sess.ID, err
		}()
	}
	wg.Wait()
	for i := range n {
		if errs[i] != nil {
			t.Fatalf("StartReviewSession[%d]: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Fatalf("concurrent starts produced different sessions: %v", ids)
		}
	}
	open, _ := st.ListReviewSessions(ctx, SessionFilter{ReviewerID: "bob", Status: models.SessionInProgress})
	if len(open) != 1 {
		t.Fatalf("expected exactly one open session, got %d", len(open))
	}
}

func TestReviewFeedbackAndComments(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()
	p := mustProject(t, st, "p1")
	other := mustProject(t, st, "p2")
	task, err := st.CreateTask(ctx, models.TaskInput{ProjectID: p.ID, Title: "t1"})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	sess, err := st.StartReviewSession(ctx, "carol", p.ID, models.AreaProductTech)
	if err != nil {
		t.Fatalf("StartReviewSession: %v", err)
	}

	f1, err := st.UpsertReviewFeedback(ctx, models.ReviewFeedbackInput{ReviewSessionID: sess.ID, FieldName: "difficulty", CurrentValue: ptr("medium"), ProposedValue: "hard"})
	if err != nil {
		t.Fatalf("UpsertReviewFeedback: %v", err)
	}
	f2, err := st.UpsertReviewFeedback(ctx, models.ReviewFeedbackInput{ReviewSessionID: sess.ID, FieldName: "difficulty", CurrentValue: ptr("medium"), ProposedValue: "easy", Comment: ptr("reconsidered")})
	if err != nil {
		t.Fatalf("UpsertReviewFeedback again: %v", err)
	}
	if f2.ID != f1.ID || f2.ProposedValue != "easy" || f2.Comment == nil {
		t.Fatalf("answering twice must replace the answer: got %+v", f2)
	}
	fb, err := st.ListReviewFeedback(ctx, sess.ID)
	if err != nil || len(fb) != 1 {
		t.Fatalf("ListReviewFeedback: got %d, %v", len(fb), err)
	}

	c, err := st.CreateReviewComment(ctx, models.ReviewCommentInput{ReviewSessionID: sess.ID, ProjectID: p.ID, TaskID: &task.ID, Content: " needs a spike "})
	if err != nil {
		t.Fatalf("CreateReviewComment: %v", err)
	}
	if c.Content != "needs a spike" || c.TaskID == nil || *c.TaskID != task.ID {
		t.Fatalf("CreateReviewComment: got %+v", c)
	}
	var verr *ValidationError
	if _, err := st.CreateReviewComment(ctx, models.ReviewCommentInput{ReviewSessionID: sess.ID, ProjectID: other.ID, Content: "x"}); !errors.As(err, &verr) {
		t.Fatalf("comment on another project: want *ValidationError, got %v", err)
	}
	comments, err := st.ListReviewComments(ctx, sess.ID)
	if err != nil || len(comments) != 1 {
		t.Fatalf("ListReviewComments: got %d, %v", len(comments), err)
	}

	if _, err := st.CompleteReviewSession(ctx, sess.ID); err != nil {
		t.Fatalf("CompleteReviewSession: %v", err)
	}
	if _, err := st.UpsertReviewFeedback(ctx, models.ReviewFeedbackInput{ReviewSessionID: sess.ID, FieldName: "status", ProposedValue: "idea"}); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("feedback on completed session: want ErrSessionClosed, got %v", err)
	}
	if _, err := st.CreateReviewComment(ctx, models.ReviewCommentInput{ReviewSessionID: sess.ID, ProjectID: p.ID, Content: "late"}); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("comment on completed session: want ErrSessionClosed, got %v", err)
	}
	if _, err := st.UpsertReviewFeedback(ctx, models.ReviewFeedbackInput{ReviewSessionID: "nope", FieldName: "status", ProposedValue: "idea"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("feedback on unknown session: want ErrNotFound, got %v", err)
	}
}

func TestOpenWithOptions(t *testing.T) {
	t.Parallel()
	if _, err := OpenWithOptions(OpenOptions{Driver: "postgres"}); err == nil {
		t.Fatal("OpenWithOptions postgres: expected error")
	}
	if _, err := OpenWithOptions(OpenOptions{}); err == nil {
		t.Fatal("OpenWithOptions without home: expected error")
	}
	dir := t.TempDir()
	st, err := OpenWithOptions(OpenOptions{Driver: "sqlite", Home: dir})
	if err != nil {
		t.Fatalf("OpenWithOptions sqlite: %v", err)
	}
	_ = st.Close()

	// Reopening must not re-run applied migrations.
	if err := EnsureSchema(dir); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
}

func TestParseMigrationVersion(t *testing.T) {
	t.Parallel()
	if v, err := parseMigrationVersion("001_init.sql"); err != nil || v != 1 {
		t.Fatalf("got %d, %v", v, err)
	}
	if _, err := parseMigrationVersion("init.sql"); err == nil {
		t.Fatal("expected error for unnumbered file")
	}
}
