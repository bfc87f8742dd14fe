package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/nuno-ui/abeto-task-manager-sub000/internal/store"
	"github.com/nuno-ui/abeto-task-manager-sub000/pkg/models"
)

func TestParams(t *testing.T) {
	if got := params(3, 2); got != "$3, $4" {
		t.Fatalf("params(3, 2) = %q", got)
	}
}

func TestOpen_requiresDSN(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := Open(""); err == nil {
		t.Fatal("expected error without DSN")
	}
}

func TestOpen_skipIfNoDatabaseURL(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping postgres test")
	}
	st, err := Open(dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = st.Close() }()
	ctx := context.Background()

	teams, err := st.ListTeams(ctx)
	if err != nil {
		t.Fatalf("ListTeams: %v", err)
	}
	if teams == nil {
		t.Fatal("teams should not be nil")
	}

	// Unique slug per run so the test can share a database.
	slug := "pg-" + uuid.NewString()[:8]
	p, err := st.CreateProject(ctx, models.ProjectInput{Slug: slug, Title: "pg project"})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	defer func() { _ = st.DeleteProject(ctx, p.ID) }()

	a, err := st.StartReviewSession(ctx, "pg-tester", p.ID, models.AreaManagement)
	if err != nil {
		t.Fatalf("StartReviewSession: %v", err)
	}
	b, err := st.StartReviewSession(ctx, "pg-tester", p.ID, models.AreaManagement)
	if err != nil || b.ID != a.ID {
		t.Fatalf("expected open session reuse: %s vs %s (%v)", a.ID, b.ID, err)
	}
	if _, err := st.UpsertReviewFeedback(ctx, models.ReviewFeedbackInput{ReviewSessionID: a.ID, FieldName: "priority", ProposedValue: "high"}); err != nil {
		t.Fatalf("UpsertReviewFeedback: %v", err)
	}
	if _, err := st.CompleteReviewSession(ctx, a.ID); err != nil {
		t.Fatalf("CompleteReviewSession: %v", err)
	}
	if _, err := st.UpsertReviewFeedback(ctx, models.ReviewFeedbackInput{ReviewSessionID: a.ID, FieldName: "priority", ProposedValue: "low"}); !errors.Is(err, store.ErrSessionClosed) {
		t.Fatalf("want ErrSessionClosed, got %v", err)
	}
	if _, err := st.CreateProject(ctx, models.ProjectInput{Slug: slug, Title: "dup"}); err == nil {
		t.Fatal("duplicate slug: expected error")
	}
}
