package seed

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuno-ui/abeto-task-manager-sub000/internal/store"
	"github.com/nuno-ui/abeto-task-manager-sub000/pkg/models"
)

func openStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestDefaultDatasetIsIdempotent(t *testing.T) {
	t.Parallel()
	st := openStore(t)
	ctx := context.Background()

	first, err := Apply(ctx, st, Default())
	require.NoError(t, err)
	assert.Equal(t, 3, first.Pillars)
	assert.Equal(t, 3, first.Teams)
	assert.Equal(t, 4, first.ProjectsCreated)
	assert.Equal(t, 6, first.TasksCreated)
	assert.Zero(t, first.ProjectsUpdated)

	second, err := Apply(ctx, st, Default())
	require.NoError(t, err)
	assert.Zero(t, second.Pillars)
	assert.Zero(t, second.Teams)
	assert.Zero(t, second.ProjectsCreated)
	assert.Zero(t, second.TasksCreated)
	assert.Equal(t, 4, second.ProjectsUpdated)
	assert.Equal(t, 6, second.TasksUpdated)

	projects, err := st.ListProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, projects, 4)
	tasks, err := st.ListTasks(ctx, store.TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, tasks, 6)
}

func TestApplyResolvesNamesAndAssessment(t *testing.T) {
	t.Parallel()
	st := openStore(t)
	ctx := context.Background()
	_, err := Apply(ctx, st, Default())
	require.NoError(t, err)

	projects, err := st.ListProjects(ctx)
	require.NoError(t, err)
	var crm models.Project
	for _, p := range projects {
		if p.Slug == "crm-unification" {
			crm = p
		}
	}
	require.NotZero(t, crm.ID)
	assert.Equal(t, models.PriorityCritical, crm.Priority)
	require.NotNil(t, crm.PillarID)
	require.NotNil(t, crm.DataReadiness)
	assert.Equal(t, "partial", *crm.DataReadiness)
	assert.Nil(t, crm.ROIConfidence)

	pillars, err := st.ListPillars(ctx)
	require.NoError(t, err)
	names := map[int64]string{}
	for _, p := range pillars {
		names[p.ID] = p.Name
	}
	assert.Equal(t, "Data Foundation", names[*crm.PillarID])
}

func TestApplyUpdatesChangedFields(t *testing.T) {
	t.Parallel()
	st := openStore(t)
	ctx := context.Background()
	_, err := Apply(ctx, st, Default())
	require.NoError(t, err)

	f, err := Parse([]byte(`
projects:
  - slug: lead-scoring
    status: in_progress
    tasks:
      - title: Label historical leads
        phase: planning
`))
	require.NoError(t, err)
	sum, err := Apply(ctx, st, f)
	require.NoError(t, err)
	assert.Equal(t, Summary{ProjectsUpdated: 1, TasksCreated: 1}, sum)

	projects, err := st.ListProjects(ctx)
	require.NoError(t, err)
	for _, p := range projects {
		if p.Slug == "lead-scoring" {
			assert.Equal(t, models.ProjectInProgress, p.Status)
			assert.Equal(t, "Lead scoring model", p.Title, "fields absent from the file are kept")
		}
	}
}

func TestApplyRejectsBadInput(t *testing.T) {
	t.Parallel()
	st := openStore(t)
	ctx := context.Background()
	var verr *store.ValidationError

	f, err := Parse([]byte("projects:\n  - slug: x\n    title: X\n    pillar: Nowhere\n"))
	require.NoError(t, err)
	_, err = Apply(ctx, st, f)
	assert.True(t, errors.As(err, &verr), "%v", err)

	f, err = Parse([]byte("projects:\n  - slug: x\n    title: X\n    assessment:\n      vibes: good\n"))
	require.NoError(t, err)
	_, err = Apply(ctx, st, f)
	assert.True(t, errors.As(err, &verr), "%v", err)

	f, err = Parse([]byte("projects:\n  - slug: x\n    title: X\n    priority: urgent\n"))
	require.NoError(t, err)
	_, err = Apply(ctx, st, f)
	assert.True(t, errors.As(err, &verr), "%v", err)

	_, err = Parse([]byte("projects:\n  - slug: x\n    colour: red\n"))
	assert.Error(t, err, "unknown keys are rejected")
}

func TestLoadFile(t *testing.T) {
	t.Parallel()
	f, err := LoadFile("")
	require.NoError(t, err)
	assert.Len(t, f.Projects, 4)

	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("teams:\n  - name: Finance\n"), 0o644))
	f, err = LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []Named{{Name: "Finance"}}, f.Teams)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
