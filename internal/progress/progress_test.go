package progress

import (
	"context"
	"sync"
	"testing"
	"time"

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

func addTasks(t *testing.T, st store.Store, projectID int64, statuses ...models.TaskStatus) {
	t.Helper()
	for i, s := range statuses {
		_, err := st.CreateTask(context.Background(), models.TaskInput{
			ProjectID: projectID,
			Title:     "task " + string(rune('a'+i)),
			Status:    s,
		})
		require.NoError(t, err)
	}
}

func TestPercentage(t *testing.T) {
	t.Parallel()
	_, ok := Percentage(nil)
	assert.False(t, ok)

	tasks := []models.Task{{Status: models.TaskCompleted}, {Status: models.TaskInProgress}, {Status: models.TaskBlocked}}
	pct, ok := Percentage(tasks)
	assert.True(t, ok)
	assert.Equal(t, 33, pct)

	pct, _ = Percentage(tasks[:2])
	assert.Equal(t, 50, pct)
	pct, _ = Percentage([]models.Task{{Status: models.TaskCompleted}, {Status: models.TaskCompleted}, {Status: models.TaskNotStarted}})
	assert.Equal(t, 67, pct)
}

func TestRecompute(t *testing.T) {
	t.Parallel()
	st := openStore(t)
	ctx := context.Background()
	half, err := st.CreateProject(ctx, models.ProjectInput{Slug: "half", Title: "Half"})
	require.NoError(t, err)
	empty, err := st.CreateProject(ctx, models.ProjectInput{Slug: "empty", Title: "Empty"})
	require.NoError(t, err)
	manual := 40
	_, err = st.UpdateProject(ctx, empty.ID, models.ProjectPatch{ProgressPercentage: &manual})
	require.NoError(t, err)
	addTasks(t, st, half.ID, models.TaskCompleted, models.TaskNotStarted)

	changed, err := Recompute(ctx, st)
	require.NoError(t, err)
	require.Len(t, changed, 1)
	assert.Equal(t, half.ID, changed[0].ID)
	assert.Equal(t, 50, changed[0].ProgressPercentage)
	assert.Nil(t, changed[0].UpdatedAt, "derived progress is not a user edit")

	got, err := st.GetProject(ctx, empty.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, got.ProgressPercentage, "a project without tasks keeps its value")

	changed, err = Recompute(ctx, st)
	require.NoError(t, err)
	assert.Empty(t, changed, "second pass is a no-op")
}

// editingStore renames a project after the task listing, as a concurrent PATCH would.
type editingStore struct {
	store.Store
	edit func()
}

func (s editingStore) ListTasks(ctx context.Context, f store.TaskFilter) ([]models.Task, error) {
	tasks, err := s.Store.ListTasks(ctx, f)
	s.edit()
	return tasks, err
}

func TestRecompute_keepsConcurrentEdits(t *testing.T) {
	t.Parallel()
	st := openStore(t)
	ctx := context.Background()
	p, err := st.CreateProject(ctx, models.ProjectInput{Slug: "crm", Title: "CRM"})
	require.NoError(t, err)
	addTasks(t, st, p.ID, models.TaskCompleted, models.TaskCompleted, models.TaskNotStarted, models.TaskNotStarted)

	var edited models.Project
	es := editingStore{Store: st, edit: func() {
		crit := models.PriorityCritical
		edited, err = st.UpdateProject(ctx, p.ID, models.ProjectPatch{Title: ptr("CRM v2"), Priority: &crit})
		require.NoError(t, err)
	}}

	changed, err := Recompute(ctx, es)
	require.NoError(t, err)
	require.Len(t, changed, 1)

	got, err := st.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, got.ProgressPercentage)
	assert.Equal(t, "CRM v2", got.Title)
	assert.Equal(t, models.PriorityCritical, got.Priority)
	require.NotNil(t, got.UpdatedAt)
	assert.True(t, got.UpdatedAt.Equal(*edited.UpdatedAt), "progress write must not bump updated_at")
}

func ptr[T any](v T) *T { return &v }

func TestRun_publishesChanges(t *testing.T) {
	t.Parallel()
	st := openStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p, err := st.CreateProject(ctx, models.ProjectInput{Slug: "p", Title: "P"})
	require.NoError(t, err)
	addTasks(t, st, p.ID, models.TaskCompleted)

	var mu sync.Mutex
	var seen []models.Project
	done := make(chan struct{})
	go func() {
		Run(ctx, st, 10*time.Millisecond, func(p models.Project) {
			mu.Lock()
			seen = append(seen, p)
			mu.Unlock()
		})
		close(done)
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 100, seen[0].ProgressPercentage)
}
