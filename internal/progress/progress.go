// Package progress keeps each project's progress_percentage in line with its tasks.
package progress

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/nuno-ui/abeto-task-manager-sub000/internal/store"
	"github.com/nuno-ui/abeto-task-manager-sub000/pkg/models"
)

// Store is the subset of store.Store the worker needs.
type Store interface {
	ListProjects(ctx context.Context) ([]models.Project, error)
	ListTasks(ctx context.Context, filter store.TaskFilter) ([]models.Task, error)
	SetProjectProgress(ctx context.Context, id int64, pct int) (models.Project, bool, error)
}

// Percentage returns round(100 * completed / total) for tasks. ok is false when there are
// no tasks, in which case the stored value is left alone.
func Percentage(tasks []models.Task) (pct int, ok bool) {
	if len(tasks) == 0 {
		return 0, false
	}
	done := 0
	for _, t := range tasks {
		if t.Status == models.TaskCompleted {
			done++
		}
	}
	return int(math.Round(100 * float64(done) / float64(len(tasks)))), true
}

// Recompute updates every project whose derived percentage differs from the stored one and
// returns the updated projects.
func Recompute(ctx context.Context, st Store) ([]models.Project, error) {
	projects, err := st.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	tasks, err := st.ListTasks(ctx, store.TaskFilter{})
	if err != nil {
		return nil, err
	}
	byProject := make(map[int64][]models.Task, len(projects))
	for _, t := range tasks {
		byProject[t.ProjectID] = append(byProject[t.ProjectID], t)
	}

	var changed []models.Project
	for _, p := range projects {
		pct, ok := Percentage(byProject[p.ID])
		if !ok || pct == p.ProgressPercentage {
			continue
		}
		// Only the percentage column is written, so concurrent edits to other fields survive.
		updated, ok, err := st.SetProjectProgress(ctx, p.ID, pct)
		if err != nil {
			slog.Warn("progress update failed", "project_id", p.ID, "err", err)
			continue
		}
		if ok {
			changed = append(changed, updated)
		}
	}
	return changed, nil
}

// Run recomputes progress every interval until ctx is done. onChange, if set, is called
// for each updated project.
func Run(ctx context.Context, st Store, interval time.Duration, onChange func(models.Project)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			changed, err := Recompute(ctx, st)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Error("progress recompute failed", "err", err)
				continue
			}
			if len(changed) > 0 {
				slog.Info("progress updated", "projects", len(changed))
			}
			if onChange != nil {
				for _, p := range changed {
					onChange(p)
				}
			}
		}
	}
}
