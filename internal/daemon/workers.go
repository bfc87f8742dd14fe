package daemon

import (
	"context"
	"time"

	"github.com/nuno-ui/abeto-task-manager-sub000/internal/httpapi"
	"github.com/nuno-ui/abeto-task-manager-sub000/internal/otel"
	"github.com/nuno-ui/abeto-task-manager-sub000/internal/progress"
	"github.com/nuno-ui/abeto-task-manager-sub000/internal/store"
	"github.com/nuno-ui/abeto-task-manager-sub000/pkg/models"
)

// runProgress keeps project progress in line with task completion and tells stream
// subscribers about every project it touched.
func runProgress(ctx context.Context, app *httpapi.App, interval time.Duration) {
	progress.Run(ctx, app.Store, interval, func(p models.Project) {
		publishProjectUpdate(app, p)
	})
}

func publishProjectUpdate(app *httpapi.App, p models.Project) {
	otel.RecordOp(context.Background(), "project", "progress")
	app.Publish(httpapi.Event{Type: "project_update", Action: "update", ID: p.ID})
}

// projectCounts feeds the abeto_projects gauge.
func projectCounts(st store.Store) otel.ProjectCountFunc {
	return func(ctx context.Context) (map[string]int64, error) {
		projects, err := st.ListProjects(ctx)
		if err != nil {
			return nil, err
		}
		counts := make(map[string]int64, len(models.ProjectStatuses.Options))
		for _, s := range models.ProjectStatuses.Options {
			counts[s] = 0
		}
		for _, p := range projects {
			counts[string(p.Status)]++
		}
		return counts, nil
	}
}
