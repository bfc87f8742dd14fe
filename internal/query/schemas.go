package query

import (
	"strconv"
	"time"

	"github.com/nuno-ui/abeto-task-manager-sub000/pkg/models"
)

// Projects is the schema used by the projects list and the review queue.
var Projects = projectSchema()

// Tasks is the schema used by the tasks list.
var Tasks = taskSchema()

func projectSchema() *Schema[models.Project] {
	s := NewSchema[models.Project]().
		Field("id", func(p models.Project) (string, bool) { return idString(p.ID), true }).
		Field("slug", func(p models.Project) (string, bool) { return p.Slug, true }).
		Field("status", func(p models.Project) (string, bool) { return string(p.Status), true }).
		Field("priority", func(p models.Project) (string, bool) { return string(p.Priority), true }).
		Field("difficulty", func(p models.Project) (string, bool) { return string(p.Difficulty), true }).
		Field("pillar_id", func(p models.Project) (string, bool) { return optID(p.PillarID) }).
		Field("owner_team_id", func(p models.Project) (string, bool) { return optID(p.OwnerTeamID) })
	for _, sc := range models.AssessmentScales {
		field := sc.Name
		s.Field(field, func(p models.Project) (string, bool) { return p.Assessment.Get(field) })
	}
	return s.
		SortText("title", func(p models.Project) (string, bool) { return p.Title, true }).
		SortRank("priority", models.Priorities, func(p models.Project) (string, bool) { return string(p.Priority), true }).
		SortRank("status", models.ProjectStatuses, func(p models.Project) (string, bool) { return string(p.Status), true }).
		SortRank("difficulty", models.Difficulties, func(p models.Project) (string, bool) { return string(p.Difficulty), true }).
		SortNumber("progress_percentage", func(p models.Project) (float64, bool) { return float64(p.ProgressPercentage), true }).
		SortTime("created_at", func(p models.Project) (time.Time, bool) { return p.CreatedAt, !p.CreatedAt.IsZero() }).
		SortTime("updated_at", func(p models.Project) (time.Time, bool) { return lastTouched(p.CreatedAt, p.UpdatedAt) })
}

func taskSchema() *Schema[models.Task] {
	return NewSchema[models.Task]().
		Field("id", func(t models.Task) (string, bool) { return idString(t.ID), true }).
		Field("project_id", func(t models.Task) (string, bool) { return idString(t.ProjectID), true }).
		Field("phase", func(t models.Task) (string, bool) { return string(t.Phase), true }).
		Field("status", func(t models.Task) (string, bool) { return string(t.Status), true }).
		Field("difficulty", func(t models.Task) (string, bool) { return string(t.Difficulty), true }).
		Field("ai_potential", func(t models.Task) (string, bool) { return string(t.AIPotential), true }).
		Field("owner_team_id", func(t models.Task) (string, bool) { return optID(t.OwnerTeamID) }).
		Field("due_date", func(t models.Task) (string, bool) { return optString(t.DueDate) }).
		SortText("title", func(t models.Task) (string, bool) { return t.Title, true }).
		SortRank("phase", models.Phases, func(t models.Task) (string, bool) { return string(t.Phase), true }).
		SortRank("status", models.TaskStatuses, func(t models.Task) (string, bool) { return string(t.Status), true }).
		SortRank("difficulty", models.Difficulties, func(t models.Task) (string, bool) { return string(t.Difficulty), true }).
		SortRank("ai_potential", models.AIPotentials, func(t models.Task) (string, bool) { return string(t.AIPotential), true }).
		SortTime("due_date", func(t models.Task) (time.Time, bool) { return dueDate(t.DueDate) }).
		SortTime("created_at", func(t models.Task) (time.Time, bool) { return t.CreatedAt, !t.CreatedAt.IsZero() }).
		SortTime("updated_at", func(t models.Task) (time.Time, bool) { return lastTouched(t.CreatedAt, t.UpdatedAt) })
}

func idString(id int64) string { return strconv.FormatInt(id, 10) }

func optID(id *int64) (string, bool) {
	if id == nil {
		return "", false
	}
	return idString(*id), true
}

func optString(s *string) (string, bool) {
	if s == nil || *s == "" {
		return "", false
	}
	return *s, true
}

// lastTouched is updated_at, falling back to created_at for never-updated records.
func lastTouched(created time.Time, updated *time.Time) (time.Time, bool) {
	if updated != nil && !updated.IsZero() {
		return *updated, true
	}
	return created, !created.IsZero()
}

func dueDate(s *string) (time.Time, bool) {
	v, ok := optString(s)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(models.DueDateLayout, v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
