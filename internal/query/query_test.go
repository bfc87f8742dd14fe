package query

import (
	"errors"
	"net/url"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuno-ui/abeto-task-manager-sub000/pkg/models"
)

func ptr[T any](v T) *T { return &v }

func ids[R any](recs []R, id func(R) int64) []int64 {
	out := make([]int64, 0, len(recs))
	for _, r := range recs {
		out = append(out, id(r))
	}
	return out
}

func projectIDs(ps []models.Project) []int64 {
	return ids(ps, func(p models.Project) int64 { return p.ID })
}

func taskIDs(ts []models.Task) []int64 {
	return ids(ts, func(t models.Task) int64 { return t.ID })
}

var base = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func fixtureProjects() []models.Project {
	return []models.Project{
		{ID: 1, Title: "solar quote tool", Status: models.ProjectInProgress, Priority: models.PriorityLow, Difficulty: models.DifficultyEasy, PillarID: ptr(int64(10)), ProgressPercentage: 40, CreatedAt: base},
		{ID: 2, Title: "Battery upsell", Status: models.ProjectIdea, Priority: models.PriorityCritical, Difficulty: models.DifficultyHard, PillarID: ptr(int64(20)), ProgressPercentage: 0, CreatedAt: base.Add(time.Hour)},
		{ID: 3, Title: "CRM cleanup", Status: models.ProjectInProgress, Priority: models.PriorityMedium, Difficulty: models.DifficultyMedium, ProgressPercentage: 90, CreatedAt: base.Add(2 * time.Hour), UpdatedAt: ptr(base.Add(-time.Hour))},
		{ID: 4, Title: "Ads attribution", Status: models.ProjectPlanning, Priority: models.PriorityHigh, Difficulty: models.DifficultyHard, PillarID: ptr(int64(10)), ProgressPercentage: 40, CreatedAt: base.Add(3 * time.Hour)},
	}
}

func TestApply_filterConjunction(t *testing.T) {
	t.Parallel()
	recs := fixtureProjects()

	tests := []struct {
		name    string
		filters map[string]string
		want    []int64
	}{
		{"no filters", nil, []int64{1, 2, 3, 4}},
		{"single field", map[string]string{"status": "in_progress"}, []int64{1, 3}},
		{"conjunction", map[string]string{"status": "in_progress", "pillar_id": "10"}, []int64{1}},
		{"all is ignored", map[string]string{"status": "all", "difficulty": "hard"}, []int64{2, 4}},
		{"unknown field ignored", map[string]string{"colour": "blue", "priority": "high"}, []int64{4}},
		{"absent foreign id never matches", map[string]string{"pillar_id": "0"}, []int64{}},
		{"no match", map[string]string{"status": "cancelled"}, []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Projects.Apply(recs, Spec{Filters: tt.filters})
			require.NoError(t, err)
			assert.Equal(t, tt.want, projectIDs(got))
			for _, p := range got {
				assert.True(t, Projects.Matches(p, tt.filters))
			}
			for _, p := range recs {
				if Projects.Matches(p, tt.filters) {
					assert.Contains(t, projectIDs(got), p.ID)
				}
			}
		})
	}
}

func TestApply_assessmentFilter(t *testing.T) {
	t.Parallel()
	recs := fixtureProjects()
	recs[2].PainPointLevel = ptr("high")

	got, err := Projects.Apply(recs, Spec{Filters: map[string]string{"pain_point_level": "high"}})
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, projectIDs(got))
}

func TestApply_priorityUsesRankTable(t *testing.T) {
	t.Parallel()
	recs := []models.Project{
		{ID: 1, Priority: models.PriorityLow},
		{ID: 2, Priority: models.PriorityCritical},
		{ID: 3, Priority: models.PriorityMedium},
		{ID: 4, Priority: models.PriorityHigh},
	}
	got, err := Projects.Apply(recs, Spec{SortKey: "priority", Direction: Asc})
	require.NoError(t, err)

	var prios []models.Priority
	for _, p := range got {
		prios = append(prios, p.Priority)
	}
	assert.Equal(t, []models.Priority{"critical", "high", "medium", "low"}, prios)
}

func TestApply_phaseUsesRankTable(t *testing.T) {
	t.Parallel()
	recs := []models.Task{
		{ID: 1, Phase: models.PhaseRollout},
		{ID: 2, Phase: models.PhaseDiscovery},
		{ID: 3, Phase: models.PhaseMonitoring},
		{ID: 4, Phase: models.PhaseDevelopment},
		{ID: 5, Phase: models.PhaseTraining},
	}
	got, err := Tasks.Apply(recs, Spec{SortKey: "phase"})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 4, 5, 1, 3}, taskIDs(got))
}

func TestApply_stableAndReversible(t *testing.T) {
	t.Parallel()
	recs := fixtureProjects()

	for _, key := range Projects.SortKeys() {
		t.Run(key, func(t *testing.T) {
			t.Parallel()
			asc, err := Projects.Apply(recs, Spec{SortKey: key, Direction: Asc})
			require.NoError(t, err)
			again, err := Projects.Apply(asc, Spec{SortKey: key, Direction: Asc})
			require.NoError(t, err)
			assert.Equal(t, projectIDs(asc), projectIDs(again), "re-sorting must not reorder")

			desc, err := Projects.Apply(recs, Spec{SortKey: key, Direction: Desc})
			require.NoError(t, err)
			rev := slices.Clone(projectIDs(asc))
			slices.Reverse(rev)
			assert.Equal(t, rev, projectIDs(desc))
		})
	}
}

func TestApply_equalKeysKeepInputOrder(t *testing.T) {
	t.Parallel()
	recs := fixtureProjects()
	got, err := Projects.Apply(recs, Spec{SortKey: "progress_percentage"})
	require.NoError(t, err)
	// 1 and 4 both have 40%; input order 1 before 4 is kept.
	assert.Equal(t, []int64{2, 1, 4, 3}, projectIDs(got))
}

func TestApply_titleCollation(t *testing.T) {
	t.Parallel()
	got, err := Projects.Apply(fixtureProjects(), Spec{SortKey: "title"})
	require.NoError(t, err)
	// Case-insensitive: "solar quote tool" sorts after "CRM cleanup".
	assert.Equal(t, []int64{4, 2, 3, 1}, projectIDs(got))
}

func TestApply_updatedAtFallsBackToCreatedAt(t *testing.T) {
	t.Parallel()
	got, err := Projects.Apply(fixtureProjects(), Spec{SortKey: "updated_at"})
	require.NoError(t, err)
	// Project 3 was created last but its updated_at precedes every created_at.
	assert.Equal(t, []int64{3, 1, 2, 4}, projectIDs(got))
}

func TestApply_missingValuesSortLast(t *testing.T) {
	t.Parallel()
	recs := []models.Task{
		{ID: 1, DueDate: nil},
		{ID: 2, DueDate: ptr("2025-05-01")},
		{ID: 3, DueDate: ptr("2025-01-15")},
	}
	got, err := Tasks.Apply(recs, Spec{SortKey: "due_date"})
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 2, 1}, taskIDs(got))
}

func TestApply_emptyInput(t *testing.T) {
	t.Parallel()
	got, err := Tasks.Apply(nil, Spec{SortKey: "phase", Direction: Desc})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestApply_unknownSortKeyFails(t *testing.T) {
	t.Parallel()
	_, err := Projects.Apply(fixtureProjects(), Spec{SortKey: "colour"})
	var uerr *UnknownSortKeyError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, "colour", uerr.Key)
	assert.Contains(t, uerr.Known, "priority")

	_, err = Projects.Apply(fixtureProjects(), Spec{SortKey: "title", Direction: "sideways"})
	assert.Error(t, err)
}

func TestApply_doesNotMutateInput(t *testing.T) {
	t.Parallel()
	recs := fixtureProjects()
	_, err := Projects.Apply(recs, Spec{SortKey: "priority", Direction: Desc})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3, 4}, projectIDs(recs))
}

func TestParseSpec(t *testing.T) {
	t.Parallel()
	q := url.Values{
		"status":  {"in_progress"},
		"phase":   {""},
		"sort":    {"priority"},
		"dir":     {"DESC"},
		"api_key": {"secret"},
	}
	spec := ParseSpec(q)
	assert.Equal(t, "priority", spec.SortKey)
	assert.Equal(t, Desc, spec.Direction)
	assert.Equal(t, map[string]string{"status": "in_progress"}, spec.Filters)
}
