// Package seed loads pillars, teams, projects and tasks from YAML into the record store.
// Loading is an upsert: pillars and teams match by name, projects by slug and tasks by
// project and title, so running the same file twice creates nothing new.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nuno-ui/abeto-task-manager-sub000/internal/store"
	"github.com/nuno-ui/abeto-task-manager-sub000/pkg/models"
)

//go:embed default.yaml
var defaultData []byte

// File is the seed document.
type File struct {
	Pillars  []Named   `yaml:"pillars"`
	Teams    []Named   `yaml:"teams"`
	Projects []Project `yaml:"projects"`
}

// Named is a pillar or team.
type Named struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Project is a seeded project with its tasks. Pillar and OwnerTeam refer to names.
type Project struct {
	Slug        string            `yaml:"slug"`
	Title       string            `yaml:"title"`
	Description string            `yaml:"description"`
	Status      string            `yaml:"status"`
	Priority    string            `yaml:"priority"`
	Difficulty  string            `yaml:"difficulty"`
	Pillar      string            `yaml:"pillar"`
	OwnerTeam   string            `yaml:"owner_team"`
	Assessment  map[string]string `yaml:"assessment"`
	Tasks       []Task            `yaml:"tasks"`
}

// Task is a seeded task.
type Task struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Phase       string `yaml:"phase"`
	Status      string `yaml:"status"`
	Difficulty  string `yaml:"difficulty"`
	AIPotential string `yaml:"ai_potential"`
	OwnerTeam   string `yaml:"owner_team"`
	DueDate     string `yaml:"due_date"`
}

// Summary counts what a load changed.
type Summary struct {
	Pillars         int `json:"pillars"`
	Teams           int `json:"teams"`
	ProjectsCreated int `json:"projects_created"`
	ProjectsUpdated int `json:"projects_updated"`
	TasksCreated    int `json:"tasks_created"`
	TasksUpdated    int `json:"tasks_updated"`
}

// Parse decodes a seed document, rejecting unknown keys.
func Parse(data []byte) (File, error) {
	var f File
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return File{}, fmt.Errorf("parse seed: %w", err)
	}
	return f, nil
}

// Default returns the embedded dataset.
func Default() File {
	f, err := Parse(defaultData)
	if err != nil {
		panic(err)
	}
	return f
}

// LoadFile reads and parses path; an empty path yields the embedded dataset.
func LoadFile(path string) (File, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}
	return Parse(data)
}

// Apply upserts f into st.
func Apply(ctx context.Context, st store.Store, f File) (Summary, error) {
	var sum Summary
	pillars, err := pillarIDs(ctx, st, f.Pillars, &sum)
	if err != nil {
		return sum, err
	}
	teams, err := teamIDs(ctx, st, f.Teams, &sum)
	if err != nil {
		return sum, err
	}

	existing, err := st.ListProjects(ctx)
	if err != nil {
		return sum, err
	}
	bySlug := make(map[string]models.Project, len(existing))
	for _, p := range existing {
		bySlug[p.Slug] = p
	}

	for _, sp := range f.Projects {
		pillarID, err := lookup(pillars, "pillar", sp.Pillar)
		if err != nil {
			return sum, fmt.Errorf("project %s: %w", sp.Slug, err)
		}
		teamID, err := lookup(teams, "team", sp.OwnerTeam)
		if err != nil {
			return sum, fmt.Errorf("project %s: %w", sp.Slug, err)
		}
		var a models.Assessment
		for field, v := range sp.Assessment {
			ref := a.Ref(field)
			if ref == nil {
				return sum, store.Invalid(fmt.Errorf("project %s: unknown assessment field %q", sp.Slug, field))
			}
			*ref = &v
		}

		var proj models.Project
		if cur, ok := bySlug[sp.Slug]; ok {
			proj, err = st.UpdateProject(ctx, cur.ID, projectPatch(sp, pillarID, teamID, a))
			if err != nil {
				return sum, fmt.Errorf("update project %s: %w", sp.Slug, err)
			}
			sum.ProjectsUpdated++
		} else {
			proj, err = st.CreateProject(ctx, models.ProjectInput{
				Slug:        sp.Slug,
				Title:       sp.Title,
				Description: sp.Description,
				Status:      models.ProjectStatus(sp.Status),
				Priority:    models.Priority(sp.Priority),
				Difficulty:  models.Difficulty(sp.Difficulty),
				PillarID:    pillarID,
				OwnerTeamID: teamID,
				Assessment:  a,
			})
			if err != nil {
				return sum, fmt.Errorf("create project %s: %w", sp.Slug, err)
			}
			bySlug[sp.Slug] = proj
			sum.ProjectsCreated++
		}
		if err := applyTasks(ctx, st, proj.ID, sp.Tasks, teams, &sum); err != nil {
			return sum, fmt.Errorf("project %s: %w", sp.Slug, err)
		}
	}
	slog.Info("seed applied",
		"pillars", sum.Pillars, "teams", sum.Teams,
		"projects_created", sum.ProjectsCreated, "projects_updated", sum.ProjectsUpdated,
		"tasks_created", sum.TasksCreated, "tasks_updated", sum.TasksUpdated)
	return sum, nil
}

func pillarIDs(ctx context.Context, st store.Store, want []Named, sum *Summary) (map[string]int64, error) {
	have, err := st.ListPillars(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]int64, len(have))
	for _, p := range have {
		ids[p.Name] = p.ID
	}
	for _, n := range want {
		if _, ok := ids[n.Name]; ok {
			continue
		}
		p, err := st.CreatePillar(ctx, n.Name, n.Description)
		if err != nil {
			return nil, fmt.Errorf("create pillar %q: %w", n.Name, err)
		}
		ids[p.Name] = p.ID
		sum.Pillars++
	}
	return ids, nil
}

func teamIDs(ctx context.Context, st store.Store, want []Named, sum *Summary) (map[string]int64, error) {
	have, err := st.ListTeams(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]int64, len(have))
	for _, t := range have {
		ids[t.Name] = t.ID
	}
	for _, n := range want {
		if _, ok := ids[n.Name]; ok {
			continue
		}
		t, err := st.CreateTeam(ctx, n.Name, n.Description)
		if err != nil {
			return nil, fmt.Errorf("create team %q: %w", n.Name, err)
		}
		ids[t.Name] = t.ID
		sum.Teams++
	}
	return ids, nil
}

func lookup(ids map[string]int64, kind, name string) (*int64, error) {
	if name == "" {
		return nil, nil
	}
	id, ok := ids[name]
	if !ok {
		return nil, store.Invalid(fmt.Errorf("unknown %s %q", kind, name))
	}
	return &id, nil
}

func optional[T ~string](s string) *T {
	if s == "" {
		return nil
	}
	v := T(s)
	return &v
}

func projectPatch(sp Project, pillarID, teamID *int64, a models.Assessment) models.ProjectPatch {
	p := models.ProjectPatch{
		Status:      optional[models.ProjectStatus](sp.Status),
		Priority:    optional[models.Priority](sp.Priority),
		Difficulty:  optional[models.Difficulty](sp.Difficulty),
		PillarID:    pillarID,
		OwnerTeamID: teamID,
		Assessment:  a,
	}
	if sp.Title != "" {
		p.Title = &sp.Title
	}
	if sp.Description != "" {
		p.Description = &sp.Description
	}
	return p
}

func applyTasks(ctx context.Context, st store.Store, projectID int64, want []Task, teams map[string]int64, sum *Summary) error {
	have, err := st.ListTasks(ctx, store.TaskFilter{ProjectID: projectID})
	if err != nil {
		return err
	}
	byTitle := make(map[string]int64, len(have))
	for _, t := range have {
		byTitle[t.Title] = t.ID
	}
	for _, t := range want {
		teamID, err := lookup(teams, "team", t.OwnerTeam)
		if err != nil {
			return fmt.Errorf("task %q: %w", t.Title, err)
		}
		if id, ok := byTitle[t.Title]; ok {
			patch := models.TaskPatch{
				Phase:       optional[models.Phase](t.Phase),
				Status:      optional[models.TaskStatus](t.Status),
				Difficulty:  optional[models.Difficulty](t.Difficulty),
				AIPotential: optional[models.AIPotential](t.AIPotential),
				OwnerTeamID: teamID,
				DueDate:     optional[string](t.DueDate),
			}
			if t.Description != "" {
				patch.Description = &t.Description
			}
			if _, err := st.UpdateTask(ctx, id, patch); err != nil {
				return fmt.Errorf("update task %q: %w", t.Title, err)
			}
			sum.TasksUpdated++
			continue
		}
		created, err := st.CreateTask(ctx, models.TaskInput{
			ProjectID:   projectID,
			Title:       t.Title,
			Description: t.Description,
			Phase:       models.Phase(t.Phase),
			Status:      models.TaskStatus(t.Status),
			Difficulty:  models.Difficulty(t.Difficulty),
			AIPotential: models.AIPotential(t.AIPotential),
			OwnerTeamID: teamID,
			DueDate:     optional[string](t.DueDate),
		})
		if err != nil {
			return fmt.Errorf("create task %q: %w", t.Title, err)
		}
		byTitle[created.Title] = created.ID
		sum.TasksCreated++
	}
	return nil
}
