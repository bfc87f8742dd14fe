package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nuno-ui/abeto-task-manager-sub000/internal/otel"
	"github.com/nuno-ui/abeto-task-manager-sub000/internal/query"
	"github.com/nuno-ui/abeto-task-manager-sub000/internal/store"
	"github.com/nuno-ui/abeto-task-manager-sub000/pkg/models"
)

func (a *App) registerRecords(mux *http.ServeMux) {
	mux.HandleFunc("/pillars", a.handlePillars)
	mux.HandleFunc("/teams", a.handleTeams)
	mux.HandleFunc("/projects", a.handleProjects)
	mux.HandleFunc("/projects/{id}", a.handleProject)
	mux.HandleFunc("/projects/{id}/tasks", a.handleProjectTasks)
	mux.HandleFunc("/projects/{id}/review-status", a.handleProjectReviewStatus)
	mux.HandleFunc("/tasks", a.handleTasks)
	mux.HandleFunc("/tasks/{id}", a.handleTask)
}

// applyQuery runs the filter engine over recs using the request's query string and
// honours ?limit=.
func applyQuery[R any](ctx context.Context, record string, schema *query.Schema[R], recs []R, q url.Values) ([]R, error) {
	start := time.Now()
	out, err := schema.Apply(recs, query.ParseSpec(q))
	if err != nil {
		return nil, err
	}
	otel.RecordQuery(ctx, record, time.Since(start))
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, store.Invalid(errors.New("limit must be a non-negative integer"))
		}
		if n > 0 && n < len(out) {
			out = out[:n]
		}
	}
	return out, nil
}

type namedBody struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (b namedBody) check() error {
	if strings.TrimSpace(b.Name) == "" {
		return store.Invalid(errors.New("name required"))
	}
	return nil
}

func (a *App) handlePillars(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		pillars, err := a.Store.ListPillars(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, pillars)
	case http.MethodPost:
		var body namedBody
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, err)
			return
		}
		if err := body.check(); err != nil {
			writeError(w, err)
			return
		}
		p, err := a.Store.CreatePillar(r.Context(), body.Name, body.Description)
		if err != nil {
			writeError(w, err)
			return
		}
		otel.RecordOp(r.Context(), "pillar", "create")
		a.Publish(Event{Type: "pillar_update", Action: "create", ID: p.ID})
		writeJSONStatus(w, http.StatusCreated, p)
	default:
		methodNotAllowed(w)
	}
}

func (a *App) handleTeams(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		teams, err := a.Store.ListTeams(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, teams)
	case http.MethodPost:
		var body namedBody
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, err)
			return
		}
		if err := body.check(); err != nil {
			writeError(w, err)
			return
		}
		t, err := a.Store.CreateTeam(r.Context(), body.Name, body.Description)
		if err != nil {
			writeError(w, err)
			return
		}
		otel.RecordOp(r.Context(), "team", "create")
		a.Publish(Event{Type: "team_update", Action: "create", ID: t.ID})
		writeJSONStatus(w, http.StatusCreated, t)
	default:
		methodNotAllowed(w)
	}
}

func (a *App) handleProjects(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		all, err := a.Store.ListProjects(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		out, err := applyQuery(r.Context(), "projects", query.Projects, all, r.URL.Query())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, out)
	case http.MethodPost:
		var in models.ProjectInput
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, err)
			return
		}
		p, err := a.Store.CreateProject(r.Context(), in)
		if err != nil {
			writeError(w, err)
			return
		}
		otel.RecordOp(r.Context(), "project", "create")
		a.Publish(Event{Type: "project_update", Action: "create", ID: p.ID})
		writeJSONStatus(w, http.StatusCreated, p)
	default:
		methodNotAllowed(w)
	}
}

func (a *App) handleProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	switch r.Method {
	case http.MethodGet:
		p, err := a.Store.GetProject(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, p)
	case http.MethodPatch:
		var patch models.ProjectPatch
		if err := decodeJSON(r, &patch); err != nil {
			writeError(w, err)
			return
		}
		p, err := a.Store.UpdateProject(r.Context(), id, patch)
		if err != nil {
			writeError(w, err)
			return
		}
		otel.RecordOp(r.Context(), "project", "update")
		a.Publish(Event{Type: "project_update", Action: "update", ID: p.ID})
		writeJSON(w, p)
	case http.MethodDelete:
		if err := a.Store.DeleteProject(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		otel.RecordOp(r.Context(), "project", "delete")
		a.Publish(Event{Type: "project_update", Action: "delete", ID: id})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

func (a *App) handleProjectTasks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := a.Store.GetProject(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	tasks, err := a.Store.ListTasks(r.Context(), store.TaskFilter{ProjectID: id})
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := applyQuery(r.Context(), "tasks", query.Tasks, tasks, r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, out)
}

func (a *App) handleProjectReviewStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rs, err := a.Reviews.Status(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, rs)
}

func (a *App) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		var filter store.TaskFilter
		// Push an exact project filter down to the store; the engine re-checks it.
		if id, err := strconv.ParseInt(q.Get("project_id"), 10, 64); err == nil && id > 0 {
			filter.ProjectID = id
		}
		tasks, err := a.Store.ListTasks(r.Context(), filter)
		if err != nil {
			writeError(w, err)
			return
		}
		out, err := applyQuery(r.Context(), "tasks", query.Tasks, tasks, q)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, out)
	case http.MethodPost:
		var in models.TaskInput
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, err)
			return
		}
		t, err := a.Store.CreateTask(r.Context(), in)
		if err != nil {
			writeError(w, err)
			return
		}
		otel.RecordOp(r.Context(), "task", "create")
		a.Publish(Event{Type: "task_update", Action: "create", ID: t.ID})
		writeJSONStatus(w, http.StatusCreated, t)
	default:
		methodNotAllowed(w)
	}
}

func (a *App) handleTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	switch r.Method {
	case http.MethodGet:
		t, err := a.Store.GetTask(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, t)
	case http.MethodPatch:
		var patch models.TaskPatch
		if err := decodeJSON(r, &patch); err != nil {
			writeError(w, err)
			return
		}
		t, err := a.Store.UpdateTask(r.Context(), id, patch)
		if err != nil {
			writeError(w, err)
			return
		}
		otel.RecordOp(r.Context(), "task", "update")
		a.Publish(Event{Type: "task_update", Action: "update", ID: t.ID})
		writeJSON(w, t)
	case http.MethodDelete:
		if err := a.Store.DeleteTask(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		otel.RecordOp(r.Context(), "task", "delete")
		a.Publish(Event{Type: "task_update", Action: "delete", ID: id})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}
