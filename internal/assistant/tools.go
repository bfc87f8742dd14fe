package assistant

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/nuno-ui/abeto-task-manager-sub000/internal/query"
	"github.com/nuno-ui/abeto-task-manager-sub000/internal/store"
)

func searchParams(filterHelp string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"filters": map[string]any{
				"type":                 "object",
				"description":          filterHelp,
				"additionalProperties": map[string]any{"type": "string"},
			},
			"sort":  map[string]any{"type": "string", "description": "Sort key"},
			"dir":   map[string]any{"type": "string", "enum": []string{"asc", "desc"}},
			"limit": map[string]any{"type": "integer"},
		},
	}
}

var toolDefinitions = []map[string]any{
	{
		"type": "function",
		"function": map[string]any{
			"name":        "search_projects",
			"description": "List projects matching exact-value filters, optionally sorted",
			"parameters":  searchParams("Field to value, e.g. {\"priority\":\"critical\",\"status\":\"in_progress\"}. Fields: status, priority, difficulty, pillar_id, owner_team_id and the assessment fields."),
		},
	},
	{
		"type": "function",
		"function": map[string]any{
			"name":        "search_tasks",
			"description": "List tasks matching exact-value filters, optionally sorted",
			"parameters":  searchParams("Field to value, e.g. {\"project_id\":\"3\",\"status\":\"blocked\"}. Fields: project_id, phase, status, difficulty, ai_potential, owner_team_id."),
		},
	},
}

// searchArgs decodes tool arguments into a query spec and a record limit.
func (a *Assistant) searchArgs(args string) (query.Spec, int) {
	spec := query.Spec{
		Filters:   map[string]string{},
		SortKey:   gjson.Get(args, "sort").String(),
		Direction: query.Direction(gjson.Get(args, "dir").String()),
	}
	gjson.Get(args, "filters").ForEach(func(k, v gjson.Result) bool {
		if s := v.String(); s != "" {
			spec.Filters[k.String()] = s
		}
		return true
	})
	limit := int(gjson.Get(args, "limit").Int())
	if limit <= 0 || limit > a.opts.MaxRecords {
		limit = a.opts.MaxRecords
	}
	return spec, limit
}

type toolResult[R any] struct {
	Total   int `json:"total"`
	Records []R `json:"records"`
}

func encodeResult[R any](recs []R, limit int) (string, error) {
	res := toolResult[R]{Total: len(recs), Records: recs}
	if len(recs) > limit {
		res.Records = recs[:limit]
	}
	b, err := json.Marshal(res)
	return string(b), err
}

func (a *Assistant) runTool(ctx context.Context, name, args string) (string, error) {
	if args != "" && !gjson.Valid(args) {
		return "", fmt.Errorf("%s: arguments are not valid JSON", name)
	}
	spec, limit := a.searchArgs(args)
	switch name {
	case "search_projects":
		all, err := a.st.ListProjects(ctx)
		if err != nil {
			return "", err
		}
		out, err := query.Projects.Apply(all, spec)
		if err != nil {
			return "", err
		}
		return encodeResult(out, limit)
	case "search_tasks":
		all, err := a.st.ListTasks(ctx, store.TaskFilter{})
		if err != nil {
			return "", err
		}
		out, err := query.Tasks.Apply(all, spec)
		if err != nil {
			return "", err
		}
		return encodeResult(out, limit)
	default:
		return "", fmt.Errorf("unknown tool %q", name)
	}
}
