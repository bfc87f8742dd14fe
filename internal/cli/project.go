package cli

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nuno-ui/abeto-task-manager-sub000/pkg/models"
)

// listFlags map onto the query string every list endpoint accepts.
type listFlags struct {
	filters []string
	sort    string
	dir     string
	limit   int
	json    bool
}

func (f *listFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.filters, "filter", "f", nil, "Filter as field=value (repeatable; all must match)")
	cmd.Flags().StringVar(&f.sort, "sort", "", "Sort key")
	cmd.Flags().StringVar(&f.dir, "dir", "", "Sort direction: asc or desc")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "Maximum rows (0 = all)")
	cmd.Flags().BoolVar(&f.json, "json", false, "Print JSON")
}

func (f *listFlags) values() (url.Values, error) {
	q := url.Values{}
	for _, kv := range f.filters {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("filter %q: want field=value", kv)
		}
		q.Set(k, v)
	}
	if f.sort != "" {
		q.Set("sort", f.sort)
	}
	if f.dir != "" {
		q.Set("dir", f.dir)
	}
	if f.limit > 0 {
		q.Set("limit", strconv.Itoa(f.limit))
	}
	return q, nil
}

func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "project",
		Aliases: []string{"projects"},
		Short:   "Manage projects",
	}
	cmd.AddCommand(newProjectListCmd())
	cmd.AddCommand(newProjectShowCmd())
	cmd.AddCommand(newProjectAddCmd())
	cmd.AddCommand(newProjectSetCmd())
	cmd.AddCommand(newProjectDeleteCmd())
	return cmd
}

func newProjectListCmd() *cobra.Command {
	var lf listFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects (e.g. -f status=planning --sort priority)",
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := lf.values()
			if err != nil {
				return err
			}
			c, _, err := apiClient(cmd)
			if err != nil {
				return err
			}
			projects, err := c.ListProjects(cmd.Context(), q)
			if err != nil {
				return err
			}
			if lf.json {
				return printJSON(cmd.OutOrStdout(), projects)
			}
			if len(projects) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No projects.")
				return nil
			}
			rows := make([][]string, 0, len(projects))
			for _, p := range projects {
				rows = append(rows, []string{
					strconv.FormatInt(p.ID, 10), p.Slug, p.Title, string(p.Status), string(p.Priority),
					fmt.Sprintf("%d%%", p.ProgressPercentage), ago(p.CreatedAt, p.UpdatedAt),
				})
			}
			printTable(cmd.OutOrStdout(), []string{"ID", "SLUG", "TITLE", "STATUS", "PRIORITY", "PROGRESS", "UPDATED"}, rows)
			return nil
		},
	}
	lf.register(cmd)
	return cmd
}

func newProjectShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a project with its assessment, review status and tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, _, err := apiClient(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			p, err := c.GetProject(ctx, id)
			if err != nil {
				return err
			}
			rs, err := c.ProjectReviewStatus(ctx, id)
			if err != nil {
				return err
			}
			tasks, err := c.ListTasks(ctx, url.Values{"project_id": {strconv.FormatInt(id, 10)}, "sort": {"phase"}})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "%s %s\n", titleStyle.Render(p.Title), dimStyle.Render("("+p.Slug+")"))
			if p.Description != "" {
				_, _ = fmt.Fprintln(out, p.Description)
			}
			_, _ = fmt.Fprintf(out, "status %s · priority %s · difficulty %s · progress %d%%\n",
				p.Status, p.Priority, p.Difficulty, p.ProgressPercentage)
			_, _ = fmt.Fprintf(out, "pillar %s · owner team %s · updated %s\n", idText(p.PillarID), idText(p.OwnerTeamID), ago(p.CreatedAt, p.UpdatedAt))

			var assessed [][]string
			for _, sc := range models.AssessmentScales {
				if v, ok := p.Get(sc.Name); ok {
					assessed = append(assessed, []string{sc.Name, v})
				}
			}
			if len(assessed) > 0 {
				printTable(out, []string{"ASSESSMENT", "VALUE"}, assessed)
			}
			_, _ = fmt.Fprintf(out, "reviews: management %s · operations_sales %s · product_tech %s\n",
				mark(rs.ManagementReviewed), mark(rs.OperationsSalesReviewed), mark(rs.ProductTechReviewed))

			if len(tasks) > 0 {
				rows := make([][]string, 0, len(tasks))
				for _, t := range tasks {
					rows = append(rows, []string{strconv.FormatInt(t.ID, 10), t.Title, string(t.Phase), string(t.Status), deref(t.DueDate)})
				}
				printTable(out, []string{"TASK", "TITLE", "PHASE", "STATUS", "DUE"}, rows)
			}
			return nil
		},
	}
	return cmd
}

func mark(done bool) string {
	if done {
		return okStyle.Render("✓")
	}
	return dimStyle.Render("·")
}

func newProjectAddCmd() *cobra.Command {
	var (
		in              models.ProjectInput
		status          string
		priority        string
		difficulty      string
		pillarID, owner int64
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if in.Slug == "" || in.Title == "" {
				return errors.New("--slug and --title are required")
			}
			in.Status = models.ProjectStatus(status)
			in.Priority = models.Priority(priority)
			in.Difficulty = models.Difficulty(difficulty)
			if pillarID > 0 {
				in.PillarID = &pillarID
			}
			if owner > 0 {
				in.OwnerTeamID = &owner
			}
			c, _, err := apiClient(cmd)
			if err != nil {
				return err
			}
			p, err := c.CreateProject(cmd.Context(), in)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created project %q (id %d)\n", p.Slug, p.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Slug, "slug", "", "Unique slug")
	cmd.Flags().StringVar(&in.Title, "title", "", "Title")
	cmd.Flags().StringVar(&in.Description, "description", "", "Description")
	cmd.Flags().StringVar(&status, "status", "", "Status (default idea)")
	cmd.Flags().StringVar(&priority, "priority", "", "Priority (default medium)")
	cmd.Flags().StringVar(&difficulty, "difficulty", "", "Difficulty (default medium)")
	cmd.Flags().Int64Var(&pillarID, "pillar-id", 0, "Pillar id")
	cmd.Flags().Int64Var(&owner, "owner-team-id", 0, "Owning team id")
	return cmd
}

func newProjectSetCmd() *cobra.Command {
	var assess map[string]string
	cmd := &cobra.Command{
		Use:   "set <id>",
		Short: "Update project fields (only the flags given are changed)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			patch, err := projectPatchFromFlags(cmd, assess)
			if err != nil {
				return err
			}
			c, _, err := apiClient(cmd)
			if err != nil {
				return err
			}
			p, err := c.UpdateProject(cmd.Context(), id, patch)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Updated project %q\n", p.Slug)
			return nil
		},
	}
	fl := cmd.Flags()
	fl.String("title", "", "Title")
	fl.String("description", "", "Description")
	fl.String("status", "", "Status")
	fl.String("priority", "", "Priority")
	fl.String("difficulty", "", "Difficulty")
	fl.Int64("pillar-id", 0, "Pillar id (0 clears)")
	fl.Int64("owner-team-id", 0, "Owning team id (0 clears)")
	fl.Int("progress", 0, "Progress percentage")
	fl.StringToStringVar(&assess, "assess", nil, "Assessment field=value (empty value clears), e.g. --assess adoption_risk=low")
	return cmd
}

// projectPatchFromFlags sets a patch field for every flag given on the command line.
func projectPatchFromFlags(cmd *cobra.Command, assess map[string]string) (models.ProjectPatch, error) {
	var p models.ProjectPatch
	fl := cmd.Flags()
	str := func(name string) *string {
		if !fl.Changed(name) {
			return nil
		}
		v, _ := fl.GetString(name)
		return &v
	}
	p.Title = str("title")
	p.Description = str("description")
	if v := str("status"); v != nil {
		s := models.ProjectStatus(*v)
		p.Status = &s
	}
	if v := str("priority"); v != nil {
		s := models.Priority(*v)
		p.Priority = &s
	}
	if v := str("difficulty"); v != nil {
		s := models.Difficulty(*v)
		p.Difficulty = &s
	}
	if fl.Changed("pillar-id") {
		v, _ := fl.GetInt64("pillar-id")
		p.PillarID = &v
	}
	if fl.Changed("owner-team-id") {
		v, _ := fl.GetInt64("owner-team-id")
		p.OwnerTeamID = &v
	}
	if fl.Changed("progress") {
		v, _ := fl.GetInt("progress")
		p.ProgressPercentage = &v
	}
	for field, value := range assess {
		ref := p.Ref(field)
		if ref == nil {
			return p, fmt.Errorf("unknown assessment field %q", field)
		}
		*ref = &value
	}
	return p, nil
}

func newProjectDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a project and its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, _, err := apiClient(cmd)
			if err != nil {
				return err
			}
			if err := c.DeleteProject(cmd.Context(), id); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted project %d\n", id)
			return nil
		},
	}
	return cmd
}
