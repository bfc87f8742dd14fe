package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nuno-ui/abeto-task-manager-sub000/pkg/models"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "task",
		Aliases: []string{"tasks"},
		Short:   "Manage tasks",
	}
	cmd.AddCommand(newTaskListCmd())
	cmd.AddCommand(newTaskAddCmd())
	cmd.AddCommand(newTaskSetCmd())
	cmd.AddCommand(newTaskDeleteCmd())
	return cmd
}

func newTaskListCmd() *cobra.Command {
	var (
		lf        listFlags
		projectID int64
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks (e.g. --project 3 -f status=in_progress --sort phase)",
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := lf.values()
			if err != nil {
				return err
			}
			if projectID > 0 {
				q.Set("project_id", strconv.FormatInt(projectID, 10))
			}
			c, _, err := apiClient(cmd)
			if err != nil {
				return err
			}
			tasks, err := c.ListTasks(cmd.Context(), q)
			if err != nil {
				return err
			}
			if lf.json {
				return printJSON(cmd.OutOrStdout(), tasks)
			}
			if len(tasks) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No tasks.")
				return nil
			}
			rows := make([][]string, 0, len(tasks))
			for _, t := range tasks {
				rows = append(rows, []string{
					strconv.FormatInt(t.ID, 10), strconv.FormatInt(t.ProjectID, 10), t.Title,
					string(t.Phase), string(t.Status), string(t.AIPotential), deref(t.DueDate),
				})
			}
			printTable(cmd.OutOrStdout(), []string{"ID", "PROJECT", "TITLE", "PHASE", "STATUS", "AI", "DUE"}, rows)
			return nil
		},
	}
	lf.register(cmd)
	cmd.Flags().Int64VarP(&projectID, "project", "p", 0, "Only tasks of this project id")
	return cmd
}

func newTaskAddCmd() *cobra.Command {
	var (
		in                                 models.TaskInput
		phase, status, difficulty, ai, due string
		owner                              int64
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			if in.ProjectID <= 0 || in.Title == "" {
				return errors.New("--project and --title are required")
			}
			in.Phase = models.Phase(phase)
			in.Status = models.TaskStatus(status)
			in.Difficulty = models.Difficulty(difficulty)
			in.AIPotential = models.AIPotential(ai)
			if due != "" {
				in.DueDate = &due
			}
			if owner > 0 {
				in.OwnerTeamID = &owner
			}
			c, _, err := apiClient(cmd)
			if err != nil {
				return err
			}
			t, err := c.CreateTask(cmd.Context(), in)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created task %q (id %d)\n", t.Title, t.ID)
			return nil
		},
	}
	cmd.Flags().Int64VarP(&in.ProjectID, "project", "p", 0, "Project id")
	cmd.Flags().StringVar(&in.Title, "title", "", "Title")
	cmd.Flags().StringVar(&in.Description, "description", "", "Description")
	cmd.Flags().StringVar(&phase, "phase", "", "Phase (default discovery)")
	cmd.Flags().StringVar(&status, "status", "", "Status (default not_started)")
	cmd.Flags().StringVar(&difficulty, "difficulty", "", "Difficulty (default medium)")
	cmd.Flags().StringVar(&ai, "ai-potential", "", "AI potential (default none)")
	cmd.Flags().StringVar(&due, "due", "", "Due date (YYYY-MM-DD)")
	cmd.Flags().Int64Var(&owner, "owner-team-id", 0, "Owning team id")
	return cmd
}

func newTaskSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <id>",
		Short: "Update task fields (only the flags given are changed)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			patch := taskPatchFromFlags(cmd)
			c, _, err := apiClient(cmd)
			if err != nil {
				return err
			}
			t, err := c.UpdateTask(cmd.Context(), id, patch)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Updated task %d (%s, %s)\n", t.ID, t.Phase, t.Status)
			return nil
		},
	}
	fl := cmd.Flags()
	fl.String("title", "", "Title")
	fl.String("description", "", "Description")
	fl.String("phase", "", "Phase")
	fl.String("status", "", "Status")
	fl.String("difficulty", "", "Difficulty")
	fl.String("ai-potential", "", "AI potential")
	fl.String("due", "", "Due date (YYYY-MM-DD; empty clears)")
	fl.Int64("owner-team-id", 0, "Owning team id (0 clears)")
	return cmd
}

func taskPatchFromFlags(cmd *cobra.Command) models.TaskPatch {
	var p models.TaskPatch
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
	p.DueDate = str("due")
	if v := str("phase"); v != nil {
		s := models.Phase(*v)
		p.Phase = &s
	}
	if v := str("status"); v != nil {
		s := models.TaskStatus(*v)
		p.Status = &s
	}
	if v := str("difficulty"); v != nil {
		s := models.Difficulty(*v)
		p.Difficulty = &s
	}
	if v := str("ai-potential"); v != nil {
		s := models.AIPotential(*v)
		p.AIPotential = &s
	}
	if fl.Changed("owner-team-id") {
		v, _ := fl.GetInt64("owner-team-id")
		p.OwnerTeamID = &v
	}
	return p
}

func newTaskDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
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
			if err := c.DeleteTask(cmd.Context(), id); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %d\n", id)
			return nil
		},
	}
	return cmd
}
