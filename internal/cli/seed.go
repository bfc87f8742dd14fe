package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nuno-ui/abeto-task-manager-sub000/internal/daemon"
	"github.com/nuno-ui/abeto-task-manager-sub000/internal/seed"
)

func newSeedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load pillars, teams, projects and tasks from YAML (idempotent)",
		Long: "Upserts records from a seed file straight into the store: pillars and teams by name,\n" +
			"projects by slug and tasks by project and title. Without --file the built-in sample data is loaded.",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := seed.Default()
			if file != "" {
				var err error
				if f, err = seed.LoadFile(file); err != nil {
					return err
				}
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			st, err := daemon.OpenStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			sum, err := seed.Apply(cmd.Context(), st, f)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Pillars created:  %d\n", sum.Pillars)
			_, _ = fmt.Fprintf(out, "Teams created:    %d\n", sum.Teams)
			_, _ = fmt.Fprintf(out, "Projects:         %d created, %d updated\n", sum.ProjectsCreated, sum.ProjectsUpdated)
			_, _ = fmt.Fprintf(out, "Tasks:            %d created, %d updated\n", sum.TasksCreated, sum.TasksUpdated)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Seed YAML file")
	cmd.Flags().String("db-driver", "sqlite", "Store driver: sqlite or postgres")
	cmd.Flags().String("db-dsn", "", "Postgres connection string (or DATABASE_URL)")
	return cmd
}
