package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newTeamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "team",
		Short: "Manage teams",
	}
	cmd.AddCommand(newTeamAddCmd())
	cmd.AddCommand(newTeamListCmd())
	return cmd
}

func newTeamAddCmd() *cobra.Command {
	var name, description string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a team",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return errors.New("--name is required")
			}
			c, _, err := apiClient(cmd)
			if err != nil {
				return err
			}
			t, err := c.CreateTeam(cmd.Context(), name, description)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created team %q (id %d)\n", t.Name, t.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Team name")
	cmd.Flags().StringVar(&description, "description", "", "Description")
	return cmd
}

func newTeamListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List teams",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := apiClient(cmd)
			if err != nil {
				return err
			}
			teams, err := c.ListTeams(cmd.Context())
			if err != nil {
				return err
			}
			if len(teams) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No teams.")
				return nil
			}
			rows := make([][]string, 0, len(teams))
			for _, t := range teams {
				rows = append(rows, []string{strconv.FormatInt(t.ID, 10), t.Name, t.Description})
			}
			printTable(cmd.OutOrStdout(), []string{"ID", "NAME", "DESCRIPTION"}, rows)
			return nil
		},
	}
	return cmd
}

func newPillarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pillar",
		Short: "Manage strategic pillars",
	}
	var name, description string
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a pillar",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return errors.New("--name is required")
			}
			c, _, err := apiClient(cmd)
			if err != nil {
				return err
			}
			p, err := c.CreatePillar(cmd.Context(), name, description)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created pillar %q (id %d)\n", p.Name, p.ID)
			return nil
		},
	}
	add.Flags().StringVar(&name, "name", "", "Pillar name")
	add.Flags().StringVar(&description, "description", "", "Description")

	list := &cobra.Command{
		Use:   "list",
		Short: "List pillars",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := apiClient(cmd)
			if err != nil {
				return err
			}
			pillars, err := c.ListPillars(cmd.Context())
			if err != nil {
				return err
			}
			if len(pillars) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No pillars.")
				return nil
			}
			rows := make([][]string, 0, len(pillars))
			for _, p := range pillars {
				rows = append(rows, []string{strconv.FormatInt(p.ID, 10), p.Name, p.Description})
			}
			printTable(cmd.OutOrStdout(), []string{"ID", "NAME", "DESCRIPTION"}, rows)
			return nil
		},
	}
	cmd.AddCommand(add, list)
	return cmd
}
