// Package cli is the abeto command tree.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/nuno-ui/abeto-task-manager-sub000/internal/config"
)

func NewRootCmd(version string) *cobra.Command {
	var homeOverride string

	cmd := &cobra.Command{
		Use:          "abeto",
		Short:        "abeto: project and task tracker with multi-perspective reviews",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			home, err := config.ResolveHome(homeOverride)
			if err != nil {
				return err
			}
			cmd.SetContext(config.WithHome(cmd.Context(), home))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&homeOverride, "home", "", "Override abeto home directory (default: ~/.abeto, env: ABETO_HOME)")
	cmd.PersistentFlags().String("addr", config.DefaultAddr, "Server address to listen on or talk to (env: ABETO_ADDR)")
	cmd.PersistentFlags().String("api-key", "", "API key for the server (env: ABETO_API_KEY)")

	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newStartCmd())
	cmd.AddCommand(newStopCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newSeedCmd())

	cmd.AddCommand(newProjectCmd())
	cmd.AddCommand(newTaskCmd())
	cmd.AddCommand(newTeamCmd())
	cmd.AddCommand(newPillarCmd())
	cmd.AddCommand(newReviewCmd())
	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newIdentityCmd())
	cmd.AddCommand(newApikeyCmd())
	cmd.AddCommand(newNukeCmd())

	// Hidden internal subcommand used by `abeto start` for background mode.
	cmd.AddCommand(newDaemonCmd())

	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.SetVersionTemplate("{{.Version}}\n")
	if version != "" {
		cmd.Version = version
	} else {
		cmd.Version = "dev"
	}

	return cmd
}
