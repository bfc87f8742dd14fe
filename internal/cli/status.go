package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nuno-ui/abeto-task-manager-sub000/internal/config"
	"github.com/nuno-ui/abeto-task-manager-sub000/internal/daemon"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show abeto daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			st, err := daemon.Status(cmd.Context(), home)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !st.Running {
				_, _ = fmt.Fprintln(out, "abeto not running")
				return nil
			}
			_, _ = fmt.Fprintf(out, "abeto running (pid %d, addr %s)\n", st.PID, st.Addr)

			c, _, err := apiClient(cmd)
			if err != nil {
				return err
			}
			cfg, err := c.Config(cmd.Context())
			if err != nil {
				_, _ = fmt.Fprintln(out, warnStyle.Render("API not reachable: "+err.Error()))
				return nil
			}
			_, _ = fmt.Fprintf(out, "db: %s, chat: %t\n", cfg.DBDriver, cfg.ChatEnabled)
			return nil
		},
	}
	return cmd
}
