package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nuno-ui/abeto-task-manager-sub000/internal/config"
	"github.com/nuno-ui/abeto-task-manager-sub000/internal/daemon"
)

const nukeConfirmation = "delete everything"

func newNukeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nuke",
		Short: "Delete all abeto state under ABETO_HOME (database, config, reviewer preferences)",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			if st, _ := daemon.Status(cmd.Context(), home); st.Running {
				return fmt.Errorf("abeto is running (pid %d); run abeto stop first", st.PID)
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, warnStyle.Render("This permanently deletes all abeto data in "+home+"."))
			_, _ = fmt.Fprintf(out, "Type %q to confirm: ", nukeConfirmation)

			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			if strings.TrimSpace(line) != nukeConfirmation {
				_, _ = fmt.Fprintln(out, "\nAborted.")
				return nil
			}
			if err := os.RemoveAll(home); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(out, "Deleted.")
			return nil
		},
	}
	return cmd
}
