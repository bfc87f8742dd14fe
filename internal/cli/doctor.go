package cli

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nuno-ui/abeto-task-manager-sub000/internal/config"
	"github.com/nuno-ui/abeto-task-manager-sub000/internal/daemon"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the home directory, configuration and server",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			out := cmd.OutOrStdout()
			var problems []string

			if err := checkWritable(home); err != nil {
				problems = append(problems, fmt.Sprintf("home %s is not writable: %v", home, err))
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				problems = append(problems, "config: "+err.Error())
			} else {
				_, _ = fmt.Fprintf(out, "config  %s (db %s, chat %v)\n", config.Path(home), cfg.DB.Driver, cfg.ChatEnabled())
			}

			// git only supplies the default reviewer id.
			if _, err := exec.LookPath("git"); err != nil {
				_, _ = fmt.Fprintln(out, warnStyle.Render("git not found; set reviewer_id or pass --reviewer to abeto review"))
			}

			if st, _ := daemon.Status(cmd.Context(), home); st.Running {
				c, _, err := apiClient(cmd)
				if err == nil {
					_, err = c.Health(cmd.Context())
				}
				if err != nil {
					problems = append(problems, fmt.Sprintf("daemon pid %d is not answering on %s: %v", st.PID, st.Addr, err))
				} else {
					_, _ = fmt.Fprintf(out, "server  %s (pid %d)\n", st.Addr, st.PID)
				}
			} else {
				_, _ = fmt.Fprintln(out, dimStyle.Render("server  not running"))
			}

			if len(problems) > 0 {
				for _, p := range problems {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), p)
				}
				return errors.New("doctor checks failed")
			}
			_, _ = fmt.Fprintln(out, okStyle.Render("ok"))
			return nil
		},
	}
	return cmd
}

func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(filepath.Clean(name))
}
