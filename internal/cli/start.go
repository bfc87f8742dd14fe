package cli

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nuno-ui/abeto-task-manager-sub000/internal/daemon"
)

// serverFlags are shared by start and the hidden daemon command. Names match config keys
// so config.Load picks them up.
type serverFlags struct {
	pprofAddr  string
	enableOtel bool
	seed       bool
	seedFile   string
}

func (f *serverFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.Bool("dev", false, "Enable dev mode (permissive CORS)")
	fl.String("db-driver", "sqlite", "Store driver: sqlite or postgres")
	fl.String("db-dsn", "", "Postgres connection string (or DATABASE_URL)")
	fl.String("public-url", "", "Public URL used in notification links")
	fl.Duration("progress-interval", time.Minute, "How often project progress is recomputed (0 disables)")
	fl.StringVar(&f.pprofAddr, "pprof", "", "Enable pprof on address (e.g. 127.0.0.1:6060)")
	fl.BoolVar(&f.enableOtel, "otel", true, "Enable OpenTelemetry metrics (Prometheus exporter, HTTP instrumentation)")
	fl.BoolVar(&f.seed, "seed", false, "Load seed data before serving")
	fl.StringVar(&f.seedFile, "seed-file", "", "Seed YAML file (default: built-in sample data)")
}

func (f *serverFlags) options(cmd *cobra.Command) (daemon.StartOptions, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return daemon.StartOptions{}, err
	}
	return daemon.StartOptions{
		Config:     cfg,
		PprofAddr:  f.pprofAddr,
		EnableOtel: f.enableOtel,
		Seed:       f.seed,
		SeedFile:   f.seedFile,
	}, nil
}

func newStartCmd() *cobra.Command {
	var (
		flags      serverFlags
		foreground bool
		envFile    string
		noBrowser  bool
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start abeto (web UI + API)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				if err := loadEnvFile(envFile); err != nil {
					return err
				}
			}
			opts, err := flags.options(cmd)
			if err != nil {
				return err
			}
			ui := baseURL(opts.Config.Addr)

			if foreground {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Starting abeto in foreground on %s\n", ui)
				return daemon.StartForeground(cmd.Context(), opts)
			}

			pid, err := daemon.StartBackground(cmd.Context(), opts)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "abeto started (pid %d)\n", pid)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "UI: %s\n", ui)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Log: %s\n", daemon.LogPath(opts.Config.Home))

			if !noBrowser {
				_ = openBrowser(ui)
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&foreground, "foreground", false, "Run in foreground (do not daemonize)")
	cmd.Flags().StringVar(&envFile, "env-file", "", "Load env vars from file (KEY=VALUE per line) before starting")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Do not open the UI in a browser")

	return cmd
}

func loadEnvFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		_ = os.Setenv(key, strings.Trim(strings.TrimSpace(value), `"'`))
	}
	return sc.Err()
}

func openBrowser(u string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", u).Start()
	case "windows":
		return exec.Command("cmd", "/c", "start", u).Start()
	default:
		if _, err := exec.LookPath("xdg-open"); err != nil {
			return err
		}
		return exec.Command("xdg-open", u).Start()
	}
}
