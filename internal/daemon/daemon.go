// Package daemon runs the abeto server in the foreground or as a detached process and
// manages its pid, address and lock files under <home>/protected.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/nuno-ui/abeto-task-manager-sub000/internal/assistant"
	"github.com/nuno-ui/abeto-task-manager-sub000/internal/config"
	"github.com/nuno-ui/abeto-task-manager-sub000/internal/httpapi"
	"github.com/nuno-ui/abeto-task-manager-sub000/internal/notify"
	"github.com/nuno-ui/abeto-task-manager-sub000/internal/otel"
	"github.com/nuno-ui/abeto-task-manager-sub000/internal/seed"
	"github.com/nuno-ui/abeto-task-manager-sub000/internal/store"
	"github.com/nuno-ui/abeto-task-manager-sub000/internal/store/postgres"
)

var errNotRunning = errors.New("abeto is not running")

// StartForeground serves until ctx is cancelled or the server fails.
func StartForeground(ctx context.Context, opts StartOptions) error {
	cfg := opts.Config
	if cfg.Home == "" {
		return errors.New("home is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = config.DefaultAddr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(protectedDir(cfg.Home), 0o755); err != nil {
		return err
	}

	// Singleton lock, released on exit.
	lock, err := acquireLock(lockPath(cfg.Home))
	if err != nil {
		return err
	}
	defer lock.release()

	startPprof(ctx, opts.PprofAddr)

	// Early port check for a clearer error than ListenAndServe gives.
	if err := checkAddrAvailable(cfg.Addr); err != nil {
		return err
	}

	st, err := OpenStore(cfg)
	if err != nil {
		return err
	}
	if opts.Seed {
		if err := loadSeed(ctx, st, opts.SeedFile); err != nil {
			_ = st.Close()
			return err
		}
	}

	srvOpts := httpapi.ServerOptions{
		Home:              cfg.Home,
		Addr:              cfg.Addr,
		Dev:               cfg.Dev,
		APIKey:            cfg.APIKey,
		DBDriver:          cfg.DB.Driver,
		Store:             st,
		ChatRatePerMinute: cfg.Assistant.RatePerMinute,
		ChatBurst:         cfg.Assistant.Burst,
		Assistant: assistant.New(st, assistant.Options{
			BaseURL: cfg.Assistant.BaseURL,
			APIKey:  cfg.Assistant.APIKey,
			Model:   cfg.Assistant.Model,
		}),
	}
	if n := reviewNotifier(cfg); n != nil {
		srvOpts.Notifier = n
	}
	if opts.EnableOtel {
		metricsHandler, err := otel.InitMeterProvider(ctx, "abeto")
		if err != nil {
			slog.Warn("otel init failed, using plain metrics", "err", err)
		} else {
			srvOpts.MetricsHandler = metricsHandler
			srvOpts.UseOtelHTTP = true
			if err := otel.InitMetricsWithProjectCount(ctx, projectCounts(st)); err != nil {
				slog.Warn("otel project gauge failed", "err", err)
			}
		}
	}
	app, err := httpapi.NewApp(srvOpts)
	if err != nil {
		_ = st.Close()
		return err
	}

	pid := os.Getpid()
	if err := os.WriteFile(pidPath(cfg.Home), []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		return err
	}
	_ = os.WriteFile(addrPath(cfg.Home), []byte(cfg.Addr+"\n"), 0o644)
	defer func() {
		_ = os.Remove(pidPath(cfg.Home))
		_ = os.Remove(addrPath(cfg.Home))
	}()

	slog.Info("daemon starting", "addr", cfg.Addr, "home", cfg.Home, "db", cfg.DB.Driver,
		"chat", cfg.ChatEnabled(), "slack", srvOpts.Notifier != nil)
	workCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	go runProgress(workCtx, app, cfg.Progress.Interval)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		stopWorkers()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = app.Server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		_ = app.Store.Close()
		if err == nil || errors.Is(err, io.EOF) || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// OpenStore opens the record store cfg selects.
func OpenStore(cfg config.Config) (store.Store, error) {
	if cfg.DB.Driver == "postgres" {
		return postgres.Open(cfg.DB.DSN)
	}
	return store.Open(cfg.Home)
}

func loadSeed(ctx context.Context, st store.Store, path string) error {
	f := seed.Default()
	if path != "" {
		var err error
		if f, err = seed.LoadFile(path); err != nil {
			return err
		}
	}
	sum, err := seed.Apply(ctx, st, f)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	slog.Info("seed applied", "pillars", sum.Pillars, "teams", sum.Teams,
		"projects_created", sum.ProjectsCreated, "projects_updated", sum.ProjectsUpdated,
		"tasks_created", sum.TasksCreated, "tasks_updated", sum.TasksUpdated)
	return nil
}

// reviewNotifier returns nil when no channel is configured.
func reviewNotifier(cfg config.Config) *notify.Reviews {
	if cfg.Slack.WebhookURL == "" {
		return nil
	}
	return &notify.Reviews{
		Channels: []notify.Channel{notify.SlackWebhook{
			WebhookURL: cfg.Slack.WebhookURL,
			Channel:    cfg.Slack.Channel,
			Username:   "abeto",
		}},
		BaseURL: cfg.PublicURL,
	}
}

// StartBackground re-executes the current binary as a detached daemon and waits briefly
// for it to report running.
func StartBackground(ctx context.Context, opts StartOptions) (int, error) {
	home := opts.Config.Home
	exe, err := os.Executable()
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(protectedDir(home), 0o755); err != nil {
		return 0, err
	}
	if st, _ := Status(ctx, home); st.Running {
		return 0, fmt.Errorf("abeto already running (pid %d)", st.PID)
	}

	logFile := LogPath(home)
	stderr, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	// Kept open for the child's lifetime.

	cmd := exec.Command(exe, childArgs(opts)...)
	cmd.Stdout = io.Discard
	cmd.Stderr = stderr
	setDaemonSysProcAttr(cmd)
	if err := cmd.Start(); err != nil {
		return 0, err
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if st, _ := Status(ctx, home); st.Running {
			return st.PID, nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return cmd.Process.Pid, nil
}

// childArgs are the arguments of the hidden daemon command. Settings that live in the
// config file or the environment reach the child on their own; only what was resolved
// here is passed as flags.
func childArgs(opts StartOptions) []string {
	cfg := opts.Config
	args := []string{"daemon", "--home", cfg.Home}
	if cfg.Addr != "" {
		args = append(args, "--addr", cfg.Addr)
	}
	if cfg.DB.Driver != "" {
		args = append(args, "--db-driver", cfg.DB.Driver)
	}
	if cfg.PublicURL != "" {
		args = append(args, "--public-url", cfg.PublicURL)
	}
	args = append(args, "--progress-interval", cfg.Progress.Interval.String())
	if cfg.Dev {
		args = append(args, "--dev")
	}
	if opts.PprofAddr != "" {
		args = append(args, "--pprof", opts.PprofAddr)
	}
	args = append(args, "--otel="+strconv.FormatBool(opts.EnableOtel))
	if opts.Seed {
		args = append(args, "--seed")
		if opts.SeedFile != "" {
			args = append(args, "--seed-file", opts.SeedFile)
		}
	}
	return args
}

// Stop sends SIGTERM and waits up to 15s before killing. It reports whether a daemon
// was running.
func Stop(ctx context.Context, home string) (bool, error) {
	st, err := Status(ctx, home)
	if err != nil {
		return false, err
	}
	if !st.Running {
		return false, nil
	}

	proc, err := os.FindProcess(st.PID)
	if err != nil {
		return false, errNotRunning
	}
	if err := signalTerm(proc); err != nil {
		return false, err
	}

	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		if st2, _ := Status(ctx, home); !st2.Running {
			return true, nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	_ = proc.Kill()
	return true, nil
}

// Status reads the pid file. A pid file naming a dead process is removed.
func Status(_ context.Context, home string) (StatusInfo, error) {
	pb, err := os.ReadFile(pidPath(home))
	if err != nil {
		return StatusInfo{Running: false}, nil
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(pb)))
	if err != nil || pid <= 0 {
		return StatusInfo{Running: false}, nil
	}
	if !processExists(pid) {
		_ = os.Remove(pidPath(home))
		return StatusInfo{Running: false}, nil
	}

	addr := ""
	if ab, err := os.ReadFile(addrPath(home)); err == nil {
		addr = strings.TrimSpace(string(ab))
	}
	if addr == "" {
		addr = "unknown"
	}
	return StatusInfo{Running: true, PID: pid, Addr: addr}, nil
}

func checkAddrAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("address %s is already in use", addr)
	}
	_ = ln.Close()
	return nil
}
