package daemon

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"testing"
	"time"

	"github.com/nuno-ui/abeto-task-manager-sub000/internal/config"
	"github.com/nuno-ui/abeto-task-manager-sub000/internal/httpapi"
	"github.com/nuno-ui/abeto-task-manager-sub000/pkg/client"
	"github.com/nuno-ui/abeto-task-manager-sub000/pkg/models"
)

func TestStartForeground_emptyHome(t *testing.T) {
	err := StartForeground(context.Background(), StartOptions{})
	if err == nil {
		t.Fatal("StartForeground empty home: expected error")
	}
}

func TestStartForeground_invalidConfig(t *testing.T) {
	cfg := config.Config{Home: t.TempDir(), DB: config.DBConfig{Driver: "postgres"}}
	if err := StartForeground(context.Background(), StartOptions{Config: cfg}); err == nil {
		t.Fatal("postgres without dsn: expected error")
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func TestStartForeground_seedServeAndStop(t *testing.T) {
	home := t.TempDir()
	addr := freeAddr(t)
	cfg := config.Config{Home: home, Addr: addr, DB: config.DBConfig{Driver: "sqlite"}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- StartForeground(ctx, StartOptions{Config: cfg, Seed: true}) }()

	c := client.New("http://"+addr, "")
	var ok bool
	for range 100 {
		if ok, _ = c.Health(ctx); ok {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if !ok {
		cancel()
		t.Fatalf("daemon never became healthy: %v", <-done)
	}

	st, err := Status(ctx, home)
	if err != nil || !st.Running || st.PID != os.Getpid() || st.Addr != addr {
		t.Fatalf("Status: %+v %v", st, err)
	}
	projects, err := c.ListProjects(ctx, nil)
	if err != nil || len(projects) == 0 {
		t.Fatalf("seeded projects: %d %v", len(projects), err)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("StartForeground returned %v", err)
		}
	case <-time.After(20 * time.Second):
		t.Fatal("daemon did not stop")
	}
	if st, _ := Status(context.Background(), home); st.Running {
		t.Fatal("pid file should be removed on exit")
	}
}

func TestStartForeground_addrInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = ln.Close() }()
	cfg := config.Config{Home: t.TempDir(), Addr: ln.Addr().String()}
	if err := StartForeground(context.Background(), StartOptions{Config: cfg}); err == nil {
		t.Fatal("expected address in use error")
	}
}

func TestStatus_notRunning(t *testing.T) {
	home := t.TempDir()
	st, err := Status(context.Background(), home)
	if err != nil || st.Running {
		t.Fatalf("no pid file: %+v %v", st, err)
	}
	if runtime.GOOS == "windows" {
		return
	}
	if err := os.MkdirAll(protectedDir(home), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(pidPath(home), []byte(strconv.Itoa(1<<30)+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if st, _ := Status(context.Background(), home); st.Running {
		t.Fatal("dead pid reported running")
	}
	if _, err := os.Stat(pidPath(home)); !os.IsNotExist(err) {
		t.Fatal("stale pid file should be removed")
	}
	if stopped, err := Stop(context.Background(), home); err != nil || stopped {
		t.Fatalf("Stop with nothing running: %v %v", stopped, err)
	}
}

func TestChildArgs(t *testing.T) {
	opts := StartOptions{
		Config: config.Config{Home: "/h", Addr: "127.0.0.1:9", Dev: true, DB: config.DBConfig{Driver: "sqlite"},
			Progress: config.ProgressConfig{Interval: 30 * time.Second}},
		PprofAddr:  "127.0.0.1:6060",
		EnableOtel: true,
		Seed:       true,
		SeedFile:   "/tmp/seed.yaml",
	}
	want := []string{"daemon", "--home", "/h", "--addr", "127.0.0.1:9", "--db-driver", "sqlite",
		"--progress-interval", "30s", "--dev",
		"--pprof", "127.0.0.1:6060", "--otel=true", "--seed", "--seed-file", "/tmp/seed.yaml"}
	if got := childArgs(opts); !slices.Equal(got, want) {
		t.Fatalf("childArgs:\n got %v\nwant %v", got, want)
	}

	opts.EnableOtel = false
	if got := childArgs(opts); !slices.Contains(got, "--otel=false") {
		t.Fatalf("disabled otel must reach the child: %v", got)
	}
}

func testApp(t *testing.T) *httpapi.App {
	t.Helper()
	home := filepath.Join(t.TempDir(), "home")
	app, err := httpapi.NewApp(httpapi.ServerOptions{Home: home, Addr: ":0"})
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	t.Cleanup(func() { _ = app.Store.Close() })
	return app
}

func TestRunProgress_publishesProjectUpdate(t *testing.T) {
	app := testApp(t)
	ctx := context.Background()
	p, err := app.Store.CreateProject(ctx, models.ProjectInput{Slug: "p", Title: "P"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := app.Store.CreateTask(ctx, models.TaskInput{ProjectID: p.ID, Title: "done", Status: models.TaskCompleted}); err != nil {
		t.Fatal(err)
	}
	if _, err := app.Store.CreateTask(ctx, models.TaskInput{ProjectID: p.ID, Title: "open"}); err != nil {
		t.Fatal(err)
	}

	ch := app.Hub.Subscribe()
	defer app.Hub.Unsubscribe(ch)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go runProgress(runCtx, app, 10*time.Millisecond)

	select {
	case ev := <-ch:
		if ev.Type != "project_update" || ev.Action != "update" {
			t.Errorf("event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for project_update")
	}
	cancel()

	got, err := app.Store.GetProject(ctx, p.ID)
	if err != nil || got.ProgressPercentage != 50 {
		t.Fatalf("progress: %d %v", got.ProgressPercentage, err)
	}
}

func TestProjectCounts(t *testing.T) {
	app := testApp(t)
	ctx := context.Background()
	for _, in := range []models.ProjectInput{
		{Slug: "a", Title: "A"},
		{Slug: "b", Title: "B", Status: models.ProjectPlanning},
		{Slug: "c", Title: "C", Status: models.ProjectPlanning},
	} {
		if _, err := app.Store.CreateProject(ctx, in); err != nil {
			t.Fatal(err)
		}
	}
	counts, err := projectCounts(app.Store)(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts["idea"] != 1 || counts["planning"] != 2 || counts["cancelled"] != 0 || len(counts) != len(models.ProjectStatuses.Options) {
		t.Fatalf("counts: %v", counts)
	}
}

func TestReviewNotifier(t *testing.T) {
	if reviewNotifier(config.Config{}) != nil {
		t.Fatal("no webhook should mean no notifier")
	}
	n := reviewNotifier(config.Config{PublicURL: "https://abeto.example", Slack: config.SlackConfig{WebhookURL: "https://hooks.example/x"}})
	if n == nil || len(n.Channels) != 1 || n.BaseURL != "https://abeto.example" {
		t.Fatalf("notifier: %+v", n)
	}
}
