package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestWithHome_HomeFrom(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	if _, ok := HomeFrom(ctx); ok {
		t.Fatal("expected no home in empty context")
	}
	ctx = WithHome(ctx, "/foo/bar")
	got, ok := HomeFrom(ctx)
	if !ok || got != "/foo/bar" {
		t.Fatalf("HomeFrom: got %q, ok=%v; want /foo/bar, true", got, ok)
	}
}

func TestMustHomeFrom(t *testing.T) {
	t.Parallel()
	ctx := WithHome(context.Background(), "/abeto")
	if got := MustHomeFrom(ctx); got != "/abeto" {
		t.Fatalf("MustHomeFrom: got %q", got)
	}
}

func TestMustHomeFrom_panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic when home missing")
		}
	}()
	MustHomeFrom(context.Background())
}

func TestResolveHome_override(t *testing.T) {
	t.Parallel()
	got, err := ResolveHome("/custom/home")
	if err != nil {
		t.Fatalf("ResolveHome: %v", err)
	}
	if got != filepath.Clean("/custom/home") {
		t.Fatalf("ResolveHome: got %q", got)
	}
}

func TestResolveHome_env(t *testing.T) {
	t.Setenv("ABETO_HOME", "/env/home")
	got, err := ResolveHome("")
	if err != nil {
		t.Fatalf("ResolveHome: %v", err)
	}
	if got != filepath.Clean("/env/home") {
		t.Fatalf("ResolveHome from env: got %q", got)
	}
}

func TestResolveHome_default(t *testing.T) {
	t.Setenv("ABETO_HOME", "")
	// Override empty so we use UserHomeDir
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("UserHomeDir: %v", err)
	}
	got, err := ResolveHome("")
	if err != nil {
		t.Fatalf("ResolveHome: %v", err)
	}
	want := filepath.Join(home, ".abeto")
	if got != want {
		t.Fatalf("ResolveHome default: got %q, want %q", got, want)
	}
}

func TestLoad_defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SLACK_WEBHOOK_URL", "")
	t.Setenv("OPENAI_API_KEY", "")
	cfg, err := Load(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != DefaultAddr || cfg.DB.Driver != "sqlite" {
		t.Fatalf("defaults: got addr=%q driver=%q", cfg.Addr, cfg.DB.Driver)
	}
	if cfg.Progress.Interval != time.Minute || cfg.Assistant.Burst != 5 {
		t.Fatalf("defaults: got %+v", cfg)
	}
	if cfg.ChatEnabled() {
		t.Fatal("chat should be disabled without an api key")
	}
}

func TestLoad_layering(t *testing.T) {
	home := t.TempDir()
	yaml := "addr: 0.0.0.0:9000\nreviewer_id: ana\nslack:\n  channel: \"#reviews\"\nprogress:\n  interval: 30s\n"
	if err := os.WriteFile(Path(home), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ABETO_REVIEWER_ID", "bob")
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.example/x")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("addr", "", "")
	if err := flags.Parse([]string{"--addr", "127.0.0.1:7000"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(home, flags)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != "127.0.0.1:7000" {
		t.Errorf("flag should win: addr=%q", cfg.Addr)
	}
	if cfg.ReviewerID != "bob" {
		t.Errorf("env should beat file: reviewer_id=%q", cfg.ReviewerID)
	}
	if cfg.Slack.Channel != "#reviews" || cfg.Slack.WebhookURL != "https://hooks.example/x" {
		t.Errorf("slack: got %+v", cfg.Slack)
	}
	if cfg.Progress.Interval != 30*time.Second {
		t.Errorf("interval: got %v", cfg.Progress.Interval)
	}
	if !cfg.ChatEnabled() || cfg.Home != home {
		t.Errorf("assistant/home: got %+v", cfg)
	}
}

func TestLoad_invalid(t *testing.T) {
	home := t.TempDir()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("ABETO_DB_DRIVER", "postgres")
	if _, err := Load(home, nil); err == nil {
		t.Fatal("postgres without dsn: expected error")
	}
	t.Setenv("ABETO_DB_DRIVER", "mysql")
	if _, err := Load(home, nil); err == nil {
		t.Fatal("unknown driver: expected error")
	}
	if err := os.WriteFile(Path(home), []byte("addr: [broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ABETO_DB_DRIVER", "")
	if _, err := Load(home, nil); err == nil {
		t.Fatal("broken yaml: expected error")
	}
}
