package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nuno-ui/abeto-task-manager-sub000/pkg/models"
)

func newTestServer(t *testing.T, opts ServerOptions) (*App, *httptest.Server) {
	t.Helper()
	if opts.Home == "" {
		opts.Home = t.TempDir()
	}
	app, err := NewApp(opts)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	ts := httptest.NewServer(app.Server.Handler)
	t.Cleanup(func() {
		ts.Close()
		_ = app.Store.Close()
	})
	return app, ts
}

// call sends body as JSON and decodes the response into out (if non-nil). It returns the status.
func call(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var rd io.Reader
	if body != nil {
		if s, ok := body.(string); ok {
			rd = strings.NewReader(s)
		} else {
			b, err := json.Marshal(body)
			if err != nil {
				t.Fatal(err)
			}
			rd = bytes.NewReader(b)
		}
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode (status %d): %v", method, url, resp.StatusCode, err)
		}
	}
	return resp.StatusCode
}

type errBody struct {
	Error string `json:"error"`
}

func TestServerSmoke(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, ServerOptions{})

	var health map[string]bool
	if code := call(t, http.MethodGet, ts.URL+"/health", nil, &health); code != 200 || !health["ok"] {
		t.Fatalf("/health: status=%d body=%v", code, health)
	}

	var cfg models.Config
	if code := call(t, http.MethodGet, ts.URL+"/config", nil, &cfg); code != 200 {
		t.Fatalf("/config status=%d", code)
	}
	if cfg.DBDriver != "sqlite" || cfg.BootstrapID == "" || cfg.ChatEnabled {
		t.Fatalf("/config: got %+v", cfg)
	}
	var cfg2 models.Config
	call(t, http.MethodGet, ts.URL+"/config", nil, &cfg2)
	if cfg2.BootstrapID != cfg.BootstrapID {
		t.Fatalf("bootstrap id should be stable: %q != %q", cfg2.BootstrapID, cfg.BootstrapID)
	}

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if !strings.Contains(string(b), `abeto_projects{status="idea"} 0`) {
		t.Fatalf("/metrics fallback: %s", b)
	}

	var e errBody
	if code := call(t, http.MethodDelete, ts.URL+"/teams", nil, &e); code != http.StatusMethodNotAllowed || e.Error == "" {
		t.Fatalf("DELETE /teams: status=%d body=%+v", code, e)
	}
}

func TestServer_streamPublishesChanges(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, ServerOptions{})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /stream: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	sc := bufio.NewScanner(resp.Body)
	if !sc.Scan() || !strings.Contains(sc.Text(), `"type":"connected"`) {
		t.Fatalf("expected connected event, got %q", sc.Text())
	}

	if code := call(t, http.MethodPost, ts.URL+"/teams", map[string]string{"name": "Sales Ops"}, nil); code != http.StatusCreated {
		t.Fatalf("POST /teams: status=%d", code)
	}
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "data: ") && strings.Contains(line, `"type":"team_update"`) {
			if !strings.Contains(line, `"action":"create"`) {
				t.Fatalf("event: %s", line)
			}
			return
		}
	}
	t.Fatal("did not see team_update event")
}

func TestServer_apiKey(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, ServerOptions{APIKey: "secret"})

	if code := call(t, http.MethodGet, ts.URL+"/health", nil, nil); code != 200 {
		t.Fatalf("/health should be open: %d", code)
	}
	if code := call(t, http.MethodGet, ts.URL+"/projects", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("/projects without key: %d", code)
	}
	if code := call(t, http.MethodGet, ts.URL+"/projects?api_key=secret", nil, nil); code != 200 {
		t.Fatalf("/projects with query key: %d", code)
	}
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/projects", nil)
	req.Header.Set("X-API-Key", "secret")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("/projects with header key: %d", resp.StatusCode)
	}
}

func TestServer_devCORS(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, ServerOptions{Dev: true})
	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/projects", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent || resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("preflight: status=%d headers=%v", resp.StatusCode, resp.Header)
	}
}

func TestServer_bodyLimit(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, ServerOptions{})
	big := `{"slug":"x","title":"` + strings.Repeat("a", models.DefaultMaxRequestBodyBytes) + `"}`
	var e errBody
	if code := call(t, http.MethodPost, ts.URL+"/projects", big, &e); code != http.StatusBadRequest {
		t.Fatalf("oversized body: status=%d", code)
	}
	if !strings.Contains(e.Error, "exceeds") {
		t.Fatalf("oversized body error: %q", e.Error)
	}
}

func TestBootstrap_cachedUntilChange(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, ServerOptions{BootstrapTTL: time.Hour})

	var b models.Bootstrap
	call(t, http.MethodGet, ts.URL+"/bootstrap", nil, &b)
	if len(b.Projects) != 0 || b.Config.DBDriver != "sqlite" {
		t.Fatalf("empty bootstrap: %+v", b)
	}
	if code := call(t, http.MethodPost, ts.URL+"/projects", models.ProjectInput{Slug: "p", Title: "P"}, nil); code != http.StatusCreated {
		t.Fatalf("POST /projects: %d", code)
	}
	call(t, http.MethodGet, ts.URL+"/bootstrap", nil, &b)
	if len(b.Projects) != 1 {
		t.Fatalf("writes through the API must invalidate the cache: %+v", b.Projects)
	}
}

func TestBootstrapCache_coalescesAndExpires(t *testing.T) {
	t.Parallel()
	loads := make(chan struct{}, 100)
	release := make(chan struct{})
	c := newBootstrapCache(time.Hour, func(context.Context) (models.Bootstrap, error) {
		loads <- struct{}{}
		<-release
		return models.Bootstrap{Teams: []models.Team{{Name: "t"}}}, nil
	})

	done := make(chan struct{})
	for range 5 {
		go func() {
			if b, err := c.get(context.Background()); err != nil || len(b.Teams) != 1 {
				t.Errorf("get: %+v %v", b, err)
			}
			done <- struct{}{}
		}()
	}
	<-loads
	time.Sleep(20 * time.Millisecond)
	close(release)
	for range 5 {
		<-done
	}
	if n := len(loads); n != 0 {
		t.Fatalf("concurrent misses should share one load, saw %d extra", n)
	}

	if _, err := c.get(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(loads) != 0 {
		t.Fatal("fresh value should be served from cache")
	}
	c.invalidate()
	if _, err := c.get(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(loads) != 1 {
		t.Fatal("invalidate should force a reload")
	}
}
