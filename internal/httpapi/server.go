package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/nuno-ui/abeto-task-manager-sub000/internal/assistant"
	"github.com/nuno-ui/abeto-task-manager-sub000/internal/query"
	"github.com/nuno-ui/abeto-task-manager-sub000/internal/review"
	"github.com/nuno-ui/abeto-task-manager-sub000/internal/store"
	"github.com/nuno-ui/abeto-task-manager-sub000/internal/store/postgres"
	"github.com/nuno-ui/abeto-task-manager-sub000/internal/ui"
	"github.com/nuno-ui/abeto-task-manager-sub000/pkg/models"
)

// limitBody wraps r.Body with http.MaxBytesReader so handlers cannot read more than maxBytes.
func limitBody(w http.ResponseWriter, r *http.Request, maxBytes int64) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
}

// bodyLimitMiddleware limits request body size for POST, PUT, PATCH to prevent OOM.
func bodyLimitMiddleware(maxBytes int64, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			limitBody(w, r, maxBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware sets CORS headers for dev mode (UI dev server on a different origin).
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ServerOptions configures the HTTP server.
type ServerOptions struct {
	Home   string
	Addr   string
	Dev    bool
	APIKey string // if set, require X-API-Key header or query api_key

	DBDriver string      // "sqlite" (default) or "postgres"
	DBURL    string      // for postgres: connection string (or set DATABASE_URL env)
	Store    store.Store // if set, used instead of opening DBDriver/DBURL

	MetricsHandler http.Handler // if set, used for /metrics (e.g. OTel Prometheus handler)
	UseOtelHTTP    bool         // if true, wrap handler with otelhttp for request metrics

	Notifier  review.Notifier      // told about completed reviews; may be nil
	Assistant *assistant.Assistant // backs POST /chat; nil or disabled answers 503

	ChatRatePerMinute float64 // POST /chat requests per minute per server; 0 = unlimited
	ChatBurst         int
	BootstrapTTL      time.Duration // 0 = models.DefaultBootstrapTTL
}

// App holds the HTTP server, SSE hub, store and review service.
type App struct {
	Server    *http.Server
	Hub       *EventHub
	Store     store.Store
	Reviews   *review.Service
	Assistant *assistant.Assistant
	Home      string

	boot *bootstrapCache
}

// Publish sends ev to stream subscribers and drops the cached bootstrap payload.
func (a *App) Publish(ev Event) {
	a.boot.invalidate()
	a.Hub.Publish(ev)
}

// openStore opens the store selected by opts.
func openStore(opts ServerOptions) (store.Store, error) {
	if opts.Store != nil {
		return opts.Store, nil
	}
	if opts.DBDriver == "postgres" {
		return postgres.Open(opts.DBURL)
	}
	return store.Open(opts.Home)
}

// NewApp opens the store, builds the review service and registers all routes.
func NewApp(opts ServerOptions) (*App, error) {
	st, err := openStore(opts)
	if err != nil {
		return nil, err
	}
	app := &App{
		Hub:       NewEventHub(),
		Store:     st,
		Reviews:   review.NewService(st, opts.Notifier),
		Assistant: opts.Assistant,
		Home:      opts.Home,
	}
	ttl := opts.BootstrapTTL
	if ttl <= 0 {
		ttl = models.DefaultBootstrapTTL
	}
	app.boot = newBootstrapCache(ttl, func(ctx context.Context) (models.Bootstrap, error) {
		return loadBootstrap(ctx, st, app.config(opts))
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"ok": true})
	})
	if opts.MetricsHandler != nil {
		mux.Handle("/metrics", opts.MetricsHandler)
	} else {
		mux.HandleFunc("/metrics", app.fallbackMetrics)
	}
	mux.HandleFunc("/config", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, app.config(opts))
	})
	mux.HandleFunc("/bootstrap", func(w http.ResponseWriter, r *http.Request) {
		b, err := app.boot.get(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, b)
	})
	mux.HandleFunc("/stream", app.Hub.Handler())

	app.registerRecords(mux)
	app.registerReviews(mux)

	var limiter *rate.Limiter
	if opts.ChatRatePerMinute > 0 {
		burst := opts.ChatBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.ChatRatePerMinute/60), burst)
	}
	mux.HandleFunc("/chat", app.handleChat(limiter))

	// UI: embedded SPA shell
	mux.Handle("/", ui.Handler())

	var handler http.Handler = mux
	handler = bodyLimitMiddleware(models.DefaultMaxRequestBodyBytes, handler)
	if opts.Dev {
		handler = corsMiddleware(handler)
	}
	if opts.APIKey != "" {
		handler = apiKeyMiddleware(opts.APIKey, handler)
	}
	handler = requestLogMiddleware(handler)
	if opts.UseOtelHTTP {
		handler = otelhttp.NewHandler(handler, "abeto")
	}
	app.Server = &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	app.Server.RegisterOnShutdown(func() {
		_ = st.Close()
	})
	return app, nil
}

func (a *App) config(opts ServerOptions) models.Config {
	driver := opts.DBDriver
	if driver == "" {
		driver = "sqlite"
	}
	return models.Config{
		Home:        opts.Home,
		BootstrapID: getBootstrapID(opts.Home),
		DBDriver:    driver,
		ChatEnabled: a.Assistant.Enabled(),
	}
}

// fallbackMetrics serves project counts in Prometheus text format when no OTel handler is set.
func (a *App) fallbackMetrics(w http.ResponseWriter, r *http.Request) {
	projects, err := a.Store.ListProjects(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	counts := map[models.ProjectStatus]int{}
	for _, p := range projects {
		counts[p.Status]++
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintf(w, "# TYPE abeto_projects gauge\n")
	for _, s := range models.ProjectStatuses.Options {
		_, _ = fmt.Fprintf(w, "abeto_projects{status=%q} %d\n", s, counts[models.ProjectStatus(s)])
	}
}

// responseRecorder captures status code for logging and forwards Flusher if supported.
type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func apiKeyMiddleware(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/health" || path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		key := r.Header.Get("X-API-Key")
		if key == "" {
			key = r.URL.Query().Get("api_key")
		}
		if key != apiKey {
			writeJSONError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)
		slog.Info("request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

func getBootstrapID(home string) string {
	if home == "" {
		return ""
	}
	protected := filepath.Join(home, "protected")
	_ = os.MkdirAll(protected, 0o755)
	path := filepath.Join(protected, "bootstrap_id")
	if b, err := os.ReadFile(path); err == nil {
		if s := strings.TrimSpace(string(b)); s != "" {
			return s
		}
	}
	id := randomHex(16)
	_ = os.WriteFile(path, []byte(id+"\n"), 0o644)
	return id
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// fallback: time-based
		return hex.EncodeToString([]byte(time.Now().Format(time.RFC3339Nano)))
	}
	return hex.EncodeToString(b)
}

// decodeJSON decodes the request body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return store.Invalid(fmt.Errorf("request body exceeds %d bytes", maxErr.Limit))
		}
		if errors.Is(err, io.EOF) {
			return store.Invalid(errors.New("request body required"))
		}
		return store.Invalid(fmt.Errorf("invalid json: %w", err))
	}
	return nil
}

// pathID parses the {id} path value as a record id.
func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, store.Invalid(fmt.Errorf("invalid id %q", raw))
	}
	return id, nil
}

// statusFor maps the error taxonomy to HTTP status codes.
func statusFor(err error) int {
	var verr *store.ValidationError
	var sortErr *query.UnknownSortKeyError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrSessionClosed):
		return http.StatusConflict
	case errors.As(err, &verr), errors.As(err, &sortErr):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// writeError sends err with the status its kind maps to. Server errors are logged.
func writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		slog.Error("request failed", "err", err)
	}
	writeJSONError(w, code, err.Error())
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// writeJSONError sends a JSON body {"error": "message"} with the given status code.
func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": message})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
}
