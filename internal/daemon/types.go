package daemon

import "github.com/nuno-ui/abeto-task-manager-sub000/internal/config"

// StartOptions configures the daemon. Everything the server needs comes from Config;
// the remaining fields only affect this process.
type StartOptions struct {
	Config     config.Config
	PprofAddr  string // if set, serve net/http/pprof here
	EnableOtel bool   // OpenTelemetry metrics on /metrics and HTTP instrumentation
	Seed       bool   // load seed data before serving
	SeedFile   string // seed YAML; empty uses the built-in sample data
}

// StatusInfo is the result of Status (running or not, PID, listen addr).
type StatusInfo struct {
	Running bool
	PID     int
	Addr    string
}
