package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nuno-ui/abeto-task-manager-sub000/internal/config"
	"github.com/nuno-ui/abeto-task-manager-sub000/internal/daemon"
	"github.com/nuno-ui/abeto-task-manager-sub000/pkg/client"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Faint(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

// loadConfig layers the config for the command's home with its flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	return config.Load(config.MustHomeFrom(cmd.Context()), cmd.Flags())
}

// apiClient talks to the server: an explicit --addr wins, then the address the running
// daemon recorded, then the configured address.
func apiClient(cmd *cobra.Command) (*client.Client, config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, cfg, err
	}
	addr := cfg.Addr
	if f := cmd.Flags().Lookup("addr"); f == nil || !f.Changed {
		if st, _ := daemon.Status(cmd.Context(), cfg.Home); st.Running && st.Addr != "unknown" {
			addr = st.Addr
		}
	}
	return client.New(baseURL(addr), cfg.APIKey), cfg, nil
}

// baseURL turns a listen address into one a client can dial.
func baseURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return strings.TrimRight(addr, "/")
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func printTable(w io.Writer, headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return titleStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(headers...).
		Rows(rows...)
	_, _ = fmt.Fprintln(w, t.String())
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func ago(created time.Time, updated *time.Time) string {
	t := created
	if updated != nil {
		t = *updated
	}
	if t.IsZero() {
		return ""
	}
	return humanize.Time(t)
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func idText(p *int64) string {
	if p == nil {
		return "-"
	}
	return strconv.FormatInt(*p, 10)
}
