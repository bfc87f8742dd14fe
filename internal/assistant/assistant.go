// Package assistant answers portfolio questions through an OpenAI-compatible chat
// completions endpoint. The model can call two tools, search_projects and search_tasks,
// which run the query engine over the record store.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/nuno-ui/abeto-task-manager-sub000/internal/store"
	"github.com/nuno-ui/abeto-task-manager-sub000/pkg/models"
)

// ErrDisabled is returned by Chat when no API key is configured.
var ErrDisabled = errors.New("assistant is not configured")

const systemPrompt = "You help the abeto operations team understand its project portfolio. " +
	"Use search_projects and search_tasks to look records up before answering. " +
	"Answer briefly and cite project slugs."

// Store is the read-only subset of store.Store the tools need.
type Store interface {
	ListProjects(ctx context.Context) ([]models.Project, error)
	ListTasks(ctx context.Context, filter store.TaskFilter) ([]models.Task, error)
}

// Options configures the completions endpoint.
type Options struct {
	BaseURL    string // e.g. https://api.openai.com/v1
	APIKey     string
	Model      string
	HTTPClient *http.Client
	MaxRounds  int // tool-call rounds before the model must answer
	MaxRecords int // records returned per tool call
}

// Assistant runs chat conversations with tool access to the store.
type Assistant struct {
	st   Store
	opts Options
}

// New returns an Assistant. Zero options take defaults.
func New(st Store, opts Options) *Assistant {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.openai.com/v1"
	}
	if opts.Model == "" {
		opts.Model = "gpt-4o-mini"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if opts.MaxRounds <= 0 {
		opts.MaxRounds = models.DefaultAssistantToolRounds
	}
	if opts.MaxRecords <= 0 {
		opts.MaxRecords = models.DefaultAssistantMaxRecords
	}
	return &Assistant{st: st, opts: opts}
}

// Enabled reports whether Chat can reach a model.
func (a *Assistant) Enabled() bool { return a != nil && a.opts.APIKey != "" }

// Chat sends the conversation to the model, executing tool calls until it replies with text.
func (a *Assistant) Chat(ctx context.Context, history []models.ChatMessage) (string, error) {
	if !a.Enabled() {
		return "", ErrDisabled
	}
	if len(history) == 0 {
		return "", store.Invalid(errors.New("messages required"))
	}
	messages := []any{map[string]string{"role": "system", "content": systemPrompt}}
	for _, m := range history {
		switch m.Role {
		case "user", "assistant":
		default:
			return "", store.Invalid(fmt.Errorf("unsupported message role %q", m.Role))
		}
		messages = append(messages, map[string]string{"role": m.Role, "content": m.Content})
	}

	for round := 0; ; round++ {
		withTools := round < a.opts.MaxRounds
		raw, err := a.complete(ctx, messages, withTools)
		if err != nil {
			return "", err
		}
		msg := gjson.GetBytes(raw, "choices.0.message")
		if !msg.Exists() {
			return "", errors.New("completion response has no choices")
		}
		calls := msg.Get("tool_calls").Array()
		if len(calls) == 0 || !withTools {
			return strings.TrimSpace(msg.Get("content").String()), nil
		}
		messages = append(messages, json.RawMessage(msg.Raw))
		for _, call := range calls {
			name := call.Get("function.name").String()
			out, err := a.runTool(ctx, name, call.Get("function.arguments").String())
			if err != nil {
				slog.Warn("assistant tool failed", "tool", name, "err", err)
				out = fmt.Sprintf(`{"error":%q}`, err.Error())
			}
			messages = append(messages, map[string]string{
				"role":         "tool",
				"tool_call_id": call.Get("id").String(),
				"content":      out,
			})
		}
	}
}

func (a *Assistant) complete(ctx context.Context, messages []any, withTools bool) ([]byte, error) {
	body := map[string]any{
		"model":    a.opts.Model,
		"messages": messages,
	}
	if withTools {
		body["tools"] = toolDefinitions
		body["tool_choice"] = "auto"
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	url := strings.TrimSuffix(a.opts.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.opts.APIKey)
	resp, err := a.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(raw, "error.message").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("chat completion: status %d: %s", resp.StatusCode, msg)
	}
	return raw, nil
}
