// Package client provides a Go SDK for the abeto HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/nuno-ui/abeto-task-manager-sub000/internal/review"
	"github.com/nuno-ui/abeto-task-manager-sub000/internal/store"
	"github.com/nuno-ui/abeto-task-manager-sub000/pkg/models"
)

// Client calls the abeto HTTP API. It is safe for concurrent use.
type Client struct {
	BaseURL    string       // e.g. "http://127.0.0.1:3548"
	APIKey     string       // optional; sent as X-API-Key
	HTTPClient *http.Client // optional; nil uses http.DefaultClient
}

// A Client drives a review.Walker against a running daemon.
var _ review.Backend = (*Client)(nil)

// New returns a client for the given base URL. APIKey is optional.
func New(baseURL, apiKey string) *Client {
	return &Client{BaseURL: baseURL, APIKey: apiKey}
}

// APIError is a non-2xx response. It unwraps to the store error the status stands for,
// so errors.Is(err, store.ErrNotFound) works across the wire.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api %s %s: %s", e.Method, e.Path, e.Message)
	}
	return fmt.Sprintf("api %s %s: status %d", e.Method, e.Path, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return store.ErrNotFound
	case http.StatusConflict:
		return store.ErrSessionClosed
	case http.StatusBadRequest:
		return &store.ValidationError{Msg: e.Message}
	}
	return nil
}

func (c *Client) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}
	return c.client().Do(req)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Message: errBody.Error}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

func idPath(prefix string, id int64) string {
	return prefix + "/" + strconv.FormatInt(id, 10)
}

// Health returns the /health response (ok: true).
func (c *Client) Health(ctx context.Context) (ok bool, err error) {
	var out struct {
		OK bool `json:"ok"`
	}
	err = c.doJSON(ctx, http.MethodGet, "/health", nil, &out)
	return out.OK, err
}

// Config returns the /config response.
func (c *Client) Config(ctx context.Context) (*models.Config, error) {
	var out models.Config
	err := c.doJSON(ctx, http.MethodGet, "/config", nil, &out)
	return &out, err
}

// Bootstrap returns the full /bootstrap payload.
func (c *Client) Bootstrap(ctx context.Context) (*models.Bootstrap, error) {
	var out models.Bootstrap
	err := c.doJSON(ctx, http.MethodGet, "/bootstrap", nil, &out)
	return &out, err
}

// ListPillars returns all pillars.
func (c *Client) ListPillars(ctx context.Context) ([]models.Pillar, error) {
	var out []models.Pillar
	err := c.doJSON(ctx, http.MethodGet, "/pillars", nil, &out)
	return out, err
}

// CreatePillar creates a pillar.
func (c *Client) CreatePillar(ctx context.Context, name, description string) (models.Pillar, error) {
	var out models.Pillar
	err := c.doJSON(ctx, http.MethodPost, "/pillars", map[string]string{"name": name, "description": description}, &out)
	return out, err
}

// ListTeams returns all teams.
func (c *Client) ListTeams(ctx context.Context) ([]models.Team, error) {
	var out []models.Team
	err := c.doJSON(ctx, http.MethodGet, "/teams", nil, &out)
	return out, err
}

// CreateTeam creates a team.
func (c *Client) CreateTeam(ctx context.Context, name, description string) (models.Team, error) {
	var out models.Team
	err := c.doJSON(ctx, http.MethodPost, "/teams", map[string]string{"name": name, "description": description}, &out)
	return out, err
}

// ListProjects returns projects. q carries filters (status=planning), sort, dir and limit
// exactly as GET /projects accepts them; nil lists everything in stored order.
func (c *Client) ListProjects(ctx context.Context, q url.Values) ([]models.Project, error) {
	var out []models.Project
	err := c.doJSON(ctx, http.MethodGet, withQuery("/projects", q), nil, &out)
	return out, err
}

// GetProject returns a project by id.
func (c *Client) GetProject(ctx context.Context, id int64) (models.Project, error) {
	var out models.Project
	err := c.doJSON(ctx, http.MethodGet, idPath("/projects", id), nil, &out)
	return out, err
}

// CreateProject creates a project.
func (c *Client) CreateProject(ctx context.Context, in models.ProjectInput) (models.Project, error) {
	var out models.Project
	err := c.doJSON(ctx, http.MethodPost, "/projects", in, &out)
	return out, err
}

// UpdateProject applies a partial update and returns the stored project.
func (c *Client) UpdateProject(ctx context.Context, id int64, patch models.ProjectPatch) (models.Project, error) {
	var out models.Project
	err := c.doJSON(ctx, http.MethodPatch, idPath("/projects", id), patch, &out)
	return out, err
}

// DeleteProject deletes a project and its tasks.
func (c *Client) DeleteProject(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, idPath("/projects", id), nil, nil)
}

// ProjectReviewStatus returns which areas have completed a review of the project.
func (c *Client) ProjectReviewStatus(ctx context.Context, id int64) (models.ReviewStatus, error) {
	var out models.ReviewStatus
	err := c.doJSON(ctx, http.MethodGet, idPath("/projects", id)+"/review-status", nil, &out)
	return out, err
}

// ListTasks returns tasks. q takes the same keys as GET /tasks, including project_id.
func (c *Client) ListTasks(ctx context.Context, q url.Values) ([]models.Task, error) {
	var out []models.Task
	err := c.doJSON(ctx, http.MethodGet, withQuery("/tasks", q), nil, &out)
	return out, err
}

// GetTask returns a task by id.
func (c *Client) GetTask(ctx context.Context, id int64) (models.Task, error) {
	var out models.Task
	err := c.doJSON(ctx, http.MethodGet, idPath("/tasks", id), nil, &out)
	return out, err
}

// CreateTask creates a task.
func (c *Client) CreateTask(ctx context.Context, in models.TaskInput) (models.Task, error) {
	var out models.Task
	err := c.doJSON(ctx, http.MethodPost, "/tasks", in, &out)
	return out, err
}

// UpdateTask applies a partial update and returns the stored task.
func (c *Client) UpdateTask(ctx context.Context, id int64, patch models.TaskPatch) (models.Task, error) {
	var out models.Task
	err := c.doJSON(ctx, http.MethodPatch, idPath("/tasks", id), patch, &out)
	return out, err
}

// DeleteTask deletes a task.
func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, idPath("/tasks", id), nil, nil)
}

// Overview returns the review overview for reviewerID under area.
func (c *Client) Overview(ctx context.Context, reviewerID string, area models.ReviewerArea) (models.ReviewOverview, error) {
	q := url.Values{"reviewer_area": {string(area)}}
	if reviewerID != "" {
		q.Set("reviewer_id", reviewerID)
	}
	var out models.ReviewOverview
	err := c.doJSON(ctx, http.MethodGet, withQuery("/reviews", q), nil, &out)
	return out, err
}

// StartSession returns the open session for reviewer, project and area, creating it if needed.
func (c *Client) StartSession(ctx context.Context, reviewerID string, projectID int64, area models.ReviewerArea) (models.ReviewSession, error) {
	body := struct {
		ProjectID    int64               `json:"project_id"`
		ReviewerID   string              `json:"reviewer_id"`
		ReviewerArea models.ReviewerArea `json:"reviewer_area"`
	}{projectID, reviewerID, area}
	var out models.ReviewSession
	err := c.doJSON(ctx, http.MethodPost, "/reviews", body, &out)
	return out, err
}

// Session returns a session with its answers and comments.
func (c *Client) Session(ctx context.Context, id string) (models.ReviewSessionDetail, error) {
	var out models.ReviewSessionDetail
	err := c.doJSON(ctx, http.MethodGet, "/reviews/"+url.PathEscape(id), nil, &out)
	return out, err
}

// RecordFeedback stores one answer; a second answer to the same question replaces it.
func (c *Client) RecordFeedback(ctx context.Context, in models.ReviewFeedbackInput) (models.ReviewFeedback, error) {
	var out models.ReviewFeedback
	err := c.doJSON(ctx, http.MethodPost, "/reviews/feedback", in, &out)
	return out, err
}

// AddComment leaves a comment in a session.
func (c *Client) AddComment(ctx context.Context, in models.ReviewCommentInput) (models.ReviewComment, error) {
	var out models.ReviewComment
	err := c.doJSON(ctx, http.MethodPost, "/reviews/comments", in, &out)
	return out, err
}

// Comments lists the comments of a session.
func (c *Client) Comments(ctx context.Context, sessionID string) ([]models.ReviewComment, error) {
	var out []models.ReviewComment
	err := c.doJSON(ctx, http.MethodGet, withQuery("/reviews/comments", url.Values{"review_session_id": {sessionID}}), nil, &out)
	return out, err
}

// CompleteSession marks a session completed. Completing it again is a no-op.
func (c *Client) CompleteSession(ctx context.Context, id string) (models.ReviewSession, error) {
	body := struct {
		ID     string               `json:"id"`
		Status models.SessionStatus `json:"status"`
	}{id, models.SessionCompleted}
	var out models.ReviewSession
	err := c.doJSON(ctx, http.MethodPut, "/reviews", body, &out)
	return out, err
}

// Questions returns the question set for area.
func (c *Client) Questions(ctx context.Context, area models.ReviewerArea) ([]review.Question, error) {
	var out []review.Question
	err := c.doJSON(ctx, http.MethodGet, withQuery("/reviews/questions", url.Values{"reviewer_area": {string(area)}}), nil, &out)
	return out, err
}

// Chat sends a conversation to the assistant and returns its reply.
func (c *Client) Chat(ctx context.Context, messages []models.ChatMessage) (string, error) {
	var out models.ChatResponse
	err := c.doJSON(ctx, http.MethodPost, "/chat", models.ChatRequest{Messages: messages}, &out)
	return out.Reply, err
}

// IsNotFound reports whether err is a 404 from the API or a store.ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, store.ErrNotFound) }
