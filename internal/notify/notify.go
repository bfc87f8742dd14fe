// Package notify posts review events to chat integrations.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nuno-ui/abeto-task-manager-sub000/internal/review"
	"github.com/nuno-ui/abeto-task-manager-sub000/pkg/models"
)

// Channel is an integration that can post a text message (e.g. Slack).
type Channel interface {
	Name() string
	Post(ctx context.Context, message string) error
}

// SlackWebhook sends messages to a Slack channel via incoming webhook URL.
type SlackWebhook struct {
	WebhookURL string
	Channel    string // optional override
	Username   string // optional
	Client     *http.Client
}

func (s SlackWebhook) Name() string { return "slack" }

func (s SlackWebhook) Post(ctx context.Context, message string) error {
	if s.WebhookURL == "" {
		return errors.New("slack webhook URL not set")
	}
	payload := map[string]any{"text": message}
	if s.Channel != "" {
		payload["channel"] = s.Channel
	}
	if s.Username != "" {
		payload["username"] = s.Username
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	hc := s.Client
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack webhook returned %d", resp.StatusCode)
	}
	return nil
}

// Reviews turns review completions into channel messages. It implements review.Notifier.
type Reviews struct {
	Channels []Channel
	// BaseURL, when set, links the message to the project page.
	BaseURL string
}

var _ review.Notifier = (*Reviews)(nil)

// ReviewCompleted posts to every channel and joins their errors.
func (r *Reviews) ReviewCompleted(ctx context.Context, sess models.ReviewSession, p models.Project, answers int) error {
	msg := ReviewMessage(sess, p, answers, review.QuestionCount(sess.ReviewerArea), r.BaseURL)
	var errs []error
	for _, c := range r.Channels {
		if err := c.Post(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
		}
	}
	return errors.Join(errs...)
}

var areaLabels = map[models.ReviewerArea]string{
	models.AreaManagement:      "Management",
	models.AreaOperationsSales: "Operations & Sales",
	models.AreaProductTech:     "Product & Tech",
}

// ReviewMessage renders the completion message.
func ReviewMessage(sess models.ReviewSession, p models.Project, answers, questions int, baseURL string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s review of *%s* completed by %s (%d/%d questions answered)",
		areaLabels[sess.ReviewerArea], p.Title, sess.ReviewerID, answers, questions)
	if baseURL != "" {
		fmt.Fprintf(&b, "\n%s/projects/%d", strings.TrimRight(baseURL, "/"), p.ID)
	}
	return b.String()
}
