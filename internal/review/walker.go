package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/nuno-ui/abeto-task-manager-sub000/pkg/models"
)

// Backend is what a Walker talks to. *Service implements it in process; the HTTP client
// adapter in pkg/client implements it over the API.
type Backend interface {
	Overview(ctx context.Context, reviewerID string, area models.ReviewerArea) (models.ReviewOverview, error)
	StartSession(ctx context.Context, reviewerID string, projectID int64, area models.ReviewerArea) (models.ReviewSession, error)
	Session(ctx context.Context, id string) (models.ReviewSessionDetail, error)
	RecordFeedback(ctx context.Context, in models.ReviewFeedbackInput) (models.ReviewFeedback, error)
	AddComment(ctx context.Context, in models.ReviewCommentInput) (models.ReviewComment, error)
	CompleteSession(ctx context.Context, id string) (models.ReviewSession, error)
}

var _ Backend = (*Service)(nil)

// ErrNoProject is returned by operations that need a current project when the queue is
// empty or finished.
var ErrNoProject = errors.New("no project to review")

// WalkerOptions tunes a Walker. Zero values use slog.Default and time.Now.
type WalkerOptions struct {
	Logger *slog.Logger
	Now    func() time.Time
}

// Walker moves one reviewer through the queue of projects pending under their area.
// The cursor is view-local: every Load resets it to the first pending project.
// Answers and comments are kept locally and written once; failed writes are logged and
// the local state stays authoritative. A Walker is not safe for concurrent use.
type Walker struct {
	b     Backend
	prefs Preferences
	log   *slog.Logger
	now   func() time.Time

	queue    []models.Project
	stats    models.ReviewStats
	cursor   int
	finished bool

	sessions map[int64]models.ReviewSession
	answers  map[int64]map[string]string
	comments map[int64][]string
}

// NewWalker returns a Walker for prefs.ReviewerID under prefs.Area. Call Load before use.
func NewWalker(b Backend, prefs Preferences, opts WalkerOptions) *Walker {
	w := &Walker{b: b, prefs: prefs, log: opts.Logger, now: opts.Now}
	if w.log == nil {
		w.log = slog.Default()
	}
	if w.now == nil {
		w.now = time.Now
	}
	w.reset()
	return w
}

func (w *Walker) reset() {
	w.queue = nil
	w.cursor = 0
	w.finished = false
	w.sessions = make(map[int64]models.ReviewSession)
	w.answers = make(map[int64]map[string]string)
	w.comments = make(map[int64][]string)
}

// Load fetches a fresh pending queue and moves the cursor to its start.
func (w *Walker) Load(ctx context.Context) error {
	return w.load(ctx, w.prefs.Area)
}

// SwitchArea changes the review perspective and reloads the queue. On failure the walker
// stays on its previous area, queue and cursor.
func (w *Walker) SwitchArea(ctx context.Context, area models.ReviewerArea) error {
	return w.load(ctx, area)
}

// load replaces area, queue and cursor only once the overview for area has arrived.
func (w *Walker) load(ctx context.Context, area models.ReviewerArea) error {
	if !area.Valid() {
		return models.ReviewerAreas.Check(string(area))
	}
	ov, err := w.b.Overview(ctx, w.prefs.ReviewerID, area)
	if err != nil {
		return fmt.Errorf("load pending reviews: %w", err)
	}
	w.prefs.Area = area
	w.reset()
	w.queue = ov.PendingReview
	w.stats = ov.Stats
	w.finished = len(w.queue) == 0
	return nil
}

// Preferences returns the reviewer preferences including the updated streak; the caller
// saves them.
func (w *Walker) Preferences() Preferences { return w.prefs }

// Area is the current review perspective.
func (w *Walker) Area() models.ReviewerArea { return w.prefs.Area }

// Questions is the question set for the current area.
func (w *Walker) Questions() []Question { return Questions(w.prefs.Area) }

// Stats are the counts from the last Load.
func (w *Walker) Stats() models.ReviewStats { return w.stats }

// Len is the number of projects in the queue.
func (w *Walker) Len() int { return len(w.queue) }

// Cursor is the index of the current project.
func (w *Walker) Cursor() int { return w.cursor }

// Finished reports whether the reviewer has moved past the last project.
func (w *Walker) Finished() bool { return w.finished }

// Current returns the project under the cursor.
func (w *Walker) Current() (models.Project, bool) {
	if w.finished || w.cursor >= len(w.queue) {
		return models.Project{}, false
	}
	return w.queue[w.cursor], true
}

// Next moves to the following project, leaving the current session open. Moving past
// the last project finishes the queue.
func (w *Walker) Next() {
	if w.finished {
		return
	}
	if w.cursor+1 < len(w.queue) {
		w.cursor++
		return
	}
	w.finished = true
}

// Skip is Next under the name the review UI uses.
func (w *Walker) Skip() { w.Next() }

// Previous moves back one project; at the first project it does nothing. From the
// finished state it returns to the last project.
func (w *Walker) Previous() {
	if w.finished {
		if len(w.queue) > 0 {
			w.finished = false
		}
		return
	}
	if w.cursor > 0 {
		w.cursor--
	}
}

// Open returns the session for the current project, starting or resuming it on first use.
// Answers already stored in a resumed session become the local answers.
func (w *Walker) Open(ctx context.Context) (models.ReviewSession, error) {
	p, ok := w.Current()
	if !ok {
		return models.ReviewSession{}, ErrNoProject
	}
	if sess, ok := w.sessions[p.ID]; ok {
		return sess, nil
	}
	sess, err := w.b.StartSession(ctx, w.prefs.ReviewerID, p.ID, w.prefs.Area)
	if err != nil {
		return models.ReviewSession{}, err
	}
	w.sessions[p.ID] = sess
	if detail, err := w.b.Session(ctx, sess.ID); err != nil {
		w.log.Warn("review resume failed", "session_id", sess.ID, "err", err)
	} else {
		local := w.answersFor(p.ID)
		for _, f := range detail.Feedback {
			if _, set := local[f.FieldName]; !set {
				local[f.FieldName] = f.ProposedValue
			}
		}
	}
	return sess, nil
}

func (w *Walker) answersFor(projectID int64) map[string]string {
	a := w.answers[projectID]
	if a == nil {
		a = make(map[string]string)
		w.answers[projectID] = a
	}
	return a
}

// Answer records the answer to questionID for the current project. An invalid question
// or value is rejected; a failed write is logged and the local answer kept.
func (w *Walker) Answer(ctx context.Context, questionID, value string) error {
	p, ok := w.Current()
	if !ok {
		return ErrNoProject
	}
	q, ok := FindQuestion(w.prefs.Area, questionID)
	if !ok {
		return fmt.Errorf("no question %q for area %s", questionID, w.prefs.Area)
	}
	if err := q.Check(value); err != nil {
		return err
	}
	w.answersFor(p.ID)[questionID] = value

	sess, err := w.Open(ctx)
	if err != nil {
		w.log.Warn("review answer not saved", "project_id", p.ID, "question", questionID, "err", err)
		return nil
	}
	in := models.ReviewFeedbackInput{
		ReviewSessionID: sess.ID,
		FieldName:       questionID,
		CurrentValue:    CurrentValue(p, q),
		ProposedValue:   value,
	}
	if _, err := w.b.RecordFeedback(ctx, in); err != nil {
		w.log.Warn("review answer not saved", "session_id", sess.ID, "question", questionID, "err", err)
	}
	return nil
}

// Comment leaves free text on the current project, optionally about one of its tasks.
// A failed write is logged and the local comment kept.
func (w *Walker) Comment(ctx context.Context, taskID *int64, content string) error {
	p, ok := w.Current()
	if !ok {
		return ErrNoProject
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return errors.New("empty comment")
	}
	w.comments[p.ID] = append(w.comments[p.ID], content)

	sess, err := w.Open(ctx)
	if err != nil {
		w.log.Warn("review comment not saved", "project_id", p.ID, "err", err)
		return nil
	}
	in := models.ReviewCommentInput{ReviewSessionID: sess.ID, ProjectID: p.ID, TaskID: taskID, Content: content}
	if _, err := w.b.AddComment(ctx, in); err != nil {
		w.log.Warn("review comment not saved", "session_id", sess.ID, "err", err)
	}
	return nil
}

// Complete completes the current project's session, counts it towards the streak and
// advances to the next project. The cursor does not move when completion fails.
func (w *Walker) Complete(ctx context.Context) (models.ReviewSession, error) {
	sess, err := w.Open(ctx)
	if err != nil {
		return models.ReviewSession{}, err
	}
	done, err := w.b.CompleteSession(ctx, sess.ID)
	if err != nil {
		return models.ReviewSession{}, fmt.Errorf("complete review: %w", err)
	}
	p, _ := w.Current()
	w.sessions[p.ID] = done
	w.prefs.RecordReview(w.now())
	w.Next()
	return done, nil
}

// Answers returns a copy of the local answers for the current project.
func (w *Walker) Answers() map[string]string {
	p, ok := w.Current()
	if !ok {
		return map[string]string{}
	}
	return maps.Clone(w.answersFor(p.ID))
}

// Comments returns the comments left locally on the current project.
func (w *Walker) Comments() []string {
	p, ok := w.Current()
	if !ok {
		return nil
	}
	return append([]string(nil), w.comments[p.ID]...)
}

// Progress is the share of the current area's questions answered for the current
// project, between 0 and 1.
func (w *Walker) Progress() float64 {
	n := QuestionCount(w.prefs.Area)
	p, ok := w.Current()
	if n == 0 || !ok {
		return 0
	}
	answered := 0
	for id := range w.answers[p.ID] {
		if _, ok := FindQuestion(w.prefs.Area, id); ok {
			answered++
		}
	}
	return float64(answered) / float64(n)
}
