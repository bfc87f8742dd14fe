package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/nuno-ui/abeto-task-manager-sub000/internal/review"
	"github.com/nuno-ui/abeto-task-manager-sub000/pkg/models"
)

type countingNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (n *countingNotifier) ReviewCompleted(_ context.Context, sess models.ReviewSession, _ models.Project, _ int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, sess.ID)
	return nil
}

func pending(ov models.ReviewOverview) string {
	return slugs(ov.PendingReview)
}

func TestReviews_endToEnd(t *testing.T) {
	t.Parallel()
	notifier := &countingNotifier{}
	_, ts := newTestServer(t, ServerOptions{Notifier: notifier})
	p1 := createProject(t, ts.URL, models.ProjectInput{Slug: "p1", Title: "P1", Priority: models.PriorityLow})
	p2 := createProject(t, ts.URL, models.ProjectInput{Slug: "p2", Title: "P2", Priority: models.PriorityCritical})

	overview := ts.URL + "/reviews?reviewer_area=management&reviewer_id=ana"
	var ov models.ReviewOverview
	if code := call(t, http.MethodGet, overview, nil, &ov); code != 200 {
		t.Fatalf("GET /reviews: %d", code)
	}
	if pending(ov) != "p2,p1" || ov.Stats.Total != 2 || ov.Stats.Pending != 2 {
		t.Fatalf("initial overview: pending=%s stats=%+v", pending(ov), ov.Stats)
	}

	start := StartReviewRequest{ProjectID: p2.ID, ReviewerID: "ana", ReviewerArea: models.AreaManagement}
	var s1, s2 models.ReviewSession
	call(t, http.MethodPost, ts.URL+"/reviews", start, &s1)
	call(t, http.MethodPost, ts.URL+"/reviews", start, &s2)
	if s1.ID == "" || s1.ID != s2.ID || s1.Status != models.SessionInProgress {
		t.Fatalf("start should find-or-create: %+v %+v", s1, s2)
	}

	for _, v := range []string{"high", "critical"} {
		in := models.ReviewFeedbackInput{ReviewSessionID: s1.ID, FieldName: "priority", ProposedValue: v}
		if code := call(t, http.MethodPost, ts.URL+"/reviews/feedback", in, nil); code != 200 {
			t.Fatalf("POST feedback %s: %d", v, code)
		}
	}
	comment := models.ReviewCommentInput{ReviewSessionID: s1.ID, ProjectID: p2.ID, Content: "ship it"}
	if code := call(t, http.MethodPost, ts.URL+"/reviews/comments", comment, nil); code != http.StatusCreated {
		t.Fatalf("POST comment: %d", code)
	}
	var comments []models.ReviewComment
	call(t, http.MethodGet, ts.URL+"/reviews/comments?review_session_id="+s1.ID, nil, &comments)
	if len(comments) != 1 || comments[0].Content != "ship it" {
		t.Fatalf("GET comments: %+v", comments)
	}

	var detail models.ReviewSessionDetail
	call(t, http.MethodGet, ts.URL+"/reviews/"+s1.ID, nil, &detail)
	if len(detail.Feedback) != 1 || detail.Feedback[0].ProposedValue != "critical" {
		t.Fatalf("feedback should be last-write-wins: %+v", detail.Feedback)
	}
	if detail.Feedback[0].CurrentValue == nil || *detail.Feedback[0].CurrentValue != "critical" {
		t.Fatalf("current value comes from the project: %+v", detail.Feedback[0])
	}

	var done models.ReviewSession
	if code := call(t, http.MethodPut, ts.URL+"/reviews", UpdateReviewRequest{ID: s1.ID, Status: models.SessionCompleted}, &done); code != 200 {
		t.Fatalf("PUT /reviews: %d", code)
	}
	if done.Status != models.SessionCompleted || done.CompletedAt == nil {
		t.Fatalf("completed session: %+v", done)
	}
	call(t, http.MethodPut, ts.URL+"/reviews", UpdateReviewRequest{ID: s1.ID, Status: models.SessionCompleted}, nil)
	if len(notifier.calls) != 1 {
		t.Fatalf("notifier calls = %d, want 1", len(notifier.calls))
	}

	call(t, http.MethodGet, overview, nil, &ov)
	if pending(ov) != "p1" || ov.Stats.Reviewed != 1 {
		t.Fatalf("after completion: pending=%s stats=%+v", pending(ov), ov.Stats)
	}
	var rs models.ReviewStatus
	call(t, http.MethodGet, fmt.Sprintf("%s/projects/%d/review-status", ts.URL, p2.ID), nil, &rs)
	if !rs.ManagementReviewed || rs.AllReviewed {
		t.Fatalf("review status: %+v", rs)
	}

	var e errBody
	late := models.ReviewFeedbackInput{ReviewSessionID: s1.ID, FieldName: "priority", ProposedValue: "low"}
	if code := call(t, http.MethodPost, ts.URL+"/reviews/feedback", late, &e); code != http.StatusConflict {
		t.Fatalf("feedback on completed session: status=%d %+v", code, e)
	}
	_ = p1
}

func TestReviews_errors(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, ServerOptions{})
	p := createProject(t, ts.URL, models.ProjectInput{Slug: "p", Title: "P"})
	var sess models.ReviewSession
	call(t, http.MethodPost, ts.URL+"/reviews", StartReviewRequest{ProjectID: p.ID, ReviewerID: "ana", ReviewerArea: models.AreaProductTech}, &sess)

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"overview without area", http.MethodGet, "/reviews", nil, http.StatusBadRequest},
		{"overview unknown area", http.MethodGet, "/reviews?reviewer_area=finance", nil, http.StatusBadRequest},
		{"start without reviewer", http.MethodPost, "/reviews", StartReviewRequest{ProjectID: p.ID, ReviewerArea: models.AreaManagement}, http.StatusBadRequest},
		{"start unknown project", http.MethodPost, "/reviews", StartReviewRequest{ProjectID: 999, ReviewerID: "ana", ReviewerArea: models.AreaManagement}, http.StatusNotFound},
		{"put bad status", http.MethodPut, "/reviews", UpdateReviewRequest{ID: sess.ID, Status: models.SessionInProgress}, http.StatusBadRequest},
		{"put unknown session", http.MethodPut, "/reviews", UpdateReviewRequest{ID: "nope", Status: models.SessionCompleted}, http.StatusNotFound},
		{"get unknown session", http.MethodGet, "/reviews/nope", nil, http.StatusNotFound},
		{"feedback wrong area question", http.MethodPost, "/reviews/feedback", models.ReviewFeedbackInput{ReviewSessionID: sess.ID, FieldName: "priority", ProposedValue: "high"}, http.StatusBadRequest},
		{"feedback bad option", http.MethodPost, "/reviews/feedback", models.ReviewFeedbackInput{ReviewSessionID: sess.ID, FieldName: "difficulty", ProposedValue: "brutal"}, http.StatusBadRequest},
		{"comment without session", http.MethodGet, "/reviews/comments", nil, http.StatusBadRequest},
		{"comment empty", http.MethodPost, "/reviews/comments", models.ReviewCommentInput{ReviewSessionID: sess.ID, ProjectID: p.ID}, http.StatusBadRequest},
		{"questions unknown area", http.MethodGet, "/reviews/questions?reviewer_area=finance", nil, http.StatusBadRequest},
	}
	for _, tc := range cases {
		var e errBody
		if code := call(t, tc.method, ts.URL+tc.path, tc.body, &e); code != tc.want || e.Error == "" {
			t.Errorf("%s: status=%d want %d (error %q)", tc.name, code, tc.want, e.Error)
		}
	}
}

func TestReviews_questions(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, ServerOptions{})

	var qs []review.Question
	call(t, http.MethodGet, ts.URL+"/reviews/questions?reviewer_area=operations_sales", nil, &qs)
	if len(qs) != review.QuestionCount(models.AreaOperationsSales) || qs[0].Type == "" {
		t.Fatalf("operations_sales questions: %+v", qs)
	}
	var all map[models.ReviewerArea][]review.Question
	call(t, http.MethodGet, ts.URL+"/reviews/questions", nil, &all)
	for _, area := range models.AllAreas {
		if len(all[area]) != review.QuestionCount(area) {
			t.Errorf("%s: got %d questions", area, len(all[area]))
		}
	}
}
