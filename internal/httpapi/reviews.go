package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/nuno-ui/abeto-task-manager-sub000/internal/otel"
	"github.com/nuno-ui/abeto-task-manager-sub000/internal/review"
	"github.com/nuno-ui/abeto-task-manager-sub000/internal/store"
	"github.com/nuno-ui/abeto-task-manager-sub000/pkg/models"
)

func (a *App) registerReviews(mux *http.ServeMux) {
	mux.HandleFunc("/reviews", a.handleReviews)
	mux.HandleFunc("/reviews/{id}", a.handleReview)
	mux.HandleFunc("/reviews/feedback", a.handleFeedback)
	mux.HandleFunc("/reviews/comments", a.handleComments)
	mux.HandleFunc("/reviews/questions", a.handleQuestions)
}

// StartReviewRequest is the body of POST /reviews.
type StartReviewRequest struct {
	ProjectID    int64               `json:"project_id"`
	ReviewerID   string              `json:"reviewer_id"`
	ReviewerArea models.ReviewerArea `json:"reviewer_area"`
}

// UpdateReviewRequest is the body of PUT /reviews. The only supported transition is to
// status "completed".
type UpdateReviewRequest struct {
	ID     string               `json:"id"`
	Status models.SessionStatus `json:"status"`
}

func (a *App) handleReviews(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		ov, err := a.Reviews.Overview(r.Context(), q.Get("reviewer_id"), models.ReviewerArea(q.Get("reviewer_area")))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, ov)
	case http.MethodPost:
		var body StartReviewRequest
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, err)
			return
		}
		if body.ReviewerID == "" {
			writeError(w, store.Invalid(errors.New("reviewer_id required")))
			return
		}
		sess, err := a.Reviews.StartSession(r.Context(), body.ReviewerID, body.ProjectID, body.ReviewerArea)
		if err != nil {
			writeError(w, err)
			return
		}
		otel.RecordReviewTransition(r.Context(), string(sess.ReviewerArea), "started")
		a.Publish(Event{Type: "review_update", Action: "start", ID: sess.ID})
		writeJSON(w, sess)
	case http.MethodPut:
		var body UpdateReviewRequest
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, err)
			return
		}
		if body.Status != models.SessionCompleted {
			writeError(w, store.Invalid(fmt.Errorf("status must be %q", models.SessionCompleted)))
			return
		}
		sess, err := a.Reviews.CompleteSession(r.Context(), body.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		otel.RecordReviewTransition(r.Context(), string(sess.ReviewerArea), "completed")
		a.Publish(Event{Type: "review_update", Action: "complete", ID: sess.ID})
		writeJSON(w, sess)
	default:
		methodNotAllowed(w)
	}
}

func (a *App) handleReview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	detail, err := a.Reviews.Session(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, detail)
}

func (a *App) handleFeedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var in models.ReviewFeedbackInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	fb, err := a.Reviews.RecordFeedback(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	otel.RecordFeedbackWrite(r.Context(), "feedback")
	writeJSON(w, fb)
}

func (a *App) handleComments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		id := r.URL.Query().Get("review_session_id")
		if id == "" {
			writeError(w, store.Invalid(errors.New("review_session_id required")))
			return
		}
		comments, err := a.Reviews.Comments(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, comments)
	case http.MethodPost:
		var in models.ReviewCommentInput
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, err)
			return
		}
		c, err := a.Reviews.AddComment(r.Context(), in)
		if err != nil {
			writeError(w, err)
			return
		}
		otel.RecordFeedbackWrite(r.Context(), "comment")
		writeJSONStatus(w, http.StatusCreated, c)
	default:
		methodNotAllowed(w)
	}
}

// handleQuestions returns the question set for ?reviewer_area=, or every set keyed by area.
func (a *App) handleQuestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	area := models.ReviewerArea(r.URL.Query().Get("reviewer_area"))
	if area == "" {
		all := make(map[models.ReviewerArea][]review.Question, len(models.AllAreas))
		for _, ar := range models.AllAreas {
			all[ar] = review.Questions(ar)
		}
		writeJSON(w, all)
		return
	}
	if !area.Valid() {
		writeError(w, store.Invalid(models.ReviewerAreas.Check(string(area))))
		return
	}
	writeJSON(w, review.Questions(area))
}
