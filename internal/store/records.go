package store

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/nuno-ui/abeto-task-manager-sub000/pkg/models"
)

// NormalizeProjectInput validates in and fills empty enums with their defaults.
func NormalizeProjectInput(in *models.ProjectInput) error {
	in.Slug = strings.TrimSpace(in.Slug)
	in.Title = strings.TrimSpace(in.Title)
	if err := models.ValidateProjectInput(*in); err != nil {
		return Invalid(err)
	}
	if in.Status == "" {
		in.Status = models.DefaultProjectStatus
	}
	if in.Priority == "" {
		in.Priority = models.DefaultPriority
	}
	if in.Difficulty == "" {
		in.Difficulty = models.DefaultDifficulty
	}
	return nil
}

// ApplyProjectPatch validates patch and merges it onto p.
func ApplyProjectPatch(p *models.Project, patch models.ProjectPatch) error {
	if err := models.ValidateProjectPatch(patch); err != nil {
		return Invalid(err)
	}
	if patch.Title != nil {
		p.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Status != nil {
		p.Status = *patch.Status
	}
	if patch.Priority != nil {
		p.Priority = *patch.Priority
	}
	if patch.Difficulty != nil {
		p.Difficulty = *patch.Difficulty
	}
	// Zero clears a foreign key.
	if patch.PillarID != nil {
		p.PillarID = clearZero(*patch.PillarID)
	}
	if patch.OwnerTeamID != nil {
		p.OwnerTeamID = clearZero(*patch.OwnerTeamID)
	}
	if patch.ProgressPercentage != nil {
		p.ProgressPercentage = *patch.ProgressPercentage
	}
	p.Assessment.Merge(patch.Assessment)
	return nil
}

// NormalizeTaskInput validates in and fills empty enums with their defaults.
func NormalizeTaskInput(in *models.TaskInput) error {
	in.Title = strings.TrimSpace(in.Title)
	if err := models.ValidateTaskInput(*in); err != nil {
		return Invalid(err)
	}
	if in.Phase == "" {
		in.Phase = models.DefaultPhase
	}
	if in.Status == "" {
		in.Status = models.DefaultTaskStatus
	}
	if in.Difficulty == "" {
		in.Difficulty = models.DefaultDifficulty
	}
	if in.AIPotential == "" {
		in.AIPotential = models.DefaultAIPotential
	}
	if in.DueDate != nil && *in.DueDate == "" {
		in.DueDate = nil
	}
	return nil
}

// ApplyTaskPatch validates patch and merges it onto t.
func ApplyTaskPatch(t *models.Task, patch models.TaskPatch) error {
	if err := models.ValidateTaskPatch(patch); err != nil {
		return Invalid(err)
	}
	if patch.Title != nil {
		t.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.Phase != nil {
		t.Phase = *patch.Phase
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	if patch.Difficulty != nil {
		t.Difficulty = *patch.Difficulty
	}
	if patch.AIPotential != nil {
		t.AIPotential = *patch.AIPotential
	}
	if patch.OwnerTeamID != nil {
		t.OwnerTeamID = clearZero(*patch.OwnerTeamID)
	}
	if patch.DueDate != nil {
		if *patch.DueDate == "" {
			t.DueDate = nil
		} else {
			d := *patch.DueDate
			t.DueDate = &d
		}
	}
	return nil
}

// ValidateFeedbackInput checks the shape of an answer; the question catalogue is
// checked by the review service.
func ValidateFeedbackInput(in models.ReviewFeedbackInput) error {
	switch {
	case in.ReviewSessionID == "":
		return Invalid(errors.New("review_session_id required"))
	case in.FieldName == "":
		return Invalid(errors.New("field_name required"))
	case in.ProposedValue == "":
		return Invalid(errors.New("proposed_value required"))
	}
	return nil
}

// ValidateCommentInput checks the shape of a review comment.
func ValidateCommentInput(in models.ReviewCommentInput) error {
	switch {
	case in.ReviewSessionID == "":
		return Invalid(errors.New("review_session_id required"))
	case in.ProjectID <= 0:
		return Invalid(errors.New("project_id required"))
	case strings.TrimSpace(in.Content) == "":
		return Invalid(errors.New("content required"))
	}
	return nil
}

// AssessmentArgs returns the assessment values in AssessmentColumns order.
func AssessmentArgs(a models.Assessment) []any {
	out := make([]any, 0, len(AssessmentColumns))
	for _, col := range AssessmentColumns {
		out = append(out, NullableString(*a.Ref(col)))
	}
	return out
}

// NullableString maps nil to SQL NULL.
func NullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// NullableInt maps nil to SQL NULL.
func NullableInt(n *int64) any {
	if n == nil {
		return nil
	}
	return *n
}

// IsNoRows reports whether err is a "no rows" result from database/sql.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func clearZero(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}
