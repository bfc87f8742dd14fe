package models

import (
	"fmt"
	"time"
)

// AssessmentScales lists every assessment field with its ordered options. The order is
// the column order in the store and the display order in the UI.
var AssessmentScales = []Scale{
	{Name: "time_horizon", Options: []string{"short_term", "medium_term", "long_term"}},
	{Name: "task_list_quality", Options: []string{"poor", "fair", "good", "excellent"}},
	{Name: "pain_point_level", Options: []string{"low", "medium", "high", "critical"}},
	{Name: "adoption_risk", Options: []string{"low", "medium", "high"}},
	{Name: "roi_confidence", Options: []string{"low", "medium", "high"}},
	{Name: "strategic_alignment", Options: []string{"weak", "moderate", "strong"}},
	{Name: "resource_justified", Options: []string{"yes", "partially", "no"}},
	{Name: "timeline_realistic", Options: []string{"yes", "tight", "no"}},
	{Name: "tech_debt_risk", Options: []string{"low", "medium", "high"}},
	{Name: "data_readiness", Options: []string{"not_ready", "partial", "ready"}},
}

// AssessmentScale returns the scale for an assessment field name.
func AssessmentScale(field string) (Scale, bool) {
	for _, s := range AssessmentScales {
		if s.Name == field {
			return s, true
		}
	}
	return Scale{}, false
}

// Ref returns a pointer to the storage of the named assessment field, or nil for an
// unknown name.
func (a *Assessment) Ref(field string) **string {
	switch field {
	case "time_horizon":
		return &a.TimeHorizon
	case "task_list_quality":
		return &a.TaskListQuality
	case "pain_point_level":
		return &a.PainPointLevel
	case "adoption_risk":
		return &a.AdoptionRisk
	case "roi_confidence":
		return &a.ROIConfidence
	case "strategic_alignment":
		return &a.StrategicAlignment
	case "resource_justified":
		return &a.ResourceJustified
	case "timeline_realistic":
		return &a.TimelineRealistic
	case "tech_debt_risk":
		return &a.TechDebtRisk
	case "data_readiness":
		return &a.DataReadiness
	}
	return nil
}

// Get returns the value of the named assessment field; ok is false when the field is
// unknown or not yet assessed.
func (a Assessment) Get(field string) (string, bool) {
	ref := a.Ref(field)
	if ref == nil || *ref == nil {
		return "", false
	}
	return **ref, true
}

// Validate checks every set field against its scale. When allowClear is true an empty
// string is accepted (a patch clearing the field).
func (a Assessment) Validate(allowClear bool) error {
	for _, sc := range AssessmentScales {
		v, ok := a.Get(sc.Name)
		if !ok || (allowClear && v == "") {
			continue
		}
		if err := sc.Check(v); err != nil {
			return err
		}
	}
	return nil
}

// Merge applies the set fields of patch onto a; "" clears a field.
func (a *Assessment) Merge(patch Assessment) {
	for _, sc := range AssessmentScales {
		v, ok := patch.Get(sc.Name)
		if !ok {
			continue
		}
		ref := a.Ref(sc.Name)
		if v == "" {
			*ref = nil
			continue
		}
		val := v
		*ref = &val
	}
}

// ValidateProjectInput checks the enum fields of a create request.
func ValidateProjectInput(in ProjectInput) error {
	if in.Slug == "" {
		return fmt.Errorf("slug required")
	}
	if in.Title == "" {
		return fmt.Errorf("title required")
	}
	if in.Status != "" && !in.Status.Valid() {
		return ProjectStatuses.Check(string(in.Status))
	}
	if in.Priority != "" && !in.Priority.Valid() {
		return Priorities.Check(string(in.Priority))
	}
	if in.Difficulty != "" && !in.Difficulty.Valid() {
		return Difficulties.Check(string(in.Difficulty))
	}
	return in.Assessment.Validate(false)
}

// ValidateProjectPatch checks the enum fields of an update request.
func ValidateProjectPatch(p ProjectPatch) error {
	if p.Title != nil && *p.Title == "" {
		return fmt.Errorf("title cannot be empty")
	}
	if p.Status != nil && !p.Status.Valid() {
		return ProjectStatuses.Check(string(*p.Status))
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return Priorities.Check(string(*p.Priority))
	}
	if p.Difficulty != nil && !p.Difficulty.Valid() {
		return Difficulties.Check(string(*p.Difficulty))
	}
	if p.ProgressPercentage != nil && (*p.ProgressPercentage < 0 || *p.ProgressPercentage > 100) {
		return fmt.Errorf("progress_percentage must be between 0 and 100, got %d", *p.ProgressPercentage)
	}
	return p.Assessment.Validate(true)
}

// ValidateTaskInput checks the enum fields of a task create request.
func ValidateTaskInput(in TaskInput) error {
	if in.ProjectID <= 0 {
		return fmt.Errorf("project_id required")
	}
	if in.Title == "" {
		return fmt.Errorf("title required")
	}
	if in.Phase != "" && !in.Phase.Valid() {
		return Phases.Check(string(in.Phase))
	}
	if in.Status != "" && !in.Status.Valid() {
		return TaskStatuses.Check(string(in.Status))
	}
	if in.Difficulty != "" && !in.Difficulty.Valid() {
		return Difficulties.Check(string(in.Difficulty))
	}
	if in.AIPotential != "" && !in.AIPotential.Valid() {
		return AIPotentials.Check(string(in.AIPotential))
	}
	return validateDueDate(in.DueDate)
}

// ValidateTaskPatch checks the enum fields of a task update request.
func ValidateTaskPatch(p TaskPatch) error {
	if p.Title != nil && *p.Title == "" {
		return fmt.Errorf("title cannot be empty")
	}
	if p.Phase != nil && !p.Phase.Valid() {
		return Phases.Check(string(*p.Phase))
	}
	if p.Status != nil && !p.Status.Valid() {
		return TaskStatuses.Check(string(*p.Status))
	}
	if p.Difficulty != nil && !p.Difficulty.Valid() {
		return Difficulties.Check(string(*p.Difficulty))
	}
	if p.AIPotential != nil && !p.AIPotential.Valid() {
		return AIPotentials.Check(string(*p.AIPotential))
	}
	return validateDueDate(p.DueDate)
}

// DueDateLayout is the wire format of Task.DueDate.
const DueDateLayout = "2006-01-02"

func validateDueDate(d *string) error {
	if d == nil || *d == "" {
		return nil
	}
	if _, err := time.Parse(DueDateLayout, *d); err != nil {
		return fmt.Errorf("invalid due_date %q (want YYYY-MM-DD)", *d)
	}
	return nil
}
