package review

import (
	"fmt"
	"strings"

	"github.com/nuno-ui/abeto-task-manager-sub000/pkg/models"
)

// AnswerType is how a question is answered.
type AnswerType string

const (
	AnswerSelect  AnswerType = "select"
	AnswerBoolean AnswerType = "boolean"
	AnswerText    AnswerType = "text"
)

// Question is one entry of an area's question set. Field names the project field the
// answer proposes a value for; it is empty for questions that only collect opinion.
type Question struct {
	ID          string     `json:"id"`
	Prompt      string     `json:"prompt"`
	Description string     `json:"description,omitempty"`
	Type        AnswerType `json:"type"`
	Options     []string   `json:"options,omitempty"`
	Field       string     `json:"field,omitempty"`
}

// Check validates an answer value against the question's type.
func (q Question) Check(value string) error {
	switch q.Type {
	case AnswerSelect:
		for _, o := range q.Options {
			if o == value {
				return nil
			}
		}
		return fmt.Errorf("invalid answer %q for %s (want one of %v)", value, q.ID, q.Options)
	case AnswerBoolean:
		if value == "true" || value == "false" {
			return nil
		}
		return fmt.Errorf("invalid answer %q for %s (want true or false)", value, q.ID)
	default:
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("empty answer for %s", q.ID)
		}
		return nil
	}
}

// fromScale builds a select question whose options and target field come from sc.
func fromScale(sc models.Scale, prompt, desc string) Question {
	return Question{ID: sc.Name, Prompt: prompt, Description: desc, Type: AnswerSelect, Options: sc.Options, Field: sc.Name}
}

func assessment(field, prompt, desc string) Question {
	sc, ok := models.AssessmentScale(field)
	if !ok {
		panic("unknown assessment field " + field)
	}
	return fromScale(sc, prompt, desc)
}

var questionSets = map[models.ReviewerArea][]Question{
	models.AreaManagement: {
		assessment("strategic_alignment", "How well does this project fit the company strategy?", "Consider the pillar it sits under and this year's goals."),
		assessment("roi_confidence", "How confident are you in the expected return?", ""),
		assessment("resource_justified", "Is the assigned team capacity justified?", ""),
		fromScale(models.Priorities, "What priority should this project have?", "Compared with the rest of the portfolio."),
		{ID: "continue_investment", Prompt: "Should we keep investing in this project?", Type: AnswerBoolean},
		{ID: "management_notes", Prompt: "Anything else leadership should know?", Type: AnswerText},
	},
	models.AreaOperationsSales: {
		assessment("pain_point_level", "How painful is the problem for the sales or ops team today?", "Think about installers, closers and customer support."),
		assessment("adoption_risk", "How likely is the team to resist the change?", ""),
		assessment("time_horizon", "When does the team need this?", ""),
		{ID: "frontline_ready", Prompt: "Is the frontline team ready to adopt it?", Description: "Training, process and tooling are in place.", Type: AnswerBoolean},
		{ID: "operations_notes", Prompt: "What would make this more useful day to day?", Type: AnswerText},
	},
	models.AreaProductTech: {
		fromScale(models.Difficulties, "How hard is this to build?", ""),
		assessment("task_list_quality", "How complete is the task breakdown?", "Are phases and owners realistic?"),
		assessment("data_readiness", "Is the data we need available and clean?", ""),
		assessment("tech_debt_risk", "How much technical debt could this create?", ""),
		assessment("timeline_realistic", "Is the timeline realistic?", ""),
		{ID: "product_tech_notes", Prompt: "Technical risks or dependencies to flag?", Type: AnswerText},
	},
}

// Questions returns the ordered question set for area; nil for an unknown area.
func Questions(area models.ReviewerArea) []Question {
	return questionSets[area]
}

// QuestionCount is the number of questions asked under area.
func QuestionCount(area models.ReviewerArea) int {
	return len(questionSets[area])
}

// FindQuestion looks up a question by id within area.
func FindQuestion(area models.ReviewerArea, id string) (Question, bool) {
	for _, q := range questionSets[area] {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// CurrentValue is the project's present value for the field the question targets, used as
// the current_value snapshot of an answer.
func CurrentValue(p models.Project, q Question) *string {
	var v string
	switch q.Field {
	case "":
		return nil
	case "priority":
		v = string(p.Priority)
	case "difficulty":
		v = string(p.Difficulty)
	case "status":
		v = string(p.Status)
	default:
		s, ok := p.Assessment.Get(q.Field)
		if !ok {
			return nil
		}
		v = s
	}
	return &v
}
