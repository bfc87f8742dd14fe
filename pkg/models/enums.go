package models

import (
	"fmt"
	"slices"
	"time"
)

// Scale is a closed, ordered vocabulary. The position of an option is its rank: rank
// tables used for sorting and the accepted values used for validation come from the
// same list.
type Scale struct {
	Name    string
	Options []string
}

// Valid reports whether v is one of the scale's options.
func (s Scale) Valid(v string) bool {
	return slices.Contains(s.Options, v)
}

// Rank returns the position of v in the scale, or -1 when v is not an option.
func (s Scale) Rank(v string) int {
	return slices.Index(s.Options, v)
}

// Check returns an error naming the scale when v is not an option.
func (s Scale) Check(v string) error {
	if s.Valid(v) {
		return nil
	}
	return fmt.Errorf("invalid %s %q (want one of %v)", s.Name, v, s.Options)
}

// Parse converts v into the typed enum T after checking it against sc.
func Parse[T ~string](sc Scale, v string) (T, error) {
	if err := sc.Check(v); err != nil {
		return "", err
	}
	return T(v), nil
}

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectIdea       ProjectStatus = "idea"
	ProjectPlanning   ProjectStatus = "planning"
	ProjectInProgress ProjectStatus = "in_progress"
	ProjectOnHold     ProjectStatus = "on_hold"
	ProjectCompleted  ProjectStatus = "completed"
	ProjectCancelled  ProjectStatus = "cancelled"
)

// Priority of a project; critical ranks first.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Difficulty of a project or task.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Phase is the workflow stage of a task.
type Phase string

const (
	PhaseDiscovery   Phase = "discovery"
	PhasePlanning    Phase = "planning"
	PhaseDevelopment Phase = "development"
	PhaseTesting     Phase = "testing"
	PhaseTraining    Phase = "training"
	PhaseRollout     Phase = "rollout"
	PhaseMonitoring  Phase = "monitoring"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskNotStarted TaskStatus = "not_started"
	TaskInProgress TaskStatus = "in_progress"
	TaskBlocked    TaskStatus = "blocked"
	TaskInReview   TaskStatus = "in_review"
	TaskCompleted  TaskStatus = "completed"
)

// AIPotential estimates how much of a task could be automated.
type AIPotential string

const (
	AIPotentialHigh   AIPotential = "high"
	AIPotentialMedium AIPotential = "medium"
	AIPotentialLow    AIPotential = "low"
	AIPotentialNone   AIPotential = "none"
)

// ReviewerArea is one of the three review perspectives.
type ReviewerArea string

const (
	AreaManagement      ReviewerArea = "management"
	AreaOperationsSales ReviewerArea = "operations_sales"
	AreaProductTech     ReviewerArea = "product_tech"
)

// SessionStatus is the state of a review session.
type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
)

// Vocabularies, in rank order.
var (
	ProjectStatuses = Scale{Name: "status", Options: []string{"idea", "planning", "in_progress", "on_hold", "completed", "cancelled"}}
	Priorities      = Scale{Name: "priority", Options: []string{"critical", "high", "medium", "low"}}
	Difficulties    = Scale{Name: "difficulty", Options: []string{"easy", "medium", "hard"}}
	Phases          = Scale{Name: "phase", Options: []string{"discovery", "planning", "development", "testing", "training", "rollout", "monitoring"}}
	TaskStatuses    = Scale{Name: "status", Options: []string{"not_started", "in_progress", "blocked", "in_review", "completed"}}
	AIPotentials    = Scale{Name: "ai_potential", Options: []string{"high", "medium", "low", "none"}}
	ReviewerAreas   = Scale{Name: "reviewer_area", Options: []string{"management", "operations_sales", "product_tech"}}
	SessionStatuses = Scale{Name: "session status", Options: []string{"in_progress", "completed"}}
)

// AllAreas lists the reviewer areas in display order.
var AllAreas = []ReviewerArea{AreaManagement, AreaOperationsSales, AreaProductTech}

func (s ProjectStatus) Valid() bool { return ProjectStatuses.Valid(string(s)) }
func (p Priority) Valid() bool      { return Priorities.Valid(string(p)) }
func (d Difficulty) Valid() bool    { return Difficulties.Valid(string(d)) }
func (p Phase) Valid() bool         { return Phases.Valid(string(p)) }
func (s TaskStatus) Valid() bool    { return TaskStatuses.Valid(string(s)) }
func (a AIPotential) Valid() bool   { return AIPotentials.Valid(string(a)) }
func (a ReviewerArea) Valid() bool  { return ReviewerAreas.Valid(string(a)) }

// Defaults applied by the store when an input leaves the field empty.
const (
	DefaultProjectStatus = ProjectIdea
	DefaultPriority      = PriorityMedium
	DefaultDifficulty    = DifficultyMedium
	DefaultPhase         = PhaseDiscovery
	DefaultTaskStatus    = TaskNotStarted
	DefaultAIPotential   = AIPotentialNone
)

// FilterAll is the filter value meaning "do not filter on this field".
const FilterAll = "all"

// Default limits.
const (
	DefaultMaxRequestBodyBytes = 1 << 20 // 1 MiB
	DefaultSSEChannelBuffer    = 256
	DefaultAssistantToolRounds = 3
	DefaultAssistantMaxRecords = 25
	DefaultBootstrapTTL        = 5 * time.Second
)
