// Package models provides shared types for the abeto HTTP API, the record store and external tools.
// These types mirror the API JSON and are stable for use by pkg/client and other consumers.
package models

import "time"

// Pillar is a strategic grouping tag attached to a project (e.g. "Data Foundation").
type Pillar struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// Team owns projects and tasks.
type Team struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// Assessment holds the project-level judgments solicited by reviews. A nil field means
// "not yet assessed". Valid values for each field are listed in AssessmentScales.
type Assessment struct {
	TimeHorizon        *string `json:"time_horizon"`
	TaskListQuality    *string `json:"task_list_quality"`
	PainPointLevel     *string `json:"pain_point_level"`
	AdoptionRisk       *string `json:"adoption_risk"`
	ROIConfidence      *string `json:"roi_confidence"`
	StrategicAlignment *string `json:"strategic_alignment"`
	ResourceJustified  *string `json:"resource_justified"`
	TimelineRealistic  *string `json:"timeline_realistic"`
	TechDebtRisk       *string `json:"tech_debt_risk"`
	DataReadiness      *string `json:"data_readiness"`
}

// Project is a tracked initiative.
type Project struct {
	ID                 int64         `json:"id"`
	Slug               string        `json:"slug"`
	Title              string        `json:"title"`
	Description        string        `json:"description,omitempty"`
	Status             ProjectStatus `json:"status"`
	Priority           Priority      `json:"priority"`
	Difficulty         Difficulty    `json:"difficulty"`
	PillarID           *int64        `json:"pillar_id"`
	OwnerTeamID        *int64        `json:"owner_team_id"`
	ProgressPercentage int           `json:"progress_percentage"`
	Assessment
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// ProjectInput is the body of POST /projects. Empty enum fields take the store defaults.
type ProjectInput struct {
	Slug        string        `json:"slug"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Status      ProjectStatus `json:"status,omitempty"`
	Priority    Priority      `json:"priority,omitempty"`
	Difficulty  Difficulty    `json:"difficulty,omitempty"`
	PillarID    *int64        `json:"pillar_id,omitempty"`
	OwnerTeamID *int64        `json:"owner_team_id,omitempty"`
	Assessment
}

// ProjectPatch is the body of PATCH /projects/{id}. Nil fields are left unchanged; an
// assessment field set to "" is cleared back to "not yet assessed".
type ProjectPatch struct {
	Title              *string        `json:"title,omitempty"`
	Description        *string        `json:"description,omitempty"`
	Status             *ProjectStatus `json:"status,omitempty"`
	Priority           *Priority      `json:"priority,omitempty"`
	Difficulty         *Difficulty    `json:"difficulty,omitempty"`
	PillarID           *int64         `json:"pillar_id,omitempty"`
	OwnerTeamID        *int64         `json:"owner_team_id,omitempty"`
	ProgressPercentage *int           `json:"progress_percentage,omitempty"`
	Assessment
}

// Task is a unit of work inside exactly one project.
type Task struct {
	ID          int64       `json:"id"`
	ProjectID   int64       `json:"project_id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Phase       Phase       `json:"phase"`
	Status      TaskStatus  `json:"status"`
	Difficulty  Difficulty  `json:"difficulty"`
	AIPotential AIPotential `json:"ai_potential"`
	OwnerTeamID *int64      `json:"owner_team_id"`
	DueDate     *string     `json:"due_date"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   *time.Time  `json:"updated_at,omitempty"`
}

// TaskInput is the body of POST /tasks.
type TaskInput struct {
	ProjectID   int64       `json:"project_id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Phase       Phase       `json:"phase,omitempty"`
	Status      TaskStatus  `json:"status,omitempty"`
	Difficulty  Difficulty  `json:"difficulty,omitempty"`
	AIPotential AIPotential `json:"ai_potential,omitempty"`
	OwnerTeamID *int64      `json:"owner_team_id,omitempty"`
	DueDate     *string     `json:"due_date,omitempty"`
}

// TaskPatch is the body of PATCH /tasks/{id}. A task is never moved to another project,
// so there is no project_id field.
type TaskPatch struct {
	Title       *string      `json:"title,omitempty"`
	Description *string      `json:"description,omitempty"`
	Phase       *Phase       `json:"phase,omitempty"`
	Status      *TaskStatus  `json:"status,omitempty"`
	Difficulty  *Difficulty  `json:"difficulty,omitempty"`
	AIPotential *AIPotential `json:"ai_potential,omitempty"`
	OwnerTeamID *int64       `json:"owner_team_id,omitempty"`
	DueDate     *string      `json:"due_date,omitempty"`
}

// ReviewSession ties one reviewer to one project under one reviewer area.
type ReviewSession struct {
	ID           string        `json:"id"`
	ReviewerID   string        `json:"reviewer_id"`
	ProjectID    int64         `json:"project_id"`
	ReviewerArea ReviewerArea  `json:"reviewer_area"`
	Status       SessionStatus `json:"status"`
	StartedAt    time.Time     `json:"started_at"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
}

// ReviewFeedback is the answer to one question within a session.
type ReviewFeedback struct {
	ID              int64     `json:"id"`
	ReviewSessionID string    `json:"review_session_id"`
	FieldName       string    `json:"field_name"`
	CurrentValue    *string   `json:"current_value"`
	ProposedValue   string    `json:"proposed_value"`
	Comment         *string   `json:"comment,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ReviewFeedbackInput is the body of POST /reviews/feedback.
type ReviewFeedbackInput struct {
	ReviewSessionID string  `json:"review_session_id"`
	FieldName       string  `json:"field_name"`
	CurrentValue    *string `json:"current_value"`
	ProposedValue   string  `json:"proposed_value"`
	Comment         *string `json:"comment,omitempty"`
}

// ReviewComment is free text left during a review, optionally about one task.
type ReviewComment struct {
	ID              int64     `json:"id"`
	ReviewSessionID string    `json:"review_session_id"`
	ProjectID       int64     `json:"project_id"`
	TaskID          *int64    `json:"task_id,omitempty"`
	Content         string    `json:"content"`
	CreatedAt       time.Time `json:"created_at"`
}

// ReviewCommentInput is the body of POST /reviews/comments.
type ReviewCommentInput struct {
	ReviewSessionID string `json:"review_session_id"`
	ProjectID       int64  `json:"project_id"`
	TaskID          *int64 `json:"task_id,omitempty"`
	Content         string `json:"content"`
}

// ReviewSessionDetail is the GET /reviews/{id} response: a session with its answers and
// comments so a reviewer can resume it.
type ReviewSessionDetail struct {
	ReviewSession
	Feedback []ReviewFeedback `json:"feedback"`
	Comments []ReviewComment  `json:"comments"`
}

// ReviewStatus summarises, per area, whether a completed review exists for a project.
type ReviewStatus struct {
	ProjectID               int64 `json:"project_id"`
	ManagementReviewed      bool  `json:"management_reviewed"`
	OperationsSalesReviewed bool  `json:"operations_sales_reviewed"`
	ProductTechReviewed     bool  `json:"product_tech_reviewed"`
	AllReviewed             bool  `json:"all_reviewed"`
}

// ProjectReview is a project together with its derived review status.
type ProjectReview struct {
	Project
	ReviewStatus ReviewStatus `json:"review_status"`
}

// ReviewStats counts review progress for one reviewer and area.
type ReviewStats struct {
	Total         int `json:"total"`
	Reviewed      int `json:"reviewed"`
	Pending       int `json:"pending"`
	FullyReviewed int `json:"fully_reviewed"`
}

// ReviewOverview is the GET /reviews response.
type ReviewOverview struct {
	Projects      []ProjectReview `json:"projects"`
	PendingReview []Project       `json:"pendingReview"`
	Stats         ReviewStats     `json:"stats"`
}

// Config is the /config API response.
type Config struct {
	Home        string `json:"home,omitempty"`
	BootstrapID string `json:"bootstrap_id,omitempty"`
	DBDriver    string `json:"db_driver,omitempty"`
	ChatEnabled bool   `json:"chat_enabled"`
}

// Bootstrap is the /bootstrap API response: everything the UI needs for its first render.
type Bootstrap struct {
	Config   Config    `json:"config"`
	Pillars  []Pillar  `json:"pillars"`
	Teams    []Team    `json:"teams"`
	Projects []Project `json:"projects"`
	Tasks    []Task    `json:"tasks"`
}

// ChatMessage is one turn of an assistant conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
}

// ChatResponse is the POST /chat response.
type ChatResponse struct {
	Reply string `json:"reply"`
}
