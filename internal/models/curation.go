// internal/models/curation.go
package models

import "time"

// SuggestionType classifies one curation suggestion.
type SuggestionType string

const (
	SuggestionPriority     SuggestionType = "priority"
	SuggestionRisk         SuggestionType = "risk"
	SuggestionOptimization SuggestionType = "optimization"
)

// Suggestion is one entry of a daily curation's suggestion set.
type Suggestion struct {
	Type    SuggestionType `json:"type"`
	TaskID  *int64         `json:"task_id,omitempty"`
	Message string         `json:"message"`
}

// DailyCuration is one curation pass result per (user, project, work date).
// The suggestion set is always replaced wholesale, never patched.
type DailyCuration struct {
	ID          int64        `json:"id"`
	UserID      int64        `json:"user_id"`
	ProjectID   int64        `json:"project_id"`
	WorkDate    time.Time    `json:"work_date"`
	Suggestions []Suggestion `json:"suggestions"`
	Summary     string       `json:"summary"`
	Problems    []string     `json:"problems,omitempty"`
	FocusAreas  []string     `json:"focus_areas,omitempty"`
	GeneratedBy string       `json:"generated_by"` // "ai" or "fallback"
	CreatedAt   time.Time    `json:"created_at"`
}

// ProjectWeight is a per-project subtotal inside a DailyWeightMetric.
type ProjectWeight struct {
	ProjectID   int64  `json:"project_id"`
	ProjectName string `json:"project_name"`
	StoryPoints int    `json:"story_points"`
	TasksCount  int    `json:"tasks_count"`
}

// DailyWeightMetric is the per-user daily workload snapshot. One row per
// (user, metric date); recomputation replaces the row.
type DailyWeightMetric struct {
	ID                   int64            `json:"id"`
	UserID               int64            `json:"user_id"`
	MetricDate           time.Time        `json:"metric_date"`
	TotalStoryPoints     int              `json:"total_story_points"`
	TotalTasksCount      int              `json:"total_tasks_count"`
	SignedTasksCount     int              `json:"signed_tasks_count"`
	UnsignedTasksCount   int              `json:"unsigned_tasks_count"`
	AveragePointsPerTask float64          `json:"average_points_per_task"`
	DailyVelocity        float64          `json:"daily_velocity"`
	ProjectBreakdown     []ProjectWeight  `json:"project_breakdown"`
	SizeBreakdown        map[TaskSize]int `json:"size_breakdown"`
	CreatedAt            time.Time        `json:"created_at"`
}

// CuratedTask records that a curatable entity was ranked for a user on a
// work date. MovedCount only ever grows, surviving index resets.
type CuratedTask struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	Kind         string    `json:"kind"`
	CuratableID  int64     `json:"curatable_id"`
	WorkDate     time.Time `json:"work_date"`
	InitialIndex int       `json:"initial_index"`
	CurrentIndex int       `json:"current_index"`
	MovedCount   int       `json:"moved_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// CurationPrompt is the audit copy of a prompt sent to the AI adapter.
type CurationPrompt struct {
	ID        int64     `json:"id"`
	PassID    string    `json:"pass_id"`
	UserID    int64     `json:"user_id"`
	ProjectID int64     `json:"project_id"`
	Prompt    string    `json:"prompt"`
	CreatedAt time.Time `json:"created_at"`
}
