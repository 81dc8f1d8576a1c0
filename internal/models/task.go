// internal/models/task.go
package models

import "time"

// TaskStatus defines the possible statuses for a task.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
)

func IsAllowedStatus(s TaskStatus) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

// Level maps a priority onto its ordinal: low=1, medium=2, high=3.
// Unknown priorities map to 0 and lose every comparison.
func (p TaskPriority) Level() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	}
	return 0
}

// HigherPriority picks the higher of two levels; ties return a.
func HigherPriority(a, b TaskPriority) TaskPriority {
	if b.Level() > a.Level() {
		return b
	}
	return a
}

// TaskSize is the T-shirt size carried only by top-level tasks.
type TaskSize string

const (
	SizeXS TaskSize = "xs"
	SizeS  TaskSize = "s"
	SizeM  TaskSize = "m"
	SizeL  TaskSize = "l"
	SizeXL TaskSize = "xl"
)

// AllSizes is the fixed bucket order used by weight metric breakdowns.
var AllSizes = []TaskSize{SizeXS, SizeS, SizeM, SizeL, SizeXL}

func IsAllowedSize(s TaskSize) bool {
	for _, v := range AllSizes {
		if v == s {
			return true
		}
	}
	return false
}

// Task represents one node of a project's task tree.
//
// Two exclusivity invariants hold at all times:
//   - Size != nil => ParentID == nil (only top-level tasks are sized)
//   - CurrentStoryPoints != nil => ParentID != nil (only subtasks carry points)
//
// Position is 1-indexed, unique and contiguous within the sibling scope
// (same project, same parent).
type Task struct {
	ID                     int64        `json:"id"`
	ProjectID              int64        `json:"project_id"`
	ParentID               *int64       `json:"parent_id,omitempty"`
	Depth                  int          `json:"depth"`
	Title                  string       `json:"title"`
	Description            string       `json:"description"`
	Status                 TaskStatus   `json:"status"`
	Priority               TaskPriority `json:"priority"`
	Position               int          `json:"position"`
	Size                   *TaskSize    `json:"size,omitempty"`
	InitialStoryPoints     *int         `json:"initial_story_points,omitempty"`
	CurrentStoryPoints     *int         `json:"current_story_points,omitempty"`
	StoryPointsChangeCount int          `json:"story_points_change_count"`
	DueDate                *time.Time   `json:"due_date,omitempty"`
	CreatedAt              time.Time    `json:"created_at"`
	UpdatedAt              time.Time    `json:"updated_at"`
}

// IsTopLevel reports whether the task sits at the root of its project tree.
func (t *Task) IsTopLevel() bool { return t.ParentID == nil }

// IsIncomplete reports whether the task still counts toward workload.
func (t *Task) IsIncomplete() bool { return t.Status != StatusCompleted }

// IsOverdue reports whether the task has a due date in the past and is not done.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now) && t.IsIncomplete()
}

// TaskFilter defines the available parameters for filtering tasks.
type TaskFilter struct {
	ProjectID *int64
	ParentID  *int64
	Status    *TaskStatus
	LeafOnly  bool
}
