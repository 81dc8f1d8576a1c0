// internal/services/breakdown_service.go
package services

import (
	"context"
	"errors"
	"log"

	"curator/internal/ai"
	"curator/internal/apperr"
	"curator/internal/models"
	"curator/internal/repositories"
)

// MaxFeedbackLen caps the free-text feedback on a breakdown request.
const MaxFeedbackLen = 2000

// BreakdownRequest carries a decomposition request.
type BreakdownRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	ParentTaskID *int64 `json:"parent_task_id,omitempty"`
	UserFeedback string `json:"user_feedback,omitempty"`
}

// SubtaskInput is one subtask for direct creation.
type SubtaskInput struct {
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	StoryPoints *int                `json:"story_points,omitempty"`
	Priority    models.TaskPriority `json:"priority,omitempty"`
}

// PriorityAdjustment reports the resolver's speculative verdict for the
// parent task; nil when the breakdown has no parent.
type PriorityAdjustment struct {
	TaskID            int64               `json:"task_id"`
	CurrentPriority   models.TaskPriority `json:"current_priority"`
	SuggestedPriority models.TaskPriority `json:"suggested_priority"`
}

// BreakdownResponse is the success payload of a breakdown request.
type BreakdownResponse struct {
	Success             bool                `json:"success"`
	Subtasks            []ai.SubtaskDraft   `json:"subtasks"`
	Notes               string              `json:"notes,omitempty"`
	Summary             string              `json:"summary,omitempty"`
	Problems            []string            `json:"problems,omitempty"`
	Suggestions         []string            `json:"suggestions,omitempty"`
	PriorityAdjustments *PriorityAdjustment `json:"priority_adjustments"`
}

// Sizer is the narrow sizing capability other services depend on.
type Sizer interface {
	SizeFor(ctx context.Context, task *models.Task) *models.TaskSize
	SizeBatch(ctx context.Context, tasks []models.Task) map[int64]models.TaskSize
}

type BreakdownService interface {
	Sizer
	Breakdown(ctx context.Context, userID, projectID int64, req BreakdownRequest) (*BreakdownResponse, error)
	CreateSubtasks(ctx context.Context, userID, projectID, parentID int64, inputs []SubtaskInput) ([]models.Task, error)
}

type breakdownService struct {
	tasks    repositories.TaskRepository
	projects repositories.ProjectRepository
	adapter  ai.Adapter // nil when unconfigured; heuristics take over
}

func NewBreakdownService(tasks repositories.TaskRepository, projects repositories.ProjectRepository, adapter ai.Adapter) BreakdownService {
	return &breakdownService{tasks: tasks, projects: projects, adapter: adapter}
}

func (s *breakdownService) authorizeProject(ctx context.Context, userID, projectID int64) (*models.Project, error) {
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, apperr.NotFound("project not found")
	}
	if project.OwnerID != userID {
		return nil, apperr.Forbidden("not project owner")
	}
	return project, nil
}

// resolveParent enforces the decomposition preconditions on a parent task.
func (s *breakdownService) resolveParent(ctx context.Context, projectID, parentID int64) (*models.Task, error) {
	parent, err := s.tasks.FindInProject(ctx, projectID, parentID)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		// cross-project or missing: same message either way, no detail leaked
		return nil, apperr.DomainRule("Invalid parent task.")
	}
	if parent.CurrentStoryPoints != nil && *parent.CurrentStoryPoints == 1 {
		return nil, apperr.DomainRule("A 1-point task is already minimal and cannot be broken down further.")
	}
	return parent, nil
}

func (s *breakdownService) Breakdown(ctx context.Context, userID, projectID int64, req BreakdownRequest) (*BreakdownResponse, error) {
	if _, err := s.authorizeProject(ctx, userID, projectID); err != nil {
		return nil, err
	}
	if req.Title == "" {
		return nil, apperr.Validation("title", "is required")
	}
	if len(req.UserFeedback) > MaxFeedbackLen {
		return nil, apperr.Validation("user_feedback", "must be at most %d characters", MaxFeedbackLen)
	}

	var parent *models.Task
	if req.ParentTaskID != nil {
		var err error
		parent, err = s.resolveParent(ctx, projectID, *req.ParentTaskID)
		if err != nil {
			return nil, err
		}
	}

	prompt := ai.BuildBreakdownPrompt(req.Title, req.Description, parent, req.UserFeedback)

	var result *ai.BreakdownResult
	if s.adapter != nil {
		var err error
		result, err = s.adapter.GenerateBreakdown(ctx, prompt)
		if err != nil {
			log.Printf("[breakdown][fallback] title=%q: %v", req.Title, err)
			result = nil
		}
	}
	if result == nil {
		result = ai.FallbackBreakdown(req.Title)
	}

	res := &BreakdownResponse{
		Success:     true,
		Subtasks:    result.Subtasks,
		Notes:       result.Notes,
		Summary:     result.Summary,
		Problems:    result.Problems,
		Suggestions: result.Suggestions,
	}

	if parent != nil {
		adj, err := s.speculativeAdjustment(ctx, parent)
		if err != nil {
			return nil, err
		}
		res.PriorityAdjustments = adj
	}
	return res, nil
}

// speculativeAdjustment runs the reorder resolver's conflict logic against
// the parent at its current position, without mutating anything.
func (s *breakdownService) speculativeAdjustment(ctx context.Context, parent *models.Task) (*PriorityAdjustment, error) {
	siblings, err := s.tasks.ListSiblings(ctx, parent.ProjectID, parent.ParentID)
	if err != nil {
		return nil, err
	}
	seq := withoutTask(siblings, parent.ID)
	candidate := CandidatePriority(seq, parent, parent.Position)
	if candidate == parent.Priority {
		return nil, nil
	}
	return &PriorityAdjustment{
		TaskID:            parent.ID,
		CurrentPriority:   parent.Priority,
		SuggestedPriority: candidate,
	}, nil
}

func (s *breakdownService) CreateSubtasks(ctx context.Context, userID, projectID, parentID int64, inputs []SubtaskInput) ([]models.Task, error) {
	if _, err := s.authorizeProject(ctx, userID, projectID); err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, apperr.Validation("subtasks", "must not be empty")
	}
	// unlike the breakdown preview, a bad parent id here is a request-shape
	// problem: field-scoped validation, not a domain rule
	parent, err := s.tasks.FindInProject(ctx, projectID, parentID)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, apperr.Validation("parent_task_id", "must reference a task in this project")
	}
	if parent.CurrentStoryPoints != nil && *parent.CurrentStoryPoints == 1 {
		return nil, apperr.DomainRule("A 1-point task is already minimal and cannot be broken down further.")
	}

	batch := make([]*models.Task, 0, len(inputs))
	for i, in := range inputs {
		if in.Title == "" {
			return nil, apperr.Validation("subtasks", "item %d is missing a title", i+1)
		}
		if in.StoryPoints != nil && *in.StoryPoints < 0 {
			return nil, apperr.Validation("subtasks", "item %d has negative story points", i+1)
		}
		prio := in.Priority
		if prio == "" {
			prio = parent.Priority
		}
		pid := parent.ID
		t := &models.Task{
			ProjectID:   projectID,
			ParentID:    &pid,
			Depth:       parent.Depth + 1,
			Title:       in.Title,
			Description: in.Description,
			Status:      models.StatusPending,
			Priority:    prio,
			// subtasks never carry a size
		}
		if in.StoryPoints != nil {
			p := *in.StoryPoints
			t.InitialStoryPoints = &p
			t.CurrentStoryPoints = &p
		}
		batch = append(batch, t)
	}

	if err := s.tasks.StoreBatch(ctx, batch); err != nil {
		return nil, err
	}
	log.Printf("[breakdown][subtasks][ok] parent=%d count=%d", parent.ID, len(batch))

	out := make([]models.Task, 0, len(batch))
	for _, t := range batch {
		out = append(out, *t)
	}
	return out, nil
}

// SizeFor classifies a top-level task; subtasks always come back unsized.
func (s *breakdownService) SizeFor(ctx context.Context, task *models.Task) *models.TaskSize {
	if !task.IsTopLevel() {
		return nil
	}
	if s.adapter != nil {
		size, err := s.adapter.ClassifySize(ctx, task.Title, task.Description)
		if err == nil {
			return &size
		}
		if !errors.Is(err, ai.ErrUnavailable) {
			log.Printf("[sizing][err] task=%q: %v", task.Title, err)
		}
	}
	size := ai.HeuristicSize(task.Title)
	return &size
}

// SizeBatch applies the sizing rule per task, skipping subtasks. A provider
// failure mid-batch flips the whole batch to the heuristic so one response
// never mixes AI and heuristic labels.
func (s *breakdownService) SizeBatch(ctx context.Context, tasks []models.Task) map[int64]models.TaskSize {
	if s.adapter != nil {
		out := make(map[int64]models.TaskSize)
		complete := true
		for i := range tasks {
			t := &tasks[i]
			if !t.IsTopLevel() {
				continue
			}
			size, err := s.adapter.ClassifySize(ctx, t.Title, t.Description)
			if err != nil {
				log.Printf("[sizing][fallback] batch degrades to heuristic: %v", err)
				complete = false
				break
			}
			out[t.ID] = size
		}
		if complete {
			return out
		}
	}

	out := make(map[int64]models.TaskSize)
	for i := range tasks {
		t := &tasks[i]
		if !t.IsTopLevel() {
			continue
		}
		out[t.ID] = ai.HeuristicSize(t.Title)
	}
	return out
}
