// internal/services/task_service.go
package services

import (
	"context"
	"log"
	"time"

	"curator/internal/apperr"
	"curator/internal/models"
	"curator/internal/repositories"
)

// CreateTaskInput carries a direct task creation. A parent id makes it a
// subtask; top-level tasks receive an automatic size.
type CreateTaskInput struct {
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	ParentID    *int64              `json:"parent_id,omitempty"`
	Priority    models.TaskPriority `json:"priority,omitempty"`
	StoryPoints *int                `json:"story_points,omitempty"`
	DueDate     *time.Time          `json:"due_date,omitempty"`
}

// TaskPatch updates size (top-level only) or story points (subtasks only).
type TaskPatch struct {
	Size        *models.TaskSize `json:"size,omitempty"`
	StoryPoints *int             `json:"current_story_points,omitempty"`
}

// TaskService defines the interface for task-related business logic.
type TaskService interface {
	Create(ctx context.Context, userID, projectID int64, input CreateTaskInput) (*models.Task, error)
	List(ctx context.Context, userID, projectID int64) ([]models.Task, error)
	Get(ctx context.Context, userID, projectID, taskID int64) (*models.Task, error)
	ChangeStatus(ctx context.Context, userID, projectID, taskID int64, to models.TaskStatus) (*models.Task, error)
	Update(ctx context.Context, userID, taskID int64, patch TaskPatch) (*models.Task, error)
}

type taskService struct {
	tasks    repositories.TaskRepository
	projects repositories.ProjectRepository
	sizer    Sizer
}

func NewTaskService(tasks repositories.TaskRepository, projects repositories.ProjectRepository, sizer Sizer) TaskService {
	return &taskService{tasks: tasks, projects: projects, sizer: sizer}
}

func (s *taskService) authorizeProject(ctx context.Context, userID, projectID int64) (*models.Project, error) {
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

func (s *taskService) Create(ctx context.Context, userID, projectID int64, input CreateTaskInput) (*models.Task, error) {
	if _, err := s.authorizeProject(ctx, userID, projectID); err != nil {
		return nil, err
	}
	if input.Title == "" {
		return nil, apperr.Validation("title", "is required")
	}
	if input.Priority == "" {
		input.Priority = models.PriorityMedium
	}
	if input.Priority.Level() == 0 {
		return nil, apperr.Validation("priority", "must be one of low, medium, high")
	}

	task := &models.Task{
		ProjectID:   projectID,
		Title:       input.Title,
		Description: input.Description,
		Status:      models.StatusPending,
		Priority:    input.Priority,
		DueDate:     input.DueDate,
	}

	if input.ParentID != nil {
		parent, err := s.tasks.FindInProject(ctx, projectID, *input.ParentID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, apperr.DomainRule("Invalid parent task.")
		}
		pid := parent.ID
		task.ParentID = &pid
		task.Depth = parent.Depth + 1
		if input.StoryPoints != nil {
			if *input.StoryPoints < 0 {
				return nil, apperr.Validation("story_points", "must be a non-negative integer")
			}
			p := *input.StoryPoints
			task.InitialStoryPoints = &p
			task.CurrentStoryPoints = &p
		}
	} else {
		if input.StoryPoints != nil {
			return nil, apperr.Validation("story_points", "story points are only valid on subtasks")
		}
		// top-level tasks are sized automatically at creation time
		task.Size = s.sizer.SizeFor(ctx, task)
	}

	if err := s.tasks.Store(ctx, task); err != nil {
		return nil, err
	}
	log.Printf("[task][create][ok] id=%d project=%d depth=%d title=%q", task.ID, projectID, task.Depth, task.Title)
	return task, nil
}

func (s *taskService) List(ctx context.Context, userID, projectID int64) ([]models.Task, error) {
	if _, err := s.authorizeProject(ctx, userID, projectID); err != nil {
		return nil, err
	}
	return s.tasks.ListSiblings(ctx, projectID, nil)
}

func (s *taskService) Get(ctx context.Context, userID, projectID, taskID int64) (*models.Task, error) {
	if _, err := s.authorizeProject(ctx, userID, projectID); err != nil {
		return nil, err
	}
	task, err := s.tasks.FindInProject(ctx, projectID, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, apperr.NotFound("task not found")
	}
	return task, nil
}

func (s *taskService) ChangeStatus(ctx context.Context, userID, projectID, taskID int64, to models.TaskStatus) (*models.Task, error) {
	if !models.IsAllowedStatus(to) {
		return nil, apperr.Validation("status", "must be one of pending, in_progress, completed")
	}
	task, err := s.Get(ctx, userID, projectID, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.tasks.UpdateStatus(ctx, task.ID, to); err != nil {
		return nil, err
	}
	log.Printf("[task][status][ok] id=%d %s -> %s", task.ID, task.Status, to)
	task.Status = to
	return task, nil
}

func (s *taskService) Update(ctx context.Context, userID, taskID int64, patch TaskPatch) (*models.Task, error) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, apperr.NotFound("task not found")
	}
	if _, err := s.authorizeProject(ctx, userID, task.ProjectID); err != nil {
		return nil, err
	}

	if patch.Size != nil {
		if !task.IsTopLevel() {
			return nil, apperr.Validation("size", "size is only valid on top-level tasks")
		}
		if !models.IsAllowedSize(*patch.Size) {
			return nil, apperr.Validation("size", "must be one of xs, s, m, l, xl")
		}
		if err := s.tasks.UpdateSize(ctx, task.ID, *patch.Size); err != nil {
			return nil, err
		}
		task.Size = patch.Size
		log.Printf("[task][update][ok] id=%d size=%s", task.ID, *patch.Size)
	}

	if patch.StoryPoints != nil {
		if task.IsTopLevel() {
			return nil, apperr.Validation("current_story_points", "story points are only valid on subtasks")
		}
		if *patch.StoryPoints < 0 {
			return nil, apperr.Validation("current_story_points", "must be a non-negative integer")
		}
		if err := s.tasks.UpdateStoryPoints(ctx, task.ID, *patch.StoryPoints); err != nil {
			return nil, err
		}
		if task.CurrentStoryPoints == nil || *task.CurrentStoryPoints != *patch.StoryPoints {
			task.StoryPointsChangeCount++
		}
		if task.InitialStoryPoints == nil {
			task.InitialStoryPoints = patch.StoryPoints
		}
		task.CurrentStoryPoints = patch.StoryPoints
		log.Printf("[task][update][ok] id=%d story_points=%d", task.ID, *patch.StoryPoints)
	}

	return task, nil
}
