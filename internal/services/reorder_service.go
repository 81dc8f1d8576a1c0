// internal/services/reorder_service.go
package services

import (
	"context"
	"fmt"
	"log"

	"curator/internal/apperr"
	"curator/internal/models"
	"curator/internal/repositories"
)

// ConfirmationData is returned when a move would drag the task's priority
// along and the caller has not confirmed yet.
type ConfirmationData struct {
	TaskPriority       models.TaskPriority   `json:"task_priority"`
	NeighborPriorities []models.TaskPriority `json:"neighbor_priorities"`
	Message            string                `json:"message"`
}

// MoveMetadata describes an applied move. MoveCount is the absolute
// position delta.
type MoveMetadata struct {
	OldPosition int `json:"old_position"`
	NewPosition int `json:"new_position"`
	MoveCount   int `json:"move_count"`
}

// MoveResult is the outcome of a reorder request.
type MoveResult struct {
	Success              bool                 `json:"success"`
	RequiresConfirmation bool                 `json:"requires_confirmation,omitempty"`
	ConfirmationData     *ConfirmationData    `json:"confirmation_data,omitempty"`
	PriorityChanged      bool                 `json:"priority_changed"`
	OldPriority          *models.TaskPriority `json:"old_priority"`
	NewPriority          *models.TaskPriority `json:"new_priority"`
	Move                 *MoveMetadata        `json:"move,omitempty"`
	Siblings             []models.Task        `json:"siblings,omitempty"`
}

// MoveProposal is the pure preview of a move: nothing has been mutated yet.
type MoveProposal struct {
	Task                 *models.Task
	Siblings             []models.Task // current order, task included
	NewPosition          int
	Candidate            models.TaskPriority
	RequiresConfirmation bool
	ConfirmationData     *ConfirmationData
}

// ReorderService implements the two-phase reorder contract: ProposeMove is
// side-effect free, ApplyMove mutates, Reorder maps the HTTP `confirmed`
// flag onto the two.
type ReorderService interface {
	ProposeMove(ctx context.Context, userID, projectID, taskID int64, newPosition int) (*MoveProposal, error)
	ApplyMove(ctx context.Context, p *MoveProposal) (*MoveResult, error)
	Reorder(ctx context.Context, userID, projectID, taskID int64, newPosition int, confirmed bool) (*MoveResult, error)
}

type reorderService struct {
	tasks    repositories.TaskRepository
	projects repositories.ProjectRepository
}

func NewReorderService(tasks repositories.TaskRepository, projects repositories.ProjectRepository) ReorderService {
	return &reorderService{tasks: tasks, projects: projects}
}

// CandidatePriority computes the priority a task would take at newPosition
// within seq (the sibling sequence with the task conceptually removed).
//
// The neighborhood is the pair of sequence elements nearest the insertion
// point; head and tail insertions clamp to the first or last two elements.
// Both neighbors sharing a level different from the task's pulls the task
// to that level. Mixed neighbors escalate to the higher of the two, never
// de-escalate. When fewer than two neighbors exist at all (sibling scope
// of one or two tasks) the priority is left alone.
func CandidatePriority(seq []models.Task, task *models.Task, newPosition int) models.TaskPriority {
	if len(seq) < 2 {
		return task.Priority
	}
	leftIdx := newPosition - 2
	rightIdx := newPosition - 1
	if leftIdx < 0 {
		leftIdx, rightIdx = 0, 1
	}
	if rightIdx >= len(seq) {
		leftIdx, rightIdx = len(seq)-2, len(seq)-1
	}

	left, right := seq[leftIdx].Priority, seq[rightIdx].Priority
	if left == right {
		if left != task.Priority {
			return left
		}
		return task.Priority
	}
	return models.HigherPriority(left, right)
}

func (s *reorderService) authorizeProject(ctx context.Context, userID, projectID int64) (*models.Project, error) {
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

func (s *reorderService) ProposeMove(ctx context.Context, userID, projectID, taskID int64, newPosition int) (*MoveProposal, error) {
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

	siblings, err := s.tasks.ListSiblings(ctx, projectID, task.ParentID)
	if err != nil {
		return nil, err
	}
	if newPosition < 1 || newPosition > len(siblings) {
		return nil, apperr.Validation("new_position", "must be between 1 and %d", len(siblings))
	}

	seq := withoutTask(siblings, task.ID)
	candidate := CandidatePriority(seq, task, newPosition)

	p := &MoveProposal{
		Task:        task,
		Siblings:    siblings,
		NewPosition: newPosition,
		Candidate:   candidate,
	}
	if candidate != task.Priority {
		p.RequiresConfirmation = true
		p.ConfirmationData = &ConfirmationData{
			TaskPriority:       task.Priority,
			NeighborPriorities: neighborPriorities(seq, newPosition),
			Message: fmt.Sprintf("Moving %q to position %d changes its priority from %s to %s. Confirm to proceed.",
				task.Title, newPosition, task.Priority, candidate),
		}
	}
	return p, nil
}

func (s *reorderService) ApplyMove(ctx context.Context, p *MoveProposal) (*MoveResult, error) {
	task := p.Task

	seq := withoutTask(p.Siblings, task.ID)
	ordered := make([]int64, 0, len(p.Siblings))
	for _, t := range seq[:p.NewPosition-1] {
		ordered = append(ordered, t.ID)
	}
	ordered = append(ordered, task.ID)
	for _, t := range seq[p.NewPosition-1:] {
		ordered = append(ordered, t.ID)
	}

	var prio *repositories.PriorityUpdate
	if p.Candidate != task.Priority {
		prio = &repositories.PriorityUpdate{TaskID: task.ID, Priority: p.Candidate}
	}

	if err := s.tasks.Reorder(ctx, task.ProjectID, task.ParentID, ordered, prio); err != nil {
		return nil, err
	}

	updated, err := s.tasks.ListSiblings(ctx, task.ProjectID, task.ParentID)
	if err != nil {
		return nil, err
	}

	delta := p.NewPosition - task.Position
	if delta < 0 {
		delta = -delta
	}
	res := &MoveResult{
		Success:  true,
		Move:     &MoveMetadata{OldPosition: task.Position, NewPosition: p.NewPosition, MoveCount: delta},
		Siblings: updated,
	}
	if prio != nil {
		old, newP := task.Priority, p.Candidate
		res.PriorityChanged = true
		res.OldPriority = &old
		res.NewPriority = &newP
		log.Printf("[reorder][apply] task=%d pos %d->%d priority %s->%s",
			task.ID, task.Position, p.NewPosition, old, newP)
	} else {
		log.Printf("[reorder][apply] task=%d pos %d->%d", task.ID, task.Position, p.NewPosition)
	}
	return res, nil
}

func (s *reorderService) Reorder(ctx context.Context, userID, projectID, taskID int64, newPosition int, confirmed bool) (*MoveResult, error) {
	p, err := s.ProposeMove(ctx, userID, projectID, taskID, newPosition)
	if err != nil {
		return nil, err
	}
	if p.RequiresConfirmation && !confirmed {
		log.Printf("[reorder][gate] task=%d pos=%d needs confirmation (%s -> %s)",
			taskID, newPosition, p.Task.Priority, p.Candidate)
		return &MoveResult{
			Success:              false,
			RequiresConfirmation: true,
			ConfirmationData:     p.ConfirmationData,
		}, nil
	}
	return s.ApplyMove(ctx, p)
}

func withoutTask(siblings []models.Task, id int64) []models.Task {
	seq := make([]models.Task, 0, len(siblings))
	for _, t := range siblings {
		if t.ID != id {
			seq = append(seq, t)
		}
	}
	return seq
}

// neighborPriorities mirrors the clamping of CandidatePriority so the
// confirmation payload names the exact pair that drove the candidate.
func neighborPriorities(seq []models.Task, newPosition int) []models.TaskPriority {
	if len(seq) < 2 {
		var out []models.TaskPriority
		for _, t := range seq {
			out = append(out, t.Priority)
		}
		return out
	}
	leftIdx := newPosition - 2
	rightIdx := newPosition - 1
	if leftIdx < 0 {
		leftIdx, rightIdx = 0, 1
	}
	if rightIdx >= len(seq) {
		leftIdx, rightIdx = len(seq)-2, len(seq)-1
	}
	return []models.TaskPriority{seq[leftIdx].Priority, seq[rightIdx].Priority}
}
