package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"curator/internal/models"
)

const taskColumns = `id, project_id, parent_id, depth, title, description, status, priority,
       position, size, initial_story_points, current_story_points, story_points_change_count,
       due_date, created_at, updated_at`

// PriorityUpdate is an optional priority write applied together with a
// reorder, so move and escalation land in the same transaction.
type PriorityUpdate struct {
	TaskID   int64
	Priority models.TaskPriority
}

type TaskRepository interface {
	Store(ctx context.Context, task *models.Task) error
	StoreBatch(ctx context.Context, tasks []*models.Task) error
	FindByID(ctx context.Context, id int64) (*models.Task, error)
	FindInProject(ctx context.Context, projectID, id int64) (*models.Task, error)
	ListSiblings(ctx context.Context, projectID int64, parentID *int64) ([]models.Task, error)
	ListLeafIncomplete(ctx context.Context, projectID int64) ([]models.Task, error)
	HasChildren(ctx context.Context, id int64) (bool, error)

	// Reorder rewrites the positions of one sibling scope to match orderedIDs
	// (1..N in slice order), optionally changing one task's priority in the
	// same transaction. The scope rows are locked for the duration.
	Reorder(ctx context.Context, projectID int64, parentID *int64, orderedIDs []int64, prio *PriorityUpdate) error

	// SumCompletedPoints totals the story points of tasks completed in a
	// project on one calendar day; feeds the daily velocity metric.
	SumCompletedPoints(ctx context.Context, projectID int64, day time.Time) (int, error)

	UpdateStatus(ctx context.Context, id int64, to models.TaskStatus) error
	UpdateSize(ctx context.Context, id int64, size models.TaskSize) error
	UpdateStoryPoints(ctx context.Context, id int64, points int) error
}

type taskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) TaskRepository {
	return &taskRepository{db: db}
}

func scanTask(row interface{ Scan(...interface{}) error }) (*models.Task, error) {
	t := &models.Task{}
	var size sql.NullString
	err := row.Scan(
		&t.ID, &t.ProjectID, &t.ParentID, &t.Depth, &t.Title, &t.Description,
		&t.Status, &t.Priority, &t.Position, &size,
		&t.InitialStoryPoints, &t.CurrentStoryPoints, &t.StoryPointsChangeCount,
		&t.DueDate, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if size.Valid {
		s := models.TaskSize(size.String)
		t.Size = &s
	}
	return t, nil
}

func (r *taskRepository) Store(ctx context.Context, task *models.Task) error {
	// position lands at the tail of the sibling scope
	query := `
		INSERT INTO tasks (
			project_id, parent_id, depth, title, description, status, priority,
			position, size, initial_story_points, current_story_points,
			story_points_change_count, due_date, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,
			(SELECT COALESCE(MAX(position),0)+1 FROM tasks
			   WHERE project_id=$1 AND parent_id IS NOT DISTINCT FROM $2),
			$8,$9,$10,$11,$12,NOW(),NOW())
		RETURNING id, position, created_at, updated_at`
	var size *string
	if task.Size != nil {
		s := string(*task.Size)
		size = &s
	}
	return r.db.QueryRowContext(ctx, query,
		task.ProjectID, task.ParentID, task.Depth, task.Title, task.Description,
		task.Status, task.Priority, size,
		task.InitialStoryPoints, task.CurrentStoryPoints, task.StoryPointsChangeCount,
		task.DueDate,
	).Scan(&task.ID, &task.Position, &task.CreatedAt, &task.UpdatedAt)
}

func (r *taskRepository) StoreBatch(ctx context.Context, tasks []*models.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO tasks (
			project_id, parent_id, depth, title, description, status, priority,
			position, size, initial_story_points, current_story_points,
			story_points_change_count, due_date, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,
			(SELECT COALESCE(MAX(position),0)+1 FROM tasks
			   WHERE project_id=$1 AND parent_id IS NOT DISTINCT FROM $2),
			$8,$9,$10,$11,$12,NOW(),NOW())
		RETURNING id, position, created_at, updated_at`
	for _, task := range tasks {
		var size *string
		if task.Size != nil {
			s := string(*task.Size)
			size = &s
		}
		err := tx.QueryRowContext(ctx, query,
			task.ProjectID, task.ParentID, task.Depth, task.Title, task.Description,
			task.Status, task.Priority, size,
			task.InitialStoryPoints, task.CurrentStoryPoints, task.StoryPointsChangeCount,
			task.DueDate,
		).Scan(&task.ID, &task.Position, &task.CreatedAt, &task.UpdatedAt)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *taskRepository) FindByID(ctx context.Context, id int64) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	t, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

func (r *taskRepository) FindInProject(ctx context.Context, projectID, id int64) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 AND project_id = $2`
	t, err := scanTask(r.db.QueryRowContext(ctx, query, id, projectID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

func (r *taskRepository) ListSiblings(ctx context.Context, projectID int64, parentID *int64) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + `
		FROM tasks
		WHERE project_id = $1 AND parent_id IS NOT DISTINCT FROM $2
		ORDER BY position ASC`
	rows, err := r.db.QueryContext(ctx, query, projectID, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

func (r *taskRepository) ListLeafIncomplete(ctx context.Context, projectID int64) ([]models.Task, error) {
	// priority is stored as text; order by its ordinal level, not collation
	query := `SELECT ` + taskColumns + `
		FROM tasks t
		WHERE t.project_id = $1
		  AND t.status <> 'completed'
		  AND NOT EXISTS (SELECT 1 FROM tasks c WHERE c.parent_id = t.id)
		ORDER BY CASE t.priority WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END DESC,
		         t.position ASC`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

func collectTasks(rows *sql.Rows) ([]models.Task, error) {
	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func (r *taskRepository) HasChildren(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM tasks WHERE parent_id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *taskRepository) Reorder(ctx context.Context, projectID int64, parentID *int64, orderedIDs []int64, prio *PriorityUpdate) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// serialize reorders per sibling scope, counting the locked rows: a task
	// inserted into the scope after orderedIDs was computed would get its
	// position parked below and never restored
	var scopeCount int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM (
			SELECT id FROM tasks
			WHERE project_id = $1 AND parent_id IS NOT DISTINCT FROM $2
			FOR UPDATE
		) locked`, projectID, parentID).Scan(&scopeCount)
	if err != nil {
		return err
	}
	if scopeCount != len(orderedIDs) {
		return fmt.Errorf("reorder: sibling scope changed (%d tasks, reordering %d)", scopeCount, len(orderedIDs))
	}

	// park positions out of the way so the unique (project, parent, position)
	// index never trips mid-renumber
	_, err = tx.ExecContext(ctx, `
		UPDATE tasks SET position = -position
		WHERE project_id = $1 AND parent_id IS NOT DISTINCT FROM $2`, projectID, parentID)
	if err != nil {
		return err
	}

	for i, id := range orderedIDs {
		res, err := tx.ExecContext(ctx, `
			UPDATE tasks SET position = $1, updated_at = NOW()
			WHERE id = $2 AND project_id = $3`, i+1, id, projectID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n != 1 {
			return fmt.Errorf("reorder: task %d not in scope", id)
		}
	}

	if prio != nil {
		_, err = tx.ExecContext(ctx, `
			UPDATE tasks SET priority = $1, updated_at = NOW()
			WHERE id = $2 AND project_id = $3`, prio.Priority, prio.TaskID, projectID)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *taskRepository) SumCompletedPoints(ctx context.Context, projectID int64, day time.Time) (int, error) {
	var total int
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(current_story_points), 0)
		FROM tasks
		WHERE project_id = $1
		  AND status = 'completed'
		  AND updated_at::date = $2::date`, projectID, day).Scan(&total)
	return total, err
}

func (r *taskRepository) UpdateStatus(ctx context.Context, id int64, to models.TaskStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET status=$1, updated_at=NOW() WHERE id=$2`, to, id)
	return err
}

func (r *taskRepository) UpdateSize(ctx context.Context, id int64, size models.TaskSize) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET size=$1, updated_at=NOW() WHERE id=$2`, string(size), id)
	return err
}

func (r *taskRepository) UpdateStoryPoints(ctx context.Context, id int64, points int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE tasks SET
			current_story_points = $1,
			initial_story_points = COALESCE(initial_story_points, $1),
			story_points_change_count = story_points_change_count +
				CASE WHEN current_story_points IS DISTINCT FROM $1 THEN 1 ELSE 0 END,
			updated_at = NOW()
		WHERE id = $2`, points, id)
	return err
}
