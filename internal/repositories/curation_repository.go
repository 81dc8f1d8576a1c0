package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"curator/internal/models"
)

// CurationRepository persists the outputs of a curation pass. The pass
// writer is transactional: a user's curation rows, curated-task ranks and
// weight metric either all land or none do.
type CurationRepository interface {
	StorePrompt(ctx context.Context, p *models.CurationPrompt) error
	SavePass(ctx context.Context, curations []*models.DailyCuration, metric *models.DailyWeightMetric, curated []*models.CuratedTask) error

	FindDailyCuration(ctx context.Context, userID, projectID int64, workDate time.Time) (*models.DailyCuration, error)
	FindWeightMetric(ctx context.Context, userID int64, metricDate time.Time) (*models.DailyWeightMetric, error)
	FindCuratedTask(ctx context.Context, id int64) (*models.CuratedTask, error)
	ListCuratedTasks(ctx context.Context, userID int64, workDate time.Time) ([]models.CuratedTask, error)

	// Rank moves a curated task to a new current index and bumps the moved
	// counter. The counter never resets.
	Rank(ctx context.Context, id int64, newIndex int) (*models.CuratedTask, error)
}

type curationRepository struct {
	db *sql.DB
}

func NewCurationRepository(db *sql.DB) CurationRepository {
	return &curationRepository{db: db}
}

func (r *curationRepository) StorePrompt(ctx context.Context, p *models.CurationPrompt) error {
	return r.db.QueryRowContext(ctx, `
		INSERT INTO curation_prompts (pass_id, user_id, project_id, prompt, created_at)
		VALUES ($1,$2,$3,$4,NOW())
		RETURNING id, created_at`,
		p.PassID, p.UserID, p.ProjectID, p.Prompt,
	).Scan(&p.ID, &p.CreatedAt)
}

func (r *curationRepository) SavePass(ctx context.Context, curations []*models.DailyCuration, metric *models.DailyWeightMetric, curated []*models.CuratedTask) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, c := range curations {
		suggestions, err := json.Marshal(c.Suggestions)
		if err != nil {
			return err
		}
		problems, err := json.Marshal(c.Problems)
		if err != nil {
			return err
		}
		focus, err := json.Marshal(c.FocusAreas)
		if err != nil {
			return err
		}
		// one row per (user, project, work_date); rerun replaces wholesale
		err = tx.QueryRowContext(ctx, `
			INSERT INTO daily_curations (
				user_id, project_id, work_date, suggestions, summary,
				problems, focus_areas, generated_by, created_at
			)
			VALUES ($1,$2,$3,$4::jsonb,$5,$6::jsonb,$7::jsonb,$8,NOW())
			ON CONFLICT (user_id, project_id, work_date) DO UPDATE SET
				suggestions = EXCLUDED.suggestions,
				summary = EXCLUDED.summary,
				problems = EXCLUDED.problems,
				focus_areas = EXCLUDED.focus_areas,
				generated_by = EXCLUDED.generated_by,
				created_at = NOW()
			RETURNING id, created_at`,
			c.UserID, c.ProjectID, c.WorkDate, suggestions, c.Summary,
			problems, focus, c.GeneratedBy,
		).Scan(&c.ID, &c.CreatedAt)
		if err != nil {
			return err
		}
	}

	if metric != nil {
		projBreakdown, err := json.Marshal(metric.ProjectBreakdown)
		if err != nil {
			return err
		}
		sizeBreakdown, err := json.Marshal(metric.SizeBreakdown)
		if err != nil {
			return err
		}
		err = tx.QueryRowContext(ctx, `
			INSERT INTO daily_weight_metrics (
				user_id, metric_date, total_story_points, total_tasks_count,
				signed_tasks_count, unsigned_tasks_count, average_points_per_task,
				daily_velocity, project_breakdown, size_breakdown, created_at
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9::jsonb,$10::jsonb,NOW())
			ON CONFLICT (user_id, metric_date) DO UPDATE SET
				total_story_points = EXCLUDED.total_story_points,
				total_tasks_count = EXCLUDED.total_tasks_count,
				signed_tasks_count = EXCLUDED.signed_tasks_count,
				unsigned_tasks_count = EXCLUDED.unsigned_tasks_count,
				average_points_per_task = EXCLUDED.average_points_per_task,
				daily_velocity = EXCLUDED.daily_velocity,
				project_breakdown = EXCLUDED.project_breakdown,
				size_breakdown = EXCLUDED.size_breakdown,
				created_at = NOW()
			RETURNING id, created_at`,
			metric.UserID, metric.MetricDate, metric.TotalStoryPoints, metric.TotalTasksCount,
			metric.SignedTasksCount, metric.UnsignedTasksCount, metric.AveragePointsPerTask,
			metric.DailyVelocity, projBreakdown, sizeBreakdown,
		).Scan(&metric.ID, &metric.CreatedAt)
		if err != nil {
			return err
		}
	}

	if len(curated) > 0 {
		// a rerun regenerates the day's ranks but keeps moved_count
		for _, ct := range curated {
			err = tx.QueryRowContext(ctx, `
				INSERT INTO curated_tasks (
					user_id, kind, curatable_id, work_date,
					initial_index, current_index, moved_count, created_at
				)
				VALUES ($1,$2,$3,$4,$5,$6,0,NOW())
				ON CONFLICT (user_id, kind, curatable_id, work_date) DO UPDATE SET
					initial_index = EXCLUDED.initial_index,
					current_index = EXCLUDED.current_index
				RETURNING id, moved_count, created_at`,
				ct.UserID, ct.Kind, ct.CuratableID, ct.WorkDate,
				ct.InitialIndex, ct.CurrentIndex,
			).Scan(&ct.ID, &ct.MovedCount, &ct.CreatedAt)
			if err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

func (r *curationRepository) FindDailyCuration(ctx context.Context, userID, projectID int64, workDate time.Time) (*models.DailyCuration, error) {
	c := &models.DailyCuration{}
	var suggestions, problems, focus []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, project_id, work_date, suggestions, summary,
		       problems, focus_areas, generated_by, created_at
		FROM daily_curations
		WHERE user_id = $1 AND project_id = $2 AND work_date = $3`,
		userID, projectID, workDate,
	).Scan(&c.ID, &c.UserID, &c.ProjectID, &c.WorkDate, &suggestions, &c.Summary,
		&problems, &focus, &c.GeneratedBy, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(suggestions, &c.Suggestions); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(problems, &c.Problems); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(focus, &c.FocusAreas); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *curationRepository) FindWeightMetric(ctx context.Context, userID int64, metricDate time.Time) (*models.DailyWeightMetric, error) {
	m := &models.DailyWeightMetric{}
	var projBreakdown, sizeBreakdown []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, metric_date, total_story_points, total_tasks_count,
		       signed_tasks_count, unsigned_tasks_count, average_points_per_task,
		       daily_velocity, project_breakdown, size_breakdown, created_at
		FROM daily_weight_metrics
		WHERE user_id = $1 AND metric_date = $2`,
		userID, metricDate,
	).Scan(&m.ID, &m.UserID, &m.MetricDate, &m.TotalStoryPoints, &m.TotalTasksCount,
		&m.SignedTasksCount, &m.UnsignedTasksCount, &m.AveragePointsPerTask,
		&m.DailyVelocity, &projBreakdown, &sizeBreakdown, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(projBreakdown, &m.ProjectBreakdown); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(sizeBreakdown, &m.SizeBreakdown); err != nil {
		return nil, err
	}
	return m, nil
}

const curatedColumns = `id, user_id, kind, curatable_id, work_date, initial_index, current_index, moved_count, created_at`

func (r *curationRepository) FindCuratedTask(ctx context.Context, id int64) (*models.CuratedTask, error) {
	ct := &models.CuratedTask{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+curatedColumns+` FROM curated_tasks WHERE id = $1`, id,
	).Scan(&ct.ID, &ct.UserID, &ct.Kind, &ct.CuratableID, &ct.WorkDate,
		&ct.InitialIndex, &ct.CurrentIndex, &ct.MovedCount, &ct.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ct, nil
}

func (r *curationRepository) ListCuratedTasks(ctx context.Context, userID int64, workDate time.Time) ([]models.CuratedTask, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+curatedColumns+` FROM curated_tasks
		WHERE user_id = $1 AND work_date = $2
		ORDER BY current_index ASC`, userID, workDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.CuratedTask
	for rows.Next() {
		var ct models.CuratedTask
		if err := rows.Scan(&ct.ID, &ct.UserID, &ct.Kind, &ct.CuratableID, &ct.WorkDate,
			&ct.InitialIndex, &ct.CurrentIndex, &ct.MovedCount, &ct.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}

func (r *curationRepository) Rank(ctx context.Context, id int64, newIndex int) (*models.CuratedTask, error) {
	ct := &models.CuratedTask{}
	err := r.db.QueryRowContext(ctx, `
		UPDATE curated_tasks SET
			current_index = $1,
			moved_count = moved_count + CASE WHEN current_index <> $1 THEN 1 ELSE 0 END
		WHERE id = $2
		RETURNING `+curatedColumns,
		newIndex, id,
	).Scan(&ct.ID, &ct.UserID, &ct.Kind, &ct.CuratableID, &ct.WorkDate,
		&ct.InitialIndex, &ct.CurrentIndex, &ct.MovedCount, &ct.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ct, nil
}
