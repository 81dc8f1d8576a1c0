package repositories

import (
	"context"
	"database/sql"

	"curator/internal/models"
)

type ProjectRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Project, error)
	// ListVisibleActive returns the active projects a user owns. Membership
	// beyond ownership is the identity collaborator's concern; the query
	// narrows to what curation needs.
	ListVisibleActive(ctx context.Context, userID int64) ([]models.Project, error)
	// ListAutoIterating returns active iterative projects with automatic
	// iteration creation enabled, for the daily lifecycle check.
	ListAutoIterating(ctx context.Context) ([]models.Project, error)
}

type projectRepository struct {
	db *sql.DB
}

func NewProjectRepository(db *sql.DB) ProjectRepository {
	return &projectRepository{db: db}
}

const projectColumns = `id, owner_id, name, status, project_type, auto_create_iterations, created_at`

func scanProject(row interface{ Scan(...interface{}) error }) (*models.Project, error) {
	p := &models.Project{}
	err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Status, &p.Type, &p.AutoCreateIterations, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *projectRepository) FindByID(ctx context.Context, id int64) (*models.Project, error) {
	p, err := scanProject(r.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (r *projectRepository) ListAutoIterating(ctx context.Context) ([]models.Project, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+projectColumns+` FROM projects
		WHERE status = 'active'
		  AND project_type = 'iterative'
		  AND auto_create_iterations = TRUE
		ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

func (r *projectRepository) ListVisibleActive(ctx context.Context, userID int64) ([]models.Project, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+projectColumns+` FROM projects
		WHERE owner_id = $1 AND status = 'active'
		ORDER BY id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}
