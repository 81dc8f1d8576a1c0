package repositories

import (
	"context"
	"database/sql"

	"curator/internal/models"
)

// UserRepository reads from the identity collaborator's tables; this system
// never writes users.
type UserRepository interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
	// ListCurationEligible returns users with a verified email, no pending
	// approval flag and an approval timestamp.
	ListCurationEligible(ctx context.Context) ([]models.User, error)
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, email, name, email_verified_at, pending_approval, approved_at`

func (r *userRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	u := &models.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id).Scan(
		&u.ID, &u.Email, &u.Name, &u.EmailVerifiedAt, &u.PendingApproval, &u.ApprovedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *userRepository) ListCurationEligible(ctx context.Context) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE email_verified_at IS NOT NULL
		  AND pending_approval = FALSE
		  AND approved_at IS NOT NULL
		ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.EmailVerifiedAt, &u.PendingApproval, &u.ApprovedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
