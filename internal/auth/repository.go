package auth

import (
	"context"
	"database/sql"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateUser(ctx context.Context, u *User) error {
	query := `INSERT INTO users (email, hashed_password, display_name)
	          VALUES ($1, $2, $3)
	          RETURNING id, is_active, created_at`

	return r.db.QueryRowContext(ctx, query, u.Email, u.HashedPassword, u.DisplayName).
		Scan(&u.ID, &u.IsActive, &u.CreatedAt)
}

// GetUserByEmail matches the email exactly (case-sensitive). Returns
// sql.ErrNoRows when no such user exists.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	u := &User{}
	query := `SELECT id, email, hashed_password, display_name, is_active, created_at
	          FROM users WHERE email = $1`

	err := r.db.QueryRowContext(ctx, query, email).
		Scan(&u.ID, &u.Email, &u.HashedPassword, &u.DisplayName, &u.IsActive, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}
