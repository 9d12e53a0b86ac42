package repository

import (
	"context"

	"github.com/codelock/codelock-backend/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FacultyRepository handles faculty account data access.
type FacultyRepository struct {
	pool *pgxpool.Pool
}

// NewFacultyRepository creates a new FacultyRepository.
func NewFacultyRepository(pool *pgxpool.Pool) *FacultyRepository {
	return &FacultyRepository{pool: pool}
}

// GetByEmail retrieves a faculty account by email (login lookup).
func (r *FacultyRepository) GetByEmail(ctx context.Context, email string) (*model.Faculty, error) {
	f := &model.Faculty{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, email, password_hash, created_at
		 FROM faculty WHERE email = $1`, email,
	).Scan(&f.ID, &f.Name, &f.Email, &f.PasswordHash, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// GetByID retrieves a faculty account by primary key.
func (r *FacultyRepository) GetByID(ctx context.Context, id int) (*model.Faculty, error) {
	f := &model.Faculty{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, email, password_hash, created_at
		 FROM faculty WHERE id = $1`, id,
	).Scan(&f.ID, &f.Name, &f.Email, &f.PasswordHash, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Create inserts a faculty account.
func (r *FacultyRepository) Create(ctx context.Context, f *model.Faculty) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO faculty (name, email, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		f.Name, f.Email, f.PasswordHash,
	).Scan(&f.ID, &f.CreatedAt)
}
