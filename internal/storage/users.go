package storage

import (
	"context"
	"fmt"

	"github.com/Makazone/howhappy-api/pkg/model"

	"github.com/jackc/pgx/v5"
)

// CreateUser inserts a new user.
func (s *PostgresStorage) CreateUser(ctx context.Context, u *model.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, display_name, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.pool.Exec(ctx, query, u.ID, u.Email, u.PasswordHash, u.DisplayName, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByEmail retrieves a user by email.
func (s *PostgresStorage) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT id, email, password_hash, display_name, created_at FROM users WHERE email = $1`

	var u model.User
	err := s.pool.QueryRow(ctx, query, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// GetUserByID retrieves a user by ID.
func (s *PostgresStorage) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT id, email, password_hash, display_name, created_at FROM users WHERE id = $1`

	var u model.User
	err := s.pool.QueryRow(ctx, query, id).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}
