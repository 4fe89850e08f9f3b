package storage

import (
	"context"
	"fmt"

	"github.com/Makazone/howhappy-api/pkg/model"

	"github.com/jackc/pgx/v5"
)

const surveyColumns = `id, owner_id, title, prompt, status, created_at, updated_at`

func scanSurvey(row pgx.Row) (*model.Survey, error) {
	var s model.Survey
	err := row.Scan(&s.ID, &s.OwnerID, &s.Title, &s.Prompt, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if !s.Status.Valid() {
		return nil, fmt.Errorf("survey %s carries unknown status", s.ID)
	}
	return &s, nil
}

// CreateSurvey inserts a new survey.
func (s *PostgresStorage) CreateSurvey(ctx context.Context, sv *model.Survey) error {
	query := `
		INSERT INTO surveys (id, owner_id, title, prompt, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, query, sv.ID, sv.OwnerID, sv.Title, sv.Prompt, sv.Status, sv.CreatedAt, sv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create survey: %w", err)
	}
	return nil
}

// GetSurveyByID retrieves a survey by its ID.
func (s *PostgresStorage) GetSurveyByID(ctx context.Context, id string) (*model.Survey, error) {
	query := `SELECT ` + surveyColumns + ` FROM surveys WHERE id = $1`

	sv, err := scanSurvey(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get survey: %w", err)
	}
	return sv, nil
}

// UpdateSurvey overwrites the mutable survey fields.
func (s *PostgresStorage) UpdateSurvey(ctx context.Context, sv *model.Survey) error {
	query := `
		UPDATE surveys
		SET title = $2, prompt = $3, status = $4, updated_at = NOW()
		WHERE id = $1`

	result, err := s.pool.Exec(ctx, query, sv.ID, sv.Title, sv.Prompt, sv.Status)
	if err != nil {
		return fmt.Errorf("failed to update survey: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListSurveysByOwner returns the owner's surveys newest first, keyset
// paginated: pass the last seen survey ID as cursor, or "" for the first
// page.
func (s *PostgresStorage) ListSurveysByOwner(ctx context.Context, ownerID, cursor string, limit int) ([]*model.Survey, error) {
	query := `
		SELECT ` + surveyColumns + `
		FROM surveys
		WHERE owner_id = $1
		  AND ($2 = '' OR created_at < (SELECT created_at FROM surveys WHERE id = $2))
		ORDER BY created_at DESC
		LIMIT $3`

	rows, err := s.pool.Query(ctx, query, ownerID, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list surveys: %w", err)
	}
	defer rows.Close()

	var surveys []*model.Survey
	for rows.Next() {
		sv, err := scanSurvey(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan survey: %w", err)
		}
		surveys = append(surveys, sv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate surveys: %w", err)
	}

	return surveys, nil
}
