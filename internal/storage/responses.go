package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Makazone/howhappy-api/pkg/model"

	"github.com/jackc/pgx/v5"
)

const responseColumns = `
	id, survey_id, registered_user_id, anonymous_email, audio_url, upload_state,
	transcription, confidence, language, duration, segments,
	transcription_status, analysis, analysis_status, created_at, updated_at`

func scanResponse(row pgx.Row) (*model.SurveyResponse, error) {
	var r model.SurveyResponse
	var segments []byte

	err := row.Scan(
		&r.ID,
		&r.SurveyID,
		&r.RegisteredUserID,
		&r.AnonymousEmail,
		&r.AudioURL,
		&r.UploadState,
		&r.Transcription,
		&r.Confidence,
		&r.Language,
		&r.Duration,
		&segments,
		&r.TranscriptionStatus,
		&r.Analysis,
		&r.AnalysisStatus,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(segments) > 0 {
		if err := json.Unmarshal(segments, &r.Segments); err != nil {
			return nil, fmt.Errorf("failed to decode segments: %w", err)
		}
	}

	if !r.UploadState.Valid() || !r.TranscriptionStatus.Valid() || !r.AnalysisStatus.Valid() {
		return nil, fmt.Errorf("response %s carries unknown state", r.ID)
	}

	return &r, nil
}

// CreateResponse inserts a new response record in its initial state.
func (s *PostgresStorage) CreateResponse(ctx context.Context, r *model.SurveyResponse) error {
	query := `
		INSERT INTO survey_responses (
			id, survey_id, registered_user_id, anonymous_email, upload_state,
			transcription_status, analysis_status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, query,
		r.ID,
		r.SurveyID,
		r.RegisteredUserID,
		r.AnonymousEmail,
		r.UploadState,
		r.TranscriptionStatus,
		r.AnalysisStatus,
		r.CreatedAt,
		r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create response: %w", err)
	}

	return nil
}

// GetResponseByID retrieves one response by its ID.
func (s *PostgresStorage) GetResponseByID(ctx context.Context, id string) (*model.SurveyResponse, error) {
	query := `SELECT ` + responseColumns + ` FROM survey_responses WHERE id = $1`

	r, err := scanResponse(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get response: %w", err)
	}
	return r, nil
}

// GetResponseByIDAndSurvey retrieves one response only if it belongs to
// the given survey.
func (s *PostgresStorage) GetResponseByIDAndSurvey(ctx context.Context, id, surveyID string) (*model.SurveyResponse, error) {
	query := `SELECT ` + responseColumns + ` FROM survey_responses WHERE id = $1 AND survey_id = $2`

	r, err := scanResponse(s.pool.QueryRow(ctx, query, id, surveyID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get response: %w", err)
	}
	return r, nil
}

// ListResponsesBySurvey returns all responses for a survey, newest first.
func (s *PostgresStorage) ListResponsesBySurvey(ctx context.Context, surveyID string) ([]*model.SurveyResponse, error) {
	query := `SELECT ` + responseColumns + ` FROM survey_responses WHERE survey_id = $1 ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, surveyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}
	defer rows.Close()

	var responses []*model.SurveyResponse
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan response: %w", err)
		}
		responses = append(responses, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate responses: %w", err)
	}

	return responses, nil
}

// CompleteUpload records the audio location and moves the upload state to
// COMPLETED. The write is a compare-and-set: a response already in a
// terminal upload state is left untouched and false is returned.
func (s *PostgresStorage) CompleteUpload(ctx context.Context, id, audioURL string) (bool, error) {
	query := `
		UPDATE survey_responses
		SET audio_url = $2, upload_state = $3, updated_at = NOW()
		WHERE id = $1 AND upload_state NOT IN ($3, $4)`

	result, err := s.pool.Exec(ctx, query, id, audioURL, model.UploadStateCompleted, model.UploadStateFailed)
	if err != nil {
		return false, fmt.Errorf("failed to complete upload: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// TransitionTranscription advances the transcription status from an
// expected prior state. A record that has already moved past `from` is
// left alone (no-op, not an error), which keeps redelivered jobs from
// regressing state.
func (s *PostgresStorage) TransitionTranscription(ctx context.Context, id string, from, to model.JobStatus) (bool, error) {
	query := `
		UPDATE survey_responses
		SET transcription_status = $3, updated_at = NOW()
		WHERE id = $1 AND transcription_status = $2`

	result, err := s.pool.Exec(ctx, query, id, from, to)
	if err != nil {
		return false, fmt.Errorf("failed to transition transcription status: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// TransitionAnalysis advances the analysis status from an expected prior
// state, with the same no-op contract as TransitionTranscription.
func (s *PostgresStorage) TransitionAnalysis(ctx context.Context, id string, from, to model.JobStatus) (bool, error) {
	query := `
		UPDATE survey_responses
		SET analysis_status = $3, updated_at = NOW()
		WHERE id = $1 AND analysis_status = $2`

	result, err := s.pool.Exec(ctx, query, id, from, to)
	if err != nil {
		return false, fmt.Errorf("failed to transition analysis status: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// SaveTranscriptionResult persists transcription output and completes the
// stage in one write, guarded on the status still being PROCESSING.
func (s *PostgresStorage) SaveTranscriptionResult(ctx context.Context, id string, text string, confidence float64, language string, duration float64, segments []model.TranscriptionSegment) (bool, error) {
	encoded, err := json.Marshal(segments)
	if err != nil {
		return false, fmt.Errorf("failed to encode segments: %w", err)
	}

	query := `
		UPDATE survey_responses
		SET transcription = $2, confidence = $3, language = $4, duration = $5,
		    segments = $6, transcription_status = $7, updated_at = NOW()
		WHERE id = $1 AND transcription_status = $8`

	result, err := s.pool.Exec(ctx, query,
		id, text, confidence, language, duration, encoded,
		model.JobStatusCompleted, model.JobStatusProcessing,
	)
	if err != nil {
		return false, fmt.Errorf("failed to save transcription result: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// SaveAnalysisResult persists analysis output and completes the stage,
// guarded on the status still being PROCESSING.
func (s *PostgresStorage) SaveAnalysisResult(ctx context.Context, id string, analysis model.JSONB) (bool, error) {
	query := `
		UPDATE survey_responses
		SET analysis = $2, analysis_status = $3, updated_at = NOW()
		WHERE id = $1 AND analysis_status = $4`

	result, err := s.pool.Exec(ctx, query, id, analysis, model.JobStatusCompleted, model.JobStatusProcessing)
	if err != nil {
		return false, fmt.Errorf("failed to save analysis result: %w", err)
	}

	return result.RowsAffected() > 0, nil
}
