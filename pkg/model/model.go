package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// UploadState tracks the audio upload stage of a response.
// Transitions are forward-only; COMPLETED and FAILED are terminal.
type UploadState string

const (
	UploadStatePrepared  UploadState = "PREPARED"
	UploadStateUploading UploadState = "UPLOADING"
	UploadStateCompleted UploadState = "COMPLETED"
	UploadStateFailed    UploadState = "FAILED"
)

// Valid reports whether s is a known upload state. Unknown values coming
// off the wire or out of the database must be rejected, not propagated.
func (s UploadState) Valid() bool {
	switch s {
	case UploadStatePrepared, UploadStateUploading, UploadStateCompleted, UploadStateFailed:
		return true
	}
	return false
}

// Terminal reports whether the upload stage can no longer advance.
func (s UploadState) Terminal() bool {
	return s == UploadStateCompleted || s == UploadStateFailed
}

// JobStatus tracks an asynchronous processing stage (transcription or
// analysis) of a response. Independent of UploadState.
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// Valid reports whether s is a known job status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// SurveyStatus is the lifecycle of a survey.
type SurveyStatus string

const (
	SurveyStatusDraft  SurveyStatus = "DRAFT"
	SurveyStatusActive SurveyStatus = "ACTIVE"
	SurveyStatusClosed SurveyStatus = "CLOSED"
)

func (s SurveyStatus) Valid() bool {
	switch s {
	case SurveyStatusDraft, SurveyStatusActive, SurveyStatusClosed:
		return true
	}
	return false
}

// JSONB represents a JSONB field for PostgreSQL
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("unexpected jsonb type %T", value)
	}

	return json.Unmarshal(bytes, j)
}

// User is a registered survey owner.
type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	DisplayName  *string   `json:"displayName,omitempty" db:"display_name"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// Survey is one voice survey owned by a user.
type Survey struct {
	ID        string       `json:"id" db:"id"`
	OwnerID   string       `json:"ownerId" db:"owner_id"`
	Title     string       `json:"title" db:"title"`
	Prompt    string       `json:"prompt" db:"prompt"`
	Status    SurveyStatus `json:"status" db:"status"`
	CreatedAt time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time    `json:"updatedAt" db:"updated_at"`
}

// TranscriptionSegment is one time-aligned slice of the transcript.
type TranscriptionSegment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// SurveyResponse is one respondent's submission against a survey, tracked
// through the upload, transcription and analysis stages. At most one of
// RegisteredUserID and AnonymousEmail is set; both may be absent.
type SurveyResponse struct {
	ID                  string                 `json:"id" db:"id"`
	SurveyID            string                 `json:"surveyId" db:"survey_id"`
	RegisteredUserID    *string                `json:"registeredUserId,omitempty" db:"registered_user_id"`
	AnonymousEmail      *string                `json:"anonymousEmail,omitempty" db:"anonymous_email"`
	AudioURL            *string                `json:"audioUrl,omitempty" db:"audio_url"`
	UploadState         UploadState            `json:"uploadState" db:"upload_state"`
	Transcription       *string                `json:"transcription,omitempty" db:"transcription"`
	Confidence          *float64               `json:"confidence,omitempty" db:"confidence"`
	Language            *string                `json:"language,omitempty" db:"language"`
	Duration            *float64               `json:"duration,omitempty" db:"duration"`
	Segments            []TranscriptionSegment `json:"segments,omitempty" db:"segments"`
	TranscriptionStatus JobStatus              `json:"transcriptionStatus" db:"transcription_status"`
	Analysis            JSONB                  `json:"analysis,omitempty" db:"analysis"`
	AnalysisStatus      JobStatus              `json:"analysisStatus" db:"analysis_status"`
	CreatedAt           time.Time              `json:"createdAt" db:"created_at"`
	UpdatedAt           time.Time              `json:"updatedAt" db:"updated_at"`
}

// HasAudio reports whether the audio location has been recorded, the gate
// for moving transcription out of PENDING.
func (r *SurveyResponse) HasAudio() bool {
	return r.AudioURL != nil && *r.AudioURL != ""
}

// HasTranscription reports whether transcription text is present, the gate
// for moving analysis out of PENDING.
func (r *SurveyResponse) HasTranscription() bool {
	return r.Transcription != nil && *r.Transcription != ""
}
