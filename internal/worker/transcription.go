package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Makazone/howhappy-api/internal/apperr"
	"github.com/Makazone/howhappy-api/internal/queue"
	"github.com/Makazone/howhappy-api/internal/storage"
	"github.com/Makazone/howhappy-api/internal/transcriber"
	"github.com/Makazone/howhappy-api/pkg/logger"
	"github.com/Makazone/howhappy-api/pkg/model"

	"go.uber.org/zap"
)

// ResponseStore is the slice of storage the workers need.
type ResponseStore interface {
	GetResponseByID(ctx context.Context, id string) (*model.SurveyResponse, error)
	TransitionTranscription(ctx context.Context, id string, from, to model.JobStatus) (bool, error)
	SaveTranscriptionResult(ctx context.Context, id string, text string, confidence float64, language string, duration float64, segments []model.TranscriptionSegment) (bool, error)
	TransitionAnalysis(ctx context.Context, id string, from, to model.JobStatus) (bool, error)
	SaveAnalysisResult(ctx context.Context, id string, analysis model.JSONB) (bool, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audioURL string) (*transcriber.Result, error)
}

type Publisher interface {
	PublishJob(queueName string, job *queue.JobPayload) (string, error)
}

// ObjectStore checks and presigns the stored audio object so the external
// speech service gets a fresh, short-lived download URL.
type ObjectStore interface {
	ObjectExists(ctx context.Context, key string) (bool, error)
	PresignDownload(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// TranscriptionProcessor handles transcription.request jobs.
type TranscriptionProcessor struct {
	db          ResponseStore
	store       ObjectStore
	transcriber Transcriber
	publisher   Publisher
}

func NewTranscriptionProcessor(db ResponseStore, store ObjectStore, t Transcriber, publisher Publisher) *TranscriptionProcessor {
	return &TranscriptionProcessor{
		db:          db,
		store:       store,
		transcriber: t,
		publisher:   publisher,
	}
}

// ProcessJob transcribes the audio of one response and chains an analysis
// job. Deliveries are at-least-once, so every step tolerates a rerun.
func (p *TranscriptionProcessor) ProcessJob(ctx context.Context, jobData []byte) error {
	var job queue.JobPayload
	if err := json.Unmarshal(jobData, &job); err != nil {
		return apperr.NewInvalid(fmt.Sprintf("malformed transcription job: %v", err))
	}

	logger.Info("Processing transcription job",
		zap.String("response_id", job.ResponseID),
		zap.String("survey_id", job.SurveyID))

	response, err := p.db.GetResponseByID(ctx, job.ResponseID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NewNotFound("Response not found")
		}
		return fmt.Errorf("failed to load response: %w", err)
	}

	if !response.HasAudio() {
		return apperr.NewPrecondition("Response has no audio to transcribe")
	}

	objectKey := storage.AudioObjectKey(response.SurveyID, response.ID)
	exists, err := p.store.ObjectExists(ctx, objectKey)
	if err != nil {
		return fmt.Errorf("failed to check audio object: %w", err)
	}
	if !exists {
		return apperr.NewPrecondition("Audio object is missing from storage")
	}

	claimed, err := p.claim(ctx, response)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	downloadURL, err := p.store.PresignDownload(ctx, objectKey, storage.DefaultPresignTTL)
	if err != nil {
		p.markFailed(ctx, response.ID)
		return fmt.Errorf("failed to presign audio download: %w", err)
	}

	result, err := p.transcriber.Transcribe(ctx, downloadURL)
	if err != nil {
		p.markFailed(ctx, response.ID)
		return fmt.Errorf("transcription failed: %w", err)
	}

	saved, err := p.db.SaveTranscriptionResult(ctx, response.ID,
		result.Text, result.Confidence, result.Language, result.Duration, result.Segments)
	if err != nil {
		p.markFailed(ctx, response.ID)
		return fmt.Errorf("failed to save transcription: %w", err)
	}
	if !saved {
		// Another worker finished first.
		return nil
	}

	logger.Info("Transcription completed",
		zap.String("response_id", response.ID),
		zap.Float64("confidence", result.Confidence))

	return p.chainAnalysis(job)
}

// claim moves the job into PROCESSING. A response that already went through
// FAILED is claimable again so bounded redelivery can retry it. Returns false
// when there is nothing left to do here.
func (p *TranscriptionProcessor) claim(ctx context.Context, response *model.SurveyResponse) (bool, error) {
	ok, err := p.db.TransitionTranscription(ctx, response.ID, model.JobStatusPending, model.JobStatusProcessing)
	if err != nil {
		return false, fmt.Errorf("failed to claim transcription job: %w", err)
	}
	if ok {
		return true, nil
	}

	ok, err = p.db.TransitionTranscription(ctx, response.ID, model.JobStatusFailed, model.JobStatusProcessing)
	if err != nil {
		return false, fmt.Errorf("failed to claim transcription job: %w", err)
	}
	if ok {
		return true, nil
	}

	current, err := p.db.GetResponseByID(ctx, response.ID)
	if err != nil {
		return false, fmt.Errorf("failed to reload response: %w", err)
	}
	if current.TranscriptionStatus == model.JobStatusCompleted {
		logger.Info("Transcription already completed, re-chaining analysis",
			zap.String("response_id", response.ID))
		// The result is in place but this redelivery means the analysis
		// job may never have been published. Publishing again is safe.
		return false, p.chainAnalysis(queue.JobPayload{ResponseID: response.ID, SurveyID: response.SurveyID})
	}

	// In-flight on another worker.
	logger.Debug("Transcription job already claimed", zap.String("response_id", response.ID))
	return false, nil
}

func (p *TranscriptionProcessor) chainAnalysis(job queue.JobPayload) error {
	jobID, err := p.publisher.PublishJob(queue.QueueAnalysisRequest, &queue.JobPayload{
		ResponseID: job.ResponseID,
		SurveyID:   job.SurveyID,
	})
	if err != nil {
		return fmt.Errorf("failed to publish analysis job: %w", err)
	}
	logger.Info("Analysis job published",
		zap.String("response_id", job.ResponseID),
		zap.String("job_id", jobID))
	return nil
}

func (p *TranscriptionProcessor) markFailed(ctx context.Context, responseID string) {
	if _, err := p.db.TransitionTranscription(ctx, responseID, model.JobStatusProcessing, model.JobStatusFailed); err != nil {
		logger.Error("Failed to mark transcription as failed",
			zap.String("response_id", responseID),
			zap.Error(err))
	}
}
