package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Makazone/howhappy-api/internal/analyzer"
	"github.com/Makazone/howhappy-api/internal/apperr"
	"github.com/Makazone/howhappy-api/internal/queue"
	"github.com/Makazone/howhappy-api/internal/storage"
	"github.com/Makazone/howhappy-api/pkg/logger"
	"github.com/Makazone/howhappy-api/pkg/model"

	"go.uber.org/zap"
)

type Analyzer interface {
	Analyze(ctx context.Context, text string) (*analyzer.Result, error)
}

// AnalysisProcessor handles analysis.request jobs.
type AnalysisProcessor struct {
	db       ResponseStore
	analyzer Analyzer
}

func NewAnalysisProcessor(db ResponseStore, a Analyzer) *AnalysisProcessor {
	return &AnalysisProcessor{
		db:       db,
		analyzer: a,
	}
}

// ProcessJob runs sentiment analysis over the transcription text of one
// response. Same at-least-once contract as the transcription processor.
func (p *AnalysisProcessor) ProcessJob(ctx context.Context, jobData []byte) error {
	var job queue.JobPayload
	if err := json.Unmarshal(jobData, &job); err != nil {
		return apperr.NewInvalid(fmt.Sprintf("malformed analysis job: %v", err))
	}

	logger.Info("Processing analysis job",
		zap.String("response_id", job.ResponseID),
		zap.String("survey_id", job.SurveyID))

	response, err := p.db.GetResponseByID(ctx, job.ResponseID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NewNotFound("Response not found")
		}
		return fmt.Errorf("failed to load response: %w", err)
	}

	if !response.HasTranscription() {
		return apperr.NewPrecondition("Response has no transcription to analyze")
	}

	claimed, err := p.claim(ctx, response)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	result, err := p.analyzer.Analyze(ctx, *response.Transcription)
	if err != nil {
		p.markFailed(ctx, response.ID)
		return fmt.Errorf("analysis failed: %w", err)
	}

	saved, err := p.db.SaveAnalysisResult(ctx, response.ID, analysisDocument(result))
	if err != nil {
		p.markFailed(ctx, response.ID)
		return fmt.Errorf("failed to save analysis: %w", err)
	}
	if !saved {
		return nil
	}

	logger.Info("Analysis completed",
		zap.String("response_id", response.ID),
		zap.String("sentiment", result.Sentiment))
	return nil
}

func (p *AnalysisProcessor) claim(ctx context.Context, response *model.SurveyResponse) (bool, error) {
	ok, err := p.db.TransitionAnalysis(ctx, response.ID, model.JobStatusPending, model.JobStatusProcessing)
	if err != nil {
		return false, fmt.Errorf("failed to claim analysis job: %w", err)
	}
	if ok {
		return true, nil
	}

	ok, err = p.db.TransitionAnalysis(ctx, response.ID, model.JobStatusFailed, model.JobStatusProcessing)
	if err != nil {
		return false, fmt.Errorf("failed to claim analysis job: %w", err)
	}
	if ok {
		return true, nil
	}

	logger.Debug("Analysis job already claimed or completed", zap.String("response_id", response.ID))
	return false, nil
}

// analysisDocument flattens the analyzer output into the JSONB shape stored
// on the response row.
func analysisDocument(result *analyzer.Result) model.JSONB {
	doc := model.JSONB{
		"sentiment": result.Sentiment,
		"summary":   result.Summary,
	}
	if len(result.Keywords) > 0 {
		doc["keywords"] = result.Keywords
	}
	if len(result.Scores) > 0 {
		doc["scores"] = result.Scores
	}
	return doc
}

func (p *AnalysisProcessor) markFailed(ctx context.Context, responseID string) {
	if _, err := p.db.TransitionAnalysis(ctx, responseID, model.JobStatusProcessing, model.JobStatusFailed); err != nil {
		logger.Error("Failed to mark analysis as failed",
			zap.String("response_id", responseID),
			zap.Error(err))
	}
}
