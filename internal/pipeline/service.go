// Package pipeline orchestrates the response lifecycle: prepare issues an
// upload slot and a response-scoped token, complete/submit record the
// uploaded audio and hand the response to the asynchronous processing
// stages via the job queue.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/Makazone/howhappy-api/internal/apperr"
	"github.com/Makazone/howhappy-api/internal/queue"
	"github.com/Makazone/howhappy-api/internal/storage"
	"github.com/Makazone/howhappy-api/internal/token"
	"github.com/Makazone/howhappy-api/pkg/cache"
	"github.com/Makazone/howhappy-api/pkg/logger"
	"github.com/Makazone/howhappy-api/pkg/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const surveyCacheTTL = 5 * time.Minute

// ResponseStore is the persistence surface the pipeline needs.
type ResponseStore interface {
	CreateResponse(ctx context.Context, r *model.SurveyResponse) error
	GetResponseByIDAndSurvey(ctx context.Context, id, surveyID string) (*model.SurveyResponse, error)
	ListResponsesBySurvey(ctx context.Context, surveyID string) ([]*model.SurveyResponse, error)
	CompleteUpload(ctx context.Context, id, audioURL string) (bool, error)
}

// SurveyStore looks up surveys owned by the external survey module.
type SurveyStore interface {
	GetSurveyByID(ctx context.Context, id string) (*model.Survey, error)
}

// ObjectStore issues presigned upload slots in the audio bucket.
type ObjectStore interface {
	EnsureBucket(ctx context.Context) error
	PresignUpload(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Publisher hands stage jobs to the durable queue.
type Publisher interface {
	PublishJob(queueName string, job *queue.JobPayload) (string, error)
}

// TokenIssuer mints response-scoped tokens.
type TokenIssuer interface {
	IssueResponseToken(surveyID, responseID string) (string, error)
}

type Service struct {
	responses  ResponseStore
	surveys    SurveyStore
	store      ObjectStore
	publisher  Publisher
	tokens     TokenIssuer
	cache      cache.Cache
	presignTTL time.Duration
}

func NewService(responses ResponseStore, surveys SurveyStore, store ObjectStore, publisher Publisher, tokens TokenIssuer, c cache.Cache) *Service {
	return &Service{
		responses:  responses,
		surveys:    surveys,
		store:      store,
		publisher:  publisher,
		tokens:     tokens,
		cache:      c,
		presignTTL: storage.DefaultPresignTTL,
	}
}

// PrepareResult is everything a respondent needs to upload audio and
// later complete the response.
type PrepareResult struct {
	Response      *model.SurveyResponse `json:"response"`
	UploadURL     string                `json:"uploadUrl"`
	ResponseToken string                `json:"responseToken"`
}

// lookupSurvey reads through the cache; cache trouble degrades to a
// database hit, never to a failure.
func (s *Service) lookupSurvey(ctx context.Context, surveyID string) (*model.Survey, error) {
	key := cache.SurveyCacheKey(surveyID)

	if s.cache != nil {
		var cached model.Survey
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			logger.Warn("Survey cache read failed", zap.String("survey_id", surveyID), zap.Error(err))
		}
	}

	survey, err := s.surveys.GetSurveyByID(ctx, surveyID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NewNotFound("Survey not found")
		}
		return nil, apperr.NewInternal("failed to load survey", err)
	}

	if s.cache != nil {
		if err := s.cache.SetWithTTL(ctx, key, survey, surveyCacheTTL); err != nil {
			logger.Warn("Survey cache write failed", zap.String("survey_id", surveyID), zap.Error(err))
		}
	}

	return survey, nil
}

// Prepare creates the response record, provisions a presigned upload URL
// keyed to it and mints the response-scoped token the client must present
// on complete/submit. Exactly one of actorUserID / anonymousEmail may be
// set; both absent is a fully anonymous response.
func (s *Service) Prepare(ctx context.Context, surveyID string, actorUserID, anonymousEmail *string) (*PrepareResult, error) {
	if _, err := s.lookupSurvey(ctx, surveyID); err != nil {
		return nil, err
	}

	now := time.Now()
	response := &model.SurveyResponse{
		ID:                  uuid.New().String(),
		SurveyID:            surveyID,
		RegisteredUserID:    actorUserID,
		AnonymousEmail:      anonymousEmail,
		UploadState:         model.UploadStatePrepared,
		TranscriptionStatus: model.JobStatusPending,
		AnalysisStatus:      model.JobStatusPending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.responses.CreateResponse(ctx, response); err != nil {
		return nil, apperr.NewInternal("failed to create response", err)
	}

	if err := s.store.EnsureBucket(ctx); err != nil {
		return nil, apperr.NewInternal("failed to ensure bucket", err)
	}

	objectKey := storage.AudioObjectKey(surveyID, response.ID)
	uploadURL, err := s.store.PresignUpload(ctx, objectKey, s.presignTTL)
	if err != nil {
		return nil, apperr.NewInternal("failed to presign upload", err)
	}

	responseToken, err := s.tokens.IssueResponseToken(surveyID, response.ID)
	if err != nil {
		return nil, apperr.NewInternal("failed to issue response token", err)
	}

	logger.Info("Response prepared",
		zap.String("response_id", response.ID),
		zap.String("survey_id", surveyID))

	return &PrepareResult{
		Response:      response,
		UploadURL:     uploadURL,
		ResponseToken: responseToken,
	}, nil
}

// checkScope enforces the security-critical invariant: a response-scoped
// token authorizes exactly the (survey, response) pair it was minted for.
// Exact equality, nothing else.
func checkScope(claims *token.Claims, surveyID, responseID string) error {
	if !token.IsResponseToken(claims) {
		return apperr.NewUnauthorized("Response token required")
	}
	if claims.SurveyID != surveyID || claims.ResponseID != responseID {
		return apperr.NewForbidden("Response token mismatch")
	}
	return nil
}

// Complete records the uploaded audio location, moves the response to
// COMPLETED and enqueues the transcription job. Calling it again on an
// already-completed response is an idempotent no-op returning the
// existing record; no second job is published.
func (s *Service) Complete(ctx context.Context, surveyID, responseID, audioURL string, claims *token.Claims) (*model.SurveyResponse, error) {
	response, _, err := s.complete(ctx, surveyID, responseID, audioURL, claims)
	return response, err
}

// Submit is Complete plus the published job ID in the reply, for callers
// that want to observe the pipeline handoff.
func (s *Service) Submit(ctx context.Context, surveyID, responseID, audioURL string, claims *token.Claims) (*model.SurveyResponse, string, error) {
	return s.complete(ctx, surveyID, responseID, audioURL, claims)
}

func (s *Service) complete(ctx context.Context, surveyID, responseID, audioURL string, claims *token.Claims) (*model.SurveyResponse, string, error) {
	if err := checkScope(claims, surveyID, responseID); err != nil {
		return nil, "", err
	}

	response, err := s.responses.GetResponseByIDAndSurvey(ctx, responseID, surveyID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, "", apperr.NewNotFound("Response not found")
		}
		return nil, "", apperr.NewInternal("failed to load response", err)
	}

	if response.UploadState == model.UploadStateCompleted {
		return response, "", nil
	}

	updated, err := s.responses.CompleteUpload(ctx, responseID, audioURL)
	if err != nil {
		return nil, "", apperr.NewInternal("failed to complete upload", err)
	}

	response, err = s.responses.GetResponseByIDAndSurvey(ctx, responseID, surveyID)
	if err != nil {
		return nil, "", apperr.NewInternal("failed to reload response", err)
	}

	if !updated {
		// Lost the race against a concurrent completion; the winner
		// already enqueued the job.
		return response, "", nil
	}

	jobID, err := s.publisher.PublishJob(queue.QueueTranscriptionRequest, &queue.JobPayload{
		ResponseID: responseID,
		SurveyID:   surveyID,
	})
	if err != nil {
		// The COMPLETED state is durable and deliberately not rolled
		// back; a reconciliation sweep re-enqueues orphaned responses.
		logger.Error("Failed to enqueue transcription job",
			zap.String("response_id", responseID),
			zap.Error(err))
		return nil, "", apperr.NewInternal("failed to enqueue transcription job", err)
	}

	logger.Info("Response completed",
		zap.String("response_id", responseID),
		zap.String("survey_id", surveyID),
		zap.String("job_id", jobID))

	return response, jobID, nil
}

// ListBySurvey returns the survey's responses, newest first, to its
// owner. Non-owners get NotFound: ownership is indistinguishable from
// non-existence.
func (s *Service) ListBySurvey(ctx context.Context, surveyID, ownerUserID string) ([]*model.SurveyResponse, error) {
	if err := s.checkOwner(ctx, surveyID, ownerUserID); err != nil {
		return nil, err
	}

	responses, err := s.responses.ListResponsesBySurvey(ctx, surveyID)
	if err != nil {
		return nil, apperr.NewInternal("failed to list responses", err)
	}
	return responses, nil
}

// GetResponse returns one response to the survey owner.
func (s *Service) GetResponse(ctx context.Context, surveyID, responseID, ownerUserID string) (*model.SurveyResponse, error) {
	if err := s.checkOwner(ctx, surveyID, ownerUserID); err != nil {
		return nil, err
	}

	response, err := s.responses.GetResponseByIDAndSurvey(ctx, responseID, surveyID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NewNotFound("Response not found")
		}
		return nil, apperr.NewInternal("failed to load response", err)
	}
	return response, nil
}

func (s *Service) checkOwner(ctx context.Context, surveyID, ownerUserID string) error {
	survey, err := s.lookupSurvey(ctx, surveyID)
	if err != nil {
		return err
	}
	if survey.OwnerID != ownerUserID {
		return apperr.NewNotFound("Survey not found")
	}
	return nil
}
