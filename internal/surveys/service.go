package surveys

import (
	"context"
	"errors"
	"strings"

	"github.com/Makazone/howhappy-api/internal/apperr"
	"github.com/Makazone/howhappy-api/internal/storage"
	"github.com/Makazone/howhappy-api/pkg/cache"
	"github.com/Makazone/howhappy-api/pkg/logger"
	"github.com/Makazone/howhappy-api/pkg/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultPageSize = 20

// SurveyStore is the persistence surface the survey service needs.
type SurveyStore interface {
	CreateSurvey(ctx context.Context, sv *model.Survey) error
	GetSurveyByID(ctx context.Context, id string) (*model.Survey, error)
	UpdateSurvey(ctx context.Context, sv *model.Survey) error
	ListSurveysByOwner(ctx context.Context, ownerID, cursor string, limit int) ([]*model.Survey, error)
}

type Service struct {
	surveys SurveyStore
	cache   cache.Cache
}

func NewService(surveys SurveyStore, c cache.Cache) *Service {
	return &Service{surveys: surveys, cache: c}
}

// CreateParams carries the owner-supplied survey fields.
type CreateParams struct {
	Title  string
	Prompt string
}

// UpdateParams carries the mutable survey fields. Nil means keep.
type UpdateParams struct {
	Title  *string
	Prompt *string
	Status *model.SurveyStatus
}

func (s *Service) Create(ctx context.Context, ownerID string, params CreateParams) (*model.Survey, error) {
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, apperr.NewInvalid("Survey title is required")
	}

	survey := &model.Survey{
		ID:      uuid.New().String(),
		OwnerID: ownerID,
		Title:   title,
		Prompt:  strings.TrimSpace(params.Prompt),
		Status:  model.SurveyStatusActive,
	}
	if err := s.surveys.CreateSurvey(ctx, survey); err != nil {
		return nil, apperr.NewInternal("Failed to create survey", err)
	}

	logger.Info("Survey created",
		zap.String("survey_id", survey.ID),
		zap.String("owner_id", ownerID))
	return survey, nil
}

// Get returns an owned survey. A survey owned by someone else reads as
// missing, so existence is not leaked.
func (s *Service) Get(ctx context.Context, id, ownerID string) (*model.Survey, error) {
	survey, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if survey.OwnerID != ownerID {
		return nil, apperr.NewNotFound("Survey not found")
	}
	return survey, nil
}

// GetPublic returns the respondent-facing view of a survey, no ownership
// required. Closed surveys stay visible so in-flight respondents get a
// clear error at submit time instead of a 404 here.
func (s *Service) GetPublic(ctx context.Context, id string) (*model.Survey, error) {
	return s.load(ctx, id)
}

func (s *Service) Update(ctx context.Context, id, ownerID string, params UpdateParams) (*model.Survey, error) {
	survey, err := s.Get(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	if params.Title != nil {
		title := strings.TrimSpace(*params.Title)
		if title == "" {
			return nil, apperr.NewInvalid("Survey title is required")
		}
		survey.Title = title
	}
	if params.Prompt != nil {
		survey.Prompt = strings.TrimSpace(*params.Prompt)
	}
	if params.Status != nil {
		if !params.Status.Valid() {
			return nil, apperr.NewInvalid("Unknown survey status")
		}
		survey.Status = *params.Status
	}

	if err := s.surveys.UpdateSurvey(ctx, survey); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NewNotFound("Survey not found")
		}
		return nil, apperr.NewInternal("Failed to update survey", err)
	}

	s.invalidate(ctx, id)
	return survey, nil
}

func (s *Service) ListByOwner(ctx context.Context, ownerID, cursor string, limit int) ([]*model.Survey, error) {
	if limit <= 0 || limit > 100 {
		limit = DefaultPageSize
	}
	list, err := s.surveys.ListSurveysByOwner(ctx, ownerID, cursor, limit)
	if err != nil {
		return nil, apperr.NewInternal("Failed to list surveys", err)
	}
	return list, nil
}

func (s *Service) load(ctx context.Context, id string) (*model.Survey, error) {
	survey, err := s.surveys.GetSurveyByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NewNotFound("Survey not found")
		}
		return nil, apperr.NewInternal("Failed to load survey", err)
	}
	return survey, nil
}

// invalidate drops the pipeline's cached copy after a mutation. Best effort,
// the cache entry expires on its own anyway.
func (s *Service) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.SurveyCacheKey(id)); err != nil {
		logger.Warn("Failed to invalidate survey cache",
			zap.String("survey_id", id),
			zap.Error(err))
	}
}
