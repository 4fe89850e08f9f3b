package surveys

import (
	"context"
	"testing"

	"github.com/Makazone/howhappy-api/internal/apperr"
	"github.com/Makazone/howhappy-api/pkg/logger"
	"github.com/Makazone/howhappy-api/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	_ = logger.Init(true)
}

type MockSurveyStore struct {
	mock.Mock
}

func (m *MockSurveyStore) CreateSurvey(ctx context.Context, sv *model.Survey) error {
	args := m.Called(ctx, sv)
	return args.Error(0)
}

func (m *MockSurveyStore) GetSurveyByID(ctx context.Context, id string) (*model.Survey, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Survey), args.Error(1)
}

func (m *MockSurveyStore) UpdateSurvey(ctx context.Context, sv *model.Survey) error {
	args := m.Called(ctx, sv)
	return args.Error(0)
}

func (m *MockSurveyStore) ListSurveysByOwner(ctx context.Context, ownerID, cursor string, limit int) ([]*model.Survey, error) {
	args := m.Called(ctx, ownerID, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Survey), args.Error(1)
}

func ownedSurvey() *model.Survey {
	return &model.Survey{
		ID:      "survey-1",
		OwnerID: "owner-1",
		Title:   "Team morale",
		Status:  model.SurveyStatusActive,
	}
}

func TestCreateRequiresTitle(t *testing.T) {
	svc := NewService(new(MockSurveyStore), nil)

	_, err := svc.Create(context.Background(), "owner-1", CreateParams{Title: "   "})
	require.Error(t, err)

	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeInvalid, ae.Code)
}

func TestCreateNewSurveyIsActive(t *testing.T) {
	store := new(MockSurveyStore)
	svc := NewService(store, nil)
	ctx := context.Background()

	store.On("CreateSurvey", ctx, mock.AnythingOfType("*model.Survey")).Return(nil)

	survey, err := svc.Create(ctx, "owner-1", CreateParams{Title: " Team morale ", Prompt: "How was your week?"})
	require.NoError(t, err)

	assert.NotEmpty(t, survey.ID)
	assert.Equal(t, "owner-1", survey.OwnerID)
	assert.Equal(t, "Team morale", survey.Title)
	assert.Equal(t, model.SurveyStatusActive, survey.Status)
}

func TestGetHidesForeignSurvey(t *testing.T) {
	store := new(MockSurveyStore)
	svc := NewService(store, nil)
	ctx := context.Background()

	store.On("GetSurveyByID", ctx, "survey-1").Return(ownedSurvey(), nil)

	_, err := svc.Get(ctx, "survey-1", "intruder")
	require.Error(t, err)

	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeNotFound, ae.Code)
}

func TestGetPublicIgnoresOwnership(t *testing.T) {
	store := new(MockSurveyStore)
	svc := NewService(store, nil)
	ctx := context.Background()

	store.On("GetSurveyByID", ctx, "survey-1").Return(ownedSurvey(), nil)

	survey, err := svc.GetPublic(ctx, "survey-1")
	require.NoError(t, err)
	assert.Equal(t, "survey-1", survey.ID)
}

func TestUpdateAppliesPartialFields(t *testing.T) {
	store := new(MockSurveyStore)
	svc := NewService(store, nil)
	ctx := context.Background()

	store.On("GetSurveyByID", ctx, "survey-1").Return(ownedSurvey(), nil)
	store.On("UpdateSurvey", ctx, mock.AnythingOfType("*model.Survey")).Return(nil)

	closed := model.SurveyStatusClosed
	survey, err := svc.Update(ctx, "survey-1", "owner-1", UpdateParams{Status: &closed})
	require.NoError(t, err)

	assert.Equal(t, model.SurveyStatusClosed, survey.Status)
	assert.Equal(t, "Team morale", survey.Title)
}

func TestUpdateRejectsUnknownStatus(t *testing.T) {
	store := new(MockSurveyStore)
	svc := NewService(store, nil)
	ctx := context.Background()

	store.On("GetSurveyByID", ctx, "survey-1").Return(ownedSurvey(), nil)

	bogus := model.SurveyStatus("ARCHIVED")
	_, err := svc.Update(ctx, "survey-1", "owner-1", UpdateParams{Status: &bogus})
	require.Error(t, err)

	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeInvalid, ae.Code)
	store.AssertNotCalled(t, "UpdateSurvey", mock.Anything, mock.Anything)
}

func TestListByOwnerClampsLimit(t *testing.T) {
	store := new(MockSurveyStore)
	svc := NewService(store, nil)
	ctx := context.Background()

	store.On("ListSurveysByOwner", ctx, "owner-1", "", DefaultPageSize).
		Return([]*model.Survey{ownedSurvey()}, nil)

	list, err := svc.ListByOwner(ctx, "owner-1", "", -5)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	store.AssertExpectations(t)
}
