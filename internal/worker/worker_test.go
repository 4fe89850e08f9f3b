package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Makazone/howhappy-api/internal/analyzer"
	"github.com/Makazone/howhappy-api/internal/apperr"
	"github.com/Makazone/howhappy-api/internal/queue"
	"github.com/Makazone/howhappy-api/internal/transcriber"
	"github.com/Makazone/howhappy-api/pkg/logger"
	"github.com/Makazone/howhappy-api/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	_ = logger.Init(true)
}

type MockResponseStore struct {
	mock.Mock
}

func (m *MockResponseStore) GetResponseByID(ctx context.Context, id string) (*model.SurveyResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SurveyResponse), args.Error(1)
}

func (m *MockResponseStore) TransitionTranscription(ctx context.Context, id string, from, to model.JobStatus) (bool, error) {
	args := m.Called(ctx, id, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *MockResponseStore) SaveTranscriptionResult(ctx context.Context, id string, text string, confidence float64, language string, duration float64, segments []model.TranscriptionSegment) (bool, error) {
	args := m.Called(ctx, id, text, confidence, language, duration, segments)
	return args.Bool(0), args.Error(1)
}

func (m *MockResponseStore) TransitionAnalysis(ctx context.Context, id string, from, to model.JobStatus) (bool, error) {
	args := m.Called(ctx, id, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *MockResponseStore) SaveAnalysisResult(ctx context.Context, id string, analysis model.JSONB) (bool, error) {
	args := m.Called(ctx, id, analysis)
	return args.Bool(0), args.Error(1)
}

type MockTranscriber struct {
	mock.Mock
}

func (m *MockTranscriber) Transcribe(ctx context.Context, audioURL string) (*transcriber.Result, error) {
	args := m.Called(ctx, audioURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transcriber.Result), args.Error(1)
}

type MockAnalyzer struct {
	mock.Mock
}

func (m *MockAnalyzer) Analyze(ctx context.Context, text string) (*analyzer.Result, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*analyzer.Result), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishJob(queueName string, job *queue.JobPayload) (string, error) {
	args := m.Called(queueName, job)
	return args.String(0), args.Error(1)
}

type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) ObjectExists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockObjectStore) PresignDownload(ctx context.Context, key string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, key, ttl)
	return args.String(0), args.Error(1)
}

// presentObjectStore is the common case: audio is in the bucket and a
// download URL can be minted for it.
func presentObjectStore() *MockObjectStore {
	store := new(MockObjectStore)
	store.On("ObjectExists", mock.Anything, mock.AnythingOfType("string")).Return(true, nil)
	store.On("PresignDownload", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return("https://minio.test/presigned-audio", nil)
	return store
}

func jobBytes(t *testing.T) []byte {
	t.Helper()
	return []byte(`{"responseId":"response-1","surveyId":"survey-1"}`)
}

func audioResponse() *model.SurveyResponse {
	audioURL := "http://minio/howhappy/surveys/survey-1/responses/response-1/audio.webm"
	return &model.SurveyResponse{
		ID:                  "response-1",
		SurveyID:            "survey-1",
		AudioURL:            &audioURL,
		UploadState:         model.UploadStateCompleted,
		TranscriptionStatus: model.JobStatusPending,
		AnalysisStatus:      model.JobStatusPending,
	}
}

func TestTranscriptionMalformedJob(t *testing.T) {
	db := new(MockResponseStore)
	p := NewTranscriptionProcessor(db, new(MockObjectStore), new(MockTranscriber), new(MockPublisher))

	err := p.ProcessJob(context.Background(), []byte("{not json"))
	require.Error(t, err)

	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeInvalid, ae.Code)
	assert.False(t, apperr.IsRetryable(err))
}

func TestTranscriptionNoAudio(t *testing.T) {
	db := new(MockResponseStore)
	p := NewTranscriptionProcessor(db, new(MockObjectStore), new(MockTranscriber), new(MockPublisher))

	response := audioResponse()
	response.AudioURL = nil
	db.On("GetResponseByID", mock.Anything, "response-1").Return(response, nil)

	err := p.ProcessJob(context.Background(), jobBytes(t))
	require.Error(t, err)

	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodePrecondition, ae.Code)
	assert.False(t, apperr.IsRetryable(err))
}

func TestTranscriptionMissingObject(t *testing.T) {
	db := new(MockResponseStore)
	store := new(MockObjectStore)
	p := NewTranscriptionProcessor(db, store, new(MockTranscriber), new(MockPublisher))

	db.On("GetResponseByID", mock.Anything, "response-1").Return(audioResponse(), nil)
	store.On("ObjectExists", mock.Anything, mock.AnythingOfType("string")).Return(false, nil)

	err := p.ProcessJob(context.Background(), jobBytes(t))
	require.Error(t, err)

	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodePrecondition, ae.Code)
	db.AssertNotCalled(t, "TransitionTranscription", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTranscriptionHappyPath(t *testing.T) {
	db := new(MockResponseStore)
	tr := new(MockTranscriber)
	pub := new(MockPublisher)
	p := NewTranscriptionProcessor(db, presentObjectStore(), tr, pub)

	response := audioResponse()
	result := &transcriber.Result{
		Text:       "everything is great",
		Confidence: 0.97,
		Language:   "en",
		Duration:   4.2,
		Segments:   []model.TranscriptionSegment{{ID: 0, Start: 0, End: 4.2, Text: "everything is great"}},
	}

	db.On("GetResponseByID", mock.Anything, "response-1").Return(response, nil)
	db.On("TransitionTranscription", mock.Anything, "response-1",
		model.JobStatusPending, model.JobStatusProcessing).Return(true, nil)
	tr.On("Transcribe", mock.Anything, "https://minio.test/presigned-audio").Return(result, nil)
	db.On("SaveTranscriptionResult", mock.Anything, "response-1",
		result.Text, result.Confidence, result.Language, result.Duration, result.Segments).Return(true, nil)
	pub.On("PublishJob", queue.QueueAnalysisRequest,
		&queue.JobPayload{ResponseID: "response-1", SurveyID: "survey-1"}).Return("job-2", nil)

	err := p.ProcessJob(context.Background(), jobBytes(t))
	require.NoError(t, err)

	db.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestTranscriptionRedeliveryAfterCompletion(t *testing.T) {
	db := new(MockResponseStore)
	tr := new(MockTranscriber)
	pub := new(MockPublisher)
	p := NewTranscriptionProcessor(db, presentObjectStore(), tr, pub)

	done := audioResponse()
	done.TranscriptionStatus = model.JobStatusCompleted

	db.On("GetResponseByID", mock.Anything, "response-1").Return(done, nil)
	db.On("TransitionTranscription", mock.Anything, "response-1",
		model.JobStatusPending, model.JobStatusProcessing).Return(false, nil)
	db.On("TransitionTranscription", mock.Anything, "response-1",
		model.JobStatusFailed, model.JobStatusProcessing).Return(false, nil)
	pub.On("PublishJob", queue.QueueAnalysisRequest, mock.Anything).Return("job-2", nil)

	err := p.ProcessJob(context.Background(), jobBytes(t))
	require.NoError(t, err)

	tr.AssertNotCalled(t, "Transcribe", mock.Anything, mock.Anything)
	pub.AssertExpectations(t)
}

func TestTranscriptionFailureMarksFailed(t *testing.T) {
	db := new(MockResponseStore)
	tr := new(MockTranscriber)
	p := NewTranscriptionProcessor(db, presentObjectStore(), tr, new(MockPublisher))

	response := audioResponse()
	db.On("GetResponseByID", mock.Anything, "response-1").Return(response, nil)
	db.On("TransitionTranscription", mock.Anything, "response-1",
		model.JobStatusPending, model.JobStatusProcessing).Return(true, nil)
	tr.On("Transcribe", mock.Anything, mock.Anything).Return(nil, errors.New("speech service down"))
	db.On("TransitionTranscription", mock.Anything, "response-1",
		model.JobStatusProcessing, model.JobStatusFailed).Return(true, nil)

	err := p.ProcessJob(context.Background(), jobBytes(t))
	require.Error(t, err)
	assert.True(t, apperr.IsRetryable(err))
	db.AssertExpectations(t)
}

func TestTranscriptionRetriesAfterFailure(t *testing.T) {
	db := new(MockResponseStore)
	tr := new(MockTranscriber)
	pub := new(MockPublisher)
	p := NewTranscriptionProcessor(db, presentObjectStore(), tr, pub)

	response := audioResponse()
	response.TranscriptionStatus = model.JobStatusFailed
	result := &transcriber.Result{Text: "second try", Confidence: 0.9, Language: "en", Duration: 1}

	db.On("GetResponseByID", mock.Anything, "response-1").Return(response, nil)
	db.On("TransitionTranscription", mock.Anything, "response-1",
		model.JobStatusPending, model.JobStatusProcessing).Return(false, nil)
	db.On("TransitionTranscription", mock.Anything, "response-1",
		model.JobStatusFailed, model.JobStatusProcessing).Return(true, nil)
	tr.On("Transcribe", mock.Anything, mock.Anything).Return(result, nil)
	db.On("SaveTranscriptionResult", mock.Anything, "response-1",
		result.Text, result.Confidence, result.Language, result.Duration, result.Segments).Return(true, nil)
	pub.On("PublishJob", queue.QueueAnalysisRequest, mock.Anything).Return("job-2", nil)

	err := p.ProcessJob(context.Background(), jobBytes(t))
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestAnalysisNoTranscription(t *testing.T) {
	db := new(MockResponseStore)
	p := NewAnalysisProcessor(db, new(MockAnalyzer))

	response := audioResponse()
	db.On("GetResponseByID", mock.Anything, "response-1").Return(response, nil)

	err := p.ProcessJob(context.Background(), jobBytes(t))
	require.Error(t, err)

	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodePrecondition, ae.Code)
}

func TestAnalysisHappyPath(t *testing.T) {
	db := new(MockResponseStore)
	an := new(MockAnalyzer)
	p := NewAnalysisProcessor(db, an)

	text := "everything is great"
	response := audioResponse()
	response.Transcription = &text
	response.TranscriptionStatus = model.JobStatusCompleted

	result := &analyzer.Result{
		Sentiment: "positive",
		Keywords:  []string{"great"},
		Summary:   "Positive feedback",
		Scores:    map[string]float64{"positive": 0.95},
	}

	db.On("GetResponseByID", mock.Anything, "response-1").Return(response, nil)
	db.On("TransitionAnalysis", mock.Anything, "response-1",
		model.JobStatusPending, model.JobStatusProcessing).Return(true, nil)
	an.On("Analyze", mock.Anything, text).Return(result, nil)
	db.On("SaveAnalysisResult", mock.Anything, "response-1", model.JSONB{
		"sentiment": "positive",
		"summary":   "Positive feedback",
		"keywords":  []string{"great"},
		"scores":    map[string]float64{"positive": 0.95},
	}).Return(true, nil)

	err := p.ProcessJob(context.Background(), jobBytes(t))
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestAnalysisAlreadyClaimed(t *testing.T) {
	db := new(MockResponseStore)
	an := new(MockAnalyzer)
	p := NewAnalysisProcessor(db, an)

	text := "everything is great"
	response := audioResponse()
	response.Transcription = &text
	response.AnalysisStatus = model.JobStatusProcessing

	db.On("GetResponseByID", mock.Anything, "response-1").Return(response, nil)
	db.On("TransitionAnalysis", mock.Anything, "response-1",
		model.JobStatusPending, model.JobStatusProcessing).Return(false, nil)
	db.On("TransitionAnalysis", mock.Anything, "response-1",
		model.JobStatusFailed, model.JobStatusProcessing).Return(false, nil)

	err := p.ProcessJob(context.Background(), jobBytes(t))
	require.NoError(t, err)
	an.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything)
}

func TestAnalysisFailureMarksFailed(t *testing.T) {
	db := new(MockResponseStore)
	an := new(MockAnalyzer)
	p := NewAnalysisProcessor(db, an)

	text := "everything is great"
	response := audioResponse()
	response.Transcription = &text

	db.On("GetResponseByID", mock.Anything, "response-1").Return(response, nil)
	db.On("TransitionAnalysis", mock.Anything, "response-1",
		model.JobStatusPending, model.JobStatusProcessing).Return(true, nil)
	an.On("Analyze", mock.Anything, text).Return(nil, errors.New("llm timeout"))
	db.On("TransitionAnalysis", mock.Anything, "response-1",
		model.JobStatusProcessing, model.JobStatusFailed).Return(true, nil)

	err := p.ProcessJob(context.Background(), jobBytes(t))
	require.Error(t, err)
	db.AssertExpectations(t)
}
