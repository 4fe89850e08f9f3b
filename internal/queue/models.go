package queue

// Queue names for the two pipeline stages. Each also owns a companion
// dead-letter queue (name + DeadSuffix) for jobs that exhaust retries.
const (
	QueueTranscriptionRequest = "transcription.request"
	QueueAnalysisRequest      = "analysis.request"
	DeadSuffix                = ".dead"
)

// JobPayload is the at-least-once message both stage queues carry. It is
// deliberately small: workers reload the authoritative record by ID.
type JobPayload struct {
	ResponseID string `json:"responseId"`
	SurveyID   string `json:"surveyId"`
}
