package transcriber

import "github.com/Makazone/howhappy-api/pkg/model"

// transcribeRequest is the wire request to the speech-to-text service.
type transcribeRequest struct {
	AudioURL string `json:"audio_url"`
}

// transcribeResponse is the wire response from the speech-to-text service.
type transcribeResponse struct {
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
	Language   string    `json:"language"`
	Duration   float64   `json:"duration"`
	Segments   []segment `json:"segments"`
}

type segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Result is the structured transcription output handed to the worker.
type Result struct {
	Text       string
	Confidence float64
	Language   string
	Duration   float64
	Segments   []model.TranscriptionSegment
}
