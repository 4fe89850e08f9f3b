package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Makazone/howhappy-api/pkg/logger"
	"github.com/Makazone/howhappy-api/pkg/model"
	"github.com/Makazone/howhappy-api/pkg/resilience"

	"go.uber.org/zap"
)

const transcribePath = "/v1/speech-to-text"

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	breaker *resilience.CircuitBreaker
}

// New speech-to-text client
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		breaker: resilience.NewCircuitBreaker(5, 30*time.Second),
	}
}

// Transcribe sends the audio location to the external speech-to-text
// service and returns its structured result. The audio URL must be
// reachable by the service (a presigned download URL).
func (c *Client) Transcribe(ctx context.Context, audioURL string) (*Result, error) {
	var result *Result

	err := c.breaker.Execute(func() error {
		r, err := c.transcribe(ctx, audioURL)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (c *Client) transcribe(ctx context.Context, audioURL string) (*Result, error) {
	body, err := json.Marshal(transcribeRequest{AudioURL: audioURL})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+transcribePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	req.Header.Set("Content-Type", "application/json")

	logger.Debug("Starting transcription", zap.String("audio_url", audioURL))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transcription request failed: status=%d, body=%s", resp.StatusCode, string(respBody))
	}

	var decoded transcribeResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	segments := make([]model.TranscriptionSegment, 0, len(decoded.Segments))
	for _, s := range decoded.Segments {
		segments = append(segments, model.TranscriptionSegment{
			ID:    s.ID,
			Start: s.Start,
			End:   s.End,
			Text:  s.Text,
		})
	}

	logger.Info("Transcription completed",
		zap.Int("text_length", len(decoded.Text)),
		zap.String("language", decoded.Language))

	return &Result{
		Text:       decoded.Text,
		Confidence: decoded.Confidence,
		Language:   decoded.Language,
		Duration:   decoded.Duration,
		Segments:   segments,
	}, nil
}
