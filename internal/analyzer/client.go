package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Makazone/howhappy-api/pkg/logger"
	"github.com/Makazone/howhappy-api/pkg/resilience"

	"go.uber.org/zap"
)

const analyzePath = "/v1/analyze"

// Result is the structured sentiment analysis of one transcript.
type Result struct {
	Sentiment string             `json:"sentiment"`
	Keywords  []string           `json:"keywords"`
	Summary   string             `json:"summary"`
	Scores    map[string]float64 `json:"scores"`
}

type analyzeRequest struct {
	Text  string `json:"text"`
	Model string `json:"model"`
}

type Client struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	breaker *resilience.CircuitBreaker
}

// New LLM analysis client
func NewClient(baseURL, apiKey, model string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		breaker: resilience.NewCircuitBreaker(5, 30*time.Second),
	}
}

// Analyze runs the external sentiment analysis over transcription text.
func (c *Client) Analyze(ctx context.Context, text string) (*Result, error) {
	var result *Result

	err := c.breaker.Execute(func() error {
		r, err := c.analyze(ctx, text)
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

func (c *Client) analyze(ctx context.Context, text string) (*Result, error) {
	body, err := json.Marshal(analyzeRequest{Text: text, Model: c.model})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+analyzePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	req.Header.Set("Content-Type", "application/json")

	logger.Debug("Starting analysis", zap.Int("text_length", len(text)), zap.String("model", c.model))

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
		return nil, fmt.Errorf("analysis request failed: status=%d, body=%s", resp.StatusCode, string(respBody))
	}

	var result Result
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	logger.Info("Analysis completed",
		zap.String("sentiment", result.Sentiment),
		zap.Int("keywords", len(result.Keywords)))

	return &result, nil
}
