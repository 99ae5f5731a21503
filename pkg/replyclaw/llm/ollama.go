package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	DefaultOllamaEndpoint = "http://localhost:11434/api/generate"
	DefaultOllamaModel    = "deepseek-r1:latest"
)

// OllamaClient calls the ollama /api/generate endpoint without streaming.
type OllamaClient struct {
	endpoint   string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOllamaClient creates a client. Empty endpoint or model use the defaults.
func NewOllamaClient(endpoint, model string, logger *slog.Logger) *OllamaClient {
	if endpoint == "" {
		endpoint = DefaultOllamaEndpoint
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OllamaClient{
		endpoint: endpoint,
		model:    model,
		// No client timeout: the deadline comes from the request context.
		httpClient: &http.Client{},
		logger:     logger.With("component", "llm", "provider", "ollama"),
	}
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response *string `json:"response"`
}

// Generate posts the prompt and returns the "response" field.
func (c *OllamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(ollamaRequest{Model: c.model, Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("sending generate request", "model", c.model, "prompt_chars", len(prompt))
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("generate request failed", "error", err)
		return "", normalizeError(ctx, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", normalizeError(ctx, fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("backend error", "status", resp.StatusCode, "body", truncate(string(respBody), 500))
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var out ollamaResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("%w: parsing response: %v", ErrBackendUnavailable, err)
	}

	c.logger.Info("generation done", "model", c.model, "duration_ms", time.Since(start).Milliseconds())
	if out.Response == nil {
		return NoResponse, nil
	}
	return *out.Response, nil
}
