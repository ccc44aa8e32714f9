package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var ErrGeminiUnavailable = errors.New("gemini client unavailable")

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

type TokenUsage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

type GenerateRequest struct {
	Model           string
	Instructions    string
	Input           string
	Temperature     float64
	MaxOutputTokens int
}

type GenerateResult struct {
	Text    string
	ModelID string
	Usage   TokenUsage
}

type TextGenerator interface {
	Generate(ctx context.Context, request GenerateRequest) (GenerateResult, error)
	Available() bool
}

type GeminiClientConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
}

// GeminiClient talks to the Generative Language REST API.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	timeout    time.Duration
	maxRetries int
	httpClient *http.Client
}

func NewGeminiClient(config GeminiClientConfig) *GeminiClient {
	if strings.TrimSpace(config.BaseURL) == "" {
		config.BaseURL = defaultGeminiBaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 2
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}

	return &GeminiClient{
		apiKey:     strings.TrimSpace(config.APIKey),
		baseURL:    strings.TrimSuffix(config.BaseURL, "/"),
		timeout:    config.Timeout,
		maxRetries: config.MaxRetries,
		httpClient: config.HTTPClient,
	}
}

func (c *GeminiClient) Available() bool {
	return c.apiKey != ""
}

func (c *GeminiClient) Generate(ctx context.Context, request GenerateRequest) (GenerateResult, error) {
	if !c.Available() {
		return GenerateResult{}, ErrGeminiUnavailable
	}
	if strings.TrimSpace(request.Model) == "" {
		return GenerateResult{}, errors.New("model is required")
	}
	if strings.TrimSpace(request.Input) == "" {
		return GenerateResult{}, errors.New("input is required")
	}

	payload := generateContentRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: request.Input}},
		}},
		GenerationConfig: &generationConfig{
			Temperature:     request.Temperature,
			MaxOutputTokens: request.MaxOutputTokens,
		},
	}
	if strings.TrimSpace(request.Instructions) != "" {
		payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: request.Instructions}}}
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("marshal gemini payload: %w", err)
	}

	body, err := c.postWithRetry(ctx, c.modelURL(request.Model, "generateContent"), encoded)
	if err != nil {
		return GenerateResult{}, err
	}

	var raw generateContentResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return GenerateResult{}, fmt.Errorf("decode gemini response: %w", err)
	}

	text := extractCandidateText(raw)
	if strings.TrimSpace(text) == "" {
		return GenerateResult{}, errors.New("gemini response without text output")
	}

	return GenerateResult{
		Text:    text,
		ModelID: firstNonEmpty(raw.ModelVersion, request.Model),
		Usage: TokenUsage{
			InputTokens:  raw.UsageMetadata.PromptTokenCount,
			OutputTokens: raw.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  raw.UsageMetadata.TotalTokenCount,
		},
	}, nil
}

func (c *GeminiClient) modelURL(model, method string) string {
	model = strings.TrimPrefix(strings.TrimSpace(model), "models/")
	return fmt.Sprintf("%s/models/%s:%s", c.baseURL, url.PathEscape(model), method)
}

func (c *GeminiClient) postWithRetry(ctx context.Context, endpoint string, payload []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		body, callErr := c.post(ctx, endpoint, payload)
		if callErr == nil {
			return body, nil
		}
		lastErr = callErr

		if !isRetryableError(callErr) || attempt == c.maxRetries {
			break
		}

		backoff := time.Duration(350*(attempt+1)) * time.Millisecond
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	if lastErr == nil {
		lastErr = errors.New("unknown gemini error")
	}
	return nil, lastErr
}

func (c *GeminiClient) post(ctx context.Context, endpoint string, payload []byte) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpRequest, err := http.NewRequestWithContext(timeoutCtx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create gemini request: %w", err)
	}
	httpRequest.Header.Set("x-goog-api-key", c.apiKey)
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("Accept", "application/json")

	httpResponse, err := c.httpClient.Do(httpRequest)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("gemini timeout: %w", err)
		}
		return nil, fmt.Errorf("gemini transport error: %w", err)
	}
	defer httpResponse.Body.Close()

	body, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return nil, fmt.Errorf("read gemini body: %w", err)
	}

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode > 299 {
		message := strings.TrimSpace(string(body))
		if len(message) > 700 {
			message = message[:700]
		}
		return nil, &geminiHTTPError{
			StatusCode: httpResponse.StatusCode,
			Message:    message,
		}
	}
	return body, nil
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type generateContentRequest struct {
	SystemInstruction *geminiContent    `json:"systemInstruction,omitempty"`
	Contents          []geminiContent   `json:"contents"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	ModelVersion string `json:"modelVersion"`
}

// extractCandidateText joins the text parts of the first candidate.
func extractCandidateText(response generateContentResponse) string {
	if len(response.Candidates) == 0 {
		return ""
	}
	fragments := make([]string, 0)
	for _, part := range response.Candidates[0].Content.Parts {
		if strings.TrimSpace(part.Text) == "" {
			continue
		}
		fragments = append(fragments, strings.TrimSpace(part.Text))
	}
	return strings.TrimSpace(strings.Join(fragments, "\n"))
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

type geminiHTTPError struct {
	StatusCode int
	Message    string
}

func (e *geminiHTTPError) Error() string {
	return fmt.Sprintf("gemini status %d: %s", e.StatusCode, e.Message)
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var httpErr *geminiHTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}
	message := strings.ToLower(err.Error())
	if strings.Contains(message, "timeout") || strings.Contains(message, "tempor") {
		return true
	}
	return false
}
