package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/sync/semaphore"

	"github.com/sphllzulu/QuickPactv2/config"
	"github.com/sphllzulu/QuickPactv2/pkg/logger"
)

// Generator produces a contract document from a system prompt and a user prompt
type Generator interface {
	Generate(ctx context.Context, systemPrompt, prompt string) (string, error)
}

type OpenAIService struct {
	config     *config.OpenAIConfig
	httpClient *http.Client
	backoff    Backoff
	sleep      Sleeper
	limit      *semaphore.Weighted
}

// ChatMessage is one message of a chat completion request
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest represents the request body sent to the provider
type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p"`
}

// ChatCompletionResponse represents the provider response
type ChatCompletionResponse struct {
	Choices []struct {
		Index        int         `json:"index"`
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func NewOpenAIService(cfg *config.OpenAIConfig) *OpenAIService {
	return &OpenAIService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		backoff: Backoff{
			BaseDelay:  time.Duration(cfg.RetryBaseDelayMS) * time.Millisecond,
			MaxRetries: cfg.MaxRetries,
		},
		sleep: sleepContext,
		limit: semaphore.NewWeighted(int64(max(cfg.MaxConcurrent, 1))),
	}
}

// Generate sends one chat completion per attempt, retrying only on rate limits.
// Concurrent calls beyond MaxConcurrent wait for a free slot.
func (s *OpenAIService) Generate(ctx context.Context, systemPrompt, prompt string) (string, error) {
	if err := s.limit.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("waiting for a free AI request slot: %w", err)
	}
	defer s.limit.Release(1)

	start := time.Now()

	var content string
	err := Retry(ctx, s.backoff, s.sleep, isRateLimited, func(ctx context.Context, attempt int) error {
		if attempt > 0 {
			logger.Warn(ctx, "AI provider rate limited, retrying",
				"attempt", attempt,
				"delay_ms", s.backoff.Delay(attempt).Milliseconds(),
			)
		}
		var err error
		content, err = s.complete(ctx, systemPrompt, prompt)
		return err
	})
	if err != nil {
		logger.Error(ctx, "contract generation failed",
			"error", err,
			"rate_limited_exhausted", errors.Is(err, ErrRateLimited),
			"latency_ms", time.Since(start).Milliseconds(),
		)
		return "", err
	}

	logger.Info(ctx, "contract generated",
		"model", s.config.Model,
		"response_len", len(content),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}

func isRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

func (s *OpenAIService) complete(ctx context.Context, systemPrompt, prompt string) (string, error) {
	reqBody := ChatCompletionRequest{
		Model: s.config.Model,
		Messages: []ChatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   s.config.MaxTokens,
		Temperature: s.config.Temperature,
		TopP:        s.config.TopP,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimRight(s.config.APIURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("%w (status %d)", ErrRateLimited, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &RequestError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var result ChatCompletionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("AI provider error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", errors.New("AI provider returned no choices")
	}

	return result.Choices[0].Message.Content, nil
}
