package chat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrUpstreamStatus wraps a non-2xx response from the completion endpoint.
var ErrUpstreamStatus = errors.New("upstream returned an error status")

// Turn is one message in the conversation sent upstream.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model     string `json:"model"`
	Messages  []Turn `json:"messages"`
	MaxTokens int    `json:"max_tokens"`
	Stream    bool   `json:"stream"`
}

type completionChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// StreamClient issues streaming completion requests against an
// OpenAI-compatible chat endpoint and parses the SSE response.
type StreamClient struct {
	httpClient *http.Client
	logger     *zap.Logger
}

// NewStreamClient creates a stream client. The timeout bounds the entire
// request including the streamed body.
func NewStreamClient(timeout time.Duration, logger *zap.Logger) *StreamClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamClient{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Complete sends the conversation upstream and invokes onDelta for every
// content fragment as it arrives. It returns the accumulated assistant reply.
// Malformed stream fragments are skipped; the stream ends at the [DONE]
// sentinel or EOF.
func (s *StreamClient) Complete(ctx context.Context, cfg *Config, turns []Turn, onDelta func(string)) (string, error) {
	body, err := json.Marshal(completionRequest{
		Model:     cfg.Model,
		Messages:  turns,
		MaxTokens: cfg.MaxOutputTokens,
		Stream:    true,
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.EndpointURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: %d", ErrUpstreamStatus, resp.StatusCode)
	}

	var reply strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}
		if payload == "[DONE]" {
			break
		}
		var chunk completionChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			s.logger.Warn("skipping malformed stream fragment", zap.Error(err))
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		reply.WriteString(delta)
		if onDelta != nil {
			onDelta(delta)
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("read completion stream: %w", err)
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return reply.String(), nil
}
