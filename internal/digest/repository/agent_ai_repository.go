package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"golang-stock-digest/internal/digest/config"
	"golang-stock-digest/internal/digest/dto"
	"golang-stock-digest/pkg/logger"
	"golang-stock-digest/pkg/ratelimit"

	"golang.org/x/time/rate"
)

const defaultCallTimeout = 60 * time.Second

type agentAIRepository struct {
	client         *http.Client
	cfg            *config.Config
	logger         *logger.Logger
	tokenLimiter   *ratelimit.TokenLimiter
	requestLimiter *rate.Limiter
}

// NewAgentAIRepository creates an AgentRepository backed by an OpenAI-shaped
// chat-completions endpoint with bearer-token auth.
func NewAgentAIRepository(cfg *config.Config, log *logger.Logger) AgentRepository {
	secondsPerRequest := time.Minute / time.Duration(cfg.Agent.MaxRequestPerMinute)
	requestLimiter := rate.NewLimiter(rate.Every(secondsPerRequest), 1)

	tokenLimiter := ratelimit.NewTokenLimiter(cfg.Agent.MaxTokenPerMinute)

	return &agentAIRepository{
		// The remote agent performs live web search; individual calls carry
		// their own deadline via context, so the base client timeout only
		// bounds runaway connections.
		client: &http.Client{
			Timeout: 310 * time.Second,
		},
		cfg:            cfg,
		logger:         log,
		requestLimiter: requestLimiter,
		tokenLimiter:   tokenLimiter,
	}
}

// Complete sends one chat-completion request and returns the raw reply text.
func (r *agentAIRepository) Complete(ctx context.Context, prompt string, opts dto.CompleteOptions) (string, error) {
	if err := r.requestLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("failed to wait for request limit: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload := dto.ChatCompletionRequest{
		Model: r.cfg.Agent.Model,
		Messages: []dto.Message{
			{Role: "user", Content: prompt},
		},
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}

	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	url := strings.TrimSuffix(r.cfg.Agent.BaseURL, "/") + "/v1/chat/completions"

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewBuffer(jsonPayload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", r.cfg.Agent.APIKey))

	r.logger.Debug("Sending request to agent endpoint",
		logger.StringField("url", url),
		logger.StringField("model", r.cfg.Agent.Model),
		logger.IntField("max_tokens", opts.MaxTokens),
	)

	resp, err := r.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return "", fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		r.logger.Error("Received non-OK response from agent endpoint",
			logger.IntField("status_code", resp.StatusCode),
			logger.StringField("url", url),
		)
		return "", &RemoteError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var completion dto.ChatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("%w: decoding response body: %v", ErrTransport, err)
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", ErrTransport)
	}

	if completion.Usage.TotalTokens > r.cfg.Agent.MaxTokenPerMinute/2 {
		r.logger.Warn("Token usage exceeded 50% of the per-minute limit",
			logger.IntField("remaining", r.tokenLimiter.GetRemaining()))
	}

	if err := r.tokenLimiter.Wait(ctx, completion.Usage.TotalTokens); err != nil {
		return "", fmt.Errorf("failed to wait for token limit: %w", err)
	}

	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
