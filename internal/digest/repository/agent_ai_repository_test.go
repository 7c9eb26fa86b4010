package repository

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang-stock-digest/internal/digest/config"
	"golang-stock-digest/internal/digest/dto"
	"golang-stock-digest/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAgentTestRepo(t *testing.T, baseURL string) AgentRepository {
	t.Helper()
	log, err := logger.New("error", "json")
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Agent.BaseURL = baseURL
	cfg.Agent.APIKey = "test-key"
	cfg.Agent.Model = "supermind-agent-v1"
	cfg.Agent.MaxRequestPerMinute = 600
	cfg.Agent.MaxTokenPerMinute = 1000000

	return NewAgentAIRepository(cfg, log)
}

func completionBody(content string) string {
	resp := dto.ChatCompletionResponse{
		Choices: []dto.Choice{{Message: dto.Message{Role: "assistant", Content: content}}},
		Usage:   dto.Usage{TotalTokens: 42},
	}
	raw, _ := json.Marshal(resp)
	return string(raw)
}

func TestAgentComplete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req dto.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "supermind-agent-v1", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionBody("  the reply  ")))
	}))
	defer server.Close()

	repo := newAgentTestRepo(t, server.URL)
	got, err := repo.Complete(context.Background(), "hello", dto.CompleteOptions{MaxTokens: 100})

	require.NoError(t, err)
	assert.Equal(t, "the reply", got)
}

func TestAgentComplete_RemoteError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream sad"))
	}))
	defer server.Close()

	repo := newAgentTestRepo(t, server.URL)
	_, err := repo.Complete(context.Background(), "hello", dto.CompleteOptions{})

	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, http.StatusBadGateway, remoteErr.StatusCode)
	assert.Contains(t, remoteErr.Body, "upstream sad")
}

func TestAgentComplete_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(completionBody("too late")))
	}))
	defer server.Close()

	repo := newAgentTestRepo(t, server.URL)
	_, err := repo.Complete(context.Background(), "hello", dto.CompleteOptions{Timeout: 50 * time.Millisecond})

	assert.ErrorIs(t, err, ErrTimeout)
}

func TestAgentComplete_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	repo := newAgentTestRepo(t, server.URL)
	_, err := repo.Complete(context.Background(), "hello", dto.CompleteOptions{})

	assert.ErrorIs(t, err, ErrTransport)
}

func TestAgentComplete_ConnectionRefused(t *testing.T) {
	repo := newAgentTestRepo(t, "http://127.0.0.1:1")
	_, err := repo.Complete(context.Background(), "hello", dto.CompleteOptions{})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransport) || errors.Is(err, ErrTimeout))
}
