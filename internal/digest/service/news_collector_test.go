package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"golang-stock-digest/internal/digest/config"
	"golang-stock-digest/internal/digest/dto"
	"golang-stock-digest/internal/digest/repository"
	"golang-stock-digest/pkg/logger"
	"golang-stock-digest/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAgent struct {
	mu       sync.Mutex
	calls    []string
	complete func(prompt string, opts dto.CompleteOptions) (string, error)
}

func (f *fakeAgent) Complete(ctx context.Context, prompt string, opts dto.CompleteOptions) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, prompt)
	f.mu.Unlock()
	return f.complete(prompt, opts)
}

func (f *fakeAgent) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeFallback struct {
	items []dto.NewsItem
}

func (f *fakeFallback) FetchTickerNews(ctx context.Context, ticker, companyName string, maxResults int) []dto.NewsItem {
	return f.items
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("error", "json")
	require.NoError(t, err)
	return log
}

func testConfig() *config.Config {
	return &config.Config{
		Digest: config.Digest{
			Timezone:               "UTC",
			MaxConcurrentCollect:   3,
			MaxConcurrentSummarize: 3,
			MaxResultsPerCompany:   30,
			MaxRetries:             2,
		},
	}
}

// newTestCollector returns a collector whose retry sleeps are recorded
// instead of executed.
func newTestCollector(t *testing.T, agent repository.AgentRepository, fallback FallbackSource) (*newsCollector, *[]time.Duration) {
	t.Helper()
	c := NewNewsCollector(testConfig(), newTestLogger(t), agent, fallback).(*newsCollector)

	var mu sync.Mutex
	waits := &[]time.Duration{}
	c.wait = func(ctx context.Context, d time.Duration) bool {
		mu.Lock()
		*waits = append(*waits, d)
		mu.Unlock()
		return true
	}
	return c, waits
}

func newsJSON(t *testing.T, items []dto.NewsItem) string {
	t.Helper()
	raw, err := json.Marshal(items)
	require.NoError(t, err)
	return string(raw)
}

func TestSearchNews_Success(t *testing.T) {
	target := "2026-08-27"
	agent := &fakeAgent{complete: func(prompt string, opts dto.CompleteOptions) (string, error) {
		return newsJSON(t, []dto.NewsItem{
			{Title: "Event", URL: "https://a.example/1", Source: "AP", PublishedDate: target},
		}), nil
	}}
	c, waits := newTestCollector(t, agent, nil)

	items := c.SearchNews(context.Background(), dto.SearchRequest{
		Query: "q", TargetDate: target, Timezone: "UTC", MaxResults: 5, MaxRetries: 2,
	})

	require.Len(t, items, 1)
	assert.Equal(t, "Event", items[0].Title)
	assert.Equal(t, 1, agent.callCount())
	assert.Empty(t, *waits)
}

func TestSearchNews_RetriesThenSucceeds(t *testing.T) {
	target := "2026-08-27"
	attempt := 0
	agent := &fakeAgent{complete: func(prompt string, opts dto.CompleteOptions) (string, error) {
		attempt++
		if attempt == 1 {
			return "", fmt.Errorf("%w: boom", repository.ErrTransport)
		}
		return newsJSON(t, []dto.NewsItem{{Title: "Late win", PublishedDate: target}}), nil
	}}
	c, waits := newTestCollector(t, agent, nil)

	items := c.SearchNews(context.Background(), dto.SearchRequest{
		Query: "q", TargetDate: target, Timezone: "UTC", MaxResults: 5, MaxRetries: 2,
	})

	require.Len(t, items, 1)
	assert.Equal(t, 2, agent.callCount())
	assert.Equal(t, []time.Duration{2 * time.Second}, *waits)
}

func TestSearchNews_TimeoutBackoffIsLonger(t *testing.T) {
	agent := &fakeAgent{complete: func(prompt string, opts dto.CompleteOptions) (string, error) {
		return "", fmt.Errorf("%w: deadline", repository.ErrTimeout)
	}}
	c, waits := newTestCollector(t, agent, nil)

	items := c.SearchNews(context.Background(), dto.SearchRequest{
		Query: "q", TargetDate: "2026-08-27", Timezone: "UTC", MaxResults: 5, MaxRetries: 2,
	})

	assert.Empty(t, items)
	assert.Equal(t, 3, agent.callCount())
	assert.Equal(t, []time.Duration{3 * time.Second, 6 * time.Second}, *waits)
}

func TestSearchNews_AllAttemptsFailReturnsEmpty(t *testing.T) {
	agent := &fakeAgent{complete: func(prompt string, opts dto.CompleteOptions) (string, error) {
		return "", fmt.Errorf("%w: down", repository.ErrTransport)
	}}
	c, waits := newTestCollector(t, agent, nil)

	items := c.SearchNews(context.Background(), dto.SearchRequest{
		Query: "q", TargetDate: "2026-08-27", Timezone: "UTC", MaxResults: 5, MaxRetries: 1,
	})

	assert.Empty(t, items)
	assert.Equal(t, 2, agent.callCount())
	assert.Equal(t, []time.Duration{2 * time.Second}, *waits)
}

func TestSearchNews_TokenBudgetGrowsWithResultCount(t *testing.T) {
	var seen []int
	var mu sync.Mutex
	agent := &fakeAgent{complete: func(prompt string, opts dto.CompleteOptions) (string, error) {
		mu.Lock()
		seen = append(seen, opts.MaxTokens)
		mu.Unlock()
		return "[]", nil
	}}
	c, _ := newTestCollector(t, agent, nil)

	c.SearchNews(context.Background(), dto.SearchRequest{Query: "q", TargetDate: "d", MaxResults: 5})
	c.SearchNews(context.Background(), dto.SearchRequest{Query: "q", TargetDate: "d", MaxResults: 30})

	assert.Equal(t, []int{3000, 6500}, seen)
}

func TestCollectCompanyNews_EveryTickerPresent(t *testing.T) {
	target, _ := utils.TargetDate("UTC")
	agent := &fakeAgent{complete: func(prompt string, opts dto.CompleteOptions) (string, error) {
		// AAPL succeeds, everything else fails hard.
		if strings.Contains(prompt, "(AAPL)") {
			return newsJSON(t, []dto.NewsItem{{Title: "Apple event", URL: "https://a.example/aapl", PublishedDate: target}}), nil
		}
		return "", fmt.Errorf("%w: down", repository.ErrTransport)
	}}
	c, _ := newTestCollector(t, agent, nil)

	got := c.CollectCompanyNews(context.Background(),
		[]string{"AAPL", "MSFT", "NVDA"},
		[]string{"Apple", "Microsoft", "NVIDIA"},
		"UTC", 30, 2)

	require.Len(t, got, 3)
	assert.Len(t, got["AAPL"], 1)
	assert.Empty(t, got["MSFT"])
	assert.Empty(t, got["NVDA"])
}

func TestCollectCompanyNews_HonorsConcurrencyGate(t *testing.T) {
	var mu sync.Mutex
	active, peak := 0, 0

	agent := &fakeAgent{complete: func(prompt string, opts dto.CompleteOptions) (string, error) {
		mu.Lock()
		active++
		if active > peak {
			peak = active
		}
		mu.Unlock()

		time.Sleep(20 * time.Millisecond)

		mu.Lock()
		active--
		mu.Unlock()
		return "[]", nil
	}}
	c, _ := newTestCollector(t, agent, nil)

	tickers := []string{"A", "B", "C", "D", "E", "F"}
	names := []string{"a", "b", "c", "d", "e", "f"}
	c.CollectCompanyNews(context.Background(), tickers, names, "UTC", 5, 2)

	assert.LessOrEqual(t, peak, 2)
}

func TestCollectCompanyNews_FallbackUsedWhenAgentEmpty(t *testing.T) {
	agent := &fakeAgent{complete: func(prompt string, opts dto.CompleteOptions) (string, error) {
		return "[]", nil
	}}
	fallback := &fakeFallback{items: []dto.NewsItem{{Title: "RSS headline", URL: "https://rss.example/1"}}}
	c, _ := newTestCollector(t, agent, fallback)

	got := c.CollectCompanyNews(context.Background(), []string{"AAPL"}, []string{"Apple"}, "UTC", 5, 1)

	require.Len(t, got["AAPL"], 1)
	assert.Equal(t, "RSS headline", got["AAPL"][0].Title)
}

func TestProposeIndustryQueries_UsesAgentReply(t *testing.T) {
	agent := &fakeAgent{complete: func(prompt string, opts dto.CompleteOptions) (string, error) {
		return `["semiconductor export controls", "foundry capacity pricing", "ai chip competition", "extra query"]`, nil
	}}
	c, _ := newTestCollector(t, agent, nil)

	queries := c.proposeIndustryQueries(context.Background(), ContextRequest{
		Ticker: "NVDA", CompanyName: "NVIDIA", MainIndustry: "Semiconductors",
	}, "2026-08-27", "UTC", 3)

	assert.Equal(t, []string{
		"semiconductor export controls",
		"foundry capacity pricing",
		"ai chip competition",
	}, queries)
}

func TestProposeIndustryQueries_TemplateFallback(t *testing.T) {
	agent := &fakeAgent{complete: func(prompt string, opts dto.CompleteOptions) (string, error) {
		return "", fmt.Errorf("%w: down", repository.ErrTransport)
	}}
	c, _ := newTestCollector(t, agent, nil)

	queries := c.proposeIndustryQueries(context.Background(), ContextRequest{
		Ticker: "NVDA", CompanyName: "NVIDIA", MainIndustry: "Semiconductors",
		SubIndustries: []string{"芯片半导体"},
	}, "2026-08-27", "UTC", 3)

	require.Len(t, queries, 3)
	for _, q := range queries {
		assert.Contains(t, q, "芯片半导体")
		assert.NotContains(t, q, "NVDA")
		assert.NotContains(t, q, "NVIDIA")
	}
}

func TestFilterRelevantContextNews_RanksByScore(t *testing.T) {
	agent := &fakeAgent{complete: func(prompt string, opts dto.CompleteOptions) (string, error) {
		return `[
			{"index": 1, "relevance_score": 90, "why": "出口管制"},
			{"index": 0, "relevance_score": 40, "why": "竞争"},
			{"index": 7, "relevance_score": 99, "why": "越界"}
		]`, nil
	}}
	c, _ := newTestCollector(t, agent, nil)

	candidates := []dto.NewsItem{
		{Title: "competitor launch", URL: "https://a.example/1"},
		{Title: "export controls", URL: "https://a.example/2"},
		{Title: "unpicked", URL: "https://a.example/3"},
	}

	got := c.filterRelevantContextNews(context.Background(), ContextRequest{Ticker: "NVDA"}, candidates, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "export controls", got[0].Title)
	assert.Equal(t, "competitor launch", got[1].Title)
}

func TestFilterRelevantContextNews_FallsBackToFirstCandidates(t *testing.T) {
	agent := &fakeAgent{complete: func(prompt string, opts dto.CompleteOptions) (string, error) {
		return "", fmt.Errorf("%w: down", repository.ErrTransport)
	}}
	c, _ := newTestCollector(t, agent, nil)

	candidates := []dto.NewsItem{
		{Title: "one", URL: "https://a.example/1"},
		{Title: "two", URL: "https://a.example/2"},
		{Title: "three", URL: "https://a.example/3"},
	}

	got := c.filterRelevantContextNews(context.Background(), ContextRequest{Ticker: "NVDA"}, candidates, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "one", got[0].Title)
	assert.Equal(t, "two", got[1].Title)
}
