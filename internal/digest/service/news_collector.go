package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang-stock-digest/internal/digest/config"
	"golang-stock-digest/internal/digest/dto"
	"golang-stock-digest/internal/digest/repository"
	"golang-stock-digest/pkg/logger"
	"golang-stock-digest/pkg/utils"
)

const (
	// Agent searches run a real web search and can take minutes.
	searchCallTimeout = 300 * time.Second

	maxResultsCap     = 30
	contextQueryCount = 3
	contextPerQuery   = 5
	relevancePoolSize = 12
)

// FallbackSource supplies news for a ticker when the agent search came back
// empty. Implementations must degrade to an empty list on failure.
type FallbackSource interface {
	FetchTickerNews(ctx context.Context, ticker, companyName string, maxResults int) []dto.NewsItem
}

// ContextRequest describes one company for industry-context collection.
type ContextRequest struct {
	Ticker        string
	CompanyName   string
	MainIndustry  string
	SubIndustries []string
	Timezone      string
	MaxResults    int
}

// NewsCollector gathers per-company news and industry-context news through
// the agent. All methods degrade to empty results instead of returning errors.
type NewsCollector interface {
	SearchNews(ctx context.Context, req dto.SearchRequest) []dto.NewsItem
	CollectCompanyNews(ctx context.Context, tickers, companyNames []string, timezone string, maxResultsPerCompany, maxConcurrent int) dto.CollectedNews
	CollectContextNews(ctx context.Context, req ContextRequest) []dto.NewsItem
}

type newsCollector struct {
	cfg      *config.Config
	logger   *logger.Logger
	agent    repository.AgentRepository
	fallback FallbackSource

	// wait sleeps between retries; injectable so tests do not block.
	wait func(ctx context.Context, d time.Duration) bool
}

// NewNewsCollector creates a NewsCollector. fallback may be nil to disable
// the secondary source.
func NewNewsCollector(cfg *config.Config, log *logger.Logger, agent repository.AgentRepository, fallback FallbackSource) NewsCollector {
	return &newsCollector{
		cfg:      cfg,
		logger:   log,
		agent:    agent,
		fallback: fallback,
		wait:     sleepWithContext,
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// SearchNews runs one agent-backed news search with retries. Backoff grows
// linearly per attempt and is longer after timeouts. Failures after the last
// retry produce an empty list, never an error.
func (c *newsCollector) SearchNews(ctx context.Context, req dto.SearchRequest) []dto.NewsItem {
	prompt := BuildNewsSearchPrompt(req.Query, req.TargetDate, req.Timezone, req.MaxResults)

	// Larger result sets need more output tokens for the JSON array.
	maxTokens := 3000
	if req.MaxResults > 5 {
		maxTokens = 6500
	}

	var lastErr error
	for attempt := 0; attempt <= req.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Info("Retrying news search",
				logger.IntField("attempt", attempt),
				logger.StringField("query", utils.Truncate(req.Query, 50)),
			)
		}

		reply, err := c.agent.Complete(ctx, prompt, dto.CompleteOptions{
			MaxTokens:   maxTokens,
			Temperature: 0.3,
			Timeout:     searchCallTimeout,
		})
		if err == nil {
			items := FilterByTargetDate(ParseNewsItems(reply), req.TargetDate)
			c.logger.Info("News search finished",
				logger.StringField("query", utils.Truncate(req.Query, 60)),
				logger.StringField("target_date", req.TargetDate),
				logger.IntField("items", len(items)),
			)
			return items
		}

		lastErr = err
		backoff := time.Duration(attempt+1) * 2 * time.Second
		if errors.Is(err, repository.ErrTimeout) {
			backoff = time.Duration(attempt+1) * 3 * time.Second
		}
		c.logger.Warn("News search attempt failed",
			logger.IntField("attempt", attempt),
			logger.StringField("query", utils.Truncate(req.Query, 50)),
			logger.ErrorField(err),
		)
		if attempt < req.MaxRetries {
			if !c.wait(ctx, backoff) {
				break
			}
		}
	}

	c.logger.Error("News search failed after retries",
		logger.StringField("query", utils.Truncate(req.Query, 60)),
		logger.ErrorField(lastErr),
	)
	return nil
}

// CollectCompanyNews fans out one search per company through a bounded worker
// gate and returns a map keyed by ticker. Every requested ticker is present in
// the result, possibly with an empty list.
func (c *newsCollector) CollectCompanyNews(ctx context.Context, tickers, companyNames []string, timezone string, maxResultsPerCompany, maxConcurrent int) dto.CollectedNews {
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}
	maxResults := maxResultsPerCompany
	if maxResults <= 0 || maxResults > maxResultsCap {
		maxResults = maxResultsCap
	}

	targetDate, tzName := utils.TargetDate(timezone)
	results := make(dto.CollectedNews, len(tickers))

	var wg sync.WaitGroup
	var mu sync.Mutex
	sem := make(chan struct{}, maxConcurrent)

	for i, t := range tickers {
		ticker := t
		name := ticker
		if i < len(companyNames) && companyNames[i] != "" {
			name = companyNames[i]
		}

		wg.Add(1)
		utils.GoSafe(func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			items := c.SearchNews(ctx, dto.SearchRequest{
				Query:      BuildCompanyQuery(name, ticker),
				TargetDate: targetDate,
				Timezone:   tzName,
				MaxResults: maxResults,
				MaxRetries: c.cfg.Digest.MaxRetries,
			})
			if len(items) > maxResults {
				items = items[:maxResults]
			}

			if len(items) == 0 && c.fallback != nil {
				items = c.fallback.FetchTickerNews(ctx, ticker, name, maxResults)
				if len(items) > 0 {
					c.logger.Info("Fallback source supplied news",
						logger.StringField("ticker", ticker),
						logger.IntField("items", len(items)),
					)
				}
			}

			mu.Lock()
			results[ticker] = items
			mu.Unlock()
		})
	}
	wg.Wait()

	for _, ticker := range tickers {
		if _, ok := results[ticker]; !ok {
			results[ticker] = nil
		}
	}
	return results
}

// CollectContextNews builds the industry-context section for one company:
// the agent proposes industry-level queries, each query is searched, and the
// deduplicated candidates are re-ranked by likely impact on the company.
func (c *newsCollector) CollectContextNews(ctx context.Context, req ContextRequest) []dto.NewsItem {
	targetDate, tzName := utils.TargetDate(req.Timezone)

	queries := c.proposeIndustryQueries(ctx, req, targetDate, tzName, contextQueryCount)

	var candidates []dto.NewsItem
	for _, q := range queries {
		items := c.SearchNews(ctx, dto.SearchRequest{
			Query:      q,
			TargetDate: targetDate,
			Timezone:   tzName,
			MaxResults: contextPerQuery,
			MaxRetries: c.cfg.Digest.MaxRetries,
		})
		candidates = append(candidates, items...)
	}

	candidates = DedupeNewsItems(candidates)
	if len(candidates) == 0 {
		return nil
	}

	topK := req.MaxResults
	if topK <= 0 {
		topK = contextPerQuery
	}
	return c.filterRelevantContextNews(ctx, req, candidates, topK)
}

// proposeIndustryQueries asks the agent for industry-level search queries.
// When the agent fails or returns nothing usable, template queries seeded from
// the company's industry labels are used instead.
func (c *newsCollector) proposeIndustryQueries(ctx context.Context, req ContextRequest, targetDate, tzName string, maxQueries int) []string {
	prompt := BuildIndustryQueriesPrompt(req.CompanyName, req.Ticker, req.MainIndustry, req.SubIndustries, targetDate, tzName, maxQueries)

	reply, err := c.agent.Complete(ctx, prompt, dto.CompleteOptions{
		MaxTokens:   400,
		Temperature: 0.2,
		Timeout:     45 * time.Second,
	})
	if err == nil {
		var queries []string
		for _, v := range extractJSONArray(reply) {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				queries = append(queries, strings.TrimSpace(s))
			}
		}
		if len(queries) > maxQueries {
			queries = queries[:maxQueries]
		}
		if len(queries) > 0 {
			return queries
		}
	}

	c.logger.Warn("Falling back to template industry queries",
		logger.StringField("ticker", req.Ticker),
		logger.ErrorField(err),
	)

	seed := req.MainIndustry
	if len(req.SubIndustries) > 0 && req.SubIndustries[0] != "" {
		seed = req.SubIndustries[0]
	}
	if seed == "" {
		seed = "technology hardware"
	}
	fallback := []string{
		fmt.Sprintf("%s industry major news regulatory supply chain competitor developments", seed),
		fmt.Sprintf("%s market demand channel checks pricing inventory competitor launches", seed),
		fmt.Sprintf("%s export controls sanctions antitrust investigation standards", seed),
	}
	if len(fallback) > maxQueries {
		fallback = fallback[:maxQueries]
	}
	return fallback
}

// filterRelevantContextNews lets the agent score the candidate pool and keeps
// the top entries by score. On any failure the first topK candidates are
// returned unranked.
func (c *newsCollector) filterRelevantContextNews(ctx context.Context, req ContextRequest, candidates []dto.NewsItem, topK int) []dto.NewsItem {
	trimmed := candidates
	if len(trimmed) > relevancePoolSize {
		trimmed = trimmed[:relevancePoolSize]
	}

	lines := make([]string, 0, len(trimmed))
	for i, item := range trimmed {
		source := item.Source
		if source == "" {
			source = "unknown"
		}
		lines = append(lines, fmt.Sprintf("%d. [%s] %s (%s) :: %s :: %s",
			i,
			utils.Truncate(item.PublishedDate, 20),
			utils.Truncate(item.Title, 180),
			utils.Truncate(source, 60),
			utils.Truncate(item.Content, 220),
			utils.Truncate(item.URL, 240),
		))
	}

	prompt := BuildRelevancePrompt(req.CompanyName, req.Ticker, req.MainIndustry, req.SubIndustries, lines, topK)
	reply, err := c.agent.Complete(ctx, prompt, dto.CompleteOptions{
		MaxTokens:   600,
		Temperature: 0.2,
		Timeout:     60 * time.Second,
	})
	if err != nil {
		c.logger.Warn("Relevance ranking failed, keeping first candidates",
			logger.StringField("ticker", req.Ticker),
			logger.ErrorField(err),
		)
		return firstN(trimmed, topK)
	}

	best := make(map[int]int)
	for _, v := range extractJSONArray(reply) {
		record, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		rawIdx, ok := record["index"].(float64)
		if !ok {
			continue
		}
		idx := int(rawIdx)
		if idx < 0 || idx >= len(trimmed) {
			continue
		}
		score := 0
		if rawScore, ok := record["relevance_score"].(float64); ok {
			score = int(rawScore)
		}
		if cur, exists := best[idx]; !exists || score > cur {
			best[idx] = score
		}
	}
	if len(best) == 0 {
		return firstN(trimmed, topK)
	}

	type pick struct {
		idx   int
		score int
	}
	picks := make([]pick, 0, len(best))
	for idx, score := range best {
		picks = append(picks, pick{idx: idx, score: score})
	}
	sort.Slice(picks, func(i, j int) bool {
		if picks[i].score != picks[j].score {
			return picks[i].score > picks[j].score
		}
		return picks[i].idx < picks[j].idx
	})
	if len(picks) > topK {
		picks = picks[:topK]
	}

	selected := make([]dto.NewsItem, 0, len(picks))
	for _, p := range picks {
		selected = append(selected, trimmed[p.idx])
	}
	return selected
}

func firstN(items []dto.NewsItem, n int) []dto.NewsItem {
	if len(items) > n {
		return items[:n]
	}
	return items
}
