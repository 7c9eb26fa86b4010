package mailer

import (
	"testing"
	"time"

	"golang-stock-digest/internal/digest/dto"
	"golang-stock-digest/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendDigestEmail_MissingCredentials(t *testing.T) {
	log, err := logger.New("error", "json")
	require.NoError(t, err)

	m := New(Config{Host: "smtp.example.com", Port: 587}, log)
	ok := m.SendDigestEmail("a@example.com", &dto.DigestContent{}, "2026/08/28")
	assert.False(t, ok)
}

func TestRenderBody(t *testing.T) {
	content := &dto.DigestContent{
		CompanyNews: map[string][]dto.CompanySummary{
			"AAPL": {{
				Ticker:  "AAPL",
				Title:   "Apple 新闻摘要",
				Summary: "发布会传出延期[2]，供应链涨价[1]。",
				Source:  "AI 摘要",
				Items: []dto.NewsItem{
					{Title: "Supplier raises prices", Source: "Reuters", URL: "https://a.example/1"},
					{Title: "Launch delayed", Source: "Bloomberg", URL: "https://a.example/2"},
				},
			}},
		},
		GeneratedAt: time.Now(),
	}

	body := renderBody(content, "2026/08/28")

	assert.Contains(t, body, "2026/08/28")
	assert.Contains(t, body, "== AAPL ==")
	assert.Contains(t, body, "发布会传出延期[2]")
	// Cited references appear in citation order.
	assert.Contains(t, body, "[2] Launch delayed (Bloomberg) https://a.example/2")
	assert.Contains(t, body, "[1] Supplier raises prices (Reuters) https://a.example/1")
}

func TestRenderBody_UncitedSummaryListsFirstItems(t *testing.T) {
	content := &dto.DigestContent{
		CompanyNews: map[string][]dto.CompanySummary{
			"MSFT": {{
				Ticker:  "MSFT",
				Summary: "今日无引用摘要。",
				Items: []dto.NewsItem{
					{Title: "One", Source: "AP", URL: "https://a.example/1"},
					{Title: "Two", Source: "AP", URL: "https://a.example/2"},
				},
			}},
		},
	}

	body := renderBody(content, "2026/08/28")
	assert.Contains(t, body, "[1] One")
	assert.Contains(t, body, "[2] Two")
}

func TestRenderBody_Empty(t *testing.T) {
	body := renderBody(&dto.DigestContent{}, "2026/08/28")
	assert.Contains(t, body, "暂无公司新闻")
}
