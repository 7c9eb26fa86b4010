package service

import (
	"context"
	"fmt"
	"testing"

	"golang-stock-digest/internal/digest/dto"
	"golang-stock-digest/internal/digest/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testItems(n int) []dto.NewsItem {
	items := make([]dto.NewsItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, dto.NewsItem{
			Title:         fmt.Sprintf("Headline %d", i+1),
			Content:       "something happened",
			URL:           fmt.Sprintf("https://a.example/%d", i+1),
			Source:        "Reuters",
			PublishedDate: "2026-08-27",
		})
	}
	return items
}

func TestSummarize_NoItems(t *testing.T) {
	s := NewSummarizer(newTestLogger(t), &fakeAgent{complete: func(prompt string, opts dto.CompleteOptions) (string, error) {
		t.Fatal("agent must not be called for an empty news list")
		return "", nil
	}})

	got := s.SummarizeWithReferences(context.Background(), "AAPL", "Apple", nil, "2026-08-27", 30)
	assert.Equal(t, "2026-08-27 没有找到关于 Apple 的重要新闻。", got)
}

func TestSummarize_HappyPath(t *testing.T) {
	agent := &fakeAgent{complete: func(prompt string, opts dto.CompleteOptions) (string, error) {
		assert.Equal(t, 650, opts.MaxTokens)
		assert.InDelta(t, 0.4, opts.Temperature, 1e-9)
		return "苹果宣布新品延期[1]。监管调查仍在推进[2]。", nil
	}}
	s := NewSummarizer(newTestLogger(t), agent)

	got := s.SummarizeWithReferences(context.Background(), "AAPL", "Apple", testItems(3), "2026-08-27", 30)
	assert.Equal(t, "苹果宣布新品延期[1]。监管调查仍在推进[2]。", got)
	assert.Equal(t, 1, agent.callCount())
}

func TestSummarize_VagueReplyTriggersStricterRetry(t *testing.T) {
	attempt := 0
	agent := &fakeAgent{complete: func(prompt string, opts dto.CompleteOptions) (string, error) {
		attempt++
		if attempt == 1 {
			return "没有显著公司事件[1]。", nil
		}
		// The retry prompt must carry the stricter rules at lower temperature.
		assert.Contains(t, prompt, "不要输出“没有显著公司事件”")
		assert.InDelta(t, 0.2, opts.Temperature, 1e-9)
		return "诉讼进入关键阶段[1]。供应链传出减产[2]。", nil
	}}
	s := NewSummarizer(newTestLogger(t), agent)

	got := s.SummarizeWithReferences(context.Background(), "AAPL", "Apple", testItems(3), "2026-08-27", 30)
	assert.Equal(t, "诉讼进入关键阶段[1]。供应链传出减产[2]。", got)
	assert.Equal(t, 2, agent.callCount())
}

func TestSummarize_MissingCitationsTriggersRetry(t *testing.T) {
	attempt := 0
	agent := &fakeAgent{complete: func(prompt string, opts dto.CompleteOptions) (string, error) {
		attempt++
		if attempt == 1 {
			return "苹果今天有一些新闻。", nil
		}
		return "苹果发布新品[1]。", nil
	}}
	s := NewSummarizer(newTestLogger(t), agent)

	got := s.SummarizeWithReferences(context.Background(), "AAPL", "Apple", testItems(2), "2026-08-27", 30)
	assert.Equal(t, "苹果发布新品[1]。", got)
	assert.Equal(t, 2, agent.callCount())
}

func TestSummarize_TitleFallbackWhenRetryStillUncited(t *testing.T) {
	agent := &fakeAgent{complete: func(prompt string, opts dto.CompleteOptions) (string, error) {
		return "苹果今天有一些新闻。", nil
	}}
	s := NewSummarizer(newTestLogger(t), agent)

	got := s.SummarizeWithReferences(context.Background(), "AAPL", "Apple", testItems(3), "2026-08-27", 30)
	assert.Equal(t, "2026-08-27 相关新闻主要包括：Headline 1[1]；以及 Headline 2[2]", got)
	assert.Equal(t, 2, agent.callCount())
}

func TestSummarize_AgentFailureYieldsFixedSentence(t *testing.T) {
	agent := &fakeAgent{complete: func(prompt string, opts dto.CompleteOptions) (string, error) {
		return "", fmt.Errorf("%w: down", repository.ErrTransport)
	}}
	s := NewSummarizer(newTestLogger(t), agent)

	got := s.SummarizeWithReferences(context.Background(), "AAPL", "Apple", testItems(2), "2026-08-27", 30)
	assert.Equal(t, "2026-08-27 关于 Apple 有新闻更新。", got)
}

func TestSummarize_CitationsStayInRange(t *testing.T) {
	agent := &fakeAgent{complete: func(prompt string, opts dto.CompleteOptions) (string, error) {
		return "事件一[1]，事件二[2]，幻觉引用[9]。", nil
	}}
	s := NewSummarizer(newTestLogger(t), agent)

	items := testItems(2)
	got := s.SummarizeWithReferences(context.Background(), "AAPL", "Apple", items, "2026-08-27", 30)
	assert.Equal(t, []int{1, 2}, dto.CitedIndices(got, len(items)))
}

func TestCleanModelReply(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "strips final answer wrapper",
			input: "Here's my thinking process: blah blah.\nFinal answer: 摘要内容[1]。",
			want:  "摘要内容[1]。",
		},
		{
			name:  "keeps last paragraph without answer marker",
			input: "Here's my thinking about this.\n\n苹果发布新品并上调指引[1][2]。",
			want:  "苹果发布新品并上调指引[1][2]。",
		},
		{
			name:  "strips chinese boilerplate prefix",
			input: "好的，这是为您生成的摘要：监管机构展开调查[1]。",
			want:  "监管机构展开调查[1]。",
		},
		{
			name:  "strips short prefix",
			input: "摘要：供应链传出涨价[1]。",
			want:  "供应链传出涨价[1]。",
		},
		{
			name:  "citation markers survive cleaning",
			input: "  事件A[1]；事件B[2]。  ",
			want:  "事件A[1]；事件B[2]。",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanModelReply(tt.input))
		})
	}
}

func TestTitleFallbackSummary(t *testing.T) {
	t.Run("two titles", func(t *testing.T) {
		got := titleFallbackSummary([]dto.NewsItem{{Title: "A"}, {Title: "B"}}, "2026-08-27")
		assert.Equal(t, "2026-08-27 相关新闻主要包括：A[1]；以及 B[2]", got)
	})
	t.Run("single title", func(t *testing.T) {
		got := titleFallbackSummary([]dto.NewsItem{{Title: "A"}}, "2026-08-27")
		assert.Equal(t, "2026-08-27 相关新闻主要包括：A[1]。", got)
	})
	t.Run("no usable titles", func(t *testing.T) {
		assert.Equal(t, "", titleFallbackSummary([]dto.NewsItem{{Title: "  "}}, "2026-08-27"))
	})
}

func TestSummarize_CapsItemCount(t *testing.T) {
	var gotPrompt string
	agent := &fakeAgent{complete: func(prompt string, opts dto.CompleteOptions) (string, error) {
		gotPrompt = prompt
		return "前三十条中的要点[1]。", nil
	}}
	s := NewSummarizer(newTestLogger(t), agent)

	s.SummarizeWithReferences(context.Background(), "AAPL", "Apple", testItems(40), "2026-08-27", 50)
	require.NotEmpty(t, gotPrompt)
	assert.Contains(t, gotPrompt, "1..30")
	assert.NotContains(t, gotPrompt, "Headline 31")
}
