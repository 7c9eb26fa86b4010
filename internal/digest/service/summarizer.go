package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang-stock-digest/internal/digest/dto"
	"golang-stock-digest/internal/digest/repository"
	"golang-stock-digest/pkg/logger"
	"golang-stock-digest/pkg/utils"
)

const (
	summaryMaxTokens   = 650
	summaryCallTimeout = 90 * time.Second
	summaryMaxItems    = 30

	noNewsSummaryFmt   = "%s 没有找到关于 %s 的重要新闻。"
	fallbackSummaryFmt = "%s 关于 %s 有新闻更新。"
)

// Vague one-liner conclusions that trigger a stricter retry.
var bannedSummaryPhrases = []string{"没有显著公司事件", "主要是观点"}

// Boilerplate lead-ins the model sometimes adds despite the prompt.
var chinesePrefixes = []string{
	"好的，这是为您生成的摘要：",
	"好的，这是摘要：",
	"以下是摘要：",
	"摘要：",
	"总结：",
}

var citationMarkerRe = regexp.MustCompile(`\[\d{1,3}\]`)

// Summarizer turns a company's news list into a short cited summary in
// Chinese. It always returns usable text, falling back to fixed sentences
// when the agent fails.
type Summarizer interface {
	SummarizeWithReferences(ctx context.Context, ticker, companyName string, items []dto.NewsItem, targetDate string, maxItems int) string
}

type summarizer struct {
	logger *logger.Logger
	agent  repository.AgentRepository
}

// NewSummarizer creates a Summarizer backed by the given agent.
func NewSummarizer(log *logger.Logger, agent repository.AgentRepository) Summarizer {
	return &summarizer{logger: log, agent: agent}
}

// SummarizeWithReferences produces a 2-4 sentence investor summary whose
// sentences cite the numbered news list with [n] markers. The flow is:
// generate, retry once with stricter rules when the reply is vague or has no
// citations, then fall back to a title-based sentence, then to a fixed
// sentence. It never returns an empty string and never fails.
func (s *summarizer) SummarizeWithReferences(ctx context.Context, ticker, companyName string, items []dto.NewsItem, targetDate string, maxItems int) string {
	if maxItems <= 0 || maxItems > summaryMaxItems {
		maxItems = summaryMaxItems
	}
	if len(items) > maxItems {
		items = items[:maxItems]
	}
	if len(items) == 0 {
		return fmt.Sprintf(noNewsSummaryFmt, targetDate, companyName)
	}

	referenceLines := buildReferenceLines(items)
	content, err := s.callOnce(ctx, BuildSummaryPrompt(ticker, companyName, targetDate, referenceLines, len(items), ""), 0.4)
	if err != nil {
		s.logger.Error("Referenced summary failed",
			logger.StringField("ticker", ticker),
			logger.ErrorField(err),
		)
		return fmt.Sprintf(fallbackSummaryFmt, targetDate, companyName)
	}

	if containsBannedPhrase(content) || !hasCitations(content) {
		content, err = s.callOnce(ctx, BuildSummaryPrompt(ticker, companyName, targetDate, referenceLines, len(items), summaryRetryRules), 0.2)
		if err != nil {
			s.logger.Error("Referenced summary retry failed",
				logger.StringField("ticker", ticker),
				logger.ErrorField(err),
			)
			return fmt.Sprintf(fallbackSummaryFmt, targetDate, companyName)
		}
	}

	if !hasCitations(content) {
		if fallback := titleFallbackSummary(items, targetDate); fallback != "" {
			content = fallback
		}
	}
	return content
}

func (s *summarizer) callOnce(ctx context.Context, prompt string, temperature float64) (string, error) {
	reply, err := s.agent.Complete(ctx, prompt, dto.CompleteOptions{
		MaxTokens:   summaryMaxTokens,
		Temperature: temperature,
		Timeout:     summaryCallTimeout,
	})
	if err != nil {
		return "", err
	}
	return cleanModelReply(reply), nil
}

// cleanModelReply strips thinking-process wrappers and Chinese boilerplate
// prefixes while preserving [n] citation markers.
func cleanModelReply(content string) string {
	if strings.Contains(content, "Here's my thinking") {
		parts := strings.Split(content, "Final answer:")
		if len(parts) > 1 {
			content = strings.TrimSpace(parts[len(parts)-1])
		} else {
			// No explicit answer marker: keep the last substantial paragraph.
			paragraphs := strings.Split(content, "\n\n")
			for i := len(paragraphs) - 1; i >= 0; i-- {
				p := strings.TrimSpace(paragraphs[i])
				if len([]rune(p)) > 5 && !strings.HasPrefix(p, "Here's") {
					content = p
					break
				}
			}
		}
	}
	content = strings.ReplaceAll(content, "Here's my thinking process", "")
	content = strings.ReplaceAll(content, "Here's my thinking", "")
	content = strings.TrimSpace(content)

	for _, prefix := range chinesePrefixes {
		if strings.HasPrefix(content, prefix) {
			content = strings.TrimSpace(strings.TrimPrefix(content, prefix))
		}
	}
	return content
}

func containsBannedPhrase(content string) bool {
	for _, phrase := range bannedSummaryPhrases {
		if strings.Contains(content, phrase) {
			return true
		}
	}
	return false
}

func hasCitations(content string) bool {
	return citationMarkerRe.MatchString(content)
}

// buildReferenceLines formats the numbered news list (1..N) the summary
// prompt cites from.
func buildReferenceLines(items []dto.NewsItem) []string {
	lines := make([]string, 0, len(items))
	for i, item := range items {
		source := item.Source
		if source == "" {
			source = "未知"
		}
		lines = append(lines, fmt.Sprintf("%d. [%s] %s（%s）: %s | %s",
			i+1,
			utils.Truncate(item.PublishedDate, 20),
			utils.Truncate(item.Title, 200),
			utils.Truncate(source, 60),
			utils.Truncate(item.Content, 220),
			utils.Truncate(item.URL, 300),
		))
	}
	return lines
}

// titleFallbackSummary builds a cited sentence from the first one or two
// titles. Returns "" when no usable title exists.
func titleFallbackSummary(items []dto.NewsItem, targetDate string) string {
	titles := make([]string, 0, 2)
	for _, item := range items {
		if t := strings.TrimSpace(item.Title); t != "" {
			titles = append(titles, t)
		}
		if len(titles) == 2 {
			break
		}
	}
	if len(titles) == 0 {
		return ""
	}
	if len(titles) == 1 {
		return fmt.Sprintf("%s 相关新闻主要包括：%s[1]。", targetDate, titles[0])
	}
	return fmt.Sprintf("%s 相关新闻主要包括：%s[1]；以及 %s[2]", targetDate, titles[0], titles[1])
}
