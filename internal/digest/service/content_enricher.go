package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang-stock-digest/internal/digest/dto"
	"golang-stock-digest/pkg/logger"
	"golang-stock-digest/pkg/utils"

	"github.com/PuerkitoBio/goquery"
	"github.com/mauidude/go-readability"
)

const (
	enrichFetchTimeout = 15 * time.Second
	enrichMaxBodyBytes = 2 << 20
	enrichContentLen   = 220
)

// ContentEnricher fills in the Content field of items whose search result
// carried only a title and URL, by fetching the article and extracting its
// readable text. Fetch failures leave the item unchanged.
type ContentEnricher interface {
	Enrich(ctx context.Context, items []dto.NewsItem) []dto.NewsItem
}

type contentEnricher struct {
	logger *logger.Logger
	client *http.Client
}

// NewContentEnricher creates a ContentEnricher with a short per-fetch timeout.
func NewContentEnricher(log *logger.Logger) ContentEnricher {
	return &contentEnricher{
		logger: log,
		client: &http.Client{Timeout: enrichFetchTimeout},
	}
}

func (e *contentEnricher) Enrich(ctx context.Context, items []dto.NewsItem) []dto.NewsItem {
	out := make([]dto.NewsItem, len(items))
	copy(out, items)

	for i := range out {
		if out[i].Content != "" || out[i].URL == "" || out[i].URL == defaultURL {
			continue
		}
		if !utils.ShouldContinue(ctx) {
			break
		}

		text, err := e.fetchReadableText(ctx, out[i].URL)
		if err != nil {
			e.logger.Debug("Content enrichment skipped",
				logger.StringField("url", utils.Truncate(out[i].URL, 120)),
				logger.ErrorField(err),
			)
			continue
		}
		out[i].Content = utils.Truncate(text, enrichContentLen)
	}
	return out
}

func (e *contentEnricher) fetchReadableText(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; stock-digest/1.0)")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("article fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, enrichMaxBodyBytes))
	if err != nil {
		return "", err
	}

	article, err := readability.NewDocument(string(body))
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content()))
	if err != nil {
		return "", err
	}

	text := strings.Join(strings.Fields(doc.Text()), " ")
	if text == "" {
		return "", fmt.Errorf("no readable text extracted")
	}
	return text, nil
}
