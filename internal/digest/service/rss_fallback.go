package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang-stock-digest/internal/digest/dto"
	"golang-stock-digest/pkg/logger"
	"golang-stock-digest/pkg/utils"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

const googleNewsFeedFmt = "https://news.google.com/rss/search?q=%s&hl=en-US&gl=US&ceid=US:en"

// googleNewsRSS is a FallbackSource that pulls headlines from the Google News
// RSS search feed. It is only consulted when the agent search found nothing,
// and only when enabled via configuration.
type googleNewsRSS struct {
	logger *logger.Logger
	parser *gofeed.Parser
}

// NewGoogleNewsRSS creates the Google News RSS fallback source.
func NewGoogleNewsRSS(log *logger.Logger) FallbackSource {
	return &googleNewsRSS{
		logger: log,
		parser: gofeed.NewParser(),
	}
}

func (g *googleNewsRSS) FetchTickerNews(ctx context.Context, ticker, companyName string, maxResults int) []dto.NewsItem {
	query := url.QueryEscape(fmt.Sprintf("%s %s stock", companyName, ticker))
	feedURL := fmt.Sprintf(googleNewsFeedFmt, query)

	feed, err := g.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		g.logger.Warn("Google News RSS fetch failed",
			logger.StringField("ticker", ticker),
			logger.ErrorField(err),
		)
		return nil
	}

	items := make([]dto.NewsItem, 0, maxResults)
	for _, entry := range feed.Items {
		if len(items) >= maxResults {
			break
		}
		if entry.Title == "" && entry.Link == "" {
			continue
		}

		published := ""
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed.Format(utils.DateLayout)
		}

		source := "Google News"
		if u, err := url.Parse(entry.Link); err == nil && u.Hostname() != "" {
			source = u.Hostname()
		}

		items = append(items, dto.NewsItem{
			Title:         entry.Title,
			Content:       utils.Truncate(stripHTMLTags(entry.Description), 200),
			URL:           entry.Link,
			Source:        source,
			PublishedDate: published,
		})
	}

	g.logger.Info("Google News RSS fallback finished",
		logger.StringField("ticker", ticker),
		logger.IntField("items", len(items)),
	)
	return items
}

// stripHTMLTags flattens the HTML snippets Google News puts in descriptions.
func stripHTMLTags(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
