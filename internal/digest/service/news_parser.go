package service

import (
	"encoding/json"
	"regexp"
	"strings"

	"golang-stock-digest/internal/digest/dto"
	"golang-stock-digest/pkg/utils"
)

// Defaults applied when the model omits a field. The values match what the
// email renderer expects for missing data.
const (
	defaultTitle  = "无标题"
	defaultURL    = "#"
	defaultSource = "未知"
)

var (
	listMarkerRe = regexp.MustCompile(`^\d+[.)]?\s*`)
	itemStartRe  = regexp.MustCompile(`^\d+[.)]?\s*(.+)$`)
)

// ParseNewsItems extracts a list of news items from a model reply. The reply
// usually contains a JSON array, possibly wrapped in commentary or a code
// fence; when no decodable array is found the line-oriented heuristic runs
// instead. This function never fails: garbage in, empty list out.
func ParseNewsItems(content string) []dto.NewsItem {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	if raw := extractJSONArray(content); raw != nil {
		items := make([]dto.NewsItem, 0, len(raw))
		for _, v := range raw {
			record, ok := v.(map[string]interface{})
			if !ok {
				continue
			}
			items = append(items, normalizeItem(record))
		}
		return items
	}

	return parseLineHeuristic(content)
}

// extractJSONArray finds the outermost [...] span in content and decodes it.
// Returns nil when no span exists or it is not valid JSON.
func extractJSONArray(content string) []interface{} {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return nil
	}

	var decoded []interface{}
	if err := json.Unmarshal([]byte(content[start:end+1]), &decoded); err != nil {
		return nil
	}
	return decoded
}

// normalizeItem fills defaults and resolves the alternate field names some
// model replies use (headline/link/published_at).
func normalizeItem(record map[string]interface{}) dto.NewsItem {
	item := dto.NewsItem{}

	if v, ok := stringField(record, "title", "headline"); ok {
		item.Title = v
	} else {
		item.Title = defaultTitle
	}
	if v, ok := stringField(record, "url", "link"); ok {
		item.URL = v
	} else {
		item.URL = defaultURL
	}
	if v, ok := stringField(record, "source"); ok {
		item.Source = v
	} else {
		item.Source = defaultSource
	}
	if v, ok := stringField(record, "published_date", "published_at"); ok {
		item.PublishedDate = v
	}
	if v, ok := stringField(record, "content"); ok {
		item.Content = v
	}

	return item
}

func stringField(record map[string]interface{}, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := record[k]; ok {
			if s, ok := v.(string); ok {
				return s, true
			}
		}
	}
	return "", false
}

// parseLineHeuristic recovers items from free-form list text: a line starting
// with a numbered or bullet marker opens an item, a following line containing
// "http" becomes its URL, and the first other non-empty line becomes its
// content (truncated).
func parseLineHeuristic(content string) []dto.NewsItem {
	var items []dto.NewsItem
	var current *dto.NewsItem

	flush := func() {
		if current != nil {
			items = append(items, *current)
			current = nil
		}
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}

		if itemStartRe.MatchString(line) || strings.HasPrefix(line, "-") || strings.HasPrefix(line, "*") {
			flush()
			title := listMarkerRe.ReplaceAllString(line, "")
			title = strings.TrimSpace(strings.Trim(title, "- *"))
			current = &dto.NewsItem{
				Title:  title,
				URL:    defaultURL,
				Source: defaultSource,
			}
		} else if strings.Contains(strings.ToLower(line), "http") {
			if current != nil {
				current.URL = line
			}
		} else if current != nil && current.Content == "" {
			current.Content = utils.Truncate(line, 200)
		}
	}
	flush()

	return items
}

// FilterByTargetDate keeps items published exactly on targetDate. When none
// match it returns the first two items instead: a loose match beats an empty
// digest section.
func FilterByTargetDate(items []dto.NewsItem, targetDate string) []dto.NewsItem {
	var exact, rest []dto.NewsItem
	for _, item := range items {
		if strings.TrimSpace(item.PublishedDate) == targetDate {
			exact = append(exact, item)
		} else {
			rest = append(rest, item)
		}
	}

	if len(exact) > 0 {
		return exact
	}
	if len(rest) > 2 {
		rest = rest[:2]
	}
	return rest
}

// DedupeNewsItems drops items whose identity (URL, or title when the URL is
// empty) was already seen, case-insensitively. The first occurrence wins.
func DedupeNewsItems(items []dto.NewsItem) []dto.NewsItem {
	seen := make(map[string]bool, len(items))
	var out []dto.NewsItem
	for _, item := range items {
		key := strings.TrimSpace(item.URL)
		if key == "" {
			key = strings.TrimSpace(item.Title)
		}
		if key == "" {
			continue
		}
		key = strings.ToLower(key)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return out
}
