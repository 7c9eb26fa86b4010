package dto

import (
	"regexp"
	"strconv"
	"time"
)

// NewsItem is a single collected news article. PublishedDate is kept as a
// plain YYYY-MM-DD string and compared by exact equality; the agent reports
// calendar days, not timestamps.
type NewsItem struct {
	Title         string `json:"title"`
	Content       string `json:"content"`
	URL           string `json:"url"`
	Source        string `json:"source"`
	PublishedDate string `json:"published_date"`
}

// Key returns the deduplication identity of the item: the URL when present,
// otherwise the title. Comparison is case-insensitive; callers lowercase it.
func (n NewsItem) Key() string {
	if n.URL != "" {
		return n.URL
	}
	return n.Title
}

// SearchRequest describes one agent-backed news search.
type SearchRequest struct {
	Query      string
	TargetDate string
	Timezone   string
	MaxResults int
	MaxRetries int
}

// CollectedNews maps ticker to the news collected for it, in the order the
// agent returned them. Every requested ticker is present as a key, even with
// zero items.
type CollectedNews map[string][]NewsItem

// CompanySummary is the per-ticker digest section. Summary may contain
// inline [n] citation markers referencing 1-based positions in Items.
type CompanySummary struct {
	Ticker  string     `json:"ticker"`
	Title   string     `json:"title"`
	Summary string     `json:"summary"`
	Source  string     `json:"source"`
	Items   []NewsItem `json:"items"`
}

// DigestContent is the full digest for one user. CompanyNews values are
// single-element slices; the shape is kept for compatibility with an earlier
// multiple-summaries-per-company design.
type DigestContent struct {
	CompanyNews map[string][]CompanySummary `json:"company_news"`
	GeneratedAt time.Time                   `json:"generated_at"`
}

var citationRe = regexp.MustCompile(`\[(\d{1,3})\]`)

// CitedIndices extracts the distinct in-range citation numbers from a summary
// text, in first-appearance order.
func CitedIndices(summary string, itemCount int) []int {
	var out []int
	seen := make(map[int]bool)
	for _, m := range citationRe.FindAllStringSubmatch(summary, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n < 1 || n > itemCount || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
