package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCitedIndices(t *testing.T) {
	tests := []struct {
		name      string
		summary   string
		itemCount int
		want      []int
	}{
		{
			name:      "first appearance order",
			summary:   "事件一[2]，事件二[1]，再次提到[2]。",
			itemCount: 3,
			want:      []int{2, 1},
		},
		{
			name:      "out of range dropped",
			summary:   "真实[1]，幻觉[7]，零[0]。",
			itemCount: 3,
			want:      []int{1},
		},
		{
			name:      "no citations",
			summary:   "今天没有什么新闻。",
			itemCount: 3,
			want:      nil,
		},
		{
			name:      "four digit markers ignored",
			summary:   "年份[2026]不是引用，这才是[3]。",
			itemCount: 5,
			want:      []int{3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CitedIndices(tt.summary, tt.itemCount))
		})
	}
}

func TestNewsItemKey(t *testing.T) {
	assert.Equal(t, "https://a.example/1", NewsItem{Title: "t", URL: "https://a.example/1"}.Key())
	assert.Equal(t, "t", NewsItem{Title: "t"}.Key())
}
