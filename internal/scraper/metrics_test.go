package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMetricsLabel(t *testing.T) {
	tests := []struct {
		label string
		want  Metrics
	}{
		{
			label: "3 replies, 10 reposts, 55 likes, 2 bookmarks, 900 views",
			want:  Metrics{Replies: 3, Reposts: 10, Likes: 55, Bookmarks: 2, Views: 900},
		},
		{
			label: "1,234 likes",
			want:  Metrics{Likes: 1234},
		},
		{
			label: "12,345,678 Views, 1 Reply, 4 Retweets",
			want:  Metrics{Replies: 1, Reposts: 4, Views: 12345678},
		},
		{
			label: "1.234.567 views",
			want:  Metrics{Views: 1234567},
		},
		{
			label: "no engagement yet",
			want:  Metrics{},
		},
		{
			label: "",
			want:  Metrics{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseMetricsLabel(tt.label))
		})
	}
}

func TestParseMetricsLabelTakesFirstMatch(t *testing.T) {
	m := ParseMetricsLabel("5 likes, 9 likes")
	assert.Equal(t, 5, m.Likes)
}

func TestParseMetricFragments(t *testing.T) {
	m := ParseMetricFragments(map[Metric]string{
		MetricReplies: "12",
		MetricReposts: "3.4K",
		MetricLikes:   "1,234",
		MetricViews:   "not a number",
	})
	assert.Equal(t, Metrics{Replies: 12, Reposts: 3400, Likes: 1234}, m)
}

func TestParseCount(t *testing.T) {
	assert.Equal(t, 1234, parseCount("1,234"))
	assert.Equal(t, 1, parseCount("1.5"))
	assert.Equal(t, 1234, parseCount("1.234"))
	assert.Equal(t, 0, parseCount("NaN"))
	assert.Equal(t, 0, parseCount(""))
}

func TestParseMetric(t *testing.T) {
	assert.Equal(t, 0, parseMetric(""))
	assert.Equal(t, 423, parseMetric("423"))
	assert.Equal(t, 1200, parseMetric("1.2K"))
	assert.Equal(t, 5700000, parseMetric("5.7M"))
	assert.Equal(t, 2000000000, parseMetric("2B"))
	assert.Equal(t, 0, parseMetric("K"))
	assert.Equal(t, 1500, parseMetric("1,5K"))
	assert.Equal(t, 2300000, parseMetric("2,3M"))
	assert.Equal(t, 1234000, parseMetric("1,234K"))
}
