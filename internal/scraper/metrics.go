package scraper

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Metric identifies one engagement counter.
type Metric int

const (
	MetricReplies Metric = iota
	MetricReposts
	MetricLikes
	MetricBookmarks
	MetricViews
)

// Metrics holds the five engagement counters of a post.
type Metrics struct {
	Replies   int
	Reposts   int
	Likes     int
	Bookmarks int
	Views     int
}

func (m *Metrics) set(metric Metric, v int) {
	switch metric {
	case MetricReplies:
		m.Replies = v
	case MetricReposts:
		m.Reposts = v
	case MetricLikes:
		m.Likes = v
	case MetricBookmarks:
		m.Bookmarks = v
	case MetricViews:
		m.Views = v
	}
}

// A number immediately followed by the metric's label fragment, e.g. "1,234 likes".
var labelPatterns = map[Metric]*regexp.Regexp{
	MetricReplies:   regexp.MustCompile(`(?i)(\d[\d,.]*)\s*repl`),
	MetricReposts:   regexp.MustCompile(`(?i)(\d[\d,.]*)\s*(?:repost|retweet)`),
	MetricLikes:     regexp.MustCompile(`(?i)(\d[\d,.]*)\s*like`),
	MetricBookmarks: regexp.MustCompile(`(?i)(\d[\d,.]*)\s*bookmark`),
	MetricViews:     regexp.MustCompile(`(?i)(\d[\d,.]*)\s*view`),
}

var (
	dotGrouped   = regexp.MustCompile(`^\d{1,3}(\.\d{3})+$`)
	commaGrouped = regexp.MustCompile(`^\d{1,3}(,\d{3})+$`)
)

// ParseMetricsLabel reads all five counters out of one aggregate accessible
// label such as "3 replies, 10 reposts, 55 likes, 2 bookmarks, 900 views".
// Metrics that are missing or unparsable are 0.
func ParseMetricsLabel(label string) Metrics {
	var m Metrics
	for metric, re := range labelPatterns {
		match := re.FindStringSubmatch(label)
		if match == nil {
			continue
		}
		m.set(metric, parseCount(match[1]))
	}
	return m
}

// ParseMetricFragments reads each counter from its own display text, e.g.
// "1.2K" or "423". Metrics absent from fragments are 0.
func ParseMetricFragments(fragments map[Metric]string) Metrics {
	var m Metrics
	for metric, text := range fragments {
		m.set(metric, parseMetric(text))
	}
	return m
}

// parseCount converts a locale-formatted integer. Commas always group;
// dots group when every group after the first has exactly three digits
// ("1.234.567"), otherwise a dot is a decimal point and the value is truncated.
func parseCount(s string) int {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, ".,")
	s = strings.ReplaceAll(s, ",", "")
	if dotGrouped.MatchString(s) {
		s = strings.ReplaceAll(s, ".", "")
	}
	value, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return 0
	}
	return int(value)
}

// parseMetric converts abbreviated metric strings like "1.2K", "5.7M", or "423" to integers
func parseMetric(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	// Handle abbreviated formats (K for thousands, M for millions, B for billions)
	multiplier := 1.0
	switch strings.ToUpper(s[len(s)-1:]) {
	case "K":
		multiplier = 1e3
		s = s[:len(s)-1]
	case "M":
		multiplier = 1e6
		s = s[:len(s)-1]
	case "B":
		multiplier = 1e9
		s = s[:len(s)-1]
	}

	if multiplier == 1 {
		return parseCount(s)
	}

	value, err := strconv.ParseFloat(compactNumber(s), 64)
	if err != nil || math.IsNaN(value) || value < 0 {
		return 0
	}
	return int(math.Round(value * multiplier))
}

// compactNumber normalizes the number before a K/M/B suffix. A comma is a
// grouping separator only before exact 3-digit groups ("1,234K"); otherwise
// it is a decimal comma ("1,5K").
func compactNumber(s string) string {
	s = strings.TrimSpace(s)
	if commaGrouped.MatchString(s) {
		return strings.ReplaceAll(s, ",", "")
	}
	return strings.Replace(s, ",", ".", 1)
}
