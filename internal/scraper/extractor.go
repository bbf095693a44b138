package scraper

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/feedrelay/internal/types"
)

var statusID = regexp.MustCompile(`/status/(\d+)`)

var repostVerb = regexp.MustCompile(`(?i)\s+(reposted|retweeted)\s*$`)

// Extractor turns rendered feed items into records.
type Extractor struct {
	origin string
	now    func() time.Time
	log    *zap.Logger
}

// NewExtractor creates an extractor tagging records with origin.
func NewExtractor(origin string, log *zap.Logger) *Extractor {
	if origin == "" {
		origin = types.DefaultOrigin
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{origin: origin, now: time.Now, log: log}
}

// ParseStatusID returns the numeric status id in a permalink, or "".
func ParseStatusID(href string) string {
	m := statusID.FindStringSubmatch(href)
	if m == nil {
		return ""
	}
	return m[1]
}

// ExtractAll extracts every item of page. Items that fail are logged and
// skipped; one malformed item never stops the rest.
func (e *Extractor) ExtractAll(ctx context.Context, page Page) ([]types.Record, int, error) {
	items, err := page.ListItems(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list feed items: %w", err)
	}

	records := make([]types.Record, 0, len(items))
	skipped := 0
	for i, item := range items {
		rec, ok := e.Extract(item)
		if !ok {
			skipped++
			continue
		}
		e.log.Debug("extracted item", zap.Int("index", i), zap.String("id", rec.ID))
		records = append(records, rec)
	}
	return records, skipped, nil
}

// Extract builds a record from one item. It reports false when the item has
// no status id. Other fields that fail fall back to their defaults.
func (e *Extractor) Extract(item Item) (rec types.Record, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn("error capturing item", zap.Any("panic", r))
			rec, ok = types.Record{}, false
		}
	}()

	rec, err := e.extract(item)
	if err != nil {
		if !errors.Is(err, errNoID) {
			e.log.Warn("error capturing item", zap.Error(err))
		}
		return types.Record{}, false
	}
	return rec, true
}

var errNoID = errors.New("item has no status id")

func (e *Extractor) extract(item Item) (types.Record, error) {
	href, err := lookup(item, FieldPermalink)
	if err != nil {
		return types.Record{}, err
	}
	id := ParseStatusID(href)
	if id == "" {
		return types.Record{}, errNoID
	}

	rec := types.Record{
		ID:           id,
		User:         types.User{Username: types.UnknownAuthor},
		Text:         types.NoText,
		Link:         href,
		ProfileImage: types.NoImage,
		CreatedAt:    e.now().UTC(),
		SentByUser:   e.origin,
	}

	if v := e.field(item, FieldAuthor); v != "" {
		rec.User.Username = v
	}
	if v := e.field(item, FieldBody); v != "" {
		rec.Text = v
	}
	if v := e.field(item, FieldAvatar); v != "" {
		rec.ProfileImage = v
	}
	if actor, ok := repostActor(e.field(item, FieldRepostContext)); ok {
		rec.IsRepost = true
		rec.RepostedBy = actor
	}

	m := e.metrics(item)
	rec.Replies = m.Replies
	rec.Retweets = m.Reposts
	rec.Likes = m.Likes
	rec.Bookmarks = m.Bookmarks
	rec.Views = m.Views

	return rec, nil
}

// field looks up an optional field. A failed lookup is logged and reads as
// absent, so the record keeps its default for that field.
func (e *Extractor) field(item Item, field Field) string {
	v, err := lookup(item, field)
	if err != nil {
		e.log.Warn("error capturing field", zap.Stringer("field", field), zap.Error(err))
		return ""
	}
	return v
}

// metrics prefers the aggregate label and falls back to per-metric elements.
func (e *Extractor) metrics(item Item) Metrics {
	if label := e.field(item, FieldMetricsLabel); label != "" {
		return ParseMetricsLabel(label)
	}

	fragments := make(map[Metric]string, 5)
	for metric, field := range map[Metric]Field{
		MetricReplies:   FieldReplies,
		MetricReposts:   FieldReposts,
		MetricLikes:     FieldLikes,
		MetricBookmarks: FieldBookmarks,
		MetricViews:     FieldViews,
	} {
		if v := e.field(item, field); v != "" {
			fragments[metric] = v
		}
	}
	return ParseMetricFragments(fragments)
}

// lookup maps ErrNotFound to "", leaving real failures as errors.
func lookup(item Item, field Field) (string, error) {
	v, err := item.Lookup(field)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup %s: %w", field, err)
	}
	return v, nil
}

// repostActor extracts the boosting actor from a marker like "Alice reposted".
func repostActor(marker string) (string, bool) {
	marker = strings.TrimSpace(marker)
	if marker == "" || !repostVerb.MatchString(marker) {
		return "", false
	}
	return strings.TrimSpace(repostVerb.ReplaceAllString(marker, "")), true
}
