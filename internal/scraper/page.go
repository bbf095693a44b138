package scraper

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound reports that an item has no node for the requested field.
var ErrNotFound = errors.New("field not found")

// Field names one value a feed item can be asked for.
type Field int

const (
	FieldPermalink     Field = iota // href of the status anchor
	FieldAuthor                     // author display name
	FieldBody                       // post text
	FieldAvatar                     // avatar image src
	FieldRepostContext              // repost marker text, e.g. "Alice reposted"
	FieldMetricsLabel               // aggregate aria-label with all counts
	FieldReplies                    // per-metric display text
	FieldReposts
	FieldLikes
	FieldBookmarks
	FieldViews
)

var fieldNames = map[Field]string{
	FieldPermalink:     "permalink",
	FieldAuthor:        "author",
	FieldBody:          "body",
	FieldAvatar:        "avatar",
	FieldRepostContext: "repost_context",
	FieldMetricsLabel:  "metrics_label",
	FieldReplies:       "replies",
	FieldReposts:       "reposts",
	FieldLikes:         "likes",
	FieldBookmarks:     "bookmarks",
	FieldViews:         "views",
}

func (f Field) String() string {
	if name, ok := fieldNames[f]; ok {
		return name
	}
	return "unknown"
}

// Page lists the feed items currently rendered.
type Page interface {
	ListItems(ctx context.Context) ([]Item, error)
}

// Item is one rendered feed item.
// Lookup returns ErrNotFound when the field's node is absent; any other
// error means the lookup itself failed.
type Item interface {
	Lookup(field Field) (string, error)
}

// ParseDocument parses an HTML snapshot with the named adapter ("css" or "xpath").
func ParseDocument(adapter, html, baseURL string) (Page, error) {
	if adapter == "xpath" {
		return NewXPathDocument(html, baseURL)
	}
	return NewDocument(html, baseURL)
}

// absoluteURL joins a root-relative href onto base.
func absoluteURL(base, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if base == "" {
		base = DefaultBaseURL
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(href, "/")
}
