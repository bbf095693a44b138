package scraper

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Document is a CSS-selector page adapter over one DOM snapshot.
type Document struct {
	doc     *goquery.Document
	baseURL string
}

// NewDocument parses an HTML snapshot of the feed.
func NewDocument(html, baseURL string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return &Document{doc: doc, baseURL: baseURL}, nil
}

// ListItems returns every rendered feed item in document order.
func (d *Document) ListItems(ctx context.Context) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var items []Item
	d.doc.Find(FeedItem).Each(func(_ int, s *goquery.Selection) {
		items = append(items, &selectionItem{sel: s, baseURL: d.baseURL})
	})
	return items, nil
}

type selectionItem struct {
	sel     *goquery.Selection
	baseURL string
}

func (it *selectionItem) Lookup(field Field) (string, error) {
	switch field {
	case FieldPermalink:
		href, ok := it.sel.Find(Permalink).First().Attr("href")
		if !ok || href == "" {
			return "", ErrNotFound
		}
		return absoluteURL(it.baseURL, href), nil
	case FieldAuthor:
		return it.text(AuthorName)
	case FieldBody:
		return it.text(BodyText)
	case FieldAvatar:
		if src, err := it.attr(Avatar, "src"); err == nil {
			return src, nil
		}
		return it.attr(AnyImage, "src")
	case FieldRepostContext:
		return it.text(SocialContext)
	case FieldMetricsLabel:
		return it.attr(MetricsGroup, "aria-label")
	case FieldReplies:
		return it.text(ReplyCount)
	case FieldReposts:
		return it.text(RetweetCount)
	case FieldLikes:
		return it.text(LikeCount)
	case FieldBookmarks:
		return it.text(BookmarkCount)
	case FieldViews:
		return it.text(ViewCount)
	}
	return "", fmt.Errorf("unsupported field %s", field)
}

func (it *selectionItem) text(selector string) (string, error) {
	s := it.sel.Find(selector).First()
	if s.Length() == 0 {
		return "", ErrNotFound
	}
	return strings.TrimSpace(s.Text()), nil
}

func (it *selectionItem) attr(selector, name string) (string, error) {
	v, ok := it.sel.Find(selector).First().Attr(name)
	if !ok || v == "" {
		return "", ErrNotFound
	}
	return v, nil
}
