package scraper

import (
	"context"
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// XPathDocument is an XPath page adapter over one DOM snapshot.
type XPathDocument struct {
	root    *html.Node
	baseURL string
}

// NewXPathDocument parses an HTML snapshot of the feed.
func NewXPathDocument(src, baseURL string) (*XPathDocument, error) {
	root, err := htmlquery.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return &XPathDocument{root: root, baseURL: baseURL}, nil
}

// ListItems returns every rendered feed item in document order.
func (d *XPathDocument) ListItems(ctx context.Context) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	nodes, err := htmlquery.QueryAll(d.root, xFeedItem)
	if err != nil {
		return nil, fmt.Errorf("xpath query failed: %w", err)
	}
	items := make([]Item, 0, len(nodes))
	for _, n := range nodes {
		items = append(items, &nodeItem{node: n, baseURL: d.baseURL})
	}
	return items, nil
}

type nodeItem struct {
	node    *html.Node
	baseURL string
}

func (it *nodeItem) Lookup(field Field) (string, error) {
	switch field {
	case FieldPermalink:
		href, err := it.attr(xPermalink, "href")
		if err != nil {
			return "", err
		}
		return absoluteURL(it.baseURL, href), nil
	case FieldAuthor:
		return it.text(xAuthorName)
	case FieldBody:
		return it.text(xBodyText)
	case FieldAvatar:
		if src, err := it.attr(xAvatar, "src"); err == nil {
			return src, nil
		}
		return it.attr(xAnyImage, "src")
	case FieldRepostContext:
		return it.text(xSocialContext)
	case FieldMetricsLabel:
		return it.attr(xMetricsGroup, "aria-label")
	case FieldReplies:
		return it.text(xReplyCount)
	case FieldReposts:
		return it.text(xRetweetCount)
	case FieldLikes:
		return it.text(xLikeCount)
	case FieldBookmarks:
		return it.text(xBookmarkCount)
	case FieldViews:
		return it.text(xViewCount)
	}
	return "", fmt.Errorf("unsupported field %s", field)
}

func (it *nodeItem) find(expr string) (*html.Node, error) {
	n, err := htmlquery.Query(it.node, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath %q: %w", expr, err)
	}
	if n == nil {
		return nil, ErrNotFound
	}
	return n, nil
}

func (it *nodeItem) text(expr string) (string, error) {
	n, err := it.find(expr)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(htmlquery.InnerText(n)), nil
}

func (it *nodeItem) attr(expr, name string) (string, error) {
	n, err := it.find(expr)
	if err != nil {
		return "", err
	}
	v := htmlquery.SelectAttr(n, name)
	if v == "" {
		return "", ErrNotFound
	}
	return v, nil
}
