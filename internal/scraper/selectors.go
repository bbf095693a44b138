package scraper

// X.com DOM selectors
// These are isolated here because X changes their DOM frequently
// Update these when scraping breaks

const (
	// Feed selectors
	FeedContainer = `[data-testid="primaryColumn"]`
	FeedItem      = `article`

	// Post content selectors, scoped to one item
	Permalink     = `a[href*="/status/"]`
	AuthorName    = `[data-testid="User-Name"] span`
	BodyText      = `[data-testid="tweetText"]`
	Avatar        = `[data-testid="Tweet-User-Avatar"] img`
	AnyImage      = `img`
	SocialContext = `[data-testid="socialContext"]`

	// Engagement selectors
	MetricsGroup  = `[aria-label*="views"]`
	ReplyCount    = `[data-testid="reply"]`
	RetweetCount  = `[data-testid="retweet"]`
	LikeCount     = `[data-testid="like"]`
	BookmarkCount = `[data-testid="bookmark"]`
	ViewCount     = `a[href*="/analytics"]`
)

// XPath equivalents of the selectors above, relative to an item node.
const (
	xFeedItem      = `//article`
	xPermalink     = `.//a[contains(@href, "/status/")]`
	xAuthorName    = `.//*[@data-testid="User-Name"]//span`
	xBodyText      = `.//*[@data-testid="tweetText"]`
	xAvatar        = `.//*[@data-testid="Tweet-User-Avatar"]//img`
	xAnyImage      = `.//img`
	xSocialContext = `.//*[@data-testid="socialContext"]`
	xMetricsGroup  = `.//*[contains(@aria-label, "views")]`
	xReplyCount    = `.//*[@data-testid="reply"]`
	xRetweetCount  = `.//*[@data-testid="retweet"]`
	xLikeCount     = `.//*[@data-testid="like"]`
	xBookmarkCount = `.//*[@data-testid="bookmark"]`
	xViewCount     = `.//a[contains(@href, "/analytics")]`
)

// DefaultBaseURL resolves relative permalinks.
const DefaultBaseURL = "https://x.com"
