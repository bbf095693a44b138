package types

import "time"

// Sentinel values substituted when a field cannot be extracted from the DOM.
// They are valid terminal values, not errors.
const (
	UnknownAuthor = "Unknown"
	NoText        = "No text"
	NoLink        = "No link"
	NoImage       = "No image"
)

// DefaultOrigin tags records produced by this client.
const DefaultOrigin = "my_extension"

// User is the author block of a relayed record.
type User struct {
	Username  string `json:"username" binding:"required"`
	Followers int    `json:"followers"`
}

// Record is one post extracted from the rendered feed.
// The JSON shape is the wire format accepted by the receiver endpoint.
type Record struct {
	ID           string    `json:"tweet_id" binding:"required"`
	User         User      `json:"user"`
	Text         string    `json:"text" binding:"required"`
	Likes        int       `json:"likes"`
	Retweets     int       `json:"retweets"`
	Views        int       `json:"views"`
	Replies      int       `json:"replies"`
	Bookmarks    int       `json:"bookmarks"`
	Link         string    `json:"link" binding:"required"`
	ProfileImage string    `json:"profile_image"`
	IsRepost     bool      `json:"is_repost"`
	RepostedBy   string    `json:"reposted_by,omitempty"`
	CreatedAt    time.Time `json:"created_at" binding:"required"`
	SentByUser   string    `json:"sent_by_user" binding:"required"`
}

// IDs returns the ids of records in order.
func IDs(records []Record) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return ids
}
