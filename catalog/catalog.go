// Package catalog defines the metadata-catalog model and the gateway the
// page controllers read it through.
package catalog

import "time"

// ThreadType identifies what kind of discussion a thread is.
type ThreadType string

const (
	ThreadConversation ThreadType = "Conversation"
	ThreadTask         ThreadType = "Task"
	ThreadAnnouncement ThreadType = "Announcement"
)

// TaskStatus is the open/closed state of a Task thread.
type TaskStatus string

const (
	TaskOpen   TaskStatus = "Open"
	TaskClosed TaskStatus = "Closed"
)

// FeedFilter narrows the activity feed of a user.
type FeedFilter string

const (
	FilterAll      FeedFilter = "ALL"
	FilterOwner    FeedFilter = "OWNER"
	FilterMentions FeedFilter = "MENTIONS"
	FilterFollows  FeedFilter = "FOLLOWS"
)

// ParseFeedFilter returns the filter named by s and whether it is known.
func ParseFeedFilter(s string) (FeedFilter, bool) {
	switch f := FeedFilter(s); f {
	case FilterAll, FilterOwner, FilterMentions, FilterFollows:
		return f, true
	}
	return "", false
}

// EntityReference points at another catalog entity.
type EntityReference struct {
	ID                 string `json:"id"`
	Type               string `json:"type"`
	Name               string `json:"name,omitempty"`
	FullyQualifiedName string `json:"fullyQualifiedName,omitempty"`
	DisplayName        string `json:"displayName,omitempty"`
	Description        string `json:"description,omitempty"`
}

// Profile holds optional user profile details.
type Profile struct {
	Images map[string]string `json:"images,omitempty"`
}

// User is a catalog user record.
type User struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	DisplayName string            `json:"displayName,omitempty"`
	Email       string            `json:"email,omitempty"`
	Description string            `json:"description,omitempty"`
	IsAdmin     bool              `json:"isAdmin,omitempty"`
	IsBot       bool              `json:"isBot,omitempty"`
	Profile     *Profile          `json:"profile,omitempty"`
	Roles       []EntityReference `json:"roles,omitempty"`
	Teams       []EntityReference `json:"teams,omitempty"`
	Follows     []EntityReference `json:"follows,omitempty"`
	Owns        []EntityReference `json:"owns,omitempty"`
}

// Title returns the display name of u, falling back to its login name.
func (u *User) Title() string {
	if u == nil {
		return ""
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Name
}

// Reaction is an emoji reaction on a post.
type Reaction struct {
	ReactionType string          `json:"reactionType"`
	User         EntityReference `json:"user"`
}

// Post is a single message within a thread.
type Post struct {
	ID        string     `json:"id,omitempty"`
	Message   string     `json:"message"`
	From      string     `json:"from"`
	PostTs    int64      `json:"postTs,omitempty"`
	Reactions []Reaction `json:"reactions,omitempty"`
}

// TaskDetails carries the task-specific part of a Task thread.
type TaskDetails struct {
	ID        int               `json:"id"`
	Type      string            `json:"type,omitempty"`
	Status    TaskStatus        `json:"status"`
	Assignees []EntityReference `json:"assignees,omitempty"`
}

// Thread is a discussion or task about a catalog entity.
type Thread struct {
	ID          string       `json:"id"`
	Type        ThreadType   `json:"type"`
	About       string       `json:"about,omitempty"`
	CreatedBy   string       `json:"createdBy,omitempty"`
	Message     string       `json:"message"`
	ThreadTs    int64        `json:"threadTs,omitempty"`
	Resolved    bool         `json:"resolved,omitempty"`
	PostsCount  int          `json:"postsCount,omitempty"`
	Posts       []Post       `json:"posts,omitempty"`
	Task        *TaskDetails `json:"task,omitempty"`
	Reactions   []Reaction   `json:"reactions,omitempty"`
	EntityOwner string       `json:"entityOwner,omitempty"`
}

// Paging is the continuation state of a feed listing.
type Paging struct {
	After  string `json:"after,omitempty"`
	Before string `json:"before,omitempty"`
	Total  int    `json:"total"`
}

// FeedQuery selects a page of a user's activity feed.
type FeedQuery struct {
	UserID     string
	Filter     FeedFilter
	After      string
	Type       ThreadType
	TaskStatus TaskStatus // only sent for Task threads
}

// FeedPage is one page of threads.
type FeedPage struct {
	Data   []Thread `json:"data"`
	Paging Paging   `json:"paging"`
}

// SearchQuery is an entity search request.
type SearchQuery struct {
	Query string
	Page  int // 1-based
	Size  int
	Index string
}

// From returns the zero-based offset of the first hit of the page.
func (q SearchQuery) From() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.Size
}

// SearchHit is a single search result.
type SearchHit struct {
	Index  string         `json:"_index"`
	ID     string         `json:"_id"`
	Score  float64        `json:"_score,omitempty"`
	Source map[string]any `json:"_source"`
}

// SearchTotal is the hit count of a search response.
type SearchTotal struct {
	Value    int    `json:"value"`
	Relation string `json:"relation,omitempty"`
}

// SearchHits groups the hits of a search response.
type SearchHits struct {
	Total SearchTotal `json:"total"`
	Hits  []SearchHit `json:"hits"`
}

// Bucket is a single aggregation bucket.
type Bucket struct {
	Key      string `json:"key"`
	DocCount int    `json:"doc_count"`
}

// Aggregation is a named terms aggregation.
type Aggregation struct {
	Buckets []Bucket `json:"buckets"`
}

// SearchResponse is the result of an entity search.
type SearchResponse struct {
	Hits         SearchHits             `json:"hits"`
	Aggregations map[string]Aggregation `json:"aggregations,omitempty"`
}

// EntitySummary is a search hit formatted for list display.
type EntitySummary struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	DisplayName        string   `json:"displayName,omitempty"`
	FullyQualifiedName string   `json:"fullyQualifiedName"`
	Description        string   `json:"description,omitempty"`
	EntityType         string   `json:"entityType,omitempty"`
	Service            string   `json:"service,omitempty"`
	Owner              string   `json:"owner,omitempty"`
	Tier               string   `json:"tier,omitempty"`
	Tags               []string `json:"tags,omitempty"`
	Index              string   `json:"index"`
}

// AssetsData is one paginated association list of a user.
type AssetsData struct {
	Data     []EntitySummary `json:"data"`
	Total    int             `json:"total"`
	CurrPage int             `json:"currPage"`
}

// Service is a data service with its connection configuration.
type Service struct {
	ID                 string           `json:"id"`
	Name               string           `json:"name"`
	DisplayName        string           `json:"displayName,omitempty"`
	FullyQualifiedName string           `json:"fullyQualifiedName,omitempty"`
	ServiceType        string           `json:"serviceType"`
	Description        string           `json:"description,omitempty"`
	Owner              *EntityReference `json:"owner,omitempty"`
	Connection         *Connection      `json:"connection,omitempty"`
	UpdatedAt          int64            `json:"updatedAt,omitempty"`
}

// Connection wraps a service's connection configuration.
type Connection struct {
	Config map[string]any `json:"config"`
}

// Breadcrumb is a single link in a page's title trail.
type Breadcrumb struct {
	Name     string `json:"name"`
	URL      string `json:"url,omitempty"`
	ImageSrc string `json:"imgSrc,omitempty"`
	Active   bool   `json:"activeTitle,omitempty"`
}

// Timestamp converts a millisecond epoch as used by the catalog API.
func Timestamp(ms int64) time.Time {
	return time.UnixMilli(ms)
}
