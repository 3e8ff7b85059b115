package userpage

import (
	"github.com/GoCodeAlone/metacat/assets"
	"github.com/GoCodeAlone/metacat/catalog"
)

// Event is a navigation or UI action handled by Page.Dispatch.
type Event interface{ pageEvent() }

// Navigate opens the page of Username on Tab. Query is the raw navigation
// query string, e.g. "feedFilter=MENTIONS".
type Navigate struct {
	Username string
	Tab      string
	Query    string
}

// ToggleTaskStatus switches the task list between open and closed tasks.
type ToggleTaskStatus struct {
	Closed bool
}

// SetFeedFilter changes the activity feed filter.
type SetFeedFilter struct {
	Filter catalog.FeedFilter
}

// LoadMore fetches the next feed page.
type LoadMore struct{}

// Paginate moves the owned or followed list to Page.
type Paginate struct {
	Kind assets.Kind
	Page int
}

// PostReply adds a reply to a thread as the session user.
type PostReply struct {
	ThreadID string
	Message  string
}

// UpdatePost edits a thread (IsThread) or one of its posts.
type UpdatePost struct {
	ThreadID string
	PostID   string
	IsThread bool
	Message  string
}

// DeletePost removes a thread (IsThread) or one of its posts.
type DeletePost struct {
	ThreadID string
	PostID   string
	IsThread bool
}

// UpdateUserDetails changes profile fields of the displayed user. Nil
// fields are left alone.
type UpdateUserDetails struct {
	DisplayName *string
	Description *string
}

func (Navigate) pageEvent()          {}
func (ToggleTaskStatus) pageEvent()  {}
func (SetFeedFilter) pageEvent()     {}
func (LoadMore) pageEvent()          {}
func (Paginate) pageEvent()          {}
func (PostReply) pageEvent()         {}
func (UpdatePost) pageEvent()        {}
func (DeletePost) pageEvent()        {}
func (UpdateUserDetails) pageEvent() {}
