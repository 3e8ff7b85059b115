package userpage

import (
	"fmt"

	"github.com/GoCodeAlone/metacat/assets"
	"github.com/GoCodeAlone/metacat/catalog"
)

// View is everything the user page renders.
type View struct {
	Username string `json:"username"`
	Tab      string `json:"tab,omitempty"`

	Loading      bool   `json:"loading"`
	Error        bool   `json:"error"`
	ErrorMessage string `json:"errorMessage,omitempty"`

	User       *catalog.User        `json:"user,omitempty"`
	Breadcrumb []catalog.Breadcrumb `json:"breadcrumb,omitempty"`

	ThreadType  catalog.ThreadType `json:"threadType,omitempty"`
	FeedFilter  catalog.FeedFilter `json:"feedFilter,omitempty"`
	TaskStatus  catalog.TaskStatus `json:"taskStatus,omitempty"`
	Threads     []catalog.Thread   `json:"feed"`
	Paging      catalog.Paging     `json:"paging"`
	FeedLoading bool               `json:"feedLoading"`

	Owned    catalog.AssetsData `json:"ownedEntities"`
	Followed catalog.AssetsData `json:"followingEntities"`

	IsAdminUser    bool `json:"isAdminUser"`
	IsAuthDisabled bool `json:"isAuthDisabled"`
	IsLoggedInUser bool `json:"isLoggedInUser"`
}

// ShowData reports whether the data view (rather than the loader or the
// error placeholder) is rendered.
func (v View) ShowData() bool {
	return !v.Loading && !v.Error && v.User != nil
}

// NotFoundMessage is the placeholder text for a user that could not be
// loaded.
func NotFoundMessage(username string) string {
	return fmt.Sprintf("No user available with name %s", username)
}

// UsersPath is the breadcrumb target of the user list.
const UsersPath = "/users"

// Breadcrumb returns the title trail of a user page.
func Breadcrumb(u *catalog.User) []catalog.Breadcrumb {
	return []catalog.Breadcrumb{
		{Name: "Users", URL: UsersPath},
		{Name: u.Title(), URL: UsersPath + "/" + u.Name, Active: true},
	}
}

// View returns the current page state.
func (p *Page) View() View {
	p.mu.RLock()
	v := View{
		Username:       p.username,
		Tab:            p.tab,
		Loading:        p.loading,
		Error:          p.failed,
		TaskStatus:     p.taskStatus,
		IsLoggedInUser: p.loggedIn,
	}
	var user *catalog.User
	if p.user != nil {
		cp := *p.user
		user = &cp
	}
	p.mu.RUnlock()

	v.IsAdminUser = p.session.IsAdmin()
	v.IsAuthDisabled = p.session.AuthDisabled()
	v.Threads = []catalog.Thread{}

	if v.Error {
		v.ErrorMessage = NotFoundMessage(v.Username)
		return v
	}
	if user == nil {
		return v
	}
	v.User = user
	v.Breadcrumb = Breadcrumb(user)

	fs := p.feed.Snapshot()
	v.ThreadType = fs.ThreadType
	v.FeedFilter = fs.Filter
	if fs.Threads != nil {
		v.Threads = fs.Threads
	}
	v.Paging = fs.Paging
	v.FeedLoading = fs.Loading

	v.Owned = p.assets.Snapshot(assets.Owned)
	v.Followed = p.assets.Snapshot(assets.Followed)
	return v
}
