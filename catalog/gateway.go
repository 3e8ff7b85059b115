package catalog

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnexpectedResponse is returned when the server answers a request
	// that must produce a record with an empty body.
	ErrUnexpectedResponse = errors.New("unexpected response from server")
)

// UserFields is the field selection the user page requests.
var UserFields = []string{"profile", "roles", "teams", "follows", "owns"}

// Gateway is the remote catalog API consumed by the page controllers.
type Gateway interface {
	// UserByName fetches a user and expands the named fields.
	UserByName(ctx context.Context, name string, fields []string) (*User, error)

	// LoggedInUser returns the user the gateway credentials belong to.
	LoggedInUser(ctx context.Context) (*User, error)

	// PatchUser applies a JSON merge patch to the user with the given ID.
	PatchUser(ctx context.Context, id string, patch []byte) (*User, error)

	// Feed returns one page of a user's activity feed.
	Feed(ctx context.Context, q FeedQuery) (*FeedPage, error)

	// Thread fetches a single thread with all of its posts.
	Thread(ctx context.Context, id string) (*Thread, error)

	// PostToThread appends a post and returns the updated thread.
	PostToThread(ctx context.Context, threadID string, post Post) (*Thread, error)

	// PatchThread applies a JSON merge patch to a thread.
	PatchThread(ctx context.Context, threadID string, patch []byte) (*Thread, error)

	// PatchPost applies a JSON merge patch to a post of a thread.
	PatchPost(ctx context.Context, threadID, postID string, patch []byte) (*Post, error)

	// DeleteThread removes a thread.
	DeleteThread(ctx context.Context, threadID string) error

	// DeletePost removes a post from a thread.
	DeletePost(ctx context.Context, threadID, postID string) error

	// Search runs an entity search.
	Search(ctx context.Context, q SearchQuery) (*SearchResponse, error)

	// ServiceByFQN fetches a service of the given category.
	ServiceByFQN(ctx context.Context, category, fqn string, fields []string) (*Service, error)

	// UpdateService creates or replaces a service of the given category.
	UpdateService(ctx context.Context, category string, svc *Service) (*Service, error)
}
