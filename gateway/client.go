// Package gateway implements catalog.Gateway over the catalog REST API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/GoCodeAlone/metacat/catalog"
)

const mergePatchContentType = "application/merge-patch+json"

// APIError is a non-2xx answer from the catalog API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Is makes a 404 match catalog.ErrNotFound.
func (e *APIError) Is(target error) bool {
	return target == catalog.ErrNotFound && e.Status == http.StatusNotFound
}

// ServerMessage returns the message the server attached to err, if any.
func ServerMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

// Client holds HTTP client state for catalog API calls.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// New returns a Client for the API rooted at baseURL.
func New(baseURL, token string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: timeout},
		Logger:     logger,
	}
}

var _ catalog.Gateway = (*Client)(nil)

// do performs a request and decodes a JSON response into v (may be nil).
// A nil v with a non-empty response body is fine; a non-nil v with an
// empty or null body yields catalog.ErrUnexpectedResponse.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, v any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	c.Logger.Debug("catalog api",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{Status: resp.StatusCode, Message: errorMessage(b)}
	}
	if v == nil {
		return nil
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return catalog.ErrUnexpectedResponse
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage extracts the "message" (or "error") field of an error body,
// falling back to the raw text.
func errorMessage(b []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(b, &body) == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return strings.TrimSpace(string(b))
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	return c.do(ctx, http.MethodGet, path, nil, "", v)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return c.do(ctx, method, path, bytes.NewReader(b), "application/json", out)
}

func (c *Client) patch(ctx context.Context, path string, patch []byte, out any) error {
	return c.do(ctx, http.MethodPatch, path, bytes.NewReader(patch), mergePatchContentType, out)
}

// --- users ---

// UserByName fetches a user and expands the named fields.
func (c *Client) UserByName(ctx context.Context, name string, fields []string) (*catalog.User, error) {
	path := "/api/v1/users/name/" + url.PathEscape(name)
	if len(fields) > 0 {
		path += "?fields=" + url.QueryEscape(strings.Join(fields, ","))
	}
	var u catalog.User
	if err := c.get(ctx, path, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// LoggedInUser returns the user the client token belongs to.
func (c *Client) LoggedInUser(ctx context.Context) (*catalog.User, error) {
	var u catalog.User
	if err := c.get(ctx, "/api/v1/users/loggedInUser", &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// PatchUser applies a merge patch to a user.
func (c *Client) PatchUser(ctx context.Context, id string, patch []byte) (*catalog.User, error) {
	var u catalog.User
	if err := c.patch(ctx, "/api/v1/users/"+url.PathEscape(id), patch, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// --- feed ---

// Feed returns one page of a user's activity feed.
func (c *Client) Feed(ctx context.Context, q catalog.FeedQuery) (*catalog.FeedPage, error) {
	v := url.Values{}
	if q.UserID != "" {
		v.Set("userId", q.UserID)
	}
	if q.Filter != "" {
		v.Set("filterType", string(q.Filter))
	}
	if q.After != "" {
		v.Set("after", q.After)
	}
	if q.Type != "" {
		v.Set("type", string(q.Type))
	}
	if q.TaskStatus != "" {
		v.Set("taskStatus", string(q.TaskStatus))
	}
	var page catalog.FeedPage
	if err := c.get(ctx, "/api/v1/feed?"+v.Encode(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Thread fetches a single thread.
func (c *Client) Thread(ctx context.Context, id string) (*catalog.Thread, error) {
	var t catalog.Thread
	if err := c.get(ctx, "/api/v1/feed/"+url.PathEscape(id), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// PostToThread appends a post to a thread.
func (c *Client) PostToThread(ctx context.Context, threadID string, post catalog.Post) (*catalog.Thread, error) {
	var t catalog.Thread
	if err := c.sendJSON(ctx, http.MethodPost, "/api/v1/feed/"+url.PathEscape(threadID)+"/posts", post, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// PatchThread applies a merge patch to a thread.
func (c *Client) PatchThread(ctx context.Context, threadID string, patch []byte) (*catalog.Thread, error) {
	var t catalog.Thread
	if err := c.patch(ctx, "/api/v1/feed/"+url.PathEscape(threadID), patch, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// PatchPost applies a merge patch to a post.
func (c *Client) PatchPost(ctx context.Context, threadID, postID string, patch []byte) (*catalog.Post, error) {
	var p catalog.Post
	path := "/api/v1/feed/" + url.PathEscape(threadID) + "/posts/" + url.PathEscape(postID)
	if err := c.patch(ctx, path, patch, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteThread removes a thread.
func (c *Client) DeleteThread(ctx context.Context, threadID string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/feed/"+url.PathEscape(threadID), nil, "", nil)
}

// DeletePost removes a post from a thread.
func (c *Client) DeletePost(ctx context.Context, threadID, postID string) error {
	path := "/api/v1/feed/" + url.PathEscape(threadID) + "/posts/" + url.PathEscape(postID)
	return c.do(ctx, http.MethodDelete, path, nil, "", nil)
}

// --- search ---

// Search runs an entity search.
func (c *Client) Search(ctx context.Context, q catalog.SearchQuery) (*catalog.SearchResponse, error) {
	v := url.Values{}
	v.Set("q", q.Query)
	v.Set("from", strconv.Itoa(q.From()))
	v.Set("size", strconv.Itoa(q.Size))
	if q.Index != "" {
		v.Set("index", q.Index)
	}
	var res catalog.SearchResponse
	if err := c.get(ctx, "/api/v1/search/query?"+v.Encode(), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// --- services ---

// ServiceByFQN fetches a service of the given category.
func (c *Client) ServiceByFQN(ctx context.Context, category, fqn string, fields []string) (*catalog.Service, error) {
	path := "/api/v1/services/" + url.PathEscape(category) + "/name/" + url.PathEscape(fqn)
	if len(fields) > 0 {
		path += "?fields=" + url.QueryEscape(strings.Join(fields, ","))
	}
	var s catalog.Service
	if err := c.get(ctx, path, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateService creates or replaces a service.
func (c *Client) UpdateService(ctx context.Context, category string, svc *catalog.Service) (*catalog.Service, error) {
	var s catalog.Service
	if err := c.sendJSON(ctx, http.MethodPut, "/api/v1/services/"+url.PathEscape(category), svc, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
