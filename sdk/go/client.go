package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"drinktab/core"
)

// Option configures the Client.
type Option func(*Client)

// Client provides typed access to the drink tab HTTP + WebSocket API.
type Client struct {
	baseURL    string
	wsURL      string
	httpClient *http.Client
	headers    http.Header
}

// NewClient constructs a new SDK client targeting the given baseURL (e.g., http://localhost:8080/api).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("baseURL is required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	c := &Client{
		baseURL:    baseURL,
		wsURL:      deriveWSURL(baseURL),
		httpClient: http.DefaultClient,
		headers:    make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithAuthToken adds an Authorization: Bearer token header to all requests (HTTP + WS).
func WithAuthToken(token string) Option {
	return func(c *Client) {
		if strings.TrimSpace(token) != "" {
			c.headers.Set("Authorization", "Bearer "+token)
		}
	}
}

// WithAPIKey adds an X-API-Key header.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		if strings.TrimSpace(key) != "" {
			c.headers.Set("X-API-Key", key)
		}
	}
}

// WithHeader sets an arbitrary header applied to HTTP and WS calls.
func WithHeader(k, v string) Option {
	return func(c *Client) {
		if k != "" {
			c.headers.Set(k, v)
		}
	}
}

// CreateUser registers a user; name defaults to the id on the server.
func (c *Client) CreateUser(ctx context.Context, userID, name string) (core.User, error) {
	if strings.TrimSpace(userID) == "" {
		return core.User{}, ErrEmptyUserID
	}
	var u core.User
	err := c.do(ctx, http.MethodPost, "/users", map[string]string{"id": userID, "name": name}, &u)
	return u, err
}

// GetUser fetches balance and unlocked badges.
func (c *Client) GetUser(ctx context.Context, userID string) (core.User, error) {
	if strings.TrimSpace(userID) == "" {
		return core.User{}, ErrEmptyUserID
	}
	var u core.User
	err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(userID), nil, &u)
	return u, err
}

// Purchase books one unit of item on the user's tab.
func (c *Client) Purchase(ctx context.Context, userID, item string) (Receipt, error) {
	if strings.TrimSpace(userID) == "" {
		return Receipt{}, ErrEmptyUserID
	}
	var r Receipt
	err := c.do(ctx, http.MethodPost, "/users/"+url.PathEscape(userID)+"/purchases", map[string]string{"item": item}, &r)
	return r, err
}

// Deposit credits amount cents to the user's tab.
func (c *Client) Deposit(ctx context.Context, userID string, amount core.Money) (Receipt, error) {
	if strings.TrimSpace(userID) == "" {
		return Receipt{}, ErrEmptyUserID
	}
	var r Receipt
	err := c.do(ctx, http.MethodPost, "/users/"+url.PathEscape(userID)+"/deposits", map[string]int64{"amount": int64(amount)}, &r)
	return r, err
}

// Evaluate re-runs the achievement rules and returns newly unlocked badges.
func (c *Client) Evaluate(ctx context.Context, userID string) ([]core.Badge, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrEmptyUserID
	}
	var body struct {
		Unlocked []core.Badge `json:"unlocked"`
	}
	err := c.do(ctx, http.MethodPost, "/users/"+url.PathEscape(userID)+"/evaluate", nil, &body)
	return body.Unlocked, err
}

// ListItems returns the inventory.
func (c *Client) ListItems(ctx context.Context) ([]core.Item, error) {
	var body struct {
		Items []core.Item `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "/items", nil, &body)
	return body.Items, err
}

// PutItem creates or replaces an item.
func (c *Client) PutItem(ctx context.Context, item core.Item) (core.Item, error) {
	req := map[string]any{
		"name":     item.Name,
		"price":    int64(item.Price),
		"stock":    item.Stock,
		"category": item.Category,
	}
	var out core.Item
	err := c.do(ctx, http.MethodPut, "/items/"+url.PathEscape(string(item.ID)), req, &out)
	return out, err
}

// Leaderboard returns up to n users ranked by purchases.
func (c *Client) Leaderboard(ctx context.Context, n int) ([]LeaderboardEntry, error) {
	var body struct {
		Entries []LeaderboardEntry `json:"entries"`
	}
	err := c.do(ctx, http.MethodGet, "/leaderboard?n="+strconv.Itoa(n), nil, &body)
	return body.Entries, err
}

// Health probes /healthz and returns status + storage check.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var hs HealthStatus
	err := c.do(ctx, http.MethodGet, "/healthz", nil, &hs)
	return hs, err
}

// SubscribeEvents connects to the WebSocket stream and emits core.Event values,
// restricted to userID when it is non-empty.
// The returned channel closes when ctx is done or the connection drops.
func (c *Client) SubscribeEvents(ctx context.Context, userID string) (<-chan core.Event, error) {
	if c.wsURL == "" {
		return nil, errors.New("wsURL is not set; ensure baseURL is http/https")
	}
	target := c.wsURL
	if userID != "" {
		target += "?user=" + url.QueryEscape(userID)
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, target, c.headers)
	if err != nil {
		return nil, err
	}

	out := make(chan core.Event, 32)
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			var evt core.Event
			if err := conn.ReadJSON(&evt); err != nil {
				return
			}
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			default:
				// drop if consumer is slow
			}
		}
	}()
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, out)
}

func (c *Client) applyHeaders(r *http.Request) {
	for k, vals := range c.headers {
		for _, v := range vals {
			r.Header.Add(k, v)
		}
	}
}

func deriveWSURL(httpBase string) string {
	u, err := url.Parse(httpBase)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		// leave as-is for custom schemes
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}
