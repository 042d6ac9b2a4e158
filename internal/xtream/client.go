// Package xtream talks to Xtream-style catalog APIs: account
// authentication, the live/VOD/series listings, and lazy per-series
// episode enumeration.
package xtream

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

	"go.uber.org/ratelimit"
)

// ErrAuth marks authentication and account-state failures, as opposed to
// pure connectivity failures. Specific reasons wrap it.
var ErrAuth = errors.New("xtream authentication failed")

// ErrNoContent is returned when an authenticated account yields zero
// items across all three content families.
var ErrNoContent = errors.New("no active subscriptions: the account returned no content")

// ProgressFunc receives status milestones while a fetch is in flight.
// count is -1 when a phase starts and the item count once it completes.
type ProgressFunc func(stage string, count int)

// Client is an authenticated handle on one Xtream server. API calls are
// paced by a shared rate limiter so large catalogs do not hammer the
// provider.
type Client struct {
	BaseURL  string
	Username string
	Password string

	http    *http.Client
	limiter ratelimit.Limiter
}

// requestsPerSecond paces catalog API calls.
const requestsPerSecond = 10

// NewClient builds a client for the given server base URL and
// credentials.
func NewClient(baseURL, username, password string, timeout time.Duration) *Client {
	return &Client{
		BaseURL:  strings.TrimSuffix(baseURL, "/"),
		Username: username,
		Password: password,
		http:     &http.Client{Timeout: timeout},
		limiter:  ratelimit.New(requestsPerSecond),
	}
}

// apiURL builds a player_api.php URL. An empty action yields the
// authentication query.
func (c *Client) apiURL(action string, extra url.Values) string {
	v := url.Values{}
	v.Set("username", c.Username)
	v.Set("password", c.Password)
	if action != "" {
		v.Set("action", action)
	}
	for k, vals := range extra {
		for _, val := range vals {
			v.Add(k, val)
		}
	}
	return c.BaseURL + "/player_api.php?" + v.Encode()
}

// streamURL synthesizes the deterministic upstream URL for a stream:
// server base + family path segment + credentials + stream id + ext.
func (c *Client) streamURL(family string, id, ext string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s.%s", c.BaseURL, family, c.Username, c.Password, id, ext)
}

// getJSON performs one rate-limited API call and decodes the JSON
// response into T.
func getJSON[T any](ctx context.Context, c *Client, u string) (T, error) {
	var out T

	c.limiter.Take()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return out, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return out, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return out, fmt.Errorf("catalog returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return out, fmt.Errorf("read catalog response: %w", err)
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("parse catalog response: %w", err)
	}
	return out, nil
}

// FlexInt decodes JSON numbers that providers serialize inconsistently
// as numbers or quoted strings. Unparseable values decode to zero.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(bytes.TrimSpace(b), `"`)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(string(b))
	if err != nil {
		*f = 0
		return nil
	}
	*f = FlexInt(n)
	return nil
}

// FlexString decodes JSON values that may arrive as strings or bare
// numbers.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		*f = ""
		return nil
	}
	if len(b) >= 2 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	*f = FlexString(b)
	return nil
}

// AccountInfo summarizes the account block of a successful
// authentication response.
type AccountInfo struct {
	Status            string
	ActiveConnections int
	MaxConnections    int
	ExpDate           string
}

// authResponse is the no-action player_api.php response. Providers also
// surface failures through top-level error/message fields.
type authResponse struct {
	UserInfo struct {
		Auth           FlexInt    `json:"auth"`
		Status         string     `json:"status"`
		ActiveCons     FlexString `json:"active_cons"`
		MaxConnections FlexString `json:"max_connections"`
		ExpDate        FlexString `json:"exp_date"`
		Message        string     `json:"message"`
	} `json:"user_info"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Authenticate performs the no-action catalog query and validates the
// account state. All failure reasons wrap ErrAuth so callers can
// distinguish them from connectivity problems.
func (c *Client) Authenticate(ctx context.Context) (*AccountInfo, error) {
	resp, err := getJSON[authResponse](ctx, c, c.apiURL("", nil))
	if err != nil {
		return nil, err
	}

	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrAuth, resp.Error)
	}
	if resp.Message != "" {
		return nil, fmt.Errorf("%w: %s", ErrAuth, resp.Message)
	}
	if resp.UserInfo.Message != "" {
		return nil, fmt.Errorf("%w: %s", ErrAuth, resp.UserInfo.Message)
	}
	if resp.UserInfo.Auth == 0 {
		return nil, fmt.Errorf("%w: invalid username or password", ErrAuth)
	}

	switch resp.UserInfo.Status {
	case "Expired", "Banned", "Disabled":
		return nil, fmt.Errorf("%w: account is %s", ErrAuth, strings.ToLower(resp.UserInfo.Status))
	}

	active, _ := strconv.Atoi(string(resp.UserInfo.ActiveCons))
	max, _ := strconv.Atoi(string(resp.UserInfo.MaxConnections))
	if max > 0 && active >= max {
		return nil, fmt.Errorf("%w: maximum connections reached (%d of %d in use)", ErrAuth, active, max)
	}

	return &AccountInfo{
		Status:            resp.UserInfo.Status,
		ActiveConnections: active,
		MaxConnections:    max,
		ExpDate:           string(resp.UserInfo.ExpDate),
	}, nil
}

// WrapProxyURL routes an upstream URL through the fetch-through proxy.
// An empty proxyBase leaves the URL untouched.
func WrapProxyURL(proxyBase, upstream string) string {
	if proxyBase == "" || upstream == "" {
		return upstream
	}
	return strings.TrimSuffix(proxyBase, "/") + "/proxy/stream?url=" + url.QueryEscape(upstream)
}
