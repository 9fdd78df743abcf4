package api

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

	"padsynth/internal/events"
	"padsynth/internal/mapping"
)

// Error is a non-2xx response from the daemon.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon returned %d", e.Status)
	}
	return fmt.Sprintf("daemon returned %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the daemon.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Client talks to a running daemon over HTTP.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// NewClient returns a client for the daemon at address, which is either a
// host:port pair or a full http URL. token may be empty.
func NewClient(address, token string) (*Client, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, errors.New("daemon address is required")
	}
	if !strings.Contains(address, "://") {
		address = "http://" + address
	}
	base, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("parse daemon address: %w", err)
	}
	return &Client{
		base:  base,
		token: token,
		http:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// BaseURL returns the daemon root URL.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// WebsocketURL returns the /ws endpoint, carrying the token as a query
// parameter when one is set.
func (c *Client) WebsocketURL() string {
	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	if c.token != "" {
		q := u.Query()
		q.Set("token", c.token)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// Token returns the bearer token sent with each request.
func (c *Client) Token() string {
	return c.token
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload ErrorResponse
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &payload) != nil || payload.Error == "" {
			payload.Error = strings.TrimSpace(string(data))
		}
		return &Error{Status: resp.StatusCode, Message: payload.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// Config returns the mapping document and live state.
func (c *Client) Config(ctx context.Context) (*ConfigResponse, error) {
	var resp ConfigResponse
	if err := c.do(ctx, http.MethodGet, "/api/config", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ReplaceConfig stores cfg as the new mapping document.
func (c *Client) ReplaceConfig(ctx context.Context, cfg *mapping.Config) (*mapping.Config, error) {
	var resp ConfigResponse
	if err := c.do(ctx, http.MethodPut, "/api/config", nil, cfg, &resp); err != nil {
		return nil, err
	}
	return resp.Config, nil
}

// ReloadConfig re-reads the mapping file from disk.
func (c *Client) ReloadConfig(ctx context.Context) (*mapping.Config, error) {
	var resp ConfigResponse
	if err := c.do(ctx, http.MethodPost, "/api/config/reload", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Config, nil
}

// State returns the live key, encoder and synth state.
func (c *Client) State(ctx context.Context) (*events.State, error) {
	var resp events.State
	if err := c.do(ctx, http.MethodGet, "/api/state", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status returns daemon runtime information.
func (c *Client) Status(ctx context.Context) (*DaemonStatus, error) {
	var resp DaemonStatus
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetKeyNote assigns note to key id.
func (c *Client) SetKeyNote(ctx context.Context, id, note string) error {
	return c.do(ctx, http.MethodPost, "/api/keys/"+url.PathEscape(id)+"/note", nil,
		map[string]string{"note": note}, nil)
}

// UpdateEncoder applies a partial update (action, step, minimum, maximum).
func (c *Client) UpdateEncoder(ctx context.Context, name string, fields map[string]any) error {
	return c.do(ctx, http.MethodPost, "/api/encoders/"+url.PathEscape(name), nil, fields, nil)
}

// UpdateSynth applies a partial update of the synth section.
func (c *Client) UpdateSynth(ctx context.Context, fields map[string]any) error {
	return c.do(ctx, http.MethodPost, "/api/synth", nil, fields, nil)
}

// TestNote plays the note assigned to key id.
func (c *Client) TestNote(ctx context.Context, id string) (*PreviewResponse, error) {
	var resp PreviewResponse
	if err := c.do(ctx, http.MethodPost, "/api/test-note/"+url.PathEscape(id), nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logs fetches one page of daemon log events.
func (c *Client) Logs(ctx context.Context, q LogQuery) (*LogStreamResponse, error) {
	values := url.Values{}
	if q.Since > 0 {
		values.Set("since", strconv.FormatUint(q.Since, 10))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Follow {
		values.Set("follow", "1")
	}
	if q.Tail {
		values.Set("tail", "1")
	}
	if q.Component != "" {
		values.Set("component", q.Component)
	}
	if q.KeyID != "" {
		values.Set("key", q.KeyID)
	}
	var resp LogStreamResponse
	if err := c.do(ctx, http.MethodGet, "/api/logs", values, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Revisions lists stored mapping revisions, newest first.
func (c *Client) Revisions(ctx context.Context, limit int) (*RevisionsResponse, error) {
	values := url.Values{}
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	var resp RevisionsResponse
	if err := c.do(ctx, http.MethodGet, "/api/history/config", values, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Revision returns one revision including its YAML.
func (c *Client) Revision(ctx context.Context, id int64) (*RevisionResponse, error) {
	var resp RevisionResponse
	path := "/api/history/config/" + strconv.FormatInt(id, 10)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Restore makes revision id the current mapping.
func (c *Client) Restore(ctx context.Context, id int64) (*mapping.Config, error) {
	var resp ConfigResponse
	path := "/api/history/config/" + strconv.FormatInt(id, 10) + "/restore"
	if err := c.do(ctx, http.MethodPost, path, nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Config, nil
}

// KeyStats returns per-key press counts.
func (c *Client) KeyStats(ctx context.Context) (*KeyStatsResponse, error) {
	var resp KeyStatsResponse
	if err := c.do(ctx, http.MethodGet, "/api/history/keys", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
