package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/semsproject/sems-client/internal/errors"
	"github.com/semsproject/sems-client/internal/models"
)

const requestTimeout = 15 * time.Second

// Credentials authenticate requests to the central server. They are
// supplied per pass rather than at construction so a token rotated while
// the daemon runs takes effect on the next trigger without a restart.
type Credentials struct {
	Token string
}

// Client talks to the central server's record endpoints. One request per
// record; the engine drives ordering and retries.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for the given API base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// Create submits a new record: POST /api/{resource}.
func (c *Client) Create(ctx context.Context, creds Credentials, family models.Family, payload interface{}) (*Response, error) {
	url := fmt.Sprintf("%s/api/%s", c.baseURL, family.Resource())
	return c.do(ctx, creds, http.MethodPost, url, payload)
}

// Update converges the server's copy of a record: PUT /api/{resource} with
// the server id and the family's mutable fields in the body. The server
// routes updates on the bare resource path.
func (c *Client) Update(ctx context.Context, creds Credentials, family models.Family, payload interface{}) (*Response, error) {
	url := fmt.Sprintf("%s/api/%s", c.baseURL, family.Resource())
	return c.do(ctx, creds, http.MethodPut, url, payload)
}

func (c *Client) do(ctx context.Context, creds Credentials, method, url string, payload interface{}) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(errors.ErrSyncRejected, "failed to encode payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(errors.ErrSyncFailed, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if creds.Token != "" {
		req.Header.Set("Authorization", "Bearer "+creds.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Transport failures and timeouts are indistinguishable from the
		// client's perspective; both are retryable.
		return nil, errors.Wrap(errors.ErrSyncTimeout, "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(errors.ErrSyncTimeout, "failed to read response", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, errors.New(errors.ErrSyncAuthFailed,
			fmt.Sprintf("server returned %d", resp.StatusCode))
	case resp.StatusCode >= 500:
		return nil, errors.New(errors.ErrSyncFailed,
			fmt.Sprintf("server returned %d: %s", resp.StatusCode, serverMessage(raw)))
	case resp.StatusCode >= 400:
		return nil, errors.New(errors.ErrSyncRejected,
			fmt.Sprintf("server returned %d: %s", resp.StatusCode, serverMessage(raw)))
	}

	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errors.Wrap(errors.ErrSyncFailed, "malformed server response", err)
	}
	return &out, nil
}

// serverMessage extracts the message field from an error body, falling back
// to the raw body.
func serverMessage(raw []byte) string {
	var partial struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &partial) == nil && partial.Message != "" {
		return partial.Message
	}
	if len(raw) > 200 {
		raw = raw[:200]
	}
	return string(raw)
}

// IsRetryable reports whether a failed request is worth repeating. Network
// faults and server errors are; rejections and auth failures are not.
func IsRetryable(err error) bool {
	switch errors.Code(err) {
	case errors.ErrSyncTimeout, errors.ErrSyncFailed:
		return true
	}
	return false
}
