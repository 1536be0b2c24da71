package bugzilla

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/cenkalti/backoff/v4"
)

// PageSize is the number of bugs requested per search page.
const PageSize = 500

// MaxPages bounds search pagination.
const MaxPages = 200

// NewClient creates a new Bugzilla client. apiKey may be empty for anonymous access.
func NewClient(apiKey string) *Client {
	return &Client{
		APIKey:  apiKey,
		BaseURL: DefaultAPIEndpoint,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		MaxRetries: MaxRetries,
		RetryDelay: RetryDelay,
	}
}

// WithHTTPClient returns a new client with a custom HTTP client.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	cp := *c
	cp.HTTPClient = httpClient
	return &cp
}

// WithBaseURL returns a new client with a custom base URL (for testing or other instances).
func (c *Client) WithBaseURL(baseURL string) *Client {
	cp := *c
	cp.BaseURL = strings.TrimRight(baseURL, "/")
	return &cp
}

// buildURL constructs a full API URL.
func (c *Client) buildURL(path string, params url.Values) string {
	u := c.BaseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	if c.RetryDelay > 0 {
		bo.InitialInterval = c.RetryDelay
	}
	retries := c.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(bo, uint64(retries)), ctx)
}

// doRequest performs a GET with retry. When authed is true and an API key is
// configured, the key is sent; otherwise the request is anonymous.
func (c *Client) doRequest(ctx context.Context, path string, params url.Values, authed bool) ([]byte, error) {
	urlStr := c.buildURL(path, params)

	var body []byte
	err := backoff.Retry(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Accept", "application/json")
		if authed && c.APIKey != "" {
			req.Header.Set(APIKeyHeader, c.APIKey)
		}

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("request failed: %w", err)
		}

		const maxResponseSize = 50 * 1024 * 1024
		respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		_ = resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		if apiErr := checkResponse(path, resp.StatusCode, respBody); apiErr != nil {
			if apiErr.Retryable() {
				return apiErr
			}
			return backoff.Permanent(apiErr)
		}

		body = respBody
		return nil
	}, c.newBackOff(ctx))
	if err != nil {
		return nil, err
	}
	return body, nil
}

// checkResponse turns a non-2xx status or an in-body error into an *APIError.
func checkResponse(path string, status int, body []byte) *APIError {
	var eb errorBody
	// Bodies are not always JSON on failure (e.g. proxy errors); ignore parse failures.
	_ = json.Unmarshal(body, &eb)

	if status < 200 || status >= 300 {
		msg := eb.Message
		if msg == "" {
			msg = strings.TrimSpace(string(body))
			if len(msg) > 200 {
				msg = msg[:200]
			}
		}
		return &APIError{StatusCode: status, Code: eb.Code, Endpoint: path, Message: msg}
	}
	if eb.Error {
		return &APIError{StatusCode: status, Code: eb.Code, Endpoint: path, Message: eb.Message}
	}
	return nil
}

// SearchBugs runs one filter query restricted to the given statuses and
// returns every matching bug, following offset pagination. Pages are ordered
// by bug id so offsets stay stable across requests.
// params are passed through verbatim; fields is the include_fields projection.
func (c *Client) SearchBugs(ctx context.Context, params url.Values, statuses []string, fields string) ([]Bug, error) {
	var all []Bug

	for page := 0; ; page++ {
		if page >= MaxPages {
			return nil, fmt.Errorf("pagination limit exceeded: stopped after %d pages", MaxPages)
		}

		q := url.Values{}
		for k, v := range params {
			q[k] = append([]string(nil), v...)
		}
		if len(statuses) > 0 {
			q["status"] = append([]string(nil), statuses...)
		}
		if fields != "" {
			q.Set("include_fields", fields)
		}
		q.Set("order", "bug_id")
		q.Set("limit", strconv.Itoa(PageSize))
		q.Set("offset", strconv.Itoa(page*PageSize))

		respBody, err := c.doRequest(ctx, "/bug", q, true)
		if err != nil {
			return nil, fmt.Errorf("failed to search bugs: %w", err)
		}

		var resp bugsResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return nil, fmt.Errorf("failed to parse search response: %w", err)
		}
		if resp.Bugs == nil {
			return nil, errors.New("failed to parse search response: missing bugs field")
		}
		all = append(all, resp.Bugs...)

		if len(resp.Bugs) < PageSize {
			return all, nil
		}
	}
}

// GetBug retrieves a single bug. fields may be empty for the default projection.
// Returns an *APIError matching tracker.ErrNotFound when no bug is returned.
func (c *Client) GetBug(ctx context.Context, id string, authed bool, fields string) (*Bug, error) {
	var params url.Values
	if fields != "" {
		params = url.Values{"include_fields": {fields}}
	}
	path := "/bug/" + url.PathEscape(id)
	respBody, err := c.doRequest(ctx, path, params, authed)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bug %s: %w", id, err)
	}

	var resp bugsResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse bug response: %w", err)
	}
	if len(resp.Bugs) == 0 {
		return nil, &APIError{StatusCode: http.StatusNotFound, Code: CodeInvalidBug, Endpoint: path, Message: "no bug returned"}
	}
	return &resp.Bugs[0], nil
}

// GetComments retrieves the comment stream of a bug, oldest first.
func (c *Client) GetComments(ctx context.Context, id string, authed bool) ([]Comment, error) {
	path := "/bug/" + url.PathEscape(id) + "/comment"
	respBody, err := c.doRequest(ctx, path, nil, authed)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch comments for bug %s: %w", id, err)
	}

	var resp commentsResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse comments response: %w", err)
	}
	entry, ok := resp.Bugs[id]
	if !ok {
		return nil, nil
	}
	return entry.Comments, nil
}
