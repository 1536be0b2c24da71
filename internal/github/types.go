// Package github provides client and data types for the GitHub REST API.
//
// This package handles the downstream side of mirroring: listing the open
// issues of the mirror repository and creating, editing and closing them.
package github

import (
	"fmt"
	"net/http"
	"time"
)

// API configuration constants.
const (
	// DefaultAPIEndpoint is the GitHub REST API base URL.
	DefaultAPIEndpoint = "https://api.github.com"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxRetries is the maximum number of retries for rate-limited or failed requests.
	MaxRetries = 3

	// RetryDelay is the base delay between retries (exponential backoff).
	RetryDelay = time.Second

	// MaxRetryAfter caps how long a Retry-After header may stall a request.
	MaxRetryAfter = time.Minute

	// MaxPageSize is the maximum number of issues to fetch per page.
	MaxPageSize = 100

	// MaxPages is the maximum number of pages to fetch before stopping.
	// This prevents infinite loops from malformed Link headers.
	MaxPages = 1000
)

// Issue states.
const (
	StateOpen   = "open"
	StateClosed = "closed"
)

// Client provides methods to interact with the GitHub REST API.
type Client struct {
	Token      string        // GitHub personal access token
	Owner      string        // Repository owner (user or org)
	Repo       string        // Repository name
	BaseURL    string        // API base URL (default: https://api.github.com)
	HTTPClient *http.Client  // Optional custom HTTP client
	MaxRetries int           // Retries for rate-limited and transient failures
	RetryDelay time.Duration // Initial backoff interval
}

// Issue represents an issue from the GitHub API.
type Issue struct {
	ID          int        `json:"id"`     // Global unique ID
	Number      int        `json:"number"` // Repository-scoped issue number
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	State       string     `json:"state"` // "open" or "closed"
	CreatedAt   *time.Time `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	Labels      []Label    `json:"labels"`
	User        *User      `json:"user,omitempty"` // Author
	HTMLURL     string     `json:"html_url"`
	PullRequest *PullRef   `json:"pull_request,omitempty"` // Non-nil if this is a PR
}

// PullRef indicates an issue is actually a pull request.
// The GitHub Issues API returns PRs alongside issues; this field
// distinguishes them.
type PullRef struct {
	URL string `json:"url,omitempty"`
}

// User represents a GitHub user.
type User struct {
	ID    int    `json:"id"`
	Login string `json:"login"`
}

// Label represents a GitHub label.
type Label struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Repository represents a GitHub repository.
type Repository struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	FullName    string `json:"full_name"`
	HTMLURL     string `json:"html_url"`
	Private     bool   `json:"private"`
	HasIssues   bool   `json:"has_issues"`
	Permissions *struct {
		Push bool `json:"push"`
	} `json:"permissions,omitempty"`
}

// APIError is a non-2xx response from GitHub.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: %s %s: %s (status %d)", e.Method, e.Path, e.Message, e.StatusCode)
}
