// Package bugzilla provides client and data types for the Bugzilla REST API.
//
// This package handles the read-only side of mirroring: sweeping open bugs
// by filter query, reading a single bug's public details and first comment,
// and point lookups used to decide whether a mirror should be closed.
package bugzilla

import (
	"net/http"
	"strconv"
	"time"
)

// API configuration constants.
const (
	// DefaultAPIEndpoint is the Bugzilla REST API base URL.
	DefaultAPIEndpoint = "https://bugzilla.mozilla.org/rest"

	// DefaultViewURL is the human-facing bug page.
	DefaultViewURL = "https://bugzilla.mozilla.org/show_bug.cgi"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxRetries is the default number of retries for transient failures.
	MaxRetries = 3

	// RetryDelay is the base delay between retries (exponential backoff).
	RetryDelay = time.Second

	// APIKeyHeader carries the API key so it never appears in logged URLs.
	APIKeyHeader = "X-BUGZILLA-API-KEY"
)

// DefaultOpenStatuses are the statuses a sweep treats as open.
var DefaultOpenStatuses = []string{"UNCONFIRMED", "NEW", "ASSIGNED", "REOPENED"}

// SweepFields is the projection requested by filter sweeps and close checks.
const SweepFields = "id,summary,is_open,groups,whiteboard,url,creation_time,last_change_time"

// ProgressFields is the projection requested by metabug progress reports.
const ProgressFields = "id,summary,is_open,creation_time,last_change_time"

// Client provides methods to interact with the Bugzilla REST API.
type Client struct {
	APIKey     string        // Optional API key; anonymous when empty
	BaseURL    string        // API base URL (default: https://bugzilla.mozilla.org/rest)
	HTTPClient *http.Client  // Optional custom HTTP client
	MaxRetries int           // Retries for transient failures
	RetryDelay time.Duration // Initial backoff interval
}

// Bug represents a bug from the Bugzilla API. Only the projected fields are populated.
type Bug struct {
	ID             int        `json:"id"`
	Summary        string     `json:"summary"`
	IsOpen         bool       `json:"is_open"`
	Status         string     `json:"status,omitempty"`
	Groups         []string   `json:"groups"`
	Whiteboard     string     `json:"whiteboard"`
	URL            string     `json:"url"`
	CreationTime   *time.Time `json:"creation_time,omitempty"`
	LastChangeTime *time.Time `json:"last_change_time,omitempty"`
}

// IDString returns the bug id in the decimal string form used as a correlation key.
func (b Bug) IDString() string {
	return strconv.Itoa(b.ID)
}

// Comment is one entry in a bug's comment stream.
type Comment struct {
	ID           int        `json:"id"`
	Count        int        `json:"count"`
	Text         string     `json:"text"`
	Creator      string     `json:"creator,omitempty"`
	IsPrivate    bool       `json:"is_private"`
	CreationTime *time.Time `json:"creation_time,omitempty"`
}

// bugsResponse is the envelope of GET /bug and GET /bug/<id>.
type bugsResponse struct {
	Bugs []Bug `json:"bugs"`
}

// commentsResponse is the envelope of GET /bug/<id>/comment.
type commentsResponse struct {
	Bugs map[string]struct {
		Comments []Comment `json:"comments"`
	} `json:"bugs"`
}

// errorBody is the in-body error Bugzilla returns alongside (or instead of) an HTTP status.
type errorBody struct {
	Error   bool   `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}
