package github

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(serverURL string) *Client {
	c := NewClient("test-token", "owner", "repo").WithBaseURL(serverURL)
	c.RetryDelay = time.Millisecond
	return c
}

// TestNewClient verifies the constructor creates a properly configured client.
func TestNewClient(t *testing.T) {
	client := NewClient("test-token", "owner", "repo")

	if client.Token != "test-token" {
		t.Errorf("Token = %q, want %q", client.Token, "test-token")
	}
	if client.Owner != "owner" {
		t.Errorf("Owner = %q, want %q", client.Owner, "owner")
	}
	if client.Repo != "repo" {
		t.Errorf("Repo = %q, want %q", client.Repo, "repo")
	}
	if client.BaseURL != DefaultAPIEndpoint {
		t.Errorf("BaseURL = %q, want %q", client.BaseURL, DefaultAPIEndpoint)
	}
	if client.HTTPClient == nil {
		t.Error("HTTPClient is nil, want non-nil default client")
	}
	if client.MaxRetries != MaxRetries {
		t.Errorf("MaxRetries = %d, want %d", client.MaxRetries, MaxRetries)
	}
}

// TestClientWithHTTPClient verifies the builder pattern for custom HTTP client.
func TestClientWithHTTPClient(t *testing.T) {
	customClient := &http.Client{Timeout: 60 * time.Second}
	client := NewClient("token", "owner", "repo").WithHTTPClient(customClient)

	if client.HTTPClient != customClient {
		t.Error("HTTPClient not set to custom client")
	}
	if client.Token != "token" {
		t.Errorf("Token = %q, want %q", client.Token, "token")
	}
}

// TestClientWithBaseURL verifies custom base URL setting.
func TestClientWithBaseURL(t *testing.T) {
	client := NewClient("token", "owner", "repo").WithBaseURL("https://github.example.com/api/v3/")

	if client.BaseURL != "https://github.example.com/api/v3" {
		t.Errorf("BaseURL = %q, want custom URL without trailing slash", client.BaseURL)
	}
	if client.Owner != "owner" {
		t.Errorf("Owner = %q, want %q", client.Owner, "owner")
	}
}

// TestBuildURL verifies URL construction for API endpoints.
func TestBuildURL(t *testing.T) {
	client := NewClient("token", "mozilla", "fxa")

	tests := []struct {
		name    string
		path    string
		params  map[string]string
		wantURL string
	}{
		{
			name:    "issues endpoint",
			path:    "/repos/mozilla/fxa/issues",
			wantURL: "https://api.github.com/repos/mozilla/fxa/issues",
		},
		{
			name:    "with query params",
			path:    "/repos/mozilla/fxa/issues",
			params:  map[string]string{"state": "open", "per_page": "100"},
			wantURL: "https://api.github.com/repos/mozilla/fxa/issues?",
		},
		{
			name:    "single issue",
			path:    "/repos/mozilla/fxa/issues/42",
			wantURL: "https://api.github.com/repos/mozilla/fxa/issues/42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := client.buildURL(tt.path, tt.params)
			if !strings.HasPrefix(got, tt.wantURL) {
				t.Errorf("buildURL(%q) = %q, want prefix %q", tt.path, got, tt.wantURL)
			}
			for k, v := range tt.params {
				if !strings.Contains(got, k+"="+v) {
					t.Errorf("buildURL missing param %s=%s in %q", k, v, got)
				}
			}
		})
	}
}

// TestFetchIssues_Success verifies fetching open issues from GitHub API.
func TestFetchIssues_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("Method = %s, want GET", r.Method)
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("Authorization header = %q, want Bearer test-token", r.Header.Get("Authorization"))
		}
		if r.URL.Path != "/repos/owner/repo/issues" {
			t.Errorf("URL path = %s, want /repos/owner/repo/issues", r.URL.Path)
		}
		if r.URL.Query().Get("state") != "open" {
			t.Errorf("state = %q, want open", r.URL.Query().Get("state"))
		}

		issues := []Issue{
			{ID: 1, Number: 1, Title: "Login broken [bz100]", State: "open"},
			{ID: 2, Number: 2, Title: "Hand-written issue", State: "open"},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(issues)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	issues, err := client.FetchIssues(context.Background(), StateOpen)
	if err != nil {
		t.Fatalf("FetchIssues() error = %v", err)
	}

	if len(issues) != 2 {
		t.Errorf("FetchIssues() returned %d issues, want 2", len(issues))
	}
	if issues[0].Title != "Login broken [bz100]" {
		t.Errorf("issues[0].Title = %q, want %q", issues[0].Title, "Login broken [bz100]")
	}
}

// TestFetchIssues_FiltersPullRequests verifies PRs are filtered out.
func TestFetchIssues_FiltersPullRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		issues := []Issue{
			{ID: 1, Number: 1, Title: "Issue [bz1]", State: "open"},
			{ID: 2, Number: 2, Title: "Fix [bz1]", State: "open", PullRequest: &PullRef{URL: "https://api.github.com/repos/o/r/pulls/2"}},
			{ID: 3, Number: 3, Title: "Another issue", State: "open"},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(issues)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	issues, err := client.FetchIssues(context.Background(), StateOpen)
	if err != nil {
		t.Fatalf("FetchIssues() error = %v", err)
	}

	if len(issues) != 2 {
		t.Errorf("FetchIssues() returned %d issues, want 2 (PR filtered)", len(issues))
	}
}

// TestFetchIssues_Pagination verifies client handles paginated responses via Link header.
func TestFetchIssues_Pagination(t *testing.T) {
	var page atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if page.Add(1) == 1 {
			w.Header().Set("Link", `<`+r.URL.String()+`?page=2>; rel="next"`)
			_ = json.NewEncoder(w).Encode([]Issue{{ID: 1, Number: 1, Title: "Issue 1"}})
			return
		}
		_ = json.NewEncoder(w).Encode([]Issue{{ID: 2, Number: 2, Title: "Issue 2"}})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	issues, err := client.FetchIssues(context.Background(), StateOpen)
	if err != nil {
		t.Fatalf("FetchIssues() error = %v", err)
	}

	if len(issues) != 2 {
		t.Errorf("FetchIssues() returned %d issues, want 2 (from 2 pages)", len(issues))
	}
}

// TestFetchIssues_PaginationLimit verifies that FetchIssues stops after MaxPages.
func TestFetchIssues_PaginationLimit(t *testing.T) {
	var requestCount atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(requestCount.Add(1))
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Link", `<http://example.com?page=999>; rel="next"`)
		_ = json.NewEncoder(w).Encode([]Issue{{ID: n, Number: n, Title: "Issue"}})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.FetchIssues(context.Background(), "all")

	if err == nil {
		t.Fatal("FetchIssues() error = nil, want pagination limit error")
	}
	if !strings.Contains(err.Error(), "pagination limit exceeded") {
		t.Errorf("error = %v, want to contain 'pagination limit exceeded'", err)
	}
	if int(requestCount.Load()) > MaxPages+1 {
		t.Errorf("requestCount = %d, want <= %d (MaxPages+1)", requestCount.Load(), MaxPages+1)
	}
}

// TestCreateIssue_Success verifies creating an issue via POST.
func TestCreateIssue_Success(t *testing.T) {
	var capturedBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/repos/owner/repo/issues" {
			t.Errorf("URL path = %s, want /repos/owner/repo/issues", r.URL.Path)
		}

		_ = json.NewDecoder(r.Body).Decode(&capturedBody)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(Issue{ID: 100, Number: 42, Title: "New issue [bz7]", State: "open"})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	issue, err := client.CreateIssue(context.Background(), "New issue [bz7]", "From https://bugzilla.mozilla.org/show_bug.cgi?id=7", nil)
	if err != nil {
		t.Fatalf("CreateIssue() error = %v", err)
	}

	if issue.Number != 42 {
		t.Errorf("issue.Number = %d, want 42", issue.Number)
	}
	if capturedBody["title"] != "New issue [bz7]" {
		t.Errorf("request body title = %v, want %q", capturedBody["title"], "New issue [bz7]")
	}
	if _, ok := capturedBody["labels"]; ok {
		t.Error("request body has labels, want none when no labels are given")
	}
}

// TestCreateIssue_InvalidJSON verifies JSON parse error handling.
func TestCreateIssue_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{not valid json`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.CreateIssue(context.Background(), "Test", "Description", nil)
	if err == nil {
		t.Fatal("CreateIssue() error = nil, want error for invalid JSON")
	}
	if !strings.Contains(err.Error(), "failed to parse create response") {
		t.Errorf("error = %v, want to contain 'failed to parse create response'", err)
	}
}

// TestUpdateIssue_Success verifies updating an issue via PATCH.
func TestUpdateIssue_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("Method = %s, want PATCH", r.Method)
		}
		if r.URL.Path != "/repos/owner/repo/issues/42" {
			t.Errorf("URL path = %s, want /repos/owner/repo/issues/42", r.URL.Path)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Issue{ID: 100, Number: 42, Title: "Updated title", State: "open"})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	issue, err := client.UpdateIssue(context.Background(), 42, map[string]interface{}{"title": "Updated title"})
	if err != nil {
		t.Fatalf("UpdateIssue() error = %v", err)
	}

	if issue.Title != "Updated title" {
		t.Errorf("issue.Title = %q, want %q", issue.Title, "Updated title")
	}
}

// TestCloseIssue verifies close is a PATCH for open issues and a no-op for closed ones.
func TestCloseIssue(t *testing.T) {
	tests := []struct {
		name        string
		state       string
		wantPatches int32
	}{
		{name: "open issue is closed", state: StateOpen, wantPatches: 1},
		{name: "closed issue is left alone", state: StateClosed, wantPatches: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var patches atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				switch r.Method {
				case http.MethodGet:
					_ = json.NewEncoder(w).Encode(Issue{Number: 9, State: tt.state})
				case http.MethodPatch:
					patches.Add(1)
					var body map[string]interface{}
					_ = json.NewDecoder(r.Body).Decode(&body)
					if body["state"] != StateClosed {
						t.Errorf("PATCH state = %v, want closed", body["state"])
					}
					_ = json.NewEncoder(w).Encode(Issue{Number: 9, State: StateClosed})
				}
			}))
			defer server.Close()

			client := newTestClient(server.URL)
			issue, err := client.CloseIssue(context.Background(), 9)
			if err != nil {
				t.Fatalf("CloseIssue() error = %v", err)
			}
			if issue.State != StateClosed {
				t.Errorf("issue.State = %q, want closed", issue.State)
			}
			if patches.Load() != tt.wantPatches {
				t.Errorf("PATCH requests = %d, want %d", patches.Load(), tt.wantPatches)
			}
		})
	}
}

// TestFetchIssues_APIError verifies server errors are retried and then reported.
func TestFetchIssues_APIError(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message": "Server error"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	client.MaxRetries = 1

	_, err := client.FetchIssues(context.Background(), StateOpen)
	if err == nil {
		t.Fatal("FetchIssues() error = nil, want error for 500")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "Server error" {
		t.Errorf("error = %v, want *APIError carrying the server message", err)
	}
	if attempts.Load() != 2 {
		t.Errorf("attempts = %d, want 2 (initial + 1 retry)", attempts.Load())
	}
}

// TestCreateIssue_NoRetryOnServerError verifies a failed POST is never re-sent,
// since GitHub may have stored the issue before answering 502.
func TestCreateIssue_NoRetryOnServerError(t *testing.T) {
	var posts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if posts.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(Issue{ID: 2, Number: 2, Title: "Mirror [bz1]", State: StateOpen})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.CreateIssue(context.Background(), "Mirror [bz1]", "body", nil)
	if err == nil {
		t.Fatal("CreateIssue() error = nil, want the 502")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadGateway {
		t.Errorf("error = %v, want *APIError with status 502", err)
	}
	if posts.Load() != 1 {
		t.Errorf("POST requests = %d, want 1", posts.Load())
	}
}

// TestUpdateIssue_RetriesServerError verifies PATCH, which is idempotent, is retried.
func TestUpdateIssue_RetriesServerError(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Issue{Number: 1, Title: "Fixed"})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	if _, err := client.UpdateIssue(context.Background(), 1, map[string]interface{}{"title": "Fixed"}); err != nil {
		t.Fatalf("UpdateIssue() error = %v, want success after retry", err)
	}
	if attempts.Load() != 2 {
		t.Errorf("attempts = %d, want 2", attempts.Load())
	}
}

// TestUpdateIssue_NoRetryOnValidationError verifies 4xx responses fail immediately.
func TestUpdateIssue_NoRetryOnValidationError(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message": "Validation Failed"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.UpdateIssue(context.Background(), 1, map[string]interface{}{"title": ""})
	if err == nil {
		t.Fatal("UpdateIssue() error = nil, want error for 422")
	}
	if attempts.Load() != 1 {
		t.Errorf("attempts = %d, want 1", attempts.Load())
	}
}

// TestFetchIssues_RateLimitRetry verifies rate limit handling with retry.
func TestFetchIssues_RateLimitRetry(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]Issue{{ID: 1, Number: 1, Title: "After retry"}})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	issues, err := client.FetchIssues(context.Background(), StateOpen)
	if err != nil {
		t.Fatalf("FetchIssues() error = %v, want success after retries", err)
	}

	if attempts.Load() != 3 {
		t.Errorf("attempts = %d, want 3 (initial + 2 retries)", attempts.Load())
	}
	if len(issues) != 1 || issues[0].Title != "After retry" {
		t.Errorf("unexpected issues after retry: %v", issues)
	}
}

// TestFetchIssues_ContextCancellation verifies context cancellation stops pagination.
func TestFetchIssues_ContextCancellation(t *testing.T) {
	var requestCount atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := requestCount.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Link", `<http://example.com?page=2>; rel="next"`)
		_ = json.NewEncoder(w).Encode([]Issue{{ID: int(count), Number: int(count), Title: "Issue"}})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := client.FetchIssues(ctx, "all")
	if err == nil {
		t.Fatal("FetchIssues() error = nil, want error to stop infinite loop")
	}

	isContextCanceled := errors.Is(err, context.Canceled)
	isPaginationLimit := strings.Contains(err.Error(), "pagination limit exceeded")
	if !isContextCanceled && !isPaginationLimit {
		t.Errorf("error = %v, want context.Canceled or pagination limit exceeded", err)
	}
}

// TestFetchRepository verifies the repository probe used by the status command.
func TestFetchRepository(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/owner/repo" {
			t.Errorf("URL path = %s, want /repos/owner/repo", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":1,"name":"repo","full_name":"owner/repo","has_issues":true,"permissions":{"push":true}}`))
	}))
	defer server.Close()

	repo, err := newTestClient(server.URL).FetchRepository(context.Background())
	if err != nil {
		t.Fatalf("FetchRepository() error = %v", err)
	}
	if repo.FullName != "owner/repo" || !repo.HasIssues {
		t.Errorf("repo = %+v", repo)
	}
	if repo.Permissions == nil || !repo.Permissions.Push {
		t.Error("repo.Permissions.Push = false, want true")
	}
}

// TestHasNextPage verifies Link header parsing.
func TestHasNextPage(t *testing.T) {
	tests := []struct {
		name     string
		link     string
		wantURL  string
		wantNext bool
	}{
		{
			name:     "has next page",
			link:     `<https://api.github.com/repos/o/r/issues?page=2>; rel="next", <https://api.github.com/repos/o/r/issues?page=5>; rel="last"`,
			wantURL:  "https://api.github.com/repos/o/r/issues?page=2",
			wantNext: true,
		},
		{
			name:     "no next page",
			link:     `<https://api.github.com/repos/o/r/issues?page=1>; rel="prev"`,
			wantNext: false,
		},
		{
			name:     "empty link header",
			wantNext: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := http.Header{}
			if tt.link != "" {
				headers.Set("Link", tt.link)
			}
			gotURL, gotNext := hasNextPage(headers)
			if gotNext != tt.wantNext {
				t.Errorf("hasNextPage() next = %v, want %v", gotNext, tt.wantNext)
			}
			if gotURL != tt.wantURL {
				t.Errorf("hasNextPage() url = %q, want %q", gotURL, tt.wantURL)
			}
		})
	}
}
