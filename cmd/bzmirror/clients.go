package main

import (
	"net/http"

	"github.com/bzmirror/bzmirror/internal/bugzilla"
	"github.com/bzmirror/bzmirror/internal/config"
	"github.com/bzmirror/bzmirror/internal/github"
	"github.com/bzmirror/bzmirror/internal/telemetry"
)

func httpClient(cfg *config.Config, system string) *http.Client {
	return &http.Client{
		Timeout:   cfg.HTTP.Timeout,
		Transport: telemetry.WrapTransport(nil, system),
	}
}

func newBugzillaTracker(cfg *config.Config) *bugzilla.Tracker {
	client := bugzilla.NewClient(cfg.Bugzilla.APIKey).
		WithBaseURL(cfg.Bugzilla.URL).
		WithHTTPClient(httpClient(cfg, "bugzilla"))
	client.MaxRetries = cfg.HTTP.MaxRetries
	return bugzilla.NewTracker(client, cfg.Bugzilla.OpenStatuses)
}

func newGitHubClient(cfg *config.Config) *github.Client {
	client := github.NewClient(cfg.GitHub.Token, cfg.GitHub.Owner, cfg.GitHub.Repo).
		WithBaseURL(cfg.GitHub.URL).
		WithHTTPClient(httpClient(cfg, "github"))
	client.MaxRetries = cfg.HTTP.MaxRetries
	return client
}
