// Package config loads bzmirror configuration.
//
// Values are resolved in order of precedence:
//  1. Command-line flags (bound by the cmd layer)
//  2. Environment variables (BZMIRROR_<SECTION>_<KEY>, plus the legacy
//     BZ_API_KEY, GITHUB_TOKEN, GITHUB_OWNER and GITHUB_REPO)
//  3. .env files in the working directory
//  4. Config file (bzmirror.yaml)
//  5. Defaults
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/bzmirror/bzmirror/internal/bugzilla"
	"github.com/bzmirror/bzmirror/internal/github"
	"github.com/bzmirror/bzmirror/internal/lockfile"
	"github.com/bzmirror/bzmirror/internal/tracker"
)

// EnvPrefix prefixes every bzmirror environment variable.
const EnvPrefix = "BZMIRROR"

// DefaultQueries are the sweeps run when none are configured.
var DefaultQueries = []string{
	// Everything in "Cloud Services/Server: Firefox Accounts".
	"product=Cloud%20Services&component=Server:%20Firefox%20Accounts",
	// Anything with [fxa] in its whiteboard string.
	"whiteboard=[fxa]",
	// Anything with [fxa-waffle] in its whiteboard string.
	"whiteboard=[fxa-waffle]",
}

// Config is the resolved configuration.
type Config struct {
	Bugzilla BugzillaConfig `json:"bugzilla" yaml:"bugzilla"`
	GitHub   GitHubConfig   `json:"github" yaml:"github"`
	Sync     SyncConfig     `json:"sync" yaml:"sync"`
	HTTP     HTTPConfig     `json:"http" yaml:"http"`

	// ConfigFile is the file values were read from, empty when none was found.
	ConfigFile string `json:"config_file,omitempty" yaml:"config_file,omitempty"`
}

// BugzillaConfig configures the upstream tracker.
type BugzillaConfig struct {
	URL              string   `json:"url" yaml:"url"`
	ViewURL          string   `json:"view_url" yaml:"view_url"`
	APIKey           string   `json:"api_key" yaml:"api_key"`
	Queries          []string `json:"queries" yaml:"queries"`
	QueriesFile      string   `json:"queries_file,omitempty" yaml:"queries_file,omitempty"`
	OpenStatuses     []string `json:"open_statuses" yaml:"open_statuses"`
	IgnoreMarker     string   `json:"ignore_marker" yaml:"ignore_marker"`
	RenderWithAPIKey bool     `json:"render_with_api_key" yaml:"render_with_api_key"`
}

// GitHubConfig configures the downstream tracker.
type GitHubConfig struct {
	URL        string `json:"url" yaml:"url"`
	Token      string `json:"token" yaml:"token"`
	Owner      string `json:"owner" yaml:"owner"`
	Repo       string `json:"repo" yaml:"repo"`
	LinkMarker string `json:"link_marker" yaml:"link_marker"`
}

// SyncConfig tunes reconciliation runs.
type SyncConfig struct {
	Concurrency   int    `json:"concurrency" yaml:"concurrency"`
	SkipUnchanged bool   `json:"skip_unchanged" yaml:"skip_unchanged"`
	LockFile      string `json:"lock_file" yaml:"lock_file"` // Serializes runs against one repository
}

// HTTPConfig tunes both REST clients.
type HTTPConfig struct {
	Timeout    time.Duration `json:"timeout" yaml:"timeout"`
	MaxRetries int           `json:"max_retries" yaml:"max_retries"`
}

// legacyEnv maps keys to the unprefixed variables older cron setups export.
var legacyEnv = map[string]string{
	"bugzilla.api_key": "BZ_API_KEY",
	"github.token":     "GITHUB_TOKEN",
	"github.owner":     "GITHUB_OWNER",
	"github.repo":      "GITHUB_REPO",
}

// New returns a viper instance with defaults and environment bindings installed.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("bugzilla.url", bugzilla.DefaultAPIEndpoint)
	v.SetDefault("bugzilla.view_url", bugzilla.DefaultViewURL)
	v.SetDefault("bugzilla.queries", DefaultQueries)
	v.SetDefault("bugzilla.open_statuses", bugzilla.DefaultOpenStatuses)
	v.SetDefault("bugzilla.ignore_marker", "[fxa-waffle-ignore]")
	v.SetDefault("bugzilla.render_with_api_key", false)
	v.SetDefault("github.url", github.DefaultAPIEndpoint)
	v.SetDefault("github.owner", "mozilla")
	v.SetDefault("github.repo", "fxa")
	v.SetDefault("sync.concurrency", tracker.DefaultConcurrency)
	v.SetDefault("sync.skip_unchanged", false)
	v.SetDefault("http.timeout", bugzilla.DefaultTimeout)
	v.SetDefault("http.max_retries", bugzilla.MaxRetries)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, prefixed, legacy)
	}

	return v
}

// Load reads the config file and .env files into v and resolves a Config.
// configFile may be empty to search the standard locations; a missing
// explicit file is an error, a missing default file is not.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	loadEnvFiles()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("bzmirror")
		v.SetConfigType("yaml")
		for _, dir := range searchPaths() {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return FromViper(v), nil
}

// FromViper resolves a Config from an already-populated viper instance.
func FromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Bugzilla: BugzillaConfig{
			URL:              strings.TrimRight(v.GetString("bugzilla.url"), "/"),
			ViewURL:          v.GetString("bugzilla.view_url"),
			APIKey:           v.GetString("bugzilla.api_key"),
			Queries:          v.GetStringSlice("bugzilla.queries"),
			QueriesFile:      v.GetString("bugzilla.queries_file"),
			OpenStatuses:     v.GetStringSlice("bugzilla.open_statuses"),
			IgnoreMarker:     v.GetString("bugzilla.ignore_marker"),
			RenderWithAPIKey: v.GetBool("bugzilla.render_with_api_key"),
		},
		GitHub: GitHubConfig{
			URL:        strings.TrimRight(v.GetString("github.url"), "/"),
			Token:      v.GetString("github.token"),
			Owner:      v.GetString("github.owner"),
			Repo:       v.GetString("github.repo"),
			LinkMarker: v.GetString("github.link_marker"),
		},
		Sync: SyncConfig{
			Concurrency:   v.GetInt("sync.concurrency"),
			SkipUnchanged: v.GetBool("sync.skip_unchanged"),
			LockFile:      v.GetString("sync.lock_file"),
		},
		HTTP: HTTPConfig{
			Timeout:    v.GetDuration("http.timeout"),
			MaxRetries: v.GetInt("http.max_retries"),
		},
		ConfigFile: v.ConfigFileUsed(),
	}

	if cfg.GitHub.LinkMarker == "" && cfg.GitHub.Owner != "" {
		cfg.GitHub.LinkMarker = "github.com/" + cfg.GitHub.Owner
	}
	if cfg.Sync.LockFile == "" {
		cfg.Sync.LockFile = lockfile.DefaultPath(cfg.GitHub.Owner, cfg.GitHub.Repo)
	}
	return cfg
}

// Validate reports configuration that would make a run fail.
// requireToken is false for dry runs, which never write downstream.
func (c *Config) Validate(requireToken bool) error {
	var errs []error
	if c.GitHub.Owner == "" {
		errs = append(errs, errors.New("GitHub owner not configured (set github.owner or GITHUB_OWNER)"))
	}
	if c.GitHub.Repo == "" {
		errs = append(errs, errors.New("GitHub repository not configured (set github.repo or GITHUB_REPO)"))
	}
	if requireToken && c.GitHub.Token == "" {
		errs = append(errs, errors.New("GitHub token not configured (set github.token or GITHUB_TOKEN)"))
	}
	if len(c.Bugzilla.Queries) == 0 && c.Bugzilla.QueriesFile == "" {
		errs = append(errs, errors.New("no Bugzilla queries configured (set bugzilla.queries or bugzilla.queries_file)"))
	}
	if c.Bugzilla.ViewURL == "" {
		errs = append(errs, errors.New("Bugzilla view URL not configured (set bugzilla.view_url)"))
	}
	if c.Sync.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("sync.concurrency must not be negative, got %d", c.Sync.Concurrency))
	}
	return errors.Join(errs...)
}

// Queries parses the configured sweeps: inline queries first, then the
// queries file. Order matters: earlier queries win when results overlap.
func (c *Config) Queries() ([]tracker.Query, error) {
	queries := make([]tracker.Query, 0, len(c.Bugzilla.Queries))
	for _, raw := range c.Bugzilla.Queries {
		q, err := tracker.ParseQuery(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid query %q: %w", raw, err)
		}
		queries = append(queries, q)
	}
	if c.Bugzilla.QueriesFile != "" {
		fromFile, err := LoadQueriesFile(c.Bugzilla.QueriesFile)
		if err != nil {
			return nil, err
		}
		queries = append(queries, fromFile...)
	}
	if len(queries) == 0 {
		return nil, errors.New("no Bugzilla queries configured")
	}
	return queries, nil
}

// Exclusion returns the rules that keep bugs from being mirrored.
func (c *Config) Exclusion() tracker.Exclusion {
	return tracker.Exclusion{
		IgnoreMarker: c.Bugzilla.IgnoreMarker,
		LinkMarker:   c.GitHub.LinkMarker,
	}
}

// searchPaths lists the directories searched for bzmirror.yaml.
func searchPaths() []string {
	paths := []string{"."}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "bzmirror"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "bzmirror"))
	}
	return paths
}

// loadEnvFiles loads .env.local, then .env. Variables that are already set win.
func loadEnvFiles() {
	for _, envFile := range []string{".env.local", ".env"} {
		_ = godotenv.Load(envFile)
	}
}
