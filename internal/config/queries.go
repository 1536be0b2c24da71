package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/bzmirror/bzmirror/internal/tracker"
)

// queriesFile is the on-disk format of bugzilla.queries_file:
//
//	[[query]]
//	name = "fxa component"
//	params = "product=Cloud%20Services&component=Server:%20Firefox%20Accounts"
type queriesFile struct {
	Query []struct {
		Name   string `toml:"name"`
		Params string `toml:"params"`
	} `toml:"query"`
}

// LoadQueriesFile reads named queries from a TOML file, in file order.
func LoadQueriesFile(path string) ([]tracker.Query, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from user config
	if err != nil {
		return nil, fmt.Errorf("failed to read queries file: %w", err)
	}

	var f queriesFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse queries file %s: %w", path, err)
	}
	if len(f.Query) == 0 {
		return nil, fmt.Errorf("queries file %s defines no [[query]] entries", path)
	}

	queries := make([]tracker.Query, 0, len(f.Query))
	for i, entry := range f.Query {
		params := strings.TrimSpace(entry.Params)
		if params == "" {
			return nil, fmt.Errorf("queries file %s: query %d has empty params", path, i+1)
		}
		q, err := tracker.ParseQuery(params)
		if err != nil {
			return nil, fmt.Errorf("queries file %s: query %d: %w", path, i+1, err)
		}
		if len(q.Params) == 0 {
			return nil, fmt.Errorf("queries file %s: query %d has no parameters", path, i+1)
		}
		if entry.Name != "" {
			q.Name = entry.Name
		}
		queries = append(queries, q)
	}
	return queries, nil
}
