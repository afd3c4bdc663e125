// Package clientconfig loads the root Client's Config from a TOML file,
// following the teacher's config package layout (a single top-level
// struct with `toml` tags per section) adapted to this domain's settings
// (SPEC_FULL.md section 6).
package clientconfig

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// File is the on-disk TOML shape. Durations are strings (e.g. "30s",
// "168h") parsed by the caller via time.ParseDuration, matching the
// teacher's config.go convention of storing durations as strings.
type File struct {
	BaseURL        string `toml:"base_url"`
	RequestPolicy  string `toml:"request_policy"`
	CacheTTL       string `toml:"cache_ttl"`
	DBPath         string `toml:"db_path"`
	Lang           string `toml:"lang"`
	FullTextSearch bool   `toml:"full_text_search"`
	MaxExpandDepth int    `toml:"max_expand_depth"`
}

// DefaultMaxExpandDepth mirrors query.MaxExpandDepth; duplicated here
// (rather than imported) to keep clientconfig free of a dependency on the
// query package, whose Params shape may evolve independently of config
// parsing.
const DefaultMaxExpandDepth = 6

// Load reads and parses a TOML config file at path, filling in documented
// defaults for any field the file omits.
func Load(path string) (File, error) {
	var f File

	if _, err := toml.DecodeFile(path, &f); err != nil {
		return File{}, fmt.Errorf("pbsync: clientconfig: decoding %s: %w", path, err)
	}

	if f.RequestPolicy == "" {
		f.RequestPolicy = "CacheAndNetwork"
	}

	if f.MaxExpandDepth <= 0 {
		f.MaxExpandDepth = DefaultMaxExpandDepth
	}

	return f, nil
}
