// Package config loads the on-disk configuration for the offload client:
// service base URL, part-cache root, and (optionally) a saved master key.
// Settings are stored as a simple key,value CSV file.
package config

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds the settings the download-and-decrypt core needs.
type Config struct {
	APIBaseURL string // e.g. https://offload.example.com
	CacheRoot  string // <app_cache_root>/offload_parts
	MasterKey  string // empty if the session has no key (missing_master_key)

	ProxyMode string // "no-proxy", "system" (NTLM proxy auth is out of scope)
	ProxyHost string
	ProxyPort int
}

// Default returns a Config with the conventional cache location and no
// proxy; LoadCSV starts from these defaults and overrides whatever the
// file specifies.
func Default() *Config {
	return &Config{
		CacheRoot: defaultCacheRoot(),
		ProxyMode: "no-proxy",
	}
}

func defaultCacheRoot() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "offload_parts")
}

// LoadCSV loads configuration from a "key,value" CSV file, overriding the
// defaults returned by Default(). A missing file is not an error: it
// simply means defaults apply.
func LoadCSV(path string) (*Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	for _, rec := range records {
		if len(rec) < 2 {
			continue
		}
		key := strings.TrimSpace(rec[0])
		value := strings.TrimSpace(rec[1])

		switch key {
		case "api_base_url":
			cfg.APIBaseURL = value
		case "cache_root":
			cfg.CacheRoot = value
		case "master_key":
			cfg.MasterKey = value
		case "proxy_mode":
			cfg.ProxyMode = value
		case "proxy_host":
			cfg.ProxyHost = value
		case "proxy_port":
			if port, err := strconv.Atoi(value); err == nil {
				cfg.ProxyPort = port
			}
		}
	}

	return cfg, nil
}

// ErrMissingMasterKey is returned where a caller needs the master key and
// the session has none.
var ErrMissingMasterKey = fmt.Errorf("missing_master_key")

// RequireMasterKey returns the configured master key or ErrMissingMasterKey.
func (c *Config) RequireMasterKey() (string, error) {
	if c.MasterKey == "" {
		return "", ErrMissingMasterKey
	}
	return c.MasterKey, nil
}
