// Package config provides centralized configuration for docbase.
//
// Configuration follows a three-tier hierarchy, narrowed from
// entitydb's server-wide config to what the embedded document-store
// core needs:
//
//  1. Fields the caller sets on the returned Config after Load (highest
//     priority)
//  2. Environment variables
//  3. An optional YAML config file (lowest priority)
//
// Every field has a sensible default and can be overridden through the
// environment; every field except CipherSecret can also be set in a
// config file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration values docbase needs to open a database
// directory.
type Config struct {
	// DBFilesLocation is the directory collections are persisted under.
	// Environment: DOCBASE_DATA_PATH
	// Default: "./data"
	// Each collection lives at <DBFilesLocation>/<name>.json.
	DBFilesLocation string `yaml:"dataPath"`

	// BaseScanPackage names the namespace entity types are conventionally
	// grouped under for documentation purposes.
	// Environment: DOCBASE_SCAN_PACKAGE
	// Default: ""
	//
	// Go has no runtime equivalent of reflective package/annotation
	// scanning, so this field is NOT used to discover entity types —
	// discovery is always explicit, via descriptor.Register. It is kept
	// only so the configuration surface matches spec.md §6's enumerated
	// options; see DESIGN.md Open Question #3.
	BaseScanPackage string `yaml:"baseScanPackage"`

	// CipherSecret is the symmetric key material used to derive per-field
	// encryption keys. Required if any registered descriptor declares
	// secret fields.
	// Environment: DOCBASE_CIPHER_SECRET
	CipherSecret string `yaml:"-"`

	// Charset is declared for interface fidelity with spec.md §6. The
	// store always operates on UTF-8 text; any other value is rejected at
	// Load time rather than silently honored.
	// Environment: DOCBASE_CHARSET
	// Default: "UTF-8"
	Charset string `yaml:"charset"`

	// WatchDebounce is the coalescing window the file watcher waits after
	// the last observed change to a collection file before dispatching a
	// single reload, per spec.md §4.E's recommended 50-250ms range.
	// Environment: DOCBASE_WATCH_DEBOUNCE_MS
	// Default: 150ms
	WatchDebounce time.Duration `yaml:"watchDebounceMs"`

	// DisableWatcher turns off the file watcher entirely. Useful for
	// short-lived processes or tests that don't want a background
	// goroutine outliving the test.
	// Environment: DOCBASE_DISABLE_WATCHER
	DisableWatcher bool `yaml:"disableWatcher"`
}

// Default returns a Config with every field set to its documented default.
func Default() *Config {
	return &Config{
		DBFilesLocation: "./data",
		Charset:         "UTF-8",
		WatchDebounce:   150 * time.Millisecond,
	}
}

// Load builds a Config starting from defaults, applying an optional YAML
// file named by DOCBASE_CONFIG_FILE (if set), then environment variables,
// in increasing priority order.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("DOCBASE_CONFIG_FILE"); path != "" {
		if err := cfg.loadYAMLFile(path); err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", path, err)
		}
	}

	cfg.loadEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadYAMLFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadEnv() {
	if v := os.Getenv("DOCBASE_DATA_PATH"); v != "" {
		c.DBFilesLocation = v
	}
	if v := os.Getenv("DOCBASE_SCAN_PACKAGE"); v != "" {
		c.BaseScanPackage = v
	}
	if v := os.Getenv("DOCBASE_CIPHER_SECRET"); v != "" {
		c.CipherSecret = v
	}
	if v := os.Getenv("DOCBASE_CHARSET"); v != "" {
		c.Charset = v
	}
	if v := os.Getenv("DOCBASE_WATCH_DEBOUNCE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			c.WatchDebounce = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("DOCBASE_DISABLE_WATCHER"); v != "" {
		c.DisableWatcher = strings.EqualFold(v, "true") || v == "1"
	}
}

// Validate rejects configuration that can never produce a working store.
func (c *Config) Validate() error {
	if c.DBFilesLocation == "" {
		return fmt.Errorf("config: dbFilesLocation must not be empty")
	}
	if !strings.EqualFold(c.Charset, "UTF-8") {
		return fmt.Errorf("config: unsupported charset %q (only UTF-8 is implemented)", c.Charset)
	}
	if c.WatchDebounce < 0 {
		return fmt.Errorf("config: watchDebounceMs must not be negative")
	}
	return nil
}
