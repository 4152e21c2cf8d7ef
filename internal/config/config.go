package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides. A double underscore separates
// nested keys: CHARTEMBED_SUPERSET__URI -> superset.uri.
const EnvPrefix = "CHARTEMBED_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (CHARTEMBED_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.Superset.URI == "" {
		return fmt.Errorf("superset.uri is required")
	}
	u, err := url.Parse(c.Superset.URI)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid superset.uri %q: must be an absolute URL", c.Superset.URI)
	}
	if c.Superset.PageSize <= 0 {
		return fmt.Errorf("superset.page_size must be positive")
	}
	for i, m := range c.SiteURLMapping {
		if m.From == "" || m.To == "" {
			return fmt.Errorf("site_url_mapping[%d]: from and to are required", i)
		}
	}
	if c.Import.Enabled {
		if c.Import.DatabasePath == "" {
			return fmt.Errorf("import.database_path is required when import is enabled")
		}
		if c.Import.SampleRows <= 0 {
			return fmt.Errorf("import.sample_rows must be positive")
		}
		if c.Superset.DatabaseID <= 0 {
			return fmt.Errorf("superset.database_id is required when import is enabled")
		}
	}
	return nil
}
