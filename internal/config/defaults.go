package config

// DefaultConfigFile is the config path used when --config is not given.
const DefaultConfigFile = ".chartembed.yml"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:    8080,
		DataDir: "data",
		WasmDir: "web/dist",
		Superset: SupersetConfig{
			URI:        "http://localhost:8088/",
			DatabaseID: 1,
			Schema:     "public",
			PageSize:   20,
		},
		Import: ImportConfig{
			DatabasePath: "data/superset-data.db",
			SampleRows:   500,
		},
	}
}

// MapSiteURL returns the configured replacement for siteURL, or siteURL
// itself when no mapping matches.
func (c *Config) MapSiteURL(siteURL string) string {
	for _, m := range c.SiteURLMapping {
		if m.From == siteURL {
			return m.To
		}
	}
	return siteURL
}
