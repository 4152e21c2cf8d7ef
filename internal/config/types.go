package config

// Config is the top-level chartembed configuration, corresponding to
// .chartembed.yml.
type Config struct {
	Port           int            `yaml:"port" koanf:"port"`
	DataDir        string         `yaml:"data_dir" koanf:"data_dir"`
	WasmDir        string         `yaml:"wasm_dir" koanf:"wasm_dir"`
	EscapeMarkup   bool           `yaml:"escape_markup" koanf:"escape_markup"`
	Superset       SupersetConfig `yaml:"superset" koanf:"superset"`
	SiteURLMapping []SiteMapping  `yaml:"site_url_mapping" koanf:"site_url_mapping"`
	Import         ImportConfig   `yaml:"import" koanf:"import"`
}

// SupersetConfig holds the connection settings for the Superset API.
type SupersetConfig struct {
	URI          string `yaml:"uri" koanf:"uri"`
	RefreshToken string `yaml:"refresh_token" koanf:"refresh_token"`
	DatabaseID   int64  `yaml:"database_id" koanf:"database_id"`
	Schema       string `yaml:"schema" koanf:"schema"`
	PageSize     int    `yaml:"page_size" koanf:"page_size"`
}

// SiteMapping rewrites a public Dataverse site URL to the URL the server
// should use to reach it.
type SiteMapping struct {
	From string `yaml:"from" koanf:"from"`
	To   string `yaml:"to" koanf:"to"`
}

// ImportConfig controls loading Dataverse files that have no Superset
// dataset yet. DatabasePath is the SQLite file Superset knows as
// superset.database_id.
type ImportConfig struct {
	Enabled      bool   `yaml:"enabled" koanf:"enabled"`
	DatabasePath string `yaml:"database_path" koanf:"database_path"`
	SampleRows   int    `yaml:"sample_rows" koanf:"sample_rows"`
}
