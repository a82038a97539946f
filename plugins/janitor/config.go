package janitor

import "time"

type JanitorPluginConfig struct {
	Enabled bool `json:"enabled" toml:"enabled"`

	// Interval controls how often expired entries are swept from the database.
	// Defaults to 1 minute.
	Interval time.Duration `json:"interval" toml:"interval"`

	// BatchSize caps how many rows a single sweep statement removes. The sweep
	// keeps issuing batches until a batch comes back short, so large backlogs
	// are drained without one long-running delete. Defaults to 500.
	BatchSize int `json:"batch_size" toml:"batch_size"`
}

func (config *JanitorPluginConfig) ApplyDefaults() {
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 500
	}
}
