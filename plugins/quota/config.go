package quota

import "time"

type QuotaPluginConfig struct {
	Enabled bool `json:"enabled" toml:"enabled"`

	// DefaultMaxBytes is the storage budget applied to every guild without an
	// override. Zero or negative disables enforcement.
	DefaultMaxBytes int64 `json:"default_max_bytes" toml:"default_max_bytes"`

	// Guilds maps guild IDs (as decimal strings, TOML tables cannot carry
	// int64 keys) to per-guild budgets in bytes.
	Guilds map[string]int64 `json:"guilds" toml:"guilds"`

	// Cache configures where usage figures are cached between writes.
	Cache QuotaCacheConfig `json:"cache" toml:"cache"`
}

// QuotaCacheConfig selects the usage cache backend.
// Options: "memory" (default) or "redis".
type QuotaCacheConfig struct {
	Provider string `json:"provider" toml:"provider"`

	// TTL bounds how stale a cached usage figure may get. Writes invalidate
	// the cache anyway, so this only matters for out-of-band mutations.
	// Defaults to 10 seconds.
	TTL time.Duration `json:"ttl" toml:"ttl"`

	// URL is the Redis connection URL, used when Provider is "redis".
	URL string `json:"url" toml:"url"`
}

func (config *QuotaPluginConfig) ApplyDefaults() {
	if config.Cache.Provider == "" {
		config.Cache.Provider = "memory"
	}
	if config.Cache.TTL <= 0 {
		config.Cache.TTL = 10 * time.Second
	}
}
