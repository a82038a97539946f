package quota

import (
	"fmt"
	"os"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/GoBucketStore/go-bucket-store/env"
	"github.com/GoBucketStore/go-bucket-store/internal/repositories"
	"github.com/GoBucketStore/go-bucket-store/internal/services"
	"github.com/GoBucketStore/go-bucket-store/internal/util"
	"github.com/GoBucketStore/go-bucket-store/models"
)

// QuotaPlugin enforces per-guild storage budgets. It registers a quota
// service that the storage layer consults before every write.
type QuotaPlugin struct {
	config QuotaPluginConfig
	logger models.Logger
	cache  services.UsageCache
}

func New(config QuotaPluginConfig) *QuotaPlugin {
	config.ApplyDefaults()
	return &QuotaPlugin{
		config: config,
	}
}

func (p *QuotaPlugin) Metadata() models.PluginMetadata {
	return models.PluginMetadata{
		ID:          models.PluginQuota,
		Version:     "1.0.0",
		Description: "Enforces per-guild storage budgets",
	}
}

func (p *QuotaPlugin) Config() any {
	return p.config
}

func (p *QuotaPlugin) Init(ctx *models.PluginContext) error {
	p.logger = ctx.Logger

	if err := util.LoadPluginConfig(ctx.GetConfig(), p.Metadata().ID, &p.config); err != nil {
		return err
	}
	p.config.ApplyDefaults()

	overrides, err := parseGuildOverrides(p.config.Guilds)
	if err != nil {
		return err
	}

	cache, err := p.buildCache()
	if err != nil {
		return err
	}
	p.cache = cache

	reader := repositories.NewBunBucketRepository(ctx.DB, ctx.GetConfig().Database.Provider, ctx.Logger)
	service := services.NewQuotaService(reader, ctx.Logger, services.QuotaOptions{
		DefaultMaxBytes: p.config.DefaultMaxBytes,
		GuildOverrides:  overrides,
		Cache:           cache,
	})

	ctx.ServiceRegistry.Register(models.ServiceQuota.String(), service)
	return nil
}

func (p *QuotaPlugin) buildCache() (services.UsageCache, error) {
	switch p.config.Cache.Provider {
	case "memory":
		return services.NewMemoryUsageCache(p.config.Cache.TTL), nil
	case "redis":
		url := p.config.Cache.URL
		if envURL := os.Getenv(env.EnvRedisURL); envURL != "" {
			url = envURL
		}
		if url == "" {
			return nil, fmt.Errorf("quota cache provider is redis but no URL is configured")
		}
		opt, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("invalid Redis URL: %w", err)
		}
		return services.NewRedisUsageCache(redis.NewClient(opt), p.config.Cache.TTL), nil
	default:
		return nil, fmt.Errorf("unknown quota cache provider: %q", p.config.Cache.Provider)
	}
}

func parseGuildOverrides(guilds map[string]int64) (map[models.GuildID]int64, error) {
	if len(guilds) == 0 {
		return nil, nil
	}

	overrides := make(map[models.GuildID]int64, len(guilds))
	for raw, budget := range guilds {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid guild ID %q in quota overrides: %w", raw, err)
		}
		overrides[models.GuildID(id)] = budget
	}
	return overrides, nil
}

func (p *QuotaPlugin) Close() error {
	if p.cache != nil {
		return p.cache.Close()
	}
	return nil
}
