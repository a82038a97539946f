package services

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/GoBucketStore/go-bucket-store/models"
)

// UsageReader reports a guild's storage footprint. BucketRepository
// satisfies it.
type UsageReader interface {
	GuildUsageBytes(ctx context.Context, guildID models.GuildID) (int64, error)
}

// UsageCache caches usage figures between writes. Usage queries run on
// every quota-gated write, so a short-lived cache takes most of the load
// off the database.
type UsageCache interface {
	GetUsage(ctx context.Context, guildID models.GuildID) (int64, bool, error)
	SetUsage(ctx context.Context, guildID models.GuildID, usage int64) error
	Invalidate(ctx context.Context, guildID models.GuildID) error
	Close() error
}

// QuotaOptions configures a quota service instance.
type QuotaOptions struct {
	// DefaultMaxBytes applies to guilds without an override. Zero or
	// negative means unlimited.
	DefaultMaxBytes int64
	// GuildOverrides maps guild IDs to per-guild budgets.
	GuildOverrides map[models.GuildID]int64
	// Cache is optional; nil disables caching.
	Cache UsageCache
}

type quotaService struct {
	reader  UsageReader
	logger  models.Logger
	options QuotaOptions
}

func NewQuotaService(reader UsageReader, logger models.Logger, options QuotaOptions) models.QuotaService {
	return &quotaService{
		reader:  reader,
		logger:  logger,
		options: options,
	}
}

func (s *quotaService) budgetFor(guildID models.GuildID) int64 {
	if override, ok := s.options.GuildOverrides[guildID]; ok {
		return override
	}
	return s.options.DefaultMaxBytes
}

func (s *quotaService) UsageBytes(ctx context.Context, guildID models.GuildID) (int64, error) {
	if s.options.Cache != nil {
		usage, ok, err := s.options.Cache.GetUsage(ctx, guildID)
		if err != nil {
			s.logger.Warn("usage cache read failed", "guild_id", guildID, "error", err)
		} else if ok {
			return usage, nil
		}
	}

	usage, err := s.reader.GuildUsageBytes(ctx, guildID)
	if err != nil {
		return 0, err
	}

	if s.options.Cache != nil {
		if err := s.options.Cache.SetUsage(ctx, guildID, usage); err != nil {
			s.logger.Warn("usage cache write failed", "guild_id", guildID, "error", err)
		}
	}
	return usage, nil
}

func (s *quotaService) CheckWrite(ctx context.Context, guildID models.GuildID, incomingBytes int64) error {
	budget := s.budgetFor(guildID)
	if budget <= 0 {
		return nil
	}

	usage, err := s.UsageBytes(ctx, guildID)
	if err != nil {
		return err
	}

	if usage+incomingBytes > budget {
		return models.ErrGuildStorageLimitReached
	}
	return nil
}

func (s *quotaService) InvalidateUsage(ctx context.Context, guildID models.GuildID) error {
	if s.options.Cache == nil {
		return nil
	}
	return s.options.Cache.Invalidate(ctx, guildID)
}

// ------------------------------------

type memoryUsageEntry struct {
	usage     int64
	expiresAt time.Time
}

// memoryUsageCache is a process-local UsageCache with per-entry expiry.
type memoryUsageCache struct {
	mu      sync.RWMutex
	entries map[models.GuildID]memoryUsageEntry
	ttl     time.Duration
}

func NewMemoryUsageCache(ttl time.Duration) UsageCache {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &memoryUsageCache{
		entries: make(map[models.GuildID]memoryUsageEntry),
		ttl:     ttl,
	}
}

func (c *memoryUsageCache) GetUsage(ctx context.Context, guildID models.GuildID) (int64, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[guildID]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return 0, false, nil
	}
	return entry.usage, true, nil
}

func (c *memoryUsageCache) SetUsage(ctx context.Context, guildID models.GuildID, usage int64) error {
	c.mu.Lock()
	c.entries[guildID] = memoryUsageEntry{
		usage:     usage,
		expiresAt: time.Now().Add(c.ttl),
	}
	c.mu.Unlock()
	return nil
}

func (c *memoryUsageCache) Invalidate(ctx context.Context, guildID models.GuildID) error {
	c.mu.Lock()
	delete(c.entries, guildID)
	c.mu.Unlock()
	return nil
}

func (c *memoryUsageCache) Close() error {
	c.mu.Lock()
	c.entries = make(map[models.GuildID]memoryUsageEntry)
	c.mu.Unlock()
	return nil
}

// ------------------------------------

// redisUsageCache shares usage figures across processes.
type redisUsageCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisUsageCache(client *redis.Client, ttl time.Duration) UsageCache {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &redisUsageCache{client: client, ttl: ttl}
}

func (c *redisUsageCache) key(guildID models.GuildID) string {
	return fmt.Sprintf("bucketstore:usage:%d", guildID)
}

func (c *redisUsageCache) GetUsage(ctx context.Context, guildID models.GuildID) (int64, bool, error) {
	val, err := c.client.Get(ctx, c.key(guildID)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis get error: %w", err)
	}

	usage, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt usage cache value %q: %w", val, err)
	}
	return usage, true, nil
}

func (c *redisUsageCache) SetUsage(ctx context.Context, guildID models.GuildID, usage int64) error {
	if err := c.client.Set(ctx, c.key(guildID), strconv.FormatInt(usage, 10), c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

func (c *redisUsageCache) Invalidate(ctx context.Context, guildID models.GuildID) error {
	if err := c.client.Del(ctx, c.key(guildID)).Err(); err != nil {
		return fmt.Errorf("redis delete error: %w", err)
	}
	return nil
}

func (c *redisUsageCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
