package models

import (
	"context"
	"time"
)

// BucketStorage is the operation surface of the bucket store. Entries are
// addressed by (guild, plugin, bucket, key); an expired entry behaves as
// absent everywhere. Implementations perform each mutation as a single
// atomic statement against the backing database.
type BucketStorage interface {
	// Get returns the live entry for the key, or nil when the key is
	// absent or expired.
	Get(ctx context.Context, guildID GuildID, pluginID PluginID, bucket, key string) (*Entry, error)

	// Set unconditionally writes the value, creating or overwriting. A nil
	// ttl stores a non-expiring entry. Returns the stored entry.
	Set(ctx context.Context, guildID GuildID, pluginID PluginID, bucket, key string, value Value, ttl *time.Duration) (*Entry, error)

	// SetIf writes only when cond holds against the current visibility of
	// the key. Returns nil without error when the condition fails.
	SetIf(ctx context.Context, cond SetCondition, guildID GuildID, pluginID PluginID, bucket, key string, value Value, ttl *time.Duration) (*Entry, error)

	// Increment atomically adds delta to a numeric entry, creating it at
	// delta when absent or expired. Returns the resulting entry.
	Increment(ctx context.Context, guildID GuildID, pluginID PluginID, bucket, key string, delta float64) (*Entry, error)

	// Delete removes the key and returns the entry that was removed, or
	// nil when the key was absent or expired.
	Delete(ctx context.Context, guildID GuildID, pluginID PluginID, bucket, key string) (*Entry, error)

	// DeleteMatching removes every live key in the bucket matching the glob
	// pattern ('*' any run, '?' one character) and returns how many were
	// removed.
	DeleteMatching(ctx context.Context, guildID GuildID, pluginID PluginID, bucket, keyPattern string) (int64, error)

	// DeleteGuild removes every entry of the guild across all plugins and
	// buckets.
	DeleteGuild(ctx context.Context, guildID GuildID) (int64, error)

	// List returns up to limit live entries with keys matching the glob
	// pattern and strictly greater than afterKey, in ascending key order.
	// Pass afterKey == "" for the first page.
	List(ctx context.Context, guildID GuildID, pluginID PluginID, bucket, keyPattern, afterKey string, limit int) ([]Entry, error)

	// Count returns the number of live entries matching the glob pattern.
	Count(ctx context.Context, guildID GuildID, pluginID PluginID, bucket, keyPattern string) (int64, error)

	// ListSorted returns live numeric entries of the bucket ordered by
	// value, paginated by offset. Document-valued entries are skipped.
	ListSorted(ctx context.Context, guildID GuildID, pluginID PluginID, bucket string, order SortOrder, offset, limit int) ([]Entry, error)

	// GuildUsageBytes estimates the total storage the guild's live entries
	// occupy.
	GuildUsageBytes(ctx context.Context, guildID GuildID) (int64, error)
}
