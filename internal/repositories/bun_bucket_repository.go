package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/GoBucketStore/go-bucket-store/internal/util"
	"github.com/GoBucketStore/go-bucket-store/models"
)

// entryColumns is the full column list of bucket_store, in scan order.
const entryColumns = "guild_id, plugin_id, bucket, key, created_at, updated_at, expires_at, value_json, value_float"

// expiredGuard holds inside ON CONFLICT clauses when the conflicting row is
// expired relative to the statement's timestamp (excluded.updated_at).
const expiredGuard = "bucket_store.expires_at IS NOT NULL AND bucket_store.expires_at <= excluded.updated_at"

// bucketRow mirrors the bucket_store table for raw scans.
type bucketRow struct {
	GuildID    int64      `bun:"guild_id"`
	PluginID   int64      `bun:"plugin_id"`
	Bucket     string     `bun:"bucket"`
	Key        string     `bun:"key"`
	CreatedAt  time.Time  `bun:"created_at"`
	UpdatedAt  time.Time  `bun:"updated_at"`
	ExpiresAt  *time.Time `bun:"expires_at"`
	ValueJSON  []byte     `bun:"value_json"`
	ValueFloat *float64   `bun:"value_float"`
}

// BunBucketRepository implements BucketRepository on a bun database handle.
// Every mutation is a single statement; concurrent writers are serialized by
// the database's per-row atomicity, never by reading first.
type BunBucketRepository struct {
	db       bun.IDB
	provider string
	logger   models.Logger
}

func NewBunBucketRepository(db bun.IDB, provider string, logger models.Logger) BucketRepository {
	return &BunBucketRepository{db: db, provider: provider, logger: logger}
}

func (r *BunBucketRepository) WithTx(tx bun.IDB) BucketRepository {
	return &BunBucketRepository{db: tx, provider: r.provider, logger: r.logger}
}

// likeKey returns the dialect's case-insensitive pattern predicate for the
// key column. SQLite's LIKE is case-insensitive for ASCII out of the box.
func (r *BunBucketRepository) likeKey() string {
	if r.provider == "postgres" {
		return `key ILIKE ? ESCAPE '\'`
	}
	return `key LIKE ? ESCAPE '\'`
}

func (r *BunBucketRepository) toEntry(row *bucketRow) *models.Entry {
	value, err := models.DecodeValue(row.ValueFloat, row.ValueJSON)
	if err != nil {
		r.logger.Error("corrupt bucket entry",
			"guild_id", row.GuildID,
			"plugin_id", row.PluginID,
			"bucket", row.Bucket,
			"key", row.Key,
		)
	}
	return &models.Entry{
		GuildID:   models.GuildID(row.GuildID),
		PluginID:  models.PluginID(row.PluginID),
		Bucket:    row.Bucket,
		Key:       row.Key,
		Value:     value,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
		ExpiresAt: row.ExpiresAt,
	}
}

// valueColumns splits a Value into its two storage columns.
func valueColumns(v models.Value) (valueJSON []byte, valueFloat *float64, err error) {
	switch v.Kind {
	case models.ValueKindJSON:
		raw := v.JSON
		if raw == nil {
			raw = []byte("null")
		}
		return raw, nil, nil
	case models.ValueKindDouble:
		f := v.Double
		return nil, &f, nil
	default:
		return nil, nil, models.ErrNilValue
	}
}

// jsonArg binds the JSON column as a string literal so it casts cleanly
// into jsonb on Postgres and text on SQLite. nil stays NULL.
func jsonArg(valueJSON []byte) any {
	if valueJSON == nil {
		return nil
	}
	return string(valueJSON)
}

func expiryFrom(now time.Time, ttl *time.Duration) *time.Time {
	if ttl == nil {
		return nil
	}
	t := now.Add(*ttl)
	return &t
}

func (r *BunBucketRepository) scanOne(ctx context.Context, query string, args ...any) (*models.Entry, error) {
	row := new(bucketRow)
	err := r.db.NewRaw(query, args...).Scan(ctx, row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return r.toEntry(row), nil
}

func (r *BunBucketRepository) Get(ctx context.Context, guildID models.GuildID, pluginID models.PluginID, bucket, key string) (*models.Entry, error) {
	now := time.Now().UTC()
	return r.scanOne(ctx, `
		SELECT `+entryColumns+`
		FROM bucket_store
		WHERE guild_id = ? AND plugin_id = ? AND bucket = ? AND key = ?
		AND (expires_at IS NULL OR expires_at > ?)`,
		int64(guildID), int64(pluginID), bucket, key, now,
	)
}

func (r *BunBucketRepository) Set(ctx context.Context, guildID models.GuildID, pluginID models.PluginID, bucket, key string, value models.Value, ttl *time.Duration) (*models.Entry, error) {
	valueJSON, valueFloat, err := valueColumns(value)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	// Overwriting an expired row is a recreation: created_at is reset.
	// A live row keeps its original created_at.
	return r.scanOne(ctx, `
		INSERT INTO bucket_store (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (guild_id, plugin_id, bucket, key) DO UPDATE SET
			created_at = CASE WHEN `+expiredGuard+` THEN excluded.created_at ELSE bucket_store.created_at END,
			updated_at = excluded.updated_at,
			expires_at = excluded.expires_at,
			value_json = excluded.value_json,
			value_float = excluded.value_float
		RETURNING `+entryColumns,
		int64(guildID), int64(pluginID), bucket, key, now, now, expiryFrom(now, ttl), jsonArg(valueJSON), valueFloat,
	)
}

func (r *BunBucketRepository) SetIf(ctx context.Context, cond models.SetCondition, guildID models.GuildID, pluginID models.PluginID, bucket, key string, value models.Value, ttl *time.Duration) (*models.Entry, error) {
	valueJSON, valueFloat, err := valueColumns(value)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	switch cond {
	case models.IfExists:
		// Guarded update: only a live row qualifies. No row updated means
		// the condition failed.
		return r.scanOne(ctx, `
			UPDATE bucket_store SET
				updated_at = ?,
				expires_at = ?,
				value_json = ?,
				value_float = ?
			WHERE guild_id = ? AND plugin_id = ? AND bucket = ? AND key = ?
			AND (expires_at IS NULL OR expires_at > ?)
			RETURNING `+entryColumns,
			now, expiryFrom(now, ttl), jsonArg(valueJSON), valueFloat,
			int64(guildID), int64(pluginID), bucket, key, now,
		)
	case models.IfNotExists:
		// Plain insert when the key is free; on conflict the write only
		// goes through when the existing row is expired, recreating it.
		return r.scanOne(ctx, `
			INSERT INTO bucket_store (`+entryColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (guild_id, plugin_id, bucket, key) DO UPDATE SET
				created_at = excluded.created_at,
				updated_at = excluded.updated_at,
				expires_at = excluded.expires_at,
				value_json = excluded.value_json,
				value_float = excluded.value_float
			WHERE `+expiredGuard+`
			RETURNING `+entryColumns,
			int64(guildID), int64(pluginID), bucket, key, now, now, expiryFrom(now, ttl), jsonArg(valueJSON), valueFloat,
		)
	default:
		return nil, models.ErrInvalidCondition
	}
}

func (r *BunBucketRepository) Increment(ctx context.Context, guildID models.GuildID, pluginID models.PluginID, bucket, key string, delta float64) (*models.Entry, error) {
	now := time.Now().UTC()

	// A live row accumulates and keeps its TTL; an expired row is recreated
	// at delta with no expiry. A live JSON document is treated as 0 and
	// becomes numeric.
	return r.scanOne(ctx, `
		INSERT INTO bucket_store (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, NULL, NULL, ?)
		ON CONFLICT (guild_id, plugin_id, bucket, key) DO UPDATE SET
			created_at = CASE WHEN `+expiredGuard+` THEN excluded.created_at ELSE bucket_store.created_at END,
			updated_at = excluded.updated_at,
			expires_at = CASE WHEN `+expiredGuard+` THEN NULL ELSE bucket_store.expires_at END,
			value_json = NULL,
			value_float = CASE WHEN `+expiredGuard+` THEN excluded.value_float ELSE excluded.value_float + coalesce(bucket_store.value_float, 0) END
		RETURNING `+entryColumns,
		int64(guildID), int64(pluginID), bucket, key, now, now, delta,
	)
}

func (r *BunBucketRepository) Delete(ctx context.Context, guildID models.GuildID, pluginID models.PluginID, bucket, key string) (*models.Entry, error) {
	now := time.Now().UTC()
	entry, err := r.scanOne(ctx, `
		DELETE FROM bucket_store
		WHERE guild_id = ? AND plugin_id = ? AND bucket = ? AND key = ?
		RETURNING `+entryColumns,
		int64(guildID), int64(pluginID), bucket, key,
	)
	if err != nil || entry == nil {
		return nil, err
	}
	// The row is gone either way; an expired one was already invisible.
	if entry.ExpiresAt != nil && !entry.ExpiresAt.After(now) {
		return nil, nil
	}
	return entry, nil
}

func (r *BunBucketRepository) DeleteMatching(ctx context.Context, guildID models.GuildID, pluginID models.PluginID, bucket, keyPattern string) (int64, error) {
	now := time.Now().UTC()

	// Only live rows count toward the result; expired ones are left for the
	// reaper so the returned number matches what a reader could see.
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM bucket_store
		WHERE guild_id = ? AND plugin_id = ? AND bucket = ? AND `+r.likeKey()+`
		AND (expires_at IS NULL OR expires_at > ?)`,
		int64(guildID), int64(pluginID), bucket, util.GlobToLike(keyPattern), now,
	)
	if err != nil {
		return 0, fmt.Errorf("database error: %w", err)
	}
	return res.RowsAffected()
}

func (r *BunBucketRepository) DeleteGuild(ctx context.Context, guildID models.GuildID) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM bucket_store
		WHERE guild_id = ?`,
		int64(guildID),
	)
	if err != nil {
		return 0, fmt.Errorf("database error: %w", err)
	}
	return res.RowsAffected()
}

func (r *BunBucketRepository) List(ctx context.Context, guildID models.GuildID, pluginID models.PluginID, bucket, keyPattern, afterKey string, limit int) ([]models.Entry, error) {
	now := time.Now().UTC()

	var rows []bucketRow
	err := r.db.NewRaw(`
		SELECT `+entryColumns+`
		FROM bucket_store
		WHERE guild_id = ? AND plugin_id = ? AND bucket = ? AND `+r.likeKey()+` AND key > ?
		AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY key ASC
		LIMIT ?`,
		int64(guildID), int64(pluginID), bucket, util.GlobToLike(keyPattern), afterKey, now, limit,
	).Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	entries := make([]models.Entry, 0, len(rows))
	for i := range rows {
		entries = append(entries, *r.toEntry(&rows[i]))
	}
	return entries, nil
}

func (r *BunBucketRepository) Count(ctx context.Context, guildID models.GuildID, pluginID models.PluginID, bucket, keyPattern string) (int64, error) {
	now := time.Now().UTC()

	var count int64
	err := r.db.NewRaw(`
		SELECT count(*)
		FROM bucket_store
		WHERE guild_id = ? AND plugin_id = ? AND bucket = ? AND `+r.likeKey()+`
		AND (expires_at IS NULL OR expires_at > ?)`,
		int64(guildID), int64(pluginID), bucket, util.GlobToLike(keyPattern), now,
	).Scan(ctx, &count)
	if err != nil {
		return 0, fmt.Errorf("database error: %w", err)
	}
	return count, nil
}

func (r *BunBucketRepository) ListSorted(ctx context.Context, guildID models.GuildID, pluginID models.PluginID, bucket string, order models.SortOrder, offset, limit int) ([]models.Entry, error) {
	if !order.Valid() {
		return nil, models.ErrInvalidSortOrder
	}
	now := time.Now().UTC()

	direction := "ASC"
	if order == models.OrderDescending {
		direction = "DESC"
	}

	// Only numeric entries participate; key is the final tie-break so pages
	// are stable when values and timestamps collide.
	var rows []bucketRow
	err := r.db.NewRaw(`
		SELECT `+entryColumns+`
		FROM bucket_store
		WHERE guild_id = ? AND plugin_id = ? AND bucket = ?
		AND value_float IS NOT NULL
		AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY value_float `+direction+`, updated_at `+direction+`, key ASC
		LIMIT ? OFFSET ?`,
		int64(guildID), int64(pluginID), bucket, now, limit, offset,
	).Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	entries := make([]models.Entry, 0, len(rows))
	for i := range rows {
		entries = append(entries, *r.toEntry(&rows[i]))
	}
	return entries, nil
}

func (r *BunBucketRepository) GuildUsageBytes(ctx context.Context, guildID models.GuildID) (int64, error) {
	now := time.Now().UTC()

	// Usage is the footprint of live rows only; expired rows awaiting
	// reclamation must not eat into the guild's budget.
	var query string
	if r.provider == "postgres" {
		query = `
			SELECT coalesce(sum(pg_column_size(t)), 0)
			FROM bucket_store t
			WHERE guild_id = ?
			AND (expires_at IS NULL OR expires_at > ?)`
	} else {
		// SQLite has no per-row size function; approximate with column
		// lengths plus a fixed per-row overhead.
		query = `
			SELECT coalesce(sum(
				48 + length(bucket) + length(key)
				+ coalesce(length(value_json), 0)
				+ CASE WHEN value_float IS NULL THEN 0 ELSE 8 END
			), 0)
			FROM bucket_store
			WHERE guild_id = ?
			AND (expires_at IS NULL OR expires_at > ?)`
	}

	var usage int64
	err := r.db.NewRaw(query, int64(guildID), now).Scan(ctx, &usage)
	if err != nil {
		return 0, fmt.Errorf("database error: %w", err)
	}
	return usage, nil
}

func (r *BunBucketRepository) DeleteExpired(ctx context.Context, before time.Time, limit int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM bucket_store
		WHERE (guild_id, plugin_id, bucket, key) IN (
			SELECT guild_id, plugin_id, bucket, key
			FROM bucket_store
			WHERE expires_at IS NOT NULL AND expires_at <= ?
			LIMIT ?
		)`,
		before.UTC(), limit,
	)
	if err != nil {
		return 0, fmt.Errorf("database error: %w", err)
	}
	return res.RowsAffected()
}
