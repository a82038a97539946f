package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/GoBucketStore/go-bucket-store/events"
	"github.com/GoBucketStore/go-bucket-store/internal/repositories"
	"github.com/GoBucketStore/go-bucket-store/models"
	"github.com/GoBucketStore/go-bucket-store/services"
)

const (
	defaultListLimit = 25
	maxListLimit     = 100

	// rough per-row overhead used when estimating the size of an incoming
	// write for quota checks
	rowOverheadBytes = 48
)

type bucketService struct {
	config   *models.Config
	repo     repositories.BucketRepository
	bus      models.EventBus
	registry models.ServiceRegistry
	logger   models.Logger
}

func NewBucketService(
	config *models.Config,
	repo repositories.BucketRepository,
	bus models.EventBus,
	registry models.ServiceRegistry,
	logger models.Logger,
) services.BucketStoreService {
	return &bucketService{
		config:   config,
		repo:     repo,
		bus:      bus,
		registry: registry,
		logger:   logger,
	}
}

func (s *bucketService) maxValueBytes() int {
	if s.config != nil && s.config.Storage.MaxValueBytes > 0 {
		return s.config.Storage.MaxValueBytes
	}
	return models.DefaultMaxValueBytes
}

func validateAddress(bucket, key string) error {
	if len(bucket) > models.MaxBucketNameLength {
		return models.ErrBucketNameTooLong
	}
	if len(key) > models.MaxKeyLength {
		return models.ErrKeyTooLong
	}
	return nil
}

func (s *bucketService) validateValue(value models.Value) error {
	if value.IsZero() {
		return models.ErrNilValue
	}
	if value.Kind == models.ValueKindJSON && len(value.JSON) > s.maxValueBytes() {
		return models.ErrValueTooLarge
	}
	return nil
}

// quota returns the quota service when one is registered, nil otherwise.
func (s *bucketService) quota() models.QuotaService {
	if s.registry == nil {
		return nil
	}
	q, _ := s.registry.Get(models.ServiceQuota.String()).(models.QuotaService)
	return q
}

func (s *bucketService) checkQuota(ctx context.Context, guildID models.GuildID, bucket, key string, value models.Value) error {
	q := s.quota()
	if q == nil {
		return nil
	}

	incoming := int64(rowOverheadBytes + len(bucket) + len(key))
	if value.Kind == models.ValueKindJSON {
		incoming += int64(len(value.JSON))
	} else {
		incoming += 8
	}

	return q.CheckWrite(ctx, guildID, incoming)
}

func (s *bucketService) invalidateUsage(ctx context.Context, guildID models.GuildID) {
	q := s.quota()
	if q == nil {
		return
	}
	if err := q.InvalidateUsage(ctx, guildID); err != nil {
		s.logger.Warn("failed to invalidate usage cache", "guild_id", guildID, "error", err)
	}
}

// publish emits a change event. Publishing is fire and forget: the mutation
// already happened, so failures are logged and never returned to the caller.
func (s *bucketService) publish(ctx context.Context, eventType string, payload any) {
	if s.bus == nil || s.config == nil || !s.config.Storage.PublishEvents {
		return
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to marshal event payload", "event_type", eventType, "error", err)
		return
	}

	if err := s.bus.Publish(ctx, models.Event{Type: eventType, Payload: raw}); err != nil {
		s.logger.Error("failed to publish event", "event_type", eventType, "error", err)
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func (s *bucketService) Get(ctx context.Context, guildID models.GuildID, pluginID models.PluginID, bucket, key string) (*models.Entry, error) {
	if err := validateAddress(bucket, key); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, guildID, pluginID, bucket, key)
}

func (s *bucketService) Set(ctx context.Context, guildID models.GuildID, pluginID models.PluginID, bucket, key string, value models.Value, ttl *time.Duration) (*models.Entry, error) {
	if err := validateAddress(bucket, key); err != nil {
		return nil, err
	}
	if err := s.validateValue(value); err != nil {
		return nil, err
	}
	if err := s.checkQuota(ctx, guildID, bucket, key, value); err != nil {
		return nil, err
	}

	entry, err := s.repo.Set(ctx, guildID, pluginID, bucket, key, value, ttl)
	if err != nil {
		return nil, err
	}

	s.invalidateUsage(ctx, guildID)
	s.publish(ctx, events.EventEntrySet, events.EntryChange{
		GuildID:  guildID,
		PluginID: pluginID,
		Bucket:   bucket,
		Key:      key,
	})
	return entry, nil
}

func (s *bucketService) SetIf(ctx context.Context, cond models.SetCondition, guildID models.GuildID, pluginID models.PluginID, bucket, key string, value models.Value, ttl *time.Duration) (*models.Entry, error) {
	if err := validateAddress(bucket, key); err != nil {
		return nil, err
	}
	if err := s.validateValue(value); err != nil {
		return nil, err
	}
	if err := s.checkQuota(ctx, guildID, bucket, key, value); err != nil {
		return nil, err
	}

	entry, err := s.repo.SetIf(ctx, cond, guildID, pluginID, bucket, key, value, ttl)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		// Condition failed, nothing was written.
		return nil, nil
	}

	s.invalidateUsage(ctx, guildID)
	s.publish(ctx, events.EventEntrySet, events.EntryChange{
		GuildID:  guildID,
		PluginID: pluginID,
		Bucket:   bucket,
		Key:      key,
	})
	return entry, nil
}

func (s *bucketService) Increment(ctx context.Context, guildID models.GuildID, pluginID models.PluginID, bucket, key string, delta float64) (*models.Entry, error) {
	if err := validateAddress(bucket, key); err != nil {
		return nil, err
	}
	if err := s.checkQuota(ctx, guildID, bucket, key, models.DoubleValue(delta)); err != nil {
		return nil, err
	}

	entry, err := s.repo.Increment(ctx, guildID, pluginID, bucket, key, delta)
	if err != nil {
		return nil, err
	}

	s.invalidateUsage(ctx, guildID)
	s.publish(ctx, events.EventEntrySet, events.EntryChange{
		GuildID:  guildID,
		PluginID: pluginID,
		Bucket:   bucket,
		Key:      key,
	})
	return entry, nil
}

func (s *bucketService) Delete(ctx context.Context, guildID models.GuildID, pluginID models.PluginID, bucket, key string) (*models.Entry, error) {
	if err := validateAddress(bucket, key); err != nil {
		return nil, err
	}

	entry, err := s.repo.Delete(ctx, guildID, pluginID, bucket, key)
	if err != nil || entry == nil {
		return nil, err
	}

	s.invalidateUsage(ctx, guildID)
	s.publish(ctx, events.EventEntryDeleted, events.EntryChange{
		GuildID:  guildID,
		PluginID: pluginID,
		Bucket:   bucket,
		Key:      key,
	})
	return entry, nil
}

func (s *bucketService) DeleteMatching(ctx context.Context, guildID models.GuildID, pluginID models.PluginID, bucket, keyPattern string) (int64, error) {
	// The pattern matches keys, so it is bounded like one.
	if err := validateAddress(bucket, keyPattern); err != nil {
		return 0, err
	}

	removed, err := s.repo.DeleteMatching(ctx, guildID, pluginID, bucket, keyPattern)
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		s.invalidateUsage(ctx, guildID)
		s.publish(ctx, events.EventBucketPurged, events.BucketPurge{
			GuildID:  guildID,
			PluginID: pluginID,
			Bucket:   bucket,
			Pattern:  keyPattern,
			Removed:  removed,
		})
	}
	return removed, nil
}

func (s *bucketService) DeleteGuild(ctx context.Context, guildID models.GuildID) (int64, error) {
	removed, err := s.repo.DeleteGuild(ctx, guildID)
	if err != nil {
		return 0, err
	}

	s.invalidateUsage(ctx, guildID)
	s.publish(ctx, events.EventGuildPurged, events.GuildPurge{
		GuildID: guildID,
		Removed: removed,
	})
	return removed, nil
}

func (s *bucketService) List(ctx context.Context, guildID models.GuildID, pluginID models.PluginID, bucket, keyPattern, afterKey string, limit int) ([]models.Entry, error) {
	if err := validateAddress(bucket, keyPattern); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, guildID, pluginID, bucket, keyPattern, afterKey, clampLimit(limit))
}

func (s *bucketService) Count(ctx context.Context, guildID models.GuildID, pluginID models.PluginID, bucket, keyPattern string) (int64, error) {
	if err := validateAddress(bucket, keyPattern); err != nil {
		return 0, err
	}
	return s.repo.Count(ctx, guildID, pluginID, bucket, keyPattern)
}

func (s *bucketService) ListSorted(ctx context.Context, guildID models.GuildID, pluginID models.PluginID, bucket string, order models.SortOrder, offset, limit int) ([]models.Entry, error) {
	if err := validateAddress(bucket, ""); err != nil {
		return nil, err
	}
	if !order.Valid() {
		return nil, models.ErrInvalidSortOrder
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListSorted(ctx, guildID, pluginID, bucket, order, offset, clampLimit(limit))
}

func (s *bucketService) GuildUsageBytes(ctx context.Context, guildID models.GuildID) (int64, error) {
	return s.repo.GuildUsageBytes(ctx, guildID)
}
