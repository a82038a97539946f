package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/uptrace/bun"

	"github.com/GoBucketStore/go-bucket-store/events"
	"github.com/GoBucketStore/go-bucket-store/internal/repositories"
	"github.com/GoBucketStore/go-bucket-store/internal/util"
	"github.com/GoBucketStore/go-bucket-store/models"
)

// stubRepo records calls and returns canned entries.
type stubRepo struct {
	lastOp  string
	entry   *models.Entry
	removed int64
	usage   int64
}

func (r *stubRepo) Get(ctx context.Context, guildID models.GuildID, pluginID models.PluginID, bucket, key string) (*models.Entry, error) {
	r.lastOp = "get"
	return r.entry, nil
}

func (r *stubRepo) Set(ctx context.Context, guildID models.GuildID, pluginID models.PluginID, bucket, key string, value models.Value, ttl *time.Duration) (*models.Entry, error) {
	r.lastOp = "set"
	return r.entry, nil
}

func (r *stubRepo) SetIf(ctx context.Context, cond models.SetCondition, guildID models.GuildID, pluginID models.PluginID, bucket, key string, value models.Value, ttl *time.Duration) (*models.Entry, error) {
	r.lastOp = "setif"
	return r.entry, nil
}

func (r *stubRepo) Increment(ctx context.Context, guildID models.GuildID, pluginID models.PluginID, bucket, key string, delta float64) (*models.Entry, error) {
	r.lastOp = "increment"
	return r.entry, nil
}

func (r *stubRepo) Delete(ctx context.Context, guildID models.GuildID, pluginID models.PluginID, bucket, key string) (*models.Entry, error) {
	r.lastOp = "delete"
	return r.entry, nil
}

func (r *stubRepo) DeleteMatching(ctx context.Context, guildID models.GuildID, pluginID models.PluginID, bucket, keyPattern string) (int64, error) {
	r.lastOp = "delete_matching"
	return r.removed, nil
}

func (r *stubRepo) DeleteGuild(ctx context.Context, guildID models.GuildID) (int64, error) {
	r.lastOp = "delete_guild"
	return r.removed, nil
}

func (r *stubRepo) List(ctx context.Context, guildID models.GuildID, pluginID models.PluginID, bucket, keyPattern, afterKey string, limit int) ([]models.Entry, error) {
	r.lastOp = "list"
	return nil, nil
}

func (r *stubRepo) Count(ctx context.Context, guildID models.GuildID, pluginID models.PluginID, bucket, keyPattern string) (int64, error) {
	r.lastOp = "count"
	return 0, nil
}

func (r *stubRepo) ListSorted(ctx context.Context, guildID models.GuildID, pluginID models.PluginID, bucket string, order models.SortOrder, offset, limit int) ([]models.Entry, error) {
	r.lastOp = "list_sorted"
	return nil, nil
}

func (r *stubRepo) GuildUsageBytes(ctx context.Context, guildID models.GuildID) (int64, error) {
	r.lastOp = "usage"
	return r.usage, nil
}

func (r *stubRepo) DeleteExpired(ctx context.Context, before time.Time, limit int) (int64, error) {
	r.lastOp = "delete_expired"
	return 0, nil
}

func (r *stubRepo) WithTx(tx bun.IDB) repositories.BucketRepository {
	return r
}

// stubBus captures published events.
type stubBus struct {
	published []models.Event
}

func (b *stubBus) Publish(ctx context.Context, event models.Event) error {
	b.published = append(b.published, event)
	return nil
}

func (b *stubBus) Subscribe(eventType string, handler models.EventHandler) (models.SubscriptionID, error) {
	return 0, nil
}

func (b *stubBus) Unsubscribe(eventType string, id models.SubscriptionID) {}

func (b *stubBus) Close() error { return nil }

// stubQuota rejects every write when full is set.
type stubQuota struct {
	full        bool
	invalidated int
}

func (q *stubQuota) UsageBytes(ctx context.Context, guildID models.GuildID) (int64, error) {
	return 0, nil
}

func (q *stubQuota) CheckWrite(ctx context.Context, guildID models.GuildID, incomingBytes int64) error {
	if q.full {
		return models.ErrGuildStorageLimitReached
	}
	return nil
}

func (q *stubQuota) InvalidateUsage(ctx context.Context, guildID models.GuildID) error {
	q.invalidated++
	return nil
}

type stubRegistry struct {
	services map[string]any
}

func (r *stubRegistry) Register(name string, service any) {
	r.services[name] = service
}

func (r *stubRegistry) Get(name string) any {
	return r.services[name]
}

func newTestService(repo *stubRepo, bus *stubBus, quota *stubQuota) *bucketService {
	registry := &stubRegistry{services: map[string]any{}}
	if quota != nil {
		registry.Register(models.ServiceQuota.String(), quota)
	}

	config := &models.Config{
		Storage: models.StorageConfig{PublishEvents: true},
	}

	return NewBucketService(config, repo, bus, registry, util.NewMockLogger()).(*bucketService)
}

func TestSetPublishesEvent(t *testing.T) {
	repo := &stubRepo{entry: &models.Entry{Bucket: "b", Key: "k"}}
	bus := &stubBus{}
	svc := newTestService(repo, bus, nil)

	_, err := svc.Set(context.Background(), 1, 0, "b", "k", models.JSONValue(json.RawMessage(`1`)), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.lastOp != "set" {
		t.Errorf("expected repo set, got %q", repo.lastOp)
	}
	if len(bus.published) != 1 || bus.published[0].Type != events.EventEntrySet {
		t.Errorf("expected one entry_set event, got %+v", bus.published)
	}
}

func TestSetRejectsEmptyValue(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(repo, &stubBus{}, nil)

	_, err := svc.Set(context.Background(), 1, 0, "b", "k", models.Value{}, nil)
	if !errors.Is(err, models.ErrNilValue) {
		t.Fatalf("expected ErrNilValue, got %v", err)
	}
	if repo.lastOp != "" {
		t.Errorf("repo should not have been touched, got %q", repo.lastOp)
	}
}

func TestSetRejectsOversizedValue(t *testing.T) {
	svc := newTestService(&stubRepo{}, &stubBus{}, nil)
	svc.config.Storage.MaxValueBytes = 16

	big := json.RawMessage(`"` + strings.Repeat("x", 32) + `"`)
	_, err := svc.Set(context.Background(), 1, 0, "b", "k", models.JSONValue(big), nil)
	if !errors.Is(err, models.ErrValueTooLarge) {
		t.Fatalf("expected ErrValueTooLarge, got %v", err)
	}
}

func TestSetRejectsOversizedNames(t *testing.T) {
	svc := newTestService(&stubRepo{}, &stubBus{}, nil)

	longName := strings.Repeat("a", models.MaxBucketNameLength+1)
	_, err := svc.Set(context.Background(), 1, 0, longName, "k", models.DoubleValue(1), nil)
	if !errors.Is(err, models.ErrBucketNameTooLong) {
		t.Fatalf("expected ErrBucketNameTooLong, got %v", err)
	}

	longKey := strings.Repeat("a", models.MaxKeyLength+1)
	_, err = svc.Set(context.Background(), 1, 0, "b", longKey, models.DoubleValue(1), nil)
	if !errors.Is(err, models.ErrKeyTooLong) {
		t.Fatalf("expected ErrKeyTooLong, got %v", err)
	}
}

func TestSetBlockedByQuota(t *testing.T) {
	repo := &stubRepo{}
	quota := &stubQuota{full: true}
	svc := newTestService(repo, &stubBus{}, quota)

	_, err := svc.Set(context.Background(), 1, 0, "b", "k", models.DoubleValue(1), nil)
	if !errors.Is(err, models.ErrGuildStorageLimitReached) {
		t.Fatalf("expected ErrGuildStorageLimitReached, got %v", err)
	}
	if repo.lastOp != "" {
		t.Errorf("repo should not have been touched, got %q", repo.lastOp)
	}
}

func TestIncrementInvalidatesUsage(t *testing.T) {
	repo := &stubRepo{entry: &models.Entry{Value: models.DoubleValue(3)}}
	quota := &stubQuota{}
	svc := newTestService(repo, &stubBus{}, quota)

	_, err := svc.Increment(context.Background(), 1, 0, "b", "k", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quota.invalidated != 1 {
		t.Errorf("expected one usage invalidation, got %d", quota.invalidated)
	}
}

func TestSetIfConditionFailedPublishesNothing(t *testing.T) {
	repo := &stubRepo{entry: nil}
	bus := &stubBus{}
	svc := newTestService(repo, bus, nil)

	entry, err := svc.SetIf(context.Background(), models.IfExists, 1, 0, "b", "k", models.DoubleValue(1), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry != nil {
		t.Fatal("expected nil entry when condition fails")
	}
	if len(bus.published) != 0 {
		t.Errorf("no event should fire for a failed condition, got %+v", bus.published)
	}
}

func TestDeleteAbsentPublishesNothing(t *testing.T) {
	repo := &stubRepo{entry: nil}
	bus := &stubBus{}
	svc := newTestService(repo, bus, nil)

	entry, err := svc.Delete(context.Background(), 1, 0, "b", "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry != nil {
		t.Fatal("expected nil entry for absent key")
	}
	if len(bus.published) != 0 {
		t.Errorf("no event should fire for absent key, got %+v", bus.published)
	}
}

func TestDeleteMatchingPublishesPurge(t *testing.T) {
	repo := &stubRepo{removed: 4}
	bus := &stubBus{}
	svc := newTestService(repo, bus, nil)

	removed, err := svc.DeleteMatching(context.Background(), 1, 0, "b", "user_*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 4 {
		t.Errorf("expected 4 removed, got %d", removed)
	}
	if len(bus.published) != 1 || bus.published[0].Type != events.EventBucketPurged {
		t.Errorf("expected one bucket_purged event, got %+v", bus.published)
	}
}

func TestPatternOperationsRejectOversizedPattern(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(repo, &stubBus{}, nil)
	ctx := context.Background()

	longPattern := strings.Repeat("?", models.MaxKeyLength+1)

	if _, err := svc.DeleteMatching(ctx, 1, 0, "b", longPattern); !errors.Is(err, models.ErrKeyTooLong) {
		t.Errorf("delete_matching: expected ErrKeyTooLong, got %v", err)
	}
	if _, err := svc.List(ctx, 1, 0, "b", longPattern, "", 10); !errors.Is(err, models.ErrKeyTooLong) {
		t.Errorf("list: expected ErrKeyTooLong, got %v", err)
	}
	if _, err := svc.Count(ctx, 1, 0, "b", longPattern); !errors.Is(err, models.ErrKeyTooLong) {
		t.Errorf("count: expected ErrKeyTooLong, got %v", err)
	}
	if repo.lastOp != "" {
		t.Errorf("repo should not have been touched, got %q", repo.lastOp)
	}
}

func TestListSortedRejectsUnknownOrder(t *testing.T) {
	svc := newTestService(&stubRepo{}, &stubBus{}, nil)

	_, err := svc.ListSorted(context.Background(), 1, 0, "b", models.SortOrder("sideways"), 0, 10)
	if !errors.Is(err, models.ErrInvalidSortOrder) {
		t.Fatalf("expected ErrInvalidSortOrder, got %v", err)
	}
}

func TestClampLimit(t *testing.T) {
	if got := clampLimit(0); got != defaultListLimit {
		t.Errorf("expected default limit, got %d", got)
	}
	if got := clampLimit(10_000); got != maxListLimit {
		t.Errorf("expected max limit, got %d", got)
	}
	if got := clampLimit(7); got != 7 {
		t.Errorf("expected 7, got %d", got)
	}
}
