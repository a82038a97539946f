package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/GoBucketStore/go-bucket-store/internal/util"
	"github.com/GoBucketStore/go-bucket-store/models"
)

type stubUsageReader struct {
	usage int64
	calls int
}

func (r *stubUsageReader) GuildUsageBytes(ctx context.Context, guildID models.GuildID) (int64, error) {
	r.calls++
	return r.usage, nil
}

func TestCheckWriteUnderBudget(t *testing.T) {
	reader := &stubUsageReader{usage: 100}
	svc := NewQuotaService(reader, util.NewMockLogger(), QuotaOptions{DefaultMaxBytes: 1000})

	if err := svc.CheckWrite(context.Background(), 1, 100); err != nil {
		t.Fatalf("expected write to pass, got %v", err)
	}
}

func TestCheckWriteOverBudget(t *testing.T) {
	reader := &stubUsageReader{usage: 950}
	svc := NewQuotaService(reader, util.NewMockLogger(), QuotaOptions{DefaultMaxBytes: 1000})

	err := svc.CheckWrite(context.Background(), 1, 100)
	if !errors.Is(err, models.ErrGuildStorageLimitReached) {
		t.Fatalf("expected ErrGuildStorageLimitReached, got %v", err)
	}
}

func TestCheckWriteUnlimitedSkipsUsageQuery(t *testing.T) {
	reader := &stubUsageReader{usage: 1 << 40}
	svc := NewQuotaService(reader, util.NewMockLogger(), QuotaOptions{DefaultMaxBytes: 0})

	if err := svc.CheckWrite(context.Background(), 1, 100); err != nil {
		t.Fatalf("expected unlimited budget to pass, got %v", err)
	}
	if reader.calls != 0 {
		t.Errorf("usage should not be queried without a budget, got %d calls", reader.calls)
	}
}

func TestCheckWriteGuildOverride(t *testing.T) {
	reader := &stubUsageReader{usage: 500}
	svc := NewQuotaService(reader, util.NewMockLogger(), QuotaOptions{
		DefaultMaxBytes: 1000,
		GuildOverrides:  map[models.GuildID]int64{7: 400},
	})

	if err := svc.CheckWrite(context.Background(), 1, 100); err != nil {
		t.Fatalf("default budget should pass, got %v", err)
	}

	err := svc.CheckWrite(context.Background(), 7, 100)
	if !errors.Is(err, models.ErrGuildStorageLimitReached) {
		t.Fatalf("override budget should reject, got %v", err)
	}
}

func TestUsageBytesCached(t *testing.T) {
	reader := &stubUsageReader{usage: 300}
	svc := NewQuotaService(reader, util.NewMockLogger(), QuotaOptions{
		DefaultMaxBytes: 1000,
		Cache:           NewMemoryUsageCache(time.Minute),
	})

	for range 3 {
		usage, err := svc.UsageBytes(context.Background(), 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if usage != 300 {
			t.Errorf("expected usage 300, got %d", usage)
		}
	}

	if reader.calls != 1 {
		t.Errorf("expected one backing read, got %d", reader.calls)
	}
}

func TestInvalidateUsageDropsCache(t *testing.T) {
	reader := &stubUsageReader{usage: 300}
	svc := NewQuotaService(reader, util.NewMockLogger(), QuotaOptions{
		DefaultMaxBytes: 1000,
		Cache:           NewMemoryUsageCache(time.Minute),
	})

	if _, err := svc.UsageBytes(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.InvalidateUsage(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.UsageBytes(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if reader.calls != 2 {
		t.Errorf("expected two backing reads after invalidation, got %d", reader.calls)
	}
}

func TestMemoryUsageCacheExpiry(t *testing.T) {
	cache := NewMemoryUsageCache(10 * time.Millisecond)

	if err := cache.SetUsage(context.Background(), 1, 42); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok, _ := cache.GetUsage(context.Background(), 1); !ok {
		t.Fatal("expected cache hit right after set")
	}

	time.Sleep(25 * time.Millisecond)

	if _, ok, _ := cache.GetUsage(context.Background(), 1); ok {
		t.Fatal("expected cache miss after expiry")
	}
}
