package gobucketstore

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/GoBucketStore/go-bucket-store/config"
	"github.com/GoBucketStore/go-bucket-store/events"
	"github.com/GoBucketStore/go-bucket-store/models"
	janitorplugin "github.com/GoBucketStore/go-bucket-store/plugins/janitor"
	quotaplugin "github.com/GoBucketStore/go-bucket-store/plugins/quota"
)

func newTestStore(t *testing.T, options ...config.ConfigOption) *Store {
	t.Helper()

	base := []config.ConfigOption{
		config.WithDatabase(models.DatabaseConfig{
			Provider:     "sqlite",
			URL:          filepath.Join(t.TempDir(), "store.db"),
			MaxOpenConns: 1,
			MaxIdleConns: 1,
		}),
		config.WithLogger(models.LoggerConfig{Level: "error"}),
	}

	store, err := New(config.NewConfig(append(base, options...)...))
	if err != nil {
		t.Fatalf("failed to build store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.RunMigrations(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return store
}

func TestStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Set(ctx, 1, 0, "settings", "prefix", models.JSONValue(json.RawMessage(`"!"`)), nil)
	if err != nil {
		t.Fatalf("set failed: %v", err)
	}

	entry, err := store.Get(ctx, 1, 0, "settings", "prefix")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if entry == nil || string(entry.Value.JSON) != `"!"` {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	score, err := store.Increment(ctx, 1, 0, "scores", "alice", 5)
	if err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	if score.Value.Double != 5 {
		t.Errorf("expected 5, got %v", score.Value.Double)
	}

	removed, err := store.Delete(ctx, 1, 0, "settings", "prefix")
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if removed == nil {
		t.Fatal("delete should return the removed entry")
	}

	if entry, _ := store.Get(ctx, 1, 0, "settings", "prefix"); entry != nil {
		t.Errorf("entry should be gone, got %+v", entry)
	}
}

func TestStorePublishesChangeEvents(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	received := make(chan models.Event, 1)
	_, err := store.EventBus().Subscribe(events.EventEntrySet, func(ctx context.Context, event models.Event) error {
		select {
		case received <- event:
		default:
		}
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	if _, err := store.Set(ctx, 1, 0, "b", "k", models.DoubleValue(1), nil); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	select {
	case event := <-received:
		var change events.EntryChange
		if err := json.Unmarshal(event.Payload, &change); err != nil {
			t.Fatalf("failed to decode payload: %v", err)
		}
		if change.GuildID != 1 || change.Bucket != "b" || change.Key != "k" {
			t.Errorf("unexpected payload: %+v", change)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no entry_set event received")
	}
}

func TestStoreQuotaEnforcement(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.RegisterPlugin(quotaplugin.New(quotaplugin.QuotaPluginConfig{
		Enabled:         true,
		DefaultMaxBytes: 200,
	})); err != nil {
		t.Fatalf("failed to register quota plugin: %v", err)
	}
	if err := store.InitPlugins(); err != nil {
		t.Fatalf("failed to init plugins: %v", err)
	}

	small := models.JSONValue(json.RawMessage(`"ok"`))
	if _, err := store.Set(ctx, 1, 0, "b", "first", small, nil); err != nil {
		t.Fatalf("first write should fit, got %v", err)
	}

	big := models.JSONValue(json.RawMessage(`"` + strings.Repeat("x", 300) + `"`))
	_, err := store.Set(ctx, 1, 0, "b", "second", big, nil)
	if !errors.Is(err, models.ErrGuildStorageLimitReached) {
		t.Fatalf("expected ErrGuildStorageLimitReached, got %v", err)
	}
}

func TestStoreWithJanitorPlugin(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.RegisterPlugin(janitorplugin.New(janitorplugin.JanitorPluginConfig{
		Enabled:  true,
		Interval: 10 * time.Millisecond,
	})); err != nil {
		t.Fatalf("failed to register janitor plugin: %v", err)
	}
	if err := store.InitPlugins(); err != nil {
		t.Fatalf("failed to init plugins: %v", err)
	}

	ttl := 20 * time.Millisecond
	if _, err := store.Set(ctx, 1, 0, "b", "k", models.DoubleValue(1), &ttl); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if entry, _ := store.Get(ctx, 1, 0, "b", "k"); entry != nil {
		t.Errorf("expired entry should be gone, got %+v", entry)
	}
}
