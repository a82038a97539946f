package janitor

import (
	"context"
	"testing"
	"time"

	"github.com/GoBucketStore/go-bucket-store/internal/util"
	"github.com/GoBucketStore/go-bucket-store/models"
)

// stubReaper returns canned batch sizes in order.
type stubReaper struct {
	batches []int64
	calls   int
}

func (r *stubReaper) DeleteExpired(ctx context.Context, before time.Time, limit int) (int64, error) {
	if r.calls >= len(r.batches) {
		r.calls++
		return 0, nil
	}
	n := r.batches[r.calls]
	r.calls++
	return n, nil
}

func TestApplyDefaults(t *testing.T) {
	config := JanitorPluginConfig{}
	config.ApplyDefaults()

	if config.Interval != time.Minute {
		t.Errorf("expected default interval of 1m, got %v", config.Interval)
	}
	if config.BatchSize != 500 {
		t.Errorf("expected default batch size of 500, got %d", config.BatchSize)
	}
}

func TestMetadata(t *testing.T) {
	p := New(JanitorPluginConfig{})
	if p.Metadata().ID != models.PluginJanitor {
		t.Errorf("unexpected plugin id: %q", p.Metadata().ID)
	}
}

func TestSweepDrainsFullBatches(t *testing.T) {
	reaper := &stubReaper{batches: []int64{10, 10, 3}}
	p := New(JanitorPluginConfig{BatchSize: 10})
	p.reaper = reaper
	p.logger = util.NewMockLogger()

	p.sweep(context.Background())

	if reaper.calls != 3 {
		t.Errorf("expected 3 batches until a short one, got %d", reaper.calls)
	}
}

func TestSweepStopsOnEmptyBatch(t *testing.T) {
	reaper := &stubReaper{batches: []int64{0}}
	p := New(JanitorPluginConfig{BatchSize: 10})
	p.reaper = reaper
	p.logger = util.NewMockLogger()

	p.sweep(context.Background())

	if reaper.calls != 1 {
		t.Errorf("expected a single batch, got %d", reaper.calls)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	p := New(JanitorPluginConfig{})
	if err := p.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("unexpected error on second close: %v", err)
	}
}

func TestCloseStopsSweepGoroutine(t *testing.T) {
	p := New(JanitorPluginConfig{Interval: time.Millisecond, BatchSize: 10})
	p.reaper = &stubReaper{}
	p.logger = util.NewMockLogger()
	p.startSweep()

	time.Sleep(5 * time.Millisecond)

	if err := p.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case <-p.done:
	case <-time.After(time.Second):
		t.Fatal("sweep goroutine did not stop")
	}
}
