package janitor

import (
	"context"
	"sync"
	"time"

	"github.com/GoBucketStore/go-bucket-store/internal/repositories"
	"github.com/GoBucketStore/go-bucket-store/internal/util"
	"github.com/GoBucketStore/go-bucket-store/models"
)

// ExpiredEntryReaper removes expired entries in bounded batches.
// BucketRepository satisfies it.
type ExpiredEntryReaper interface {
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int64, error)
}

// JanitorPlugin periodically reclaims expired entries so they stop occupying
// storage. Reads already treat expired entries as absent, the janitor only
// frees the space.
type JanitorPlugin struct {
	config JanitorPluginConfig
	logger models.Logger
	reaper ExpiredEntryReaper

	// stopSweep signals the sweep goroutine to stop.
	stopSweep chan struct{}
	// done signals that the sweep goroutine has stopped.
	done chan struct{}
	// sweepStarted tracks whether the sweep goroutine has been started.
	sweepStarted bool
	// closeOnce ensures Close() is idempotent.
	closeOnce sync.Once
}

func New(config JanitorPluginConfig) *JanitorPlugin {
	config.ApplyDefaults()
	return &JanitorPlugin{
		config:    config,
		stopSweep: make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (p *JanitorPlugin) Metadata() models.PluginMetadata {
	return models.PluginMetadata{
		ID:          models.PluginJanitor,
		Version:     "1.0.0",
		Description: "Reclaims expired entries in the background",
	}
}

func (p *JanitorPlugin) Config() any {
	return p.config
}

func (p *JanitorPlugin) Init(ctx *models.PluginContext) error {
	p.logger = ctx.Logger

	if err := util.LoadPluginConfig(ctx.GetConfig(), p.Metadata().ID, &p.config); err != nil {
		return err
	}
	p.config.ApplyDefaults()

	if p.reaper == nil {
		p.reaper = repositories.NewBunBucketRepository(ctx.DB, ctx.GetConfig().Database.Provider, ctx.Logger)
	}

	p.startSweep()
	return nil
}

// startSweep starts the background sweep goroutine. Safe to call multiple
// times, subsequent calls are no-ops.
func (p *JanitorPlugin) startSweep() {
	if p.sweepStarted {
		return
	}
	p.sweepStarted = true
	go p.sweepLoop()
}

func (p *JanitorPlugin) sweepLoop() {
	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()
	defer close(p.done)

	for {
		select {
		case <-p.stopSweep:
			return
		case <-ticker.C:
			p.sweep(context.Background())
		}
	}
}

// sweep drains expired entries in batches until a batch comes back short.
func (p *JanitorPlugin) sweep(ctx context.Context) {
	now := time.Now()
	var total int64

	for {
		reclaimed, err := p.reaper.DeleteExpired(ctx, now, p.config.BatchSize)
		if err != nil {
			p.logger.Error("failed to reclaim expired entries", "error", err)
			return
		}
		total += reclaimed
		if reclaimed < int64(p.config.BatchSize) {
			break
		}
	}

	if total > 0 {
		p.logger.Debug("reclaimed expired entries", "count", total)
	}
}

func (p *JanitorPlugin) Close() error {
	p.closeOnce.Do(func() {
		close(p.stopSweep)
		if p.sweepStarted {
			<-p.done
		}
	})
	return nil
}
