package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// SyncProcessorConfig holds configuration for the outbox poller
type SyncProcessorConfig struct {
	// PollInterval is how often to check for pending snapshots (default: 30s)
	PollInterval time.Duration

	// BatchSize is the max number of snapshots handled per poll (default: 10)
	BatchSize int
}

// DefaultSyncProcessorConfig returns sensible defaults
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval: 30 * time.Second,
		BatchSize:    10,
	}
}

type (
	// PendingSnapshots lists outbox entries that still wait for a push.
	PendingSnapshots interface {
		PendingSnapshotIDs(ctx context.Context, limit int) ([]string, error)
	}

	// SnapshotSyncer pushes one queued snapshot.
	SnapshotSyncer interface {
		SyncSnapshot(ctx context.Context, snapshotID string) error
	}
)

// SyncProcessor re-drives pending snapshots whose AMQP message was lost.
type SyncProcessor struct {
	outbox PendingSnapshots
	syncer SnapshotSyncer
	config SyncProcessorConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSyncProcessor(outbox PendingSnapshots, syncer SnapshotSyncer, config SyncProcessorConfig) *SyncProcessor {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultSyncProcessorConfig().PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultSyncProcessorConfig().BatchSize
	}
	return &SyncProcessor{
		outbox: outbox,
		syncer: syncer,
		config: config,
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Sync processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}
	return nil
}

// IsRunning returns whether the processor is currently running
func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	// catch up on anything left from before a restart
	p.ProcessBatch(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch pushes up to BatchSize pending snapshots, newest first, and
// returns how many were handled without error.
func (p *SyncProcessor) ProcessBatch(ctx context.Context) int {
	ids, err := p.outbox.PendingSnapshotIDs(ctx, p.config.BatchSize)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list pending snapshots", "error", err)
		return 0
	}
	if len(ids) == 0 {
		return 0
	}

	slog.DebugContext(ctx, "Processing pending snapshots", "count", len(ids))

	done := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return done
		}
		if err := p.syncer.SyncSnapshot(ctx, id); err != nil {
			slog.WarnContext(ctx, "Pending snapshot sync failed", "snapshot_id", id, "error", err)
			continue
		}
		done++
	}
	return done
}
