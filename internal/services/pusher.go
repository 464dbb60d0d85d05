package services

import (
	"context"
	"fmt"
	"log/slog"

	"hopdong/internal/core"
	"hopdong/internal/sheets"
)

// Pusher sends a saved table to the remote store.
type Pusher interface {
	Push(ctx context.Context, rows []core.Row) error
}

type (
	// SnapshotStore persists queued tables.
	SnapshotStore interface {
		SaveSnapshot(ctx context.Context, rows []core.Row) (string, error)
	}

	// SnapshotPublisher announces a queued snapshot to the worker.
	SnapshotPublisher interface {
		PublishSnapshot(ctx context.Context, snapshotID string) error
	}
)

// DirectPusher replaces the remote table synchronously.
type DirectPusher struct {
	Store sheets.RowWriter
}

func (p DirectPusher) Push(ctx context.Context, rows []core.Row) error {
	return sheets.Push(ctx, p.Store, rows)
}

// QueuedPusher stores the table in the outbox and lets the worker push it.
// A lost announcement is recovered by the worker's outbox poller.
type QueuedPusher struct {
	Outbox    SnapshotStore
	Publisher SnapshotPublisher
}

func (p QueuedPusher) Push(ctx context.Context, rows []core.Row) error {
	id, err := p.Outbox.SaveSnapshot(ctx, rows)
	if err != nil {
		return fmt.Errorf("queue snapshot: %w", err)
	}

	if p.Publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, snapshot left for the poller", "snapshot_id", id)
		return nil
	}
	if err := p.Publisher.PublishSnapshot(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish snapshot message",
			"snapshot_id", id, "error", err)
	}
	return nil
}

// NopPusher discards every push.
type NopPusher struct{}

func (NopPusher) Push(context.Context, []core.Row) error { return sheets.ErrNotConfigured }
