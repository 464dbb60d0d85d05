package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"hopdong/internal/amqp"
	"hopdong/internal/sheets"
	"hopdong/internal/storage"
)

// DefaultMaxAttempts is how many failed pushes a snapshot gets before it is
// marked failed.
const DefaultMaxAttempts = 5

// Outbox is the snapshot side of the SQLite repository.
type Outbox interface {
	GetSnapshot(ctx context.Context, id string) (*storage.Snapshot, error)
	IsLatest(ctx context.Context, s *storage.Snapshot) (bool, error)
	MarkSynced(ctx context.Context, s *storage.Snapshot) error
	MarkSuperseded(ctx context.Context, s *storage.Snapshot) error
	MarkAttemptFailed(ctx context.Context, id string, cause error, maxAttempts int) (string, error)
}

// SyncWorker pushes queued table snapshots to the remote store.
type SyncWorker struct {
	outbox      Outbox
	remote      sheets.RowWriter
	maxAttempts int
}

func NewSyncWorker(outbox Outbox, remote sheets.RowWriter, maxAttempts int) *SyncWorker {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &SyncWorker{
		outbox:      outbox,
		remote:      remote,
		maxAttempts: maxAttempts,
	}
}

// HandleSyncMessage processes one snapshot message from AMQP. A returned
// error requeues the message.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.SnapshotSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"snapshot_id", msg.SnapshotID,
		"timestamp", msg.Timestamp)

	err := w.SyncSnapshot(ctx, msg.SnapshotID)
	if errors.Is(err, storage.ErrSnapshotNotFound) {
		// nothing to retry
		slog.WarnContext(ctx, "Snapshot not found, dropping message", "snapshot_id", msg.SnapshotID)
		return nil
	}
	return err
}

// SyncSnapshot pushes the snapshot if it is still pending and the newest
// one. Older snapshots are retired without a push.
func (w *SyncWorker) SyncSnapshot(ctx context.Context, id string) error {
	snap, err := w.outbox.GetSnapshot(ctx, id)
	if err != nil {
		return fmt.Errorf("get snapshot from storage: %w", err)
	}
	if snap.Status != storage.SnapshotPending {
		slog.DebugContext(ctx, "Snapshot already handled", "snapshot_id", id, "status", snap.Status)
		return nil
	}

	latest, err := w.outbox.IsLatest(ctx, snap)
	if err != nil {
		return err
	}
	if !latest {
		if err := w.outbox.MarkSuperseded(ctx, snap); err != nil {
			return err
		}
		slog.InfoContext(ctx, "Snapshot superseded by a newer one", "snapshot_id", id, "seq", snap.Seq)
		return nil
	}

	if err := sheets.Push(ctx, w.remote, snap.Rows); err != nil {
		status, markErr := w.outbox.MarkAttemptFailed(ctx, id, err, w.maxAttempts)
		if markErr != nil {
			slog.ErrorContext(ctx, "Failed to record push failure", "snapshot_id", id, "error", markErr)
		}
		if status == storage.SnapshotFailed {
			slog.ErrorContext(ctx, "Snapshot failed permanently after max attempts",
				"snapshot_id", id,
				"attempts", w.maxAttempts,
				"error", err)
			return nil
		}
		return fmt.Errorf("push snapshot %s: %w", id, err)
	}

	if err := w.outbox.MarkSynced(ctx, snap); err != nil {
		// the push itself went through
		slog.ErrorContext(ctx, "Failed to mark snapshot as synced", "snapshot_id", id, "error", err)
	}

	slog.InfoContext(ctx, "Successfully synced snapshot",
		"snapshot_id", id,
		"rows", len(snap.Rows))
	return nil
}
