package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"hopdong/internal/core"

	_ "modernc.org/sqlite"
)

// Snapshot states.
const (
	SnapshotPending    = "pending"
	SnapshotSynced     = "synced"
	SnapshotFailed     = "failed"
	SnapshotSuperseded = "superseded"
)

// ErrSnapshotNotFound is returned when no snapshot has the requested id.
var ErrSnapshotNotFound = errors.New("snapshot not found")

type (
	// LoginEvent is one entry of the login history.
	LoginEvent struct {
		ID        int64
		Username  string
		Outcome   string
		ClientIP  string
		UserAgent string
		At        time.Time
	}

	// Snapshot is a queued copy of the whole contract table.
	Snapshot struct {
		ID        string
		Seq       int64
		Rows      []core.Row
		Status    string
		Attempts  int
		LastError string
		CreatedAt time.Time
	}
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// RecordLogin appends one login attempt to the history.
func (r *SQLiteRepository) RecordLogin(ctx context.Context, e LoginEvent) error {
	at := e.At
	if at.IsZero() {
		at = r.now()
	}
	err := r.queries.InsertLoginEvent(ctx, InsertLoginEventParams{
		Username:  e.Username,
		Outcome:   e.Outcome,
		ClientIP:  e.ClientIP,
		UserAgent: e.UserAgent,
		CreatedAt: at.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("insert login event: %w", err)
	}
	return nil
}

// RecentLogins returns the latest login attempts, newest first.
func (r *SQLiteRepository) RecentLogins(ctx context.Context, limit int) ([]LoginEvent, error) {
	rows, err := r.queries.ListLoginEvents(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list login events: %w", err)
	}
	out := make([]LoginEvent, len(rows))
	for i, row := range rows {
		out[i] = LoginEvent{
			ID:        row.ID,
			Username:  row.Username,
			Outcome:   row.Outcome,
			ClientIP:  row.ClientIP,
			UserAgent: row.UserAgent,
			At:        time.UnixMilli(row.CreatedAt),
		}
	}
	return out, nil
}

// SaveSnapshot stores rows as a new pending snapshot and returns its id.
func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, rows []core.Row) (string, error) {
	if rows == nil {
		rows = []core.Row{}
	}
	payload, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	id := uuid.NewString()
	seq, err := r.queries.CreateSnapshot(ctx, CreateSnapshotParams{
		ID:        id,
		Payload:   string(payload),
		RowCount:  int64(len(rows)),
		CreatedAt: r.now().UnixMilli(),
	})
	if err != nil {
		return "", fmt.Errorf("create snapshot: %w", err)
	}

	slog.InfoContext(ctx, "Snapshot queued", "snapshot_id", id, "seq", seq, "rows", len(rows))
	return id, nil
}

// GetSnapshot loads one snapshot with its rows.
func (r *SQLiteRepository) GetSnapshot(ctx context.Context, id string) (*Snapshot, error) {
	row, err := r.queries.GetSnapshot(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot %s: %w", id, err)
	}

	rows, err := decodeRows(row.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", id, err)
	}

	return &Snapshot{
		ID:        row.ID,
		Seq:       row.Seq,
		Rows:      rows,
		Status:    row.Status,
		Attempts:  int(row.Attempts),
		LastError: row.LastError,
		CreatedAt: time.UnixMilli(row.CreatedAt),
	}, nil
}

// LatestUnsyncedRows returns the rows of the newest snapshot while it is
// still pending or failed, that is while the remote store lags behind the
// last save.
func (r *SQLiteRepository) LatestUnsyncedRows(ctx context.Context) ([]core.Row, bool, error) {
	row, err := r.queries.GetLatestSnapshot(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get latest snapshot: %w", err)
	}
	if row.Status != SnapshotPending && row.Status != SnapshotFailed {
		return nil, false, nil
	}

	rows, err := decodeRows(row.Payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode snapshot %s: %w", row.ID, err)
	}
	return rows, true, nil
}

// IsLatest reports whether no snapshot newer than s exists.
func (r *SQLiteRepository) IsLatest(ctx context.Context, s *Snapshot) (bool, error) {
	maxSeq, err := r.queries.GetMaxSnapshotSeq(ctx)
	if err != nil {
		return false, fmt.Errorf("get latest snapshot: %w", err)
	}
	return s.Seq >= maxSeq, nil
}

// PendingSnapshotIDs returns pending snapshot ids, newest first.
func (r *SQLiteRepository) PendingSnapshotIDs(ctx context.Context, limit int) ([]string, error) {
	ids, err := r.queries.ListPendingSnapshotIDs(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list pending snapshots: %w", err)
	}
	return ids, nil
}

// MarkSynced marks a snapshot as pushed and retires every older one.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, s *Snapshot) error {
	now := r.now().UnixMilli()
	if err := r.queries.MarkSnapshotSynced(ctx, s.ID, now); err != nil {
		return fmt.Errorf("mark snapshot synced: %w", err)
	}
	n, err := r.queries.SupersedeOlderSnapshots(ctx, s.Seq, now)
	if err != nil {
		return fmt.Errorf("supersede older snapshots: %w", err)
	}

	slog.InfoContext(ctx, "Snapshot marked as synced", "snapshot_id", s.ID, "superseded", n)
	return nil
}

// MarkSuperseded retires s and everything older without pushing it.
func (r *SQLiteRepository) MarkSuperseded(ctx context.Context, s *Snapshot) error {
	if _, err := r.queries.SupersedeOlderSnapshots(ctx, s.Seq+1, r.now().UnixMilli()); err != nil {
		return fmt.Errorf("supersede snapshot: %w", err)
	}
	return nil
}

// MarkAttemptFailed records a failed push. After maxAttempts failures the
// snapshot is marked failed and the returned status says so.
func (r *SQLiteRepository) MarkAttemptFailed(ctx context.Context, id string, cause error, maxAttempts int) (string, error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	status, err := r.queries.MarkSnapshotAttemptFailed(ctx, MarkSnapshotAttemptFailedParams{
		ID:          id,
		LastError:   msg,
		MaxAttempts: int64(maxAttempts),
		UpdatedAt:   r.now().UnixMilli(),
	})
	if err != nil {
		return "", fmt.Errorf("mark snapshot attempt failed: %w", err)
	}

	slog.WarnContext(ctx, "Snapshot push failed", "snapshot_id", id, "status", status, "error", msg)
	return status, nil
}

func decodeRows(payload string) ([]core.Row, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
	dec.UseNumber()
	var rows []core.Row
	if err := dec.Decode(&rows); err != nil {
		return nil, err
	}
	return rows, nil
}
