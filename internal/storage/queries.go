package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type LoginEventRow struct {
	ID        int64
	Username  string
	Outcome   string
	ClientIP  string
	UserAgent string
	CreatedAt int64
}

type SyncSnapshotRow struct {
	Seq       int64
	ID        string
	Payload   string
	RowCount  int64
	Status    string
	Attempts  int64
	LastError string
	CreatedAt int64
	UpdatedAt int64
}

const insertLoginEvent = `
INSERT INTO login_events (username, outcome, client_ip, user_agent, created_at)
VALUES (?, ?, ?, ?, ?)
`

type InsertLoginEventParams struct {
	Username  string
	Outcome   string
	ClientIP  string
	UserAgent string
	CreatedAt int64
}

func (q *Queries) InsertLoginEvent(ctx context.Context, arg InsertLoginEventParams) error {
	_, err := q.db.ExecContext(ctx, insertLoginEvent,
		arg.Username,
		arg.Outcome,
		arg.ClientIP,
		arg.UserAgent,
		arg.CreatedAt,
	)
	return err
}

const listLoginEvents = `
SELECT id, username, outcome, client_ip, user_agent, created_at
FROM login_events
ORDER BY created_at DESC, id DESC
LIMIT ?
`

func (q *Queries) ListLoginEvents(ctx context.Context, limit int64) ([]LoginEventRow, error) {
	rows, err := q.db.QueryContext(ctx, listLoginEvents, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []LoginEventRow
	for rows.Next() {
		var i LoginEventRow
		if err := rows.Scan(
			&i.ID,
			&i.Username,
			&i.Outcome,
			&i.ClientIP,
			&i.UserAgent,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createSnapshot = `
INSERT INTO sync_snapshots (id, payload, row_count, status, created_at, updated_at)
VALUES (?, ?, ?, 'pending', ?, ?)
RETURNING seq
`

type CreateSnapshotParams struct {
	ID        string
	Payload   string
	RowCount  int64
	CreatedAt int64
}

func (q *Queries) CreateSnapshot(ctx context.Context, arg CreateSnapshotParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createSnapshot,
		arg.ID,
		arg.Payload,
		arg.RowCount,
		arg.CreatedAt,
		arg.CreatedAt,
	)
	var seq int64
	err := row.Scan(&seq)
	return seq, err
}

const getSnapshot = `
SELECT seq, id, payload, row_count, status, attempts, last_error, created_at, updated_at
FROM sync_snapshots
WHERE id = ?
`

func (q *Queries) GetSnapshot(ctx context.Context, id string) (SyncSnapshotRow, error) {
	row := q.db.QueryRowContext(ctx, getSnapshot, id)
	var i SyncSnapshotRow
	err := row.Scan(
		&i.Seq,
		&i.ID,
		&i.Payload,
		&i.RowCount,
		&i.Status,
		&i.Attempts,
		&i.LastError,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getLatestSnapshot = `
SELECT seq, id, payload, row_count, status, attempts, last_error, created_at, updated_at
FROM sync_snapshots
ORDER BY seq DESC
LIMIT 1
`

func (q *Queries) GetLatestSnapshot(ctx context.Context) (SyncSnapshotRow, error) {
	row := q.db.QueryRowContext(ctx, getLatestSnapshot)
	var i SyncSnapshotRow
	err := row.Scan(
		&i.Seq,
		&i.ID,
		&i.Payload,
		&i.RowCount,
		&i.Status,
		&i.Attempts,
		&i.LastError,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getMaxSnapshotSeq = `
SELECT COALESCE(MAX(seq), 0) FROM sync_snapshots
`

func (q *Queries) GetMaxSnapshotSeq(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, getMaxSnapshotSeq)
	var seq int64
	err := row.Scan(&seq)
	return seq, err
}

const listPendingSnapshotIDs = `
SELECT id
FROM sync_snapshots
WHERE status = 'pending'
ORDER BY seq DESC
LIMIT ?
`

func (q *Queries) ListPendingSnapshotIDs(ctx context.Context, limit int64) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listPendingSnapshotIDs, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const markSnapshotSynced = `
UPDATE sync_snapshots
SET status = 'synced', attempts = attempts + 1, last_error = '', updated_at = ?
WHERE id = ?
`

func (q *Queries) MarkSnapshotSynced(ctx context.Context, id string, now int64) error {
	_, err := q.db.ExecContext(ctx, markSnapshotSynced, now, id)
	return err
}

const markSnapshotAttemptFailed = `
UPDATE sync_snapshots
SET attempts = attempts + 1,
    last_error = ?,
    status = CASE WHEN attempts + 1 >= ? THEN 'failed' ELSE status END,
    updated_at = ?
WHERE id = ?
RETURNING status
`

type MarkSnapshotAttemptFailedParams struct {
	ID          string
	LastError   string
	MaxAttempts int64
	UpdatedAt   int64
}

func (q *Queries) MarkSnapshotAttemptFailed(ctx context.Context, arg MarkSnapshotAttemptFailedParams) (string, error) {
	row := q.db.QueryRowContext(ctx, markSnapshotAttemptFailed,
		arg.LastError,
		arg.MaxAttempts,
		arg.UpdatedAt,
		arg.ID,
	)
	var status string
	err := row.Scan(&status)
	return status, err
}

const supersedeOlderSnapshots = `
UPDATE sync_snapshots
SET status = 'superseded', updated_at = ?
WHERE seq < ? AND status IN ('pending', 'failed')
`

func (q *Queries) SupersedeOlderSnapshots(ctx context.Context, seq int64, now int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, supersedeOlderSnapshots, now, seq)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
