package sheets

import (
	"context"
	"errors"
	"fmt"

	"hopdong/internal/core"
)

// ErrNotConfigured is returned by stores that have no remote behind them.
var ErrNotConfigured = errors.New("remote store not configured")

// Ports for outbound adapters.
type (
	// RowReader returns every record of the remote table as flat key/value rows.
	RowReader interface {
		ReadAll(ctx context.Context) ([]core.Row, error)
	}

	// RowWriter is the write side of the remote table: it can only be
	// emptied or grown one record at a time.
	RowWriter interface {
		DeleteAll(ctx context.Context) error
		Insert(ctx context.Context, row core.Row) error
	}

	// RemoteStore is the remote tabular store.
	RemoteStore interface {
		RowReader
		RowWriter
	}
)

// Push replaces the remote table with rows: delete everything, then insert
// each record in order. A failure part way leaves the remote partially
// written; the next successful push repairs it.
func Push(ctx context.Context, w RowWriter, rows []core.Row) error {
	if err := w.DeleteAll(ctx); err != nil {
		return fmt.Errorf("delete remote rows: %w", err)
	}
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.Insert(ctx, row); err != nil {
			return fmt.Errorf("insert row %d: %w", i+1, err)
		}
	}
	return nil
}

// Disabled is a RemoteStore for REMOTE_BACKEND=none. Reads fail so the
// local cache takes over, writes fail so saves report the missing remote.
type Disabled struct{}

var _ RemoteStore = Disabled{}

func (Disabled) ReadAll(context.Context) ([]core.Row, error) { return nil, ErrNotConfigured }
func (Disabled) DeleteAll(context.Context) error             { return ErrNotConfigured }
func (Disabled) Insert(context.Context, core.Row) error      { return ErrNotConfigured }
