package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"hopdong/internal/cache"
	"hopdong/internal/core"
	"hopdong/internal/sheets"
	"hopdong/internal/workbook"
)

// Source tells where a loaded table came from.
type Source string

const (
	SourceRemote Source = "remote"
	SourceQueued Source = "queued"
	SourceLocal  Source = "local"
	SourceEmpty  Source = "empty"
)

// User facing warnings. The cause is appended after a colon.
const (
	WarnRemoteLoad = "Không thể tải dữ liệu từ Sheet.best"
	WarnRemotePush = "Không thể đồng bộ lên Sheet.best"
	WarnLocalLoad  = "Không thể đọc tệp dữ liệu cục bộ"
	WarnQueueLoad  = "Không thể đọc hàng đợi đồng bộ"
)

const tableKey = "contracts"

type (
	// LoadReport is the reconciled table plus everything that went wrong
	// while producing it.
	LoadReport struct {
		Contracts []core.Contract
		Source    Source
		Warnings  []string
	}

	// SaveReport describes a mutation that reached the local cache file.
	SaveReport struct {
		Changed  int
		Warnings []string
	}

	// DashboardView is one rendered dashboard with its load diagnostics.
	DashboardView struct {
		core.Dashboard
		// ContractIDs lists every id of the unfiltered table for the update forms.
		ContractIDs []string
		Source      Source
		Warnings    []string
	}
)

// UnsyncedTables returns the newest saved table that has not reached the
// remote store yet. ok is false when the remote is up to date.
type UnsyncedTables interface {
	LatestUnsyncedRows(ctx context.Context) (rows []core.Row, ok bool, err error)
}

// ContractServiceConfig holds the collaborators of a ContractService.
type ContractServiceConfig struct {
	Remote sheets.RowReader
	Pusher Pusher
	// Unsynced is the outbox of a queued Pusher. While it holds a table the
	// remote is stale and is not read.
	Unsynced  UnsyncedTables
	CacheFile string
	// CacheTTL keeps a loaded table in memory. Zero disables caching.
	CacheTTL time.Duration
}

// ContractService runs the load, reconcile and save pipeline.
type ContractService struct {
	remote    sheets.RowReader
	pusher    Pusher
	unsynced  UnsyncedTables
	cacheFile string

	tables *cache.LRUCache[LoadReport]
	loads  singleflight.Group

	// gen counts saves; a load only caches its table if no save happened
	// while it ran
	cacheMu sync.Mutex
	gen     uint64

	// serializes read-modify-write cycles within this process
	writeMu sync.Mutex
}

func NewContractService(cfg ContractServiceConfig) *ContractService {
	s := &ContractService{
		remote:    cfg.Remote,
		pusher:    cfg.Pusher,
		unsynced:  cfg.Unsynced,
		cacheFile: cfg.CacheFile,
	}
	if s.remote == nil {
		s.remote = sheets.Disabled{}
	}
	if s.pusher == nil {
		s.pusher = NopPusher{}
	}
	if cfg.CacheTTL > 0 {
		s.tables = cache.NewLRUCache[LoadReport](1, cfg.CacheTTL)
	}
	return s
}

// TableCache exposes the in-memory table cache for periodic cleanup, or nil
// when caching is disabled.
func (s *ContractService) TableCache() cache.Cleaner {
	if s.tables == nil {
		return nil
	}
	return s.tables
}

// Load returns the current table. A queued table not yet pushed wins, then a
// non-empty remote table, then the local cache file, then an empty table.
// Failures become warnings.
func (s *ContractService) Load(ctx context.Context) (LoadReport, error) {
	if s.tables != nil {
		if r, ok := s.tables.Get(tableKey); ok {
			return r.clone(), nil
		}
	}

	ch := s.loads.DoChan(tableKey, func() (any, error) {
		gen := s.generation()
		// detached so one cancelled caller does not fail the others
		r := s.reconcile(context.WithoutCancel(ctx))
		s.storeTable(gen, r)
		return r, nil
	})

	select {
	case <-ctx.Done():
		return LoadReport{}, ctx.Err()
	case res := <-ch:
		return res.Val.(LoadReport).clone(), nil
	}
}

func (s *ContractService) generation() uint64 {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.gen
}

func (s *ContractService) storeTable(gen uint64, r LoadReport) {
	if s.tables == nil {
		return
	}
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.gen == gen {
		s.tables.Set(tableKey, r)
	}
}

// invalidate drops the cached table and detaches loads already in flight so
// that the next Load reads the saved state.
func (s *ContractService) invalidate() {
	s.cacheMu.Lock()
	s.gen++
	if s.tables != nil {
		s.tables.Delete(tableKey)
	}
	s.cacheMu.Unlock()
	s.loads.Forget(tableKey)
}

func (s *ContractService) reconcile(ctx context.Context) LoadReport {
	var report LoadReport

	readRemote := true
	if s.unsynced != nil {
		rows, ok, err := s.unsynced.LatestUnsyncedRows(ctx)
		switch {
		case err != nil:
			// the remote may be behind the last save, the local file is not
			slog.WarnContext(ctx, "Outbox load failed", "error", err)
			report.warn(WarnQueueLoad, err)
			readRemote = false
		case ok:
			report.Contracts = core.NormalizeRows(rows)
			report.Source = SourceQueued
			slog.DebugContext(ctx, "Table loaded", "source", report.Source, "rows", len(rows))
			return report
		}
	}

	if readRemote {
		rows, err := s.remote.ReadAll(ctx)
		switch {
		case errors.Is(err, sheets.ErrNotConfigured):
		case err != nil:
			slog.WarnContext(ctx, "Remote load failed", "error", err)
			report.warn(WarnRemoteLoad, err)
		case len(rows) > 0:
			report.Contracts = core.NormalizeRows(rows)
			report.Source = SourceRemote
			slog.DebugContext(ctx, "Table loaded", "source", report.Source, "rows", len(rows))
			return report
		}
	}

	rows, err := workbook.ReadCache(s.cacheFile)
	switch {
	case errors.Is(err, workbook.ErrNoCache):
	case err != nil:
		slog.WarnContext(ctx, "Local cache load failed", "path", s.cacheFile, "error", err)
		report.warn(WarnLocalLoad, err)
	case len(rows) > 0:
		report.Contracts = core.NormalizeRows(rows)
		report.Source = SourceLocal
		slog.DebugContext(ctx, "Table loaded", "source", report.Source, "rows", len(rows))
		return report
	}

	report.Contracts = []core.Contract{}
	report.Source = SourceEmpty
	return report
}

// Dashboard loads the table and aggregates it under f.
func (s *ContractService) Dashboard(ctx context.Context, f core.Filter) (DashboardView, error) {
	report, err := s.Load(ctx)
	if err != nil {
		return DashboardView{}, err
	}
	return DashboardView{
		Dashboard:   core.BuildDashboard(report.Contracts, f),
		ContractIDs: core.ContractIDs(report.Contracts),
		Source:      report.Source,
		Warnings:    report.Warnings,
	}, nil
}

// Create appends c to the table and saves it.
func (s *ContractService) Create(ctx context.Context, c core.Contract) (SaveReport, error) {
	return s.mutate(ctx, func(table []core.Contract) ([]core.Contract, int, error) {
		out, err := core.AppendContract(table, c)
		if err != nil {
			return nil, 0, err
		}
		return out, 1, nil
	})
}

// Update overwrites the settled value and ledger of every record with contractID.
func (s *ContractService) Update(ctx context.Context, contractID string, settled float64, ledger string) (SaveReport, error) {
	return s.mutate(ctx, func(table []core.Contract) ([]core.Contract, int, error) {
		return core.UpdateContract(table, contractID, settled, ledger)
	})
}

// RecordPayment appends one ledger entry to every record with contractID.
func (s *ContractService) RecordPayment(ctx context.Context, contractID string, date core.Date, amount decimal.Decimal) (SaveReport, error) {
	return s.mutate(ctx, func(table []core.Contract) ([]core.Contract, int, error) {
		return core.RecordPayment(table, contractID, date, amount)
	})
}

func (s *ContractService) mutate(ctx context.Context, fn func([]core.Contract) ([]core.Contract, int, error)) (SaveReport, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	loaded, err := s.Load(ctx)
	if err != nil {
		return SaveReport{}, err
	}
	table, changed, err := fn(loaded.Contracts)
	if err != nil {
		return SaveReport{}, err
	}

	report, err := s.save(ctx, table)
	if err != nil {
		return SaveReport{}, err
	}
	report.Changed = changed
	report.Warnings = append(loaded.Warnings, report.Warnings...)
	return report, nil
}

// Save overwrites the local cache file with table and pushes it to the
// remote store. Only the local write can fail the call.
func (s *ContractService) Save(ctx context.Context, table []core.Contract) (SaveReport, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.save(ctx, table)
}

func (s *ContractService) save(ctx context.Context, table []core.Contract) (SaveReport, error) {
	var report SaveReport

	defer s.invalidate()

	if err := workbook.WriteCache(s.cacheFile, table); err != nil {
		return report, fmt.Errorf("write local cache: %w", err)
	}

	err := s.pusher.Push(ctx, core.Rows(table))
	switch {
	case err == nil, errors.Is(err, sheets.ErrNotConfigured):
	default:
		slog.WarnContext(ctx, "Remote push failed", "rows", len(table), "error", err)
		report.Warnings = append(report.Warnings, fmt.Sprintf("%s: %v", WarnRemotePush, err))
	}

	slog.InfoContext(ctx, "Table saved", "rows", len(table), "path", s.cacheFile)
	return report, nil
}

func (r *LoadReport) warn(msg string, err error) {
	r.Warnings = append(r.Warnings, fmt.Sprintf("%s: %v", msg, err))
}

func (r LoadReport) clone() LoadReport {
	r.Contracts = slices.Clone(r.Contracts)
	r.Warnings = slices.Clone(r.Warnings)
	return r
}
