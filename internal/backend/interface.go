package backend

import (
	"context"
	"time"

	"hopdong/internal/sheets"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the remote store and optional cleanup function
type BackendResult struct {
	Store   sheets.RemoteStore
	Cleanup CleanupFunc
}

// Factory creates remote stores based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// Sheet.best style JSON connection
	RemoteURL     string
	RemoteTimeout time.Duration

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Memory backend specific
	DataDirectory string
}

// BackendType represents the type of remote store
type BackendType string

const (
	SheetBestBackend BackendType = "sheetbest"
	SheetsBackend    BackendType = "sheets"
	MemoryBackend    BackendType = "memory"
	NoneBackend      BackendType = "none"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SheetBestBackend, SheetsBackend, MemoryBackend, NoneBackend:
		return true
	default:
		return false
	}
}
