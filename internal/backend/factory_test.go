package backend

import (
	"context"
	"errors"
	"testing"
	"time"

	"hopdong/internal/config"
	"hopdong/internal/sheets"
	"hopdong/internal/sheets/memory"
	"hopdong/internal/sheets/sheetbest"
)

func TestBackendType_IsValid(t *testing.T) {
	for _, bt := range GetBackendTypes() {
		if !bt.IsValid() {
			t.Errorf("%s should be valid", bt)
		}
	}
	if BackendType("sqlite").IsValid() {
		t.Errorf("sqlite is not a remote store")
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}

	cfg, err := FromAppConfig(&config.Config{
		RemoteBackend: "sheetbest",
		RemoteURL:     "https://example.com/sheet",
		RemoteTimeout: 3 * time.Second,
	})
	if err != nil {
		t.Fatalf("FromAppConfig() error = %v", err)
	}
	if cfg.Type != SheetBestBackend || cfg.RemoteURL != "https://example.com/sheet" || cfg.RemoteTimeout != 3*time.Second {
		t.Fatalf("unexpected config %+v", cfg)
	}

	if _, err := FromAppConfig(&config.Config{RemoteBackend: "ftp"}); err == nil {
		t.Fatal("expected error for invalid backend")
	}
}

func TestCreateBackend(t *testing.T) {
	f := NewFactory(nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		config  Config
		check   func(sheets.RemoteStore) bool
		wantErr bool
	}{
		{
			name:   "sheetbest",
			config: Config{Type: SheetBestBackend, RemoteURL: "http://localhost:1/x"},
			check: func(s sheets.RemoteStore) bool {
				_, ok := s.(*sheetbest.Client)
				return ok
			},
		},
		{
			name:   "memory",
			config: Config{Type: MemoryBackend, DataDirectory: t.TempDir()},
			check: func(s sheets.RemoteStore) bool {
				_, ok := s.(*memory.Store)
				return ok
			},
		},
		{
			name:   "none",
			config: Config{Type: NoneBackend},
			check: func(s sheets.RemoteStore) bool {
				_, err := s.ReadAll(ctx)
				return errors.Is(err, sheets.ErrNotConfigured)
			},
		},
		{name: "sheetbest without url", config: Config{Type: SheetBestBackend}, wantErr: true},
		{name: "sheets without credentials", config: Config{Type: SheetsBackend, GoogleSpreadsheetID: "x", GoogleSheetName: "y"}, wantErr: true},
		{name: "invalid type", config: Config{Type: "bogus"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.CreateBackend(ctx, tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CreateBackend() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !tt.check(res.Store) {
				t.Errorf("unexpected store %T", res.Store)
			}
		})
	}
}
