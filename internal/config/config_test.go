package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z6l5Z0l2F5i8q2bY2KfGkC6W"

func validConfig() Config {
	return Config{
		Port:             "8081",
		LogFormat:        "text",
		RemoteBackend:    RemoteSheetBest,
		RemoteURL:        "https://api.sheetbest.com/sheets/abc",
		RemoteTimeout:    15 * time.Second,
		LocalCacheFile:   "contracts.xlsx",
		SQLiteDBPath:     "./test.db",
		PushMode:         PushDirect,
		SyncBatchSize:    10,
		SyncInterval:     30 * time.Second,
		AuthUsername:     "admin",
		AuthPasswordHash: testHash,
		SessionCookie:    "auth_token",
		SessionTTL:       24 * time.Hour,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		wantErr     bool
		errorString string
	}{
		{
			name:    "valid sheetbest config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:        "invalid port - non-numeric",
			mutate:      func(c *Config) { c.Port = "abc" },
			wantErr:     true,
			errorString: "invalid port 'abc': must be a number",
		},
		{
			name:        "invalid port - out of range high",
			mutate:      func(c *Config) { c.Port = "70000" },
			wantErr:     true,
			errorString: "invalid port 70000: must be between 1 and 65535",
		},
		{
			name:        "invalid remote backend",
			mutate:      func(c *Config) { c.RemoteBackend = "ftp" },
			wantErr:     true,
			errorString: "invalid remote backend 'ftp'",
		},
		{
			name:        "sheetbest without url",
			mutate:      func(c *Config) { c.RemoteURL = "" },
			wantErr:     true,
			errorString: "REMOTE_URL is required when using sheetbest backend",
		},
		{
			name:        "sheetbest with bad scheme",
			mutate:      func(c *Config) { c.RemoteURL = "ftp://example.com/x" },
			wantErr:     true,
			errorString: "invalid remote URL scheme 'ftp'",
		},
		{
			name: "memory backend needs no url",
			mutate: func(c *Config) {
				c.RemoteBackend = RemoteMemory
				c.RemoteURL = ""
			},
			wantErr: false,
		},
		{
			name: "sheets backend missing credentials",
			mutate: func(c *Config) {
				c.RemoteBackend = RemoteSheets
				c.GoogleSpreadsheetID = "123"
				c.GoogleSheetName = "Contracts"
			},
			wantErr:     true,
			errorString: "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided",
		},
		{
			name: "sheets backend missing spreadsheet ID",
			mutate: func(c *Config) {
				c.RemoteBackend = RemoteSheets
				c.GoogleSheetName = "Contracts"
				c.GoogleServiceAccountJSON = "{}"
			},
			wantErr:     true,
			errorString: "Google Spreadsheet ID is required when using sheets backend",
		},
		{
			name:        "invalid push mode",
			mutate:      func(c *Config) { c.PushMode = "later" },
			wantErr:     true,
			errorString: "invalid push mode 'later'",
		},
		{
			name: "queued mode with bad AMQP scheme",
			mutate: func(c *Config) {
				c.PushMode = PushQueued
				c.AMQPURL = "http://localhost:5672/"
				c.AMQPExchange = "x"
				c.AMQPQueue = "q"
			},
			wantErr:     true,
			errorString: "invalid AMQP URL scheme 'http': must be 'amqp' or 'amqps'",
		},
		{
			name: "queued mode without queue",
			mutate: func(c *Config) {
				c.PushMode = PushQueued
				c.AMQPURL = "amqp://localhost:5672/"
				c.AMQPExchange = "x"
			},
			wantErr:     true,
			errorString: "AMQP queue name cannot be empty when push mode is queued",
		},
		{
			name:    "direct mode ignores AMQP settings",
			mutate:  func(c *Config) { c.AMQPURL = "not a url" },
			wantErr: false,
		},
		{
			name:        "missing password hash",
			mutate:      func(c *Config) { c.AuthPasswordHash = "" },
			wantErr:     true,
			errorString: "AUTH_PASSWORD_HASH is required",
		},
		{
			name:        "plain text password rejected",
			mutate:      func(c *Config) { c.AuthPasswordHash = "123456" },
			wantErr:     true,
			errorString: "AUTH_PASSWORD_HASH must be a bcrypt hash",
		},
		{
			name:        "session ttl too short",
			mutate:      func(c *Config) { c.SessionTTL = time.Second },
			wantErr:     true,
			errorString: "invalid session ttl",
		},
		{
			name:        "sync batch size too large",
			mutate:      func(c *Config) { c.SyncBatchSize = 5000 },
			wantErr:     true,
			errorString: "invalid sync batch size 5000: must be at most 1000",
		},
		{
			name:        "missing logo file",
			mutate:      func(c *Config) { c.CompanyLogoPath = "/non/existent/logo.png" },
			wantErr:     true,
			errorString: "company logo file does not exist",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr && tt.errorString != "" && !strings.Contains(err.Error(), tt.errorString) {
				t.Errorf("Config.Validate() error = %v, want error containing %q", err, tt.errorString)
			}
		})
	}
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Port = "0"
	cfg.PushMode = "x"
	cfg.AuthUsername = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, part := range []string{"invalid port 0", "invalid push mode 'x'", "AUTH_USERNAME cannot be empty"} {
		if !strings.Contains(err.Error(), part) {
			t.Errorf("error %q missing %q", err, part)
		}
	}
}

func TestConfig_ValidateWorkerSkipsAuth(t *testing.T) {
	cfg := validConfig()
	cfg.AuthPasswordHash = ""
	cfg.SessionTTL = 0

	if err := cfg.ValidateWorker(); err != nil {
		t.Errorf("ValidateWorker() error = %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should require the account settings")
	}

	cfg.SyncBatchSize = 0
	if err := cfg.ValidateWorker(); err == nil {
		t.Error("ValidateWorker() should still check worker settings")
	}
}

func TestConfig_ValidateServiceAccountFile(t *testing.T) {
	tmpDir := t.TempDir()
	saFile := filepath.Join(tmpDir, "sa.json")
	if err := os.WriteFile(saFile, []byte(`{"type":"service_account"}`), 0644); err != nil {
		t.Fatalf("Failed to create service account file: %v", err)
	}

	cfg := validConfig()
	cfg.RemoteBackend = RemoteSheets
	cfg.GoogleSpreadsheetID = "123"
	cfg.GoogleSheetName = "Contracts"
	cfg.GoogleServiceAccountFile = saFile
	if err := cfg.Validate(); err != nil {
		t.Errorf("Config.Validate() unexpected error = %v", err)
	}

	cfg.GoogleServiceAccountFile = filepath.Join(tmpDir, "missing.json")
	if err := cfg.Validate(); err == nil {
		t.Errorf("Config.Validate() expected error for missing file")
	}
}

func TestLoad(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Port != "8081" {
			t.Errorf("Load() Port = %v, want 8081", cfg.Port)
		}
		if cfg.RemoteBackend != RemoteSheetBest {
			t.Errorf("Load() RemoteBackend = %v, want sheetbest", cfg.RemoteBackend)
		}
		if cfg.LocalCacheFile != "contracts.xlsx" {
			t.Errorf("Load() LocalCacheFile = %v, want contracts.xlsx", cfg.LocalCacheFile)
		}
		if cfg.SessionCookie != "auth_token" || cfg.SessionTTL != 24*time.Hour {
			t.Errorf("Load() session = %v/%v, want auth_token/24h", cfg.SessionCookie, cfg.SessionTTL)
		}
		if cfg.PushMode != PushDirect {
			t.Errorf("Load() PushMode = %v, want direct", cfg.PushMode)
		}
	})

	t.Run("environment variables", func(t *testing.T) {
		t.Setenv("PORT", "9090")
		t.Setenv("REMOTE_BACKEND", " Memory ")
		t.Setenv("PUSH_MODE", "QUEUED")
		t.Setenv("SESSION_TTL", "2h")
		t.Setenv("SYNC_BATCH_SIZE", "25")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Port != "9090" {
			t.Errorf("Load() Port = %v, want 9090", cfg.Port)
		}
		if cfg.RemoteBackend != RemoteMemory {
			t.Errorf("Load() RemoteBackend = %q, want memory", cfg.RemoteBackend)
		}
		if !cfg.Queued() {
			t.Errorf("Load() PushMode = %q, want queued", cfg.PushMode)
		}
		if cfg.SessionTTL != 2*time.Hour {
			t.Errorf("Load() SessionTTL = %v, want 2h", cfg.SessionTTL)
		}
		if cfg.SyncBatchSize != 25 {
			t.Errorf("Load() SyncBatchSize = %v, want 25", cfg.SyncBatchSize)
		}
	})

	t.Run("invalid environment variables fail", func(t *testing.T) {
		t.Setenv("SYNC_INTERVAL", "soon")
		if _, err := Load(); err == nil {
			t.Errorf("Load() expected error for invalid duration")
		}
	})
}
