package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"hopdong/internal/core"
	"hopdong/internal/sheets"
)

// SeedFile is the optional JSON array of rows NewFromFiles loads.
const SeedFile = "seed_contracts.json"

// Store is an in-process remote table.
type Store struct {
	mu   sync.Mutex
	rows []core.Row
	err  error
}

var _ sheets.RemoteStore = (*Store)(nil)

func New(rows ...core.Row) *Store {
	s := &Store{}
	for _, r := range rows {
		s.rows = append(s.rows, maps.Clone(r))
	}
	return s
}

// NewFromFiles seeds the store from base/seed_contracts.json. A missing or
// unreadable file yields an empty store.
func NewFromFiles(base string) *Store {
	data, err := os.ReadFile(filepath.Join(base, SeedFile))
	if err != nil {
		return New()
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw []map[string]any
	if err := dec.Decode(&raw); err != nil {
		return New()
	}
	rows := make([]core.Row, len(raw))
	for i, r := range raw {
		rows[i] = core.Row(r)
	}
	return New(rows...)
}

// Fail makes every following call return err until it is called with nil.
func (s *Store) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *Store) ReadAll(_ context.Context) ([]core.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]core.Row, len(s.rows))
	for i, r := range s.rows {
		out[i] = maps.Clone(r)
	}
	return out, nil
}

func (s *Store) DeleteAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.rows = nil
	return nil
}

func (s *Store) Insert(_ context.Context, row core.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.rows = append(s.rows, maps.Clone(row))
	return nil
}

// Len returns the number of stored rows.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
