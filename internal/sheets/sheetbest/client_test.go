package sheetbest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hopdong/internal/core"
	"hopdong/internal/sheets"
)

// fakeSheet emulates the three verbs of the sheet connection.
type fakeSheet struct {
	mu   sync.Mutex
	rows []map[string]any
	fail int
}

func (f *fakeSheet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail != 0 {
		http.Error(w, "boom", f.fail)
		return
	}
	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(f.rows)
	case http.MethodDelete:
		f.rows = nil
		w.WriteHeader(http.StatusOK)
	case http.MethodPost:
		var row map[string]any
		if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.rows = append(f.rows, row)
		w.WriteHeader(http.StatusCreated)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestClient_ReadAll(t *testing.T) {
	fake := &fakeSheet{rows: []map[string]any{
		{"contract_id": "HD-01", "customer_name": "A", "settled_value": "1,500,000", "signed_date": "2024-01-15"},
		{"contract_id": "HD-02", "customer_name": "B", "settled_value": 2000000},
	}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	rows, err := NewClient(srv.URL, time.Second).ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	contracts := core.NormalizeRows(rows)
	assert.Equal(t, 1500000.0, contracts[0].SettledValue)
	assert.Equal(t, 2000000.0, contracts[1].SettledValue)
	assert.Equal(t, 1, contracts[0].Month)
}

func TestClient_PushReplacesRows(t *testing.T) {
	fake := &fakeSheet{rows: []map[string]any{{"contract_id": "old"}}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second)
	rows := []core.Row{
		{"contract_id": "1", "customer_name": "A"},
		{"contract_id": "2", "customer_name": "B"},
	}
	require.NoError(t, sheets.Push(context.Background(), c, rows))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.rows, 2)
	assert.Equal(t, "1", fake.rows[0]["contract_id"])
	assert.Equal(t, "2", fake.rows[1]["contract_id"])
}

func TestClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(&fakeSheet{fail: http.StatusServiceUnavailable})
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).ReadAll(context.Background())
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.Status)
	assert.Equal(t, http.MethodGet, se.Method)
	assert.Contains(t, se.Error(), "boom")
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(&fakeSheet{})
	url := srv.URL
	srv.Close()

	err := NewClient(url, time.Second).DeleteAll(context.Background())
	assert.Error(t, err)
}

func TestClient_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"an array"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).ReadAll(context.Background())
	assert.ErrorContains(t, err, "decode sheetbest rows")
}
