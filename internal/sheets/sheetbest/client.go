// Package sheetbest talks to a key-less spreadsheet REST connection that
// exposes a sheet as a JSON array of flat objects.
//
//	GET    <url>  -> [{"contract_id": "...", ...}, ...]
//	DELETE <url>  -> removes every row
//	POST   <url>  -> appends the JSON object in the body as one row
package sheetbest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"hopdong/internal/core"
	"hopdong/internal/sheets"
)

const maxErrorBody = 512

// Client wraps interactions with one sheet connection URL.
type Client struct {
	url        string
	httpClient *http.Client
}

var _ sheets.RemoteStore = (*Client)(nil)

// NewClient constructs a new client. A zero timeout means 15 seconds.
func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		url: strings.TrimRight(url, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// StatusError reports a non-2xx answer.
type StatusError struct {
	Method string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("sheetbest %s returned status %d", e.Method, e.Status)
	}
	return fmt.Sprintf("sheetbest %s returned status %d: %s", e.Method, e.Status, e.Body)
}

// ReadAll fetches every row. Numbers keep their JSON text so that the
// schema normalizer decides how to read them.
func (c *Client) ReadAll(ctx context.Context) ([]core.Row, error) {
	resp, err := c.do(ctx, http.MethodGet, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var raw []map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode sheetbest rows: %w", err)
	}

	rows := make([]core.Row, len(raw))
	for i, r := range raw {
		rows[i] = core.Row(r)
	}
	return rows, nil
}

// DeleteAll removes every row of the sheet.
func (c *Client) DeleteAll(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodDelete, nil)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// Insert appends one row.
func (c *Client) Insert(ctx context.Context, row core.Row) error {
	body, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode row: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, body)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

func (c *Client) do(ctx context.Context, method string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sheetbest %s: %w", method, err)
	}
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()
		return nil, &StatusError{Method: method, Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	return resp, nil
}
