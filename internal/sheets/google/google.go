package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"hopdong/internal/core"
	ports "hopdong/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const headerCacheTTL = 5 * time.Minute

// Options selects the sheet and the service account.
type Options struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
	Timeout            time.Duration
}

// Client stores the contract table in one sheet whose first row holds the
// column names.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string

	// The header is read once per push instead of once per inserted row.
	mu                 sync.Mutex
	cachedHeader       []string
	cacheExpiresAt     time.Time
	cacheValidDuration time.Duration
}

var _ ports.RemoteStore = (*Client)(nil)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheetName := strings.TrimSpace(opts.SheetName)
	if sheetName == "" {
		sheetName = "Contracts"
	}

	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, spreadsheetID, sheetName), nil
}

// NewWithService wraps an already configured service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string) *Client {
	return &Client{
		svc:                svc,
		spreadsheetID:      spreadsheetID,
		sheetName:          sheetName,
		cacheValidDuration: headerCacheTTL,
	}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(opts.ServiceAccountJSON)
	serviceAccountFile := strings.TrimSpace(opts.ServiceAccountFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		data, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = data
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
		goption.WithHTTPClient(newHTTPClientWithPooling(opts.Timeout)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// newHTTPClientWithPooling creates an HTTP client with connection pooling
// and keep-alive for the Sheets API.
func newHTTPClientWithPooling(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

func (c *Client) rng(cells string) string {
	return fmt.Sprintf("%s!%s", c.sheetName, cells)
}

// ReadAll reads every row below the header. Numbers and dates come back
// unformatted so that dates arrive as spreadsheet serial numbers.
func (c *Client) ReadAll(ctx context.Context) ([]core.Row, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.rng("A:Z")).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.rng("A:Z"), err)
	}
	if len(resp.Values) > 0 {
		c.storeHeader(toStrings(resp.Values[0]))
	}
	return parseRows(resp.Values), nil
}

// DeleteAll clears every row below the header.
func (c *Client) DeleteAll(ctx context.Context) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, c.rng("A2:Z"), &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", c.rng("A2:Z"), err)
	}
	return nil
}

// Insert appends one row, ordering the values by the sheet header. An
// empty sheet first gets the canonical header.
func (c *Client) Insert(ctx context.Context, row core.Row) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	header, err := c.header(ctx)
	if err != nil {
		return err
	}

	vr := &gsheet.ValueRange{Values: [][]any{rowValues(header, row)}}
	_, err = c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.rng("A:Z"), vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", c.sheetName, err)
	}
	return nil
}

func (c *Client) header(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	if len(c.cachedHeader) > 0 && time.Now().Before(c.cacheExpiresAt) {
		h := c.cachedHeader
		c.mu.Unlock()
		return h, nil
	}
	c.mu.Unlock()

	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.rng("1:1")).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", c.sheetName, err)
	}
	var header []string
	if len(resp.Values) > 0 {
		header = toStrings(resp.Values[0])
	}
	if !hasAnyColumn(header) {
		header = append([]string(nil), core.Columns...)
		vr := &gsheet.ValueRange{Values: [][]any{stringsToValues(header)}}
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, c.rng("A1"), vr).
			ValueInputOption("RAW").Context(ctx).Do(); err != nil {
			return nil, fmt.Errorf("write header of %s: %w", c.sheetName, err)
		}
	}
	c.storeHeader(header)
	return header, nil
}

func (c *Client) storeHeader(header []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cachedHeader = header
	c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)
}

// InvalidateHeader forces the next Insert to re-read the header row.
func (c *Client) InvalidateHeader() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cacheExpiresAt = time.Time{}
}
