package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"fincore/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

var _ sheets.TransactionWriter = (*Client)(nil)

// Config selects the spreadsheet and credentials. SheetName is the base
// name; each transaction lands in "<year> <SheetName>".
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
	IDCacheTTL      time.Duration
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string

	// Per-sheet index of exported ids, refreshed after cacheValidDuration.
	mu                 sync.Mutex
	idIndex            map[string]sheetIndex
	cacheValidDuration time.Duration
}

type sheetIndex struct {
	refs      map[string]string
	rows      int
	expiresAt time.Time
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if cfg.SheetName == "" {
		cfg.SheetName = "Ledger"
	}
	if cfg.IDCacheTTL <= 0 {
		cfg.IDCacheTTL = 5 * time.Minute
	}

	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:                svc,
		spreadsheetID:      cfg.SpreadsheetID,
		sheetBase:          cfg.SheetName,
		idIndex:            map[string]sheetIndex{},
		cacheValidDuration: cfg.IDCacheTTL,
	}, nil
}

func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	var credentialsJSON []byte
	switch {
	case cfg.CredentialsJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(cfg.CredentialsJSON)
	case cfg.CredentialsFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", cfg.CredentialsFile)
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created successfully")
	return service, nil
}

// Append writes r to the sheet for its year unless a row with the same id is
// already there, in which case the existing reference is returned.
func (c *Client) Append(ctx context.Context, r sheets.Row) (string, error) {
	if r.ID == "" {
		return "", errors.New("row without id")
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	sheet := yearPrefixedName(c.sheetBase, r.Year)

	c.mu.Lock()
	defer c.mu.Unlock()

	idx, err := c.indexLocked(ctx, sheet)
	if err != nil {
		return "", err
	}
	if ref, ok := idx.refs[r.ID]; ok {
		slog.DebugContext(ctx, "Row already exported", "transaction_id", r.ID, "sheets_ref", ref)
		return ref, nil
	}

	vr := &gsheet.ValueRange{Values: [][]any{r.Values()}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, sheet+"!A:H", vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		c.invalidateLocked(sheet)
		return "", fmt.Errorf("append row to %s: %w", sheet, err)
	}

	idx.rows++
	ref := rowRef(sheet, idx.rows)
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	idx.refs[r.ID] = ref
	c.idIndex[sheet] = idx
	return ref, nil
}

// indexLocked returns the cached id index for sheet, reading the id column
// when the cache is stale. A missing sheet is created with a header row.
func (c *Client) indexLocked(ctx context.Context, sheet string) (sheetIndex, error) {
	if idx, ok := c.idIndex[sheet]; ok && time.Now().Before(idx.expiresAt) {
		return idx, nil
	}

	rng := sheet + "!H:H"
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		if !isMissingSheet(err) {
			return sheetIndex{}, fmt.Errorf("read %s: %w", rng, err)
		}
		if err := c.createSheet(ctx, sheet); err != nil {
			return sheetIndex{}, err
		}
		resp = &gsheet.ValueRange{Values: [][]any{{sheets.Header[len(sheets.Header)-1]}}}
	}

	idx := sheetIndex{
		refs:      indexIDs(resp.Values, sheet),
		rows:      len(resp.Values),
		expiresAt: time.Now().Add(c.cacheValidDuration),
	}
	c.idIndex[sheet] = idx
	return idx, nil
}

func (c *Client) createSheet(ctx context.Context, sheet string) error {
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: sheet}},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}

	header := &gsheet.ValueRange{Values: [][]any{sheets.Header}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, sheet+"!A1:H1", header).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header to %s: %w", sheet, err)
	}
	slog.InfoContext(ctx, "Created ledger sheet", "sheet", sheet)
	return nil
}

func (c *Client) invalidateLocked(sheet string) {
	delete(c.idIndex, sheet)
}

func isMissingSheet(err error) bool {
	return strings.Contains(err.Error(), "Unable to parse range")
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
