package google

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fincore/internal/sheets"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{CredentialsJSON: "{}"})
	if err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_CredentialErrors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "no credentials",
			cfg:     Config{SpreadsheetID: "sheet"},
			wantErr: "missing service account credentials",
		},
		{
			name:    "unreadable file",
			cfg:     Config{SpreadsheetID: "sheet", CredentialsFile: filepath.Join(t.TempDir(), "missing.json")},
			wantErr: "read service account file",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.cfg)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestClient_AppendWithoutService(t *testing.T) {
	c := &Client{spreadsheetID: "test", sheetBase: "Ledger", idIndex: map[string]sheetIndex{}}

	if _, err := c.Append(context.Background(), sheets.Row{Year: 2024}); err == nil {
		t.Error("expected error for row without id")
	}
	_, err := c.Append(context.Background(), sheets.Row{Year: 2024, ID: "tx-1"})
	if err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Errorf("err = %v, want service not initialized", err)
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		year int
		want string
	}{
		{"Ledger", 2024, "2024 Ledger"},
		{"  Ledger  ", 2025, "2025 Ledger"},
		{"2023 Ledger", 2024, "2023 Ledger"},
		{"1800 Ledger", 2024, "2024 1800 Ledger"},
		{"2024Ledger", 2024, "2024 2024Ledger"},
		{"", 2024, ""},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := yearPrefixedName(tt.base, tt.year); got != tt.want {
				t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.want)
			}
		})
	}
}

func TestIndexIDs(t *testing.T) {
	values := [][]interface{}{
		{"ID"},
		{"tx-1"},
		{},
		{" tx-2 "},
		{"tx-1"},
		{""},
	}
	refs := indexIDs(values, "2024 Ledger")

	want := map[string]string{
		"tx-1": "2024 Ledger!A2:H2",
		"tx-2": "2024 Ledger!A4:H4",
	}
	if len(refs) != len(want) {
		t.Fatalf("refs = %v, want %v", refs, want)
	}
	for id, ref := range want {
		if refs[id] != ref {
			t.Errorf("refs[%q] = %q, want %q", id, refs[id], ref)
		}
	}
}

func TestIDCacheAndInvalidate(t *testing.T) {
	c := &Client{
		svc:                nil,
		spreadsheetID:      "test",
		sheetBase:          "Ledger",
		cacheValidDuration: time.Minute,
		idIndex:            map[string]sheetIndex{},
	}
	c.idIndex["2024 Ledger"] = sheetIndex{
		refs:      map[string]string{"tx-1": "2024 Ledger!A2:H2"},
		rows:      2,
		expiresAt: time.Now().Add(time.Minute),
	}

	c.mu.Lock()
	idx, err := c.indexLocked(context.Background(), "2024 Ledger")
	c.mu.Unlock()
	if err != nil {
		t.Fatalf("indexLocked: %v", err)
	}
	if idx.refs["tx-1"] != "2024 Ledger!A2:H2" {
		t.Errorf("cached ref = %q", idx.refs["tx-1"])
	}

	c.mu.Lock()
	c.invalidateLocked("2024 Ledger")
	_, cached := c.idIndex["2024 Ledger"]
	c.mu.Unlock()
	if cached {
		t.Error("cache entry survived invalidation")
	}
}
