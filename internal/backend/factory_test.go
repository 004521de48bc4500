package backend

import (
	"context"
	"path/filepath"
	"testing"

	"fincore/internal/config"
	"fincore/internal/core"
)

func TestFromAppConfig(t *testing.T) {
	tests := []struct {
		name    string
		in      *config.Config
		want    Config
		wantErr bool
	}{
		{"nil config", nil, Config{}, true},
		{"unknown backend", &config.Config{DataBackend: "sheets"}, Config{}, true},
		{
			name: "sqlite",
			in:   &config.Config{DataBackend: "sqlite", SQLiteDBPath: "./data/x.db"},
			want: Config{Type: SQLiteBackend, SQLiteDBPath: "./data/x.db"},
		},
		{
			name: "postgres",
			in:   &config.Config{DataBackend: "postgres", DatabaseURL: "postgres://localhost/fincore"},
			want: Config{Type: PostgresBackend, DatabaseURL: "postgres://localhost/fincore"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAppConfig(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite with path", Config{Type: SQLiteBackend, SQLiteDBPath: "x.db"}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"postgres without url", Config{Type: PostgresBackend}, true},
		{"unknown", Config{Type: "redis"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateBackend(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(nil)

	for _, cfg := range []Config{
		{Type: MemoryBackend},
		{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "fincore.db")},
	} {
		t.Run(cfg.Type.String(), func(t *testing.T) {
			res, err := f.CreateBackend(ctx, cfg)
			if err != nil {
				t.Fatalf("CreateBackend: %v", err)
			}
			defer res.Cleanup()

			if err := res.Store.Ping(ctx); err != nil {
				t.Fatalf("Ping: %v", err)
			}
			cat := core.Category{ID: "c1", Name: "Salary", Type: core.CategoryIncome}
			if err := res.Store.CreateCategory(ctx, &cat); err != nil {
				t.Fatalf("CreateCategory: %v", err)
			}
			pending, err := res.Store.PendingSync(ctx, 10)
			if err != nil || len(pending) != 0 {
				t.Errorf("PendingSync = %v, %v", pending, err)
			}
		})
	}

	if _, err := f.CreateBackend(ctx, Config{Type: PostgresBackend}); err == nil {
		t.Error("expected error for postgres without url")
	}
}
