package repository

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
)

func openSQLite(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite3", filepath.Join(t.TempDir(), "bars.db"))
	if err != nil {
		t.Skipf("sqlite3 unavailable: %v", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		t.Skipf("sqlite3 unavailable: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestInsertBindsEveryColumn(t *testing.T) {
	row := barRow{Ticker: "AAPL", Period: "1day", TS: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), Close: 1}
	q, args, err := sqlx.Named(insertBarRow, row)
	if err != nil {
		t.Fatalf("named: %v", err)
	}
	if len(args) != 8 {
		t.Fatalf("bound %d args, want 8: %s", len(args), q)
	}
	if args[0] != "AAPL" || args[1] != "1day" {
		t.Fatalf("unexpected leading args %v", args[:2])
	}
}

func TestSQLBarSchemaPerDriver(t *testing.T) {
	if s := SQLBarSchema("postgres")[0]; !strings.Contains(s, "TIMESTAMPTZ") {
		t.Fatalf("postgres schema: %s", s)
	}
	if s := SQLBarSchema("sqlite3")[0]; !strings.Contains(s, "DATETIME") {
		t.Fatalf("sqlite schema: %s", s)
	}
}

func TestSQLBarStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewSQLBarStore(openSQLite(t), nil)
	if err := s.InitSchema(ctx); err != nil {
		t.Fatalf("schema: %v", err)
	}
	id := models.NewIdentity("AAPL", "15min")
	if _, err := s.LoadBars(ctx, id); !errors.Is(err, domrepo.ErrNoBars) {
		t.Fatalf("expected ErrNoBars, got %v", err)
	}

	if err := s.SaveBars(ctx, id, sampleBars(true)); err != nil {
		t.Fatalf("save: %v", err)
	}
	// A second save replaces the history instead of appending to it.
	want := sampleBars(true)[2:]
	if err := s.SaveBars(ctx, id, want); err != nil {
		t.Fatalf("resave: %v", err)
	}
	got, err := s.LoadBars(ctx, id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("%d bars, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Time.Equal(want[i].Time) || got[i].Close != want[i].Close || got[i].High != want[i].High {
			t.Fatalf("bar %d: %+v, want %+v", i, got[i], want[i])
		}
	}
	if _, err := s.LoadBars(ctx, models.NewIdentity("AAPL", "1day")); !errors.Is(err, domrepo.ErrNoBars) {
		t.Fatalf("other interval should be empty, got %v", err)
	}
}
