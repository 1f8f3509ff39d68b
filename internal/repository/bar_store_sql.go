package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	applogger "PriceCast/pkg/logger"
)

// SQLBarSchema returns the bars DDL for a sqlx driver name.
func SQLBarSchema(driver string) []string {
	ts, num := "TIMESTAMPTZ", "DOUBLE PRECISION"
	if driver == "sqlite3" {
		ts, num = "DATETIME", "REAL"
	}
	return []string{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS bars (
    ticker TEXT NOT NULL,
    period TEXT NOT NULL,
    ts     %[1]s NOT NULL,
    open   %[2]s NOT NULL,
    high   %[2]s NOT NULL,
    low    %[2]s NOT NULL,
    close  %[2]s NOT NULL,
    volume %[2]s NOT NULL,
    PRIMARY KEY (ticker, period, ts)
)`, ts, num)}
}

type barRow struct {
	Ticker string    `db:"ticker"`
	Period string    `db:"period"`
	TS     time.Time `db:"ts"`
	Open   float64   `db:"open"`
	High   float64   `db:"high"`
	Low    float64   `db:"low"`
	Close  float64   `db:"close"`
	Volume float64   `db:"volume"`
}

const insertBarRow = `INSERT INTO bars (ticker, period, ts, open, high, low, close, volume)
VALUES (:ticker, :period, :ts, :open, :high, :low, :close, :volume)`

// sqlInsertChunk keeps a batch under SQLite's 32766 bind variable limit.
const sqlInsertChunk = 1000

// SQLBarStore keeps bar history in a relational table (postgres or sqlite3).
// Saving replaces the whole history of an identity inside a transaction.
type SQLBarStore struct {
	db *sqlx.DB
	l  *applogger.Logger
}

var _ domrepo.BarStore = (*SQLBarStore)(nil)

func NewSQLBarStore(db *sqlx.DB, l *applogger.Logger) *SQLBarStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &SQLBarStore{db: db, l: l}
}

// InitSchema creates the bars table if it does not exist.
func (s *SQLBarStore) InitSchema(ctx context.Context) error {
	for _, stmt := range SQLBarSchema(s.db.DriverName()) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s schema: %w", s.db.DriverName(), err)
		}
	}
	return nil
}

func (s *SQLBarStore) SaveBars(ctx context.Context, id models.Identity, bars []models.Bar) error {
	start := time.Now()
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save bars %s: begin: %w", id, err)
	}
	defer func() { _ = tx.Rollback() }()

	del := tx.Rebind(`DELETE FROM bars WHERE ticker = ? AND period = ?`)
	if _, err := tx.ExecContext(ctx, del, id.Ticker, id.Interval); err != nil {
		return fmt.Errorf("save bars %s: clear: %w", id, err)
	}
	for lo := 0; lo < len(bars); lo += sqlInsertChunk {
		hi := lo + sqlInsertChunk
		if hi > len(bars) {
			hi = len(bars)
		}
		rows := make([]barRow, 0, hi-lo)
		for _, b := range bars[lo:hi] {
			rows = append(rows, barRow{
				Ticker: id.Ticker, Period: id.Interval, TS: b.Time.UTC(),
				Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume,
			})
		}
		if _, err := tx.NamedExecContext(ctx, insertBarRow, rows); err != nil {
			s.l.Error("sql save_bars error",
				applogger.String("driver", s.db.DriverName()),
				applogger.String("identity", id.Key()),
				applogger.Int("offset", lo),
				applogger.Error(err),
			)
			return fmt.Errorf("save bars %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save bars %s: commit: %w", id, err)
	}
	s.l.Info("sql save_bars ok",
		applogger.String("driver", s.db.DriverName()),
		applogger.String("identity", id.Key()),
		applogger.Int("rows", len(bars)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

func (s *SQLBarStore) LoadBars(ctx context.Context, id models.Identity) ([]models.Bar, error) {
	var rows []barRow
	q := s.db.Rebind(`SELECT ticker, period, ts, open, high, low, close, volume
        FROM bars WHERE ticker = ? AND period = ? ORDER BY ts ASC`)
	if err := s.db.SelectContext(ctx, &rows, q, id.Ticker, id.Interval); err != nil {
		s.l.Error("sql load_bars error", applogger.String("identity", id.Key()), applogger.Error(err))
		return nil, fmt.Errorf("load bars %s: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", domrepo.ErrNoBars, id)
	}
	out := make([]models.Bar, len(rows))
	for i, r := range rows {
		out[i] = models.Bar{Time: r.TS.UTC(), Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Volume: r.Volume}
	}
	return out, nil
}

// Close is a no-op; the pool is closed by whoever opened it.
func (s *SQLBarStore) Close() error { return nil }
