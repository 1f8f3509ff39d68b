package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	pkgch "PriceCast/pkg/clickhouse"
	applogger "PriceCast/pkg/logger"
)

const insertChunk = 2000

// BarSchema returns the DDL for the bars table in database.
func BarSchema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.bars (
    ticker   LowCardinality(String),
    period   LowCardinality(String),
    ts       DateTime64(3, 'UTC'),
    open     Float64,
    high     Float64,
    low      Float64,
    close    Float64,
    volume   Float64,
    inserted DateTime DEFAULT now()
) ENGINE = ReplacingMergeTree(inserted)
ORDER BY (ticker, period, ts)`, database),
	}
}

// ClickHouseBarStore keeps bar history in one ReplacingMergeTree table;
// re-saving a range replaces rows with the same timestamp.
type ClickHouseBarStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

var _ domrepo.BarStore = (*ClickHouseBarStore)(nil)

func NewClickHouseBarStore(ch *pkgch.Client, l *applogger.Logger) *ClickHouseBarStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &ClickHouseBarStore{db: ch.DB(), table: ch.Database() + ".bars", l: l}
}

func (s *ClickHouseBarStore) SaveBars(ctx context.Context, id models.Identity, bars []models.Bar) error {
	start := time.Now()
	for lo := 0; lo < len(bars); lo += insertChunk {
		hi := lo + insertChunk
		if hi > len(bars) {
			hi = len(bars)
		}
		values := make([]string, 0, hi-lo)
		args := make([]interface{}, 0, (hi-lo)*8)
		for _, b := range bars[lo:hi] {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, id.Ticker, id.Interval, b.Time.UTC(), b.Open, b.High, b.Low, b.Close, b.Volume)
		}
		q := fmt.Sprintf("INSERT INTO %s (ticker, period, ts, open, high, low, close, volume) VALUES %s",
			s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse save_bars error",
				applogger.String("identity", id.Key()),
				applogger.Int("offset", lo),
				applogger.Error(err),
			)
			return fmt.Errorf("save bars %s: %w", id, err)
		}
	}
	s.l.Info("clickhouse save_bars ok",
		applogger.String("identity", id.Key()),
		applogger.Int("rows", len(bars)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

func (s *ClickHouseBarStore) LoadBars(ctx context.Context, id models.Identity) ([]models.Bar, error) {
	start := time.Now()
	q := fmt.Sprintf(`SELECT ts, open, high, low, close, volume
        FROM %s FINAL
        WHERE ticker = ? AND period = ?
        ORDER BY ts ASC`, s.table)
	rows, err := s.db.QueryContext(ctx, q, id.Ticker, id.Interval)
	if err != nil {
		s.l.Error("clickhouse load_bars query error", applogger.String("identity", id.Key()), applogger.Error(err))
		return nil, fmt.Errorf("load bars %s: %w", id, err)
	}
	defer rows.Close()

	out := make([]models.Bar, 0, 1024)
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Time, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", domrepo.ErrNoBars, id)
	}
	s.l.Debug("clickhouse load_bars ok",
		applogger.String("identity", id.Key()),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

// Close is a no-op; the pool belongs to pkg/clickhouse.Client.
func (s *ClickHouseBarStore) Close() error { return nil }
