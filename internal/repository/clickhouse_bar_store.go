package repository

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"Ares/internal/domain/models"
	pkgch "Ares/pkg/clickhouse"
	applogger "Ares/pkg/logger"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// CHBarStore implements BarStore over a ClickHouse table with columns
// (symbol, t, open, high, low, close, volume).
type CHBarStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

// NewCHBarStore validates the table name once because it is interpolated into SQL.
func NewCHBarStore(ch *pkgch.Client, table string) (*CHBarStore, error) {
	return newCHBarStore(ch.DB(), table)
}

func newCHBarStore(db *sql.DB, table string) (*CHBarStore, error) {
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid bars table name %q", table)
	}
	return &CHBarStore{db: db, table: table, l: applogger.Nop()}, nil
}

// SetLogger injects a structured logger.
func (s *CHBarStore) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l.Component("bar_store")
	}
}

func (s *CHBarStore) GetBars(ctx context.Context, symbol string, from, to time.Time) (models.PriceSeries, error) {
	q := fmt.Sprintf(`
        SELECT t, open, high, low, close, volume
        FROM %s
        WHERE symbol = ? AND t >= ? AND t <= ?
        ORDER BY t ASC
    `, s.table)
	bars, err := s.query(ctx, "get_bars", symbol, q, symbol, from, to)
	if err != nil {
		return models.PriceSeries{}, err
	}
	return s.series(symbol, bars)
}

func (s *CHBarStore) GetLatestNBars(ctx context.Context, symbol string, n int, asOf time.Time) (models.PriceSeries, error) {
	if n <= 0 {
		return models.PriceSeries{}, fmt.Errorf("%w: bar count %d", models.ErrInsufficientData, n)
	}
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	q := fmt.Sprintf(`
        SELECT t, open, high, low, close, volume
        FROM %s
        WHERE symbol = ? AND t <= ?
        ORDER BY t DESC
        LIMIT ?
    `, s.table)
	bars, err := s.query(ctx, "latest_bars", symbol, q, symbol, asOf, n)
	if err != nil {
		return models.PriceSeries{}, err
	}
	// newest first from the query
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return s.series(symbol, bars)
}

func (s *CHBarStore) query(ctx context.Context, op, symbol, q string, args ...any) ([]models.Bar, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.l.Error("clickhouse query error",
			applogger.String("op", op),
			applogger.String("table", s.table),
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := make([]models.Bar, 0, 512)
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Time, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			s.l.Error("clickhouse scan error",
				applogger.String("op", op),
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.l.Debug("clickhouse query ok",
		applogger.String("op", op),
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func (s *CHBarStore) series(symbol string, bars []models.Bar) (models.PriceSeries, error) {
	if len(bars) == 0 {
		return models.PriceSeries{}, fmt.Errorf("%w: no bars for %s in %s", models.ErrNotFound, symbol, s.table)
	}
	return models.PriceSeries{Symbol: symbol, Bars: bars}, nil
}
