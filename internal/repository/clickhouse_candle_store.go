package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"SignalFlow/internal/domain/models"
	domrepo "SignalFlow/internal/domain/repository"
	pkgch "SignalFlow/pkg/clickhouse"
	applogger "SignalFlow/pkg/logger"
)

const candleTable = "signalflow.candles"

// CandleSchema creates the candle table.
var CandleSchema = []string{
	`CREATE DATABASE IF NOT EXISTS signalflow`,
	`CREATE TABLE IF NOT EXISTS ` + candleTable + ` (
        bucket DateTime64(3, 'UTC'),
        symbol LowCardinality(String),
        tf LowCardinality(String),
        open Float64,
        high Float64,
        low Float64,
        close Float64,
        vol Float64
    ) ENGINE = ReplacingMergeTree
    ORDER BY (symbol, tf, bucket)`,
}

// CHCandleStore implements CandleStore backed by ClickHouse.
type CHCandleStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHCandleStore(ch *pkgch.Client) *CHCandleStore {
	return &CHCandleStore{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHCandleStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHCandleStore) GetLatestNCandles(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.Candle, error) {
	start := time.Now()
	if !domrepo.IsValidTimeframe(tf) {
		return nil, fmt.Errorf("unsupported timeframe: %s", tf)
	}
	const qtpl = `
        SELECT bucket, symbol, open, high, low, close, vol
        FROM %s FINAL
        WHERE symbol = ? AND tf = ?
        ORDER BY bucket DESC
        LIMIT ?
    `
	q := fmt.Sprintf(qtpl, candleTable)
	rows, err := s.db.QueryContext(ctx, q, symbol, string(tf), n)
	if err != nil {
		s.logErr("clickhouse latest_candles query error", symbol, tf, err)
		return nil, fmt.Errorf("get latest candles: %w", err)
	}
	defer rows.Close()

	tmp := make([]models.Candle, 0, n)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Bucket, &c.Symbol, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			s.logErr("clickhouse latest_candles scan error", symbol, tf, err)
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		tmp = append(tmp, c)
	}
	if err := rows.Err(); err != nil {
		s.logErr("clickhouse latest_candles rows error", symbol, tf, err)
		return nil, fmt.Errorf("rows: %w", err)
	}
	reverseCandles(tmp)
	if s.l != nil {
		s.l.Debug("clickhouse latest_candles ok",
			applogger.String("symbol", symbol),
			applogger.String("tf", string(tf)),
			applogger.Int("limit", n),
			applogger.Int("rows", len(tmp)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return tmp, nil
}

func (s *CHCandleStore) StoreBatch(ctx context.Context, tf domrepo.Timeframe, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	// Chunk size tuned to 2000 rows per batch.
	const chunkSize = 2000
	for start := 0; start < len(candles); start += chunkSize {
		end := min(start+chunkSize, len(candles))
		q, args := buildCandleInsert(tf, candles[start:end])
		if len(args) == 0 {
			continue
		}
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.logErr("clickhouse store_candles error", candles[start].Symbol, tf, err)
			return fmt.Errorf("store candles: %w", err)
		}
	}
	return nil
}

// buildCandleInsert renders a multi-row VALUES insert, skipping rows without
// symbol or bucket.
func buildCandleInsert(tf domrepo.Timeframe, candles []models.Candle) (string, []interface{}) {
	values := make([]string, 0, len(candles))
	args := make([]interface{}, 0, len(candles)*8)
	for _, c := range candles {
		if c.Symbol == "" || c.Bucket.IsZero() {
			continue
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, c.Bucket, c.Symbol, string(tf), c.Open, c.High, c.Low, c.Close, c.Volume)
	}
	q := fmt.Sprintf("INSERT INTO %s (bucket, symbol, tf, open, high, low, close, vol) VALUES %s",
		candleTable, strings.Join(values, ","))
	return q, args
}

func reverseCandles(c []models.Candle) {
	for i, j := 0, len(c)-1; i < j; i, j = i+1, j-1 {
		c[i], c[j] = c[j], c[i]
	}
}

func (s *CHCandleStore) logErr(msg, symbol string, tf domrepo.Timeframe, err error) {
	if s.l == nil {
		return
	}
	s.l.Error(msg,
		applogger.String("table", candleTable),
		applogger.String("symbol", symbol),
		applogger.String("tf", string(tf)),
		applogger.Error(err),
	)
}
