package marketdata

import (
	"context"
	"fmt"

	"SignalFlow/internal/domain/models"
	domrepo "SignalFlow/internal/domain/repository"
	applogger "SignalFlow/pkg/logger"
)

// StoreProvider serves market data from a CandleStore.
type StoreProvider struct {
	store domrepo.CandleStore
	limit int
}

func NewStoreProvider(store domrepo.CandleStore, limit int) *StoreProvider {
	if limit <= 0 {
		limit = 200
	}
	return &StoreProvider{store: store, limit: limit}
}

func (p *StoreProvider) Fetch(ctx context.Context, pair string, tf domrepo.Timeframe) (*models.MarketData, error) {
	symbol := NormalizePair(pair)
	candles, err := p.store.GetLatestNCandles(ctx, symbol, p.limit, tf)
	if err != nil {
		return nil, fmt.Errorf("store candles %s %s: %w", symbol, tf, err)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w: %s %s", ErrNoCandles, symbol, tf)
	}
	return &models.MarketData{
		Pair:            symbol,
		Timeframe:       string(tf),
		CurrentPrice:    candles[len(candles)-1].Close,
		PriceChange24h:  PriceChange24h(candles),
		VolumeChangePct: VolumeChange(candles),
		Candles:         candles,
	}, nil
}

// RecordingProvider persists every successful fetch into a CandleStore.
// Store failures are logged and never fail the fetch.
type RecordingProvider struct {
	next  domrepo.MarketDataProvider
	store domrepo.CandleStore
	l     *applogger.Logger
}

func NewRecordingProvider(next domrepo.MarketDataProvider, store domrepo.CandleStore, l *applogger.Logger) *RecordingProvider {
	return &RecordingProvider{next: next, store: store, l: l}
}

func (p *RecordingProvider) Fetch(ctx context.Context, pair string, tf domrepo.Timeframe) (*models.MarketData, error) {
	md, err := p.next.Fetch(ctx, pair, tf)
	if err != nil {
		return nil, err
	}
	if err := p.store.StoreBatch(ctx, tf, md.Candles); err != nil && p.l != nil {
		p.l.Warn("candle store write failed",
			applogger.String("pair", md.Pair),
			applogger.String("tf", string(tf)),
			applogger.Error(err))
	}
	return md, nil
}
