package marketdata

import (
	"context"
	"time"

	"SignalFlow/internal/domain/models"
	domrepo "SignalFlow/internal/domain/repository"
	"SignalFlow/pkg/cache"
)

// CachedProvider memoizes fetches per pair and timeframe.
type CachedProvider struct {
	next  domrepo.MarketDataProvider
	cache cache.Service
	ttl   time.Duration
}

func NewCachedProvider(next domrepo.MarketDataProvider, c cache.Service, ttl time.Duration) *CachedProvider {
	return &CachedProvider{next: next, cache: c, ttl: ttl}
}

func (p *CachedProvider) Fetch(ctx context.Context, pair string, tf domrepo.Timeframe) (*models.MarketData, error) {
	if p.cache == nil || p.ttl <= 0 {
		return p.next.Fetch(ctx, pair, tf)
	}
	key := cache.Key("market", NormalizePair(pair), tf)
	return cache.GetOrLoad(ctx, p.cache, key, p.ttl, func(ctx context.Context) (*models.MarketData, error) {
		return p.next.Fetch(ctx, pair, tf)
	})
}
