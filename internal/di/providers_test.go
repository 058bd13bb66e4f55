package di

import (
	"context"
	"testing"

	internalrepo "SignalFlow/internal/repository"
	"SignalFlow/internal/services/marketdata"
	"SignalFlow/internal/services/oracle"
	"SignalFlow/pkg/cache"
	"SignalFlow/pkg/config"
	applogger "SignalFlow/pkg/logger"
	pkgmetrics "SignalFlow/pkg/metrics"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("../../config/config.yaml")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return cfg
}

func TestDisabledInfrastructureProvidesNothing(t *testing.T) {
	cfg := testConfig(t)
	l := applogger.Nop()

	ch, cleanup, err := ProvideClickHouseClient(cfg, l)
	if err != nil || ch != nil {
		t.Fatalf("expected no clickhouse client, got %v, %v", ch, err)
	}
	cleanup()

	producer, cleanup, err := ProvideKafkaProducer(cfg, l)
	if err != nil || producer != nil {
		t.Fatalf("expected no producer, got %v, %v", producer, err)
	}
	cleanup()

	if _, ok := ProvidePredictionPublisher(nil, cfg).(internalrepo.NopPredictionPublisher); !ok {
		t.Fatalf("expected nop publisher without kafka")
	}
	if store := ProvideCandleStore(nil, l); store != nil {
		t.Fatalf("expected nil candle store")
	}
	if consumer, err := ProvideKafkaConsumer(cfg, l); err != nil || consumer != nil {
		t.Fatalf("expected no consumer, got %v, %v", consumer, err)
	}
	if judge := ProvideJudgmentOracle(cfg, nil, pkgmetrics.Nop{}, l); judge != nil {
		t.Fatalf("expected no oracle when disabled")
	}
}

func TestCacheDefaultsToMemory(t *testing.T) {
	cfg := testConfig(t)
	c, cleanup, err := ProvideCache(cfg, applogger.Nop())
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	defer cleanup()
	if _, ok := c.(*cache.MemoryCache); !ok {
		t.Fatalf("expected memory cache, got %T", c)
	}
	if err := c.Set(context.Background(), "k", "v", 0); err != nil {
		t.Fatalf("set: %v", err)
	}
}

func TestMarketDataChain(t *testing.T) {
	cfg := testConfig(t)
	p, err := ProvideMarketDataProvider(cfg, nil, cache.NewMemoryCache(), applogger.Nop())
	if err != nil {
		t.Fatalf("provider: %v", err)
	}
	if _, ok := p.(*marketdata.CachedProvider); !ok {
		t.Fatalf("expected cached provider on top, got %T", p)
	}

	cfg.Market.Source = "clickhouse"
	if _, err := ProvideMarketDataProvider(cfg, nil, nil, applogger.Nop()); err == nil {
		t.Fatalf("expected error for clickhouse source without a store")
	}
}

func TestOracleEnabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Oracle.Enabled = true
	cfg.Oracle.APIKey = "k"
	cfg.Oracle.Models = []string{"m1"}
	judge := ProvideJudgmentOracle(cfg, cache.NewMemoryCache(), pkgmetrics.Nop{}, applogger.Nop())
	if _, ok := judge.(*oracle.Gate); !ok {
		t.Fatalf("expected oracle gate, got %T", judge)
	}
}
