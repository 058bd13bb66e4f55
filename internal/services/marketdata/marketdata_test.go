package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"SignalFlow/internal/domain/models"
	domrepo "SignalFlow/internal/domain/repository"
	"SignalFlow/pkg/cache"
	applogger "SignalFlow/pkg/logger"
)

func TestBinanceFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch r.URL.Path {
		case "/api/v3/klines":
			if q.Get("symbol") != "BTCUSDT" || q.Get("interval") != "4h" || q.Get("limit") != "3" {
				t.Errorf("unexpected query %v", q)
			}
			fmt.Fprint(w, `[
				[1700000000000,"100.0","110.0","95.0","105.0","10.0",1700014399999,"0",1,"0","0","0"],
				[1700014400000,"105.0","112.0","101.0","108.0","10.0",1700028799999,"0",1,"0","0","0"],
				[1700028800000,"108.0","115.0","107.0","111.5","30.0",1700043199999,"0",1,"0","0","0"]
			]`)
		case "/api/v3/ticker/24hr":
			fmt.Fprint(w, `{"symbol":"BTCUSDT","lastPrice":"111.75","priceChangePercent":"-1.25"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewBinanceProvider(srv.URL, 3, time.Second)
	md, err := p.Fetch(context.Background(), "btc/usdt", domrepo.TF4h)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if md.Pair != "BTCUSDT" || len(md.Candles) != 3 {
		t.Fatalf("pair/candles = %s/%d", md.Pair, len(md.Candles))
	}
	if md.CurrentPrice != 111.75 || md.PriceChange24h != -1.25 {
		t.Fatalf("price stats = %v/%v", md.CurrentPrice, md.PriceChange24h)
	}
	if md.VolumeChangePct != 200 {
		t.Fatalf("volume change = %v", md.VolumeChangePct)
	}
	first := md.Candles[0]
	if !first.Bucket.Equal(time.UnixMilli(1700000000000)) || first.High != 110 || first.Low != 95 {
		t.Fatalf("first candle = %+v", first)
	}
}

func TestBinanceFetchErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("symbol") {
		case "EMPTYUSDT":
			fmt.Fprint(w, `[]`)
		case "BADUSDT":
			fmt.Fprint(w, `[[1700000000000,"x","1","1","1","1"]]`)
		default:
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"code":-1121,"msg":"Invalid symbol."}`)
		}
	}))
	defer srv.Close()

	p := NewBinanceProvider(srv.URL, 10, time.Second)
	if _, err := p.Fetch(context.Background(), "EMPTYUSDT", domrepo.TF1h); !errors.Is(err, ErrNoCandles) {
		t.Fatalf("expected ErrNoCandles, got %v", err)
	}
	if _, err := p.Fetch(context.Background(), "BADUSDT", domrepo.TF1h); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := p.Fetch(context.Background(), "NOPE", domrepo.TF1h); !errors.Is(err, ErrUnknownPair) {
		t.Fatalf("expected ErrUnknownPair, got %v", err)
	}
}

func TestBinanceRetriesServerErrors(t *testing.T) {
	var klineCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v3/klines" {
			if klineCalls.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			fmt.Fprint(w, `[[1700000000000,"100","110","95","105","12"]]`)
			return
		}
		fmt.Fprint(w, `{"lastPrice":"105","priceChangePercent":"1.5"}`)
	}))
	defer srv.Close()

	p := NewBinanceProvider(srv.URL, 10, time.Second)
	md, err := p.Fetch(context.Background(), "BTCUSDT", domrepo.TF1h)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if klineCalls.Load() != 2 || len(md.Candles) != 1 {
		t.Fatalf("expected one retry, calls=%d candles=%d", klineCalls.Load(), len(md.Candles))
	}
}

func TestDecodeKlinesDropsOpenCandle(t *testing.T) {
	rows := func(lastClose int64) [][]json.RawMessage {
		return [][]json.RawMessage{
			{json.RawMessage(`1700000000000`), json.RawMessage(`"100"`), json.RawMessage(`"101"`), json.RawMessage(`"99"`), json.RawMessage(`"100.5"`), json.RawMessage(`"50"`), json.RawMessage(`1700003599999`)},
			{json.RawMessage(`1700003600000`), json.RawMessage(`"100.5"`), json.RawMessage(`"102"`), json.RawMessage(`"100"`), json.RawMessage(`"101"`), json.RawMessage(`"3"`), json.RawMessage(fmt.Sprint(lastClose))},
		}
	}
	now := time.UnixMilli(1700005000000)

	open, err := decodeKlines("BTCUSDT", rows(1700007199999), now)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(open) != 1 || open[0].Volume != 50 {
		t.Fatalf("expected open candle dropped, got %+v", open)
	}

	closed, err := decodeKlines("BTCUSDT", rows(1700004999999), now)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(closed) != 2 {
		t.Fatalf("expected closed candle kept, got %d", len(closed))
	}

	lone, err := decodeKlines("BTCUSDT", rows(1700007199999)[1:], now)
	if err != nil || len(lone) != 1 {
		t.Fatalf("a lone open candle must be kept, got %d, %v", len(lone), err)
	}
}

func TestBinanceFetchIgnoresPartialVolume(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v3/klines" {
			fmt.Fprint(w, `[
				[1700000000000,"100","110","95","105","10",1700014399999],
				[1700014400000,"105","112","101","108","20",1700028799999],
				[1700028800000,"108","115","107","111","1",1700043199999]
			]`)
			return
		}
		fmt.Fprint(w, `{"lastPrice":"111","priceChangePercent":"0.5"}`)
	}))
	defer srv.Close()

	p := NewBinanceProvider(srv.URL, 3, time.Second)
	p.now = func() time.Time { return time.UnixMilli(1700030000000) }
	md, err := p.Fetch(context.Background(), "BTCUSDT", domrepo.TF4h)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(md.Candles) != 2 || md.Candles[1].Volume != 20 {
		t.Fatalf("expected the open candle dropped, got %d candles", len(md.Candles))
	}
	if md.VolumeChangePct != 100 {
		t.Fatalf("volume change should use closed candles only, got %v", md.VolumeChangePct)
	}
}

func TestNormalizePair(t *testing.T) {
	for in, want := range map[string]string{"btc/usdt": "BTCUSDT", "ETH-USDT": "ETHUSDT", " sol_usdt": "SOLUSDT", "BNBUSDT": "BNBUSDT"} {
		if got := NormalizePair(in); got != want {
			t.Fatalf("NormalizePair(%q)=%q want %q", in, got, want)
		}
	}
}

func hourly(n int, closeAt func(i int) float64, vol float64) []models.Candle {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, n)
	for i := range out {
		c := closeAt(i)
		out[i] = models.Candle{Bucket: base.Add(time.Duration(i) * time.Hour), Symbol: "BTCUSDT", Open: c, High: c, Low: c, Close: c, Volume: vol}
	}
	return out
}

func TestPriceChange24h(t *testing.T) {
	candles := hourly(48, func(i int) float64 { return 100 + float64(i) }, 1)
	// last close 147, close 24h earlier is 123
	want := (147.0 - 123.0) / 123.0 * 100
	if got := PriceChange24h(candles); math.Abs(got-want) > 1e-9 {
		t.Fatalf("got %v want %v", got, want)
	}
	short := hourly(5, func(i int) float64 { return 100 + float64(i) }, 1)
	if got := PriceChange24h(short); math.Abs(got-4) > 1e-9 {
		t.Fatalf("short history: got %v want 4", got)
	}
	if PriceChange24h(nil) != 0 {
		t.Fatalf("empty history must be zero")
	}
}

func TestVolumeChange(t *testing.T) {
	candles := hourly(30, func(int) float64 { return 1 }, 50)
	candles[29].Volume = 75
	if got := VolumeChange(candles); math.Abs(got-50) > 1e-9 {
		t.Fatalf("got %v want 50", got)
	}
	flat := hourly(3, func(int) float64 { return 1 }, 0)
	if VolumeChange(flat) != 0 {
		t.Fatalf("zero average must yield zero")
	}
}

type fakeStore struct {
	candles []models.Candle
	err     error
	stored  int
}

func (f *fakeStore) GetLatestNCandles(_ context.Context, _ string, n int, _ domrepo.Timeframe) ([]models.Candle, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.candles) > n {
		return f.candles[len(f.candles)-n:], nil
	}
	return f.candles, nil
}

func (f *fakeStore) StoreBatch(_ context.Context, _ domrepo.Timeframe, c []models.Candle) error {
	f.stored += len(c)
	return f.err
}

func TestStoreProvider(t *testing.T) {
	store := &fakeStore{candles: hourly(60, func(i int) float64 { return 200 + float64(i) }, 5)}
	md, err := NewStoreProvider(store, 50).Fetch(context.Background(), "BTC/USDT", domrepo.TF1h)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(md.Candles) != 50 || md.CurrentPrice != 259 {
		t.Fatalf("candles/price = %d/%v", len(md.Candles), md.CurrentPrice)
	}
	if _, err := NewStoreProvider(&fakeStore{}, 50).Fetch(context.Background(), "X", domrepo.TF1h); !errors.Is(err, ErrNoCandles) {
		t.Fatalf("expected ErrNoCandles, got %v", err)
	}
}

type countingProvider struct {
	calls int
	err   error
}

func (c *countingProvider) Fetch(_ context.Context, pair string, tf domrepo.Timeframe) (*models.MarketData, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &models.MarketData{Pair: NormalizePair(pair), Timeframe: string(tf), CurrentPrice: 42,
		Candles: hourly(2, func(int) float64 { return 42 }, 1)}, nil
}

func TestCachedProvider(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	next := &countingProvider{}
	p := NewCachedProvider(next, mc, time.Minute)

	for i := 0; i < 3; i++ {
		md, err := p.Fetch(context.Background(), "btcusdt", domrepo.TF1h)
		if err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
		if md.CurrentPrice != 42 || len(md.Candles) != 2 {
			t.Fatalf("fetch %d returned %+v", i, md)
		}
	}
	if next.calls != 1 {
		t.Fatalf("expected one upstream call, got %d", next.calls)
	}
	if _, err := p.Fetch(context.Background(), "btcusdt", domrepo.TF4h); err != nil || next.calls != 2 {
		t.Fatalf("timeframes must not share entries: calls=%d err=%v", next.calls, err)
	}
}

func TestCachedProviderDoesNotCacheErrors(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	next := &countingProvider{err: errors.New("down")}
	p := NewCachedProvider(next, mc, time.Minute)
	for i := 0; i < 2; i++ {
		if _, err := p.Fetch(context.Background(), "btcusdt", domrepo.TF1h); err == nil {
			t.Fatalf("expected error")
		}
	}
	if next.calls != 2 {
		t.Fatalf("errors must not be cached, calls=%d", next.calls)
	}
}

func TestRecordingProviderIgnoresStoreFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("clickhouse down")}
	p := NewRecordingProvider(&countingProvider{}, store, applogger.Nop())
	md, err := p.Fetch(context.Background(), "ETHUSDT", domrepo.TF1h)
	if err != nil || md == nil {
		t.Fatalf("fetch must succeed, err=%v", err)
	}
	if store.stored != 2 {
		t.Fatalf("expected 2 candles written, got %d", store.stored)
	}
}
