package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"SignalFlow/internal/domain/models"
	domrepo "SignalFlow/internal/domain/repository"
	xhttp "SignalFlow/pkg/http"
)

var (
	// ErrNoCandles is returned when the source has nothing for a pair.
	ErrNoCandles = errors.New("marketdata: no candles")
	// ErrUnknownPair is returned when the exchange rejects the symbol.
	ErrUnknownPair = errors.New("marketdata: unknown pair")
)

// BinanceProvider fetches klines and 24h stats from the Binance REST API.
type BinanceProvider struct {
	baseURL string
	limit   int
	http    *xhttp.Client
	now     func() time.Time
}

// NewBinanceProvider creates a provider returning up to limit candles per fetch.
func NewBinanceProvider(baseURL string, limit int, timeout time.Duration) *BinanceProvider {
	if limit <= 0 {
		limit = 200
	}
	return &BinanceProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		limit:   limit,
		http:    xhttp.NewClient(xhttp.WithTimeout(timeout), xhttp.WithRetry(2, 300*time.Millisecond)),
		now:     time.Now,
	}
}

type ticker24h struct {
	LastPrice          string `json:"lastPrice"`
	PriceChangePercent string `json:"priceChangePercent"`
}

func (p *BinanceProvider) Fetch(ctx context.Context, pair string, tf domrepo.Timeframe) (*models.MarketData, error) {
	symbol := NormalizePair(pair)

	var raw [][]json.RawMessage
	err := p.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    p.baseURL + "/api/v3/klines",
		QueryParams: map[string][]string{
			"symbol":   {symbol},
			"interval": {string(tf)},
			"limit":    {strconv.Itoa(p.limit)},
		},
	}, &raw)
	if err != nil {
		var se *xhttp.StatusError
		if errors.As(err, &se) && se.Code == http.StatusBadRequest {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPair, symbol)
		}
		return nil, fmt.Errorf("binance klines %s %s: %w", symbol, tf, err)
	}
	candles, err := decodeKlines(symbol, raw, p.now())
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w: %s %s", ErrNoCandles, symbol, tf)
	}

	var t ticker24h
	err = p.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         p.baseURL + "/api/v3/ticker/24hr",
		QueryParams: map[string][]string{"symbol": {symbol}},
	}, &t)
	if err != nil {
		return nil, fmt.Errorf("binance ticker %s: %w", symbol, err)
	}

	md := &models.MarketData{
		Pair:            symbol,
		Timeframe:       string(tf),
		CurrentPrice:    candles[len(candles)-1].Close,
		VolumeChangePct: VolumeChange(candles),
		Candles:         candles,
	}
	if v, err := strconv.ParseFloat(t.LastPrice, 64); err == nil && v > 0 {
		md.CurrentPrice = v
	}
	if v, err := strconv.ParseFloat(t.PriceChangePercent, 64); err == nil {
		md.PriceChange24h = v
	}
	return md, nil
}

// decodeKlines reads [openTime, open, high, low, close, volume, closeTime, ...]
// rows. The newest row is dropped while its close time is after now, so a
// partial volume never reaches the indicators; a lone open candle is kept.
func decodeKlines(symbol string, rows [][]json.RawMessage, now time.Time) ([]models.Candle, error) {
	out := make([]models.Candle, 0, len(rows))
	for i, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("kline %d: %d fields", i, len(row))
		}
		var openTime int64
		if err := json.Unmarshal(row[0], &openTime); err != nil {
			return nil, fmt.Errorf("kline %d open time: %w", i, err)
		}
		vals := make([]float64, 5)
		for j := range vals {
			var s string
			if err := json.Unmarshal(row[j+1], &s); err != nil {
				return nil, fmt.Errorf("kline %d field %d: %w", i, j+1, err)
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("kline %d field %d: %w", i, j+1, err)
			}
			vals[j] = v
		}
		out = append(out, models.Candle{
			Bucket: time.UnixMilli(openTime).UTC(),
			Symbol: symbol,
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		})
	}

	if n := len(rows); n > 1 && len(rows[n-1]) > 6 {
		var closeTime int64
		if err := json.Unmarshal(rows[n-1][6], &closeTime); err == nil && time.UnixMilli(closeTime).After(now) {
			out = out[:len(out)-1]
		}
	}
	return out, nil
}

// NormalizePair turns "btc/usdt" or "BTC-USDT" into "BTCUSDT".
func NormalizePair(pair string) string {
	r := strings.NewReplacer("/", "", "-", "", "_", "", " ", "")
	return strings.ToUpper(r.Replace(pair))
}
