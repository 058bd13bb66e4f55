package usecase

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"SignalFlow/internal/domain/models"
	domrepo "SignalFlow/internal/domain/repository"
	"SignalFlow/internal/domain/service"
	"SignalFlow/internal/services/validation"
	applogger "SignalFlow/pkg/logger"
	"SignalFlow/pkg/metrics"
)

const (
	primaryLen = 60
	anchorLen  = 40
)

func risingCandles(n int) []models.Candle {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, n)
	for i := range out {
		p := 90 + float64(i)*10/float64(n)
		out[i] = models.Candle{
			Bucket: base.Add(time.Duration(i) * time.Hour),
			Symbol: "BTCUSDT",
			Open:   p - 0.1, High: p + 0.5, Low: p - 0.5, Close: p,
			Volume: 100 + float64(i),
		}
	}
	return out
}

type fakeProvider struct {
	mu    sync.Mutex
	errs  map[domrepo.Timeframe]error
	panic domrepo.Timeframe
	calls []domrepo.Timeframe
}

func (p *fakeProvider) Fetch(_ context.Context, pair string, tf domrepo.Timeframe) (*models.MarketData, error) {
	p.mu.Lock()
	p.calls = append(p.calls, tf)
	p.mu.Unlock()
	if tf == p.panic {
		panic("provider exploded")
	}
	if err := p.errs[tf]; err != nil {
		return nil, err
	}
	n := primaryLen
	if tf != domrepo.TF1h && tf != domrepo.TF1w {
		n = anchorLen
	}
	return &models.MarketData{
		Pair:         "BTCUSDT",
		Timeframe:    string(tf),
		CurrentPrice: 100,
		Candles:      risingCandles(n),
	}, nil
}

type fakeCalc struct {
	primary models.IndicatorSnapshot
	anchor  models.IndicatorSnapshot
	err     error
	panics  bool
}

func (c *fakeCalc) Compute(candles []models.Candle, _ float64) (models.IndicatorSnapshot, error) {
	if c.panics {
		panic("calculator exploded")
	}
	if c.err != nil {
		return models.IndicatorSnapshot{}, c.err
	}
	if len(candles) == anchorLen {
		return c.anchor, nil
	}
	return c.primary, nil
}

// baseSnapshot votes UP on RSI, MACD and SMA50 with everything else neutral.
func baseSnapshot() models.IndicatorSnapshot {
	return models.IndicatorSnapshot{
		Price: 100, RSI: 25, StochK: 50, StochD: 50, MACDHistogram: 0.0005,
		SMA20: 98, SMA50: 95, SMA200: 90,
		BollingerUpper: 110, BollingerMiddle: 100, BollingerLower: 90,
		ADX: 40, PlusDI: 25, MinusDI: 15, ATR: 2,
		VolumeMA: 100, CurrentVolume: 120,
		Support: 95, Resistance: 105, DistanceToSupport: 5, DistanceToResistance: 5,
		Regime: models.RegimeTrending, TrendBias: models.BiasBullish,
	}
}

type fakeOracle struct {
	j        *models.ExternalJudgment
	err      error
	thinking []string
	got      models.JudgmentSnapshot
}

func (o *fakeOracle) Judge(_ context.Context, snap models.JudgmentSnapshot, onThinking func(string)) (*models.ExternalJudgment, error) {
	o.got = snap
	for _, t := range o.thinking {
		onThinking(t)
	}
	return o.j, o.err
}

type recordingSink struct {
	mu     sync.Mutex
	events []models.ProgressEvent
}

func (s *recordingSink) Emit(_ context.Context, ev models.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

type fakePublisher struct {
	published []*models.Prediction
	err       error
}

func (p *fakePublisher) Publish(_ context.Context, pred *models.Prediction) error {
	p.published = append(p.published, pred)
	return p.err
}

func (p *fakePublisher) Close() error { return nil }

func newUseCase(prov *fakeProvider, calc *fakeCalc, oracle *fakeOracle, pub *fakePublisher) *AnalysisUseCase {
	var o service.JudgmentOracle
	if oracle != nil {
		o = oracle
	}
	var publisher domrepo.PredictionPublisher
	if pub != nil {
		publisher = pub
	}
	uc := NewAnalysisUseCase(prov, calc, o, publisher, metrics.Nop{}, applogger.Nop(), AnalysisConfig{})
	uc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return uc
}

func ptr(v float64) *float64 { return &v }

func TestRunAnalysisInternalBelowMinimum(t *testing.T) {
	calc := &fakeCalc{primary: baseSnapshot(), anchor: baseSnapshot()}
	uc := newUseCase(&fakeProvider{}, calc, nil, nil)

	p := uc.RunAnalysis(context.Background(), "btc/usdt", domrepo.TF1h, nil)
	if p == nil {
		t.Fatalf("expected prediction")
	}
	if p.Failed() {
		t.Fatalf("unexpected failure: %s", p.Error)
	}
	if p.Direction != models.DirectionNeutral || p.ShouldProceed {
		t.Fatalf("expected rejected NEUTRAL, got %s proceed=%v", p.Direction, p.ShouldProceed)
	}
	if p.RejectionReason != validation.ReasonBelowMinimum {
		t.Fatalf("rejection: got %q", p.RejectionReason)
	}
	if math.Abs(p.Confidence-79.425) > 1e-9 {
		t.Fatalf("confidence: got %v", p.Confidence)
	}
	if p.TradeTargets != nil {
		t.Fatalf("rejected verdict must not carry targets")
	}
	if p.Detailed == nil || p.Detailed.JudgmentSource != models.SourceInternal {
		t.Fatalf("expected internal judgment source")
	}
	if math.Abs(p.Detailed.UpScore-256.5) > 1e-9 || p.Detailed.DownScore != 0 {
		t.Fatalf("scores: got %v / %v", p.Detailed.UpScore, p.Detailed.DownScore)
	}
	if p.Detailed.AnchorTimeframe != "4h" {
		t.Fatalf("anchor timeframe: got %q", p.Detailed.AnchorTimeframe)
	}
	if p.Pair != "BTCUSDT" || p.Timeframe != "1h" || p.ID == "" {
		t.Fatalf("identity fields: %+v", p)
	}
	if !strings.HasPrefix(p.Rationale, "No trade: ") {
		t.Fatalf("rationale: %q", p.Rationale)
	}
}

func TestRunAnalysisOracleProceedsWithReplacedTargets(t *testing.T) {
	calc := &fakeCalc{primary: baseSnapshot(), anchor: baseSnapshot()}
	oracle := &fakeOracle{j: &models.ExternalJudgment{
		Direction:  models.DirectionUp,
		Confidence: 95,
		Rationale:  "Oversold bounce in an uptrend.",
		KeyFactors: []string{"RSI oversold"},
		TradeTargets: &models.TargetCandidate{
			Entry:  &models.CandidateRange{Low: ptr(100), High: ptr(101)},
			Target: &models.CandidateRange{Low: ptr(99), High: ptr(100.5)},
			Stop:   ptr(98),
		},
		Model: "test-model",
	}}
	pub := &fakePublisher{}
	uc := newUseCase(&fakeProvider{}, calc, oracle, pub)

	p := uc.RunAnalysis(context.Background(), "BTCUSDT", domrepo.TF1h, nil)
	if !p.ShouldProceed || p.Direction != models.DirectionUp {
		t.Fatalf("expected UP proceed, got %s proceed=%v reason=%q", p.Direction, p.ShouldProceed, p.RejectionReason)
	}
	if p.Confidence != 95 {
		t.Fatalf("confidence: got %v", p.Confidence)
	}
	if p.TradeTargets == nil || !p.TradeTargets.Valid(models.DirectionUp) {
		t.Fatalf("expected valid targets, got %+v", p.TradeTargets)
	}
	if p.Detailed.TargetResolution != models.ResolutionReplaced {
		t.Fatalf("resolution: got %s", p.Detailed.TargetResolution)
	}
	if math.Abs(p.TradeTargets.Stop-97.4) > 1e-9 {
		t.Fatalf("fallback stop: got %v", p.TradeTargets.Stop)
	}
	if p.Rationale != "Oversold bounce in an uptrend." || len(p.KeyFactors) != 1 {
		t.Fatalf("judgment text not used: %q %v", p.Rationale, p.KeyFactors)
	}
	if len(p.RiskFactors) == 0 {
		t.Fatalf("expected synthesized risk factors")
	}
	if p.Detailed.JudgmentSource != models.SourceOracle || p.Detailed.JudgmentModel != "test-model" {
		t.Fatalf("judgment source: %+v", p.Detailed)
	}
	if oracle.got.AnchorBias != models.BiasBullish || oracle.got.LastCandleAt == 0 {
		t.Fatalf("oracle snapshot incomplete: %+v", oracle.got)
	}
	if len(pub.published) != 1 || pub.published[0] != p {
		t.Fatalf("expected one published prediction, got %d", len(pub.published))
	}
}

func TestRunAnalysisOracleFractionConfidence(t *testing.T) {
	calc := &fakeCalc{primary: baseSnapshot(), anchor: baseSnapshot()}
	oracle := &fakeOracle{j: &models.ExternalJudgment{Direction: models.DirectionUp, Confidence: 0.9}}
	uc := newUseCase(&fakeProvider{}, calc, oracle, nil)

	p := uc.RunAnalysis(context.Background(), "BTCUSDT", domrepo.TF1h, nil)
	if math.Abs(p.Confidence-90) > 1e-9 || !p.ShouldProceed {
		t.Fatalf("expected 90 and proceed, got %v proceed=%v", p.Confidence, p.ShouldProceed)
	}
	if p.Detailed.TargetResolution != models.ResolutionFallback {
		t.Fatalf("resolution: got %s", p.Detailed.TargetResolution)
	}
}

func TestRunAnalysisOracleNeutralRejects(t *testing.T) {
	calc := &fakeCalc{primary: baseSnapshot(), anchor: baseSnapshot()}
	oracle := &fakeOracle{j: &models.ExternalJudgment{Direction: models.DirectionNeutral, Confidence: 70}}
	uc := newUseCase(&fakeProvider{}, calc, oracle, nil)

	p := uc.RunAnalysis(context.Background(), "BTCUSDT", domrepo.TF1h, nil)
	if p.ShouldProceed || p.Direction != models.DirectionNeutral {
		t.Fatalf("expected rejection, got %s", p.Direction)
	}
	if p.RejectionReason != ReasonNoDirection {
		t.Fatalf("rejection: got %q", p.RejectionReason)
	}
	rej, ok := p.Detailed.Validation.Rejection()
	if !ok || rej.Rule != models.RuleNoDirection {
		t.Fatalf("rule: got %+v", rej)
	}
	if p.Confidence != 70 {
		t.Fatalf("confidence: got %v", p.Confidence)
	}
}

func TestRunAnalysisCounterTrendRejected(t *testing.T) {
	anchor := baseSnapshot()
	anchor.TrendBias = models.BiasBearish
	calc := &fakeCalc{primary: baseSnapshot(), anchor: anchor}
	oracle := &fakeOracle{j: &models.ExternalJudgment{Direction: models.DirectionUp, Confidence: 81}}
	uc := newUseCase(&fakeProvider{}, calc, oracle, nil)

	p := uc.RunAnalysis(context.Background(), "BTCUSDT", domrepo.TF1h, nil)
	if p.ShouldProceed || p.RejectionReason != validation.ReasonCounterTrend {
		t.Fatalf("expected counter-trend rejection, got %q", p.RejectionReason)
	}
	if p.Detailed.TrendAlignment.Aligned {
		t.Fatalf("alignment should fail against bearish anchor")
	}
}

func TestRunAnalysisOracleErrorFallsBackToInternal(t *testing.T) {
	calc := &fakeCalc{primary: baseSnapshot(), anchor: baseSnapshot()}
	oracle := &fakeOracle{err: errors.New("upstream down")}
	uc := newUseCase(&fakeProvider{}, calc, oracle, nil)

	p := uc.RunAnalysis(context.Background(), "BTCUSDT", domrepo.TF1h, nil)
	if p.Failed() {
		t.Fatalf("oracle failure must not fail the run: %s", p.Error)
	}
	if p.Detailed.JudgmentSource != models.SourceInternal {
		t.Fatalf("expected internal source")
	}
	if math.Abs(p.Confidence-79.425) > 1e-9 {
		t.Fatalf("confidence: got %v", p.Confidence)
	}
}

func TestRunAnalysisUnusableJudgmentKeepsInternalCall(t *testing.T) {
	calc := &fakeCalc{primary: baseSnapshot(), anchor: baseSnapshot()}
	internal := newUseCase(&fakeProvider{}, calc, &fakeOracle{err: errors.New("down")}, nil).
		RunAnalysis(context.Background(), "BTCUSDT", domrepo.TF1h, nil)

	for _, j := range []*models.ExternalJudgment{
		{Direction: models.DirectionDown, Confidence: 0},
		{Direction: models.DirectionDown, Confidence: math.NaN()},
		{Direction: models.DirectionDown, Confidence: -5},
		{Direction: models.DirectionDown, Confidence: math.Inf(1)},
		{Direction: models.Direction("MOON"), Confidence: 80},
	} {
		sink := &recordingSink{}
		p := newUseCase(&fakeProvider{}, calc, &fakeOracle{j: j}, nil).
			RunAnalysis(context.Background(), "BTCUSDT", domrepo.TF1h, sink)
		if p.Direction != internal.Direction || p.ShouldProceed != internal.ShouldProceed {
			t.Fatalf("%+v: got %s proceed=%v, want %s proceed=%v",
				j, p.Direction, p.ShouldProceed, internal.Direction, internal.ShouldProceed)
		}
		if math.Abs(p.Confidence-internal.Confidence) > 1e-9 {
			t.Fatalf("%+v: confidence %v, want %v", j, p.Confidence, internal.Confidence)
		}
		if p.Detailed.JudgmentSource != models.SourceInternal {
			t.Fatalf("%+v: expected internal source", j)
		}
		for _, ev := range sink.events {
			if ev.Stage == models.StageJudgment && ev.Progress == 80 {
				data, _ := ev.Payload.(map[string]interface{})
				if data["source"] != models.SourceInternal {
					t.Fatalf("%+v: judgment stage reported %v", j, data["source"])
				}
			}
		}
	}
}

func TestRunAnalysisAnchorFailureSkipsAlignment(t *testing.T) {
	calc := &fakeCalc{primary: baseSnapshot(), anchor: baseSnapshot()}
	prov := &fakeProvider{errs: map[domrepo.Timeframe]error{domrepo.TF4h: errors.New("timeout")}}
	oracle := &fakeOracle{j: &models.ExternalJudgment{Direction: models.DirectionUp, Confidence: 90}}
	uc := newUseCase(prov, calc, oracle, nil)

	p := uc.RunAnalysis(context.Background(), "BTCUSDT", domrepo.TF1h, nil)
	if p.Failed() {
		t.Fatalf("anchor failure must not fail the run: %s", p.Error)
	}
	al := p.Detailed.TrendAlignment
	if !al.Aligned || al.Reason != "No anchor check performed" {
		t.Fatalf("alignment: %+v", al)
	}
	if p.Detailed.AnchorTrendBias != models.BiasNeutral {
		t.Fatalf("anchor bias: got %s", p.Detailed.AnchorTrendBias)
	}
	if !p.ShouldProceed {
		t.Fatalf("expected proceed, got %q", p.RejectionReason)
	}
}

func TestRunAnalysisWeeklyUsesOwnBias(t *testing.T) {
	primary := baseSnapshot()
	primary.TrendBias = models.BiasBearish
	calc := &fakeCalc{primary: primary}
	prov := &fakeProvider{}
	oracle := &fakeOracle{j: &models.ExternalJudgment{Direction: models.DirectionUp, Confidence: 81}}
	uc := newUseCase(prov, calc, oracle, nil)

	p := uc.RunAnalysis(context.Background(), "BTCUSDT", domrepo.TF1w, nil)
	if len(prov.calls) != 1 {
		t.Fatalf("expected a single fetch, got %v", prov.calls)
	}
	if p.Detailed.AnchorTrendBias != models.BiasBearish {
		t.Fatalf("anchor bias: got %s", p.Detailed.AnchorTrendBias)
	}
	if p.RejectionReason != validation.ReasonCounterTrend {
		t.Fatalf("rejection: got %q", p.RejectionReason)
	}
}

func TestRunAnalysisPrimaryFailureYieldsPlaceholder(t *testing.T) {
	prov := &fakeProvider{errs: map[domrepo.Timeframe]error{domrepo.TF1h: errors.New("exchange down")}}
	pub := &fakePublisher{}
	sink := &recordingSink{}
	uc := newUseCase(prov, &fakeCalc{}, nil, pub)

	p := uc.RunAnalysis(context.Background(), "btcusdt", domrepo.TF1h, sink)
	if !p.Failed() || !strings.Contains(p.Error, "exchange down") {
		t.Fatalf("expected failure carrying cause, got %q", p.Error)
	}
	if p.Direction != models.DirectionNeutral || p.ShouldProceed || p.Confidence != 0 {
		t.Fatalf("placeholder must be NEUTRAL with zero confidence: %+v", p)
	}
	if p.Pair != "BTCUSDT" {
		t.Fatalf("pair: got %q", p.Pair)
	}
	last := sink.events[len(sink.events)-1]
	if last.Stage != models.StageVerdict || last.Progress != 100 {
		t.Fatalf("expected terminal verdict event, got %+v", last)
	}
	if len(pub.published) != 1 {
		t.Fatalf("failed runs are still published")
	}
}

func TestRunAnalysisIndicatorErrorYieldsPlaceholder(t *testing.T) {
	uc := newUseCase(&fakeProvider{}, &fakeCalc{err: errors.New("not enough candles")}, nil, nil)
	p := uc.RunAnalysis(context.Background(), "BTCUSDT", domrepo.TF1h, nil)
	if !p.Failed() || !strings.Contains(p.Error, "not enough candles") {
		t.Fatalf("expected indicator failure, got %q", p.Error)
	}
}

func TestRunAnalysisRecoversPanics(t *testing.T) {
	uc := newUseCase(&fakeProvider{}, &fakeCalc{panics: true}, nil, nil)
	p := uc.RunAnalysis(context.Background(), "BTCUSDT", domrepo.TF1h, nil)
	if p == nil || !p.Failed() || !strings.Contains(p.Error, "calculator exploded") {
		t.Fatalf("expected recovered placeholder, got %+v", p)
	}

	uc = newUseCase(&fakeProvider{panic: domrepo.TF1h}, &fakeCalc{}, nil, nil)
	p = uc.RunAnalysis(context.Background(), "BTCUSDT", domrepo.TF1h, nil)
	if p == nil || !p.Failed() || !strings.Contains(p.Error, "provider exploded") {
		t.Fatalf("expected recovered fetch panic, got %+v", p)
	}
}

func TestRunAnalysisProgressOrder(t *testing.T) {
	calc := &fakeCalc{primary: baseSnapshot(), anchor: baseSnapshot()}
	oracle := &fakeOracle{
		j:        &models.ExternalJudgment{Direction: models.DirectionUp, Confidence: 90},
		thinking: []string{"looking at RSI", "", "volume is fine"},
	}
	sink := &recordingSink{}
	uc := newUseCase(&fakeProvider{}, calc, oracle, nil)
	p := uc.RunAnalysis(context.Background(), "BTCUSDT", domrepo.TF1h, sink)

	var stages []string
	thinking := 0
	prev := -1
	for _, ev := range sink.events {
		if ev.RunID != p.ID {
			t.Fatalf("event run id %q does not match %q", ev.RunID, p.ID)
		}
		if ev.Progress < prev {
			t.Fatalf("progress went backwards: %d after %d", ev.Progress, prev)
		}
		prev = ev.Progress
		if ev.IsThinking() {
			thinking++
			if ev.Progress < 60 || ev.Progress > 79 {
				t.Fatalf("thinking progress out of range: %d", ev.Progress)
			}
			continue
		}
		if ev.Status == models.StatusComplete {
			stages = append(stages, ev.Stage)
		}
	}
	want := []string{
		models.StageMarketData, models.StageIndicators, models.StageSignals, models.StageAggregation,
		models.StageJudgment, models.StageValidation, models.StageVerdict,
	}
	if strings.Join(stages, ",") != strings.Join(want, ",") {
		t.Fatalf("stages: got %v want %v", stages, want)
	}
	if thinking != 2 {
		t.Fatalf("expected 2 thinking events, got %d", thinking)
	}
	first := sink.events[0]
	if first.Stage != models.StageMarketData || first.Status != models.StatusInProgress || first.Progress != 0 {
		t.Fatalf("first event: %+v", first)
	}
}

func TestRunAnalysisPublishErrorDoesNotFail(t *testing.T) {
	calc := &fakeCalc{primary: baseSnapshot(), anchor: baseSnapshot()}
	pub := &fakePublisher{err: errors.New("broker gone")}
	uc := newUseCase(&fakeProvider{}, calc, nil, pub)
	p := uc.RunAnalysis(context.Background(), "BTCUSDT", domrepo.TF1h, nil)
	if p.Failed() {
		t.Fatalf("publish failure must not fail the run: %s", p.Error)
	}
}
