package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"SignalFlow/internal/domain/models"
	domrepo "SignalFlow/internal/domain/repository"
	"SignalFlow/internal/domain/service"
	"SignalFlow/internal/services/signals"
	"SignalFlow/internal/services/validation"
	applogger "SignalFlow/pkg/logger"

	"github.com/google/uuid"
)

// AnalysisConfig tunes the pipeline.
type AnalysisConfig struct {
	TieBreak       models.Direction
	PublishTimeout time.Duration
}

// AnalysisUseCase runs the full signal pipeline for one pair and timeframe.
type AnalysisUseCase struct {
	provider  domrepo.MarketDataProvider
	calc      service.IndicatorCalculator
	oracle    service.JudgmentOracle
	publisher domrepo.PredictionPublisher
	metrics   domrepo.Metrics
	l         *applogger.Logger
	cfg       AnalysisConfig
	now       func() time.Time
}

// NewAnalysisUseCase wires the pipeline. oracle and publisher may be nil.
func NewAnalysisUseCase(
	provider domrepo.MarketDataProvider,
	calc service.IndicatorCalculator,
	oracle service.JudgmentOracle,
	publisher domrepo.PredictionPublisher,
	metrics domrepo.Metrics,
	l *applogger.Logger,
	cfg AnalysisConfig,
) *AnalysisUseCase {
	if cfg.TieBreak != models.DirectionUp {
		cfg.TieBreak = models.DirectionDown
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	return &AnalysisUseCase{
		provider:  provider,
		calc:      calc,
		oracle:    oracle,
		publisher: publisher,
		metrics:   metrics,
		l:         l,
		cfg:       cfg,
		now:       time.Now,
	}
}

type fetchResult struct {
	tf  domrepo.Timeframe
	md  *models.MarketData
	err error
}

// run holds per-request state.
type run struct {
	id   string
	sink domrepo.ProgressSink
	now  func() time.Time
}

func (r *run) emit(ctx context.Context, stage string, progress int, status models.ProgressStatus, payload interface{}) {
	r.sink.Emit(ctx, models.ProgressEvent{
		RunID:     r.id,
		Stage:     stage,
		Progress:  progress,
		Status:    status,
		Payload:   payload,
		Timestamp: r.now(),
	})
}

// RunAnalysis always returns a prediction. Data failures and panics yield a
// NEUTRAL placeholder carrying the error message.
func (uc *AnalysisUseCase) RunAnalysis(ctx context.Context, pair string, tf domrepo.Timeframe, sink domrepo.ProgressSink) (pred *models.Prediction) {
	if sink == nil {
		sink = domrepo.DiscardProgress
	}
	r := &run{id: uuid.NewString(), sink: sink, now: uc.now}
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			uc.metrics.RecordError("analysis_panic")
			uc.l.Error("analysis panicked",
				applogger.String("pair", pair),
				applogger.String("tf", string(tf)),
				applogger.Any("panic", rec))
			pred = uc.placeholder(r.id, pair, tf, fmt.Sprintf("analysis failed: %v", rec))
		}
		uc.finish(ctx, r, pred, start)
	}()

	return uc.run(ctx, r, pair, tf)
}

func (uc *AnalysisUseCase) run(ctx context.Context, r *run, pair string, tf domrepo.Timeframe) *models.Prediction {
	anchorTF := domrepo.AnchorTimeframe(tf)
	r.emit(ctx, models.StageMarketData, 0, models.StatusInProgress, nil)

	primary, anchor := uc.fetch(ctx, pair, tf, anchorTF)
	if primary.err != nil {
		uc.metrics.RecordError("market_data")
		uc.l.Warn("market data unavailable",
			applogger.String("pair", pair),
			applogger.String("tf", string(tf)),
			applogger.Error(primary.err))
		return uc.placeholder(r.id, pair, tf, fmt.Sprintf("market data unavailable: %v", primary.err))
	}
	md := primary.md
	if md.Pair != "" {
		pair = md.Pair
	}
	r.emit(ctx, models.StageMarketData, 10, models.StatusComplete, map[string]interface{}{
		"candles":      len(md.Candles),
		"currentPrice": md.CurrentPrice,
	})

	snap, err := uc.calc.Compute(md.Candles, tf.BarsPerYear())
	if err != nil {
		uc.metrics.RecordError("indicators")
		uc.l.Warn("indicator computation failed", applogger.String("pair", pair), applogger.Error(err))
		return uc.placeholder(r.id, pair, tf, fmt.Sprintf("indicator computation failed: %v", err))
	}
	anchorBias := models.BiasNeutral
	hasAnchor := false
	switch {
	case anchor.err != nil:
		uc.metrics.RecordError("anchor_data")
		uc.l.Warn("anchor timeframe unavailable, skipping alignment",
			applogger.String("pair", pair),
			applogger.String("anchor_tf", string(anchorTF)),
			applogger.Error(anchor.err))
	case anchor.md == nil:
		anchorBias, hasAnchor = snap.TrendBias, true
	default:
		anchorSnap, err := uc.calc.Compute(anchor.md.Candles, anchorTF.BarsPerYear())
		if err != nil {
			uc.l.Warn("anchor indicators failed, skipping alignment",
				applogger.String("pair", pair),
				applogger.String("anchor_tf", string(anchorTF)),
				applogger.Error(err))
		} else {
			anchorBias, hasAnchor = anchorSnap.TrendBias, true
		}
	}
	r.emit(ctx, models.StageIndicators, 25, models.StatusComplete, map[string]interface{}{
		"regime":     snap.Regime,
		"trendBias":  snap.TrendBias,
		"anchorBias": anchorBias,
	})

	sigs := signals.MapIndicatorsToSignals(snap)
	r.emit(ctx, models.StageSignals, 40, models.StatusComplete, sigs)

	agg := signals.Aggregate(sigs, snap.Regime, md.VolumeChangePct)
	breakdown := signals.Breakdown(agg, snap.ADX)
	direction := signals.InternalDirection(agg, uc.cfg.TieBreak)
	r.emit(ctx, models.StageAggregation, 50, models.StatusComplete, agg)

	judgment := uc.judge(ctx, r, judgmentSnapshot(md, tf, anchorTF, snap, anchorBias, sigs, agg))
	confidence := breakdown.FinalConfidence
	if judgment != nil {
		direction = judgment.Direction
		confidence, _ = signals.NormalizeOracleConfidence(judgment.Confidence)
		breakdown.FinalConfidence = confidence
	}

	volumeRatio, _ := validation.VolumeConfirmation(snap.CurrentVolume, snap.VolumeMA)
	divergence := validation.VolumeDivergence(md.Candles, direction)
	alignment := validation.NoAnchorAlignment()
	if hasAnchor {
		alignment = validation.TrendAlignment(direction, anchorBias)
	}

	var outcome models.ValidationOutcome
	if direction != models.DirectionUp && direction != models.DirectionDown {
		outcome = models.Reject(confidence, models.RuleNoDirection, ReasonNoDirection)
	} else {
		outcome = validation.Validate(validation.Input{
			BaseConfidence:      confidence,
			VolumeRatio:         volumeRatio,
			ADX:                 snap.ADX,
			TrendAligned:        alignment.Aligned,
			RSINeutral:          validation.IsRSINeutral(snap.RSI),
			HasVolumeDivergence: divergence.Detected,
		})
	}
	r.emit(ctx, models.StageValidation, 90, models.StatusComplete, outcome)

	p := AssembleVerdict(VerdictInput{
		Timeframe:       tf,
		Price:           md.CurrentPrice,
		Snapshot:        snap,
		Signals:         sigs,
		Aggregation:     agg,
		Breakdown:       breakdown,
		Direction:       direction,
		Judgment:        judgment,
		Outcome:         outcome,
		VolumeRatio:     volumeRatio,
		Divergence:      divergence,
		Alignment:       alignment,
		AnchorBias:      anchorBias,
		AnchorTimeframe: anchorTF,
	})
	p.ID = r.id
	p.Pair = pair
	p.GeneratedAt = uc.now().UTC()
	return &p
}

// ReasonNoDirection is the rejection when the oracle sees no edge.
const ReasonNoDirection = "AI judgment returned no directional edge"

// fetch loads the primary and anchor timeframes concurrently. anchor.md is nil
// with no error when both timeframes are the same.
func (uc *AnalysisUseCase) fetch(ctx context.Context, pair string, tf, anchorTF domrepo.Timeframe) (primary, anchor fetchResult) {
	tfs := []domrepo.Timeframe{tf}
	if anchorTF != tf {
		tfs = append(tfs, anchorTF)
	}

	results := make(chan fetchResult, len(tfs))
	var wg sync.WaitGroup
	for _, t := range tfs {
		wg.Add(1)
		go func(t domrepo.Timeframe) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					results <- fetchResult{tf: t, err: fmt.Errorf("fetch panicked: %v", rec)}
				}
			}()
			fetchStart := time.Now()
			md, err := uc.provider.Fetch(ctx, pair, t)
			uc.metrics.RecordLatency("market_fetch", time.Since(fetchStart).Seconds())
			if err == nil && md == nil {
				err = fmt.Errorf("no market data for %s %s", pair, t)
			}
			results <- fetchResult{tf: t, md: md, err: err}
		}(t)
	}
	wg.Wait()
	close(results)

	for res := range results {
		if res.tf == tf {
			primary = res
		} else {
			anchor = res
		}
	}
	if primary.err == nil && primary.md != nil && len(primary.md.Candles) == 0 {
		primary.err = fmt.Errorf("no candles for %s %s", pair, tf)
	}
	return primary, anchor
}

// judge consults the oracle. Any failure, or a judgment without a known
// direction and a usable confidence, yields nil so the internal call stands.
func (uc *AnalysisUseCase) judge(ctx context.Context, r *run, snap models.JudgmentSnapshot) *models.ExternalJudgment {
	r.emit(ctx, models.StageJudgment, 60, models.StatusInProgress, nil)
	if uc.oracle == nil {
		r.emit(ctx, models.StageJudgment, 80, models.StatusComplete, map[string]interface{}{"source": models.SourceInternal})
		return nil
	}

	var (
		mu     sync.Mutex
		chunks int
	)
	onThinking := func(text string) {
		if text == "" {
			return
		}
		mu.Lock()
		chunks++
		progress := 60 + min(19, chunks/5)
		mu.Unlock()
		r.emit(ctx, models.StageJudgment, progress, models.StatusInProgress, models.ThinkingPayload{Thinking: text})
	}

	start := time.Now()
	j, err := uc.oracle.Judge(ctx, snap, onThinking)
	uc.metrics.RecordLatency("judgment", time.Since(start).Seconds())
	if err != nil || j == nil {
		if err != nil {
			uc.l.Warn("external judgment unavailable, using internal direction",
				applogger.String("pair", snap.Pair),
				applogger.Error(err))
		}
		r.emit(ctx, models.StageJudgment, 80, models.StatusComplete, map[string]interface{}{"source": models.SourceInternal})
		return nil
	}
	if !usableJudgment(j) {
		uc.l.Warn("external judgment unusable, using internal direction",
			applogger.String("pair", snap.Pair),
			applogger.String("model", j.Model),
			applogger.String("direction", string(j.Direction)),
			applogger.Float64("confidence", j.Confidence))
		r.emit(ctx, models.StageJudgment, 80, models.StatusComplete, map[string]interface{}{"source": models.SourceInternal})
		return nil
	}
	r.emit(ctx, models.StageJudgment, 80, models.StatusComplete, map[string]interface{}{
		"source":    models.SourceOracle,
		"model":     j.Model,
		"direction": j.Direction,
	})
	return j
}

func usableJudgment(j *models.ExternalJudgment) bool {
	switch j.Direction {
	case models.DirectionUp, models.DirectionDown, models.DirectionNeutral:
	default:
		return false
	}
	_, ok := signals.NormalizeOracleConfidence(j.Confidence)
	return ok
}

func (uc *AnalysisUseCase) placeholder(id, pair string, tf domrepo.Timeframe, msg string) *models.Prediction {
	return &models.Prediction{
		ID:              id,
		Pair:            strings.ToUpper(pair),
		Timeframe:       string(tf),
		Direction:       models.DirectionNeutral,
		Duration:        durationLabel(tf),
		Rationale:       "Analysis could not be completed.",
		KeyFactors:      []string{},
		RiskFactors:     []string{msg},
		RejectionReason: msg,
		Error:           msg,
		GeneratedAt:     uc.now().UTC(),
	}
}

// finish emits the terminal event, records metrics and publishes.
func (uc *AnalysisUseCase) finish(ctx context.Context, r *run, p *models.Prediction, start time.Time) {
	if p == nil {
		return
	}
	outcome := "rejected"
	switch {
	case p.Failed():
		outcome = "failed"
	case p.ShouldProceed:
		outcome = "proceed"
	}
	payload := map[string]interface{}{
		"direction":     p.Direction,
		"confidence":    p.Confidence,
		"shouldProceed": p.ShouldProceed,
	}
	if p.Failed() {
		payload["error"] = p.Error
	}
	r.emit(ctx, models.StageVerdict, 100, models.StatusComplete, payload)

	uc.metrics.RecordAnalysis(p.Pair, outcome)
	uc.metrics.RecordLatency("analysis", time.Since(start).Seconds())
	if !p.Failed() {
		uc.metrics.RecordConfidence(p.Pair, p.Confidence)
	}
	uc.l.Info("analysis complete",
		applogger.String("run_id", p.ID),
		applogger.String("pair", p.Pair),
		applogger.String("tf", p.Timeframe),
		applogger.String("direction", string(p.Direction)),
		applogger.Float64("confidence", p.Confidence),
		applogger.String("outcome", outcome),
		applogger.Duration("duration_ms", time.Since(start)))

	if uc.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.cfg.PublishTimeout)
	defer cancel()
	if err := uc.publisher.Publish(pubCtx, p); err != nil {
		uc.metrics.RecordError("publish")
		uc.l.Warn("prediction publish failed", applogger.String("pair", p.Pair), applogger.Error(err))
		return
	}
	uc.metrics.RecordMessageSent("kafka", p.Pair)
}

func judgmentSnapshot(
	md *models.MarketData,
	tf, anchorTF domrepo.Timeframe,
	snap models.IndicatorSnapshot,
	anchorBias models.TrendBias,
	sigs []models.WeightedSignal,
	agg models.AggregationResult,
) models.JudgmentSnapshot {
	js := models.JudgmentSnapshot{
		Pair:            md.Pair,
		Timeframe:       string(tf),
		AnchorTimeframe: string(anchorTF),
		CurrentPrice:    md.CurrentPrice,
		PriceChange24h:  md.PriceChange24h,
		Regime:          snap.Regime,
		EntryBias:       snap.TrendBias,
		AnchorBias:      anchorBias,
		UpScore:         agg.UpScore,
		DownScore:       agg.DownScore,
		Alignment:       agg.SignalAlignment,
		VolumeChangePct: md.VolumeChangePct,
		TrendStrength:   snap.ADX,
		Volatility:      snap.ATR,
		RSI:             snap.RSI,
		MACDHistogram:   snap.MACDHistogram,
		ADX:             snap.ADX,
	}
	js.VolumeRatio, _ = validation.VolumeConfirmation(snap.CurrentVolume, snap.VolumeMA)
	for _, s := range sigs {
		d := models.SignalDigest{Name: s.Name, Strength: s.Strength, Reason: s.Reason}
		switch s.Direction {
		case models.DirectionUp:
			js.UpSignals = append(js.UpSignals, d)
		case models.DirectionDown:
			js.DownSignals = append(js.DownSignals, d)
		}
	}
	if last, ok := md.LastCandle(); ok {
		js.LastCandleAt = last.Bucket.UnixMilli()
	}
	return js
}
