package oracle

import (
	"fmt"
	"strings"

	"SignalFlow/internal/domain/models"
	"SignalFlow/internal/services/validation"

	"github.com/shopspring/decimal"
)

const systemPrompt = `You are a disciplined crypto market analyst. Base every statement strictly on the data provided.
Answer with a single JSON object and nothing else, using this schema:
{"direction":"UP|DOWN|NEUTRAL","confidence":number 0-100,"rationale":string,
"keyFactors":[string],"riskFactors":[string],"duration":string,
"tradeTargets":{"entry":{"low":number,"high":number},"target":{"low":number,"high":number},"stop":number}}
Omit tradeTargets when direction is NEUTRAL.`

// BuildMessages renders the snapshot into a chat prompt.
func BuildMessages(s models.JudgmentSnapshot) []Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Pair: %s\nTimeframe: %s (anchor %s)\n", s.Pair, s.Timeframe, s.AnchorTimeframe)
	fmt.Fprintf(&b, "Current price: %s (24h change %.2f%%)\n", price(s.CurrentPrice), s.PriceChange24h)
	fmt.Fprintf(&b, "Market regime: %s, trend strength (ADX) %.1f\n", s.Regime, s.TrendStrength)
	fmt.Fprintf(&b, "Trend bias: entry %s, anchor %s\n", s.EntryBias, s.AnchorBias)
	fmt.Fprintf(&b, "Scores: UP %.1f vs DOWN %.1f, alignment %.0f%%\n", s.UpScore, s.DownScore, s.Alignment)
	writeSignals(&b, "Bullish signals", s.UpSignals)
	writeSignals(&b, "Bearish signals", s.DownSignals)
	fmt.Fprintf(&b, "Volume: %.2fx average (confirmation requires >= %.1fx), last bar vs 20-bar mean %+.2f%%\n",
		s.VolumeRatio, validation.VolumeConfirmationRatio, s.VolumeChangePct)
	fmt.Fprintf(&b, "Volatility (ATR): %s\n", price(s.Volatility))
	fmt.Fprintf(&b, "RSI %.1f, MACD histogram %.5f, ADX %.1f\n", s.RSI, s.MACDHistogram, s.ADX)
	b.WriteString("Entry must be near the current price. For UP the stop is below entry and targets above; for DOWN the opposite.")

	return []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: b.String()},
	}
}

func writeSignals(b *strings.Builder, title string, sigs []models.SignalDigest) {
	if len(sigs) == 0 {
		fmt.Fprintf(b, "%s: none\n", title)
		return
	}
	fmt.Fprintf(b, "%s:\n", title)
	for _, s := range sigs {
		fmt.Fprintf(b, "- %s (%.0f): %s\n", s.Name, s.Strength, s.Reason)
	}
}

// price formats a price without float noise.
func price(v float64) string {
	return decimal.NewFromFloat(v).Round(8).String()
}
