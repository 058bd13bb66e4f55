package models

// ExternalJudgment is the oracle's answer. Every field is untrusted.
type ExternalJudgment struct {
	Direction       Direction        `json:"direction"`
	Confidence      float64          `json:"confidence"`
	Rationale       string           `json:"rationale"`
	RiskFactors     []string         `json:"riskFactors"`
	KeyFactors      []string         `json:"keyFactors"`
	TradeTargets    *TargetCandidate `json:"tradeTargets,omitempty"`
	Duration        string           `json:"duration,omitempty"`
	ThinkingProcess string           `json:"thinkingProcess,omitempty"`
	Model           string           `json:"model,omitempty"`
}

// SignalDigest is a compact signal line handed to the oracle.
type SignalDigest struct {
	Name     string  `json:"name"`
	Strength float64 `json:"strength"`
	Reason   string  `json:"reason"`
}

// JudgmentSnapshot is everything the oracle sees about one run.
type JudgmentSnapshot struct {
	Pair            string       `json:"pair"`
	Timeframe       string       `json:"timeframe"`
	AnchorTimeframe string       `json:"anchorTimeframe"`
	CurrentPrice    float64      `json:"currentPrice"`
	PriceChange24h  float64      `json:"priceChange24h"`
	Regime          MarketRegime `json:"regime"`
	EntryBias       TrendBias    `json:"entryBias"`
	AnchorBias      TrendBias    `json:"anchorBias"`

	UpSignals   []SignalDigest `json:"upSignals"`
	DownSignals []SignalDigest `json:"downSignals"`
	UpScore     float64        `json:"upScore"`
	DownScore   float64        `json:"downScore"`
	Alignment   float64        `json:"alignment"`

	VolumeRatio     float64 `json:"volumeRatio"`
	VolumeChangePct float64 `json:"volumeChangePct"`
	TrendStrength   float64 `json:"trendStrength"`
	Volatility      float64 `json:"volatility"`

	RSI           float64 `json:"rsi"`
	MACDHistogram float64 `json:"macdHistogram"`
	ADX           float64 `json:"adx"`
	LastCandleAt  int64   `json:"lastCandleAt"`
}
