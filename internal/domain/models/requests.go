package models

// Requests for analysis endpoints. Defined in domain for reuse by HTTP and Kafka.

type AnalysisRequest struct {
	Pair      string `query:"pair" json:"pair" validate:"required,min=5,max=20,pair"`
	Timeframe string `query:"timeframe" json:"timeframe" default:"1h" validate:"oneof=1m 3m 5m 15m 30m 1h 2h 4h 1d 1w"`
}
