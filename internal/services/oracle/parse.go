package oracle

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"SignalFlow/internal/domain/models"
)

// ErrMalformed is returned when the completion holds no usable judgment.
var ErrMalformed = errors.New("oracle: malformed judgment")

var (
	codeFence  = regexp.MustCompile("(?s)^```(?:json)?\\s*\\n?(.*?)\\n?```$")
	thinkBlock = regexp.MustCompile(`(?s)<think>(.*?)</think>`)
)

type wireJudgment struct {
	Direction    string                  `json:"direction"`
	Confidence   flexFloat               `json:"confidence"`
	Rationale    string                  `json:"rationale"`
	Reasoning    string                  `json:"reasoning"`
	KeyFactors   []string                `json:"keyFactors"`
	RiskFactors  []string                `json:"riskFactors"`
	Duration     string                  `json:"duration"`
	TradeTargets *models.TargetCandidate `json:"tradeTargets"`
}

// flexFloat accepts numbers, numeric strings and "95%".
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	s = strings.TrimSuffix(s, "%")
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("confidence %q: %w", s, err)
	}
	*f = flexFloat(v)
	return nil
}

// ParseJudgment extracts a judgment from a raw completion. Thinking blocks
// are returned in ThinkingProcess; the JSON body may be fenced.
func ParseJudgment(raw string) (*models.ExternalJudgment, error) {
	var thinking []string
	for _, m := range thinkBlock.FindAllStringSubmatch(raw, -1) {
		thinking = append(thinking, strings.TrimSpace(m[1]))
	}
	body := strings.TrimSpace(thinkBlock.ReplaceAllString(raw, ""))
	if m := codeFence.FindStringSubmatch(body); len(m) > 1 {
		body = strings.TrimSpace(m[1])
	}
	start, end := strings.Index(body, "{"), strings.LastIndex(body, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no json object", ErrMalformed)
	}

	var w wireJudgment
	if err := json.Unmarshal([]byte(body[start:end+1]), &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if strings.TrimSpace(w.Direction) == "" {
		return nil, fmt.Errorf("%w: missing direction", ErrMalformed)
	}
	direction, ok := models.LookupDirection(w.Direction)
	if !ok {
		return nil, fmt.Errorf("%w: unknown direction %q", ErrMalformed, w.Direction)
	}
	confidence := float64(w.Confidence)
	if math.IsNaN(confidence) || math.IsInf(confidence, 0) || confidence <= 0 {
		return nil, fmt.Errorf("%w: unusable confidence %v", ErrMalformed, confidence)
	}

	j := &models.ExternalJudgment{
		Direction:       direction,
		Confidence:      confidence,
		Rationale:       w.Rationale,
		KeyFactors:      nonEmpty(w.KeyFactors),
		RiskFactors:     nonEmpty(w.RiskFactors),
		TradeTargets:    w.TradeTargets,
		Duration:        strings.TrimSpace(w.Duration),
		ThinkingProcess: strings.Join(thinking, "\n"),
	}
	if j.Rationale == "" {
		j.Rationale = w.Reasoning
	}
	return j, nil
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
