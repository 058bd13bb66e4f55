package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"SignalFlow/internal/domain/models"
	domrepo "SignalFlow/internal/domain/repository"
	"SignalFlow/internal/middleware"
	"SignalFlow/internal/service/metrics"
	"SignalFlow/internal/service/ratelimit"
	"SignalFlow/internal/usecase"
	xhttp "SignalFlow/pkg/http"
	xlogger "SignalFlow/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// HandlerConfig tunes the analysis endpoints.
type HandlerConfig struct {
	RatePerMinute int
	Timeout       time.Duration
	WriteTimeout  time.Duration
}

// AnalysisHandler serves one-shot and streamed analysis runs.
type AnalysisHandler struct {
	logger   *xlogger.Logger
	analyzer usecase.Analyzer
	metrics  domrepo.Metrics
	rl       *ratelimit.Limiter
	cfg      HandlerConfig
	upgrader websocket.Upgrader
}

func NewAnalysisHandler(logger *xlogger.Logger, analyzer usecase.Analyzer, m domrepo.Metrics, cfg HandlerConfig) *AnalysisHandler {
	metrics.Register()
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &AnalysisHandler{
		logger:   logger,
		analyzer: analyzer,
		metrics:  m,
		rl:       ratelimit.New(),
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *AnalysisHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/analysis", h.Analyze)
	g.GET("/analysis/stream", h.Stream)
	g.GET("/timeframes", h.Timeframes)
}

// streamMessage is one websocket frame. A run sends progress frames followed by
// exactly one prediction frame.
type streamMessage struct {
	Type       string                `json:"type"`
	Event      *models.ProgressEvent `json:"event,omitempty"`
	Prediction *models.Prediction    `json:"prediction,omitempty"`
}

func (h *AnalysisHandler) Analyze(c echo.Context) error {
	const endpoint = "analysis"
	start := time.Now()
	defer func() { metrics.AnalysisLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req, verr := h.readRequest(c)
	if verr != nil {
		metrics.AnalysisErrors.WithLabelValues(endpoint).Inc()
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.allow(c, endpoint) {
		return xhttp.AppErrorResponse(c, h.rateLimited())
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.cfg.Timeout)
	defer cancel()
	p := h.analyzer.RunAnalysis(ctx, req.Pair, domrepo.Timeframe(req.Timeframe), nil)
	if p.Failed() {
		metrics.AnalysisErrors.WithLabelValues(endpoint).Inc()
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.SuccessResponse(c, p)
}

// Stream upgrades to a websocket and forwards progress events while the run
// is in flight. The run is cancelled when the client goes away.
func (h *AnalysisHandler) Stream(c echo.Context) error {
	const endpoint = "stream"
	req, verr := h.readRequest(c)
	if verr != nil {
		metrics.AnalysisErrors.WithLabelValues(endpoint).Inc()
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.allow(c, endpoint) {
		return xhttp.AppErrorResponse(c, h.rateLimited())
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader already wrote the HTTP error
		h.logger.Warn("stream upgrade failed", xlogger.Error(err))
		return nil
	}
	defer conn.Close()
	metrics.StreamsActive.Inc()
	defer metrics.StreamsActive.Dec()

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.cfg.Timeout)
	defer cancel()

	// reader: control frames and disconnect detection
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	write := func(msg streamMessage) error {
		if err := conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout)); err != nil {
			return err
		}
		return conn.WriteJSON(msg)
	}

	pipe := middleware.NewProgressPipeline(func(ev models.ProgressEvent) error {
		return write(streamMessage{Type: "progress", Event: &ev})
	}, h.metrics)
	pipe.Start()

	start := time.Now()
	p := h.analyzer.RunAnalysis(ctx, req.Pair, domrepo.Timeframe(req.Timeframe), pipe)
	pipe.Close()
	metrics.AnalysisLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if p.Failed() {
		metrics.AnalysisErrors.WithLabelValues(endpoint).Inc()
	}

	if err := write(streamMessage{Type: "prediction", Prediction: p}); err != nil {
		h.logger.Warn("stream prediction write failed",
			xlogger.String("pair", p.Pair),
			xlogger.Error(err))
		return nil
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "analysis complete"),
		time.Now().Add(time.Second))
	return nil
}

func (h *AnalysisHandler) Timeframes(c echo.Context) error {
	out := make([]map[string]string, 0, len(domrepo.SupportedTimeframes))
	for _, tf := range domrepo.SupportedTimeframes {
		out = append(out, map[string]string{
			"timeframe": string(tf),
			"anchor":    string(domrepo.AnchorTimeframe(tf)),
		})
	}
	return xhttp.SuccessResponse(c, out)
}

func init() {
	if err := xhttp.RegisterValidation("pair", validPair, "%s must be a symbol pair such as BTCUSDT or BTC/USDT"); err != nil {
		panic(err)
	}
}

// validPair accepts letters and digits with optional '/', '-' or '_' separators.
func validPair(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case r == '/' || r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}

func (h *AnalysisHandler) rateLimited() *xhttp.AppError {
	retry := time.Minute
	if n := h.cfg.RatePerMinute; n > 0 {
		retry = time.Minute / time.Duration(n)
	}
	return xhttp.TooManyRequests("rate limit exceeded", retry)
}

func (h *AnalysisHandler) readRequest(c echo.Context) (*models.AnalysisRequest, []xhttp.ValidationError) {
	req := &models.AnalysisRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); len(verr) > 0 {
		return nil, verr
	}
	req.Pair = strings.ToUpper(strings.TrimSpace(req.Pair))
	return req, nil
}

func (h *AnalysisHandler) allow(c echo.Context, endpoint string) bool {
	n := h.cfg.RatePerMinute
	if h.rl.Allow(c.RealIP()+":"+endpoint, float64(n), ratelimit.PerMinute(n)) {
		return true
	}
	metrics.AnalysisErrors.WithLabelValues("rate_limited").Inc()
	h.logger.Warn("analysis rate_limited",
		xlogger.String("remote", c.RealIP()),
		xlogger.String("endpoint", endpoint))
	return false
}
