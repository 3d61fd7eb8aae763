package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/atharvakonge/paper-brokerage/internal/db"
	"github.com/atharvakonge/paper-brokerage/internal/market"
	"github.com/atharvakonge/paper-brokerage/internal/models"
	"github.com/atharvakonge/paper-brokerage/internal/portfolio"
	"github.com/atharvakonge/paper-brokerage/internal/sentiment"
	"github.com/gin-gonic/gin"
)

// SentimentAnalyzer scores the news for a ticker
type SentimentAnalyzer interface {
	Analyze(ctx context.Context, symbol string) (sentiment.Result, error)
}

// Handler serves the brokerage HTTP API
type Handler struct {
	engine    *portfolio.Engine
	trades    *TradeProcessor
	sentiment SentimentAnalyzer // nil disables /api/sentiment
	tick      time.Duration
	logger    *slog.Logger
}

// NewHandler wires the API. analyzer may be nil.
func NewHandler(engine *portfolio.Engine, trades *TradeProcessor, analyzer SentimentAnalyzer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		engine:    engine,
		trades:    trades,
		sentiment: analyzer,
		tick:      time.Second,
		logger:    logger,
	}
}

// SetStreamInterval changes how often /ws/prices pushes quotes
func (h *Handler) SetStreamInterval(d time.Duration) {
	if d > 0 {
		h.tick = d
	}
}

// Router builds the gin engine with every route registered
func (h *Handler) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), RequestLogger(h.logger))

	// API routes
	api := router.Group("/api")
	{
		api.GET("/account", h.GetAccount)
		api.GET("/positions", h.GetPositions)

		// Trading endpoints
		api.POST("/trades/buy", h.BuyStock)
		api.POST("/trades/sell", h.SellStock)
		api.GET("/trades", h.GetTradeHistory)

		api.GET("/portfolio", h.GetPortfolio)
		api.GET("/history", h.GetEquityHistory)

		api.GET("/prices/:symbol", h.GetQuote)
		api.GET("/prices/:symbol/history", h.GetPriceHistory)
		api.GET("/sentiment/:symbol", h.GetSentiment)
	}

	// WebSocket endpoint
	router.GET("/ws/prices", h.HandleWebSocket)

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	return router
}

// writeError maps engine, ledger and oracle errors to a status and code
func (h *Handler) writeError(c *gin.Context, err error) {
	if rej, ok := portfolio.AsRejection(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": rej.Error(), "code": string(rej.Kind)})
		return
	}

	switch {
	case errors.Is(err, db.ErrStorageFault):
		h.logger.Error("storage fault", slog.String("error", err.Error()), slog.String("request_id", c.GetString("request_id")))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ledger storage failed", "code": "storage_fault"})
	case errors.Is(err, market.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "code": "price_unavailable"})
	case errors.Is(err, sentiment.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "code": "sentiment_unavailable"})
	case errors.Is(err, ErrProcessorStopped):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "code": "shutting_down"})
	default:
		h.logger.Error("request failed", slog.String("error", err.Error()), slog.String("request_id", c.GetString("request_id")))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "code": "internal"})
	}
}

// GetAccount handles GET /api/account
func (h *Handler) GetAccount(c *gin.Context) {
	acct, err := h.engine.Account(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, acct)
}

// GetPositions handles GET /api/positions
func (h *Handler) GetPositions(c *gin.Context) {
	positions, err := h.engine.Positions(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions, "count": len(positions)})
}

// BuyStock handles POST /api/trades/buy
func (h *Handler) BuyStock(c *gin.Context) {
	h.trade(c, models.SideBuy)
}

// SellStock handles POST /api/trades/sell
func (h *Handler) SellStock(c *gin.Context) {
	h.trade(c, models.SideSell)
}

func (h *Handler) trade(c *gin.Context, side models.Side) {
	var req models.TradeRequest

	// Parse JSON request body
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "invalid_request"})
		return
	}

	// Executed at the oracle's price
	result := h.trades.SubmitTrade(c.Request.Context(), models.TradeIntent{
		Symbol:   req.Symbol,
		Quantity: req.Quantity,
		Side:     side,
	})
	if !result.Success() {
		h.writeError(c, result.Err)
		return
	}

	c.JSON(http.StatusOK, result.Execution)
}

// GetTradeHistory handles GET /api/trades?limit=50
func (h *Handler) GetTradeHistory(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer", "code": "invalid_request"})
		return
	}

	trades, err := h.engine.Trades(c.Request.Context(), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"trades": trades,
		"count":  len(trades),
	})
}

// GetPortfolio handles GET /api/portfolio. Viewing the portfolio also
// records the equity snapshot for the current bucket.
func (h *Handler) GetPortfolio(c *gin.Context) {
	report, err := h.engine.ReportAndRecord(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetEquityHistory handles GET /api/history
func (h *Handler) GetEquityHistory(c *gin.Context) {
	snaps, err := h.engine.EquityHistory(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": snaps, "count": len(snaps)})
}

func symbolParam(c *gin.Context) (string, bool) {
	sym, ok := models.NormalizeSymbol(c.Param("symbol"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid symbol", "code": "invalid_symbol"})
	}
	return sym, ok
}

// GetQuote handles GET /api/prices/:symbol
func (h *Handler) GetQuote(c *gin.Context) {
	sym, ok := symbolParam(c)
	if !ok {
		return
	}
	q, err := h.engine.Oracle().Quote(c.Request.Context(), sym)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

// GetPriceHistory handles GET /api/prices/:symbol/history?range=1mo
func (h *Handler) GetPriceHistory(c *gin.Context) {
	sym, ok := symbolParam(c)
	if !ok {
		return
	}
	window, err := market.ParseWindow(c.Query("range"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "invalid_request"})
		return
	}

	points, err := h.engine.Oracle().History(c.Request.Context(), sym, window)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": sym, "range": window, "points": points})
}

// GetSentiment handles GET /api/sentiment/:symbol
func (h *Handler) GetSentiment(c *gin.Context) {
	sym, ok := symbolParam(c)
	if !ok {
		return
	}
	if h.sentiment == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sentiment analysis not configured", "code": "sentiment_unavailable"})
		return
	}

	res, err := h.sentiment.Analyze(c.Request.Context(), sym)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
