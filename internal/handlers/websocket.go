package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/atharvakonge/paper-brokerage/internal/market"
	"github.com/atharvakonge/paper-brokerage/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

// PriceUpdate represents a stock price update. Available is false when the
// oracle could not price the symbol; Price is then omitted.
type PriceUpdate struct {
	Symbol    string           `json:"symbol"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	ChangePct decimal.Decimal  `json:"change_pct"`
	Available bool             `json:"available"`
	Timestamp time.Time        `json:"timestamp"`
}

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins (for development and demo)
	},
}

// HandleWebSocket handles GET /ws/prices?symbol=AAPL. Every tick it pushes
// one update per held symbol plus the watched one.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	var watch string
	if q := c.Query("symbol"); q != "" {
		sym, ok := models.NormalizeSymbol(q)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid symbol", "code": "invalid_symbol"})
			return
		}
		watch = sym
	}

	// Upgrade HTTP connection to WebSocket
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	h.logger.Info("websocket client connected", slog.String("watch", watch))

	// Reads only to notice the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	last := make(map[string]decimal.Decimal)
	ticker := time.NewTicker(h.tick)
	defer ticker.Stop()

	for {
		if err := h.pushQuotes(ctx, conn, watch, last); err != nil {
			h.logger.Debug("websocket closed", slog.String("error", err.Error()))
			return
		}

		select {
		case <-closed:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (h *Handler) pushQuotes(ctx context.Context, conn *websocket.Conn, watch string, last map[string]decimal.Decimal) error {
	symbols, err := h.engine.Symbols(ctx)
	if err != nil {
		return err
	}
	if watch != "" && !contains(symbols, watch) {
		symbols = append(symbols, watch)
		sort.Strings(symbols)
	}

	for _, sym := range symbols {
		update := PriceUpdate{Symbol: sym, ChangePct: decimal.Zero, Timestamp: time.Now().UTC()}

		q, err := h.engine.Oracle().Quote(ctx, sym)
		switch {
		case errors.Is(err, market.ErrUnavailable):
			// sent as unavailable, never with a made-up price
		case err != nil:
			return err
		case q.Price.IsPositive():
			price := q.Price
			update.Price, update.Available = &price, true
			if prev, ok := last[sym]; ok && prev.IsPositive() {
				update.ChangePct = price.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100)).Round(4)
			}
			last[sym] = price
		}

		// Send to client
		if err := conn.WriteJSON(update); err != nil {
			return err
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
