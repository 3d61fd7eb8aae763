package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/atharvakonge/paper-brokerage/internal/models"
	"github.com/shopspring/decimal"
)

// DefaultYahooURL is the public Yahoo Finance API host
const DefaultYahooURL = "https://query1.finance.yahoo.com"

// Yahoo fetches quotes, close histories and news headlines from the
// Yahoo Finance JSON API.
type Yahoo struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewYahoo creates a client for baseURL ("" means DefaultYahooURL)
func NewYahoo(baseURL string, timeout time.Duration, logger *slog.Logger) *Yahoo {
	if baseURL == "" {
		baseURL = DefaultYahooURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Yahoo{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// chartResponse is the subset of /v8/finance/chart we read
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				RegularMarketTime  int64   `json:"regularMarketTime"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (y *Yahoo) chart(ctx context.Context, symbol, rng, interval string) (*chartResponse, error) {
	addr := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=%s",
		y.baseURL, url.PathEscape(symbol), url.QueryEscape(rng), url.QueryEscape(interval))

	var content chartResponse
	if err := y.jget(ctx, addr, &content); err != nil {
		return nil, err
	}
	if content.Chart.Error != nil {
		return nil, fmt.Errorf("%s: %s: %w", symbol, content.Chart.Error.Description, ErrUnavailable)
	}
	if len(content.Chart.Result) == 0 {
		return nil, fmt.Errorf("%s: empty chart: %w", symbol, ErrUnavailable)
	}
	return &content, nil
}

func (y *Yahoo) Quote(ctx context.Context, symbol string) (models.Quote, error) {
	content, err := y.chart(ctx, symbol, "1d", "1d")
	if err != nil {
		return models.Quote{}, err
	}
	meta := content.Chart.Result[0].Meta
	if meta.RegularMarketPrice <= 0 {
		return models.Quote{}, fmt.Errorf("%s: no market price: %w", symbol, ErrUnavailable)
	}
	return models.Quote{
		Symbol: symbol,
		Price:  decimal.NewFromFloat(meta.RegularMarketPrice),
		Time:   time.Unix(meta.RegularMarketTime, 0).UTC(),
	}, nil
}

// History returns daily closes; days without a close are skipped.
func (y *Yahoo) History(ctx context.Context, symbol string, window Window) ([]models.PricePoint, error) {
	content, err := y.chart(ctx, symbol, string(window), "1d")
	if err != nil {
		return nil, err
	}
	res := content.Chart.Result[0]
	if len(res.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%s: no closes: %w", symbol, ErrUnavailable)
	}
	closes := res.Indicators.Quote[0].Close

	points := make([]models.PricePoint, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		points = append(points, models.PricePoint{
			Date:  time.Unix(ts, 0).UTC(),
			Close: decimal.NewFromFloat(*closes[i]),
		})
	}
	return points, nil
}

// Headlines returns up to n recent news titles for symbol
func (y *Yahoo) Headlines(ctx context.Context, symbol string, n int) ([]string, error) {
	addr := fmt.Sprintf("%s/v1/finance/search?q=%s&quotesCount=0&newsCount=%d",
		y.baseURL, url.QueryEscape(symbol), n)

	var content struct {
		News []struct {
			Title string `json:"title"`
		} `json:"news"`
	}
	if err := y.jget(ctx, addr, &content); err != nil {
		return nil, err
	}

	titles := make([]string, 0, len(content.News))
	for _, item := range content.News {
		if item.Title == "" {
			continue
		}
		titles = append(titles, item.Title)
		if len(titles) == n {
			break
		}
	}
	return titles, nil
}

// jget GETs addr and decodes the JSON body into v. Transport failures and
// non-2xx answers are reported as ErrUnavailable.
func (y *Yahoo) jget(ctx context.Context, addr string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (paper-brokerage)")
	req.Header.Set("Accept", "application/json")

	resp, err := y.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
		return fmt.Errorf("%v: %w", err, ErrUnavailable)
	}
	defer resp.Body.Close()

	y.logger.Debug("yahoo request",
		slog.String("path", req.URL.Path),
		slog.Int("status", resp.StatusCode))

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", req.URL.Path, ErrUnavailable)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s: status %s: %w", req.URL.Path, resp.Status, ErrUnavailable)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %v: %w", req.URL.Path, err, ErrUnavailable)
	}
	return nil
}
