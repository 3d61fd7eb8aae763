// Package sentiment scores recent news headlines for a ticker with a
// language model. It never touches the ledger.
package sentiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/atharvakonge/paper-brokerage/internal/models"
)

// ErrUnavailable means the headline source or the model could not be reached
var ErrUnavailable = errors.New("sentiment unavailable")

type Status string

const (
	StatusOK          Status = "ok"
	StatusNoNews      Status = "no_news"
	StatusParseFailed Status = "parse_failed"
	StatusUnavailable Status = "unavailable"
)

type Label string

const (
	Bullish Label = "BULLISH"
	Bearish Label = "BEARISH"
	Neutral Label = "NEUTRAL"
)

// FailedReason is the reason reported when the model answer cannot be read
const FailedReason = "analysis failed"

// Result is one sentiment analysis. Score is in [-1, 1]; a Score of 0 with
// Status parse_failed is not a neutral reading.
type Result struct {
	Symbol     string    `json:"symbol"`
	Score      float64   `json:"score"`
	Label      Label     `json:"label"`
	Reason     string    `json:"reason"`
	Headlines  []string  `json:"headlines"`
	Status     Status    `json:"status"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}

// HeadlineSource returns up to n recent headlines for symbol
type HeadlineSource interface {
	Headlines(ctx context.Context, symbol string, n int) ([]string, error)
}

// Scorer asks a model about the headlines and returns its raw answer
type Scorer interface {
	Score(ctx context.Context, symbol string, headlines []string) (string, error)
}

// Analyzer combines a headline source and a scorer
type Analyzer struct {
	news   HeadlineSource
	scorer Scorer
	max    int
	now    func() time.Time
	logger *slog.Logger
}

func NewAnalyzer(news HeadlineSource, scorer Scorer, maxHeadlines int, logger *slog.Logger) *Analyzer {
	if maxHeadlines <= 0 {
		maxHeadlines = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{news: news, scorer: scorer, max: maxHeadlines, now: time.Now, logger: logger}
}

// Analyze fetches headlines for symbol and scores them. Without headlines
// the model is not called. Errors wrap ErrUnavailable; the returned Result
// still carries the symbol and StatusUnavailable.
func (a *Analyzer) Analyze(ctx context.Context, symbol string) (Result, error) {
	sym, ok := models.NormalizeSymbol(symbol)
	if !ok {
		return Result{}, fmt.Errorf("invalid symbol %q", symbol)
	}
	res := Result{Symbol: sym, Label: Neutral, Headlines: []string{}, AnalyzedAt: a.now().UTC()}

	headlines, err := a.news.Headlines(ctx, sym, a.max)
	if err != nil {
		res.Status = StatusUnavailable
		a.logger.Warn("headline fetch failed", slog.String("symbol", sym), slog.String("error", err.Error()))
		return res, fmt.Errorf("%w: headlines for %s: %v", ErrUnavailable, sym, err)
	}
	if len(headlines) > a.max {
		headlines = headlines[:a.max]
	}
	if len(headlines) == 0 {
		res.Status = StatusNoNews
		res.Reason = "No recent news found."
		return res, nil
	}
	res.Headlines = headlines

	answer, err := a.scorer.Score(ctx, sym, headlines)
	if err != nil {
		res.Status = StatusUnavailable
		a.logger.Warn("sentiment model failed", slog.String("symbol", sym), slog.String("error", err.Error()))
		return res, fmt.Errorf("%w: score %s: %v", ErrUnavailable, sym, err)
	}

	score, label, reason, ok := Parse(answer)
	if !ok {
		res.Status = StatusParseFailed
		res.Reason = FailedReason
		a.logger.Warn("sentiment answer unreadable",
			slog.String("symbol", sym),
			slog.Bool("parsed", false),
			slog.String("answer", answer),
		)
		return res, nil
	}

	res.Score, res.Label, res.Reason, res.Status = score, label, reason, StatusOK
	a.logger.Info("sentiment analyzed",
		slog.String("symbol", sym),
		slog.Float64("score", score),
		slog.String("label", string(label)),
		slog.Bool("parsed", true),
	)
	return res, nil
}

var (
	scoreLine     = regexp.MustCompile(`(?im)^[\s*_#>-]*score[\s*_]*:[\s*_]*([+-]?\d*\.?\d+)`)
	sentimentLine = regexp.MustCompile(`(?im)^[\s*_#>-]*sentiment[\s*_]*:[\s*_]*\[?(bullish|bearish|neutral)`)
	reasonLine    = regexp.MustCompile(`(?im)^[\s*_#>-]*reason[\s*_]*:[\s*_]*(.+)$`)
)

// Parse reads a model answer made of "Score:", "Sentiment:" and "Reason:"
// lines, tolerating markdown emphasis around the labels. The score is
// clamped to [-1, 1]. Without a score line the sentiment label decides
// the score. ok is false when neither is present.
func Parse(answer string) (score float64, label Label, reason string, ok bool) {
	var hasScore, hasLabel bool

	if m := scoreLine.FindStringSubmatch(answer); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			score, hasScore = clamp(v), true
		}
	}
	if m := sentimentLine.FindStringSubmatch(answer); m != nil {
		label, hasLabel = Label(strings.ToUpper(m[1])), true
	}
	if !hasScore && !hasLabel {
		return 0, Neutral, "", false
	}

	switch {
	case !hasScore:
		score = labelScore(label)
	case !hasLabel:
		label = scoreLabel(score)
	}

	if m := reasonLine.FindStringSubmatch(answer); m != nil {
		reason = strings.Trim(strings.TrimSpace(m[1]), "*_[] ")
	}
	return score, label, reason, true
}

func clamp(v float64) float64 {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	}
	return v
}

func labelScore(l Label) float64 {
	switch l {
	case Bullish:
		return 0.5
	case Bearish:
		return -0.5
	}
	return 0
}

func scoreLabel(s float64) Label {
	switch {
	case s >= 0.2:
		return Bullish
	case s <= -0.2:
		return Bearish
	}
	return Neutral
}
