package handlers

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/atharvakonge/paper-brokerage/internal/models"
	"github.com/atharvakonge/paper-brokerage/internal/portfolio"
)

// ErrProcessorStopped is returned for trades submitted after Stop
var ErrProcessorStopped = errors.New("trade processor stopped")

// Executor applies a trade intent to the ledger
type Executor interface {
	Execute(ctx context.Context, in models.TradeIntent) (portfolio.Execution, error)
}

// TradeResult represents result of a trade operation
type TradeResult struct {
	Execution portfolio.Execution
	Err       error
}

func (r TradeResult) Success() bool { return r.Err == nil }

// tradeJob represents a trade to be processed
type tradeJob struct {
	ctx      context.Context
	intent   models.TradeIntent
	resultCh chan TradeResult // Channel to send result back
}

// TradeProcessor handles concurrent trade processing. Ordering between
// trades on the same symbol is left to the engine's locks and the ledger
// transaction; the pool only bounds how many run at once.
type TradeProcessor struct {
	workers    int
	engine     Executor
	tradeQueue chan tradeJob
	stopCh     chan struct{}
	mu         sync.RWMutex // guards closed against late submits
	closed     bool
	wg         sync.WaitGroup
	logger     *slog.Logger
}

// NewTradeProcessor creates a new trade processor with worker pool
func NewTradeProcessor(engine Executor, workers int, logger *slog.Logger) *TradeProcessor {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TradeProcessor{
		workers:    workers,
		engine:     engine,
		tradeQueue: make(chan tradeJob, 100), // Buffer of 100 trades
		stopCh:     make(chan struct{}),
		logger:     logger,
	}
}

// Start starts the worker pool
func (tp *TradeProcessor) Start() {
	for i := 0; i < tp.workers; i++ {
		tp.wg.Add(1)
		go tp.worker(i)
	}
	tp.logger.Info("trade workers started", slog.Int("workers", tp.workers))
}

// Stop gracefully stops all workers. Queued trades that no worker picked
// up are answered with ErrProcessorStopped.
func (tp *TradeProcessor) Stop() {
	tp.mu.Lock()
	if tp.closed {
		tp.mu.Unlock()
		return
	}
	tp.closed = true
	tp.mu.Unlock()

	close(tp.stopCh)
	tp.wg.Wait()
	for {
		select {
		case job := <-tp.tradeQueue:
			job.resultCh <- TradeResult{Err: ErrProcessorStopped}
		default:
			tp.logger.Info("trade processor stopped")
			return
		}
	}
}

// worker processes trades from the queue
func (tp *TradeProcessor) worker(id int) {
	defer tp.wg.Done()

	for {
		select {
		case <-tp.stopCh:
			tp.logger.Debug("trade worker stopping", slog.Int("worker", id))
			return

		case job := <-tp.tradeQueue:
			tp.logger.Debug("trade worker processing",
				slog.Int("worker", id),
				slog.String("side", string(job.intent.Side)),
				slog.String("symbol", job.intent.Symbol),
				slog.String("quantity", job.intent.Quantity.String()),
			)

			exec, err := tp.engine.Execute(job.ctx, job.intent)
			job.resultCh <- TradeResult{Execution: exec, Err: err}
		}
	}
}

// SubmitTrade submits a trade to the processing queue and waits for its result
func (tp *TradeProcessor) SubmitTrade(ctx context.Context, intent models.TradeIntent) TradeResult {
	// Buffered so a worker never blocks on a caller that gave up
	resultCh := make(chan TradeResult, 1)

	tp.mu.RLock()
	if tp.closed {
		tp.mu.RUnlock()
		return TradeResult{Err: ErrProcessorStopped}
	}
	select {
	case <-ctx.Done():
		tp.mu.RUnlock()
		return TradeResult{Err: ctx.Err()}
	case tp.tradeQueue <- tradeJob{ctx: ctx, intent: intent, resultCh: resultCh}:
	}
	tp.mu.RUnlock()

	select {
	case result := <-resultCh:
		return result
	case <-ctx.Done():
		return TradeResult{Err: ctx.Err()}
	}
}
