// Package batcher runs the anchoring worker: lease a job, anchor its hash
// on-chain, reconcile the authoritative record. One instance is enough;
// multiple instances are safe because the queue lease is the only
// synchronization point.
package batcher

import (
	"context"
	"time"

	"go.uber.org/zap"

	"craftid/backend/internal/ledger"
	"craftid/backend/internal/metrics"
	"craftid/backend/internal/queue"
)

// Jobs is the slice of the work queue the worker drives.
type Jobs interface {
	LeaseOne(ctx context.Context) (*queue.Item, error)
	MarkDone(ctx context.Context, publicID, txHash, anchoredAt string) error
	MarkFailed(ctx context.Context, publicID, reason string, permanent bool) error
}

// Records mirrors terminal job outcomes onto the craftids store.
type Records interface {
	MarkAnchored(ctx context.Context, publicID, txHash, anchoredAt string) error
	MarkFailed(ctx context.Context, publicID, reason string) error
}

// Ledger is the on-chain adapter. The worker owns all retry policy.
type Ledger interface {
	Anchor(ctx context.Context, hashHex, publicID string, waitForReceipt bool, timeout time.Duration) (string, error)
	IsAnchored(ctx context.Context, hashHex string) (bool, uint64, error)
}

type Options struct {
	BatchLimit         int
	ActivePollInterval time.Duration
	IdlePollInterval   time.Duration
	IdleThreshold      time.Duration
	ReceiptTimeout     time.Duration
	MaxRetries         int
}

type Worker struct {
	log     *zap.Logger
	jobs    Jobs
	records Records
	ledger  Ledger
	metrics *metrics.Metrics
	opts    Options

	now func() time.Time
}

func New(logger *zap.Logger, jobs Jobs, records Records, lc Ledger, m *metrics.Metrics, opts Options) *Worker {
	return &Worker{
		log:     logger,
		jobs:    jobs,
		records: records,
		ledger:  lc,
		metrics: m,
		opts:    opts,
		now:     time.Now,
	}
}

// Run drives the poll loop until ctx is cancelled. The in-flight item is
// allowed to finish (bounded by the receipt timeout); no new leases are taken
// after cancellation.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("batcher started",
		zap.Duration("active_poll", w.opts.ActivePollInterval),
		zap.Duration("idle_poll", w.opts.IdlePollInterval),
		zap.Int("batch_limit", w.opts.BatchLimit),
	)

	lastProcessed := w.now()
	idle := false

	for {
		if ctx.Err() != nil {
			break
		}

		processed := w.processBatch(ctx)

		var sleep time.Duration
		switch {
		case processed > 0:
			lastProcessed = w.now()
			if idle {
				w.log.Info("work resumed, back to active polling")
				idle = false
			}
			sleep = w.opts.ActivePollInterval
		default:
			w.metrics.EmptyPolls.Inc()
			if !idle && w.now().Sub(lastProcessed) > w.opts.IdleThreshold {
				w.log.Info("queue quiet, entering idle polling")
				idle = true
			}
			sleep = w.opts.ActivePollInterval
			if idle {
				sleep = w.opts.IdlePollInterval
			}
		}

		select {
		case <-ctx.Done():
		case <-time.After(sleep):
		}
	}

	w.log.Info("batcher stopped")
}

// processBatch drains up to BatchLimit items sequentially. Shutdown stops
// new leases; the item already leased finishes on a detached context so the
// receipt wait (bounded by its own timeout) is not cut short.
func (w *Worker) processBatch(ctx context.Context) int {
	work := context.WithoutCancel(ctx)
	processed := 0
	for i := 0; i < w.opts.BatchLimit; i++ {
		if ctx.Err() != nil {
			break
		}
		item, err := w.jobs.LeaseOne(work)
		if err != nil {
			w.log.Error("lease failed", zap.Error(err))
			break
		}
		if item == nil {
			break
		}
		w.processItem(work, item)
		processed++
	}
	return processed
}

func (w *Worker) processItem(ctx context.Context, it *queue.Item) {
	logger := w.log.With(zap.String("public_id", it.PublicID), zap.Int("tries", it.Tries))

	// Idempotency first: a worker may have crashed after broadcast but before
	// persisting success. The ledger is the source of truth.
	anchored, ts, err := w.ledger.IsAnchored(ctx, it.PublicHash)
	if err == nil && anchored {
		anchoredAt := w.anchorTime(ts)
		logger.Warn("hash already anchored, reconciling without new tx")
		w.finishAnchored(ctx, logger, it.PublicID, "already-anchored", anchoredAt)
		w.metrics.ReconciledTotal.Inc()
		return
	}
	if err != nil {
		// A malformed hash is permanent; transport failures stay retryable.
		w.fail(ctx, logger, it, err, ledger.Permanent(err))
		return
	}

	txHash, err := w.ledger.Anchor(ctx, it.PublicHash, it.PublicID, true, w.opts.ReceiptTimeout)
	if err != nil {
		w.fail(ctx, logger, it, err, ledger.Permanent(err))
		return
	}

	anchoredAt := w.now().UTC().Truncate(time.Second).Format(time.RFC3339)
	w.finishAnchored(ctx, logger, it.PublicID, txHash, anchoredAt)
	w.metrics.AnchoredTotal.Inc()
	logger.Info("anchored", zap.String("tx_hash", txHash))
}

func (w *Worker) finishAnchored(ctx context.Context, logger *zap.Logger, publicID, txHash, anchoredAt string) {
	if err := w.jobs.MarkDone(ctx, publicID, txHash, anchoredAt); err != nil {
		logger.Error("mark done failed", zap.Error(err))
	}
	if err := w.records.MarkAnchored(ctx, publicID, txHash, anchoredAt); err != nil {
		// Not transactional with the queue write: the next lease of a stale
		// duplicate would reconcile via isAnchored, and the record write is
		// itself idempotent.
		logger.Error("record reconcile failed", zap.Error(err))
	}
}

func (w *Worker) fail(ctx context.Context, logger *zap.Logger, it *queue.Item, cause error, permanent bool) {
	reason := cause.Error()
	if err := w.jobs.MarkFailed(ctx, it.PublicID, reason, permanent); err != nil {
		logger.Error("mark failed errored", zap.Error(err))
	}
	if permanent || it.Tries >= w.opts.MaxRetries {
		w.metrics.DeadLetterTotal.Inc()
		logger.Error("dead-lettered", zap.String("reason", reason), zap.Bool("permanent", permanent))
		if err := w.records.MarkFailed(ctx, it.PublicID, reason); err != nil {
			logger.Error("record failure write errored", zap.Error(err))
		}
		return
	}
	w.metrics.RetriedTotal.Inc()
	logger.Warn("transient failure, re-queued", zap.String("reason", reason))
}

func (w *Worker) anchorTime(unix uint64) string {
	if unix == 0 {
		return w.now().UTC().Truncate(time.Second).Format(time.RFC3339)
	}
	return time.Unix(int64(unix), 0).UTC().Format(time.RFC3339)
}
