package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/qiongbi/card-ledger/internal/domain"
	"github.com/qiongbi/card-ledger/internal/logger"
	"github.com/qiongbi/card-ledger/internal/store"
)

// Config holds ledger service configuration
type Config struct {
	// MaxRetries bounds retry attempts for ingests that lose a row-lock race
	MaxRetries uint64
	// Timeout bounds each ingest transaction attempt. An attempt stuck behind
	// a held row lock fails with a deadline error instead of waiting on the
	// client connection.
	Timeout time.Duration
	// PoolSize is the number of concurrent workers for batch ingest
	PoolSize int
	// QueueSize is the pending-task buffer for the batch pool
	QueueSize int
}

// BatchError describes a single failed snapshot within a batch
type BatchError struct {
	Index  int    `json:"index"`
	Source string `json:"source"`
	CardID string `json:"card_id"`
	Err    error  `json:"-"`
}

// BatchResult summarizes a batch ingest
type BatchResult struct {
	Created   int          `json:"created"`
	Updated   int          `json:"updated"`
	Unchanged int          `json:"unchanged"`
	Errors    []BatchError `json:"errors,omitempty"`
}

// Ledger validates snapshots and applies them to the store, retrying
// transient lock conflicts
type Ledger struct {
	store  store.Store
	config Config
	pool   pond.Pool
}

// New creates a ledger service with its batch worker pool
func New(s store.Store, cfg Config) *Ledger {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = 4
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = 256
	}

	return &Ledger{
		store:  s,
		config: cfg,
		pool: pond.NewPool(
			cfg.PoolSize,
			pond.WithQueueSize(cfg.QueueSize),
		),
	}
}

// Close drains the batch pool; pending batch tasks finish first
func (l *Ledger) Close() {
	l.pool.StopAndWait()
}

// Ingest validates a snapshot and applies it, retrying when two ingests race
// on the same (source, card_id) row lock
func (l *Ledger) Ingest(ctx context.Context, snap domain.OfferSnapshot) (domain.IngestResult, error) {
	if err := snap.Validate(); err != nil {
		return "", err
	}

	var result domain.IngestResult
	operation := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, l.config.Timeout)
		defer cancel()

		var err error
		result, err = l.store.IngestOffer(attemptCtx, snap)
		if err != nil && !errors.Is(err, domain.ErrConflict) {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 1 * time.Second
	b.RandomizationFactor = 0.5 // Add jitter to prevent thundering herd

	notify := func(err error, duration time.Duration) {
		logger.WarnCtx(ctx, "ingest conflict, retrying",
			zap.String("key", snap.Key()),
			zap.Error(err),
			zap.Duration("next_retry_in", duration),
		)
	}

	err := backoff.RetryNotify(operation,
		backoff.WithContext(backoff.WithMaxRetries(b, l.config.MaxRetries), ctx),
		notify)
	if err != nil {
		return "", fmt.Errorf("ingest %s: %w", snap.Key(), err)
	}

	return result, nil
}

// IngestBatch applies a batch of snapshots concurrently. Snapshots for
// different keys run in parallel; the store's row lock serializes snapshots
// that share a key. Per-snapshot failures are collected, not fatal.
func (l *Ledger) IngestBatch(ctx context.Context, snaps []domain.OfferSnapshot) BatchResult {
	results := make([]domain.IngestResult, len(snaps))
	errs := make([]error, len(snaps))

	group := l.pool.NewGroup()
	for i, snap := range snaps {
		group.Submit(func() {
			results[i], errs[i] = l.Ingest(ctx, snap)
		})
	}
	_ = group.Wait()

	var batch BatchResult
	for i, err := range errs {
		if err != nil {
			batch.Errors = append(batch.Errors, BatchError{
				Index:  i,
				Source: snaps[i].Source,
				CardID: snaps[i].CardID,
				Err:    err,
			})
			continue
		}
		switch results[i] {
		case domain.IngestCreated:
			batch.Created++
		case domain.IngestUpdated:
			batch.Updated++
		case domain.IngestUnchanged:
			batch.Unchanged++
		}
	}

	return batch
}
