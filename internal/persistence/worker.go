package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"StableCore/internal/event"
	"StableCore/internal/observability"
)

// RecordWorker drains the persist channel and batch-writes to Postgres.
// The engine sends on this channel with BLOCKING sends, so if this worker
// falls behind, operations stall — guaranteeing no record is lost.
type RecordWorker struct {
	writer       *RecordLogWriter
	inputChan    <-chan event.Record
	batchSize    int
	flushTimeout time.Duration
	metrics      *observability.Metrics
}

func NewRecordWorker(
	db *sql.DB,
	inputChan <-chan event.Record,
	batchSize int,
	flushTimeout time.Duration,
	metrics *observability.Metrics,
) *RecordWorker {
	return &RecordWorker{
		writer:       NewRecordLogWriter(db),
		inputChan:    inputChan,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		metrics:      metrics,
	}
}

// Run starts the worker loop. It batches incoming records and flushes
// either when the batch is full or the flush timeout expires. Blocks
// until ctx is cancelled or the channel closes.
func (rw *RecordWorker) Run(ctx context.Context) error {
	batch := make([]RecordRow, 0, rw.batchSize)

	timer := time.NewTimer(rw.flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			// Graceful shutdown: flush remaining
			if len(batch) > 0 {
				if err := rw.flush(context.Background(), batch); err != nil {
					log.Printf("ERROR: final flush failed: %v", err)
				}
			}
			return ctx.Err()

		case rec, ok := <-rw.inputChan:
			if !ok {
				// Channel closed — flush and exit
				if len(batch) > 0 {
					if err := rw.flush(context.Background(), batch); err != nil {
						log.Printf("ERROR: final flush failed: %v", err)
					}
				}
				return nil
			}

			row, err := RowFromRecord(rec)
			if err != nil {
				log.Printf("ERROR: dropping unmarshalable record: %v", err)
				if rw.metrics != nil {
					rw.metrics.PersistErrors.WithLabelValues("marshal").Inc()
				}
				continue
			}
			batch = append(batch, row)

			if len(batch) >= rw.batchSize {
				if err := rw.flushWithRetry(ctx, batch); err != nil {
					log.Printf("ERROR: batch flush failed after retries: %v", err)
				}
				batch = batch[:0]
				timer.Reset(rw.flushTimeout)
			}

		case <-timer.C:
			if len(batch) > 0 {
				if err := rw.flushWithRetry(ctx, batch); err != nil {
					log.Printf("ERROR: timeout flush failed after retries: %v", err)
				}
				batch = batch[:0]
			}
			timer.Reset(rw.flushTimeout)
		}
	}
}

// flushWithRetry attempts to flush with exponential backoff. The worker
// never drops records — it retries until the write succeeds or the
// context is cancelled, in which case it makes one last attempt with a
// background context so the batch survives shutdown.
func (rw *RecordWorker) flushWithRetry(ctx context.Context, rows []RecordRow) error {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			log.Printf("WARN: persistence retry attempt %d (backoff=%v, records=%d)",
				attempt, backoff, len(rows))
			select {
			case <-ctx.Done():
				finalErr := rw.flush(context.Background(), rows)
				if finalErr != nil {
					return fmt.Errorf("final flush on shutdown failed: %w", finalErr)
				}
				return nil
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		err := rw.flush(ctx, rows)
		if err == nil {
			if attempt > 0 {
				log.Printf("INFO: persistence flush succeeded after %d retries", attempt)
			}
			return nil
		}

		if rw.metrics != nil {
			rw.metrics.PersistErrors.WithLabelValues("retry").Inc()
		}
	}
}

func (rw *RecordWorker) flush(ctx context.Context, rows []RecordRow) error {
	start := time.Now()

	tx, err := rw.writer.db.BeginTx(ctx, nil)
	if err != nil {
		if rw.metrics != nil {
			rw.metrics.PersistErrors.WithLabelValues("tx_begin").Inc()
		}
		return err
	}
	defer tx.Rollback()

	if err := rw.writer.WriteRecordBatch(ctx, tx, rows); err != nil {
		if rw.metrics != nil {
			rw.metrics.PersistErrors.WithLabelValues("write_records").Inc()
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		if rw.metrics != nil {
			rw.metrics.PersistErrors.WithLabelValues("tx_commit").Inc()
		}
		return err
	}

	if rw.metrics != nil {
		rw.metrics.PersistBatchDur.Observe(time.Since(start).Seconds())
		rw.metrics.PersistBatchSize.Observe(float64(len(rows)))
		rw.metrics.RecordsPersisted.Add(float64(len(rows)))
	}

	return nil
}
