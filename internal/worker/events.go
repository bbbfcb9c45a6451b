package worker

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/numgate/numgate/internal/kafka"
	"github.com/numgate/numgate/internal/logger"
	"github.com/numgate/numgate/internal/model"
	"github.com/numgate/numgate/internal/repository"
)

// EventSink drains rental lifecycle events from Kafka into the ClickHouse
// reporting table. Events are already terminal facts when they reach the
// topic, so the sink only batches and writes: size/time-based flush, offsets
// committed after the batch lands (at-least-once; ClickHouse dedupes by id
// downstream in report queries if a batch replays).
type EventSink struct {
	Consumer *kafka.Consumer
	Events   repository.EventsRepository

	BatchSize int           // max events per flush
	BatchWait time.Duration // max time to hold a partial batch
}

func NewEventSink(consumer *kafka.Consumer, events repository.EventsRepository) *EventSink {
	return &EventSink{
		Consumer:  consumer,
		Events:    events,
		BatchSize: 500,
		BatchWait: time.Second,
	}
}

// Run blocks until ctx is cancelled.
func (w *EventSink) Run(ctx context.Context) error {
	if w.BatchSize <= 0 {
		w.BatchSize = 500
	}
	if w.BatchWait <= 0 {
		w.BatchWait = time.Second
	}

	batch := make([]model.RentalEvent, 0, w.BatchSize)
	msgs := make([]kafka.Message, 0, w.BatchSize)
	deadline := time.Now().Add(w.BatchWait)

	flush := func() {
		if len(batch) == 0 {
			deadline = time.Now().Add(w.BatchWait)
			return
		}
		fctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := w.Events.InsertBatch(fctx, batch); err != nil {
			// leave offsets uncommitted; the batch replays on restart
			logger.Log.Error("events: clickhouse insert failed", zap.Error(err), zap.Int("batch", len(batch)))
			return
		}
		if err := w.Consumer.Commit(fctx, msgs...); err != nil {
			logger.Log.Error("events: offset commit failed", zap.Error(err))
		}
		batch = batch[:0]
		msgs = msgs[:0]
		deadline = time.Now().Add(w.BatchWait)
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return nil
		default:
		}

		fetchCtx, cancel := context.WithDeadline(ctx, deadline)
		m, err := w.Consumer.Fetch(fetchCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				flush()
				return nil
			}
			// deadline hit or transient fetch error: flush what we hold
			flush()
			continue
		}

		var ev model.RentalEvent
		if err := json.Unmarshal(m.Value, &ev); err != nil || ev.ID == "" {
			// poison message: commit and skip
			logger.Log.Warn("events: bad envelope", zap.Error(err))
			_ = w.Consumer.Commit(ctx, m)
			continue
		}

		batch = append(batch, ev)
		msgs = append(msgs, m)
		if len(batch) >= w.BatchSize || time.Now().After(deadline) {
			flush()
		}
	}
}
