package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// OutboxRepository writes event rows picked up by Debezium's outbox SMT and
// published to Kafka. Rows are written in the same transaction as the state
// change they describe, so reporting never sees an event that was rolled back.
type OutboxRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, aggregate, aggregateID, topic string, payload []byte) error
}

type OutboxRepositoryImpl struct {
	db *sqlx.DB
}

func NewOutboxRepository(db *sqlx.DB) *OutboxRepositoryImpl {
	return &OutboxRepositoryImpl{db: db}
}

var _ OutboxRepository = (*OutboxRepositoryImpl)(nil)

func (r *OutboxRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, aggregate, aggregateID, topic string, payload []byte) error {
	const q = `
		INSERT INTO outbox (aggregate, aggregate_id, topic, payload, created_at)
		VALUES (?, ?, ?, ?, NOW())
	`
	_, err := tx.ExecContext(ctx, q, aggregate, aggregateID, topic, payload)
	return err
}
