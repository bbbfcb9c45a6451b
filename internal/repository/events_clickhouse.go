package repository

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/numgate/numgate/internal/model"
)

// EventsRepository is the ClickHouse reporting store for rental lifecycle
// events. Append-only; the MySQL system of record never reads from it.
type EventsRepository interface {
	InsertBatch(ctx context.Context, events []model.RentalEvent) error
	CountByStage(ctx context.Context) (map[string]int64, error)
	ListByAccount(ctx context.Context, accountID int64, limit, offset int) ([]model.RentalEvent, error)
}

type EventsRepositoryImpl struct {
	db *sqlx.DB
}

func NewEventsRepository(db *sqlx.DB) *EventsRepositoryImpl {
	return &EventsRepositoryImpl{db: db}
}

var _ EventsRepository = (*EventsRepositoryImpl)(nil)

func (r *EventsRepositoryImpl) InsertBatch(ctx context.Context, events []model.RentalEvent) error {
	if len(events) == 0 {
		return nil
	}

	var sb strings.Builder
	args := make([]any, 0, len(events)*8)

	sb.WriteString(`INSERT INTO rental_events
		(id, account_id, txn_id, service, stage, price, commission, occurred_at) VALUES `)
	for i, e := range events {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, e.ID, e.AccountID, e.TxnID, e.Service, e.Stage, e.Price, e.Commission, e.OccurredAt)
	}

	_, err := r.db.ExecContext(ctx, sb.String(), args...)
	return err
}

func (r *EventsRepositoryImpl) CountByStage(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.QueryxContext(ctx, `
		SELECT stage, COUNT(*) AS cnt FROM rental_events GROUP BY stage
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var stage string
		var cnt int64
		if err := rows.Scan(&stage, &cnt); err != nil {
			return nil, err
		}
		out[stage] = cnt
	}
	return out, rows.Err()
}

func (r *EventsRepositoryImpl) ListByAccount(ctx context.Context, accountID int64, limit, offset int) ([]model.RentalEvent, error) {
	var out []model.RentalEvent
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, account_id, txn_id, service, stage, price, commission, occurred_at
		  FROM rental_events
		 WHERE account_id = ?
		 ORDER BY occurred_at DESC
		 LIMIT ? OFFSET ?
	`, accountID, limit, offset)
	return out, err
}
