package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/walletledger/internal/apperrors"
	"github.com/nkiryanov/walletledger/internal/models"
)

type OutboxRepo struct {
	DB DBTX
}

const outboxColumns = `id, type, aggregate_id, payload, status, attempts, created_at, processed_at`

const createEvent = `-- name: CreateOutboxEvent
INSERT INTO outbox (id, type, aggregate_id, payload)
VALUES ($1, $2, $3, $4)
RETURNING ` + outboxColumns

func (r *OutboxRepo) CreateEvent(ctx context.Context, e models.OutboxEvent) (models.OutboxEvent, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}

	rows, _ := r.DB.Query(ctx, createEvent, e.ID, e.Type, e.AggregateID, e.Payload)
	event, err := pgx.CollectOneRow(rows, rowToEvent)
	if err != nil {
		return event, storeError(err)
	}

	return event, nil
}

// SKIP LOCKED lets several relays claim disjoint batches
// Events claimed before $2 and still not finished are claimed again
const claimPending = `-- name: ClaimPendingOutboxEvents
UPDATE outbox SET status = 'processing', claimed_at = NOW()
WHERE id IN (
	SELECT id FROM outbox
	WHERE status = 'pending' OR (status = 'processing' AND claimed_at < $2)
	ORDER BY created_at
	LIMIT $1
	FOR UPDATE SKIP LOCKED
)
RETURNING ` + outboxColumns

func (r *OutboxRepo) ClaimPending(ctx context.Context, limit int, staleBefore time.Time) ([]models.OutboxEvent, error) {
	rows, _ := r.DB.Query(ctx, claimPending, limit, staleBefore)
	events, err := pgx.CollectRows(rows, rowToEvent)
	if err != nil {
		return nil, storeError(err)
	}

	return events, nil
}

const markProcessed = `-- name: MarkOutboxEventProcessed
UPDATE outbox SET status = 'processed', processed_at = NOW()
WHERE id = $1
`

func (r *OutboxRepo) MarkProcessed(ctx context.Context, eventID uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, markProcessed, eventID)
	if err != nil {
		return storeError(err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrEventNotFound
	}

	return nil
}

const markForRetry = `-- name: MarkOutboxEventForRetry
UPDATE outbox
SET attempts = attempts + 1,
    status = CASE WHEN attempts + 1 >= $2 THEN 'failed' ELSE 'pending' END
WHERE id = $1
RETURNING ` + outboxColumns

func (r *OutboxRepo) MarkForRetry(ctx context.Context, eventID uuid.UUID, maxAttempts int) (models.OutboxEvent, error) {
	rows, _ := r.DB.Query(ctx, markForRetry, eventID, maxAttempts)
	event, err := pgx.CollectOneRow(rows, rowToEvent)

	switch {
	case err == nil:
		return event, nil
	case errors.Is(err, pgx.ErrNoRows):
		return event, apperrors.ErrEventNotFound
	default:
		return event, storeError(err)
	}
}

func rowToEvent(row pgx.CollectableRow) (models.OutboxEvent, error) {
	var e models.OutboxEvent
	err := row.Scan(&e.ID, &e.Type, &e.AggregateID, &e.Payload, &e.Status, &e.Attempts, &e.CreatedAt, &e.ProcessedAt)
	return e, err
}
