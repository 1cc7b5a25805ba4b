package models

import (
	"time"

	"github.com/google/uuid"
)

const EventTransactionCreated = "transaction.created"

const (
	EventStatusPending    = "pending"
	EventStatusProcessing = "processing"
	EventStatusProcessed  = "processed"
	EventStatusFailed     = "failed"
)

// OutboxEvent written in the same db transaction as the change it describes
// and relayed to the broker later
type OutboxEvent struct {
	ID          uuid.UUID
	Type        string
	AggregateID string
	Payload     []byte
	Status      string
	Attempts    int
	CreatedAt   time.Time
	ProcessedAt *time.Time
}
