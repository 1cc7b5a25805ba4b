package broker

import (
	"context"

	"github.com/nkiryanov/walletledger/internal/logger"
	"github.com/nkiryanov/walletledger/internal/models"
)

// LogPublisher writes events to the log instead of a broker
// Used when no broker is configured
type LogPublisher struct {
	logger logger.Logger
}

func NewLogPublisher(l logger.Logger) *LogPublisher {
	return &LogPublisher{logger: l}
}

func (p *LogPublisher) Publish(_ context.Context, event models.OutboxEvent) error {
	p.logger.Info("Event published",
		"id", event.ID,
		"type", event.Type,
		"aggregate_id", event.AggregateID,
		"payload", string(event.Payload),
	)
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
