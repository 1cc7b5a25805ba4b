package outbox

import (
	"context"
	"sync"

	"github.com/nkiryanov/walletledger/internal/logger"
	"github.com/nkiryanov/walletledger/internal/models"
)

type Consumer struct {
	countWorkers int
	maxAttempts  int

	store     eventStore
	publisher Publisher
	logger    logger.Logger
}

func (c *Consumer) Consume(ctx context.Context, in <-chan models.OutboxEvent) <-chan struct{} {
	idleStopped := make(chan struct{})

	var wg sync.WaitGroup
	for range c.countWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.worker(ctx, in)
		}()
	}

	go func() {
		defer close(idleStopped)
		wg.Wait()
		c.logger.Debug("Consumer stopped")
	}()

	return idleStopped
}

func (c *Consumer) worker(ctx context.Context, in <-chan models.OutboxEvent) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-in:
			if !ok {
				return
			}
			c.process(ctx, event)
		}
	}
}

func (c *Consumer) process(ctx context.Context, event models.OutboxEvent) {
	// Event state is saved even if relay is stopping, otherwise published event would be sent again
	markCtx := context.WithoutCancel(ctx)

	err := c.publisher.Publish(ctx, event)
	if err == nil {
		if err := c.store.MarkProcessed(markCtx, event.ID); err != nil {
			c.logger.Error("Failed to mark event processed", "error", err, "event_id", event.ID)
		}
		eventsTotal.WithLabelValues("published").Inc()
		return
	}

	c.logger.Warn("Failed to publish event", "error", err, "event_id", event.ID, "attempts", event.Attempts+1)

	retried, err := c.store.MarkForRetry(markCtx, event.ID, c.maxAttempts)
	if err != nil {
		c.logger.Error("Failed to mark event for retry", "error", err, "event_id", event.ID)
		return
	}

	if retried.Status == models.EventStatusFailed {
		c.logger.Error("Event is not published and will not be retried", "event_id", event.ID, "attempts", retried.Attempts)
		eventsTotal.WithLabelValues("failed").Inc()
		return
	}
	eventsTotal.WithLabelValues("retry").Inc()
}
