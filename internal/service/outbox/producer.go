package outbox

import (
	"context"
	"time"

	"github.com/nkiryanov/walletledger/internal/logger"
	"github.com/nkiryanov/walletledger/internal/models"
)

type Producer struct {
	interval   time.Duration
	batchSize  int
	staleAfter time.Duration

	store  eventStore
	logger logger.Logger
}

// Produce claims pending events on every tick and sends them to out
// Events left unsent on stop stay claimed and are picked up again once stale
func (p *Producer) Produce(ctx context.Context, out chan<- models.OutboxEvent) <-chan struct{} {
	idleStopped := make(chan struct{})
	p.logger.Debug("Starting producer", "interval", p.interval, "batch_size", p.batchSize)

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				p.logger.Debug("Producer stopped by context")
				return

			case <-ticker.C:
				events, err := p.store.ClaimPending(ctx, p.batchSize, time.Now().Add(-p.staleAfter))
				if err != nil {
					p.logger.Error("Failed to claim outbox events", "error", err)
					continue
				}

				for _, event := range events {
					select {
					case <-ctx.Done():
						p.logger.Debug("Producer stopped by context while sending events")
						return
					case out <- event:
					}
				}
			}
		}
	}()

	return idleStopped
}
