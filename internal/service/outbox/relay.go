package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nkiryanov/walletledger/internal/logger"
	"github.com/nkiryanov/walletledger/internal/models"
)

const (
	defaultCountWorkers = 4
	defaultBatchSize    = 100
	defaultMaxAttempts  = 5
	defaultInterval     = time.Second
	defaultStaleAfter   = time.Minute
)

var eventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "walletledger",
		Subsystem: "outbox",
		Name:      "events_total",
		Help:      "Total number of relayed outbox events by result.",
	},
	[]string{"result"},
)

type eventStore interface {
	ClaimPending(ctx context.Context, limit int, staleBefore time.Time) ([]models.OutboxEvent, error)
	MarkProcessed(ctx context.Context, eventID uuid.UUID) error
	MarkForRetry(ctx context.Context, eventID uuid.UUID, maxAttempts int) (models.OutboxEvent, error)
}

type Publisher interface {
	Publish(ctx context.Context, event models.OutboxEvent) error
}

// Relay settings. Zero values are replaced with defaults
type Config struct {
	CountWorkers int
	BatchSize    int

	// Event is marked failed after that many unsuccessful publish attempts
	MaxAttempts int

	// How often pending events are polled
	Interval time.Duration

	// Event claimed but not finished for that long is claimed again
	StaleAfter time.Duration
}

// Relay delivers events written to the outbox to the broker, at least once
type Relay struct {
	consumer *Consumer
	producer *Producer
	logger   logger.Logger
}

func New(cfg Config, store eventStore, publisher Publisher, l logger.Logger) *Relay {
	setDefault := func(field *int, def int) {
		if *field <= 0 {
			*field = def
		}
	}
	setDefault(&cfg.CountWorkers, defaultCountWorkers)
	setDefault(&cfg.BatchSize, defaultBatchSize)
	setDefault(&cfg.MaxAttempts, defaultMaxAttempts)
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = defaultStaleAfter
	}

	l = l.With("component", "outbox")

	return &Relay{
		consumer: &Consumer{
			countWorkers: cfg.CountWorkers,
			maxAttempts:  cfg.MaxAttempts,
			store:        store,
			publisher:    publisher,
			logger:       l,
		},
		producer: &Producer{
			interval:   cfg.Interval,
			batchSize:  cfg.BatchSize,
			staleAfter: cfg.StaleAfter,
			store:      store,
			logger:     l,
		},
		logger: l,
	}
}

// Run relay until ctx is done
// Returned channel is closed when all workers stopped
func (r *Relay) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})

	events := make(chan models.OutboxEvent)

	producerStopped := r.producer.Produce(ctx, events)
	consumerStopped := r.consumer.Consume(ctx, events)

	go func() {
		defer close(idleStopped)
		<-producerStopped
		close(events)
		<-consumerStopped
		r.logger.Debug("Relay stopped")
	}()

	return idleStopped
}
