package outbox

import (
	"context"
	"time"

	"github.com/eventhall/ticketing/internal/adapters/crdb"
	"github.com/eventhall/ticketing/internal/adapters/rabbit"
	"github.com/eventhall/ticketing/internal/observability"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher relays committed outbox records to the message broker. Records
// are published at-least-once; consumers dedupe on MessageId.
type Publisher struct {
	repo     *crdb.Repository
	pub      *rabbit.Publisher
	logger   observability.Logger
	interval time.Duration
	batch    int
}

func NewPublisher(repo *crdb.Repository, pub *rabbit.Publisher, logger observability.Logger) *Publisher {
	return &Publisher{
		repo:     repo,
		pub:      pub,
		logger:   logger,
		interval: 5 * time.Second,
		batch:    50,
	}
}

func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.drain(ctx)
		}
	}
}

func (p *Publisher) drain(ctx context.Context) {
	records, err := p.repo.GetUnpublishedOutbox(ctx, p.batch)
	if err != nil {
		p.logger.WithError(err).Error("failed to read outbox")
		return
	}
	for _, rec := range records {
		observability.OutboxLag.Set(time.Since(rec.CreatedAt).Seconds())
		msg := amqp.Publishing{
			MessageId:   rec.DedupeKey,
			ContentType: "application/json",
			Body:        rec.Payload,
		}
		if err := p.pub.Publish(ctx, rec.EventType, msg); err != nil {
			p.logger.WithField("outbox_id", rec.ID).WithError(err).Error("failed to publish outbox record")
			continue
		}
		if err := p.repo.MarkPublished(ctx, rec.ID, time.Now()); err != nil {
			p.logger.WithField("outbox_id", rec.ID).WithError(err).Error("failed to mark outbox record published")
		}
	}
}
