package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"atmledger/internal/config"
	"atmledger/internal/model"
	"atmledger/internal/repository"

	"gorm.io/gorm"
)

// Publisher sends one message to the broker.
type Publisher interface {
	Send(topic, key, value string) error
}

// OutboxPublisher drains pending outbox rows to the broker on a fixed
// interval. Delivery is at least once: a row is marked SENT only after the
// broker acknowledged it.
type OutboxPublisher struct {
	outboxRepo *repository.OutboxRepository
	publisher  Publisher
	log        *slog.Logger
	interval   time.Duration
	batchSize  int
	maxRetry   int
	stopCh     chan struct{}
	stopOnce   sync.Once
}

func NewOutboxPublisher(db *gorm.DB, publisher Publisher, cfg config.OutboxConfig, log *slog.Logger) *OutboxPublisher {
	p := &OutboxPublisher{
		outboxRepo: repository.NewOutboxRepository(db),
		publisher:  publisher,
		log:        log.With("component", "outbox_publisher"),
		interval:   cfg.Interval,
		batchSize:  cfg.BatchSize,
		maxRetry:   cfg.MaxRetry,
		stopCh:     make(chan struct{}),
	}
	if p.interval <= 0 {
		p.interval = 5 * time.Second
	}
	if p.batchSize <= 0 {
		p.batchSize = 100
	}
	if p.maxRetry <= 0 {
		p.maxRetry = 5
	}
	return p
}

// Start blocks until ctx is done or Stop is called.
func (p *OutboxPublisher) Start(ctx context.Context) {
	p.log.Info("outbox publisher started", "interval", p.interval, "batch_size", p.batchSize)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info("outbox publisher stopping", "reason", ctx.Err())
			return
		case <-p.stopCh:
			p.log.Info("outbox publisher stopped")
			return
		case <-ticker.C:
			p.PublishPending(ctx)
		}
	}
}

func (p *OutboxPublisher) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}

// PublishPending sends one batch and returns how many rows were marked SENT.
func (p *OutboxPublisher) PublishPending(ctx context.Context) int {
	messages, err := p.outboxRepo.GetPendingMessages(ctx, p.batchSize)
	if err != nil {
		p.log.ErrorContext(ctx, "load pending outbox failed", "error", err)
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if ctx.Err() != nil {
			break
		}
		if p.publish(ctx, msg) {
			sent++
		}
	}
	return sent
}

func (p *OutboxPublisher) publish(ctx context.Context, msg *model.OutboxMessage) bool {
	err := p.publisher.Send(msg.Topic, msg.MessageKey, msg.Payload)
	if err == nil {
		if err := p.outboxRepo.MarkAsSent(ctx, msg.ID); err != nil {
			p.log.ErrorContext(ctx, "mark outbox sent failed", "id", msg.ID, "error", err)
			return false
		}
		p.log.DebugContext(ctx, "outbox message sent", "id", msg.ID, "topic", msg.Topic, "key", msg.MessageKey)
		return true
	}

	p.log.WarnContext(ctx, "publish outbox message failed", "id", msg.ID, "retry", msg.RetryCount+1, "error", err)

	if msg.RetryCount+1 >= p.maxRetry {
		if err := p.outboxRepo.MarkAsFailed(ctx, msg.ID, err); err != nil {
			p.log.ErrorContext(ctx, "mark outbox failed failed", "id", msg.ID, "error", err)
		} else {
			p.log.ErrorContext(ctx, "outbox message gave up after max retries", "id", msg.ID, "max_retry", p.maxRetry)
		}
		return false
	}
	if err := p.outboxRepo.IncrementRetryCount(ctx, msg.ID, err); err != nil {
		p.log.ErrorContext(ctx, "increment outbox retry failed", "id", msg.ID, "error", err)
	}
	return false
}
