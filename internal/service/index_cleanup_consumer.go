package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"rag-chatbot-be/internal/dto"
	"rag-chatbot-be/internal/pkg/logger"
	"rag-chatbot-be/internal/repository/unitofwork"
	"rag-chatbot-be/pkg/rag"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

const (
	IndexCleanupTopic = "index.cleanup"

	cleanupModule      = "INDEX_CLEANUP"
	maxCleanupAttempts = 5
	sweepLookback      = 24 * time.Hour
	sweepBatchSize     = 100
)

type IIndexCleanupConsumer interface {
	Consume(ctx context.Context) error
	// Sweep purges index entries of recently deactivated documents and
	// returns how many entries it removed.
	Sweep(ctx context.Context) (int, error)
	StartSweeper(ctx context.Context, interval time.Duration)
}

type indexCleanupConsumer struct {
	subscriber message.Subscriber
	retryQueue IPublisherService
	topicName  string
	uowFactory unitofwork.RepositoryFactory
	purger     *rag.Purger
	logger     logger.ILogger
	retryDelay time.Duration
	now        func() time.Time
}

func NewIndexCleanupConsumer(
	subscriber message.Subscriber,
	retryQueue IPublisherService,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	purger *rag.Purger,
	log logger.ILogger,
	retryDelay time.Duration,
) IIndexCleanupConsumer {
	return &indexCleanupConsumer{
		subscriber: subscriber,
		retryQueue: retryQueue,
		topicName:  topicName,
		uowFactory: uowFactory,
		purger:     purger,
		logger:     log,
		retryDelay: retryDelay,
		now:        time.Now,
	}
}

func (c *indexCleanupConsumer) Consume(ctx context.Context) error {
	messages, err := c.subscriber.Subscribe(ctx, c.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			c.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (c *indexCleanupConsumer) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.IndexCleanupMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.DocumentId == uuid.Nil {
		c.logger.Error(cleanupModule, "Dropping malformed cleanup message", map[string]interface{}{
			"message_id": msg.UUID,
		})
		msg.Ack()
		return
	}

	attempt, _ := strconv.Atoi(msg.Metadata.Get(metadataAttempts))
	attempt++
	details := map[string]interface{}{
		"document_id": payload.DocumentId.String(),
		"attempt":     attempt,
	}

	removed, err := c.purger.PurgeDocument(ctx, payload.DocumentId)
	if err == nil {
		details["removed"] = removed
		c.logger.Info(cleanupModule, "Index cleanup done", details)
		msg.Ack()
		return
	}

	details["error"] = err.Error()
	// gochannel redelivers a pristine copy on Nack, so the attempt count
	// travels on a republished message instead.
	msg.Ack()
	if attempt >= maxCleanupAttempts {
		c.logger.Error(cleanupModule, "Index cleanup gave up; the sweeper will pick it up", details)
		return
	}
	c.logger.Warn(cleanupModule, "Index cleanup failed, retrying", details)

	go func(payload []byte, attempt int) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.retryDelay * time.Duration(attempt)):
		}
		if err := c.retryQueue.PublishAttempt(ctx, payload, attempt); err != nil {
			c.logger.Error(cleanupModule, "Failed to requeue cleanup", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}(msg.Payload, attempt)
}

func (c *indexCleanupConsumer) Sweep(ctx context.Context) (int, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)
	ids, err := uow.DocumentRepository().InactiveIDs(ctx, c.now().Add(-sweepLookback).UTC(), sweepBatchSize)
	if err != nil {
		return 0, err
	}

	total := 0
	var errs []error
	for _, id := range ids {
		removed, err := c.purger.PurgeDocument(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		total += removed
	}

	if total > 0 || len(errs) > 0 {
		c.logger.Info(cleanupModule, "Sweep finished", map[string]interface{}{
			"documents": len(ids),
			"removed":   total,
			"failed":    len(errs),
		})
	}
	return total, errors.Join(errs...)
}

func (c *indexCleanupConsumer) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := c.Sweep(ctx); err != nil {
					c.logger.Warn(cleanupModule, "Sweep incomplete", map[string]interface{}{
						"error": err.Error(),
					})
				}
			}
		}
	}()
}
