package service

import (
	"context"
	"strconv"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

const metadataAttempts = "attempts"

type IPublisherService interface {
	Publish(ctx context.Context, payload []byte) error
	// PublishAttempt republishes a payload carrying its delivery attempt count.
	PublishAttempt(ctx context.Context, payload []byte, attempt int) error
}

type publisherService struct {
	topicName string
	publisher message.Publisher
}

func NewPublisherService(topicName string, publisher message.Publisher) IPublisherService {
	return &publisherService{
		topicName: topicName,
		publisher: publisher,
	}
}

func (p *publisherService) Publish(ctx context.Context, payload []byte) error {
	return p.PublishAttempt(ctx, payload, 0)
}

func (p *publisherService) PublishAttempt(_ context.Context, payload []byte, attempt int) error {
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(metadataAttempts, strconv.Itoa(attempt))
	return p.publisher.Publish(p.topicName, msg)
}
