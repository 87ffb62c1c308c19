package service

import (
	"context"

	"rag-chatbot-be/internal/pkg/logger"
	"rag-chatbot-be/pkg/events"
	pktNats "rag-chatbot-be/pkg/nats"
)

const (
	eventsModule   = "EVENTS"
	eventsSubject  = "events.>"
	eventsDurable  = "rag-event-log-worker"
	activityPrefix = "Domain event: "
)

// EventSubscriber is satisfied by the JetStream subscriber.
type EventSubscriber interface {
	Subscribe(ctx context.Context, subject, durableName string, handler pktNats.EventHandler) error
}

// EventLogService writes every domain event on the bus into the structured
// log, which is what the admin log endpoint reads back.
type EventLogService struct {
	subscriber EventSubscriber
	logger     logger.ILogger
}

func NewEventLogService(sub EventSubscriber, log logger.ILogger) *EventLogService {
	return &EventLogService{
		subscriber: sub,
		logger:     log,
	}
}

// Start begins listening to the event bus with a durable consumer.
func (s *EventLogService) Start(ctx context.Context) error {
	if err := s.subscriber.Subscribe(ctx, eventsSubject, eventsDurable, s.HandleEvent); err != nil {
		s.logger.Error(eventsModule, "Failed to start event subscriber", map[string]interface{}{"error": err.Error()})
		return err
	}
	s.logger.Info(eventsModule, "Event log listening to "+eventsSubject, nil)
	return nil
}

func (s *EventLogService) HandleEvent(_ context.Context, event events.Event) error {
	details := make(map[string]interface{}, len(event.Payload())+2)
	for k, v := range event.Payload() {
		details[k] = v
	}
	details["type"] = event.EventType()
	details["occurred_at"] = event.Timestamp()

	s.logger.Info(eventsModule, activityPrefix+event.EventType(), details)
	return nil
}
