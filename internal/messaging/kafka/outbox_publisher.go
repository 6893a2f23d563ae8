package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// OutboxTopicPublisher публикует outbox-сообщения в заданный Kafka topic.
type OutboxTopicPublisher struct {
	producer *Producer
	topic    string
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
func NewOutboxPublisher(producer *Producer, topic string) *OutboxTopicPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &OutboxTopicPublisher{producer: producer, topic: topic}
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)

type outboxEnvelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// Publish отправляет сообщение в topic; ключом служит агрегат, чтобы сохранить порядок событий заказа.
func (p *OutboxTopicPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}
	payload := json.RawMessage(event.Payload)
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}

	return p.producer.PublishEvent(p.topic, key, outboxEnvelope{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       payload,
		PublishedAt:   time.Now().UTC(),
	})
}

// DeadLetterPublisher отправляет окончательно неопубликованные outbox-сообщения в DLQ.
type DeadLetterPublisher struct {
	producer      *Producer
	originalTopic string
}

// NewDeadLetterPublisher создаёт DLQ-паблишер для outbox worker.
func NewDeadLetterPublisher(producer *Producer, originalTopic string) *DeadLetterPublisher {
	return &DeadLetterPublisher{producer: producer, originalTopic: originalTopic}
}

var _ domain.OutboxPublisher = (*DeadLetterPublisher)(nil)

// Publish отправляет payload в DLQ как есть.
func (p *DeadLetterPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka dlq publisher is not initialized")
	}
	key := event.AggregateID
	if key == "" {
		key = event.ID
	}
	return p.producer.PublishDeadLetter(p.originalTopic, key, event.Payload, nil)
}
