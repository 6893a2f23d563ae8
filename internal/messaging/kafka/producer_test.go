package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
)

func newTestProducer(t *testing.T) (*Producer, *mocks.SyncProducer) {
	t.Helper()
	mockProducer := mocks.NewSyncProducer(t, nil)
	return NewProducerFromClient(mockProducer, log.WithField("component", "kafka-producer-test")), mockProducer
}

func TestProducer_PublishEvent(t *testing.T) {
	producer, mockProducer := newTestProducer(t)

	mockProducer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var event SettlementEvent
		if err := json.Unmarshal(val, &event); err != nil {
			return err
		}
		if event.EventType != EventTypeSaleSettled || event.Reference != "POS-1" {
			t.Errorf("unexpected event %+v", event)
		}
		return nil
	})

	event := NewSettlementEvent(EventTypeSaleSettled, "order-1", "POS-1", "seller-1", map[string]any{"total": "25.00"})
	if err := producer.PublishEvent(TopicSettlementEvents, event.Key(), event); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_Error(t *testing.T) {
	producer, mockProducer := newTestProducer(t)
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	event := NewSettlementEvent(EventTypeSettlementFailed, "", "POS-2", "seller-1", nil)
	if err := producer.PublishEvent(TopicSettlementEvents, event.Key(), event); err == nil {
		t.Fatal("expected error, got nil")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishDeadLetter(t *testing.T) {
	producer, mockProducer := newTestProducer(t)
	mockProducer.ExpectSendMessageAndSucceed()

	if err := producer.PublishDeadLetter(TopicOrderEvents, "order-1", []byte(`{}`), sarama.ErrOutOfBrokers); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNewSettlementEvent(t *testing.T) {
	event := NewSettlementEvent(EventTypeSettlementCompensated, "order-123", "", "seller-1", map[string]any{"restored": 2})

	if event.EventType != EventTypeSettlementCompensated {
		t.Errorf("expected event type %s, got %s", EventTypeSettlementCompensated, event.EventType)
	}
	if event.Key() != "order-123" {
		t.Errorf("expected key to fall back to order id, got %s", event.Key())
	}
	if event.Metadata["restored"] != 2 {
		t.Error("metadata not set correctly")
	}
	if event.Timestamp.IsZero() || time.Since(event.Timestamp) > time.Second {
		t.Error("timestamp should be close to current time")
	}
}
