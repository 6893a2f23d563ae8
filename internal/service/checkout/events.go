package checkout

import (
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/messaging/kafka"
)

// Типы событий outbox/timeline.
const (
	EventSaleSettled           = "SaleSettled"
	EventSettlementFailed      = "SettlementFailed"
	EventSettlementCompensated = "SettlementCompensated"
)

// emitEvent кладёт событие в outbox и в timeline. Сбой журналов расчёт не прерывает.
func (o *Orchestrator) emitEvent(orderID, reference, eventType string, payload map[string]any) {
	occurred := o.now()
	if payload == nil {
		payload = make(map[string]any)
	}
	payload["order_id"] = orderID
	payload["reference"] = reference
	payload["ts"] = occurred.Format(time.RFC3339Nano)

	fields := log.Fields{"order_id": orderID, "order_ref": reference, "event": eventType}

	if o.outbox != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			o.logger.WithError(err).WithFields(fields).Error("marshal event failed")
		} else {
			aggregateID := orderID
			if aggregateID == "" {
				aggregateID = reference
			}
			_, err = o.outbox.Enqueue(domain.OutboxMessage{
				AggregateType: "order",
				AggregateID:   aggregateID,
				EventType:     eventType,
				Payload:       data,
			})
			if err != nil {
				o.logger.WithError(err).WithFields(fields).Error("enqueue event failed")
			} else {
				o.metrics.RecordOutboxEvent()
			}
		}
	}

	if o.timeline != nil {
		reason, _ := payload["reason"].(string)
		err := o.timeline.Append(domain.TimelineEvent{
			OrderID:   orderID,
			Reference: reference,
			Type:      eventType,
			Reason:    reason,
			Occurred:  occurred,
		})
		if err != nil {
			o.logger.WithError(err).WithFields(fields).Warn("append timeline event failed")
		} else {
			o.metrics.RecordTimelineEvent()
		}
	}
}

// publishSettlementEvent публикует событие в Kafka, если producer настроен.
func (o *Orchestrator) publishSettlementEvent(eventType kafka.EventType, orderID, reference, sellerID string, metadata map[string]any) {
	if o.events == nil {
		return
	}
	event := kafka.NewSettlementEvent(eventType, orderID, reference, sellerID, metadata)
	if err := o.events.PublishEvent(kafka.TopicSettlementEvents, event.Key(), event); err != nil {
		o.logger.WithError(err).WithFields(log.Fields{
			"event_type": eventType,
			"order_ref":  reference,
		}).Warn("failed to publish settlement event to kafka")
	}
}
