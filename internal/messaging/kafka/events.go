package kafka

import "time"

// EventType определяет тип события расчёта.
type EventType string

const (
	// EventTypeSaleSettled: продажа проведена полностью.
	EventTypeSaleSettled EventType = "settlement.sale_settled"
	// EventTypeSettlementFailed: расчёт прерван после начала записи.
	EventTypeSettlementFailed EventType = "settlement.failed"
	// EventTypeSettlementCompensated: выполнены компенсации (возврат остатков, аннулирование).
	EventTypeSettlementCompensated EventType = "settlement.compensated"
)

// Topics для Kafka.
const (
	TopicSettlementEvents = "pos.settlement.events"
	TopicOrderEvents      = "pos.order.events"
	TopicDeadLetterQueue  = "pos.dlq"
)

// Kafka headers сообщений, отправленных в DLQ.
const (
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// SettlementEvent — событие жизненного цикла расчёта.
type SettlementEvent struct {
	EventType EventType      `json:"event_type"`
	OrderID   string         `json:"order_id,omitempty"`
	Reference string         `json:"reference"`
	SellerID  string         `json:"seller_id"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewSettlementEvent создаёт событие расчёта.
func NewSettlementEvent(eventType EventType, orderID, reference, sellerID string, metadata map[string]any) *SettlementEvent {
	return &SettlementEvent{
		EventType: eventType,
		OrderID:   orderID,
		Reference: reference,
		SellerID:  sellerID,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	}
}

// Key возвращает ключ партиционирования: события одного чека попадают в одну партицию.
func (e *SettlementEvent) Key() string {
	if e.Reference != "" {
		return e.Reference
	}
	return e.OrderID
}
