package domain

import (
	"context"
	"time"
)

// CatalogSource отдаёт товары продавца из Data & Identity Service.
type CatalogSource interface {
	// ListSellableProducts возвращает активные товары с остатком > 0, отсортированные по имени.
	ListSellableProducts(ctx context.Context, sellerID string) ([]Product, error)
}

// StockService — единственный путь изменения остатков: атомарные процедуры на стороне сервиса.
type StockService interface {
	// DecrementStock списывает amount единиц или возвращает ErrInsufficientStock.
	DecrementStock(ctx context.Context, productID string, amount int) error
	// IncrementStock возвращает amount единиц (компенсация).
	IncrementStock(ctx context.Context, productID string, amount int) error
}

// SellerDirectory находит продавцов по идентификатору.
type SellerDirectory interface {
	GetSeller(ctx context.Context, sellerID string) (Seller, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(orderID string) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(ctx context.Context, key string) (IdempotencyRecord, error)
	MarkDone(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	MarkFailed(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	// Release освобождает ключ после исхода, который можно безопасно повторить.
	Release(ctx context.Context, key string) error
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}

// SettlementStep задаёт константы шагов расчёта для метрик/логов.
type SettlementStep string

const (
	SettlementStepValidate       SettlementStep = "validate"
	SettlementStepPricing        SettlementStep = "pricing"
	SettlementStepCreateOrder    SettlementStep = "create_order"
	SettlementStepPersistItem    SettlementStep = "persist_item"
	SettlementStepDecrementStock SettlementStep = "decrement_stock"
	SettlementStepRestoreStock   SettlementStep = "restore_stock"
	SettlementStepVoidOrder      SettlementStep = "void_order"
)

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
