package domain

import "context"

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create вставляет заказ одной атомарной операцией и возвращает его с присвоенными ID и временем.
	Create(ctx context.Context, order Order) (Order, error)
	// Get возвращает заказ по идентификатору или ErrOrderNotFound.
	Get(ctx context.Context, id string) (Order, error)
	// FindByReference ищет заказ по номеру чека или возвращает ErrOrderNotFound.
	FindByReference(ctx context.Context, reference string) (Order, error)
	// Void аннулирует заказ (компенсация саги).
	Void(ctx context.Context, id, reason string) error
}

// OrderItemRepository сохраняет строки order_items.
type OrderItemRepository interface {
	CreateItem(ctx context.Context, item OrderLineItem) (OrderLineItem, error)
}
