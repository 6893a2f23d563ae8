package dataservice

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// Gateway реализует доменные порты поверх Client и сразу конвертирует строки в DTO.
type Gateway struct {
	client Client
	logger *log.Entry
}

// NewGateway создаёт шлюз к Data & Identity Service.
func NewGateway(client Client, logger *log.Entry) *Gateway {
	if logger == nil {
		logger = log.New().WithField("component", "dataservice")
	}
	return &Gateway{client: client, logger: logger}
}

var (
	_ domain.CatalogSource       = (*Gateway)(nil)
	_ domain.StockService        = (*Gateway)(nil)
	_ domain.SellerDirectory     = (*Gateway)(nil)
	_ domain.OrderRepository     = (*Gateway)(nil)
	_ domain.OrderItemRepository = (*Gateway)(nil)
)

// ListSellableProducts возвращает активные товары продавца с остатком > 0, отсортированные по имени.
func (g *Gateway) ListSellableProducts(ctx context.Context, sellerID string) ([]domain.Product, error) {
	rows, err := g.client.Query(ctx, Query{
		Table: TableProducts,
		Filters: []Filter{
			Eq("seller_id", sellerID),
			Eq("active", true),
			Gt("stock_quantity", 0),
		},
		Order: []Ordering{{Column: "name"}},
	})
	if err != nil {
		return nil, classify("list_products", err)
	}

	products := make([]domain.Product, 0, len(rows))
	for _, row := range rows {
		p, err := ProductFromRow(row)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, nil
}

// GetSeller возвращает активного продавца или ErrSellerNotFound.
func (g *Gateway) GetSeller(ctx context.Context, sellerID string) (domain.Seller, error) {
	rows, err := g.client.Query(ctx, Query{
		Table:   TableSellers,
		Filters: []Filter{Eq("id", sellerID)},
		Limit:   1,
	})
	if err != nil {
		return domain.Seller{}, classify("get_seller", err)
	}
	if len(rows) == 0 {
		return domain.Seller{}, domain.ErrSellerNotFound
	}

	seller, err := SellerFromRow(rows[0])
	if err != nil {
		return domain.Seller{}, err
	}
	if !seller.Active {
		return domain.Seller{}, domain.ErrSellerNotFound
	}
	return seller, nil
}

// Create вставляет заказ одной операцией; id и created_at присваивает сервис.
func (g *Gateway) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	row, err := OrderRow(order)
	if err != nil {
		return domain.Order{}, err
	}

	inserted, err := g.client.Insert(ctx, TableOrders, row)
	if err != nil {
		return domain.Order{}, classify("create_order", err)
	}
	return OrderFromRow(inserted)
}

// Get возвращает заказ по идентификатору.
func (g *Gateway) Get(ctx context.Context, id string) (domain.Order, error) {
	return g.findOrder(ctx, "get_order", Eq("id", id))
}

// FindByReference ищет заказ по номеру чека.
func (g *Gateway) FindByReference(ctx context.Context, reference string) (domain.Order, error) {
	return g.findOrder(ctx, "find_order", Eq("reference", reference))
}

func (g *Gateway) findOrder(ctx context.Context, op string, filter Filter) (domain.Order, error) {
	rows, err := g.client.Query(ctx, Query{
		Table:   TableOrders,
		Filters: []Filter{filter},
		Limit:   1,
	})
	if err != nil {
		return domain.Order{}, classify(op, err)
	}
	if len(rows) == 0 {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return OrderFromRow(rows[0])
}

// Void аннулирует заказ и оплату, сохраняя причину.
func (g *Gateway) Void(ctx context.Context, id, reason string) error {
	err := g.client.Update(ctx, TableOrders, id, Row{
		"status":         string(domain.OrderStatusVoided),
		"payment_status": string(domain.PaymentStatusVoided),
		"void_reason":    reason,
	})
	if errors.Is(err, ErrRowNotFound) {
		return domain.ErrOrderNotFound
	}
	if err != nil {
		return classify("void_order", err)
	}
	return nil
}

// CreateItem сохраняет строку order_items.
func (g *Gateway) CreateItem(ctx context.Context, item domain.OrderLineItem) (domain.OrderLineItem, error) {
	inserted, err := g.client.Insert(ctx, TableOrderItems, OrderItemRow(item))
	if err != nil {
		return domain.OrderLineItem{}, classify("persist_item", err)
	}
	return OrderItemFromRow(inserted)
}

// DecrementStock атомарно списывает остаток на стороне сервиса.
func (g *Gateway) DecrementStock(ctx context.Context, productID string, amount int) error {
	return g.callStock(ctx, ProcDecrementStock, productID, amount)
}

// IncrementStock возвращает остаток (компенсация продажи).
func (g *Gateway) IncrementStock(ctx context.Context, productID string, amount int) error {
	return g.callStock(ctx, ProcIncrementStock, productID, amount)
}

func (g *Gateway) callStock(ctx context.Context, procedure, productID string, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("%s %s: %w", procedure, productID, domain.ErrItemQtyInvalid)
	}
	remaining, err := g.client.Call(ctx, procedure, Row{
		"product_id": productID,
		"amount":     amount,
	})
	if err != nil {
		return classify(procedure, err)
	}
	g.logger.WithFields(log.Fields{
		"product_id": productID,
		"amount":     amount,
		"remaining":  remaining,
	}).Debugf("%s applied", procedure)
	return nil
}

// classify оставляет бизнес-ошибки как есть, остальное считает сбоем транспорта.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrSellerNotFound):
		return err
	case domain.IsTransport(err):
		return err
	default:
		return &domain.TransportError{Op: op, Err: err}
	}
}
