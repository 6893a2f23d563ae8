// Package receipt строит чек продажи из заказа и экспортирует его в текст и HTML.
package receipt

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// Line — строка чека, взятая из снимка позиций заказа.
type Line struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// View — данные чека. Полностью выводятся из заказа, без обращений к каталогу.
type View struct {
	OrderID       string          `json:"order_id"`
	Reference     string          `json:"reference"`
	SellerName    string          `json:"seller_name"`
	IssuedAt      time.Time       `json:"issued_at"`
	Lines         []Line          `json:"lines"`
	ItemCount     int             `json:"item_count"`
	PaymentMethod string          `json:"payment_method"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Commission    decimal.Decimal `json:"commission"`
	VAT           decimal.Decimal `json:"vat"`
	Total         decimal.Decimal `json:"total"`
	Currency      string          `json:"currency"`
	Voided        bool            `json:"voided,omitempty"`
}

// Build превращает заказ в чек. Чистая функция.
func Build(order domain.Order) View {
	lines := make([]Line, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, Line{
			ProductID: item.ProductID,
			Name:      item.Name,
			SKU:       item.SKU,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal(),
		})
	}

	return View{
		OrderID:       order.ID,
		Reference:     order.Reference,
		SellerName:    order.SellerName,
		IssuedAt:      order.CreatedAt,
		Lines:         lines,
		ItemCount:     order.ItemCount(),
		PaymentMethod: string(order.PaymentMethod),
		Subtotal:      order.Subtotal,
		Commission:    order.CommissionAmount,
		VAT:           order.VATAmount,
		Total:         order.Total,
		Currency:      order.Currency,
		Voided:        order.Status == domain.OrderStatusVoided,
	}
}
