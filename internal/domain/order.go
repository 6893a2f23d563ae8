package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает статус заказа, созданного кассой.
type OrderStatus string

const (
	// OrderStatusFulfilled: товар передан покупателю сразу, POS-продажа завершена.
	OrderStatusFulfilled OrderStatus = "fulfilled"
	// OrderStatusVoided: заказ аннулирован компенсацией после неудачного расчёта.
	OrderStatusVoided OrderStatus = "voided"
)

// PaymentStatus описывает статус оплаты заказа.
type PaymentStatus string

const (
	// PaymentStatusPaid: оплата принята на кассе.
	PaymentStatusPaid PaymentStatus = "paid"
	// PaymentStatusVoided: оплата аннулирована вместе с заказом.
	PaymentStatusVoided PaymentStatus = "voided"
)

// PaymentMethod — закрытый набор способов оплаты на кассе.
type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodCard     PaymentMethod = "card"
	PaymentMethodTransfer PaymentMethod = "transfer"
)

// Valid проверяет, что способ оплаты входит в закрытый набор.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodTransfer:
		return true
	default:
		return false
	}
}

// ParsePaymentMethod разбирает способ оплаты без учёта регистра.
func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToLower(strings.TrimSpace(raw)))
	if !m.Valid() {
		return "", ErrPaymentMethodInvalid
	}
	return m, nil
}

// ShippingInStorePickup — фиксированный маркер доставки для продажи на кассе.
const ShippingInStorePickup = "pos_pickup"

// OrderLineSnapshot — позиция заказа, зафиксированная в момент создания.
// Источник правды для чека: никогда не пересчитывается из живого каталога.
type OrderLineSnapshot struct {
	ProductID  string          `json:"product_id"`
	Name       string          `json:"name"`
	SKU        string          `json:"sku,omitempty"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	BasePrice  decimal.Decimal `json:"base_price"`
	Commission decimal.Decimal `json:"commission"`
	VAT        decimal.Decimal `json:"vat"`
}

// LineTotal возвращает unitPrice * quantity.
func (s OrderLineSnapshot) LineTotal() decimal.Decimal {
	return s.UnitPrice.Mul(decimal.NewFromInt(int64(s.Quantity)))
}

// Order — заказ, неизменяемый после создания (кроме аннулирования компенсацией).
type Order struct {
	// ID присваивает Data & Identity Service при вставке.
	ID string
	// Reference: человекочитаемый номер чека.
	Reference  string
	SellerID   string
	SellerName string
	// BuyerID пустой для продажи без покупателя.
	BuyerID          string
	Subtotal         decimal.Decimal
	CommissionAmount decimal.Decimal
	VATAmount        decimal.Decimal
	Total            decimal.Decimal
	Currency         string
	Status           OrderStatus
	PaymentStatus    PaymentStatus
	PaymentMethod    PaymentMethod
	ShippingMethod   string
	Items            []OrderLineSnapshot
	CreatedAt        time.Time
}

// ItemCount возвращает сумму количеств по позициям.
func (o *Order) ItemCount() int {
	n := 0
	for _, item := range o.Items {
		n += item.Quantity
	}
	return n
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.SellerID == "" {
		errs = append(errs, ErrSellerRequired)
	}
	if o.Reference == "" {
		errs = append(errs, ErrOrderReferenceRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrCartEmpty)
	}
	if !o.PaymentMethod.Valid() {
		errs = append(errs, ErrPaymentMethodInvalid)
	}

	// Сверяем агрегаты с суммами по позициям.
	subtotal, commission, vat, total := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	for _, item := range o.Items {
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.UnitPrice.IsNegative() || item.BasePrice.IsNegative() {
			errs = append(errs, ErrItemPriceInvalid)
		}
		qty := decimal.NewFromInt(int64(item.Quantity))
		subtotal = subtotal.Add(item.BasePrice.Mul(qty))
		commission = commission.Add(item.Commission.Mul(qty))
		vat = vat.Add(item.VAT.Mul(qty))
		total = total.Add(item.UnitPrice.Mul(qty))
	}
	if !subtotal.Equal(o.Subtotal) || !commission.Equal(o.CommissionAmount) ||
		!vat.Equal(o.VATAmount) || !total.Equal(o.Total) {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}

// OrderLineItem — строка order_items, создаётся вместе с заказом и больше не меняется.
type OrderLineItem struct {
	ID        string
	OrderID   string
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
	CreatedAt time.Time
}
