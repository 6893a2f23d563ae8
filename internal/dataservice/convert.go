package dataservice

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// Преобразования выполняются сразу на входе: дальше шлюза ходят только типизированные DTO.

func rowString(row Row, column string) (string, error) {
	switch v := row[column].(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return "", fmt.Errorf("column %s: unexpected type %T", column, v)
	}
}

func rowInt(row Row, column string) (int, error) {
	switch v := row[column].(type) {
	case nil:
		return 0, nil
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("column %s: %w", column, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("column %s: unexpected type %T", column, v)
	}
}

func rowBool(row Row, column string) (bool, error) {
	switch v := row[column].(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("column %s: %w", column, err)
		}
		return b, nil
	default:
		return false, fmt.Errorf("column %s: unexpected type %T", column, v)
	}
}

func rowDecimal(row Row, column string) (decimal.Decimal, error) {
	switch v := row[column].(type) {
	case nil:
		return decimal.Zero, nil
	case decimal.Decimal:
		return v, nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, fmt.Errorf("column %s: %w", column, err)
		}
		return d, nil
	case []byte:
		d, err := decimal.NewFromString(string(v))
		if err != nil {
			return decimal.Zero, fmt.Errorf("column %s: %w", column, err)
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	default:
		return decimal.Zero, fmt.Errorf("column %s: unexpected type %T", column, v)
	}
}

func rowTime(row Row, column string) (time.Time, error) {
	switch v := row[column].(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return v.UTC(), nil
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}, fmt.Errorf("column %s: %w", column, err)
		}
		return t.UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("column %s: unexpected type %T", column, v)
	}
}

func rowSnapshots(row Row, column string) ([]domain.OrderLineSnapshot, error) {
	var raw []byte
	switch v := row[column].(type) {
	case nil:
		return nil, nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	case json.RawMessage:
		raw = v
	case []domain.OrderLineSnapshot:
		return append([]domain.OrderLineSnapshot(nil), v...), nil
	default:
		return nil, fmt.Errorf("column %s: unexpected type %T", column, v)
	}

	var items []domain.OrderLineSnapshot
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("column %s: decode snapshot: %w", column, err)
	}
	return items, nil
}

// decoder копит первую ошибку, чтобы не проверять каждое поле отдельно.
type decoder struct {
	row Row
	err error
}

func (d *decoder) str(column string) string {
	v, err := rowString(d.row, column)
	d.keep(err)
	return v
}

func (d *decoder) integer(column string) int {
	v, err := rowInt(d.row, column)
	d.keep(err)
	return v
}

func (d *decoder) boolean(column string) bool {
	v, err := rowBool(d.row, column)
	d.keep(err)
	return v
}

func (d *decoder) money(column string) decimal.Decimal {
	v, err := rowDecimal(d.row, column)
	d.keep(err)
	return v
}

func (d *decoder) timestamp(column string) time.Time {
	v, err := rowTime(d.row, column)
	d.keep(err)
	return v
}

func (d *decoder) keep(err error) {
	if d.err == nil && err != nil {
		d.err = err
	}
}

// ProductFromRow конвертирует строку products в domain.Product.
func ProductFromRow(row Row) (domain.Product, error) {
	d := decoder{row: row}
	p := domain.Product{
		ID:            d.str("id"),
		Name:          d.str("name"),
		BasePrice:     domain.RoundMoney(d.money("base_price")),
		StockQuantity: d.integer("stock_quantity"),
		Active:        d.boolean("active"),
		SellerID:      d.str("seller_id"),
		SKU:           d.str("sku"),
		ImageURL:      d.str("image_url"),
	}
	if d.err != nil {
		return domain.Product{}, fmt.Errorf("decode product: %w", d.err)
	}
	return p, nil
}

// ProductRow строит строку products для вставки (используется при заполнении хранилищ).
func ProductRow(p domain.Product) Row {
	row := Row{
		"name":           p.Name,
		"base_price":     p.BasePrice.String(),
		"stock_quantity": p.StockQuantity,
		"active":         p.Active,
		"seller_id":      p.SellerID,
		"sku":            p.SKU,
		"image_url":      p.ImageURL,
	}
	if p.ID != "" {
		row["id"] = p.ID
	}
	return row
}

// SellerFromRow конвертирует строку sellers в domain.Seller.
func SellerFromRow(row Row) (domain.Seller, error) {
	d := decoder{row: row}
	s := domain.Seller{
		ID:          d.str("id"),
		DisplayName: d.str("display_name"),
		Active:      d.boolean("active"),
	}
	if d.err != nil {
		return domain.Seller{}, fmt.Errorf("decode seller: %w", d.err)
	}
	return s, nil
}

// SellerRow строит строку sellers для вставки.
func SellerRow(s domain.Seller) Row {
	row := Row{
		"display_name": s.DisplayName,
		"active":       s.Active,
	}
	if s.ID != "" {
		row["id"] = s.ID
	}
	return row
}

// OrderFromRow конвертирует строку orders вместе со снимком позиций.
func OrderFromRow(row Row) (domain.Order, error) {
	d := decoder{row: row}
	o := domain.Order{
		ID:               d.str("id"),
		Reference:        d.str("reference"),
		SellerID:         d.str("seller_id"),
		SellerName:       d.str("seller_name"),
		BuyerID:          d.str("buyer_id"),
		Subtotal:         d.money("subtotal"),
		CommissionAmount: d.money("commission_amount"),
		VATAmount:        d.money("vat_amount"),
		Total:            d.money("total"),
		Currency:         d.str("currency"),
		Status:           domain.OrderStatus(d.str("status")),
		PaymentStatus:    domain.PaymentStatus(d.str("payment_status")),
		PaymentMethod:    domain.PaymentMethod(d.str("payment_method")),
		ShippingMethod:   d.str("shipping_method"),
		CreatedAt:        d.timestamp("created_at"),
	}
	items, err := rowSnapshots(row, "items")
	d.keep(err)
	o.Items = items
	if d.err != nil {
		return domain.Order{}, fmt.Errorf("decode order: %w", d.err)
	}
	return o, nil
}

// OrderRow строит строку orders для вставки. Снимок позиций сериализуется в JSON.
func OrderRow(o domain.Order) (Row, error) {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return nil, fmt.Errorf("encode order items: %w", err)
	}
	row := Row{
		"reference":         o.Reference,
		"seller_id":         o.SellerID,
		"seller_name":       o.SellerName,
		"subtotal":          o.Subtotal.StringFixed(domain.MoneyScale),
		"commission_amount": o.CommissionAmount.StringFixed(domain.MoneyScale),
		"vat_amount":        o.VATAmount.StringFixed(domain.MoneyScale),
		"total":             o.Total.StringFixed(domain.MoneyScale),
		"currency":          o.Currency,
		"status":            string(o.Status),
		"payment_status":    string(o.PaymentStatus),
		"payment_method":    string(o.PaymentMethod),
		"shipping_method":   o.ShippingMethod,
		"items":             items,
	}
	// Продажа без покупателя хранит NULL.
	if o.BuyerID != "" {
		row["buyer_id"] = o.BuyerID
	} else {
		row["buyer_id"] = nil
	}
	return row, nil
}

// OrderItemFromRow конвертирует строку order_items.
func OrderItemFromRow(row Row) (domain.OrderLineItem, error) {
	d := decoder{row: row}
	item := domain.OrderLineItem{
		ID:        d.str("id"),
		OrderID:   d.str("order_id"),
		ProductID: d.str("product_id"),
		Quantity:  d.integer("quantity"),
		UnitPrice: d.money("unit_price"),
		LineTotal: d.money("line_total"),
		CreatedAt: d.timestamp("created_at"),
	}
	if d.err != nil {
		return domain.OrderLineItem{}, fmt.Errorf("decode order item: %w", d.err)
	}
	return item, nil
}

// OrderItemRow строит строку order_items для вставки.
func OrderItemRow(item domain.OrderLineItem) Row {
	return Row{
		"order_id":   item.OrderID,
		"product_id": item.ProductID,
		"quantity":   item.Quantity,
		"unit_price": item.UnitPrice.StringFixed(domain.MoneyScale),
		"line_total": item.LineTotal.StringFixed(domain.MoneyScale),
	}
}
