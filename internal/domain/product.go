package domain

import "github.com/shopspring/decimal"

// Product — товар продавца в том виде, в каком его отдаёт Data & Identity Service.
// Ядро кассы товары только читает.
type Product struct {
	ID   string
	Name string
	// BasePrice: цена за единицу до наценки, комиссии и НДС.
	BasePrice decimal.Decimal
	// StockQuantity: текущий остаток, неотрицательный.
	StockQuantity int
	Active        bool
	SellerID      string
	SKU           string
	ImageURL      string
}

// Sellable сообщает, можно ли предлагать товар в корзину: активен и есть на складе.
func (p Product) Sellable() bool {
	return p.Active && p.StockQuantity > 0
}

// PricedProduct — товар вместе с разбивкой цены от PricingResolver.
// Производное значение, отдельно не сохраняется.
type PricedProduct struct {
	Product
	Pricing PriceBreakdown
}

// DisplayPrice возвращает цену, которую видит кассир и покупатель.
func (p PricedProduct) DisplayPrice() decimal.Decimal {
	return p.Pricing.Total
}

// CartLine — строка корзины: снимок товара на момент последней мутации и количество.
type CartLine struct {
	Product  PricedProduct
	Quantity int
}

// LineTotal возвращает displayPrice * quantity.
func (l CartLine) LineTotal() decimal.Decimal {
	return l.Product.DisplayPrice().Mul(decimal.NewFromInt(int64(l.Quantity)))
}
