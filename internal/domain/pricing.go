package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// MoneyScale: число знаков после запятой в денежных суммах.
const MoneyScale = 2

// RoundMoney округляет сумму до MoneyScale знаков.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// PriceBreakdown — разбивка цены за единицу товара.
type PriceBreakdown struct {
	Base       decimal.Decimal
	Commission decimal.Decimal
	VAT        decimal.Decimal
	// Total: итоговая цена за единицу (displayPrice).
	Total decimal.Decimal
}

// PricingResolver — внешний расчёт цены: по базовой цене возвращает итог, комиссию и НДС.
type PricingResolver interface {
	Resolve(ctx context.Context, base decimal.Decimal) (PriceBreakdown, error)
}
