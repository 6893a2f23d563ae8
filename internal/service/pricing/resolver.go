// Package pricing содержит реализации внешнего PricingResolver.
package pricing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// RateResolver начисляет комиссию площадки и НДС поверх базовой цены.
type RateResolver struct {
	CommissionRate decimal.Decimal
	VATRate        decimal.Decimal
}

// NewRateResolver проверяет ставки и создаёт резолвер.
func NewRateResolver(commissionRate, vatRate decimal.Decimal) (*RateResolver, error) {
	if commissionRate.IsNegative() || vatRate.IsNegative() {
		return nil, fmt.Errorf("pricing rates must be non-negative: commission=%s vat=%s", commissionRate, vatRate)
	}
	return &RateResolver{CommissionRate: commissionRate, VATRate: vatRate}, nil
}

var _ domain.PricingResolver = (*RateResolver)(nil)

// Resolve: commission = round2(base*rate), vat = round2((base+commission)*vatRate), total = сумма.
func (r *RateResolver) Resolve(ctx context.Context, base decimal.Decimal) (domain.PriceBreakdown, error) {
	if err := ctx.Err(); err != nil {
		return domain.PriceBreakdown{}, err
	}
	if base.IsNegative() {
		return domain.PriceBreakdown{}, domain.ErrItemPriceInvalid
	}

	commission := domain.RoundMoney(base.Mul(r.CommissionRate))
	vat := domain.RoundMoney(base.Add(commission).Mul(r.VATRate))
	return domain.PriceBreakdown{
		Base:       base,
		Commission: commission,
		VAT:        vat,
		Total:      base.Add(commission).Add(vat),
	}, nil
}

// PassThrough возвращает базовую цену без наценки и налога.
type PassThrough struct{}

var _ domain.PricingResolver = PassThrough{}

// Resolve возвращает total = base.
func (PassThrough) Resolve(ctx context.Context, base decimal.Decimal) (domain.PriceBreakdown, error) {
	if err := ctx.Err(); err != nil {
		return domain.PriceBreakdown{}, err
	}
	if base.IsNegative() {
		return domain.PriceBreakdown{}, domain.ErrItemPriceInvalid
	}
	return domain.PriceBreakdown{
		Base:       base,
		Commission: decimal.Zero,
		VAT:        decimal.Zero,
		Total:      base,
	}, nil
}
