package pricing

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

func TestRateResolver_Resolve(t *testing.T) {
	resolver, err := NewRateResolver(decimal.RequireFromString("0.10"), decimal.RequireFromString("0.20"))
	require.NoError(t, err)

	tests := []struct {
		base       string
		commission string
		vat        string
		total      string
	}{
		{base: "10", commission: "1", vat: "2.2", total: "13.2"},
		{base: "5", commission: "0.5", vat: "1.1", total: "6.6"},
		{base: "0.99", commission: "0.1", vat: "0.22", total: "1.31"},
		{base: "0", commission: "0", vat: "0", total: "0"},
	}

	for _, tc := range tests {
		t.Run(tc.base, func(t *testing.T) {
			got, err := resolver.Resolve(context.Background(), decimal.RequireFromString(tc.base))
			require.NoError(t, err)
			require.True(t, got.Commission.Equal(decimal.RequireFromString(tc.commission)), "commission %s", got.Commission)
			require.True(t, got.VAT.Equal(decimal.RequireFromString(tc.vat)), "vat %s", got.VAT)
			require.True(t, got.Total.Equal(decimal.RequireFromString(tc.total)), "total %s", got.Total)
			require.True(t, got.Total.Equal(got.Base.Add(got.Commission).Add(got.VAT)))
		})
	}
}

func TestRateResolver_RejectsInvalidInput(t *testing.T) {
	_, err := NewRateResolver(decimal.NewFromInt(-1), decimal.Zero)
	require.Error(t, err)

	resolver, err := NewRateResolver(decimal.Zero, decimal.Zero)
	require.NoError(t, err)
	_, err = resolver.Resolve(context.Background(), decimal.NewFromInt(-5))
	require.ErrorIs(t, err, domain.ErrItemPriceInvalid)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = resolver.Resolve(ctx, decimal.NewFromInt(5))
	require.ErrorIs(t, err, context.Canceled)
}

func TestPassThrough_Resolve(t *testing.T) {
	got, err := PassThrough{}.Resolve(context.Background(), decimal.RequireFromString("25.00"))
	require.NoError(t, err)
	require.True(t, got.Total.Equal(decimal.NewFromInt(25)))
	require.True(t, got.Commission.IsZero())
	require.True(t, got.VAT.IsZero())
}
