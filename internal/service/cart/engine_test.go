package cart

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

func priced(id string, price string, stock int) domain.PricedProduct {
	base := decimal.RequireFromString(price)
	return domain.PricedProduct{
		Product: domain.Product{ID: id, Name: "Product " + id, BasePrice: base, StockQuantity: stock, Active: true},
		Pricing: domain.PriceBreakdown{Base: base, Total: base},
	}
}

func TestEngine_AddIsIdempotentForMembership(t *testing.T) {
	e := New()
	a := priced("a", "10", 5)

	e.Add(a)
	e.Add(a)

	require.Equal(t, 1, e.Len())
	require.Equal(t, 2, e.ItemCount())
	line, ok := e.Line("a")
	require.True(t, ok)
	require.Equal(t, 2, line.Quantity)
}

func TestEngine_AddClampsToStock(t *testing.T) {
	e := New()
	a := priced("a", "1", 2)

	for i := 0; i < 5; i++ {
		e.Add(a)
	}
	require.Equal(t, 2, e.ItemCount())

	e.Add(priced("empty", "1", 0))
	require.Equal(t, 1, e.Len())
}

func TestEngine_SetQuantityDeltaClamps(t *testing.T) {
	e := New()
	e.Add(priced("a", "1", 3))

	require.NoError(t, e.SetQuantityDelta("a", 2))
	line, _ := e.Line("a")
	require.Equal(t, 3, line.Quantity)

	// Уже на остатке: +1 ничего не меняет.
	require.NoError(t, e.SetQuantityDelta("a", 1))
	line, _ = e.Line("a")
	require.Equal(t, 3, line.Quantity)

	// Минимум 1: строка не удаляется.
	require.NoError(t, e.SetQuantityDelta("a", -10))
	line, ok := e.Line("a")
	require.True(t, ok)
	require.Equal(t, 1, line.Quantity)

	require.ErrorIs(t, e.SetQuantityDelta("missing", 1), domain.ErrCartLineNotFound)
}

func TestEngine_RemoveClearAndOrder(t *testing.T) {
	e := New()
	e.Add(priced("c", "3", 1))
	e.Add(priced("a", "1", 1))
	e.Add(priced("b", "2", 1))

	lines := e.Lines()
	require.Equal(t, []string{"c", "a", "b"}, []string{lines[0].Product.ID, lines[1].Product.ID, lines[2].Product.ID})

	e.Remove("a")
	e.Remove("unknown")
	lines = e.Lines()
	require.Len(t, lines, 2)
	require.Equal(t, "c", lines[0].Product.ID)
	require.Equal(t, "b", lines[1].Product.ID)

	e.Clear()
	require.True(t, e.IsEmpty())
	require.Equal(t, 0, e.ItemCount())
	require.True(t, e.Total().IsZero())
}

func TestEngine_Total(t *testing.T) {
	e := New()
	a := priced("a", "10", 5)
	e.Add(a)
	e.Add(a)
	e.Add(priced("b", "5", 5))

	require.True(t, e.Total().Equal(decimal.NewFromInt(25)), "total %s", e.Total())
}

func TestEngine_Reconcile(t *testing.T) {
	e := New()
	a := priced("a", "1", 5)
	e.Add(a)
	e.Add(a)
	e.Add(a)
	e.Add(priced("b", "1", 5))

	dropped := e.Reconcile([]domain.PricedProduct{priced("a", "2", 2)})
	require.Equal(t, []string{"b"}, dropped)

	line, ok := e.Line("a")
	require.True(t, ok)
	require.Equal(t, 2, line.Quantity)
	require.True(t, line.Product.DisplayPrice().Equal(decimal.NewFromInt(2)))
}

// Для произвольной последовательности мутаций itemCount равен сумме количеств,
// а количество каждой строки остаётся в [1, остаток].
func TestEngine_RandomMutationsKeepBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	products := []domain.PricedProduct{
		priced("a", "1", 1),
		priced("b", "2", 3),
		priced("c", "3", 7),
	}
	e := New()

	for i := 0; i < 2000; i++ {
		p := products[rng.Intn(len(products))]
		switch rng.Intn(3) {
		case 0:
			e.Add(p)
		case 1:
			_ = e.SetQuantityDelta(p.ID, rng.Intn(9)-4)
		case 2:
			if rng.Intn(4) == 0 {
				e.Remove(p.ID)
			}
		}

		sum := 0
		for _, line := range e.Lines() {
			require.GreaterOrEqual(t, line.Quantity, 1)
			require.LessOrEqual(t, line.Quantity, line.Product.StockQuantity)
			sum += line.Quantity
		}
		require.Equal(t, sum, e.ItemCount())
	}
}
