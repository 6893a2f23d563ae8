package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
	"github.com/vladislavdragonenkov/pos/internal/service/pricing"
	"github.com/vladislavdragonenkov/pos/internal/service/resilience"
)

type stubSource struct {
	mu       sync.Mutex
	products []domain.Product
	errs     []error
	calls    int
}

func (s *stubSource) ListSellableProducts(context.Context, string) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return s.products, nil
}

type failingResolver struct {
	failFor decimal.Decimal
}

func (r failingResolver) Resolve(ctx context.Context, base decimal.Decimal) (domain.PriceBreakdown, error) {
	if base.Equal(r.failFor) {
		return domain.PriceBreakdown{}, errors.New("pricing unavailable")
	}
	return pricing.PassThrough{}.Resolve(ctx, base)
}

func product(id, name, price string, stock int, active bool) domain.Product {
	return domain.Product{
		ID:            id,
		Name:          name,
		BasePrice:     decimal.RequireFromString(price),
		StockQuantity: stock,
		Active:        active,
		SellerID:      "seller-1",
	}
}

func TestLoader_FiltersSortsAndPrices(t *testing.T) {
	source := &stubSource{products: []domain.Product{
		product("c", "cola", "2", 5, true),
		product("a", "Apple", "1", 3, true),
		product("z", "Zero stock", "1", 0, true),
		product("x", "Inactive", "1", 9, false),
	}}
	resolver, err := pricing.NewRateResolver(decimal.RequireFromString("0.10"), decimal.Zero)
	require.NoError(t, err)

	loader := NewLoader(source, resolver)
	got := loader.LoadCatalog(context.Background(), "seller-1")

	require.Len(t, got, 2)
	require.Equal(t, "Apple", got[0].Name)
	require.Equal(t, "cola", got[1].Name)
	require.True(t, got[1].DisplayPrice().Equal(decimal.RequireFromString("2.2")))
}

func TestLoader_DegradesToEmptyOnTransportError(t *testing.T) {
	source := &stubSource{errs: []error{&domain.TransportError{Op: "list_products", Err: errors.New("down")}}}
	reg := prometheus.NewRegistry()

	loader := NewLoader(source, pricing.PassThrough{}, WithMetrics(metrics.NewCatalogMetrics(reg)))
	got := loader.LoadCatalog(context.Background(), "seller-1")

	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestLoader_RetriesTransientFailures(t *testing.T) {
	source := &stubSource{
		errs:     []error{errors.New("timeout"), nil},
		products: []domain.Product{product("a", "Apple", "1", 1, true)},
	}
	loader := NewLoader(source, pricing.PassThrough{}, WithRetry(resilience.RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      time.Millisecond,
		BackoffFactor: 2,
	}))

	got := loader.LoadCatalog(context.Background(), "seller-1")
	require.Len(t, got, 1)
	require.Equal(t, 2, source.calls)
}

func TestLoader_OpenBreakerServesEmptyCatalog(t *testing.T) {
	source := &stubSource{errs: []error{errors.New("down")}}
	breaker := resilience.NewCircuitBreaker(1, time.Hour, nil)
	loader := NewLoader(source, pricing.PassThrough{}, WithCircuitBreaker(breaker))

	require.Empty(t, loader.LoadCatalog(context.Background(), "seller-1"))
	require.Equal(t, resilience.CircuitOpen, breaker.State())

	require.Empty(t, loader.LoadCatalog(context.Background(), "seller-1"))
	require.Equal(t, 1, source.calls, "open breaker must not reach the source")
}

func TestLoader_SkipsProductsWithFailedPricing(t *testing.T) {
	source := &stubSource{products: []domain.Product{
		product("a", "Apple", "1", 1, true),
		product("b", "Bread", "13", 1, true),
	}}
	loader := NewLoader(source, failingResolver{failFor: decimal.NewFromInt(13)})

	got := loader.LoadCatalog(context.Background(), "seller-1")
	require.Len(t, got, 1)
	require.Equal(t, "a", got[0].ID)
}

func TestLoader_EmptySeller(t *testing.T) {
	source := &stubSource{}
	loader := NewLoader(source, pricing.PassThrough{})

	require.Empty(t, loader.LoadCatalog(context.Background(), ""))
	require.Zero(t, source.calls)
}
