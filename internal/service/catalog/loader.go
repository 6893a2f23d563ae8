// Package catalog загружает товары продавца для кассы и прогоняет их через PricingResolver.
package catalog

import (
	"context"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
	"github.com/vladislavdragonenkov/pos/internal/service/resilience"
)

// Loader реализует loadCatalog(sellerID).
//
// Любой сбой источника деградирует в пустой список с предупреждением в логе.
type Loader struct {
	source  domain.CatalogSource
	pricing domain.PricingResolver
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
	metrics *metrics.CatalogMetrics
	logger  *log.Entry
}

// Option настраивает Loader.
type Option func(*Loader)

// WithRetry включает повтор чтения каталога.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(l *Loader) { l.retry = cfg }
}

// WithCircuitBreaker ставит breaker перед источником.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(l *Loader) { l.breaker = cb }
}

// WithMetrics задаёт метрики загрузок.
func WithMetrics(m *metrics.CatalogMetrics) Option {
	return func(l *Loader) { l.metrics = m }
}

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(l *Loader) { l.logger = logger }
}

// NewLoader создаёт загрузчик каталога. Без WithRetry чтение выполняется один раз.
func NewLoader(source domain.CatalogSource, pricing domain.PricingResolver, opts ...Option) *Loader {
	l := &Loader{
		source:  source,
		pricing: pricing,
		retry:   resilience.RetryConfig{MaxAttempts: 1},
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = log.New().WithField("component", "catalog")
	}
	return l
}

// LoadCatalog возвращает активные товары с остатком, отсортированные по имени, с рассчитанной ценой.
func (l *Loader) LoadCatalog(ctx context.Context, sellerID string) []domain.PricedProduct {
	logger := l.logger.WithField("seller_id", sellerID)
	if sellerID == "" {
		logger.Warn("catalog requested without seller context")
		l.metrics.RecordDegraded()
		return []domain.PricedProduct{}
	}

	var products []domain.Product
	err := resilience.Retry(ctx, l.retry, logger, "list_products", func(ctx context.Context) error {
		return l.fetch(ctx, sellerID, &products)
	})
	if err != nil {
		logger.WithError(err).Warn("catalog load failed, serving empty catalog")
		l.metrics.RecordDegraded()
		return []domain.PricedProduct{}
	}

	result := make([]domain.PricedProduct, 0, len(products))
	for _, p := range products {
		// Источник уже фильтрует, но инвариант кассы проверяем сами.
		if !p.Sellable() || (p.SellerID != "" && p.SellerID != sellerID) {
			continue
		}
		breakdown, err := l.pricing.Resolve(ctx, p.BasePrice)
		if err != nil {
			logger.WithError(err).WithField("product_id", p.ID).Warn("pricing failed, product hidden from catalog")
			continue
		}
		result = append(result, domain.PricedProduct{Product: p, Pricing: breakdown})
	}

	sort.SliceStable(result, func(i, j int) bool {
		return strings.ToLower(result[i].Name) < strings.ToLower(result[j].Name)
	})

	l.metrics.RecordLoaded(len(result))
	logger.WithField("products", len(result)).Debug("catalog loaded")
	return result
}

func (l *Loader) fetch(ctx context.Context, sellerID string, out *[]domain.Product) error {
	call := func() error {
		products, err := l.source.ListSellableProducts(ctx, sellerID)
		if err != nil {
			return err
		}
		*out = products
		return nil
	}
	if l.breaker == nil {
		return call()
	}
	return l.breaker.Execute("list_products", call)
}
