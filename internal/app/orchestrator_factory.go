package app

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/dataservice"
	"github.com/vladislavdragonenkov/pos/internal/identity"
	"github.com/vladislavdragonenkov/pos/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
	"github.com/vladislavdragonenkov/pos/internal/service/catalog"
	"github.com/vladislavdragonenkov/pos/internal/service/checkout"
	"github.com/vladislavdragonenkov/pos/internal/service/httpapi"
	"github.com/vladislavdragonenkov/pos/internal/service/idempotency"
	"github.com/vladislavdragonenkov/pos/internal/service/pricing"
	"github.com/vladislavdragonenkov/pos/internal/service/resilience"
	"github.com/vladislavdragonenkov/pos/internal/service/seller"
	"github.com/vladislavdragonenkov/pos/internal/service/terminal"
)

// services: собранный граф сервисов кассы.
type services struct {
	gateway      *dataservice.Gateway
	orchestrator *checkout.Orchestrator
	sessions     *terminal.Manager
	api          *httpapi.Server
	idemMetrics  *metrics.IdempotencyMetrics
}

// createServices собирает граф сервисов кассы поверх хранилищ.
// events может быть nil: тогда события уходят только в outbox.
func createServices(cfg Config, deps *Dependencies, events kafka.EventPublisher, reg prometheus.Registerer, logger *log.Entry) (*services, error) {
	gateway := dataservice.NewGateway(deps.Data, logger.WithField("component", "dataservice"))

	resolver, err := pricing.NewRateResolver(cfg.CommissionRate, cfg.VATRate)
	if err != nil {
		return nil, err
	}

	retry := resilience.DefaultRetryConfig()
	if cfg.CatalogRetryAttempts > 0 {
		retry.MaxAttempts = cfg.CatalogRetryAttempts
	}
	if cfg.CatalogRetryDelay > 0 {
		retry.InitialDelay = cfg.CatalogRetryDelay
	}
	breakerLogger := logger.WithField("component", "catalog-breaker")
	loader := catalog.NewLoader(gateway, resolver,
		catalog.WithRetry(retry),
		catalog.WithCircuitBreaker(resilience.NewCircuitBreaker(cfg.CatalogBreakerFailures, cfg.CatalogBreakerResetWait, breakerLogger)),
		catalog.WithMetrics(metrics.NewCatalogMetrics(reg)),
		catalog.WithLogger(logger.WithField("component", "catalog")),
	)

	opts := []checkout.Option{
		checkout.WithLogger(logger.WithField("component", "checkout")),
		checkout.WithMetrics(metrics.NewSettlementMetrics(reg)),
		checkout.WithCurrency(cfg.Currency),
	}
	if events != nil {
		opts = append(opts, checkout.WithEventPublisher(events))
	}
	orch, err := checkout.NewOrchestrator(checkout.Dependencies{
		Orders:   gateway,
		Items:    gateway,
		Stock:    gateway,
		Pricing:  resolver,
		Outbox:   deps.Outbox,
		Timeline: deps.Timeline,
	}, opts...)
	if err != nil {
		return nil, err
	}

	sessions := terminal.NewManager(
		seller.NewResolver(gateway, logger.WithField("component", "seller-resolver")),
		loader,
		orch,
		logger.WithField("component", "terminal"),
	)

	verifier, err := identity.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		return nil, fmt.Errorf("init token verifier: %w", err)
	}

	idemMetrics := metrics.NewIdempotencyMetrics(reg)
	guard := idempotency.NewGuard(deps.Idempotency, cfg.IdempotencyTTL, idemMetrics, logger.WithField("component", "idempotency"))

	api := httpapi.NewServer(sessions, gateway, verifier,
		httpapi.WithGuard(guard),
		httpapi.WithMetrics(metrics.NewHTTPMetrics(reg)),
		httpapi.WithLogger(logger.WithField("component", "httpapi")),
	)

	return &services{
		gateway:      gateway,
		orchestrator: orch,
		sessions:     sessions,
		api:          api,
		idemMetrics:  idemMetrics,
	}, nil
}
