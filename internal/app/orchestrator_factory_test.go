package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/identity"
	"github.com/vladislavdragonenkov/pos/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/pos/internal/service/checkout"
	"github.com/vladislavdragonenkov/pos/internal/storage/memory"
)

type recordingEvents struct {
	mu     sync.Mutex
	topics []string
}

func (r *recordingEvents) PublishEvent(topic, _ string, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topic)
	return nil
}

func newTestServices(t *testing.T, events kafka.EventPublisher) (*services, *Dependencies) {
	t.Helper()
	cfg := newTestConfig(t)
	deps, err := NewDependencies(context.Background(), cfg, newTestLogger(t))
	require.NoError(t, err)

	svc, err := createServices(cfg, deps, events, prometheus.NewRegistry(), newTestLogger(t))
	require.NoError(t, err)
	return svc, deps
}

func TestCreateServices_SettlesDemoSale(t *testing.T) {
	events := &recordingEvents{}
	svc, deps := newTestServices(t, events)
	ctx := context.Background()

	vendor := identity.Principal{UserID: "u-1", Role: identity.RoleVendor, SellerID: DemoSellerID}
	session, err := svc.sessions.Open(ctx, vendor, "")
	require.NoError(t, err)
	require.Len(t, session.Catalog(), 3)

	_, err = session.AddItem("demo-espresso")
	require.NoError(t, err)
	_, err = session.AdjustItem("demo-espresso", 1)
	require.NoError(t, err)

	order, err := session.Checkout(ctx, "", domain.PaymentMethodCash)
	require.NoError(t, err)
	require.True(t, order.Total.Equal(decimal.RequireFromString("5.00")), order.Total.String())
	require.Equal(t, checkout.DefaultCurrency, order.Currency)

	stored, err := svc.gateway.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, order.Reference, stored.Reference)

	outboxRepo, ok := deps.Outbox.(*memory.OutboxRepository)
	require.True(t, ok)
	require.NotEmpty(t, outboxRepo.AllPending())

	timeline, err := deps.Timeline.List(order.ID)
	require.NoError(t, err)
	require.NotEmpty(t, timeline)

	events.mu.Lock()
	defer events.mu.Unlock()
	require.Contains(t, events.topics, kafka.TopicSettlementEvents)
}

func TestCreateServices_HandlerRequiresToken(t *testing.T) {
	svc, _ := newTestServices(t, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", nil)
	svc.api.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateServices_RejectsBadSettings(t *testing.T) {
	cfg := newTestConfig(t)
	deps, err := NewDependencies(context.Background(), cfg, newTestLogger(t))
	require.NoError(t, err)

	badRates := cfg
	badRates.VATRate = decimal.RequireFromString("-1")
	_, err = createServices(badRates, deps, nil, prometheus.NewRegistry(), newTestLogger(t))
	require.Error(t, err)

	noSecret := cfg
	noSecret.JWTSecret = ""
	_, err = createServices(noSecret, deps, nil, prometheus.NewRegistry(), newTestLogger(t))
	require.Error(t, err)
}
