package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/pos/internal/dataservice"
	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/identity"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
	"github.com/vladislavdragonenkov/pos/internal/service/catalog"
	"github.com/vladislavdragonenkov/pos/internal/service/checkout"
	"github.com/vladislavdragonenkov/pos/internal/service/httpapi"
	"github.com/vladislavdragonenkov/pos/internal/service/idempotency"
	"github.com/vladislavdragonenkov/pos/internal/service/outbox"
	"github.com/vladislavdragonenkov/pos/internal/service/pricing"
	"github.com/vladislavdragonenkov/pos/internal/service/seller"
	"github.com/vladislavdragonenkov/pos/internal/service/terminal"
	"github.com/vladislavdragonenkov/pos/internal/storage/memory"
)

const sellerID = "shop-1"

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.OutboxMessage
}

func (p *recordingPublisher) Publish(event domain.OutboxMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

// CheckoutFlowTestSuite прогоняет продажу через HTTP API поверх in-memory хранилищ.
type CheckoutFlowTestSuite struct {
	suite.Suite
	store    *memory.DataService
	outbox   *memory.OutboxRepository
	timeline *memory.TimelineRepository
	verifier *identity.Verifier
	server   *httptest.Server
	logger   *log.Entry
}

func (s *CheckoutFlowTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel)
	s.logger = baseLogger.WithField("component", "integration-test")

	s.store = memory.NewDataService()
	_, err := s.store.SeedSeller(domain.Seller{ID: sellerID, DisplayName: "Corner Shop", Active: true})
	s.Require().NoError(err)
	for _, p := range []domain.Product{
		{ID: "tea", Name: "Green Tea", SKU: "TEA-1", BasePrice: decimal.RequireFromString("4.00"), StockQuantity: 5},
		{ID: "cookie", Name: "Cookie", SKU: "COO-1", BasePrice: decimal.RequireFromString("1.50"), StockQuantity: 100},
	} {
		p.SellerID = sellerID
		p.Active = true
		_, err := s.store.SeedProduct(p)
		s.Require().NoError(err)
	}

	s.outbox = memory.NewOutboxRepository()
	s.timeline = memory.NewTimelineRepository()

	reg := prometheus.NewRegistry()
	gw := dataservice.NewGateway(s.store, s.logger)
	rates, err := pricing.NewRateResolver(decimal.RequireFromString("0.10"), decimal.RequireFromString("0.20"))
	s.Require().NoError(err)

	orch, err := checkout.NewOrchestrator(checkout.Dependencies{
		Orders:   gw,
		Items:    gw,
		Stock:    gw,
		Pricing:  rates,
		Outbox:   s.outbox,
		Timeline: s.timeline,
	}, checkout.WithLogger(s.logger), checkout.WithMetrics(metrics.NewSettlementMetrics(reg)))
	s.Require().NoError(err)

	manager := terminal.NewManager(
		seller.NewResolver(gw, s.logger),
		catalog.NewLoader(gw, rates, catalog.WithLogger(s.logger)),
		orch,
		s.logger,
	)
	s.verifier, err = identity.NewVerifier("integration-secret", "pos")
	s.Require().NoError(err)

	guard := idempotency.NewGuard(memory.NewIdempotencyRepository(), time.Hour, metrics.NewIdempotencyMetrics(reg), s.logger)
	api := httpapi.NewServer(manager, gw, s.verifier,
		httpapi.WithGuard(guard),
		httpapi.WithMetrics(metrics.NewHTTPMetrics(reg)),
		httpapi.WithLogger(s.logger),
	)
	s.server = httptest.NewServer(api.Handler())
}

func (s *CheckoutFlowTestSuite) TearDownTest() {
	s.server.Close()
}

func (s *CheckoutFlowTestSuite) token(userID string) string {
	tok, err := s.verifier.Issue(identity.Principal{UserID: userID, Role: identity.RoleVendor, SellerID: sellerID}, time.Hour)
	s.Require().NoError(err)
	return tok
}

func (s *CheckoutFlowTestSuite) call(method, path, token string, body any, headers map[string]string) (int, []byte) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.server.URL+path, reader)
	s.Require().NoError(err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	return resp.StatusCode, out
}

func (s *CheckoutFlowTestSuite) openSession(token string) string {
	status, body := s.call(http.MethodPost, "/v1/sessions", token, nil, nil)
	s.Require().Equal(http.StatusCreated, status, string(body))
	var session struct {
		ID string `json:"id"`
	}
	s.Require().NoError(json.Unmarshal(body, &session))
	return session.ID
}

func (s *CheckoutFlowTestSuite) stock(productID string) int {
	for _, row := range s.store.Rows(dataservice.TableProducts) {
		if row["id"] == productID {
			p, err := dataservice.ProductFromRow(row)
			s.Require().NoError(err)
			return p.StockQuantity
		}
	}
	s.FailNow("product not found", productID)
	return 0
}

func (s *CheckoutFlowTestSuite) TestSaleSettlesWithReceiptAndOutbox() {
	token := s.token("cashier-1")
	sessionID := s.openSession(token)
	base := "/v1/sessions/" + sessionID

	status, body := s.call(http.MethodGet, base+"/catalog", token, nil, nil)
	s.Require().Equal(http.StatusOK, status)
	// 4.00 + 10% комиссии = 4.40, плюс 20% НДС = 5.28
	s.Contains(string(body), `"5.28"`)

	status, _ = s.call(http.MethodPost, base+"/cart/items", token, map[string]any{"product_id": "tea"}, nil)
	s.Require().Equal(http.StatusOK, status)
	status, _ = s.call(http.MethodPatch, base+"/cart/items/tea", token, map[string]any{"delta": 1}, nil)
	s.Require().Equal(http.StatusOK, status)
	status, _ = s.call(http.MethodPost, base+"/cart/items", token, map[string]any{"product_id": "cookie"}, nil)
	s.Require().Equal(http.StatusOK, status)

	status, body = s.call(http.MethodPost, base+"/checkout", token,
		map[string]any{"payment_method": "card", "buyer_id": "buyer-9"},
		map[string]string{"Idempotency-Key": "sale-1"})
	s.Require().Equal(http.StatusCreated, status, string(body))

	var order struct {
		ID         string `json:"id"`
		Reference  string `json:"reference"`
		Total      string `json:"total"`
		ReceiptURL string `json:"receipt_url"`
	}
	s.Require().NoError(json.Unmarshal(body, &order))
	// 2 * 5.28 + 1.98
	s.Equal("12.54", order.Total)
	s.Equal(3, s.stock("tea"))
	s.Equal(99, s.stock("cookie"))

	status, body = s.call(http.MethodGet, order.ReceiptURL+"?format=text", token, nil, nil)
	s.Require().Equal(http.StatusOK, status)
	s.Contains(string(body), order.Reference)
	s.Contains(string(body), "Green Tea")

	events, err := s.timeline.List(order.ID)
	s.Require().NoError(err)
	s.Require().NotEmpty(events)
	s.Equal(checkout.EventSaleSettled, events[len(events)-1].Type)

	publisher := &recordingPublisher{}
	worker := outbox.NewWorker(s.outbox, publisher,
		outbox.WithLogger(s.logger),
		outbox.WithPollInterval(10*time.Millisecond),
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()
	s.Eventually(func() bool { return len(s.outbox.AllPending()) == 0 }, time.Second, 10*time.Millisecond)
	cancel()
	<-done
	s.Contains(publisher.types(), checkout.EventSaleSettled)
}

func (s *CheckoutFlowTestSuite) TestConcurrentTerminalsNeverOversell() {
	const terminals = 8

	type till struct {
		token   string
		session string
	}
	tills := make([]till, terminals)
	for i := range tills {
		token := s.token("cashier-" + string(rune('a'+i)))
		sessionID := s.openSession(token)
		status, body := s.call(http.MethodPost, "/v1/sessions/"+sessionID+"/cart/items", token, map[string]any{"product_id": "tea"}, nil)
		s.Require().Equal(http.StatusOK, status, string(body))
		tills[i] = till{token: token, session: sessionID}
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		statuses = make(map[int]int)
	)
	for _, t := range tills {
		wg.Add(1)
		go func(t till) {
			defer wg.Done()
			status, _ := s.call(http.MethodPost, "/v1/sessions/"+t.session+"/checkout", t.token,
				map[string]any{"payment_method": "cash"}, nil)
			mu.Lock()
			statuses[status]++
			mu.Unlock()
		}(t)
	}
	wg.Wait()

	s.Equal(5, statuses[http.StatusCreated])
	s.Equal(terminals-5, statuses[http.StatusInternalServerError])
	s.Equal(0, s.stock("tea"))
}

func (s *CheckoutFlowTestSuite) TestOtherVendorCannotUseSession() {
	owner := s.token("cashier-1")
	intruder := s.token("cashier-2")
	sessionID := s.openSession(owner)

	status, body := s.call(http.MethodGet, "/v1/sessions/"+sessionID+"/cart", intruder, nil, nil)
	s.Equal(http.StatusForbidden, status)
	s.True(strings.Contains(string(body), "forbidden"))
}

func TestCheckoutFlowSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration suite in short mode")
	}
	suite.Run(t, new(CheckoutFlowTestSuite))
}
