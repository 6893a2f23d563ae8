// Package httpapi реализует HTTP API кассы поверх gin.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/identity"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
	"github.com/vladislavdragonenkov/pos/internal/service/idempotency"
	"github.com/vladislavdragonenkov/pos/internal/service/terminal"
)

// TokenVerifier проверяет bearer-токен и возвращает принципала.
type TokenVerifier interface {
	Verify(token string) (identity.Principal, error)
}

// SessionStore хранит открытые сессии касс.
type SessionStore interface {
	Open(ctx context.Context, principal identity.Principal, overrideSellerID string) (*terminal.Session, error)
	Get(id string) (*terminal.Session, error)
	SwitchSeller(ctx context.Context, id string, principal identity.Principal, sellerID string) (*terminal.Session, error)
	Close(id string) error
	Len() int
}

// OrderReader читает сохранённые заказы для чеков.
type OrderReader interface {
	Get(ctx context.Context, id string) (domain.Order, error)
}

// Server собирает маршруты HTTP API.
type Server struct {
	sessions SessionStore
	orders   OrderReader
	verifier TokenVerifier
	guard    *idempotency.Guard
	metrics  *metrics.HTTPMetrics
	logger   *log.Entry
}

// Option настраивает Server.
type Option func(*Server)

// WithGuard включает защиту оформления по Idempotency-Key.
func WithGuard(guard *idempotency.Guard) Option {
	return func(s *Server) {
		s.guard = guard
	}
}

// WithMetrics подключает метрики HTTP.
func WithMetrics(m *metrics.HTTPMetrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer создаёт HTTP API.
func NewServer(sessions SessionStore, orders OrderReader, verifier TokenVerifier, opts ...Option) *Server {
	s := &Server{
		sessions: sessions,
		orders:   orders,
		verifier: verifier,
		logger:   log.New().WithField("component", "httpapi"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler возвращает gin-роутер со всеми маршрутами.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(s.recovery(), s.accessLog())

	v1 := r.Group("/v1", s.authenticate())

	sessions := v1.Group("/sessions")
	sessions.POST("", s.openSession)

	session := sessions.Group("/:id", s.loadSession())
	session.GET("", s.getSession)
	session.DELETE("", s.closeSession)
	session.PUT("/seller", s.switchSeller)
	session.GET("/catalog", s.getCatalog)
	session.GET("/cart", s.getCart)
	session.DELETE("/cart", s.clearCart)
	session.POST("/cart/items", s.addItem)
	session.PATCH("/cart/items/:product_id", s.adjustItem)
	session.DELETE("/cart/items/:product_id", s.removeItem)
	session.POST("/checkout", s.checkout)

	v1.GET("/orders/:id/receipt", s.getReceipt)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorResponse{Error: errorBody{Code: codeNotFound, Message: "route not found"}})
	})
	return r
}
