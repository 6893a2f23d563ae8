package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/service/idempotency"
	"github.com/vladislavdragonenkov/pos/internal/service/receipt"
	"github.com/vladislavdragonenkov/pos/internal/service/terminal"
)

func (s *Server) openSession(c *gin.Context) {
	var req openSessionRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, err.Error())
		return
	}

	session, err := s.sessions.Open(c.Request.Context(), principalFrom(c), req.SellerID)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, toSessionDTO(session))
}

func (s *Server) getSession(c *gin.Context) {
	c.JSON(http.StatusOK, toSessionDTO(sessionFrom(c)))
}

func (s *Server) closeSession(c *gin.Context) {
	session := sessionFrom(c)
	if session.Settling() {
		s.abort(c, domain.ErrSettlementInProgress)
		return
	}
	if err := s.sessions.Close(session.ID); err != nil {
		s.abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) switchSeller(c *gin.Context) {
	var req switchSellerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	session, err := s.sessions.SwitchSeller(c.Request.Context(), sessionFrom(c).ID, principalFrom(c), req.SellerID)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, toSessionDTO(session))
}

func (s *Server) getCatalog(c *gin.Context) {
	session := sessionFrom(c)

	products := session.Catalog()
	if reload, _ := strconv.ParseBool(c.Query("reload")); reload {
		var err error
		if products, err = session.ReloadCatalog(c.Request.Context()); err != nil {
			s.abort(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"seller_id": session.Seller().SellerID,
		"products":  toCatalogDTO(products),
	})
}

func (s *Server) getCart(c *gin.Context) {
	c.JSON(http.StatusOK, toCartDTO(sessionFrom(c).Cart()))
}

func (s *Server) clearCart(c *gin.Context) {
	s.respondCart(c)(sessionFrom(c).ClearCart())
}

func (s *Server) addItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	s.respondCart(c)(sessionFrom(c).AddItem(req.ProductID))
}

func (s *Server) adjustItem(c *gin.Context) {
	var req adjustItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	s.respondCart(c)(sessionFrom(c).AdjustItem(c.Param("product_id"), req.Delta))
}

func (s *Server) removeItem(c *gin.Context) {
	s.respondCart(c)(sessionFrom(c).RemoveItem(c.Param("product_id")))
}

func (s *Server) respondCart(c *gin.Context) func(terminal.CartView, error) {
	return func(view terminal.CartView, err error) {
		if err != nil {
			s.abort(c, err)
			return
		}
		c.JSON(http.StatusOK, toCartDTO(view))
	}
}

// checkout проводит расчёт. С заголовком Idempotency-Key повтор того же запроса
// отдаёт сохранённый ответ, а не создаёт второй заказ.
func (s *Server) checkout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	method, err := domain.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		s.abort(c, domain.NewValidationError(err))
		return
	}

	session := sessionFrom(c)
	principal := principalFrom(c)
	run := func(ctx context.Context) idempotency.Response {
		order, err := session.Checkout(ctx, req.BuyerID, method)
		if err != nil {
			status, body := classify(err)
			if status >= http.StatusInternalServerError {
				requestLogger(c).WithError(err).Error("checkout failed")
			}
			_ = c.Error(err)
			// Ключ освобождается, если до записи дело не дошло; частичный расчёт и
			// неизвестные сбои остаются закреплены за ключом.
			release := status < http.StatusInternalServerError || body.Error.Retryable
			return jsonResponse(status, body, release)
		}
		requestLogger(c).WithFields(log.Fields{
			"order_id":  order.ID,
			"reference": order.Reference,
		}).Info("checkout completed")
		return jsonResponse(http.StatusCreated, toOrderDTO(order), false)
	}

	key := c.GetHeader(headerIdempotency)
	if s.guard == nil || key == "" {
		resp := run(c.Request.Context())
		c.Data(resp.Status, gin.MIMEJSON, resp.Body)
		return
	}

	hash := idempotency.RequestHash(session.ID, principal.UserID, string(method), req.BuyerID)
	resp, replayed, err := s.guard.Do(c.Request.Context(), key, hash, run)
	if err != nil {
		if !errors.Is(err, idempotency.ErrRequestInProgress) && !errors.Is(err, domain.ErrIdempotencyHashMismatch) {
			err = &domain.TransportError{Op: "idempotency", Err: err}
		}
		s.abort(c, err)
		return
	}
	if replayed {
		c.Header(headerReplayed, "true")
	}
	c.Data(resp.Status, gin.MIMEJSON, resp.Body)
}

func (s *Server) getReceipt(c *gin.Context) {
	order, err := s.orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.abort(c, err)
		return
	}
	principal := principalFrom(c)
	if !principal.IsAdmin() && principal.SellerID != order.SellerID {
		s.abort(c, domain.ErrOrderNotFound)
		return
	}

	view := receipt.Build(order)
	switch format := c.DefaultQuery("format", "json"); format {
	case "json":
		c.JSON(http.StatusOK, view)
	case "text":
		s.renderReceipt(c, "text/plain; charset=utf-8", receipt.RenderText, view)
	case "html":
		s.renderReceipt(c, "text/html; charset=utf-8", receipt.RenderHTML, view)
	default:
		badRequest(c, "format must be one of json, text, html")
	}
}

func (s *Server) renderReceipt(c *gin.Context, contentType string, render func(io.Writer, receipt.View) error, view receipt.View) {
	var buf bytes.Buffer
	if err := render(&buf, view); err != nil {
		s.abort(c, err)
		return
	}
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

func jsonResponse(status int, body any, retryable bool) idempotency.Response {
	raw, err := json.Marshal(body)
	if err != nil {
		raw = []byte(`{"error":{"code":"internal_error","message":"internal error"}}`)
		status = http.StatusInternalServerError
	}
	return idempotency.Response{Status: status, Body: raw, Retryable: retryable}
}

// bindOptionalJSON разбирает тело, если оно есть. Пустое тело допустимо.
func bindOptionalJSON(c *gin.Context, dst any) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
