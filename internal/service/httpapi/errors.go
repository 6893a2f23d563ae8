package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/service/idempotency"
)

// Коды ошибок в теле ответа.
const (
	codeValidation         = "validation_failed"
	codeUnauthenticated    = "unauthenticated"
	codeForbidden          = "forbidden"
	codeNotFound           = "not_found"
	codeConflict           = "conflict"
	codeBusy               = "settlement_in_progress"
	codeUnavailable        = "backend_unavailable"
	codeIncomplete         = "settlement_incomplete"
	codeIdempotencyReuse   = "idempotency_key_reused"
	codeIdempotencyPending = "idempotency_key_in_progress"
	codeInternal           = "internal_error"
)

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code      string          `json:"code"`
	Message   string          `json:"message"`
	Retryable bool            `json:"retryable"`
	Details   *partialDetails `json:"details,omitempty"`
}

// partialDetails: что известно о прерванном расчёте; отдаётся для ручной сверки.
type partialDetails struct {
	OrderID         string   `json:"order_id,omitempty"`
	Reference       string   `json:"reference,omitempty"`
	FailedStep      string   `json:"failed_step"`
	FailedProductID string   `json:"failed_product_id,omitempty"`
	StockDecreased  []string `json:"stock_decreased,omitempty"`
	StockRestored   []string `json:"stock_restored,omitempty"`
	RestoreFailed   []string `json:"restore_failed,omitempty"`
	OrderVoided     bool     `json:"order_voided"`
	Reconciled      bool     `json:"reconciled"`
}

// classify сопоставляет ошибку с HTTP-статусом и телом ответа.
func classify(err error) (int, errorResponse) {
	if partial, ok := domain.AsPartialSettlement(err); ok {
		return http.StatusInternalServerError, errorResponse{Error: errorBody{
			Code:    codeIncomplete,
			Message: "transaction may not be complete, contact support",
			Details: &partialDetails{
				OrderID:         partial.OrderID,
				Reference:       partial.Reference,
				FailedStep:      string(partial.FailedStep),
				FailedProductID: partial.FailedProductID,
				StockDecreased:  partial.DecrementedProducts(),
				StockRestored:   partial.Compensation.StockRestored,
				RestoreFailed:   partial.Compensation.RestoreFailed,
				OrderVoided:     partial.Compensation.OrderVoided,
				Reconciled:      partial.Compensation.Complete(),
			},
		}}
	}

	status, code, retryable := http.StatusInternalServerError, codeInternal, false
	message := err.Error()

	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		status, code = http.StatusUnauthorized, codeUnauthenticated
	case errors.Is(err, domain.ErrOverrideForbidden):
		status, code = http.StatusForbidden, codeForbidden
	// Неизвестный продавец в override приходит как ValidationError и даёт 422.
	case domain.IsValidation(err),
		errors.Is(err, domain.ErrProductUnavailable),
		errors.Is(err, domain.ErrCartLineNotFound),
		errors.Is(err, domain.ErrPaymentMethodInvalid):
		status, code = http.StatusUnprocessableEntity, codeValidation
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrSellerNotFound):
		status, code = http.StatusNotFound, codeNotFound
	case errors.Is(err, domain.ErrSettlementInProgress):
		status, code, retryable = http.StatusConflict, codeBusy, true
	case errors.Is(err, idempotency.ErrRequestInProgress):
		status, code, retryable = http.StatusConflict, codeIdempotencyPending, true
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		status, code = http.StatusUnprocessableEntity, codeIdempotencyReuse
	case errors.Is(err, domain.ErrSellerSwitchWithCart):
		status, code = http.StatusConflict, codeConflict
	case domain.IsTransport(err):
		status, code, retryable = http.StatusServiceUnavailable, codeUnavailable, true
		message = "backend is temporarily unavailable, retry later"
	default:
		message = "internal error"
	}

	return status, errorResponse{Error: errorBody{Code: code, Message: message, Retryable: retryable}}
}

// abort отвечает ошибкой и прекращает цепочку обработчиков.
func (s *Server) abort(c *gin.Context, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		requestLogger(c).WithError(err).Error("request failed")
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
		Error: errorBody{Code: codeValidation, Message: message},
	})
}
