package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Ошибка пустой корзины при оформлении.
	ErrCartEmpty = errors.New("cart is empty")
	// Ошибка неразрешённого продавца.
	ErrSellerRequired = errors.New("seller context is not resolved")
	// Ошибка способа оплаты вне закрытого набора cash/card/transfer.
	ErrPaymentMethodInvalid = errors.New("payment method must be one of cash, card, transfer")
	// Ошибка пустого номера чека.
	ErrOrderReferenceRequired = errors.New("order reference is required")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item quantity must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка несоответствия агрегатов заказа суммам позиций.
	ErrAmountMismatch = errors.New("order amounts do not match items sum")
	// ErrCartLineNotFound: товара нет в корзине.
	ErrCartLineNotFound = errors.New("product is not in the cart")
	// ErrProductUnavailable: товара нет в загруженном каталоге продавца (неактивен или закончился).
	ErrProductUnavailable = errors.New("product is not available for sale")
	// ErrProductNotFound: товар не найден в хранилище.
	ErrProductNotFound = errors.New("product not found")
	// ErrInsufficientStock: атомарное списание отклонено: остатка не хватает.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrSellerNotFound: продавец не найден или неактивен.
	ErrSellerNotFound = errors.New("seller not found")
	// ErrOverrideForbidden: выбор чужого продавца доступен только администратору.
	ErrOverrideForbidden = errors.New("seller override requires admin role")
	// ErrSellerSwitchWithCart: смена продавца с непустой корзиной не поддерживается.
	ErrSellerSwitchWithCart = errors.New("cart must be cleared before switching seller")
	// ErrSettlementInProgress: ввод заблокирован, пока идёт расчёт.
	ErrSettlementInProgress = errors.New("settlement is in progress")
	// ErrSessionNotFound: сессия кассы не найдена.
	ErrSessionNotFound = errors.New("terminal session not found")
	// ErrOrderNotFound возвращается, если заказ не найден в хранилище.
	ErrOrderNotFound = errors.New("order not found")
	// ErrUnauthenticated: нет валидной идентичности пользователя.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrOutboxPublish: ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
	// ErrIdempotencyKeyRequired: отсутствует ключ идемпотентности.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired: отсутствует hash запроса для ключа идемпотентности.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyAlreadyExists: ключ уже создан и находится в обработке/завершён.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch: ключ переиспользован с другим payload.
	ErrIdempotencyHashMismatch = errors.New("idempotency key reused with different payload")
	// ErrIdempotencyKeyNotFound: ключ не найден.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
)

// IsIdempotencyConflict проверяет, является ли ошибка конфликтом idempotency-key.
func IsIdempotencyConflict(err error) bool {
	return errors.Is(err, ErrIdempotencyKeyAlreadyExists) || errors.Is(err, ErrIdempotencyHashMismatch)
}

// ValidationError — предварительная проверка не прошла, ввода-вывода не было.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError оборачивает причину в ValidationError.
func NewValidationError(err error) *ValidationError {
	return &ValidationError{Err: err}
}

// TransportError — бэкенд недоступен до начала записи; повтор безопасен.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// LineProgress фиксирует, что успело произойти с одной строкой корзины при расчёте.
type LineProgress struct {
	ProductID      string
	Quantity       int
	ItemPersisted  bool
	OrderItemID    string
	StockDecrement bool
}

// CompensationReport описывает результат компенсирующих шагов саги.
type CompensationReport struct {
	Attempted     bool
	StockRestored []string
	RestoreFailed []string
	OrderVoided   bool
	Errors        []error
}

// Complete сообщает, что все компенсации выполнены и состояние согласовано.
func (r CompensationReport) Complete() bool {
	return r.Attempted && r.OrderVoided && len(r.RestoreFailed) == 0
}

// PartialSettlementError — сбой после начала создания заказа. Требует ручной сверки,
// если компенсация не завершилась; автоматически не повторяется.
type PartialSettlementError struct {
	OrderID         string
	Reference       string
	FailedStep      SettlementStep
	FailedProductID string
	Lines           []LineProgress
	Compensation    CompensationReport
	Err             error
}

func (e *PartialSettlementError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "partial settlement of order %q (ref %s) failed at %s", e.OrderID, e.Reference, e.FailedStep)
	if e.FailedProductID != "" {
		fmt.Fprintf(&b, " for product %s", e.FailedProductID)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *PartialSettlementError) Unwrap() error { return e.Err }

// DecrementedProducts возвращает товары, по которым остаток успели списать.
func (e *PartialSettlementError) DecrementedProducts() []string {
	var ids []string
	for _, line := range e.Lines {
		if line.StockDecrement {
			ids = append(ids, line.ProductID)
		}
	}
	return ids
}

// IsValidation проверяет, что ошибка относится к классу ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsTransport проверяет, что ошибка относится к классу TransportError.
func IsTransport(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}

// AsPartialSettlement извлекает PartialSettlementError из цепочки.
func AsPartialSettlement(err error) (*PartialSettlementError, bool) {
	var target *PartialSettlementError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// IsPartialSettlement проверяет, что расчёт оборвался после начала записи.
func IsPartialSettlement(err error) bool {
	_, ok := AsPartialSettlement(err)
	return ok
}
