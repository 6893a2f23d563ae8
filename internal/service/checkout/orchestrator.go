// Package checkout проводит расчёт корзины: заказ, строки order_items и атомарное списание остатков.
//
// Последовательность выполняется как сага: при сбое после создания заказа
// списанные остатки возвращаются в обратном порядке, а заказ аннулируется.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
)

// DefaultCurrency — валюта заказов, если не задана иная.
const DefaultCurrency = "USD"

// Cart — то, что оркестратору нужно от корзины.
type Cart interface {
	Lines() []domain.CartLine
	Clear()
}

// Dependencies — порты Data & Identity Service и журналы, которые использует расчёт.
type Dependencies struct {
	Orders  domain.OrderRepository
	Items   domain.OrderItemRepository
	Stock   domain.StockService
	Pricing domain.PricingResolver
	// Outbox и Timeline необязательны.
	Outbox   domain.OutboxRepository
	Timeline domain.TimelineRepository
}

// Option настраивает Orchestrator.
type Option func(*Orchestrator)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithMetrics задаёт метрики расчётов.
func WithMetrics(m *metrics.SettlementMetrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithEventPublisher включает прямую публикацию событий расчёта в Kafka.
func WithEventPublisher(p kafka.EventPublisher) Option {
	return func(o *Orchestrator) { o.events = p }
}

// WithCurrency задаёт валюту заказов.
func WithCurrency(currency string) Option {
	return func(o *Orchestrator) {
		if currency != "" {
			o.currency = currency
		}
	}
}

// WithReferenceGenerator подменяет генератор номера чека.
func WithReferenceGenerator(gen func() string) Option {
	return func(o *Orchestrator) {
		if gen != nil {
			o.newReference = gen
		}
	}
}

// Orchestrator реализует settle(cart, seller, buyer, paymentMethod).
type Orchestrator struct {
	orders   domain.OrderRepository
	items    domain.OrderItemRepository
	stock    domain.StockService
	pricing  domain.PricingResolver
	outbox   domain.OutboxRepository
	timeline domain.TimelineRepository
	events   kafka.EventPublisher
	metrics  *metrics.SettlementMetrics
	logger   *log.Entry

	currency     string
	newReference func() string
	now          func() time.Time
}

// NewOrchestrator создаёт оркестратор расчёта.
func NewOrchestrator(deps Dependencies, opts ...Option) (*Orchestrator, error) {
	if deps.Orders == nil || deps.Items == nil || deps.Stock == nil || deps.Pricing == nil {
		return nil, errors.New("checkout: orders, items, stock and pricing are required")
	}
	o := &Orchestrator{
		orders:       deps.Orders,
		items:        deps.Items,
		stock:        deps.Stock,
		pricing:      deps.Pricing,
		outbox:       deps.Outbox,
		timeline:     deps.Timeline,
		currency:     DefaultCurrency,
		newReference: NewReference,
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = log.New().WithField("component", "checkout")
	}
	return o, nil
}

// NewReference генерирует номер чека: POS- и ULID (время + случайный суффикс).
func NewReference() string {
	return "POS-" + ulid.Make().String()
}

// Settle проводит расчёт корзины.
//
// Ошибки: *domain.ValidationError до любого ввода-вывода, *domain.TransportError,
// если записей не было, *domain.PartialSettlementError после начала создания заказа.
// После шага создания заказа отмена ctx не прерывает расчёт.
func (o *Orchestrator) Settle(ctx context.Context, cart Cart, seller domain.SellerContext, buyerID string, method domain.PaymentMethod) (domain.Order, error) {
	start := time.Now()
	o.metrics.RecordStarted()
	defer func() { o.metrics.RecordFinished(time.Since(start)) }()

	var lines []domain.CartLine
	if cart != nil {
		lines = cart.Lines()
	}
	if err := validate(lines, seller, method); err != nil {
		o.metrics.RecordFailed(metrics.OutcomeValidation)
		return domain.Order{}, domain.NewValidationError(err)
	}

	logger := o.logger.WithField("seller_id", seller.SellerID)

	// Шаг 1: номер чека.
	reference := o.newReference()
	logger = logger.WithField("order_ref", reference)

	// Шаги 2-3: пересчёт цен и агрегаты. До записи отмена допустима.
	order, err := o.buildOrder(ctx, lines, seller, buyerID, method, reference)
	if err != nil {
		if domain.IsValidation(err) {
			o.metrics.RecordFailed(metrics.OutcomeValidation)
			return domain.Order{}, err
		}
		o.metrics.RecordFailed(metrics.OutcomeTransport)
		logger.WithError(err).Warn("pricing failed before settlement")
		return domain.Order{}, err
	}

	// Шаг 4 и далее не отменяются.
	wctx := context.WithoutCancel(ctx)

	var created domain.Order
	err = o.step(domain.SettlementStepCreateOrder, func() error {
		var createErr error
		created, createErr = o.orders.Create(wctx, order)
		return createErr
	})
	if err != nil {
		return domain.Order{}, o.handleCreateFailure(wctx, logger, order, err)
	}
	logger = logger.WithField("order_id", created.ID)

	// Шаг 5: строки и списание строго последовательно.
	progress := make([]domain.LineProgress, len(order.Items))
	for i, snap := range order.Items {
		progress[i] = domain.LineProgress{ProductID: snap.ProductID, Quantity: snap.Quantity}
	}

	for i, snap := range order.Items {
		var item domain.OrderLineItem
		err := o.step(domain.SettlementStepPersistItem, func() error {
			var itemErr error
			item, itemErr = o.items.CreateItem(wctx, domain.OrderLineItem{
				OrderID:   created.ID,
				ProductID: snap.ProductID,
				Quantity:  snap.Quantity,
				UnitPrice: snap.UnitPrice,
				LineTotal: snap.LineTotal(),
			})
			return itemErr
		})
		if err != nil {
			return domain.Order{}, o.compensate(wctx, logger, created, progress, domain.SettlementStepPersistItem, snap.ProductID, err)
		}
		progress[i].ItemPersisted = true
		progress[i].OrderItemID = item.ID

		err = o.step(domain.SettlementStepDecrementStock, func() error {
			return o.stock.DecrementStock(wctx, snap.ProductID, snap.Quantity)
		})
		if err != nil {
			return domain.Order{}, o.compensate(wctx, logger, created, progress, domain.SettlementStepDecrementStock, snap.ProductID, err)
		}
		progress[i].StockDecrement = true
	}

	// Шаг 7.
	cart.Clear()
	o.metrics.RecordCompleted()
	o.emitEvent(created.ID, created.Reference, EventSaleSettled, map[string]any{
		"seller_id":      created.SellerID,
		"total":          created.Total.StringFixed(2),
		"currency":       created.Currency,
		"payment_method": string(created.PaymentMethod),
		"items":          created.ItemCount(),
	})
	o.publishSettlementEvent(kafka.EventTypeSaleSettled, created.ID, created.Reference, created.SellerID, map[string]any{
		"total":          created.Total.StringFixed(2),
		"payment_method": string(created.PaymentMethod),
	})
	logger.WithFields(log.Fields{
		"total": created.Total.StringFixed(2),
		"items": created.ItemCount(),
	}).Info("sale settled")
	return created, nil
}

func validate(lines []domain.CartLine, seller domain.SellerContext, method domain.PaymentMethod) error {
	if len(lines) == 0 {
		return domain.ErrCartEmpty
	}
	if !seller.Resolved() {
		return domain.ErrSellerRequired
	}
	if !method.Valid() {
		return domain.ErrPaymentMethodInvalid
	}
	for _, line := range lines {
		if line.Quantity <= 0 {
			return fmt.Errorf("product %s: %w", line.Product.ID, domain.ErrItemQtyInvalid)
		}
		if line.Product.BasePrice.IsNegative() {
			return fmt.Errorf("product %s: %w", line.Product.ID, domain.ErrItemPriceInvalid)
		}
	}
	return nil
}

// buildOrder пересчитывает разбивку цены из базовой цены каждой строки и собирает заказ.
// Кэшированная в корзине displayPrice для денег не используется. Цены за единицу
// округляются до копеек до суммирования: агрегаты заказа совпадают со снимком позиций.
func (o *Orchestrator) buildOrder(ctx context.Context, lines []domain.CartLine, seller domain.SellerContext, buyerID string, method domain.PaymentMethod, reference string) (domain.Order, error) {
	order := domain.Order{
		Reference:      reference,
		SellerID:       seller.SellerID,
		SellerName:     seller.DisplayName,
		BuyerID:        buyerID,
		Currency:       o.currency,
		Status:         domain.OrderStatusFulfilled,
		PaymentStatus:  domain.PaymentStatusPaid,
		PaymentMethod:  method,
		ShippingMethod: domain.ShippingInStorePickup,
		Items:          make([]domain.OrderLineSnapshot, 0, len(lines)),
	}

	subtotal, commission, vat, total := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	err := o.step(domain.SettlementStepPricing, func() error {
		for _, line := range lines {
			base := domain.RoundMoney(line.Product.BasePrice)
			breakdown, err := o.pricing.Resolve(ctx, base)
			if err != nil {
				return &domain.TransportError{Op: "pricing", Err: fmt.Errorf("product %s: %w", line.Product.ID, err)}
			}
			unitCommission := domain.RoundMoney(breakdown.Commission)
			unitVAT := domain.RoundMoney(breakdown.VAT)
			unit := domain.OrderLineSnapshot{
				ProductID:  line.Product.ID,
				Name:       line.Product.Name,
				SKU:        line.Product.SKU,
				Quantity:   line.Quantity,
				UnitPrice:  base.Add(unitCommission).Add(unitVAT),
				BasePrice:  base,
				Commission: unitCommission,
				VAT:        unitVAT,
			}
			order.Items = append(order.Items, unit)

			qty := decimal.NewFromInt(int64(line.Quantity))
			subtotal = subtotal.Add(unit.BasePrice.Mul(qty))
			commission = commission.Add(unit.Commission.Mul(qty))
			vat = vat.Add(unit.VAT.Mul(qty))
			total = total.Add(unit.UnitPrice.Mul(qty))
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	order.Subtotal = subtotal
	order.CommissionAmount = commission
	order.VATAmount = vat
	order.Total = total
	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, domain.NewValidationError(errors.Join(errs...))
	}
	return order, nil
}

// handleCreateFailure разбирает неоднозначный сбой вставки заказа: запись могла пройти.
func (o *Orchestrator) handleCreateFailure(ctx context.Context, logger *log.Entry, order domain.Order, createErr error) error {
	existing, lookupErr := o.orders.FindByReference(ctx, order.Reference)
	switch {
	case errors.Is(lookupErr, domain.ErrOrderNotFound):
		o.metrics.RecordFailed(metrics.OutcomeTransport)
		logger.WithError(createErr).Warn("order insert failed, nothing was written")
		var transport *domain.TransportError
		if errors.As(createErr, &transport) {
			return transport
		}
		return &domain.TransportError{Op: string(domain.SettlementStepCreateOrder), Err: createErr}

	case lookupErr != nil:
		// Неизвестно, создан ли заказ: компенсировать нечего, нужна ручная сверка.
		perr := &domain.PartialSettlementError{
			Reference:  order.Reference,
			FailedStep: domain.SettlementStepCreateOrder,
			Lines:      pendingLines(order),
			Err:        errors.Join(createErr, fmt.Errorf("lookup by reference: %w", lookupErr)),
		}
		o.reportPartial(logger, order.SellerID, perr)
		return perr

	default:
		return o.compensate(ctx, logger.WithField("order_id", existing.ID), existing, pendingLines(order), domain.SettlementStepCreateOrder, "", createErr)
	}
}

// compensate возвращает списанные остатки в обратном порядке и аннулирует заказ.
func (o *Orchestrator) compensate(ctx context.Context, logger *log.Entry, order domain.Order, progress []domain.LineProgress, failedStep domain.SettlementStep, productID string, cause error) error {
	lines := append([]domain.LineProgress(nil), progress...)
	report := domain.CompensationReport{Attempted: true}

	for i := len(lines) - 1; i >= 0; i-- {
		line := lines[i]
		if !line.StockDecrement {
			continue
		}
		err := o.step(domain.SettlementStepRestoreStock, func() error {
			return o.stock.IncrementStock(ctx, line.ProductID, line.Quantity)
		})
		if err != nil {
			report.RestoreFailed = append(report.RestoreFailed, line.ProductID)
			report.Errors = append(report.Errors, fmt.Errorf("restore stock %s: %w", line.ProductID, err))
			continue
		}
		report.StockRestored = append(report.StockRestored, line.ProductID)
	}

	reason := fmt.Sprintf("settlement failed at %s: %v", failedStep, cause)
	err := o.step(domain.SettlementStepVoidOrder, func() error {
		return o.orders.Void(ctx, order.ID, reason)
	})
	if err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("void order: %w", err))
	} else {
		report.OrderVoided = true
	}

	perr := &domain.PartialSettlementError{
		OrderID:         order.ID,
		Reference:       order.Reference,
		FailedStep:      failedStep,
		FailedProductID: productID,
		Lines:           lines,
		Compensation:    report,
		Err:             cause,
	}
	o.reportPartial(logger, order.SellerID, perr)
	o.metrics.RecordCompensation(report.Complete())
	o.emitEvent(order.ID, order.Reference, EventSettlementCompensated, map[string]any{
		"stock_restored": report.StockRestored,
		"restore_failed": report.RestoreFailed,
		"order_voided":   report.OrderVoided,
		"complete":       report.Complete(),
	})
	o.publishSettlementEvent(kafka.EventTypeSettlementCompensated, order.ID, order.Reference, order.SellerID, map[string]any{
		"complete": report.Complete(),
	})
	return perr
}

// reportPartial логирует частичный расчёт со всем контекстом для ручной сверки.
func (o *Orchestrator) reportPartial(logger *log.Entry, sellerID string, perr *domain.PartialSettlementError) {
	o.metrics.RecordFailed(metrics.OutcomePartial)

	fields := log.Fields{
		"step":               string(perr.FailedStep),
		"product_id":         perr.FailedProductID,
		"decremented":        perr.DecrementedProducts(),
		"lines":              perr.Lines,
		"compensated":        perr.Compensation.Attempted,
		"stock_restored":     perr.Compensation.StockRestored,
		"restore_failed":     perr.Compensation.RestoreFailed,
		"order_voided":       perr.Compensation.OrderVoided,
		"compensation_error": errors.Join(perr.Compensation.Errors...),
	}
	logger.WithError(perr.Err).WithFields(fields).Error("partial settlement, manual reconciliation may be required")

	o.emitEvent(perr.OrderID, perr.Reference, EventSettlementFailed, map[string]any{
		"seller_id":  sellerID,
		"step":       string(perr.FailedStep),
		"product_id": perr.FailedProductID,
		"reason":     perr.Err.Error(),
	})
	o.publishSettlementEvent(kafka.EventTypeSettlementFailed, perr.OrderID, perr.Reference, sellerID, map[string]any{
		"step":   string(perr.FailedStep),
		"reason": perr.Err.Error(),
	})
}

func (o *Orchestrator) step(step domain.SettlementStep, fn func() error) error {
	start := time.Now()
	err := fn()
	o.metrics.RecordStepDuration(string(step), time.Since(start))
	return err
}

func pendingLines(order domain.Order) []domain.LineProgress {
	lines := make([]domain.LineProgress, len(order.Items))
	for i, item := range order.Items {
		lines[i] = domain.LineProgress{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return lines
}
