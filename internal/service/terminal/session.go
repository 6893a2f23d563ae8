// Package terminal держит сессии кассы: продавец, корзина и последний загруженный каталог.
package terminal

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/identity"
	"github.com/vladislavdragonenkov/pos/internal/service/cart"
	"github.com/vladislavdragonenkov/pos/internal/service/checkout"
)

// CatalogLoader загружает каталог продавца. Ошибок не возвращает: сбой даёт пустой список.
type CatalogLoader interface {
	LoadCatalog(ctx context.Context, sellerID string) []domain.PricedProduct
}

// Settler проводит расчёт корзины.
type Settler interface {
	Settle(ctx context.Context, cart checkout.Cart, seller domain.SellerContext, buyerID string, method domain.PaymentMethod) (domain.Order, error)
}

// CartView — состояние корзины для отображения.
type CartView struct {
	SellerID  string
	Lines     []domain.CartLine
	ItemCount int
	Total     decimal.Decimal
}

// Session — одна касса. Корзина принадлежит только ей.
type Session struct {
	ID        string
	Principal identity.Principal
	OpenedAt  time.Time

	loader  CatalogLoader
	settler Settler
	logger  *log.Entry

	// settling блокирует ввод на время расчёта.
	settling atomic.Bool
	// settlements растёт с началом каждого расчёта. Ввод, дождавшийся mu
	// после чужого расчёта, видит смену счётчика и отклоняется.
	settlements atomic.Uint64
	// lastUsed: время последнего обращения, UnixNano.
	lastUsed atomic.Int64

	mu      sync.Mutex
	seller  domain.SellerContext
	cart    *cart.Engine
	catalog []domain.PricedProduct
	index   map[string]domain.PricedProduct
}

func newSession(id string, principal identity.Principal, seller domain.SellerContext, loader CatalogLoader, settler Settler, logger *log.Entry, now time.Time) *Session {
	s := &Session{
		ID:        id,
		Principal: principal,
		OpenedAt:  now,
		loader:    loader,
		settler:   settler,
		logger:    logger.WithFields(log.Fields{"session_id": id, "seller_id": seller.SellerID}),
		seller:    seller,
		cart:      cart.New(),
		index:     make(map[string]domain.PricedProduct),
	}
	s.touch(now)
	return s
}

func (s *Session) touch(now time.Time) {
	s.lastUsed.Store(now.UnixNano())
}

// LastUsed возвращает время последнего обращения к сессии.
func (s *Session) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load()).UTC()
}

// Seller возвращает зафиксированный контекст продавца.
func (s *Session) Seller() domain.SellerContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seller
}

// OwnedBy сообщает, открыл ли сессию этот пользователь.
func (s *Session) OwnedBy(p identity.Principal) bool {
	return s.Principal.UserID == p.UserID
}

// Settling сообщает, идёт ли расчёт.
func (s *Session) Settling() bool {
	return s.settling.Load()
}

// ReloadCatalog перечитывает каталог и сверяет с ним корзину.
func (s *Session) ReloadCatalog(ctx context.Context) ([]domain.PricedProduct, error) {
	unlock, err := s.lockInput()
	if err != nil {
		return nil, err
	}
	defer unlock()
	return s.reloadLocked(ctx), nil
}

func (s *Session) reloadLocked(ctx context.Context) []domain.PricedProduct {
	catalog := s.loader.LoadCatalog(ctx, s.seller.SellerID)

	s.catalog = catalog
	s.index = make(map[string]domain.PricedProduct, len(catalog))
	for _, p := range catalog {
		s.index[p.ID] = p
	}

	if dropped := s.cart.Reconcile(catalog); len(dropped) > 0 {
		s.logger.WithField("products", dropped).Info("cart lines dropped after catalog reload")
	}
	return append([]domain.PricedProduct(nil), catalog...)
}

// Catalog возвращает последний загруженный каталог.
func (s *Session) Catalog() []domain.PricedProduct {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.PricedProduct(nil), s.catalog...)
}

// Cart возвращает текущее состояние корзины.
func (s *Session) Cart() CartView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() CartView {
	return CartView{
		SellerID:  s.seller.SellerID,
		Lines:     s.cart.Lines(),
		ItemCount: s.cart.ItemCount(),
		Total:     s.cart.Total(),
	}
}

// AddItem добавляет товар из каталога сессии.
func (s *Session) AddItem(productID string) (CartView, error) {
	return s.mutate(func() error {
		p, ok := s.index[productID]
		if !ok {
			return domain.ErrProductUnavailable
		}
		s.cart.Add(p)
		return nil
	})
}

// AdjustItem меняет количество строки на delta.
func (s *Session) AdjustItem(productID string, delta int) (CartView, error) {
	return s.mutate(func() error {
		return s.cart.SetQuantityDelta(productID, delta)
	})
}

// RemoveItem удаляет строку.
func (s *Session) RemoveItem(productID string) (CartView, error) {
	return s.mutate(func() error {
		s.cart.Remove(productID)
		return nil
	})
}

// ClearCart очищает корзину (явная отмена).
func (s *Session) ClearCart() (CartView, error) {
	return s.mutate(func() error {
		s.cart.Clear()
		return nil
	})
}

// lockInput захватывает mu для ввода. Расчёт, начавшийся до захвата,
// отклоняет ввод с ErrSettlementInProgress, даже если уже завершился.
func (s *Session) lockInput() (func(), error) {
	seq := s.settlements.Load()
	if s.settling.Load() {
		return nil, domain.ErrSettlementInProgress
	}
	s.mu.Lock()
	if s.settling.Load() || s.settlements.Load() != seq {
		s.mu.Unlock()
		return nil, domain.ErrSettlementInProgress
	}
	return s.mu.Unlock, nil
}

func (s *Session) mutate(fn func() error) (CartView, error) {
	unlock, err := s.lockInput()
	if err != nil {
		return CartView{}, err
	}
	defer unlock()
	if err := fn(); err != nil {
		return CartView{}, err
	}
	return s.viewLocked(), nil
}

// SwitchSeller меняет продавца. Допустимо только с пустой корзиной.
func (s *Session) SwitchSeller(ctx context.Context, seller domain.SellerContext) error {
	unlock, err := s.lockInput()
	if err != nil {
		return err
	}
	defer unlock()

	if !s.cart.IsEmpty() {
		return domain.ErrSellerSwitchWithCart
	}
	s.seller = seller
	s.logger = s.logger.WithField("seller_id", seller.SellerID)
	s.reloadLocked(ctx)
	return nil
}

// Checkout проводит расчёт корзины. Повторный вызов во время расчёта отклоняется.
// После успеха корзина пуста, каталог перечитан с новыми остатками.
func (s *Session) Checkout(ctx context.Context, buyerID string, method domain.PaymentMethod) (domain.Order, error) {
	if !s.settling.CompareAndSwap(false, true) {
		return domain.Order{}, domain.ErrSettlementInProgress
	}
	defer s.settling.Store(false)
	s.settlements.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := s.settler.Settle(ctx, s.cart, s.seller, buyerID, method)
	if err != nil {
		return domain.Order{}, err
	}

	s.reloadLocked(context.WithoutCancel(ctx))
	return order, nil
}
