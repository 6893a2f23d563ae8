package terminal

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/identity"
)

// SellerResolver разрешает продавца при открытии сессии.
type SellerResolver interface {
	Resolve(ctx context.Context, principal identity.Principal, overrideSellerID string) (domain.SellerContext, error)
}

// Manager хранит открытые сессии касс.
type Manager struct {
	resolver SellerResolver
	loader   CatalogLoader
	settler  Settler
	logger   *log.Entry
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager создаёт менеджер сессий.
func NewManager(resolver SellerResolver, loader CatalogLoader, settler Settler, logger *log.Entry) *Manager {
	if logger == nil {
		logger = log.New().WithField("component", "terminal")
	}
	return &Manager{
		resolver: resolver,
		loader:   loader,
		settler:  settler,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		sessions: make(map[string]*Session),
	}
}

// Open разрешает продавца, открывает сессию и загружает каталог.
func (m *Manager) Open(ctx context.Context, principal identity.Principal, overrideSellerID string) (*Session, error) {
	seller, err := m.resolver.Resolve(ctx, principal, overrideSellerID)
	if err != nil {
		return nil, err
	}

	s := newSession(uuid.NewString(), principal, seller, m.loader, m.settler, m.logger, m.now())
	if _, err := s.ReloadCatalog(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	s.logger.WithFields(log.Fields{
		"actor_id": principal.UserID,
		"override": seller.Override,
	}).Info("terminal session opened")
	return s, nil
}

// Get возвращает сессию по идентификатору.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	s.touch(m.now())
	return s, nil
}

// SwitchSeller разрешает нового продавца и переключает на него сессию.
func (m *Manager) SwitchSeller(ctx context.Context, id string, principal identity.Principal, sellerID string) (*Session, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	seller, err := m.resolver.Resolve(ctx, principal, sellerID)
	if err != nil {
		return nil, err
	}
	if err := s.SwitchSeller(ctx, seller); err != nil {
		return nil, err
	}
	return s, nil
}

// Close закрывает сессию. Во время расчёта закрыть нельзя.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if s.Settling() {
		return domain.ErrSettlementInProgress
	}
	delete(m.sessions, id)
	m.logger.WithField("session_id", id).Info("terminal session closed")
	return nil
}

// Len возвращает число открытых сессий.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// ExpireIdle закрывает сессии, к которым не обращались дольше idle.
// Сессию в расчёте не трогает. Возвращает число закрытых сессий.
func (m *Manager) ExpireIdle(idle time.Duration) int {
	if idle <= 0 {
		return 0
	}
	cutoff := m.now().Add(-idle)

	m.mu.Lock()
	defer m.mu.Unlock()
	expired := 0
	for id, s := range m.sessions {
		if s.Settling() || s.LastUsed().After(cutoff) {
			continue
		}
		delete(m.sessions, id)
		expired++
		m.logger.WithFields(log.Fields{"session_id": id, "last_used": s.LastUsed()}).Info("idle terminal session expired")
	}
	return expired
}

// RunExpiry раз в interval закрывает простаивающие сессии, пока не отменён ctx.
// idle <= 0 отключает истечение.
func (m *Manager) RunExpiry(ctx context.Context, idle, interval time.Duration) {
	if idle <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.ExpireIdle(idle); n > 0 {
				m.logger.WithField("expired", n).Info("idle terminal sessions closed")
			}
		}
	}
}
