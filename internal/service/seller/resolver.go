// Package seller определяет, от имени какого продавца работает касса.
package seller

import (
	"context"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/identity"
)

// ResolveSellerContext выбирает продавца: override имеет приоритет над продавцом сессии.
func ResolveSellerContext(overrideSellerID, sessionSellerID string) string {
	if id := strings.TrimSpace(overrideSellerID); id != "" {
		return id
	}
	return strings.TrimSpace(sessionSellerID)
}

// Resolver разрешает контекст продавца один раз при открытии сессии кассы.
type Resolver struct {
	directory domain.SellerDirectory
	logger    *log.Entry
}

// NewResolver создаёт Resolver поверх справочника продавцов.
func NewResolver(directory domain.SellerDirectory, logger *log.Entry) *Resolver {
	if logger == nil {
		logger = log.New().WithField("component", "seller-resolver")
	}
	return &Resolver{directory: directory, logger: logger}
}

// Resolve возвращает зафиксированный контекст продавца для пользователя.
// Override чужого продавца доступен только администратору.
func (r *Resolver) Resolve(ctx context.Context, principal identity.Principal, overrideSellerID string) (domain.SellerContext, error) {
	sellerID := ResolveSellerContext(overrideSellerID, principal.SellerID)
	override := sellerID != "" && sellerID != principal.SellerID

	if override && !principal.IsAdmin() {
		return domain.SellerContext{}, domain.ErrOverrideForbidden
	}
	if sellerID == "" {
		return domain.SellerContext{}, domain.NewValidationError(domain.ErrSellerRequired)
	}

	seller, err := r.directory.GetSeller(ctx, sellerID)
	if err != nil {
		if errors.Is(err, domain.ErrSellerNotFound) {
			return domain.SellerContext{}, domain.NewValidationError(err)
		}
		return domain.SellerContext{}, err
	}

	if override {
		r.logger.WithFields(log.Fields{
			"actor_id":  principal.UserID,
			"seller_id": seller.ID,
		}).Info("admin override applied")
	}

	return domain.SellerContext{
		SellerID:    seller.ID,
		DisplayName: seller.DisplayName,
		ActorID:     principal.UserID,
		Override:    override,
	}, nil
}
