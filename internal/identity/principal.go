// Package identity определяет пользователя кассы по bearer-токену.
package identity

import "context"

// Role — роль пользователя.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleVendor  Role = "vendor"
	RoleCashier Role = "cashier"
)

// Valid сообщает, известна ли роль.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleVendor, RoleCashier:
		return true
	default:
		return false
	}
}

// Principal — аутентифицированный пользователь.
type Principal struct {
	UserID string
	Role   Role
	// SellerID: продавец, к которому привязан пользователь; у администратора может быть пустым.
	SellerID string
}

// IsAdmin сообщает, может ли пользователь действовать от имени любого продавца.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

type principalKey struct{}

// WithPrincipal кладёт пользователя в контекст запроса.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext достаёт пользователя из контекста.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
