package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// Claims — набор claims токена кассы.
type Claims struct {
	jwt.RegisteredClaims
	Role     Role   `json:"role"`
	SellerID string `json:"seller_id,omitempty"`
}

// Verifier проверяет и выпускает HS256-токены.
type Verifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewVerifier создаёт verifier с общим секретом. Пустой issuer не проверяется.
func NewVerifier(secret, issuer string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("identity: jwt secret is required")
	}
	return &Verifier{secret: []byte(secret), issuer: issuer, now: time.Now}, nil
}

// Verify разбирает токен и возвращает пользователя.
// Любая проблема с токеном сводится к domain.ErrUnauthenticated.
func (v *Verifier) Verify(token string) (Principal, error) {
	if token == "" {
		return Principal{}, domain.ErrUnauthenticated
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Principal{}, domain.ErrUnauthenticated
	}
	if claims.Subject == "" {
		return Principal{}, fmt.Errorf("%w: missing subject", domain.ErrUnauthenticated)
	}
	if !claims.Role.Valid() {
		return Principal{}, fmt.Errorf("%w: unknown role %q", domain.ErrUnauthenticated, claims.Role)
	}

	return Principal{UserID: claims.Subject, Role: claims.Role, SellerID: claims.SellerID}, nil
}

// Issue выпускает токен для пользователя (нагрузочный тест, локальная разработка).
func (v *Verifier) Issue(p Principal, ttl time.Duration) (string, error) {
	now := v.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    v.issuer,
			Subject:   p.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role:     p.Role,
		SellerID: p.SellerID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
