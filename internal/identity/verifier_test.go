package identity

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

func TestVerifierRoundTrip(t *testing.T) {
	v, err := NewVerifier("secret", "pos")
	require.NoError(t, err)

	token, err := v.Issue(Principal{UserID: "user-1", Role: RoleVendor, SellerID: "seller-1"}, time.Hour)
	require.NoError(t, err)

	p, err := v.Verify(token)
	require.NoError(t, err)
	require.Equal(t, Principal{UserID: "user-1", Role: RoleVendor, SellerID: "seller-1"}, p)
	require.False(t, p.IsAdmin())
}

func TestVerifierRejects(t *testing.T) {
	v, err := NewVerifier("secret", "pos")
	require.NoError(t, err)
	other, err := NewVerifier("other-secret", "pos")
	require.NoError(t, err)

	foreign, err := other.Issue(Principal{UserID: "user-1", Role: RoleAdmin}, time.Hour)
	require.NoError(t, err)

	expired, err := v.Issue(Principal{UserID: "user-1", Role: RoleAdmin}, -time.Minute)
	require.NoError(t, err)

	badRole, err := v.Issue(Principal{UserID: "user-1", Role: "root"}, time.Hour)
	require.NoError(t, err)

	noSubject, err := v.Issue(Principal{Role: RoleCashier}, time.Hour)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Role: RoleAdmin, RegisteredClaims: jwt.RegisteredClaims{Subject: "x"}})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := map[string]string{
		"empty":        "",
		"garbage":      "not-a-token",
		"wrong secret": foreign,
		"expired":      expired,
		"unknown role": badRole,
		"no subject":   noSubject,
		"alg none":     unsigned,
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(token)
			require.ErrorIs(t, err, domain.ErrUnauthenticated)
		})
	}
}

func TestNewVerifierRequiresSecret(t *testing.T) {
	_, err := NewVerifier("", "")
	require.Error(t, err)
}

func TestPrincipalContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	require.False(t, ok)

	ctx := WithPrincipal(context.Background(), Principal{UserID: "u", Role: RoleAdmin})
	p, ok := FromContext(ctx)
	require.True(t, ok)
	require.True(t, p.IsAdmin())
}
