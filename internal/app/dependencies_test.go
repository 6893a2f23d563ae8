package app

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/pos/internal/dataservice"
	healthcheck "github.com/vladislavdragonenkov/pos/internal/health"
)

func TestNewDependencies_MemorySeedsDemoCatalog(t *testing.T) {
	cfg := newTestConfig(t)

	deps, err := NewDependencies(context.Background(), cfg, newTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, deps.Close()) })

	require.NotNil(t, deps.Data)
	require.NotNil(t, deps.Outbox)
	require.NotNil(t, deps.Timeline)
	require.NotNil(t, deps.Idempotency)
	require.Empty(t, deps.Checkers)

	gateway := dataservice.NewGateway(deps.Data, newTestLogger(t))
	seller, err := gateway.GetSeller(context.Background(), DemoSellerID)
	require.NoError(t, err)
	require.Equal(t, DemoSellerName, seller.DisplayName)

	products, err := gateway.ListSellableProducts(context.Background(), DemoSellerID)
	require.NoError(t, err)
	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	// товар с нулевым остатком в каталог не попадает
	require.ElementsMatch(t, []string{"demo-espresso", "demo-croissant", "demo-water"}, ids)
}

func TestNewDependencies_MemoryWithoutSeed(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.SeedDemoData = false

	deps, err := NewDependencies(context.Background(), cfg, nil)
	require.NoError(t, err)

	gateway := dataservice.NewGateway(deps.Data, newTestLogger(t))
	_, err = gateway.GetSeller(context.Background(), DemoSellerID)
	require.Error(t, err)
}

func TestNewDependencies_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "postgres without dsn",
			mutate:  func(c *Config) { c.StorageDriver = StorageDriverPostgres },
			wantErr: "requires a DSN",
		},
		{
			name:    "unsupported driver",
			mutate:  func(c *Config) { c.StorageDriver = "sqlite" },
			wantErr: "unsupported storage driver",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestConfig(t)
			tt.mutate(&cfg)
			_, err := NewDependencies(context.Background(), cfg, newTestLogger(t))
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestDependencies_CloseRunsClosersInReverse(t *testing.T) {
	var order []string
	deps := &Dependencies{closers: []func() error{
		func() error { order = append(order, "postgres"); return nil },
		func() error { order = append(order, "redis"); return context.Canceled },
	}}

	err := deps.Close()
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, []string{"redis", "postgres"}, order)

	// повторный Close ничего не делает
	require.NoError(t, deps.Close())
	var nilDeps *Dependencies
	require.NoError(t, nilDeps.Close())
}

func TestNewDependencies_Postgres(t *testing.T) {
	dsn := postgresTestDSN()
	if dsn == "" {
		t.Skip("POS_POSTGRES_TEST_DSN is not set")
	}

	cfg := newTestConfig(t)
	cfg.StorageDriver = StorageDriverPostgres
	cfg.PostgresDSN = dsn

	deps, err := NewDependencies(context.Background(), cfg, newTestLogger(t))
	if err != nil {
		t.Skipf("postgres is not available: %v", err)
	}
	t.Cleanup(func() { _ = deps.Close() })

	checker, ok := deps.Checkers["postgres"]
	require.True(t, ok)
	require.Equal(t, healthcheck.StatusHealthy, checker.Check(context.Background()).Status)
}

func TestNewDependencies_RedisUnavailable(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.RedisAddr = "127.0.0.1:1"

	_, err := NewDependencies(context.Background(), cfg, newTestLogger(t))
	require.Error(t, err)
}

func postgresTestDSN() string {
	return strings.TrimSpace(os.Getenv("POS_POSTGRES_TEST_DSN"))
}
