package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/pos/internal/dataservice"
	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/storage/memory"
)

func TestDataService_QueryFiltersOrderingAndLimit(t *testing.T) {
	ctx := context.Background()
	ds := memory.NewDataService()

	for _, p := range []domain.Product{
		{ID: "c", Name: "Cola", BasePrice: decimal.NewFromInt(2), StockQuantity: 5, Active: true, SellerID: "s1"},
		{ID: "a", Name: "Apple", BasePrice: decimal.NewFromInt(1), StockQuantity: 0, Active: true, SellerID: "s1"},
		{ID: "b", Name: "Bread", BasePrice: decimal.NewFromInt(3), StockQuantity: 2, Active: true, SellerID: "s1"},
		{ID: "d", Name: "Donut", BasePrice: decimal.NewFromInt(1), StockQuantity: 9, Active: false, SellerID: "s1"},
		{ID: "e", Name: "Eggs", BasePrice: decimal.NewFromInt(4), StockQuantity: 9, Active: true, SellerID: "s2"},
	} {
		_, err := ds.SeedProduct(p)
		require.NoError(t, err)
	}

	rows, err := ds.Query(ctx, dataservice.Query{
		Table: dataservice.TableProducts,
		Filters: []dataservice.Filter{
			dataservice.Eq("seller_id", "s1"),
			dataservice.Eq("active", true),
			dataservice.Gt("stock_quantity", 0),
		},
		Order: []dataservice.Ordering{{Column: "name"}},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "Bread", rows[0]["name"])
	require.Equal(t, "Cola", rows[1]["name"])

	limited, err := ds.Query(ctx, dataservice.Query{
		Table: dataservice.TableProducts,
		Order: []dataservice.Ordering{{Column: "stock_quantity", Desc: true}},
		Limit: 1,
	})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	require.Equal(t, 9, limited[0]["stock_quantity"])

	_, err = ds.Query(ctx, dataservice.Query{
		Table:   dataservice.TableProducts,
		Filters: []dataservice.Filter{{Column: "name", Op: "like", Value: "A%"}},
	})
	require.Error(t, err)
}

func TestDataService_InsertAssignsIDAndReturnsCopy(t *testing.T) {
	ctx := context.Background()
	ds := memory.NewDataService()

	row, err := ds.Insert(ctx, dataservice.TableOrders, dataservice.Row{"reference": "POS-1"})
	require.NoError(t, err)
	require.NotEmpty(t, row["id"])
	require.NotNil(t, row["created_at"])

	row["reference"] = "mutated"
	stored := ds.Rows(dataservice.TableOrders)
	require.Len(t, stored, 1)
	require.Equal(t, "POS-1", stored[0]["reference"])

	_, err = ds.Insert(ctx, dataservice.TableOrders, dataservice.Row{"id": row["id"]})
	require.Error(t, err)
}

func TestDataService_UpdateMissingRow(t *testing.T) {
	ds := memory.NewDataService()
	err := ds.Update(context.Background(), dataservice.TableOrders, "missing", dataservice.Row{"status": "voided"})
	require.ErrorIs(t, err, dataservice.ErrRowNotFound)
}

func TestDataService_StockProcedures(t *testing.T) {
	ctx := context.Background()
	ds := memory.NewDataService()
	_, err := ds.SeedProduct(domain.Product{ID: "p1", Name: "Tea", StockQuantity: 3, Active: true, SellerID: "s1"})
	require.NoError(t, err)

	remaining, err := ds.Call(ctx, dataservice.ProcDecrementStock, dataservice.Row{"product_id": "p1", "amount": 2})
	require.NoError(t, err)
	require.Equal(t, 1, remaining)

	_, err = ds.Call(ctx, dataservice.ProcDecrementStock, dataservice.Row{"product_id": "p1", "amount": 2})
	require.True(t, errors.Is(err, domain.ErrInsufficientStock))

	remaining, err = ds.Call(ctx, dataservice.ProcIncrementStock, dataservice.Row{"product_id": "p1", "amount": 4})
	require.NoError(t, err)
	require.Equal(t, 5, remaining)

	_, err = ds.Call(ctx, dataservice.ProcDecrementStock, dataservice.Row{"product_id": "ghost", "amount": 1})
	require.ErrorIs(t, err, domain.ErrProductNotFound)

	_, err = ds.Call(ctx, "unknown_proc", nil)
	require.Error(t, err)
}

func TestDataService_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ds := memory.NewDataService()
	_, err := ds.Query(ctx, dataservice.Query{Table: dataservice.TableProducts})
	require.ErrorIs(t, err, context.Canceled)
}
