package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/pos/internal/dataservice"
	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// Procedure — серверная процедура; выполняется под общей блокировкой хранилища.
type Procedure func(tables map[string][]dataservice.Row, args dataservice.Row) (any, error)

// DataService — in-memory реализация Data & Identity Service (для разработки/тестов).
type DataService struct {
	mu         sync.Mutex
	tables     map[string][]dataservice.Row
	procedures map[string]Procedure
	now        func() time.Time
}

// NewDataService создаёт пустое хранилище с процедурами decrement_stock/increment_stock.
func NewDataService() *DataService {
	return &DataService{
		tables: make(map[string][]dataservice.Row),
		procedures: map[string]Procedure{
			dataservice.ProcDecrementStock: decrementStock,
			dataservice.ProcIncrementStock: incrementStock,
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

var _ dataservice.Client = (*DataService)(nil)

// RegisterProcedure добавляет или заменяет процедуру.
func (s *DataService) RegisterProcedure(name string, proc Procedure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.procedures[name] = proc
}

// Query возвращает копии строк, подходящих под фильтры.
func (s *DataService) Query(ctx context.Context, q dataservice.Query) ([]dataservice.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, f := range q.Filters {
		if !f.Op.Valid() {
			return nil, fmt.Errorf("unsupported filter operator %q", f.Op)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]dataservice.Row, 0)
	for _, row := range s.tables[q.Table] {
		if matches(row, q.Filters) {
			result = append(result, cloneRow(row))
		}
	}

	if len(q.Order) > 0 {
		sort.SliceStable(result, func(i, j int) bool {
			for _, o := range q.Order {
				cmp, _ := compareValues(result[i][o.Column], result[j][o.Column])
				if cmp == 0 {
					continue
				}
				if o.Desc {
					return cmp > 0
				}
				return cmp < 0
			}
			return false
		})
	}

	if q.Limit > 0 && len(result) > q.Limit {
		result = result[:q.Limit]
	}
	return result, nil
}

// Insert добавляет строку, присваивая id и created_at, если их нет.
func (s *DataService) Insert(ctx context.Context, table string, record dataservice.Row) (dataservice.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row := cloneRow(record)
	if id, _ := row["id"].(string); id == "" {
		row["id"] = uuid.NewString()
	}
	for _, existing := range s.tables[table] {
		if existing["id"] == row["id"] {
			return nil, fmt.Errorf("duplicate id %v in %s", row["id"], table)
		}
	}
	if _, ok := row["created_at"]; !ok {
		row["created_at"] = s.now()
	}

	s.tables[table] = append(s.tables[table], row)
	return cloneRow(row), nil
}

// Update применяет patch к строке с данным id.
func (s *DataService) Update(ctx context.Context, table, id string, patch dataservice.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row := findRow(s.tables[table], id)
	if row == nil {
		return dataservice.ErrRowNotFound
	}
	for k, v := range patch {
		if k == "id" {
			continue
		}
		row[k] = cloneValue(v)
	}
	row["updated_at"] = s.now()
	return nil
}

// Call выполняет процедуру атомарно относительно остальных операций.
func (s *DataService) Call(ctx context.Context, procedure string, args dataservice.Row) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	proc, ok := s.procedures[procedure]
	if !ok {
		return nil, fmt.Errorf("procedure %q is not defined", procedure)
	}
	return proc(s.tables, args)
}

// SeedSeller добавляет продавца.
func (s *DataService) SeedSeller(seller domain.Seller) (domain.Seller, error) {
	row, err := s.Insert(context.Background(), dataservice.TableSellers, dataservice.SellerRow(seller))
	if err != nil {
		return domain.Seller{}, err
	}
	return dataservice.SellerFromRow(row)
}

// SeedProduct добавляет товар.
func (s *DataService) SeedProduct(product domain.Product) (domain.Product, error) {
	row, err := s.Insert(context.Background(), dataservice.TableProducts, dataservice.ProductRow(product))
	if err != nil {
		return domain.Product{}, err
	}
	return dataservice.ProductFromRow(row)
}

// Rows возвращает копию всех строк таблицы в порядке вставки.
func (s *DataService) Rows(table string) []dataservice.Row {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.tables[table]
	result := make([]dataservice.Row, len(rows))
	for i, row := range rows {
		result[i] = cloneRow(row)
	}
	return result
}

func decrementStock(tables map[string][]dataservice.Row, args dataservice.Row) (any, error) {
	return adjustStock(tables, args, -1)
}

func incrementStock(tables map[string][]dataservice.Row, args dataservice.Row) (any, error) {
	return adjustStock(tables, args, 1)
}

func adjustStock(tables map[string][]dataservice.Row, args dataservice.Row, sign int) (any, error) {
	productID, _ := args["product_id"].(string)
	amount, ok := toInt(args["amount"])
	if !ok || amount <= 0 {
		return nil, fmt.Errorf("amount must be positive: %w", domain.ErrItemQtyInvalid)
	}

	row := findRow(tables[dataservice.TableProducts], productID)
	if row == nil {
		return nil, domain.ErrProductNotFound
	}
	stock, _ := toInt(row["stock_quantity"])
	next := stock + sign*amount
	// Аналог CHECK (stock_quantity >= 0).
	if next < 0 {
		return nil, domain.ErrInsufficientStock
	}
	row["stock_quantity"] = next
	return next, nil
}

func findRow(rows []dataservice.Row, id string) dataservice.Row {
	for _, row := range rows {
		if rowID, _ := row["id"].(string); rowID == id {
			return row
		}
	}
	return nil
}

func matches(row dataservice.Row, filters []dataservice.Filter) bool {
	for _, f := range filters {
		value := row[f.Column]
		if f.Value == nil || value == nil {
			same := f.Value == nil && value == nil
			if (f.Op == dataservice.OpEq && !same) || (f.Op == dataservice.OpNeq && same) {
				return false
			}
			if f.Op != dataservice.OpEq && f.Op != dataservice.OpNeq {
				return false
			}
			continue
		}

		cmp, ok := compareValues(value, f.Value)
		if !ok {
			return false
		}
		var pass bool
		switch f.Op {
		case dataservice.OpEq:
			pass = cmp == 0
		case dataservice.OpNeq:
			pass = cmp != 0
		case dataservice.OpGt:
			pass = cmp > 0
		case dataservice.OpGte:
			pass = cmp >= 0
		case dataservice.OpLt:
			pass = cmp < 0
		case dataservice.OpLte:
			pass = cmp <= 0
		}
		if !pass {
			return false
		}
	}
	return true
}

// compareValues сравнивает значения одного вида; false, если виды несравнимы.
func compareValues(a, b any) (int, bool) {
	if da, ok := toDecimal(a); ok {
		db, ok := toDecimal(b)
		if !ok {
			return 0, false
		}
		return da.Cmp(db), true
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		default:
			return 1, true
		}
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return av.Compare(bv), true
	default:
		return 0, false
	}
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case float64:
		return decimal.NewFromFloat(n), true
	default:
		return decimal.Zero, false
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func cloneRow(src dataservice.Row) dataservice.Row {
	dst := make(dataservice.Row, len(src))
	for k, v := range src {
		dst[k] = cloneValue(v)
	}
	return dst
}

func cloneValue(v any) any {
	if b, ok := v.([]byte); ok {
		return append([]byte(nil), b...)
	}
	return v
}
