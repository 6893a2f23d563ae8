// Package dataservice описывает контракт Data & Identity Service и типизированный шлюз поверх него.
package dataservice

import (
	"context"
	"errors"
)

// Имена таблиц, с которыми работает касса.
const (
	TableSellers    = "sellers"
	TableProducts   = "products"
	TableOrders     = "orders"
	TableOrderItems = "order_items"
)

// Имена атомарных процедур на стороне сервиса.
const (
	ProcDecrementStock = "decrement_stock"
	ProcIncrementStock = "increment_stock"
)

// ErrRowNotFound возвращается Update, если строки с таким id нет.
var ErrRowNotFound = errors.New("row not found")

// Row — слаботипизированная строка таблицы. За пределы шлюза не выходит.
type Row map[string]any

// FilterOp — оператор сравнения в фильтре запроса.
type FilterOp string

const (
	OpEq  FilterOp = "eq"
	OpNeq FilterOp = "neq"
	OpGt  FilterOp = "gt"
	OpGte FilterOp = "gte"
	OpLt  FilterOp = "lt"
	OpLte FilterOp = "lte"
)

// Valid проверяет, что оператор поддерживается.
func (op FilterOp) Valid() bool {
	switch op {
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte:
		return true
	default:
		return false
	}
}

// Filter — условие column <op> value.
type Filter struct {
	Column string
	Op     FilterOp
	Value  any
}

// Eq строит фильтр равенства.
func Eq(column string, value any) Filter { return Filter{Column: column, Op: OpEq, Value: value} }

// Gt строит фильтр "больше".
func Gt(column string, value any) Filter { return Filter{Column: column, Op: OpGt, Value: value} }

// Ordering задаёт сортировку по колонке.
type Ordering struct {
	Column string
	Desc   bool
}

// Query — запрос queryTable(table, filters, ordering, limit).
type Query struct {
	Table   string
	Filters []Filter
	Order   []Ordering
	// Limit <= 0 означает без ограничения.
	Limit int
}

// Client — табличный и процедурный интерфейс Data & Identity Service.
type Client interface {
	// Query возвращает строки таблицы по фильтрам.
	Query(ctx context.Context, q Query) ([]Row, error)
	// Insert вставляет строку и возвращает её вместе с полями, присвоенными сервисом (id, created_at).
	Insert(ctx context.Context, table string, record Row) (Row, error)
	// Update применяет patch к строке с данным id; ErrRowNotFound, если строки нет.
	Update(ctx context.Context, table, id string, patch Row) error
	// Call вызывает атомарную серверную процедуру.
	Call(ctx context.Context, procedure string, args Row) (any, error)
}
