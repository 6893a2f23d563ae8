package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/vladislavdragonenkov/pos/internal/dataservice"
	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// tableSchema: допустимые колонки таблицы. Имена из запросов попадают в SQL только после сверки с ней.
type tableSchema struct {
	columns []string
	jsonb   map[string]bool
	// touch: у таблицы есть updated_at, Update обновляет его сам.
	touch bool
}

func (t tableSchema) has(column string) bool {
	for _, c := range t.columns {
		if c == column {
			return true
		}
	}
	return false
}

var schemas = map[string]tableSchema{
	dataservice.TableSellers: {
		columns: []string{"id", "display_name", "active", "created_at", "updated_at"},
		touch:   true,
	},
	dataservice.TableProducts: {
		columns: []string{
			"id", "seller_id", "name", "sku", "image_url", "base_price",
			"stock_quantity", "active", "created_at", "updated_at",
		},
		touch: true,
	},
	dataservice.TableOrders: {
		columns: []string{
			"id", "reference", "seller_id", "seller_name", "buyer_id",
			"subtotal", "commission_amount", "vat_amount", "total", "currency",
			"status", "payment_status", "payment_method", "shipping_method",
			"items", "void_reason", "created_at", "updated_at",
		},
		jsonb: map[string]bool{"items": true},
		touch: true,
	},
	dataservice.TableOrderItems: {
		columns: []string{"id", "order_id", "product_id", "quantity", "unit_price", "line_total", "created_at"},
	},
}

var filterOperators = map[dataservice.FilterOp]string{
	dataservice.OpEq:  "=",
	dataservice.OpNeq: "<>",
	dataservice.OpGt:  ">",
	dataservice.OpGte: ">=",
	dataservice.OpLt:  "<",
	dataservice.OpLte: "<=",
}

var procedures = map[string]bool{
	dataservice.ProcDecrementStock: true,
	dataservice.ProcIncrementStock: true,
}

// DataClient — PostgreSQL-реализация табличного и процедурного интерфейса Data & Identity Service.
type DataClient struct {
	db *sql.DB
}

// NewDataClient создаёт клиент поверх Store.
func NewDataClient(store *Store) *DataClient {
	return &DataClient{db: store.DB()}
}

var _ dataservice.Client = (*DataClient)(nil)

// Query выполняет SELECT по фильтрам, сортировке и лимиту.
func (c *DataClient) Query(ctx context.Context, q dataservice.Query) ([]dataservice.Row, error) {
	schema, err := lookupTable(q.Table)
	if err != nil {
		return nil, err
	}

	var (
		b    strings.Builder
		args []any
	)
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(schema.columns, ", "), q.Table)

	for i, f := range q.Filters {
		op, ok := filterOperators[f.Op]
		if !ok {
			return nil, fmt.Errorf("unsupported filter operator %q", f.Op)
		}
		if !schema.has(f.Column) {
			return nil, fmt.Errorf("unknown column %s.%s", q.Table, f.Column)
		}
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		args = append(args, f.Value)
		fmt.Fprintf(&b, "%s %s $%d", f.Column, op, len(args))
	}

	for i, o := range q.Order {
		if !schema.has(o.Column) {
			return nil, fmt.Errorf("unknown column %s.%s", q.Table, o.Column)
		}
		if i == 0 {
			b.WriteString(" ORDER BY ")
		} else {
			b.WriteString(", ")
		}
		b.WriteString(o.Column)
		if o.Desc {
			b.WriteString(" DESC")
		}
	}

	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Table, err)
	}
	defer rows.Close()

	result := make([]dataservice.Row, 0)
	for rows.Next() {
		row, err := scanRow(rows, schema.columns)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", q.Table, err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", q.Table, err)
	}
	return result, nil
}

// Insert вставляет строку и возвращает её с присвоенными базой id и created_at.
func (c *DataClient) Insert(ctx context.Context, table string, record dataservice.Row) (dataservice.Row, error) {
	schema, err := lookupTable(table)
	if err != nil {
		return nil, err
	}
	if len(record) == 0 {
		return nil, fmt.Errorf("insert into %s: empty record", table)
	}

	columns, args, err := bindColumns(table, schema, record)
	if err != nil {
		return nil, err
	}
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		table, strings.Join(columns, ", "), strings.Join(placeholders, ", "), strings.Join(schema.columns, ", "))

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", table, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("insert into %s: %w", table, err)
		}
		return nil, fmt.Errorf("insert into %s: no row returned", table)
	}
	row, err := scanRow(rows, schema.columns)
	if err != nil {
		return nil, fmt.Errorf("scan inserted %s: %w", table, err)
	}
	return row, nil
}

// Update применяет patch к строке с данным id.
func (c *DataClient) Update(ctx context.Context, table, id string, patch dataservice.Row) error {
	schema, err := lookupTable(table)
	if err != nil {
		return err
	}

	fields := make(dataservice.Row, len(patch))
	for column, value := range patch {
		if column != "id" {
			fields[column] = value
		}
	}
	if len(fields) == 0 {
		return fmt.Errorf("update %s: empty patch", table)
	}

	columns, args, err := bindColumns(table, schema, fields)
	if err != nil {
		return err
	}
	assignments := make([]string, 0, len(columns)+1)
	for i, column := range columns {
		assignments = append(assignments, fmt.Sprintf("%s = $%d", column, i+1))
	}
	if schema.touch {
		if _, ok := fields["updated_at"]; !ok {
			assignments = append(assignments, "updated_at = NOW()")
		}
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d", table, strings.Join(assignments, ", "), len(args))

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s rows affected: %w", table, err)
	}
	if affected == 0 {
		return dataservice.ErrRowNotFound
	}
	return nil
}

// Call вызывает процедуру остатков и возвращает остаток после изменения.
func (c *DataClient) Call(ctx context.Context, procedure string, args dataservice.Row) (any, error) {
	if !procedures[procedure] {
		return nil, fmt.Errorf("unknown procedure %q", procedure)
	}
	productID, _ := args["product_id"].(string)
	if productID == "" {
		return nil, fmt.Errorf("%s: product_id is required", procedure)
	}
	amount, ok := args["amount"].(int)
	if !ok {
		return nil, fmt.Errorf("%s: amount must be an integer, got %T", procedure, args["amount"])
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var remaining int64
	err := c.db.QueryRowContext(ctx, fmt.Sprintf("SELECT %s($1, $2)", procedure), productID, amount).Scan(&remaining)
	if err != nil {
		switch pgErrorCode(err) {
		case pgCheckViolation:
			return nil, fmt.Errorf("%s %s: %w", procedure, productID, domain.ErrInsufficientStock)
		case pgNoDataFound:
			return nil, fmt.Errorf("%s %s: %w", procedure, productID, domain.ErrProductNotFound)
		}
		return nil, fmt.Errorf("%s %s: %w", procedure, productID, err)
	}
	return int(remaining), nil
}

func lookupTable(table string) (tableSchema, error) {
	schema, ok := schemas[table]
	if !ok {
		return tableSchema{}, fmt.Errorf("unknown table %q", table)
	}
	return schema, nil
}

// bindColumns сверяет колонки со схемой и возвращает их в стабильном порядке вместе со значениями.
func bindColumns(table string, schema tableSchema, record dataservice.Row) ([]string, []any, error) {
	columns := make([]string, 0, len(record))
	for column := range record {
		if !schema.has(column) {
			return nil, nil, fmt.Errorf("unknown column %s.%s", table, column)
		}
		columns = append(columns, column)
	}
	sort.Strings(columns)

	args := make([]any, 0, len(columns))
	for _, column := range columns {
		value := record[column]
		if schema.jsonb[column] {
			encoded, err := jsonbValue(value)
			if err != nil {
				return nil, nil, fmt.Errorf("column %s.%s: %w", table, column, err)
			}
			value = encoded
		}
		args = append(args, value)
	}
	return columns, args, nil
}

// jsonbValue передаёт JSONB строкой: так pgx не путает []byte с bytea.
func jsonbValue(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case json.RawMessage:
		return string(v), nil
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(raw), nil
	}
}

func scanRow(rows *sql.Rows, columns []string) (dataservice.Row, error) {
	values := make([]any, len(columns))
	targets := make([]any, len(columns))
	for i := range values {
		targets[i] = &values[i]
	}
	if err := rows.Scan(targets...); err != nil {
		return nil, err
	}

	row := make(dataservice.Row, len(columns))
	for i, column := range columns {
		row[column] = values[i]
	}
	return row, nil
}
