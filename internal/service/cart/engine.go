// Package cart реализует корзину кассы: упорядоченный набор строк с ограничением по остатку.
//
// Engine принадлежит одной сессии кассы и не потокобезопасен.
package cart

import (
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// Engine — упорядоченная корзина: порядок вставки совпадает с порядком отображения.
type Engine struct {
	order []string
	lines map[string]*domain.CartLine
}

// New создаёт пустую корзину.
func New() *Engine {
	return &Engine{lines: make(map[string]*domain.CartLine)}
}

// Add добавляет товар с количеством 1 или увеличивает количество на 1.
// На границе остатка вызов ничего не меняет и ошибкой не считается.
func (e *Engine) Add(product domain.PricedProduct) {
	line, ok := e.lines[product.ID]
	if !ok {
		if product.StockQuantity < 1 {
			return
		}
		e.order = append(e.order, product.ID)
		e.lines[product.ID] = &domain.CartLine{Product: product, Quantity: 1}
		return
	}

	line.Product = product
	line.Quantity = clamp(line.Quantity+1, 1, product.StockQuantity)
}

// SetQuantityDelta меняет количество на delta в пределах [1, остаток]. Строку не удаляет.
func (e *Engine) SetQuantityDelta(productID string, delta int) error {
	line, ok := e.lines[productID]
	if !ok {
		return domain.ErrCartLineNotFound
	}
	line.Quantity = clamp(line.Quantity+delta, 1, line.Product.StockQuantity)
	return nil
}

// Remove удаляет строку без условий.
func (e *Engine) Remove(productID string) {
	if _, ok := e.lines[productID]; !ok {
		return
	}
	delete(e.lines, productID)
	for i, id := range e.order {
		if id == productID {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

// Clear очищает корзину.
func (e *Engine) Clear() {
	e.order = nil
	e.lines = make(map[string]*domain.CartLine)
}

// Reconcile сверяет корзину со свежим каталогом: обновляет снимки товаров,
// ограничивает количество новым остатком и убирает товары, которых в каталоге больше нет.
// Возвращает идентификаторы удалённых строк.
func (e *Engine) Reconcile(catalog []domain.PricedProduct) []string {
	fresh := make(map[string]domain.PricedProduct, len(catalog))
	for _, p := range catalog {
		fresh[p.ID] = p
	}

	var dropped []string
	for _, id := range append([]string(nil), e.order...) {
		p, ok := fresh[id]
		if !ok || p.StockQuantity < 1 {
			e.Remove(id)
			dropped = append(dropped, id)
			continue
		}
		line := e.lines[id]
		line.Product = p
		line.Quantity = clamp(line.Quantity, 1, p.StockQuantity)
	}
	return dropped
}

// Lines возвращает копию строк в порядке вставки.
func (e *Engine) Lines() []domain.CartLine {
	result := make([]domain.CartLine, 0, len(e.order))
	for _, id := range e.order {
		result = append(result, *e.lines[id])
	}
	return result
}

// Line возвращает строку по товару.
func (e *Engine) Line(productID string) (domain.CartLine, bool) {
	line, ok := e.lines[productID]
	if !ok {
		return domain.CartLine{}, false
	}
	return *line, true
}

// Total возвращает сумму displayPrice * quantity.
func (e *Engine) Total() decimal.Decimal {
	total := decimal.Zero
	for _, id := range e.order {
		total = total.Add(e.lines[id].LineTotal())
	}
	return total
}

// ItemCount возвращает сумму количеств.
func (e *Engine) ItemCount() int {
	n := 0
	for _, id := range e.order {
		n += e.lines[id].Quantity
	}
	return n
}

// Len возвращает число строк.
func (e *Engine) Len() int { return len(e.order) }

// IsEmpty сообщает, пуста ли корзина.
func (e *Engine) IsEmpty() bool { return len(e.order) == 0 }

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
