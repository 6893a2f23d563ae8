package domain

// Seller описывает продавца (вендора), от имени которого работает касса.
type Seller struct {
	ID          string
	DisplayName string
	Active      bool
}

// SellerContext — продавец, разрешённый один раз на сессию кассы и зафиксированный до её конца.
type SellerContext struct {
	SellerID    string
	DisplayName string
	// ActorID: пользователь, который фактически работает с кассой.
	ActorID string
	// Override выставлен, когда администратор действует от имени продавца.
	Override bool
}

// Resolved сообщает, определён ли продавец.
func (c SellerContext) Resolved() bool {
	return c.SellerID != ""
}
