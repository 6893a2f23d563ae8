package httpapi

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/service/terminal"
)

type openSessionRequest struct {
	// SellerID: продавец, за которого работает администратор. Для остальных ролей пусто.
	SellerID string `json:"seller_id"`
}

type switchSellerRequest struct {
	SellerID string `json:"seller_id" binding:"required"`
}

type addItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
}

type adjustItemRequest struct {
	Delta int `json:"delta" binding:"required"`
}

type checkoutRequest struct {
	BuyerID       string `json:"buyer_id"`
	PaymentMethod string `json:"payment_method" binding:"required"`
}

type sellerDTO struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Override    bool   `json:"override"`
}

type sessionDTO struct {
	ID       string    `json:"id"`
	UserID   string    `json:"user_id"`
	Seller   sellerDTO `json:"seller"`
	OpenedAt time.Time `json:"opened_at"`
	Settling bool      `json:"settling"`
	Cart     cartDTO   `json:"cart"`
}

type productDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	SKU        string `json:"sku,omitempty"`
	ImageURL   string `json:"image_url,omitempty"`
	Stock      int    `json:"stock"`
	BasePrice  string `json:"base_price"`
	Commission string `json:"commission"`
	VAT        string `json:"vat"`
	Price      string `json:"price"`
}

type cartLineDTO struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

type cartDTO struct {
	SellerID  string        `json:"seller_id"`
	Lines     []cartLineDTO `json:"lines"`
	ItemCount int           `json:"item_count"`
	Total     string        `json:"total"`
}

type orderDTO struct {
	ID            string    `json:"id"`
	Reference     string    `json:"reference"`
	SellerID      string    `json:"seller_id"`
	SellerName    string    `json:"seller_name"`
	BuyerID       string    `json:"buyer_id,omitempty"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	PaymentMethod string    `json:"payment_method"`
	ItemCount     int       `json:"item_count"`
	Subtotal      string    `json:"subtotal"`
	Commission    string    `json:"commission"`
	VAT           string    `json:"vat"`
	Total         string    `json:"total"`
	Currency      string    `json:"currency"`
	CreatedAt     time.Time `json:"created_at"`
	ReceiptURL    string    `json:"receipt_url"`
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func toSessionDTO(s *terminal.Session) sessionDTO {
	seller := s.Seller()
	return sessionDTO{
		ID:       s.ID,
		UserID:   s.Principal.UserID,
		Seller:   sellerDTO{ID: seller.SellerID, DisplayName: seller.DisplayName, Override: seller.Override},
		OpenedAt: s.OpenedAt,
		Settling: s.Settling(),
		Cart:     toCartDTO(s.Cart()),
	}
}

func toCatalogDTO(products []domain.PricedProduct) []productDTO {
	out := make([]productDTO, 0, len(products))
	for _, p := range products {
		out = append(out, productDTO{
			ID:         p.ID,
			Name:       p.Name,
			SKU:        p.SKU,
			ImageURL:   p.ImageURL,
			Stock:      p.StockQuantity,
			BasePrice:  money(p.Pricing.Base),
			Commission: money(p.Pricing.Commission),
			VAT:        money(p.Pricing.VAT),
			Price:      money(p.DisplayPrice()),
		})
	}
	return out
}

func toCartDTO(view terminal.CartView) cartDTO {
	lines := make([]cartLineDTO, 0, len(view.Lines))
	for _, l := range view.Lines {
		lines = append(lines, cartLineDTO{
			ProductID: l.Product.ID,
			Name:      l.Product.Name,
			Quantity:  l.Quantity,
			UnitPrice: money(l.Product.DisplayPrice()),
			LineTotal: money(l.LineTotal()),
		})
	}
	return cartDTO{
		SellerID:  view.SellerID,
		Lines:     lines,
		ItemCount: view.ItemCount,
		Total:     money(view.Total),
	}
}

func toOrderDTO(o domain.Order) orderDTO {
	return orderDTO{
		ID:            o.ID,
		Reference:     o.Reference,
		SellerID:      o.SellerID,
		SellerName:    o.SellerName,
		BuyerID:       o.BuyerID,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		PaymentMethod: string(o.PaymentMethod),
		ItemCount:     o.ItemCount(),
		Subtotal:      money(o.Subtotal),
		Commission:    money(o.CommissionAmount),
		VAT:           money(o.VATAmount),
		Total:         money(o.Total),
		Currency:      o.Currency,
		CreatedAt:     o.CreatedAt,
		ReceiptURL:    "/v1/orders/" + o.ID + "/receipt",
	}
}
