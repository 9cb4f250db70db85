package model

import "time"

type CartItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type Cart struct {
	ID           string     `json:"id"`
	Items        []CartItem `json:"items"`
	PromoApplied bool       `json:"promo_applied"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type CartLine struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Image     string  `json:"image"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	LineTotal float64 `json:"line_total"`
}

type CartSummary struct {
	CartID       string     `json:"cart_id"`
	Lines        []CartLine `json:"lines"`
	ItemCount    int        `json:"item_count"`
	Subtotal     float64    `json:"subtotal"`
	Discount     float64    `json:"discount"`
	Shipping     float64    `json:"shipping"`
	FreeShipping bool       `json:"free_shipping"`
	Tax          float64    `json:"tax"`
	Total        float64    `json:"total"`
	PromoApplied bool       `json:"promo_applied"`
}

type UpdateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type PromoRequest struct {
	Code string `json:"code" binding:"required"`
}
