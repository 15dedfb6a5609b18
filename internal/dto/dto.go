package dto

import "time"

type CartItemRequest struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
	Override  bool `json:"override"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

type CartLine struct {
	ProductID uint   `json:"product_id"`
	Title     string `json:"title"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

type CartResponse struct {
	Items     []CartLine `json:"items"`
	ItemCount int        `json:"item_count"`
	Total     string     `json:"total"`
}

type CheckoutRequest struct {
	Email string `json:"email"`
}

type CheckoutResponse struct {
	IntentID       string `json:"intent_id"`
	ClientSecret   string `json:"client_secret"`
	AmountMinor    int64  `json:"amount_minor"`
	Currency       string `json:"currency"`
	PublishableKey string `json:"publishable_key,omitempty"`
	Provider       string `json:"provider"`
}

type OrderItem struct {
	ID                 uint   `json:"id"`
	ProductID          uint   `json:"product_id"`
	Title              string `json:"title,omitempty"`
	Quantity           int    `json:"quantity"`
	UnitPricePaid      int64  `json:"unit_price_paid"`
	DownloadsRemaining int    `json:"downloads_remaining"`
	Unlimited          bool   `json:"unlimited"`
}

type Order struct {
	OrderID    string      `json:"order_id"`
	Email      string      `json:"email"`
	Status     string      `json:"status"`
	Paid       bool        `json:"paid"`
	TotalMinor int64       `json:"total_minor"`
	Items      []OrderItem `json:"items"`
	CreatedAt  time.Time   `json:"created_at"`
}

type LibraryEntry struct {
	ProductID uint   `json:"product_id"`
	Title     string `json:"title"`
	Slug      string `json:"slug"`
	Quantity  int    `json:"quantity"`
}

type Product struct {
	ID          uint   `json:"id"`
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	Price       string `json:"price"`
	ProductType string `json:"product_type"`
}

// Capability grants one delivery of a purchased file.
type Capability struct {
	Path        string
	Filename    string
	ContentType string
	Remaining   int // -1 when unmetered
}
