package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProductType string

const (
	ProductTypeDownload ProductType = "download" // metered digital download
	ProductTypeResource ProductType = "resource" // unlimited downloads
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type Product struct {
	ID             uint        `gorm:"primaryKey"`
	Title          string      `gorm:"size:200;not null"`
	Slug           string      `gorm:"size:200;uniqueIndex;not null"`
	PricePence     int64       `gorm:"not null"`
	SalePricePence *int64      // optional, overrides PricePence while set
	ProductType    ProductType `gorm:"size:20;not null;default:download"`
	FilePath       string      `gorm:"size:255"` // relative to the secure media root
	DownloadLimit  int         `gorm:"not null;default:5"`
	PurchaseCount  int         `gorm:"not null;default:0"`
	IsActive       bool        `gorm:"not null;default:true"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CurrentPrice is the applicable unit price in major units.
func (p *Product) CurrentPrice() decimal.Decimal {
	pence := p.PricePence
	if p.SalePricePence != nil && *p.SalePricePence > 0 {
		pence = *p.SalePricePence
	}
	return decimal.New(pence, -2)
}

func (p *Product) IsMetered() bool {
	return p.ProductType == ProductTypeDownload
}

type Order struct {
	ID               uint        `gorm:"primaryKey"`
	OrderID          string      `gorm:"size:32;uniqueIndex;not null"`
	UserID           *string     `gorm:"size:64;index"` // nil for guest checkouts
	Email            string      `gorm:"size:254;not null"`
	Paid             bool        `gorm:"not null;default:false"`
	Status           OrderStatus `gorm:"size:20;index;not null"`
	PaymentReference string      `gorm:"size:255;uniqueIndex;not null"` // gateway transaction id
	Items            []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TotalMinor sums the snapshotted line prices.
func (o *Order) TotalMinor() int64 {
	var total int64
	for _, item := range o.Items {
		total += item.UnitPricePaid * int64(item.Quantity)
	}
	return total
}

func (o *Order) OwnedBy(userID string) bool {
	return o.UserID != nil && *o.UserID == userID
}

type OrderItem struct {
	ID                 uint     `gorm:"primaryKey"`
	OrderID            uint     `gorm:"index;not null"`
	Order              *Order   `gorm:"foreignKey:OrderID"`
	ProductID          uint     `gorm:"index;not null"`
	Product            *Product `gorm:"foreignKey:ProductID"`
	UnitPricePaid      int64    `gorm:"not null"` // minor units, immutable
	Quantity           int      `gorm:"not null;default:1"`
	DownloadsRemaining int      `gorm:"not null;default:5"`
	DownloadCount      int      `gorm:"not null;default:0"`
	CreatedAt          time.Time
}

func (i *OrderItem) RemainingDownloads() int {
	if left := i.DownloadsRemaining - i.DownloadCount; left > 0 {
		return left
	}
	return 0
}

// CheckoutLine is the price/quantity snapshot taken from the cart at checkout.
type CheckoutLine struct {
	ProductID      uint  `json:"product_id"`
	Quantity       int   `json:"quantity"`
	UnitPricePence int64 `json:"unit_price_pence"`
}

// CheckoutSession binds a gateway intent to the buyer and cart it was created for.
type CheckoutSession struct {
	IntentID    string         `gorm:"primaryKey;size:255"`
	Provider    string         `gorm:"size:32;not null"`
	SessionID   string         `gorm:"size:64;index"`
	UserID      *string        `gorm:"size:64;index"`
	Email       string         `gorm:"size:254"`
	Currency    string         `gorm:"size:8;not null"`
	AmountMinor int64          `gorm:"not null"`
	Lines       []CheckoutLine `gorm:"serializer:json;type:text"`
	CreatedAt   time.Time
}

func (s *CheckoutSession) IsGuest() bool {
	return s.UserID == nil
}

type WebhookEvent struct {
	EventID     string `gorm:"primaryKey;size:128;not null"`
	EventType   string `gorm:"size:64;index"`
	ProcessedAt time.Time
	CreatedAt   time.Time
}

type Purchase struct {
	UserID    string   `gorm:"primaryKey;size:64"`
	ProductID uint     `gorm:"primaryKey"`
	Product   *Product `gorm:"foreignKey:ProductID"`
	Quantity  int      `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
