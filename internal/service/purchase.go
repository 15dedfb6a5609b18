package service

import (
	"context"
	"digital-shop/internal/dto"
	"digital-shop/internal/model"
	"digital-shop/internal/repository"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

type PurchaseService interface {
	ListOrders(ctx context.Context, userID string) ([]*dto.Order, error)
	GetOrder(ctx context.Context, buyer *model.Buyer, orderID string) (*dto.Order, error)
	Library(ctx context.Context, userID string) ([]*dto.LibraryEntry, error)
	Catalog(ctx context.Context) ([]*dto.Product, error)
}

type purchaseServiceImpl struct {
	productRepo  repository.ProductRepository
	orderRepo    repository.OrderRepository
	purchaseRepo repository.PurchaseRepository
}

func NewPurchaseService(
	productRepo repository.ProductRepository,
	orderRepo repository.OrderRepository,
	purchaseRepo repository.PurchaseRepository,
) PurchaseService {
	return &purchaseServiceImpl{
		productRepo:  productRepo,
		orderRepo:    orderRepo,
		purchaseRepo: purchaseRepo,
	}
}

func (s *purchaseServiceImpl) ListOrders(ctx context.Context, userID string) ([]*dto.Order, error) {
	orders, err := s.orderRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	out := make([]*dto.Order, 0, len(orders))
	for _, order := range orders {
		out = append(out, ToOrderDTO(order))
	}
	return out, nil
}

// GetOrder hides other users' orders behind ErrOrderNotFound unless the
// buyer is staff.
func (s *purchaseServiceImpl) GetOrder(ctx context.Context, buyer *model.Buyer, orderID string) (*dto.Order, error) {
	order, err := s.orderRepo.FindByOrderID(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}

	staff := buyer != nil && buyer.Staff
	if !staff && (buyer.IsGuest() || !order.OwnedBy(buyer.UserID)) {
		return nil, ErrOrderNotFound
	}
	return ToOrderDTO(order), nil
}

func (s *purchaseServiceImpl) Library(ctx context.Context, userID string) ([]*dto.LibraryEntry, error) {
	purchases, err := s.purchaseRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}

	out := make([]*dto.LibraryEntry, 0, len(purchases))
	for _, p := range purchases {
		entry := &dto.LibraryEntry{ProductID: p.ProductID, Quantity: p.Quantity}
		if p.Product != nil {
			entry.Title = p.Product.Title
			entry.Slug = p.Product.Slug
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *purchaseServiceImpl) Catalog(ctx context.Context) ([]*dto.Product, error) {
	products, err := s.productRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	out := make([]*dto.Product, 0, len(products))
	for _, p := range products {
		out = append(out, &dto.Product{
			ID:          p.ID,
			Title:       p.Title,
			Slug:        p.Slug,
			Price:       p.CurrentPrice().StringFixed(2),
			ProductType: string(p.ProductType),
		})
	}
	return out, nil
}

// ToOrderDTO renders an order for API responses.
func ToOrderDTO(order *model.Order) *dto.Order {
	out := &dto.Order{
		OrderID:    order.OrderID,
		Email:      order.Email,
		Status:     string(order.Status),
		Paid:       order.Paid,
		TotalMinor: order.TotalMinor(),
		Items:      make([]dto.OrderItem, 0, len(order.Items)),
		CreatedAt:  order.CreatedAt,
	}
	for _, item := range order.Items {
		line := dto.OrderItem{
			ID:                 item.ID,
			ProductID:          item.ProductID,
			Quantity:           item.Quantity,
			UnitPricePaid:      item.UnitPricePaid,
			DownloadsRemaining: item.RemainingDownloads(),
		}
		if item.Product != nil {
			line.Title = item.Product.Title
			line.Unlimited = !item.Product.IsMetered()
		}
		out.Items = append(out.Items, line)
	}
	return out
}
