package repository

import (
	"context"
	"digital-shop/internal/model"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrDuplicatePaymentReference reports that an order already exists for the
// payment reference. The unique index on payment_reference is what makes order
// materialization idempotent.
var ErrDuplicatePaymentReference = errors.New("duplicate payment reference")

type OrderRepository interface {
	Create(ctx context.Context, tx *gorm.DB, order *model.Order) error
	FindByPaymentReference(ctx context.Context, tx *gorm.DB, paymentReference string) (*model.Order, error)
	FindByOrderID(ctx context.Context, orderID string) (*model.Order, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Order, error)
	PromotePending(ctx context.Context, tx *gorm.DB, paymentReference string) (bool, error)
	MarkFailed(ctx context.Context, tx *gorm.DB, paymentReference string) (bool, error)
	GetOrderItem(ctx context.Context, orderItemID uint) (*model.OrderItem, error)
	ConsumeDownload(ctx context.Context, orderItemID uint) (int, bool, error)
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{
		db: db,
	}
}

// Create inserts the order together with its items.
func (r *orderRepoImpl) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	err := tx.WithContext(ctx).Create(order).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicatePaymentReference
	}
	return err
}

// FindByPaymentReference reads through tx when given, otherwise the pool.
func (r *orderRepoImpl) FindByPaymentReference(ctx context.Context, tx *gorm.DB, paymentReference string) (*model.Order, error) {
	if tx == nil {
		tx = r.db
	}

	var order model.Order
	err := tx.WithContext(ctx).
		Preload("Items").
		Where("payment_reference = ?", paymentReference).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) FindByOrderID(ctx context.Context, orderID string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("Items.Product").
		Where("order_id = ?", orderID).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) ListByUser(ctx context.Context, userID string) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Preload("Items.Product").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&orders).Error

	if err != nil {
		return nil, err
	}

	return orders, nil
}

// PromotePending moves a pending order to completed and paid. It reports
// whether this call performed the transition.
func (r *orderRepoImpl) PromotePending(ctx context.Context, tx *gorm.DB, paymentReference string) (bool, error) {
	result := tx.WithContext(ctx).Model(&model.Order{}).
		Where("payment_reference = ? AND status = ?", paymentReference, model.OrderStatusPending).
		Updates(map[string]interface{}{
			"status":     model.OrderStatusCompleted,
			"paid":       true,
			"updated_at": time.Now(),
		})

	return result.RowsAffected > 0, result.Error
}

// MarkFailed only touches pending orders; completed orders are final.
func (r *orderRepoImpl) MarkFailed(ctx context.Context, tx *gorm.DB, paymentReference string) (bool, error) {
	result := tx.WithContext(ctx).Model(&model.Order{}).
		Where("payment_reference = ? AND status = ?", paymentReference, model.OrderStatusPending).
		Updates(map[string]interface{}{
			"status":     model.OrderStatusFailed,
			"updated_at": time.Now(),
		})

	return result.RowsAffected > 0, result.Error
}

func (r *orderRepoImpl) GetOrderItem(ctx context.Context, orderItemID uint) (*model.OrderItem, error) {
	var item model.OrderItem
	err := r.db.WithContext(ctx).
		Preload("Order").
		Preload("Product").
		Where("id = ?", orderItemID).
		First(&item).Error

	if err != nil {
		return nil, err
	}

	return &item, nil
}

// ConsumeDownload counts one download with a single conditional update, so
// concurrent requests can never push download_count past downloads_remaining.
// The count is read back under the same row lock; the returned int is what is
// left after this download. It returns false when the limit is already reached.
func (r *orderRepoImpl) ConsumeDownload(ctx context.Context, orderItemID uint) (int, bool, error) {
	var (
		remaining int
		consumed  bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.OrderItem{}).
			Where("id = ? AND download_count < downloads_remaining", orderItemID).
			UpdateColumn("download_count", gorm.Expr("download_count + 1"))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected != 1 {
			return nil
		}
		consumed = true

		var item model.OrderItem
		if err := tx.Select("id", "downloads_remaining", "download_count").First(&item, orderItemID).Error; err != nil {
			return err
		}
		remaining = item.RemainingDownloads()
		return nil
	})
	if err != nil {
		return 0, false, err
	}

	return remaining, consumed, nil
}
