package repository

import (
	"context"
	"digital-shop/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PurchaseRepository interface {
	Upsert(ctx context.Context, tx *gorm.DB, purchase *model.Purchase) error
	ListByUser(ctx context.Context, userID string) ([]*model.Purchase, error)
}

type purchaseRepoImpl struct {
	db *gorm.DB
}

func NewPurchaseRepository(db *gorm.DB) PurchaseRepository {
	return &purchaseRepoImpl{
		db: db,
	}
}

// Upsert adds the purchased quantity to what the user already owns.
func (r *purchaseRepoImpl) Upsert(ctx context.Context, tx *gorm.DB, purchase *model.Purchase) error {
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity":   gorm.Expr("purchases.quantity + ?", purchase.Quantity),
			"updated_at": time.Now(),
		}),
	}).Create(purchase).Error
}

func (r *purchaseRepoImpl) ListByUser(ctx context.Context, userID string) ([]*model.Purchase, error) {
	var purchases []*model.Purchase

	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("user_id = ?", userID).
		Order("created_at, product_id").
		Find(&purchases).Error
	if err != nil {
		return nil, err
	}

	return purchases, nil
}
