package repository

import (
	"context"
	"digital-shop/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CheckoutSessionRepository interface {
	Save(ctx context.Context, session *model.CheckoutSession) error
	FindByIntentID(ctx context.Context, intentID string) (*model.CheckoutSession, error)
}

type checkoutSessionRepoImpl struct {
	db *gorm.DB
}

func NewCheckoutSessionRepository(db *gorm.DB) CheckoutSessionRepository {
	return &checkoutSessionRepoImpl{
		db: db,
	}
}

// Save upserts on the intent id; a gateway that hands back an existing
// intent overwrites the older snapshot.
func (r *checkoutSessionRepoImpl) Save(ctx context.Context, session *model.CheckoutSession) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "intent_id"}},
		UpdateAll: true,
	}).Create(session).Error
}

func (r *checkoutSessionRepoImpl) FindByIntentID(ctx context.Context, intentID string) (*model.CheckoutSession, error) {
	var session model.CheckoutSession
	err := r.db.WithContext(ctx).
		Where("intent_id = ?", intentID).
		First(&session).Error

	if err != nil {
		return nil, err
	}

	return &session, nil
}
