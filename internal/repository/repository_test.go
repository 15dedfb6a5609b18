package repository

import (
	"context"
	"digital-shop/internal/client"
	"digital-shop/internal/model"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := client.InitDBClient("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	return db
}

func seedProduct(t *testing.T, db *gorm.DB, p *model.Product) *model.Product {
	t.Helper()
	if p.Slug == "" {
		p.Slug = p.Title
	}
	p.IsActive = true
	require.NoError(t, db.Create(p).Error)
	return p
}

func newOrder(ref string, userID *string, items ...model.OrderItem) *model.Order {
	return &model.Order{
		OrderID:          "ORD-" + ref,
		UserID:           userID,
		Email:            "buyer@example.com",
		Paid:             true,
		Status:           model.OrderStatusCompleted,
		PaymentReference: ref,
		Items:            items,
	}
}

func ptr[T any](v T) *T {
	return &v
}

func mustCreateOrder(t *testing.T, db *gorm.DB, repo OrderRepository, order *model.Order) {
	t.Helper()
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return repo.Create(context.Background(), tx, order)
	}))
}
