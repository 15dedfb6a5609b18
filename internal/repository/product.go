package repository

import (
	"context"
	"digital-shop/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductRepository interface {
	Seed(ctx context.Context) error
	FindByID(ctx context.Context, productID uint) (*model.Product, error)
	FindMany(ctx context.Context, productIDs []uint) ([]*model.Product, error)
	ListActive(ctx context.Context) ([]*model.Product, error)
	IncrementPurchaseCount(ctx context.Context, tx *gorm.DB, productID uint, quantity int) error
}

type productRepoImpl struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepoImpl{
		db: db,
	}
}

func (r *productRepoImpl) Seed(ctx context.Context) error {
	sale := int64(999)
	products := []model.Product{
		{ID: 1, Title: "Watercolour Brush Pack", Slug: "watercolour-brush-pack", PricePence: 1299, ProductType: model.ProductTypeDownload, FilePath: "brushes/watercolour.zip", DownloadLimit: 5, IsActive: true},
		{ID: 2, Title: "Lettering Practice Sheets", Slug: "lettering-practice-sheets", PricePence: 750, ProductType: model.ProductTypeDownload, FilePath: "sheets/lettering.pdf", DownloadLimit: 3, IsActive: true},
		{ID: 3, Title: "Colour Palette Guide", Slug: "colour-palette-guide", PricePence: 1500, SalePricePence: &sale, ProductType: model.ProductTypeResource, FilePath: "guides/palettes.pdf", IsActive: true},
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&products).Error
}

func (r *productRepoImpl) FindByID(ctx context.Context, productID uint) (*model.Product, error) {
	var product model.Product
	err := r.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", productID, true).
		First(&product).Error

	if err != nil {
		return nil, err
	}

	return &product, nil
}

// FindMany returns the products that still exist; unknown ids are skipped.
func (r *productRepoImpl) FindMany(ctx context.Context, productIDs []uint) ([]*model.Product, error) {
	products := []*model.Product{}
	if len(productIDs) == 0 {
		return products, nil
	}

	err := r.db.WithContext(ctx).
		Where("id IN ?", productIDs).
		Find(&products).
		Error

	if err != nil {
		return nil, err
	}

	return products, nil
}

func (r *productRepoImpl) ListActive(ctx context.Context) ([]*model.Product, error) {
	var products []*model.Product
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("id").
		Find(&products).
		Error

	if err != nil {
		return nil, err
	}

	return products, nil
}

func (r *productRepoImpl) IncrementPurchaseCount(ctx context.Context, tx *gorm.DB, productID uint, quantity int) error {
	return tx.WithContext(ctx).Model(&model.Product{}).
		Where("id = ?", productID).
		UpdateColumn("purchase_count", gorm.Expr("purchase_count + ?", quantity)).Error
}
