package repository

import (
	"context"
	"storecore/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductRepository interface {
	Seed(ctx context.Context) error
	FindByID(ctx context.Context, productID string) (*model.Product, error)
	FindMany(ctx context.Context, productIDs []string) ([]*model.Product, error)
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
	products := []model.Product{
		{ID: "tusker-500", Name: "Tusker Lager 500ml", Price: decimal.RequireFromString("250.00"), IsActive: true},
		{ID: "unga-2kg", Name: "Jogoo Maize Flour 2kg", Price: decimal.RequireFromString("180.00"), IsActive: true},
		{ID: "kiko-1l", Name: "Kimbo Cooking Fat 1kg", Price: decimal.RequireFromString("420.00"), IsActive: true},
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&products).Error
}

func (r *productRepoImpl) FindByID(ctx context.Context, productID string) (*model.Product, error) {
	var product model.Product
	err := r.db.WithContext(ctx).
		Where("id = ?", productID).
		First(&product).Error

	if err != nil {
		return nil, err
	}

	return &product, nil
}

func (r *productRepoImpl) FindMany(ctx context.Context, productIDs []string) ([]*model.Product, error) {
	var products []*model.Product
	err := r.db.WithContext(ctx).
		Where("id IN ? AND is_active = ?", productIDs, true).
		Find(&products).
		Error

	if err != nil {
		return nil, err
	}

	return products, nil
}

type BranchRepository interface {
	Seed(ctx context.Context, onlineBranchID string) error
	FindByID(ctx context.Context, branchID string) (*model.Branch, error)
	CountActive(ctx context.Context, branchIDs ...string) (int64, error)
}

type branchRepoImpl struct {
	db *gorm.DB
}

func NewBranchRepository(db *gorm.DB) BranchRepository {
	return &branchRepoImpl{db: db}
}

func (r *branchRepoImpl) Seed(ctx context.Context, onlineBranchID string) error {
	branches := []model.Branch{
		{ID: onlineBranchID, Name: "Online store", IsActive: true},
		{ID: "NBO-01", Name: "Nairobi CBD", IsActive: true},
		{ID: "MSA-01", Name: "Mombasa Nyali", IsActive: true},
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&branches).Error
}

func (r *branchRepoImpl) FindByID(ctx context.Context, branchID string) (*model.Branch, error) {
	var branch model.Branch
	err := r.db.WithContext(ctx).
		Where("id = ?", branchID).
		First(&branch).Error
	if err != nil {
		return nil, err
	}
	return &branch, nil
}

// CountActive counts how many of the distinct given ids are active branches.
func (r *branchRepoImpl) CountActive(ctx context.Context, branchIDs ...string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Branch{}).
		Where("id IN ? AND is_active = ?", branchIDs, true).
		Count(&count).Error

	return count, err
}
