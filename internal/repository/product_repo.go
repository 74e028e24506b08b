package repository

import (
	"context"
	"errors"

	"usdtshop/internal/model"

	"gorm.io/gorm"
)

var (
	ErrProductNotFound = errors.New("商品不存在")
	ErrStockNotEnough  = errors.New("库存不足")
)

type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) Create(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	var product model.Product
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (r *ProductRepository) List(ctx context.Context, onSaleOnly bool) ([]*model.Product, error) {
	var products []*model.Product
	query := r.db.WithContext(ctx).Model(&model.Product{})
	if onSaleOnly {
		query = query.Where("on_sale = ?", true)
	}
	err := query.Order("id ASC").Find(&products).Error
	return products, err
}

func (r *ProductRepository) Update(ctx context.Context, product *model.Product) error {
	result := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ?", product.ID).
		Updates(map[string]interface{}{
			"title":   product.Title,
			"kind":    product.Kind,
			"price":   product.Price,
			"stock":   product.Stock,
			"on_sale": product.OnSale,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *ProductRepository) Delete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Product{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// DecrementStock 条件扣减库存
// WHERE stock >= ? 保证并发下单不会超卖，扣减与订单创建同事务，
// 事务回滚时库存自然恢复
func (r *ProductRepository) DecrementStock(ctx context.Context, tx *gorm.DB, id int64, quantity int) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ? AND stock >= ?", id, quantity).
		Update("stock", gorm.Expr("stock - ?", quantity))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStockNotEnough
	}
	return nil
}
