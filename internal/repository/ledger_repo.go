package repository

import (
	"context"
	"errors"

	"usdtshop/internal/model"

	"gorm.io/gorm"
)

type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Create 追加一条流水，流水只增不改
func (r *LedgerRepository) Create(ctx context.Context, tx *gorm.DB, entry *model.LedgerEntry) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(entry).Error
}

// GetByOrderNoAndKind 按单号和类型查流水，幂等检查用
func (r *LedgerRepository) GetByOrderNoAndKind(ctx context.Context, orderNo, kind string) (*model.LedgerEntry, error) {
	var entry model.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("order_no = ? AND kind = ?", orderNo, kind).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// ListByAccountID 按提交顺序返回账户流水
func (r *LedgerRepository) ListByAccountID(ctx context.Context, accountID int64) ([]*model.LedgerEntry, error) {
	var entries []*model.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("id ASC").
		Find(&entries).Error
	return entries, err
}
