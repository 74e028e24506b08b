package repository

import (
	"context"
	"errors"

	"usdtshop/internal/model"

	"gorm.io/gorm"
)

var (
	ErrWithdrawalNotFound      = errors.New("提现申请不存在")
	ErrWithdrawalStatusInvalid = errors.New("提现申请状态不合法")
)

type WithdrawalRepository struct {
	db *gorm.DB
}

func NewWithdrawalRepository(db *gorm.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

func (r *WithdrawalRepository) Create(ctx context.Context, tx *gorm.DB, req *model.WithdrawalRequest) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(req).Error
}

func (r *WithdrawalRepository) GetByNo(ctx context.Context, withdrawalNo string) (*model.WithdrawalRequest, error) {
	var req model.WithdrawalRequest
	err := r.db.WithContext(ctx).Where("withdrawal_no = ?", withdrawalNo).First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, err
	}
	return &req, nil
}

// UpdateStatus 守卫式状态迁移，只允许从 PENDING 出发
// 条件更新保证运营重复点击时第二次 RowsAffected = 0
func (r *WithdrawalRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, withdrawalNo, toStatus string) (bool, error) {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.WithdrawalRequest{}).
		Where("withdrawal_no = ? AND status = ?", withdrawalNo, model.WithdrawalStatusPending).
		Update("status", toStatus)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *WithdrawalRepository) ListByAccountID(ctx context.Context, accountID int64, page, pageSize int) ([]*model.WithdrawalRequest, int64, error) {
	var requests []*model.WithdrawalRequest
	var total int64

	query := r.db.WithContext(ctx).Model(&model.WithdrawalRequest{}).Where("account_id = ?", accountID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&requests).Error

	return requests, total, err
}
