package repository

import (
	"context"
	"errors"

	"usdtshop/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAccountNotFound  = errors.New("账户不存在")
	ErrBalanceNotEnough = errors.New("余额不足")
	ErrContactTaken     = errors.New("联系方式已被注册")
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, account *model.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepository) GetByContact(ctx context.Context, contact string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).Where("contact = ?", contact).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepository) GetByReferralCode(ctx context.Context, code string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).Where("referral_code = ?", code).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// GetByIDForUpdate 行锁读取账户
// 所有资金操作必须先拿行锁再读余额，保证同账户的读改写串行化，
// 流水的余额快照因此与提交顺序严格一致
func (r *AccountRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*model.Account, error) {
	query := tx.WithContext(ctx)
	// sqlite 整库写锁天然串行化，且不认识 FOR UPDATE 语法
	if tx.Dialector.Name() != "sqlite" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var account model.Account
	err := query.Where("id = ?", id).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// SetBalance 在持有行锁的事务内写入新余额
// 余额不允许为负，调用方必须已经用 GetByIDForUpdate 读过当前值
func (r *AccountRepository) SetBalance(ctx context.Context, tx *gorm.DB, id int64, balance decimal.Decimal) error {
	if balance.IsNegative() {
		return ErrBalanceNotEnough
	}
	result := tx.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ?", id).
		Update("balance", balance)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}
