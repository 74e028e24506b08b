package service

import (
	"context"
	"fmt"

	"usdtshop/internal/model"
	"usdtshop/internal/repository"
	"usdtshop/pkg/idgen"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LedgerService 账本服务
// 所有余额变动的唯一入口：行锁读余额 -> 校验不为负 -> 写新余额 -> 追加
// 带余额快照的流水。同账户的并发变动被行锁串行化，快照因此严格有序。
type LedgerService struct {
	db          *gorm.DB
	accountRepo *repository.AccountRepository
	ledgerRepo  *repository.LedgerRepository
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{
		db:          db,
		accountRepo: repository.NewAccountRepository(db),
		ledgerRepo:  repository.NewLedgerRepository(db),
	}
}

// MutateBalance 在调用方事务内完成一次余额变动
// amount 正数入账、负数出账；出账导致余额为负时整个事务失败
func (s *LedgerService) MutateBalance(ctx context.Context, tx *gorm.DB, accountID int64, amount decimal.Decimal, kind, orderNo, memo string) (*model.LedgerEntry, error) {
	if tx == nil {
		tx = s.db
	}
	account, err := s.accountRepo.GetByIDForUpdate(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}

	newBalance := account.Balance.Add(amount)
	if newBalance.IsNegative() {
		return nil, repository.ErrBalanceNotEnough
	}

	if err := s.accountRepo.SetBalance(ctx, tx, accountID, newBalance); err != nil {
		return nil, err
	}

	entry := &model.LedgerEntry{
		EntryNo:      idgen.GenerateEntryNo(),
		AccountID:    accountID,
		OrderNo:      orderNo,
		Kind:         kind,
		Amount:       amount,
		BalanceAfter: newBalance,
		Memo:         memo,
	}
	if err := s.ledgerRepo.Create(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("记录流水失败: %w", err)
	}

	return entry, nil
}

// History 按提交顺序返回账户全部流水
func (s *LedgerService) History(ctx context.Context, accountID int64) ([]*model.LedgerEntry, error) {
	if _, err := s.accountRepo.GetByID(ctx, accountID); err != nil {
		return nil, err
	}
	return s.ledgerRepo.ListByAccountID(ctx, accountID)
}
