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

// WithdrawalService 提现
// 申请即预扣：余额在创建事务里扣掉并记 WITHDRAWAL 流水，
// 运营确认不再动余额，驳回时返还并记 WITHDRAWAL_REVERSAL 流水
type WithdrawalService struct {
	db             *gorm.DB
	withdrawalRepo *repository.WithdrawalRepository
	settingRepo    *repository.SettingRepository
	ledger         *LedgerService
}

func NewWithdrawalService(db *gorm.DB) *WithdrawalService {
	return &WithdrawalService{
		db:             db,
		withdrawalRepo: repository.NewWithdrawalRepository(db),
		settingRepo:    repository.NewSettingRepository(db),
		ledger:         NewLedgerService(db),
	}
}

type CreateWithdrawalRequest struct {
	AccountID   int64
	Amount      decimal.Decimal
	Rail        string
	Destination string
}

// Create 提交提现申请
func (s *WithdrawalService) Create(ctx context.Context, req *CreateWithdrawalRequest) (*model.WithdrawalRequest, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrWithdrawalTooSmall
	}

	minAmount, err := s.settingRepo.GetDecimal(ctx, model.SettingKeyMinWithdrawal)
	if err != nil {
		return nil, fmt.Errorf("读取提现限额失败: %w", err)
	}
	if req.Amount.LessThan(minAmount) {
		return nil, ErrWithdrawalTooSmall
	}

	feePercent, err := s.settingRepo.GetDecimal(ctx, model.SettingKeyWithdrawalFeePercent)
	if err != nil {
		return nil, fmt.Errorf("读取提现手续费失败: %w", err)
	}

	fee := req.Amount.Mul(feePercent).Div(oneHundred).Round(4)
	withdrawal := &model.WithdrawalRequest{
		WithdrawalNo: idgen.GenerateWithdrawalNo(),
		AccountID:    req.AccountID,
		Amount:       req.Amount,
		Fee:          fee,
		NetAmount:    req.Amount.Sub(fee),
		Rail:         req.Rail,
		Destination:  req.Destination,
		Status:       model.WithdrawalStatusPending,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.withdrawalRepo.Create(ctx, tx, withdrawal); err != nil {
			return fmt.Errorf("创建提现申请失败: %w", err)
		}

		memo := fmt.Sprintf("提现预扣-%s", withdrawal.WithdrawalNo)
		_, err := s.ledger.MutateBalance(ctx, tx, req.AccountID, req.Amount.Neg(), model.LedgerKindWithdrawal, withdrawal.WithdrawalNo, memo)
		return err
	})
	if err != nil {
		return nil, err
	}

	return withdrawal, nil
}

// Confirm 运营确认出款完成
// 余额在申请时已扣，这里只迁移状态；重复确认第二次是无操作
func (s *WithdrawalService) Confirm(ctx context.Context, withdrawalNo string) (bool, error) {
	if _, err := s.withdrawalRepo.GetByNo(ctx, withdrawalNo); err != nil {
		return false, err
	}
	return s.withdrawalRepo.UpdateStatus(ctx, nil, withdrawalNo, model.WithdrawalStatusCompleted)
}

// Reject 运营驳回
// 状态迁移和余额返还同事务；守卫式更新保证重复驳回只返还一次
func (s *WithdrawalService) Reject(ctx context.Context, withdrawalNo string) (bool, error) {
	withdrawal, err := s.withdrawalRepo.GetByNo(ctx, withdrawalNo)
	if err != nil {
		return false, err
	}

	var won bool
	err = s.db.Transaction(func(tx *gorm.DB) error {
		won, err = s.withdrawalRepo.UpdateStatus(ctx, tx, withdrawalNo, model.WithdrawalStatusRejected)
		if err != nil {
			return err
		}
		if !won {
			return nil
		}

		memo := fmt.Sprintf("提现驳回返还-%s", withdrawalNo)
		_, err = s.ledger.MutateBalance(ctx, tx, withdrawal.AccountID, withdrawal.Amount, model.LedgerKindWithdrawalReversal, withdrawalNo, memo)
		return err
	})
	if err != nil {
		return false, err
	}
	return won, nil
}

func (s *WithdrawalService) List(ctx context.Context, accountID int64, page, pageSize int) ([]*model.WithdrawalRequest, int64, error) {
	return s.withdrawalRepo.ListByAccountID(ctx, accountID, page, pageSize)
}
