package service

import (
	"context"
	"encoding/json"
	"fmt"

	"usdtshop/internal/config"
	"usdtshop/internal/model"
	"usdtshop/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	ReferralKindPurchase = "PURCHASE" // 消费触发
	ReferralKindTopup    = "TOPUP"    // 充值触发
)

// ReferralService 推荐返佣
// 返佣在触发交易提交之后另起事务执行，失败只记日志重试，
// 绝不反向影响买家侧已提交的支付
type ReferralService struct {
	db          *gorm.DB
	cfg         *config.Config
	accountRepo *repository.AccountRepository
	settingRepo *repository.SettingRepository
	ledgerRepo  *repository.LedgerRepository
	outboxRepo  *repository.OutboxRepository
	ledger      *LedgerService
}

func NewReferralService(db *gorm.DB, cfg *config.Config) *ReferralService {
	return &ReferralService{
		db:          db,
		cfg:         cfg,
		accountRepo: repository.NewAccountRepository(db),
		settingRepo: repository.NewSettingRepository(db),
		ledgerRepo:  repository.NewLedgerRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
		ledger:      NewLedgerService(db),
	}
}

// ApplyReferralBonus 给买家的推荐人发返佣
// 无推荐人或返佣四舍五入后为零则什么都不做；只付一跳，
// 推荐链更深的层级不参与分成
func (s *ReferralService) ApplyReferralBonus(ctx context.Context, buyerID int64, amount decimal.Decimal, kind, orderNo string) error {
	buyer, err := s.accountRepo.GetByID(ctx, buyerID)
	if err != nil {
		return err
	}
	if buyer.ReferrerID == nil {
		return nil
	}

	bonusPercent, err := s.settingRepo.GetDecimal(ctx, model.SettingKeyReferralBonusPercent)
	if err != nil {
		return fmt.Errorf("读取返佣比例失败: %w", err)
	}

	bonus := amount.Mul(bonusPercent).Div(oneHundred).Round(4)
	if !bonus.IsPositive() {
		return nil
	}

	// 同一单号重复触发时只入账一次
	existing, err := s.ledgerRepo.GetByOrderNoAndKind(ctx, orderNo, model.LedgerKindReferralPayout)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	referrerID := *buyer.ReferrerID
	memo := fmt.Sprintf("推荐返佣-%s-来自%s", kind, buyer.Contact)

	return s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.ledger.MutateBalance(ctx, tx, referrerID, bonus, model.LedgerKindReferralPayout, orderNo, memo); err != nil {
			return err
		}

		payload, _ := json.Marshal(map[string]interface{}{
			"referrer_id": referrerID,
			"buyer":       buyer.Contact,
			"kind":        kind,
			"order_no":    orderNo,
			"bonus":       bonus.String(),
		})
		outboxMsg := &model.OutboxMessage{
			MessageKey: orderNo,
			Topic:      s.cfg.Kafka.Topic.ReferralNotify,
			Payload:    string(payload),
			Status:     model.OutboxStatusPending,
		}
		return s.outboxRepo.Create(ctx, tx, outboxMsg)
	})
}
