package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"usdtshop/internal/config"
	"usdtshop/internal/model"
	"usdtshop/internal/repository"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 危险操作名
const (
	DangerOpWipeTransactions = "WIPE_TRANSACTIONS" // 清空订单/流水/提现表
	DangerOpFullReset        = "FULL_RESET"        // 连账户和商品一起清
)

// OperatorService 运营决策处理
// 所有决策都以当前状态为准做幂等判断，运营连点两次控件时
// 第二次落在守卫条件之外，自然变成无操作
type OperatorService struct {
	db            *gorm.DB
	redisClient   *redis.Client
	cfg           *config.Config
	orderRepo     *repository.OrderRepository
	productRepo   *repository.ProductRepository
	settingRepo   *repository.SettingRepository
	finalize      *FinalizeService
	withdrawalSvc *WithdrawalService
	ledger        *LedgerService
}

func NewOperatorService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *OperatorService {
	return &OperatorService{
		db:            db,
		redisClient:   redisClient,
		cfg:           cfg,
		orderRepo:     repository.NewOrderRepository(db),
		productRepo:   repository.NewProductRepository(db),
		settingRepo:   repository.NewSettingRepository(db),
		finalize:      NewFinalizeService(db, cfg),
		withdrawalSvc: NewWithdrawalService(db),
		ledger:        NewLedgerService(db),
	}
}

// ConfirmPayment 人工确认收款
// 与对账路径共用同一个幂等迁移；现金轨收款金额不进系统，
// 不传实收金额即不做多付判断
func (s *OperatorService) ConfirmPayment(ctx context.Context, orderNo string) (bool, error) {
	return s.finalize.MarkOrderPaid(ctx, orderNo, nil, FinalizeSourceOperator)
}

// RejectPayment 驳回买家凭证
// 清空凭证引用并退回待支付，买家可重新上传；不动任何余额。
// 订单不在审核中（连点第二次、或凭证还没传）时返回 false 的无操作
func (s *OperatorService) RejectPayment(ctx context.Context, orderNo string) (bool, error) {
	if _, err := s.orderRepo.GetByOrderNo(ctx, nil, orderNo); err != nil {
		return false, err
	}
	return s.orderRepo.ClearEvidence(ctx, orderNo)
}

// CloseOrder 运营关闭待支付订单
// 与买家取消一样走守卫式状态机，只允许从 PENDING 出发
func (s *OperatorService) CloseOrder(ctx context.Context, orderNo string) error {
	if _, err := s.orderRepo.GetByOrderNo(ctx, nil, orderNo); err != nil {
		return err
	}
	return s.orderRepo.UpdateStatus(ctx, nil, orderNo, model.OrderStatusPending, model.OrderStatusClosed)
}

// AdjustBalance 运营手工调整余额
// 正数补入、负数扣减，走统一的资金入口并记 ADJUSTMENT 流水；
// 扣减导致余额为负时整体失败
func (s *OperatorService) AdjustBalance(ctx context.Context, accountID int64, amount decimal.Decimal, memo string) (*model.LedgerEntry, error) {
	if amount.IsZero() {
		return nil, ErrInvalidAdjustment
	}

	var entry *model.LedgerEntry
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var terr error
		entry, terr = s.ledger.MutateBalance(ctx, tx, accountID, amount, model.LedgerKindAdjustment, "", memo)
		return terr
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[OperatorService] 余额调整: accountID=%d, amount=%s, memo=%s", accountID, amount, memo)
	return entry, nil
}

// ConfirmWithdrawal 确认提现出款
func (s *OperatorService) ConfirmWithdrawal(ctx context.Context, withdrawalNo string) (bool, error) {
	return s.withdrawalSvc.Confirm(ctx, withdrawalNo)
}

// RejectWithdrawal 驳回提现并返还预扣金额
func (s *OperatorService) RejectWithdrawal(ctx context.Context, withdrawalNo string) (bool, error) {
	return s.withdrawalSvc.Reject(ctx, withdrawalNo)
}

// UploadPaymentCode 给现金轨订单挂收款码引用
func (s *OperatorService) UploadPaymentCode(ctx context.Context, orderNo, codeRef string) error {
	return s.orderRepo.SetPaymentCode(ctx, orderNo, codeRef)
}

// MarkShipped 实物订单发货
func (s *OperatorService) MarkShipped(ctx context.Context, orderNo string) error {
	return s.orderRepo.UpdateStatus(ctx, nil, orderNo, model.OrderStatusPaid, model.OrderStatusShipped)
}

// UpdateSetting 更新业务配置，下一次定价/对账读取即生效
func (s *OperatorService) UpdateSetting(ctx context.Context, key, value string) error {
	switch key {
	case model.SettingKeyRate, model.SettingKeyFiatFeePercent, model.SettingKeyReceivingAddress,
		model.SettingKeyReferralBonusPercent, model.SettingKeyMinWithdrawal, model.SettingKeyWithdrawalFeePercent:
	default:
		return repository.ErrSettingNotFound
	}
	return s.settingRepo.Set(ctx, key, value)
}

// ============================================================
// 商品管理
// ============================================================

func (s *OperatorService) CreateProduct(ctx context.Context, product *model.Product) error {
	if product.Kind == "" {
		product.Kind = model.ProductKindGoods
	}
	return s.productRepo.Create(ctx, product)
}

func (s *OperatorService) UpdateProduct(ctx context.Context, product *model.Product) error {
	return s.productRepo.Update(ctx, product)
}

func (s *OperatorService) DeleteProduct(ctx context.Context, id int64) error {
	return s.productRepo.Delete(ctx, id)
}

// ============================================================
// 危险操作：两步确认
// ============================================================

// RequestDanger 第一步：签发一次性确认口令（5分钟有效）
// 口令放 redis，执行时验证并删除，防止单次误触直接清库
func (s *OperatorService) RequestDanger(ctx context.Context, op string) (string, error) {
	if op != DangerOpWipeTransactions && op != DangerOpFullReset {
		return "", fmt.Errorf("未知的危险操作: %s", op)
	}
	token := uuid.NewString()
	key := fmt.Sprintf("danger:confirm:%s", op)
	if err := s.redisClient.Set(ctx, key, token, 5*time.Minute).Err(); err != nil {
		return "", fmt.Errorf("签发确认口令失败: %w", err)
	}
	return token, nil
}

// ExecuteDanger 第二步：携带口令执行
func (s *OperatorService) ExecuteDanger(ctx context.Context, op, token string) error {
	key := fmt.Sprintf("danger:confirm:%s", op)
	stored, err := s.redisClient.Get(ctx, key).Result()
	if err != nil || stored != token {
		return ErrConfirmTokenInvalid
	}
	s.redisClient.Del(ctx, key)

	log.Printf("[OperatorService] 执行危险操作: %s", op)

	return s.db.Transaction(func(tx *gorm.DB) error {
		tables := []interface{}{
			&model.Order{},
			&model.LedgerEntry{},
			&model.WithdrawalRequest{},
			&model.OutboxMessage{},
		}
		if op == DangerOpFullReset {
			tables = append(tables, &model.Account{}, &model.Product{})
		}
		for _, table := range tables {
			if err := tx.WithContext(ctx).Where("1 = 1").Delete(table).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
