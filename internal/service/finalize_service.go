package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"usdtshop/internal/config"
	"usdtshop/internal/model"
	"usdtshop/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 金额比较精度：链上金额与订单金额之差小于该值视为同一笔
var amountEpsilon = decimal.New(1, -6)

const (
	FinalizeSourceReconciler = "RECONCILER" // 对账任务匹配到链上转账
	FinalizeSourceOperator   = "OPERATOR"   // 运营人工确认
)

// FinalizeService 订单终结
//
// 置为已支付的核心保证：
//  1. 幂等 —— 守卫式条件更新，重复调用第二次 RowsAffected = 0，
//     不会二次入账；并发调用同理，只有一个赢
//  2. 过期拦截 —— expired_at > now 写进更新条件，过期订单对
//     对账任务和人工确认一律不可终结
//  3. 入账与状态迁移同事务，要么都生效要么都不生效
type FinalizeService struct {
	db         *gorm.DB
	cfg        *config.Config
	orderRepo  *repository.OrderRepository
	outboxRepo *repository.OutboxRepository
	ledger     *LedgerService
	referral   *ReferralService
}

func NewFinalizeService(db *gorm.DB, cfg *config.Config) *FinalizeService {
	return &FinalizeService{
		db:         db,
		cfg:        cfg,
		orderRepo:  repository.NewOrderRepository(db),
		outboxRepo: repository.NewOutboxRepository(db),
		ledger:     NewLedgerService(db),
		referral:   NewReferralService(db, cfg),
	}
}

// MarkOrderPaid 把订单置为已支付并完成随之而来的入账
//
// paidAmount 是实际收到的金额：对账路径传链上转账金额，人工确认
// 路径传 nil（现金轨收款金额不进系统，不做多付判断）。
// 返回值表示本次调用是否真的完成了迁移；订单已是 PAID 时返回
// false 且无错误，这就是重复触发时的无害无操作。
func (s *FinalizeService) MarkOrderPaid(ctx context.Context, orderNo string, paidAmount *decimal.Decimal, source string) (bool, error) {
	now := time.Now()

	var won bool
	var order *model.Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		// 守卫式更新放在事务第一条语句，并发竞争在此分出胜负
		var terr error
		won, terr = s.orderRepo.MarkPaid(ctx, tx, orderNo, now)
		if terr != nil {
			return terr
		}
		if !won {
			return nil
		}

		// 入账以事务内读到的行为准：赢了守卫之后金额字段不会再被
		// 并发换轨改写，事务外的快照则可能已经过期
		order, terr = s.orderRepo.GetByOrderNo(ctx, tx, orderNo)
		if terr != nil {
			return terr
		}

		// USDT 轨的实欠金额不含去重尾数；现金轨 fee 是法币加价，
		// 实欠就是 usdt_amount 本身
		owed := order.UsdtAmount
		if order.Rail == model.RailUSDT {
			owed = order.AmountOwed()
		}

		credit := decimal.Zero
		memo := ""
		if order.IsTopup {
			credit = owed
			memo = fmt.Sprintf("充值到账-%s", orderNo)
		}
		if paidAmount != nil {
			overpaid := paidAmount.Sub(owed)
			if overpaid.GreaterThan(amountEpsilon) {
				credit = credit.Add(overpaid)
				if memo == "" {
					memo = fmt.Sprintf("多付入账-%s", orderNo)
				}
			}
		}

		if credit.IsPositive() {
			if _, err := s.ledger.MutateBalance(ctx, tx, order.AccountID, credit, model.LedgerKindTopup, orderNo, memo); err != nil {
				return err
			}
		}

		payload, _ := json.Marshal(map[string]interface{}{
			"order_no":   orderNo,
			"account_id": order.AccountID,
			"rail":       order.Rail,
			"source":     source,
			"paid_at":    now.Format(time.RFC3339),
		})
		outboxMsg := &model.OutboxMessage{
			MessageKey: orderNo,
			Topic:      s.cfg.Kafka.Topic.OperatorNotify,
			Payload:    string(payload),
			Status:     model.OutboxStatusPending,
		}
		return s.outboxRepo.Create(ctx, tx, outboxMsg)
	})
	if err != nil {
		return false, err
	}
	if !won {
		// 没赢有两种情况：别人已经标过（无害），或订单状态/有效期不允许
		current, gerr := s.orderRepo.GetByOrderNo(ctx, nil, orderNo)
		if gerr != nil {
			return false, gerr
		}
		if current.Status == model.OrderStatusPaid {
			return false, nil
		}
		if current.IsExpired(now) {
			return false, ErrOrderExpired
		}
		return false, ErrOrderNotPending
	}

	// 返佣在订单事务提交之后单独执行，失败只记日志
	kind := ReferralKindPurchase
	bonusBase := order.UsdtAmount
	if order.Rail == model.RailUSDT {
		bonusBase = order.AmountOwed()
	}
	if order.IsTopup {
		kind = ReferralKindTopup
	}
	if err := s.referral.ApplyReferralBonus(ctx, order.AccountID, bonusBase, kind, orderNo); err != nil {
		log.Printf("[FinalizeService] 返佣失败: orderNo=%s, err=%v", orderNo, err)
	}

	return true, nil
}
