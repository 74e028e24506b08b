package job

import (
	"context"
	"log"
	"time"

	"usdtshop/internal/config"
	"usdtshop/internal/explorer"
	"usdtshop/internal/repository"
	"usdtshop/internal/service"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 金额匹配精度，与订单终结侧保持一致
var amountEpsilon = decimal.New(1, -6)

// Reconciler 对账任务
//
// 每周期把未过期的 USDT 轨待支付订单和链上最近入账按金额撮合：
// 金额差小于 1e-6 且转账时间不早于订单创建时间才算同一笔——
// 时间条件挡住“旧转账恰好匹配新订单金额”的重放。
// 拉取失败整个周期跳过，零副作用；逐单终结失败只记日志，
// 不影响同周期的其他订单。
type Reconciler struct {
	db        *gorm.DB
	cfg       *config.Config
	orderRepo *repository.OrderRepository
	finalize  *service.FinalizeService
	source    explorer.Source
	stopCh    chan struct{}
	interval  time.Duration
	batchSize int
}

func NewReconciler(db *gorm.DB, cfg *config.Config, source explorer.Source) *Reconciler {
	interval := time.Duration(cfg.Business.ReconcileIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Reconciler{
		db:        db,
		cfg:       cfg,
		orderRepo: repository.NewOrderRepository(db),
		finalize:  service.NewFinalizeService(db, cfg),
		source:    source,
		stopCh:    make(chan struct{}),
		interval:  interval,
		batchSize: 200,
	}
}

func (r *Reconciler) Start(ctx context.Context) {
	log.Println("[Reconciler] 对账任务启动")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[Reconciler] 收到停止信号，任务退出")
			return
		case <-r.stopCh:
			log.Println("[Reconciler] 任务停止")
			return
		case <-ticker.C:
			if err := r.RunOnce(ctx); err != nil {
				log.Printf("[Reconciler] 本周期对账失败: %v", err)
			}
		}
	}
}

func (r *Reconciler) Stop() {
	close(r.stopCh)
}

// RunOnce 执行一轮对账，测试直接用假源同步调用
func (r *Reconciler) RunOnce(ctx context.Context) error {
	orders, err := r.orderRepo.GetPendingUSDTOrders(ctx, time.Now(), r.batchSize)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		return nil
	}

	transfers, err := r.source.RecentTransfers(ctx)
	if err != nil {
		// 源挂了不等于没付款，本周期什么都不标，下周期重试
		return err
	}

	matched := 0
	usedTx := make(map[string]bool)
	for _, order := range orders {
		for _, transfer := range transfers {
			if usedTx[transfer.TxID] {
				continue
			}
			if transfer.Amount.Sub(order.UsdtAmount).Abs().GreaterThanOrEqual(amountEpsilon) {
				continue
			}
			if transfer.Timestamp.Before(order.CreatedAt) {
				continue
			}

			// 先到先得；同金额撞车靠去重尾数避免，理论上不会发生
			usedTx[transfer.TxID] = true
			amount := transfer.Amount
			won, ferr := r.finalize.MarkOrderPaid(ctx, order.OrderNo, &amount, service.FinalizeSourceReconciler)
			if ferr != nil {
				log.Printf("[Reconciler] 订单终结失败: orderNo=%s, txID=%s, err=%v", order.OrderNo, transfer.TxID, ferr)
			} else if won {
				matched++
				log.Printf("[Reconciler] 订单对账成功: orderNo=%s, txID=%s, amount=%s", order.OrderNo, transfer.TxID, transfer.Amount)
			}
			break
		}
	}

	if matched > 0 {
		log.Printf("[Reconciler] 本周期匹配 %d 笔订单", matched)
	}
	return nil
}
