package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"usdtshop/internal/config"
	"usdtshop/internal/infrastructure/lock"
	"usdtshop/internal/model"
	"usdtshop/internal/repository"
	"usdtshop/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderService struct {
	db          *gorm.DB
	redisClient *redis.Client
	cfg         *config.Config
	orderRepo   *repository.OrderRepository
	accountRepo *repository.AccountRepository
	productRepo *repository.ProductRepository
	settingRepo *repository.SettingRepository
	pricing     *PricingEngine
	ledger      *LedgerService
	referral    *ReferralService
}

func NewOrderService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *OrderService {
	return &OrderService{
		db:          db,
		redisClient: redisClient,
		cfg:         cfg,
		orderRepo:   repository.NewOrderRepository(db),
		accountRepo: repository.NewAccountRepository(db),
		productRepo: repository.NewProductRepository(db),
		settingRepo: repository.NewSettingRepository(db),
		pricing:     NewPricingEngine(repository.NewSettingRepository(db)),
		ledger:      NewLedgerService(db),
		referral:    NewReferralService(db, cfg),
	}
}

type OrderItemRequest struct {
	ProductID int64
	Quantity  int
}

type CreateOrderRequest struct {
	AccountID  int64
	Items      []OrderItemRequest
	Rail       string
	Shipping   *model.ShippingInfo
	UseBalance bool // 是否用余额抵扣一部分应付金额
}

// CreateOrder 创建订单
//
// 库存扣减、余额抵扣、订单落库在同一个事务里，任何一步失败全部回滚。
// 余额抵扣规则：抵扣额 = min(余额, 基础金额)，非余额轨下抵扣后剩余
// 应付必须严格为正——余额足以全付时必须改用余额轨。
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*model.Order, error) {
	if !model.IsValidRail(req.Rail) {
		return nil, ErrInvalidRail
	}

	account, err := s.accountRepo.GetByID(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}

	// 同账户下单串行化；测试环境没有 redis 时退化为仅数据库约束
	if s.redisClient != nil {
		orderLock := lock.NewOrderLock(s.redisClient, req.AccountID, idgen.GenerateOrderNo())
		if err := orderLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
			return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
		}
		defer orderLock.Unlock(ctx)
	}

	items, isTopup, err := s.snapshotItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}
	if isTopup && req.Rail == model.RailBalance {
		// 用余额给余额充值没有意义
		return nil, ErrInvalidRail
	}

	base, err := SumItems(items)
	if err != nil {
		return nil, err
	}

	// 余额抵扣先于定价：抵扣作用在基础金额上，剩余部分再按轨道计价
	balanceUsed := decimal.Zero
	switch {
	case req.Rail == model.RailBalance:
		if account.Balance.LessThan(base) {
			return nil, repository.ErrBalanceNotEnough
		}
		balanceUsed = base
	case req.UseBalance:
		if account.Balance.GreaterThanOrEqual(base) {
			return nil, ErrBalanceOverCoverage
		}
		balanceUsed = account.Balance
	}

	pricedBase := base.Sub(balanceUsed)
	var quote *PriceQuote
	if req.Rail == model.RailBalance {
		// 全额余额支付没有剩余应付，金额字段记录原始基础金额
		rate, rerr := s.settingRepo.GetDecimal(ctx, model.SettingKeyRate)
		if rerr != nil {
			return nil, fmt.Errorf("读取汇率配置失败: %w", rerr)
		}
		quote = &PriceQuote{
			UsdtAmount:   base,
			CnyAmount:    base.Mul(rate).Round(4),
			FeeAmount:    decimal.Zero,
			RateSnapshot: rate,
		}
	} else {
		quote, err = s.pricing.Quote(ctx, pricedBase, req.Rail)
		if err != nil {
			return nil, err
		}
	}

	now := time.Now()
	order := &model.Order{
		OrderNo:      idgen.GenerateOrderNo(),
		AccountID:    req.AccountID,
		Items:        items,
		Rail:         req.Rail,
		UsdtAmount:   quote.UsdtAmount,
		CnyAmount:    quote.CnyAmount,
		FeeAmount:    quote.FeeAmount,
		RateSnapshot: quote.RateSnapshot,
		BalanceUsed:  balanceUsed,
		IsTopup:      isTopup,
		Shipping:     req.Shipping,
		Status:       model.OrderStatusPending,
		ExpiredAt:    now.Add(time.Duration(s.cfg.Business.OrderTimeoutMinutes) * time.Minute),
	}
	if req.Rail == model.RailBalance {
		order.Status = model.OrderStatusPaid
		order.PaidAt = &now
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		for _, item := range items {
			if err := s.productRepo.DecrementStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		if err := s.orderRepo.Create(ctx, tx, order); err != nil {
			return fmt.Errorf("创建订单失败: %w", err)
		}

		if balanceUsed.IsPositive() {
			memo := fmt.Sprintf("订单消费-%s", order.OrderNo)
			if req.Rail != model.RailBalance {
				memo = fmt.Sprintf("订单余额抵扣-%s", order.OrderNo)
			}
			if _, err := s.ledger.MutateBalance(ctx, tx, req.AccountID, balanceUsed.Neg(), model.LedgerKindSpend, order.OrderNo, memo); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	// 余额轨下单即支付，返佣在订单事务提交之后单独执行，
	// 返佣失败只记日志，不回滚买家侧已提交的支付
	if order.Status == model.OrderStatusPaid && !order.IsTopup {
		if err := s.referral.ApplyReferralBonus(ctx, order.AccountID, order.AmountOwed(), ReferralKindPurchase, order.OrderNo); err != nil {
			log.Printf("[OrderService] 返佣失败: orderNo=%s, err=%v", order.OrderNo, err)
		}
	}

	return order, nil
}

// snapshotItems 把请求里的商品行换成带单价快照的订单行
func (s *OrderService) snapshotItems(ctx context.Context, reqItems []OrderItemRequest) ([]model.OrderItem, bool, error) {
	if len(reqItems) == 0 {
		return nil, false, ErrInvalidQuantity
	}

	items := make([]model.OrderItem, 0, len(reqItems))
	isTopup := false
	for _, ri := range reqItems {
		if ri.Quantity <= 0 {
			return nil, false, ErrInvalidQuantity
		}
		product, err := s.productRepo.GetByID(ctx, ri.ProductID)
		if err != nil {
			return nil, false, err
		}
		if !product.OnSale {
			return nil, false, ErrProductOffSale
		}
		if product.Stock < ri.Quantity {
			return nil, false, repository.ErrStockNotEnough
		}
		if product.Kind == model.ProductKindTopup {
			isTopup = true
		}
		items = append(items, model.OrderItem{
			ProductID: product.ID,
			Title:     product.Title,
			UnitPrice: product.Price,
			Quantity:  ri.Quantity,
		})
	}
	return items, isTopup, nil
}

// ChangeRail 换支付轨
// 只允许 PENDING 订单，按当前汇率把 usdt/cny/fee 全部重新定格，
// 这是订单创建之后唯一的重定价入口
func (s *OrderService) ChangeRail(ctx context.Context, orderNo string, accountID int64, newRail string) (*model.Order, error) {
	if newRail != model.RailUSDT && newRail != model.RailCash {
		return nil, ErrInvalidRail
	}

	order, err := s.orderRepo.GetByOrderNo(ctx, nil, orderNo)
	if err != nil {
		return nil, err
	}
	if order.AccountID != accountID {
		return nil, ErrNotOrderOwner
	}
	if order.Status != model.OrderStatusPending {
		return nil, ErrOrderNotPending
	}
	if order.IsExpired(time.Now()) {
		return nil, ErrOrderExpired
	}

	base, err := SumItems(order.Items)
	if err != nil {
		return nil, err
	}
	pricedBase := base.Sub(order.BalanceUsed)

	quote, err := s.pricing.Quote(ctx, pricedBase, newRail)
	if err != nil {
		return nil, err
	}

	err = s.orderRepo.UpdatePricing(ctx, nil, orderNo, newRail, quote.UsdtAmount, quote.CnyAmount, quote.FeeAmount, quote.RateSnapshot)
	if err != nil {
		return nil, err
	}

	return s.orderRepo.GetByOrderNo(ctx, nil, orderNo)
}

// CancelOrder 买家取消，只允许从 PENDING 出发
func (s *OrderService) CancelOrder(ctx context.Context, orderNo string, accountID int64) error {
	order, err := s.orderRepo.GetByOrderNo(ctx, nil, orderNo)
	if err != nil {
		return err
	}
	if order.AccountID != accountID {
		return ErrNotOrderOwner
	}
	return s.orderRepo.UpdateStatus(ctx, nil, orderNo, model.OrderStatusPending, model.OrderStatusCancelled)
}

// ConfirmByBuyer 买家自述已付款
// 只做标记提醒运营关注，真正的终结仍由对账任务或人工确认完成
func (s *OrderService) ConfirmByBuyer(ctx context.Context, orderNo string, accountID int64) error {
	order, err := s.orderRepo.GetByOrderNo(ctx, nil, orderNo)
	if err != nil {
		return err
	}
	if order.AccountID != accountID {
		return ErrNotOrderOwner
	}
	return s.orderRepo.SetBuyerConfirmed(ctx, orderNo)
}

// UploadEvidence 买家上交支付凭证引用，订单进入人工审核
// 文件本体由上传收纳层保管，这里只记引用
func (s *OrderService) UploadEvidence(ctx context.Context, orderNo string, accountID int64, evidenceRef string) error {
	order, err := s.orderRepo.GetByOrderNo(ctx, nil, orderNo)
	if err != nil {
		return err
	}
	if order.AccountID != accountID {
		return ErrNotOrderOwner
	}
	if order.IsExpired(time.Now()) {
		return ErrOrderExpired
	}
	return s.orderRepo.SetEvidence(ctx, orderNo, evidenceRef)
}

func (s *OrderService) GetOrder(ctx context.Context, orderNo string) (*model.Order, error) {
	return s.orderRepo.GetByOrderNo(ctx, nil, orderNo)
}

func (s *OrderService) ListOrders(ctx context.Context, accountID int64, page, pageSize int) ([]*model.Order, int64, error) {
	return s.orderRepo.ListByAccountID(ctx, accountID, page, pageSize)
}
