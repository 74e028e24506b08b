package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"usdtshop/internal/model"
	"usdtshop/internal/repository"

	"github.com/shopspring/decimal"
)

func TestCreateOrderCashRailPricing(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewOrderService(db, nil, newTestConfig())

	account := createTestAccount(t, db, "cash-buyer", "0")
	product := createTestProduct(t, db, "U盘", "10", 100, model.ProductKindGoods)

	order, err := svc.CreateOrder(ctx, &CreateOrderRequest{
		AccountID: account.ID,
		Items:     []OrderItemRequest{{ProductID: product.ID, Quantity: 1}},
		Rail:      model.RailCash,
	})
	if err != nil {
		t.Fatalf("下单失败: %v", err)
	}

	// 汇率 7.2、手续费 3%：cny = 72 + 2.16 = 74.16
	if !order.CnyAmount.Equal(decimal.RequireFromString("74.16")) {
		t.Fatalf("期望应付法币 74.16, 实际 %s", order.CnyAmount)
	}
	if !order.FeeAmount.Equal(decimal.RequireFromString("2.16")) {
		t.Fatalf("期望手续费 2.16, 实际 %s", order.FeeAmount)
	}
	if !order.UsdtAmount.Equal(decimal.RequireFromString("10")) {
		t.Fatalf("现金轨 usdt_amount 应为基础金额 10, 实际 %s", order.UsdtAmount)
	}
	if order.Status != model.OrderStatusPending {
		t.Fatalf("期望 PENDING, 实际 %s", order.Status)
	}
}

func TestCreateOrderUSDTRailNonce(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewOrderService(db, nil, newTestConfig())

	account := createTestAccount(t, db, "usdt-buyer", "0")
	product := createTestProduct(t, db, "充值10U", "10", 9999, model.ProductKindTopup)

	order, err := svc.CreateOrder(ctx, &CreateOrderRequest{
		AccountID: account.ID,
		Items:     []OrderItemRequest{{ProductID: product.ID, Quantity: 1}},
		Rail:      model.RailUSDT,
	})
	if err != nil {
		t.Fatalf("下单失败: %v", err)
	}

	// 应付 = 基础金额 + 去重尾数，尾数范围 [0.1, 0.9999]
	nonce := order.FeeAmount
	if nonce.LessThan(decimal.RequireFromString("0.1")) || nonce.GreaterThan(decimal.RequireFromString("0.9999")) {
		t.Fatalf("尾数超出范围: %s", nonce)
	}
	if !order.UsdtAmount.Equal(decimal.RequireFromString("10").Add(nonce)) {
		t.Fatalf("usdt_amount 应为 10+尾数, 实际 %s", order.UsdtAmount)
	}
	if !order.AmountOwed().Equal(decimal.RequireFromString("10")) {
		t.Fatalf("实欠金额应为 10, 实际 %s", order.AmountOwed())
	}
	if !order.IsTopup {
		t.Fatal("充值面额订单应标记 is_topup")
	}
}

func TestCreateOrderPartialBalanceDeduction(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewOrderService(db, nil, newTestConfig())

	account := createTestAccount(t, db, "partial-buyer", "5")
	product := createTestProduct(t, db, "键盘", "10", 10, model.ProductKindGoods)

	order, err := svc.CreateOrder(ctx, &CreateOrderRequest{
		AccountID:  account.ID,
		Items:      []OrderItemRequest{{ProductID: product.ID, Quantity: 1}},
		Rail:       model.RailUSDT,
		UseBalance: true,
	})
	if err != nil {
		t.Fatalf("下单失败: %v", err)
	}

	// 余额 5 抵扣后按剩余 5 计价：usdt = 5 + 尾数
	if !order.BalanceUsed.Equal(decimal.RequireFromString("5")) {
		t.Fatalf("期望抵扣 5, 实际 %s", order.BalanceUsed)
	}
	if !order.UsdtAmount.Equal(decimal.RequireFromString("5").Add(order.FeeAmount)) {
		t.Fatalf("usdt_amount 应为 5+尾数, 实际 %s", order.UsdtAmount)
	}

	// 抵扣立即走账：余额清零 + 一条 SPEND 流水
	if !accountBalance(t, db, account.ID).IsZero() {
		t.Fatalf("余额应清零, 实际 %s", accountBalance(t, db, account.ID))
	}
	entries := ledgerEntries(t, db, account.ID)
	if len(entries) != 1 {
		t.Fatalf("期望 1 条流水, 实际 %d", len(entries))
	}
	if entries[0].Kind != model.LedgerKindSpend || !entries[0].Amount.Equal(decimal.RequireFromString("-5")) {
		t.Fatalf("期望 SPEND -5, 实际 %s %s", entries[0].Kind, entries[0].Amount)
	}
}

func TestCreateOrderBalanceCoversAll(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewOrderService(db, nil, newTestConfig())

	account := createTestAccount(t, db, "rich-buyer", "15")
	product := createTestProduct(t, db, "鼠标", "10", 10, model.ProductKindGoods)

	// 余额足以全付时不允许抵扣下单，必须改用余额轨
	_, err := svc.CreateOrder(ctx, &CreateOrderRequest{
		AccountID:  account.ID,
		Items:      []OrderItemRequest{{ProductID: product.ID, Quantity: 1}},
		Rail:       model.RailUSDT,
		UseBalance: true,
	})
	if !errors.Is(err, ErrBalanceOverCoverage) {
		t.Fatalf("期望 ErrBalanceOverCoverage, 实际 %v", err)
	}

	order, err := svc.CreateOrder(ctx, &CreateOrderRequest{
		AccountID: account.ID,
		Items:     []OrderItemRequest{{ProductID: product.ID, Quantity: 1}},
		Rail:      model.RailBalance,
	})
	if err != nil {
		t.Fatalf("余额轨下单失败: %v", err)
	}
	if order.Status != model.OrderStatusPaid || order.PaidAt == nil {
		t.Fatalf("余额轨订单应当下单即支付, 状态 %s", order.Status)
	}
	if !accountBalance(t, db, account.ID).Equal(decimal.RequireFromString("5")) {
		t.Fatalf("余额应为 5, 实际 %s", accountBalance(t, db, account.ID))
	}
}

func TestCreateOrderBalanceRailInsufficient(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewOrderService(db, nil, newTestConfig())

	account := createTestAccount(t, db, "poor-buyer", "3")
	product := createTestProduct(t, db, "耳机", "10", 10, model.ProductKindGoods)

	_, err := svc.CreateOrder(ctx, &CreateOrderRequest{
		AccountID: account.ID,
		Items:     []OrderItemRequest{{ProductID: product.ID, Quantity: 1}},
		Rail:      model.RailBalance,
	})
	if !errors.Is(err, repository.ErrBalanceNotEnough) {
		t.Fatalf("期望 ErrBalanceNotEnough, 实际 %v", err)
	}
	if len(ledgerEntries(t, db, account.ID)) != 0 {
		t.Fatal("失败下单不应产生流水")
	}
}

func TestCreateOrderTopupBalanceRailRejected(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewOrderService(db, nil, newTestConfig())

	account := createTestAccount(t, db, "topup-buyer", "100")
	product := createTestProduct(t, db, "充值50U", "50", 9999, model.ProductKindTopup)

	_, err := svc.CreateOrder(ctx, &CreateOrderRequest{
		AccountID: account.ID,
		Items:     []OrderItemRequest{{ProductID: product.ID, Quantity: 1}},
		Rail:      model.RailBalance,
	})
	if !errors.Is(err, ErrInvalidRail) {
		t.Fatalf("用余额给余额充值应被拒绝, 实际 %v", err)
	}
}

func TestCreateOrderConcurrentStock(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewOrderService(db, nil, newTestConfig())

	a1 := createTestAccount(t, db, "race-buyer-1", "0")
	a2 := createTestAccount(t, db, "race-buyer-2", "0")
	product := createTestProduct(t, db, "限量款", "10", 1, model.ProductKindGoods)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for _, accountID := range []int64{a1.ID, a2.ID} {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := svc.CreateOrder(ctx, &CreateOrderRequest{
				AccountID: id,
				Items:     []OrderItemRequest{{ProductID: product.ID, Quantity: 1}},
				Rail:      model.RailUSDT,
			})
			results <- err
		}(accountID)
	}
	wg.Wait()
	close(results)

	success, stockFail := 0, 0
	for err := range results {
		switch {
		case err == nil:
			success++
		case errors.Is(err, repository.ErrStockNotEnough):
			stockFail++
		default:
			t.Fatalf("意外错误: %v", err)
		}
	}
	if success != 1 || stockFail != 1 {
		t.Fatalf("库存 1 的商品并发下单应一成一败, 实际 成功=%d 库存不足=%d", success, stockFail)
	}
}

func TestCreateOrderBadQuantity(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewOrderService(db, nil, newTestConfig())

	account := createTestAccount(t, db, "zero-buyer", "0")
	product := createTestProduct(t, db, "贴纸", "1", 10, model.ProductKindGoods)

	_, err := svc.CreateOrder(ctx, &CreateOrderRequest{
		AccountID: account.ID,
		Items:     []OrderItemRequest{{ProductID: product.ID, Quantity: 0}},
		Rail:      model.RailUSDT,
	})
	if !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("期望 ErrInvalidQuantity, 实际 %v", err)
	}

	_, err = svc.CreateOrder(ctx, &CreateOrderRequest{
		AccountID: account.ID,
		Items:     []OrderItemRequest{},
		Rail:      model.RailUSDT,
	})
	if !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("空订单应被拒绝, 实际 %v", err)
	}
}

func TestChangeRailRepricesWithCurrentRate(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewOrderService(db, nil, newTestConfig())

	account := createTestAccount(t, db, "switch-buyer", "0")
	product := createTestProduct(t, db, "机械表", "10", 10, model.ProductKindGoods)

	order, err := svc.CreateOrder(ctx, &CreateOrderRequest{
		AccountID: account.ID,
		Items:     []OrderItemRequest{{ProductID: product.ID, Quantity: 1}},
		Rail:      model.RailUSDT,
	})
	if err != nil {
		t.Fatalf("下单失败: %v", err)
	}

	// 汇率上调后换轨，金额与快照按新汇率全部重新定格
	settingRepo := repository.NewSettingRepository(db)
	if err := settingRepo.Set(ctx, model.SettingKeyRate, "7.5"); err != nil {
		t.Fatalf("更新汇率失败: %v", err)
	}

	updated, err := svc.ChangeRail(ctx, order.OrderNo, account.ID, model.RailCash)
	if err != nil {
		t.Fatalf("换轨失败: %v", err)
	}
	if updated.Rail != model.RailCash {
		t.Fatalf("期望 CASH 轨, 实际 %s", updated.Rail)
	}
	if !updated.CnyAmount.Equal(decimal.RequireFromString("77.25")) {
		t.Fatalf("期望应付法币 77.25, 实际 %s", updated.CnyAmount)
	}
	if !updated.RateSnapshot.Equal(decimal.RequireFromString("7.5")) {
		t.Fatalf("汇率快照应为 7.5, 实际 %s", updated.RateSnapshot)
	}
	if !updated.FeeAmount.Equal(decimal.RequireFromString("2.25")) {
		t.Fatalf("期望手续费 2.25, 实际 %s", updated.FeeAmount)
	}

	// 换到余额轨不在允许范围内
	if _, err := svc.ChangeRail(ctx, order.OrderNo, account.ID, model.RailBalance); !errors.Is(err, ErrInvalidRail) {
		t.Fatalf("期望 ErrInvalidRail, 实际 %v", err)
	}
}

func TestCancelOrderGuards(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewOrderService(db, nil, newTestConfig())

	owner := createTestAccount(t, db, "cancel-owner", "0")
	other := createTestAccount(t, db, "cancel-other", "0")
	product := createTestProduct(t, db, "台灯", "10", 10, model.ProductKindGoods)

	order, err := svc.CreateOrder(ctx, &CreateOrderRequest{
		AccountID: owner.ID,
		Items:     []OrderItemRequest{{ProductID: product.ID, Quantity: 1}},
		Rail:      model.RailUSDT,
	})
	if err != nil {
		t.Fatalf("下单失败: %v", err)
	}

	if err := svc.CancelOrder(ctx, order.OrderNo, other.ID); !errors.Is(err, ErrNotOrderOwner) {
		t.Fatalf("非本人取消应被拒绝, 实际 %v", err)
	}
	if err := svc.CancelOrder(ctx, order.OrderNo, owner.ID); err != nil {
		t.Fatalf("取消失败: %v", err)
	}
	// 取消后再取消走不动状态机
	if err := svc.CancelOrder(ctx, order.OrderNo, owner.ID); !errors.Is(err, repository.ErrOrderStatusInvalid) {
		t.Fatalf("期望 ErrOrderStatusInvalid, 实际 %v", err)
	}
}
