package service

import (
	"context"
	"errors"
	"testing"

	"usdtshop/internal/model"
	"usdtshop/internal/repository"

	"github.com/shopspring/decimal"
)

func TestWithdrawalCreateReservesBalance(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewWithdrawalService(db)

	account := createTestAccount(t, db, "wd-user1", "100")

	withdrawal, err := svc.Create(ctx, &CreateWithdrawalRequest{
		AccountID:   account.ID,
		Amount:      decimal.RequireFromString("40"),
		Rail:        model.RailUSDT,
		Destination: "TXYZabc123",
	})
	if err != nil {
		t.Fatalf("提现申请失败: %v", err)
	}

	// 手续费 1%：fee 0.4, 实付 39.6；申请即预扣全额 40
	if !withdrawal.Fee.Equal(decimal.RequireFromString("0.4")) {
		t.Fatalf("期望手续费 0.4, 实际 %s", withdrawal.Fee)
	}
	if !withdrawal.NetAmount.Equal(decimal.RequireFromString("39.6")) {
		t.Fatalf("期望实付 39.6, 实际 %s", withdrawal.NetAmount)
	}
	if !accountBalance(t, db, account.ID).Equal(decimal.RequireFromString("60")) {
		t.Fatalf("余额应为 60, 实际 %s", accountBalance(t, db, account.ID))
	}

	entries := ledgerEntries(t, db, account.ID)
	if len(entries) != 1 {
		t.Fatalf("期望 1 条流水, 实际 %d", len(entries))
	}
	if entries[0].Kind != model.LedgerKindWithdrawal || !entries[0].Amount.Equal(decimal.RequireFromString("-40")) {
		t.Fatalf("期望 WITHDRAWAL -40, 实际 %s %s", entries[0].Kind, entries[0].Amount)
	}
}

func TestWithdrawalCreateGuards(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewWithdrawalService(db)

	account := createTestAccount(t, db, "wd-user2", "100")

	// 低于最小提现额（缺省 10）
	_, err := svc.Create(ctx, &CreateWithdrawalRequest{
		AccountID: account.ID,
		Amount:    decimal.RequireFromString("5"),
		Rail:      model.RailUSDT,
	})
	if !errors.Is(err, ErrWithdrawalTooSmall) {
		t.Fatalf("期望 ErrWithdrawalTooSmall, 实际 %v", err)
	}

	_, err = svc.Create(ctx, &CreateWithdrawalRequest{
		AccountID: account.ID,
		Amount:    decimal.RequireFromString("-1"),
		Rail:      model.RailUSDT,
	})
	if !errors.Is(err, ErrWithdrawalTooSmall) {
		t.Fatalf("负数金额应被拒绝, 实际 %v", err)
	}

	// 余额不足，事务回滚无痕
	_, err = svc.Create(ctx, &CreateWithdrawalRequest{
		AccountID: account.ID,
		Amount:    decimal.RequireFromString("500"),
		Rail:      model.RailUSDT,
	})
	if !errors.Is(err, repository.ErrBalanceNotEnough) {
		t.Fatalf("期望 ErrBalanceNotEnough, 实际 %v", err)
	}
	if !accountBalance(t, db, account.ID).Equal(decimal.RequireFromString("100")) {
		t.Fatalf("失败申请不应动余额, 实际 %s", accountBalance(t, db, account.ID))
	}
	if len(ledgerEntries(t, db, account.ID)) != 0 {
		t.Fatal("失败申请不应留流水")
	}
}

func TestWithdrawalRejectRefundsOnce(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewWithdrawalService(db)

	account := createTestAccount(t, db, "wd-user3", "100")
	withdrawal, err := svc.Create(ctx, &CreateWithdrawalRequest{
		AccountID: account.ID,
		Amount:    decimal.RequireFromString("30"),
		Rail:      model.RailUSDT,
	})
	if err != nil {
		t.Fatalf("提现申请失败: %v", err)
	}

	won, err := svc.Reject(ctx, withdrawal.WithdrawalNo)
	if err != nil || !won {
		t.Fatalf("驳回失败: won=%v err=%v", won, err)
	}
	if !accountBalance(t, db, account.ID).Equal(decimal.RequireFromString("100")) {
		t.Fatalf("驳回后余额应返还至 100, 实际 %s", accountBalance(t, db, account.ID))
	}

	// 重复驳回是无操作，不会二次返还
	won, err = svc.Reject(ctx, withdrawal.WithdrawalNo)
	if err != nil {
		t.Fatalf("重复驳回报错: %v", err)
	}
	if won {
		t.Fatal("重复驳回不应生效")
	}
	if !accountBalance(t, db, account.ID).Equal(decimal.RequireFromString("100")) {
		t.Fatalf("余额应保持 100, 实际 %s", accountBalance(t, db, account.ID))
	}

	entries := ledgerEntries(t, db, account.ID)
	if len(entries) != 2 {
		t.Fatalf("期望 2 条流水, 实际 %d", len(entries))
	}
	if entries[1].Kind != model.LedgerKindWithdrawalReversal || !entries[1].Amount.Equal(decimal.RequireFromString("30")) {
		t.Fatalf("期望 WITHDRAWAL_REVERSAL +30, 实际 %s %s", entries[1].Kind, entries[1].Amount)
	}
}

func TestWithdrawalConfirmIdempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewWithdrawalService(db)

	account := createTestAccount(t, db, "wd-user4", "100")
	withdrawal, err := svc.Create(ctx, &CreateWithdrawalRequest{
		AccountID: account.ID,
		Amount:    decimal.RequireFromString("20"),
		Rail:      model.RailUSDT,
	})
	if err != nil {
		t.Fatalf("提现申请失败: %v", err)
	}

	won, err := svc.Confirm(ctx, withdrawal.WithdrawalNo)
	if err != nil || !won {
		t.Fatalf("确认失败: won=%v err=%v", won, err)
	}
	won, err = svc.Confirm(ctx, withdrawal.WithdrawalNo)
	if err != nil {
		t.Fatalf("重复确认报错: %v", err)
	}
	if won {
		t.Fatal("重复确认不应生效")
	}

	// 确认完成后驳回也走不动
	won, err = svc.Reject(ctx, withdrawal.WithdrawalNo)
	if err != nil {
		t.Fatalf("确认后驳回报错: %v", err)
	}
	if won {
		t.Fatal("已完成的提现不允许驳回")
	}
	if !accountBalance(t, db, account.ID).Equal(decimal.RequireFromString("80")) {
		t.Fatalf("余额应保持 80, 实际 %s", accountBalance(t, db, account.ID))
	}
}

// 流水守恒：账户终余额 = 各条流水带符号金额之和，
// 且每条流水的 balance_after 等于截至该条的累计和
func TestLedgerConservation(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewWithdrawalService(db)
	ledger := NewLedgerService(db)

	account := createTestAccount(t, db, "wd-user5", "0")

	if _, err := ledger.MutateBalance(ctx, nil, account.ID, decimal.RequireFromString("200"), model.LedgerKindTopup, "ORDT1", "充值到账"); err != nil {
		t.Fatalf("入账失败: %v", err)
	}
	w1, err := svc.Create(ctx, &CreateWithdrawalRequest{AccountID: account.ID, Amount: decimal.RequireFromString("50"), Rail: model.RailUSDT})
	if err != nil {
		t.Fatalf("提现申请失败: %v", err)
	}
	if _, err := svc.Create(ctx, &CreateWithdrawalRequest{AccountID: account.ID, Amount: decimal.RequireFromString("30"), Rail: model.RailUSDT}); err != nil {
		t.Fatalf("提现申请失败: %v", err)
	}
	if _, err := svc.Reject(ctx, w1.WithdrawalNo); err != nil {
		t.Fatalf("驳回失败: %v", err)
	}

	entries := ledgerEntries(t, db, account.ID)
	running := decimal.Zero
	for i, entry := range entries {
		running = running.Add(entry.Amount)
		if !entry.BalanceAfter.Equal(running) {
			t.Fatalf("第 %d 条流水 balance_after 不守恒: 期望 %s, 实际 %s", i, running, entry.BalanceAfter)
		}
	}
	if !accountBalance(t, db, account.ID).Equal(running) {
		t.Fatalf("终余额 %s 与流水累计 %s 不一致", accountBalance(t, db, account.ID), running)
	}
	if !running.Equal(decimal.RequireFromString("170")) {
		t.Fatalf("期望终余额 170, 实际 %s", running)
	}
}
