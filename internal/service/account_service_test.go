package service

import (
	"context"
	"errors"
	"testing"

	"usdtshop/internal/repository"
)

func TestRegister(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewAccountService(db)

	account, err := svc.Register(ctx, &RegisterRequest{Contact: "tg:alice", PasswordHash: "hash1"})
	if err != nil {
		t.Fatalf("注册失败: %v", err)
	}
	if account.ReferralCode == nil || *account.ReferralCode == "" {
		t.Fatal("注册应自动分配推荐码")
	}
	if account.ReferrerID != nil {
		t.Fatal("未填推荐码不应绑定推荐人")
	}
	if !account.Balance.IsZero() {
		t.Fatalf("新账户余额应为 0, 实际 %s", account.Balance)
	}

	// 联系方式唯一
	if _, err := svc.Register(ctx, &RegisterRequest{Contact: "tg:alice", PasswordHash: "hash2"}); !errors.Is(err, repository.ErrContactTaken) {
		t.Fatalf("期望 ErrContactTaken, 实际 %v", err)
	}
}

func TestRegisterWithReferralCode(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewAccountService(db)

	referrer, err := svc.Register(ctx, &RegisterRequest{Contact: "tg:bob", PasswordHash: "hash"})
	if err != nil {
		t.Fatalf("注册失败: %v", err)
	}

	account, err := svc.Register(ctx, &RegisterRequest{Contact: "tg:carol", PasswordHash: "hash", ReferralCode: *referrer.ReferralCode})
	if err != nil {
		t.Fatalf("带推荐码注册失败: %v", err)
	}
	if account.ReferrerID == nil || *account.ReferrerID != referrer.ID {
		t.Fatal("推荐关系未绑定")
	}

	// 不存在的推荐码直接拒绝
	if _, err := svc.Register(ctx, &RegisterRequest{Contact: "tg:dave", PasswordHash: "hash", ReferralCode: "no-such-code"}); !errors.Is(err, ErrReferralCodeInvalid) {
		t.Fatalf("期望 ErrReferralCodeInvalid, 实际 %v", err)
	}
}
