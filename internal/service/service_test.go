package service

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"usdtshop/internal/config"
	"usdtshop/internal/model"
	"usdtshop/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB 建一个临时 sqlite 库，表结构与生产一致
// busy_timeout 让并发写排队而不是直接报错
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", filepath.Join(t.TempDir(), "test.db"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}

	err = db.AutoMigrate(
		&model.Account{},
		&model.Product{},
		&model.Order{},
		&model.LedgerEntry{},
		&model.WithdrawalRequest{},
		&model.Setting{},
		&model.OutboxMessage{},
	)
	if err != nil {
		t.Fatalf("迁移表结构失败: %v", err)
	}

	if err := repository.NewSettingRepository(db).SeedDefaults(context.Background()); err != nil {
		t.Fatalf("写入缺省配置失败: %v", err)
	}

	return db
}

func newTestConfig() *config.Config {
	return &config.Config{
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{
				OperatorNotify: "test.operator.notify",
				ReferralNotify: "test.referral.notify",
			},
		},
		Business: config.BusinessConfig{
			OrderTimeoutMinutes:      30,
			ReconcileIntervalSeconds: 30,
			MaxRetryCount:            5,
		},
	}
}

func createTestAccount(t *testing.T, db *gorm.DB, contact string, balance string) *model.Account {
	t.Helper()

	code := contact + "-code"
	account := &model.Account{
		Contact:      contact,
		PasswordHash: "hash",
		Balance:      decimal.RequireFromString(balance),
		ReferralCode: &code,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("创建测试账户失败: %v", err)
	}
	return account
}

func createTestProduct(t *testing.T, db *gorm.DB, title, price string, stock int, kind string) *model.Product {
	t.Helper()

	product := &model.Product{
		Title:  title,
		Kind:   kind,
		Price:  decimal.RequireFromString(price),
		Stock:  stock,
		OnSale: true,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("创建测试商品失败: %v", err)
	}
	return product
}

func ledgerEntries(t *testing.T, db *gorm.DB, accountID int64) []*model.LedgerEntry {
	t.Helper()

	entries, err := repository.NewLedgerRepository(db).ListByAccountID(context.Background(), accountID)
	if err != nil {
		t.Fatalf("查询流水失败: %v", err)
	}
	return entries
}

func accountBalance(t *testing.T, db *gorm.DB, accountID int64) decimal.Decimal {
	t.Helper()

	account, err := repository.NewAccountRepository(db).GetByID(context.Background(), accountID)
	if err != nil {
		t.Fatalf("查询账户失败: %v", err)
	}
	return account.Balance
}
