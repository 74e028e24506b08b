package explorer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
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

func newSettingRepo(t *testing.T, address string) *repository.SettingRepository {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", filepath.Join(t.TempDir(), "test.db"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}
	if err := db.AutoMigrate(&model.Setting{}); err != nil {
		t.Fatalf("迁移表结构失败: %v", err)
	}

	repo := repository.NewSettingRepository(db)
	if address != "" {
		if err := repo.Set(context.Background(), model.SettingKeyReceivingAddress, address); err != nil {
			t.Fatalf("写入收款地址失败: %v", err)
		}
	}
	return repo
}

func TestRecentTransfersParsesUSDT(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/accounts/TReceiver1/transactions/trc20" {
			t.Errorf("请求路径不符: %s", r.URL.Path)
		}
		if r.URL.Query().Get("only_to") != "true" {
			t.Error("缺少 only_to=true 参数")
		}
		fmt.Fprint(w, `{"data":[
			{"transaction_id":"tx1","from":"TSender1","to":"TReceiver1","value":"10432100","block_timestamp":1756500000000,"token_info":{"symbol":"USDT","decimals":6}},
			{"transaction_id":"tx2","from":"TSender2","to":"TReceiver1","value":"5000000","block_timestamp":1756500001000,"token_info":{"symbol":"TRX","decimals":6}},
			{"transaction_id":"tx3","from":"TSender3","to":"TReceiver1","value":"not-a-number","block_timestamp":1756500002000,"token_info":{"symbol":"USDT","decimals":6}}
		]}`)
	}))
	defer server.Close()

	source := NewHTTPSource(&config.ExplorerConfig{BaseURL: server.URL, TimeoutSeconds: 5, FetchLimit: 50}, newSettingRepo(t, "TReceiver1"))
	transfers, err := source.RecentTransfers(context.Background())
	if err != nil {
		t.Fatalf("拉取失败: %v", err)
	}

	// 非 USDT 和脏数据都被跳过，只剩 tx1
	if len(transfers) != 1 {
		t.Fatalf("期望 1 笔转账, 实际 %d", len(transfers))
	}
	if transfers[0].TxID != "tx1" {
		t.Fatalf("期望 tx1, 实际 %s", transfers[0].TxID)
	}
	if !transfers[0].Amount.Equal(decimal.RequireFromString("10.4321")) {
		t.Fatalf("期望按 decimals 换算为 10.4321, 实际 %s", transfers[0].Amount)
	}
	if transfers[0].Timestamp.UnixMilli() != 1756500000000 {
		t.Fatalf("时间戳换算不符: %v", transfers[0].Timestamp)
	}
}

func TestRecentTransfersHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	source := NewHTTPSource(&config.ExplorerConfig{BaseURL: server.URL}, newSettingRepo(t, "TReceiver1"))
	_, err := source.RecentTransfers(context.Background())
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("期望 ErrSourceUnavailable, 实际 %v", err)
	}
}

func TestRecentTransfersMissingAddress(t *testing.T) {
	source := NewHTTPSource(&config.ExplorerConfig{BaseURL: "http://localhost:0"}, newSettingRepo(t, ""))
	_, err := source.RecentTransfers(context.Background())
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("收款地址未配置应视为源不可用, 实际 %v", err)
	}
}
