package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"usdtshop/internal/config"
	"usdtshop/internal/model"
	"usdtshop/internal/repository"

	"github.com/shopspring/decimal"
)

// 区块浏览器是不可信的外部数据源：可能超时、限流、返回空。
// 拉取失败用 ErrSourceUnavailable 标识，调用方（对账任务）只记日志
// 等下个周期，绝不把“源挂了”当成“还没付款”。

var ErrSourceUnavailable = errors.New("区块浏览器不可用")

// Transfer 一笔到账记录
type Transfer struct {
	TxID      string
	From      string
	Amount    decimal.Decimal
	Timestamp time.Time
}

// Source 支付凭据来源，对账任务只依赖这个接口，测试用假源驱动
type Source interface {
	RecentTransfers(ctx context.Context) ([]Transfer, error)
}

// HTTPSource TronGrid 风格的 TRC20 转账查询
type HTTPSource struct {
	client      *http.Client
	baseURL     string
	fetchLimit  int
	settingRepo *repository.SettingRepository
}

func NewHTTPSource(cfg *config.ExplorerConfig, settingRepo *repository.SettingRepository) *HTTPSource {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limit := cfg.FetchLimit
	if limit <= 0 {
		limit = 50
	}
	return &HTTPSource{
		client:      &http.Client{Timeout: timeout},
		baseURL:     cfg.BaseURL,
		fetchLimit:  limit,
		settingRepo: settingRepo,
	}
}

type trc20Response struct {
	Data []struct {
		TransactionID  string `json:"transaction_id"`
		From           string `json:"from"`
		To             string `json:"to"`
		Value          string `json:"value"`
		BlockTimestamp int64  `json:"block_timestamp"` // 毫秒
		TokenInfo      struct {
			Symbol   string `json:"symbol"`
			Decimals int32  `json:"decimals"`
		} `json:"token_info"`
	} `json:"data"`
}

// RecentTransfers 拉取收款地址最近的 TRC20 入账
// 收款地址每次现读配置表，运营换地址后下个周期即生效
func (s *HTTPSource) RecentTransfers(ctx context.Context) ([]Transfer, error) {
	address, err := s.settingRepo.Get(ctx, model.SettingKeyReceivingAddress)
	if err != nil || address == "" {
		return nil, fmt.Errorf("%w: 收款地址未配置", ErrSourceUnavailable)
	}

	url := fmt.Sprintf("%s/v1/accounts/%s/transactions/trc20?only_to=true&limit=%d", s.baseURL, address, s.fetchLimit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: 状态码 %d", ErrSourceUnavailable, resp.StatusCode)
	}

	var body trc20Response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: 响应解析失败: %v", ErrSourceUnavailable, err)
	}

	transfers := make([]Transfer, 0, len(body.Data))
	for _, item := range body.Data {
		if item.TokenInfo.Symbol != "USDT" {
			continue
		}
		raw, err := decimal.NewFromString(item.Value)
		if err != nil {
			// 单条脏数据跳过，不拖垮整批
			continue
		}
		transfers = append(transfers, Transfer{
			TxID:      item.TransactionID,
			From:      item.From,
			Amount:    raw.Shift(-item.TokenInfo.Decimals),
			Timestamp: time.UnixMilli(item.BlockTimestamp),
		})
	}
	return transfers, nil
}
