package service

import (
	"context"
	"fmt"
	"math/rand"

	"usdtshop/internal/model"
	"usdtshop/internal/repository"

	"github.com/shopspring/decimal"
)

// 定价引擎
//
// 金额口径：
//   - 法币轨：fee = base*rate*feePercent/100，cny = base*rate + fee，usdt = base
//   - USDT轨：usdt = base + 去重尾数，cny = base*rate（不加价），fee 字段存尾数
//   - 余额轨：usdt = base，cny = base*rate，无手续费
//
// 去重尾数在 [0.1000, 0.9999]，4位小数。两笔同价订单靠尾数区分，对账任务
// 才能按金额精确匹配链上转账，它不是手续费，买家多付的尾数最终入余额。

var oneHundred = decimal.NewFromInt(100)

// PriceQuote 一次定价的完整结果，全部字段在订单上定格
type PriceQuote struct {
	UsdtAmount   decimal.Decimal
	CnyAmount    decimal.Decimal
	FeeAmount    decimal.Decimal
	RateSnapshot decimal.Decimal
}

type PricingEngine struct {
	settingRepo *repository.SettingRepository
	nonce       func() decimal.Decimal
}

func NewPricingEngine(settingRepo *repository.SettingRepository) *PricingEngine {
	return &PricingEngine{
		settingRepo: settingRepo,
		nonce:       randomNonce,
	}
}

// randomNonce 取 [0.1000, 0.9999] 内的4位小数
func randomNonce() decimal.Decimal {
	n := rand.Intn(9000) + 1000 // 1000..9999
	return decimal.New(int64(n), -4)
}

// SumItems 计算商品基础金额，数量非法直接拒绝
func SumItems(items []model.OrderItem) (decimal.Decimal, error) {
	if len(items) == 0 {
		return decimal.Zero, ErrInvalidQuantity
	}
	base := decimal.Zero
	for _, item := range items {
		if item.Quantity <= 0 {
			return decimal.Zero, ErrInvalidQuantity
		}
		base = base.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return base, nil
}

// PriceOrder 纯定价函数
// cny 金额对同一组入参是确定的，只有 USDT 轨的尾数引入随机性
func PriceOrder(base decimal.Decimal, rail string, feePercent, rate, nonce decimal.Decimal) (*PriceQuote, error) {
	if !base.IsPositive() {
		return nil, ErrInvalidQuantity
	}

	quote := &PriceQuote{RateSnapshot: rate}

	switch rail {
	case model.RailCash:
		fee := base.Mul(rate).Mul(feePercent).Div(oneHundred).Round(4)
		quote.FeeAmount = fee
		quote.CnyAmount = base.Mul(rate).Round(4).Add(fee)
		quote.UsdtAmount = base
	case model.RailUSDT:
		quote.FeeAmount = nonce
		quote.UsdtAmount = base.Add(nonce)
		quote.CnyAmount = base.Mul(rate).Round(4)
	case model.RailBalance:
		quote.FeeAmount = decimal.Zero
		quote.UsdtAmount = base
		quote.CnyAmount = base.Mul(rate).Round(4)
	default:
		return nil, ErrInvalidRail
	}

	return quote, nil
}

// Quote 读取当前汇率与手续费配置并定价
// 配置每次现读（setting 表是唯一可信来源），不做进程内缓存
func (e *PricingEngine) Quote(ctx context.Context, base decimal.Decimal, rail string) (*PriceQuote, error) {
	rate, err := e.settingRepo.GetDecimal(ctx, model.SettingKeyRate)
	if err != nil {
		return nil, fmt.Errorf("读取汇率配置失败: %w", err)
	}
	feePercent, err := e.settingRepo.GetDecimal(ctx, model.SettingKeyFiatFeePercent)
	if err != nil {
		return nil, fmt.Errorf("读取手续费配置失败: %w", err)
	}

	return PriceOrder(base, rail, feePercent, rate, e.nonce())
}
