package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderStatusPending   = "PENDING"   // 待支付
	OrderStatusReviewing = "REVIEWING" // 买家已传凭证，等待人工审核
	OrderStatusPaid      = "PAID"      // 已支付
	OrderStatusShipped   = "SHIPPED"   // 已发货（实物订单）
	OrderStatusCancelled = "CANCELLED" // 买家取消
	OrderStatusClosed    = "CLOSED"    // 运营关闭
)

// ValidStatusTransitions 订单状态机
// PAID 之后资金侧不再变动，SHIPPED 只是发货跟踪
var ValidStatusTransitions = map[string][]string{
	OrderStatusPending:   {OrderStatusReviewing, OrderStatusPaid, OrderStatusCancelled, OrderStatusClosed},
	OrderStatusReviewing: {OrderStatusPaid, OrderStatusPending},
	OrderStatusPaid:      {OrderStatusShipped},
}

func CanTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidStatusTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

const (
	RailUSDT    = "USDT"    // 链上转账，由对账任务确认
	RailCash    = "CASH"    // 扫码法币支付，由运营人工确认
	RailBalance = "BALANCE" // 纯余额支付，下单即支付
)

func IsValidRail(rail string) bool {
	return rail == RailUSDT || rail == RailCash || rail == RailBalance
}

// OrderItem 下单时的商品快照，单价、数量在创建时定格
type OrderItem struct {
	ProductID int64           `json:"product_id"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// ShippingInfo 收货信息，入口处解析成结构化数据，不让裸 JSON 流进核心
type ShippingInfo struct {
	Receiver string `json:"receiver,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Address  string `json:"address,omitempty"`
	Note     string `json:"note,omitempty"`
}

// Order 订单表
//
// 金额不变式：UsdtAmount / CnyAmount / FeeAmount / RateSnapshot 在创建时
// 定格，之后只有显式的换轨操作（PENDING 状态下）才会按新汇率重算。
// USDT 轨的 FeeAmount 存放去重尾数（不是手续费），因此各轨统一有
// 实欠金额 = UsdtAmount - FeeAmount。
type Order struct {
	ID             int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo        string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_no"`
	AccountID      int64           `gorm:"index;not null" json:"account_id"`
	Items          []OrderItem     `gorm:"serializer:json;type:text" json:"items"`
	Rail           string          `gorm:"type:varchar(16);not null" json:"rail"`
	UsdtAmount     decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"usdt_amount"`              // 应付USDT（USDT轨含尾数）
	CnyAmount      decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"cny_amount"`               // 应付法币（快照汇率计算）
	FeeAmount      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"fee_amount"`     // 法币轨手续费 / USDT轨尾数
	RateSnapshot   decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"rate_snapshot"`            // 创建或换轨时的汇率快照
	BalanceUsed    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"balance_used"`   // 下单时已用余额抵扣部分
	IsTopup        bool            `gorm:"not null;default:false" json:"is_topup"`                      // 是否余额充值订单
	Shipping       *ShippingInfo   `gorm:"serializer:json;type:text" json:"shipping,omitempty"`
	Status         string          `gorm:"type:varchar(20);index;not null" json:"status"`
	PaymentCodeRef string          `gorm:"type:varchar(128)" json:"payment_code_ref,omitempty"` // 运营上传的收款码引用
	EvidenceRef    string          `gorm:"type:varchar(128)" json:"evidence_ref,omitempty"`     // 买家上传的支付凭证引用
	BuyerConfirmed bool            `gorm:"not null;default:false" json:"buyer_confirmed"`       // 买家自述已付款
	ExpiredAt      time.Time       `gorm:"not null" json:"expired_at"`
	PaidAt         *time.Time      `json:"paid_at"`
	CreatedAt      time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Order) TableName() string {
	return "shop_order"
}

// AmountOwed 实欠金额：买家多付部分（含USDT轨尾数）超出该值即入余额
func (o *Order) AmountOwed() decimal.Decimal {
	return o.UsdtAmount.Sub(o.FeeAmount)
}

// IsExpired 过期订单对对账任务和人工确认都是不可终结的
func (o *Order) IsExpired(now time.Time) bool {
	return !o.ExpiredAt.After(now)
}
