package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	WithdrawalStatusPending   = "PENDING"
	WithdrawalStatusCompleted = "COMPLETED"
	WithdrawalStatusRejected  = "REJECTED"
)

// WithdrawalRequest 提现申请表
// 申请时余额已预扣（带流水），确认不再动余额，驳回需返还并记反向流水
type WithdrawalRequest struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	WithdrawalNo string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"withdrawal_no"`
	AccountID    int64           `gorm:"index;not null" json:"account_id"`
	Amount       decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`     // 申请金额
	Fee          decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"fee"`        // 手续费
	NetAmount    decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"net_amount"` // 实际出款
	Rail         string          `gorm:"type:varchar(16);not null" json:"rail"`
	Destination  string          `gorm:"type:varchar(128);not null" json:"destination"` // 收款地址/账号
	Status       string          `gorm:"type:varchar(20);index;not null" json:"status"`
	CreatedAt    time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (WithdrawalRequest) TableName() string {
	return "withdrawal_request"
}
