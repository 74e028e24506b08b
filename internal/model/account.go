package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account 买家账户表
// 每个账户只有一个结算币（USDT）余额，所有余额变动必须走
// 带流水的资金操作，禁止直接修改该字段
type Account struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Contact      string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"contact"`        // 联系方式（登录标识）
	PasswordHash string          `gorm:"type:varchar(128);not null" json:"-"`                         // 密码哈希（认证由外部保证）
	Balance      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"balance"`        // 可用余额（USDT，4位小数）
	ReferrerID   *int64          `gorm:"index" json:"referrer_id,omitempty"`                          // 推荐人账户ID
	ReferralCode *string         `gorm:"type:varchar(36);uniqueIndex" json:"referral_code,omitempty"` // 本账户的推荐码
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "account"
}
