package model

import "time"

// 业务配置键，存库而非配置文件，运营改完下一次读取即生效
const (
	SettingKeyRate                 = "usdt_cny_rate"          // USDT 对法币汇率
	SettingKeyFiatFeePercent       = "fiat_fee_percent"       // 法币轨手续费百分比
	SettingKeyReceivingAddress     = "receiving_address"      // 链上收款地址
	SettingKeyReferralBonusPercent = "referral_bonus_percent" // 推荐返佣百分比
	SettingKeyMinWithdrawal        = "min_withdrawal"         // 最低提现金额
	SettingKeyWithdrawalFeePercent = "withdrawal_fee_percent" // 提现手续费百分比
)

// Setting 键值配置表，定价与对账读取的唯一可变配置来源
type Setting struct {
	Key       string    `gorm:"primaryKey;type:varchar(64)" json:"key"`
	Value     string    `gorm:"type:varchar(256);not null" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Setting) TableName() string {
	return "setting"
}
