package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	LedgerKindTopup              = "TOPUP"               // 充值入账
	LedgerKindSpend              = "SPEND"               // 消费扣款
	LedgerKindWithdrawal         = "WITHDRAWAL"          // 提现预扣
	LedgerKindWithdrawalReversal = "WITHDRAWAL_REVERSAL" // 提现驳回返还
	LedgerKindReferralPayout     = "REFERRAL_PAYOUT"     // 推荐返佣
	LedgerKindAdjustment         = "ADJUSTMENT"          // 运营手工调整
)

// LedgerEntry 账户流水表
//
// 流水表设计原则：
// 1. 只追加，不修改，不删除
// 2. 每条流水记录变动后余额快照，审计时无需回放历史
// 3. 同一账户的流水顺序由生成事务的提交顺序保证（行锁串行化读改写）
type LedgerEntry struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	EntryNo      string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"entry_no"`
	AccountID    int64           `gorm:"index;not null" json:"account_id"`
	OrderNo      string          `gorm:"type:varchar(64);index" json:"order_no,omitempty"` // 关联订单/提现单号
	Kind         string          `gorm:"type:varchar(32);not null" json:"kind"`
	Amount       decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`        // 正数入账，负数出账
	BalanceAfter decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"balance_after"` // 变动后余额快照
	Memo         string          `gorm:"type:varchar(256)" json:"memo"`
	CreatedAt    time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

func (LedgerEntry) TableName() string {
	return "ledger_entry"
}
