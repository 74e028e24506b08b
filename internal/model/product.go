package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ProductKindGoods = "GOODS" // 普通商品
	ProductKindTopup = "TOPUP" // 余额充值面额
)

// Product 商品表，单价以结算币计
type Product struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Title     string          `gorm:"type:varchar(128);not null" json:"title"`
	Kind      string          `gorm:"type:varchar(16);not null;default:GOODS" json:"kind"`
	Price     decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"price"` // 单价（USDT）
	Stock     int             `gorm:"not null;default:0" json:"stock"`
	OnSale    bool            `gorm:"not null;default:true" json:"on_sale"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Product) TableName() string {
	return "product"
}
