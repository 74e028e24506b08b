package repository

import (
	"context"
	"errors"
	"time"

	"usdtshop/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrOrderNotFound      = errors.New("订单不存在")
	ErrOrderStatusInvalid = errors.New("订单状态不合法")
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(order).Error
}

func (r *OrderRepository) GetByOrderNo(ctx context.Context, tx *gorm.DB, orderNo string) (*model.Order, error) {
	if tx == nil {
		tx = r.db
	}
	var order model.Order
	err := tx.WithContext(ctx).Where("order_no = ?", orderNo).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// UpdateStatus 带守卫的状态迁移
// WHERE status = from 的条件更新保证并发下只有一个调用生效，
// RowsAffected = 0 即说明状态已被别人改走
func (r *OrderRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, orderNo string, fromStatus, toStatus string) error {
	if !model.CanTransitionTo(fromStatus, toStatus) {
		return ErrOrderStatusInvalid
	}

	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Order{}).
		Where("order_no = ? AND status = ?", orderNo, fromStatus).
		Update("status", toStatus)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOrderStatusInvalid
	}
	return nil
}

// MarkPaid 置为已支付
// 允许的来源状态是 PENDING 和 REVIEWING，且订单必须未过期。
// 条件更新保证幂等：已经是 PAID 的订单再标一次 RowsAffected = 0，
// 调用方据此跳过入账
func (r *OrderRepository) MarkPaid(ctx context.Context, tx *gorm.DB, orderNo string, paidAt time.Time) (bool, error) {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Order{}).
		Where("order_no = ? AND status IN ? AND expired_at > ?",
			orderNo, []string{model.OrderStatusPending, model.OrderStatusReviewing}, paidAt).
		Updates(map[string]interface{}{
			"status":  model.OrderStatusPaid,
			"paid_at": &paidAt,
		})

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// GetPendingUSDTOrders 待对账订单：USDT 轨、未支付、未过期
func (r *OrderRepository) GetPendingUSDTOrders(ctx context.Context, now time.Time, limit int) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND rail = ? AND expired_at > ?", model.OrderStatusPending, model.RailUSDT, now).
		Order("created_at ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

// UpdatePricing 换轨重新定价，只允许 PENDING 状态
// 金额与汇率快照一并改写，这是创建之后唯一的重定价入口
func (r *OrderRepository) UpdatePricing(ctx context.Context, tx *gorm.DB, orderNo, rail string, usdtAmount, cnyAmount, feeAmount, rate decimal.Decimal) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Order{}).
		Where("order_no = ? AND status = ?", orderNo, model.OrderStatusPending).
		Updates(map[string]interface{}{
			"rail":          rail,
			"usdt_amount":   usdtAmount,
			"cny_amount":    cnyAmount,
			"fee_amount":    feeAmount,
			"rate_snapshot": rate,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOrderStatusInvalid
	}
	return nil
}

// SetEvidence 记录买家凭证并进入人工审核
func (r *OrderRepository) SetEvidence(ctx context.Context, orderNo, evidenceRef string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("order_no = ? AND status = ?", orderNo, model.OrderStatusPending).
		Updates(map[string]interface{}{
			"status":       model.OrderStatusReviewing,
			"evidence_ref": evidenceRef,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOrderStatusInvalid
	}
	return nil
}

// ClearEvidence 运营驳回凭证，清空引用并退回待支付
// 只对审核中的订单生效，重复驳回第二次 RowsAffected = 0，
// 调用方据此返回无操作
func (r *OrderRepository) ClearEvidence(ctx context.Context, orderNo string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("order_no = ? AND status = ?", orderNo, model.OrderStatusReviewing).
		Updates(map[string]interface{}{
			"status":       model.OrderStatusPending,
			"evidence_ref": "",
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// SetPaymentCode 运营为现金轨订单挂收款码引用
func (r *OrderRepository) SetPaymentCode(ctx context.Context, orderNo, codeRef string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("order_no = ?", orderNo).
		Update("payment_code_ref", codeRef)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// SetBuyerConfirmed 买家自述已付款，只做标记，不改资金状态
func (r *OrderRepository) SetBuyerConfirmed(ctx context.Context, orderNo string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("order_no = ? AND status IN ?", orderNo, []string{model.OrderStatusPending, model.OrderStatusReviewing}).
		Update("buyer_confirmed", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOrderStatusInvalid
	}
	return nil
}

func (r *OrderRepository) ListByAccountID(ctx context.Context, accountID int64, page, pageSize int) ([]*model.Order, int64, error) {
	var orders []*model.Order
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Order{}).Where("account_id = ?", accountID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&orders).Error

	return orders, total, err
}
