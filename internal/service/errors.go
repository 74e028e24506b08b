package service

import "errors"

// 业务校验类错误，处理器层映射为业务码返回给买家，不算服务端故障
var (
	ErrInvalidQuantity     = errors.New("商品数量必须大于0")
	ErrInvalidRail         = errors.New("不支持的支付方式")
	ErrProductOffSale      = errors.New("商品已下架")
	ErrOrderExpired        = errors.New("订单已过期")
	ErrOrderNotPending     = errors.New("订单当前状态不允许该操作")
	ErrNotOrderOwner       = errors.New("无权操作该订单")
	ErrBalanceOverCoverage = errors.New("余额抵扣不能覆盖全部应付金额，请选择余额支付")
	ErrWithdrawalTooSmall  = errors.New("提现金额低于最低限额")
	ErrReferralCodeInvalid = errors.New("推荐码无效")
	ErrConfirmTokenInvalid = errors.New("确认口令无效或已过期")
	ErrInvalidAdjustment   = errors.New("调整金额不能为0")
)
