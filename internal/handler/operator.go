package handler

import (
	"strconv"

	"usdtshop/internal/model"
	"usdtshop/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// 运营控制台接口，全部挂在 Bearer Token 中间件之后。
// 每个决策都按当前状态做幂等判断，重复点击第二次是无操作。

// OperatorConfirmPayment 人工确认收款
// POST /api/v1/admin/order/confirm
func (h *Handler) OperatorConfirmPayment(c *gin.Context) {
	var req struct {
		OrderNo string `json:"order_no" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	won, err := h.operatorService.ConfirmPayment(c.Request.Context(), req.OrderNo)
	if err != nil {
		writeError(c, err)
		return
	}

	message := "已确认收款"
	if !won {
		message = "订单已是已支付状态，本次无操作"
	}
	response.Success(c, gin.H{"message": message})
}

// OperatorRejectPayment 驳回买家凭证
// POST /api/v1/admin/order/reject
func (h *Handler) OperatorRejectPayment(c *gin.Context) {
	var req struct {
		OrderNo string `json:"order_no" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	won, err := h.operatorService.RejectPayment(c.Request.Context(), req.OrderNo)
	if err != nil {
		writeError(c, err)
		return
	}

	message := "凭证已驳回，订单退回待支付"
	if !won {
		message = "订单不在审核中，本次无操作"
	}
	response.Success(c, gin.H{"message": message})
}

// OperatorCloseOrder 关闭待支付订单
// POST /api/v1/admin/order/close
func (h *Handler) OperatorCloseOrder(c *gin.Context) {
	var req struct {
		OrderNo string `json:"order_no" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.operatorService.CloseOrder(c.Request.Context(), req.OrderNo); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "订单已关闭"})
}

// OperatorAdjustBalance 手工调整账户余额
// POST /api/v1/admin/account/adjust
func (h *Handler) OperatorAdjustBalance(c *gin.Context) {
	var req struct {
		AccountID int64           `json:"account_id" binding:"required"`
		Amount    decimal.Decimal `json:"amount" binding:"required"`
		Memo      string          `json:"memo" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	entry, err := h.operatorService.AdjustBalance(c.Request.Context(), req.AccountID, req.Amount, req.Memo)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{
		"entry_no":      entry.EntryNo,
		"amount":        entry.Amount,
		"balance_after": entry.BalanceAfter,
	})
}

// OperatorMarkShipped 发货
// POST /api/v1/admin/order/ship
func (h *Handler) OperatorMarkShipped(c *gin.Context) {
	var req struct {
		OrderNo string `json:"order_no" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.operatorService.MarkShipped(c.Request.Context(), req.OrderNo); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "已发货"})
}

// OperatorUploadPaymentCode 挂收款码引用
// POST /api/v1/admin/order/payment-code
func (h *Handler) OperatorUploadPaymentCode(c *gin.Context) {
	var req struct {
		OrderNo string `json:"order_no" binding:"required"`
		CodeRef string `json:"code_ref" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.operatorService.UploadPaymentCode(c.Request.Context(), req.OrderNo, req.CodeRef); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "收款码已更新"})
}

// OperatorConfirmWithdrawal 确认提现出款
// POST /api/v1/admin/withdrawal/confirm
func (h *Handler) OperatorConfirmWithdrawal(c *gin.Context) {
	var req struct {
		WithdrawalNo string `json:"withdrawal_no" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	won, err := h.operatorService.ConfirmWithdrawal(c.Request.Context(), req.WithdrawalNo)
	if err != nil {
		writeError(c, err)
		return
	}

	message := "提现已确认"
	if !won {
		message = "提现申请已处理过，本次无操作"
	}
	response.Success(c, gin.H{"message": message})
}

// OperatorRejectWithdrawal 驳回提现
// POST /api/v1/admin/withdrawal/reject
func (h *Handler) OperatorRejectWithdrawal(c *gin.Context) {
	var req struct {
		WithdrawalNo string `json:"withdrawal_no" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	won, err := h.operatorService.RejectWithdrawal(c.Request.Context(), req.WithdrawalNo)
	if err != nil {
		writeError(c, err)
		return
	}

	message := "提现已驳回，金额已返还"
	if !won {
		message = "提现申请已处理过，本次无操作"
	}
	response.Success(c, gin.H{"message": message})
}

// ============================================================
// 商品管理
// ============================================================

// ProductRequest 商品创建/更新请求
type ProductRequest struct {
	ID     int64           `json:"id"`
	Title  string          `json:"title" binding:"required"`
	Kind   string          `json:"kind"`
	Price  decimal.Decimal `json:"price" binding:"required"`
	Stock  int             `json:"stock"`
	OnSale bool            `json:"on_sale"`
}

// OperatorCreateProduct 上架商品
// POST /api/v1/admin/product/create
func (h *Handler) OperatorCreateProduct(c *gin.Context) {
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	product := &model.Product{
		Title:  req.Title,
		Kind:   req.Kind,
		Price:  req.Price,
		Stock:  req.Stock,
		OnSale: req.OnSale,
	}
	if err := h.operatorService.CreateProduct(c.Request.Context(), product); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"product_id": product.ID})
}

// OperatorUpdateProduct 更新商品
// POST /api/v1/admin/product/update
func (h *Handler) OperatorUpdateProduct(c *gin.Context) {
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	if req.ID <= 0 {
		response.ParamError(c, "id 参数错误")
		return
	}

	product := &model.Product{
		ID:     req.ID,
		Title:  req.Title,
		Kind:   req.Kind,
		Price:  req.Price,
		Stock:  req.Stock,
		OnSale: req.OnSale,
	}
	if err := h.operatorService.UpdateProduct(c.Request.Context(), product); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "商品已更新"})
}

// OperatorDeleteProduct 删除商品
// POST /api/v1/admin/product/delete?id=xxx
func (h *Handler) OperatorDeleteProduct(c *gin.Context) {
	id, err := strconv.ParseInt(c.Query("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "id 参数错误")
		return
	}

	if err := h.operatorService.DeleteProduct(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "商品已删除"})
}

// ============================================================
// 配置与危险操作
// ============================================================

// OperatorUpdateSetting 更新业务配置
// POST /api/v1/admin/setting/update
func (h *Handler) OperatorUpdateSetting(c *gin.Context) {
	var req struct {
		Key   string `json:"key" binding:"required"`
		Value string `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.operatorService.UpdateSetting(c.Request.Context(), req.Key, req.Value); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "配置已更新"})
}

// OperatorRequestDanger 危险操作第一步：签发确认口令
// POST /api/v1/admin/danger/request
func (h *Handler) OperatorRequestDanger(c *gin.Context) {
	var req struct {
		Op string `json:"op" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	token, err := h.operatorService.RequestDanger(c.Request.Context(), req.Op)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{
		"confirm_token": token,
		"message":       "口令5分钟内有效，携带口令再次调用才会执行",
	})
}

// OperatorExecuteDanger 危险操作第二步：携带口令执行
// POST /api/v1/admin/danger/execute
func (h *Handler) OperatorExecuteDanger(c *gin.Context) {
	var req struct {
		Op    string `json:"op" binding:"required"`
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.operatorService.ExecuteDanger(c.Request.Context(), req.Op, req.Token); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "已执行"})
}
