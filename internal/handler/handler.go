package handler

import (
	"errors"
	"strconv"

	"usdtshop/internal/config"
	"usdtshop/internal/model"
	"usdtshop/internal/repository"
	"usdtshop/internal/service"
	"usdtshop/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	accountService    *service.AccountService
	orderService      *service.OrderService
	withdrawalService *service.WithdrawalService
	ledgerService     *service.LedgerService
	operatorService   *service.OperatorService
	productRepo       *repository.ProductRepository
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Handler {
	return &Handler{
		accountService:    service.NewAccountService(db),
		orderService:      service.NewOrderService(db, rdb, cfg),
		withdrawalService: service.NewWithdrawalService(db),
		ledgerService:     service.NewLedgerService(db),
		operatorService:   service.NewOperatorService(db, rdb, cfg),
		productRepo:       repository.NewProductRepository(db),
	}
}

// writeError 把业务错误映射为响应码
// 校验、资金、库存类失败都是业务码，买家永远拿不到 5xx
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrAccountNotFound):
		response.BusinessError(c, response.CodeAccountNotFound, err.Error())
	case errors.Is(err, repository.ErrOrderNotFound):
		response.BusinessError(c, response.CodeOrderNotFound, err.Error())
	case errors.Is(err, repository.ErrProductNotFound):
		response.BusinessError(c, response.CodeProductNotFound, err.Error())
	case errors.Is(err, repository.ErrWithdrawalNotFound):
		response.BusinessError(c, response.CodeWithdrawalNotFound, err.Error())
	case errors.Is(err, repository.ErrBalanceNotEnough):
		response.BusinessError(c, response.CodeBalanceNotEnough, err.Error())
	case errors.Is(err, repository.ErrStockNotEnough):
		response.BusinessError(c, response.CodeStockNotEnough, err.Error())
	case errors.Is(err, repository.ErrOrderStatusInvalid), errors.Is(err, service.ErrOrderNotPending):
		response.BusinessError(c, response.CodeOrderStatusInvalid, err.Error())
	case errors.Is(err, service.ErrOrderExpired):
		response.BusinessError(c, response.CodeOrderExpired, err.Error())
	case errors.Is(err, service.ErrBalanceOverCoverage):
		response.BusinessError(c, response.CodeBalanceOverCoverage, err.Error())
	case errors.Is(err, service.ErrWithdrawalTooSmall):
		response.BusinessError(c, response.CodeWithdrawalTooSmall, err.Error())
	case errors.Is(err, service.ErrConfirmTokenInvalid):
		response.BusinessError(c, response.CodeConfirmRequired, err.Error())
	case errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidRail),
		errors.Is(err, service.ErrProductOffSale),
		errors.Is(err, service.ErrNotOrderOwner),
		errors.Is(err, service.ErrReferralCodeInvalid),
		errors.Is(err, service.ErrInvalidAdjustment),
		errors.Is(err, repository.ErrContactTaken),
		errors.Is(err, repository.ErrSettingNotFound):
		response.ParamError(c, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}

// ============================================================
// 账户相关接口
// ============================================================

// RegisterRequest 注册请求
type RegisterRequest struct {
	Contact      string `json:"contact" binding:"required"`
	PasswordHash string `json:"password_hash" binding:"required"`
	ReferralCode string `json:"referral_code"`
}

// Register 注册账户
// POST /api/v1/account/register
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	account, err := h.accountService.Register(c.Request.Context(), &service.RegisterRequest{
		Contact:      req.Contact,
		PasswordHash: req.PasswordHash,
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"account_id":    account.ID,
		"referral_code": account.ReferralCode,
	})
}

// GetBalance 查询余额
// GET /api/v1/account/balance?account_id=xxx
func (h *Handler) GetBalance(c *gin.Context) {
	accountID, err := strconv.ParseInt(c.Query("account_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "account_id 参数错误")
		return
	}

	account, err := h.accountService.GetAccount(c.Request.Context(), accountID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"account_id": account.ID,
		"balance":    account.Balance,
	})
}

// LedgerHistory 查询账户流水
// GET /api/v1/ledger/history?account_id=xxx
func (h *Handler) LedgerHistory(c *gin.Context) {
	accountID, err := strconv.ParseInt(c.Query("account_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "account_id 参数错误")
		return
	}

	entries, err := h.ledgerService.History(c.Request.Context(), accountID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"list": entries})
}

// ============================================================
// 商品相关接口
// ============================================================

// ListProducts 在售商品列表
// GET /api/v1/product/list
func (h *Handler) ListProducts(c *gin.Context) {
	products, err := h.productRepo.List(c.Request.Context(), true)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"list": products})
}

// ============================================================
// 订单相关接口
// ============================================================

// CreateOrderRequest 创建订单请求
type CreateOrderRequest struct {
	AccountID  int64               `json:"account_id" binding:"required"`
	Items      []OrderItemRequest  `json:"items" binding:"required,dive"`
	Rail       string              `json:"rail" binding:"required"`
	Shipping   *model.ShippingInfo `json:"shipping"`
	UseBalance bool                `json:"use_balance"`
}

type OrderItemRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required"`
}

// CreateOrder 创建订单
// POST /api/v1/order/create
func (h *Handler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	items := make([]service.OrderItemRequest, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, service.OrderItemRequest{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), &service.CreateOrderRequest{
		AccountID:  req.AccountID,
		Items:      items,
		Rail:       req.Rail,
		Shipping:   req.Shipping,
		UseBalance: req.UseBalance,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"order_no":    order.OrderNo,
		"status":      order.Status,
		"usdt_amount": order.UsdtAmount,
		"cny_amount":  order.CnyAmount,
		"rail":        order.Rail,
		"expired_at":  order.ExpiredAt,
	})
}

// ChangeRail 换支付方式
// POST /api/v1/order/change-rail
func (h *Handler) ChangeRail(c *gin.Context) {
	var req struct {
		OrderNo   string `json:"order_no" binding:"required"`
		AccountID int64  `json:"account_id" binding:"required"`
		NewRail   string `json:"new_rail" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	order, err := h.orderService.ChangeRail(c.Request.Context(), req.OrderNo, req.AccountID, req.NewRail)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"order_no":    order.OrderNo,
		"rail":        order.Rail,
		"usdt_amount": order.UsdtAmount,
		"cny_amount":  order.CnyAmount,
	})
}

// ConfirmByBuyer 买家自述已付款
// POST /api/v1/order/confirm
func (h *Handler) ConfirmByBuyer(c *gin.Context) {
	var req struct {
		OrderNo   string `json:"order_no" binding:"required"`
		AccountID int64  `json:"account_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.orderService.ConfirmByBuyer(c.Request.Context(), req.OrderNo, req.AccountID); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "已记录，等待确认"})
}

// UploadEvidence 上传支付凭证
// POST /api/v1/order/evidence
// 文件本体由上传收纳层处理，这里只登记引用并流转状态
func (h *Handler) UploadEvidence(c *gin.Context) {
	var req struct {
		OrderNo     string `json:"order_no" binding:"required"`
		AccountID   int64  `json:"account_id" binding:"required"`
		EvidenceRef string `json:"evidence_ref"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if req.EvidenceRef == "" {
		req.EvidenceRef = uuid.NewString()
	}

	if err := h.orderService.UploadEvidence(c.Request.Context(), req.OrderNo, req.AccountID, req.EvidenceRef); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"evidence_ref": req.EvidenceRef})
}

// GetOrder 查询订单详情
// GET /api/v1/order/detail?order_no=xxx
func (h *Handler) GetOrder(c *gin.Context) {
	orderNo := c.Query("order_no")
	if orderNo == "" {
		response.ParamError(c, "order_no 参数不能为空")
		return
	}

	order, err := h.orderService.GetOrder(c.Request.Context(), orderNo)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, order)
}

// ListOrders 查询订单列表
// GET /api/v1/order/list?account_id=xxx&page=1&page_size=10
func (h *Handler) ListOrders(c *gin.Context) {
	accountID, err := strconv.ParseInt(c.Query("account_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "account_id 参数错误")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	orders, total, err := h.orderService.ListOrders(c.Request.Context(), accountID, page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      orders,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// CancelOrder 取消订单
// POST /api/v1/order/cancel
func (h *Handler) CancelOrder(c *gin.Context) {
	var req struct {
		OrderNo   string `json:"order_no" binding:"required"`
		AccountID int64  `json:"account_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.orderService.CancelOrder(c.Request.Context(), req.OrderNo, req.AccountID); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "订单已取消"})
}

// ============================================================
// 提现相关接口
// ============================================================

// CreateWithdrawalRequest 提现申请
type CreateWithdrawalRequest struct {
	AccountID   int64           `json:"account_id" binding:"required"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Rail        string          `json:"rail" binding:"required"`
	Destination string          `json:"destination" binding:"required"`
}

// CreateWithdrawal 提交提现申请
// POST /api/v1/withdrawal/create
func (h *Handler) CreateWithdrawal(c *gin.Context) {
	var req CreateWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	withdrawal, err := h.withdrawalService.Create(c.Request.Context(), &service.CreateWithdrawalRequest{
		AccountID:   req.AccountID,
		Amount:      req.Amount,
		Rail:        req.Rail,
		Destination: req.Destination,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"withdrawal_no": withdrawal.WithdrawalNo,
		"amount":        withdrawal.Amount,
		"fee":           withdrawal.Fee,
		"net_amount":    withdrawal.NetAmount,
		"status":        withdrawal.Status,
	})
}

// ListWithdrawals 查询提现申请列表
// GET /api/v1/withdrawal/list?account_id=xxx&page=1&page_size=10
func (h *Handler) ListWithdrawals(c *gin.Context) {
	accountID, err := strconv.ParseInt(c.Query("account_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "account_id 参数错误")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	requests, total, err := h.withdrawalService.List(c.Request.Context(), accountID, page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      requests,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}
