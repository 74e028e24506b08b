package handler

import (
	"usdtshop/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	h := NewHandler(db, rdb, cfg)

	api := r.Group("/api/v1")
	{
		account := api.Group("/account")
		{
			account.POST("/register", h.Register)
			account.GET("/balance", h.GetBalance)
		}

		api.GET("/ledger/history", h.LedgerHistory)
		api.GET("/product/list", h.ListProducts)

		order := api.Group("/order")
		{
			order.POST("/create", h.CreateOrder)
			order.POST("/change-rail", h.ChangeRail)
			order.POST("/confirm", h.ConfirmByBuyer)
			order.POST("/evidence", h.UploadEvidence)
			order.GET("/detail", h.GetOrder)
			order.GET("/list", h.ListOrders)
			order.POST("/cancel", h.CancelOrder)
		}

		withdrawal := api.Group("/withdrawal")
		{
			withdrawal.POST("/create", h.CreateWithdrawal)
			withdrawal.GET("/list", h.ListWithdrawals)
		}

		// 运营控制台，Bearer Token 鉴权
		admin := api.Group("/admin")
		admin.Use(OperatorAuthMiddleware(cfg.Server.OperatorToken))
		{
			admin.POST("/order/confirm", h.OperatorConfirmPayment)
			admin.POST("/order/reject", h.OperatorRejectPayment)
			admin.POST("/order/close", h.OperatorCloseOrder)
			admin.POST("/order/ship", h.OperatorMarkShipped)
			admin.POST("/order/payment-code", h.OperatorUploadPaymentCode)

			admin.POST("/account/adjust", h.OperatorAdjustBalance)

			admin.POST("/withdrawal/confirm", h.OperatorConfirmWithdrawal)
			admin.POST("/withdrawal/reject", h.OperatorRejectWithdrawal)

			admin.POST("/product/create", h.OperatorCreateProduct)
			admin.POST("/product/update", h.OperatorUpdateProduct)
			admin.POST("/product/delete", h.OperatorDeleteProduct)

			admin.POST("/setting/update", h.OperatorUpdateSetting)

			admin.POST("/danger/request", h.OperatorRequestDanger)
			admin.POST("/danger/execute", h.OperatorExecuteDanger)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
