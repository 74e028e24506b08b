package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess      = 0
	CodeParamError   = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeServerError  = 500
)

// 业务错误码：资金、库存、状态类失败一律走业务码，不给买家 5xx
const (
	CodeOrderNotFound       = 1001
	CodeOrderStatusInvalid  = 1002
	CodeBalanceNotEnough    = 1003
	CodeStockNotEnough      = 1004
	CodeAccountNotFound     = 1005
	CodeProductNotFound     = 1006
	CodeWithdrawalNotFound  = 1007
	CodeWithdrawalTooSmall  = 1008
	CodeBalanceOverCoverage = 1009
	CodeOrderExpired        = 1010
	CodeConfirmRequired     = 1011
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

func BusinessError(c *gin.Context, code int, message string) {
	Error(c, code, message)
}
