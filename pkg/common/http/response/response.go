package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/huynhanx03/go-thumb/pkg/common/apperr"
)

const (
	CodeSuccess          = 0
	CodeParamInvalid     = 40000
	CodeValidationFailed = 40001
	CodeUnauthorized     = 40100
	CodeInternalServer   = 50000
)

var messages = map[int]string{
	CodeSuccess:          "ok",
	CodeParamInvalid:     "invalid parameters",
	CodeValidationFailed: "validation failed",
	CodeUnauthorized:     "unauthorized",
	CodeInternalServer:   "internal server error",
}

// Response is the envelope every endpoint returns.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func SuccessResponse(c *gin.Context, code int, data any) {
	c.JSON(http.StatusOK, Response{Code: code, Message: messages[code], Data: data})
}

// ErrorResponse writes err and aborts the chain. AppErrors keep their own
// code, message and status; anything else is reported under code.
func ErrorResponse(c *gin.Context, code int, err error) {
	if appErr, ok := apperr.From(err); ok {
		c.AbortWithStatusJSON(apperr.StatusOf(appErr), Response{Code: appErr.Code, Message: appErr.Message})
		return
	}

	status := http.StatusInternalServerError
	msg := messages[code]
	if code != CodeInternalServer {
		status = http.StatusBadRequest
		if err != nil {
			msg = err.Error()
		}
	}
	if code == CodeUnauthorized {
		status = http.StatusUnauthorized
	}
	c.AbortWithStatusJSON(status, Response{Code: code, Message: msg})
}
