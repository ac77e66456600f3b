package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/huynhanx03/go-thumb/pkg/common/http/request"
	"github.com/huynhanx03/go-thumb/pkg/common/http/response"
	"github.com/huynhanx03/go-thumb/pkg/constraints"
)

// HandlerFunc is the generic function signature
type HandlerFunc[T any, R any] func(context.Context, *T) (R, error)

// Wrap converts a generic handler to a Gin handler
func Wrap[T any, R any](h HandlerFunc[T, R]) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := request.ParseRequest[T](c)
		if err != nil {
			response.ErrorResponse(c, response.CodeParamInvalid, err)
			return
		}

		res, err := h(c.Request.Context(), req)
		if err != nil {
			response.ErrorResponse(c, response.CodeInternalServer, err)
			return
		}

		response.SuccessResponse(c, response.CodeSuccess, res)
	}
}

// RequireUser resolves the acting user from the identity header set by the
// upstream session layer and stores it on the request context.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(constraints.HeaderUserID)
		userID, err := strconv.ParseInt(raw, 10, 64)
		if raw == "" || err != nil || userID <= 0 {
			response.ErrorResponse(c, response.CodeUnauthorized, errors.New("missing or invalid user"))
			return
		}

		c.Set(constraints.ContextKeyUserID, userID)
		c.Request = c.Request.WithContext(request.WithUserID(c.Request.Context(), userID))
		c.Next()
	}
}
