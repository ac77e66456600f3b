package request

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/huynhanx03/go-thumb/pkg/common/http/validation"
)

type userIDKey struct{}

// ParseRequest binds the body (or query for GET) into T and validates it.
func ParseRequest[T any](c *gin.Context) (*T, error) {
	var req T
	if err := c.ShouldBind(&req); err != nil {
		return nil, errors.Wrap(err, "bind request")
	}

	if err := validation.Validate(req); err != nil {
		return nil, err
	}

	return &req, nil
}

// WithUserID stores the resolved acting user on ctx.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserID returns the acting user stored by WithUserID.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey{}).(int64)
	return id, ok
}
