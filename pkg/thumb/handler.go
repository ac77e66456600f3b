package thumb

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/huynhanx03/go-thumb/pkg/common/http/handler"
	"github.com/huynhanx03/go-thumb/pkg/common/http/request"
)

var errNoUser = errors.New("no acting user on request")

// Handler exposes the service over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the thumb routes on r.
func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/thumb")
	g.GET("/hot", handler.Wrap(h.hot))

	authed := g.Group("", handler.RequireUser())
	authed.POST("/do", handler.Wrap(h.doThumb))
	authed.POST("/undo", handler.Wrap(h.undoThumb))
	authed.GET("/has", handler.Wrap(h.hasThumb))
}

func (h *Handler) doThumb(ctx context.Context, req *DoThumbRequest) (bool, error) {
	userID, ok := request.UserID(ctx)
	if !ok {
		return false, errNoUser
	}
	return h.svc.DoThumb(ctx, req, userID)
}

func (h *Handler) undoThumb(ctx context.Context, req *DoThumbRequest) (bool, error) {
	userID, ok := request.UserID(ctx)
	if !ok {
		return false, errNoUser
	}
	return h.svc.UndoThumb(ctx, req, userID)
}

func (h *Handler) hasThumb(ctx context.Context, req *HasThumbRequest) (bool, error) {
	userID, ok := request.UserID(ctx)
	if !ok {
		return false, errNoUser
	}
	return h.svc.HasThumb(ctx, req.BlogID, userID)
}

func (h *Handler) hot(_ context.Context, _ *HotRequest) ([]HotItem, error) {
	return h.svc.Hot(), nil
}
