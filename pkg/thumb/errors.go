package thumb

import (
	"net/http"

	"github.com/huynhanx03/go-thumb/pkg/common/apperr"
)

const serviceName = "thumb"

const (
	CodeMissingItemID = 40002
	CodeAlreadyLiked  = 40901
	CodeNotLiked      = 40902
	CodeStoreFailure  = 50001
)

var (
	ErrMissingItemID = apperr.New(CodeMissingItemID, "blog id is required", http.StatusBadRequest, nil)
	ErrAlreadyLiked  = apperr.New(CodeAlreadyLiked, "already liked", http.StatusConflict, nil)
	ErrNotLiked      = apperr.New(CodeNotLiked, "not liked yet", http.StatusConflict, nil)
)

func storeError(err error, msg string) *apperr.AppError {
	return apperr.MapError(serviceName, err, CodeStoreFailure, msg, http.StatusInternalServerError)
}
