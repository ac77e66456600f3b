package apperr

import "fmt"

// Messages appended to the owning service name by MapError.
const (
	MsgGetFailed    = "failed to get"
	MsgUpdateFailed = "failed to update"
	MsgCheckFailed  = "failed to check"
)

// MapError wraps a dependency failure as "<service> <msg>" under code.
// A nil err maps to nil.
func MapError(serviceName string, err error, code int, msg string, httpStatus int) *AppError {
	if err == nil {
		return nil
	}
	return Wrap(err, code, fmt.Sprintf("%s %s", serviceName, msg), httpStatus)
}
