package constraints

const (
	HeaderUserID     = "X-User-Id"
	ContextKeyUserID = "user_id"
)
