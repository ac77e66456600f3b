package thumb

import "time"

// EventType is the direction of a toggle.
type EventType string

const (
	EventIncr EventType = "INCR"
	EventDecr EventType = "DECR"
)

// ToggleEvent is published for every successful toggle.
type ToggleEvent struct {
	ItemID    int64     `json:"blogId"`
	UserID    int64     `json:"userId"`
	Type      EventType `json:"type"`
	EventTime time.Time `json:"eventTime"`
}

// DoThumbRequest is the body of /thumb/do and /thumb/undo.
type DoThumbRequest struct {
	BlogID int64 `json:"blogId" form:"blogId" validate:"gte=0"`
}

// HasThumbRequest is the query of /thumb/has.
type HasThumbRequest struct {
	BlogID int64 `form:"blogId" validate:"gte=0"`
}

// HotRequest carries no parameters.
type HotRequest struct{}

// HotItem is one entry of the hot-set snapshot.
type HotItem struct {
	BlogID int64  `json:"blogId"`
	Count  uint32 `json:"count"`
}
