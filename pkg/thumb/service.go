package thumb

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/huynhanx03/go-thumb/pkg/common/apperr"
	"github.com/huynhanx03/go-thumb/pkg/database/redis"
	"github.com/huynhanx03/go-thumb/pkg/datastructs/topk"
	"github.com/huynhanx03/go-thumb/pkg/metrics"
	"github.com/huynhanx03/go-thumb/pkg/thumb/keys"
	"github.com/huynhanx03/go-thumb/pkg/timer"
)

// ToggleStore is the atomic check-and-set side of the fast store.
type ToggleStore interface {
	TryLike(ctx context.Context, t redis.Toggle) (redis.LuaStatus, error)
	TryUnlike(ctx context.Context, t redis.Toggle) (redis.LuaStatus, error)
	HasLiked(ctx context.Context, userKey, itemField string) (bool, error)
}

// Publisher hands a toggle event to the event bus. Delivery failures are
// the publisher's to compensate; the caller is never told.
type Publisher interface {
	Emit(ctx context.Context, ev ToggleEvent)
}

// HotKeys records item accesses and reports the current hot set.
type HotKeys interface {
	Record(itemID int64)
	Hot() []topk.Item
}

type Service struct {
	store   ToggleStore
	events  Publisher
	hot     HotKeys
	keys    keys.Keys
	clock   timer.Clock
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewService(store ToggleStore, events Publisher, hot HotKeys, k keys.Keys, clock timer.Clock, log *zap.Logger, m *metrics.Metrics) *Service {
	if clock == nil {
		clock = timer.SystemClock{}
	}
	return &Service{
		store:   store,
		events:  events,
		hot:     hot,
		keys:    k,
		clock:   clock,
		log:     log.Named("thumb"),
		metrics: m,
	}
}

// DoThumb records a like by userID. A second like of the same item is a
// conflict and changes nothing.
func (s *Service) DoThumb(ctx context.Context, req *DoThumbRequest, userID int64) (bool, error) {
	return s.toggle(ctx, req, userID, EventIncr)
}

// UndoThumb removes a like by userID. Unliking an item that is not liked
// is a conflict and changes nothing.
func (s *Service) UndoThumb(ctx context.Context, req *DoThumbRequest, userID int64) (bool, error) {
	return s.toggle(ctx, req, userID, EventDecr)
}

func (s *Service) toggle(ctx context.Context, req *DoThumbRequest, userID int64, typ EventType) (bool, error) {
	if req == nil || req.BlogID <= 0 {
		return false, ErrMissingItemID
	}
	itemID := req.BlogID

	now := s.clock.Now()
	t := toggleOf(s.keys, userID, itemID, now)

	var (
		status redis.LuaStatus
		err    error
	)
	if typ == EventIncr {
		status, err = s.store.TryLike(ctx, t)
	} else {
		status, err = s.store.TryUnlike(ctx, t)
	}
	if err != nil {
		s.metrics.Toggle(string(typ), metrics.OutcomeError)
		s.log.Error("toggle failed",
			zap.String("type", string(typ)),
			zap.Int64("user_id", userID),
			zap.Int64("blog_id", itemID),
			zap.Error(err))
		return false, storeError(err, apperr.MsgUpdateFailed)
	}

	if status == redis.LuaFail {
		s.metrics.Toggle(string(typ), metrics.OutcomeConflict)
		if typ == EventIncr {
			return false, ErrAlreadyLiked
		}
		return false, ErrNotLiked
	}

	s.metrics.Toggle(string(typ), metrics.OutcomeSuccess)
	s.events.Emit(ctx, ToggleEvent{
		ItemID:    itemID,
		UserID:    userID,
		Type:      typ,
		EventTime: now,
	})
	if s.hot != nil {
		s.hot.Record(itemID)
	}
	return true, nil
}

// toggleOf addresses the record of userID/itemID and its entries in the
// partition at falls in.
func toggleOf(k keys.Keys, userID, itemID int64, at time.Time) redis.Toggle {
	return redis.Toggle{
		UserKey:    k.User(userID),
		PendingKey: k.Pending(k.Partition(at)),
		ItemField:  keys.ItemField(itemID),
		PairField:  keys.PairField(userID, itemID),
		StampField: keys.StampField(userID, itemID),
		At:         at.UnixMilli(),
	}
}

// HasThumb is a point lookup of the toggle record.
func (s *Service) HasThumb(ctx context.Context, itemID, userID int64) (bool, error) {
	if itemID <= 0 {
		return false, ErrMissingItemID
	}
	ok, err := s.store.HasLiked(ctx, s.keys.User(userID), keys.ItemField(itemID))
	if err != nil {
		return false, storeError(err, apperr.MsgCheckFailed)
	}
	return ok, nil
}

// Hot returns the hot set, hottest first. Keys that are not item ids are
// skipped.
func (s *Service) Hot() []HotItem {
	if s.hot == nil {
		return nil
	}
	items := s.hot.Hot()
	out := make([]HotItem, 0, len(items))
	for _, it := range items {
		id, err := strconv.ParseInt(it.Key, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, HotItem{BlogID: id, Count: it.Count})
	}
	return out
}
