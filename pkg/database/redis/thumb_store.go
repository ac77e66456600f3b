package redis

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
	redisV9 "github.com/redis/go-redis/v9"
)

// LuaStatus is the reply of a check-and-set script.
type LuaStatus int64

const (
	LuaSuccess LuaStatus = 1
	LuaFail    LuaStatus = -1
)

const scanBatch = 500

// ThumbStore is the fast store for toggle records and pending partitions.
// Every check-and-set runs as one server-side script.
type ThumbStore struct {
	client redisV9.UniversalClient
}

// NewThumbStore wraps an existing client.
func NewThumbStore(client redisV9.UniversalClient) *ThumbStore {
	return &ThumbStore{client: client}
}

// Toggle addresses one user/item record and its partition entries.
type Toggle struct {
	UserKey    string
	PendingKey string
	ItemField  string
	PairField  string
	StampField string
	At         int64 // unix ms
}

func (t Toggle) keys() []string { return []string{t.UserKey, t.PendingKey} }

func (t Toggle) args() []any {
	return []any{t.ItemField, t.PairField, t.StampField, t.At}
}

// TryLike records the like unless the user already has one for the item.
func (s *ThumbStore) TryLike(ctx context.Context, t Toggle) (LuaStatus, error) {
	return s.runStatus(ctx, likeScript, t)
}

// TryUnlike removes the like if the user has one for the item.
func (s *ThumbStore) TryUnlike(ctx context.Context, t Toggle) (LuaStatus, error) {
	return s.runStatus(ctx, unlikeScript, t)
}

// RollbackLike undoes a like whose event could not be published.
// It reports whether anything was undone.
func (s *ThumbStore) RollbackLike(ctx context.Context, t Toggle) (bool, error) {
	n, err := rollbackLikeScript.Run(ctx, s.client, t.keys(), t.args()...).Int64()
	if err != nil {
		return false, errors.Wrap(err, "rollback like")
	}
	return n == 1, nil
}

// RollbackUnlike restores a like whose unlike event could not be published.
func (s *ThumbStore) RollbackUnlike(ctx context.Context, t Toggle) (bool, error) {
	n, err := rollbackUnlikeScript.Run(ctx, s.client, t.keys(), t.args()...).Int64()
	if err != nil {
		return false, errors.Wrap(err, "rollback unlike")
	}
	return n == 1, nil
}

// HasLiked is a plain point lookup.
func (s *ThumbStore) HasLiked(ctx context.Context, userKey, itemField string) (bool, error) {
	ok, err := s.client.HExists(ctx, userKey, itemField).Result()
	if err != nil {
		return false, errors.Wrap(err, "has liked")
	}
	return ok, nil
}

// ScanKeys returns every key matching pattern using incremental SCAN.
func (s *ThumbStore) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := s.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return nil, errors.Wrapf(err, "scan %s", pattern)
		}
		keys = append(keys, batch...)
		if next == 0 {
			return dedupe(keys), nil
		}
		cursor = next
	}
}

// ClaimPartition atomically renames pendingKey to claimKey. It returns
// false when there is nothing pending.
func (s *ThumbStore) ClaimPartition(ctx context.Context, pendingKey, claimKey string) (bool, error) {
	n, err := claimScript.Run(ctx, s.client, []string{pendingKey, claimKey}).Int64()
	if err != nil {
		return false, errors.Wrapf(err, "claim %s", pendingKey)
	}
	return n == 1, nil
}

// ReadPartition returns the signed deltas stored in a partition hash.
func (s *ThumbStore) ReadPartition(ctx context.Context, key string) (map[string]int64, error) {
	raw, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", key)
	}

	out := make(map[string]int64, len(raw))
	for field, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(ErrUnexpectedReply, "field %s of %s holds %q", field, key, v)
		}
		out[field] = n
	}
	return out, nil
}

// DeleteKeys removes keys; missing keys are ignored.
func (s *ThumbStore) DeleteKeys(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return errors.Wrap(s.client.Del(ctx, keys...).Err(), "delete keys")
}

func (s *ThumbStore) runStatus(ctx context.Context, script *redisV9.Script, t Toggle) (LuaStatus, error) {
	n, err := script.Run(ctx, s.client, t.keys(), t.args()...).Int64()
	if err != nil {
		return LuaFail, errors.Wrap(err, "run toggle script")
	}

	switch status := LuaStatus(n); status {
	case LuaSuccess, LuaFail:
		return status, nil
	default:
		return LuaFail, errors.Wrapf(ErrUnexpectedReply, "toggle script returned %d", n)
	}
}

// SCAN may return a key more than once.
func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
