// Package keys names the fast-store keys of the toggle pipeline.
//
//	{prefix}:user:{userId}            hash, field {itemId} = 1
//	{prefix}:pending:{date}           hash, field {userId}:{itemId} = net delta,
//	                                  field {userId}:{itemId}:at = last toggle, unix ms
//	{prefix}:syncing:{date}:{batchId} a pending hash claimed by one sync run
package keys

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	DateLayout    = "2006-01-02"
	DefaultPrefix = "thumb"

	segUser    = "user"
	segPending = "pending"
	segSyncing = "syncing"

	stampSuffix = ":at"
)

var ErrMalformedField = errors.New("malformed partition field")

// Keys builds and parses keys under one prefix. Partition dates are
// computed in loc.
type Keys struct {
	prefix string
	loc    *time.Location
}

func New(prefix string, loc *time.Location) Keys {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if loc == nil {
		loc = time.Local
	}
	return Keys{prefix: prefix, loc: loc}
}

func (k Keys) join(parts ...string) string {
	return k.prefix + ":" + strings.Join(parts, ":")
}

func (k Keys) User(userID int64) string {
	return k.join(segUser, strconv.FormatInt(userID, 10))
}

func (k Keys) Pending(date string) string {
	return k.join(segPending, date)
}

func (k Keys) Syncing(date string, batchID int64) string {
	return k.join(segSyncing, date, strconv.FormatInt(batchID, 10))
}

// PendingPattern matches every pending partition.
func (k Keys) PendingPattern() string {
	return k.join(segPending, "*")
}

// SyncingPattern matches every claimed partition.
func (k Keys) SyncingPattern() string {
	return k.join(segSyncing, "*")
}

// SyncingPatternFor matches claimed partitions of one date.
func (k Keys) SyncingPatternFor(date string) string {
	return k.join(segSyncing, date, "*")
}

// Partition returns the date partition t falls in.
func (k Keys) Partition(t time.Time) string {
	return t.In(k.loc).Format(DateLayout)
}

// DateOf extracts the partition date from a pending or syncing key.
func (k Keys) DateOf(key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, k.prefix+":")
	if !ok {
		return "", false
	}

	seg, rest, ok := strings.Cut(rest, ":")
	if !ok || (seg != segPending && seg != segSyncing) {
		return "", false
	}

	date, _, _ := strings.Cut(rest, ":")
	if _, err := time.Parse(DateLayout, date); err != nil {
		return "", false
	}
	return date, true
}

// BatchIDOf extracts the batch id from a syncing key.
func (k Keys) BatchIDOf(key string) (int64, bool) {
	rest, ok := strings.CutPrefix(key, k.join(segSyncing)+":")
	if !ok {
		return 0, false
	}
	_, id, ok := strings.Cut(rest, ":")
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func ItemField(itemID int64) string {
	return strconv.FormatInt(itemID, 10)
}

func PairField(userID, itemID int64) string {
	return strconv.FormatInt(userID, 10) + ":" + strconv.FormatInt(itemID, 10)
}

// StampField holds the time of the latest toggle of a pair in a partition.
func StampField(userID, itemID int64) string {
	return PairField(userID, itemID) + stampSuffix
}

// PairOfStamp returns the pair field a stamp field belongs to.
func PairOfStamp(field string) (string, bool) {
	return strings.CutSuffix(field, stampSuffix)
}

// ParsePairField splits a {userId}:{itemId} partition field.
func ParsePairField(field string) (userID, itemID int64, err error) {
	u, i, ok := strings.Cut(field, ":")
	if !ok {
		return 0, 0, errors.Wrap(ErrMalformedField, field)
	}
	if userID, err = strconv.ParseInt(u, 10, 64); err != nil {
		return 0, 0, errors.Wrap(ErrMalformedField, field)
	}
	if itemID, err = strconv.ParseInt(i, 10, 64); err != nil {
		return 0, 0, errors.Wrap(ErrMalformedField, field)
	}
	return userID, itemID, nil
}
