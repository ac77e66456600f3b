package unique

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/huynhanx03/go-thumb/pkg/settings"
	"github.com/huynhanx03/go-thumb/pkg/timer"
)

var (
	ErrWorkerIDRange = errors.New("worker id exceeds maximum allowed by configuration")
	ErrBitLayout     = errors.New("total bits must be greater than node + step bits")
)

// Generator hands out unique, roughly time-ordered ids.
type Generator interface {
	Generate() int64
}

// SnowflakeNode packs (time - epoch | worker | step) into one int64.
type SnowflakeNode struct {
	mu        sync.Mutex
	timestamp int64
	node      int64
	step      int64

	epoch     int64
	seconds   bool
	stepMax   int64
	timeShift uint8
	nodeShift uint8
	limitMask int64

	clock timer.Clock
}

var _ Generator = (*SnowflakeNode)(nil)

// NewSnowflakeNode validates the bit layout. Epoch is in milliseconds.
func NewSnowflakeNode(config settings.SnowflakeNode, clock timer.Clock) (*SnowflakeNode, error) {
	layout := config.Config
	nodeMax := int64(-1 ^ (-1 << layout.Node))
	stepMax := int64(-1 ^ (-1 << layout.Step))

	if config.WorkerID < 0 || config.WorkerID > nodeMax {
		return nil, errors.Wrapf(ErrWorkerIDRange, "worker %d, max %d", config.WorkerID, nodeMax)
	}

	totalBits := layout.TotalBits
	if totalBits == 0 {
		totalBits = 63
	}
	if totalBits <= layout.Node+layout.Step {
		return nil, ErrBitLayout
	}

	limitMask := int64(1)<<totalBits - 1
	if totalBits >= 63 {
		limitMask = int64(^uint64(0) >> 1)
	}

	// Under 50 bits a millisecond clock overflows within years, so the
	// layout falls back to seconds.
	seconds := totalBits < 50
	epoch := layout.Epoch
	if seconds {
		epoch /= 1000
	}

	if clock == nil {
		clock = timer.SystemClock{}
	}

	return &SnowflakeNode{
		node:      config.WorkerID,
		epoch:     epoch,
		seconds:   seconds,
		stepMax:   stepMax,
		timeShift: layout.Node + layout.Step,
		nodeShift: layout.Step,
		limitMask: limitMask,
		clock:     clock,
	}, nil
}

func (n *SnowflakeNode) tick() int64 {
	now := n.clock.Now()
	if n.seconds {
		return now.Unix()
	}
	return now.UnixMilli()
}

// Generate creates a unique ID. A clock that moves backwards is treated as
// standing still; an exhausted step borrows the next tick.
func (n *SnowflakeNode) Generate() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.tick()
	if now < n.timestamp {
		now = n.timestamp
	}

	if now == n.timestamp {
		n.step = (n.step + 1) & n.stepMax
		if n.step == 0 {
			now++
		}
	} else {
		n.step = 0
	}

	n.timestamp = now

	id := ((now - n.epoch) << n.timeShift) | (n.node << n.nodeShift) | n.step
	return id & n.limitMask
}
