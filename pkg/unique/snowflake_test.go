package unique

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/huynhanx03/go-thumb/pkg/settings"
	"github.com/huynhanx03/go-thumb/pkg/timer"
)

func layout(node, step uint8, worker int64) settings.SnowflakeNode {
	return settings.SnowflakeNode{
		Config:   settings.Snowflake{Epoch: 1704067200000, Node: node, Step: step},
		WorkerID: worker,
	}
}

func TestNewSnowflakeNode_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  settings.SnowflakeNode
		want error
	}{
		{"valid", layout(10, 12, 1), nil},
		{"worker_too_large", layout(2, 12, 4), ErrWorkerIDRange},
		{"negative_worker", layout(10, 12, -1), ErrWorkerIDRange},
		{"bits_overflow", settings.SnowflakeNode{Config: settings.Snowflake{Node: 20, Step: 20, TotalBits: 40}}, ErrBitLayout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSnowflakeNode(tt.cfg, nil)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestGenerate_Layout(t *testing.T) {
	clock := timer.NewManualClock(time.UnixMilli(1704067200000 + 5))
	n, err := NewSnowflakeNode(layout(10, 12, 3), clock)
	if err != nil {
		t.Fatal(err)
	}

	id := n.Generate()
	if want := int64(5<<22 | 3<<12); id != want {
		t.Errorf("Generate() = %d, want %d", id, want)
	}
	if id2 := n.Generate(); id2 != id+1 {
		t.Errorf("second id in the same tick = %d, want %d", id2, id+1)
	}
}

func TestGenerate_StepOverflowBorrowsNextTick(t *testing.T) {
	clock := timer.NewManualClock(time.UnixMilli(1704067200000))
	n, _ := NewSnowflakeNode(layout(1, 1, 0), clock)

	a, b, c := n.Generate(), n.Generate(), n.Generate()
	if !(a < b && b < c) {
		t.Errorf("ids not increasing: %d %d %d", a, b, c)
	}
}

func TestGenerate_ClockBackwards(t *testing.T) {
	clock := timer.NewManualClock(time.UnixMilli(1704067200000 + 100))
	n, _ := NewSnowflakeNode(layout(10, 12, 1), clock)

	first := n.Generate()
	clock.Advance(-50 * time.Millisecond)
	if next := n.Generate(); next <= first {
		t.Errorf("id went backwards: %d after %d", next, first)
	}
}

func TestGenerate_ConcurrentUnique(t *testing.T) {
	n, _ := NewSnowflakeNode(layout(10, 12, 1), nil)

	var mu sync.Mutex
	seen := make(map[int64]struct{})
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				id := n.Generate()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != 8000 {
		t.Errorf("unique ids = %d, want 8000", len(seen))
	}
}
