package database

import "context"

// Relation is one user/item pair whose like state changed in a batch.
// At is the time of the toggle that produced the state, in unix ms.
// Stores keep the state with the latest At, so batches may be applied
// in any order.
type Relation struct {
	UserID int64
	ItemID int64
	At     int64
}

// Batch is the aggregated content of one claimed date partition.
type Batch struct {
	ID        int64
	Partition string
	Deltas    map[int64]int64 // item id -> signed count delta
	Likes     []Relation
	Unlikes   []Relation
}

// Empty reports whether applying the batch would change nothing.
func (b *Batch) Empty() bool {
	return len(b.Deltas) == 0 && len(b.Likes) == 0 && len(b.Unlikes) == 0
}

// CountApplier applies a batch to the durable store. Implementations must
// apply the whole batch in one transaction and treat a batch ID they have
// already applied as a no-op. The bool result reports whether this call
// applied the batch.
type CountApplier interface {
	ApplyBatch(ctx context.Context, batch *Batch) (bool, error)
	Close(ctx context.Context) error
}
