package postgres

import (
	"context"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/huynhanx03/go-thumb/pkg/database"
)

const (
	insertBatchSQL = `
		INSERT INTO thumb_sync_batch (batch_id, partition)
		VALUES ($1, $2)
		ON CONFLICT (batch_id) DO NOTHING`

	applyDeltasSQL = `
		UPDATE blog AS b
		SET thumb_count = b.thumb_count + d.delta, updated_at = now()
		FROM unnest($1::bigint[], $2::bigint[]) AS d(id, delta)
		WHERE b.id = d.id`

	// Unlikes are kept as liked = false rows so an older like applied
	// later cannot bring the relation back.
	upsertThumbsSQL = `
		INSERT INTO thumb (user_id, blog_id, liked, toggled_at)
		SELECT * FROM unnest($1::bigint[], $2::bigint[], $3::boolean[], $4::bigint[])
		ON CONFLICT (user_id, blog_id) DO UPDATE
		SET liked = excluded.liked, toggled_at = excluded.toggled_at
		WHERE thumb.toggled_at <= excluded.toggled_at`
)

// txBeginner is satisfied by *pgxpool.Pool and pgx transactions.
type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Applier writes sync batches to postgres.
type Applier struct {
	db txBeginner
}

var _ database.CountApplier = (*Applier)(nil)

func NewApplier(db txBeginner) *Applier {
	return &Applier{db: db}
}

// ApplyBatch records the batch id and applies its deltas and relation
// changes in one transaction. A batch id that is already recorded is
// skipped and reported as not applied.
func (a *Applier) ApplyBatch(ctx context.Context, batch *database.Batch) (bool, error) {
	if batch == nil || batch.Empty() {
		return false, nil
	}

	tx, err := a.db.Begin(ctx)
	if err != nil {
		return false, errors.Wrap(err, "begin")
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, insertBatchSQL, batch.ID, batch.Partition)
	if err != nil {
		return false, errors.Wrapf(err, "record batch %d", batch.ID)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if err := execPairs(ctx, tx, applyDeltasSQL, deltaColumns(batch.Deltas)); err != nil {
		return false, errors.Wrap(err, "apply deltas")
	}
	if rows := relationColumns(batch.Likes, batch.Unlikes); len(rows.users) > 0 {
		if _, err := tx.Exec(ctx, upsertThumbsSQL, rows.users, rows.items, rows.liked, rows.at); err != nil {
			return false, errors.Wrap(err, "write thumbs")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, errors.Wrapf(err, "commit batch %d", batch.ID)
	}
	return true, nil
}

// Close is a no-op; the engine owns the pool.
func (a *Applier) Close(context.Context) error { return nil }

func execPairs(ctx context.Context, tx pgx.Tx, sql string, cols [2][]int64) error {
	if len(cols[0]) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, sql, cols[0], cols[1])
	return err
}

// deltaColumns turns the delta map into parallel id/delta arrays, sorted by
// id so concurrent batches lock blog rows in the same order.
func deltaColumns(deltas map[int64]int64) [2][]int64 {
	ids := make([]int64, 0, len(deltas))
	for id, d := range deltas {
		if d != 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := [2][]int64{ids, make([]int64, len(ids))}
	for i, id := range ids {
		out[1][i] = deltas[id]
	}
	return out
}

type relationRows struct {
	users, items []int64
	liked        []bool
	at           []int64
}

// relationColumns merges likes and unlikes into parallel arrays sorted by
// user and item, for the same lock ordering as deltaColumns.
func relationColumns(likes, unlikes []database.Relation) relationRows {
	type row struct {
		database.Relation
		liked bool
	}
	all := make([]row, 0, len(likes)+len(unlikes))
	for _, r := range likes {
		all = append(all, row{r, true})
	}
	for _, r := range unlikes {
		all = append(all, row{r, false})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].UserID != all[j].UserID {
			return all[i].UserID < all[j].UserID
		}
		return all[i].ItemID < all[j].ItemID
	})

	out := relationRows{
		users: make([]int64, len(all)),
		items: make([]int64, len(all)),
		liked: make([]bool, len(all)),
		at:    make([]int64, len(all)),
	}
	for i, r := range all {
		out.users[i] = r.UserID
		out.items[i] = r.ItemID
		out.liked[i] = r.liked
		out.at[i] = r.At
	}
	return out
}
