package mongodb

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/huynhanx03/go-thumb/pkg/database"
)

const (
	CollectionBlog      = "blog"
	CollectionThumb     = "thumb"
	CollectionSyncBatch = "thumb_sync_batch"
)

var errAlreadyApplied = errors.New("batch already applied")

// SyncBatch is the ledger document for an applied batch.
type SyncBatch struct {
	ID        int64     `bson:"_id"`
	Partition string    `bson:"partition"`
	AppliedAt time.Time `bson:"appliedAt"`
}

// Applier writes sync batches to MongoDB inside a session transaction.
// Transactions need a replica set or sharded cluster.
type Applier struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ database.CountApplier = (*Applier)(nil)

func NewApplier(engine *MongoEngine) *Applier {
	return &Applier{client: engine.Client(), db: engine.Database()}
}

// EnsureIndexes creates the unique user/blog index on the thumb collection.
func (a *Applier) EnsureIndexes(ctx context.Context) error {
	_, err := a.db.Collection(CollectionThumb).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "blogId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return errors.Wrap(err, "create thumb index")
}

func (a *Applier) ApplyBatch(ctx context.Context, batch *database.Batch) (bool, error) {
	if batch == nil || batch.Empty() {
		return false, nil
	}

	session, err := a.client.StartSession()
	if err != nil {
		return false, errors.Wrap(err, "start session")
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, a.apply(sc, batch)
	})
	if errors.Is(err, errAlreadyApplied) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "apply batch %d", batch.ID)
	}
	return true, nil
}

func (a *Applier) apply(ctx context.Context, batch *database.Batch) error {
	_, err := a.db.Collection(CollectionSyncBatch).InsertOne(ctx, SyncBatch{
		ID:        batch.ID,
		Partition: batch.Partition,
		AppliedAt: time.Now(),
	})
	if mongo.IsDuplicateKeyError(err) {
		return errAlreadyApplied
	}
	if err != nil {
		return errors.Wrap(err, "record batch")
	}

	if models := deltaModels(batch.Deltas); len(models) > 0 {
		if _, err := a.db.Collection(CollectionBlog).BulkWrite(ctx, models); err != nil {
			return errors.Wrap(err, "apply deltas")
		}
	}
	if models := relationModels(batch.Likes, batch.Unlikes); len(models) > 0 {
		if _, err := a.db.Collection(CollectionThumb).BulkWrite(ctx, models); err != nil {
			return errors.Wrap(err, "write thumbs")
		}
	}
	return nil
}

// Close is a no-op; the engine owns the client.
func (a *Applier) Close(context.Context) error { return nil }

func deltaModels(deltas map[int64]int64) []mongo.WriteModel {
	ids := make([]int64, 0, len(deltas))
	for id, d := range deltas {
		if d != 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	models := make([]mongo.WriteModel, 0, len(ids))
	for _, id := range ids {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": id}).
			SetUpdate(bson.M{"$inc": bson.M{"thumbCount": deltas[id]}}))
	}
	return models
}

// relationModels upserts the like state of each pair. A document only
// takes a state whose toggle is at least as recent as the one it holds;
// unlikes stay as liked: false documents for that comparison.
func relationModels(likes, unlikes []database.Relation) []mongo.WriteModel {
	models := make([]mongo.WriteModel, 0, len(likes)+len(unlikes))
	for _, r := range likes {
		models = append(models, relationModel(r, true))
	}
	for _, r := range unlikes {
		models = append(models, relationModel(r, false))
	}
	return models
}

func relationModel(r database.Relation, liked bool) *mongo.UpdateOneModel {
	newer := bson.D{{Key: "$lte", Value: bson.A{
		bson.D{{Key: "$ifNull", Value: bson.A{"$toggledAt", int64(-1)}}},
		r.At,
	}}}
	pick := func(incoming any, field string) bson.D {
		return bson.D{{Key: "$cond", Value: bson.A{newer, incoming, field}}}
	}

	update := mongo.Pipeline{{{Key: "$set", Value: bson.D{
		{Key: "liked", Value: pick(liked, "$liked")},
		{Key: "toggledAt", Value: pick(r.At, "$toggledAt")},
		{Key: "createdAt", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$createdAt", "$$NOW"}}}},
	}}}}

	return mongo.NewUpdateOneModel().
		SetFilter(bson.M{"userId": r.UserID, "blogId": r.ItemID}).
		SetUpdate(update).
		SetUpsert(true)
}
