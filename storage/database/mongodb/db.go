// Package mongodb is the MongoDB core.DocumentStore.
//
// Documents are encoded to JSON first and transcoded to BSON through relaxed Extended JSON,
// so the stored shape is the API shape. `_id` mirrors the document id.
package mongodb

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/trezcool/inspectorat/core"
)

type DB struct {
	client *mongo.Client
	db     *mongo.Database
	logger core.Logger

	mutex  sync.RWMutex
	unique map[string][]string // collection -> fields indexed by EnsureUnique
}

var _ core.DocumentStore = (*DB)(nil)

// Open connects to conf.Database.URI and waits for the server to answer a ping.
func Open(ctx context.Context, conf *core.Config, logger core.Logger) (*DB, error) {
	opts := options.Client().
		ApplyURI(conf.Database.URI).
		SetAppName(conf.AppName).
		SetServerSelectionTimeout(conf.Database.Timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to mongodb")
	}

	db := &DB{client: client, db: client.Database(conf.Database.Name), logger: logger, unique: make(map[string][]string)}
	if err := db.waitReady(ctx, conf.Database.Timeout); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return db, nil
}

func (db *DB) waitReady(ctx context.Context, timeout time.Duration) error {
	var pingErr error
	for attempts := 1; attempts <= 5; attempts++ {
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		pingErr = db.Ping(pingCtx)
		cancel()
		if pingErr == nil {
			return nil
		}
		db.logger.Warn("mongodb not ready, retrying", map[string]interface{}{"attempt": attempts})
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempts) * 100 * time.Millisecond):
		}
	}
	return errors.Wrap(pingErr, "pinging mongodb")
}

func (db *DB) Insert(ctx context.Context, coll string, docs ...core.Document) error {
	if len(docs) == 0 {
		return nil
	}
	batch := make([]interface{}, len(docs))
	for i, doc := range docs {
		d, err := toBSON(doc.Body)
		if err != nil {
			return core.NewStoreError("insert", err)
		}
		batch[i] = append(bson.D{{Key: "_id", Value: doc.ID}}, d...)
	}

	_, err := db.db.Collection(coll).InsertMany(ctx, batch, options.InsertMany().SetOrdered(true))
	if err == nil {
		return nil
	}

	// InsertMany is not transactional: drop the part of the batch that made it in,
	// i.e. the documents before the first failed write.
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) && len(bwe.WriteErrors) > 0 && bwe.WriteErrors[0].Index > 0 {
		inserted := make([]string, bwe.WriteErrors[0].Index)
		for i := range inserted {
			inserted[i] = docs[i].ID
		}
		if _, rbErr := db.db.Collection(coll).DeleteMany(ctx, bson.M{"_id": bson.M{"$in": inserted}}); rbErr != nil {
			db.logger.Error("mongodb: rolling back batch insert", rbErr, core.ActorFrom(ctx))
		}
	}
	return db.writeError("insert", coll, err)
}

func (db *DB) Get(ctx context.Context, coll, id string, dst interface{}) error {
	var raw bson.Raw
	err := db.db.Collection(coll).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.ErrDocumentNotFound
	} else if err != nil {
		return core.NewStoreError("get", err)
	}
	data, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return core.NewStoreError("decode", err)
	}
	return core.NewStoreError("decode", json.Unmarshal(data, dst))
}

func (db *DB) Find(ctx context.Context, coll string, q core.Query, dst interface{}) error {
	filter, err := filterOf(q)
	if err != nil {
		return core.NewStoreError("find", err)
	}

	opts := options.Find()
	if len(q.Orderings) > 0 {
		sort := make(bson.D, 0, len(q.Orderings))
		for _, ord := range q.Orderings {
			dir := -1
			if ord.Ascending {
				dir = 1
			}
			sort = append(sort, bson.E{Key: ord.Field, Value: dir})
		}
		opts.SetSort(sort)
	}

	cur, err := db.db.Collection(coll).Find(ctx, filter, opts)
	if err != nil {
		return core.NewStoreError("find", err)
	}
	defer cur.Close(ctx)

	var buf bytes.Buffer
	buf.WriteByte('[')
	for n := 0; cur.Next(ctx); n++ {
		data, err := bson.MarshalExtJSON(cur.Current, false, false)
		if err != nil {
			return core.NewStoreError("decode", err)
		}
		if n > 0 {
			buf.WriteByte(',')
		}
		buf.Write(data)
	}
	if err := cur.Err(); err != nil {
		return core.NewStoreError("find", err)
	}
	buf.WriteByte(']')
	return core.NewStoreError("decode", json.Unmarshal(buf.Bytes(), dst))
}

func (db *DB) Count(ctx context.Context, coll string, q core.Query) (int64, error) {
	filter, err := filterOf(q)
	if err != nil {
		return 0, core.NewStoreError("count", err)
	}
	n, err := db.db.Collection(coll).CountDocuments(ctx, filter)
	return n, core.NewStoreError("count", err)
}

func (db *DB) Replace(ctx context.Context, coll, id string, doc interface{}) error {
	d, err := toBSON(doc)
	if err != nil {
		return core.NewStoreError("replace", err)
	}
	res, err := db.db.Collection(coll).ReplaceOne(ctx, bson.M{"_id": id}, append(bson.D{{Key: "_id", Value: id}}, d...))
	if err != nil {
		return db.writeError("replace", coll, err)
	}
	if res.MatchedCount == 0 {
		return core.ErrDocumentNotFound
	}
	return nil
}

func (db *DB) Delete(ctx context.Context, coll, id string) error {
	res, err := db.db.Collection(coll).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return core.NewStoreError("delete", err)
	}
	if res.DeletedCount == 0 {
		return core.ErrDocumentNotFound
	}
	return nil
}

// EnsureUnique creates a unique index on field. Only string values are indexed.
func (db *DB) EnsureUnique(ctx context.Context, coll, field string) error {
	model := mongo.IndexModel{
		Keys: bson.D{{Key: field, Value: 1}},
		Options: options.Index().
			SetName(uniqueIndexName(field)).
			SetUnique(true).
			SetPartialFilterExpression(bson.M{field: bson.M{"$type": "string"}}),
	}
	if _, err := db.db.Collection(coll).Indexes().CreateOne(ctx, model); err != nil {
		return core.NewStoreError("index", err)
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()
	for _, f := range db.unique[coll] {
		if f == field {
			return nil
		}
	}
	db.unique[coll] = append(db.unique[coll], field)
	return nil
}

func uniqueIndexName(field string) string { return field + "_unique" }

// writeError turns a duplicate key on an index made by EnsureUnique into a *core.DuplicateError.
func (db *DB) writeError(op, coll string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		db.mutex.RLock()
		fields := db.unique[coll]
		db.mutex.RUnlock()
		for _, field := range fields {
			if strings.Contains(err.Error(), "index: "+uniqueIndexName(field)+" ") {
				return &core.DuplicateError{Collection: coll, Field: field}
			}
		}
	}
	return core.NewStoreError(op, err)
}

func (db *DB) Ping(ctx context.Context) error {
	return db.client.Ping(ctx, readpref.Primary())
}

func (db *DB) Close(ctx context.Context) error {
	return db.client.Disconnect(ctx)
}

// DropDatabase removes every collection; used by integration tests.
func (db *DB) DropDatabase(ctx context.Context) error {
	return db.db.Drop(ctx)
}

func toBSON(v interface{}) (bson.D, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var d bson.D
	if err := bson.UnmarshalExtJSON(data, false, &d); err != nil {
		return nil, err
	}
	// `_id` is owned by the store
	out := d[:0]
	for _, e := range d {
		if e.Key != "_id" {
			out = append(out, e)
		}
	}
	return out, nil
}

func filterOf(q core.Query) (bson.D, error) {
	filter := bson.D{}
	if len(q.Filter) > 0 {
		f, err := toBSON(q.Filter)
		if err != nil {
			return nil, err
		}
		filter = f
	}
	if q.IDs != nil {
		filter = append(filter, bson.E{Key: "_id", Value: bson.M{"$in": core.Unique(q.IDs)}})
	}
	return filter, nil
}
