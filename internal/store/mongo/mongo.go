// Package mongo implements the record store on MongoDB, one MongoDB
// collection per store collection.
package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/SajivJess/Wally/internal/store"
	apperrors "github.com/SajivJess/Wally/pkg/errors"
)

var insertionOrder = bson.D{{Key: "_id", Value: 1}}

// Store is a MongoDB-backed store.Store.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New creates a store over the named database of client.
func New(client *mongo.Client, database string) *Store {
	return &Store{client: client, db: client.Database(database)}
}

func (s *Store) Driver() string { return store.DriverMongo }

func (s *Store) Collection(name string) store.Collection {
	return &Collection{coll: s.db.Collection(name), name: name}
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return classify(fmt.Errorf("mongo ping: %w", err))
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// EnsureUniqueIndex creates a unique index over fields of collection. It is
// a no-op when the index already exists.
func (s *Store) EnsureUniqueIndex(ctx context.Context, collection string, fields ...string) error {
	keys := bson.D{}
	for _, f := range fields {
		keys = append(keys, bson.E{Key: f, Value: 1})
	}
	_, err := s.db.Collection(collection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    keys,
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return classify(fmt.Errorf("create index on %s: %w", collection, err))
	}
	return nil
}

// Collection wraps one MongoDB collection.
type Collection struct {
	coll *mongo.Collection
	name string
}

func (c *Collection) Name() string { return c.name }

func (c *Collection) FindOne(ctx context.Context, filter store.Filter) (store.Document, error) {
	var raw bson.M
	err := c.coll.FindOne(ctx, toFilter(filter), options.FindOne().SetSort(insertionOrder)).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNoDocuments
		}
		return nil, classify(fmt.Errorf("find %s: %w", c.name, err))
	}
	return fromBSON(raw), nil
}

func (c *Collection) FindMany(ctx context.Context, filter store.Filter, limit int) ([]store.Document, error) {
	opts := options.Find().SetSort(insertionOrder)
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := c.coll.Find(ctx, toFilter(filter), opts)
	if err != nil {
		return nil, classify(fmt.Errorf("list %s: %w", c.name, err))
	}
	defer cur.Close(ctx)

	docs := []store.Document{}
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode %s: %w", c.name, err)
		}
		docs = append(docs, fromBSON(raw))
	}
	if err := cur.Err(); err != nil {
		return nil, classify(fmt.Errorf("iterate %s: %w", c.name, err))
	}
	return docs, nil
}

func (c *Collection) InsertOne(ctx context.Context, doc store.Document) error {
	if doc.ID() == "" {
		return apperrors.InvalidInput(fmt.Sprintf("%s document has no id", c.name))
	}
	if _, err := c.coll.InsertOne(ctx, toBSON(doc)); err != nil {
		return c.writeError(err)
	}
	return nil
}

// InsertMany inserts in order and stops at the first failure.
func (c *Collection) InsertMany(ctx context.Context, docs []store.Document) error {
	if len(docs) == 0 {
		return nil
	}
	batch := make([]any, 0, len(docs))
	for _, doc := range docs {
		if doc.ID() == "" {
			return apperrors.InvalidInput(fmt.Sprintf("%s document has no id", c.name))
		}
		batch = append(batch, toBSON(doc))
	}
	if _, err := c.coll.InsertMany(ctx, batch, options.InsertMany().SetOrdered(true)); err != nil {
		return c.writeError(err)
	}
	return nil
}

func (c *Collection) writeError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrDuplicateID
	}
	return classify(fmt.Errorf("insert %s: %w", c.name, err))
}

func (c *Collection) UpdateOne(ctx context.Context, filter store.Filter, update store.Update) (store.UpdateResult, error) {
	ops := bson.M{}
	if len(update.Set) > 0 {
		ops["$set"] = toBSON(update.Set)
	}
	if len(update.Inc) > 0 {
		ops["$inc"] = incOps(update.Inc)
	}
	if len(ops) == 0 {
		n, err := c.coll.CountDocuments(ctx, toFilter(filter), options.Count().SetLimit(1))
		if err != nil {
			return store.UpdateResult{}, classify(fmt.Errorf("update %s: %w", c.name, err))
		}
		return store.UpdateResult{Matched: n}, nil
	}

	res, err := c.coll.UpdateOne(ctx, toFilter(filter), ops)
	if err != nil {
		return store.UpdateResult{}, classify(fmt.Errorf("update %s: %w", c.name, err))
	}
	return store.UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

func (c *Collection) DeleteOne(ctx context.Context, filter store.Filter) (int64, error) {
	res, err := c.coll.DeleteOne(ctx, toFilter(filter))
	if err != nil {
		return 0, classify(fmt.Errorf("delete %s: %w", c.name, err))
	}
	return res.DeletedCount, nil
}

func (c *Collection) DeleteMany(ctx context.Context, filter store.Filter) (int64, error) {
	res, err := c.coll.DeleteMany(ctx, toFilter(filter))
	if err != nil {
		return 0, classify(fmt.Errorf("delete %s: %w", c.name, err))
	}
	return res.DeletedCount, nil
}

// Distinct groups by field and orders groups by their first document, so
// values come back in order of first appearance like the other backends.
func (c *Collection) Distinct(ctx context.Context, field string, filter store.Filter) ([]any, error) {
	match := toFilter(filter)
	if _, constrained := match[field]; !constrained {
		match[field] = bson.M{"$exists": true}
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$" + field},
			{Key: "first", Value: bson.M{"$min": "$_id"}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "first", Value: 1}}}},
	}

	cur, err := c.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, classify(fmt.Errorf("distinct %s.%s: %w", c.name, field, err))
	}
	defer cur.Close(ctx)

	values := []any{}
	for cur.Next(ctx) {
		var group struct {
			Value any `bson:"_id"`
		}
		if err := cur.Decode(&group); err != nil {
			return nil, fmt.Errorf("decode %s.%s: %w", c.name, field, err)
		}
		values = append(values, normalize(group.Value))
	}
	if err := cur.Err(); err != nil {
		return nil, classify(fmt.Errorf("iterate %s.%s: %w", c.name, field, err))
	}
	return values, nil
}

func (c *Collection) Count(ctx context.Context, filter store.Filter) (int64, error) {
	n, err := c.coll.CountDocuments(ctx, toFilter(filter))
	if err != nil {
		return 0, classify(fmt.Errorf("count %s: %w", c.name, err))
	}
	return n, nil
}

// Upsert relies on FindOneAndUpdate with upsert. Two racing upserts can both
// miss and try to insert; with a unique index over the filter fields the
// loser gets a duplicate key error and is retried once, which then matches.
func (c *Collection) Upsert(ctx context.Context, filter store.Filter, inc map[string]int64, doc store.Document) (store.Document, error) {
	if doc.ID() == "" {
		return nil, apperrors.InvalidInput(fmt.Sprintf("%s document has no id", c.name))
	}

	onInsert := toBSON(doc)
	for field := range inc {
		delete(onInsert, field)
	}
	for field, v := range filter {
		if _, isIn := v.(store.In); !isIn {
			delete(onInsert, field)
		}
	}

	ops := bson.M{}
	if len(onInsert) > 0 {
		ops["$setOnInsert"] = onInsert
	}
	if len(inc) > 0 {
		ops["$inc"] = incOps(inc)
	}
	if len(ops) == 0 {
		return nil, apperrors.InvalidInput(fmt.Sprintf("%s upsert changes nothing", c.name))
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After).
		SetSort(insertionOrder)

	var raw bson.M
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		err = c.coll.FindOneAndUpdate(ctx, toFilter(filter), ops, opts).Decode(&raw)
		if err == nil || !mongo.IsDuplicateKeyError(err) {
			break
		}
	}
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, store.ErrDuplicateID
		}
		return nil, classify(fmt.Errorf("upsert %s: %w", c.name, err))
	}
	return fromBSON(raw), nil
}

func incOps(inc map[string]int64) bson.M {
	out := bson.M{}
	for field, delta := range inc {
		out[field] = delta
	}
	return out
}

func toFilter(filter store.Filter) bson.M {
	out := bson.M{}
	for field, v := range filter {
		if set, ok := v.(store.In); ok {
			values := bson.A{}
			for _, item := range set {
				values = append(values, toBSONValue(item))
			}
			out[field] = bson.M{"$in": values}
			continue
		}
		out[field] = toBSONValue(v)
	}
	return out
}

func toBSON(doc store.Document) bson.M {
	out := bson.M{}
	for k, v := range doc {
		out[k] = toBSONValue(v)
	}
	return out
}

// toBSONValue turns JSON-decoded values into types the BSON encoder stores
// natively. Integral numbers become int64.
func toBSONValue(v any) any {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]any:
		return toBSON(store.Document(val))
	case store.Document:
		return toBSON(val)
	case []any:
		out := bson.A{}
		for _, item := range val {
			out = append(out, toBSONValue(item))
		}
		return out
	default:
		return v
	}
}

// fromBSON converts a decoded MongoDB document into a store document, dropping
// the server assigned _id.
func fromBSON(raw bson.M) store.Document {
	doc := make(store.Document, len(raw))
	for k, v := range raw {
		if k == "_id" {
			continue
		}
		doc[k] = normalize(v)
	}
	return doc
}

func normalize(v any) any {
	switch val := v.(type) {
	case int32:
		return int64(val)
	case primitive.A:
		out := make([]any, 0, len(val))
		for _, item := range val {
			out = append(out, normalize(item))
		}
		return out
	case bson.M:
		return map[string]any(fromBSON(val))
	case primitive.D:
		m := make(map[string]any, len(val))
		for _, e := range val {
			m[e.Key] = normalize(e.Value)
		}
		return m
	default:
		return v
	}
}

func classify(err error) error {
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) ||
		errors.Is(err, mongo.ErrClientDisconnected) ||
		strings.Contains(err.Error(), "server selection") {
		return apperrors.StorageUnavailable(err)
	}
	return store.Classify(err)
}
