package mongo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/SajivJess/Wally/internal/store"
	apperrors "github.com/SajivJess/Wally/pkg/errors"
)

const ns = "wally.products"

func newMockTest(t *testing.T) *mtest.T {
	t.Helper()
	return mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
}

func TestCollection_FindOne(t *testing.T) {
	mt := newMockTest(t)

	mt.Run("found", func(mt *mtest.T) {
		s := New(mt.Client, mt.DB.Name())
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "id", Value: "prod-1"},
			{Key: "price", Value: int32(120)},
			{Key: "tags", Value: bson.A{"food", "snack"}},
		}))

		doc, err := s.Collection("products").FindOne(context.Background(), store.Filter{"id": "prod-1"})
		require.NoError(t, err)
		assert.Equal(t, "prod-1", doc.ID())
		assert.NotContains(t, doc, "_id")
		assert.Equal(t, int64(120), doc["price"])
		assert.Equal(t, []any{"food", "snack"}, doc["tags"])
	})

	mt.Run("missing", func(mt *mtest.T) {
		s := New(mt.Client, mt.DB.Name())
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := s.Collection("products").FindOne(context.Background(), store.Filter{"id": "ghost"})
		assert.ErrorIs(t, err, store.ErrNoDocuments)
	})
}

func TestCollection_FindMany(t *testing.T) {
	mt := newMockTest(t)

	mt.Run("in filter", func(mt *mtest.T) {
		s := New(mt.Client, mt.DB.Name())
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "id", Value: "prod-1"}, {Key: "category", Value: "food"}},
			bson.D{{Key: "id", Value: "prod-3"}, {Key: "category", Value: "beauty"}},
		))

		docs, err := s.Collection("products").FindMany(context.Background(),
			store.Filter{"category": store.In{"food", "beauty"}}, 10)
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "prod-1", docs[0].ID())
		assert.Equal(t, "prod-3", docs[1].ID())
	})

	mt.Run("empty", func(mt *mtest.T) {
		s := New(mt.Client, mt.DB.Name())
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		docs, err := s.Collection("products").FindMany(context.Background(), store.Filter{}, 0)
		require.NoError(t, err)
		assert.NotNil(t, docs)
		assert.Empty(t, docs)
	})
}

func TestCollection_InsertOne(t *testing.T) {
	mt := newMockTest(t)

	mt.Run("success", func(mt *mtest.T) {
		s := New(mt.Client, mt.DB.Name())
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		err := s.Collection("products").InsertOne(context.Background(), store.Document{"id": "prod-1"})
		require.NoError(t, err)
	})

	mt.Run("duplicate", func(mt *mtest.T) {
		s := New(mt.Client, mt.DB.Name())
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index: 0, Code: 11000, Message: "duplicate key error",
		}))

		err := s.Collection("products").InsertOne(context.Background(), store.Document{"id": "prod-1"})
		assert.ErrorIs(t, err, store.ErrDuplicateID)
	})

	mt.Run("requires id", func(mt *mtest.T) {
		s := New(mt.Client, mt.DB.Name())

		err := s.Collection("products").InsertOne(context.Background(), store.Document{"name": "x"})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})
}

func TestCollection_UpdateAndDelete(t *testing.T) {
	mt := newMockTest(t)

	mt.Run("update", func(mt *mtest.T) {
		s := New(mt.Client, mt.DB.Name())
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		res, err := s.Collection("cart_items").UpdateOne(context.Background(),
			store.Filter{"id": "i1", "user_id": "user-1"},
			store.Update{Set: store.Document{"quantity": 4}})
		require.NoError(t, err)
		assert.Equal(t, store.UpdateResult{Matched: 1, Modified: 1}, res)
	})

	mt.Run("delete many", func(mt *mtest.T) {
		s := New(mt.Client, mt.DB.Name())
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 3}))

		n, err := s.Collection("cart_items").DeleteMany(context.Background(), store.Filter{"user_id": "user-1"})
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})

	mt.Run("delete one miss", func(mt *mtest.T) {
		s := New(mt.Client, mt.DB.Name())
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))

		n, err := s.Collection("cart_items").DeleteOne(context.Background(), store.Filter{"id": "i9"})
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestCollection_DistinctAndCount(t *testing.T) {
	mt := newMockTest(t)

	mt.Run("distinct", func(mt *mtest.T) {
		s := New(mt.Client, mt.DB.Name())
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "wally.meal_plans", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "Weight Loss"}, {Key: "first", Value: primitive.NewObjectID()}},
			bson.D{{Key: "_id", Value: "Family Dinners"}, {Key: "first", Value: primitive.NewObjectID()}},
		))

		goals, err := s.Collection("meal_plans").Distinct(context.Background(), "goal_type", store.Filter{})
		require.NoError(t, err)
		assert.Equal(t, []any{"Weight Loss", "Family Dinners"}, goals)
	})

	mt.Run("count", func(mt *mtest.T) {
		s := New(mt.Client, mt.DB.Name())
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "n", Value: int32(3)}},
		))

		n, err := s.Collection("products").Count(context.Background(), store.Filter{})
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})
}

func TestCollection_Upsert(t *testing.T) {
	mt := newMockTest(t)

	mt.Run("returns stored document", func(mt *mtest.T) {
		s := New(mt.Client, mt.DB.Name())
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "id", Value: "i1"},
			{Key: "user_id", Value: "user-1"},
			{Key: "product_id", Value: "prod-1"},
			{Key: "quantity", Value: int64(3)},
		}}))

		doc, err := s.Collection("cart_items").Upsert(context.Background(),
			store.Filter{"user_id": "user-1", "product_id": "prod-1"},
			map[string]int64{"quantity": 1},
			store.Document{"id": "i2", "quantity": 1})
		require.NoError(t, err)
		assert.Equal(t, "i1", doc.ID())
		assert.Equal(t, int64(3), doc["quantity"])
	})

	mt.Run("retries duplicate key once", func(mt *mtest.T) {
		s := New(mt.Client, mt.DB.Name())
		mt.AddMockResponses(
			mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "duplicate key error"}),
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
				{Key: "id", Value: "i1"},
				{Key: "quantity", Value: int64(2)},
			}}),
		)

		doc, err := s.Collection("cart_items").Upsert(context.Background(),
			store.Filter{"user_id": "user-1", "product_id": "prod-1"},
			map[string]int64{"quantity": 1},
			store.Document{"id": "i2"})
		require.NoError(t, err)
		assert.Equal(t, "i1", doc.ID())
	})
}

func TestToFilter(t *testing.T) {
	f := toFilter(store.Filter{
		"user_id":  "user-1",
		"category": store.In{"food", "beauty"},
	})
	assert.Equal(t, "user-1", f["user_id"])
	assert.Equal(t, bson.M{"$in": bson.A{"food", "beauty"}}, f["category"])
}

func TestToBSON_ConvertsJSONNumbers(t *testing.T) {
	doc, err := store.DecodeDocument([]byte(`{"id":"p","price":120,"rating":4.5,"ids":[1,2]}`))
	require.NoError(t, err)

	out := toBSON(doc)
	assert.Equal(t, int64(120), out["price"])
	assert.Equal(t, 4.5, out["rating"])
	assert.Equal(t, bson.A{int64(1), int64(2)}, out["ids"])
}

func TestClassify(t *testing.T) {
	netErr := mongo.CommandError{Code: 6, Message: "host unreachable", Labels: []string{"NetworkError"}}
	assert.True(t, apperrors.IsStorageUnavailable(classify(netErr)))

	assert.True(t, apperrors.IsStorageUnavailable(classify(mongo.ErrClientDisconnected)))
	assert.False(t, apperrors.IsStorageUnavailable(classify(errors.New("unknown operator: $foo"))))
}
