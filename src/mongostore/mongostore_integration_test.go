//go:build integration

package mongostore

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	tcmongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const testDatabase = "testdb"

var (
	testURI      string
	testRegistry *Registry
	testClient   *mongo.Client
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := tcmongo.Run(ctx, "mongo:7")
	if err != nil {
		panic(fmt.Sprintf("failed to start MongoDB container: %v", err))
	}

	testURI, err = container.ConnectionString(ctx)
	if err != nil {
		panic(fmt.Sprintf("failed to get MongoDB URI: %v", err))
	}

	testRegistry = NewRegistry()
	testClient, err = testRegistry.Client(ctx, ClientOptions{URI: testURI})
	if err != nil {
		panic(fmt.Sprintf("failed to connect to MongoDB: %v", err))
	}

	code := m.Run()

	testRegistry.CloseAll(ctx)
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store := NewStore(testClient, testDatabase, t.Name())
	t.Cleanup(func() {
		_ = testClient.Database(testDatabase).Collection(t.Name()).Drop(context.Background())
	})
	return store
}

func TestRegistryCachesClients(t *testing.T) {
	ctx := context.Background()

	again, err := testRegistry.Client(ctx, ClientOptions{URI: testURI})
	require.NoError(t, err)
	require.Same(t, testClient, again)
	require.Equal(t, 1, testRegistry.Len())
	require.True(t, testRegistry.CheckConnection(ctx, testClient))
}

func TestInsertAndFind(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.InsertOne(ctx, bson.M{"name": "a", "score": 1})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	doc, err := store.FindByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "a", doc["name"])

	doc, err = store.FindOne(ctx, bson.M{"name": "a"})
	require.NoError(t, err)
	require.NotNil(t, doc)

	// No match is nil, not an error.
	doc, err = store.FindOne(ctx, bson.M{"name": "missing"})
	require.NoError(t, err)
	require.Nil(t, doc)

	_, err = store.FindByID(ctx, "not-an-id")
	require.Error(t, err)
}

func TestInsertManyAndFindOpts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ids, err := store.InsertMany(ctx, []any{
		bson.M{"name": "a", "score": 3},
		bson.M{"name": "b", "score": 1},
		bson.M{"name": "c", "score": 2},
	})
	require.NoError(t, err)
	require.Len(t, ids, 3)

	docs, err := store.Find(ctx, nil, FindOpts{
		Sort:  bson.D{{Key: "score", Value: 1}},
		Limit: 2,
		Skip:  1,
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.Equal(t, "c", docs[0]["name"])
	require.Equal(t, "a", docs[1]["name"])
}

func TestUpdates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.InsertOne(ctx, bson.M{"name": "a", "score": 1})
	require.NoError(t, err)

	result, err := store.UpdateByID(ctx, id, bson.M{"$set": bson.M{"score": 5}})
	require.NoError(t, err)
	require.Equal(t, int64(1), result.MatchedCount)
	require.Equal(t, int64(1), result.ModifiedCount)

	// Upsert on a missing filter inserts and reports the new id.
	result, err = store.UpdateOne(ctx, bson.M{"name": "b"}, bson.M{"$set": bson.M{"score": 9}}, true)
	require.NoError(t, err)
	require.Zero(t, result.MatchedCount)
	require.NotEmpty(t, result.UpsertedID)

	many, err := store.UpdateMany(ctx, bson.M{}, bson.M{"$inc": bson.M{"score": 1}})
	require.NoError(t, err)
	require.Equal(t, int64(2), many.MatchedCount)
}

func TestDeletes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.InsertOne(ctx, bson.M{"name": "a"})
	require.NoError(t, err)
	_, err = store.InsertMany(ctx, []any{bson.M{"name": "b"}, bson.M{"name": "c"}})
	require.NoError(t, err)

	deleted, err := store.DeleteByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	deleted, err = store.DeleteMany(ctx, bson.M{})
	require.NoError(t, err)
	require.Equal(t, int64(2), deleted)

	count, err := store.Count(ctx, nil)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestAggregateAndDistinct(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.InsertMany(ctx, []any{
		bson.M{"kind": "a", "score": 1},
		bson.M{"kind": "a", "score": 2},
		bson.M{"kind": "b", "score": 3},
	})
	require.NoError(t, err)

	results, err := store.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$kind", "total": bson.M{"$sum": "$score"}}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, int32(3), results[0]["total"])

	kinds, err := store.Distinct(ctx, "kind", nil)
	require.NoError(t, err)
	require.ElementsMatch(t, []any{"a", "b"}, kinds)
}

func TestFindOneAnd(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.InsertOne(ctx, bson.M{"name": "a", "score": 1})
	require.NoError(t, err)

	doc, err := store.FindOneAndUpdate(ctx, bson.M{"name": "a"}, bson.M{"$set": bson.M{"score": 2}}, true, false)
	require.NoError(t, err)
	require.Equal(t, int32(2), doc["score"])

	doc, err = store.FindOneAndUpdate(ctx, bson.M{"name": "missing"}, bson.M{"$set": bson.M{"score": 0}}, true, false)
	require.NoError(t, err)
	require.Nil(t, doc)

	doc, err = store.FindOneAndDelete(ctx, bson.M{"name": "a"})
	require.NoError(t, err)
	require.Equal(t, "a", doc["name"])

	count, err := store.Count(ctx, nil)
	require.NoError(t, err)
	require.Zero(t, count)
}
