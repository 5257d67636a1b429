package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store provides document CRUD operations over one collection.
type Store struct {
	collection *mongo.Collection
	logger     *slog.Logger
}

func NewStore(client *mongo.Client, database, collection string) *Store {
	return &Store{
		collection: client.Database(database).Collection(collection),
		logger: slog.Default().With(
			"context", "MongoDB Store",
			"database", database,
			"collection", collection,
		),
	}
}

// UpdateResult reports the outcome of an update operation. UpsertedID is the
// hex representation of the inserted document id when an upsert happened.
type UpdateResult struct {
	MatchedCount  int64
	ModifiedCount int64
	UpsertedID    string
}

// FindOpts narrows a Find call. A zero value means no sorting, no limit and
// no skipping.
type FindOpts struct {
	Sort  bson.D
	Limit int64
	Skip  int64
}

func parseObjectID(id string) (primitive.ObjectID, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("invalid document id %q: %w", id, err)
	}
	return objectID, nil
}

func formatInsertedID(id any) string {
	if objectID, ok := id.(primitive.ObjectID); ok {
		return objectID.Hex()
	}
	return fmt.Sprintf("%v", id)
}

// InsertOne inserts a document and returns the id assigned to it.
func (s *Store) InsertOne(ctx context.Context, document any) (string, error) {
	result, err := s.collection.InsertOne(ctx, document)
	if err != nil {
		return "", fmt.Errorf("failed to insert document: %w", err)
	}
	id := formatInsertedID(result.InsertedID)
	s.logger.Debug("document inserted", "insertedID", id)
	return id, nil
}

// InsertMany inserts the documents in order and returns their ids.
func (s *Store) InsertMany(ctx context.Context, documents []any) ([]string, error) {
	result, err := s.collection.InsertMany(ctx, documents)
	if err != nil {
		return nil, fmt.Errorf("failed to insert documents: %w", err)
	}
	ids := make([]string, len(result.InsertedIDs))
	for i, id := range result.InsertedIDs {
		ids[i] = formatInsertedID(id)
	}
	s.logger.Debug("documents inserted", "count", len(ids))
	return ids, nil
}

// FindOne returns the first document matching the filter, or nil when no
// document matches.
func (s *Store) FindOne(ctx context.Context, filter bson.M) (bson.M, error) {
	var document bson.M
	err := s.collection.FindOne(ctx, filter).Decode(&document)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find document: %w", err)
	}
	return document, nil
}

// FindByID returns the document with the given hex id, or nil when missing.
func (s *Store) FindByID(ctx context.Context, id string) (bson.M, error) {
	objectID, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}
	return s.FindOne(ctx, bson.M{"_id": objectID})
}

// Find returns all documents matching the filter, narrowed by opts.
func (s *Store) Find(ctx context.Context, filter bson.M, opts FindOpts) ([]bson.M, error) {
	if filter == nil {
		filter = bson.M{}
	}

	findOpts := options.Find()
	if len(opts.Sort) > 0 {
		findOpts.SetSort(opts.Sort)
	}
	if opts.Skip > 0 {
		findOpts.SetSkip(opts.Skip)
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}

	cursor, err := s.collection.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to find documents: %w", err)
	}
	defer cursor.Close(ctx)

	var documents []bson.M
	if err := cursor.All(ctx, &documents); err != nil {
		return nil, fmt.Errorf("failed to decode documents: %w", err)
	}
	return documents, nil
}

// UpdateOne applies the update to the first document matching the filter.
func (s *Store) UpdateOne(ctx context.Context, filter, update bson.M, upsert bool) (*UpdateResult, error) {
	opts := options.Update().SetUpsert(upsert)
	result, err := s.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to update document: %w", err)
	}

	response := &UpdateResult{
		MatchedCount:  result.MatchedCount,
		ModifiedCount: result.ModifiedCount,
	}
	if result.UpsertedID != nil {
		response.UpsertedID = formatInsertedID(result.UpsertedID)
	}

	s.logger.Debug("document updated",
		"matched", response.MatchedCount,
		"modified", response.ModifiedCount,
		"upsertedID", response.UpsertedID,
	)
	return response, nil
}

// UpdateByID applies the update to the document with the given hex id.
func (s *Store) UpdateByID(ctx context.Context, id string, update bson.M) (*UpdateResult, error) {
	objectID, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}
	return s.UpdateOne(ctx, bson.M{"_id": objectID}, update, false)
}

// UpdateMany applies the update to every document matching the filter.
func (s *Store) UpdateMany(ctx context.Context, filter, update bson.M) (*UpdateResult, error) {
	result, err := s.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return nil, fmt.Errorf("failed to update documents: %w", err)
	}

	response := &UpdateResult{
		MatchedCount:  result.MatchedCount,
		ModifiedCount: result.ModifiedCount,
	}
	s.logger.Debug("documents updated", "matched", response.MatchedCount, "modified", response.ModifiedCount)
	return response, nil
}

// DeleteOne removes the first document matching the filter and returns the
// number of documents removed (0 or 1).
func (s *Store) DeleteOne(ctx context.Context, filter bson.M) (int64, error) {
	result, err := s.collection.DeleteOne(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to delete document: %w", err)
	}
	s.logger.Debug("document deleted", "deleted", result.DeletedCount)
	return result.DeletedCount, nil
}

// DeleteByID removes the document with the given hex id.
func (s *Store) DeleteByID(ctx context.Context, id string) (int64, error) {
	objectID, err := parseObjectID(id)
	if err != nil {
		return 0, err
	}
	return s.DeleteOne(ctx, bson.M{"_id": objectID})
}

// DeleteMany removes every document matching the filter.
func (s *Store) DeleteMany(ctx context.Context, filter bson.M) (int64, error) {
	result, err := s.collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to delete documents: %w", err)
	}
	s.logger.Debug("documents deleted", "deleted", result.DeletedCount)
	return result.DeletedCount, nil
}

// Count returns the number of documents matching the filter.
func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	if filter == nil {
		filter = bson.M{}
	}
	count, err := s.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

// Aggregate runs the pipeline and returns the resulting documents.
func (s *Store) Aggregate(ctx context.Context, pipeline mongo.Pipeline) ([]bson.M, error) {
	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to run aggregation: %w", err)
	}
	defer cursor.Close(ctx)

	var results []bson.M
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode aggregation results: %w", err)
	}
	return results, nil
}

// Distinct returns the distinct values of a field across the documents
// matching the filter.
func (s *Store) Distinct(ctx context.Context, field string, filter bson.M) ([]any, error) {
	if filter == nil {
		filter = bson.M{}
	}
	values, err := s.collection.Distinct(ctx, field, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to get distinct values: %w", err)
	}
	return values, nil
}

// FindOneAndUpdate atomically finds a document and applies the update.
// With returnUpdated the post-update document is returned, otherwise the
// pre-update one. A nil document with nil error means nothing matched.
func (s *Store) FindOneAndUpdate(ctx context.Context, filter, update bson.M, returnUpdated, upsert bool) (bson.M, error) {
	opts := options.FindOneAndUpdate().SetUpsert(upsert)
	if returnUpdated {
		opts.SetReturnDocument(options.After)
	} else {
		opts.SetReturnDocument(options.Before)
	}

	var document bson.M
	err := s.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&document)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find and update document: %w", err)
	}
	return document, nil
}

// FindOneAndDelete atomically finds a document and removes it, returning the
// removed document. A nil document with nil error means nothing matched.
func (s *Store) FindOneAndDelete(ctx context.Context, filter bson.M) (bson.M, error) {
	var document bson.M
	err := s.collection.FindOneAndDelete(ctx, filter).Decode(&document)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find and delete document: %w", err)
	}
	return document, nil
}
