package runlog

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoLogger persists run records to a MongoDB collection.
type MongoLogger struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// MongoConfig holds MongoDB connection configuration
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// DefaultMongoConfig returns default MongoDB configuration
func DefaultMongoConfig() *MongoConfig {
	return &MongoConfig{
		URI:        "mongodb://localhost:27017",
		Database:   "prism",
		Collection: "runs",
	}
}

// NewMongoLogger creates a MongoDB-backed run logger.
func NewMongoLogger(config *MongoConfig) (*MongoLogger, error) {
	if config == nil {
		config = DefaultMongoConfig()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(config.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	collection := client.Database(config.Database).Collection(config.Collection)

	logger := &MongoLogger{
		client:     client,
		collection: collection,
	}

	if err := logger.createIndexes(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return logger, nil
}

func (l *MongoLogger) createIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "session_id", Value: 1}}},
	}
	_, err := l.collection.Indexes().CreateMany(ctx, models)
	return err
}

// LogRun inserts one run record.
func (l *MongoLogger) LogRun(ctx context.Context, rec *Record) error {
	if rec == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	if _, err := l.collection.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("failed to insert run record: %w", err)
	}
	return nil
}

// RecentRuns returns the most recent run records for a session, newest first.
func (l *MongoLogger) RecentRuns(ctx context.Context, sessionID string, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 20
	}

	filter := bson.M{}
	if sessionID != "" {
		filter["session_id"] = sessionID
	}

	opts := options.Find().SetSort(bson.M{"created_at": -1}).SetLimit(int64(limit))
	cursor, err := l.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query run records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*Record
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode run records: %w", err)
	}
	return records, nil
}

// Close closes the MongoDB connection.
func (l *MongoLogger) Close(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return l.client.Disconnect(ctx)
}
