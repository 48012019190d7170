package sink

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo defaults.
const (
	DefaultMongoURI      = "mongodb://localhost:27017"
	DefaultMongoDatabase = "ghdisco"
)

// Mongo inserts one document per row into a collection named after the kind.
type Mongo struct {
	client  *mongo.Client
	coll    *mongo.Collection
	columns []string
	runID   string
}

// OpenMongo connects to uri and verifies the server is reachable.
func OpenMongo(ctx context.Context, uri, database, kind string, columns []string, runID string) (*Mongo, error) {
	if uri == "" {
		uri = DefaultMongoURI
	}
	if database == "" {
		database = DefaultMongoDatabase
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetServerSelectionTimeout(5*time.Second))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}
	return &Mongo{
		client:  client,
		coll:    client.Database(database).Collection(kind),
		columns: columns,
		runID:   runID,
	}, nil
}

func (s *Mongo) Write(ctx context.Context, row Row) error {
	doc := bson.M(project(row, s.columns, s.runID))
	doc["created_at"] = time.Now().UTC()
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("inserting row: %w", err)
	}
	return nil
}

func (s *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
