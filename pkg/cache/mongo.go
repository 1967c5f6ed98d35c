package cache

import (
	"context"
	"errors"
	"io"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoCache stores blobs in a MongoDB collection.
// Each blob is a single document keyed by _id; blobs above the BSON document
// limit (16MB) are rejected by the server, which is acceptable for source
// assets.
type MongoCache struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// MongoConfig configures a MongoDB-backed cache.
type MongoConfig struct {
	URI        string // e.g. "mongodb://localhost:27017"
	Database   string // defaults to "packfold"
	Collection string // defaults to "blobs"
}

// mongoBlob is the document shape stored in the collection.
type mongoBlob struct {
	Key  string `bson:"_id"`
	Data []byte `bson:"data"`
}

// NewMongoCache creates a MongoDB-backed cache and verifies connectivity.
func NewMongoCache(ctx context.Context, cfg MongoConfig) (Cache, error) {
	if cfg.Database == "" {
		cfg.Database = "packfold"
	}
	if cfg.Collection == "" {
		cfg.Collection = "blobs"
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return &MongoCache{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

// GetBlob retrieves the bytes stored under key.
func (c *MongoCache) GetBlob(ctx context.Context, key string) ([]byte, error) {
	var doc mongoBlob
	err := c.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	return doc.Data, nil
}

// SetBlob stores data under key, replacing any previous value.
func (c *MongoCache) SetBlob(ctx context.Context, key string, data []byte) error {
	_, err := c.coll.ReplaceOne(ctx,
		bson.M{"_id": key},
		mongoBlob{Key: key, Data: data},
		options.Replace().SetUpsert(true))
	return err
}

// GetStream returns a reader over the bytes stored under key.
func (c *MongoCache) GetStream(ctx context.Context, key string) (io.ReadCloser, error) {
	data, err := c.GetBlob(ctx, key)
	if err != nil {
		return nil, err
	}
	return streamFromBytes(data), nil
}

// Delete removes the blob stored under key.
func (c *MongoCache) Delete(ctx context.Context, key string) error {
	_, err := c.coll.DeleteOne(ctx, bson.M{"_id": key})
	return err
}

// Close disconnects from MongoDB.
func (c *MongoCache) Close() error {
	return c.client.Disconnect(context.Background())
}

// Ensure MongoCache implements Cache.
var _ Cache = (*MongoCache)(nil)
