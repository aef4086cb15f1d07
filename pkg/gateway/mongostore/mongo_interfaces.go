package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

//go:generate mockgen -source=mongo_interfaces.go -destination=mock_interfaces.go -package=mongostore

type ( // Interfaces
	IMongoDB interface {
		Collection(name string) IMongoCollection
	}

	IMongoCollection interface {
		InsertOne(ctx context.Context, document interface{}) error
		UpdateMany(ctx context.Context, filter interface{}, update interface{}) (int64, error)
		UpsertOne(ctx context.Context, filter interface{}, update interface{}) error
		DeleteMany(ctx context.Context, filter interface{}) (int64, error)
		Find(ctx context.Context, filter interface{}, opts *options.FindOptions) (IMongoCursor, error)
		CreateUniqueIndex(ctx context.Context, keys []string) error
	}

	IMongoCursor interface {
		Close(context.Context) error
		All(context.Context, interface{}) error
	}
)

type ( // Structs
	MongoDatabase struct {
		DB *mongo.Database
	}

	MongoCollection struct {
		Coll *mongo.Collection
	}

	MongoCursor struct{ cur *mongo.Cursor }
)

// MongoDatabase

func (db *MongoDatabase) Collection(name string) IMongoCollection {
	return &MongoCollection{Coll: db.DB.Collection(name)}
}

// MongoCursor

func (cur *MongoCursor) Close(ctx context.Context) error {
	return cur.cur.Close(ctx)
}

func (cur *MongoCursor) All(ctx context.Context, results interface{}) error {
	return cur.cur.All(ctx, results)
}

// MongoCollection

func (col *MongoCollection) InsertOne(ctx context.Context, document interface{}) error {
	_, err := col.Coll.InsertOne(ctx, document)
	return err
}

func (col *MongoCollection) UpdateMany(ctx context.Context, filter interface{}, update interface{}) (int64, error) {
	res, err := col.Coll.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (col *MongoCollection) UpsertOne(ctx context.Context, filter interface{}, update interface{}) error {
	_, err := col.Coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

func (col *MongoCollection) DeleteMany(ctx context.Context, filter interface{}) (int64, error) {
	res, err := col.Coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (col *MongoCollection) Find(ctx context.Context, filter interface{}, opts *options.FindOptions) (IMongoCursor, error) {
	cursorResult, err := col.Coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	return &MongoCursor{cur: cursorResult}, nil
}

func (col *MongoCollection) CreateUniqueIndex(ctx context.Context, keys []string) error {
	idx := bson.D{}
	for _, k := range keys {
		idx = append(idx, bson.E{Key: k, Value: 1})
	}
	_, err := col.Coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    idx,
		Options: options.Index().SetUnique(true),
	})
	return err
}
