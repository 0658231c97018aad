package channel

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// DefaultContactsCollection is the collection MongoDirectory reads by default.
const DefaultContactsCollection = "contacts"

// MongoDirectory reads contacts from a MongoDB collection.
type MongoDirectory struct {
	coll *mongo.Collection
}

func NewMongoDirectory(db *mongo.Database, collection string) *MongoDirectory {
	if collection == "" {
		collection = DefaultContactsCollection
	}
	return &MongoDirectory{coll: db.Collection(collection)}
}

// EnsureIndexes creates the unique user id index and the role index.
func (d *MongoDirectory) EnsureIndexes(ctx context.Context) error {
	_, err := d.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "role", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create contact indexes: %w", err)
	}
	return nil
}

// Upsert adds or replaces a contact.
func (d *MongoDirectory) Upsert(ctx context.Context, c Contact) error {
	_, err := d.coll.ReplaceOne(ctx, bson.D{{Key: "user_id", Value: c.UserID}}, c, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert contact: %w", err)
	}
	return nil
}

func (d *MongoDirectory) Lookup(ctx context.Context, userID string) (Contact, error) {
	var c Contact
	err := d.coll.FindOne(ctx, bson.D{{Key: "user_id", Value: userID}}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Contact{}, ErrContactNotFound
	}
	if err != nil {
		return Contact{}, fmt.Errorf("lookup contact: %w", err)
	}
	return c, nil
}

func (d *MongoDirectory) ByRole(ctx context.Context, role string) ([]Contact, error) {
	cur, err := d.coll.Find(ctx, bson.D{{Key: "role", Value: role}})
	if err != nil {
		return nil, fmt.Errorf("find contacts by role: %w", err)
	}
	var out []Contact
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode contacts: %w", err)
	}
	return out, nil
}
