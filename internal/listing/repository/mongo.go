package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/thriftkids/marketplace/internal/listing"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the Mongo collection holding listings.
const CollectionName = "listings"

// record is the stored shape of a listing. created_at is decoded loosely
// because older documents may carry it as a string or a BSON timestamp.
type record struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Title       string             `bson:"title"`
	Size        string             `bson:"size"`
	AgeGroup    string             `bson:"age_group"`
	Condition   string             `bson:"condition"`
	Notes       string             `bson:"notes"`
	Description string             `bson:"description"`
	ImageURL    string             `bson:"image_url"`
	CreatedAt   interface{}        `bson:"created_at,omitempty"`
	Seeded      bool               `bson:"seeded,omitempty"`
}

func (r *record) toListing() *listing.Listing {
	return &listing.Listing{
		ID:          r.ID.Hex(),
		Title:       r.Title,
		Size:        r.Size,
		AgeGroup:    r.AgeGroup,
		Condition:   r.Condition,
		Notes:       r.Notes,
		Description: r.Description,
		ImageURL:    r.ImageURL,
		CreatedAt:   NormalizeTimestamp(r.CreatedAt),
		Seeded:      r.Seeded,
	}
}

// MongoRepo implements Repository on a Mongo collection. created_at is
// assigned by the server ($currentDate) so ordering follows insertion.
type MongoRepo struct {
	col *mongo.Collection
}

func NewMongoRepo(col *mongo.Collection) *MongoRepo {
	return &MongoRepo{col: col}
}

// EnsureIndexes creates the created_at index used by ListNewestFirst.
func (m *MongoRepo) EnsureIndexes(ctx context.Context) error {
	idx := mongo.IndexModel{Keys: bson.D{{Key: "created_at", Value: -1}}}
	_, err := m.col.Indexes().CreateOne(ctx, idx)
	return err
}

func (m *MongoRepo) Insert(ctx context.Context, l *listing.Listing) error {
	id := primitive.NewObjectID()
	fields := bson.M{
		"title":       l.Title,
		"size":        l.Size,
		"age_group":   l.AgeGroup,
		"condition":   l.Condition,
		"notes":       l.Notes,
		"description": l.Description,
		"image_url":   l.ImageURL,
	}
	if l.Seeded {
		fields["seeded"] = true
	}
	update := bson.M{
		"$setOnInsert": fields,
		"$currentDate": bson.M{"created_at": true},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var stored record
	if err := m.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&stored); err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	l.ID = id.Hex()
	l.CreatedAt = NormalizeTimestamp(stored.CreatedAt)
	return nil
}

func (m *MongoRepo) ListNewestFirst(ctx context.Context) ([]*listing.Listing, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := m.col.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	defer cur.Close(ctx)
	out := []*listing.Listing{}
	for cur.Next(ctx) {
		var r record
		if err := cur.Decode(&r); err != nil {
			return nil, fmt.Errorf("decode listing: %w", err)
		}
		out = append(out, r.toListing())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate listings: %w", err)
	}
	return out, nil
}

// NormalizeTimestamp converts a store-native created_at value to text.
// Unknown representations yield "".
func NormalizeTimestamp(v interface{}) string {
	switch t := v.(type) {
	case primitive.DateTime:
		return listing.FormatTimestamp(t.Time())
	case time.Time:
		return listing.FormatTimestamp(t)
	case primitive.Timestamp:
		return listing.FormatTimestamp(time.Unix(int64(t.T), 0))
	case string:
		return t
	default:
		return ""
	}
}
