package shops

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/beenthere/btdt-api/internal/app/models"
	database "github.com/beenthere/btdt-api/internal/db"
)

var _ Repo = (*MongoRepo)(nil)

// Summary is one row of the paginated shop listing. AvgScore is computed
// from the embedded reviews inside the aggregation, never stored.
type Summary struct {
	ID       bson.ObjectID `bson:"_id" json:"id"`
	Title    string        `bson:"title" json:"title"`
	Website  string        `bson:"website,omitempty" json:"website,omitempty"`
	Phone    string        `bson:"phone,omitempty" json:"phone,omitempty"`
	Street   string        `bson:"street" json:"street"`
	City     string        `bson:"city" json:"city"`
	Category string        `bson:"category_name,omitempty" json:"category_name,omitempty"`
	AvgScore *float64      `bson:"avg_score" json:"avg_score"`
}

// Detail is a single shop with its average score, reviews and photo
// projected out. Reviews have their own listing route.
type Detail struct {
	OwnerID  bson.ObjectID    `bson:"owner_id" json:"owner_id"`
	Title    string           `bson:"title" json:"title"`
	Street   string           `bson:"street" json:"street"`
	City     string           `bson:"city" json:"city"`
	Website  string           `bson:"website,omitempty" json:"website,omitempty"`
	Phone    string           `bson:"phone,omitempty" json:"phone,omitempty"`
	Category string           `bson:"category_name,omitempty" json:"category_name,omitempty"`
	Location *models.GeoPoint `bson:"location,omitempty" json:"location,omitempty"`
	Deleted  bool             `bson:"deleted" json:"deleted"`
	AvgScore *float64         `bson:"avg_score" json:"avg_score"`
}

// ListFilter narrows and pages the shop listing.
type ListFilter struct {
	Limit  int64
	Offset int64
}

type Repo interface {
	Create(ctx context.Context, shop *models.Shop) (string, error)
	List(ctx context.Context, filter ListFilter) ([]Summary, int64, error)
	GetByID(ctx context.Context, shopID string) (*Detail, error)
	// GetMeta fetches a shop without its reviews, for ownership and
	// existence checks.
	GetMeta(ctx context.Context, shopID string) (*models.Shop, error)
	Categories(ctx context.Context) ([]string, error)
	SetPhoto(ctx context.Context, shopID string, photo []byte) error
	GetPhoto(ctx context.Context, shopID string) ([]byte, error)
	DeletePhoto(ctx context.Context, shopID string) error
	Delete(ctx context.Context, shopID string) error
	Deactivate(ctx context.Context, shopID string) error
	Reactivate(ctx context.Context, shopID string, newOwnerID bson.ObjectID) error
}

type MongoRepo struct {
	logger *slog.Logger
	shops  *mongo.Collection
}

func NewMongoRepo(db *mongo.Database, logger *slog.Logger) *MongoRepo {
	return &MongoRepo{logger: logger, shops: db.Collection(database.ShopsCollection)}
}

// Create implements shops.Repo.
func (r *MongoRepo) Create(ctx context.Context, shop *models.Shop) (string, error) {
	if shop.Reviews == nil {
		shop.Reviews = []models.Review{}
	}

	res, err := r.shops.InsertOne(ctx, shop)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error inserting shop", slog.Any("error", err))
		return "", fmt.Errorf("database error creating shop: %w", err)
	}

	oid, ok := res.InsertedID.(bson.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	shop.ID = oid
	return oid.Hex(), nil
}

// List implements shops.Repo. The returned count is the total number of
// matching shops before pagination, so callers can reject out-of-range
// offsets.
func (r *MongoRepo) List(ctx context.Context, filter ListFilter) ([]Summary, int64, error) {
	match := bson.M{}

	total, err := r.shops.CountDocuments(ctx, match)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error counting shops", slog.Any("error", err))
		return nil, 0, fmt.Errorf("database error counting shops: %w", err)
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$skip", Value: filter.Offset}},
		{{Key: "$limit", Value: filter.Limit}},
		{{Key: "$project", Value: bson.M{
			"_id":           1,
			"title":         1,
			"website":       1,
			"phone":         1,
			"street":        1,
			"city":          1,
			"category_name": 1,
			"avg_score":     bson.M{"$avg": "$reviews.score"},
		}}},
	}

	cursor, err := r.shops.Aggregate(ctx, pipeline)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing shops", slog.Any("error", err))
		return nil, 0, fmt.Errorf("database error listing shops: %w", err)
	}
	defer cursor.Close(ctx)

	var out []Summary
	if err := cursor.All(ctx, &out); err != nil {
		r.logger.ErrorContext(ctx, "Error decoding shop list", slog.Any("error", err))
		return nil, 0, fmt.Errorf("database error decoding shops: %w", err)
	}
	return out, total, nil
}

// GetByID implements shops.Repo.
func (r *MongoRepo) GetByID(ctx context.Context, shopID string) (*Detail, error) {
	oid, err := bson.ObjectIDFromHex(shopID)
	if err != nil {
		return nil, fmt.Errorf("invalid shop id: %w", models.ErrNotFound)
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": oid}}},
		{{Key: "$addFields", Value: bson.M{"avg_score": bson.M{"$avg": "$reviews.score"}}}},
		{{Key: "$project", Value: bson.M{"reviews": 0, "photo": 0, "_id": 0}}},
	}

	cursor, err := r.shops.Aggregate(ctx, pipeline)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error fetching shop", slog.Any("error", err), slog.String("shopID", shopID))
		return nil, fmt.Errorf("database error fetching shop: %w", err)
	}
	defer cursor.Close(ctx)

	var out []Detail
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("database error decoding shop: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("shop with ID %s not found: %w", shopID, models.ErrNotFound)
	}
	return &out[0], nil
}

// GetMeta implements shops.Repo.
func (r *MongoRepo) GetMeta(ctx context.Context, shopID string) (*models.Shop, error) {
	oid, err := bson.ObjectIDFromHex(shopID)
	if err != nil {
		return nil, fmt.Errorf("invalid shop id: %w", models.ErrNotFound)
	}

	var shop models.Shop
	err = r.shops.FindOne(ctx, bson.M{"_id": oid},
		options.FindOne().SetProjection(bson.M{"reviews": 0}),
	).Decode(&shop)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("shop with ID %s not found: %w", shopID, models.ErrNotFound)
		}
		r.logger.ErrorContext(ctx, "Error fetching shop", slog.Any("error", err), slog.String("shopID", shopID))
		return nil, fmt.Errorf("database error fetching shop: %w", err)
	}
	return &shop, nil
}

// Categories implements shops.Repo. Distinct category names ordered by how
// many shops carry them, for frontend dropdowns.
func (r *MongoRepo) Categories(ctx context.Context) ([]string, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$category_name", "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.M{"count": -1}}},
	}

	cursor, err := r.shops.Aggregate(ctx, pipeline)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error grouping categories", slog.Any("error", err))
		return nil, fmt.Errorf("database error grouping categories: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Category *string `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("database error decoding categories: %w", err)
	}

	out := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.Category != nil && *row.Category != "" {
			out = append(out, *row.Category)
		}
	}
	return out, nil
}

// SetPhoto implements shops.Repo.
func (r *MongoRepo) SetPhoto(ctx context.Context, shopID string, photo []byte) error {
	oid, err := bson.ObjectIDFromHex(shopID)
	if err != nil {
		return fmt.Errorf("invalid shop id: %w", models.ErrNotFound)
	}

	_, err = r.shops.UpdateByID(ctx, oid, bson.M{"$set": bson.M{"photo": photo}})
	if err != nil {
		r.logger.ErrorContext(ctx, "Error storing shop photo", slog.Any("error", err), slog.String("shopID", shopID))
		return fmt.Errorf("database error storing photo: %w", err)
	}
	return nil
}

// GetPhoto implements shops.Repo.
func (r *MongoRepo) GetPhoto(ctx context.Context, shopID string) ([]byte, error) {
	oid, err := bson.ObjectIDFromHex(shopID)
	if err != nil {
		return nil, fmt.Errorf("invalid shop id: %w", models.ErrNotFound)
	}

	var doc struct {
		Photo []byte `bson:"photo"`
	}
	err = r.shops.FindOne(ctx, bson.M{"_id": oid},
		options.FindOne().SetProjection(bson.M{"photo": 1}),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("shop with ID %s not found: %w", shopID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("database error fetching photo: %w", err)
	}
	if len(doc.Photo) == 0 {
		return nil, fmt.Errorf("photo not found: %w", models.ErrNotFound)
	}
	return doc.Photo, nil
}

// DeletePhoto implements shops.Repo.
func (r *MongoRepo) DeletePhoto(ctx context.Context, shopID string) error {
	oid, err := bson.ObjectIDFromHex(shopID)
	if err != nil {
		return fmt.Errorf("invalid shop id: %w", models.ErrNotFound)
	}

	_, err = r.shops.UpdateByID(ctx, oid, bson.M{"$unset": bson.M{"photo": ""}})
	if err != nil {
		return fmt.Errorf("database error removing photo: %w", err)
	}
	return nil
}

// Delete implements shops.Repo. This is the hard delete behind the admin
// route; owners get Deactivate instead.
func (r *MongoRepo) Delete(ctx context.Context, shopID string) error {
	oid, err := bson.ObjectIDFromHex(shopID)
	if err != nil {
		return fmt.Errorf("invalid shop id: %w", models.ErrNotFound)
	}

	res, err := r.shops.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		r.logger.ErrorContext(ctx, "Error deleting shop", slog.Any("error", err), slog.String("shopID", shopID))
		return fmt.Errorf("database error deleting shop: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("shop with ID %s not found: %w", shopID, models.ErrNotFound)
	}
	return nil
}

// Deactivate implements shops.Repo.
func (r *MongoRepo) Deactivate(ctx context.Context, shopID string) error {
	oid, err := bson.ObjectIDFromHex(shopID)
	if err != nil {
		return fmt.Errorf("invalid shop id: %w", models.ErrNotFound)
	}

	res, err := r.shops.UpdateByID(ctx, oid, bson.M{"$set": bson.M{"deleted": true}})
	if err != nil {
		return fmt.Errorf("database error deactivating shop: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("shop with ID %s not found: %w", shopID, models.ErrNotFound)
	}
	return nil
}

// Reactivate implements shops.Repo. The owner can change hands here, for
// the case where the original owner's account is gone.
func (r *MongoRepo) Reactivate(ctx context.Context, shopID string, newOwnerID bson.ObjectID) error {
	oid, err := bson.ObjectIDFromHex(shopID)
	if err != nil {
		return fmt.Errorf("invalid shop id: %w", models.ErrNotFound)
	}

	res, err := r.shops.UpdateByID(ctx, oid, bson.M{"$set": bson.M{
		"deleted":  false,
		"owner_id": newOwnerID,
	}})
	if err != nil {
		return fmt.Errorf("database error reactivating shop: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("shop with ID %s not found: %w", shopID, models.ErrNotFound)
	}
	return nil
}
