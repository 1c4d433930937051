package reviews

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

// ListFilter narrows the review listing for one shop.
type ListFilter struct {
	ShopID     string
	ReviewerID string
	MinScore   *int
	MaxScore   *int
	Limit      int64
	Offset     int64
}

// Repo mutates the reviews embedded in shop documents. Every write is a
// single-document update on the owning shop.
type Repo interface {
	// GetActive returns the caller's live review on a shop, if any.
	GetActive(ctx context.Context, shopID string, userID bson.ObjectID) (*models.Review, error)
	// RetireActive soft-deletes the caller's live review.
	RetireActive(ctx context.Context, shopID string, userID bson.ObjectID) error
	Push(ctx context.Context, shopID string, review *models.Review) error
	List(ctx context.Context, filter ListFilter) ([]models.Review, error)
	Like(ctx context.Context, shopID string, reviewUserID, likerID bson.ObjectID) (bool, error)
	Unlike(ctx context.Context, shopID string, reviewUserID, likerID bson.ObjectID) (bool, error)
}

type MongoRepo struct {
	logger *slog.Logger
	shops  *mongo.Collection
}

func NewMongoRepo(db *mongo.Database, logger *slog.Logger) *MongoRepo {
	return &MongoRepo{logger: logger, shops: db.Collection(database.ShopsCollection)}
}

// GetActive implements reviews.Repo.
func (r *MongoRepo) GetActive(ctx context.Context, shopID string, userID bson.ObjectID) (*models.Review, error) {
	oid, err := bson.ObjectIDFromHex(shopID)
	if err != nil {
		return nil, fmt.Errorf("invalid shop id: %w", models.ErrNotFound)
	}

	var doc struct {
		Reviews []models.Review `bson:"reviews"`
	}
	err = r.shops.FindOne(ctx,
		bson.M{"_id": oid, "deleted": false, "reviews": bson.M{"$elemMatch": bson.M{"user_id": userID, "deleted": false}}},
		options.FindOne().SetProjection(bson.M{"reviews.$": 1}),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("no active review: %w", models.ErrNotFound)
		}
		r.logger.ErrorContext(ctx, "Error fetching review", slog.Any("error", err), slog.String("shopID", shopID))
		return nil, fmt.Errorf("database error fetching review: %w", err)
	}
	if len(doc.Reviews) == 0 {
		return nil, fmt.Errorf("no active review: %w", models.ErrNotFound)
	}
	return &doc.Reviews[0], nil
}

// RetireActive implements reviews.Repo.
func (r *MongoRepo) RetireActive(ctx context.Context, shopID string, userID bson.ObjectID) error {
	oid, err := bson.ObjectIDFromHex(shopID)
	if err != nil {
		return fmt.Errorf("invalid shop id: %w", models.ErrNotFound)
	}

	_, err = r.shops.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"reviews.$[review].deleted": true}},
		options.UpdateOne().SetArrayFilters([]interface{}{
			bson.M{"review.user_id": userID, "review.deleted": false},
		}),
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error retiring review", slog.Any("error", err), slog.String("shopID", shopID))
		return fmt.Errorf("database error retiring review: %w", err)
	}
	return nil
}

// Push implements reviews.Repo.
func (r *MongoRepo) Push(ctx context.Context, shopID string, review *models.Review) error {
	oid, err := bson.ObjectIDFromHex(shopID)
	if err != nil {
		return fmt.Errorf("invalid shop id: %w", models.ErrNotFound)
	}

	res, err := r.shops.UpdateOne(ctx,
		bson.M{"_id": oid, "deleted": false},
		bson.M{"$push": bson.M{"reviews": review}},
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error pushing review", slog.Any("error", err), slog.String("shopID", shopID))
		return fmt.Errorf("database error pushing review: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("shop with ID %s not found: %w", shopID, models.ErrNotFound)
	}
	return nil
}

// List implements reviews.Repo. Live reviews only, most liked first, then
// newest first. A missing or deactivated shop is reported as not found; a
// shop whose reviews just don't match the filter returns an empty list.
func (r *MongoRepo) List(ctx context.Context, filter ListFilter) ([]models.Review, error) {
	oid, err := bson.ObjectIDFromHex(filter.ShopID)
	if err != nil {
		return nil, fmt.Errorf("invalid shop id: %w", models.ErrNotFound)
	}

	cond := []interface{}{
		bson.M{"$eq": bson.A{"$$review.deleted", false}},
	}
	if filter.ReviewerID != "" {
		reviewer, err := bson.ObjectIDFromHex(filter.ReviewerID)
		if err != nil {
			return nil, fmt.Errorf("invalid reviewer id: %w", models.ErrBadRequest)
		}
		cond = append(cond, bson.M{"$eq": bson.A{"$$review.user_id", reviewer}})
	}
	if filter.MinScore != nil {
		cond = append(cond, bson.M{"$gte": bson.A{"$$review.score", *filter.MinScore}})
	}
	if filter.MaxScore != nil {
		cond = append(cond, bson.M{"$lte": bson.A{"$$review.score", *filter.MaxScore}})
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": oid, "deleted": false}}},
		{{Key: "$project", Value: bson.M{
			"reviews": bson.M{"$filter": bson.M{
				"input": "$reviews",
				"as":    "review",
				"cond":  bson.M{"$and": cond},
			}},
		}}},
		{{Key: "$unwind", Value: "$reviews"}},
		{{Key: "$addFields", Value: bson.M{
			"reviews.like_count": bson.M{"$size": bson.M{"$objectToArray": "$reviews.likes"}},
		}}},
		{{Key: "$sort", Value: bson.D{
			{Key: "reviews.like_count", Value: -1},
			{Key: "reviews.date_created", Value: -1},
		}}},
		{{Key: "$skip", Value: filter.Offset}},
		{{Key: "$limit", Value: filter.Limit}},
		{{Key: "$replaceRoot", Value: bson.M{"newRoot": "$reviews"}}},
	}

	cursor, err := r.shops.Aggregate(ctx, pipeline)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing reviews", slog.Any("error", err), slog.String("shopID", filter.ShopID))
		return nil, fmt.Errorf("database error listing reviews: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.Review
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("database error decoding reviews: %w", err)
	}

	// The pipeline drops the shop document entirely when no review survives
	// the filter, so an empty result is ambiguous. One cheap existence check
	// keeps no-shop and no-reviews apart.
	if len(out) == 0 {
		n, err := r.shops.CountDocuments(ctx, bson.M{"_id": oid, "deleted": false}, options.Count().SetLimit(1))
		if err != nil {
			r.logger.ErrorContext(ctx, "Error checking shop existence", slog.Any("error", err), slog.String("shopID", filter.ShopID))
			return nil, fmt.Errorf("database error listing reviews: %w", err)
		}
		if n == 0 {
			return nil, fmt.Errorf("shop with ID %s not found: %w", filter.ShopID, models.ErrNotFound)
		}
	}
	return out, nil
}

// Like implements reviews.Repo. Likes live in a map keyed by the liker's
// id, so liking twice is a no-op at the document level.
func (r *MongoRepo) Like(ctx context.Context, shopID string, reviewUserID, likerID bson.ObjectID) (bool, error) {
	return r.setLike(ctx, shopID, reviewUserID, bson.M{
		"$set": bson.M{"reviews.$[review].likes." + likerID.Hex(): 1},
	})
}

// Unlike implements reviews.Repo.
func (r *MongoRepo) Unlike(ctx context.Context, shopID string, reviewUserID, likerID bson.ObjectID) (bool, error) {
	return r.setLike(ctx, shopID, reviewUserID, bson.M{
		"$unset": bson.M{"reviews.$[review].likes." + likerID.Hex(): ""},
	})
}

func (r *MongoRepo) setLike(ctx context.Context, shopID string, reviewUserID bson.ObjectID, update bson.M) (bool, error) {
	oid, err := bson.ObjectIDFromHex(shopID)
	if err != nil {
		return false, fmt.Errorf("invalid shop id: %w", models.ErrNotFound)
	}

	res, err := r.shops.UpdateOne(ctx,
		bson.M{"_id": oid, "reviews": bson.M{"$elemMatch": bson.M{"user_id": reviewUserID, "deleted": false}}},
		update,
		options.UpdateOne().SetArrayFilters([]interface{}{
			bson.M{"review.user_id": reviewUserID, "review.deleted": false},
		}),
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error updating review like", slog.Any("error", err), slog.String("shopID", shopID))
		return false, fmt.Errorf("database error updating like: %w", err)
	}
	return res.ModifiedCount > 0, nil
}
