package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/beenthere/btdt-api/internal/app/models"
	database "github.com/beenthere/btdt-api/internal/db"
)

var _ Repo = (*MongoRepo)(nil)

// DOBFilter matches users on date of birth with a comparison operator.
type DOBFilter struct {
	Op   string // eq, ne, lt, lte, gt, gte
	Date time.Time
}

// ListFilter narrows the admin user listing.
type ListFilter struct {
	NameContains  string
	EmailContains string
	DOB           *DOBFilter
	IsDeleted     *bool
	IsVerified    *bool
	IsAdmin       *bool
	Limit         int64
	Offset        int64
}

// Repo reads user records for the public profile and admin listing routes.
// Password digests and session arrays never leave the database here.
type Repo interface {
	GetByID(ctx context.Context, userID string) (*models.User, error)
	List(ctx context.Context, filter ListFilter) ([]models.User, error)
}

type MongoRepo struct {
	logger *slog.Logger
	users  *mongo.Collection
}

func NewMongoRepo(db *mongo.Database, logger *slog.Logger) *MongoRepo {
	return &MongoRepo{logger: logger, users: db.Collection(database.UsersCollection)}
}

// GetByID implements users.Repo.
func (r *MongoRepo) GetByID(ctx context.Context, userID string) (*models.User, error) {
	oid, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", models.ErrNotFound)
	}

	var user models.User
	err = r.users.FindOne(ctx, bson.M{"_id": oid},
		options.FindOne().SetProjection(bson.M{"password": 0, "sessions": 0}),
	).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("user with ID %s not found: %w", userID, models.ErrNotFound)
		}
		r.logger.ErrorContext(ctx, "Error fetching user", slog.Any("error", err), slog.String("userID", userID))
		return nil, fmt.Errorf("database error fetching user: %w", err)
	}
	return &user, nil
}

// List implements users.Repo.
func (r *MongoRepo) List(ctx context.Context, filter ListFilter) ([]models.User, error) {
	query := bson.M{}
	if filter.NameContains != "" {
		query["name"] = bson.M{"$regex": filter.NameContains, "$options": "i"}
	}
	if filter.EmailContains != "" {
		query["email"] = bson.M{"$regex": filter.EmailContains, "$options": "i"}
	}
	if filter.DOB != nil {
		query["dob"] = bson.M{"$" + filter.DOB.Op: filter.DOB.Date}
	}
	if filter.IsDeleted != nil {
		query["is_deleted"] = *filter.IsDeleted
	}
	if filter.IsVerified != nil {
		query["verified"] = *filter.IsVerified
	}
	if filter.IsAdmin != nil {
		query["is_admin"] = *filter.IsAdmin
	}

	opts := options.Find().
		SetProjection(bson.M{"password": 0, "sessions": 0}).
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(filter.Offset)
	if filter.Limit > 0 {
		opts = opts.SetLimit(filter.Limit)
	}

	cursor, err := r.users.Find(ctx, query, opts)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing users", slog.Any("error", err))
		return nil, fmt.Errorf("database error listing users: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.User
	if err := cursor.All(ctx, &out); err != nil {
		r.logger.ErrorContext(ctx, "Error decoding user list", slog.Any("error", err))
		return nil, fmt.Errorf("database error decoding users: %w", err)
	}
	return out, nil
}
