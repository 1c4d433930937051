package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/beenthere/btdt-api/internal/app/models"
	database "github.com/beenthere/btdt-api/internal/db"
)

var _ Store = (*MongoStore)(nil)

// Store owns the Users collection: user records and the embedded session
// arrays. Every mutation is a single-document update; the store never does a
// read-modify-write round trip, so concurrent logins and renewals for the
// same user cannot lose each other's sessions.
type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
	// GetUserWithSession loads the user by id AND requires the session id to
	// be a current member of the user's session array, in one lookup.
	// A missing user and a revoked session are indistinguishable by design.
	GetUserWithSession(ctx context.Context, userID, sessionID string) (*models.User, error)

	// OpenSession appends a fresh session and returns it for token encoding.
	OpenSession(ctx context.Context, userID string) (models.Session, error)
	// CloseSession removes exactly one matching session. A false return with
	// nil error means nothing matched; callers decide whether that matters.
	CloseSession(ctx context.Context, userID, sessionID string) (bool, error)
	// CloseAllSessions wipes the session array (logout-all, deactivation).
	CloseAllSessions(ctx context.Context, userID string) error
	// SessionLive reports current membership of the session in the array.
	SessionLive(ctx context.Context, userID, sessionID string) (bool, error)

	// Deactivate sets the deleted flag and clears the session array in one
	// atomic update, so a soft-deleted user can never hold a valid session.
	Deactivate(ctx context.Context, userID string) error
	Reactivate(ctx context.Context, userID string) error
	SetVerified(ctx context.Context, userID string, verified bool) error
	UpdatePassword(ctx context.Context, userID string, digest []byte) error
}

type MongoStore struct {
	logger  *slog.Logger
	users   *mongo.Collection
	horizon time.Duration
}

func NewMongoStore(db *mongo.Database, horizon time.Duration, logger *slog.Logger) *MongoStore {
	return &MongoStore{
		logger:  logger,
		users:   db.Collection(database.UsersCollection),
		horizon: horizon,
	}
}

// CreateUser implements auth.Store.
func (s *MongoStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.Sessions == nil {
		user.Sessions = []models.Session{}
	}
	user.CreatedAt = time.Now().UTC()

	res, err := s.users.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("email already registered: %w", models.ErrConflict)
		}
		s.logger.ErrorContext(ctx, "Error inserting user", slog.Any("error", err), slog.String("email", user.Email))
		return fmt.Errorf("database error registering user: %w", err)
	}

	if id, ok := res.InsertedID.(bson.ObjectID); ok {
		user.ID = id
	}
	return nil
}

// GetUserByEmail implements auth.Store.
func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.users.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("user with email %s not found: %w", email, models.ErrNotFound)
		}
		s.logger.ErrorContext(ctx, "Error fetching user by email", slog.Any("error", err), slog.String("email", email))
		return nil, fmt.Errorf("database error fetching user: %w", err)
	}
	return &user, nil
}

// GetUserByID implements auth.Store.
func (s *MongoStore) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	oid, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", models.ErrNotFound)
	}

	var user models.User
	err = s.users.FindOne(ctx, bson.M{"_id": oid}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("user with ID %s not found: %w", userID, models.ErrNotFound)
		}
		s.logger.ErrorContext(ctx, "Error fetching user by ID", slog.Any("error", err), slog.String("userID", userID))
		return nil, fmt.Errorf("database error fetching user by ID: %w", err)
	}
	return &user, nil
}

// GetUserWithSession implements auth.Store.
func (s *MongoStore) GetUserWithSession(ctx context.Context, userID, sessionID string) (*models.User, error) {
	oid, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return nil, models.ErrSessionRevoked
	}

	var user models.User
	err = s.users.FindOne(ctx, bson.M{
		"_id":                 oid,
		"sessions.session_id": sessionID,
	}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrSessionRevoked
		}
		s.logger.ErrorContext(ctx, "Error fetching user with session", slog.Any("error", err), slog.String("userID", userID))
		return nil, fmt.Errorf("database error fetching user session: %w", err)
	}
	return &user, nil
}

// OpenSession implements auth.Store.
func (s *MongoStore) OpenSession(ctx context.Context, userID string) (models.Session, error) {
	oid, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return models.Session{}, fmt.Errorf("invalid user id: %w", models.ErrNotFound)
	}

	session := models.Session{
		ID:        uuid.NewString(),
		ExpiresAt: time.Now().UTC().Add(s.horizon),
	}

	res, err := s.users.UpdateByID(ctx, oid, bson.M{"$push": bson.M{"sessions": session}})
	if err != nil {
		s.logger.ErrorContext(ctx, "Error opening session", slog.Any("error", err), slog.String("userID", userID))
		return models.Session{}, fmt.Errorf("database error opening session: %w", err)
	}
	if res.MatchedCount == 0 {
		return models.Session{}, fmt.Errorf("user not found: %w", models.ErrNotFound)
	}
	return session, nil
}

// CloseSession implements auth.Store.
func (s *MongoStore) CloseSession(ctx context.Context, userID, sessionID string) (bool, error) {
	oid, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return false, fmt.Errorf("invalid user id: %w", models.ErrNotFound)
	}

	res, err := s.users.UpdateByID(ctx, oid, bson.M{
		"$pull": bson.M{"sessions": bson.M{"session_id": sessionID}},
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Error closing session", slog.Any("error", err), slog.String("userID", userID))
		return false, fmt.Errorf("database error closing session: %w", err)
	}
	return res.ModifiedCount > 0, nil
}

// CloseAllSessions implements auth.Store.
func (s *MongoStore) CloseAllSessions(ctx context.Context, userID string) error {
	oid, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return fmt.Errorf("invalid user id: %w", models.ErrNotFound)
	}

	res, err := s.users.UpdateByID(ctx, oid, bson.M{"$set": bson.M{"sessions": []models.Session{}}})
	if err != nil {
		s.logger.ErrorContext(ctx, "Error closing all sessions", slog.Any("error", err), slog.String("userID", userID))
		return fmt.Errorf("database error closing sessions: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user not found: %w", models.ErrNotFound)
	}
	return nil
}

// SessionLive implements auth.Store.
func (s *MongoStore) SessionLive(ctx context.Context, userID, sessionID string) (bool, error) {
	oid, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return false, nil
	}

	count, err := s.users.CountDocuments(ctx, bson.M{
		"_id":                 oid,
		"sessions.session_id": sessionID,
	}, options.Count().SetLimit(1))
	if err != nil {
		s.logger.ErrorContext(ctx, "Error checking session membership", slog.Any("error", err), slog.String("userID", userID))
		return false, fmt.Errorf("database error checking session: %w", err)
	}
	return count > 0, nil
}

// Deactivate implements auth.Store.
func (s *MongoStore) Deactivate(ctx context.Context, userID string) error {
	oid, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return fmt.Errorf("invalid user id: %w", models.ErrNotFound)
	}

	res, err := s.users.UpdateByID(ctx, oid, bson.M{
		"$set": bson.M{"is_deleted": true, "sessions": []models.Session{}},
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deactivating user", slog.Any("error", err), slog.String("userID", userID))
		return fmt.Errorf("database error deactivating user: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user not found: %w", models.ErrNotFound)
	}
	return nil
}

// Reactivate implements auth.Store.
func (s *MongoStore) Reactivate(ctx context.Context, userID string) error {
	oid, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return fmt.Errorf("invalid user id: %w", models.ErrNotFound)
	}

	res, err := s.users.UpdateByID(ctx, oid, bson.M{"$set": bson.M{"is_deleted": false}})
	if err != nil {
		s.logger.ErrorContext(ctx, "Error reactivating user", slog.Any("error", err), slog.String("userID", userID))
		return fmt.Errorf("database error reactivating user: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user not found: %w", models.ErrNotFound)
	}
	return nil
}

// SetVerified implements auth.Store.
func (s *MongoStore) SetVerified(ctx context.Context, userID string, verified bool) error {
	oid, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return fmt.Errorf("invalid user id: %w", models.ErrNotFound)
	}

	res, err := s.users.UpdateByID(ctx, oid, bson.M{"$set": bson.M{"verified": verified}})
	if err != nil {
		s.logger.ErrorContext(ctx, "Error updating verified flag", slog.Any("error", err), slog.String("userID", userID))
		return fmt.Errorf("database error updating verified flag: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user not found: %w", models.ErrNotFound)
	}
	return nil
}

// UpdatePassword implements auth.Store. Expects an already-derived digest.
func (s *MongoStore) UpdatePassword(ctx context.Context, userID string, digest []byte) error {
	oid, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return fmt.Errorf("invalid user id: %w", models.ErrNotFound)
	}

	res, err := s.users.UpdateByID(ctx, oid, bson.M{"$set": bson.M{"password": digest}})
	if err != nil {
		s.logger.ErrorContext(ctx, "Error updating password digest", slog.Any("error", err), slog.String("userID", userID))
		return fmt.Errorf("database error updating password: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user not found: %w", models.ErrNotFound)
	}
	return nil
}
