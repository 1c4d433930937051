package reviews

import (
	"context"

	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/beenthere/btdt-api/internal/app/models"
)

// MockRepo is a mock implementation of Repo
type MockRepo struct {
	mock.Mock
}

func (m *MockRepo) GetActive(ctx context.Context, shopID string, userID bson.ObjectID) (*models.Review, error) {
	args := m.Called(ctx, shopID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Review), args.Error(1)
}

func (m *MockRepo) RetireActive(ctx context.Context, shopID string, userID bson.ObjectID) error {
	args := m.Called(ctx, shopID, userID)
	return args.Error(0)
}

func (m *MockRepo) Push(ctx context.Context, shopID string, review *models.Review) error {
	args := m.Called(ctx, shopID, review)
	return args.Error(0)
}

func (m *MockRepo) List(ctx context.Context, filter ListFilter) ([]models.Review, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Review), args.Error(1)
}

func (m *MockRepo) Like(ctx context.Context, shopID string, reviewUserID, likerID bson.ObjectID) (bool, error) {
	args := m.Called(ctx, shopID, reviewUserID, likerID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepo) Unlike(ctx context.Context, shopID string, reviewUserID, likerID bson.ObjectID) (bool, error) {
	args := m.Called(ctx, shopID, reviewUserID, likerID)
	return args.Bool(0), args.Error(1)
}
