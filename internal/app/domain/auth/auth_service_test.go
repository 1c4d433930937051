package auth

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/beenthere/btdt-api/internal/app/models"
)

func newTestService(store Store) *Service {
	codec := NewTokenCodec("test-secret", time.Hour)
	hasher := NewHasher("test-salt", 1000)
	return NewService(store, codec, hasher, slog.Default())
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	hasher := NewHasher("test-salt", 1000)
	userID := bson.NewObjectID()

	liveUser := func() *models.User {
		return &models.User{
			ID:           userID,
			Email:        "user@example.com",
			PasswordHash: hasher.Hash("Password1"),
			Verified:     true,
		}
	}

	tests := []struct {
		name      string
		password  string
		setupMock func(*MockStore)
		wantErr   error
	}{
		{
			name:     "Success",
			password: "Password1",
			setupMock: func(store *MockStore) {
				store.On("GetUserByEmail", mock.Anything, "user@example.com").Return(liveUser(), nil).Once()
				store.On("OpenSession", mock.Anything, userID.Hex()).
					Return(models.Session{ID: "sess-1", ExpiresAt: time.Now().Add(time.Hour)}, nil).Once()
			},
		},
		{
			name:     "Unknown email",
			password: "Password1",
			setupMock: func(store *MockStore) {
				store.On("GetUserByEmail", mock.Anything, "user@example.com").Return(nil, models.ErrNotFound).Once()
			},
			wantErr: models.ErrUnauthenticated,
		},
		{
			name:     "Wrong password",
			password: "Password2",
			setupMock: func(store *MockStore) {
				store.On("GetUserByEmail", mock.Anything, "user@example.com").Return(liveUser(), nil).Once()
			},
			wantErr: models.ErrUnauthenticated,
		},
		{
			name:     "Deleted account",
			password: "Password1",
			setupMock: func(store *MockStore) {
				user := liveUser()
				user.IsDeleted = true
				store.On("GetUserByEmail", mock.Anything, "user@example.com").Return(user, nil).Once()
			},
			wantErr: models.ErrUnauthenticated,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := new(MockStore)
			tc.setupMock(store)
			svc := newTestService(store)

			token, err := svc.Login(ctx, "user@example.com", tc.password)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Empty(t, token)
			} else {
				require.NoError(t, err)
				assert.NotEmpty(t, token)
			}
			store.AssertExpectations(t)
		})
	}
}

func TestLoginTokenNamesOpenedSession(t *testing.T) {
	ctx := context.Background()
	hasher := NewHasher("test-salt", 1000)
	userID := bson.NewObjectID()

	store := new(MockStore)
	store.On("GetUserByEmail", mock.Anything, "user@example.com").Return(&models.User{
		ID:           userID,
		Email:        "user@example.com",
		PasswordHash: hasher.Hash("Password1"),
		Verified:     true,
	}, nil).Once()
	store.On("OpenSession", mock.Anything, userID.Hex()).
		Return(models.Session{ID: "sess-42", ExpiresAt: time.Now().Add(time.Hour)}, nil).Once()

	svc := newTestService(store)
	token, err := svc.Login(ctx, "user@example.com", "Password1")
	require.NoError(t, err)

	claims, err := svc.codec.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, userID.Hex(), claims.UserID)
	assert.Equal(t, "sess-42", claims.SessionID)
	store.AssertExpectations(t)
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	userID := bson.NewObjectID()

	t.Run("Success", func(t *testing.T) {
		store := new(MockStore)
		store.On("CreateUser", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
			return u.Email == "new@example.com" && u.Verified && len(u.PasswordHash) > 0
		})).Run(func(args mock.Arguments) {
			args.Get(1).(*models.User).ID = userID
		}).Return(nil).Once()
		store.On("OpenSession", mock.Anything, userID.Hex()).
			Return(models.Session{ID: "sess-1", ExpiresAt: time.Now().Add(time.Hour)}, nil).Once()

		svc := newTestService(store)
		user, token, err := svc.Register(ctx, RegisterInput{
			Name:     "Ada Lovelace",
			Email:    "new@example.com",
			Password: "Password1",
			DOB:      time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.Equal(t, userID, user.ID)
		store.AssertExpectations(t)
	})

	t.Run("Duplicate email", func(t *testing.T) {
		store := new(MockStore)
		store.On("CreateUser", mock.Anything, mock.Anything).Return(models.ErrConflict).Once()

		svc := newTestService(store)
		_, _, err := svc.Register(ctx, RegisterInput{
			Name:     "Ada Lovelace",
			Email:    "taken@example.com",
			Password: "Password1",
		})
		assert.ErrorIs(t, err, models.ErrConflict)
		store.AssertExpectations(t)
	})
}

func TestUpdatePassword(t *testing.T) {
	ctx := context.Background()
	hasher := NewHasher("test-salt", 1000)
	userID := bson.NewObjectID()

	user := func() *models.User {
		return &models.User{ID: userID, PasswordHash: hasher.Hash("OldPassword1")}
	}

	t.Run("Success revokes all sessions", func(t *testing.T) {
		store := new(MockStore)
		store.On("GetUserByID", mock.Anything, userID.Hex()).Return(user(), nil).Once()
		store.On("UpdatePassword", mock.Anything, userID.Hex(), mock.Anything).Return(nil).Once()
		store.On("CloseAllSessions", mock.Anything, userID.Hex()).Return(nil).Once()

		svc := newTestService(store)
		err := svc.UpdatePassword(ctx, userID.Hex(), "OldPassword1", "NewPassword1")
		require.NoError(t, err)
		store.AssertExpectations(t)
	})

	t.Run("Wrong old password", func(t *testing.T) {
		store := new(MockStore)
		store.On("GetUserByID", mock.Anything, userID.Hex()).Return(user(), nil).Once()

		svc := newTestService(store)
		err := svc.UpdatePassword(ctx, userID.Hex(), "WrongPassword1", "NewPassword1")
		assert.ErrorIs(t, err, models.ErrUnauthenticated)
		store.AssertExpectations(t)
	})

	t.Run("Same new password rejected", func(t *testing.T) {
		store := new(MockStore)
		store.On("GetUserByID", mock.Anything, userID.Hex()).Return(user(), nil).Once()

		svc := newTestService(store)
		err := svc.UpdatePassword(ctx, userID.Hex(), "OldPassword1", "OldPassword1")
		assert.ErrorIs(t, err, models.ErrValidation)
		store.AssertExpectations(t)
	})
}

func TestRenewOpensBeforeClosing(t *testing.T) {
	ctx := context.Background()
	userID := bson.NewObjectID()

	store := new(MockStore)
	store.On("OpenSession", mock.Anything, userID.Hex()).
		Return(models.Session{ID: "sess-new", ExpiresAt: time.Now().Add(time.Hour)}, nil).Once()
	store.On("CloseSession", mock.Anything, userID.Hex(), "sess-old").Return(true, nil).Once()

	svc := newTestService(store)
	token, err := svc.Renew(ctx, userID.Hex(), "sess-old")
	require.NoError(t, err)

	claims, err := svc.codec.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "sess-new", claims.SessionID)
	store.AssertExpectations(t)
}

func TestRenewSurvivesCloseFailure(t *testing.T) {
	ctx := context.Background()
	userID := bson.NewObjectID()

	store := new(MockStore)
	store.On("OpenSession", mock.Anything, userID.Hex()).
		Return(models.Session{ID: "sess-new", ExpiresAt: time.Now().Add(time.Hour)}, nil).Once()
	store.On("CloseSession", mock.Anything, userID.Hex(), "sess-old").
		Return(false, assert.AnError).Once()

	svc := newTestService(store)
	token, err := svc.Renew(ctx, userID.Hex(), "sess-old")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	store.AssertExpectations(t)
}
