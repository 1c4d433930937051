package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/beenthere/btdt-api/internal/app/models"
	"github.com/beenthere/btdt-api/internal/app/response"
	"github.com/beenthere/btdt-api/internal/observability/metrics"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	// The global meter provider is a no-op in tests; counters are inert.
	metrics.InitAppMetrics()
	os.Exit(m.Run())
}

const testRenewalWindow = 7 * 24 * time.Hour

type middlewareFixture struct {
	store  *MockStore
	codec  *TokenCodec
	router *gin.Engine

	handlerCalled bool
	seenIdentity  Identity
}

func newMiddlewareFixture(t *testing.T, admin bool) *middlewareFixture {
	t.Helper()

	f := &middlewareFixture{
		store: new(MockStore),
		codec: NewTokenCodec("test-secret", 30*24*time.Hour),
	}

	hasher := NewHasher("test-salt", 1000)
	svc := NewService(f.store, f.codec, hasher, slog.Default())
	mw := NewMiddleware(svc, f.store, f.codec, testRenewalWindow, slog.Default())

	f.router = gin.New()
	f.router.Use(response.Flush())

	handlers := []gin.HandlerFunc{mw.RequireUser()}
	if admin {
		handlers = append(handlers, mw.RequireAdmin())
	}
	handlers = append(handlers, func(c *gin.Context) {
		f.handlerCalled = true
		f.seenIdentity, _ = IdentityFromContext(c)
		response.JSON(c, http.StatusOK, gin.H{"message": "ok"})
	})
	f.router.GET("/protected", handlers...)

	return f
}

func (f *middlewareFixture) do(token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func testUser(sessionID string, exp time.Time) *models.User {
	return &models.User{
		ID:       bson.NewObjectID(),
		Name:     "Test User",
		Email:    "user@example.com",
		Verified: true,
		Sessions: []models.Session{{ID: sessionID, ExpiresAt: exp}},
	}
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRequireUserMissingToken(t *testing.T) {
	f := newMiddlewareFixture(t, false)

	w := f.do("")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, f.handlerCalled)
	assert.Equal(t, models.ErrMissingToken.Error(), decodeBody(t, w)["error"])
}

func TestRequireUserMalformedToken(t *testing.T) {
	f := newMiddlewareFixture(t, false)

	// Garbage must produce a clean 401, never a 500.
	w := f.do("not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, f.handlerCalled)
	assert.Equal(t, models.ErrMalformedToken.Error(), decodeBody(t, w)["error"])
}

func TestRequireUserNonBearerScheme(t *testing.T) {
	f := newMiddlewareFixture(t, false)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, models.ErrMissingToken.Error(), decodeBody(t, w)["error"])
}

func TestRequireUserExpiredToken(t *testing.T) {
	f := newMiddlewareFixture(t, false)

	token, err := f.codec.Issue("user-1", "sess-1", time.Now().Add(-time.Minute))
	require.NoError(t, err)

	w := f.do(token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, models.ErrExpiredToken.Error(), decodeBody(t, w)["error"])
}

func TestRequireUserRevokedSession(t *testing.T) {
	f := newMiddlewareFixture(t, false)
	user := testUser("sess-1", time.Now().Add(30*24*time.Hour))

	// A valid signed token whose session is no longer in the store.
	token, err := f.codec.Issue(user.ID.Hex(), "sess-1", time.Now().Add(time.Hour))
	require.NoError(t, err)
	f.store.On("GetUserWithSession", mock.Anything, user.ID.Hex(), "sess-1").
		Return(nil, models.ErrSessionRevoked).Once()

	w := f.do(token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, f.handlerCalled)
	assert.Equal(t, models.ErrSessionRevoked.Error(), decodeBody(t, w)["error"])
	f.store.AssertExpectations(t)
}

func TestRequireUserDeletedAccount(t *testing.T) {
	f := newMiddlewareFixture(t, false)
	user := testUser("sess-1", time.Now().Add(30*24*time.Hour))
	user.IsDeleted = true

	token, err := f.codec.Issue(user.ID.Hex(), "sess-1", time.Now().Add(time.Hour))
	require.NoError(t, err)
	f.store.On("GetUserWithSession", mock.Anything, user.ID.Hex(), "sess-1").Return(user, nil).Once()

	w := f.do(token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, f.handlerCalled)
	// Deleted accounts answer exactly like revoked sessions.
	assert.Equal(t, models.ErrSessionRevoked.Error(), decodeBody(t, w)["error"])
}

func TestRequireUserUnverifiedAccount(t *testing.T) {
	f := newMiddlewareFixture(t, false)
	user := testUser("sess-1", time.Now().Add(30*24*time.Hour))
	user.Verified = false

	token, err := f.codec.Issue(user.ID.Hex(), "sess-1", time.Now().Add(time.Hour))
	require.NoError(t, err)
	f.store.On("GetUserWithSession", mock.Anything, user.ID.Hex(), "sess-1").Return(user, nil).Once()

	w := f.do(token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, models.ErrUnverified.Error(), decodeBody(t, w)["error"])
}

func TestRequireUserSuccessInjectsIdentity(t *testing.T) {
	f := newMiddlewareFixture(t, false)
	exp := time.Now().Add(30 * 24 * time.Hour)
	user := testUser("sess-1", exp)

	token, err := f.codec.Issue(user.ID.Hex(), "sess-1", exp)
	require.NoError(t, err)
	f.store.On("GetUserWithSession", mock.Anything, user.ID.Hex(), "sess-1").Return(user, nil).Once()

	w := f.do(token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, f.handlerCalled)
	assert.Equal(t, user.ID.Hex(), f.seenIdentity.UserID)
	assert.Equal(t, "sess-1", f.seenIdentity.SessionID)

	// Far from expiry: no token in the response.
	_, hasToken := decodeBody(t, w)["token"]
	assert.False(t, hasToken)
	f.store.AssertExpectations(t)
}

func TestRequireUserRollingRenewal(t *testing.T) {
	f := newMiddlewareFixture(t, false)
	// Inside the renewal window.
	exp := time.Now().Add(time.Hour)
	user := testUser("sess-1", exp)

	token, err := f.codec.Issue(user.ID.Hex(), "sess-1", exp)
	require.NoError(t, err)
	f.store.On("GetUserWithSession", mock.Anything, user.ID.Hex(), "sess-1").Return(user, nil).Once()
	f.store.On("OpenSession", mock.Anything, user.ID.Hex()).
		Return(models.Session{ID: "sess-2", ExpiresAt: time.Now().Add(30 * 24 * time.Hour)}, nil).Once()
	f.store.On("CloseSession", mock.Anything, user.ID.Hex(), "sess-1").Return(true, nil).Once()

	w := f.do(token)
	assert.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "ok", body["message"])
	renewed, ok := body["token"].(string)
	require.True(t, ok, "renewal must attach a token to the success body")

	claims, err := f.codec.Parse(renewed)
	require.NoError(t, err)
	assert.Equal(t, "sess-2", claims.SessionID)
	f.store.AssertExpectations(t)
}

func TestRequireUserRenewalFailureSwallowed(t *testing.T) {
	f := newMiddlewareFixture(t, false)
	exp := time.Now().Add(time.Hour)
	user := testUser("sess-1", exp)

	token, err := f.codec.Issue(user.ID.Hex(), "sess-1", exp)
	require.NoError(t, err)
	f.store.On("GetUserWithSession", mock.Anything, user.ID.Hex(), "sess-1").Return(user, nil).Once()
	f.store.On("OpenSession", mock.Anything, user.ID.Hex()).
		Return(models.Session{}, assert.AnError).Once()

	w := f.do(token)
	// The original request still succeeds, just without a fresh token.
	assert.Equal(t, http.StatusOK, w.Code)
	_, hasToken := decodeBody(t, w)["token"]
	assert.False(t, hasToken)
	f.store.AssertExpectations(t)
}

func TestRequireUserStoredSessionExpired(t *testing.T) {
	f := newMiddlewareFixture(t, false)
	// Token says live, store says the session expired. The store wins.
	user := testUser("sess-1", time.Now().Add(-time.Minute))

	token, err := f.codec.Issue(user.ID.Hex(), "sess-1", time.Now().Add(time.Hour))
	require.NoError(t, err)
	f.store.On("GetUserWithSession", mock.Anything, user.ID.Hex(), "sess-1").Return(user, nil).Once()

	w := f.do(token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, f.handlerCalled)
}

func TestRequireAdminForbidden(t *testing.T) {
	f := newMiddlewareFixture(t, true)
	exp := time.Now().Add(30 * 24 * time.Hour)
	user := testUser("sess-1", exp)

	token, err := f.codec.Issue(user.ID.Hex(), "sess-1", exp)
	require.NoError(t, err)
	f.store.On("GetUserWithSession", mock.Anything, user.ID.Hex(), "sess-1").Return(user, nil).Once()

	w := f.do(token)
	assert.Equal(t, http.StatusForbidden, w.Code)
	// The gated handler must never run for a non-admin.
	assert.False(t, f.handlerCalled)
}

func TestRequireAdminSuccess(t *testing.T) {
	f := newMiddlewareFixture(t, true)
	exp := time.Now().Add(30 * 24 * time.Hour)
	user := testUser("sess-1", exp)
	user.IsAdmin = true

	token, err := f.codec.Issue(user.ID.Hex(), "sess-1", exp)
	require.NoError(t, err)
	f.store.On("GetUserWithSession", mock.Anything, user.ID.Hex(), "sess-1").Return(user, nil).Once()

	w := f.do(token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, f.handlerCalled)
}
