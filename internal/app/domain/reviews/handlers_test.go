package reviews

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/beenthere/btdt-api/internal/app/models"
	"github.com/beenthere/btdt-api/internal/app/response"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type handlerFixture struct {
	repo   *MockRepo
	router *gin.Engine
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	f := &handlerFixture{repo: new(MockRepo)}
	h := NewHandler(f.repo)

	f.router = gin.New()
	f.router.Use(response.Flush())
	f.router.GET("/shops/reviews", h.List)

	return f
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestListRequiresShopID(t *testing.T) {
	f := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/shops/reviews", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	f.repo.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

func TestListUnknownShopIsNotFound(t *testing.T) {
	shopID := bson.NewObjectID().Hex()
	f := newHandlerFixture(t)

	f.repo.On("List", mock.Anything, mock.MatchedBy(func(filter ListFilter) bool {
		return filter.ShopID == shopID
	})).Return(nil, fmt.Errorf("shop with ID %s not found: %w", shopID, models.ErrNotFound)).Once()

	req := httptest.NewRequest(http.MethodGet, "/shops/reviews?shop_id="+shopID, nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "shop not found", decodeBody(t, w)["error"])
	f.repo.AssertExpectations(t)
}

func TestListShopWithoutReviewsIsEmpty(t *testing.T) {
	shopID := bson.NewObjectID().Hex()
	f := newHandlerFixture(t)

	f.repo.On("List", mock.Anything, mock.Anything).Return([]models.Review{}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/shops/reviews?shop_id="+shopID, nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Empty(t, body["reviews"])
	assert.Equal(t, float64(1), body["page"])
	f.repo.AssertExpectations(t)
}

func TestListBuildsFilter(t *testing.T) {
	shopID := bson.NewObjectID().Hex()
	reviewerID := bson.NewObjectID().Hex()
	f := newHandlerFixture(t)

	f.repo.On("List", mock.Anything, mock.MatchedBy(func(filter ListFilter) bool {
		return filter.ShopID == shopID &&
			filter.ReviewerID == reviewerID &&
			filter.MinScore != nil && *filter.MinScore == 3 &&
			filter.MaxScore == nil &&
			filter.Limit == 5 && filter.Offset == 10
	})).Return([]models.Review{}, nil).Once()

	url := "/shops/reviews?shop_id=" + shopID + "&user_id=" + reviewerID + "&min_score=3&per_page=5&page=3"
	req := httptest.NewRequest(http.MethodGet, url, nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	f.repo.AssertExpectations(t)
}
