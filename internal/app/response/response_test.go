package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlushSerializesStagedEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Flush())
	r.GET("/", func(c *gin.Context) {
		JSON(c, http.StatusCreated, gin.H{"message": "created"})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusCreated, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "created", body["message"])
}

func TestFlushLeavesDirectWritesAlone(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Flush())
	r.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "image/jpeg", []byte{0xFF, 0xD8})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []byte{0xFF, 0xD8}, w.Body.Bytes())
}

func TestMiddlewareCanAugmentPendingEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Flush())
	r.Use(func(c *gin.Context) {
		c.Next()
		if env, ok := Pending(c); ok {
			env.Body["extra"] = "added-after-handler"
		}
	})
	r.GET("/", func(c *gin.Context) {
		JSON(c, http.StatusOK, gin.H{"message": "ok"})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "added-after-handler", body["extra"])
}

func TestPendingWithoutStagedEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	_, ok := Pending(c)
	assert.False(t, ok)
}
