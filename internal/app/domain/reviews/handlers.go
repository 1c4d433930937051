package reviews

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/beenthere/btdt-api/internal/app/domain/auth"
	"github.com/beenthere/btdt-api/internal/app/models"
	"github.com/beenthere/btdt-api/internal/app/response"
	"github.com/beenthere/btdt-api/internal/pkg/verify"
)

const defaultListLimit = 10

type Handler struct {
	repo Repo
}

func NewHandler(repo Repo) *Handler {
	return &Handler{repo: repo}
}

type upsertReviewRequest struct {
	ShopID  string `json:"shop_id"`
	Message string `json:"message"`
	Score   string `json:"score"`
}

// Upsert creates the caller's review on a shop, or replaces it. A replaced
// review is soft-deleted and the new one carries the edit history forward,
// so likes on the superseded text survive and old wording stays auditable.
func (h *Handler) Upsert(c *gin.Context) {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		response.JSON(c, http.StatusUnauthorized, gin.H{"error": models.ErrUnauthenticated.Error()})
		return
	}
	userID, err := bson.ObjectIDFromHex(identity.UserID)
	if err != nil {
		response.JSON(c, http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	var req upsertReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.JSON(c, http.StatusBadRequest, gin.H{"error": models.ErrBadRequest.Error()})
		return
	}

	corrections := gin.H{}
	if req.ShopID == "" {
		corrections["shop_id"] = []string{"shop_id was not given"}
	}
	if errs := verify.CheckReview(req.Message); len(errs) > 0 {
		corrections["message"] = errs
	}
	if errs := verify.CheckReviewScore(req.Score); len(errs) > 0 {
		corrections["score"] = errs
	}
	if len(corrections) > 0 {
		response.JSON(c, http.StatusBadRequest, gin.H{"corrections": corrections})
		return
	}
	score, _ := strconv.Atoi(req.Score)

	ctx := c.Request.Context()
	now := time.Now().UTC()

	old, err := h.repo.GetActive(ctx, req.ShopID, userID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		response.JSON(c, http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	review := &models.Review{
		UserID:      userID,
		Message:     req.Message,
		Score:       score,
		DateCreated: now,
		DateEdited:  now,
		Edits:       []models.ReviewEdit{},
		Likes:       map[string]int{},
	}

	action := "created"
	if old != nil {
		if err := h.repo.RetireActive(ctx, req.ShopID, userID); err != nil {
			response.JSON(c, http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
		review.DateCreated = old.DateCreated
		review.Edits = append(old.Edits, models.ReviewEdit{
			Message: old.Message,
			Score:   old.Score,
			Date:    old.DateEdited,
		})
		review.Likes = old.Likes
		if review.Likes == nil {
			review.Likes = map[string]int{}
		}
		review.Photo = old.Photo
		action = "edited"
	}

	if err := h.repo.Push(ctx, req.ShopID, review); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			response.JSON(c, http.StatusNotFound, gin.H{"error": "shop not found"})
			return
		}
		response.JSON(c, http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"message": "review " + action + " successfully"})
}

// List returns the live reviews of a shop, most liked first. Public.
func (h *Handler) List(c *gin.Context) {
	shopID := c.Query("shop_id")
	if shopID == "" {
		response.JSON(c, http.StatusBadRequest, gin.H{"error": "shop_id is required"})
		return
	}

	filter := ListFilter{
		ShopID:     shopID,
		ReviewerID: c.Query("user_id"),
		Limit:      defaultListLimit,
	}

	perPage, err := strconv.ParseInt(c.DefaultQuery("per_page", strconv.Itoa(defaultListLimit)), 10, 64)
	if err != nil || perPage < 1 {
		response.JSON(c, http.StatusBadRequest, gin.H{"error": "pagination values cannot be less than 1"})
		return
	}
	page, err := strconv.ParseInt(c.DefaultQuery("page", "1"), 10, 64)
	if err != nil || page < 1 {
		response.JSON(c, http.StatusBadRequest, gin.H{"error": "pagination values cannot be less than 1"})
		return
	}
	filter.Limit = perPage
	filter.Offset = (page - 1) * perPage

	for param, dst := range map[string]**int{
		"min_score": &filter.MinScore,
		"max_score": &filter.MaxScore,
	} {
		if v := c.Query(param); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				response.JSON(c, http.StatusBadRequest, gin.H{"error": param + " must be an integer"})
				return
			}
			*dst = &n
		}
	}

	list, err := h.repo.List(c.Request.Context(), filter)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			response.JSON(c, http.StatusNotFound, gin.H{"error": "shop not found"})
		case errors.Is(err, models.ErrBadRequest):
			response.JSON(c, http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		default:
			response.JSON(c, http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}

	response.JSON(c, http.StatusOK, gin.H{
		"reviews":  list,
		"page":     page,
		"per_page": perPage,
	})
}

// Like marks the caller as liking another user's review.
func (h *Handler) Like(c *gin.Context) {
	h.updateLike(c, h.repo.Like, "review liked successfully", "review not found")
}

// Unlike removes the caller's like.
func (h *Handler) Unlike(c *gin.Context) {
	h.updateLike(c, h.repo.Unlike, "like removed successfully", "review not found or like not found")
}

func (h *Handler) updateLike(
	c *gin.Context,
	op func(ctx context.Context, shopID string, reviewUserID, likerID bson.ObjectID) (bool, error),
	okMsg, missMsg string,
) {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		response.JSON(c, http.StatusUnauthorized, gin.H{"error": models.ErrUnauthenticated.Error()})
		return
	}
	likerID, err := bson.ObjectIDFromHex(identity.UserID)
	if err != nil {
		response.JSON(c, http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	shopID := c.Query("shop_id")
	reviewUserHex := c.Query("review_user_id")
	if shopID == "" || reviewUserHex == "" {
		response.JSON(c, http.StatusBadRequest, gin.H{"error": "shop_id and review_user_id are required"})
		return
	}
	reviewUserID, err := bson.ObjectIDFromHex(reviewUserHex)
	if err != nil {
		response.JSON(c, http.StatusBadRequest, gin.H{"error": "invalid review_user_id"})
		return
	}

	modified, err := op(c.Request.Context(), shopID, reviewUserID, likerID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			response.JSON(c, http.StatusNotFound, gin.H{"error": missMsg})
			return
		}
		response.JSON(c, http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if !modified {
		response.JSON(c, http.StatusNotFound, gin.H{"error": missMsg})
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"message": okMsg})
}
