package shops

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/beenthere/btdt-api/internal/app/domain/auth"
	"github.com/beenthere/btdt-api/internal/app/models"
	"github.com/beenthere/btdt-api/internal/app/response"
	"github.com/beenthere/btdt-api/internal/pkg/verify"
)

const (
	defaultListLimit = 20

	// Stored photos are normalized to a small thumbnail so a shop document
	// stays far under the 16MB document cap even with a photo embedded.
	photoSize        = 256
	photoJPEGQuality = 10
)

type Handler struct {
	logger *slog.Logger
	repo   Repo
}

func NewHandler(repo Repo, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, repo: repo}
}

type createShopRequest struct {
	Title     string `json:"title"`
	Street    string `json:"street"`
	City      string `json:"city"`
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
	Website   string `json:"website"`
	Phone     string `json:"phone"`
	Category  string `json:"category"`
	OwnerID   string `json:"owner_id"`
}

// Create registers a new shop owned by the caller. Admins may create a
// shop on behalf of another user by supplying owner_id.
func (h *Handler) Create(c *gin.Context) {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		response.JSON(c, http.StatusUnauthorized, gin.H{"error": models.ErrUnauthenticated.Error()})
		return
	}

	var req createShopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.JSON(c, http.StatusBadRequest, gin.H{"error": models.ErrBadRequest.Error()})
		return
	}

	ownerHex := identity.UserID
	if identity.IsAdmin && req.OwnerID != "" {
		ownerHex = req.OwnerID
	}
	ownerID, err := bson.ObjectIDFromHex(ownerHex)
	if err != nil {
		response.JSON(c, http.StatusBadRequest, gin.H{"error": "invalid owner_id"})
		return
	}

	corrections := gin.H{}
	if errs := verify.CheckName(strings.Fields(req.Title)); len(errs) > 0 {
		corrections["title"] = errs
	}
	if errs := verify.CheckName(strings.Fields(req.Street)); len(errs) > 0 {
		corrections["street"] = errs
	}
	if errs := verify.CheckName(strings.Fields(req.City)); len(errs) > 0 {
		corrections["city"] = errs
	}

	shop := &models.Shop{
		OwnerID: ownerID,
		Title:   req.Title,
		Street:  req.Street,
		City:    req.City,
	}

	if req.Latitude != "" || req.Longitude != "" {
		if errs := verify.CheckLocation(req.Latitude, req.Longitude); len(errs) > 0 {
			corrections["location"] = errs
		} else {
			lat, _ := strconv.ParseFloat(req.Latitude, 64)
			long, _ := strconv.ParseFloat(req.Longitude, 64)
			shop.Location = &models.GeoPoint{Type: "Point", Coordinates: [2]float64{long, lat}}
		}
	}

	if req.Website != "" {
		if errs := verify.CheckName(strings.Fields(req.Website)); len(errs) > 0 {
			corrections["website"] = errs
		}
		shop.Website = req.Website
	}

	if req.Phone != "" {
		if errs := verify.CheckPhoneNumber(req.Phone); len(errs) > 0 {
			corrections["phone"] = errs
		}
		shop.Phone = req.Phone
	}

	if req.Category != "" {
		categories, err := h.repo.Categories(c.Request.Context())
		if err != nil {
			response.JSON(c, http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
		if !slices.Contains(categories, req.Category) {
			corrections["category"] = []string{"Not a valid category"}
		}
		shop.Category = req.Category
	}

	if len(corrections) > 0 {
		response.JSON(c, http.StatusBadRequest, gin.H{"corrections": corrections})
		return
	}

	shopID, err := h.repo.Create(c.Request.Context(), shop)
	if err != nil {
		response.JSON(c, http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	response.JSON(c, http.StatusCreated, gin.H{"shop_id": shopID})
}

// List returns a page of shops with their average review score. Public.
func (h *Handler) List(c *gin.Context) {
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
	offset := (page - 1) * perPage

	list, total, err := h.repo.List(c.Request.Context(), ListFilter{Limit: perPage, Offset: offset})
	if err != nil {
		response.JSON(c, http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if total < offset {
		response.JSON(c, http.StatusNotFound, gin.H{"error": "pagination offset is greater than the number of results"})
		return
	}
	if len(list) == 0 {
		response.JSON(c, http.StatusNotFound, gin.H{"error": "no shops found"})
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"shops": list, "total": total})
}

// Get returns a single shop with its average score. Public.
func (h *Handler) Get(c *gin.Context) {
	shop, err := h.repo.GetByID(c.Request.Context(), c.Param("shop_id"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			response.JSON(c, http.StatusNotFound, gin.H{"error": "shop not found"})
			return
		}
		response.JSON(c, http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"shop": shop})
}

// GetTypes lists the category names currently in use. Public.
func (h *Handler) GetTypes(c *gin.Context) {
	categories, err := h.repo.Categories(c.Request.Context())
	if err != nil {
		response.JSON(c, http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"types": categories})
}

// UpdatePhoto accepts a multipart photo upload, normalizes it to a small
// JPEG thumbnail and stores it on the shop document. Owner or admin only.
func (h *Handler) UpdatePhoto(c *gin.Context) {
	shopID := c.Param("shop_id")

	if _, status, errMsg := h.authorizeOwner(c, shopID); errMsg != "" {
		response.JSON(c, status, gin.H{"error": errMsg})
		return
	}

	file, _, err := c.Request.FormFile("photo")
	if err != nil {
		response.JSON(c, http.StatusBadRequest, gin.H{"error": "no photo provided"})
		return
	}
	defer file.Close()

	img, err := imaging.Decode(file)
	if err != nil {
		response.JSON(c, http.StatusBadRequest, gin.H{"error": "unsupported image format"})
		return
	}

	thumb := imaging.Resize(img, photoSize, photoSize, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(photoJPEGQuality)); err != nil {
		h.logger.ErrorContext(c.Request.Context(), "Error encoding photo", slog.Any("error", err))
		response.JSON(c, http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	if err := h.repo.SetPhoto(c.Request.Context(), shopID, buf.Bytes()); err != nil {
		response.JSON(c, http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"message": "photo updated successfully"})
}

// GetPhoto serves the stored JPEG directly. Public. This is the one route
// that bypasses the staged JSON envelope, it writes image bytes.
func (h *Handler) GetPhoto(c *gin.Context) {
	photo, err := h.repo.GetPhoto(c.Request.Context(), c.Param("shop_id"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			response.JSON(c, http.StatusNotFound, gin.H{"error": "photo not found"})
			return
		}
		response.JSON(c, http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.Data(http.StatusOK, "image/jpeg", photo)
}

// DeletePhoto removes the stored photo. Owner or admin only.
func (h *Handler) DeletePhoto(c *gin.Context) {
	shopID := c.Param("shop_id")

	shop, status, errMsg := h.authorizeOwner(c, shopID)
	if errMsg != "" {
		response.JSON(c, status, gin.H{"error": errMsg})
		return
	}
	if len(shop.Photo) == 0 {
		response.JSON(c, http.StatusNotFound, gin.H{"error": "no photo to delete"})
		return
	}

	if err := h.repo.DeletePhoto(c.Request.Context(), shopID); err != nil {
		response.JSON(c, http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"message": "photo deleted successfully"})
}

// Delete permanently removes a shop. Admin route; the caller must repeat
// the shop title as a confirmation against fat-finger deletes.
func (h *Handler) Delete(c *gin.Context) {
	shopID := c.Param("shop_id")
	title := c.Query("title")

	shop, err := h.repo.GetMeta(c.Request.Context(), shopID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			response.JSON(c, http.StatusNotFound, gin.H{"error": "shop not found"})
			return
		}
		response.JSON(c, http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	if shop.Title != title {
		response.JSON(c, http.StatusBadRequest, gin.H{"error": "title does not match, shop not deleted"})
		return
	}

	if err := h.repo.Delete(c.Request.Context(), shopID); err != nil {
		response.JSON(c, http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"message": "shop '" + shop.Title + "' deleted successfully"})
}

// Deactivate soft-deletes a shop. Owner only, not even admins; admins have
// the hard delete instead.
func (h *Handler) Deactivate(c *gin.Context) {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		response.JSON(c, http.StatusUnauthorized, gin.H{"error": models.ErrUnauthenticated.Error()})
		return
	}
	shopID := c.Param("shop_id")

	shop, err := h.repo.GetMeta(c.Request.Context(), shopID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			response.JSON(c, http.StatusNotFound, gin.H{"error": "shop not found"})
			return
		}
		response.JSON(c, http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	if shop.OwnerID.Hex() != identity.UserID {
		response.JSON(c, http.StatusForbidden, gin.H{"error": "only the owner can deactivate this shop"})
		return
	}

	if err := h.repo.Deactivate(c.Request.Context(), shopID); err != nil {
		response.JSON(c, http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"message": "shop '" + shop.Title + "' deactivated successfully"})
}

// Reactivate clears the deleted flag on a shop, optionally handing it to a
// new owner. Admin route.
func (h *Handler) Reactivate(c *gin.Context) {
	shopID := c.Param("shop_id")

	shop, err := h.repo.GetMeta(c.Request.Context(), shopID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			response.JSON(c, http.StatusNotFound, gin.H{"error": "shop not found"})
			return
		}
		response.JSON(c, http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	if !shop.Deleted {
		response.JSON(c, http.StatusBadRequest, gin.H{"error": "shop is not currently deleted"})
		return
	}

	newOwner := shop.OwnerID
	if v := c.Query("new_owner_id"); v != "" {
		oid, err := bson.ObjectIDFromHex(v)
		if err != nil {
			response.JSON(c, http.StatusBadRequest, gin.H{"error": "invalid new_owner_id"})
			return
		}
		newOwner = oid
	}

	if err := h.repo.Reactivate(c.Request.Context(), shopID, newOwner); err != nil {
		response.JSON(c, http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"message": "shop '" + shop.Title + "' reactivated successfully"})
}

// authorizeOwner loads the shop and checks the caller is its owner or an
// admin. A non-empty message means the caller must be refused with the
// returned status.
func (h *Handler) authorizeOwner(c *gin.Context, shopID string) (*models.Shop, int, string) {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return nil, http.StatusUnauthorized, models.ErrUnauthenticated.Error()
	}

	shop, err := h.repo.GetMeta(c.Request.Context(), shopID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, http.StatusNotFound, "shop not found"
		}
		return nil, http.StatusInternalServerError, "internal server error"
	}

	if shop.OwnerID.Hex() != identity.UserID && !identity.IsAdmin {
		return nil, http.StatusForbidden, "you are not allowed to update this shop"
	}
	return shop, 0, ""
}
