package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/beenthere/btdt-api/internal/app/domain/auth"
	"github.com/beenthere/btdt-api/internal/app/models"
	"github.com/beenthere/btdt-api/internal/app/response"
	"github.com/beenthere/btdt-api/internal/observability/metrics"
	"github.com/beenthere/btdt-api/internal/pkg/verify"
)

const defaultListLimit = 50

var dobOperators = map[string]bool{
	"eq": true, "ne": true, "lt": true, "lte": true, "gt": true, "gte": true,
}

type Handler struct {
	logger *slog.Logger
	svc    *auth.Service
	repo   Repo
}

func NewHandler(svc *auth.Service, repo Repo, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, svc: svc, repo: repo}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	DOBYear  string `json:"dob_year"`
	DOBMonth string `json:"dob_month"`
	DOBDay   string `json:"dob_day"`
}

// Register creates an account and returns the token for its first session.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.JSON(c, http.StatusBadRequest, gin.H{"error": models.ErrBadRequest.Error()})
		return
	}

	corrections := gin.H{}
	if errs := verify.CheckPassword(req.Password); len(errs) > 0 {
		corrections["password"] = errs
	}
	if errs := verify.CheckDOB(req.DOBYear, req.DOBMonth, req.DOBDay); len(errs) > 0 {
		corrections["dob"] = errs
	}
	if errs := verify.CheckName(strings.Fields(req.Name)); len(errs) > 0 {
		corrections["name"] = errs
	}
	if len(corrections) > 0 {
		response.JSON(c, http.StatusBadRequest, gin.H{"corrections": corrections})
		return
	}

	year, _ := strconv.Atoi(req.DOBYear)
	month, _ := strconv.Atoi(req.DOBMonth)
	day, _ := strconv.Atoi(req.DOBDay)
	dob := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)

	user, token, err := h.svc.Register(c.Request.Context(), auth.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		DOB:      dob,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			response.JSON(c, http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		response.JSON(c, http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	response.JSON(c, http.StatusCreated, gin.H{"token": token, "user_id": user.ID.Hex()})
}

// Login exchanges HTTP Basic credentials for a fresh session token. The
// error body never says whether the email or the password was wrong.
func (h *Handler) Login(c *gin.Context) {
	email, password, ok := c.Request.BasicAuth()
	if !ok || email == "" {
		response.JSON(c, http.StatusBadRequest, gin.H{"error": models.ErrMissingToken.Error()})
		return
	}

	token, err := h.svc.Login(c.Request.Context(), email, password)
	if err != nil {
		if errors.Is(err, models.ErrUnauthenticated) {
			response.JSON(c, http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		response.JSON(c, http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"token": token})
}

// GetUser returns a public profile. The password digest and sessions never
// leave the repository.
func (h *Handler) GetUser(c *gin.Context) {
	userID := c.Param("user_id")

	user, err := h.repo.GetByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			response.JSON(c, http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		response.JSON(c, http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"user": user})
}

// ListUsers is the admin listing with contains/DOB/flag filters.
func (h *Handler) ListUsers(c *gin.Context) {
	filter := ListFilter{
		NameContains:  c.Query("name"),
		EmailContains: c.Query("email"),
		Limit:         defaultListLimit,
	}

	if v, err := strconv.Atoi(c.DefaultQuery("per_page", strconv.Itoa(defaultListLimit))); err == nil && v > 0 {
		filter.Limit = int64(v)
	}
	if v, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil && v > 0 {
		filter.Offset = int64(v-1) * filter.Limit
	}

	yearStr, monthStr, dayStr := c.Query("year"), c.Query("month"), c.Query("day")
	supplied := 0
	for _, v := range []string{yearStr, monthStr, dayStr} {
		if v != "" {
			supplied++
		}
	}
	switch supplied {
	case 0:
		// no DOB filter
	case 3:
		op := c.DefaultQuery("dob_operator", "eq")
		if !dobOperators[op] {
			response.JSON(c, http.StatusBadRequest, gin.H{"error": "invalid operator"})
			return
		}
		year, errY := strconv.Atoi(yearStr)
		month, errM := strconv.Atoi(monthStr)
		day, errD := strconv.Atoi(dayStr)
		if errY != nil || errM != nil || errD != nil || !verify.CheckDate(year, month, day) {
			response.JSON(c, http.StatusBadRequest, gin.H{"error": "invalid date"})
			return
		}
		filter.DOB = &DOBFilter{Op: op, Date: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
	default:
		response.JSON(c, http.StatusBadRequest, gin.H{"error": "all fields of year, month and day must be passed"})
		return
	}

	for param, dst := range map[string]**bool{
		"is_deleted":  &filter.IsDeleted,
		"is_verified": &filter.IsVerified,
		"is_admin":    &filter.IsAdmin,
	} {
		if v := c.Query(param); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				response.JSON(c, http.StatusBadRequest, gin.H{"error": "invalid boolean filter: " + param})
				return
			}
			*dst = &b
		}
	}

	list, err := h.repo.List(c.Request.Context(), filter)
	if err != nil {
		response.JSON(c, http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	// An empty page is not an error; it just means the end of the list.
	response.JSON(c, http.StatusOK, gin.H{"users": list})
}

// Me returns the identity resolved by the auth middleware.
func (h *Handler) Me(c *gin.Context) {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		response.JSON(c, http.StatusUnauthorized, gin.H{"error": models.ErrUnauthenticated.Error()})
		return
	}

	response.JSON(c, http.StatusOK, gin.H{
		"user_id":     identity.UserID,
		"name":        identity.Name,
		"email":       identity.Email,
		"is_admin":    identity.IsAdmin,
		"verified":    identity.Verified,
		"session_exp": identity.SessionExpiresAt,
	})
}

// Logout closes the session the request authenticated with.
func (h *Handler) Logout(c *gin.Context) {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		response.JSON(c, http.StatusUnauthorized, gin.H{"error": models.ErrUnauthenticated.Error()})
		return
	}

	removed, err := h.svc.Logout(c.Request.Context(), identity.UserID, identity.SessionID)
	if err != nil {
		response.JSON(c, http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if removed {
		h.countRevocations(c, 1, "logout")
	}

	response.JSON(c, http.StatusOK, gin.H{"message": "logged out", "revoked": removed})
}

// LogoutAll revokes every session of the calling user.
func (h *Handler) LogoutAll(c *gin.Context) {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		response.JSON(c, http.StatusUnauthorized, gin.H{"error": models.ErrUnauthenticated.Error()})
		return
	}

	if err := h.svc.LogoutAll(c.Request.Context(), identity.UserID); err != nil {
		response.JSON(c, http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	h.countRevocations(c, 1, "logout_all")

	response.JSON(c, http.StatusOK, gin.H{"message": "all sessions revoked"})
}

// Deactivate soft-deletes the calling user's account.
func (h *Handler) Deactivate(c *gin.Context) {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		response.JSON(c, http.StatusUnauthorized, gin.H{"error": models.ErrUnauthenticated.Error()})
		return
	}

	if err := h.svc.Deactivate(c.Request.Context(), identity.UserID); err != nil {
		response.JSON(c, http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	h.countRevocations(c, 1, "deactivate")

	response.JSON(c, http.StatusOK, gin.H{"message": "account deactivated"})
}

type updatePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// UpdatePassword swaps the credential and revokes all sessions.
func (h *Handler) UpdatePassword(c *gin.Context) {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		response.JSON(c, http.StatusUnauthorized, gin.H{"error": models.ErrUnauthenticated.Error()})
		return
	}

	var req updatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.JSON(c, http.StatusBadRequest, gin.H{"error": models.ErrBadRequest.Error()})
		return
	}

	if errs := verify.CheckPassword(req.NewPassword); len(errs) > 0 {
		response.JSON(c, http.StatusBadRequest, gin.H{"corrections": gin.H{"password": errs}})
		return
	}

	err := h.svc.UpdatePassword(c.Request.Context(), identity.UserID, req.OldPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrUnauthenticated):
			response.JSON(c, http.StatusUnauthorized, gin.H{"error": "incorrect old password"})
		case errors.Is(err, models.ErrValidation):
			response.JSON(c, http.StatusBadRequest, gin.H{"corrections": gin.H{"password": []string{"New password cannot be the same as current password"}}})
		default:
			response.JSON(c, http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}
	h.countRevocations(c, 1, "password_change")

	response.JSON(c, http.StatusOK, gin.H{"message": "password updated"})
}

// SetVerified grants or revokes the verified flag. Admin route.
func (h *Handler) SetVerified(c *gin.Context) {
	userID := c.Param("user_id")

	verified := true
	if v := c.Query("verified"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			response.JSON(c, http.StatusBadRequest, gin.H{"error": "invalid verified value"})
			return
		}
		verified = b
	}

	if err := h.svc.SetVerified(c.Request.Context(), userID, verified); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			response.JSON(c, http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		response.JSON(c, http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"message": "verified flag updated", "verified": verified})
}

// Recover clears the deleted flag on a soft-deleted account. Admin route.
func (h *Handler) Recover(c *gin.Context) {
	userID := c.Param("user_id")

	if err := h.svc.Reactivate(c.Request.Context(), userID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			response.JSON(c, http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		response.JSON(c, http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"message": "account recovered"})
}

func (h *Handler) countRevocations(c *gin.Context, n int64, reason string) {
	metrics.Get().SessionRevocationsTotal.Add(c.Request.Context(), n,
		metric.WithAttributes(attribute.String("reason", reason)))
}
