package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/beenthere/btdt-api/internal/app/models"
	"github.com/beenthere/btdt-api/internal/app/response"
	"github.com/beenthere/btdt-api/internal/observability/metrics"
)

const identityKey = "auth.identity"

// Identity is the resolved caller, injected into the request context by
// RequireUser for downstream handlers. SessionExpiresAt comes from the
// stored session, not the token, so renewal decisions follow the store.
type Identity struct {
	UserID           string
	Name             string
	Email            string
	IsAdmin          bool
	Verified         bool
	SessionID        string
	SessionExpiresAt time.Time
}

// IdentityFromContext returns the identity injected by RequireUser.
func IdentityFromContext(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}

// Middleware gates protected routes on a valid, live, verified identity and
// drives rolling renewal after the handler has run.
type Middleware struct {
	logger        *slog.Logger
	svc           *Service
	store         Store
	codec         *TokenCodec
	renewalWindow time.Duration
}

func NewMiddleware(svc *Service, store Store, codec *TokenCodec, renewalWindow time.Duration, logger *slog.Logger) *Middleware {
	return &Middleware{
		logger:        logger,
		svc:           svc,
		store:         store,
		codec:         codec,
		renewalWindow: renewalWindow,
	}
}

// RequireUser authenticates the request, injects the identity and invokes
// the rest of the chain. Checks run in order and fail closed; the wrapped
// handler never executes on a failed check.
func (m *Middleware) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		// 1. Bearer token from the Authorization header only; query strings
		// and cookies are not credential channels here.
		tokenString := bearerToken(c)
		if tokenString == "" {
			m.reject(c, http.StatusUnauthorized, models.ErrMissingToken, "missing")
			return
		}

		// 2./3. Signature, expiry and required claims.
		claims, err := m.codec.Parse(tokenString)
		if err != nil {
			switch {
			case errors.Is(err, models.ErrExpiredToken):
				m.reject(c, http.StatusUnauthorized, models.ErrExpiredToken, "expired")
			default:
				m.reject(c, http.StatusUnauthorized, models.ErrMalformedToken, "invalid")
			}
			return
		}

		// 4. One atomic lookup: user by id AND session membership. Unknown
		// user and revoked session are indistinguishable on purpose.
		user, err := m.store.GetUserWithSession(ctx, claims.UserID, claims.SessionID)
		if err != nil {
			if errors.Is(err, models.ErrSessionRevoked) {
				m.reject(c, http.StatusUnauthorized, models.ErrSessionRevoked, "revoked")
				return
			}
			m.logger.ErrorContext(ctx, "Session lookup failed", slog.Any("error", err))
			m.count(c, "store_error")
			metrics.Get().DBQueryErrorsTotal.Add(ctx, 1,
				metric.WithAttributes(attribute.String("operation", "get_user_with_session")))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}

		// Server-side expiry of the stored session, redundant with the
		// codec check but enforced independently.
		session, ok := user.LiveSession(claims.SessionID)
		if !ok || session.ExpiresAt.Before(time.Now()) {
			m.reject(c, http.StatusUnauthorized, models.ErrSessionRevoked, "revoked")
			return
		}

		// 5. Deleted users get the same generic answer as revoked sessions.
		if user.IsDeleted {
			m.reject(c, http.StatusUnauthorized, models.ErrSessionRevoked, "revoked")
			return
		}

		// 6. Unverified accounts are named as such.
		if !user.Verified {
			m.reject(c, http.StatusUnauthorized, models.ErrUnverified, "unverified")
			return
		}

		// 7. Inject identity and run the handler.
		c.Set(identityKey, Identity{
			UserID:           user.ID.Hex(),
			Name:             user.Name,
			Email:            user.Email,
			IsAdmin:          user.IsAdmin,
			Verified:         user.Verified,
			SessionID:        session.ID,
			SessionExpiresAt: session.ExpiresAt,
		})
		m.count(c, "ok")

		c.Next()

		// 8. Rolling renewal, strictly best-effort.
		m.maybeRenew(c, user.ID.Hex(), session)
	}
}

// RequireAdmin composes on top of RequireUser and additionally requires the
// admin flag. It never runs the wrapped handler for a non-admin, so no
// partial side effects can leak.
func (m *Middleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := IdentityFromContext(c)
		if !ok {
			// Route wired without RequireUser in front; refuse rather than
			// guess.
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": models.ErrUnauthenticated.Error()})
			return
		}
		if !identity.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": models.ErrForbidden.Error()})
			return
		}
		c.Next()
	}
}

// maybeRenew reissues the token when the session is inside the renewal
// window and the handler staged a structured success body to carry it.
// Failures are swallowed: renewal must never fail the original request.
func (m *Middleware) maybeRenew(c *gin.Context, userID string, session models.Session) {
	if time.Until(session.ExpiresAt) >= m.renewalWindow {
		return
	}
	if c.Writer.Written() {
		// The handler wrote its own bytes; nothing to augment.
		return
	}
	env, ok := response.Pending(c)
	if !ok || env.Status < http.StatusOK || env.Status >= http.StatusMultipleChoices {
		return
	}

	ctx := c.Request.Context()
	token, err := m.svc.Renew(ctx, userID, session.ID)
	if err != nil {
		m.logger.WarnContext(ctx, "Rolling renewal failed", slog.String("userID", userID), slog.Any("error", err))
		metrics.Get().TokenRenewalsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "error")))
		return
	}

	env.Body["token"] = token
	metrics.Get().TokenRenewalsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "renewed")))
}

func (m *Middleware) reject(c *gin.Context, status int, err error, outcome string) {
	m.count(c, outcome)
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func (m *Middleware) count(c *gin.Context, outcome string) {
	metrics.Get().AuthRequestsTotal.Add(c.Request.Context(), 1,
		metric.WithAttributes(attribute.String("outcome", outcome)))
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
