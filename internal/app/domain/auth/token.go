package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/beenthere/btdt-api/internal/app/models"
)

// Claims is the signed token payload. A token is only as alive as the
// session it names: the codec proves integrity and expiry, the store proves
// the session has not been revoked.
type Claims struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies session tokens. It is a pure transform over
// the secret and the payload; it never consults the database.
type TokenCodec struct {
	secret  []byte
	horizon time.Duration
}

func NewTokenCodec(secret string, horizon time.Duration) *TokenCodec {
	return &TokenCodec{secret: []byte(secret), horizon: horizon}
}

// Horizon is the lifetime of a freshly issued token.
func (c *TokenCodec) Horizon() time.Duration {
	return c.horizon
}

// Issue signs a token for the given user/session pair expiring at exp.
func (c *TokenCodec) Issue(userID, sessionID string, exp time.Time) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:    userID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies signature and expiry and returns the claims. Failures
// collapse to exactly two kinds: models.ErrExpiredToken when the expiry has
// elapsed, models.ErrMalformedToken for everything else (bad signature,
// undecodable payload, missing identifiers).
func (c *TokenCodec) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, models.ErrExpiredToken
		}
		return nil, models.ErrMalformedToken
	}
	if !token.Valid {
		return nil, models.ErrMalformedToken
	}
	if claims.UserID == "" || claims.SessionID == "" {
		return nil, models.ErrMalformedToken
	}
	return claims, nil
}
