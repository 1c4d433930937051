package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/beenthere/btdt-api/internal/app/models"
)

// RegisterInput carries the already-validated fields for a new account.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	DOB      time.Time
}

// Service orchestrates the session lifecycle: issuance on register/login,
// revocation on logout/deactivation, and rolling renewal.
type Service struct {
	logger *slog.Logger
	store  Store
	codec  *TokenCodec
	hasher *Hasher
}

func NewService(store Store, codec *TokenCodec, hasher *Hasher, logger *slog.Logger) *Service {
	return &Service{logger: logger, store: store, codec: codec, hasher: hasher}
}

// Register creates the user and hands back a token for its first session.
// The account starts verified: there is no verification flow on this route,
// and a registration that cannot authenticate would be useless to callers.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, string, error) {
	l := s.logger.With(slog.String("method", "Register"), slog.String("email", in.Email))
	l.DebugContext(ctx, "Attempting registration")

	tracer := otel.Tracer("btdt-api")
	ctx, span := tracer.Start(ctx, "AuthService.Register", trace.WithAttributes(
		attribute.String("email", in.Email),
	))
	defer span.End()

	user := &models.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: s.hasher.Hash(in.Password),
		Verified:     true,
		DOB:          in.DOB,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		l.WarnContext(ctx, "Repository registration failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Repository registration failed")
		return nil, "", err
	}

	token, err := s.openSessionToken(ctx, user.ID.Hex())
	if err != nil {
		// The account exists but has no session; the user can still log in.
		l.ErrorContext(ctx, "Failed to open initial session", slog.String("userID", user.ID.Hex()), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Initial session failed")
		return nil, "", fmt.Errorf("internal error opening session: %w", err)
	}

	l.InfoContext(ctx, "Registration successful", slog.String("userID", user.ID.Hex()))
	span.SetStatus(codes.Ok, "User registered")
	return user, token, nil
}

// Login validates credentials and opens a new session. Unknown email, wrong
// password and deleted account all collapse to the same generic error so
// the caller cannot probe which check failed.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	l := s.logger.With(slog.String("method", "Login"), slog.String("email", email))
	l.DebugContext(ctx, "Attempting login")

	tracer := otel.Tracer("btdt-api")
	ctx, span := tracer.Start(ctx, "AuthService.Login")
	defer span.End()

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		l.WarnContext(ctx, "GetUserByEmail failed", slog.Any("error", err))
		span.SetStatus(codes.Error, "Unknown email")
		return "", fmt.Errorf("invalid credentials: %w", models.ErrUnauthenticated)
	}

	if user.IsDeleted {
		l.WarnContext(ctx, "Login attempt on deleted account", slog.String("userID", user.ID.Hex()))
		span.SetStatus(codes.Error, "Deleted account")
		return "", fmt.Errorf("invalid credentials: %w", models.ErrUnauthenticated)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		l.WarnContext(ctx, "Password comparison failed", slog.String("userID", user.ID.Hex()))
		span.SetStatus(codes.Error, "Password mismatch")
		return "", fmt.Errorf("invalid credentials: %w", models.ErrUnauthenticated)
	}

	token, err := s.openSessionToken(ctx, user.ID.Hex())
	if err != nil {
		l.ErrorContext(ctx, "Failed to open session", slog.String("userID", user.ID.Hex()), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Session open failed")
		return "", fmt.Errorf("internal error opening session: %w", err)
	}

	l.InfoContext(ctx, "Login successful", slog.String("userID", user.ID.Hex()))
	span.SetStatus(codes.Ok, "Logged in")
	return token, nil
}

// Logout closes one session. The bool reports whether anything was removed.
func (s *Service) Logout(ctx context.Context, userID, sessionID string) (bool, error) {
	l := s.logger.With(slog.String("method", "Logout"), slog.String("userID", userID))
	removed, err := s.store.CloseSession(ctx, userID, sessionID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to close session", slog.Any("error", err))
		return false, fmt.Errorf("logout failed: %w", err)
	}
	l.InfoContext(ctx, "Logout processed", slog.Bool("removed", removed))
	return removed, nil
}

// LogoutAll revokes every session the user holds.
func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	l := s.logger.With(slog.String("method", "LogoutAll"), slog.String("userID", userID))
	if err := s.store.CloseAllSessions(ctx, userID); err != nil {
		l.ErrorContext(ctx, "Failed to close all sessions", slog.Any("error", err))
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}
	l.InfoContext(ctx, "All sessions revoked")
	return nil
}

// Deactivate soft-deletes the account and wipes its sessions atomically.
func (s *Service) Deactivate(ctx context.Context, userID string) error {
	l := s.logger.With(slog.String("method", "Deactivate"), slog.String("userID", userID))
	if err := s.store.Deactivate(ctx, userID); err != nil {
		l.ErrorContext(ctx, "Failed to deactivate user", slog.Any("error", err))
		return fmt.Errorf("failed to deactivate user: %w", err)
	}
	l.InfoContext(ctx, "User deactivated")
	return nil
}

// Reactivate clears the deleted flag. Admin only; enforced at the route.
func (s *Service) Reactivate(ctx context.Context, userID string) error {
	return s.store.Reactivate(ctx, userID)
}

// SetVerified flips the verified flag. Admin only; enforced at the route.
func (s *Service) SetVerified(ctx context.Context, userID string, verified bool) error {
	return s.store.SetVerified(ctx, userID, verified)
}

// UpdatePassword verifies the old password, stores the new digest and
// revokes every session so stolen tokens die with the old credential.
func (s *Service) UpdatePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	l := s.logger.With(slog.String("method", "UpdatePassword"), slog.String("userID", userID))
	l.DebugContext(ctx, "Attempting password update")

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		l.WarnContext(ctx, "User lookup failed", slog.Any("error", err))
		return fmt.Errorf("incorrect old password: %w", models.ErrUnauthenticated)
	}

	if !s.hasher.Verify(oldPassword, user.PasswordHash) {
		l.WarnContext(ctx, "Old password verification failed")
		return fmt.Errorf("incorrect old password: %w", models.ErrUnauthenticated)
	}

	if s.hasher.Verify(newPassword, user.PasswordHash) {
		return fmt.Errorf("new password cannot be the same as current password: %w", models.ErrValidation)
	}

	if err := s.store.UpdatePassword(ctx, userID, s.hasher.Hash(newPassword)); err != nil {
		l.ErrorContext(ctx, "Repository password update failed", slog.Any("error", err))
		return fmt.Errorf("failed to update password: %w", err)
	}

	if err := s.store.CloseAllSessions(ctx, userID); err != nil {
		// Password changed; session revocation failing is not fatal.
		l.WarnContext(ctx, "Failed to revoke sessions after password update", slog.Any("error", err))
	}

	l.InfoContext(ctx, "Password updated successfully")
	return nil
}

// Renew opens a replacement session and issues its token, then retires the
// old session. Retirement is best-effort: a crash in between leaves one
// redundant live session rather than a locked-out user.
func (s *Service) Renew(ctx context.Context, userID, oldSessionID string) (string, error) {
	l := s.logger.With(slog.String("method", "Renew"), slog.String("userID", userID))

	token, err := s.openSessionToken(ctx, userID)
	if err != nil {
		return "", err
	}

	if _, err := s.store.CloseSession(ctx, userID, oldSessionID); err != nil {
		l.WarnContext(ctx, "Failed to retire old session during renewal", slog.Any("error", err))
	}

	l.DebugContext(ctx, "Session renewed")
	return token, nil
}

func (s *Service) openSessionToken(ctx context.Context, userID string) (string, error) {
	session, err := s.store.OpenSession(ctx, userID)
	if err != nil {
		return "", err
	}
	return s.codec.Issue(userID, session.ID, session.ExpiresAt)
}
