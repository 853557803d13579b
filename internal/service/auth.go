// Package service provides the business logic layer (use cases).
// AuthService handles registration, login, token refresh and sign-out,
// delegating credential handling to the auth collaborator.
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/cleanearth/cleanearth-bff-go/internal/domain"
	"github.com/cleanearth/cleanearth-bff-go/internal/port"
	"github.com/cleanearth/cleanearth-bff-go/internal/session"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var authTracer = otel.Tracer("service/auth")

const minPasswordLength = 8

// AuthService orchestrates authentication flows. Credentials never touch
// this layer; the auth collaborator owns them.
type AuthService struct {
	auth      port.AuthProvider
	profiles  port.ProfileStore
	sessions  *session.Manager
	jwtSecret []byte
	logger    *zap.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(auth port.AuthProvider, profiles port.ProfileStore, sessions *session.Manager, jwtSecret string, logger *zap.Logger) *AuthService {
	return &AuthService{
		auth:      auth,
		profiles:  profiles,
		sessions:  sessions,
		jwtSecret: []byte(jwtSecret),
		logger:    logger,
	}
}

// ============================================================
// Register — POST /v1/auth/register
// ============================================================

// Register creates the identity with the auth collaborator and then the
// role profile row. The profile row is what makes the role: an identity
// without one can never establish a session.
func (s *AuthService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.RegisterResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Register")
	defer span.End()
	span.SetAttributes(attribute.String("role", string(req.Role)))

	if err := validateRegistration(req); err != nil {
		return nil, err
	}

	identity, err := s.auth.SignUp(ctx, req.Email, req.Password, req.Role)
	if err != nil {
		return nil, err
	}

	if err := s.createRoleProfile(ctx, identity, req); err != nil {
		// The identity exists but has no profile. Surface the error; the
		// account stays unresolvable until the profile insert succeeds.
		s.logger.Error("profile creation failed after sign-up",
			zap.String("identity_id", identity.ID),
			zap.String("role", string(req.Role)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("create %s profile: %w", req.Role, err)
	}

	s.logger.Info("account registered",
		zap.String("identity_id", identity.ID),
		zap.String("role", string(req.Role)),
	)

	return &domain.RegisterResponse{
		Identity: *identity,
		Role:     req.Role,
		Message:  "Account created successfully",
	}, nil
}

func validateRegistration(req *domain.RegisterRequest) error {
	if !strings.Contains(req.Email, "@") {
		return &domain.ErrValidation{Field: "email", Message: "invalid email address"}
	}
	if len(req.Password) < minPasswordLength {
		return &domain.ErrValidation{Field: "password", Message: fmt.Sprintf("must be at least %d characters", minPasswordLength)}
	}
	if !req.Role.Valid() {
		return &domain.ErrValidation{Field: "role", Message: "must be user or collector"}
	}
	if req.Role == domain.RoleUser && req.Profile.FullName == "" {
		return &domain.ErrValidation{Field: "full_name", Message: "required"}
	}
	if req.Role == domain.RoleCollector && req.Profile.BusinessName == "" {
		return &domain.ErrValidation{Field: "business_name", Message: "required"}
	}
	return nil
}

func (s *AuthService) createRoleProfile(ctx context.Context, identity *domain.Identity, req *domain.RegisterRequest) error {
	if req.Role == domain.RoleCollector {
		return s.profiles.CreateCollectorProfile(ctx, &domain.CollectorProfile{
			ID:                 identity.ID,
			BusinessName:       req.Profile.BusinessName,
			OwnerName:          req.Profile.OwnerName,
			RegistrationNumber: req.Profile.RegistrationNumber,
			Phone:              req.Profile.Phone,
			Email:              req.Email,
			ServiceAreas:       req.Profile.ServiceAreas,
			VerificationStatus: domain.VerificationPending,
			BankAccountName:    req.Profile.BankAccountName,
			BankAccountNumber:  req.Profile.BankAccountNumber,
			BankName:           req.Profile.BankName,
		})
	}
	return s.profiles.CreateUserProfile(ctx, &domain.UserProfile{
		ID:       identity.ID,
		FullName: req.Profile.FullName,
		Phone:    req.Profile.Phone,
		Address:  req.Profile.Address,
	})
}

// ============================================================
// Login — POST /v1/auth/login
// ============================================================

// Login signs the caller in and establishes a session, which resolves the
// role from the profile tables. The response carries the role so clients
// can route straight to the matching dashboard.
func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Login")
	defer span.End()

	if req.Email == "" || req.Password == "" {
		return nil, &domain.ErrValidation{Field: "email", Message: "email and password are required"}
	}

	resp, err := s.auth.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.Establish(ctx, resp.Identity)
	if err != nil {
		s.logger.Warn("login: role resolution failed",
			zap.String("identity_id", resp.Identity.ID),
			zap.Error(err),
		)
		return nil, err
	}

	resp.Role = sess.Role
	s.logger.Info("login",
		zap.String("identity_id", resp.Identity.ID),
		zap.String("role", string(sess.Role)),
	)
	return resp, nil
}

// ============================================================
// Refresh — POST /v1/auth/refresh
// ============================================================

func (s *AuthService) Refresh(ctx context.Context, req *domain.RefreshRequest) (*domain.LoginResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Refresh")
	defer span.End()

	if req.RefreshToken == "" {
		return nil, &domain.ErrValidation{Field: "refresh_token", Message: "required"}
	}

	resp, err := s.auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return nil, err
	}

	// The session may have been dropped (restart, feed sign-out); a refresh
	// re-establishes it.
	if sess := s.sessions.Get(resp.Identity.ID); sess != nil {
		resp.Role = sess.Role
	} else {
		sess, err := s.sessions.Establish(ctx, resp.Identity)
		if err != nil {
			return nil, err
		}
		resp.Role = sess.Role
	}

	return resp, nil
}

// ============================================================
// Logout — POST /v1/auth/logout
// ============================================================

// Logout revokes the tokens remotely; the session manager clears local
// state only after the revocation succeeds.
func (s *AuthService) Logout(ctx context.Context, identityID, accessToken string) error {
	ctx, span := authTracer.Start(ctx, "AuthService.Logout")
	defer span.End()

	if err := s.sessions.SignOut(ctx, identityID, accessToken); err != nil {
		return err
	}

	s.logger.Info("logout", zap.String("identity_id", identityID))
	return nil
}

// ============================================================
// ValidateToken — used by middleware
// ============================================================

// AccessClaims are the claims carried by access tokens. Matches the
// GoTrue token shape so both backends validate the same way.
type AccessClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func (s *AuthService) ValidateAccessToken(tokenString string) (*AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	}

	return claims, nil
}
