package usecases

import (
	"context"

	"go.uber.org/zap"

	"lightning-paywall.backend/internal/config"
	"lightning-paywall.backend/internal/domain/errors"
	"lightning-paywall.backend/pkg/crypto"
	"lightning-paywall.backend/pkg/jwt"
	"lightning-paywall.backend/pkg/logger"
)

// AuthUsecase authenticates the platform operator for the admin surface.
// There is a single configured admin credential; this is a dashboard login,
// not a user system.
type AuthUsecase struct {
	cfg config.AdminConfig
	jwt *jwt.JWTService
}

// NewAuthUsecase creates a new auth usecase
func NewAuthUsecase(cfg config.AdminConfig, jwtService *jwt.JWTService) *AuthUsecase {
	return &AuthUsecase{cfg: cfg, jwt: jwtService}
}

// Login checks the admin credential and issues a token pair.
func (uc *AuthUsecase) Login(ctx context.Context, email, password string) (*jwt.TokenPair, error) {
	if uc.cfg.Email == "" || uc.cfg.PasswordHash == "" {
		return nil, errors.Unauthorized("admin login is not configured")
	}
	if email != uc.cfg.Email || !crypto.CheckPassword(password, uc.cfg.PasswordHash) {
		logger.Warn(ctx, "Rejected admin login", zap.String("email", email))
		return nil, errors.Unauthorized("invalid credentials")
	}

	pair, err := uc.jwt.GenerateTokenPair(email, "admin")
	if err != nil {
		return nil, errors.InternalError(err)
	}
	return pair, nil
}
