// Package service implements credential verification and access token
// issuing for operator logins.
package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"measurehub_backend/internal/auth/repository"
	"measurehub_backend/internal/auth/transport"
	"measurehub_backend/platform/apperr"
	"measurehub_backend/platform/config"
	"measurehub_backend/platform/logger"
)

const (
	accessTokenType       = "access"
	defaultAccessTokenTTL = time.Hour

	msgInvalidCredentials = "invalid email or password"
)

// Service verifies credentials and signs access tokens.
type Service struct {
	repo repository.Store
	cfg  config.AuthServiceConfig
	log  *logger.Logger
	now  func() time.Time
}

// New creates a new auth service.
func New(repo repository.Store, cfg config.AuthServiceConfig, log *logger.Logger) *Service {
	return &Service{repo: repo, cfg: cfg, log: log, now: time.Now}
}

// Login verifies the email/password pair and returns a signed access token.
// Unknown email, wrong password and deactivated account all fail with the
// same message.
func (s *Service) Login(ctx context.Context, req transport.LoginRequest) (transport.LoginResponse, error) {
	creds, err := s.repo.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		s.log.AuthEvent("login", req.Email, false, "unknown email")
		return transport.LoginResponse{}, apperr.New(apperr.KindUnauthorized, msgInvalidCredentials)
	}
	if err != nil {
		return transport.LoginResponse{}, apperr.Wrap(apperr.KindInternal, "login failed", err).WithOp("auth.Login")
	}

	// Telegram-only accounts have no password hash and cannot use the API.
	if !creds.IsActive || creds.PasswordHash == nil {
		s.log.AuthEvent("login", req.Email, false, "account inactive or has no password")
		return transport.LoginResponse{}, apperr.New(apperr.KindUnauthorized, msgInvalidCredentials)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*creds.PasswordHash), []byte(req.Password)); err != nil {
		s.log.AuthEvent("login", req.Email, false, "wrong password")
		return transport.LoginResponse{}, apperr.New(apperr.KindUnauthorized, msgInvalidCredentials)
	}

	ttl := s.cfg.GetAccessTokenTTL()
	if ttl <= 0 {
		ttl = defaultAccessTokenTTL
	}

	token, err := s.signAccessToken(creds, ttl)
	if err != nil {
		return transport.LoginResponse{}, apperr.Wrap(apperr.KindInternal, "login failed", err).WithOp("auth.Login")
	}

	s.log.AuthEvent("login", req.Email, true, "")

	return transport.LoginResponse{
		AccessToken: token,
		ExpiresIn:   int64(ttl.Seconds()),
		User: transport.UserSummary{
			ID:       creds.ID,
			FullName: creds.FullName,
			Email:    creds.Email,
			Role:     creds.Role,
		},
	}, nil
}

func (s *Service) signAccessToken(creds repository.Credentials, ttl time.Duration) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":   strconv.FormatInt(creds.ID, 10),
		"type":  accessTokenType,
		"roles": []string{creds.Role},
		"exp":   now.Add(ttl).Unix(),
		"iat":   now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.GetJWTAccessSecret()))
}
