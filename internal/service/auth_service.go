package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/nkacou/walletd/internal/errors"
	"github.com/nkacou/walletd/internal/models"
	"github.com/nkacou/walletd/internal/repository"
)

const bcryptCost = 14

type AuthService interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	GenerateToken(user *models.User) (string, error)
	ParseToken(token string) (int64, error)
}

type AuthServiceImpl struct {
	userRepo  repository.UserRepository
	jwtSecret []byte
	tokenTTL  time.Duration
	logger    *slog.Logger
}

func NewAuthService(userRepo repository.UserRepository, jwtSecret []byte, tokenTTL time.Duration, logger *slog.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{
		userRepo:  userRepo,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		logger:    logger,
	}
}

// Register creates a new account with the opening balance. The plaintext
// password never leaves this method unhashed.
func (s *AuthServiceImpl) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	if err := s.validateRegisterRequest(req); err != nil {
		s.logger.Warn("invalid register request",
			"email", req.Email,
			"error", err.Error(),
		)
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Name:         req.Name,
		Email:        req.Email,
		Contact:      req.Contact,
		PasswordHash: string(hash),
		Balance:      models.OpeningBalance,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.IsDuplicateIdentity(err) {
			s.logger.Warn("duplicate identity on register",
				"email", req.Email,
			)
			return nil, err
		}
		s.logger.Error("failed to create user",
			"email", req.Email,
			"error", err.Error(),
		)
		return nil, err
	}

	s.logger.Info("user registered",
		"user_id", user.ID,
	)
	return user, nil
}

// Authenticate resolves credentials to an account. Failures are always the
// generic ErrInvalidCredentials so callers cannot learn which field was wrong.
func (s *AuthServiceImpl) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.ErrInvalidCredentials
		}
		s.logger.Error("failed to look up user for login",
			"error", err.Error(),
		)
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, errors.ErrInvalidCredentials
	}
	return user, nil
}

func (s *AuthServiceImpl) GenerateToken(user *models.User) (string, error) {
	claims := jwt.MapClaims{
		"sub": strconv.FormatInt(user.ID, 10),
		"exp": time.Now().Add(s.tokenTTL).Unix(),
		"iat": time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ParseToken verifies the token and returns the account id it was issued for.
func (s *AuthServiceImpl) ParseToken(tokenString string) (int64, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return 0, errors.ErrInvalidCredentials
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, errors.ErrInvalidCredentials
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return 0, errors.ErrInvalidCredentials
	}
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return 0, errors.ErrInvalidCredentials
	}
	return userID, nil
}

func (s *AuthServiceImpl) validateRegisterRequest(req *models.RegisterRequest) error {
	if req.Name == "" {
		return errors.NewValidationError("name", "must be non-empty")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return errors.NewValidationError("email", "must be a valid address")
	}
	if req.Contact == "" {
		return errors.NewValidationError("contact", "must be non-empty")
	}
	if len(req.Password) < 8 {
		return errors.NewValidationError("password", "must be at least 8 characters")
	}
	return nil
}
