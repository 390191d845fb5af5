package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"productive-cloud/internal/domain"
	"productive-cloud/internal/repository"
	"productive-cloud/pkg/hash"
	"productive-cloud/pkg/jwt"

	"github.com/google/uuid"
)

type AuthService struct {
	userRepo      repository.UserRepository
	jwtSecret     string
	jwtExpiration time.Duration
	now           func() time.Time
}

func NewAuthService(userRepo repository.UserRepository, jwtSecret string, jwtExp time.Duration) *AuthService {
	return &AuthService{
		userRepo:      userRepo,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExp,
		now:           time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func exists(_ *domain.User, err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (s *AuthService) Register(req *domain.RegisterRequest) (*domain.AuthResponse, error) {
	email := normalizeEmail(req.Email)
	username := strings.TrimSpace(req.Username)

	taken, err := exists(s.userRepo.FindByEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if !taken {
		taken, err = exists(s.userRepo.FindByUsername(username))
		if err != nil {
			return nil, fmt.Errorf("failed to check username: %w", err)
		}
	}
	if taken {
		return nil, ErrUserExists
	}

	hashedPassword, err := hash.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:        uuid.New().String(),
		Username:  username,
		Email:     email,
		Password:  hashedPassword,
		CreatedAt: now,
		LastLogin: now,
	}

	if err := s.userRepo.Create(user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := jwt.GenerateToken(user.ID, s.jwtExpiration, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &domain.AuthResponse{
		Message: "User created successfully!",
		Token:   token,
		User:    user.Public(),
	}, nil
}

func (s *AuthService) Login(req *domain.LoginRequest) (*domain.AuthResponse, error) {
	user, err := s.userRepo.FindByEmail(normalizeEmail(req.Email))
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if !hash.Matches(user.Password, req.Password) {
		return nil, ErrInvalidCredentials
	}

	user.LastLogin = s.now().UTC()
	if err := s.userRepo.UpdateLastLogin(user.ID, user.LastLogin); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}

	token, err := jwt.GenerateToken(user.ID, s.jwtExpiration, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &domain.AuthResponse{
		Message: "Login successful!",
		Token:   token,
		User:    user.Public(),
	}, nil
}

func (s *AuthService) ValidateToken(token string) (*jwt.Claims, error) {
	claims, err := jwt.ValidateToken(token, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return claims, nil
}
