package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"rag-chatbot-be/internal/config"
	"rag-chatbot-be/internal/dto"
	"rag-chatbot-be/internal/entity"
	"rag-chatbot-be/internal/pkg/apperror"
	"rag-chatbot-be/internal/pkg/logger"
	"rag-chatbot-be/internal/repository/specification"
	"rag-chatbot-be/internal/repository/unitofwork"
	"rag-chatbot-be/pkg/events"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const authModule = "AUTH"

var errInvalidCredentials = apperror.Unauthorized("No active account found with the given credentials")

type IAuthService interface {
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error)
	Token(ctx context.Context, req *dto.TokenRequest, ipAddress, userAgent string) (*dto.TokenResponse, error)
	Refresh(ctx context.Context, req *dto.RefreshRequest) (*dto.AccessTokenResponse, error)
	Me(ctx context.Context, userId uuid.UUID) (*dto.MeResponse, error)
}

type authService struct {
	uowFactory     unitofwork.RepositoryFactory
	eventPublisher events.Publisher
	logger         logger.ILogger
	cfg            config.AuthConfig
	now            func() time.Time
}

func NewAuthService(uowFactory unitofwork.RepositoryFactory, eventPublisher events.Publisher, log logger.ILogger, cfg config.AuthConfig) IAuthService {
	if eventPublisher == nil {
		eventPublisher = events.NopPublisher{}
	}
	return &authService{
		uowFactory:     uowFactory,
		eventPublisher: eventPublisher,
		logger:         log,
		cfg:            cfg,
		now:            time.Now,
	}
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error) {
	if req.Password != req.Password2 {
		return nil, apperror.Validation("Validation failed", map[string]string{
			"password": "Password fields didn't match.",
		})
	}
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	uow := s.uowFactory.NewUnitOfWork(ctx)

	// 1. Uniqueness
	existing, err := uow.UserRepository().FindOne(ctx, specification.UsernameOrEmail{Username: username, Email: email})
	if err != nil {
		return nil, apperror.Internal("Failed to look up user", err)
	}
	if existing != nil {
		if existing.Username == username {
			return nil, apperror.Conflict("A user with that username already exists.")
		}
		return nil, apperror.Conflict("A user with that email already exists.")
	}

	// 2. Hash password
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperror.Internal("Failed to hash password", err)
	}

	now := s.now().UTC()
	user := &entity.User{
		Id:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Role:         entity.UserRoleUser,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// 3. Save
	if err := uow.Begin(ctx); err != nil {
		return nil, apperror.Internal("Failed to start transaction", err)
	}
	defer uow.Rollback()

	if err := uow.UserRepository().Create(ctx, user); err != nil {
		return nil, apperror.Internal("Failed to create user", err)
	}
	if err := uow.Commit(); err != nil {
		return nil, apperror.Internal("Failed to commit user", err)
	}

	// 4. Publish
	if err := s.eventPublisher.Publish(ctx, events.New(events.UserRegistered, map[string]interface{}{
		"user_id":  user.Id.String(),
		"username": user.Username,
	})); err != nil {
		s.logger.Warn(authModule, "Failed to publish USER_REGISTERED event", map[string]interface{}{
			"user_id": user.Id.String(),
			"error":   err.Error(),
		})
	}

	s.logger.Info(authModule, "User registered", map[string]interface{}{"user_id": user.Id.String()})
	return &dto.RegisterResponse{Id: user.Id, Username: user.Username, Email: user.Email}, nil
}

func (s *authService) Token(ctx context.Context, req *dto.TokenRequest, ipAddress, userAgent string) (*dto.TokenResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	user, err := uow.UserRepository().FindOne(ctx, specification.ByUsername{Username: strings.TrimSpace(req.Username)})
	if err != nil {
		return nil, apperror.Internal("Failed to look up user", err)
	}
	if user == nil || !user.IsActive {
		return nil, errInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, errInvalidCredentials
	}

	access, err := s.signAccessToken(user)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rawRefreshToken := uuid.New().String()
	refreshToken := &entity.UserRefreshToken{
		Id:        uuid.New(),
		UserId:    user.Id,
		TokenHash: hashToken(rawRefreshToken),
		ExpiresAt: now.Add(s.cfg.RefreshTokenTTL),
		CreatedAt: now,
		IpAddress: ipAddress,
		UserAgent: userAgent,
	}
	if err := uow.UserRepository().CreateRefreshToken(ctx, refreshToken); err != nil {
		return nil, apperror.Internal("Failed to create session", err)
	}

	return &dto.TokenResponse{Access: access, Refresh: rawRefreshToken}, nil
}

func (s *authService) Refresh(ctx context.Context, req *dto.RefreshRequest) (*dto.AccessTokenResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	stored, err := uow.UserRepository().FindRefreshToken(ctx, specification.ByTokenHash{Hash: hashToken(req.Refresh)})
	if err != nil {
		return nil, apperror.Internal("Failed to look up token", err)
	}
	if stored == nil || !stored.Usable(s.now()) {
		return nil, apperror.Unauthorized("Token is invalid or expired")
	}

	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: stored.UserId}, specification.ActiveUsers{})
	if err != nil {
		return nil, apperror.Internal("Failed to look up user", err)
	}
	if user == nil {
		return nil, apperror.Unauthorized("Token is invalid or expired")
	}

	access, err := s.signAccessToken(user)
	if err != nil {
		return nil, err
	}
	return &dto.AccessTokenResponse{Access: access}, nil
}

func (s *authService) Me(ctx context.Context, userId uuid.UUID) (*dto.MeResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userId})
	if err != nil {
		return nil, apperror.Internal("Failed to look up user", err)
	}
	if user == nil {
		return nil, apperror.NotFound("User not found")
	}
	return &dto.MeResponse{
		Id:        user.Id,
		Username:  user.Username,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}, nil
}

func (s *authService) signAccessToken(user *entity.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id": user.Id.String(),
		"role":    string(user.Role),
		"exp":     s.now().Add(s.cfg.AccessTokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JwtSecret))
	if err != nil {
		return "", apperror.Internal("Failed to sign token", err)
	}
	return signed, nil
}

