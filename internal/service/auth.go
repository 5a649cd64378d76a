package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Evgen-Mutagen/moneytransfer/internal/core"
	"github.com/Evgen-Mutagen/moneytransfer/internal/model"
	"github.com/Evgen-Mutagen/moneytransfer/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmptyCredentials   = core.E(core.KindValidation, "Login and password should not be empty")
	ErrInvalidCredentials = core.E(core.KindAuthentication, "Invalid login or password")
	ErrEmptyRefreshToken  = core.E(core.KindValidation, "Refresh token should not be empty")
)

// TokenIssuer is the part of token.Issuer the auth service needs.
type TokenIssuer interface {
	IssuePair(subject string) (model.TokenPair, error)
	RefreshAccess(refreshToken string) (string, error)
	RotateRefresh(refreshToken string) (model.TokenPair, error)
}

type authService struct {
	userRepo  repository.UserRepository
	issuer    TokenIssuer
	cost      int
	dummyHash []byte
	logger    *zap.Logger
}

func NewAuthService(userRepo repository.UserRepository, issuer TokenIssuer, logger *zap.Logger) core.AuthService {
	return newAuthService(userRepo, issuer, bcrypt.DefaultCost, logger)
}

func newAuthService(userRepo repository.UserRepository, issuer TokenIssuer, cost int, logger *zap.Logger) *authService {
	if logger == nil {
		logger = zap.NewNop()
	}
	// Compared against when the login is unknown, so both failure paths cost
	// one bcrypt round.
	dummy, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cost)
	return &authService{
		userRepo:  userRepo,
		issuer:    issuer,
		cost:      cost,
		dummyHash: dummy,
		logger:    logger,
	}
}

func (s *authService) Register(ctx context.Context, login, password string) (*model.User, model.TokenPair, error) {
	if login == "" || password == "" {
		return nil, model.TokenPair{}, ErrEmptyCredentials
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, model.TokenPair{}, core.E(core.KindValidation, "Password is too long")
		}
		return nil, model.TokenPair{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Username:     login,
		PasswordHash: string(hashedPassword),
	}

	account, err := s.userRepo.CreateWithAccount(ctx, user, model.InitialBalance)
	if err != nil {
		return nil, model.TokenPair{}, err
	}
	s.logger.Debug("User created",
		zap.Int64("user_id", user.ID),
		zap.Int64("account_id", account.ID),
		zap.String("login", user.Username))

	pair, err := s.issuer.IssuePair(user.Username)
	if err != nil {
		return nil, model.TokenPair{}, err
	}
	return user, pair, nil
}

func (s *authService) SignIn(ctx context.Context, login, password string) (*model.User, model.TokenPair, error) {
	if login == "" || password == "" {
		return nil, model.TokenPair{}, ErrEmptyCredentials
	}

	user, err := s.userRepo.GetByUsername(ctx, login)
	if err != nil {
		return nil, model.TokenPair{}, err
	}
	if user == nil {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		s.logger.Debug("Sign-in for unknown login", zap.String("login", login))
		return nil, model.TokenPair{}, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Debug("Wrong password", zap.String("login", login))
		return nil, model.TokenPair{}, ErrInvalidCredentials
	}

	pair, err := s.issuer.IssuePair(user.Username)
	if err != nil {
		return nil, model.TokenPair{}, err
	}
	return user, pair, nil
}

func (s *authService) RefreshAccess(_ context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", ErrEmptyRefreshToken
	}
	return s.issuer.RefreshAccess(refreshToken)
}

func (s *authService) RotateRefresh(_ context.Context, refreshToken string) (model.TokenPair, error) {
	if refreshToken == "" {
		return model.TokenPair{}, ErrEmptyRefreshToken
	}
	return s.issuer.RotateRefresh(refreshToken)
}
