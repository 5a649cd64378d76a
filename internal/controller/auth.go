package controller

import (
	"context"
	"net/http"

	"github.com/Evgen-Mutagen/moneytransfer/internal/core"
	"github.com/Evgen-Mutagen/moneytransfer/internal/model"
	"github.com/Evgen-Mutagen/moneytransfer/internal/wire"
	"go.uber.org/zap"
)

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type refreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type AuthController struct {
	authService core.AuthService
	logger      *zap.Logger
	actions     *zap.Logger
}

func NewAuthController(authService core.AuthService, logger, actions *zap.Logger) *AuthController {
	return &AuthController{
		authService: authService,
		logger:      orNop(logger),
		actions:     orNop(actions),
	}
}

func (c *AuthController) SignUp(ctx context.Context, req *wire.Request) *wire.Response {
	var request credentialsRequest
	if resp := decodeBody(c.logger, req, &request); resp != nil {
		return resp
	}

	user, pair, err := c.authService.Register(ctx, request.Login, request.Password)
	if err != nil {
		c.logger.Warn("Registration failed",
			zap.String("login", request.Login),
			zap.Error(err))
		return errorResponse(c.logger, req, err)
	}

	c.logger.Info("User registered successfully",
		zap.Int64("user_id", user.ID),
		zap.String("login", user.Username))
	c.actions.Info("User has signed up", zap.String("login", user.Username))
	return wire.JSON(http.StatusOK, pair)
}

func (c *AuthController) SignIn(ctx context.Context, req *wire.Request) *wire.Response {
	var request credentialsRequest
	if resp := decodeBody(c.logger, req, &request); resp != nil {
		return resp
	}

	user, pair, err := c.authService.SignIn(ctx, request.Login, request.Password)
	if err != nil {
		c.logger.Warn("Login failed",
			zap.String("login", request.Login),
			zap.Error(err))
		return errorResponse(c.logger, req, err)
	}

	c.logger.Info("User logged in successfully",
		zap.Int64("user_id", user.ID),
		zap.String("login", user.Username))
	c.actions.Info("User has signed in", zap.String("login", user.Username))
	return wire.JSON(http.StatusOK, pair)
}

// Token trades a refresh token for a new access token.
func (c *AuthController) Token(ctx context.Context, req *wire.Request) *wire.Response {
	var request refreshTokenRequest
	if resp := decodeBody(c.logger, req, &request); resp != nil {
		return resp
	}

	access, err := c.authService.RefreshAccess(ctx, request.RefreshToken)
	if err != nil {
		return errorResponse(c.logger, req, err)
	}
	return wire.JSON(http.StatusOK, model.TokenPair{AccessToken: access})
}

// Refresh rotates a refresh token into a new access and refresh pair.
func (c *AuthController) Refresh(ctx context.Context, req *wire.Request) *wire.Response {
	var request refreshTokenRequest
	if resp := decodeBody(c.logger, req, &request); resp != nil {
		return resp
	}

	pair, err := c.authService.RotateRefresh(ctx, request.RefreshToken)
	if err != nil {
		return errorResponse(c.logger, req, err)
	}
	return wire.JSON(http.StatusOK, pair)
}

func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
