package middlewareinternal

import (
	"context"
	"net/http"
	"strings"

	"github.com/Evgen-Mutagen/moneytransfer/internal/core"
	"github.com/Evgen-Mutagen/moneytransfer/internal/token"
	"github.com/Evgen-Mutagen/moneytransfer/internal/types"
	"github.com/Evgen-Mutagen/moneytransfer/internal/wire"
	"go.uber.org/zap"
)

const bearerPrefix = "Bearer "

var (
	ErrHeaderNotFound = core.E(core.KindAuthentication, "Authorization header not found")
	ErrTokenNotFound  = core.E(core.KindAuthentication, "Token not found")
)

// AccessValidator is satisfied by *token.Issuer.
type AccessValidator interface {
	Validate(tokenString string, kind token.Kind) bool
	ClaimsOf(tokenString string, kind token.Kind) (*token.Claims, error)
}

// ResolveSubject returns the username carried by the request's bearer
// access token. It does not check that the user still exists.
func ResolveSubject(req *wire.Request, validator AccessValidator) (string, error) {
	authHeader := req.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrHeaderNotFound
	}

	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", ErrTokenNotFound
	}
	tokenString := strings.TrimSpace(authHeader[len(bearerPrefix):])
	if tokenString == "" {
		return "", ErrTokenNotFound
	}

	if !validator.Validate(tokenString, token.Access) {
		return "", core.ErrInvalidToken
	}

	claims, err := validator.ClaimsOf(tokenString, token.Access)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// BearerAuth rejects requests without a valid access token and passes the
// subject on through the context.
func BearerAuth(validator AccessValidator, logger *zap.Logger) func(wire.HandlerFunc) wire.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next wire.HandlerFunc) wire.HandlerFunc {
		return func(ctx context.Context, req *wire.Request) *wire.Response {
			subject, err := ResolveSubject(req, validator)
			if err != nil {
				logger.Debug("Unauthorized request",
					zap.String("path", req.Path),
					zap.String("remote", req.RemoteAddr),
					zap.Error(err))
				return wire.Message(http.StatusUnauthorized, core.MessageOf(err))
			}

			logger.Debug("User authenticated",
				zap.String("login", subject),
				zap.String("path", req.Path))
			return next(context.WithValue(ctx, types.SubjectKey, subject), req)
		}
	}
}

func GetSubjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(types.SubjectKey).(string)
	return subject, ok && subject != ""
}
