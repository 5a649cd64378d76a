// Package token mints and validates the HS256 access and refresh tokens.
//
// Access and refresh tokens carry the same claims but are signed with
// independent secrets, so one can never be accepted in place of the other.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/Evgen-Mutagen/moneytransfer/internal/core"
	"github.com/Evgen-Mutagen/moneytransfer/internal/model"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
)

type Kind int

const (
	Access Kind = iota
	Refresh
)

func (k Kind) String() string {
	if k == Refresh {
		return "refresh"
	}
	return "access"
}

type Config struct {
	AccessSecret    string
	RefreshSecret   string
	AccessLifetime  time.Duration
	RefreshLifetime time.Duration
}

func (c Config) validate() error {
	if c.AccessSecret == "" || c.RefreshSecret == "" {
		return errors.New("access and refresh secrets are required")
	}
	if c.AccessSecret == c.RefreshSecret {
		return errors.New("access and refresh secrets must differ")
	}
	if c.AccessLifetime <= 0 || c.RefreshLifetime <= 0 {
		return errors.New("token lifetimes must be positive")
	}
	return nil
}

// Claims is the decoded payload of a verified token.
type Claims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type key struct {
	secret   []byte
	lifetime time.Duration
}

// Issuer is immutable after construction and safe for concurrent use.
type Issuer struct {
	keys   [2]key
	parser *jwt.Parser
	now    func() time.Time
	logger *zap.Logger
}

func NewIssuer(cfg Config, logger *zap.Logger) (*Issuer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Issuer{
		keys: [2]key{
			Access:  {secret: []byte(cfg.AccessSecret), lifetime: cfg.AccessLifetime},
			Refresh: {secret: []byte(cfg.RefreshSecret), lifetime: cfg.RefreshLifetime},
		},
		// Expiry is checked against the issuer clock in verify.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
		now:    time.Now,
		logger: logger,
	}, nil
}

func (i *Issuer) IssueAccess(subject string) (string, error) {
	return i.issue(subject, Access)
}

func (i *Issuer) IssueRefresh(subject string) (string, error) {
	return i.issue(subject, Refresh)
}

// IssuePair mints a fresh access and refresh token for subject.
func (i *Issuer) IssuePair(subject string) (model.TokenPair, error) {
	access, err := i.IssueAccess(subject)
	if err != nil {
		return model.TokenPair{}, err
	}
	refresh, err := i.IssueRefresh(subject)
	if err != nil {
		return model.TokenPair{}, err
	}
	return model.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (i *Issuer) issue(subject string, kind Kind) (string, error) {
	k := i.keys[kind]
	issuedAt := i.now()

	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(k.lifetime)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(k.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", kind, err)
	}
	return signed, nil
}

// Validate reports whether tokenString is a well-formed, correctly signed
// and unexpired token of the given kind. Failures are logged, not returned.
func (i *Issuer) Validate(tokenString string, kind Kind) bool {
	if _, err := i.verify(tokenString, kind); err != nil {
		i.logger.Debug("Token rejected",
			zap.Stringer("kind", kind),
			zap.Error(err))
		return false
	}
	return true
}

// ClaimsOf decodes the claims of a token of the given kind. Callers are
// expected to Validate first; an invalid token yields core.ErrInvalidToken.
func (i *Issuer) ClaimsOf(tokenString string, kind Kind) (*Claims, error) {
	rc, err := i.verify(tokenString, kind)
	if err != nil {
		return nil, core.Wrap(core.KindInvalidToken, err, "Invalid token")
	}

	claims := &Claims{Subject: rc.Subject}
	if rc.IssuedAt != nil {
		claims.IssuedAt = rc.IssuedAt.Time
	}
	if rc.ExpiresAt != nil {
		claims.ExpiresAt = rc.ExpiresAt.Time
	}
	return claims, nil
}

// RefreshAccess trades a valid refresh token for a new access token. The
// refresh token itself is left untouched.
func (i *Issuer) RefreshAccess(refreshToken string) (string, error) {
	if !i.Validate(refreshToken, Refresh) {
		return "", core.ErrInvalidToken
	}
	claims, err := i.ClaimsOf(refreshToken, Refresh)
	if err != nil {
		return "", err
	}
	return i.IssueAccess(claims.Subject)
}

// RotateRefresh trades a valid refresh token for a new access and refresh
// pair. The old refresh token stays valid until its own expiry.
func (i *Issuer) RotateRefresh(refreshToken string) (model.TokenPair, error) {
	if !i.Validate(refreshToken, Refresh) {
		return model.TokenPair{}, core.ErrInvalidToken
	}
	claims, err := i.ClaimsOf(refreshToken, Refresh)
	if err != nil {
		return model.TokenPair{}, err
	}
	return i.IssuePair(claims.Subject)
}

func (i *Issuer) verify(tokenString string, kind Kind) (*jwt.RegisteredClaims, error) {
	if tokenString == "" {
		return nil, errors.New("empty token")
	}

	rc := &jwt.RegisteredClaims{}
	token, err := i.parser.ParseWithClaims(tokenString, rc, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return i.keys[kind].secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}

	if !rc.VerifyExpiresAt(i.now(), true) {
		return nil, errors.New("token is expired")
	}
	if rc.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return rc, nil
}
