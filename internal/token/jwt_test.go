package token

import (
	"errors"
	"testing"
	"time"

	"github.com/Evgen-Mutagen/moneytransfer/internal/core"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		AccessSecret:    "access-secret",
		RefreshSecret:   "refresh-secret",
		AccessLifetime:  15 * time.Minute,
		RefreshLifetime: 24 * time.Hour,
	}
}

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	issuer, err := NewIssuer(testConfig(), nil)
	require.NoError(t, err)
	return issuer
}

func TestNewIssuerRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty access secret", func(c *Config) { c.AccessSecret = "" }},
		{"empty refresh secret", func(c *Config) { c.RefreshSecret = "" }},
		{"shared secret", func(c *Config) { c.RefreshSecret = c.AccessSecret }},
		{"zero access lifetime", func(c *Config) { c.AccessLifetime = 0 }},
		{"negative refresh lifetime", func(c *Config) { c.RefreshLifetime = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			_, err := NewIssuer(cfg, nil)
			require.Error(t, err)
		})
	}
}

func TestIssueAccessCarriesSubjectAndLifetime(t *testing.T) {
	issuer := newTestIssuer(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	issuer.now = func() time.Time { return now }

	tok, err := issuer.IssueAccess("alice")
	require.NoError(t, err)
	require.True(t, issuer.Validate(tok, Access))

	claims, err := issuer.ClaimsOf(tok, Access)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.True(t, claims.IssuedAt.Equal(now))
	assert.True(t, claims.ExpiresAt.Equal(now.Add(15*time.Minute)))
}

func TestAccessAndRefreshAreNotInterchangeable(t *testing.T) {
	issuer := newTestIssuer(t)

	access, err := issuer.IssueAccess("alice")
	require.NoError(t, err)
	refresh, err := issuer.IssueRefresh("alice")
	require.NoError(t, err)

	assert.False(t, issuer.Validate(access, Refresh))
	assert.False(t, issuer.Validate(refresh, Access))
	assert.True(t, issuer.Validate(refresh, Refresh))
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	issuer := newTestIssuer(t)
	start := time.Now()
	issuer.now = func() time.Time { return start }

	tok, err := issuer.IssueAccess("alice")
	require.NoError(t, err)
	require.True(t, issuer.Validate(tok, Access))

	issuer.now = func() time.Time { return start.Add(15 * time.Minute) }
	assert.False(t, issuer.Validate(tok, Access), "token must be invalid once now reaches expiresAt")

	issuer.now = func() time.Time { return start.Add(time.Hour) }
	assert.False(t, issuer.Validate(tok, Access))

	_, err = issuer.ClaimsOf(tok, Access)
	assert.True(t, errors.Is(err, core.ErrInvalidToken))
}

func TestValidateRejectsGarbageAndForeignSignatures(t *testing.T) {
	issuer := newTestIssuer(t)

	other, err := NewIssuer(Config{
		AccessSecret:    "someone-else",
		RefreshSecret:   "someone-else-refresh",
		AccessLifetime:  time.Minute,
		RefreshLifetime: time.Minute,
	}, nil)
	require.NoError(t, err)
	foreign, err := other.IssueAccess("alice")
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for _, tok := range []string{"", "not-a-token", "a.b.c", foreign, unsigned} {
		assert.False(t, issuer.Validate(tok, Access), tok)
	}
}

func TestRefreshAccessIssuesOnlyAccess(t *testing.T) {
	issuer := newTestIssuer(t)
	refresh, err := issuer.IssueRefresh("bob")
	require.NoError(t, err)

	access, err := issuer.RefreshAccess(refresh)
	require.NoError(t, err)

	claims, err := issuer.ClaimsOf(access, Access)
	require.NoError(t, err)
	assert.Equal(t, "bob", claims.Subject)

	_, err = issuer.RefreshAccess(access)
	assert.True(t, errors.Is(err, core.ErrInvalidToken))
}

func TestRotateRefreshKeepsOldTokenValid(t *testing.T) {
	issuer := newTestIssuer(t)
	start := time.Now()
	issuer.now = func() time.Time { return start }

	old, err := issuer.IssueRefresh("carol")
	require.NoError(t, err)

	issuer.now = func() time.Time { return start.Add(time.Minute) }
	pair, err := issuer.RotateRefresh(old)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	accessClaims, err := issuer.ClaimsOf(pair.AccessToken, Access)
	require.NoError(t, err)
	refreshClaims, err := issuer.ClaimsOf(pair.RefreshToken, Refresh)
	require.NoError(t, err)
	assert.Equal(t, "carol", accessClaims.Subject)
	assert.Equal(t, "carol", refreshClaims.Subject)

	assert.True(t, issuer.Validate(old, Refresh))

	issuer.now = func() time.Time { return start.Add(24 * time.Hour) }
	assert.False(t, issuer.Validate(old, Refresh))
	assert.True(t, issuer.Validate(pair.RefreshToken, Refresh))

	_, err = issuer.RotateRefresh("garbage")
	assert.True(t, errors.Is(err, core.ErrInvalidToken))
}
