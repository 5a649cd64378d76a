package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Evgen-Mutagen/moneytransfer/internal/core"
	"github.com/Evgen-Mutagen/moneytransfer/internal/model"
	"github.com/Evgen-Mutagen/moneytransfer/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestIssuer(t *testing.T) *token.Issuer {
	t.Helper()
	issuer, err := token.NewIssuer(token.Config{
		AccessSecret:    "access",
		RefreshSecret:   "refresh",
		AccessLifetime:  time.Minute,
		RefreshLifetime: time.Hour,
	}, nil)
	require.NoError(t, err)
	return issuer
}

func newTestAuth(t *testing.T) (*authService, *memStore, *token.Issuer) {
	t.Helper()
	store := newMemStore()
	issuer := newTestIssuer(t)
	return newAuthService(memUsers{store}, issuer, bcrypt.MinCost, nil), store, issuer
}

func TestRegisterCreatesUserAccountAndTokens(t *testing.T) {
	auth, store, issuer := newTestAuth(t)

	user, pair, err := auth.Register(context.Background(), "alice", "pw1")
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.NotEqual(t, "pw1", user.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("pw1")))

	claims, err := issuer.ClaimsOf(pair.AccessToken, token.Access)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.True(t, issuer.Validate(pair.RefreshToken, token.Refresh))

	assert.Equal(t, model.InitialBalance, store.balanceOf("alice"))
}

func TestRegisterTwiceFailsWithUsernameExists(t *testing.T) {
	auth, store, _ := newTestAuth(t)

	_, _, err := auth.Register(context.Background(), "alice", "pw1")
	require.NoError(t, err)

	_, _, err = auth.Register(context.Background(), "alice", "other")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUsernameAlreadyExists))

	assert.Len(t, store.users, 1)
	assert.Len(t, store.accounts, 1)
}

func TestRegisterSaltsEachHash(t *testing.T) {
	auth, _, _ := newTestAuth(t)

	a, _, err := auth.Register(context.Background(), "a", "same")
	require.NoError(t, err)
	b, _, err := auth.Register(context.Background(), "b", "same")
	require.NoError(t, err)
	assert.NotEqual(t, a.PasswordHash, b.PasswordHash)
}

func TestRegisterAndSignInRejectEmptyFields(t *testing.T) {
	auth, _, _ := newTestAuth(t)

	for _, c := range [][2]string{{"", "pw"}, {"alice", ""}, {"", ""}} {
		_, _, err := auth.Register(context.Background(), c[0], c[1])
		assert.True(t, errors.Is(err, core.ErrValidation))

		_, _, err = auth.SignIn(context.Background(), c[0], c[1])
		assert.True(t, errors.Is(err, core.ErrValidation))
	}
}

func TestSignIn(t *testing.T) {
	auth, _, issuer := newTestAuth(t)
	_, _, err := auth.Register(context.Background(), "alice", "pw1")
	require.NoError(t, err)

	user, pair, err := auth.SignIn(context.Background(), "alice", "pw1")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	claims, err := issuer.ClaimsOf(pair.AccessToken, token.Access)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
}

func TestSignInFailuresLookTheSame(t *testing.T) {
	auth, _, _ := newTestAuth(t)
	_, _, err := auth.Register(context.Background(), "alice", "pw1")
	require.NoError(t, err)

	_, _, wrongPassword := auth.SignIn(context.Background(), "alice", "nope")
	_, _, unknownUser := auth.SignIn(context.Background(), "mallory", "nope")

	require.Error(t, wrongPassword)
	require.Error(t, unknownUser)
	assert.True(t, errors.Is(wrongPassword, core.ErrAuthentication))
	assert.True(t, errors.Is(unknownUser, core.ErrAuthentication))
	assert.Equal(t, core.MessageOf(wrongPassword), core.MessageOf(unknownUser))
}

func TestSignInPropagatesStorageErrors(t *testing.T) {
	auth, store, _ := newTestAuth(t)
	store.failWith = core.Wrap(core.KindPersistence, errors.New("boom"), "Internal server error")

	_, _, err := auth.SignIn(context.Background(), "alice", "pw1")
	assert.True(t, errors.Is(err, core.ErrPersistence))
}

func TestRefreshAndRotate(t *testing.T) {
	auth, _, issuer := newTestAuth(t)
	_, pair, err := auth.Register(context.Background(), "alice", "pw1")
	require.NoError(t, err)

	access, err := auth.RefreshAccess(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.True(t, issuer.Validate(access, token.Access))

	rotated, err := auth.RotateRefresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.True(t, issuer.Validate(rotated.AccessToken, token.Access))
	assert.True(t, issuer.Validate(rotated.RefreshToken, token.Refresh))
	assert.True(t, issuer.Validate(pair.RefreshToken, token.Refresh))

	_, err = auth.RefreshAccess(context.Background(), pair.AccessToken)
	assert.True(t, errors.Is(err, core.ErrInvalidToken))

	_, err = auth.RotateRefresh(context.Background(), "")
	assert.True(t, errors.Is(err, core.ErrValidation))
}
