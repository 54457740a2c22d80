package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gwi.com/support-chatbot/internal/domain"
)

func newIssuer(t *testing.T, secret string, ttl time.Duration) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer(secret, ttl)
	require.NoError(t, err)
	return issuer
}

func TestGenerateAndValidate(t *testing.T) {
	issuer := newIssuer(t, "secret", 0)
	want := domain.Identity{TenantID: 3, UserID: 42}

	token, err := issuer.GenerateJWT(want)
	require.NoError(t, err)

	got, err := issuer.ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestValidate_WrongSecret(t *testing.T) {
	token, err := newIssuer(t, "secret", time.Hour).GenerateJWT(domain.Identity{TenantID: 1, UserID: 1})
	require.NoError(t, err)

	_, err = newIssuer(t, "other", time.Hour).ValidateJWT(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidate_Expired(t *testing.T) {
	issuer := newIssuer(t, "secret", time.Hour)
	claims := jwt.MapClaims{"sub": "1", "tenant": "1", "exp": time.Now().Add(-time.Minute).Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = issuer.ValidateJWT(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidate_MissingOrBadClaims(t *testing.T) {
	issuer := newIssuer(t, "secret", time.Hour)
	cases := map[string]jwt.MapClaims{
		"no tenant":       {"sub": "1"},
		"numeric tenant":  {"sub": "1", "tenant": 1},
		"bad user":        {"sub": "abc", "tenant": "1"},
		"non-positive id": {"sub": "1", "tenant": "0"},
	}
	for name, claims := range cases {
		t.Run(name, func(t *testing.T) {
			token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
			require.NoError(t, err)
			_, err = issuer.ValidateJWT(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestValidate_RejectsNoneAlgorithm(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "1", "tenant": "1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newIssuer(t, "secret", time.Hour).ValidateJWT(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokenIssuer_RequiresSecret(t *testing.T) {
	_, err := NewTokenIssuer("", time.Hour)
	assert.Error(t, err)
}
