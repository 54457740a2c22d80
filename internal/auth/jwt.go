package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"gwi.com/support-chatbot/internal/domain"
)

const DefaultTokenTTL = 24 * time.Hour

var ErrInvalidToken = errors.New("invalid token")

// TokenIssuer signs and verifies identity tokens carrying a tenant and a user.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret must not be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}, nil
}

func (i *TokenIssuer) GenerateJWT(id domain.Identity) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":    strconv.FormatInt(id.UserID, 10),
		"tenant": strconv.FormatInt(id.TenantID, 10),
		"iat":    now.Unix(),
		"exp":    now.Add(i.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// ValidateJWT verifies the signature and expiry and returns the identity.
func (i *TokenIssuer) ValidateJWT(tokenString string) (domain.Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return domain.Identity{}, ErrInvalidToken
	}
	tenantID, err := int64Claim(claims, "tenant")
	if err != nil {
		return domain.Identity{}, err
	}
	userID, err := int64Claim(claims, "sub")
	if err != nil {
		return domain.Identity{}, err
	}
	if tenantID <= 0 {
		return domain.Identity{}, fmt.Errorf("%w: tenant must be positive", ErrInvalidToken)
	}
	return domain.Identity{TenantID: tenantID, UserID: userID}, nil
}

func int64Claim(claims jwt.MapClaims, name string) (int64, error) {
	raw, ok := claims[name].(string)
	if !ok {
		return 0, fmt.Errorf("%w: missing %s claim", ErrInvalidToken, name)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed %s claim", ErrInvalidToken, name)
	}
	return v, nil
}
