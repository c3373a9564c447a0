package jwtutil

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// TokenTTL is the fixed validity window of a session token. The session
// cookie max-age must match it.
const TokenTTL = 7 * 24 * time.Hour

// ErrInvalidToken is the single verification failure. Expired, forged and
// malformed tokens are deliberately indistinguishable to callers so that
// responses cannot be used as an oracle.
var ErrInvalidToken = errors.New("invalid token")

// Claims binds an authenticated user to a farm slug. FarmSlug is empty for
// users who have not created a farm yet.
type Claims struct {
	UserID   uint   `json:"user_id"`
	FarmSlug string `json:"farm_slug,omitempty"`
	jwt.RegisteredClaims
}

// Service issues and verifies signed session tokens. Tokens are stateless:
// validity is a function of signature and expiry only, there is no
// server-side session table and no revocation before natural expiry.
type Service struct {
	signingKey []byte
}

// New creates a token service with the given signing key.
func New(signingKey string) (*Service, error) {
	if signingKey == "" {
		return nil, errors.New("jwtutil: signing key is required")
	}
	return &Service{signingKey: []byte(signingKey)}, nil
}

// Issue creates a signed token for the user bound to the farm slug, valid
// for TokenTTL from now. It returns the token and its expiry time.
func (s *Service) Issue(userID uint, farmSlug string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(TokenTTL)
	claims := Claims{
		UserID:   userID,
		FarmSlug: farmSlug,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify validates the token's signature and expiry and returns its claims.
// Every failure mode collapses to ErrInvalidToken.
func (s *Service) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.signingKey, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
