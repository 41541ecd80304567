// Package services contains supporting service clients used by the API layer
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/HeltonFraga01/cortexx-engine/config"
	"github.com/HeltonFraga01/cortexx-engine/utils"
	"github.com/golang-jwt/jwt/v5"
)

// Token validation errors
var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("token is invalid")
)

// TokenClaims are the claims carried by an access token
type TokenClaims struct {
	UserID uint `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenService handles JWT token generation and validation
type TokenService interface {
	GenerateToken(userID uint) (string, error)
	ValidateToken(token string) (*TokenClaims, error)
}

// TokenServiceImpl implements TokenService with HMAC signing
type TokenServiceImpl struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

// NewTokenService creates a new token service
func NewTokenService(cfg config.JWTConfig) (TokenService, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("jwt secret must not be empty")
	}
	ttl := cfg.AccessTokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenServiceImpl{
		secret: []byte(cfg.SecretKey),
		ttl:    ttl,
		issuer: cfg.Issuer,
	}, nil
}

// GenerateToken issues a signed access token for the user
func (s *TokenServiceImpl) GenerateToken(userID uint) (string, error) {
	now := utils.UTCNow()
	claims := &TokenClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken parses and verifies an access token
func (s *TokenServiceImpl) ValidateToken(tokenStr string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &TokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid || claims.UserID == 0 {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
