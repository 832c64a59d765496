package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/segmentio/ksuid"
)

// TokenMinter issues a new token for a user when no valid one is cached.
type TokenMinter interface {
	Mint(username string, now time.Time) (string, error)
}

// TokenVerifier checks bearer tokens presented to protected routes.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

var ErrInvalidToken = errors.New("invalid token")

// FixedSuffixMinter yields token_<username>_<suffix>, deterministic for
// assertions in scenario files.
type FixedSuffixMinter struct {
	Suffix string
}

func (m FixedSuffixMinter) Mint(username string, _ time.Time) (string, error) {
	suffix := m.Suffix
	if suffix == "" {
		suffix = "8888"
	}
	return fmt.Sprintf("token_%s_%s", username, suffix), nil
}

type KSUIDMinter struct{}

func (KSUIDMinter) Mint(_ string, _ time.Time) (string, error) {
	id, err := ksuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate ksuid: %w", err)
	}
	return id.String(), nil
}

type JWTMinter struct {
	secret []byte
	ttl    time.Duration
}

// NewJWTMinter signs HS256 access tokens. ttl <= 0 omits the exp claim.
func NewJWTMinter(secret string, ttl time.Duration) *JWTMinter {
	return &JWTMinter{secret: []byte(secret), ttl: ttl}
}

func (m *JWTMinter) Mint(username string, now time.Time) (string, error) {
	now = now.UTC()
	claims := jwt.MapClaims{
		"sub": username,
		"iat": now.Unix(),
		"jti": ksuid.New().String(),
		"typ": "access",
	}
	if m.ttl > 0 {
		claims["exp"] = now.Add(m.ttl).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	encoded, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return encoded, nil
}

// Verify returns the subject of a valid access token.
func (m *JWTMinter) Verify(tokenStr string) (string, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	if tokenType, _ := claims["typ"].(string); tokenType != "access" {
		return "", ErrInvalidToken
	}
	subject, _ := claims["sub"].(string)
	if subject == "" {
		return "", ErrInvalidToken
	}
	return subject, nil
}

func NewMinter(scheme, suffix, jwtSecret string, ttl time.Duration) (TokenMinter, error) {
	switch scheme {
	case "", "fixed":
		return FixedSuffixMinter{Suffix: suffix}, nil
	case "ksuid":
		return KSUIDMinter{}, nil
	case "jwt":
		if jwtSecret == "" {
			return nil, fmt.Errorf("jwt token scheme requires a secret")
		}
		return NewJWTMinter(jwtSecret, ttl), nil
	default:
		return nil, fmt.Errorf("unsupported token scheme: %s", scheme)
	}
}
